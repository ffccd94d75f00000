package sps30

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmwatch/sps30d/shdlc"
)

// scriptedPort is an in-memory transport: writes are recorded, reads pop
// pre-queued response chunks.
type scriptedPort struct {
	written bytes.Buffer
	reads   [][]byte
	n       int
}

func (p *scriptedPort) Write(b []byte) (int, error) { return p.written.Write(b) }

func (p *scriptedPort) Read(b []byte) (int, error) {
	if p.n >= len(p.reads) {
		return 0, io.EOF
	}
	n := copy(b, p.reads[p.n])
	p.n++
	return n, nil
}

func (p *scriptedPort) Close() error { return nil }

// respond queues an encoded MISO frame for cmd with the given state and data.
func (p *scriptedPort) respond(t *testing.T, cmd Command, state byte, data []byte) {
	t.Helper()
	frame, err := shdlc.Encode(misoFrame(cmd, state, data), maxEncodedFrameSize)
	require.NoError(t, err)
	p.reads = append(p.reads, frame)
}

func floatBytes(vals ...float32) []byte {
	b := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		b = binary.BigEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func TestStartMeasurementWire(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdStartMeasurement, 0, nil)
	dev := NewDevice(port)

	require.NoError(t, dev.StartMeasurement())
	assert.Equal(t, []byte{0x7e, 0x00, 0x00, 0x02, 0x01, 0x03, 0xf9, 0x7e},
		port.written.Bytes())
}

func TestStopMeasurement(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdStopMeasurement, 0, nil)
	dev := NewDevice(port)

	require.NoError(t, dev.StopMeasurement())
	assert.Equal(t, []byte{0x7e, 0x00, 0x01, 0x00, 0xfe, 0x7e}, port.written.Bytes())
}

func TestReadMeasurement(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdReadMeasuredData, 0, floatBytes(
		1.5, 2.5, 3.5, 4.5, 10, 20, 30, 40, 50, 0.75,
	))
	dev := NewDevice(port)

	m, err := dev.ReadMeasurement()
	require.NoError(t, err)
	assert.Equal(t, Measurement{
		MassPM1_0:           1.5,
		MassPM2_5:           2.5,
		MassPM4_0:           3.5,
		MassPM10:            4.5,
		NumberPM0_5:         10,
		NumberPM1_0:         20,
		NumberPM2_5:         30,
		NumberPM4_0:         40,
		NumberPM10:          50,
		TypicalParticleSize: 0.75,
	}, m)
}

func TestReadMeasurementTooShort(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdReadMeasuredData, 0, floatBytes(1, 2, 3))
	dev := NewDevice(port)

	_, err := dev.ReadMeasurement()
	assert.ErrorIs(t, err, ErrMeasurementTooShort)
}

func TestReadMeasurementDeviceError(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdReadMeasuredData, 0x43, nil)
	dev := NewDevice(port)

	_, err := dev.ReadMeasurement()
	assert.ErrorIs(t, err, DeviceErrInvalidState)
}

func TestReadCleaningInterval(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdAutoCleaningInterval, 0, []byte{0x00, 0x09, 0x3a, 0x80})
	dev := NewDevice(port)

	interval, err := dev.ReadCleaningInterval()
	require.NoError(t, err)
	assert.Equal(t, uint32(604800), interval)

	// read subcommand 0x00 on the wire; the checksum byte 0x7e gets stuffed
	assert.Equal(t, []byte{0x7e, 0x00, 0x80, 0x01, 0x00, 0x7d, 0x5e, 0x7e},
		port.written.Bytes())
}

func TestWriteCleaningInterval(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdAutoCleaningInterval, 0, nil)
	dev := NewDevice(port)

	require.NoError(t, dev.WriteCleaningInterval(604800))

	req, err := buildRequest(CmdAutoCleaningInterval, []byte{0x05, 0x00, 0x09, 0x3a, 0x80})
	require.NoError(t, err)
	encoded, err := shdlc.Encode(req, maxEncodedFrameSize)
	require.NoError(t, err)
	assert.Equal(t, encoded, port.written.Bytes())
}

func TestSerialNumber(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdDeviceInformation, 0, []byte("F1A2B3C4D5E6\x00"))
	dev := NewDevice(port)

	serial, err := dev.SerialNumber()
	require.NoError(t, err)
	assert.Equal(t, "F1A2B3C4D5E6", serial)
}

func TestSerialNumberInvalidUTF8(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdDeviceInformation, 0, []byte{0xff, 0xfe, 0x41})
	dev := NewDevice(port)

	_, err := dev.SerialNumber()
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestReadVersion(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdReadVersion, 0, []byte{2, 2, 0, 7, 0, 2, 0})
	dev := NewDevice(port)

	v, err := dev.ReadVersion()
	require.NoError(t, err)
	assert.Equal(t, VersionInfo{
		FirmwareMajor:    2,
		FirmwareMinor:    2,
		HardwareRevision: 7,
		SHDLCMajor:       2,
		SHDLCMinor:       0,
	}, v)
}

func TestWakeUpSendsCommandTwice(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdWakeUp, 0, nil)
	dev := NewDevice(port)

	require.NoError(t, dev.WakeUp())

	once, err := buildRequest(CmdWakeUp, nil)
	require.NoError(t, err)
	encoded, err := shdlc.Encode(once, maxEncodedFrameSize)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, encoded...), encoded...),
		port.written.Bytes())
}

func TestResponseForOtherCommand(t *testing.T) {
	port := &scriptedPort{}
	port.respond(t, CmdStopMeasurement, 0, nil)
	dev := NewDevice(port)

	err := dev.StartMeasurement()
	var mismatch *CommandMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, CmdStartMeasurement, mismatch.Expected)
}

func TestExchangeEOF(t *testing.T) {
	dev := NewDevice(&scriptedPort{})
	err := dev.StopMeasurement()
	assert.ErrorIs(t, err, ErrEOF)
}
