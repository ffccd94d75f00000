package sps30

import (
	"bytes"
	"encoding/binary"
	"time"
	"unicode/utf8"
)

// VersionInfo describes the sensor's firmware, hardware and SHDLC protocol
// versions.
type VersionInfo struct {
	FirmwareMajor    uint8 `json:"firmware_major"`
	FirmwareMinor    uint8 `json:"firmware_minor"`
	HardwareRevision uint8 `json:"hardware_revision"`
	SHDLCMajor       uint8 `json:"shdlc_major"`
	SHDLCMinor       uint8 `json:"shdlc_minor"`
}

// StartMeasurement switches the sensor from Idle- to Measurement-Mode.
// After power up or reset the sensor idles; no measurement values can be
// read before this command.
func (o *Device) StartMeasurement() error {
	const subCmd byte = 0x01
	const formatFloat byte = 0x03

	resp, err := o.exchange(CmdStartMeasurement, []byte{subCmd, formatFloat})
	if err != nil {
		return err
	}
	return checkMISOFrame(resp, CmdStartMeasurement)
}

// StopMeasurement returns the sensor to Idle-Mode.
func (o *Device) StopMeasurement() error {
	resp, err := o.exchange(CmdStopMeasurement, nil)
	if err != nil {
		return err
	}
	return checkMISOFrame(resp, CmdStopMeasurement)
}

// ReadMeasurement reads the latest measured values. If no new measurement is
// available yet the sensor waits with its answer; the measurement interval
// is 1 second.
func (o *Device) ReadMeasurement() (Measurement, error) {
	resp, err := o.exchange(CmdReadMeasuredData, nil)
	if err != nil {
		return Measurement{}, err
	}
	data, err := parseMISOFrame(resp, CmdReadMeasuredData)
	if err != nil {
		return Measurement{}, err
	}
	return measurementFromData(data)
}

// ReadCleaningInterval reads the interval of the periodic fan cleaning in
// seconds.
func (o *Device) ReadCleaningInterval() (uint32, error) {
	const subCmd byte = 0x00

	resp, err := o.exchange(CmdAutoCleaningInterval, []byte{subCmd})
	if err != nil {
		return 0, err
	}
	data, err := parseMISOFrame(resp, CmdAutoCleaningInterval)
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, ErrCleaningIntervalTooShort
	}
	return binary.BigEndian.Uint32(data), nil
}

// WriteCleaningInterval sets the interval of the periodic fan cleaning in
// seconds. The default is 168 hours; the value is stored in non-volatile
// memory, but the time counter restarts at 0 whenever the sensor powers up.
func (o *Device) WriteCleaningInterval(seconds uint32) error {
	// subcommand 0x05: wrong in the datasheet's table, correct in its example
	const subCmd byte = 0x05

	data := make([]byte, 5)
	data[0] = subCmd
	binary.BigEndian.PutUint32(data[1:], seconds)

	resp, err := o.exchange(CmdAutoCleaningInterval, data)
	if err != nil {
		return err
	}
	got, err := parseMISOFrame(resp, CmdAutoCleaningInterval)
	if err != nil {
		return err
	}
	if len(got) != 0 {
		return ErrInvalidResponse
	}
	return nil
}

// StartFanCleaning runs the fan at maximum speed for 10 seconds to blow out
// accumulated dust.
func (o *Device) StartFanCleaning() error {
	resp, err := o.exchange(CmdStartFanCleaning, nil)
	if err != nil {
		return err
	}
	return checkMISOFrame(resp, CmdStartFanCleaning)
}

// SerialNumber reads the sensor's serial number.
func (o *Device) SerialNumber() (string, error) {
	resp, err := o.exchange(CmdDeviceInformation, []byte{deviceInfoSerialNumber})
	if err != nil {
		return "", err
	}
	data, err := parseMISOFrame(resp, CmdDeviceInformation)
	if err != nil {
		return "", err
	}

	data = bytes.TrimRight(data, "\x00")
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}

// ReadVersion reads firmware, hardware and SHDLC protocol versions.
func (o *Device) ReadVersion() (VersionInfo, error) {
	resp, err := o.exchange(CmdReadVersion, nil)
	if err != nil {
		return VersionInfo{}, err
	}
	data, err := parseMISOFrame(resp, CmdReadVersion)
	if err != nil {
		return VersionInfo{}, err
	}
	if len(data) < 7 {
		return VersionInfo{}, ErrVersionTooShort
	}
	return VersionInfo{
		FirmwareMajor:    data[0],
		FirmwareMinor:    data[1],
		HardwareRevision: data[3],
		SHDLCMajor:       data[5],
		SHDLCMinor:       data[6],
	}, nil
}

// Reset restarts the sensor, as after power up. Blocks for the 20 ms the
// reset takes before the interface answers again.
func (o *Device) Reset() error {
	resp, err := o.exchange(CmdReset, nil)
	if err != nil {
		return err
	}
	if err := checkMISOFrame(resp, CmdReset); err != nil {
		return err
	}
	time.Sleep(20 * time.Millisecond)
	return nil
}

// WakeUp switches the sensor from Sleep- to Idle-Mode. In Sleep-Mode the
// interface is disabled and must first be activated, so the command is sent
// twice: the first send doubles as the activation pulse and its outcome is
// ignored.
func (o *Device) WakeUp() error {
	o.cmdLock.Lock()
	defer o.cmdLock.Unlock()

	_ = o.encodeAndSend(CmdWakeUp, nil)
	if err := o.encodeAndSend(CmdWakeUp, nil); err != nil {
		return err
	}
	resp, err := o.receiveAndDecode()
	if err != nil {
		return err
	}
	return checkMISOFrame(resp, CmdWakeUp)
}
