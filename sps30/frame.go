package sps30

// Command identifies an SHDLC command. The sensor echoes the command byte in
// its response, which is how replies are matched to requests.
type Command byte

const (
	CmdStartMeasurement Command = 0x00
	CmdStopMeasurement  Command = 0x01
	CmdReadMeasuredData Command = 0x03
	CmdWakeUp           Command = 0x11
	CmdStartFanCleaning Command = 0x56
	// CmdAutoCleaningInterval reads or writes the fan auto-cleaning
	// interval depending on its subcommand byte.
	CmdAutoCleaningInterval Command = 0x80
	CmdDeviceInformation    Command = 0xd0
	CmdReadVersion          Command = 0xd1
	CmdReset                Command = 0xd3
)

// deviceInfoSerialNumber is the device-information subcommand selecting the
// serial number string.
const deviceInfoSerialNumber byte = 0x03

// sensorAddr is the SHDLC bus address. The SPS30 always answers on 0.
const sensorAddr byte = 0x00

// checksum implements the SHDLC checksum: the byte sum modulo 256,
// subtracted from 255.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return 255 - sum
}

// buildRequest assembles the body of a MOSI frame:
//
//	ADR  CMD  Length  TX Data (0..255)  CHK
//
// with the checksum computed over all preceding bytes.
func buildRequest(cmd Command, data []byte) ([]byte, error) {
	if len(data) > 255 {
		return nil, ErrRequestTooLarge
	}

	b := make([]byte, 0, len(data)+4)
	b = append(b, sensorAddr, byte(cmd), byte(len(data)))
	b = append(b, data...)
	b = append(b, checksum(b))
	return b, nil
}

// parseMISOFrame validates the body of a decoded MISO frame and returns a
// view of its data bytes:
//
//	ADR  CMD  State  Length  RX Data (0..255)  CHK
//
// The checksum is verified before any field is interpreted, and the command
// echo before the state byte so that a device error from an interleaved
// response is not misattributed to this request.
func parseMISOFrame(frame []byte, cmd Command) ([]byte, error) {
	if len(frame) < 5 {
		return nil, ErrInvalidResponse
	}
	if frame[0] != sensorAddr {
		return nil, ErrInvalidResponse
	}

	if frame[len(frame)-1] != checksum(frame[:len(frame)-1]) {
		return nil, ErrChecksumFailed
	}

	if got := Command(frame[1]); got != cmd {
		return nil, &CommandMismatchError{Expected: cmd, Got: got}
	}
	if state := frame[2]; state != 0 {
		return nil, DeviceError(state)
	}

	data := frame[4 : len(frame)-1]
	if int(frame[3]) != len(data) {
		return nil, ErrInvalidResponse
	}
	return data, nil
}

// checkMISOFrame validates a MISO frame body, discarding the data. Used by
// commands whose response carries none.
func checkMISOFrame(frame []byte, cmd Command) error {
	_, err := parseMISOFrame(frame, cmd)
	return err
}
