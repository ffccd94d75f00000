package sps30

import (
	"errors"
	"fmt"
)

// DeviceError is an execution error the sensor reports in the state byte of
// a response frame. The known codes come from the SHDLC section of the
// datasheet; any other non-zero state byte is kept as-is and reported as an
// undocumented code.
type DeviceError byte

// Documented device error codes.
const (
	DeviceErrWrongDataLen       DeviceError = 0x01
	DeviceErrUnknownCmd         DeviceError = 0x02
	DeviceErrNoAccess           DeviceError = 0x03
	DeviceErrInvalidParam       DeviceError = 0x04
	DeviceErrInternalOutOfRange DeviceError = 0x28
	DeviceErrInvalidState       DeviceError = 0x43
)

func (e DeviceError) Error() string {
	switch e {
	case DeviceErrWrongDataLen:
		return "device: wrong data length for command"
	case DeviceErrUnknownCmd:
		return "device: unknown command"
	case DeviceErrNoAccess:
		return "device: no access right for command"
	case DeviceErrInvalidParam:
		return "device: illegal command parameter or parameter out of range"
	case DeviceErrInternalOutOfRange:
		return "device: internal function argument out of range"
	case DeviceErrInvalidState:
		return "device: command not allowed in current state"
	default:
		return fmt.Sprintf("device: undocumented error code %#02x", byte(e))
	}
}

// Protocol level failures.
var (
	// ErrEOF is returned when the transport signals end of stream, which
	// for a serial line means the device side went away.
	ErrEOF = errors.New("sps30: unexpected EOF, is the sensor disconnected?")
	// ErrFrameTooLarge is returned when an incoming frame does not fit the
	// synchronizer's scratch buffer.
	ErrFrameTooLarge = errors.New("sps30: frame exceeds scratch buffer")
	// ErrChecksumFailed is returned when the recomputed checksum of a
	// decoded response disagrees with its trailing checksum byte.
	ErrChecksumFailed = errors.New("sps30: response checksum mismatch")
	// ErrInvalidResponse is returned for response frames that are
	// structurally broken: too short, wrong address, or a length byte that
	// does not match the data.
	ErrInvalidResponse = errors.New("sps30: malformed response frame")
	// ErrRequestTooLarge is returned when a request payload does not fit
	// the one byte length field.
	ErrRequestTooLarge = errors.New("sps30: request payload too large")
	// ErrMeasurementTooShort is returned when a read-measurement response
	// carries fewer than the ten expected big-endian floats.
	ErrMeasurementTooShort = errors.New("sps30: measurement payload too short")
	// ErrCleaningIntervalTooShort is returned when a cleaning-interval
	// response does not carry a 32 bit value.
	ErrCleaningIntervalTooShort = errors.New("sps30: cleaning interval payload too short")
	// ErrVersionTooShort is returned when a read-version response is
	// shorter than the fixed version record.
	ErrVersionTooShort = errors.New("sps30: version payload too short")
	// ErrInvalidUTF8 is returned when the serial number is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("sps30: serial number is not valid UTF-8")
)

// ReadError wraps a failure of the underlying transport while reading.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "sps30: serial read: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a failure of the underlying transport while writing.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "sps30: serial write: " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// CommandMismatchError reports a response frame that echoes a different
// command than the request it should answer.
type CommandMismatchError struct {
	Expected Command
	Got      Command
}

func (e *CommandMismatchError) Error() string {
	return fmt.Sprintf("sps30: response is for command %#02x, expected %#02x",
		byte(e.Got), byte(e.Expected))
}

// Is lets callers match a command mismatch with errors.Is(err,
// ErrInvalidResponse) without caring about the diagnostic payload.
func (e *CommandMismatchError) Is(target error) bool { return target == ErrInvalidResponse }
