// Package shdlc implements the byte-stuffing framing layer of Sensirion's
// SHDLC serial protocol. A frame is an arbitrary payload bounded by
// FrameBoundary bytes on both sides; reserved byte values inside the payload
// are stuffed as two-byte escape sequences so that a raw FrameBoundary byte
// can only ever mean start or end of frame.
package shdlc

import "errors"

const (
	// FrameBoundary delimits the start and the end of every frame on the wire.
	FrameBoundary byte = 0x7e
	// escapeMarker signals that the next byte is a stuffed replacement.
	escapeMarker byte = 0x7d

	// MinFrameSize is the smallest span of a valid frame, both boundary
	// bytes included.
	MinFrameSize = 6
)

var (
	// ErrTooMuchData is returned when en- or decoding would exceed the
	// caller-provided capacity.
	ErrTooMuchData = errors.New("shdlc: data exceeds buffer capacity")
	// ErrTooFewData is returned for inputs too short to be a frame.
	ErrTooFewData = errors.New("shdlc: too few bytes for a frame")
	// ErrMissingFirstBoundary is returned when a frame does not start with
	// the boundary marker.
	ErrMissingFirstBoundary = errors.New("shdlc: missing boundary marker at frame start")
	// ErrMissingFinalBoundary is returned when a frame does not end with
	// the boundary marker.
	ErrMissingFinalBoundary = errors.New("shdlc: missing boundary marker at frame end")
	// ErrDanglingEscape is returned when an escape marker is the last byte
	// of the frame body.
	ErrDanglingEscape = errors.New("shdlc: escape marker without trailing replacement byte")
	// ErrUnescapedMarker is returned when an escape marker is followed by a
	// byte that is not a known replacement.
	ErrUnescapedMarker = errors.New("shdlc: reserved byte unescaped in frame data")
)

// escaped maps each reserved byte to its stuffed replacement. Besides the
// boundary and escape markers, 0x11 and 0x13 are reserved because the sensor
// uses them in its wake-up pulse handling.
var escaped = [4][2]byte{
	{0x7d, 0x5d},
	{0x7e, 0x5e},
	{0x11, 0x31},
	{0x13, 0x33},
}

// replacement returns the stuffed form of b if b is a reserved byte.
func replacement(b byte) (byte, bool) {
	for _, e := range escaped {
		if e[0] == b {
			return e[1], true
		}
	}
	return 0, false
}

// original returns the reserved byte whose stuffed form is b.
func original(b byte) (byte, bool) {
	for _, e := range escaped {
		if e[1] == b {
			return e[0], true
		}
	}
	return 0, false
}

// Encode stuffs data into a boundary-delimited frame of at most capacity
// bytes. The capacity check assumes the worst case of every payload byte
// needing an escape sequence, so Encode fails before writing anything.
func Encode(data []byte, capacity int) ([]byte, error) {
	// -2 for the boundary bytes at start and end
	if len(data) > capacity/2-2 {
		return nil, ErrTooMuchData
	}

	out := make([]byte, 0, capacity)
	out = append(out, FrameBoundary)
	for _, b := range data {
		if r, ok := replacement(b); ok {
			out = append(out, escapeMarker, r)
			continue
		}
		out = append(out, b)
	}
	out = append(out, FrameBoundary)

	return out, nil
}

// Decode unstuffs a boundary-delimited frame back into its payload. The
// payload must fit capacity bytes.
func Decode(frame []byte, capacity int) ([]byte, error) {
	if len(frame) < 4 {
		return nil, ErrTooFewData
	}
	if frame[0] != FrameBoundary {
		return nil, ErrMissingFirstBoundary
	}
	if frame[len(frame)-1] != FrameBoundary {
		return nil, ErrMissingFinalBoundary
	}

	body := frame[1 : len(frame)-1]
	out := make([]byte, 0, capacity)
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b == escapeMarker {
			i++
			if i == len(body) {
				return nil, ErrDanglingEscape
			}
			org, ok := original(body[i])
			if !ok {
				return nil, ErrUnescapedMarker
			}
			b = org
		}
		if len(out) == capacity {
			return nil, ErrTooMuchData
		}
		out = append(out, b)
	}

	return out, nil
}
