package sps30

import (
	"bytes"
	"errors"
	"io"

	"github.com/pmwatch/sps30d/shdlc"
)

// Buffer sizing for the largest frame the driver exchanges, the 40 byte
// measurement response: 5 header/footer bytes plus the data, doubled for the
// worst case where every byte is stuffed.
const (
	maxDecodedFrameSize = 10*4 + 5 + 2
	maxEncodedFrameSize = 2 * maxDecodedFrameSize
)

// readFrame extracts the most recently started, structurally complete frame
// from r. The byte source may split frames across reads and may carry noise
// or stale data; readFrame resynchronizes on boundary markers and always
// prefers the newest frame: a candidate followed by further bytes in the
// same read has already been superseded and is dropped.
//
// Chunks of up to chunkSize bytes are read at a time; an assembled frame
// must fit frameCap bytes. All state is local to the call, so abandoning it
// at any read leaves nothing to clean up.
func readFrame(r io.Reader, chunkSize, frameCap int) ([]byte, error) {
	frame := make([]byte, 0, frameCap)
	buf := make([]byte, chunkSize)

	for {
		frame = frame[:0]

		// Read until a chunk contains at least one boundary marker,
		// discarding marker-free noise.
		var read []byte
		var lastMarker int
		for {
			n, err := readChunk(r, buf)
			if err != nil {
				return nil, err
			}
			read = buf[:n]
			if i := bytes.LastIndexByte(read, shdlc.FrameBoundary); i >= 0 {
				lastMarker = i
				break
			}
		}

		beforeLast := bytes.LastIndexByte(read[:lastMarker], shdlc.FrameBoundary)
		if beforeLast >= 0 && lastMarker-beforeLast >= shdlc.MinFrameSize {
			if lastMarker == len(read)-1 {
				// Complete frame at the very end of the chunk.
				return appendBounded(frame, read[beforeLast:lastMarker+1], frameCap)
			}
			// Bytes follow the complete frame: a newer one has
			// already started arriving, drop this candidate.
			continue
		}

		// No usable earlier marker: treat the last marker as the start
		// of a new candidate and collect until its closing marker.
		cand, err := appendBounded(frame, read[lastMarker:], frameCap)
		if err != nil {
			return nil, err
		}
		cand, done, err := findEnd(r, cand, buf, frameCap)
		if err != nil {
			return nil, err
		}
		if done {
			return cand, nil
		}
	}
}

// findEnd reads chunks onto the candidate frame until its closing boundary
// marker arrives. It reports done=false when the closing marker is followed
// by further bytes in the same read, meaning a newer frame has started and
// the candidate is stale.
func findEnd(r io.Reader, frame []byte, buf []byte, frameCap int) ([]byte, bool, error) {
	for {
		n, err := readChunk(r, buf)
		if err != nil {
			return frame, false, err
		}
		body := buf[:n]

		if i := bytes.IndexByte(body, shdlc.FrameBoundary); i >= 0 && i != len(body)-1 {
			return frame, false, nil
		}

		frame, err = appendBounded(frame, body, frameCap)
		if err != nil {
			return frame, false, err
		}
		if body[len(body)-1] == shdlc.FrameBoundary {
			return frame, true, nil
		}
	}
}

// readChunk performs one transport read. A zero-length read means the byte
// source is gone and is surfaced as ErrEOF.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return 0, ErrEOF
		}
		return 0, &ReadError{Err: err}
	}
	return n, nil
}

func appendBounded(dst, src []byte, max int) ([]byte, error) {
	if len(dst)+len(src) > max {
		return nil, ErrFrameTooLarge
	}
	return append(dst, src...), nil
}
