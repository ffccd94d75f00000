// Package sps30 drives a Sensirion SPS30 particulate matter sensor over its
// SHDLC serial interface. It owns the byte transport, frames requests and
// extracts and validates responses from the unframed, possibly noisy byte
// stream the sensor side produces.
package sps30

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/pmwatch/sps30d/shdlc"
)

// readChunkSize must be larger than any buffering the transport does, so a
// single Read can surface everything a lagging consumer missed.
const readChunkSize = 512

// Device is the protocol engine for a single SPS30 attached via serial port
// or a serial-over-TCP bridge. One request is in flight at a time; commands
// block until their response arrived or failed.
type Device struct {
	conn         io.ReadWriteCloser
	rlock, wlock sync.Mutex

	// cmdLock serializes whole request/response exchanges
	cmdLock sync.Mutex

	connected bool
}

// NewDevice wraps an already connected transport. Most callers want Connect
// instead; NewDevice exists for custom transports and tests.
func NewDevice(conn io.ReadWriteCloser) *Device {
	return &Device{conn: conn, connected: true}
}

// Connect attaches to the sensor via serial device or a tcp socket.
// Use socket://[host]:[port] or tcp://[host]:[port] for TCP, a plain device
// path for direct serial. The serial settings are the ones the sensor
// requires: 115200 baud, 8 data bits, no parity, 1 stop bit.
func (o *Device) Connect(link string) error {
	o.rlock.Lock()
	o.wlock.Lock()
	defer o.rlock.Unlock()
	defer o.wlock.Unlock()

	u, err := url.Parse(link)
	if err != nil {
		o.connected = false
		return err
	}

	if (u.Scheme == "socket") || (u.Scheme == "tcp") {
		// Connect via network
		o.conn, err = net.Dial("tcp", u.Host)
		if err != nil {
			return err
		}
		o.conn.(*net.TCPConn).SetKeepAlive(true)
		o.conn.(*net.TCPConn).SetKeepAlivePeriod(30 * time.Second)
	} else if (u.Scheme == "file") || (u.Scheme == "") {
		// Connect via serial
		o.conn, err = serial.OpenPort(&serial.Config{Name: u.Path, Baud: 115200, Size: 8, Parity: serial.ParityNone, StopBits: serial.Stop1})
		if err != nil {
			return err
		}
	} else {
		o.connected = false
		return fmt.Errorf("can not find a valid connection string in %q", link)
	}
	o.connected = true

	return nil
}

// Close closes the Device, closing the underlying serial or network
// connection.
func (o *Device) Close() error {
	o.rlock.Lock()
	o.wlock.Lock()
	defer o.rlock.Unlock()
	defer o.wlock.Unlock()

	if !o.connected {
		return io.ErrClosedPipe
	}
	o.connected = false
	return o.conn.Close()
}

func (o *Device) Read(b []byte) (int, error) {
	o.rlock.Lock()
	defer o.rlock.Unlock()

	if !o.connected {
		return 0, io.EOF
	}
	n, err := o.conn.Read(b)
	log.Debugf("read b='%# x', n=%v, err=%v", b[0:n], n, err)
	return n, err
}

func (o *Device) Write(b []byte) (int, error) {
	o.wlock.Lock()
	defer o.wlock.Unlock()

	if !o.connected {
		return 0, io.EOF
	}
	n, err := o.conn.Write(b)
	log.Debugf("write b='%# x', n=%v, err=%v", b, n, err)
	return n, err
}

// encodeAndSend builds the request body for cmd, frames it and writes it out.
func (o *Device) encodeAndSend(cmd Command, data []byte) error {
	req, err := buildRequest(cmd, data)
	if err != nil {
		return err
	}
	out, err := shdlc.Encode(req, maxEncodedFrameSize)
	if err != nil {
		return err
	}
	if _, err := o.Write(out); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

// receiveAndDecode reads the latest available frame and unstuffs it. The
// result still carries header, state and checksum bytes; validation is the
// caller's job.
func (o *Device) receiveAndDecode() ([]byte, error) {
	frame, err := readFrame(o, readChunkSize, maxEncodedFrameSize)
	if err != nil {
		return nil, err
	}
	return shdlc.Decode(frame, maxDecodedFrameSize)
}

// exchange performs one half-duplex request/response round trip and returns
// the decoded, not yet validated response body.
func (o *Device) exchange(cmd Command, data []byte) ([]byte, error) {
	o.cmdLock.Lock()
	defer o.cmdLock.Unlock()

	if err := o.encodeAndSend(cmd, data); err != nil {
		return nil, err
	}
	return o.receiveAndDecode()
}
