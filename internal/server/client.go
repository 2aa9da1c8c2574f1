//go:build linux

// Package server implements the host side of hidpipe: it discovers
// joystick-shaped evdev devices, accepts guest connections over a Unix
// socket, and forwards input events to whichever guests have completed
// the handshake.
package server

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ReadOutcome is the result of a single Client.Read call.
type ReadOutcome int

const (
	// NotReady means fewer than the requested bytes have arrived; the
	// caller should try again the next time the reactor reports this
	// client's fd as readable.
	NotReady ReadOutcome = iota

	// Data means exactly the requested number of bytes is available.
	Data

	// Hangup means the peer closed the connection, or the socket
	// errored in a way that should be treated the same way.
	Hangup
)

// Client wraps one accepted guest connection. Reads are driven by the
// reactor: each call to Read resumes filling whatever message is
// currently in flight rather than blocking for the rest of it, so one
// slow guest never stalls another.
type Client struct {
	conn   *net.UnixConn
	fd     int
	pend   []byte
	filled int
	ready  bool
}

// NewClient wraps an accepted connection. The raw fd is used for every
// read and write from here on; conn is kept only to release it
// properly on Close.
func NewClient(conn *net.UnixConn, fd int) *Client {
	return &Client{conn: conn, fd: fd}
}

// Fd returns the client's socket fd.
func (c *Client) Fd() int {
	return c.fd
}

// Ready reports whether this client has completed the hello handshake
// and should receive broadcast input events.
func (c *Client) Ready() bool {
	return c.ready
}

// SetReady marks the client as having completed the handshake.
func (c *Client) SetReady() {
	c.ready = true
}

// Read resumes reading a message of exactly size bytes. Calling it again
// with a different size while a read is in flight is a programming
// error: each logical message must be read to completion with a single
// size before starting the next one.
func (c *Client) Read(size int) (ReadOutcome, []byte, error) {
	if c.pend == nil {
		c.pend = make([]byte, size)
		c.filled = 0
	} else if len(c.pend) != size {
		panic("server: Client.Read size changed mid-message")
	}

	for c.filled < size {
		n, err := unix.Read(c.fd, c.pend[c.filled:])

		switch {
		case err == unix.EAGAIN:
			return NotReady, nil, nil
		case err != nil:
			return Hangup, nil, err
		case n == 0:
			return Hangup, nil, nil
		default:
			c.filled += n
		}
	}

	data := c.pend
	c.pend = nil
	c.filled = 0

	return Data, data, nil
}

// Discard reads and throws away whatever bytes are currently
// available. The protocol is strictly server-to-client once a client
// is ready, but a guest still echoes its synthetic devices' events
// back upstream; this drains them so the fd doesn't sit readable
// forever, without attempting to frame or interpret them.
func (c *Client) Discard() (ReadOutcome, error) {
	var buf [256]byte

	for {
		n, err := unix.Read(c.fd, buf[:])

		switch {
		case err == unix.EAGAIN:
			return NotReady, nil
		case err != nil:
			return Hangup, err
		case n == 0:
			return Hangup, nil
		}
	}
}

// Write sends data in full, retrying on EAGAIN. Messages in this
// protocol are small enough that a retry loop never meaningfully spins.
func (c *Client) Write(data []byte) error {
	written := 0

	for written < len(data) {
		n, err := unix.Write(c.fd, data[written:])

		switch {
		case err == unix.EAGAIN:
			continue
		case err != nil:
			return err
		default:
			written += n
		}
	}

	return nil
}

// Close closes the client's socket.
func (c *Client) Close() error {
	if c.conn != nil {
		err := c.conn.Close()
		if err != nil {
			return fmt.Errorf("Client.Close: %w", err)
		}

		return nil
	}

	return unix.Close(c.fd)
}
