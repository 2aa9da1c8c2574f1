//go:build linux

// Package client implements the guest side of hidpipe: it dials the
// host over vsock, recreates every announced device with uinput, and
// replays forwarded input events onto the matching synthetic device.
package client

import "golang.org/x/sys/unix"

// readOutcome mirrors the server's partial-read state machine: a guest
// connection can just as easily see a short read as a host-side client
// can, so the fd is kept non-blocking and driven by the reactor here
// too.
type readOutcome int

const (
	notReady readOutcome = iota
	dataReady
	hangup
)

type framer struct {
	fd     int
	pend   []byte
	filled int
}

func newFramer(fd int) *framer {
	return &framer{fd: fd}
}

func (f *framer) read(size int) (readOutcome, []byte, error) {
	if f.pend == nil {
		f.pend = make([]byte, size)
		f.filled = 0
	} else if len(f.pend) != size {
		panic("client: framer.read size changed mid-message")
	}

	for f.filled < size {
		n, err := unix.Read(f.fd, f.pend[f.filled:])

		switch {
		case err == unix.EAGAIN:
			return notReady, nil, nil
		case err != nil:
			return hangup, nil, err
		case n == 0:
			return hangup, nil, nil
		default:
			f.filled += n
		}
	}

	data := f.pend
	f.pend = nil
	f.filled = 0

	return dataReady, data, nil
}

func (f *framer) write(data []byte) error {
	written := 0

	for written < len(data) {
		n, err := unix.Write(f.fd, data[written:])

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
