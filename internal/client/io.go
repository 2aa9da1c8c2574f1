//go:build linux

package client

import (
	"encoding/binary"
	"io"

	"github.com/hidpipe/hidpipe/wire"
)

// byteReader adapts an already fully-read byte slice to io.Reader so
// the decoders below can run against a buffer the framer already
// assembled, without risking a blocking or EAGAIN-returning read
// reaching encoding/binary.
type byteReader struct {
	b []byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}

	n := copy(p, r.b)
	r.b = r.b[n:]

	return n, nil
}

var order = binary.NativeEndian

func decodeAddDevice(data []byte) (wire.AddDevice, error) {
	var dev wire.AddDevice

	err := binary.Read(&byteReader{data}, order, &dev)

	return dev, err
}

func decodeAbsoluteInfo(data []byte) (wire.AbsoluteInfo, error) {
	var info wire.AbsoluteInfo

	err := binary.Read(&byteReader{data}, order, &info)

	return info, err
}

func decodeRemoveDevice(data []byte) (wire.RemoveDevice, error) {
	var rm wire.RemoveDevice

	err := binary.Read(&byteReader{data}, order, &rm)

	return rm, err
}

func decodeInputEvent(data []byte) (wire.InputEvent, error) {
	var evt wire.InputEvent

	err := binary.Read(&byteReader{data}, order, &evt)

	return evt, err
}

// kernelEventSize is the byte size of a raw kernel input_event record
// as written back to a /dev/uinput fd: two 64-bit timestamps, a type, a
// code, and a value. It carries no device id, unlike wire.InputEvent;
// the id is stamped in by whoever reads it off the fd.
const kernelEventSize = 8 + 8 + 2 + 2 + 4

type kernelEvent struct {
	Sec, Usec  uint64
	Type, Code uint16
	Value      int32
}

func decodeKernelEvent(data []byte) (kernelEvent, error) {
	var evt kernelEvent

	err := binary.Read(&byteReader{data}, order, &evt)

	return evt, err
}
