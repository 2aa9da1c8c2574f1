//go:build linux

package evdev

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// readStruct reads one v-sized record with a raw read(2) on f's
// descriptor, so an empty non-blocking device reports unix.EAGAIN
// instead of parking on Go's runtime poller.
func readStruct(f *os.File, v any) error {
	buf := make([]byte, binary.Size(v))

	n, err := unix.Read(int(f.Fd()), buf)
	if err != nil {
		return err
	}

	if n != len(buf) {
		return io.ErrUnexpectedEOF
	}

	return binary.Read(bytes.NewReader(buf), binary.NativeEndian, v)
}
