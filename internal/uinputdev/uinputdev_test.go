//go:build linux

package uinputdev

import (
	"os"
	"testing"

	"github.com/hidpipe/hidpipe/wire"
	"github.com/stretchr/testify/require"
)

func TestWriteEventEncodesKernelLayout(t *testing.T) {
	readFile, writeFile, err := os.Pipe()
	require.NoError(t, err)
	defer readFile.Close()
	defer writeFile.Close()

	dev := &Device{file: writeFile, fd: writeFile.Fd()}

	require.NoError(t, dev.WriteEvent(wire.InputEvent{Sec: 1, Usec: 2, Type: 3, Code: 4, Value: -5}))

	buf := make([]byte, 24)
	n, err := readFile.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 24, n)
}
