//go:build linux

package reactor_test

import (
	"os"
	"testing"

	"github.com/hidpipe/hidpipe/internal/reactor"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestWaitReportsReadyFd(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	readFile, writeFile, err := os.Pipe()
	require.NoError(t, err)
	defer readFile.Close()
	defer writeFile.Close()

	readFD := int(readFile.Fd())

	require.NoError(t, r.Add(readFD, unix.EPOLLIN))

	_, err = writeFile.Write([]byte("x"))
	require.NoError(t, err)

	ev, err := r.Wait()
	require.NoError(t, err)
	require.Equal(t, int32(readFD), ev.Fd)
	require.NotZero(t, ev.Events&unix.EPOLLIN)

	require.NoError(t, r.Remove(readFD))
}
