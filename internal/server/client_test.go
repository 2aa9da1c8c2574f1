//go:build linux

package server

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (a, b int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})

	return fds[0], fds[1]
}

func TestClientReadNotReadyThenData(t *testing.T) {
	a, b := socketPair(t)

	c := NewClient(nil, a)

	outcome, data, err := c.Read(4)
	require.NoError(t, err)
	require.Equal(t, NotReady, outcome)
	require.Nil(t, data)

	_, err = unix.Write(b, []byte{1, 2})
	require.NoError(t, err)

	outcome, data, err = c.Read(4)
	require.NoError(t, err)
	require.Equal(t, NotReady, outcome)
	require.Nil(t, data)

	_, err = unix.Write(b, []byte{3, 4})
	require.NoError(t, err)

	outcome, data, err = c.Read(4)
	require.NoError(t, err)
	require.Equal(t, Data, outcome)
	require.Equal(t, []byte{1, 2, 3, 4}, data)
}

func TestClientReadHangupOnClose(t *testing.T) {
	a, b := socketPair(t)

	c := NewClient(nil, a)

	require.NoError(t, unix.Close(b))

	outcome, _, err := c.Read(4)
	require.NoError(t, err)
	require.Equal(t, Hangup, outcome)
}

func TestClientWriteRoundTrip(t *testing.T) {
	a, b := socketPair(t)

	c := NewClient(nil, a)

	require.NoError(t, c.Write([]byte("hello")))

	buf := make([]byte, 5)
	n, err := unix.Read(b, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestClientDiscardDrainsToNotReady(t *testing.T) {
	a, b := socketPair(t)

	c := NewClient(nil, a)

	outcome, err := c.Discard()
	require.NoError(t, err)
	require.Equal(t, NotReady, outcome)

	_, err = unix.Write(b, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	outcome, err = c.Discard()
	require.NoError(t, err)
	require.Equal(t, NotReady, outcome)
}

func TestClientDiscardReportsHangup(t *testing.T) {
	a, b := socketPair(t)

	c := NewClient(nil, a)

	require.NoError(t, unix.Close(b))

	outcome, err := c.Discard()
	require.NoError(t, err)
	require.Equal(t, Hangup, outcome)
}

func TestClientReadyDefaultsFalse(t *testing.T) {
	a, _ := socketPair(t)

	c := NewClient(nil, a)
	require.False(t, c.Ready())

	c.SetReady()
	require.True(t, c.Ready())
}
