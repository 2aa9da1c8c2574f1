//go:build linux

package server

import (
	"bytes"
	"testing"

	"github.com/hidpipe/hidpipe/internal/evdev"
	"github.com/hidpipe/hidpipe/internal/reactor"
	"github.com/hidpipe/hidpipe/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	r, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return &Server{
		log:      zaptest.NewLogger(t).Sugar(),
		reactor:  r,
		registry: evdev.NewRegistry(),
		clients:  make(map[int]*trackedClient),
	}
}

func TestHandleHelloEstablishesClientAndRepliesServerHello(t *testing.T) {
	s := testServer(t)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	t.Cleanup(func() { unix.Close(fds[1]) })

	tracked := &trackedClient{client: NewClient(nil, fds[0]), state: stateAwaitingHello}
	s.clients[fds[0]] = tracked

	var buf bytes.Buffer
	require.NoError(t, wire.WriteClientHello(&buf, wire.ClientHello{Version: wire.ProtocolVersion}))

	_, err = unix.Write(fds[1], buf.Bytes())
	require.NoError(t, err)

	s.handleHello(fds[0], tracked)
	require.Equal(t, stateEstablished, tracked.state)
	require.True(t, tracked.client.Ready())

	reply := make([]byte, wire.ServerHelloSize)
	n, err := unix.Read(fds[1], reply)
	require.NoError(t, err)
	require.Equal(t, wire.ServerHelloSize, n)

	hello, err := wire.ReadServerHello(bytes.NewReader(reply))
	require.NoError(t, err)
	require.Equal(t, wire.ProtocolVersion, hello.Version)
}

func TestHandleHelloRejectsBadVersion(t *testing.T) {
	s := testServer(t)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	t.Cleanup(func() { unix.Close(fds[1]) })

	tracked := &trackedClient{client: NewClient(nil, fds[0]), state: stateAwaitingHello}
	s.clients[fds[0]] = tracked

	var buf bytes.Buffer
	require.NoError(t, wire.WriteClientHello(&buf, wire.ClientHello{Version: wire.ProtocolVersion + 1}))

	_, err = unix.Write(fds[1], buf.Bytes())
	require.NoError(t, err)

	s.handleHello(fds[0], tracked)

	_, stillPresent := s.clients[fds[0]]
	require.False(t, stillPresent)
}

func TestBroadcastAllReachesUnestablishedClient(t *testing.T) {
	s := testServer(t)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	t.Cleanup(func() { unix.Close(fds[1]) })

	tracked := &trackedClient{client: NewClient(nil, fds[0]), state: stateAwaitingHello}
	s.clients[fds[0]] = tracked

	s.broadcastAll(func(c *Client) error {
		return wire.WriteRemoveDevice(&clientWriter{c}, wire.RemoveDevice{ID: 7})
	})

	buf := make([]byte, wire.TagSize+wire.RemoveDeviceSize)
	n, err := unix.Read(fds[1], buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	_, stillPresent := s.clients[fds[0]]
	require.True(t, stillPresent)
}

func TestBroadcastSkipsUnestablishedClient(t *testing.T) {
	s := testServer(t)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	t.Cleanup(func() { unix.Close(fds[1]) })

	tracked := &trackedClient{client: NewClient(nil, fds[0]), state: stateAwaitingHello}
	s.clients[fds[0]] = tracked

	s.broadcast(func(c *Client) error {
		return wire.WriteInputEvent(&clientWriter{c}, wire.InputEvent{ID: 1})
	})

	buf := make([]byte, 1)
	_, err = unix.Read(fds[1], buf)
	require.ErrorIs(t, err, unix.EAGAIN)
}

func TestBroadcastDropsClientOnWriteFailure(t *testing.T) {
	s := testServer(t)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	require.NoError(t, unix.Close(fds[1]))

	tracked := &trackedClient{client: NewClient(nil, fds[0]), state: stateEstablished}
	s.clients[fds[0]] = tracked

	s.broadcast(func(c *Client) error {
		return wire.WriteRemoveDevice(&clientWriter{c}, wire.RemoveDevice{ID: 1})
	})

	_, stillPresent := s.clients[fds[0]]
	require.False(t, stillPresent)
}
