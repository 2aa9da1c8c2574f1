//go:build linux

package client

import (
	"testing"

	"github.com/hidpipe/hidpipe/internal/reactor"
	"github.com/hidpipe/hidpipe/internal/uinputdev"
	"github.com/hidpipe/hidpipe/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
)

func testClient(t *testing.T) (*Client, int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	t.Cleanup(func() {
		unix.Close(fds[1])
	})

	r, err := reactor.New()
	require.NoError(t, err)

	t.Cleanup(func() { r.Close() })

	c := &Client{
		log:         zaptest.NewLogger(t).Sugar(),
		reactor:     r,
		upstream:    newFramer(fds[0]),
		fd:          fds[0],
		devicesByID: make(map[uint64]*uinputdev.Device),
		fdToID:      make(map[int]uint64),
	}

	return c, fds[1]
}

func TestPumpUpstreamRemoveDeviceAcrossPartialWrites(t *testing.T) {
	c, peer := testClient(t)

	var buf []byte

	w := newByteWriter(&buf)
	require.NoError(t, wire.WriteRemoveDevice(w, wire.RemoveDevice{ID: 42}))

	_, err := unix.Write(peer, buf[:wire.TagSize])
	require.NoError(t, err)
	require.NoError(t, c.pumpUpstream())
	require.Equal(t, stagePayload, c.stage)

	_, err = unix.Write(peer, buf[wire.TagSize:])
	require.NoError(t, err)
	require.NoError(t, c.pumpUpstream())
	require.Equal(t, stageTag, c.stage)
}

func TestPumpUpstreamInputEventSkipsUnknownDevice(t *testing.T) {
	c, peer := testClient(t)

	var buf []byte

	w := newByteWriter(&buf)
	require.NoError(t, wire.WriteInputEvent(w, wire.InputEvent{ID: 7, Type: 1, Code: 2, Value: 3}))

	_, err := unix.Write(peer, buf)
	require.NoError(t, err)
	require.NoError(t, c.pumpUpstream())
	require.Equal(t, stageTag, c.stage)
}

// byteWriter is a minimal io.Writer backed by a growable slice, used to
// build wire messages for the socketpair fixtures above.
type byteWriter struct {
	buf *[]byte
}

func newByteWriter(buf *[]byte) *byteWriter {
	return &byteWriter{buf: buf}
}

func (w *byteWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)

	return len(p), nil
}
