//go:build linux

package evdev

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeHandle(fd int, sysname string) *Handle {
	return &Handle{fd: fd, sysname: sysname}
}

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()

	require.Nil(t, r.Add(fakeHandle(5, "event5")))
	require.Equal(t, 1, r.Len())

	h, ok := r.Get(5)
	require.True(t, ok)
	require.Equal(t, "event5", h.Sysname())

	removed, ok := r.Remove("event5")
	require.True(t, ok)
	require.Equal(t, 5, removed.Fd())
	require.Equal(t, 0, r.Len())

	_, ok = r.Get(5)
	require.False(t, ok)
}

func TestRegistryAddOverwritesDuplicateSysname(t *testing.T) {
	r := NewRegistry()

	require.Nil(t, r.Add(fakeHandle(5, "event5")))

	stale := r.Add(fakeHandle(6, "event5"))
	require.NotNil(t, stale)
	require.Equal(t, 5, stale.Fd())

	require.Equal(t, 1, r.Len())

	h, ok := r.Get(6)
	require.True(t, ok)
	require.Equal(t, "event5", h.Sysname())

	_, ok = r.Get(5)
	require.False(t, ok)
}

func TestRegistryRemoveUnknownSysname(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Remove("event9")
	require.False(t, ok)
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry()

	require.Nil(t, r.Add(fakeHandle(1, "event1")))
	require.Nil(t, r.Add(fakeHandle(2, "event2")))

	require.Len(t, r.All(), 2)
}
