//go:build linux

package netlink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	raw := "add@/devices/virtual/input/input7\x00ACTION=add\x00DEVPATH=/devices/virtual/input/input7\x00SUBSYSTEM=input\x00DEVNAME=input/event7\x00"

	event, err := parseEvent([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, "add", event.Action)
	require.Equal(t, "/devices/virtual/input/input7", event.DevPath)
	require.Equal(t, "input", event.Subsystem)
	require.Equal(t, "input/event7", event.Properties["DEVNAME"])
}

func TestParseEventRejectsMalformedHeader(t *testing.T) {
	_, err := parseEvent([]byte("not-a-valid-header\x00"))
	require.Error(t, err)
}

func TestParseEventRejectsEmpty(t *testing.T) {
	_, err := parseEvent([]byte{})
	require.Error(t, err)
}
