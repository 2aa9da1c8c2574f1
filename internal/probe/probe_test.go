//go:build linux

package probe_test

import (
	"testing"

	"github.com/hidpipe/hidpipe/internal/probe"
	"github.com/hidpipe/hidpipe/linux/input"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	props  []byte
	evBits []byte
	codes  map[uint16][]byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		props:  make([]byte, input.PropBytes),
		evBits: make([]byte, input.EvBytes),
		codes:  make(map[uint16][]byte),
	}
}

func (f *fakeDevice) Properties() ([]byte, error) { return f.props, nil }
func (f *fakeDevice) EventBits() ([]byte, error)  { return f.evBits, nil }

func (f *fakeDevice) CodeBits(eventType uint16) ([]byte, error) {
	return f.codes[eventType], nil
}

func gamepad() *fakeDevice {
	dev := newFakeDevice()
	input.SetBit(dev.evBits, input.EV_ABS)
	input.SetBit(dev.evBits, input.EV_KEY)

	absBits := make([]byte, input.AbsBytes)
	input.SetBit(absBits, input.ABS_X)
	input.SetBit(absBits, input.ABS_Y)
	dev.codes[input.EV_ABS] = absBits

	keyBits := make([]byte, input.KeyBytes)
	input.SetBit(keyBits, input.BTN_SOUTH)
	dev.codes[input.EV_KEY] = keyBits

	return dev
}

func TestIsJoystickAcceptsGamepad(t *testing.T) {
	ok, err := probe.IsJoystick(gamepad())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsJoystickRejectsExcludedProperty(t *testing.T) {
	dev := gamepad()
	input.SetBit(dev.props, input.INPUT_PROP_POINTING_STICK)

	ok, err := probe.IsJoystick(dev)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsJoystickRejectsWithoutAbsolute(t *testing.T) {
	dev := newFakeDevice()
	input.SetBit(dev.evBits, input.EV_KEY)

	ok, err := probe.IsJoystick(dev)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsJoystickRejectsWithoutXY(t *testing.T) {
	dev := newFakeDevice()
	input.SetBit(dev.evBits, input.EV_ABS)

	absBits := make([]byte, input.AbsBytes)
	input.SetBit(absBits, input.ABS_X)
	dev.codes[input.EV_ABS] = absBits

	ok, err := probe.IsJoystick(dev)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsJoystickRejectsPlainTablet(t *testing.T) {
	dev := newFakeDevice()
	input.SetBit(dev.evBits, input.EV_ABS)

	absBits := make([]byte, input.AbsBytes)
	input.SetBit(absBits, input.ABS_X)
	input.SetBit(absBits, input.ABS_Y)
	dev.codes[input.EV_ABS] = absBits

	ok, err := probe.IsJoystick(dev)
	require.NoError(t, err)
	require.False(t, ok)
}

// ABS_RX numerically aliases KEY_2, so a tablet with ordinary numeric
// buttons and no real axis controls must not be misread as having
// ABS_RX set just because KEY_2 is.
func TestIsJoystickRejectsTabletWithAliasingKeyCode(t *testing.T) {
	dev := newFakeDevice()
	input.SetBit(dev.evBits, input.EV_ABS)
	input.SetBit(dev.evBits, input.EV_KEY)

	absBits := make([]byte, input.AbsBytes)
	input.SetBit(absBits, input.ABS_X)
	input.SetBit(absBits, input.ABS_Y)
	dev.codes[input.EV_ABS] = absBits

	keyBits := make([]byte, input.KeyBytes)
	input.SetBit(keyBits, input.KEY_2)
	dev.codes[input.EV_KEY] = keyBits

	ok, err := probe.IsJoystick(dev)
	require.NoError(t, err)
	require.False(t, ok)
}
