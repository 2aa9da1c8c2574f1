//go:build linux

// Package uinput implements the userspace api in uinput.h in the Linux
// kernel: the ioctls and structures used to create synthetic input
// devices through /dev/uinput.
package uinput

import (
	"github.com/hidpipe/hidpipe/linux/input"
	"github.com/hidpipe/hidpipe/linux/ioctl"
)

// MaxNameSize is the fixed size of the name field in Setup, matching
// UINPUT_MAX_NAME_SIZE.
const MaxNameSize = 80

// Setup mirrors struct uinput_setup, the argument to UI_DEV_SETUP.
type Setup struct {
	ID        input.ID
	Name      [MaxNameSize]byte
	FFEffects uint32
}

// AbsSetup mirrors struct uinput_abs_setup, the argument to UI_ABS_SETUP.
// Code selects the ABS_* axis; AbsInfo carries its calibration.
type AbsSetup struct {
	Code    uint16
	AbsInfo input.AbsInfo
}

var (
	// UI_DEV_CREATE instructs the kernel to instantiate the device that
	// was described by the preceding UI_DEV_SETUP/UI_SET_*BIT/UI_ABS_SETUP
	// calls.
	UI_DEV_CREATE = ioctl.IO('U', 1)

	// UI_DEV_DESTROY tears down a previously created uinput device.
	UI_DEV_DESTROY = ioctl.IO('U', 2)

	// UI_DEV_SETUP writes the device identity and name, in the form of a
	// Setup value.
	UI_DEV_SETUP = ioctl.IOW('U', 3, Setup{})

	// UI_ABS_SETUP writes the calibration for a single absolute axis, in
	// the form of an AbsSetup value.
	UI_ABS_SETUP = ioctl.IOW('U', 4, AbsSetup{})

	// UI_SET_EVBIT enables an EV_* event type on the device being built.
	UI_SET_EVBIT = ioctl.IOW('U', 100, int32(0))

	// UI_SET_KEYBIT enables a KEY_*/BTN_* code.
	UI_SET_KEYBIT = ioctl.IOW('U', 101, int32(0))

	// UI_SET_RELBIT enables a REL_* code.
	UI_SET_RELBIT = ioctl.IOW('U', 102, int32(0))

	// UI_SET_ABSBIT enables an ABS_* code.
	UI_SET_ABSBIT = ioctl.IOW('U', 103, int32(0))

	// UI_SET_MSCBIT enables an MSC_* code.
	UI_SET_MSCBIT = ioctl.IOW('U', 104, int32(0))

	// UI_SET_LEDBIT enables a LED_* code.
	UI_SET_LEDBIT = ioctl.IOW('U', 105, int32(0))

	// UI_SET_SNDBIT enables a SND_* code.
	UI_SET_SNDBIT = ioctl.IOW('U', 106, int32(0))

	// UI_SET_FFBIT enables an FF_* effect type.
	UI_SET_FFBIT = ioctl.IOW('U', 107, int32(0))

	// UI_SET_SWBIT enables a SW_* code.
	UI_SET_SWBIT = ioctl.IOW('U', 109, int32(0))

	// UI_SET_PROPBIT enables an INPUT_PROP_* flag.
	UI_SET_PROPBIT = ioctl.IOW('U', 110, int32(0))
)
