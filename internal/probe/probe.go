//go:build linux

// Package probe classifies evdev devices as joysticks, the subset of
// input hardware hidpipe forwards to the guest. Keyboards, mice and
// touchpads are left for the host to handle directly.
package probe

import "github.com/hidpipe/hidpipe/linux/input"

// Capabilities is the slice of evdev queries the classifier needs. It is
// satisfied by *evdev.Handle; the interface exists so probe can be
// tested without opening a real device node.
type Capabilities interface {
	Properties() ([]byte, error)
	EventBits() ([]byte, error)
	CodeBits(eventType uint16) ([]byte, error)
}

// properties that rule a device out even if it otherwise looks like a
// joystick: touchpads and pointing sticks set these.
var excludedProperties = []uint{
	input.INPUT_PROP_ACCELEROMETER,
	input.INPUT_PROP_POINTING_STICK,
	input.INPUT_PROP_TOPBUTTONPAD,
	input.INPUT_PROP_BUTTONPAD,
	input.INPUT_PROP_SEMI_MT,
}

// key codes that, combined with an X/Y pair, indicate the device is
// actually manipulated as a joystick rather than, say, a tablet with
// absolute positioning.
var joystickKeyCodes = []uint{
	input.BTN_TRIGGER,
	input.BTN_SOUTH,
	input.BTN_1,
}

// axis codes that, combined with an X/Y pair, indicate the same. These
// numerically alias some of the EV_KEY range (ABS_RX == KEY_2, and so
// on), so they must only ever be tested against the absolute bitmask.
var joystickAxisCodes = []uint{
	input.ABS_RX,
	input.ABS_RY,
	input.ABS_THROTTLE,
	input.ABS_RUDDER,
	input.ABS_WHEEL,
	input.ABS_GAS,
	input.ABS_BRAKE,
}

// IsJoystick decides whether dev should be forwarded to the guest. The
// checks run in order and short-circuit on the first that disqualifies
// the device:
//
//  1. Any of excludedProperties set -> not a joystick.
//  2. EV_ABS not supported -> not a joystick.
//  3. ABS_X and ABS_Y not both supported -> not a joystick.
//  4. None of joystickKeyCodes set in the key bitmask and none of
//     joystickAxisCodes set in the absolute bitmask -> not a joystick.
func IsJoystick(dev Capabilities) (bool, error) {
	props, err := dev.Properties()
	if err != nil {
		return false, err
	}

	for _, prop := range excludedProperties {
		if input.TestBit(props, prop) {
			return false, nil
		}
	}

	evBits, err := dev.EventBits()
	if err != nil {
		return false, err
	}

	if !input.TestBit(evBits, input.EV_ABS) {
		return false, nil
	}

	absBits, err := dev.CodeBits(input.EV_ABS)
	if err != nil {
		return false, err
	}

	if !input.TestBit(absBits, input.ABS_X) || !input.TestBit(absBits, input.ABS_Y) {
		return false, nil
	}

	var keyBits []byte

	if input.TestBit(evBits, input.EV_KEY) {
		keyBits, err = dev.CodeBits(input.EV_KEY)
		if err != nil {
			return false, err
		}
	}

	for _, code := range joystickKeyCodes {
		if hasBit(keyBits, code) {
			return true, nil
		}
	}

	for _, code := range joystickAxisCodes {
		if hasBit(absBits, code) {
			return true, nil
		}
	}

	return false, nil
}

func hasBit(mask []byte, pos uint) bool {
	if mask == nil || pos/8 >= uint(len(mask)) {
		return false
	}

	return input.TestBit(mask, pos)
}
