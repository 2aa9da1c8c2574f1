//go:build linux

// Package uinputdev builds synthetic /dev/uinput devices on the guest
// from the capability description the server sends over the wire.
package uinputdev

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/hidpipe/hidpipe/linux/input"
	"github.com/hidpipe/hidpipe/linux/ioctl"
	"github.com/hidpipe/hidpipe/linux/uinput"
	"github.com/hidpipe/hidpipe/wire"
	"golang.org/x/sys/unix"
)

// Device is a synthetic input device created through /dev/uinput.
type Device struct {
	file *os.File
	fd   uintptr
}

// bitGroup pairs a capability bitmask with the UI_SET_*BIT ioctl that
// enables individual bits from it.
type bitGroup struct {
	bits []byte
	req  uint
}

// Build creates a synthetic device matching add's capabilities. The set
// order is load-bearing: every UI_SET_*BIT call must happen before
// UI_DEV_SETUP, and every UI_ABS_SETUP call must happen before
// UI_DEV_CREATE, or the kernel rejects the missing bits.
func Build(add wire.AddDevice, absInfos []wire.AbsoluteInfo) (*Device, error) {
	file, err := os.OpenFile("/dev/uinput", os.O_RDWR|os.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("uinputdev.Build: %w", err)
	}

	dev := &Device{file: file, fd: file.Fd()}

	err = dev.setup(add, absInfos)
	if err != nil {
		file.Close()

		return nil, err
	}

	return dev, nil
}

func (d *Device) setup(add wire.AddDevice, absInfos []wire.AbsoluteInfo) error {
	groups := []bitGroup{
		{add.EvBits[:], uinput.UI_SET_EVBIT},
		{add.KeyBits[:], uinput.UI_SET_KEYBIT},
		{add.RelBits[:], uinput.UI_SET_RELBIT},
		{add.AbsBits[:], uinput.UI_SET_ABSBIT},
		{add.MscBits[:], uinput.UI_SET_MSCBIT},
		{add.LedBits[:], uinput.UI_SET_LEDBIT},
		{add.SndBits[:], uinput.UI_SET_SNDBIT},
		{add.SwBits[:], uinput.UI_SET_SWBIT},
		{add.PropBits[:], uinput.UI_SET_PROPBIT},
	}

	for _, group := range groups {
		err := d.setBits(group)
		if err != nil {
			return err
		}
	}

	axisIdx := 0

	for axis := uint(0); axis < input.ABS_CNT; axis++ {
		if !input.TestBit(add.AbsBits[:], axis) {
			continue
		}

		if axisIdx >= len(absInfos) {
			return fmt.Errorf("uinputdev.setup: missing AbsoluteInfo for axis %d", axis)
		}

		err := d.absSetup(uint16(axis), absInfos[axisIdx])
		if err != nil {
			return err
		}

		axisIdx++
	}

	err := d.devSetup(add)
	if err != nil {
		return err
	}

	return ioctl.Do[byte](d.fd, uinput.UI_DEV_CREATE, nil)
}

func (d *Device) setBits(group bitGroup) error {
	for pos := uint(0); pos/8 < uint(len(group.bits)); pos++ {
		if !input.TestBit(group.bits, pos) {
			continue
		}

		// UI_SET_*BIT takes the code itself as the ioctl argument, not a
		// pointer to it.
		err := unix.IoctlSetInt(int(d.fd), group.req, int(pos))
		if err != nil {
			return fmt.Errorf("uinputdev.setBits: %w", err)
		}
	}

	return nil
}

func (d *Device) absSetup(code uint16, info wire.AbsoluteInfo) error {
	setup := uinput.AbsSetup{
		Code: code,
		AbsInfo: input.AbsInfo{
			Value:      info.Value,
			Minimum:    info.Minimum,
			Maximum:    info.Maximum,
			Fuzz:       info.Fuzz,
			Flat:       info.Flat,
			Resolution: info.Resolution,
		},
	}

	err := ioctl.Do(d.fd, uinput.UI_ABS_SETUP, &setup)
	if err != nil {
		return fmt.Errorf("uinputdev.absSetup: %w", err)
	}

	return nil
}

func (d *Device) devSetup(add wire.AddDevice) error {
	setup := uinput.Setup{
		ID:        add.InputID,
		FFEffects: add.FFEffects,
	}
	copy(setup.Name[:], add.Name[:])

	err := ioctl.Do(d.fd, uinput.UI_DEV_SETUP, &setup)
	if err != nil {
		return fmt.Errorf("uinputdev.devSetup: %w", err)
	}

	return nil
}

// Fd returns the synthetic device's file descriptor.
func (d *Device) Fd() uintptr {
	return d.fd
}

// WriteEvent injects a single kernel input_event into the synthetic
// device.
func (d *Device) WriteEvent(evt wire.InputEvent) error {
	raw := struct {
		Sec, Usec int64
		Type      uint16
		Code      uint16
		Value     int32
	}{
		Sec:   int64(evt.Sec),
		Usec:  int64(evt.Usec),
		Type:  evt.Type,
		Code:  evt.Code,
		Value: evt.Value,
	}

	return binary.Write(d.file, binary.NativeEndian, raw)
}

// Destroy tears down the synthetic device and closes its fd.
func (d *Device) Destroy() error {
	err := ioctl.Do[byte](d.fd, uinput.UI_DEV_DESTROY, nil)
	if err != nil {
		d.file.Close()

		return fmt.Errorf("uinputdev.Destroy: %w", err)
	}

	return d.file.Close()
}
