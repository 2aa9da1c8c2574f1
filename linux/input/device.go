//go:build linux

package input

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hidpipe/hidpipe/linux/ioctl"
	"golang.org/x/sys/unix"
)

// Device represents an evdev input device opened from /dev/input/eventN.
type Device struct {
	file *os.File
	fd   uintptr
}

// Open opens the evdev device at the given path in read-write,
// non-blocking mode so its fd can be registered with epoll. The caller
// is responsible for calling Close when done.
func Open(path string) (*Device, error) {
	var (
		file *os.File
		err  error
	)

	file, err = os.OpenFile(filepath.Clean(path), os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("input.Open: %w", err)
	}

	return &Device{file: file, fd: file.Fd()}, nil
}

// Devices scans /dev/input for event devices and returns their paths.
func Devices() ([]string, error) {
	var (
		paths []string
		err   error
	)

	paths, err = filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("input.Devices: %w", err)
	}

	return paths, nil
}

// Fd returns the underlying file descriptor.
func (dev *Device) Fd() uintptr {
	return dev.fd
}

// File returns the underlying *os.File.
func (dev *Device) File() *os.File {
	return dev.file
}

// Name returns the human-readable name of the evdev device.
func (dev *Device) Name() (string, error) {
	var (
		buf [80]byte
		err error
	)

	err = ioctl.Do(dev.fd, EVIOCGNAME(uint(len(buf))), &buf[0])
	if err != nil {
		return "", fmt.Errorf("Device.Name: %w", err)
	}

	return unix.ByteSliceToString(buf[:]), nil
}

// NameBytes returns the device name truncated and NUL-padded to exactly
// n bytes, the layout the wire protocol's AddDevice record embeds.
func (dev *Device) NameBytes(n int) ([]byte, error) {
	var (
		name string
		out  []byte
		err  error
	)

	name, err = dev.Name()
	if err != nil {
		return nil, err
	}

	out = make([]byte, n)
	copy(out, name)

	return out, nil
}

// ID returns the device's bus type, vendor, product and version.
func (dev *Device) ID() (ID, error) {
	var (
		id  ID
		err error
	)

	err = ioctl.Do(dev.fd, EVIOCGID, &id)
	if err != nil {
		return ID{}, fmt.Errorf("Device.ID: %w", err)
	}

	return id, nil
}

// Properties returns the device's INPUT_PROP_* bitmask.
func (dev *Device) Properties(length int) ([]byte, error) {
	return dev.bits(EVIOCGPROP(uint(length)), length)
}

// EventBits returns the device's EV_* bitmask.
func (dev *Device) EventBits(length int) ([]byte, error) {
	return dev.bits(EVIOCGBIT(0, uint(length)), length)
}

// CodeBits returns the bitmask of supported codes for the given event
// type, sized to fit every code MaxCodes knows about for that type.
func (dev *Device) CodeBits(eventType uint16) ([]byte, error) {
	var (
		maxCodes uint
		length   int
		ok       bool
	)

	maxCodes, ok = MaxCodes(eventType)
	if !ok {
		return nil, fmt.Errorf("Device.CodeBits: %w %d", ErrInvalidEventType, eventType)
	}

	length = int((maxCodes + 1 + 7) / 8)

	return dev.bits(EVIOCGBIT(uint(eventType), uint(length)), length)
}

// AbsInfo returns the calibration parameters for the given absolute axis.
func (dev *Device) AbsInfo(axis uint) (AbsInfo, error) {
	var (
		info AbsInfo
		err  error
	)

	err = ioctl.Do(dev.fd, EVIOCGABS(axis), &info)
	if err != nil {
		return AbsInfo{}, fmt.Errorf("Device.AbsInfo: %w", err)
	}

	return info, nil
}

// EffectsCount returns the number of force-feedback effects the device
// can play simultaneously.
func (dev *Device) EffectsCount() (int, error) {
	var (
		count int
		err   error
	)

	err = ioctl.Do(dev.fd, EVIOCGEFFECTS(), &count)
	if err != nil {
		return 0, fmt.Errorf("Device.EffectsCount: %w", err)
	}

	return count, nil
}

// Close closes the evdev device.
func (dev *Device) Close() error {
	var err error

	err = dev.file.Close()
	if err != nil {
		return fmt.Errorf("Device.Close: %w", err)
	}

	return nil
}

func (dev *Device) bits(req uint, length int) ([]byte, error) {
	var (
		buf []byte
		err error
	)

	buf = make([]byte, length)

	err = ioctl.Do(dev.fd, req, &buf[0])
	if err != nil {
		return nil, err
	}

	return buf, nil
}
