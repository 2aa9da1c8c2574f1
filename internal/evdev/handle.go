//go:build linux

// Package evdev wraps /dev/input/eventN device nodes and tracks the set
// of them currently forwarded to a guest.
package evdev

import (
	"fmt"

	"github.com/hidpipe/hidpipe/linux/input"
	"github.com/hidpipe/hidpipe/wire"
)

// Handle is an open evdev device plus the sysname (e.g. "event7") it was
// opened under.
type Handle struct {
	dev     *input.Device
	sysname string
	fd      int
}

// Open opens the device node at path, recording sysname for later
// removal lookups.
func Open(path, sysname string) (*Handle, error) {
	dev, err := input.Open(path)
	if err != nil {
		return nil, fmt.Errorf("evdev.Open: %w", err)
	}

	return &Handle{dev: dev, sysname: sysname, fd: int(dev.Fd())}, nil
}

// Fd returns the device's file descriptor.
func (h *Handle) Fd() int {
	return h.fd
}

// Sysname returns the device's kernel sysfs name, e.g. "event7".
func (h *Handle) Sysname() string {
	return h.sysname
}

// Close closes the underlying device node.
func (h *Handle) Close() error {
	return h.dev.Close()
}

// Properties implements probe.Capabilities.
func (h *Handle) Properties() ([]byte, error) {
	return h.dev.Properties(input.PropBytes)
}

// EventBits implements probe.Capabilities.
func (h *Handle) EventBits() ([]byte, error) {
	return h.dev.EventBits(input.EvBytes)
}

// CodeBits implements probe.Capabilities.
func (h *Handle) CodeBits(eventType uint16) ([]byte, error) {
	return h.dev.CodeBits(eventType)
}

// ReadEvent reads a single pending kernel input_event and translates it
// into the wire format, tagging it with id.
func (h *Handle) ReadEvent(id uint64) (wire.InputEvent, error) {
	var raw struct {
		Sec, Usec int64
		Type      uint16
		Code      uint16
		Value     int32
	}

	err := readStruct(h.dev.File(), &raw)
	if err != nil {
		return wire.InputEvent{}, err
	}

	return wire.InputEvent{
		Sec:   uint64(raw.Sec),
		Usec:  uint64(raw.Usec),
		ID:    id,
		Value: raw.Value,
		Type:  raw.Type,
		Code:  raw.Code,
	}, nil
}

// AddDeviceMessage builds the wire AddDevice record and the per-axis
// AbsoluteInfo list describing this device, for relaying to a guest.
func (h *Handle) AddDeviceMessage(id uint64) (wire.AddDevice, []wire.AbsoluteInfo, error) {
	var msg wire.AddDevice

	msg.ID = id

	evBits, err := h.dev.EventBits(input.EvBytes)
	if err != nil {
		return wire.AddDevice{}, nil, fmt.Errorf("evdev.AddDeviceMessage: %w", err)
	}

	copy(msg.EvBits[:], evBits)

	for _, axis := range []struct {
		eventType uint16
		dst       []byte
	}{
		{input.EV_KEY, msg.KeyBits[:]},
		{input.EV_REL, msg.RelBits[:]},
		{input.EV_ABS, msg.AbsBits[:]},
		{input.EV_MSC, msg.MscBits[:]},
		{input.EV_LED, msg.LedBits[:]},
		{input.EV_SND, msg.SndBits[:]},
		{input.EV_SW, msg.SwBits[:]},
	} {
		if !input.TestBit(evBits, uint(axis.eventType)) {
			continue
		}

		bits, err := h.dev.CodeBits(axis.eventType)
		if err != nil {
			return wire.AddDevice{}, nil, fmt.Errorf("evdev.AddDeviceMessage: %w", err)
		}

		copy(axis.dst, bits)
	}

	propBits, err := h.dev.Properties(input.PropBytes)
	if err != nil {
		return wire.AddDevice{}, nil, fmt.Errorf("evdev.AddDeviceMessage: %w", err)
	}

	copy(msg.PropBits[:], propBits)

	id3, err := h.dev.ID()
	if err != nil {
		return wire.AddDevice{}, nil, fmt.Errorf("evdev.AddDeviceMessage: %w", err)
	}

	msg.InputID = id3

	effects, err := h.dev.EffectsCount()
	if err != nil {
		return wire.AddDevice{}, nil, fmt.Errorf("evdev.AddDeviceMessage: %w", err)
	}

	msg.FFEffects = uint32(effects)

	name, err := h.dev.NameBytes(wire.NameSize)
	if err != nil {
		return wire.AddDevice{}, nil, fmt.Errorf("evdev.AddDeviceMessage: %w", err)
	}

	copy(msg.Name[:], name)

	absInfos := make([]wire.AbsoluteInfo, 0, input.ABS_CNT)

	for axis := uint(0); axis < input.ABS_CNT; axis++ {
		if !input.TestBit(msg.AbsBits[:], axis) {
			continue
		}

		info, err := h.dev.AbsInfo(axis)
		if err != nil {
			return wire.AddDevice{}, nil, fmt.Errorf("evdev.AddDeviceMessage: %w", err)
		}

		absInfos = append(absInfos, wire.AbsoluteInfo{
			Value:      info.Value,
			Minimum:    info.Minimum,
			Maximum:    info.Maximum,
			Fuzz:       info.Fuzz,
			Flat:       info.Flat,
			Resolution: info.Resolution,
		})
	}

	return msg, absInfos, nil
}
