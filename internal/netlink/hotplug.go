//go:build linux

// Package netlink watches the kernel's uevent broadcasts for device
// hotplug activity, the way udev's monitor does internally, but without
// linking libudev: a NETLINK_KOBJECT_UEVENT socket delivers the same
// ACTION@DEVPATH / KEY=VALUE messages directly.
package netlink

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Event is a single hotplug notification.
type Event struct {
	Action     string
	Subsystem  string
	DevPath    string
	Properties map[string]string
}

// Monitor is a non-blocking uevent socket suitable for registering with
// a reactor. Unlike a typical udev client, Monitor does no filtering of
// its own in the kernel: every uevent on the system arrives here, and
// callers filter by Subsystem.
type Monitor struct {
	fd int
}

// Open creates and binds a uevent socket.
func Open() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("netlink.Open: %w", err)
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1, Pid: 0}

	err = unix.Bind(fd, addr)
	if err != nil {
		unix.Close(fd)

		return nil, fmt.Errorf("netlink.Open: %w", err)
	}

	return &Monitor{fd: fd}, nil
}

// Fd returns the underlying socket fd for reactor registration.
func (m *Monitor) Fd() int {
	return m.fd
}

// Close closes the socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Read reads and parses a single pending uevent message. Callers should
// keep calling Read after a readiness notification until it returns
// unix.EAGAIN, since several uevents can coalesce before the reactor
// wakes up.
func (m *Monitor) Read() (Event, error) {
	buf := make([]byte, 4096)

	n, _, err := unix.Recvfrom(m.fd, buf, 0)
	if err != nil {
		return Event{}, err
	}

	return parseEvent(buf[:n])
}

func parseEvent(data []byte) (Event, error) {
	parts := bytes.Split(data, []byte{0x00})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return Event{}, fmt.Errorf("netlink: empty uevent")
	}

	header := string(parts[0])

	headerParts := strings.SplitN(header, "@", 2)
	if len(headerParts) != 2 {
		return Event{}, fmt.Errorf("netlink: malformed uevent header %q", header)
	}

	event := Event{
		Action:     headerParts[0],
		DevPath:    headerParts[1],
		Properties: make(map[string]string),
	}

	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}

		kv := strings.SplitN(string(part), "=", 2)
		if len(kv) == 2 {
			event.Properties[kv[0]] = kv[1]
		}
	}

	event.Subsystem = event.Properties["SUBSYSTEM"]

	return event, nil
}
