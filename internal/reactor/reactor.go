//go:build linux

// Package reactor implements a single-threaded, epoll-based readiness
// loop shared by the hidpipe server and client. Both sides dispatch one
// ready fd at a time rather than draining an entire epoll_wait batch, so
// a single slow or misbehaving fd cannot starve the others.
package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Reactor owns an epoll instance and the set of fds registered with it.
type Reactor struct {
	epfd int
}

// New creates an epoll instance.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor.New: %w", err)
	}

	return &Reactor{epfd: epfd}, nil
}

// Add registers fd for the given event mask (e.g. unix.EPOLLIN).
func (r *Reactor) Add(fd int, events uint32) error {
	event := unix.EpollEvent{Events: events, Fd: int32(fd)}

	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &event)
	if err != nil {
		return fmt.Errorf("reactor.Add: %w", err)
	}

	return nil
}

// Remove deregisters fd.
func (r *Reactor) Remove(fd int) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil {
		return fmt.Errorf("reactor.Remove: %w", err)
	}

	return nil
}

// Close closes the epoll instance.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}

// Wait blocks until exactly one registered fd becomes ready and returns
// its event. EINTR and spurious zero-count wakeups are retried
// transparently, so a caller's dispatch loop can treat every successful
// return as exactly one ready fd to handle.
func (r *Reactor) Wait() (unix.EpollEvent, error) {
	var events [1]unix.EpollEvent

	for {
		n, err := unix.EpollWait(r.epfd, events[:], -1)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return unix.EpollEvent{}, fmt.Errorf("reactor.Wait: %w", err)
		case n == 0:
			continue
		default:
			return events[0], nil
		}
	}
}
