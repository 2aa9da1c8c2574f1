//go:build linux

package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hidpipe/hidpipe/internal/evdev"
	"github.com/hidpipe/hidpipe/internal/netlink"
	"github.com/hidpipe/hidpipe/internal/probe"
	"github.com/hidpipe/hidpipe/internal/reactor"
	"github.com/hidpipe/hidpipe/wire"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type clientState int

const (
	stateAwaitingHello clientState = iota
	stateEstablished
)

type trackedClient struct {
	client *Client
	state  clientState
}

// Server is the host-side reactor: it owns the evdev registry, the
// hotplug monitor, the Unix listener, and every connected guest.
type Server struct {
	log      *zap.SugaredLogger
	reactor  *reactor.Reactor
	registry *evdev.Registry
	monitor  *netlink.Monitor
	listener *net.UnixListener
	listenFd int
	sockPath string
	clients  map[int]*trackedClient
}

// New wires up the reactor, hotplug monitor and listening socket at
// sockPath, removing any stale socket file left behind by a previous
// run.
func New(log *zap.SugaredLogger, sockPath string) (*Server, error) {
	r, err := reactor.New()
	if err != nil {
		return nil, err
	}

	mon, err := netlink.Open()
	if err != nil {
		r.Close()

		return nil, err
	}

	ln, listenFd, err := listen(sockPath)
	if err != nil {
		mon.Close()
		r.Close()

		return nil, err
	}

	s := &Server{
		log:      log,
		reactor:  r,
		registry: evdev.NewRegistry(),
		monitor:  mon,
		listener: ln,
		listenFd: listenFd,
		sockPath: sockPath,
		clients:  make(map[int]*trackedClient),
	}

	for _, fd := range []int{s.listenFd, s.monitor.Fd()} {
		err = s.reactor.Add(fd, unix.EPOLLIN)
		if err != nil {
			s.Close()

			return nil, err
		}
	}

	return s, nil
}

func listen(sockPath string) (*net.UnixListener, int, error) {
	err := os.Remove(sockPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, -1, fmt.Errorf("server.listen: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(sockPath), 0o700)
	if err != nil {
		return nil, -1, fmt.Errorf("server.listen: %w", err)
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: sockPath, Net: "unix"})
	if err != nil {
		return nil, -1, fmt.Errorf("server.listen: %w", err)
	}

	fd, err := rawFd(ln.SyscallConn)
	if err != nil {
		ln.Close()

		return nil, -1, fmt.Errorf("server.listen: %w", err)
	}

	return ln, fd, nil
}

type syscallConner func() (syscall.RawConn, error)

func rawFd(syscallConn syscallConner) (int, error) {
	raw, err := syscallConn()
	if err != nil {
		return -1, err
	}

	var fd int

	err = raw.Control(func(rawFd uintptr) { fd = int(rawFd) })
	if err != nil {
		return -1, err
	}

	return fd, nil
}

// ScanDevices opens every /dev/input/eventN node, keeping the ones
// probe.IsJoystick accepts.
func (s *Server) ScanDevices() error {
	paths, err := func() ([]string, error) {
		return devicePaths()
	}()
	if err != nil {
		return err
	}

	for _, path := range paths {
		err = s.tryAddDevice(path, filepath.Base(path))
		if err != nil {
			s.log.Warnw("probe failed, skipping device", "path", path, "error", err)
		}
	}

	return nil
}

func (s *Server) tryAddDevice(path, sysname string) error {
	h, err := evdev.Open(path, sysname)
	if err != nil {
		return fmt.Errorf("server.tryAddDevice: %w", err)
	}

	ok, err := probe.IsJoystick(h)
	if err != nil {
		h.Close()

		return fmt.Errorf("server.tryAddDevice: %w", err)
	}

	if !ok {
		h.Close()

		return nil
	}

	if stale := s.registry.Add(h); stale != nil {
		s.reactor.Remove(stale.Fd())
		stale.Close()
	}

	err = s.reactor.Add(h.Fd(), unix.EPOLLIN)
	if err != nil {
		s.registry.Remove(sysname)
		h.Close()

		return fmt.Errorf("server.tryAddDevice: %w", err)
	}

	s.log.Infow("tracking joystick", "sysname", sysname, "fd", h.Fd())
	s.broadcastAddDevice(h)

	return nil
}

// Run blocks, dispatching readiness events until a fatal error occurs
// (a failed reactor wait).
func (s *Server) Run() error {
	for {
		ev, err := s.reactor.Wait()
		if err != nil {
			return err
		}

		fd := int(ev.Fd)

		switch {
		case fd == s.listenFd:
			s.acceptOne()
		case fd == s.monitor.Fd():
			s.hotplugLoop()
		default:
			if _, ok := s.clients[fd]; ok {
				s.handleClient(fd)

				continue
			}

			if h, ok := s.registry.Get(fd); ok {
				s.handleDeviceReadable(h)
			}
		}
	}
}

// acceptOne accepts a single pending connection. The reactor is
// level-triggered, so a listener with more than one connection queued
// fires again on the next Wait rather than needing a drain loop here.
func (s *Server) acceptOne() {
	conn, err := s.listener.AcceptUnix()
	if err != nil {
		s.log.Warnw("accept failed", "error", err)

		return
	}

	fd, err := rawFd(conn.SyscallConn)
	if err != nil {
		s.log.Warnw("failed to extract client fd", "error", err)
		conn.Close()

		return
	}

	err = s.reactor.Add(fd, unix.EPOLLIN)
	if err != nil {
		s.log.Warnw("failed to register client fd", "error", err)
		conn.Close()

		return
	}

	s.clients[fd] = &trackedClient{client: NewClient(conn, fd), state: stateAwaitingHello}
	s.log.Infow("client connected", "fd", fd)
}

func (s *Server) hotplugLoop() {
	for {
		event, err := s.monitor.Read()
		if err != nil {
			if err != unix.EAGAIN {
				s.log.Warnw("hotplug read failed", "error", err)
			}

			return
		}

		if event.Subsystem != "input" {
			continue
		}

		devname, ok := event.Properties["DEVNAME"]
		if !ok {
			continue
		}

		sysname := filepath.Base(devname)

		switch event.Action {
		case "add":
			err = s.tryAddDevice(filepath.Join("/dev", devname), sysname)
			if err != nil {
				s.log.Warnw("hotplug add failed", "sysname", sysname, "error", err)
			}
		case "remove":
			s.removeDevice(sysname)
		}
	}
}

func (s *Server) removeDevice(sysname string) {
	h, ok := s.registry.Remove(sysname)
	if !ok {
		return
	}

	s.reactor.Remove(h.Fd())
	h.Close()

	s.log.Infow("device removed", "sysname", sysname, "fd", h.Fd())
	s.broadcastAll(func(c *Client) error {
		return wire.WriteRemoveDevice(&clientWriter{c}, wire.RemoveDevice{ID: uint64(h.Fd())})
	})
}

func (s *Server) handleClient(fd int) {
	tracked := s.clients[fd]

	switch tracked.state {
	case stateAwaitingHello:
		s.handleHello(fd, tracked)
	case stateEstablished:
		s.handlePostHandshake(fd, tracked)
	}
}

func (s *Server) handleHello(fd int, tracked *trackedClient) {
	outcome, data, err := tracked.client.Read(wire.ClientHelloSize)

	switch outcome {
	case NotReady:
		return
	case Hangup:
		s.dropClient(fd, err)
	case Data:
		hello, decodeErr := wire.ReadClientHello(&byteReader{data})
		if decodeErr != nil || hello.Version != wire.ProtocolVersion {
			s.log.Warnw("rejecting client with bad hello", "fd", fd, "error", decodeErr)
			s.dropClient(fd, nil)

			return
		}

		if s.sendServerHello(tracked.client) != nil {
			s.dropClient(fd, nil)

			return
		}

		tracked.client.SetReady()
		tracked.state = stateEstablished

		for _, h := range s.registry.All() {
			s.sendAddDevice(tracked.client, h)
		}
	}
}

func (s *Server) sendServerHello(c *Client) error {
	w := &clientWriter{c}

	return wire.WriteServerHello(w, wire.ServerHello{Version: wire.ProtocolVersion})
}

func (s *Server) sendAddDevice(c *Client, h *evdev.Handle) {
	msg, absInfos, err := h.AddDeviceMessage(uint64(h.Fd()))
	if err != nil {
		s.log.Warnw("failed to build AddDevice", "fd", h.Fd(), "error", err)

		return
	}

	err = wire.WriteAddDevice(&clientWriter{c}, msg, absInfos)
	if err != nil {
		s.dropClient(c.Fd(), err)
	}
}

func (s *Server) broadcastAddDevice(h *evdev.Handle) {
	msg, absInfos, err := h.AddDeviceMessage(uint64(h.Fd()))
	if err != nil {
		s.log.Warnw("failed to build AddDevice", "fd", h.Fd(), "error", err)

		return
	}

	s.broadcastAll(func(c *Client) error {
		return wire.WriteAddDevice(&clientWriter{c}, msg, absInfos)
	})
}

func (s *Server) handlePostHandshake(fd int, tracked *trackedClient) {
	outcome, err := tracked.client.Discard()

	switch outcome {
	case NotReady:
		return
	case Hangup:
		s.dropClient(fd, err)
	}
}

func (s *Server) handleDeviceReadable(h *evdev.Handle) {
	for {
		evt, err := h.ReadEvent(uint64(h.Fd()))
		if err != nil {
			if err != unix.EAGAIN {
				s.log.Warnw("device read failed, dropping", "fd", h.Fd(), "error", err)
				s.removeDevice(h.Sysname())
			}

			return
		}

		s.broadcast(func(c *Client) error {
			return wire.WriteInputEvent(&clientWriter{c}, evt)
		})
	}
}

// broadcast sends to every established client, dropping any client a
// write fails on. Used for the InputEvent fan-out, which only a client
// that has completed the handshake can make sense of.
func (s *Server) broadcast(send func(*Client) error) {
	for fd, tracked := range s.clients {
		if tracked.state != stateEstablished {
			continue
		}

		err := send(tracked.client)
		if err != nil {
			s.dropClient(fd, err)
		}
	}
}

// broadcastAll sends to every connected client regardless of handshake
// state, dropping any client a write fails on. AddDevice/RemoveDevice
// use this: the bytes go straight onto each socket, so a client still
// awaiting its hello reply receives them ahead of its ServerHello, and a
// device added this way may be announced to it a second time by the
// catch-up AddDevice messages handleHello sends.
func (s *Server) broadcastAll(send func(*Client) error) {
	for fd, tracked := range s.clients {
		err := send(tracked.client)
		if err != nil {
			s.dropClient(fd, err)
		}
	}
}

func (s *Server) dropClient(fd int, err error) {
	tracked, ok := s.clients[fd]
	if !ok {
		return
	}

	if err != nil {
		s.log.Infow("client disconnected", "fd", fd, "error", err)
	} else {
		s.log.Infow("client disconnected", "fd", fd)
	}

	s.reactor.Remove(fd)
	tracked.client.Close()
	delete(s.clients, fd)
}

// Close releases every resource the server owns.
func (s *Server) Close() error {
	for fd := range s.clients {
		s.dropClient(fd, nil)
	}

	for _, h := range s.registry.All() {
		h.Close()
	}

	s.monitor.Close()
	s.listener.Close()

	return s.reactor.Close()
}

func devicePaths() ([]string, error) {
	return filepath.Glob("/dev/input/event*")
}
