//go:build linux

package client

import (
	"bytes"
	"fmt"

	"github.com/hidpipe/hidpipe/internal/reactor"
	"github.com/hidpipe/hidpipe/internal/uinputdev"
	"github.com/hidpipe/hidpipe/linux/input"
	"github.com/hidpipe/hidpipe/wire"
	"github.com/mdlayher/vsock"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// HostPort is the vsock port Connect dials on the host.
const HostPort = 3334

// recvStage tracks which part of a message the upstream framer is
// currently assembling. A single reactor wakeup rarely delivers a
// whole AddDevice record plus its trailing AbsoluteInfo entries, so
// reassembly has to survive across Run's wakeups rather than running
// to completion inside one dispatch call.
type recvStage int

const (
	stageTag recvStage = iota
	stagePayload
	stageAbsInfo
)

// Client owns the vsock connection to the host and every synthetic
// uinput device it has created on the guest's behalf.
type Client struct {
	log      *zap.SugaredLogger
	conn     *vsock.Conn
	reactor  *reactor.Reactor
	upstream *framer
	fd       int

	devicesByID map[uint64]*uinputdev.Device
	fdToID      map[int]uint64

	stage        recvStage
	pendingTag   wire.Tag
	pendingAdd   wire.AddDevice
	pendingAxis  uint
	pendingInfos []wire.AbsoluteInfo
}

// Connect dials the host at contextID (typically unix.VMADDR_CID_HOST)
// and performs the blocking version handshake.
func Connect(log *zap.SugaredLogger, contextID uint32) (*Client, error) {
	conn, err := vsock.Dial(contextID, HostPort, nil)
	if err != nil {
		return nil, fmt.Errorf("client.Connect: %w", err)
	}

	err = wire.WriteClientHello(conn, wire.ClientHello{Version: wire.ProtocolVersion})
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("client.Connect: %w", err)
	}

	hello, err := wire.ReadServerHello(conn)
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("client.Connect: %w", err)
	}

	if hello.Version != wire.ProtocolVersion {
		conn.Close()

		return nil, fmt.Errorf("client.Connect: server speaks protocol version %d, want %d", hello.Version, wire.ProtocolVersion)
	}

	var fd int

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("client.Connect: %w", err)
	}

	err = raw.Control(func(rawFd uintptr) { fd = int(rawFd) })
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("client.Connect: %w", err)
	}

	r, err := reactor.New()
	if err != nil {
		conn.Close()

		return nil, err
	}

	err = r.Add(fd, unix.EPOLLIN)
	if err != nil {
		r.Close()
		conn.Close()

		return nil, fmt.Errorf("client.Connect: %w", err)
	}

	return &Client{
		log:         log,
		conn:        conn,
		reactor:     r,
		upstream:    newFramer(fd),
		fd:          fd,
		devicesByID: make(map[uint64]*uinputdev.Device),
		fdToID:      make(map[int]uint64),
	}, nil
}

// Run blocks, dispatching readiness events until a fatal error occurs.
func (c *Client) Run() error {
	for {
		ev, err := c.reactor.Wait()
		if err != nil {
			return err
		}

		fd := int(ev.Fd)

		if fd == c.fd {
			err = c.pumpUpstream()
			if err != nil {
				return err
			}

			continue
		}

		if id, ok := c.fdToID[fd]; ok {
			c.drainSynthetic(id, fd)
		}
	}
}

// pumpUpstream advances the stage machine as far as currently buffered
// data allows, returning to wait for the next wakeup as soon as a read
// comes back notReady.
func (c *Client) pumpUpstream() error {
	for {
		switch c.stage {
		case stageTag:
			outcome, data, err := c.upstream.read(wire.TagSize)
			if outcome == notReady {
				return nil
			}

			if outcome == hangup {
				return fmt.Errorf("client.pumpUpstream: host hung up: %w", err)
			}

			tag, err := wire.ReadTag(&byteReader{data})
			if err != nil {
				return fmt.Errorf("client.pumpUpstream: %w", err)
			}

			switch tag {
			case wire.TagAddDevice, wire.TagRemoveDevice, wire.TagInputEvent:
				c.pendingTag = tag
				c.stage = stagePayload
			default:
				return fmt.Errorf("client.pumpUpstream: %w: %s", wire.ErrUnknownTag, tag)
			}
		case stagePayload:
			err := c.pumpPayload()
			if err == errNotReady {
				return nil
			}

			if err != nil {
				return err
			}
		case stageAbsInfo:
			err := c.pumpAbsInfo()
			if err == errNotReady {
				return nil
			}

			if err != nil {
				return err
			}
		}
	}
}

func (c *Client) pumpPayload() error {
	switch c.pendingTag {
	case wire.TagAddDevice:
		outcome, data, err := c.upstream.read(wire.AddDeviceSize)
		if outcome == notReady {
			return errNotReady
		}

		if outcome == hangup {
			return fmt.Errorf("client.pumpPayload: host hung up: %w", err)
		}

		add, err := decodeAddDevice(data)
		if err != nil {
			return fmt.Errorf("client.pumpPayload: %w", err)
		}

		c.pendingAdd = add
		c.pendingAxis = 0
		c.pendingInfos = make([]wire.AbsoluteInfo, 0, input.ABS_CNT)
		c.stage = stageAbsInfo
	case wire.TagRemoveDevice:
		outcome, data, err := c.upstream.read(wire.RemoveDeviceSize)
		if outcome == notReady {
			return errNotReady
		}

		if outcome == hangup {
			return fmt.Errorf("client.pumpPayload: host hung up: %w", err)
		}

		rm, err := decodeRemoveDevice(data)
		if err != nil {
			return fmt.Errorf("client.pumpPayload: %w", err)
		}

		c.applyRemoveDevice(rm)
		c.stage = stageTag
	case wire.TagInputEvent:
		outcome, data, err := c.upstream.read(wire.InputEventSize)
		if outcome == notReady {
			return errNotReady
		}

		if outcome == hangup {
			return fmt.Errorf("client.pumpPayload: host hung up: %w", err)
		}

		evt, err := decodeInputEvent(data)
		if err != nil {
			return fmt.Errorf("client.pumpPayload: %w", err)
		}

		c.applyInputEvent(evt)
		c.stage = stageTag
	}

	return nil
}

// errNotReady unwinds pumpUpstream's loop without killing the
// connection: it is never returned to Run.
var errNotReady = fmt.Errorf("client: waiting on next reactor wakeup")

func (c *Client) pumpAbsInfo() error {
	for c.pendingAxis < input.ABS_CNT && !input.TestBit(c.pendingAdd.AbsBits[:], c.pendingAxis) {
		c.pendingAxis++
	}

	if c.pendingAxis >= input.ABS_CNT {
		err := c.applyAddDevice(c.pendingAdd, c.pendingInfos)
		c.pendingInfos = nil
		c.stage = stageTag

		return err
	}

	outcome, data, err := c.upstream.read(wire.AbsoluteInfoSize)
	if outcome == notReady {
		return errNotReady
	}

	if outcome == hangup {
		return fmt.Errorf("client.pumpAbsInfo: host hung up: %w", err)
	}

	info, err := decodeAbsoluteInfo(data)
	if err != nil {
		return fmt.Errorf("client.pumpAbsInfo: %w", err)
	}

	c.pendingInfos = append(c.pendingInfos, info)
	c.pendingAxis++

	return nil
}

func (c *Client) applyAddDevice(add wire.AddDevice, absInfos []wire.AbsoluteInfo) error {
	dev, err := uinputdev.Build(add, absInfos)
	if err != nil {
		return fmt.Errorf("client.applyAddDevice: id %d: %w", add.ID, err)
	}

	c.devicesByID[add.ID] = dev
	c.fdToID[int(dev.Fd())] = add.ID

	err = c.reactor.Add(int(dev.Fd()), unix.EPOLLIN)
	if err != nil {
		c.log.Warnw("failed to register synthetic device", "id", add.ID, "error", err)
	}

	c.log.Infow("created synthetic device", "id", add.ID)

	return nil
}

func (c *Client) applyRemoveDevice(rm wire.RemoveDevice) {
	dev, ok := c.devicesByID[rm.ID]
	if !ok {
		return
	}

	c.reactor.Remove(int(dev.Fd()))
	delete(c.fdToID, int(dev.Fd()))
	delete(c.devicesByID, rm.ID)
	dev.Destroy()

	c.log.Infow("destroyed synthetic device", "id", rm.ID)
}

func (c *Client) applyInputEvent(evt wire.InputEvent) {
	dev, ok := c.devicesByID[evt.ID]
	if !ok {
		return
	}

	err := dev.WriteEvent(evt)
	if err != nil {
		c.log.Warnw("failed to replay event", "id", evt.ID, "error", err)
	}
}

// drainSynthetic reads every kernel input_event the synthetic device's
// fd has buffered (LED sync, force-feedback control, and the like) and
// echoes each one back upstream tagged with the device's id, so the
// host sees state changes the guest's kernel makes to the device on
// its own.
func (c *Client) drainSynthetic(id uint64, fd int) {
	var buf [kernelEventSize]byte

	for {
		n, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}

		if n != kernelEventSize {
			c.log.Warnw("short read from synthetic device", "id", id, "n", n)

			continue
		}

		raw, err := decodeKernelEvent(buf[:])
		if err != nil {
			c.log.Warnw("failed to decode synthetic event", "id", id, "error", err)

			continue
		}

		err = c.sendUpstream(wire.InputEvent{
			Sec:   raw.Sec,
			Usec:  raw.Usec,
			ID:    id,
			Value: raw.Value,
			Type:  raw.Type,
			Code:  raw.Code,
		})
		if err != nil {
			c.log.Warnw("failed to echo synthetic event upstream", "id", id, "error", err)

			return
		}
	}
}

// sendUpstream encodes and writes a single InputEvent to the host.
func (c *Client) sendUpstream(evt wire.InputEvent) error {
	var buf bytes.Buffer

	err := wire.WriteInputEvent(&buf, evt)
	if err != nil {
		return fmt.Errorf("client.sendUpstream: %w", err)
	}

	return c.upstream.write(buf.Bytes())
}

// Close tears down every synthetic device and the vsock connection.
func (c *Client) Close() error {
	for id, dev := range c.devicesByID {
		dev.Destroy()
		delete(c.devicesByID, id)
	}

	c.reactor.Close()

	return c.conn.Close()
}
