// Package wire implements the fixed-layout, host-byte-order protocol
// spoken between the hidpipe server and its guest clients. Every record
// is encoded field by field in declaration order with encoding/binary,
// so its size on the wire is the plain sum of its field sizes: there is
// no implicit padding and no length prefix.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hidpipe/hidpipe/linux/input"
)

// Tag identifies the kind of message that follows on the wire.
type Tag uint32

// Message tags, in the order the server and client agree on.
const (
	TagAddDevice Tag = iota
	TagRemoveDevice
	TagInputEvent
)

func (t Tag) String() string {
	switch t {
	case TagAddDevice:
		return "AddDevice"
	case TagRemoveDevice:
		return "RemoveDevice"
	case TagInputEvent:
		return "InputEvent"
	default:
		return fmt.Sprintf("Tag(%d)", uint32(t))
	}
}

// ErrUnknownTag is returned when a message tag does not match any of the
// known message kinds.
var ErrUnknownTag = fmt.Errorf("wire: unknown message tag")

// ProtocolVersion is the version exchanged during the ClientHello /
// ServerHello handshake. A client whose version does not match is
// refused.
const ProtocolVersion uint32 = 1

// NameSize is the fixed size, in bytes, of the device name field carried
// in AddDevice.
const NameSize = 80

// ClientHello is the first message a client writes after connecting.
type ClientHello struct {
	Version uint32
}

// ServerHello is the server's reply to ClientHello.
type ServerHello struct {
	Version uint32
}

// AddDevice describes a newly discovered evdev device and the subset of
// its capabilities the client needs to recreate it with uinput. The
// field order is load-bearing: it is the order both sides encode and
// decode in.
type AddDevice struct {
	ID        uint64
	EvBits    [input.EvBytes]byte
	KeyBits   [input.KeyBytes]byte
	RelBits   [input.RelBytes]byte
	AbsBits   [input.AbsBytes]byte
	MscBits   [input.MscBytes]byte
	LedBits   [input.LedBytes]byte
	SndBits   [input.SndBytes]byte
	SwBits    [input.SwBytes]byte
	PropBits  [input.PropBytes]byte
	InputID   input.ID
	FFEffects uint32
	Name      [NameSize]byte
}

// AbsoluteInfo is the calibration record for a single absolute axis. One
// follows the AddDevice record for every bit set in AddDevice.AbsBits, in
// ascending axis order.
type AbsoluteInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// RemoveDevice announces that a previously added device has disappeared.
type RemoveDevice struct {
	ID uint64
}

// InputEvent carries a single evdev event tagged with the device it came
// from.
type InputEvent struct {
	Sec   uint64
	Usec  uint64
	ID    uint64
	Value int32
	Type  uint16
	Code  uint16
}

// order is the byte order used for every field on the wire. Since the
// server and client always run on the same host, native order avoids a
// pointless byte swap on every field of every event.
var order = binary.NativeEndian

// WriteTag writes a message tag.
func WriteTag(w io.Writer, tag Tag) error {
	return binary.Write(w, order, uint32(tag))
}

// ReadTag reads a message tag.
func ReadTag(r io.Reader) (Tag, error) {
	var raw uint32

	err := binary.Read(r, order, &raw)
	if err != nil {
		return 0, err
	}

	return Tag(raw), nil
}

// WriteClientHello writes a ClientHello.
func WriteClientHello(w io.Writer, hello ClientHello) error {
	return binary.Write(w, order, hello)
}

// ReadClientHello reads a ClientHello.
func ReadClientHello(r io.Reader) (ClientHello, error) {
	var hello ClientHello

	err := binary.Read(r, order, &hello)

	return hello, err
}

// WriteServerHello writes a ServerHello.
func WriteServerHello(w io.Writer, hello ServerHello) error {
	return binary.Write(w, order, hello)
}

// ReadServerHello reads a ServerHello.
func ReadServerHello(r io.Reader) (ServerHello, error) {
	var hello ServerHello

	err := binary.Read(r, order, &hello)

	return hello, err
}

// WriteAddDevice writes the tag, the fixed AddDevice record, and one
// AbsoluteInfo per set bit in dev.AbsBits, in ascending axis order.
func WriteAddDevice(w io.Writer, dev AddDevice, absInfos []AbsoluteInfo) error {
	var err error

	err = WriteTag(w, TagAddDevice)
	if err != nil {
		return err
	}

	err = binary.Write(w, order, dev)
	if err != nil {
		return err
	}

	for _, info := range absInfos {
		err = binary.Write(w, order, info)
		if err != nil {
			return err
		}
	}

	return nil
}

// ReadAddDevice reads the fixed AddDevice record that follows a
// TagAddDevice tag, along with one AbsoluteInfo per bit set in
// dev.AbsBits.
func ReadAddDevice(r io.Reader) (AddDevice, []AbsoluteInfo, error) {
	var (
		dev      AddDevice
		absInfos []AbsoluteInfo
		err      error
	)

	err = binary.Read(r, order, &dev)
	if err != nil {
		return AddDevice{}, nil, err
	}

	absInfos = make([]AbsoluteInfo, 0, input.ABS_CNT)

	for axis := uint(0); axis < input.ABS_CNT; axis++ {
		if !input.TestBit(dev.AbsBits[:], axis) {
			continue
		}

		var info AbsoluteInfo

		err = binary.Read(r, order, &info)
		if err != nil {
			return AddDevice{}, nil, err
		}

		absInfos = append(absInfos, info)
	}

	return dev, absInfos, nil
}

// WriteRemoveDevice writes the tag and a RemoveDevice record.
func WriteRemoveDevice(w io.Writer, dev RemoveDevice) error {
	err := WriteTag(w, TagRemoveDevice)
	if err != nil {
		return err
	}

	return binary.Write(w, order, dev)
}

// ReadRemoveDevice reads a RemoveDevice record following a
// TagRemoveDevice tag.
func ReadRemoveDevice(r io.Reader) (RemoveDevice, error) {
	var dev RemoveDevice

	err := binary.Read(r, order, &dev)

	return dev, err
}

// WriteInputEvent writes the tag and an InputEvent record.
func WriteInputEvent(w io.Writer, evt InputEvent) error {
	err := WriteTag(w, TagInputEvent)
	if err != nil {
		return err
	}

	return binary.Write(w, order, evt)
}

// ReadInputEvent reads an InputEvent record following a TagInputEvent
// tag.
func ReadInputEvent(r io.Reader) (InputEvent, error) {
	var evt InputEvent

	err := binary.Read(r, order, &evt)

	return evt, err
}

// Sizes, in bytes, of each fixed record as it appears on the wire.
// Exported for callers that need to size read buffers ahead of time,
// such as Client's partial-read state machine.
const (
	TagSize          = 4
	ClientHelloSize  = 4
	ServerHelloSize  = 4
	RemoveDeviceSize = 8
	InputEventSize   = 8 + 8 + 8 + 4 + 2 + 2
)

// AddDeviceSize is the size, in bytes, of the fixed portion of an
// AddDevice record (excluding any trailing AbsoluteInfo entries).
const AddDeviceSize = 8 + /* ID */
	input.EvBytes +
	input.KeyBytes +
	input.RelBytes +
	input.AbsBytes +
	input.MscBytes +
	input.LedBytes +
	input.SndBytes +
	input.SwBytes +
	input.PropBytes +
	8 + /* InputID: four uint16 */
	4 + /* FFEffects */
	NameSize

// AbsoluteInfoSize is the size, in bytes, of a single AbsoluteInfo
// record.
const AbsoluteInfoSize = 4 * 6
