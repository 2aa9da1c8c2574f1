package wire_test

import (
	"bytes"
	"testing"

	"github.com/hidpipe/hidpipe/linux/input"
	"github.com/hidpipe/hidpipe/wire"
	"github.com/stretchr/testify/require"
)

func TestHelloRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, wire.WriteClientHello(&buf, wire.ClientHello{Version: wire.ProtocolVersion}))

	hello, err := wire.ReadClientHello(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.ProtocolVersion, hello.Version)

	buf.Reset()
	require.NoError(t, wire.WriteServerHello(&buf, wire.ServerHello{Version: wire.ProtocolVersion}))

	reply, err := wire.ReadServerHello(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.ProtocolVersion, reply.Version)
}

func TestAddDeviceRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	dev := wire.AddDevice{ID: 7, FFEffects: 2}
	input.SetBit(dev.EvBits[:], input.EV_ABS)
	input.SetBit(dev.AbsBits[:], input.ABS_X)
	input.SetBit(dev.AbsBits[:], input.ABS_Y)
	copy(dev.Name[:], "Test Joystick")

	absInfos := []wire.AbsoluteInfo{
		{Value: 0, Minimum: -32768, Maximum: 32767, Fuzz: 16, Flat: 128, Resolution: 0},
		{Value: 0, Minimum: -32768, Maximum: 32767, Fuzz: 16, Flat: 128, Resolution: 0},
	}

	require.NoError(t, wire.WriteAddDevice(&buf, dev, absInfos))

	tag, err := wire.ReadTag(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.TagAddDevice, tag)

	gotDev, gotAbs, err := wire.ReadAddDevice(&buf)
	require.NoError(t, err)
	require.Equal(t, dev, gotDev)
	require.Equal(t, absInfos, gotAbs)
	require.Equal(t, 0, buf.Len())
}

func TestAddDeviceSkipsUnsetAxes(t *testing.T) {
	var buf bytes.Buffer

	dev := wire.AddDevice{ID: 1}
	input.SetBit(dev.AbsBits[:], input.ABS_RX)

	require.NoError(t, wire.WriteAddDevice(&buf, dev, []wire.AbsoluteInfo{{Maximum: 255}}))

	_, err := wire.ReadTag(&buf)
	require.NoError(t, err)

	_, absInfos, err := wire.ReadAddDevice(&buf)
	require.NoError(t, err)
	require.Len(t, absInfos, 1)
	require.Equal(t, int32(255), absInfos[0].Maximum)
}

func TestRemoveDeviceRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, wire.WriteRemoveDevice(&buf, wire.RemoveDevice{ID: 42}))

	tag, err := wire.ReadTag(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.TagRemoveDevice, tag)

	dev, err := wire.ReadRemoveDevice(&buf)
	require.NoError(t, err)
	require.Equal(t, uint64(42), dev.ID)
}

func TestInputEventRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	evt := wire.InputEvent{Sec: 100, Usec: 200, ID: 9, Value: -1, Type: input.EV_KEY, Code: input.BTN_SOUTH}

	require.NoError(t, wire.WriteInputEvent(&buf, evt))

	tag, err := wire.ReadTag(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.TagInputEvent, tag)

	got, err := wire.ReadInputEvent(&buf)
	require.NoError(t, err)
	require.Equal(t, evt, got)
}

func TestFixedSizesMatchEncodedLength(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, wire.WriteRemoveDevice(&buf, wire.RemoveDevice{ID: 1}))
	require.Equal(t, wire.TagSize+wire.RemoveDeviceSize, buf.Len())

	buf.Reset()
	require.NoError(t, wire.WriteInputEvent(&buf, wire.InputEvent{}))
	require.Equal(t, wire.TagSize+wire.InputEventSize, buf.Len())

	buf.Reset()
	require.NoError(t, wire.WriteAddDevice(&buf, wire.AddDevice{}, nil))
	require.Equal(t, wire.TagSize+wire.AddDeviceSize, buf.Len())
}
