package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlReaderDecodesVersionFrame(t *testing.T) {
	// S1: GETVERSION frame, header-only (length == header size, no payload).
	wire := []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08}

	r := NewControlReader()
	frames, err := r.Feed(wire)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 1, frames[0].Type)
	assert.Empty(t, frames[0].Payload)
}

func TestEncodeControlAck(t *testing.T) {
	// S1's reply: ACK=11, len=12, payload = api version BE32.
	payload := []byte{0x00, 0x00, 0x11, 0x4A} // 4426
	got := EncodeControl(11, payload)
	want := []byte{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x00, 0x0C, 0x00, 0x00, 0x11, 0x4A}
	assert.Equal(t, want, got)
}

func TestEncodeNext(t *testing.T) {
	// NEXT ack shape: a 12-byte frame whose 4-byte body echoes the byte
	// count consumed (here 8, under the caller-supplied type code 11).
	got := EncodeNext(11, 8)
	want := []byte{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x00, 0x0C, 0x00, 0x00, 0x00, 0x08}
	assert.Equal(t, want, got)
}

func TestControlReaderAccumulatesAcrossShortReads(t *testing.T) {
	full := EncodeControl(9, []byte("hi"))

	r := NewControlReader()
	frames, err := r.Feed(full[:3])
	require.NoError(t, err)
	assert.Empty(t, frames, "partial header must not yield a frame")

	frames, err = r.Feed(full[3:9])
	require.NoError(t, err)
	assert.Empty(t, frames, "header complete but payload still short")

	frames, err = r.Feed(full[9:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 9, frames[0].Type)
	assert.Equal(t, []byte("hi"), frames[0].Payload)
}

func TestControlReaderGrowsBufferByOneByteBeyondLength(t *testing.T) {
	// B1: once a frame's full declared length is known but not yet fully
	// arrived, the reader must reserve length+1 bytes of capacity.
	full := EncodeControl(9, []byte("hello world"))
	r := NewControlReader()

	_, err := r.Feed(full[:len(full)-1]) // header + all but the last payload byte
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cap(r.buf), len(full)+1)

	frames, err := r.Feed(full[len(full)-1:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("hello world"), frames[0].Payload)
}

func TestControlReaderDecodesMultipleFramesInOneChunk(t *testing.T) {
	a := EncodeControl(1, nil)
	b := EncodeControl(9, nil)
	r := NewControlReader()

	frames, err := r.Feed(append(append([]byte{}, a...), b...))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.EqualValues(t, 1, frames[0].Type)
	assert.EqualValues(t, 9, frames[1].Type)
}

func TestControlReaderRejectsOversizedFrame(t *testing.T) {
	wire := make([]byte, CtlHeaderSize)
	wire[3] = 1
	wire[4], wire[5], wire[6], wire[7] = 0x00, 0x00, 0xFF, 0xFF // length 65535 > maxControlFrame

	r := NewControlReader()
	_, err := r.Feed(wire)
	assert.Error(t, err)
}

func TestControlReaderRejectsLengthBelowHeaderSize(t *testing.T) {
	wire := make([]byte, CtlHeaderSize)
	wire[3] = 1
	wire[7] = 4 // length 4, below the 8-byte header

	r := NewControlReader()
	_, err := r.Feed(wire)
	assert.Error(t, err)
}
