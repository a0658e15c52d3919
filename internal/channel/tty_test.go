package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTtyReaderDecodesDataFrame(t *testing.T) {
	wire := EncodeTty(0xAABBCCDDEEFF0011, []byte("hello"))

	r := NewTtyReader()
	frames, err := r.Feed(wire)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 0xAABBCCDDEEFF0011, frames[0].Seq)
	assert.Equal(t, []byte("hello"), frames[0].Payload)
	assert.False(t, frames[0].IsGoodbye())
}

func TestTtyGoodbyeFrameIsZeroPayload(t *testing.T) {
	// S4: unknown-seq reply is a bare 12-byte header, no payload.
	wire := EncodeTty(0xAAAAAAAAAAAAAAAA, nil)
	assert.Len(t, wire, TtyHeaderSize)

	r := NewTtyReader()
	frames, err := r.Feed(wire)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].IsGoodbye())
}

func TestTtyReaderAccumulatesAcrossShortReads(t *testing.T) {
	full := EncodeTty(7, []byte("abcdef"))
	r := NewTtyReader()

	frames, err := r.Feed(full[:5])
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = r.Feed(full[5:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 7, frames[0].Seq)
	assert.Equal(t, []byte("abcdef"), frames[0].Payload)
}

func TestTtyReaderRejectsOversizedFrame(t *testing.T) {
	wire := make([]byte, TtyHeaderSize)
	wire[8], wire[9], wire[10], wire[11] = 0x00, 0x20, 0x00, 0x00 // 2MiB > maxTtyFrame
	r := NewTtyReader()
	_, err := r.Feed(wire)
	assert.Error(t, err)
}
