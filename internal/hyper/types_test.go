package hyper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xfeldman/hyperstart/internal/protocol"
)

type fakeSink struct {
	frames [][]byte
}

func (s *fakeSink) Enqueue(seq uint64, payload []byte) {
	s.frames = append(s.frames, append([]byte(nil), payload...))
}

func TestEmitExitIfReadyWaitsForBothHalves(t *testing.T) {
	// I4: the exit-status frame must never precede the EOF frame. This
	// covers reap-before-EOF; TestEmitExitIfReadyEOFFirstOrdering covers
	// EOF-before-reap.
	e := &Exec{Seq: 1, Code: 7}
	sink := &fakeSink{}

	EmitExitIfReady(e, sink) // neither half ready yet
	assert.Empty(t, sink.frames)

	e.State = protocol.ExitExited
	EmitExitIfReady(e, sink) // reaped, but stdout hasn't drained
	assert.Empty(t, sink.frames)

	e.MarkStdoutEOF()
	EmitExitIfReady(e, sink)
	assert.Len(t, sink.frames, 1)
	assert.Equal(t, protocol.ExitReported, e.State)
}

func TestEmitExitIfReadyIsIdempotent(t *testing.T) {
	e := &Exec{Seq: 1, Code: 0, State: protocol.ExitExited}
	e.MarkStdoutEOF()
	sink := &fakeSink{}

	EmitExitIfReady(e, sink)
	EmitExitIfReady(e, sink)
	EmitExitIfReady(e, sink)
	assert.Len(t, sink.frames, 1, "a reported exit must not be re-emitted")
}

func TestEmitExitIfReadyEOFFirstOrdering(t *testing.T) {
	e := &Exec{Seq: 1, Code: 3}
	sink := &fakeSink{}

	e.MarkStdoutEOF()
	EmitExitIfReady(e, sink) // EOF observed first, not yet reaped
	assert.Empty(t, sink.frames)

	e.State = protocol.ExitExited
	EmitExitIfReady(e, sink)
	assert.Len(t, sink.frames, 1)
	assert.Equal(t, []byte{3}, sink.frames[0])
}
