package hyper

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfeldman/hyperstart/internal/reactor"
)

func TestStdinWriterFeedAndFlush(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()

	sw := NewStdinWriter(pw)
	sw.Feed([]byte("hello"))

	drained, err := sw.Flush()
	require.NoError(t, err)
	assert.True(t, drained)

	buf := make([]byte, 5)
	_, err = pr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestStdinWriterCloseLatch(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()

	sw := NewStdinWriter(pw)
	sw.Feed([]byte("x"))
	sw.Feed(nil) // zero-payload latches close-after-drain

	drained, err := sw.Flush()
	require.NoError(t, err)
	assert.True(t, drained)

	// The fd is now closed; a second flush with nothing pending must not
	// attempt another write.
	drained, err = sw.Flush()
	require.NoError(t, err)
	assert.True(t, drained)
}

func TestRegisterExecIOForwardsDataThenEOF(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pw.Close()

	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	e := &Exec{ContainerID: "c1", ProcessID: "init", Seq: 3, TTY: false, StdoutR: pr}
	sink := &fakeSink{}
	require.NoError(t, RegisterExecIO(r, e, sink))

	pw.Write([]byte("out"))
	require.NoError(t, r.RunOnce(1000))
	require.Len(t, sink.frames, 1)
	assert.Equal(t, []byte("out"), sink.frames[0])

	pw.Close() // triggers EOF
	require.NoError(t, r.RunOnce(1000))
	require.Len(t, sink.frames, 2)
	assert.Empty(t, sink.frames[1], "second frame must be the zero-payload EOF marker")
	assert.True(t, e.ReadyForExitFrame() == false, "exit not yet reaped, so not ready to report")
}

func TestRegisterExecIOErrorsWithNoOutputFd(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	e := &Exec{ContainerID: "c1", ProcessID: "init", TTY: false}
	err = RegisterExecIO(r, e, &fakeSink{})
	assert.Error(t, err)
}
