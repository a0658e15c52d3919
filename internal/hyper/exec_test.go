package hyper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfeldman/hyperstart/internal/protocol"
)

func TestSpawnRejectsEmptyArgv(t *testing.T) {
	_, err := Spawn(ExecSpec{ContainerID: protocol.HyperstartExecContainer}, "", nil)
	assert.Error(t, err)
}

func TestSpawnRunsProcessAndCapturesStdout(t *testing.T) {
	e, err := Spawn(ExecSpec{
		ContainerID: protocol.HyperstartExecContainer,
		ProcessID:   "p1",
		Args:        []string{"/bin/sh", "-c", "echo hi"},
		TTY:         false,
	}, "", nil)
	require.NoError(t, err)
	require.NotNil(t, e.StdoutR)
	assert.Greater(t, e.Pid, 0)
	assert.Equal(t, protocol.ExitRunning, e.State)

	deadline := time.Now().Add(2 * time.Second)
	var out []byte
	buf := make([]byte, 64)
	for time.Now().Before(deadline) && len(out) < 3 {
		n, rerr := e.StdoutR.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if rerr != nil {
			time.Sleep(5 * time.Millisecond)
		}
	}
	assert.Equal(t, "hi\n", string(out))
}
