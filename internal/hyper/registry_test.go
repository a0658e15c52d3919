package hyper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xfeldman/hyperstart/internal/protocol"
)

func TestFindContainerAndHasContainer(t *testing.T) {
	p := NewPod()
	c1 := &Container{ID: "c1"}
	p.AddContainer(c1)

	assert.True(t, p.HasContainer("c1"))
	assert.False(t, p.HasContainer("c2"))

	got, ok := p.FindContainer("c1")
	assert.True(t, ok)
	assert.Same(t, c1, got)
}

func TestFindExecByContainerInitAndPodLevel(t *testing.T) {
	p := NewPod()
	c1 := &Container{ID: "c1", Exec: &Exec{ContainerID: "c1", ProcessID: "init", Seq: 1}}
	p.AddContainer(c1)
	podExec := &Exec{ContainerID: protocol.HyperstartExecContainer, ProcessID: "exec-9", Seq: 9}
	p.Execs = append(p.Execs, podExec)

	e, ok := p.FindExec("c1", "init")
	assert.True(t, ok)
	assert.Same(t, c1.Exec, e)

	_, ok = p.FindExec("c1", "not-init")
	assert.False(t, ok)

	e, ok = p.FindExec(protocol.HyperstartExecContainer, "exec-9")
	assert.True(t, ok)
	assert.Same(t, podExec, e)
}

func TestFindExecBySeqAndByPid(t *testing.T) {
	p := NewPod()
	c1 := &Container{ID: "c1", Exec: &Exec{Seq: 1, Pid: 100}}
	p.AddContainer(c1)
	podExec := &Exec{Seq: 2, Pid: 200}
	p.Execs = append(p.Execs, podExec)

	e, ok := p.FindExecBySeq(2)
	assert.True(t, ok)
	assert.Same(t, podExec, e)

	e, ok = p.FindExecByPid(100)
	assert.True(t, ok)
	assert.Same(t, c1.Exec, e)

	_, ok = p.FindExecBySeq(999)
	assert.False(t, ok)
}

func TestRemoveContainerByIDAndB3DuplicateCheck(t *testing.T) {
	p := NewPod()
	p.AddContainer(&Container{ID: "c1"})
	p.AddContainer(&Container{ID: "c2"})

	assert.True(t, p.removeContainerByID("c1"))
	assert.False(t, p.HasContainer("c1"))
	assert.True(t, p.HasContainer("c2"))
	assert.False(t, p.removeContainerByID("c1"), "removing an absent id reports false")
}

func TestRemoveExecBySeq(t *testing.T) {
	p := NewPod()
	p.Execs = append(p.Execs, &Exec{Seq: 5})
	assert.True(t, p.RemoveExecBySeq(5))
	assert.Empty(t, p.Execs)
	assert.False(t, p.RemoveExecBySeq(5))
}

func TestLiveCountMatchesI2(t *testing.T) {
	p := NewPod()
	p.AddContainer(&Container{ID: "c1", Exec: &Exec{Pid: 100, State: protocol.ExitRunning}})
	p.AddContainer(&Container{ID: "c2", Exec: &Exec{Pid: 101, State: protocol.ExitExited}})
	p.Execs = append(p.Execs, &Exec{Pid: 200, State: protocol.ExitRunning})
	p.Execs = append(p.Execs, &Exec{Pid: 0, State: protocol.ExitRunning}) // pre-fork, not live

	assert.Equal(t, 2, p.LiveCount())
}
