package hyper

import "github.com/xfeldman/hyperstart/internal/protocol"

// HasContainer reports whether id is present, per invariant I1/B3.
func (p *Pod) HasContainer(id string) bool {
	_, ok := p.FindContainer(id)
	return ok
}

// FindContainer does the linear-scan-by-id lookup spec.md §4.C describes as
// acceptable given the small N of containers per pod.
func (p *Pod) FindContainer(id string) (*Container, bool) {
	for _, c := range p.Containers {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// FindExec looks up an exec by (container, process) — O(n) over containers
// and pod-level execs, per spec.md §4.C.
func (p *Pod) FindExec(containerID, processID string) (*Exec, bool) {
	if containerID == protocol.HyperstartExecContainer {
		for _, e := range p.Execs {
			if e.ProcessID == processID {
				return e, true
			}
		}
		return nil, false
	}
	c, ok := p.FindContainer(containerID)
	if !ok || c.Exec == nil {
		return nil, false
	}
	if c.Exec.ProcessID == processID {
		return c.Exec, true
	}
	return nil, false
}

// FindExecBySeq does the linear-scan-by-seq lookup used by the tty
// multiplexer (spec.md §4.C), over every container's init exec and every
// pod-level exec.
func (p *Pod) FindExecBySeq(seq uint64) (*Exec, bool) {
	for _, c := range p.Containers {
		if c.Exec != nil && c.Exec.Seq == seq {
			return c.Exec, true
		}
	}
	for _, e := range p.Execs {
		if e.Seq == seq {
			return e, true
		}
	}
	return nil, false
}

// FindExecByPid supports the SIGCHLD reap path (spec.md §4.H): look up
// whichever exec owns a just-reaped pid.
func (p *Pod) FindExecByPid(pid int) (*Exec, bool) {
	for _, c := range p.Containers {
		if c.Exec != nil && c.Exec.Pid == pid {
			return c.Exec, true
		}
	}
	for _, e := range p.Execs {
		if e.Pid == pid {
			return e, true
		}
	}
	return nil, false
}

// AddContainer appends c in startup order (I3-adjacent ordering requirement
// for §4.F step 7).
func (p *Pod) AddContainer(c *Container) { p.Containers = append(p.Containers, c) }

// removeContainerByID deletes c from the pod's slice, per B4 (only valid
// once exited; the caller is responsible for checking that before calling
// this — see the control-command handler in container.go).
func (p *Pod) removeContainerByID(id string) bool {
	for i, c := range p.Containers {
		if c.ID == id {
			p.Containers = append(p.Containers[:i], p.Containers[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveExecBySeq drops a pod-level exec once its exit has been fully
// reported and stdout has drained (spec.md §4.C removal rule).
func (p *Pod) RemoveExecBySeq(seq uint64) bool {
	for i, e := range p.Execs {
		if e.Seq == seq {
			p.Execs = append(p.Execs[:i], p.Execs[i+1:]...)
			return true
		}
	}
	return false
}

// LiveCount recomputes invariant I2: the number of execs with Pid>0 and
// State==ExitRunning. Used by tests.
func (p *Pod) LiveCount() int {
	n := 0
	for _, c := range p.Containers {
		if c.Exec != nil && c.Exec.Pid > 0 && c.Exec.State == protocol.ExitRunning {
			n++
		}
	}
	for _, e := range p.Execs {
		if e.Pid > 0 && e.State == protocol.ExitRunning {
			n++
		}
	}
	return n
}
