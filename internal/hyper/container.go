package hyper

import (
	"fmt"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/xfeldman/hyperstart/internal/protocol"
)

// ContainerSpec is the already-JSON-decoded NEWCONTAINER body.
type ContainerSpec struct {
	ID      string
	Rootfs  []byte // opaque, forwarded verbatim to RootfsSetup
	Args    []string
	Env     []string
	Workdir string
	TTY     bool
	Seq     uint64
}

// NewContainer implements spec.md §4.E's NEWCONTAINER handler.
func (p *Pod) NewContainer(spec ContainerSpec, rootfs RootfsSetup, log *logrus.Entry) (*Container, error) {
	if p.HasContainer(spec.ID) {
		return nil, fmt.Errorf("hyper: container %q already exists", spec.ID) // B3
	}

	rootPath, err := rootfs.Setup(spec.ID, spec.Rootfs)
	if err != nil {
		return nil, fmt.Errorf("hyper: container %q setup: %w", spec.ID, err)
	}

	e, err := Spawn(ExecSpec{
		ContainerID: spec.ID,
		ProcessID:   "init",
		Args:        spec.Args,
		Env:         spec.Env,
		Workdir:     spec.Workdir,
		TTY:         spec.TTY,
		Seq:         spec.Seq,
	}, rootPath, log)
	if err != nil {
		rootfs.Cleanup(spec.ID, rootPath)
		return nil, err
	}

	c := &Container{ID: spec.ID, RootPath: rootPath, Exec: e}
	if ns, nsErr := os.Open(fmt.Sprintf("/proc/%d/ns/mnt", e.Pid)); nsErr == nil {
		c.NS = ns
	}
	p.AddContainer(c)
	p.Remains++
	return c, nil
}

// RemoveContainer implements B4: only an exited container may be removed.
func (p *Pod) RemoveContainer(id string, rootfs RootfsSetup) error {
	c, ok := p.FindContainer(id)
	if !ok {
		return fmt.Errorf("hyper: container %q not found", id)
	}
	if c.Exec == nil || c.Exec.State != protocol.ExitExited && c.Exec.State != protocol.ExitReported {
		return fmt.Errorf("hyper: container %q is still running", id)
	}
	if c.NS != nil {
		c.NS.Close()
	}
	rootfs.Cleanup(id, c.RootPath)
	p.removeContainerByID(id)
	return nil
}

// KillContainer sends sig to a container's init process.
func (p *Pod) KillContainer(id string, sig syscall.Signal) error {
	c, ok := p.FindContainer(id)
	if !ok {
		return fmt.Errorf("hyper: container %q not found", id)
	}
	if c.Exec == nil || c.Exec.Pid <= 0 {
		return fmt.Errorf("hyper: container %q has no running process", id)
	}
	return syscall.Kill(c.Exec.Pid, sig)
}

// SignalProcess delivers sig to a named (container, process) exec.
func (p *Pod) SignalProcess(containerID, processID string, sig syscall.Signal) error {
	e, ok := p.FindExec(containerID, processID)
	if !ok {
		return fmt.Errorf("hyper: exec %s/%s not found", containerID, processID)
	}
	if e.Pid <= 0 {
		return fmt.Errorf("hyper: exec %s/%s has no running process", containerID, processID)
	}
	return syscall.Kill(e.Pid, sig)
}
