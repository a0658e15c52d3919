package hyper

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/xfeldman/hyperstart/internal/protocol"
	"github.com/xfeldman/hyperstart/internal/ptyio"
)

// ExecSpec is the minimal, already-JSON-decoded description of a process to
// spawn. JSON decoding itself is the external collaborator named in spec.md
// §1; by the time it reaches here it is a plain struct.
type ExecSpec struct {
	ContainerID string
	ProcessID   string
	Args        []string
	Env         []string
	Workdir     string
	TTY         bool
	Seq         uint64
}

// Spawn forks and execs one process per spec.md §4.D/§4.E step 4. rootPath,
// when non-empty, becomes the child's chroot (container init); empty means
// run in the guest's own filesystem (the virtual hyperstart-exec
// container). The returned Exec is not yet registered in any registry —
// the caller (NewContainer or the EXECCMD handler) does that.
func Spawn(spec ExecSpec, rootPath string, log *logrus.Entry) (*Exec, error) {
	if len(spec.Args) == 0 {
		return nil, fmt.Errorf("hyper: spawn %s/%s: empty argv", spec.ContainerID, spec.ProcessID)
	}

	e := &Exec{
		ContainerID: spec.ContainerID,
		ProcessID:   spec.ProcessID,
		Seq:         spec.Seq,
		TTY:         spec.TTY,
		State:       protocol.ExitRunning,
	}

	cmd := exec.Command(spec.Args[0], spec.Args[1:]...)
	cmd.Dir = spec.Workdir
	cmd.Env = append(append([]string{}, spec.Env...), protocol.DefaultPATH)

	// SysProcAttr per spec.md §4.E step 4 / §9 "clone + child entry
	// function": the child gets its own session and, for a concrete
	// container, pivots into its prepared rootfs. The original signal
	// mask is restored by the runtime's fork/exec path before exec(2)
	// runs, satisfying the "restores the parent's original signal mask"
	// requirement in §4.E.
	attr := &syscall.SysProcAttr{Setsid: true}
	if rootPath != "" {
		attr.Chroot = rootPath
		cmd.Dir = "/"
		if spec.Workdir != "" {
			cmd.Dir = spec.Workdir
		}
	}
	cmd.SysProcAttr = attr

	var master, childSlave *os.File
	var stdinR, stdinW, stdoutR, stdoutW *os.File
	var err error

	if spec.TTY {
		master, childSlave, err = ptyio.Allocate()
		if err != nil {
			return nil, err
		}
		cmd.Stdin = childSlave
		cmd.Stdout = childSlave
		cmd.Stderr = childSlave
	} else {
		stdinR, stdinW, stdoutR, stdoutW, err = ptyio.StdioPipes()
		if err != nil {
			return nil, err
		}
		cmd.Stdin = stdinR
		cmd.Stdout = stdoutW
		cmd.Stderr = stdoutW
	}

	if err := cmd.Start(); err != nil {
		closeAll(master, childSlave, stdinR, stdinW, stdoutR, stdoutW)
		return nil, fmt.Errorf("hyper: spawn %s/%s: %w", spec.ContainerID, spec.ProcessID, err)
	}

	// Parent no longer needs the child's end of the pty/pipes.
	if spec.TTY {
		childSlave.Close()
		e.PtyMaster = master
	} else {
		stdinR.Close()
		stdoutW.Close()
		e.StdinW = stdinW
		e.StdoutR = stdoutR
	}

	for _, f := range []*os.File{e.PtyMaster, e.StdinW, e.StdoutR} {
		if f != nil {
			ptyio.SetNonblock(f)
		}
	}

	e.Pid = cmd.Process.Pid
	if log != nil {
		log.WithFields(logrus.Fields{
			"container": spec.ContainerID,
			"process":   spec.ProcessID,
			"pid":       e.Pid,
			"tty":       spec.TTY,
		}).Info("exec spawned")
	}
	return e, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}
