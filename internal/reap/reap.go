// Package reap implements spec.md §4.H: child-subreaper setup and the
// SIGCHLD-driven waitpid drain loop, plus the signal-mask discipline from
// §4.B/§5 that keeps signal delivery and reactor-handler code from ever
// interleaving on shared state.
package reap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// BecomeSubreaper sets PR_SET_CHILD_SUBREAPER so orphaned descendants of any
// exec are re-parented to this process instead of PID 1's usual ancestor,
// per spec.md §4.H and §6.
func BecomeSubreaper() error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("reap: PR_SET_CHILD_SUBREAPER: %w", err)
	}
	return nil
}

// BlockSigchld blocks SIGCHLD process-wide. It must be called before
// NewSignalFD: a signalfd only ever delivers a signal that is blocked from
// its ordinary disposition, so blocking here is what turns SIGCHLD into a
// pollable event instead of an asynchronous interruption.
func BlockSigchld() error {
	var block unix.Sigset_t
	sigaddset(&block, int(unix.SIGCHLD))
	if err := unix.SigprocmaskSigset(unix.SIG_BLOCK, &block, nil); err != nil {
		return fmt.Errorf("reap: sigprocmask SIG_BLOCK: %w", err)
	}
	return nil
}

// NewSignalFD returns a file whose readability means "SIGCHLD is pending" —
// the self-pipe/signalfd substitute the Design Notes call for in place of a
// signal handler mutating shared state. The reactor registers it like any
// other fd; its Read callback calls Drain.
func NewSignalFD() (*os.File, error) {
	var set unix.Sigset_t
	sigaddset(&set, int(unix.SIGCHLD))
	fd, err := unix.Signalfd(-1, &set, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reap: signalfd: %w", err)
	}
	return os.NewFile(uintptr(fd), "sigchld-signalfd"), nil
}

// Drain1 consumes and discards one signalfd_siginfo record (128 bytes) from
// f so the reactor's next readiness check reflects only newer signals.
func Drain1(f *os.File) {
	buf := make([]byte, 128)
	f.Read(buf)
}

// sigaddset sets the bit for signal sig in the kernel sigset_t layout used
// by golang.org/x/sys/unix (a [16]uint64 word array on linux/amd64 and
// linux/arm64).
func sigaddset(set *unix.Sigset_t, sig int) {
	set.Val[(sig-1)/64] |= 1 << uint((sig-1)%64)
}

// ExitResult is one reaped child's outcome.
type ExitResult struct {
	Pid  int
	Code int
}

// Drain performs the WNOHANG waitpid(-1) loop described in spec.md §4.H,
// calling onExit for each reaped child. It must only be invoked from the
// reactor thread, from the signalfd Event's Read callback.
func Drain(onExit func(ExitResult)) error {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil {
			if err == unix.ECHILD {
				return nil
			}
			return fmt.Errorf("reap: wait4: %w", err)
		}
		if pid <= 0 {
			return nil
		}
		onExit(ExitResult{Pid: pid, Code: exitCode(ws)})
	}
}

// exitCode derives the reported exit status. DESIGN.md Open Question
// decision #1: signal-terminated execs report 128+signo (the conventional
// POSIX-shell convention), diverging from init.c's hyper_handle_exit, which
// leaves a signalled exec's code at its zero-initialised value.
func exitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return 0
	}
}
