// Package sandbox implements spec.md §4.F step 5: the sandbox-init clone
// child that anchors the pod's PID/MNT/IPC/UTS namespaces, and the
// bootstrap-pipe handshake the parent uses to learn its pid and readiness.
package sandbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// readyByte is written down the bootstrap pipe once the child has completed
// its setup, matching init.c's hyper_setup_pod_init pipe-based handshake.
const readyByte = 'R'

// Start clones the sandbox-init child and blocks until it signals READY or
// its end of the bootstrap pipe closes (a fatal setup error, per spec.md
// §4.F step 5's last sentence). On success it returns the child's pid in
// the VM's root pid namespace.
func Start(hostname string) (initPid int, err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("sandbox: bootstrap pipe: %w", err)
	}

	pid, _, errno := unix.RawSyscall6(
		unix.SYS_CLONE,
		uintptr(unix.SIGCHLD|unix.CLONE_NEWPID|unix.CLONE_NEWNS|unix.CLONE_NEWIPC|unix.CLONE_NEWUTS),
		0, 0, 0, 0, 0,
	)
	if errno != 0 {
		r.Close()
		w.Close()
		return 0, fmt.Errorf("sandbox: clone: %w", errno)
	}

	if pid == 0 {
		// Child: this goroutine's OS thread has become the namespace-root
		// process. runtime.Goexit-style unwinding is not possible across a
		// raw clone, so childMain never returns: it ends in reapLoopForever.
		r.Close()
		childMain(hostname, w)
		os.Exit(1) // unreachable; childMain parks in pause()
	}

	w.Close()
	buf := make([]byte, 1)
	n, readErr := r.Read(buf)
	r.Close()
	if n != 1 || buf[0] != readyByte {
		if readErr != nil {
			return 0, fmt.Errorf("sandbox: child closed bootstrap pipe before READY: %w", readErr)
		}
		return 0, fmt.Errorf("sandbox: child closed bootstrap pipe before READY")
	}
	return int(pid), nil
}

// childMain runs inside the new namespaces. It closes inherited reactor/
// channel fds, remounts /proc for the new pid namespace, sets the
// hostname, signals READY, and parks in a SIGCHLD-only wait loop — this
// child has no protocol state and never parses a frame.
func childMain(hostname string, readyPipe *os.File) {
	closeInheritedFds(readyPipe.Fd())

	unix.Unmount("/proc", unix.MNT_DETACH)
	os.MkdirAll("/proc", 0555)
	unix.Mount("proc", "/proc", "proc", 0, "")

	if hostname != "" {
		unix.Sethostname([]byte(hostname))
	}

	var empty unix.Sigset_t
	unix.SigprocmaskSigset(unix.SIG_SETMASK, &empty, nil)

	readyPipe.Write([]byte{readyByte})
	readyPipe.Close()

	reapLoopForever()
}

// closeInheritedFds closes fds 3 through 255 except keep, so the
// sandbox-init child does not hold the parent's channel/epoll fds open;
// fds numbered 256 and above are left open.
func closeInheritedFds(keep uintptr) {
	for fd := 3; fd < 256; fd++ {
		if uintptr(fd) == keep {
			continue
		}
		unix.Close(fd)
	}
}

// reapLoopForever is the sandbox-init child's entire lifetime: wait for
// SIGCHLD, reap whatever is reapable (this child is also a subreaper for
// its own namespace), repeat.
func reapLoopForever() {
	unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
	for {
		var ws unix.WaitStatus
		if _, err := unix.Wait4(-1, &ws, 0, nil); err == unix.ECHILD {
			unix.Pause()
		}
	}
}
