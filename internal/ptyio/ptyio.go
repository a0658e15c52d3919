// Package ptyio allocates the pty master (or stdin/stdout pipe pair) for one
// exec and resizes ptys, per spec.md §4.D. It does not forward bytes: the
// per-fd read/write callbacks that move data to and from the tty channel
// live in internal/hyper (forward.go).
package ptyio

import (
	"fmt"
	"os"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Allocate opens a pty pair for a tty=true exec. The slave is handed to the
// child as stdin/stdout/stderr; the master stays with the reactor.
func Allocate() (master, slave *os.File, err error) {
	master, slave, err = pty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("ptyio: open pty: %w", err)
	}
	return master, slave, nil
}

// Resize applies a WINSIZE command to the pty master, per spec.md §4.D.
func Resize(master *os.File, rows, cols uint16) error {
	return pty.Setsize(master, &pty.Winsize{Rows: rows, Cols: cols})
}

// StdioPipes opens the stdin and stdout(+stderr) pipe pairs for a tty=false
// exec. stdinR/stdoutW go to the child; stdinW/stdoutR stay with the
// reactor.
func StdioPipes() (stdinR, stdinW, stdoutR, stdoutW *os.File, err error) {
	stdinR, stdinW, err = os.Pipe()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("ptyio: stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err = os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, nil, nil, nil, fmt.Errorf("ptyio: stdout pipe: %w", err)
	}
	return stdinR, stdinW, stdoutR, stdoutW, nil
}

// SetNonblock marks fd non-blocking, required before registering it with
// the reactor (spec.md §5: "all fds are non-blocking where they carry
// streamed data").
func SetNonblock(f *os.File) error {
	return unix.SetNonblock(int(f.Fd()), true)
}

// CloseOnExec is a convenience matching the teacher's habit of being
// explicit about fd inheritance across exec boundaries.
func CloseOnExec(f *os.File) {
	syscall.CloseOnExec(int(f.Fd()))
}
