package hyper

import (
	"fmt"
	"io"
	"os"

	"github.com/xfeldman/hyperstart/internal/channel"
	"github.com/xfeldman/hyperstart/internal/reactor"
)

// stdinBufferCap bounds the host→child staging buffer per exec. Overflow is
// handled by truncation (DESIGN.md Open Question decision #2), not by
// back-pressuring the tty channel.
const stdinBufferCap = 64 * 1024

// TtySink is where forwarded frames are staged for the host. It is the tty
// channel's outbound WriteBuffer, passed in rather than owned here so
// internal/hyper never talks to the fd directly.
type TtySink interface {
	Enqueue(seq uint64, payload []byte) // appends an encoded tty frame
}

// RegisterExecIO wires an exec's pty-master (or stdout pipe) into the
// reactor as a read source that frames bytes onto the tty channel. It does
// not register a tty=false exec's stdin pipe; internal/control registers
// that (through a StdinWriter) when the first host frame for the exec's
// seq arrives. This is the per-fd state machine the Design Notes ask for in place of a
// goroutine fan-out.
func RegisterExecIO(r *reactor.Reactor, e *Exec, sink TtySink) error {
	readFd := e.PtyMaster
	if !e.TTY {
		readFd = e.StdoutR
	}
	if readFd == nil {
		return fmt.Errorf("hyper: RegisterExecIO: no output fd for %s/%s", e.ContainerID, e.ProcessID)
	}

	buf := make([]byte, 32*1024)
	ev := &reactor.Event{
		Fd: int(readFd.Fd()),
		Read: func() (reactor.Disposition, error) {
			n, err := readFd.Read(buf)
			if n > 0 {
				sink.Enqueue(e.Seq, append([]byte(nil), buf[:n]...))
			}
			if err == io.EOF || n == 0 {
				sink.Enqueue(e.Seq, nil) // zero-payload EOF frame, §4.D
				e.MarkStdoutEOF()
				EmitExitIfReady(e, sink) // in case the exit was reaped first
				return reactor.Closed, nil
			}
			if err != nil && !isWouldBlock(err) {
				return reactor.Closed, nil
			}
			return reactor.More, nil
		},
	}
	return r.Register(ev, false)
}

// StdinWriter buffers host→child bytes for a tty=false exec's stdin pipe and
// applies the truncation-on-overflow and close-latch policy of spec.md §4.D.
type StdinWriter struct {
	f        *os.File
	buf      *channel.WriteBuffer
	closeReq bool
}

func NewStdinWriter(f *os.File) *StdinWriter {
	return &StdinWriter{f: f, buf: channel.NewWriteBuffer(stdinBufferCap)}
}

// Feed stages host-supplied bytes. An empty payload latches the close
// request: once staged bytes drain, the fd is closed instead of written to
// again.
func (s *StdinWriter) Feed(payload []byte) {
	if len(payload) == 0 {
		s.closeReq = true
		return
	}
	s.buf.Enqueue(payload) // truncates silently past capacity, per policy
}

// Flush is the reactor's write callback: drain as much as the fd accepts.
func (s *StdinWriter) Flush() (drained bool, err error) {
	if s.buf.Pending() {
		n, err := s.f.Write(s.buf.Bytes())
		if n > 0 {
			s.buf.Advance(n)
		}
		if err != nil && !isWouldBlock(err) {
			return true, err
		}
	}
	if !s.buf.Pending() && s.closeReq {
		s.f.Close()
		return true, nil
	}
	return !s.buf.Pending(), nil
}

func isWouldBlock(err error) bool {
	type wouldBlocker interface{ Temporary() bool }
	if wb, ok := err.(wouldBlocker); ok {
		return wb.Temporary()
	}
	return false
}
