// Package reactor implements the single-threaded readiness loop described in
// spec.md §4.B: one epoll instance multiplexing the control channel, the tty
// channel, and every exec's pty/pipe fds, with SIGCHLD delivery gated so it
// can never interleave with event-handler code touching the same state.
package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Disposition is what an fd's read callback learned about its own state.
// Modelled as an explicit return value rather than mutated shared parser
// state, per the Design Notes' guidance on coroutine-ish control flow.
type Disposition int

const (
	More Disposition = iota
	Complete
	Closed
)

// ReadFunc is invoked when an fd becomes readable (or, once Hup latches,
// in place of a read to let the codec observe EOF). It returns the
// disposition and any fatal error.
type ReadFunc func() (Disposition, error)

// WriteFunc is invoked when an fd becomes writable. It returns true once
// there is nothing left to drain, so the reactor can drop OUT interest.
type WriteFunc func() (drained bool, err error)

// Event is one registered fd. Interest is tracked explicitly rather than
// queried back from the kernel, matching the teacher's event-object style
// of owning its own fd and buffers.
type Event struct {
	Fd    int
	Read  ReadFunc
	Write WriteFunc
	hup   bool
	inOut bool // true once registered with EPOLLOUT interest
}

// Reactor is the event loop. It is a plain value constructed in main and
// threaded explicitly to every component that needs to register fds or
// adjust interest — there is no package-level singleton.
type Reactor struct {
	epfd   int
	events map[int]*Event
}

// New creates an epoll instance. SIGCHLD must already be blocked
// process-wide (see internal/reap) before the loop starts; RunOnce keeps it
// blocked and SIGCHLD arrives through a signalfd registered as an Event.
func New() (*Reactor, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{epfd: fd, events: make(map[int]*Event)}, nil
}

// Close releases the epoll instance.
func (r *Reactor) Close() error { return unix.Close(r.epfd) }

// Register adds fd with IN interest (and OUT too if wantOut is set).
func (r *Reactor) Register(ev *Event, wantOut bool) error {
	ev.inOut = wantOut
	r.events[ev.Fd] = ev
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, ev.Fd, epollEvent(ev.Fd, true, wantOut))
}

// SetWriteInterest toggles EPOLLOUT registration for an already-registered fd.
func (r *Reactor) SetWriteInterest(fd int, want bool) error {
	ev, ok := r.events[fd]
	if !ok {
		return fmt.Errorf("reactor: SetWriteInterest on unregistered fd %d", fd)
	}
	if ev.inOut == want {
		return nil
	}
	ev.inOut = want
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, epollEvent(fd, true, want))
}

// Deregister removes fd from the loop. The caller still owns closing it.
func (r *Reactor) Deregister(fd int) {
	unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(r.events, fd)
}

func epollEvent(fd int, wantIn, wantOut bool) *unix.EpollEvent {
	var mask uint32
	if wantIn {
		mask |= unix.EPOLLIN
	}
	if wantOut {
		mask |= unix.EPOLLOUT
	}
	return &unix.EpollEvent{Events: mask, Fd: int32(fd)}
}

// RunOnce performs one wait+dispatch iteration with the given timeout in
// milliseconds (-1 blocks indefinitely). SIGCHLD is never unmasked during
// the wait itself — per the Design Notes' preferred replacement for
// signal-handler-mutates-shared-state, it arrives as an ordinary readiness
// event on a signalfd registered like any other Event (see internal/reap
// and cmd/hyperstart), so the reactor's signal discipline reduces to "reap
// only happens inside a Read callback", with no separate masking dance.
func (r *Reactor) RunOnce(timeoutMs int) error {
	raw := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(r.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		ev, ok := r.events[fd]
		if !ok {
			continue
		}
		flags := raw[i].Events

		hupOnly := flags&(unix.EPOLLHUP|unix.EPOLLERR) != 0 && flags&unix.EPOLLIN == 0
		readable := flags&unix.EPOLLIN != 0 || hupOnly
		writable := flags&unix.EPOLLOUT != 0

		if readable && ev.Read != nil {
			disp, err := ev.Read()
			if err != nil {
				return err
			}
			if disp == Closed {
				ev.hup = true
			}
		}
		if writable && ev.Write != nil {
			drained, err := ev.Write()
			if err != nil {
				return err
			}
			if drained {
				r.SetWriteInterest(fd, false)
				if ev.hup {
					ev.hup = false
				}
			}
		}
	}
	return nil
}
