package control

import (
	"os"

	"github.com/xfeldman/hyperstart/internal/channel"
	"github.com/xfeldman/hyperstart/internal/hyper"
	"github.com/xfeldman/hyperstart/internal/protocol"
	"github.com/xfeldman/hyperstart/internal/reactor"
)

// ChannelIO wires the framed codec (internal/channel), the reactor
// (internal/reactor) and the dispatcher together: it is component A+B+G's
// integration point, matching init.c's hyper_ctlfd_read/hyper_ttyfd_read
// read callbacks registered against the epoll loop.
type ChannelIO struct {
	ctl *os.File
	tty *os.File

	ctlReader *channel.ControlReader
	ctlWrite  *channel.WriteBuffer
	ttyReader *channel.TtyReader
	ttyWrite  *channel.WriteBuffer

	disp *Dispatcher
	r    *reactor.Reactor

	stdinWriters map[uint64]*hyper.StdinWriter
}

// ttySink adapts ChannelIO to hyper.TtySink so internal/hyper never touches
// fds or framing directly.
type ttySink struct{ io *ChannelIO }

func (s ttySink) Enqueue(seq uint64, payload []byte) {
	s.io.ttyWrite.Enqueue(channel.EncodeTty(seq, payload))
	s.io.r.SetWriteInterest(int(s.io.tty.Fd()), true)
}

func NewChannelIO(ctl, tty *os.File, disp *Dispatcher, r *reactor.Reactor) *ChannelIO {
	return &ChannelIO{
		ctl:          ctl,
		tty:          tty,
		ctlReader:    channel.NewControlReader(),
		ctlWrite:     channel.NewWriteBuffer(64 * 1024),
		ttyReader:    channel.NewTtyReader(),
		ttyWrite:     channel.NewWriteBuffer(256 * 1024),
		disp:         disp,
		r:            r,
		stdinWriters: make(map[uint64]*hyper.StdinWriter),
	}
}

// TtySink exposes the tty-channel outbound sink for internal/hyper's
// RegisterExecIO calls.
func (io *ChannelIO) TtySink() hyper.TtySink { return ttySink{io} }

// Register wires both channel fds into the reactor.
func (io *ChannelIO) Register() error {
	ctlEv := &reactor.Event{
		Fd:    int(io.ctl.Fd()),
		Read:  io.readControl,
		Write: io.writeControl,
	}
	if err := io.r.Register(ctlEv, false); err != nil {
		return err
	}
	ttyEv := &reactor.Event{
		Fd:    int(io.tty.Fd()),
		Read:  io.readTty,
		Write: io.writeTty,
	}
	return io.r.Register(ttyEv, false)
}

func (io *ChannelIO) readControl() (reactor.Disposition, error) {
	buf := make([]byte, 16*1024)
	n, err := io.ctl.Read(buf)
	if n > 0 {
		// Emit NEXT ack for the bytes just consumed (§4.A/§6/I5), before
		// any reply a completed frame might also produce.
		io.ctlWrite.Enqueue(channel.EncodeNext(protocol.Next, uint32(n)))
		io.r.SetWriteInterest(int(io.ctl.Fd()), true)

		frames, feedErr := io.ctlReader.Feed(buf[:n])
		for _, f := range frames {
			reply := io.disp.Dispatch(f.Type, f.Payload)
			io.ctlWrite.Enqueue(channel.EncodeControl(reply.Type, reply.Payload))
			io.r.SetWriteInterest(int(io.ctl.Fd()), true)
		}
		if feedErr != nil {
			return reactor.Closed, feedErr
		}
	}
	if n == 0 {
		return reactor.Closed, nil
	}
	if err != nil && !isTemporary(err) {
		return reactor.Closed, nil
	}
	return reactor.More, nil
}

func (io *ChannelIO) writeControl() (bool, error) {
	if !io.ctlWrite.Pending() {
		return true, nil
	}
	n, err := io.ctl.Write(io.ctlWrite.Bytes())
	if n > 0 {
		io.ctlWrite.Advance(n)
	}
	if err != nil && !isTemporary(err) {
		return true, err
	}
	return !io.ctlWrite.Pending(), nil
}

func (io *ChannelIO) readTty() (reactor.Disposition, error) {
	buf := make([]byte, 16*1024)
	n, err := io.tty.Read(buf)
	if n > 0 {
		frames, feedErr := io.ttyReader.Feed(buf[:n])
		for _, f := range frames {
			io.routeHostFrame(f)
		}
		if feedErr != nil {
			return reactor.Closed, feedErr
		}
	}
	if n == 0 {
		return reactor.Closed, nil
	}
	if err != nil && !isTemporary(err) {
		return reactor.Closed, nil
	}
	return reactor.More, nil
}

func (io *ChannelIO) writeTty() (bool, error) {
	if !io.ttyWrite.Pending() {
		return true, nil
	}
	n, err := io.tty.Write(io.ttyWrite.Bytes())
	if n > 0 {
		io.ttyWrite.Advance(n)
	}
	if err != nil && !isTemporary(err) {
		return true, err
	}
	return !io.ttyWrite.Pending(), nil
}

// routeHostFrame handles a host→guest tty-channel frame: B2 (unknown seq →
// goodbye reply) and the stdin-forwarding / close-latch policy of §4.D.
func (io *ChannelIO) routeHostFrame(f channel.TtyFrame) {
	e, ok := io.disp.Pod.FindExecBySeq(f.Seq)
	if !ok {
		io.ttyWrite.Enqueue(channel.EncodeTty(f.Seq, nil)) // B2
		io.r.SetWriteInterest(int(io.tty.Fd()), true)
		return
	}

	if e.TTY {
		if len(f.Payload) > 0 && e.PtyMaster != nil {
			e.PtyMaster.Write(f.Payload)
		}
		return
	}

	w, ok := io.stdinWriters[f.Seq]
	if !ok {
		if e.StdinW == nil {
			return
		}
		w = hyper.NewStdinWriter(e.StdinW)
		io.stdinWriters[f.Seq] = w
		ev := &reactor.Event{Fd: int(e.StdinW.Fd()), Write: w.Flush}
		io.r.Register(ev, false)
	}
	w.Feed(f.Payload)
	io.r.SetWriteInterest(int(e.StdinW.Fd()), true)
}

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}
	return false
}
