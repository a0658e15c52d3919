package control

import (
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/xfeldman/hyperstart/internal/channel"
	"github.com/xfeldman/hyperstart/internal/hyper"
	"github.com/xfeldman/hyperstart/internal/protocol"
	"github.com/xfeldman/hyperstart/internal/reactor"
)

// socketpairFiles returns a connected pair of *os.File, standing in for the
// bidirectional virtio-serial device files the real transport opens.
func socketpairFiles(t *testing.T) (a, b *os.File) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	return os.NewFile(uintptr(fds[0]), "a"), os.NewFile(uintptr(fds[1]), "b")
}

func newTestChannelIO(t *testing.T, disp *Dispatcher) (io *ChannelIO, hostCtl, hostTty *os.File, r *reactor.Reactor) {
	t.Helper()
	guestCtl, hostCtl := socketpairFiles(t)
	guestTty, hostTty := socketpairFiles(t)

	r, err := reactor.New()
	require.NoError(t, err)

	io = NewChannelIO(guestCtl, guestTty, disp, r)
	disp.Reactor = r
	disp.Sink = io.TtySink()
	require.NoError(t, io.Register())
	return io, hostCtl, hostTty, r
}

func TestControlChannelVersionRoundTrip(t *testing.T) {
	// S1, driven end to end through the reactor + dispatcher.
	_, hostCtl, hostTty, r := newTestChannelIO(t, &Dispatcher{Pod: nil})
	defer hostCtl.Close()
	defer hostTty.Close()
	defer r.Close()

	wire := []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08}
	_, err := hostCtl.Write(wire)
	require.NoError(t, err)

	require.NoError(t, r.RunOnce(2000)) // reads the command, stages the reply
	require.NoError(t, r.RunOnce(2000)) // flushes the staged reply (EPOLLOUT)

	buf := make([]byte, 256)
	hostCtl.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := hostCtl.Read(buf)
	require.NoError(t, err)
	buf = buf[:n]

	// First frame out is the NEXT ack for the 8 bytes consumed (I5), then
	// the GETVERSION reply (ACK=11, payload=api version).
	nextType := binary.BigEndian.Uint32(buf[0:4])
	nextLen := binary.BigEndian.Uint32(buf[4:8])
	assert.Equal(t, protocol.Next, nextType)
	consumed := binary.BigEndian.Uint32(buf[8:12])
	assert.Equal(t, uint32(8), consumed) // I5: NEXT sums to bytes consumed

	rest := buf[nextLen:]
	ackType := binary.BigEndian.Uint32(rest[0:4])
	ackLen := binary.BigEndian.Uint32(rest[4:8])
	assert.Equal(t, protocol.Ack, ackType)
	assert.EqualValues(t, protocol.APIVersion, binary.BigEndian.Uint32(rest[8:ackLen]))
}

func TestTtyChannelUnknownSeqGetsGoodbye(t *testing.T) {
	// S4/B2
	_, _, hostTty, r := newTestChannelIO(t, &Dispatcher{Pod: hyper.NewPod()})
	defer hostTty.Close()
	defer r.Close()

	wire := channel.EncodeTty(0xAAAAAAAAAAAAAAAA, []byte{0x01})
	_, err := hostTty.Write(wire)
	require.NoError(t, err)
	require.NoError(t, r.RunOnce(2000)) // reads the frame, stages the goodbye
	require.NoError(t, r.RunOnce(2000)) // flushes the staged goodbye (EPOLLOUT)

	hostTty.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := hostTty.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, channel.TtyHeaderSize, n)
	assert.EqualValues(t, 0xAAAAAAAAAAAAAAAA, binary.BigEndian.Uint64(buf[0:8]))
}
