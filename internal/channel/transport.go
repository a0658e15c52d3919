package channel

import (
	"fmt"
	"os"
)

// Transport selects how the control/tty byte streams are discovered, per
// spec.md §6: virtio-serial ports opened by symbolic name (the default), or
// fixed tty device paths (the VirtualBox variant from
// original_source/src/init.c's WITH_VBOX branch).
type Transport int

const (
	TransportVirtioSerial Transport = iota
	TransportVBoxSerial
)

// ChannelPaths resolves the control and tty device paths for a transport.
func ChannelPaths(t Transport) (ctlPath, ttyPath string) {
	switch t {
	case TransportVBoxSerial:
		return "/dev/ttyS0", "/dev/ttyS1"
	default:
		return "/dev/virtio-ports/hyper.channel.0", "/dev/virtio-ports/hyper.channel.1"
	}
}

// Open opens both channel device files in read-write mode.
func Open(t Transport) (ctl *os.File, tty *os.File, err error) {
	ctlPath, ttyPath := ChannelPaths(t)
	ctl, err = os.OpenFile(ctlPath, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("channel: open control device %s: %w", ctlPath, err)
	}
	tty, err = os.OpenFile(ttyPath, os.O_RDWR, 0)
	if err != nil {
		ctl.Close()
		return nil, nil, fmt.Errorf("channel: open tty device %s: %w", ttyPath, err)
	}
	return ctl, tty, nil
}
