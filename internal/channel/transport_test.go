package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelPathsPerTransport(t *testing.T) {
	ctl, tty := ChannelPaths(TransportVirtioSerial)
	assert.Equal(t, "/dev/virtio-ports/hyper.channel.0", ctl)
	assert.Equal(t, "/dev/virtio-ports/hyper.channel.1", tty)

	ctl, tty = ChannelPaths(TransportVBoxSerial)
	assert.Equal(t, "/dev/ttyS0", ctl)
	assert.Equal(t, "/dev/ttyS1", tty)
}

func TestOpenErrorsOnMissingDevice(t *testing.T) {
	_, _, err := Open(TransportVirtioSerial)
	assert.Error(t, err, "no virtio-serial device exists in a plain test sandbox")
}
