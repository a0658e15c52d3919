package channel

import (
	"encoding/binary"
	"fmt"
)

// TtyHeaderSize is the fixed tty-frame header: 8-byte BE seq + 4-byte BE length.
const TtyHeaderSize = 12

const maxTtyFrame = 1 << 20

// TtyFrame is one decoded tty-channel message. A frame with Length == 12 and
// an empty Payload is the goodbye/EOF marker described in spec.md §4.A.
type TtyFrame struct {
	Seq     uint64
	Payload []byte
}

// IsGoodbye reports whether this frame carries no payload — either an
// exec's stdout EOF (server→host) or an unknown-seq reply (server→host, in
// response to a host→server frame naming a seq the server does not track).
func (f TtyFrame) IsGoodbye() bool { return len(f.Payload) == 0 }

// TtyReader decodes the tty channel's header-then-payload frames. Unlike the
// control channel there is no NEXT ack and no buffer-grow reservation; the
// frame size ceiling here just guards against a corrupt length field.
type TtyReader struct {
	buf []byte
}

func NewTtyReader() *TtyReader {
	return &TtyReader{buf: make([]byte, 0, TtyHeaderSize)}
}

func (r *TtyReader) Feed(chunk []byte) ([]TtyFrame, error) {
	r.buf = append(r.buf, chunk...)

	var frames []TtyFrame
	for {
		if len(r.buf) < TtyHeaderSize {
			return frames, nil
		}
		length := binary.BigEndian.Uint32(r.buf[8:12])
		if length < TtyHeaderSize {
			return frames, fmt.Errorf("channel: tty frame length %d below header size", length)
		}
		if length > maxTtyFrame {
			return frames, fmt.Errorf("channel: tty frame length %d exceeds max %d", length, maxTtyFrame)
		}
		if uint32(len(r.buf)) < length {
			return frames, nil
		}

		frame := TtyFrame{
			Seq:     binary.BigEndian.Uint64(r.buf[0:8]),
			Payload: append([]byte(nil), r.buf[TtyHeaderSize:length]...),
		}
		frames = append(frames, frame)
		r.buf = append([]byte(nil), r.buf[length:]...)
	}
}

// EncodeTty serialises a seq+payload tty frame. A nil/empty payload
// produces the 12-byte goodbye frame.
func EncodeTty(seq uint64, payload []byte) []byte {
	length := uint32(TtyHeaderSize + len(payload))
	out := make([]byte, length)
	binary.BigEndian.PutUint64(out[0:8], seq)
	binary.BigEndian.PutUint32(out[8:12], length)
	copy(out[TtyHeaderSize:], payload)
	return out
}
