package channel

import (
	"encoding/binary"
	"fmt"
)

// ControlFrame is one decoded control-channel message: an 8-byte header
// (4-byte BE type, 4-byte BE length including header) followed by payload.
type ControlFrame struct {
	Type    uint32
	Payload []byte
}

// maxControlFrame bounds a single control frame, mirroring the original
// rbuf_size ceiling so a corrupt or hostile length field cannot force an
// unbounded allocation.
const maxControlFrame = 10240

// ControlReader implements the header-then-payload state machine from
// spec.md §4.A: accumulate the header, grow the buffer to fit length (+1
// byte reserved for in-place NUL termination of string payloads), then
// accumulate the payload and emit a frame.
type ControlReader struct {
	buf []byte // bytes accumulated for the frame currently being read
}

// NewControlReader returns a reader ready to decode the first frame.
func NewControlReader() *ControlReader {
	return &ControlReader{buf: make([]byte, 0, CtlHeaderSize)}
}

// Feed appends a chunk just read from the control fd and returns every frame
// that chunk completed. The caller is responsible for emitting a NEXT ack of
// len(chunk) bytes regardless of how many frames (if any) this call yields.
func (r *ControlReader) Feed(chunk []byte) ([]ControlFrame, error) {
	r.buf = append(r.buf, chunk...)

	var frames []ControlFrame
	for {
		if len(r.buf) < CtlHeaderSize {
			return frames, nil
		}
		length := binary.BigEndian.Uint32(r.buf[4:8])
		if length < CtlHeaderSize {
			return frames, fmt.Errorf("channel: control frame length %d below header size", length)
		}
		if length > maxControlFrame {
			return frames, fmt.Errorf("channel: control frame length %d exceeds max %d", length, maxControlFrame)
		}
		if uint32(len(r.buf)) < length {
			// Not all of the frame has arrived yet; B1: reserve one extra
			// byte of capacity beyond length so a later string payload can
			// be NUL-terminated in place without a further grow.
			if cap(r.buf) < int(length)+1 {
				grown := make([]byte, len(r.buf), length+1)
				copy(grown, r.buf)
				r.buf = grown
			}
			return frames, nil
		}

		frame := ControlFrame{
			Type:    binary.BigEndian.Uint32(r.buf[0:4]),
			Payload: append([]byte(nil), r.buf[CtlHeaderSize:length]...),
		}
		frames = append(frames, frame)

		rest := append([]byte(nil), r.buf[length:]...)
		r.buf = rest
	}
}

// EncodeControl serialises a type+payload into wire bytes.
func EncodeControl(typ uint32, payload []byte) []byte {
	length := uint32(CtlHeaderSize + len(payload))
	out := make([]byte, length)
	binary.BigEndian.PutUint32(out[0:4], typ)
	binary.BigEndian.PutUint32(out[4:8], length)
	copy(out[CtlHeaderSize:], payload)
	return out
}

// EncodeNext builds a NEXT ack frame reporting n bytes consumed.
func EncodeNext(nextType uint32, n uint32) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, n)
	return EncodeControl(nextType, body)
}

const CtlHeaderSize = 8
