package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/arcadenet/kaillera/internal/constants"
)

// ErrMalformedFrame is wrapped by every codec parse failure.
var ErrMalformedFrame = errors.New("malformed frame")

// ParseDatagram splits one UDP datagram into its bundled messages.
// Wire format: count (1B), then count messages of
// seq (2B LE) + length (2B LE) + type (1B) + payload (length-1 bytes).
// Messages appear newest first; see Gate for the admission order.
func ParseDatagram(data []byte) ([]Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrMalformedFrame)
	}

	count := int(data[0])
	rest := data[1:]

	msgs := make([]Message, 0, count)
	for i := 0; i < count; i++ {
		if len(rest) < constants.MessageHeaderSize {
			return nil, fmt.Errorf("%w: incomplete header for message %d/%d (%d bytes left)",
				ErrMalformedFrame, i+1, count, len(rest))
		}

		seq := binary.LittleEndian.Uint16(rest[0:2])
		length := binary.LittleEndian.Uint16(rest[2:4])
		typ := rest[4]
		rest = rest[constants.MessageHeaderSize:]

		if length < 1 {
			return nil, fmt.Errorf("%w: message length %d < 1", ErrMalformedFrame, length)
		}
		payloadLen := int(length) - 1
		if len(rest) < payloadLen {
			return nil, fmt.Errorf("%w: payload %d exceeds remaining %d bytes",
				ErrMalformedFrame, payloadLen, len(rest))
		}

		payload := make([]byte, payloadLen)
		copy(payload, rest[:payloadLen])
		rest = rest[payloadLen:]

		msgs = append(msgs, Message{Seq: seq, Type: typ, Data: payload})
	}

	return msgs, nil
}

// EncodeMessage serializes one message with its header.
func EncodeMessage(typ byte, seq uint16, payload []byte) []byte {
	buf := make([]byte, 0, constants.MessageHeaderSize+len(payload))
	return AppendMessage(buf, typ, seq, payload)
}

// AppendMessage appends one serialized message to buf and returns the
// extended slice.
func AppendMessage(buf []byte, typ byte, seq uint16, payload []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, seq)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)+1))
	buf = append(buf, typ)
	buf = append(buf, payload...)
	return buf
}
