package protocol

import "github.com/arcadenet/kaillera/internal/constants"

// Sender builds outbound datagrams with redundancy: every datagram carries
// the new message plus up to two previous ones, newest first, so a single
// lost datagram rarely loses a logical message. Each client owns one
// Sender; callers serialize access through the state lock.
type Sender struct {
	recent [][]byte // last MaxBundledMessages encoded messages, oldest first
	seq    uint16
}

// NewSender returns a Sender with sequence counter 0.
func NewSender() *Sender {
	return &Sender{recent: make([][]byte, 0, constants.MaxBundledMessages)}
}

// Seq returns the next sequence number the Sender will assign.
func (s *Sender) Seq() uint16 { return s.seq }

// Pack encodes payload as the next message and returns the full datagram:
// count (1B) followed by the retained messages newest first.
func (s *Sender) Pack(typ byte, payload []byte) []byte {
	msg := EncodeMessage(typ, s.seq, payload)
	s.seq++ // wraps at 2^16 by u16 arithmetic

	if len(s.recent) >= constants.MaxBundledMessages {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:constants.MaxBundledMessages-1]
	}
	s.recent = append(s.recent, msg)

	size := 1
	for _, m := range s.recent {
		size += len(m)
	}

	out := make([]byte, 0, size)
	out = append(out, byte(len(s.recent)))
	for i := len(s.recent) - 1; i >= 0; i-- {
		out = append(out, s.recent[i]...)
	}
	return out
}
