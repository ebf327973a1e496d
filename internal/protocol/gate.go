package protocol

// Gate is the per-peer receive de-duplicator. Inbound datagrams repeat the
// last few messages for loss recovery; the gate admits each logical message
// exactly once and in declared-sequence order.
type Gate struct {
	next uint16
}

// NewGate returns a Gate expecting sequence 0.
func NewGate() *Gate {
	return &Gate{}
}

// Next returns the next expected sequence number.
func (g *Gate) Next() uint16 { return g.next }

// Filter returns the messages of one datagram that should be handled, in
// admission order.
//
// A datagram holding exactly one message with seq 0 resets the gate: this
// is how stock clients re-register after a restart, and it must be matched
// exactly (a seq-0 copy inside a redundancy bundle does not reset).
// Messages arrive newest first, so candidates are scanned back to front;
// a message is admitted iff its seq equals the next expected value, which
// then advances (wrapping with u16 arithmetic). Everything else is an
// already-processed or premature copy and is dropped.
func (g *Gate) Filter(msgs []Message) []Message {
	if len(msgs) == 1 && msgs[0].Seq == 0 {
		g.next = 0
	}

	admitted := make([]Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Seq == g.next {
			admitted = append(admitted, msgs[i])
			g.next++
		}
	}
	return admitted
}
