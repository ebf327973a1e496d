package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(seq uint16) Message {
	return Message{Seq: seq, Type: TypeGameData, Data: []byte{byte(seq)}}
}

func TestGate_AdmitsInOrder(t *testing.T) {
	g := NewGate()

	// Datagrams as a Sender produces them: newest first, with redundancy.
	admitted := g.Filter([]Message{msg(0)})
	require.Len(t, admitted, 1)
	assert.Equal(t, uint16(0), admitted[0].Seq)

	admitted = g.Filter([]Message{msg(1), msg(0)})
	require.Len(t, admitted, 1)
	assert.Equal(t, uint16(1), admitted[0].Seq)

	admitted = g.Filter([]Message{msg(2), msg(1), msg(0)})
	require.Len(t, admitted, 1)
	assert.Equal(t, uint16(2), admitted[0].Seq)
}

func TestGate_RecoversLostDatagram(t *testing.T) {
	g := NewGate()
	g.Filter([]Message{msg(0)})

	// Datagram with seq 1 lost; the next one still carries it.
	admitted := g.Filter([]Message{msg(2), msg(1), msg(0)})
	require.Len(t, admitted, 2)
	assert.Equal(t, uint16(1), admitted[0].Seq)
	assert.Equal(t, uint16(2), admitted[1].Seq)
	assert.Equal(t, uint16(3), g.Next())
}

func TestGate_DropsDuplicatesAndFutures(t *testing.T) {
	g := NewGate()
	g.Filter([]Message{msg(0)})
	g.Filter([]Message{msg(1), msg(0)})
	require.Equal(t, uint16(2), g.Next())

	// A pure retransmission admits nothing.
	assert.Empty(t, g.Filter([]Message{msg(1), msg(0)}))
	assert.Equal(t, uint16(2), g.Next())

	// A gap too wide to bridge admits nothing and leaves the gate as is.
	assert.Empty(t, g.Filter([]Message{msg(9), msg(8), msg(7)}))
	assert.Equal(t, uint16(2), g.Next())

	// A lone seq-0 duplicate is NOT dropped: it matches the re-register
	// datagram exactly, so the gate resets and admits it again.
	admitted := g.Filter([]Message{msg(0)})
	require.Len(t, admitted, 1)
	assert.Equal(t, uint16(0), admitted[0].Seq)
	assert.Equal(t, uint16(1), g.Next())
}

func TestGate_SingleSeqZeroResets(t *testing.T) {
	g := NewGate()
	for i := uint16(0); i < 5; i++ {
		g.Filter([]Message{msg(i)})
	}
	require.Equal(t, uint16(5), g.Next())

	// Client restarted: a lone seq-0 message re-registers.
	admitted := g.Filter([]Message{msg(0)})
	require.Len(t, admitted, 1)
	assert.Equal(t, uint16(1), g.Next())

	// A seq-0 copy inside a redundancy bundle must NOT reset.
	g2 := NewGate()
	g2.Filter([]Message{msg(0)})
	g2.Filter([]Message{msg(1), msg(0)})
	require.Equal(t, uint16(2), g2.Next())
	admitted = g2.Filter([]Message{msg(2), msg(1), msg(0)})
	require.Len(t, admitted, 1)
	assert.Equal(t, uint16(2), admitted[0].Seq)
}

func TestGate_StrictlyIncreasingIntoHandlers(t *testing.T) {
	g := NewGate()
	var seen []uint16

	// Feed datagrams with heavy duplication and one loss.
	feeds := [][]Message{
		{msg(0)},
		{msg(1), msg(0)},
		{msg(1), msg(0)}, // duplicate datagram
		{msg(3), msg(2), msg(1)},
		{msg(4), msg(3), msg(2)},
	}
	for _, f := range feeds {
		for _, m := range g.Filter(f) {
			seen = append(seen, m.Seq)
		}
	}

	assert.Equal(t, []uint16{0, 1, 2, 3, 4}, seen)
}
