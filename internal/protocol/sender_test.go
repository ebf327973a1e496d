package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_RedundancyWindow(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	s := NewSender()

	// First send: one message, seq 0.
	out := s.Pack(0x10, data)
	assert.Equal(t, []byte{
		1,
		0, 0, 5, 0, 0x10, 1, 2, 3, 4,
	}, out)

	// Second send bundles the previous message after the new one.
	out = s.Pack(0x11, data)
	assert.Equal(t, []byte{
		2,
		1, 0, 5, 0, 0x11, 1, 2, 3, 4,
		0, 0, 5, 0, 0x10, 1, 2, 3, 4,
	}, out)

	// Third send carries all three, newest first.
	out = s.Pack(0x12, data)
	assert.Equal(t, []byte{
		3,
		2, 0, 5, 0, 0x12, 1, 2, 3, 4,
		1, 0, 5, 0, 0x11, 1, 2, 3, 4,
		0, 0, 5, 0, 0x10, 1, 2, 3, 4,
	}, out)

	// Fourth send evicts the oldest.
	out = s.Pack(0x13, data)
	assert.Equal(t, []byte{
		3,
		3, 0, 5, 0, 0x13, 1, 2, 3, 4,
		2, 0, 5, 0, 0x12, 1, 2, 3, 4,
		1, 0, 5, 0, 0x11, 1, 2, 3, 4,
	}, out)
}

func TestSender_SeqWraps(t *testing.T) {
	s := NewSender()
	s.seq = 0xFFFF

	out := s.Pack(0x12, nil)
	msgs, err := ParseDatagram(out)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFFF), msgs[0].Seq)
	assert.Equal(t, uint16(0), s.Seq())
}
