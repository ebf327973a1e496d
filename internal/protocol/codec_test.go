package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage(t *testing.T) {
	packet := EncodeMessage(0x10, 2, []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{2, 0, 5, 0, 0x10, 1, 2, 3, 4}, packet)
}

func TestParseDatagram_RoundTrip(t *testing.T) {
	payloadA := []byte{0xAA, 0xBB}
	payloadB := []byte{0x01}

	datagram := []byte{2}
	datagram = AppendMessage(datagram, TypeGameData, 7, payloadA)
	datagram = AppendMessage(datagram, TypeGameCache, 6, payloadB)

	msgs, err := ParseDatagram(datagram)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, uint16(7), msgs[0].Seq)
	assert.Equal(t, TypeGameData, msgs[0].Type)
	assert.Equal(t, payloadA, msgs[0].Data)

	assert.Equal(t, uint16(6), msgs[1].Seq)
	assert.Equal(t, TypeGameCache, msgs[1].Type)
	assert.Equal(t, payloadB, msgs[1].Data)

	// Re-encoding the parsed messages reproduces the original bytes.
	again := []byte{2}
	for _, m := range msgs {
		again = AppendMessage(again, m.Type, m.Seq, m.Data)
	}
	assert.Equal(t, datagram, again)
}

func TestParseDatagram_EmptyPayload(t *testing.T) {
	datagram := []byte{1}
	datagram = AppendMessage(datagram, TypeReadyToPlay, 3, nil)

	msgs, err := ParseDatagram(datagram)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].Data)
}

func TestParseDatagram_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty datagram", nil},
		{"truncated header", []byte{1, 0x01, 0x00}},
		{"zero length", []byte{1, 0x00, 0x00, 0x00, 0x00, 0x12}},
		{"payload exceeds buffer", []byte{1, 0x00, 0x00, 0x05, 0x00, 0x12, 0xAA}},
		{"count exceeds messages", []byte{2, 0x00, 0x00, 0x01, 0x00, 0x12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDatagram(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}
