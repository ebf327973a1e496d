package gamesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runS1 plays the opening exchange of a two-player session with equal
// delays: P0 submits [1,2], P1 submits [3,4], both get the merged bundle.
func runS1(t *testing.T) *Sync {
	t.Helper()
	s := NewSync([]int{1, 1})

	outs, err := s.Process(0, DataPayload([]byte{0x01, 0x02}))
	require.NoError(t, err)
	assert.Empty(t, outs)

	outs, err = s.Process(1, DataPayload([]byte{0x03, 0x04}))
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for i, out := range outs {
		assert.Equal(t, i, out.Player)
		assert.False(t, out.Payload.Cached)
		assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, out.Payload.Data)
	}
	return s
}

func TestSync_FirstBundleEqualDelays(t *testing.T) {
	runS1(t)
}

func TestSync_CacheHitOnRepeat(t *testing.T) {
	s := runS1(t)

	// Both seats resend their first payload by cache reference; the merged
	// bundle matches the one already emitted, so both get a reference back.
	outs, err := s.Process(0, CachePayload(0))
	require.NoError(t, err)
	assert.Empty(t, outs)

	outs, err = s.Process(1, CachePayload(0))
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for _, out := range outs {
		assert.True(t, out.Payload.Cached)
		assert.Equal(t, uint8(0), out.Payload.CachePos)
	}
}

func TestSync_MixedCacheAndDataStaysData(t *testing.T) {
	s := runS1(t)

	// One fresh payload merged with one cached payload makes a combination
	// the output cache has never seen, so it goes out as raw data.
	outs, err := s.Process(0, DataPayload([]byte{0x05, 0x06}))
	require.NoError(t, err)
	assert.Empty(t, outs)

	outs, err = s.Process(1, CachePayload(0))
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for _, out := range outs {
		assert.False(t, out.Payload.Cached)
		assert.Equal(t, []byte{0x05, 0x06, 0x03, 0x04}, out.Payload.Data)
	}
}

func TestSync_DifferentDelaysWithPadding(t *testing.T) {
	s := NewSync([]int{1, 2})

	// The slower seat starts one zero unit ahead, so P0's very first
	// submission already completes a frame for P0's schedule.
	outs, err := s.Process(0, DataPayload([]byte{0x01, 0x00}))
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, 0, outs[0].Player)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, outs[0].Payload.Data)

	var p0Bundles, p1Bundles int
	collect := func(outs []Output) {
		for _, out := range outs {
			switch out.Player {
			case 0:
				assert.Len(t, out.Payload.Data, 4)
				p0Bundles++
			case 1:
				assert.Len(t, out.Payload.Data, 8)
				p1Bundles++
			}
		}
	}
	outs, err = s.Process(0, DataPayload([]byte{0x02, 0x00}))
	require.NoError(t, err)
	collect(outs)
	outs, err = s.Process(0, DataPayload([]byte{0x03, 0x00}))
	require.NoError(t, err)
	collect(outs)
	outs, err = s.Process(1, DataPayload([]byte{0x0A, 0x0B, 0x0C, 0x0D}))
	require.NoError(t, err)
	collect(outs)

	assert.Equal(t, 2, p0Bundles)
	assert.Equal(t, 1, p1Bundles)
}

func TestSync_DropContinuesGame(t *testing.T) {
	s := runS1(t)

	outs, err := s.MarkDropped(0)
	require.NoError(t, err)
	assert.Empty(t, outs)
	assert.False(t, s.AllDropped())

	// Zero units stand in for the dropped seat from now on.
	outs, err = s.Process(1, DataPayload([]byte{0x05, 0x06}))
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for _, out := range outs {
		assert.Equal(t, []byte{0x00, 0x00, 0x05, 0x06}, out.Payload.Data)
	}

	// The dropped seat's further input is swallowed without effect.
	outs, err = s.Process(0, DataPayload([]byte{0x07, 0x08}))
	require.NoError(t, err)
	assert.Empty(t, outs)

	outs, err = s.MarkDropped(1)
	require.NoError(t, err)
	assert.Empty(t, outs)
	assert.True(t, s.AllDropped())
}

func TestSync_DropDiscardsQueuedInput(t *testing.T) {
	s := NewSync([]int{1, 1})

	// P0 queues a unit, then drops before it is consumed: the queued unit
	// must not leak into later frames.
	outs, err := s.Process(0, DataPayload([]byte{0x01, 0x02}))
	require.NoError(t, err)
	assert.Empty(t, outs)

	outs, err = s.MarkDropped(0)
	require.NoError(t, err)
	require.Len(t, outs, 0)

	outs, err = s.Process(1, DataPayload([]byte{0x03, 0x04}))
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for _, out := range outs {
		assert.Equal(t, []byte{0x00, 0x00, 0x03, 0x04}, out.Payload.Data)
	}
}

func TestSync_BadUnitSizeLeavesStateUnchanged(t *testing.T) {
	s := NewSync([]int{2, 2})

	// 3 bytes across 2 frames does not divide.
	_, err := s.Process(0, DataPayload([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrBadUnitSize)

	// The rejected payload must not have landed in the input cache.
	_, err = s.Process(0, CachePayload(0))
	require.ErrorIs(t, err, ErrUnknownCachePosition)

	// A clean submission latches as if the bad one never happened.
	outs, err := s.Process(0, DataPayload([]byte{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.Empty(t, outs)

	// Later payloads must match the latched size exactly.
	_, err = s.Process(1, DataPayload([]byte{1, 2}))
	require.ErrorIs(t, err, ErrBadUnitSize)

	outs, err = s.Process(1, DataPayload([]byte{5, 6, 7, 8}))
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for _, out := range outs {
		assert.Equal(t, []byte{1, 2, 5, 6, 3, 4, 7, 8}, out.Payload.Data)
	}
}

func TestSync_UnknownCacheSlotDropsMessage(t *testing.T) {
	s := runS1(t)

	_, err := s.Process(0, CachePayload(42))
	require.ErrorIs(t, err, ErrUnknownCachePosition)

	// State unchanged: the exchange continues exactly as without the error.
	outs, err := s.Process(0, DataPayload([]byte{0x05, 0x06}))
	require.NoError(t, err)
	assert.Empty(t, outs)
	outs, err = s.Process(1, DataPayload([]byte{0x07, 0x08}))
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, []byte{0x05, 0x06, 0x07, 0x08}, outs[0].Payload.Data)
}

func TestSync_InvalidPlayer(t *testing.T) {
	s := NewSync([]int{1, 1})

	_, err := s.Process(2, DataPayload([]byte{1, 2}))
	assert.ErrorIs(t, err, ErrInvalidPlayer)
	_, err = s.Process(-1, DataPayload([]byte{1, 2}))
	assert.ErrorIs(t, err, ErrInvalidPlayer)
	_, err = s.MarkDropped(2)
	assert.ErrorIs(t, err, ErrInvalidPlayer)
}

func TestSync_ReplayedStreamComesBackCached(t *testing.T) {
	s := NewSync([]int{1, 1})
	payloads := [][]byte{{1, 2}, {3, 4}, {5, 6}}

	var first [][]byte
	for _, p := range payloads {
		_, err := s.Process(0, DataPayload(p))
		require.NoError(t, err)
		outs, err := s.Process(1, DataPayload(p))
		require.NoError(t, err)
		require.Len(t, outs, 2)
		require.False(t, outs[0].Payload.Cached)
		first = append(first, outs[0].Payload.Data)
	}

	// Replaying the identical stream through cache references yields the
	// identical bundle stream, entirely as cache responses.
	for i := range payloads {
		_, err := s.Process(0, CachePayload(uint8(i)))
		require.NoError(t, err)
		outs, err := s.Process(1, CachePayload(uint8(i)))
		require.NoError(t, err)
		require.Len(t, outs, 2)
		for _, out := range outs {
			require.True(t, out.Payload.Cached)
			got, ok := s.outCaches[out.Player].Get(out.Payload.CachePos)
			require.True(t, ok)
			assert.Equal(t, first[i], got)
		}
	}
}

func TestSync_BundleLengthAndBufferBounds(t *testing.T) {
	delays := []int{1, 3, 2}
	s := NewSync(delays)
	const unitSize = 2

	maxDelay := 3
	feed := func(player int, step int) {
		d := delays[player]
		payload := make([]byte, d*unitSize)
		for i := range payload {
			payload[i] = byte(player*16 + step + i)
		}
		outs, err := s.Process(player, DataPayload(payload))
		require.NoError(t, err)
		for _, out := range outs {
			if !out.Payload.Cached {
				assert.Len(t, out.Payload.Data, delays[out.Player]*len(delays)*unitSize)
			}
		}
		// No send buffer accumulates past the largest delay.
		for j := range delays {
			for k := range delays {
				assert.LessOrEqual(t, len(s.outBufs[j][k]), maxDelay)
			}
		}
	}

	for step := 0; step < 12; step++ {
		feed(0, step)
		if step%3 == 0 {
			feed(1, step)
		}
		if step%2 == 0 {
			feed(2, step)
		}
	}
}
