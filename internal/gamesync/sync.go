package gamesync

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlayer reports a seat index outside the session.
	ErrInvalidPlayer = errors.New("invalid player index")
	// ErrUnknownCachePosition reports a cache reference to a slot that was
	// never filled.
	ErrUnknownCachePosition = errors.New("unknown cache position")
	// ErrBadUnitSize reports a payload whose length does not divide into the
	// sender's per-frame unit count.
	ErrBadUnitSize = errors.New("bad input unit size")
)

// Payload is one game-data blob on the wire: either the raw bytes or a
// single-byte reference into the mirrored cache ring.
type Payload struct {
	Data     []byte
	CachePos uint8
	Cached   bool
}

// DataPayload wraps raw bytes.
func DataPayload(data []byte) Payload {
	return Payload{Data: data}
}

// CachePayload wraps a cache reference.
func CachePayload(pos uint8) Payload {
	return Payload{CachePos: pos, Cached: true}
}

// Output is one bundle ready to send to a seat.
type Output struct {
	Player  int
	Payload Payload
}

// Sync runs lock-step input exchange for one in-game session. Each seat i
// plays with a frame delay d_i taken from its connection type: it submits
// d_i inputs per message and expects d_i frames of everyone's inputs back
// per message. Inputs are sliced into fixed-size units, merged frame by
// frame across seats, and re-bundled per receiver at that receiver's own
// delay, so mixed connection types stay in step.
//
// The unit size is latched from the first submitted payload; every later
// payload from seat i must be exactly d_i units long. Seats that joined
// with a higher delay than the minimum start with zero-filled padding
// units so nobody stalls waiting for the slowest schedule.
//
// Sync is not safe for concurrent use; the caller serializes access.
type Sync struct {
	delays   []int
	dropped  []bool
	unitSize int

	// inputs[i] holds seat i's submitted units not yet merged.
	inputs [][][]byte
	// outBufs[j][k] holds units from seat k awaiting emission to seat j.
	outBufs [][][][]byte

	inCaches  []*Cache
	outCaches []*Cache
}

// NewSync creates an engine for the given per-seat frame delays. Delays
// below 1 are clamped to 1.
func NewSync(delays []int) *Sync {
	s := &Sync{
		delays:    make([]int, len(delays)),
		dropped:   make([]bool, len(delays)),
		inputs:    make([][][]byte, len(delays)),
		outBufs:   make([][][][]byte, len(delays)),
		inCaches:  make([]*Cache, len(delays)),
		outCaches: make([]*Cache, len(delays)),
	}
	for i, d := range delays {
		if d < 1 {
			d = 1
		}
		s.delays[i] = d
		s.outBufs[i] = make([][][]byte, len(delays))
		s.inCaches[i] = NewCache()
		s.outCaches[i] = NewCache()
	}
	return s
}

// Players returns the number of seats.
func (s *Sync) Players() int { return len(s.delays) }

// Delay returns seat i's frame delay.
func (s *Sync) Delay(i int) int { return s.delays[i] }

// AllDropped reports whether every seat has been dropped.
func (s *Sync) AllDropped() bool {
	for _, d := range s.dropped {
		if !d {
			return false
		}
	}
	return true
}

// Process consumes one payload from a seat and returns any bundles that
// became ready for delivery, in seat order. Payloads from dropped seats
// are silently discarded. On error the engine state is unchanged.
func (s *Sync) Process(player int, in Payload) ([]Output, error) {
	if player < 0 || player >= len(s.delays) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidPlayer, player, len(s.delays))
	}
	if s.dropped[player] {
		return nil, nil
	}

	var blob []byte
	if in.Cached {
		b, ok := s.inCaches[player].Get(in.CachePos)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCachePosition, in.CachePos)
		}
		blob = b
	} else {
		d := s.delays[player]
		if s.unitSize == 0 {
			if len(in.Data) == 0 || len(in.Data)%d != 0 {
				return nil, fmt.Errorf("%w: %d bytes across %d frames", ErrBadUnitSize, len(in.Data), d)
			}
		} else if len(in.Data) != d*s.unitSize {
			return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadUnitSize, len(in.Data), d*s.unitSize)
		}
		s.inCaches[player].Add(in.Data)
		blob = in.Data
	}

	if s.unitSize == 0 {
		s.latch(len(blob) / s.delays[player])
	}

	for off := 0; off < len(blob); off += s.unitSize {
		s.inputs[player] = append(s.inputs[player], blob[off:off+s.unitSize])
	}

	return s.drain(), nil
}

// MarkDropped takes a seat out of the session. Its unconsumed inputs are
// discarded and zero-filled units stand in for it from now on; frames that
// become unblocked by the drop are returned immediately.
func (s *Sync) MarkDropped(player int) ([]Output, error) {
	if player < 0 || player >= len(s.delays) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidPlayer, player, len(s.delays))
	}
	if s.dropped[player] {
		return nil, nil
	}
	s.dropped[player] = true
	s.inputs[player] = nil
	return s.drain(), nil
}

// latch fixes the unit size and materializes start-up padding: a seat with
// delay d_i begins d_i-min(d) zero units ahead of the slowest schedule.
func (s *Sync) latch(unitSize int) {
	s.unitSize = unitSize
	minDelay := s.delays[0]
	for _, d := range s.delays[1:] {
		if d < minDelay {
			minDelay = d
		}
	}
	for i, d := range s.delays {
		for n := 0; n < d-minDelay; n++ {
			s.inputs[i] = append(s.inputs[i], make([]byte, unitSize))
		}
	}
}

// drain merges frames while every live seat has a unit queued, then emits
// every bundle that reached its receiver's delay.
func (s *Sync) drain() []Output {
	var outs []Output
	for s.frameReady() {
		for k := range s.delays {
			unit := s.takeUnit(k)
			for j := range s.delays {
				s.outBufs[j][k] = append(s.outBufs[j][k], unit)
			}
		}
		for j := range s.delays {
			for s.bufferedFrames(j) >= s.delays[j] {
				outs = append(outs, s.emit(j))
			}
		}
	}
	return outs
}

// frameReady reports whether one more frame can be merged: at least one
// seat is live and every live seat has a queued unit.
func (s *Sync) frameReady() bool {
	live := false
	for i := range s.delays {
		if s.dropped[i] {
			continue
		}
		live = true
		if len(s.inputs[i]) == 0 {
			return false
		}
	}
	return live
}

func (s *Sync) takeUnit(i int) []byte {
	if s.dropped[i] {
		return make([]byte, s.unitSize)
	}
	unit := s.inputs[i][0]
	s.inputs[i] = s.inputs[i][1:]
	return unit
}

func (s *Sync) bufferedFrames(j int) int {
	n := len(s.outBufs[j][0])
	for _, buf := range s.outBufs[j][1:] {
		if len(buf) < n {
			n = len(buf)
		}
	}
	return n
}

// emit bundles the front delays[j] frames for seat j, row-major across
// seats, and compresses against seat j's output cache.
func (s *Sync) emit(j int) Output {
	d := s.delays[j]
	bundle := make([]byte, 0, d*len(s.delays)*s.unitSize)
	for r := 0; r < d; r++ {
		for k := range s.delays {
			bundle = append(bundle, s.outBufs[j][k][r]...)
		}
	}
	for k := range s.delays {
		s.outBufs[j][k] = s.outBufs[j][k][d:]
	}

	if pos, ok := s.outCaches[j].Find(bundle); ok {
		return Output{Player: j, Payload: CachePayload(pos)}
	}
	s.outCaches[j].Add(bundle)
	return Output{Player: j, Payload: DataPayload(bundle)}
}
