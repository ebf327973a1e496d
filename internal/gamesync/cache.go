package gamesync

import (
	"bytes"

	"github.com/arcadenet/kaillera/internal/constants"
)

// Cache is a 256-slot FIFO of byte blobs addressed by position. Clients and
// server compress repeated game-data payloads into a single-byte reference
// to a previously seen blob; both sides maintain mirrored rings, so
// eviction order must match the protocol exactly: a full ring drops slot 0
// and every surviving blob shifts down one position.
type Cache struct {
	slots [][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{slots: make([][]byte, 0, constants.InputCacheSlots)}
}

// Len returns the number of occupied slots.
func (c *Cache) Len() int { return len(c.slots) }

// Add appends data, evicting slot 0 if the ring is full, and returns the
// position the data landed in.
func (c *Cache) Add(data []byte) uint8 {
	if len(c.slots) == constants.InputCacheSlots {
		copy(c.slots, c.slots[1:])
		c.slots = c.slots[:constants.InputCacheSlots-1]
	}
	c.slots = append(c.slots, data)
	return uint8(len(c.slots) - 1)
}

// Get returns the blob at pos, or false if the slot was never written.
func (c *Cache) Get(pos uint8) ([]byte, bool) {
	if int(pos) >= len(c.slots) {
		return nil, false
	}
	return c.slots[pos], true
}

// Find searches newest-to-oldest for a blob equal to data and returns the
// first matching position.
func (c *Cache) Find(data []byte) (uint8, bool) {
	for i := len(c.slots) - 1; i >= 0; i-- {
		if bytes.Equal(c.slots[i], data) {
			return uint8(i), true
		}
	}
	return 0, false
}
