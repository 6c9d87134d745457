// Package codec implements the XOR position obfuscation used by the game
// server for entity coordinates.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// KeySize is the length of the position key delivered by KeySync.
const KeySize = 8

const (
	saltX = 0
	saltY = 4
)

var ErrInvalidKey = errors.New("codec: position key must be 8 bytes")

// PositionCodec decodes (and, for fixtures, encodes) obfuscated X/Y pairs.
// The key is replaced as a whole; Decode never sees a partially written key.
type PositionCodec struct {
	key atomic.Pointer[[KeySize]byte]
}

// NewPositionCodec returns a codec without a key. Until a key is set,
// coordinates pass through as plain little-endian floats.
func NewPositionCodec() *PositionCodec {
	return &PositionCodec{}
}

// SetKey installs a new key.
func (c *PositionCodec) SetKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	var k [KeySize]byte
	copy(k[:], key)
	c.key.Store(&k)
	return nil
}

// ClearKey drops the current key.
func (c *PositionCodec) ClearKey() {
	c.key.Store(nil)
}

// HasKey reports whether a key is installed.
func (c *PositionCodec) HasKey() bool {
	return c.key.Load() != nil
}

// Key returns a copy of the current key.
func (c *PositionCodec) Key() ([]byte, bool) {
	k := c.key.Load()
	if k == nil {
		return nil, false
	}
	out := make([]byte, KeySize)
	copy(out, k[:])
	return out, true
}

// Decode reads an 8-byte coordinate window starting at offset. Short or
// out-of-range input yields (0, 0); non-finite results are reported as 0.
func (c *PositionCodec) Decode(raw []byte, offset int) (x, y float32) {
	if offset < 0 || len(raw)-offset < 8 {
		return 0, 0
	}
	window := raw[offset : offset+8]

	k := c.key.Load()
	if k == nil {
		return finite(window[0:4]), finite(window[4:8])
	}

	var bx, by [4]byte
	xorWindow(bx[:], window[0:4], k[:], saltX)
	xorWindow(by[:], window[4:8], k[:], saltY)
	return finite(bx[:]), finite(by[:])
}

// Encode produces the 8-byte window that Decode maps back to (x, y) under
// the current key.
func (c *PositionCodec) Encode(x, y float32) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint32(out[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(out[4:8], math.Float32bits(y))

	k := c.key.Load()
	if k == nil {
		return out
	}
	xorWindow(out[0:4], out[0:4], k[:], saltX)
	xorWindow(out[4:8], out[4:8], k[:], saltY)
	return out
}

func xorWindow(dst, src, key []byte, saltPos int) {
	span := len(key) - saltPos
	for i := range src {
		dst[i] = src[i] ^ key[i%span+saltPos]
	}
}

func finite(b []byte) float32 {
	v := math.Float32frombits(binary.LittleEndian.Uint32(b))
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0
	}
	return v
}
