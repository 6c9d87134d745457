package codec

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leFloats(x, y float32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(y))
	return b
}

func TestDecode_PassThroughWithoutKey(t *testing.T) {
	c := NewPositionCodec()

	x, y := c.Decode(leFloats(12.5, -40.25), 0)
	assert.Equal(t, float32(12.5), x)
	assert.Equal(t, float32(-40.25), y)
}

func TestDecode_ShortInputIsZero(t *testing.T) {
	c := NewPositionCodec()

	x, y := c.Decode([]byte{1, 2, 3}, 0)
	assert.Zero(t, x)
	assert.Zero(t, y)

	x, y = c.Decode(leFloats(1, 2), 1)
	assert.Zero(t, x)
	assert.Zero(t, y)

	x, y = c.Decode(leFloats(1, 2), -1)
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestDecode_WithOffset(t *testing.T) {
	c := NewPositionCodec()
	raw := append([]byte{0xAA, 0xBB}, leFloats(3, 4)...)

	x, y := c.Decode(raw, 2)
	assert.Equal(t, float32(3), x)
	assert.Equal(t, float32(4), y)
}

func TestDecode_XorUsesSeparateKeyHalves(t *testing.T) {
	c := NewPositionCodec()
	key := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	require.NoError(t, c.SetKey(key))

	plain := leFloats(100, 200)
	obf := make([]byte, 8)
	for i := 0; i < 4; i++ {
		obf[i] = plain[i] ^ key[i]
		obf[4+i] = plain[4+i] ^ key[4+i]
	}

	x, y := c.Decode(obf, 0)
	assert.Equal(t, float32(100), x)
	assert.Equal(t, float32(200), y)
}

func TestEncodeDecode_Involution(t *testing.T) {
	c := NewPositionCodec()
	require.NoError(t, c.SetKey([]byte{0x9c, 0x11, 0x42, 0xfe, 0x00, 0x7a, 0x33, 0xd1}))

	points := [][2]float32{{0, 0}, {1.5, -2.25}, {-512.125, 1024}, {math.MaxFloat32, -math.SmallestNonzeroFloat32}}
	for _, p := range points {
		x, y := c.Decode(c.Encode(p[0], p[1]), 0)
		assert.Equal(t, p[0], x)
		assert.Equal(t, p[1], y)
	}
}

func TestDecode_NonFiniteBecomesZero(t *testing.T) {
	c := NewPositionCodec()
	raw := leFloats(float32(math.NaN()), float32(math.Inf(1)))

	x, y := c.Decode(raw, 0)
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestSetKey_Validation(t *testing.T) {
	c := NewPositionCodec()

	require.ErrorIs(t, c.SetKey([]byte{1, 2, 3}), ErrInvalidKey)
	assert.False(t, c.HasKey())

	require.NoError(t, c.SetKey(make([]byte, KeySize)))
	assert.True(t, c.HasKey())

	k, ok := c.Key()
	require.True(t, ok)
	k[0] = 0xff
	again, _ := c.Key()
	assert.Equal(t, byte(0), again[0], "Key must return a copy")

	c.ClearKey()
	assert.False(t, c.HasKey())
}

func TestSetKey_ConcurrentWithDecode(t *testing.T) {
	c := NewPositionCodec()
	keyA := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	keyB := []byte{2, 2, 2, 2, 2, 2, 2, 2}
	require.NoError(t, c.SetKey(keyA))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Decode(leFloats(1, 2), 0)
			}
		}()
	}
	for j := 0; j < 1000; j++ {
		if j%2 == 0 {
			_ = c.SetKey(keyB)
		} else {
			_ = c.SetKey(keyA)
		}
	}
	wg.Wait()
}
