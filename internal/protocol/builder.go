package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// PayloadBuilder constructs little-endian binary payloads: Move blobs for
// fixtures and frames for the ingest socket.
type PayloadBuilder struct {
	buf bytes.Buffer
}

// NewPayloadBuilder creates a new PayloadBuilder.
func NewPayloadBuilder() *PayloadBuilder {
	return &PayloadBuilder{}
}

// Reset clears the builder for reuse.
func (b *PayloadBuilder) Reset() {
	b.buf.Reset()
}

// PutByte writes a single byte.
func (b *PayloadBuilder) PutByte(v byte) *PayloadBuilder {
	b.buf.WriteByte(v)
	return b
}

// PutUint16 writes a uint16 in little-endian order.
func (b *PayloadBuilder) PutUint16(v uint16) *PayloadBuilder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// PutUint32 writes a uint32 in little-endian order.
func (b *PayloadBuilder) PutUint32(v uint32) *PayloadBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// PutUint64 writes a uint64 in little-endian order.
func (b *PayloadBuilder) PutUint64(v uint64) *PayloadBuilder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// PutFloat32 writes a float32 in little-endian order.
func (b *PayloadBuilder) PutFloat32(v float32) *PayloadBuilder {
	return b.PutUint32(math.Float32bits(v))
}

// PutFloat64 writes a float64 in little-endian order.
func (b *PayloadBuilder) PutFloat64(v float64) *PayloadBuilder {
	return b.PutUint64(math.Float64bits(v))
}

// PutString writes a string with a 2-byte length prefix.
// Format: [length:2][string bytes...]
func (b *PayloadBuilder) PutString(s string) *PayloadBuilder {
	data := []byte(s)
	if len(data) > math.MaxUint16 {
		data = data[:math.MaxUint16]
	}
	b.PutUint16(uint16(len(data)))
	b.buf.Write(data)
	return b
}

// PutBytes writes raw bytes.
func (b *PayloadBuilder) PutBytes(data []byte) *PayloadBuilder {
	b.buf.Write(data)
	return b
}

// Pad writes n zero bytes.
func (b *PayloadBuilder) Pad(n int) *PayloadBuilder {
	for i := 0; i < n; i++ {
		b.buf.WriteByte(0)
	}
	return b
}

// Build returns the constructed payload bytes.
func (b *PayloadBuilder) Build() []byte {
	return b.buf.Bytes()
}

// Len returns the current size of the payload being built.
func (b *PayloadBuilder) Len() int {
	return b.buf.Len()
}

// String returns a hex dump of the current payload for debugging.
func (b *PayloadBuilder) String() string {
	data := b.buf.Bytes()
	return fmt.Sprintf("PayloadBuilder[%d bytes]: %x", len(data), data)
}
