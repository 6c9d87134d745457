package protocol

import (
	"github.com/albionradar/sniffer/internal/codec"
	"github.com/albionradar/sniffer/internal/events"
)

// Fields is the typed decode context of one packet. Each getter takes a
// semantic field name from the packet's layout, resolves it through the
// schema offsets and returns a default when the key is absent or holds an
// unexpected shape.
type Fields struct {
	offsets []byte
	index   map[string]int
	raw     RawFields
	codec   *codec.PositionCodec
}

func newFields(offsets []byte, index map[string]int, raw RawFields, c *codec.PositionCodec) *Fields {
	return &Fields{offsets: offsets, index: index, raw: raw, codec: c}
}

// Key returns the positional key of a semantic field.
func (f *Fields) Key(name string) (byte, bool) {
	ordinal, ok := f.index[name]
	if !ok || ordinal >= len(f.offsets) {
		return 0, false
	}
	return f.offsets[ordinal], true
}

// Value returns the raw value of a field.
func (f *Fields) Value(name string) (any, bool) {
	key, ok := f.Key(name)
	if !ok {
		return nil, false
	}
	v, ok := f.raw[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Has reports whether the field is present.
func (f *Fields) Has(name string) bool {
	_, ok := f.Value(name)
	return ok
}

// Int returns the field widened to int64, or 0.
func (f *Fields) Int(name string) int64 {
	return f.IntOr(name, 0)
}

// IntOr returns the field widened to int64, or def.
func (f *Fields) IntOr(name string, def int64) int64 {
	v, ok := f.Value(name)
	if !ok {
		return def
	}
	if n, ok := toInt64(v); ok {
		return n
	}
	return def
}

// Float returns the field as float32, or 0.
func (f *Fields) Float(name string) float32 {
	return f.FloatOr(name, 0)
}

// FloatOr returns the field as float32, or def.
func (f *Fields) FloatOr(name string, def float32) float32 {
	v, ok := f.Value(name)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float32:
		return n
	case float64:
		return float32(n)
	}
	if n, ok := toInt64(v); ok {
		return float32(n)
	}
	return def
}

// Bool returns the field as bool, or false. Integers are true when non-zero.
func (f *Fields) Bool(name string) bool {
	v, ok := f.Value(name)
	if !ok {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if n, ok := toInt64(v); ok {
		return n != 0
	}
	return false
}

// String returns the field as string, or "".
func (f *Fields) String(name string) string {
	return f.StringOr(name, "")
}

// StringOr returns the field as string, or def.
func (f *Fields) StringOr(name, def string) string {
	v, ok := f.Value(name)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// Bytes returns the field as a byte slice, or nil.
func (f *Fields) Bytes(name string) []byte {
	v, ok := f.Value(name)
	if !ok {
		return nil
	}
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}

// Vector2 returns the field as a position. An 8-byte raw window is decoded
// through the position codec; a float pair is taken as is. Anything else is
// the zero vector.
func (f *Fields) Vector2(name string) events.Vector2 {
	v, ok := f.Value(name)
	if !ok {
		return events.Vector2{}
	}
	switch p := v.(type) {
	case []byte:
		if len(p) < vectorSize {
			return events.Vector2{}
		}
		x, y := f.codec.Decode(p, 0)
		return events.Vector2{X: x, Y: y}
	case []float32:
		if len(p) >= 2 {
			return events.Vector2{X: p[0], Y: p[1]}
		}
	case []float64:
		if len(p) >= 2 {
			return events.Vector2{X: float32(p[0]), Y: float32(p[1])}
		}
	}
	return events.Vector2{}
}

// IntArray returns the field widened to []int, or nil.
func (f *Fields) IntArray(name string) []int {
	v, ok := f.Value(name)
	if !ok {
		return nil
	}
	return toIntSlice(v)
}

// FloatArray returns the field as []float32, or nil.
func (f *Fields) FloatArray(name string) []float32 {
	v, ok := f.Value(name)
	if !ok {
		return nil
	}
	switch a := v.(type) {
	case []float32:
		return a
	case []float64:
		out := make([]float32, len(a))
		for i, x := range a {
			out[i] = float32(x)
		}
		return out
	}
	return nil
}

// Health returns a current/maximum pair. A missing current value means the
// entity is at full health.
func (f *Fields) Health(current, maximum string) events.Health {
	limit := int(f.Int(maximum))
	if !f.Has(current) {
		return events.Health{Value: limit, Max: limit}
	}
	return events.Health{Value: int(f.Int(current)), Max: limit}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toIntSlice(v any) []int {
	switch a := v.(type) {
	case []int:
		return a
	case []byte:
		return widen(a)
	case []int8:
		return widen(a)
	case []int16:
		return widen(a)
	case []uint16:
		return widen(a)
	case []int32:
		return widen(a)
	case []int64:
		return widen(a)
	}
	return nil
}

type integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~int64
}

func widen[T integer](in []T) []int {
	out := make([]int, len(in))
	for i, x := range in {
		out[i] = int(x)
	}
	return out
}
