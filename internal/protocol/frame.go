package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// ErrUnsupportedValue is returned by EncodeFrame for field values that have
// no frame tag.
var ErrUnsupportedValue = errors.New("unsupported field value type")

// EncodeFrame serializes a packet for the ingest socket.
// Format: [code:2][count:1]{[key:1][tag:1][payload...]}, little-endian.
// Keys are written in ascending order.
func EncodeFrame(code int, raw RawFields) ([]byte, error) {
	if code < 0 || code > math.MaxUint16 {
		return nil, fmt.Errorf("packet code %d out of range", code)
	}
	if len(raw) > math.MaxUint8 {
		return nil, fmt.Errorf("too many fields: %d", len(raw))
	}

	keys := make([]int, 0, len(raw))
	for k := range raw {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	b := NewPayloadBuilder()
	b.PutUint16(uint16(code)).PutByte(byte(len(raw)))

	for _, k := range keys {
		key := byte(k)
		if err := putValue(b.PutByte(key), raw[key]); err != nil {
			return nil, fmt.Errorf("field %d: %w", key, err)
		}
	}

	if b.Len() > MaxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes (max %d)", b.Len(), MaxFrameSize)
	}
	return b.Build(), nil
}

func putValue(b *PayloadBuilder, v any) error {
	switch x := v.(type) {
	case bool:
		b.PutByte(TagBool)
		if x {
			b.PutByte(1)
		} else {
			b.PutByte(0)
		}
	case uint8:
		b.PutByte(TagByte).PutByte(x)
	case int16:
		b.PutByte(TagInt16).PutUint16(uint16(x))
	case int32:
		b.PutByte(TagInt32).PutUint32(uint32(x))
	case int64:
		b.PutByte(TagInt64).PutUint64(uint64(x))
	case int:
		b.PutByte(TagInt64).PutUint64(uint64(int64(x)))
	case float32:
		b.PutByte(TagFloat32).PutFloat32(x)
	case float64:
		b.PutByte(TagFloat64).PutFloat64(x)
	case string:
		if len(x) > math.MaxUint16 {
			return fmt.Errorf("string too long: %d", len(x))
		}
		b.PutByte(TagString).PutString(x)
	case []byte:
		if err := putLen(b.PutByte(TagBytes), len(x)); err != nil {
			return err
		}
		b.PutBytes(x)
	case []int16:
		if err := putLen(b.PutByte(TagInt16Array), len(x)); err != nil {
			return err
		}
		for _, n := range x {
			b.PutUint16(uint16(n))
		}
	case []int32:
		if err := putLen(b.PutByte(TagInt32Array), len(x)); err != nil {
			return err
		}
		for _, n := range x {
			b.PutUint32(uint32(n))
		}
	case []int64:
		if err := putLen(b.PutByte(TagInt64Array), len(x)); err != nil {
			return err
		}
		for _, n := range x {
			b.PutUint64(uint64(n))
		}
	case []float32:
		if err := putLen(b.PutByte(TagFloat32Array), len(x)); err != nil {
			return err
		}
		for _, n := range x {
			b.PutFloat32(n)
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

func putLen(b *PayloadBuilder, n int) error {
	if n > math.MaxUint16 {
		return fmt.Errorf("array too long: %d", n)
	}
	b.PutUint16(uint16(n))
	return nil
}

// DecodeFrame parses a frame produced by EncodeFrame. Truncated payloads,
// unknown tags, duplicate keys and trailing bytes are reported as
// ErrMalformedPacket.
func DecodeFrame(data []byte) (int, RawFields, error) {
	if len(data) < FrameHeaderSize {
		return 0, nil, fmt.Errorf("%w: frame is %d bytes", ErrMalformedPacket, len(data))
	}
	if len(data) > MaxFrameSize {
		return 0, nil, fmt.Errorf("%w: frame too large: %d bytes", ErrMalformedPacket, len(data))
	}

	r := bytes.NewReader(data)

	var code uint16
	var count uint8
	if err := binary.Read(r, binary.LittleEndian, &code); err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read code: %w", ErrMalformedPacket, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read field count: %w", ErrMalformedPacket, err)
	}

	raw := make(RawFields, count)
	for i := 0; i < int(count); i++ {
		var key, tag byte
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return 0, nil, fmt.Errorf("%w: failed to read key of field %d: %w", ErrMalformedPacket, i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
			return 0, nil, fmt.Errorf("%w: failed to read tag of field %d: %w", ErrMalformedPacket, key, err)
		}
		if _, dup := raw[key]; dup {
			return 0, nil, fmt.Errorf("%w: duplicate field %d", ErrMalformedPacket, key)
		}

		v, err := readValue(r, tag)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: field %d: %w", ErrMalformedPacket, key, err)
		}
		raw[key] = v
	}

	if r.Len() != 0 {
		return 0, nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPacket, r.Len())
	}
	return int(code), raw, nil
}

func readValue(r *bytes.Reader, tag byte) (any, error) {
	switch tag {
	case TagBool:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v != 0, err
	case TagByte:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case TagInt16:
		var v int16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case TagInt32:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case TagInt64:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case TagFloat32:
		var v float32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case TagFloat64:
		var v float64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case TagString:
		b, err := readBytes(r, 1)
		return string(b), err
	case TagBytes:
		return readBytes(r, 1)
	case TagInt16Array:
		return readArray[int16](r, 2)
	case TagInt32Array:
		return readArray[int32](r, 4)
	case TagInt64Array:
		return readArray[int64](r, 8)
	case TagFloat32Array:
		return readArray[float32](r, 4)
	default:
		return nil, fmt.Errorf("unknown tag 0x%02X", tag)
	}
}

// readBytes reads a [length:2] prefixed run of length*width bytes, checking
// the declared length against what is left before allocating.
func readBytes(r *bytes.Reader, width int) ([]byte, error) {
	n, err := readLen(r, width)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("failed to read %d bytes: %w", n, err)
	}
	return out, nil
}

func readArray[T int16 | int32 | int64 | float32](r *bytes.Reader, width int) ([]T, error) {
	n, err := readLen(r, width)
	if err != nil {
		return nil, err
	}
	out := make([]T, n/width)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("failed to read array: %w", err)
	}
	return out, nil
}

func readLen(r *bytes.Reader, width int) (int, error) {
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, fmt.Errorf("failed to read length: %w", err)
	}
	n := int(count) * width
	if n > r.Len() {
		return 0, fmt.Errorf("declared length %d exceeds remaining %d bytes", n, r.Len())
	}
	return n, nil
}
