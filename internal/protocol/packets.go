// Package protocol turns framed game packets (a type code plus a positional
// field map) into typed events. Field positions come from the schema tables;
// the semantic layout of each packet is owned here.
package protocol

import "errors"

// RawFields is the positional field map of one framed packet. Values are
// bool, signed or unsigned integers of any width, float32/float64, string,
// []byte, []int16, []int32, []int64 or []float32.
type RawFields map[byte]any

// ErrMalformedPacket is returned for input that cannot be decoded safely.
var ErrMalformedPacket = errors.New("malformed packet")

// Move blob flags.
const (
	MoveFlagSpeed       byte = 0x01
	MoveFlagNewPosition byte = 0x02
)

// Move blob layout.
const (
	movePositionOffset = 9
	moveSpeedOffset    = 18
	vectorSize         = 8
)

// Frame value tags used by EncodeFrame/DecodeFrame.
const (
	TagBool         byte = 0x01
	TagByte         byte = 0x02
	TagInt16        byte = 0x03
	TagInt32        byte = 0x04
	TagInt64        byte = 0x05
	TagFloat32      byte = 0x06
	TagFloat64      byte = 0x07
	TagString       byte = 0x08
	TagBytes        byte = 0x09
	TagInt16Array   byte = 0x0A
	TagInt32Array   byte = 0x0B
	TagInt64Array   byte = 0x0C
	TagFloat32Array byte = 0x0D
)

// MaxFrameSize is the largest frame accepted from the ingest socket.
const MaxFrameSize = 65507

// FrameHeaderSize is the size of [code:2][count:1].
const FrameHeaderSize = 3
