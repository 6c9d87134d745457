package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/albionradar/sniffer/internal/codec"
	"github.com/albionradar/sniffer/internal/events"
)

// MoveBlob is the parsed form of the Move packet's data field.
type MoveBlob struct {
	Flags       byte
	Position    events.Vector2
	NewPosition events.Vector2
	Speed       float32
}

// ParseMoveBlob reads [flags:1][...:8][position:8][...:1] followed by an
// optional speed float and an optional new position window. Without the
// new position flag the new position equals the position.
func ParseMoveBlob(blob []byte, c *codec.PositionCodec) (MoveBlob, error) {
	if len(blob) < movePositionOffset+vectorSize {
		return MoveBlob{}, fmt.Errorf("%w: move data is %d bytes, need %d", ErrMalformedPacket, len(blob), movePositionOffset+vectorSize)
	}

	var m MoveBlob
	m.Flags = blob[0]

	x, y := c.Decode(blob, movePositionOffset)
	m.Position = events.Vector2{X: x, Y: y}

	index := moveSpeedOffset
	if m.Flags&MoveFlagSpeed != 0 {
		if len(blob) < index+4 {
			return MoveBlob{}, fmt.Errorf("%w: move speed flag set but data is %d bytes", ErrMalformedPacket, len(blob))
		}
		speed := math.Float32frombits(binary.LittleEndian.Uint32(blob[index : index+4]))
		if !math.IsNaN(float64(speed)) && !math.IsInf(float64(speed), 0) {
			m.Speed = speed
		}
		index += 4
	}

	if m.Flags&MoveFlagNewPosition != 0 {
		if len(blob) < index+vectorSize {
			return MoveBlob{}, fmt.Errorf("%w: move new position flag set but data is %d bytes", ErrMalformedPacket, len(blob))
		}
		nx, ny := c.Decode(blob, index)
		m.NewPosition = events.Vector2{X: nx, Y: ny}
	} else {
		m.NewPosition = m.Position
	}

	return m, nil
}

// BuildMoveBlob is the inverse of ParseMoveBlob for already encoded position
// windows. A nil newPosition leaves the new position flag unset.
func BuildMoveBlob(position []byte, speed *float32, newPosition []byte) []byte {
	var flags byte
	if speed != nil {
		flags |= MoveFlagSpeed
	}
	if newPosition != nil {
		flags |= MoveFlagNewPosition
	}

	b := NewPayloadBuilder().
		PutByte(flags).
		Pad(movePositionOffset - 1).
		PutBytes(position).
		Pad(moveSpeedOffset - movePositionOffset - vectorSize)
	if speed != nil {
		b.PutFloat32(*speed)
	}
	if newPosition != nil {
		b.PutBytes(newPosition)
	}
	return b.Build()
}

func decodeMove(f *Fields) (events.Payload, error) {
	p := &events.Move{ID: f.Int("Id")}

	blob := f.Bytes("Data")
	if blob == nil {
		return p, nil
	}

	m, err := ParseMoveBlob(blob, f.codec)
	if err != nil {
		return nil, err
	}
	p.Flags = m.Flags
	p.Position = m.Position
	p.NewPosition = m.NewPosition
	p.Speed = m.Speed
	return p, nil
}
