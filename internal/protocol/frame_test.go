package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	raw := RawFields{
		0:  true,
		1:  uint8(7),
		2:  int16(-3),
		3:  int32(70000),
		4:  int64(-1 << 40),
		5:  float32(1.5),
		6:  float64(2.25),
		7:  "hello",
		8:  []byte{1, 2, 3},
		9:  []int16{-1, 2},
		10: []int32{3, -4},
		11: []int64{5, 6},
		12: []float32{7.5, 8.5},
		13: []byte{},
	}

	data, err := EncodeFrame(593, raw)
	require.NoError(t, err)

	code, got, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, 593, code)
	if diff := cmp.Diff(raw, got); diff != "" {
		t.Fatalf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestFrame_IntIsWidened(t *testing.T) {
	data, err := EncodeFrame(1, RawFields{0: 42})
	require.NoError(t, err)

	_, got, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got[0])
}

func TestFrame_RejectsCorruptInput(t *testing.T) {
	valid, err := EncodeFrame(3, RawFields{0: []byte{1, 2, 3, 4}})
	require.NoError(t, err)

	overlong := append([]byte(nil), valid...)
	// [code:2][count:1][key:1][tag:1][len:2] -> declare far more bytes than present
	overlong[5] = 0xFF
	overlong[6] = 0x7F

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{1, 0}},
		{"truncated", valid[:len(valid)-1]},
		{"trailing", append(append([]byte(nil), valid...), 0)},
		{"unknown tag", []byte{3, 0, 1, 0, 0xEE}},
		{"declared length exceeds data", overlong},
		{"duplicate key", []byte{3, 0, 2, 0, TagByte, 1, 0, TagByte, 2}},
		{"missing fields", []byte{3, 0, 2, 0, TagByte, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFrame(tt.data)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestEncodeFrame_Validation(t *testing.T) {
	_, err := EncodeFrame(-1, nil)
	assert.Error(t, err)

	_, err = EncodeFrame(70000, nil)
	assert.Error(t, err)

	_, err = EncodeFrame(1, RawFields{0: struct{}{}})
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestPayloadBuilder(t *testing.T) {
	b := NewPayloadBuilder().PutByte(1).PutUint16(0x0302).PutString("ab").Pad(2)
	assert.Equal(t, []byte{1, 2, 3, 2, 0, 'a', 'b', 0, 0}, b.Build())
	assert.Equal(t, 9, b.Len())

	b.Reset()
	assert.Zero(t, b.Len())
}
