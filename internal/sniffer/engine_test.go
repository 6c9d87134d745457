package sniffer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albionradar/sniffer/internal/codec"
	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/pipeline"
	"github.com/albionradar/sniffer/internal/protocol"
	"github.com/albionradar/sniffer/internal/schema"
	"github.com/albionradar/sniffer/internal/world"
)

const (
	codeLeave        = 1
	codeMove         = 3
	codeNewCharacter = 29
	codeKeySync      = 593
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	table, err := schema.NewTable(nil, map[string]int{
		"Leave":        codeLeave,
		"Move":         codeMove,
		"NewCharacter": codeNewCharacter,
		"KeySync":      codeKeySync,
	})
	require.NoError(t, err)

	reg := schema.NewRegistry(zerolog.Nop())
	reg.Swap(table)

	e := NewEngine(reg, zerolog.Nop())
	t.Cleanup(e.Stop)
	return e
}

type fakeQueue struct {
	mu     sync.Mutex
	err    error
	events []*events.Event
}

func (q *fakeQueue) Enqueue(_ context.Context, ev *events.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, ev)
	return nil
}

func TestEngine_KeySyncBeforeMoveDecryptsPositions(t *testing.T) {
	e := newTestEngine(t)
	w := world.New(zerolog.Nop())
	w.Register(e.Dispatcher())
	ctx := context.Background()

	require.NoError(t, e.Handle(ctx, codeNewCharacter, protocol.RawFields{0: int64(9), 1: "Zed"}))

	key := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	require.NoError(t, e.Handle(ctx, codeKeySync, protocol.RawFields{0: key}))
	assert.True(t, e.Codec().HasKey())

	// Encrypt with an independent codec holding the same key.
	enc := codec.NewPositionCodec()
	require.NoError(t, enc.SetKey(key))
	speed := float32(6)
	blob := protocol.BuildMoveBlob(enc.Encode(10, 20), &speed, enc.Encode(11, 22))
	require.NoError(t, e.Handle(ctx, codeMove, protocol.RawFields{0: int64(9), 1: blob}))

	p, ok := w.Players.Get(9)
	require.True(t, ok)
	assert.Equal(t, events.Vector2{X: 11, Y: 22}, p.Position)
	assert.Equal(t, float32(6), p.Speed)

	st := e.Stats()
	assert.Equal(t, uint64(3), st.Received)
	assert.Equal(t, uint64(3), st.Decoded)
	assert.Equal(t, uint64(1), st.KeySyncs)
	assert.True(t, st.HasKey)
}

func TestEngine_InvalidKeyIsHandlerFailure(t *testing.T) {
	e := newTestEngine(t)

	err := e.Handle(context.Background(), codeKeySync, protocol.RawFields{0: []byte{1, 2, 3}})
	require.ErrorIs(t, err, codec.ErrInvalidKey)
	assert.False(t, e.Codec().HasKey())
	assert.Equal(t, uint64(1), e.Stats().DispatchFailures)
}

func TestEngine_UnknownAndMalformed(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Handle(ctx, 4242, protocol.RawFields{0: int32(1)}))

	err := e.HandleFrame(ctx, []byte{0x01})
	require.ErrorIs(t, err, protocol.ErrMalformedPacket)

	st := e.Stats()
	assert.Equal(t, uint64(1), st.Unknown)
	assert.Equal(t, uint64(1), st.Malformed)
	assert.Equal(t, uint64(2), st.Received)
}

func TestEngine_HandleFrame(t *testing.T) {
	e := newTestEngine(t)
	q := &fakeQueue{}
	e.AttachPipeline(q)

	frame, err := protocol.EncodeFrame(codeLeave, protocol.RawFields{0: int64(77)})
	require.NoError(t, err)
	require.NoError(t, e.HandleFrame(context.Background(), frame))

	require.Len(t, q.events, 1)
	assert.Equal(t, events.KindLeave, q.events[0].Kind)
	assert.Equal(t, int64(77), q.events[0].Payload.(*events.Leave).ID)
}

func TestEngine_FullQueueIsNotAFailure(t *testing.T) {
	e := newTestEngine(t)
	q := &fakeQueue{err: pipeline.ErrQueueFull}
	e.AttachPipeline(q)

	require.NoError(t, e.Handle(context.Background(), codeLeave, protocol.RawFields{0: int64(1)}))
	st := e.Stats()
	assert.Equal(t, uint64(1), st.Shed)
	assert.Zero(t, st.DispatchFailures)

	q.err = errors.New("stopped")
	require.Error(t, e.Handle(context.Background(), codeLeave, protocol.RawFields{0: int64(1)}))
	assert.Equal(t, uint64(1), e.Stats().DispatchFailures)

	e.DetachPipeline()
	assert.Zero(t, e.Dispatcher().GlobalHandlerCount())
}

func TestEngine_ReloadSchemaWithoutFiles(t *testing.T) {
	e := newTestEngine(t)
	require.ErrorIs(t, e.ReloadSchema(), schema.ErrNotLoaded)
}
