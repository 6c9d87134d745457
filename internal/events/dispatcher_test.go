package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newMove() *Event {
	return New(&Move{ID: 42, Position: Vector2{X: 1, Y: 2}, NewPosition: Vector2{X: 3, Y: 4}}, time.Now())
}

func TestDispatch_FailingConsumerDoesNotStopSiblings(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(zerolog.Nop())
	var a, c atomic.Int32
	boom := errors.New("boom")

	d.Subscribe(KindMove, "a", func(ctx context.Context, ev *Event) error {
		a.Add(1)
		return nil
	})
	d.Subscribe(KindMove, "b", func(ctx context.Context, ev *Event) error {
		return boom
	})
	d.Subscribe(KindMove, "c", func(ctx context.Context, ev *Event) error {
		c.Add(1)
		return nil
	})

	err := d.Dispatch(context.Background(), newMove())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "b", herr.Handler)
	assert.Equal(t, KindMove, herr.Kind)

	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), c.Load())

	dispatched, failures := d.Stats()
	assert.Equal(t, uint64(1), dispatched)
	assert.Equal(t, uint64(1), failures)
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(zerolog.Nop())
	var ok atomic.Bool

	d.Subscribe(KindMove, "panics", func(ctx context.Context, ev *Event) error {
		panic("bad handler")
	})
	d.SubscribeAll("global", func(ctx context.Context, ev *Event) error {
		ok.Store(true)
		return nil
	})

	err := d.Dispatch(context.Background(), newMove())
	require.ErrorIs(t, err, ErrHandlerPanic)
	assert.True(t, ok.Load())
}

func TestDispatch_GlobalAndKindHandlers(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	var mu sync.Mutex
	seen := map[string][]Kind{}
	record := func(name string) HandlerFunc {
		return func(ctx context.Context, ev *Event) error {
			mu.Lock()
			defer mu.Unlock()
			seen[name] = append(seen[name], ev.Kind)
			return nil
		}
	}

	d.Subscribe(KindMove, "moves", record("moves"))
	d.SubscribeAll("all", record("all"))

	require.NoError(t, d.Dispatch(context.Background(), newMove()))
	require.NoError(t, d.Dispatch(context.Background(), New(&Leave{ID: 1}, time.Now())))

	assert.Equal(t, []Kind{KindMove}, seen["moves"])
	assert.ElementsMatch(t, []Kind{KindMove, KindLeave}, seen["all"])
}

func TestDispatcher_UnsubscribeAndCounts(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	noop := func(ctx context.Context, ev *Event) error { return nil }

	d.Subscribe(KindMove, "a", noop)
	d.Subscribe(KindMove, "b", noop)
	d.Subscribe(KindLeave, "c", noop)
	d.SubscribeAll("g", noop)

	assert.Equal(t, 2, d.HandlerCount(KindMove))
	assert.Equal(t, 1, d.GlobalHandlerCount())

	d.Unsubscribe(KindMove, "a")
	assert.Equal(t, 1, d.HandlerCount(KindMove))

	d.UnsubscribeAll(KindLeave)
	assert.Equal(t, 0, d.HandlerCount(KindLeave))

	d.UnsubscribeGlobal("g")
	assert.Equal(t, 0, d.GlobalHandlerCount())
}

func TestDispatch_NoHandlersIsNotAnError(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	assert.NoError(t, d.Dispatch(context.Background(), newMove()))
	assert.NoError(t, d.Dispatch(context.Background(), nil))
}

func TestDispatcher_StopWaitsForInflight(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(zerolog.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	var finished atomic.Bool

	d.Subscribe(KindMove, "slow", func(ctx context.Context, ev *Event) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Dispatch(context.Background(), newMove())
	}()
	<-started

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	close(release)
	<-stopped
	assert.True(t, finished.Load())
	<-done

	var calls atomic.Int32
	d.Subscribe(KindMove, "late", func(ctx context.Context, ev *Event) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, d.Dispatch(context.Background(), newMove()))
	assert.Zero(t, calls.Load())
}
