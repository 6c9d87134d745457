package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/profile"
)

type stubEnricher struct {
	name     string
	priority int
	enabled  bool
	kinds    []events.Kind
	fn       func(ev *events.Event) (*events.Event, error)
	calls    int
}

func (s *stubEnricher) Name() string  { return s.name }
func (s *stubEnricher) Priority() int { return s.priority }
func (s *stubEnricher) Enabled() bool { return s.enabled }

func (s *stubEnricher) CanProcess(kind events.Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *stubEnricher) Enrich(_ context.Context, ev *events.Event, _ *profile.Profile) (*events.Event, error) {
	s.calls++
	return s.fn(ev)
}

func tagger(name string, priority int, trail *[]string) *stubEnricher {
	return &stubEnricher{name: name, priority: priority, enabled: true, fn: func(ev *events.Event) (*events.Event, error) {
		*trail = append(*trail, name)
		return ev, nil
	}}
}

func mobEvent(tier int) *events.Event {
	return events.New(&events.NewMob{ID: 1, Tier: tier}, time.Now())
}

func TestChain_RunsInStablePriorityOrder(t *testing.T) {
	var trail []string
	chain := NewChain(zerolog.Nop(),
		tagger("late", 200, &trail),
		tagger("first", 10, &trail),
		tagger("mid-a", 100, &trail),
		tagger("mid-b", 100, &trail),
	)

	out, err := chain.Enrich(context.Background(), mobEvent(4), nil)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, []string{"first", "mid-a", "mid-b", "late"}, trail)
}

func TestChain_SkipsDisabledAndNonMatching(t *testing.T) {
	var trail []string
	disabled := tagger("disabled", 1, &trail)
	disabled.enabled = false
	other := tagger("players-only", 2, &trail)
	other.kinds = []events.Kind{events.KindNewCharacter}

	chain := NewChain(zerolog.Nop(), disabled, other, tagger("all", 3, &trail))

	_, err := chain.Enrich(context.Background(), mobEvent(4), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"all"}, trail)

	assert.Len(t, chain.Active(), 2)
	assert.Len(t, chain.ForKind(events.KindNewMob), 1)
	assert.Len(t, chain.ForKind(events.KindNewCharacter), 2)
}

func TestChain_FailureKeepsLastGoodEvent(t *testing.T) {
	annotate := &stubEnricher{name: "annotate", priority: 1, enabled: true, fn: func(ev *events.Event) (*events.Event, error) {
		out := ev.Clone()
		out.Annotations.TierColor = "#123456"
		return out, nil
	}}
	fails := &stubEnricher{name: "fails", priority: 2, enabled: true, fn: func(ev *events.Event) (*events.Event, error) {
		return nil, errors.New("broken")
	}}
	panics := &stubEnricher{name: "panics", priority: 3, enabled: true, fn: func(ev *events.Event) (*events.Event, error) {
		panic("very broken")
	}}
	var trail []string
	after := tagger("after", 4, &trail)

	chain := NewChain(zerolog.Nop(), annotate, fails, panics, after)
	out, err := chain.Enrich(context.Background(), mobEvent(4), nil)
	require.NoError(t, err)
	assert.Equal(t, "#123456", out.Annotations.TierColor)
	assert.Equal(t, []string{"after"}, trail)
}

func TestChain_FilterStopsChain(t *testing.T) {
	veto := &stubEnricher{name: "veto", priority: 50, enabled: true, fn: func(ev *events.Event) (*events.Event, error) {
		return nil, ErrFiltered
	}}
	var trail []string
	later := tagger("later", 100, &trail)

	chain := NewChain(zerolog.Nop(), later, veto)
	out, err := chain.Enrich(context.Background(), mobEvent(4), nil)
	assert.ErrorIs(t, err, ErrFiltered)
	assert.Nil(t, out)
	assert.Empty(t, trail)
	assert.Zero(t, later.calls)
}

func TestChain_NilResultIsFilter(t *testing.T) {
	dropper := &stubEnricher{name: "dropper", priority: 1, enabled: true, fn: func(ev *events.Event) (*events.Event, error) {
		return nil, nil
	}}
	chain := NewChain(zerolog.Nop(), dropper)

	_, err := chain.Enrich(context.Background(), mobEvent(4), nil)
	assert.ErrorIs(t, err, ErrFiltered)
}

func TestChain_IsAnEnricher(t *testing.T) {
	var _ Enricher = (*Chain)(nil)
	chain := NewChain(zerolog.Nop())
	assert.Equal(t, "composite", chain.Name())
	assert.Equal(t, 0, chain.Priority())

	out, err := chain.Enrich(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}
