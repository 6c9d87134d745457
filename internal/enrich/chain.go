package enrich

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/profile"
)

// Chain runs its enrichers in ascending priority order. It is itself an
// Enricher so chains can nest.
type Chain struct {
	enrichers []Enricher
	logger    zerolog.Logger
}

// NewChain sorts the enrichers by priority, keeping registration order for
// equal priorities.
func NewChain(logger zerolog.Logger, enrichers ...Enricher) *Chain {
	sorted := make([]Enricher, len(enrichers))
	copy(sorted, enrichers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Chain{enrichers: sorted, logger: logger}
}

func (c *Chain) Name() string                  { return "composite" }
func (c *Chain) Priority() int                 { return PriorityComposite }
func (c *Chain) Enabled() bool                 { return true }
func (c *Chain) CanProcess(_ events.Kind) bool { return true }

// Enrich threads ev through every enabled stage that accepts its kind.
// A failing stage is logged and skipped, keeping the last good event.
// ErrFiltered from any stage stops the chain and is returned.
func (c *Chain) Enrich(ctx context.Context, ev *events.Event, p *profile.Profile) (*events.Event, error) {
	if ev == nil {
		return nil, nil
	}

	current := ev
	for _, e := range c.enrichers {
		if !e.Enabled() || !e.CanProcess(current.Kind) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := c.run(ctx, e, current, p)
		switch {
		case errors.Is(err, ErrFiltered):
			c.logger.Debug().
				Str("event", string(current.Kind)).
				Str("enricher", e.Name()).
				Msg("event filtered")
			return nil, err
		case err != nil:
			c.logger.Warn().
				Err(err).
				Str("event", string(current.Kind)).
				Str("enricher", e.Name()).
				Msg("enricher failed")
			continue
		case next == nil:
			return nil, fmt.Errorf("%w by %s", ErrFiltered, e.Name())
		}
		current = next
	}
	return current, nil
}

func (c *Chain) run(ctx context.Context, e Enricher, ev *events.Event, p *profile.Profile) (out *events.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("enricher %s panicked: %v", e.Name(), r)
		}
	}()
	return e.Enrich(ctx, ev, p)
}

// Active returns the enabled enrichers in execution order.
func (c *Chain) Active() []Enricher {
	out := make([]Enricher, 0, len(c.enrichers))
	for _, e := range c.enrichers {
		if e.Enabled() {
			out = append(out, e)
		}
	}
	return out
}

// ForKind returns the enabled enrichers that would process kind.
func (c *Chain) ForKind(kind events.Kind) []Enricher {
	out := make([]Enricher, 0, len(c.enrichers))
	for _, e := range c.enrichers {
		if e.Enabled() && e.CanProcess(kind) {
			out = append(out, e)
		}
	}
	return out
}
