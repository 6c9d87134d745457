// Package enrich runs decoded events through the profile-driven enrichment
// chain: filtering, tier colors and proximity alerts.
package enrich

import (
	"context"
	"errors"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/profile"
)

// ErrFiltered signals that an enricher vetoed the event. It is an outcome,
// not a failure: the event is simply not distributed.
var ErrFiltered = errors.New("event filtered")

// Enricher is one stage of the chain. Enrich returns the event to hand to
// the next stage; implementations return a modified clone rather than
// mutating their input.
type Enricher interface {
	Name() string
	Priority() int
	Enabled() bool
	CanProcess(kind events.Kind) bool
	Enrich(ctx context.Context, ev *events.Event, p *profile.Profile) (*events.Event, error)
}

// Stage priorities of the built-in enrichers. Lower runs first.
const (
	PriorityComposite      = 0
	PriorityProfileFilter  = 50
	PriorityTierColor      = 100
	PriorityProximityAlert = 200
)
