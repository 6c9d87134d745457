package enrich

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/profile"
)

// LocalPositionProvider reports where the local player is.
type LocalPositionProvider interface {
	LocalPosition() (events.Vector2, bool)
}

const defaultProximityWarn = 100.0

// ProximityAlert annotates player events with their distance to the local
// player and flags those inside the warning radius.
type ProximityAlert struct {
	local  LocalPositionProvider
	logger zerolog.Logger
}

// NewProximityAlert creates the proximity stage.
func NewProximityAlert(local LocalPositionProvider, logger zerolog.Logger) *ProximityAlert {
	return &ProximityAlert{local: local, logger: logger}
}

func (*ProximityAlert) Name() string  { return "ProximityAlert" }
func (*ProximityAlert) Priority() int { return PriorityProximityAlert }

func (a *ProximityAlert) Enabled() bool { return a.local != nil }

func (*ProximityAlert) CanProcess(kind events.Kind) bool {
	return kind.Category() == events.CategoryPlayer
}

// Enrich does nothing unless the profile turns AlertOnPlayerProximity on
// and both positions are known.
func (a *ProximityAlert) Enrich(_ context.Context, ev *events.Event, p *profile.Profile) (*events.Event, error) {
	if p == nil || !p.Enabled(profile.ToggleAlertOnPlayerProximity, false) {
		return ev, nil
	}

	pos, ok := ev.Position()
	if !ok {
		return ev, nil
	}
	local, ok := a.local.LocalPosition()
	if !ok {
		return ev, nil
	}

	warn, set := p.Threshold(profile.ThresholdPlayerDistanceWarn)
	if !set {
		warn = defaultProximityWarn
	}

	distance := pos.DistanceTo(local)
	out := ev.Clone()
	out.Annotations.Distance = distance
	out.Annotations.ProximityAlert = float64(distance) <= warn

	if out.Annotations.ProximityAlert {
		out.Annotations.AlertLevel = AlertLevel(distance)
		a.logger.Info().
			Str("event", string(ev.Kind)).
			Float32("distance", distance).
			Float64("threshold", warn).
			Str("level", out.Annotations.AlertLevel).
			Msg("player proximity alert")
	}
	return out, nil
}

// Alert levels by distance to the local player.
const (
	AlertCritical = "critical"
	AlertHigh     = "high"
	AlertMedium   = "medium"
	AlertLow      = "low"
)

// AlertLevel grades an alert: critical up to 25, high up to 50, medium up
// to 75, low beyond.
func AlertLevel(distance float32) string {
	switch {
	case distance <= 25:
		return AlertCritical
	case distance <= 50:
		return AlertHigh
	case distance <= 75:
		return AlertMedium
	}
	return AlertLow
}
