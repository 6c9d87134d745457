package enrich

import (
	"context"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/profile"
)

// TierColor annotates tiered events with the active palette's colors.
type TierColor struct {
	palettes *profile.PaletteSet
}

// NewTierColor creates the tier color stage.
func NewTierColor(palettes *profile.PaletteSet) *TierColor {
	if palettes == nil {
		palettes = profile.NewPaletteSet()
	}
	return &TierColor{palettes: palettes}
}

func (*TierColor) Name() string  { return "TierColor" }
func (*TierColor) Priority() int { return PriorityTierColor }
func (*TierColor) Enabled() bool { return true }

func (*TierColor) CanProcess(kind events.Kind) bool {
	switch kind {
	case events.KindNewHarvestable, events.KindNewMob, events.KindNewLootChest, events.KindNewDungeon:
		return true
	}
	return false
}

func (t *TierColor) Enrich(_ context.Context, ev *events.Event, p *profile.Profile) (*events.Event, error) {
	tier, ok := ev.Tier()
	if !ok {
		return ev, nil
	}

	name := profile.PaletteClassic
	if p != nil {
		name = p.TierPalette
	}
	palette := t.palettes.Get(name)

	out := ev.Clone()
	out.Annotations.TierColor = palette.TierColor(tier).Hex()
	out.Annotations.HighlightColor = palette.HighlightColor(tier).Hex()
	return out, nil
}
