package enrich

import (
	"context"
	"fmt"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/profile"
)

var categoryToggles = map[events.Category]string{
	events.CategoryPlayer:   profile.ToggleShowPlayers,
	events.CategoryMob:      profile.ToggleShowMobs,
	events.CategoryResource: profile.ToggleShowResources,
	events.CategoryChest:    profile.ToggleShowChests,
	events.CategoryDungeon:  profile.ToggleShowDungeons,
	events.CategoryFishing:  profile.ToggleShowFishing,
	events.CategoryWisp:     profile.ToggleShowWisps,
}

var categoryMinTier = map[events.Category]string{
	events.CategoryResource: profile.ThresholdResourceMinimumTier,
	events.CategoryMob:      profile.ThresholdMobMinimumTier,
	events.CategoryChest:    profile.ThresholdChestMinimumTier,
}

// ProfileFilter vetoes events the active profile does not want to see and
// marks highlighted players.
type ProfileFilter struct {
	local LocalPositionProvider
}

// NewProfileFilter creates the filter stage.
func NewProfileFilter() *ProfileFilter { return &ProfileFilter{} }

// WithLocal enables the MaxTrackingDistance veto against the local player
// position.
func (f *ProfileFilter) WithLocal(local LocalPositionProvider) *ProfileFilter {
	f.local = local
	return f
}

func (*ProfileFilter) Name() string                  { return "ProfileFilter" }
func (*ProfileFilter) Priority() int                 { return PriorityProfileFilter }
func (*ProfileFilter) Enabled() bool                 { return true }
func (*ProfileFilter) CanProcess(_ events.Kind) bool { return true }

// Enrich applies, in order: the category feature toggle, the category
// minimum tier (only for events reporting a tier), the tracking distance
// (only when the local position is known) and the player ignore lists.
// Undeclared toggles show the event. Players of highlighted guilds or
// alliances, and tracked players, are annotated as highlighted.
func (f *ProfileFilter) Enrich(_ context.Context, ev *events.Event, p *profile.Profile) (*events.Event, error) {
	if p == nil {
		return ev, nil
	}

	category := ev.Kind.Category()
	if toggle, ok := categoryToggles[category]; ok && !p.Enabled(toggle, true) {
		return nil, fmt.Errorf("%w: %s disabled", ErrFiltered, toggle)
	}

	if name, ok := categoryMinTier[category]; ok {
		if minTier, set := p.Threshold(name); set {
			if tier, known := ev.Tier(); known && float64(tier) < minTier {
				return nil, fmt.Errorf("%w: tier %d below %s %.0f", ErrFiltered, tier, name, minTier)
			}
			if list, isList := ev.Payload.(*events.NewHarvestablesList); isList {
				return filterHarvestables(ev, list, minTier)
			}
		}
	}

	if category != events.CategoryWorld {
		if d, limit, far := f.beyondTracking(ev, p); far {
			return nil, fmt.Errorf("%w: distance %.0f exceeds %s %.0f", ErrFiltered, d, profile.ThresholdMaxTrackingDistance, limit)
		}
	}

	if category == events.CategoryPlayer {
		name, guild, alliance := affiliation(ev.Payload)
		if p.IgnoresGuild(guild) {
			return nil, fmt.Errorf("%w: guild %s ignored", ErrFiltered, guild)
		}
		if p.IgnoresAlliance(alliance) {
			return nil, fmt.Errorf("%w: alliance %s ignored", ErrFiltered, alliance)
		}
		if p.Highlights(guild, alliance) || p.Tracks(name) {
			out := ev.Clone()
			out.Annotations.Highlighted = true
			return out, nil
		}
	}

	return ev, nil
}

// beyondTracking reports whether the event lies farther from the local
// player than MaxTrackingDistance. Unknown positions never veto.
func (f *ProfileFilter) beyondTracking(ev *events.Event, p *profile.Profile) (distance float32, limit float64, far bool) {
	if f.local == nil {
		return 0, 0, false
	}
	limit, set := p.Threshold(profile.ThresholdMaxTrackingDistance)
	if !set || limit <= 0 {
		return 0, 0, false
	}
	pos, ok := ev.Position()
	if !ok {
		return 0, 0, false
	}
	local, ok := f.local.LocalPosition()
	if !ok {
		return 0, 0, false
	}
	distance = pos.DistanceTo(local)
	return distance, limit, float64(distance) > limit
}

// filterHarvestables drops list entries below the minimum tier. A list that
// loses every entry is filtered as a whole.
func filterHarvestables(ev *events.Event, list *events.NewHarvestablesList, minTier float64) (*events.Event, error) {
	kept := make([]events.HarvestableEntry, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Tier > 0 && float64(item.Tier) < minTier {
			continue
		}
		kept = append(kept, item)
	}

	if len(kept) == len(list.Items) {
		return ev, nil
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: all harvestables below tier %.0f", ErrFiltered, minTier)
	}

	out := ev.Clone()
	out.Payload = &events.NewHarvestablesList{Items: kept}
	return out, nil
}

func affiliation(p events.Payload) (name, guild, alliance string) {
	switch v := p.(type) {
	case *events.NewCharacter:
		return v.Name, v.Guild, v.Alliance
	case *events.MistsPlayerJoined:
		return v.Name, v.Guild, v.Alliance
	}
	return "", "", ""
}
