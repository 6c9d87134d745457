// Package profile holds the user-selectable presentation profiles that drive
// enrichment: feature toggles, tier thresholds, filters and tier palettes.
package profile

import (
	"errors"
	"fmt"
	"strings"
)

// Feature toggle names.
const (
	ToggleShowHideouts           = "ShowHideouts"
	ToggleShowDungeons           = "ShowDungeons"
	ToggleShowResources          = "ShowResources"
	ToggleShowPlayers            = "ShowPlayers"
	ToggleShowMobs               = "ShowMobs"
	ToggleShowChests             = "ShowChests"
	ToggleShowFishing            = "ShowFishing"
	ToggleShowWisps              = "ShowWisps"
	ToggleAlertOnPlayerProximity = "AlertOnPlayerProximity"
	ToggleTrackGuildMembers      = "TrackGuildMembers"
	ToggleTrackAlliances         = "TrackAlliances"
)

// Threshold names.
const (
	ThresholdPlayerDistanceWarn  = "PlayerDistanceWarn"
	ThresholdResourceMinimumTier = "ResourceMinimumTier"
	ThresholdMobMinimumTier      = "MobMinimumTier"
	ThresholdChestMinimumTier    = "ChestMinimumTier"
	ThresholdMaxTrackingDistance = "MaxTrackingDistance"
)

// DefaultName is the name of the built-in profile.
const DefaultName = "default"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
)

// Filters lists the guilds, alliances, players and items a profile singles
// out or hides.
type Filters struct {
	HighlightGuilds    []string `json:"highlight_guilds,omitempty" yaml:"highlight_guilds,omitempty"`
	HighlightAlliances []string `json:"highlight_alliances,omitempty" yaml:"highlight_alliances,omitempty"`
	TrackPlayers       []string `json:"track_players,omitempty" yaml:"track_players,omitempty"`
	IgnoreGuilds       []string `json:"ignore_guilds,omitempty" yaml:"ignore_guilds,omitempty"`
	IgnoreAlliances    []string `json:"ignore_alliances,omitempty" yaml:"ignore_alliances,omitempty"`
	TrackItems         []string `json:"track_items,omitempty" yaml:"track_items,omitempty"`
}

// Profile is a named presentation preset. Profiles are immutable once
// published to a Manager; edits go through Replace.
type Profile struct {
	Name           string             `json:"name" yaml:"name"`
	Description    string             `json:"description,omitempty" yaml:"description,omitempty"`
	TierPalette    string             `json:"tier_palette" yaml:"tier_palette"`
	FeatureToggles map[string]bool    `json:"feature_toggles" yaml:"feature_toggles"`
	Thresholds     map[string]float64 `json:"thresholds" yaml:"thresholds"`
	Filters        Filters            `json:"filters" yaml:"filters"`
	Priority       int                `json:"priority" yaml:"priority"`
}

// DefaultToggles returns the toggle set of a fresh profile.
func DefaultToggles() map[string]bool {
	return map[string]bool{
		ToggleShowHideouts:           true,
		ToggleShowDungeons:           true,
		ToggleShowResources:          true,
		ToggleShowPlayers:            true,
		ToggleShowMobs:               true,
		ToggleShowChests:             true,
		ToggleAlertOnPlayerProximity: false,
		ToggleTrackGuildMembers:      false,
		ToggleTrackAlliances:         false,
	}
}

// DefaultThresholds returns the threshold set of a fresh profile.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		ThresholdPlayerDistanceWarn:  100,
		ThresholdResourceMinimumTier: 4,
		ThresholdMobMinimumTier:      4,
		ThresholdChestMinimumTier:    4,
		ThresholdMaxTrackingDistance: 500,
	}
}

// Default returns the built-in profile.
func Default() Profile {
	return Profile{
		Name:           DefaultName,
		Description:    "Balanced defaults",
		TierPalette:    PaletteClassic,
		FeatureToggles: DefaultToggles(),
		Thresholds:     DefaultThresholds(),
		Priority:       5,
	}
}

// WithDefaults fills unset fields from Default. Toggles and thresholds
// declared by the profile win over the defaults.
func (p Profile) WithDefaults() Profile {
	def := Default()
	if p.TierPalette == "" {
		p.TierPalette = def.TierPalette
	}

	toggles := def.FeatureToggles
	for k, v := range p.FeatureToggles {
		toggles[k] = v
	}
	p.FeatureToggles = toggles

	thresholds := def.Thresholds
	for k, v := range p.Thresholds {
		thresholds[k] = v
	}
	p.Thresholds = thresholds
	return p
}

// Toggle returns a feature toggle. Undeclared toggles are reported as not
// set so callers can choose their own default.
func (p *Profile) Toggle(name string) (value, set bool) {
	value, set = p.FeatureToggles[name]
	return value, set
}

// Enabled returns a toggle, defaulting to def when undeclared.
func (p *Profile) Enabled(name string, def bool) bool {
	if v, ok := p.FeatureToggles[name]; ok {
		return v
	}
	return def
}

// Threshold returns a numeric threshold.
func (p *Profile) Threshold(name string) (float64, bool) {
	v, ok := p.Thresholds[name]
	return v, ok
}

// IgnoresGuild reports whether the guild is on the ignore list.
func (p *Profile) IgnoresGuild(guild string) bool {
	return containsFold(p.Filters.IgnoreGuilds, guild)
}

// IgnoresAlliance reports whether the alliance is on the ignore list.
func (p *Profile) IgnoresAlliance(alliance string) bool {
	return containsFold(p.Filters.IgnoreAlliances, alliance)
}

// Highlights reports whether the guild or alliance is highlighted.
func (p *Profile) Highlights(guild, alliance string) bool {
	return containsFold(p.Filters.HighlightGuilds, guild) || containsFold(p.Filters.HighlightAlliances, alliance)
}

// Tracks reports whether the player is on the tracking list.
func (p *Profile) Tracks(player string) bool {
	return containsFold(p.Filters.TrackPlayers, player)
}

// Validate checks the profile for values the enrichers cannot work with.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if p.Priority < 0 || p.Priority > 10 {
		return fmt.Errorf("%w: %s: priority %d out of range 0-10", ErrInvalidProfile, p.Name, p.Priority)
	}
	for name, v := range p.Thresholds {
		if v < 0 {
			return fmt.Errorf("%w: %s: threshold %s is negative", ErrInvalidProfile, p.Name, name)
		}
	}
	return nil
}

func containsFold(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
