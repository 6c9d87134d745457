package profile

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Built-in palette names.
const (
	PaletteClassic = "classic"
	PaletteVibrant = "vibrant"
	PaletteMinimal = "minimal"
)

const (
	minTier = 1
	maxTier = 8
)

// Color is an RGB triple.
type Color struct {
	R, G, B uint8
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette maps tiers 1-8 to a base and a highlight color.
type Palette struct {
	Name       string
	Colors     [maxTier]Color
	Highlights [maxTier]Color
}

// TierColor returns the base color of a tier, clamped to 1-8.
func (p *Palette) TierColor(tier int) Color {
	return p.Colors[clampTier(tier)-1]
}

// HighlightColor returns the highlight color of a tier, clamped to 1-8.
func (p *Palette) HighlightColor(tier int) Color {
	return p.Highlights[clampTier(tier)-1]
}

func clampTier(tier int) int {
	if tier < minTier {
		return minTier
	}
	if tier > maxTier {
		return maxTier
	}
	return tier
}

// PaletteSet is a case-insensitive registry of palettes.
type PaletteSet struct {
	mu       sync.RWMutex
	palettes map[string]*Palette
}

// NewPaletteSet returns a set holding the built-in palettes.
func NewPaletteSet() *PaletteSet {
	s := &PaletteSet{palettes: make(map[string]*Palette)}
	s.Register(classic)
	s.Register(vibrant)
	s.Register(minimal)
	return s
}

// Register adds or replaces a palette.
func (s *PaletteSet) Register(p *Palette) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.palettes[strings.ToLower(p.Name)] = p
}

// Get returns the named palette, falling back to classic for unknown or
// empty names.
func (s *PaletteSet) Get(name string) *Palette {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.palettes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return s.palettes[PaletteClassic]
}

// Names returns the registered palette names.
func (s *PaletteSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.palettes))
	for name := range s.palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var classic = &Palette{
	Name: PaletteClassic,
	Colors: [maxTier]Color{
		{128, 128, 128}, // T1 gray
		{255, 255, 255}, // T2 white
		{0, 255, 0},     // T3 green
		{0, 128, 255},   // T4 blue
		{128, 0, 255},   // T5 purple
		{255, 128, 0},   // T6 orange
		{255, 0, 0},     // T7 red
		{255, 215, 0},   // T8 gold
	},
	Highlights: [maxTier]Color{
		{192, 192, 192},
		{240, 240, 240},
		{128, 255, 128},
		{128, 192, 255},
		{192, 128, 255},
		{255, 192, 128},
		{255, 128, 128},
		{255, 235, 128},
	},
}

// vibrant trades fidelity to game colors for contrast.
var vibrant = &Palette{
	Name: PaletteVibrant,
	Colors: [maxTier]Color{
		{64, 64, 64},
		{192, 192, 192},
		{0, 255, 64},
		{0, 192, 255},
		{192, 0, 255},
		{255, 165, 0},
		{255, 0, 128},
		{255, 255, 0},
	},
	Highlights: [maxTier]Color{
		{128, 128, 128},
		{224, 224, 224},
		{128, 255, 192},
		{128, 224, 255},
		{224, 128, 255},
		{255, 210, 128},
		{255, 128, 192},
		{255, 255, 192},
	},
}

var minimal = &Palette{
	Name: PaletteMinimal,
	Colors: [maxTier]Color{
		{96, 96, 96},
		{144, 144, 144},
		{96, 144, 96},
		{96, 96, 144},
		{144, 96, 144},
		{144, 112, 96},
		{144, 96, 96},
		{144, 144, 96},
	},
	Highlights: [maxTier]Color{
		{128, 128, 128},
		{176, 176, 176},
		{128, 176, 128},
		{128, 128, 176},
		{176, 128, 176},
		{176, 144, 128},
		{176, 128, 128},
		{176, 176, 128},
	},
}
