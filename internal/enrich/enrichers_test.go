package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/profile"
)

type fixedPosition struct {
	pos   events.Vector2
	known bool
}

func (f fixedPosition) LocalPosition() (events.Vector2, bool) { return f.pos, f.known }

func defaultChain(local LocalPositionProvider) *Chain {
	return NewChain(zerolog.Nop(),
		NewProfileFilter(),
		NewTierColor(nil),
		NewProximityAlert(local, zerolog.Nop()),
	)
}

func withToggles(toggles map[string]bool) *profile.Profile {
	p := profile.Profile{Name: "test", FeatureToggles: toggles}.WithDefaults()
	return &p
}

func TestProfileFilter_ShowMobsOff(t *testing.T) {
	p := withToggles(map[string]bool{profile.ToggleShowMobs: false})
	chain := defaultChain(nil)

	_, err := chain.Enrich(context.Background(), events.New(&events.NewMob{ID: 1, Tier: 6}, time.Now()), p)
	assert.ErrorIs(t, err, ErrFiltered)

	player := events.New(&events.NewCharacter{ID: 2, Name: "Bran"}, time.Now())
	out, err := chain.Enrich(context.Background(), player, p)
	require.NoError(t, err)
	assert.Equal(t, events.KindNewCharacter, out.Kind)
}

func TestProfileFilter_TierThresholds(t *testing.T) {
	p := withToggles(nil)
	f := NewProfileFilter()
	ctx := context.Background()

	_, err := f.Enrich(ctx, events.New(&events.NewHarvestable{Tier: 3}, time.Now()), p)
	assert.ErrorIs(t, err, ErrFiltered)

	_, err = f.Enrich(ctx, events.New(&events.NewHarvestable{Tier: 4}, time.Now()), p)
	assert.NoError(t, err)

	_, err = f.Enrich(ctx, events.New(&events.NewLootChest{Tier: 2}, time.Now()), p)
	assert.ErrorIs(t, err, ErrFiltered)

	_, err = f.Enrich(ctx, events.New(&events.NewMob{Tier: 0}, time.Now()), p)
	assert.NoError(t, err, "unknown tier is never thresholded")

	_, err = f.Enrich(ctx, events.New(&events.NewDungeon{Tier: 1}, time.Now()), p)
	assert.NoError(t, err, "dungeons have no tier threshold")
}

func TestProfileFilter_HarvestablesList(t *testing.T) {
	p := withToggles(nil)
	f := NewProfileFilter()
	ctx := context.Background()

	ev := events.New(&events.NewHarvestablesList{Items: []events.HarvestableEntry{
		{ID: 1, Tier: 2}, {ID: 2, Tier: 5}, {ID: 3, Tier: 0},
	}}, time.Now())

	out, err := f.Enrich(ctx, ev, p)
	require.NoError(t, err)
	list := out.Payload.(*events.NewHarvestablesList)
	require.Len(t, list.Items, 2)
	assert.Equal(t, int64(2), list.Items[0].ID)
	assert.Equal(t, int64(3), list.Items[1].ID)
	assert.Len(t, ev.Payload.(*events.NewHarvestablesList).Items, 3, "input is not mutated")

	low := events.New(&events.NewHarvestablesList{Items: []events.HarvestableEntry{{ID: 1, Tier: 1}}}, time.Now())
	_, err = f.Enrich(ctx, low, p)
	assert.ErrorIs(t, err, ErrFiltered)
}

func TestProfileFilter_IgnoreLists(t *testing.T) {
	p := withToggles(nil)
	p.Filters.IgnoreGuilds = []string{"Friends"}
	p.Filters.IgnoreAlliances = []string{"ALLY"}
	f := NewProfileFilter()
	ctx := context.Background()

	_, err := f.Enrich(ctx, events.New(&events.NewCharacter{Guild: "friends"}, time.Now()), p)
	assert.ErrorIs(t, err, ErrFiltered)

	_, err = f.Enrich(ctx, events.New(&events.MistsPlayerJoined{Alliance: "ally"}, time.Now()), p)
	assert.ErrorIs(t, err, ErrFiltered)

	_, err = f.Enrich(ctx, events.New(&events.NewCharacter{Guild: "Foes"}, time.Now()), p)
	assert.NoError(t, err)
}

func TestProfileFilter_Highlights(t *testing.T) {
	p := withToggles(nil)
	p.Filters.HighlightGuilds = []string{"Raiders"}
	p.Filters.HighlightAlliances = []string{"BLOC"}
	p.Filters.TrackPlayers = []string{"Mira"}
	f := NewProfileFilter()
	ctx := context.Background()

	for _, payload := range []events.Payload{
		&events.NewCharacter{Name: "a", Guild: "raiders"},
		&events.NewCharacter{Name: "b", Alliance: "bloc"},
		&events.MistsPlayerJoined{Name: "mira"},
	} {
		ev := events.New(payload, time.Now())
		out, err := f.Enrich(ctx, ev, p)
		require.NoError(t, err)
		assert.True(t, out.Annotations.Highlighted, "%T", payload)
		assert.False(t, ev.Annotations.Highlighted, "input is not mutated")
	}

	plain := events.New(&events.NewCharacter{Name: "c", Guild: "Others"}, time.Now())
	out, err := f.Enrich(ctx, plain, p)
	require.NoError(t, err)
	assert.Same(t, plain, out)

	p.Filters.IgnoreGuilds = []string{"Raiders"}
	_, err = f.Enrich(ctx, events.New(&events.NewCharacter{Guild: "Raiders"}, time.Now()), p)
	assert.ErrorIs(t, err, ErrFiltered, "ignore wins over highlight")
}

func TestProfileFilter_MaxTrackingDistance(t *testing.T) {
	p := withToggles(nil)
	ctx := context.Background()
	local := fixedPosition{pos: events.Vector2{X: 10, Y: 10}, known: true}
	f := NewProfileFilter().WithLocal(local)

	far := events.New(&events.NewMob{Tier: 6, Position: events.Vector2{X: 10, Y: 611}}, time.Now())
	_, err := f.Enrich(ctx, far, p)
	assert.ErrorIs(t, err, ErrFiltered)

	near := events.New(&events.NewMob{Tier: 6, Position: events.Vector2{X: 10, Y: 509}}, time.Now())
	_, err = f.Enrich(ctx, near, p)
	assert.NoError(t, err)

	p.Thresholds[profile.ThresholdMaxTrackingDistance] = 1000
	_, err = f.Enrich(ctx, far, p)
	assert.NoError(t, err, "threshold comes from the profile")

	p.Thresholds[profile.ThresholdMaxTrackingDistance] = 500
	_, err = NewProfileFilter().WithLocal(fixedPosition{}).Enrich(ctx, far, p)
	assert.NoError(t, err, "unknown local position never vetoes")

	_, err = NewProfileFilter().Enrich(ctx, far, p)
	assert.NoError(t, err, "no local provider never vetoes")

	_, err = f.Enrich(ctx, events.New(&events.KeySync{}, time.Now()), p)
	assert.NoError(t, err, "events without a position pass")
}

func TestProfileFilter_NewCategoryToggles(t *testing.T) {
	p := withToggles(map[string]bool{profile.ToggleShowFishing: false})
	f := NewProfileFilter()

	_, err := f.Enrich(context.Background(), events.New(&events.NewFishingZone{}, time.Now()), p)
	assert.ErrorIs(t, err, ErrFiltered)

	_, err = f.Enrich(context.Background(), events.New(&events.NewGatedWisp{}, time.Now()), p)
	assert.NoError(t, err, "undeclared toggle shows the event")

	_, err = f.Enrich(context.Background(), events.New(&events.KeySync{}, time.Now()), withToggles(map[string]bool{
		profile.ToggleShowPlayers: false, profile.ToggleShowMobs: false,
	}))
	assert.NoError(t, err, "world events are never toggled off")
}

func TestTierColor(t *testing.T) {
	p := withToggles(nil)
	tc := NewTierColor(nil)

	ev := events.New(&events.NewHarvestable{Tier: 5}, time.Now())
	out, err := tc.Enrich(context.Background(), ev, p)
	require.NoError(t, err)
	assert.Equal(t, "#8000ff", out.Annotations.TierColor)
	assert.Equal(t, "#c080ff", out.Annotations.HighlightColor)
	assert.Empty(t, ev.Annotations.TierColor, "input is not mutated")

	p.TierPalette = "vibrant"
	out, err = tc.Enrich(context.Background(), ev, p)
	require.NoError(t, err)
	assert.Equal(t, "#c000ff", out.Annotations.TierColor)

	untiered := events.New(&events.NewMob{}, time.Now())
	out, err = tc.Enrich(context.Background(), untiered, p)
	require.NoError(t, err)
	assert.Same(t, untiered, out)

	assert.False(t, tc.CanProcess(events.KindMove))
}

func TestProximityAlert(t *testing.T) {
	ctx := context.Background()
	local := fixedPosition{pos: events.Vector2{X: 0, Y: 0}, known: true}
	pa := NewProximityAlert(local, zerolog.Nop())

	near := events.New(&events.NewCharacter{Position: events.Vector2{X: 30, Y: 40}}, time.Now())
	far := events.New(&events.NewCharacter{Position: events.Vector2{X: 300, Y: 400}}, time.Now())

	off := withToggles(nil)
	out, err := pa.Enrich(ctx, near, off)
	require.NoError(t, err)
	assert.False(t, out.Annotations.ProximityAlert, "alerts are opt-in")

	on := withToggles(map[string]bool{profile.ToggleAlertOnPlayerProximity: true})
	out, err = pa.Enrich(ctx, near, on)
	require.NoError(t, err)
	assert.True(t, out.Annotations.ProximityAlert)
	assert.Equal(t, AlertHigh, out.Annotations.AlertLevel)
	assert.InDelta(t, 50, out.Annotations.Distance, 1e-4)

	out, err = pa.Enrich(ctx, far, on)
	require.NoError(t, err)
	assert.False(t, out.Annotations.ProximityAlert)
	assert.Empty(t, out.Annotations.AlertLevel)
	assert.InDelta(t, 500, out.Annotations.Distance, 1e-3)

	unknown := NewProximityAlert(fixedPosition{}, zerolog.Nop())
	out, err = unknown.Enrich(ctx, near, on)
	require.NoError(t, err)
	assert.Same(t, near, out)

	assert.False(t, NewProximityAlert(nil, zerolog.Nop()).Enabled())
	assert.True(t, pa.CanProcess(events.KindMove))
	assert.False(t, pa.CanProcess(events.KindNewMob))
}

func TestAlertLevel(t *testing.T) {
	cases := []struct {
		distance float32
		want     string
	}{
		{0, AlertCritical},
		{25, AlertCritical},
		{25.5, AlertHigh},
		{50, AlertHigh},
		{75, AlertMedium},
		{75.1, AlertLow},
		{99, AlertLow},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AlertLevel(c.distance), "distance %v", c.distance)
	}
}
