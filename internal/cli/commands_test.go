package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/profile"
	"github.com/albionradar/sniffer/internal/schema"
	"github.com/albionradar/sniffer/internal/sniffer"
	"github.com/albionradar/sniffer/internal/world"
)

func newTestCLI(t *testing.T, in string) (*CLI, *bytes.Buffer, *bool) {
	t.Helper()
	logger := zerolog.Nop()

	engine := sniffer.NewEngine(schema.NewRegistry(logger), logger)
	t.Cleanup(engine.Stop)

	def := profile.Default()
	gank := profile.Default()
	gank.Name = "gank"
	gank.TierPalette = "vibrant"
	profiles, err := profile.NewManager([]profile.Profile{def, gank}, "", logger)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	quit := false
	c := NewCLI(Deps{
		Engine:   engine,
		World:    world.New(logger),
		Profiles: profiles,
	}, strings.NewReader(in), out, func() { quit = true }, logger)
	return c, out, &quit
}

func TestExecute_ProfileSwitch(t *testing.T) {
	c, out, _ := newTestCLI(t, "")
	ctx := context.Background()

	_, err := c.Execute(ctx, "profile gank")
	require.NoError(t, err)
	assert.Equal(t, "gank", c.deps.Profiles.Current().Name)
	assert.Contains(t, out.String(), "Active profile: gank")

	_, err = c.Execute(ctx, "profile")
	require.ErrorIs(t, err, ErrUsage)

	_, err = c.Execute(ctx, "profile nobody")
	require.ErrorIs(t, err, profile.ErrProfileNotFound)

	out.Reset()
	_, err = c.Execute(ctx, "profiles")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "vibrant")
	assert.Contains(t, out.String(), "gank")
}

func TestExecute_StatusAndWorld(t *testing.T) {
	c, out, _ := newTestCLI(t, "")
	ctx := context.Background()
	c.deps.World.Apply(events.New(&events.NewCharacter{ID: 1, Name: "Zed", Guild: "Wolves"}, time.Now()))

	_, err := c.Execute(ctx, "status")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "position key")

	out.Reset()
	_, err = c.Execute(ctx, "world")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Zed")
	assert.Contains(t, out.String(), "Wolves")

	_, err = c.Execute(ctx, "reload")
	require.ErrorIs(t, err, schema.ErrNotLoaded)
}

func TestStart_QuitStopsLoop(t *testing.T) {
	c, out, quit := newTestCLI(t, "help\nbogus\nquit\nstatus\n")

	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
	assert.True(t, *quit)
	assert.Contains(t, out.String(), "Unknown command: 'bogus'")
	assert.NotContains(t, out.String(), "packets received")
}
