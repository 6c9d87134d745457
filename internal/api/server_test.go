package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/contracts"
	"github.com/albionradar/sniffer/internal/db"
	"github.com/albionradar/sniffer/internal/enrich"
	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/pipeline"
	"github.com/albionradar/sniffer/internal/profile"
	"github.com/albionradar/sniffer/internal/schema"
	"github.com/albionradar/sniffer/internal/sniffer"
	"github.com/albionradar/sniffer/internal/world"
)

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, string, contracts.Contract) error { return nil }

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	logger := zerolog.Nop()

	reg := schema.NewRegistry(logger)
	engine := sniffer.NewEngine(reg, logger)
	t.Cleanup(engine.Stop)

	def := profile.Default()
	pvp := profile.Default()
	pvp.Name = "pvp"
	profiles, err := profile.NewManager([]profile.Profile{def, pvp}, profile.DefaultName, logger)
	require.NoError(t, err)

	p := pipeline.New(pipeline.DefaultConfig(), enrich.NewChain(logger), contracts.NewDefaultRegistry(logger),
		discardPublisher{}, profiles, logger)

	return Deps{
		Engine:   engine,
		Pipeline: p,
		World:    world.New(logger),
		Profiles: profiles,
	}
}

func newTestServer(t *testing.T, cfg config.APIConfig, deps Deps) *Server {
	t.Helper()
	return NewServer(cfg, deps, zerolog.Nop())
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthAndHeaders(t *testing.T) {
	s := newTestServer(t, config.APIConfig{}, newTestDeps(t))

	rec := do(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, s, http.MethodGet, "/api/pipeline")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = do(t, s, http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, config.APIConfig{}, newTestDeps(t))

	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPipelineEndpoint(t *testing.T) {
	deps := newTestDeps(t)
	s := newTestServer(t, config.APIConfig{}, deps)

	rec := do(t, s, http.MethodGet, "/api/pipeline")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "created", body["state"])
	assert.Equal(t, float64(1000), body["capacity"])
	assert.Contains(t, body, "metrics")
}

func TestEngineAndWorldEndpoints(t *testing.T) {
	deps := newTestDeps(t)
	deps.World.Apply(events.New(&events.NewCharacter{ID: 4, Name: "Zed"}, time.Now()))
	s := newTestServer(t, config.APIConfig{}, deps)

	rec := do(t, s, http.MethodGet, "/api/engine")
	require.Equal(t, http.StatusOK, rec.Code)
	engine := decode(t, rec)["engine"].(map[string]any)
	assert.Equal(t, false, engine["hasKey"])

	rec = do(t, s, http.MethodGet, "/api/world")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap world.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Zed", snap.Players[0].Name)
}

func TestProfilesEndpoints(t *testing.T) {
	deps := newTestDeps(t)
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	deps.Config = cfg
	s := newTestServer(t, config.APIConfig{}, deps)

	rec := do(t, s, http.MethodGet, "/api/profiles")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, profile.DefaultName, decode(t, rec)["active"])

	rec = do(t, s, http.MethodPost, "/api/profiles/pvp/activate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pvp", deps.Profiles.Current().Name)
	assert.Equal(t, "pvp", cfg.ActiveProfile())

	data, err := os.ReadFile(cfg.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"active": "pvp"`)

	rec = do(t, s, http.MethodPost, "/api/profiles/ghost/activate")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "pvp", deps.Profiles.Current().Name)
}

func TestSchemaReload(t *testing.T) {
	deps := newTestDeps(t)
	s := newTestServer(t, config.APIConfig{}, deps)

	rec := do(t, s, http.MethodPost, "/api/schema/reload")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	dir := t.TempDir()
	offsets := filepath.Join(dir, "offsets.json")
	require.NoError(t, os.WriteFile(offsets, []byte(`{"Leave":[0]}`), 0o644))
	require.NoError(t, deps.Engine.Registry().Load(offsets, ""))

	rec = do(t, s, http.MethodPost, "/api/schema/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["version"])
	assert.Equal(t, float64(1), body["schemas"])
}

func TestJournalEndpoint(t *testing.T) {
	deps := newTestDeps(t)
	s := newTestServer(t, config.APIConfig{}, deps)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/api/journal").Code)

	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	require.NoError(t, err)
	j, err := db.OpenJournal(context.Background(), database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	left := contracts.EntityLeftV1{Envelope: contracts.Envelope{EventID: "e1", ObservedAt: time.Now().UTC()}, EntityID: 9}
	require.NoError(t, j.Publish(context.Background(), "albion.event.entity.left.v1", left))

	deps.Journal = j
	s = newTestServer(t, config.APIConfig{}, deps)

	rec := do(t, s, http.MethodGet, "/api/journal?topic=albion.event.entity.left.v1&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])

	rec = do(t, s, http.MethodGet, "/api/journal?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, config.APIConfig{RateLimitRPS: 1}, newTestDeps(t))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, s, http.MethodGet, "/healthz").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, config.APIConfig{AllowedOrigins: []string{"http://localhost:3000"}}, newTestDeps(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/world", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Origin"), "localhost:3000"))
}
