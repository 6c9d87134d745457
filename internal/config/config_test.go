package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultConfigFile), cfg.Path())
	assert.FileExists(t, cfg.Path())
	assert.Equal(t, 1000, cfg.Pipeline.BufferSize)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.PublishTimeout())
}

func TestLoad_OverlaysOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"pipeline":{"workers":2},"redis":{"enabled":true}}`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 1000, cfg.Pipeline.BufferSize)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	// Re-saved with the full option set.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"publish_timeout_ms"`)
}

func TestLoad_RejectsBrokenJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(`{"pipeline":`), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestSetActiveProfile_Persists(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	cfg.SetActiveProfile("pvp")
	require.NoError(t, cfg.Save())

	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "pvp", again.ActiveProfile())
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	res := Validate(DefaultConfig())
	assert.True(t, res.IsValid(), "%v", res.Errors)
	assert.NotEmpty(t, res.Warnings)
}

func TestValidate_ReportsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Workers = 0
	cfg.Pipeline.BufferSize = 0
	cfg.Ingest.Listen = "nonsense"
	cfg.MQTT.Enabled = true
	cfg.MQTT.QoS = 3
	cfg.Tracing.Enabled = true
	cfg.Tracing.SamplingRate = 2
	cfg.Webhook.Enabled = true
	cfg.Webhook.URL = "discord.com/api/webhooks/1"

	res := Validate(cfg)
	require.False(t, res.IsValid())

	fields := make(map[string]bool)
	for _, e := range res.Errors {
		fields[e.Field] = true
	}
	for _, f := range []string{"pipeline.workers", "pipeline.buffer_size", "ingest.listen", "mqtt.qos", "tracing.sampling_rate", "webhook.url"} {
		assert.True(t, fields[f], "missing error for %s", f)
	}
}

func TestApplyEnvFrom_OverridesOnlySetVariables(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnvFrom(cfg, map[string]string{
		"SNIFFER_PIPELINE_WORKERS":    "8",
		"SNIFFER_MQTT_ENABLED":        "true",
		"SNIFFER_API_ALLOWED_ORIGINS": "http://a,http://b",
		"SNIFFER_SCHEMA_OFFSETS_FILE": "/tmp/offsets.json",
		"SNIFFER_WEBHOOK_PER_MINUTE":  "10",
	})
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.API.AllowedOrigins)
	assert.Equal(t, "/tmp/offsets.json", cfg.Schema.OffsetsFile)
	assert.Equal(t, 10, cfg.Webhook.PerMinute)
	assert.True(t, cfg.Webhook.AlertsOnly)
	assert.Equal(t, 1000, cfg.Pipeline.BufferSize)
	assert.Equal(t, "localhost", cfg.MQTT.BrokerURL)
}

func TestApplyEnvFrom_RejectsBadValues(t *testing.T) {
	err := ApplyEnvFrom(DefaultConfig(), map[string]string{"SNIFFER_PIPELINE_WORKERS": "many"})
	require.Error(t, err)
}

func TestFileWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	var calls atomic.Int32
	w := NewFileWatcher(20*time.Millisecond, zerolog.Nop())
	require.NoError(t, w.Watch(path, func(string) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, w.Watch("", nil))
	assert.Equal(t, 1, w.Len())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("c"), 0o644))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	w.Wait()
}

func TestFileWatcher_NoFilesIsNoop(t *testing.T) {
	w := NewFileWatcher(0, zerolog.Nop())
	require.NoError(t, w.Start(context.Background()))
	w.Wait()
}
