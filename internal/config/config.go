// Package config handles configuration loading, validation, and persistence
// for the sniffer.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir    = "config"
	DefaultConfigFile   = "config.json"
	DefaultAPIListen    = "127.0.0.1:5080"
	DefaultIngestListen = "127.0.0.1:5055"
	DefaultMaxFrameSize = 65507
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	Logging  LoggingConfig  `json:"logging" envPrefix:"LOG_"`
	Schema   SchemaConfig   `json:"schema" envPrefix:"SCHEMA_"`
	Profiles ProfilesConfig `json:"profiles" envPrefix:"PROFILES_"`
	Pipeline PipelineConfig `json:"pipeline" envPrefix:"PIPELINE_"`
	Ingest   IngestConfig   `json:"ingest" envPrefix:"INGEST_"`
	MQTT     MQTTConfig     `json:"mqtt" envPrefix:"MQTT_"`
	Redis    RedisConfig    `json:"redis" envPrefix:"REDIS_"`
	Journal  JournalConfig  `json:"journal" envPrefix:"JOURNAL_"`
	Webhook  WebhookConfig  `json:"webhook" envPrefix:"WEBHOOK_"`
	API      APIConfig      `json:"api" envPrefix:"API_"`
	Tracing  TracingConfig  `json:"tracing" envPrefix:"TRACING_"`
	Timers   TimerConfig    `json:"timers" envPrefix:"TIMER_"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level" env:"LEVEL"`
	Directory  string `json:"directory" env:"DIR"`
	MaxBackups int    `json:"max_backups" env:"MAX_BACKUPS"`
	Console    bool   `json:"console" env:"CONSOLE"`
}

// SchemaConfig points at the offsets and indexes tables.
type SchemaConfig struct {
	OffsetsFile string `json:"offsets_file" env:"OFFSETS_FILE"`
	IndexesFile string `json:"indexes_file" env:"INDEXES_FILE"`
	Watch       bool   `json:"watch" env:"WATCH"`
}

// ProfilesConfig points at the profile file.
type ProfilesConfig struct {
	File   string `json:"file" env:"FILE"`
	Active string `json:"active" env:"ACTIVE"`
	Watch  bool   `json:"watch" env:"WATCH"`
}

// PipelineConfig sizes the event pipeline.
type PipelineConfig struct {
	BufferSize       int  `json:"buffer_size" env:"BUFFER_SIZE"`
	Workers          int  `json:"workers" env:"WORKERS"`
	Backpressure     bool `json:"backpressure" env:"BACKPRESSURE"`
	PublishTimeoutMS int  `json:"publish_timeout_ms" env:"PUBLISH_TIMEOUT_MS"`
}

// PublishTimeout returns the per-item publish deadline.
func (p PipelineConfig) PublishTimeout() time.Duration {
	return time.Duration(p.PublishTimeoutMS) * time.Millisecond
}

// IngestConfig controls the UDP frame listener.
type IngestConfig struct {
	Enabled      bool   `json:"enabled" env:"ENABLED"`
	Listen       string `json:"listen" env:"LISTEN"`
	MaxFrameSize int    `json:"max_frame_size" env:"MAX_FRAME_SIZE"`
}

// MQTTConfig holds MQTT publishing settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled" env:"ENABLED"`
	BrokerURL   string `json:"broker_url" env:"BROKER_URL"`
	Port        int    `json:"port" env:"PORT"`
	UseTLS      bool   `json:"use_tls" env:"USE_TLS"`
	CertFile    string `json:"cert_file" env:"CERT_FILE"`
	KeyFile     string `json:"key_file" env:"KEY_FILE"`
	ClientID    string `json:"client_id" env:"CLIENT_ID"`
	TopicPrefix string `json:"topic_prefix" env:"TOPIC_PREFIX"`
	QoS         int    `json:"qos" env:"QOS"`
}

// RedisConfig holds Redis stream publishing settings.
type RedisConfig struct {
	Enabled      bool   `json:"enabled" env:"ENABLED"`
	Addr         string `json:"addr" env:"ADDR"`
	Password     string `json:"password" env:"PASSWORD"`
	DB           int    `json:"db" env:"DB"`
	StreamPrefix string `json:"stream_prefix" env:"STREAM_PREFIX"`
	MaxLen       int64  `json:"max_len" env:"MAX_LEN"`
}

// JournalConfig holds the sqlite contract journal settings.
type JournalConfig struct {
	Enabled        bool   `json:"enabled" env:"ENABLED"`
	Path           string `json:"path" env:"PATH"`
	RetentionHours int    `json:"retention_hours" env:"RETENTION_HOURS"`
}

// Retention returns how long journal rows are kept.
func (j JournalConfig) Retention() time.Duration {
	return time.Duration(j.RetentionHours) * time.Hour
}

// WebhookConfig holds the Discord webhook alert settings.
type WebhookConfig struct {
	Enabled    bool   `json:"enabled" env:"ENABLED"`
	URL        string `json:"url" env:"URL"`
	Username   string `json:"username" env:"USERNAME"`
	AlertsOnly bool   `json:"alerts_only" env:"ALERTS_ONLY"`
	PerMinute  int    `json:"per_minute" env:"PER_MINUTE"`
	TimeoutMS  int    `json:"timeout_ms" env:"TIMEOUT_MS"`
}

// Timeout returns the HTTP timeout for one webhook call.
func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutMS) * time.Millisecond
}

// APIConfig holds the status API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled" env:"ENABLED"`
	Listen         string   `json:"listen" env:"LISTEN"`
	AllowedOrigins []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	RateLimitRPS   int      `json:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	TLSEnabled     bool     `json:"tls_enabled" env:"TLS_ENABLED"`
	TLSCertFile    string   `json:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile     string   `json:"tls_key_file" env:"TLS_KEY_FILE"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled      bool    `json:"enabled" env:"ENABLED"`
	Endpoint     string  `json:"endpoint" env:"ENDPOINT"`
	SamplingRate float64 `json:"sampling_rate" env:"SAMPLING_RATE"`
}

// TimerConfig holds periodic task intervals.
type TimerConfig struct {
	MetricsLogInterval    int `json:"metrics_log_interval_sec" env:"METRICS_LOG_SEC"`
	WorldEvictionInterval int `json:"world_eviction_interval_sec" env:"WORLD_EVICTION_SEC"`
	EntityTTL             int `json:"entity_ttl_sec" env:"ENTITY_TTL_SEC"`
	JournalPruneInterval  int `json:"journal_prune_interval_sec" env:"JOURNAL_PRUNE_SEC"`
	DiskCheckInterval     int `json:"disk_check_interval_sec" env:"DISK_CHECK_SEC"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (t TimerConfig) MetricsLog() time.Duration        { return seconds(t.MetricsLogInterval) }
func (t TimerConfig) WorldEviction() time.Duration     { return seconds(t.WorldEvictionInterval) }
func (t TimerConfig) EntityTTLDuration() time.Duration { return seconds(t.EntityTTL) }
func (t TimerConfig) JournalPrune() time.Duration      { return seconds(t.JournalPruneInterval) }
func (t TimerConfig) DiskCheck() time.Duration         { return seconds(t.DiskCheckInterval) }

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxBackups: 5,
			Console:    true,
		},
		Schema: SchemaConfig{
			OffsetsFile: filepath.Join(DefaultConfigDir, "offsets.json"),
			IndexesFile: filepath.Join(DefaultConfigDir, "indexes.json"),
			Watch:       true,
		},
		Profiles: ProfilesConfig{
			File:  filepath.Join(DefaultConfigDir, "profiles.yaml"),
			Watch: true,
		},
		Pipeline: PipelineConfig{
			BufferSize:       1000,
			Workers:          4,
			Backpressure:     true,
			PublishTimeoutMS: 5000,
		},
		Ingest: IngestConfig{
			Enabled:      true,
			Listen:       DefaultIngestListen,
			MaxFrameSize: DefaultMaxFrameSize,
		},
		MQTT: MQTTConfig{
			BrokerURL:   "localhost",
			Port:        1883,
			TopicPrefix: "radar",
			QoS:         1,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			StreamPrefix: "radar",
			MaxLen:       10000,
		},
		Journal: JournalConfig{
			Path:           filepath.Join("data", "journal.db"),
			RetentionHours: 24,
		},
		Webhook: WebhookConfig{
			Username:   "Albion Radar",
			AlertsOnly: true,
			PerMinute:  25,
			TimeoutMS:  10000,
		},
		API: APIConfig{
			Enabled:      true,
			Listen:       DefaultAPIListen,
			RateLimitRPS: 50,
			TLSCertFile:  filepath.Join(DefaultConfigDir, "tls", "api.crt"),
			TLSKeyFile:   filepath.Join(DefaultConfigDir, "tls", "api.key"),
		},
		Tracing: TracingConfig{
			Endpoint:     "localhost:4318",
			SamplingRate: 0.1,
		},
		Timers: TimerConfig{
			MetricsLogInterval:    60,
			WorldEvictionInterval: 30,
			EntityTTL:             300,
			JournalPruneInterval:  3600,
			DiskCheckInterval:     900,
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save so the file always lists every option.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// SetActiveProfile records the active profile name so it survives restarts.
func (c *Config) SetActiveProfile(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Profiles.Active = name
}

// ActiveProfile returns the configured active profile name.
func (c *Config) ActiveProfile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Profiles.Active
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
