package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the configuration. Missing schema or profile files are
// warnings: the sniffer runs on defaults without them.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateFiles(cfg, result)
	validatePipeline(&cfg.Pipeline, result)
	validateIngest(&cfg.Ingest, result)
	validatePublishers(cfg, result)
	validateAPI(&cfg.API, result)
	validateTimers(&cfg.Timers, result)

	if cfg.Tracing.Enabled {
		if strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
			result.AddError("tracing.endpoint", "endpoint is required when tracing is enabled")
		}
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			result.AddError("tracing.sampling_rate", "sampling rate must be between 0 and 1")
		}
	}

	return result
}

func validateFiles(cfg *Config, result *ValidationResult) {
	files := map[string]string{
		"schema.offsets_file": cfg.Schema.OffsetsFile,
		"schema.indexes_file": cfg.Schema.IndexesFile,
		"profiles.file":       cfg.Profiles.File,
	}
	for field, path := range files {
		if strings.TrimSpace(path) == "" {
			result.AddWarning(field, "not configured, defaults will be used")
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			result.AddWarning(field, fmt.Sprintf("file does not exist: %s", path))
		}
	}
}

func validatePipeline(p *PipelineConfig, result *ValidationResult) {
	if p.BufferSize < 1 {
		result.AddError("pipeline.buffer_size", "buffer size must be at least 1")
	}
	if p.Workers < 1 {
		result.AddError("pipeline.workers", "must have at least 1 worker")
	}
	if p.Workers > 64 {
		result.AddWarning("pipeline.workers",
			fmt.Sprintf("high worker count (%d) may cause contention", p.Workers))
	}
	if p.PublishTimeoutMS < 1 {
		result.AddError("pipeline.publish_timeout_ms", "publish timeout must be positive")
	}
}

func validateIngest(in *IngestConfig, result *ValidationResult) {
	if !in.Enabled {
		return
	}
	validateListen(in.Listen, "ingest.listen", result)
	if in.MaxFrameSize < 3 || in.MaxFrameSize > DefaultMaxFrameSize {
		result.AddError("ingest.max_frame_size",
			fmt.Sprintf("max frame size must be between 3 and %d", DefaultMaxFrameSize))
	}
}

func validatePublishers(cfg *Config, result *ValidationResult) {
	if cfg.MQTT.Enabled {
		if strings.TrimSpace(cfg.MQTT.BrokerURL) == "" {
			result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		validatePort(cfg.MQTT.Port, "mqtt.port", result)
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			result.AddError("mqtt.qos", "QoS must be 0, 1 or 2")
		}
		if cfg.MQTT.UseTLS && (cfg.MQTT.CertFile == "") != (cfg.MQTT.KeyFile == "") {
			result.AddError("mqtt.cert_file", "client certificate and key must be set together")
		}
	}

	if cfg.Redis.Enabled {
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			result.AddError("redis.addr", "Redis address is required when enabled")
		}
		if cfg.Redis.MaxLen <= 0 {
			result.AddWarning("redis.max_len", "streams are not trimmed (max_len <= 0)")
		}
	}

	if cfg.Journal.Enabled {
		if strings.TrimSpace(cfg.Journal.Path) == "" {
			result.AddError("journal.path", "journal path is required when enabled")
		}
		if cfg.Journal.RetentionHours < 1 {
			result.AddError("journal.retention_hours", "retention must be at least 1 hour")
		}
	}

	if cfg.Webhook.Enabled {
		if u, err := url.Parse(cfg.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result.AddError("webhook.url", "webhook URL must be an absolute http(s) URL")
		}
		if cfg.Webhook.PerMinute < 1 {
			result.AddWarning("webhook.per_minute", "webhook calls are not rate limited")
		}
	}

	if !cfg.MQTT.Enabled && !cfg.Redis.Enabled && !cfg.Journal.Enabled && !cfg.Webhook.Enabled {
		result.AddWarning("publishers", "no publisher enabled, contracts will only be logged")
	}
}

func validateAPI(a *APIConfig, result *ValidationResult) {
	if !a.Enabled {
		return
	}
	validateListen(a.Listen, "api.listen", result)
	if a.TLSEnabled && (strings.TrimSpace(a.TLSCertFile) == "" || strings.TrimSpace(a.TLSKeyFile) == "") {
		result.AddError("api.tls_cert_file", "certificate and key paths are required when TLS is enabled")
	}
	if a.RateLimitRPS < 1 {
		result.AddWarning("api.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
}

func validateTimers(timers *TimerConfig, result *ValidationResult) {
	if timers.MetricsLogInterval < 5 {
		result.AddWarning("timers.metrics_log_interval_sec",
			"metrics log interval less than 5s may flood the log")
	}
	if timers.EntityTTL < 1 {
		result.AddError("timers.entity_ttl_sec", "entity TTL must be positive")
	}
	if timers.WorldEvictionInterval < 1 {
		result.AddError("timers.world_eviction_interval_sec", "eviction interval must be positive")
	}
}

func validateListen(addr, field string, result *ValidationResult) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		result.AddError(field, fmt.Sprintf("invalid listen address %q: %v", addr, err))
		return
	}
	var n int
	if _, err := fmt.Sscanf(port, "%d", &n); err != nil {
		result.AddError(field, fmt.Sprintf("invalid port %q", port))
		return
	}
	validatePort(n, field, result)
	if host == "" || host == "0.0.0.0" {
		result.AddWarning(field, "listening on all interfaces")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
