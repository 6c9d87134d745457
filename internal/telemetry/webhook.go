package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/contracts"
)

const (
	colorAlert   = 0xFF0000
	colorDefault = 0x00FF00

	// Discord rejects embeds with more fields than this.
	maxEmbedFields = 25
)

// WebhookPublisher posts contracts as Discord webhook embeds. With
// AlertsOnly set, only contracts flagged by the proximity stage are sent.
type WebhookPublisher struct {
	cfg     config.WebhookConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger

	sent    atomic.Int64
	skipped atomic.Int64
}

// NewWebhookPublisher creates a webhook publisher. PerMinute <= 0 disables
// the local rate limit.
func NewWebhookPublisher(cfg config.WebhookConfig, logger zerolog.Logger) *WebhookPublisher {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.PerMinute)/60), cfg.PerMinute)
	}

	return &WebhookPublisher{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

func (p *WebhookPublisher) Name() string { return "webhook" }

// Publish sends one embed. Contracts filtered out by AlertsOnly or dropped
// by the rate limit are not errors.
func (p *WebhookPublisher) Publish(ctx context.Context, topic string, c contracts.Contract) error {
	pres := c.Meta().Presentation
	alert := pres != nil && pres.ProximityAlert
	if p.cfg.AlertsOnly && !alert {
		return nil
	}
	if !p.limiter.Allow() {
		p.skipped.Add(1)
		p.logger.Debug().Str("topic", topic).Msg("webhook rate limit reached, skipping")
		return nil
	}

	body, err := json.Marshal(p.buildMessage(topic, c))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	p.sent.Add(1)
	p.logger.Debug().Str("topic", topic).Str("contract", c.ContractName()).Msg("webhook notification sent")
	return nil
}

// Sent returns how many notifications were delivered.
func (p *WebhookPublisher) Sent() int64 { return p.sent.Load() }

// Skipped returns how many notifications the rate limit dropped.
func (p *WebhookPublisher) Skipped() int64 { return p.skipped.Load() }

func (p *WebhookPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Timestamp   string            `json:"timestamp"`
	Fields      []embedField      `json:"fields,omitempty"`
	Footer      map[string]string `json:"footer"`
}

type webhookMessage struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

func (p *WebhookPublisher) buildMessage(topic string, c contracts.Contract) webhookMessage {
	meta := c.Meta()
	e := embed{
		Title:       c.ContractName(),
		Description: topic,
		Color:       colorDefault,
		Timestamp:   meta.ObservedAt.Format(time.RFC3339),
		Fields:      contractFields(c),
		Footer:      map[string]string{"text": "event " + meta.EventID},
	}
	if pres := meta.Presentation; pres != nil {
		switch {
		case pres.ProximityAlert:
			e.Color = colorAlert
			e.Title = "Proximity alert: " + c.ContractName()
		case pres.TierColor != "":
			if v, err := strconv.ParseInt(strings.TrimPrefix(pres.TierColor, "#"), 16, 32); err == nil {
				e.Color = int(v)
			}
		}
	}
	return webhookMessage{Username: p.cfg.Username, Embeds: []embed{e}}
}

// contractFields lists the scalar contract fields, sorted by name. Envelope
// fields are left to the footer and timestamp.
func contractFields(c contracts.Contract) []embedField {
	data, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k, v := range m {
		switch k {
		case "eventId", "observedAt", "presentation":
			continue
		}
		switch v.(type) {
		case string, float64, bool:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > maxEmbedFields {
		keys = keys[:maxEmbedFields]
	}

	fields := make([]embedField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, embedField{Name: k, Value: fmt.Sprint(m[k]), Inline: true})
	}
	return fields
}
