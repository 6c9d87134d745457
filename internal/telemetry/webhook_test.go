package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/contracts"
)

type webhookSink struct {
	mu       sync.Mutex
	status   int
	messages []webhookMessage
}

func (s *webhookSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg webhookMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	status := s.status
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (s *webhookSink) received() []webhookMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]webhookMessage(nil), s.messages...)
}

func alertContract() contracts.Contract {
	return contracts.PlayerSpottedV1{
		Envelope: contracts.Envelope{
			EventID:      "evt-1",
			ObservedAt:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
			Presentation: &contracts.PresentationV1{ProximityAlert: true, Distance: 12.5},
		},
		PlayerID:   7,
		PlayerName: "Ganker",
		GuildName:  "Red",
		X:          1,
		Y:          2,
	}
}

func newTestWebhook(t *testing.T, sink *webhookSink, alertsOnly bool, perMinute int) *WebhookPublisher {
	t.Helper()
	srv := httptest.NewServer(sink)
	t.Cleanup(srv.Close)
	return NewWebhookPublisher(config.WebhookConfig{
		Enabled:    true,
		URL:        srv.URL,
		Username:   "radar",
		AlertsOnly: alertsOnly,
		PerMinute:  perMinute,
		TimeoutMS:  2000,
	}, zerolog.Nop())
}

func TestWebhookPublisher_SendsAlertEmbed(t *testing.T) {
	sink := &webhookSink{}
	p := newTestWebhook(t, sink, true, 0)

	require.NoError(t, p.Publish(context.Background(), "albion.event.player.spotted.v1", alertContract()))

	msgs := sink.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, "radar", msgs[0].Username)
	require.Len(t, msgs[0].Embeds, 1)

	e := msgs[0].Embeds[0]
	assert.Equal(t, "Proximity alert: PlayerSpottedV1", e.Title)
	assert.Equal(t, colorAlert, e.Color)
	assert.Equal(t, "2026-01-01T12:00:00Z", e.Timestamp)
	assert.Equal(t, "event evt-1", e.Footer["text"])

	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"guildName", "playerId", "playerName", "tier", "x", "y"}, names)
	assert.Equal(t, int64(1), p.Sent())
	require.NoError(t, p.Close())
}

func TestWebhookPublisher_AlertsOnlySkipsPlainContracts(t *testing.T) {
	sink := &webhookSink{}
	p := newTestWebhook(t, sink, true, 0)

	require.NoError(t, p.Publish(context.Background(), testTopic, testContract()))
	assert.Empty(t, sink.received())
	assert.Equal(t, int64(0), p.Sent())
}

func TestWebhookPublisher_TierColor(t *testing.T) {
	sink := &webhookSink{}
	p := newTestWebhook(t, sink, false, 0)

	c := contracts.EntityLeftV1{
		Envelope: contracts.Envelope{
			EventID:      "evt-2",
			ObservedAt:   time.Now(),
			Presentation: &contracts.PresentationV1{TierColor: "#0000ff"},
		},
		EntityID: 3,
	}
	require.NoError(t, p.Publish(context.Background(), testTopic, c))

	msgs := sink.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, 0x0000ff, msgs[0].Embeds[0].Color)
	assert.Equal(t, "EntityLeftV1", msgs[0].Embeds[0].Title)
}

func TestWebhookPublisher_RateLimited(t *testing.T) {
	sink := &webhookSink{}
	p := newTestWebhook(t, sink, true, 1)

	require.NoError(t, p.Publish(context.Background(), "t", alertContract()))
	require.NoError(t, p.Publish(context.Background(), "t", alertContract()))

	assert.Len(t, sink.received(), 1)
	assert.Equal(t, int64(1), p.Skipped())
}

func TestWebhookPublisher_ErrorStatus(t *testing.T) {
	sink := &webhookSink{status: http.StatusTooManyRequests}
	p := newTestWebhook(t, sink, true, 0)

	err := p.Publish(context.Background(), "t", alertContract())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Equal(t, int64(0), p.Sent())
}
