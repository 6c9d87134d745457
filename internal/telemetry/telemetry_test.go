package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/contracts"
	"github.com/albionradar/sniffer/internal/util"
)

func testContract() contracts.Contract {
	return contracts.EntityLeftV1{
		Envelope: contracts.Envelope{EventID: "abc", ObservedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		EntityID: 42,
	}
}

const testTopic = "albion.event.entity.left.v1"

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type pendingToken struct{}

func (pendingToken) Wait() bool                     { return false }
func (pendingToken) WaitTimeout(time.Duration) bool { return false }
func (pendingToken) Error() error                   { return nil }
func (pendingToken) Done() <-chan struct{}          { return make(chan struct{}) }

type sent struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the parts of mqtt.Client the publisher uses.
type fakeClient struct {
	mqtt.Client

	mu        sync.Mutex
	connected bool
	hang      bool
	sent      []sent
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hang {
		return pendingToken{}
	}
	c.sent = append(c.sent, sent{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken{}
}

func newTestMQTT(client *fakeClient) *MQTTPublisher {
	cfg := config.MQTTConfig{Enabled: true, TopicPrefix: "radar/", QoS: 1}
	return newMQTTPublisher(cfg, client, util.SystemInfo{Hostname: "host-1"}, zerolog.Nop())
}

func TestMQTTPublisher_PublishesWithMetadata(t *testing.T) {
	client := &fakeClient{}
	p := newTestMQTT(client)

	require.ErrorIs(t, p.Publish(context.Background(), testTopic, testContract()), ErrNotConnected)

	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Publish(context.Background(), testTopic, testContract()))

	require.Len(t, client.sent, 2)
	assert.Equal(t, "radar/"+StatusTopic, client.sent[0].topic)

	msg := client.sent[1]
	assert.Equal(t, "radar/"+testTopic, msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &doc))
	assert.Equal(t, "host-1", doc["hostname"])
	assert.Equal(t, "EntityLeftV1", doc["contract"])
	payload := doc["payload"].(map[string]any)
	assert.Equal(t, "abc", payload["eventId"])
	assert.Equal(t, float64(42), payload["entityId"])

	require.NoError(t, p.Close())
	assert.False(t, client.IsConnected())
}

func TestMQTTPublisher_PublishHonorsContext(t *testing.T) {
	client := &fakeClient{connected: true, hang: true}
	p := newTestMQTT(client)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Publish(ctx, testTopic, testContract())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewMQTTPublisher_Disabled(t *testing.T) {
	_, err := NewMQTTPublisher(config.MQTTConfig{}, zerolog.Nop())
	require.Error(t, err)
}

func TestRedisPublisher_AppendsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	p := newRedisPublisher(client, config.RedisConfig{StreamPrefix: "radar", MaxLen: 2}, zerolog.Nop())
	defer p.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Publish(context.Background(), testTopic, testContract()))
	}

	stream := p.Stream(testTopic)
	assert.Equal(t, "radar:"+testTopic, stream)

	entries, err := client.XRange(context.Background(), stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "EntityLeftV1", entries[0].Values["contract"])
	assert.Equal(t, "abc", entries[0].Values["event_id"])
	assert.Contains(t, entries[0].Values["payload"], `"entityId":42`)
}

func TestNewRedisPublisher_Pings(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	addr := mr.Addr()
	p, err := NewRedisPublisher(context.Background(), config.RedisConfig{Addr: addr}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, p.Close())

	mr.Close()
	_, err = NewRedisPublisher(context.Background(), config.RedisConfig{Addr: addr}, zerolog.Nop())
	require.Error(t, err)
}

type stubPublisher struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (s *stubPublisher) Name() string { return s.name }
func (s *stubPublisher) Close() error { return s.err }
func (s *stubPublisher) Publish(context.Context, string, contracts.Contract) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.err
}

func TestFanout_PublishesToAllAndJoinsErrors(t *testing.T) {
	ok := &stubPublisher{name: "ok"}
	bad := &stubPublisher{name: "bad", err: errors.New("down")}
	f := NewFanout(zerolog.Nop(), ok, nil, bad)

	assert.Equal(t, []string{"ok", "bad"}, f.Names())

	err := f.Publish(context.Background(), testTopic, testContract())
	require.Error(t, err)
	assert.ErrorContains(t, err, "bad: down")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad.calls)

	require.Error(t, f.Close())
}

func TestFanout_Empty(t *testing.T) {
	f := NewFanout(zerolog.Nop())
	require.NoError(t, f.Publish(context.Background(), testTopic, testContract()))
	require.NoError(t, f.Close())
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(zerolog.Nop())
	assert.Equal(t, "log", p.Name())
	require.NoError(t, p.Publish(context.Background(), testTopic, testContract()))
}

func TestNewTracerProvider_DisabledIsNoop(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, tp.Shutdown(context.Background()))
}
