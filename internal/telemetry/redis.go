package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/contracts"
)

// RedisPublisher appends contracts to one Redis stream per topic.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	maxLen int64
	logger zerolog.Logger
}

// NewRedisPublisher connects and pings the server.
func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("stream_prefix", cfg.StreamPrefix).
		Msg("connected to Redis")

	return newRedisPublisher(client, cfg, logger), nil
}

func newRedisPublisher(client *redis.Client, cfg config.RedisConfig, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		prefix: cfg.StreamPrefix,
		maxLen: cfg.MaxLen,
		logger: logger,
	}
}

func (p *RedisPublisher) Name() string { return "redis" }

// Stream returns the stream key used for topic.
func (p *RedisPublisher) Stream(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + ":" + topic
}

// Publish XADDs the contract. Streams are capped at maxLen entries when it
// is positive.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, c contracts.Contract) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal contract: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.Stream(topic),
		Values: map[string]interface{}{
			"contract": c.ContractName(),
			"event_id": c.Meta().EventID,
			"payload":  data,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", args.Stream, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
