package telemetry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/contracts"
)

// LogPublisher writes contracts to the log at debug level. It is the
// fallback when no external publisher is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(_ context.Context, topic string, c contracts.Contract) error {
	p.logger.Debug().
		Str("topic", topic).
		Str("contract", c.ContractName()).
		Str("event_id", c.Meta().EventID).
		Interface("payload", c).
		Msg("contract published")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
