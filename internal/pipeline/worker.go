package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/albionradar/sniffer/internal/enrich"
	"github.com/albionradar/sniffer/internal/metrics"
	"github.com/albionradar/sniffer/internal/profile"
)

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	logger := p.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("worker started")
	defer logger.Debug().Msg("worker stopped")

	for {
		// Queued items left at cancellation are counted by Stop.
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			p.signalSpace()
			metrics.PipelineQueueDepth.Set(float64(len(p.queue)))
			p.process(context.WithoutCancel(ctx), item)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, item *Item) {
	start := time.Now()
	ev := item.Event

	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("event.kind", string(ev.Kind)),
			attribute.String("correlation_id", item.CorrelationID),
			attribute.Int64("queue.wait_us", item.Age().Microseconds()),
		))
	defer span.End()

	logger := p.logger.With().
		Str("event", string(ev.Kind)).
		Str("correlation_id", item.CorrelationID).
		Logger()

	prof := p.currentProfile()
	enriched, err := p.enricher.Enrich(ctx, ev, prof)
	switch {
	case errors.Is(err, enrich.ErrFiltered):
		span.SetAttributes(attribute.String("outcome", metrics.OutcomeFiltered))
		p.metrics.RecordFiltered(time.Since(start))
		return
	case err != nil:
		p.fail(span, logger, fmt.Errorf("failed to enrich event: %w", err), start)
		return
	case enriched == nil:
		span.SetAttributes(attribute.String("outcome", metrics.OutcomeFiltered))
		p.metrics.RecordFiltered(time.Since(start))
		return
	}

	routed, ok := p.router.Route(enriched)
	if !ok {
		span.SetAttributes(attribute.String("outcome", metrics.OutcomeUnrouted))
		p.metrics.RecordUnrouted(time.Since(start))
		logger.Debug().Msg("no contract for event")
		return
	}
	span.SetAttributes(attribute.String("topic", routed.Topic))

	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	err = p.publisher.Publish(pubCtx, routed.Topic, routed.Contract)
	cancel()
	if err != nil {
		p.fail(span, logger, fmt.Errorf("failed to publish %s: %w", routed.Topic, err), start)
		return
	}

	span.SetAttributes(attribute.String("outcome", metrics.OutcomeProcessed))
	p.metrics.RecordProcessed(time.Since(start))
}

func (p *Pipeline) fail(span trace.Span, logger zerolog.Logger, err error, start time.Time) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.metrics.RecordError(time.Since(start))
	logger.Error().Err(err).Msg("pipeline item failed")
}

func (p *Pipeline) currentProfile() *profile.Profile {
	if p.profiles != nil {
		if prof := p.profiles.Current(); prof != nil {
			return prof
		}
	}
	def := profile.Default()
	return &def
}
