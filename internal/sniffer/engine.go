// Package sniffer ties the schema registry, position codec, packet decoder
// and event dispatcher into one engine fed with framed packets.
package sniffer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/codec"
	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/metrics"
	"github.com/albionradar/sniffer/internal/pipeline"
	"github.com/albionradar/sniffer/internal/protocol"
	"github.com/albionradar/sniffer/internal/schema"
)

// Handler names registered on the dispatcher by the engine.
const (
	KeySyncHandler  = "codec.keysync"
	PipelineHandler = "pipeline"
)

// Decode results recorded in metrics.
const (
	resultOK        = "ok"
	resultUnknown   = "unknown"
	resultMalformed = "malformed"
)

// Enqueuer accepts decoded events for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev *events.Event) error
}

// Engine decodes packets and dispatches the resulting events. Handle must be
// called from a single goroutine so a KeySync is applied before the packets
// that follow it are decoded.
type Engine struct {
	registry   *schema.Registry
	codec      *codec.PositionCodec
	decoder    *protocol.Decoder
	dispatcher *events.Dispatcher

	received  atomic.Uint64
	decoded   atomic.Uint64
	unknown   atomic.Uint64
	malformed atomic.Uint64
	failures  atomic.Uint64
	keySyncs  atomic.Uint64
	shed      atomic.Uint64

	logger zerolog.Logger
}

// NewEngine builds an engine around registry and installs the KeySync
// handler that feeds the position codec.
func NewEngine(registry *schema.Registry, logger zerolog.Logger) *Engine {
	c := codec.NewPositionCodec()
	e := &Engine{
		registry:   registry,
		codec:      c,
		decoder:    protocol.NewDecoder(registry, c, logger.With().Str("component", "decoder").Logger()),
		dispatcher: events.NewDispatcher(logger.With().Str("component", "dispatcher").Logger()),
		logger:     logger,
	}
	e.dispatcher.Subscribe(events.KindKeySync, KeySyncHandler, e.onKeySync)
	return e
}

func (e *Engine) onKeySync(_ context.Context, ev *events.Event) error {
	ks, ok := ev.Payload.(*events.KeySync)
	if !ok {
		return nil
	}
	if err := e.codec.SetKey(ks.Key); err != nil {
		return fmt.Errorf("failed to install position key: %w", err)
	}
	e.keySyncs.Add(1)
	e.logger.Debug().Msg("position key updated")
	return nil
}

// Handle decodes one packet and dispatches the event. Unknown type codes are
// ignored. Malformed packets and handler failures are returned.
func (e *Engine) Handle(ctx context.Context, code int, raw protocol.RawFields) error {
	e.received.Add(1)

	ev, err := e.decoder.Decode(code, raw)
	if err != nil {
		e.malformed.Add(1)
		metrics.IncDecode("", resultMalformed)
		return err
	}
	if ev == nil {
		e.unknown.Add(1)
		metrics.IncDecode("", resultUnknown)
		return nil
	}

	e.decoded.Add(1)
	metrics.IncDecode(string(ev.Kind), resultOK)

	if err := e.dispatcher.Dispatch(ctx, ev); err != nil {
		e.failures.Add(1)
		metrics.DispatchFailuresTotal.WithLabelValues(string(ev.Kind)).Inc()
		return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}
	return nil
}

// HandleFrame decodes a wire frame and handles the packet inside it.
func (e *Engine) HandleFrame(ctx context.Context, frame []byte) error {
	code, raw, err := protocol.DecodeFrame(frame)
	if err != nil {
		e.received.Add(1)
		e.malformed.Add(1)
		metrics.IncDecode("", resultMalformed)
		return err
	}
	return e.Handle(ctx, code, raw)
}

// AttachPipeline registers a global handler that forwards every event to q.
// A full queue is counted, not reported as a failure.
func (e *Engine) AttachPipeline(q Enqueuer) {
	e.dispatcher.SubscribeAll(PipelineHandler, func(ctx context.Context, ev *events.Event) error {
		err := q.Enqueue(ctx, ev)
		if err == nil {
			return nil
		}
		if errors.Is(err, pipeline.ErrQueueFull) {
			e.shed.Add(1)
			return nil
		}
		return err
	})
}

// DetachPipeline removes the pipeline handler.
func (e *Engine) DetachPipeline() {
	e.dispatcher.UnsubscribeGlobal(PipelineHandler)
}

// ReloadSchema re-reads the schema tables from disk.
func (e *Engine) ReloadSchema() error {
	err := e.registry.Reload()
	metrics.IncSchemaReload(err)
	if err != nil {
		return fmt.Errorf("failed to reload schema: %w", err)
	}
	return nil
}

// Stop stops dispatching and waits for in-flight handlers.
func (e *Engine) Stop() {
	e.dispatcher.Stop()
}

func (e *Engine) Registry() *schema.Registry     { return e.registry }
func (e *Engine) Codec() *codec.PositionCodec    { return e.codec }
func (e *Engine) Dispatcher() *events.Dispatcher { return e.dispatcher }
func (e *Engine) Decoder() *protocol.Decoder     { return e.decoder }

// Stats is a point-in-time view of the engine counters.
type Stats struct {
	Received         uint64 `json:"received"`
	Decoded          uint64 `json:"decoded"`
	Unknown          uint64 `json:"unknown"`
	Malformed        uint64 `json:"malformed"`
	DispatchFailures uint64 `json:"dispatchFailures"`
	HandlerFailures  uint64 `json:"handlerFailures"`
	Dispatched       uint64 `json:"dispatched"`
	KeySyncs         uint64 `json:"keySyncs"`
	Shed             uint64 `json:"shed"`
	HasKey           bool   `json:"hasKey"`
	SchemaVersion    uint64 `json:"schemaVersion"`
	Schemas          int    `json:"schemas"`
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	dispatched, handlerFailures := e.dispatcher.Stats()
	return Stats{
		Received:         e.received.Load(),
		Decoded:          e.decoded.Load(),
		Unknown:          e.unknown.Load(),
		Malformed:        e.malformed.Load(),
		DispatchFailures: e.failures.Load(),
		HandlerFailures:  handlerFailures,
		Dispatched:       dispatched,
		KeySyncs:         e.keySyncs.Load(),
		Shed:             e.shed.Load(),
		HasKey:           e.codec.HasKey(),
		SchemaVersion:    e.registry.Version(),
		Schemas:          e.registry.Len(),
	}
}
