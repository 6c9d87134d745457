// Package pipeline moves dispatched events through enrichment, contract
// routing and publishing on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/albionradar/sniffer/internal/contracts"
	"github.com/albionradar/sniffer/internal/enrich"
	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/metrics"
	"github.com/albionradar/sniffer/internal/profile"
)

var (
	ErrPipelineStopped = errors.New("pipeline stopped")
	ErrAlreadyStarted  = errors.New("pipeline already started")
	ErrQueueFull       = errors.New("pipeline queue full")
)

// Publisher delivers a routed contract.
type Publisher interface {
	Publish(ctx context.Context, topic string, c contracts.Contract) error
}

// Router maps an enriched event to a contract.
type Router interface {
	Route(ev *events.Event) (contracts.Routed, bool)
}

// ProfileSource yields the profile to enrich with.
type ProfileSource interface {
	Current() *profile.Profile
}

// Config controls queue size and worker behavior.
type Config struct {
	BufferSize     int
	Workers        int
	Backpressure   bool
	PublishTimeout time.Duration
}

// DefaultConfig returns the defaults used when the config file omits them.
func DefaultConfig() Config {
	return Config{
		BufferSize:     1000,
		Workers:        4,
		Backpressure:   true,
		PublishTimeout: 5 * time.Second,
	}
}

type state int32

const (
	stateCreated state = iota
	stateStarted
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateStarted:
		return "started"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Pipeline is created once, started once and stopped once.
type Pipeline struct {
	cfg       Config
	enricher  enrich.Enricher
	router    Router
	publisher Publisher
	profiles  ProfileSource

	queue   chan *Item
	metrics *Metrics
	tracer  trace.Tracer
	dropLog *rate.Limiter

	state  atomic.Int32
	mu     sync.RWMutex  // held for read around non-blocking sends, for write while closing queue
	space  chan struct{} // signalled by workers after each dequeue
	stopCh chan struct{}
	cancel atomic.Pointer[context.CancelFunc]
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// New creates a pipeline in the created state.
func New(cfg Config, enricher enrich.Enricher, router Router, publisher Publisher, profiles ProfileSource, logger zerolog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}

	return &Pipeline{
		cfg:       cfg,
		enricher:  enricher,
		router:    router,
		publisher: publisher,
		profiles:  profiles,
		queue:     make(chan *Item, cfg.BufferSize),
		metrics:   &Metrics{},
		tracer:    otel.Tracer("github.com/albionradar/sniffer/internal/pipeline"),
		dropLog:   rate.NewLimiter(rate.Every(5*time.Second), 1),
		space:     make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		logger:    logger,
	}
}

// Enqueue offers ev to the queue. When the queue is full the item counts as
// dropped; with backpressure the call then blocks until space frees up, ctx
// is done or the pipeline stops, otherwise it returns ErrQueueFull.
func (p *Pipeline) Enqueue(ctx context.Context, ev *events.Event) error {
	if ev == nil {
		return nil
	}

	item := NewItem(ev)
	sent, err := p.trySend(item)
	if sent || err != nil {
		return err
	}

	if !p.cfg.Backpressure {
		p.recordDrop("queue_full", ev.Kind)
		return ErrQueueFull
	}

	p.recordDrop("backpressure", ev.Kind)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return ErrPipelineStopped
		case <-p.space:
		}

		sent, err = p.trySend(item)
		if err != nil {
			return err
		}
		if sent {
			if len(p.queue) < cap(p.queue) {
				p.signalSpace()
			}
			return nil
		}
	}
}

// trySend offers item without blocking. The read lock keeps Stop from
// closing the queue between the state check and the send.
func (p *Pipeline) trySend(item *Item) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if state(p.state.Load()) == stateStopped {
		return false, ErrPipelineStopped
	}
	select {
	case p.queue <- item:
		metrics.PipelineQueueDepth.Set(float64(len(p.queue)))
		return true, nil
	default:
		return false, nil
	}
}

// signalSpace wakes one blocked Enqueue.
func (p *Pipeline) signalSpace() {
	select {
	case p.space <- struct{}{}:
	default:
	}
}

func (p *Pipeline) recordDrop(reason string, kind events.Kind) {
	p.metrics.RecordDropped(reason, 1)
	if p.dropLog.Allow() {
		p.logger.Warn().
			Str("reason", reason).
			Str("event", string(kind)).
			Uint64("dropped_total", p.metrics.Snapshot().Dropped).
			Float64("buffer_usage", p.BufferUsage()).
			Msg("pipeline queue full")
	}
}

// Start spawns the workers. Workers exit when ctx is cancelled or Stop is
// called; an item already taken off the queue is still finished, bounded by
// the publish timeout.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(stateCreated), int32(stateStarted)) {
		if state(p.state.Load()) == stateStopped {
			return ErrPipelineStopped
		}
		return ErrAlreadyStarted
	}

	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel.Store(&cancel)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx, i)
	}

	p.logger.Info().
		Int("workers", p.cfg.Workers).
		Int("buffer_size", p.cfg.BufferSize).
		Bool("backpressure", p.cfg.Backpressure).
		Msg("pipeline started")
	return nil
}

// Stop cancels the workers, waits for in-flight items to finish (bounded by
// ctx), closes the queue and counts what is left in it as dropped. Stop is
// idempotent.
func (p *Pipeline) Stop(ctx context.Context) error {
	prev := state(p.state.Swap(int32(stateStopped)))
	if prev == stateStopped {
		return nil
	}
	close(p.stopCh)

	if cancel := p.cancel.Load(); cancel != nil {
		(*cancel)()
	}

	var waitErr error
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("failed to wait for pipeline workers: %w", ctx.Err())
		p.logger.Warn().Err(ctx.Err()).Msg("pipeline workers did not stop in time")
	}

	p.mu.Lock()
	close(p.queue)
	p.mu.Unlock()

	left := 0
	for range p.queue {
		left++
	}
	p.metrics.RecordDropped("shutdown", left)
	metrics.PipelineQueueDepth.Set(0)

	snap := p.metrics.Snapshot()
	p.logger.Info().
		Int("undelivered", left).
		Uint64("processed", snap.Processed).
		Uint64("dropped", snap.Dropped).
		Uint64("errors", snap.Errors).
		Msg("pipeline stopped")
	return waitErr
}

// BufferUsage returns the queue fill level in percent.
func (p *Pipeline) BufferUsage() float64 {
	return float64(len(p.queue)) / float64(cap(p.queue)) * 100
}

// QueueLength returns the number of buffered items.
func (p *Pipeline) QueueLength() int { return len(p.queue) }

// Capacity returns the queue size.
func (p *Pipeline) Capacity() int { return cap(p.queue) }

// State returns created, started or stopped.
func (p *Pipeline) State() string { return state(p.state.Load()).String() }

// Metrics returns the live counters.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }
