package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// HandlerFunc handles one dispatched event. Handlers must treat the event as
// read-only; it is shared by every consumer of the same dispatch.
type HandlerFunc func(ctx context.Context, ev *Event) error

// HandlerError records the failure of a single handler during a dispatch.
type HandlerError struct {
	Kind    Kind
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed for %s: %v", e.Handler, e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// ErrHandlerPanic is wrapped by the HandlerError of a handler that panicked.
var ErrHandlerPanic = errors.New("handler panicked")

// Dispatcher delivers events to kind-specific and global handlers.
// Each dispatch runs all handlers concurrently and waits for them, so a slow
// or failing consumer never prevents its siblings from seeing the event.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind][]handlerEntry
	global   []handlerEntry
	stopped  bool
	inflight sync.WaitGroup

	dispatched atomic.Uint64
	failures   atomic.Uint64

	logger zerolog.Logger
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Kind][]handlerEntry),
		logger:   logger,
	}
}

// Subscribe registers a handler for one kind. The name is used for logging
// and for Unsubscribe.
func (d *Dispatcher) Subscribe(kind Kind, name string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[kind] = append(d.handlers[kind], handlerEntry{name: name, handler: handler})

	d.logger.Debug().
		Str("event", string(kind)).
		Str("handler", name).
		Msg("subscribed to event")
}

// SubscribeAll registers a handler that receives every event.
func (d *Dispatcher) SubscribeAll(name string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.global = append(d.global, handlerEntry{name: name, handler: handler})

	d.logger.Debug().
		Str("handler", name).
		Msg("subscribed to all events")
}

// Unsubscribe removes a named handler from a kind.
func (d *Dispatcher) Unsubscribe(kind Kind, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[kind] = without(d.handlers[kind], name)
	if len(d.handlers[kind]) == 0 {
		delete(d.handlers, kind)
	}
}

// UnsubscribeGlobal removes a named global handler.
func (d *Dispatcher) UnsubscribeGlobal(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.global = without(d.global, name)
}

// UnsubscribeAll removes every handler of a kind.
func (d *Dispatcher) UnsubscribeAll(kind Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.handlers, kind)
}

// HandlerCount returns the number of handlers registered for a kind,
// excluding global handlers.
func (d *Dispatcher) HandlerCount(kind Kind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[kind])
}

// GlobalHandlerCount returns the number of global handlers.
func (d *Dispatcher) GlobalHandlerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.global)
}

// Dispatch delivers ev to every matching handler and waits for all of them.
// Handler errors and panics are logged and returned joined; they never stop
// sibling handlers. Handlers registered during a dispatch only see later
// events.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}

	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		return nil
	}

	kindHandlers := d.handlers[ev.Kind]
	targets := make([]handlerEntry, 0, len(kindHandlers)+len(d.global))
	targets = append(targets, kindHandlers...)
	targets = append(targets, d.global...)
	d.inflight.Add(1)
	d.mu.RUnlock()
	defer d.inflight.Done()

	d.dispatched.Add(1)
	if len(targets) == 0 {
		return nil
	}

	d.logger.Trace().
		Str("event", string(ev.Kind)).
		Int("handlers", len(targets)).
		Msg("dispatching event")

	errs := make([]error, len(targets))
	var wg sync.WaitGroup

	for i, h := range targets {
		i, h := i, h // per-iteration copies (pre-Go 1.22 loop semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = d.invoke(ctx, h, ev)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (d *Dispatcher) invoke(ctx context.Context, h handlerEntry, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("event", string(ev.Kind)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("handler panicked")
			err = &HandlerError{Kind: ev.Kind, Handler: h.name, Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
			d.failures.Add(1)
		}
	}()

	if herr := h.handler(ctx, ev); herr != nil {
		d.logger.Error().
			Err(herr).
			Str("event", string(ev.Kind)).
			Str("handler", h.name).
			Msg("handler returned error")
		d.failures.Add(1)
		return &HandlerError{Kind: ev.Kind, Handler: h.name, Err: herr}
	}
	return nil
}

// Stop makes further dispatches no-ops and waits for in-flight ones.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.inflight.Wait()
	d.logger.Info().Msg("event dispatcher stopped")
}

// Stats returns the number of dispatches and handler failures so far.
func (d *Dispatcher) Stats() (dispatched, failures uint64) {
	return d.dispatched.Load(), d.failures.Load()
}

func without(entries []handlerEntry, name string) []handlerEntry {
	filtered := make([]handlerEntry, 0, len(entries))
	for _, h := range entries {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	return filtered
}
