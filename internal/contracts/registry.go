package contracts

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/events"
)

// Routed is the outcome of a successful Route.
type Routed struct {
	Topic       string
	Contract    Contract
	Transformer string
}

// Registry holds transformers in registration order.
type Registry struct {
	mu           sync.RWMutex
	transformers []Transformer
	claims       map[events.Kind]string
	logger       zerolog.Logger
}

// NewRegistry creates a registry with the given transformers.
func NewRegistry(logger zerolog.Logger, transformers ...Transformer) *Registry {
	r := &Registry{
		claims: make(map[events.Kind]string),
		logger: logger,
	}
	for _, t := range transformers {
		r.Register(t)
	}
	return r
}

// NewDefaultRegistry creates a registry holding Defaults().
func NewDefaultRegistry(logger zerolog.Logger) *Registry {
	return NewRegistry(logger, Defaults()...)
}

// Register appends t. A kind already claimed by an earlier transformer keeps
// routing to that one.
func (r *Registry) Register(t Transformer) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range t.Kinds() {
		if prev, ok := r.claims[k]; ok {
			r.logger.Warn().
				Str("kind", string(k)).
				Str("transformer", t.Name()).
				Str("claimed_by", prev).
				Msg("kind already claimed by another transformer")
			continue
		}
		r.claims[k] = t.Name()
	}
	r.transformers = append(r.transformers, t)
}

// Route returns the contract produced by the first transformer that accepts
// and converts ev. No match is not an error.
func (r *Registry) Route(ev *events.Event) (Routed, bool) {
	if ev == nil {
		return Routed{}, false
	}

	r.mu.RLock()
	ts := r.transformers
	r.mu.RUnlock()

	for _, t := range ts {
		if !t.CanTransform(ev) {
			continue
		}
		topic, c, ok := t.Transform(ev)
		if !ok {
			continue
		}
		return Routed{Topic: topic, Contract: c, Transformer: t.Name()}, true
	}
	return Routed{}, false
}

// Claimant returns the name of the transformer routing kind.
func (r *Registry) Claimant(kind events.Kind) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.claims[kind]
	return name, ok
}

// Len returns the number of registered transformers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transformers)
}
