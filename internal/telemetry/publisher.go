// Package telemetry delivers routed contracts to external consumers over
// MQTT and Redis streams, and sets up tracing.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/contracts"
	"github.com/albionradar/sniffer/internal/metrics"
)

// ErrNotConnected is returned when a publisher has no live connection.
var ErrNotConnected = errors.New("publisher not connected")

// Publisher delivers one contract to one topic.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, topic string, c contracts.Contract) error
	Close() error
}

// Fanout publishes every contract to all of its publishers concurrently.
// A failure in one publisher does not stop the others; the joined errors
// are returned.
type Fanout struct {
	publishers []Publisher
	logger     zerolog.Logger
}

// NewFanout creates a fan-out over publishers. Nil entries are skipped.
func NewFanout(logger zerolog.Logger, publishers ...Publisher) *Fanout {
	f := &Fanout{logger: logger}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

func (f *Fanout) Name() string { return "fanout" }

// Names lists the wrapped publishers.
func (f *Fanout) Names() []string {
	out := make([]string, len(f.publishers))
	for i, p := range f.publishers {
		out[i] = p.Name()
	}
	return out
}

// Publish sends c to every publisher and waits for all of them.
func (f *Fanout) Publish(ctx context.Context, topic string, c contracts.Contract) error {
	switch len(f.publishers) {
	case 0:
		return nil
	case 1:
		p := f.publishers[0]
		err := p.Publish(ctx, topic, c)
		metrics.IncPublish(p.Name(), err)
		return wrapPublish(p, err)
	}

	errs := make([]error, len(f.publishers))
	done := make(chan struct{}, len(f.publishers))
	for i, p := range f.publishers {
		go func(i int, p Publisher) {
			defer func() { done <- struct{}{} }()
			err := p.Publish(ctx, topic, c)
			metrics.IncPublish(p.Name(), err)
			errs[i] = wrapPublish(p, err)
		}(i, p)
	}
	for range f.publishers {
		<-done
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (f *Fanout) Close() error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func wrapPublish(p Publisher, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", p.Name(), err)
}
