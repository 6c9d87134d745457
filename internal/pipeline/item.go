package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/albionradar/sniffer/internal/events"
)

// Item is one queued event.
type Item struct {
	Event         *events.Event
	CreatedAt     time.Time
	CorrelationID string
	Priority      int
}

// NewItem wraps ev with a fresh correlation id.
func NewItem(ev *events.Event) *Item {
	return &Item{
		Event:         ev,
		CreatedAt:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// Age returns how long the item has been waiting.
func (i *Item) Age() time.Duration {
	return time.Since(i.CreatedAt)
}
