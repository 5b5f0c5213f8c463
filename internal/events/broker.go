// Package events fans reconciliation events out to dashboard consumers.
// Brokers are fire-and-forget: a slow subscriber drops events rather than
// stalling a linking worker.
package events

import (
	"sync"
	"time"

	"orderlink/internal/model"
)

// Event is one reconciliation outcome worth showing on the dashboard.
type Event struct {
	Type      string         `json:"type"` // order.linked | order.updated
	Provider  model.Provider `json:"provider"`
	OrderID   string         `json:"orderId"`
	StagingID string         `json:"stagingId"`
	Status    model.Status   `json:"status"`
	Tier      int            `json:"tier,omitempty"`
	Method    string         `json:"method,omitempty"`
	TS        string         `json:"ts"`
}

func Now() string { return time.Now().UTC().Format(time.RFC3339) }

// Broker publishes events to all current subscribers.
type Broker interface {
	Subscribe() chan Event
	Unsubscribe(ch chan Event)
	Publish(evt Event)
}

// Memory is the in-process broker used when no REDIS_URL is configured.
type Memory struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewMemory() *Memory {
	return &Memory{subs: map[chan Event]struct{}{}}
}

func (b *Memory) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Memory) Publish(evt Event) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
