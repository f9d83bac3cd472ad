// Package realtime fans pipeline events out to the author's open event streams.
package realtime

import (
	"context"
	"sync"
	"time"
)

const (
	// EventEntrySynced announces that queued entries reached the record store.
	EventEntrySynced = "entry-synced"
	// EventSafetyRecommendation announces a safety recommendation raised with no waiting caller.
	EventSafetyRecommendation = "safety-recommendation"
	// EventHeartbeat keeps idle streams open.
	EventHeartbeat = "heartbeat"

	defaultBufferSize = 16
)

// Event is one message for an author's streams.
type Event struct {
	AuthorID       string    `json:"-"`
	Type           string    `json:"type"`
	EntryIDs       []string  `json:"entry_ids,omitempty"`
	Level          string    `json:"level,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Dispatcher keeps per-author subscriber sets. Slow subscribers drop events instead of blocking publishers.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Event
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe registers a stream for authorID until ctx ends or the returned cleanup runs.
func (d *Dispatcher) Subscribe(ctx context.Context, authorID string) (<-chan Event, func()) {
	if authorID == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.register(authorID, sub)
	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregister(authorID, sub.id)
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return sub.stream, cleanup
}

// Publish delivers event to every current subscriber of event.AuthorID.
func (d *Dispatcher) Publish(event Event) {
	if event.AuthorID == "" || event.Type == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.AuthorID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of open streams for authorID.
func (d *Dispatcher) SubscriberCount(authorID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[authorID])
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(authorID string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[authorID]; !ok {
		d.subscribers[authorID] = make(map[int64]*subscriber)
	}
	d.subscribers[authorID][sub.id] = sub
}

func (d *Dispatcher) unregister(authorID string, subscriberID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subscribers := d.subscribers[authorID]
	if subscribers == nil {
		return
	}
	delete(subscribers, subscriberID)
	if len(subscribers) == 0 {
		delete(d.subscribers, authorID)
	}
}
