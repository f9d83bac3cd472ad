package offline

import (
	"context"
	"sync"
)

// MemoryQueue is a non-durable Queue for tests and ephemeral sessions.
type MemoryQueue struct {
	mu      sync.RWMutex
	entries []PendingEntry
	nextSeq int64
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, entry PendingEntry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.entries {
		if existing.EntryID != entry.EntryID {
			continue
		}
		if !existing.sameSubmission(entry) {
			return ErrEntryIDTaken
		}
		return nil
	}
	q.nextSeq++
	entry.Sequence = q.nextSeq
	q.entries = append(q.entries, entry)
	return nil
}

func (q *MemoryQueue) List(_ context.Context) ([]PendingEntry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	snapshot := make([]PendingEntry, len(q.entries))
	copy(snapshot, q.entries)
	return snapshot, nil
}

func (q *MemoryQueue) Remove(_ context.Context, entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for idx, existing := range q.entries {
		if existing.EntryID == entryID {
			q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
			return nil
		}
	}
	return nil
}
