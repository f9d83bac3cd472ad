// Package offline holds entries that are not yet confirmed by the record store, and the
// connectivity signal that decides when to drain them.
package offline

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
)

var (
	// ErrInvalidPendingEntry indicates a pending entry without an id or author.
	ErrInvalidPendingEntry = errors.New("offline: pending entry requires id and author")
	// ErrEntryIDTaken indicates the id is already queued for a different author or text.
	ErrEntryIDTaken = errors.New("offline: entry id already queued for another entry")
	// ErrQueueStorage wraps local storage failures.
	ErrQueueStorage = errors.New("offline: queue storage failure")
)

// PendingEntry is a journal entry accepted locally but not yet written to the record store.
type PendingEntry struct {
	Sequence         int64          `gorm:"column:seq;primaryKey;autoIncrement"`
	EntryID          string         `gorm:"column:entry_id;size:190;not null;uniqueIndex:ux_pending_entry_id"`
	AuthorID         string         `gorm:"column:author_id;size:190;not null;index"`
	Text             string         `gorm:"column:text;type:text;not null"`
	Mood             string         `gorm:"column:mood;size:64;not null;default:''"`
	TagsJSON         datatypes.JSON `gorm:"column:tags_json"`
	CreatedAtSeconds int64          `gorm:"column:created_at_s;not null"`
	QueuedAtSeconds  int64          `gorm:"column:queued_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PendingEntry) TableName() string {
	return "pending_entries"
}

// QueuedAt returns the local enqueue time.
func (p PendingEntry) QueuedAt() time.Time {
	return time.Unix(p.QueuedAtSeconds, 0).UTC()
}

// sameSubmission reports whether other replays this pending entry.
func (p PendingEntry) sameSubmission(other PendingEntry) bool {
	return p.EntryID == other.EntryID && p.AuthorID == other.AuthorID && p.Text == other.Text
}

func (p PendingEntry) validate() error {
	if p.EntryID == "" || p.AuthorID == "" {
		return ErrInvalidPendingEntry
	}
	return nil
}

// Queue is the durable store of pending entries.
//
// Enqueue never overwrites an existing id: a replay of the queued entry is a no-op and any other
// entry with that id fails with ErrEntryIDTaken. Remove of an unknown id is a no-op.
// List returns a FIFO snapshot.
type Queue interface {
	Enqueue(ctx context.Context, entry PendingEntry) error
	List(ctx context.Context) ([]PendingEntry, error)
	Remove(ctx context.Context, entryID string) error
}

// Connectivity reports the platform's current network state. Callers must not cache the answer.
type Connectivity interface {
	IsOnline() bool
}
