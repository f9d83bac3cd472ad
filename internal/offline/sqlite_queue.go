package offline

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("offline: database handle is required")

// SQLiteQueue persists pending entries in the device-local database so they survive restarts.
type SQLiteQueue struct {
	db *gorm.DB
}

// NewSQLiteQueue binds the queue to the local database. The schema must already be migrated.
func NewSQLiteQueue(db *gorm.DB) (*SQLiteQueue, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &SQLiteQueue{db: db}, nil
}

func (q *SQLiteQueue) Enqueue(ctx context.Context, entry PendingEntry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	entry.Sequence = 0
	result := q.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "entry_id"}}, DoNothing: true}).
		Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("%w: enqueue %s: %v", ErrQueueStorage, entry.EntryID, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var existing PendingEntry
	if err := q.db.WithContext(ctx).Where("entry_id = ?", entry.EntryID).Take(&existing).Error; err != nil {
		return fmt.Errorf("%w: load queued %s: %v", ErrQueueStorage, entry.EntryID, err)
	}
	if !existing.sameSubmission(entry) {
		return fmt.Errorf("%w: %s", ErrEntryIDTaken, entry.EntryID)
	}
	return nil
}

func (q *SQLiteQueue) List(ctx context.Context) ([]PendingEntry, error) {
	var entries []PendingEntry
	if err := q.db.WithContext(ctx).Order("seq ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrQueueStorage, err)
	}
	return entries, nil
}

func (q *SQLiteQueue) Remove(ctx context.Context, entryID string) error {
	if err := q.db.WithContext(ctx).Where("entry_id = ?", entryID).Delete(&PendingEntry{}).Error; err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrQueueStorage, entryID, err)
	}
	return nil
}

// CountByAuthor returns the number of pending entries for one author.
func (q *SQLiteQueue) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var count int64
	if err := q.db.WithContext(ctx).Model(&PendingEntry{}).Where("author_id = ?", authorID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrQueueStorage, err)
	}
	return count, nil
}
