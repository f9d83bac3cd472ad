package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuotaCounter is the device-local count of entries accepted per author, queued ones included.
type QuotaCounter interface {
	Used(ctx context.Context, authorID string) (int64, error)
	Increment(ctx context.Context, authorID string) error
}

// QuotaUsage is the local counter row.
type QuotaUsage struct {
	AuthorID         string `gorm:"column:author_id;primaryKey;size:190"`
	EntriesAccepted  int64  `gorm:"column:entries_accepted;not null;default:0"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (QuotaUsage) TableName() string {
	return "quota_usage"
}

// LocalQuotaCounter stores QuotaUsage rows in the device-local database.
type LocalQuotaCounter struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewLocalQuotaCounter binds the counter to a migrated local database.
func NewLocalQuotaCounter(db *gorm.DB, clock func() time.Time) (*LocalQuotaCounter, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: local database", errMissingDependency)
	}
	if clock == nil {
		clock = time.Now
	}
	return &LocalQuotaCounter{db: db, clock: clock}, nil
}

func (c *LocalQuotaCounter) Used(ctx context.Context, authorID string) (int64, error) {
	var usage QuotaUsage
	err := c.db.WithContext(ctx).Where("author_id = ?", authorID).Take(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read quota: %v", ErrStorageFailure, err)
	}
	return usage.EntriesAccepted, nil
}

func (c *LocalQuotaCounter) Increment(ctx context.Context, authorID string) error {
	now := c.clock().UTC().Unix()
	usage := QuotaUsage{AuthorID: authorID, EntriesAccepted: 1, UpdatedAtSeconds: now}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "author_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"entries_accepted": gorm.Expr("entries_accepted + 1"),
			"updated_at_s":     now,
		}),
	}).Create(&usage).Error
	if err != nil {
		return fmt.Errorf("%w: increment quota: %v", ErrStorageFailure, err)
	}
	return nil
}

// MemoryQuotaCounter is a non-durable QuotaCounter.
type MemoryQuotaCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryQuotaCounter() *MemoryQuotaCounter {
	return &MemoryQuotaCounter{counts: make(map[string]int64)}
}

func (c *MemoryQuotaCounter) Used(_ context.Context, authorID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[authorID], nil
}

func (c *MemoryQuotaCounter) Increment(_ context.Context, authorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[authorID]++
	return nil
}
