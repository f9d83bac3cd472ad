package distress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CategorySafetySupport is the recommendation category raised by the escalation engine.
const CategorySafetySupport = "safety_support"

var errMissingDatabase = errors.New("distress: database handle is required")

// Record is the append-only, lossy projection of a Signal kept as cooldown history.
type Record struct {
	RecordID            string         `gorm:"column:record_id;primaryKey;size:26;not null"`
	AuthorID            string         `gorm:"column:author_id;size:190;not null;index:idx_distress_author_created,priority:1"`
	EntryID             string         `gorm:"column:entry_id;size:190;not null"`
	Level               string         `gorm:"column:level;size:16;not null"`
	TriggersJSON        datatypes.JSON `gorm:"column:triggers_json"`
	RecommendationShown bool           `gorm:"column:recommendation_shown;not null;default:false"`
	CreatedAtSeconds    int64          `gorm:"column:created_at_s;not null;index:idx_distress_author_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "distress_records"
}

// RecommendationEvent records that a recommendation was surfaced to the author.
type RecommendationEvent struct {
	EventID        string `gorm:"column:event_id;primaryKey;size:26;not null"`
	AuthorID       string `gorm:"column:author_id;size:190;not null;index:idx_recommendation_author_category,priority:1"`
	Category       string `gorm:"column:category;size:64;not null;index:idx_recommendation_author_category,priority:2"`
	ShownAtSeconds int64  `gorm:"column:shown_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (RecommendationEvent) TableName() string {
	return "recommendation_events"
}

// History reads and appends distress history in the record store.
type History struct {
	db *gorm.DB
}

// NewHistory binds the history store to a database handle.
func NewHistory(db *gorm.DB) (*History, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &History{db: db}, nil
}

// AppendRecord stores the projection of signal for an entry.
func (h *History) AppendRecord(ctx context.Context, authorID, entryID string, signal Signal, shown bool, at time.Time) error {
	triggers, err := json.Marshal(signal.Triggers)
	if err != nil {
		return fmt.Errorf("distress: encode triggers: %w", err)
	}
	record := Record{
		RecordID:            ulid.Make().String(),
		AuthorID:            authorID,
		EntryID:             entryID,
		Level:               string(signal.Level),
		TriggersJSON:        datatypes.JSON(triggers),
		RecommendationShown: shown,
		CreatedAtSeconds:    at.UTC().Unix(),
	}
	if err := h.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("distress: append record: %w", err)
	}
	return nil
}

// RecentLevels returns up to limit recorded levels for the author, newest first.
func (h *History) RecentLevels(ctx context.Context, authorID string, limit int) ([]Level, error) {
	if limit <= 0 {
		limit = DefaultHistoryWindow
	}
	var records []Record
	if err := h.db.WithContext(ctx).
		Select("level").
		Where("author_id = ?", authorID).
		Order("created_at_s DESC").
		Order("record_id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("distress: recent levels: %w", err)
	}
	levels := make([]Level, 0, len(records))
	for _, record := range records {
		levels = append(levels, ParseLevel(record.Level))
	}
	return levels, nil
}

// AppendRecommendation records that a recommendation of category was shown.
func (h *History) AppendRecommendation(ctx context.Context, authorID, category string, shownAt time.Time) error {
	event := RecommendationEvent{
		EventID:        ulid.Make().String(),
		AuthorID:       authorID,
		Category:       category,
		ShownAtSeconds: shownAt.UTC().Unix(),
	}
	if err := h.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("distress: append recommendation: %w", err)
	}
	return nil
}

// LastShown returns the most recent time a recommendation of category was shown.
func (h *History) LastShown(ctx context.Context, authorID, category string) (time.Time, bool, error) {
	var event RecommendationEvent
	err := h.db.WithContext(ctx).
		Where("author_id = ? AND category = ?", authorID, category).
		Order("shown_at_s DESC").
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("distress: last shown: %w", err)
	}
	return time.Unix(event.ShownAtSeconds, 0).UTC(), true, nil
}
