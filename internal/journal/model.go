package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
)

const (
	maxIdentifierLength = 190
	maxTagLength        = 64
	maxTags             = 16
)

var (
	// ErrInvalidEntryID indicates that an entry identifier is empty or exceeds storage bounds.
	ErrInvalidEntryID = errors.New("journal: invalid entry id")
	// ErrInvalidAuthorID indicates that an author identifier is empty or exceeds storage bounds.
	ErrInvalidAuthorID = errors.New("journal: invalid author id")
	// ErrEmptyText indicates that the entry body contains no visible characters.
	ErrEmptyText = errors.New("journal: empty entry text")
	// ErrInvalidTimestamp indicates that the client creation time is missing.
	ErrInvalidTimestamp = errors.New("journal: invalid creation time")
	// ErrDuplicateEntry indicates that the record store already holds the entry id.
	ErrDuplicateEntry = errors.New("journal: entry already stored")
	// ErrEntryNotFound indicates that no entry matched the author and id.
	ErrEntryNotFound = errors.New("journal: entry not found")
)

// EntryID represents a validated, client-generated entry identifier.
type EntryID string

// NewEntryID validates raw input and returns an EntryID.
func NewEntryID(rawInput string) (EntryID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEntryID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidEntryID, maxIdentifierLength)
	}
	return EntryID(trimmed), nil
}

// String returns the underlying string identifier.
func (id EntryID) String() string {
	return string(id)
}

// AuthorID represents a validated author identifier. Anonymous authors carry a device-scoped id.
type AuthorID string

// NewAuthorID validates raw input and returns an AuthorID.
func NewAuthorID(rawInput string) (AuthorID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAuthorID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidAuthorID, maxIdentifierLength)
	}
	return AuthorID(trimmed), nil
}

// String returns the underlying string identifier.
func (id AuthorID) String() string {
	return string(id)
}

// Entry is the journal entry row stored verbatim by the record store.
// Everything except the action completion fields is immutable after creation.
type Entry struct {
	EntryID                  string         `gorm:"column:entry_id;primaryKey;size:190;not null"`
	AuthorID                 string         `gorm:"column:author_id;size:190;not null;index:idx_entries_author_created,priority:1"`
	Text                     string         `gorm:"column:text;type:text;not null"`
	Mood                     string         `gorm:"column:mood;size:64;not null;default:''"`
	TagsJSON                 datatypes.JSON `gorm:"column:tags_json"`
	CreatedAtSeconds         int64          `gorm:"column:created_at_s;not null;index:idx_entries_author_created,priority:2"`
	ActionCompleted          bool           `gorm:"column:action_completed;not null;default:false"`
	ActionCompletedAtSeconds *int64         `gorm:"column:action_completed_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "journal_entries"
}

// EntryConfig carries the raw fields used to build an Entry.
type EntryConfig struct {
	EntryID   EntryID
	AuthorID  AuthorID
	Text      string
	Mood      string
	Tags      []string
	CreatedAt time.Time
}

// NewEntry validates the configuration and returns an immutable Entry.
func NewEntry(cfg EntryConfig) (Entry, error) {
	if cfg.EntryID == "" {
		return Entry{}, fmt.Errorf("%w: empty", ErrInvalidEntryID)
	}
	if cfg.AuthorID == "" {
		return Entry{}, fmt.Errorf("%w: empty", ErrInvalidAuthorID)
	}
	if strings.TrimSpace(cfg.Text) == "" {
		return Entry{}, ErrEmptyText
	}
	if cfg.CreatedAt.IsZero() {
		return Entry{}, ErrInvalidTimestamp
	}
	tagsJSON, err := encodeTags(cfg.Tags)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		EntryID:          cfg.EntryID.String(),
		AuthorID:         cfg.AuthorID.String(),
		Text:             cfg.Text,
		Mood:             strings.ToLower(strings.TrimSpace(cfg.Mood)),
		TagsJSON:         tagsJSON,
		CreatedAtSeconds: cfg.CreatedAt.UTC().Unix(),
	}, nil
}

// ID returns the typed entry identifier.
func (e Entry) ID() EntryID {
	return EntryID(e.EntryID)
}

// Author returns the typed author identifier.
func (e Entry) Author() AuthorID {
	return AuthorID(e.AuthorID)
}

// SameSubmission reports whether other is a replay of this entry: same id, author and text.
func (e Entry) SameSubmission(other Entry) bool {
	return e.EntryID == other.EntryID && e.AuthorID == other.AuthorID && e.Text == other.Text
}

// CreatedAt returns the client creation time in UTC.
func (e Entry) CreatedAt() time.Time {
	return time.Unix(e.CreatedAtSeconds, 0).UTC()
}

// Tags decodes the stored tag set. Corrupt payloads decode as no tags.
func (e Entry) Tags() []string {
	if len(e.TagsJSON) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(e.TagsJSON, &tags); err != nil {
		return nil
	}
	return tags
}

// truncateRunes cuts value to at most limit bytes without splitting a multi-byte rune.
func truncateRunes(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

// encodeTags normalizes tags into a de-duplicated set, preserving first-seen order.
func encodeTags(raw []string) (datatypes.JSON, error) {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		normalized = truncateRunes(normalized, maxTagLength)
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		tags = append(tags, normalized)
		if len(tags) == maxTags {
			break
		}
	}
	if len(tags) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}
