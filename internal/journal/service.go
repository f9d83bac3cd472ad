package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a dotted failure code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "journal.service.new"
	opInsert          = "journal.insert"
	opCount           = "journal.count"
	opListEntries     = "journal.list_entries"
	opGet             = "journal.get"
	opActionCompleted = "journal.action_completed"

	queryAuthor      = "author_id = ?"
	queryAuthorEntry = "author_id = ? AND entry_id = ?"
	defaultListLimit = 50
	maxListLimit     = 500
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the record-store service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service reads and writes journal entries in the record store.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
	}, nil
}

// Insert writes the entry once. A second insert with the same id reports ErrDuplicateEntry
// and leaves the stored row untouched.
func (s *Service) Insert(ctx context.Context, entry Entry) (EntryID, error) {
	if s.db == nil {
		return "", newServiceError(opInsert, "missing_database", errMissingDatabase)
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "entry_id"}}, DoNothing: true}).
		Create(&entry)
	if result.Error != nil {
		s.logError(opInsert, "insert_failed", result.Error,
			zap.String("author_id", entry.AuthorID),
			zap.String("entry_id", entry.EntryID))
		return "", newServiceError(opInsert, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return entry.ID(), newServiceError(opInsert, "duplicate_entry", ErrDuplicateEntry)
	}
	return entry.ID(), nil
}

// Count returns the lifetime number of entries stored for the author.
func (s *Service) Count(ctx context.Context, authorID AuthorID) (int64, error) {
	return s.countWhere(ctx, authorID, time.Time{})
}

// CountSince returns the number of entries the author created at or after since.
func (s *Service) CountSince(ctx context.Context, authorID AuthorID, since time.Time) (int64, error) {
	return s.countWhere(ctx, authorID, since)
}

func (s *Service) countWhere(ctx context.Context, authorID AuthorID, since time.Time) (int64, error) {
	if s.db == nil {
		return 0, newServiceError(opCount, "missing_database", errMissingDatabase)
	}
	query := s.db.WithContext(ctx).Model(&Entry{}).Where(queryAuthor, authorID.String())
	if !since.IsZero() {
		query = query.Where("created_at_s >= ?", since.UTC().Unix())
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		s.logError(opCount, "query_failed", err, zap.String("author_id", authorID.String()))
		return 0, newServiceError(opCount, "query_failed", err)
	}
	return count, nil
}

// ListEntries returns the author's most recent entries, newest first.
func (s *Service) ListEntries(ctx context.Context, authorID AuthorID, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, newServiceError(opListEntries, "missing_database", errMissingDatabase)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where(queryAuthor, authorID.String()).
		Order("created_at_s DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		s.logError(opListEntries, "query_failed", err, zap.String("author_id", authorID.String()))
		return nil, newServiceError(opListEntries, "query_failed", err)
	}
	return entries, nil
}

// Get loads the stored entry with entryID regardless of author.
func (s *Service) Get(ctx context.Context, entryID EntryID) (Entry, error) {
	if s.db == nil {
		return Entry{}, newServiceError(opGet, "missing_database", errMissingDatabase)
	}
	var stored Entry
	err := s.db.WithContext(ctx).Where("entry_id = ?", entryID.String()).Take(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, newServiceError(opGet, "entry_not_found", ErrEntryNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("entry_id", entryID.String()))
		return Entry{}, newServiceError(opGet, "query_failed", err)
	}
	return stored, nil
}

// MarkActionCompleted sets the post-hoc completion flag. It reports false when the flag was already set.
func (s *Service) MarkActionCompleted(ctx context.Context, authorID AuthorID, entryID EntryID) (bool, error) {
	if s.db == nil {
		return false, newServiceError(opActionCompleted, "missing_database", errMissingDatabase)
	}

	completedAt := s.clock().UTC().Unix()
	result := s.db.WithContext(ctx).
		Model(&Entry{}).
		Where(queryAuthorEntry+" AND action_completed = ?", authorID.String(), entryID.String(), false).
		Updates(map[string]interface{}{
			"action_completed":      true,
			"action_completed_at_s": completedAt,
		})
	if result.Error != nil {
		s.logError(opActionCompleted, "update_failed", result.Error,
			zap.String("author_id", authorID.String()),
			zap.String("entry_id", entryID.String()))
		return false, newServiceError(opActionCompleted, "update_failed", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var existing Entry
	err := s.db.WithContext(ctx).Where(queryAuthorEntry, authorID.String(), entryID.String()).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, newServiceError(opActionCompleted, "entry_not_found", ErrEntryNotFound)
	}
	if err != nil {
		s.logError(opActionCompleted, "lookup_failed", err,
			zap.String("author_id", authorID.String()),
			zap.String("entry_id", entryID.String()))
		return false, newServiceError(opActionCompleted, "lookup_failed", err)
	}
	return false, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("journal service error", attrs...)
}
