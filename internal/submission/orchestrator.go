// Package submission coordinates one journal entry from raw text to a persisted or queued record,
// then applies escalation and engagement side effects once the record store confirms the write.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/distress"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/emotion"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/engagement"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/journal"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/offline"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/reflection"
	"go.uber.org/zap"
)

const (
	// DefaultFreeEntryLimit is the lifetime entry allowance of a free-tier author.
	DefaultFreeEntryLimit = 5

	recentActivityWindow = 7 * 24 * time.Hour
)

// Outcome discriminates the Result of a submission.
type Outcome string

const (
	OutcomePersisted     Outcome = "persisted"
	OutcomeQueued        Outcome = "queued"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
)

// EntryStore is the record-store surface the pipeline writes through.
type EntryStore interface {
	Insert(ctx context.Context, entry journal.Entry) (journal.EntryID, error)
	Get(ctx context.Context, entryID journal.EntryID) (journal.Entry, error)
	Count(ctx context.Context, authorID journal.AuthorID) (int64, error)
	CountSince(ctx context.Context, authorID journal.AuthorID, since time.Time) (int64, error)
	MarkActionCompleted(ctx context.Context, authorID journal.AuthorID, entryID journal.EntryID) (bool, error)
}

// DistressHistory reads and appends cooldown history.
type DistressHistory interface {
	AppendRecord(ctx context.Context, authorID, entryID string, signal distress.Signal, shown bool, at time.Time) error
	RecentLevels(ctx context.Context, authorID string, limit int) ([]distress.Level, error)
	AppendRecommendation(ctx context.Context, authorID, category string, shownAt time.Time) error
	LastShown(ctx context.Context, authorID, category string) (time.Time, bool, error)
}

// Ledger applies engagement bookkeeping.
type Ledger interface {
	Touch(ctx context.Context, authorID string, today time.Time) (engagement.StreakState, error)
	Award(ctx context.Context, authorID string, kind engagement.ActivityKind) (bool, error)
	AwardMilestones(ctx context.Context, authorID string, entryCount int64) ([]engagement.BadgeID, error)
}

// Publisher receives events nobody is synchronously waiting for.
type Publisher interface {
	Publish(event realtime.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(realtime.Event) {}

// Config wires the orchestrator. Classifier, Engine, Generator, IDs, Clock, Location, Publisher
// and Logger fall back to defaults when nil.
type Config struct {
	Entries      EntryStore
	Queue        offline.Queue
	Connectivity offline.Connectivity
	History      DistressHistory
	Ledger       Ledger
	Quota        QuotaCounter
	Publisher    Publisher

	Classifier *emotion.Classifier
	Engine     *distress.Engine
	Generator  *reflection.Generator
	Cooldown   distress.CooldownPolicy
	IDs        journal.IDProvider

	Clock    func() time.Time
	Location *time.Location

	FreeEntryLimit int64
	WriteTimeout   time.Duration
	QueueOnTimeout bool

	Logger *zap.Logger
}

// Request is one submission from an author.
type Request struct {
	AuthorID  journal.AuthorID
	Premium   bool
	EntryID   journal.EntryID
	Text      string
	Tags      []string
	CreatedAt time.Time
}

// Result is everything the rendering layer needs for one submission. Distress, ShowSafetyModal
// and NewBadges are only populated for persisted entries.
type Result struct {
	Outcome         Outcome
	Entry           journal.Entry
	Mood            string
	Distress        *distress.Signal
	ShowSafetyModal bool
	Transformation  reflection.Artifact
	NewBadges       []engagement.BadgeID
}

// Orchestrator runs the submission pipeline. It assumes a single writer per author.
type Orchestrator struct {
	entries      EntryStore
	queue        offline.Queue
	connectivity offline.Connectivity
	history      DistressHistory
	ledger       Ledger
	quota        QuotaCounter
	publisher    Publisher

	classifier *emotion.Classifier
	engine     *distress.Engine
	generator  *reflection.Generator
	cooldown   distress.CooldownPolicy
	ids        journal.IDProvider

	clock    func() time.Time
	location *time.Location

	freeEntryLimit int64
	writeTimeout   time.Duration
	queueOnTimeout bool

	logger  *zap.Logger
	drainMu sync.Mutex
}

func New(cfg Config) (*Orchestrator, error) {
	required := []struct {
		name    string
		present bool
	}{
		{"entries", cfg.Entries != nil},
		{"queue", cfg.Queue != nil},
		{"connectivity", cfg.Connectivity != nil},
		{"history", cfg.History != nil},
		{"ledger", cfg.Ledger != nil},
		{"quota", cfg.Quota != nil},
	}
	for _, dependency := range required {
		if !dependency.present {
			return nil, newServiceError(opNew, "missing_"+dependency.name,
				fmt.Errorf("%w: %s", errMissingDependency, dependency.name))
		}
	}

	o := &Orchestrator{
		entries:        cfg.Entries,
		queue:          cfg.Queue,
		connectivity:   cfg.Connectivity,
		history:        cfg.History,
		ledger:         cfg.Ledger,
		quota:          cfg.Quota,
		publisher:      cfg.Publisher,
		classifier:     cfg.Classifier,
		engine:         cfg.Engine,
		generator:      cfg.Generator,
		cooldown:       cfg.Cooldown,
		ids:            cfg.IDs,
		clock:          cfg.Clock,
		location:       cfg.Location,
		freeEntryLimit: cfg.FreeEntryLimit,
		writeTimeout:   cfg.WriteTimeout,
		queueOnTimeout: cfg.QueueOnTimeout,
		logger:         cfg.Logger,
	}
	if o.publisher == nil {
		o.publisher = noopPublisher{}
	}
	if o.classifier == nil {
		o.classifier = emotion.NewDefaultClassifier()
	}
	if o.engine == nil {
		o.engine = distress.NewDefaultEngine()
	}
	if o.generator == nil {
		o.generator = reflection.NewGenerator(nil)
	}
	if o.cooldown.CooldownDays <= 0 || o.cooldown.HistoryWindow <= 0 {
		defaults := distress.DefaultCooldownPolicy()
		if o.cooldown.CooldownDays <= 0 {
			o.cooldown.CooldownDays = defaults.CooldownDays
		}
		if o.cooldown.HistoryWindow <= 0 {
			o.cooldown.HistoryWindow = defaults.HistoryWindow
		}
	}
	if o.ids == nil {
		o.ids = journal.NewUUIDProvider()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.location == nil {
		o.location = time.Local
	}
	if o.freeEntryLimit <= 0 {
		o.freeEntryLimit = DefaultFreeEntryLimit
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o, nil
}

// Submit runs one entry through classification, quota, persistence or queueing, and on confirmed
// persistence the escalation and engagement side effects. Quota exhaustion is an Outcome, not an error.
// Side-effect failures are logged and never undo the persisted entry.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.AuthorID.String()) == "" {
		return Result{}, newServiceError(opSubmit, "missing_author", ErrMissingAuthor)
	}
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, newServiceError(opSubmit, "empty_entry", ErrEmptyEntry)
	}

	mood := ""
	if label, ok := o.classifier.Classify(req.Text); ok {
		mood = label.String()
	}
	result := Result{
		Mood:           mood,
		Transformation: o.generator.Generate(mood, req.Text),
	}

	online := o.connectivity.IsOnline()

	if !req.Premium {
		used, err := o.quotaUsage(ctx, req.AuthorID, online)
		if err != nil {
			return Result{}, err
		}
		if used >= o.freeEntryLimit {
			o.logger.Info("free-tier entry limit reached",
				zap.String("author_id", req.AuthorID.String()),
				zap.Int64("used", used),
				zap.Int64("limit", o.freeEntryLimit))
			result.Outcome = OutcomeQuotaExceeded
			return result, nil
		}
	}

	entry, err := o.buildEntry(req, mood)
	if err != nil {
		return Result{}, err
	}
	result.Entry = entry

	if !online {
		if err := o.enqueue(ctx, entry); err != nil {
			return Result{}, err
		}
		result.Outcome = OutcomeQueued
		return result, nil
	}

	timedOut, err := o.write(ctx, entry)
	switch {
	case err == nil:
	case errors.Is(err, journal.ErrDuplicateEntry):
		// A retried submission of an already stored id; the first write applied the side effects.
		if err := o.confirmReplay(ctx, opSubmit, entry); err != nil {
			return Result{}, err
		}
		o.logger.Info("entry already stored", zap.String("entry_id", entry.EntryID))
		result.Outcome = OutcomePersisted
		return result, nil
	case timedOut && o.queueOnTimeout:
		o.logger.Warn("record store write timed out, queueing entry",
			zap.String("author_id", entry.AuthorID),
			zap.String("entry_id", entry.EntryID),
			zap.Duration("timeout", o.writeTimeout))
		if err := o.enqueue(ctx, entry); err != nil {
			return Result{}, err
		}
		result.Outcome = OutcomeQueued
		return result, nil
	default:
		o.logError(opSubmit, "write_failed", err,
			zap.String("author_id", entry.AuthorID),
			zap.String("entry_id", entry.EntryID))
		return Result{}, newServiceError(opSubmit, "write_failed", fmt.Errorf("%w: %w", ErrTransientWrite, err))
	}

	if err := o.quota.Increment(ctx, entry.AuthorID); err != nil {
		o.logger.Warn("quota counter update failed", zap.String("author_id", entry.AuthorID), zap.Error(err))
	}

	effects := o.applyConfirmed(ctx, entry)
	result.Outcome = OutcomePersisted
	result.Distress = &effects.signal
	result.ShowSafetyModal = effects.escalate
	result.NewBadges = effects.badges
	return result, nil
}

// CompleteAction flips the entry's action-completed flag and rewards the first completion.
func (o *Orchestrator) CompleteAction(ctx context.Context, authorID journal.AuthorID, entryID journal.EntryID) (bool, error) {
	updated, err := o.entries.MarkActionCompleted(ctx, authorID, entryID)
	if errors.Is(err, journal.ErrEntryNotFound) {
		return false, newServiceError(opCompleteAction, "entry_not_found", fmt.Errorf("%w: %w", ErrEntryNotFound, err))
	}
	if err != nil {
		return false, newServiceError(opCompleteAction, "update_failed", fmt.Errorf("%w: %w", ErrTransientWrite, err))
	}
	if updated {
		if _, err := o.ledger.Award(ctx, authorID.String(), engagement.ActivityActionCompleted); err != nil {
			o.logger.Warn("action completion reward failed",
				zap.String("author_id", authorID.String()),
				zap.String("entry_id", entryID.String()),
				zap.Error(err))
		}
	}
	return updated, nil
}

// RecordActivity rewards a reward-bearing activity reported by the UI. Unknown kinds report false.
func (o *Orchestrator) RecordActivity(ctx context.Context, authorID journal.AuthorID, kind engagement.ActivityKind) (bool, error) {
	if strings.TrimSpace(authorID.String()) == "" {
		return false, newServiceError(opRecordActivity, "missing_author", ErrMissingAuthor)
	}
	awarded, err := o.ledger.Award(ctx, authorID.String(), kind)
	if err != nil {
		return false, newServiceError(opRecordActivity, "award_failed", err)
	}
	return awarded, nil
}

// IsOnline exposes the connectivity signal to callers of the orchestrator.
func (o *Orchestrator) IsOnline() bool {
	return o.connectivity.IsOnline()
}

func (o *Orchestrator) quotaUsage(ctx context.Context, authorID journal.AuthorID, online bool) (int64, error) {
	used, err := o.quota.Used(ctx, authorID.String())
	if err != nil {
		o.logError(opQuota, "local_read_failed", err, zap.String("author_id", authorID.String()))
		return 0, newServiceError(opQuota, "local_read_failed", fmt.Errorf("%w: %w", ErrStorageFailure, err))
	}
	if !online {
		return used, nil
	}
	remote, err := o.entries.Count(ctx, authorID)
	if err != nil {
		o.logger.Warn("remote entry count failed, using local quota counter",
			zap.String("author_id", authorID.String()),
			zap.Error(err))
		return used, nil
	}
	return max(used, remote), nil
}

func (o *Orchestrator) buildEntry(req Request, mood string) (journal.Entry, error) {
	entryID := req.EntryID
	if entryID == "" {
		generated, err := o.ids.NewID()
		if err != nil {
			return journal.Entry{}, newServiceError(opSubmit, "id_generation_failed", err)
		}
		entryID = generated
	}
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = o.clock()
	}
	entry, err := journal.NewEntry(journal.EntryConfig{
		EntryID:   entryID,
		AuthorID:  req.AuthorID,
		Text:      req.Text,
		Mood:      mood,
		Tags:      req.Tags,
		CreatedAt: createdAt,
	})
	if err != nil {
		return journal.Entry{}, newServiceError(opSubmit, "invalid_entry", err)
	}
	return entry, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, entry journal.Entry) error {
	pending := offline.PendingEntry{
		EntryID:          entry.EntryID,
		AuthorID:         entry.AuthorID,
		Text:             entry.Text,
		Mood:             entry.Mood,
		TagsJSON:         entry.TagsJSON,
		CreatedAtSeconds: entry.CreatedAtSeconds,
		QueuedAtSeconds:  o.clock().UTC().Unix(),
	}
	if err := o.queue.Enqueue(ctx, pending); err != nil {
		if errors.Is(err, offline.ErrEntryIDTaken) {
			return newServiceError(opSubmit, "entry_id_conflict", fmt.Errorf("%w: %w", ErrEntryIDConflict, err))
		}
		o.logError(opSubmit, "enqueue_failed", err,
			zap.String("author_id", entry.AuthorID),
			zap.String("entry_id", entry.EntryID))
		return newServiceError(opSubmit, "enqueue_failed", fmt.Errorf("%w: %w", ErrStorageFailure, err))
	}
	if err := o.quota.Increment(ctx, entry.AuthorID); err != nil {
		o.logger.Warn("quota counter update failed", zap.String("author_id", entry.AuthorID), zap.Error(err))
	}
	return nil
}

// confirmReplay checks that the stored row under entry's id is the same submission. Only then is a
// duplicate insert an idempotent retry.
func (o *Orchestrator) confirmReplay(ctx context.Context, operation string, entry journal.Entry) error {
	stored, err := o.entries.Get(ctx, entry.ID())
	if err != nil {
		o.logError(operation, "duplicate_lookup_failed", err,
			zap.String("author_id", entry.AuthorID),
			zap.String("entry_id", entry.EntryID))
		return newServiceError(operation, "duplicate_lookup_failed", fmt.Errorf("%w: %w", ErrTransientWrite, err))
	}
	if !stored.SameSubmission(entry) {
		o.logger.Warn("entry id already used by another entry",
			zap.String("author_id", entry.AuthorID),
			zap.String("entry_id", entry.EntryID))
		return newServiceError(operation, "entry_id_conflict", ErrEntryIDConflict)
	}
	return nil
}

// write inserts the entry under the write timeout. timedOut reports that the write's own deadline
// expired while the caller's context was still live.
func (o *Orchestrator) write(ctx context.Context, entry journal.Entry) (timedOut bool, err error) {
	writeCtx := ctx
	if o.writeTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, o.writeTimeout)
		defer cancel()
	}
	_, err = o.entries.Insert(writeCtx, entry)
	if err != nil && ctx.Err() == nil && errors.Is(writeCtx.Err(), context.DeadlineExceeded) {
		return true, err
	}
	return false, err
}

type sideEffects struct {
	signal   distress.Signal
	escalate bool
	badges   []engagement.BadgeID
}

// applyConfirmed runs escalation then engagement for an entry the record store has confirmed.
// Every step is best-effort.
func (o *Orchestrator) applyConfirmed(ctx context.Context, entry journal.Entry) sideEffects {
	now := o.clock()
	authorID := entry.AuthorID
	author := entry.Author()
	fields := []zap.Field{zap.String("author_id", authorID), zap.String("entry_id", entry.EntryID)}

	recent, err := o.entries.CountSince(ctx, author, now.Add(-recentActivityWindow))
	if err != nil {
		o.logger.Warn("recent entry count failed", append(fields, zap.Error(err))...)
		recent = 0
	}
	signal := o.engine.Assess(entry.Text, entry.Mood, int(recent))

	escalate := false
	if signal.ShouldShowSupport {
		escalate = o.cooldown.ShouldEscalate(o.recentLevels(ctx, authorID, signal.Level, fields), o.daysSinceShown(ctx, authorID, now, fields))
	}

	if err := o.history.AppendRecord(ctx, authorID, entry.EntryID, signal, escalate, now); err != nil {
		o.logger.Warn("distress record append failed", append(fields, zap.Error(err))...)
	}
	if escalate {
		if err := o.history.AppendRecommendation(ctx, authorID, distress.CategorySafetySupport, now); err != nil {
			o.logger.Warn("recommendation event append failed", append(fields, zap.Error(err))...)
		}
	}

	if _, err := o.ledger.Touch(ctx, authorID, now.In(o.location)); err != nil {
		o.logger.Warn("streak update failed", append(fields, zap.Error(err))...)
	}
	if _, err := o.ledger.Award(ctx, authorID, engagement.ActivityJournalEntry); err != nil {
		o.logger.Warn("entry reward failed", append(fields, zap.Error(err))...)
	}

	badges := []engagement.BadgeID{}
	total, err := o.entries.Count(ctx, author)
	if err != nil {
		o.logger.Warn("entry count for milestones failed", append(fields, zap.Error(err))...)
	} else {
		granted, err := o.ledger.AwardMilestones(ctx, authorID, total)
		if err != nil {
			o.logger.Warn("milestone badges failed", append(fields, zap.Error(err))...)
		} else {
			badges = granted
		}
	}

	return sideEffects{signal: signal, escalate: escalate, badges: badges}
}

// recentLevels returns the cooldown window with the current entry's level first.
func (o *Orchestrator) recentLevels(ctx context.Context, authorID string, current distress.Level, fields []zap.Field) []distress.Level {
	levels := []distress.Level{current}
	stored, err := o.history.RecentLevels(ctx, authorID, o.cooldown.HistoryWindow-1)
	if err != nil {
		o.logger.Warn("distress history read failed", append(fields, zap.Error(err))...)
		return levels
	}
	return append(levels, stored...)
}

// daysSinceShown treats an unreadable history as never shown so support is not suppressed by a read failure.
func (o *Orchestrator) daysSinceShown(ctx context.Context, authorID string, now time.Time, fields []zap.Field) int {
	lastShown, shown, err := o.history.LastShown(ctx, authorID, distress.CategorySafetySupport)
	if err != nil {
		o.logger.Warn("recommendation history read failed", append(fields, zap.Error(err))...)
		return distress.NeverShown
	}
	return distress.DaysSince(lastShown, shown, now)
}

func (o *Orchestrator) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	o.logger.Error("submission pipeline error", attrs...)
}
