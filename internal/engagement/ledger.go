package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingAuthor   = errors.New("author id is required")
)

// LedgerError carries a dotted failure code alongside the underlying cause.
type LedgerError struct {
	code string
	err  error
}

func (e *LedgerError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *LedgerError) Unwrap() error {
	return e.err
}

func (e *LedgerError) Code() string {
	return e.code
}

const (
	opLedgerNew  = "engagement.ledger.new"
	opTouch      = "engagement.touch"
	opAward      = "engagement.award"
	opAwardBadge = "engagement.award_badge"
	opSnapshot   = "engagement.snapshot"
	opMilestones = "engagement.milestones"

	queryAuthor = "author_id = ?"
)

func newLedgerError(operation, reason string, cause error) error {
	return &LedgerError{code: operation + "." + reason, err: cause}
}

// LedgerConfig describes the ledger's dependencies.
type LedgerConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Ledger applies streak, reward and badge updates in the record store.
type Ledger struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, newLedgerError(opLedgerNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Touch records an entry on the calendar day of today, in today's location.
// A second touch on the same day changes nothing.
func (l *Ledger) Touch(ctx context.Context, authorID string, today time.Time) (StreakState, error) {
	if authorID == "" {
		return StreakState{}, newLedgerError(opTouch, "missing_author", errMissingAuthor)
	}
	day := today.Format(dateLayout)
	yesterday := today.AddDate(0, 0, -1).Format(dateLayout)
	nowSeconds := l.clock().UTC().Unix()

	var state StreakState
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(queryAuthor, authorID).Take(&state).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			state = StreakState{
				AuthorID:         authorID,
				CurrentStreak:    1,
				LongestStreak:    1,
				LastEntryDate:    day,
				UpdatedAtSeconds: nowSeconds,
			}
			return tx.Create(&state).Error
		case err != nil:
			return err
		}

		if state.LastEntryDate == day {
			return nil
		}
		if state.LastEntryDate == yesterday {
			state.CurrentStreak++
		} else {
			state.CurrentStreak = 1
		}
		if state.CurrentStreak > state.LongestStreak {
			state.LongestStreak = state.CurrentStreak
		}
		state.LastEntryDate = day
		state.UpdatedAtSeconds = nowSeconds
		return tx.Model(&StreakState{}).Where(queryAuthor, authorID).Updates(map[string]interface{}{
			"current_streak":  state.CurrentStreak,
			"longest_streak":  state.LongestStreak,
			"last_entry_date": state.LastEntryDate,
			"updated_at_s":    state.UpdatedAtSeconds,
		}).Error
	})
	if err != nil {
		l.logError(opTouch, "transaction_failed", err, zap.String("author_id", authorID))
		return StreakState{}, newLedgerError(opTouch, "transaction_failed", err)
	}
	return state, nil
}

// Award pays the fixed reward for kind and logs the activity. Unknown kinds report false without error.
func (l *Ledger) Award(ctx context.Context, authorID string, kind ActivityKind) (bool, error) {
	if authorID == "" {
		return false, newLedgerError(opAward, "missing_author", errMissingAuthor)
	}
	reward, ok := RewardFor(kind)
	if !ok {
		l.logger.Debug("ignoring unknown activity kind", zap.String("kind", string(kind)))
		return false, nil
	}
	now := l.clock().UTC().Unix()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := credit(tx, authorID, reward, now); err != nil {
			return err
		}
		activity := Activity{
			ActivityID:       ulid.Make().String(),
			AuthorID:         authorID,
			Kind:             string(kind),
			XP:               reward.XP,
			Currency:         reward.Currency,
			CreatedAtSeconds: now,
		}
		return tx.Create(&activity).Error
	})
	if err != nil {
		l.logError(opAward, "transaction_failed", err,
			zap.String("author_id", authorID),
			zap.String("kind", string(kind)))
		return false, newLedgerError(opAward, "transaction_failed", err)
	}
	return true, nil
}

// AwardBadge grants badgeID once and pays BadgeCurrencyBonus. It reports false when the badge was already held.
func (l *Ledger) AwardBadge(ctx context.Context, authorID string, badgeID BadgeID) (bool, error) {
	if authorID == "" {
		return false, newLedgerError(opAwardBadge, "missing_author", errMissingAuthor)
	}
	now := l.clock().UTC().Unix()

	granted := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		badge := Badge{AuthorID: authorID, BadgeID: string(badgeID), EarnedAtSeconds: now}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&badge)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		granted = true
		return credit(tx, authorID, Reward{Currency: BadgeCurrencyBonus}, now)
	})
	if err != nil {
		l.logError(opAwardBadge, "transaction_failed", err,
			zap.String("author_id", authorID),
			zap.String("badge_id", string(badgeID)))
		return false, newLedgerError(opAwardBadge, "transaction_failed", err)
	}
	return granted, nil
}

// AwardMilestones grants every milestone badge reached by entryCount and the stored streak.
// It returns only badges granted by this call. A failed badge write is logged and skipped.
func (l *Ledger) AwardMilestones(ctx context.Context, authorID string, entryCount int64) ([]BadgeID, error) {
	var state StreakState
	err := l.db.WithContext(ctx).Where(queryAuthor, authorID).Take(&state).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.logError(opMilestones, "streak_lookup_failed", err, zap.String("author_id", authorID))
		return nil, newLedgerError(opMilestones, "streak_lookup_failed", err)
	}

	granted := make([]BadgeID, 0)
	for _, badgeID := range MilestonesReached(entryCount, state.CurrentStreak) {
		ok, awardErr := l.AwardBadge(ctx, authorID, badgeID)
		if awardErr != nil {
			continue
		}
		if ok {
			granted = append(granted, badgeID)
		}
	}
	return granted, nil
}

// Snapshot reads the author's streak, profile and badges. Missing rows read as zero state at level 1.
func (l *Ledger) Snapshot(ctx context.Context, authorID string) (Snapshot, error) {
	snapshot := Snapshot{
		Streak:  StreakState{AuthorID: authorID},
		Profile: Profile{AuthorID: authorID, Level: LevelForXP(0)},
	}
	db := l.db.WithContext(ctx)

	if err := db.Where(queryAuthor, authorID).Take(&snapshot.Streak).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.logError(opSnapshot, "streak_lookup_failed", err, zap.String("author_id", authorID))
		return Snapshot{}, newLedgerError(opSnapshot, "streak_lookup_failed", err)
	}
	if err := db.Where(queryAuthor, authorID).Take(&snapshot.Profile).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.logError(opSnapshot, "profile_lookup_failed", err, zap.String("author_id", authorID))
		return Snapshot{}, newLedgerError(opSnapshot, "profile_lookup_failed", err)
	}
	if err := db.Where(queryAuthor, authorID).Order("earned_at_s ASC").Order("badge_id ASC").Find(&snapshot.Badges).Error; err != nil {
		l.logError(opSnapshot, "badges_lookup_failed", err, zap.String("author_id", authorID))
		return Snapshot{}, newLedgerError(opSnapshot, "badges_lookup_failed", err)
	}
	return snapshot, nil
}

func credit(tx *gorm.DB, authorID string, reward Reward, nowSeconds int64) error {
	var profile Profile
	err := tx.Where(queryAuthor, authorID).Take(&profile).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	profile.AuthorID = authorID
	profile.XP += reward.XP
	profile.Currency += reward.Currency
	profile.Level = LevelForXP(profile.XP)
	profile.UpdatedAtSeconds = nowSeconds
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "author_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"xp", "level", "currency", "updated_at_s"}),
	}).Create(&profile).Error
}

func (l *Ledger) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	l.logger.Error("engagement ledger error", attrs...)
}
