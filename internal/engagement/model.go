// Package engagement keeps the per-author streak and reward ledger.
package engagement

import (
	"time"
)

const dateLayout = "2006-01-02"

// ActivityKind identifies a reward-bearing activity.
type ActivityKind string

const (
	ActivityJournalEntry            ActivityKind = "journal_entry"
	ActivityTransformationCompleted ActivityKind = "transformation_completed"
	ActivityMeditationSession       ActivityKind = "meditation_session"
	ActivityBreathingExercise       ActivityKind = "breathing_exercise"
	ActivityMoodCheckIn             ActivityKind = "mood_check_in"
	ActivityActionCompleted         ActivityKind = "action_completed"
)

// Reward is the fixed payout for one activity.
type Reward struct {
	XP       int64
	Currency int64
}

var rewardTable = map[ActivityKind]Reward{
	ActivityJournalEntry:            {XP: 10, Currency: 5},
	ActivityTransformationCompleted: {XP: 25, Currency: 10},
	ActivityMeditationSession:       {XP: 15, Currency: 5},
	ActivityBreathingExercise:       {XP: 10, Currency: 3},
	ActivityMoodCheckIn:             {XP: 5, Currency: 2},
	ActivityActionCompleted:         {XP: 20, Currency: 8},
}

// RewardFor reports the payout for kind.
func RewardFor(kind ActivityKind) (Reward, bool) {
	reward, ok := rewardTable[kind]
	return reward, ok
}

// BadgeCurrencyBonus is paid once per newly earned badge.
const BadgeCurrencyBonus int64 = 25

// XPPerLevel is the xp width of one level.
const XPPerLevel = 100

// LevelForXP maps xp onto the level step function.
func LevelForXP(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// BadgeID names an unlockable badge.
type BadgeID string

const (
	BadgeFirstEntry BadgeID = "first_entry"
	BadgeEntries10  BadgeID = "entries_10"
	BadgeEntries50  BadgeID = "entries_50"
	BadgeStreak3    BadgeID = "streak_3"
	BadgeStreak7    BadgeID = "streak_7"
	BadgeStreak30   BadgeID = "streak_30"
)

type milestone struct {
	badge     BadgeID
	entries   int64
	streakLen int64
}

var milestones = []milestone{
	{badge: BadgeFirstEntry, entries: 1},
	{badge: BadgeEntries10, entries: 10},
	{badge: BadgeEntries50, entries: 50},
	{badge: BadgeStreak3, streakLen: 3},
	{badge: BadgeStreak7, streakLen: 7},
	{badge: BadgeStreak30, streakLen: 30},
}

// MilestonesReached lists the badges whose thresholds are met, in declaration order.
func MilestonesReached(entryCount, currentStreak int64) []BadgeID {
	reached := make([]BadgeID, 0, len(milestones))
	for _, m := range milestones {
		switch {
		case m.entries > 0 && entryCount >= m.entries:
			reached = append(reached, m.badge)
		case m.streakLen > 0 && currentStreak >= m.streakLen:
			reached = append(reached, m.badge)
		}
	}
	return reached
}

// StreakState tracks calendar-day continuity for one author.
type StreakState struct {
	AuthorID         string `gorm:"column:author_id;primaryKey;size:190"`
	CurrentStreak    int64  `gorm:"column:current_streak;not null;default:0"`
	LongestStreak    int64  `gorm:"column:longest_streak;not null;default:0"`
	LastEntryDate    string `gorm:"column:last_entry_date;size:10;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (StreakState) TableName() string {
	return "streak_states"
}

// Profile is the author's xp, level and currency balance.
type Profile struct {
	AuthorID         string `gorm:"column:author_id;primaryKey;size:190"`
	XP               int64  `gorm:"column:xp;not null;default:0"`
	Level            int64  `gorm:"column:level;not null;default:1"`
	Currency         int64  `gorm:"column:currency;not null;default:0"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Profile) TableName() string {
	return "engagement_profiles"
}

// Badge is one earned badge. The (author, badge) pair is unique.
type Badge struct {
	AuthorID        string `gorm:"column:author_id;primaryKey;size:190"`
	BadgeID         string `gorm:"column:badge_id;primaryKey;size:64"`
	EarnedAtSeconds int64  `gorm:"column:earned_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Badge) TableName() string {
	return "engagement_badges"
}

// EarnedAt returns the award time.
func (b Badge) EarnedAt() time.Time {
	return time.Unix(b.EarnedAtSeconds, 0).UTC()
}

// Activity is the append-only reward log.
type Activity struct {
	ActivityID       string `gorm:"column:activity_id;primaryKey;size:26"`
	AuthorID         string `gorm:"column:author_id;size:190;not null;index"`
	Kind             string `gorm:"column:kind;size:64;not null"`
	XP               int64  `gorm:"column:xp;not null"`
	Currency         int64  `gorm:"column:currency;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Activity) TableName() string {
	return "engagement_activities"
}

// Models lists every table the ledger owns, for migrations.
func Models() []interface{} {
	return []interface{}{&StreakState{}, &Profile{}, &Badge{}, &Activity{}}
}

// Snapshot is the author's full ledger view.
type Snapshot struct {
	Streak  StreakState
	Profile Profile
	Badges  []Badge
}
