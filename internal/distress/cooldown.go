package distress

import (
	"math"
	"time"
)

const (
	// DefaultCooldownDays is the minimum number of days between two safety recommendations.
	DefaultCooldownDays = 7
	// DefaultHistoryWindow is the number of most recent distress records consulted.
	DefaultHistoryWindow = 10
	// NeverShown stands in for the day count when no recommendation was ever shown.
	NeverShown = math.MaxInt32

	moderateEscalationCount = 3
)

// CooldownPolicy gates safety recommendations over recent distress history.
//
// The cooldown applies to every tier, severe included: a crisis-language entry written
// within CooldownDays of the last recommendation is still recorded as severe, but the
// recommendation is not surfaced again. Changing that is a product decision.
type CooldownPolicy struct {
	CooldownDays  int
	HistoryWindow int
}

// DefaultCooldownPolicy returns the 7 day / 10 record policy.
func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{CooldownDays: DefaultCooldownDays, HistoryWindow: DefaultHistoryWindow}
}

// ShouldEscalate applies DefaultCooldownPolicy.
func ShouldEscalate(recentLevels []Level, daysSinceLastShown int) bool {
	return DefaultCooldownPolicy().ShouldEscalate(recentLevels, daysSinceLastShown)
}

// ShouldEscalate reports whether a recommendation may be shown. recentLevels is newest first.
func (p CooldownPolicy) ShouldEscalate(recentLevels []Level, daysSinceLastShown int) bool {
	cooldown := p.CooldownDays
	if cooldown <= 0 {
		cooldown = DefaultCooldownDays
	}
	if daysSinceLastShown < cooldown {
		return false
	}

	window := p.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(recentLevels) > window {
		recentLevels = recentLevels[:window]
	}

	moderate := 0
	for _, level := range recentLevels {
		switch level {
		case LevelHigh, LevelSevere:
			return true
		case LevelModerate:
			moderate++
		}
	}
	return moderate >= moderateEscalationCount
}

// DaysSince returns whole elapsed days between lastShown and now, or NeverShown when
// nothing was shown yet. Clock skew that puts lastShown in the future counts as zero days.
func DaysSince(lastShown time.Time, shown bool, now time.Time) int {
	if !shown {
		return NeverShown
	}
	elapsed := now.Sub(lastShown)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}
