// Package distress classifies journal text into a distress tier and gates safety recommendations.
package distress

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/lexicon"
)

// Level is the distress tier of a single entry.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelSevere   Level = "severe"
)

// ParseLevel maps stored values back to a Level. Unknown values read as low.
func ParseLevel(value string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(value))) {
	case LevelModerate:
		return LevelModerate
	case LevelHigh:
		return LevelHigh
	case LevelSevere:
		return LevelSevere
	default:
		return LevelLow
	}
}

const longEntryThreshold = 300

const (
	recommendationSevere   = "You deserve support right now. Please call or text a crisis line such as 988 (US), or your local emergency number. You don't have to go through this alone."
	recommendationHigh     = "It sounds like things are really heavy lately. Talking with a licensed therapist or someone you trust could help."
	recommendationModerate = "You've been carrying a lot. A short grounding exercise or reaching out to someone supportive may help."
	recommendationLow      = "Thanks for checking in with yourself. Keep noticing how you feel."
)

// Signal is the derived, unpersisted distress assessment for one entry.
type Signal struct {
	Level             Level
	Triggers          []string
	Recommendation    string
	ShouldShowSupport bool
}

// Engine assesses text against compiled lexicons. Safe for concurrent use.
type Engine struct {
	lexicons      Lexicons
	crisis        *lexicon.Scanner
	severe        *lexicon.Scanner
	moderate      *lexicon.Scanner
	chronic       *lexicon.Scanner
	negativeMoods map[string]struct{}
}

// NewEngine compiles the lexicons.
func NewEngine(lexicons Lexicons) *Engine {
	negative := make(map[string]struct{}, len(lexicons.NegativeMoods))
	for _, mood := range lexicons.NegativeMoods {
		negative[strings.ToLower(strings.TrimSpace(mood))] = struct{}{}
	}
	return &Engine{
		lexicons:      lexicons,
		crisis:        lexicon.NewScanner(lexicons.CrisisPhrases),
		severe:        lexicon.NewScanner(lexicons.SevereTerms),
		moderate:      lexicon.NewScanner(lexicons.ModerateTerms),
		chronic:       lexicon.NewScanner(lexicons.ChronicMarkers),
		negativeMoods: negative,
	}
}

// NewDefaultEngine compiles DefaultLexicons.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultLexicons())
}

// IsNegativeMood reports whether the mood label belongs to the negative set.
func (e *Engine) IsNegativeMood(mood string) bool {
	_, ok := e.negativeMoods[strings.ToLower(strings.TrimSpace(mood))]
	return ok
}

// Assess scores the text. The first matching tier wins: severe, high, moderate, low.
func (e *Engine) Assess(text string, mood string, recentEntryCount int) Signal {
	crisisHits := collect(e.lexicons.CrisisPhrases, e.crisis.Matched(text, lexicon.Substring))
	if len(crisisHits) > 0 {
		return Signal{
			Level:             LevelSevere,
			Triggers:          describe("crisis language", crisisHits),
			Recommendation:    recommendationSevere,
			ShouldShowSupport: true,
		}
	}

	severeHits := collect(e.lexicons.SevereTerms, e.severe.Matched(text, lexicon.WholeWord))
	chronicHits := collect(e.lexicons.ChronicMarkers, e.chronic.Matched(text, lexicon.WholeWord))
	moderateHits := collect(e.lexicons.ModerateTerms, e.moderate.Matched(text, lexicon.WholeWord))
	negativeMood := e.IsNegativeMood(mood)

	triggers := make([]string, 0, len(severeHits)+len(chronicHits)+len(moderateHits)+1)
	triggers = append(triggers, describe("severe distress", severeHits)...)
	triggers = append(triggers, describe("chronic pattern", chronicHits)...)
	triggers = append(triggers, describe("distress marker", moderateHits)...)

	switch {
	case len(severeHits) >= 2,
		len(severeHits) >= 1 && negativeMood && len(chronicHits) > 0:
		return Signal{Level: LevelHigh, Triggers: triggers, Recommendation: recommendationHigh, ShouldShowSupport: true}
	case len(moderateHits) >= 3,
		len(moderateHits) >= 2 && recentEntryCount >= 5:
		return Signal{Level: LevelModerate, Triggers: triggers, Recommendation: recommendationModerate, ShouldShowSupport: true}
	case len(moderateHits) >= 1:
		return Signal{Level: LevelLow, Triggers: triggers, Recommendation: recommendationLow}
	case negativeMood && utf8.RuneCountInString(text) > longEntryThreshold:
		triggers = append(triggers, fmt.Sprintf("long entry with negative mood %q", strings.ToLower(mood)))
		return Signal{Level: LevelLow, Triggers: triggers, Recommendation: recommendationLow}
	default:
		return Signal{Level: LevelLow, Triggers: []string{}}
	}
}

func collect(terms []string, matched []bool) []string {
	hits := make([]string, 0, 4)
	for idx, ok := range matched {
		if ok {
			hits = append(hits, terms[idx])
		}
	}
	return hits
}

func describe(kind string, hits []string) []string {
	described := make([]string, 0, len(hits))
	for _, hit := range hits {
		described = append(described, fmt.Sprintf("%s: %q", kind, hit))
	}
	return described
}
