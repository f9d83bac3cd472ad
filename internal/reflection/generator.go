// Package reflection produces four-step guided reframing artifacts.
package reflection

import (
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"
)

// StepKind names a position in the artifact. The order of the four kinds is fixed.
type StepKind string

const (
	StepBeliefIdentification StepKind = "belief_identification"
	StepValidation           StepKind = "validation"
	StepReframe              StepKind = "reframe"
	StepActionGoal           StepKind = "action_goal"
)

const excerptLength = 120

// Step is one stage of the guided reframe.
type Step struct {
	Kind     StepKind
	Title    string
	Body     string
	FollowUp string
}

// Artifact always carries exactly four steps, in StepKind order.
type Artifact struct {
	Set   SetName
	Mood  string
	Steps [4]Step
}

// Selector picks an index in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Selector interface {
	IntN(n int) int
}

type globalSelector struct{}

func (globalSelector) IntN(n int) int {
	return rand.IntN(n)
}

// Generator picks content uniformly from the matching set.
type Generator struct {
	mu       sync.Mutex
	selector Selector
	sets     []TransformationSet
}

// NewGenerator builds a generator over DefaultSets. A nil selector uses the process-wide source.
func NewGenerator(selector Selector) *Generator {
	return NewGeneratorWithSets(selector, DefaultSets)
}

// NewGeneratorWithSets builds a generator over custom sets. The last set is the fallback.
func NewGeneratorWithSets(selector Selector, sets []TransformationSet) *Generator {
	if selector == nil {
		selector = globalSelector{}
	}
	return &Generator{selector: selector, sets: sets}
}

// SelectSet returns the first set whose trigger words intersect the mood, or the fallback set.
func (g *Generator) SelectSet(moodCategory string) TransformationSet {
	mood := strings.ToLower(strings.TrimSpace(moodCategory))
	if mood != "" {
		for _, set := range g.sets {
			for _, trigger := range set.TriggerWords {
				if strings.Contains(mood, trigger) {
					return set
				}
			}
		}
	}
	return g.sets[len(g.sets)-1]
}

// Generate builds the artifact for the mood. Total: unknown or empty moods fall back to the general set.
func (g *Generator) Generate(moodCategory string, text string) Artifact {
	set := g.SelectSet(moodCategory)

	g.mu.Lock()
	belief := g.pick(set.Beliefs)
	validation := g.pick(set.Validations)
	reframe := g.pick(set.Reframes)
	action := g.pick(set.Actions)
	g.mu.Unlock()

	beliefFollowUp := "Does this thought feel familiar? Where else does it show up?"
	if excerpt := excerpt(text); excerpt != "" {
		beliefFollowUp = "Looking at what you wrote (\"" + excerpt + "\"), does this thought sit underneath it?"
	}

	return Artifact{
		Set:  set.Name,
		Mood: strings.ToLower(strings.TrimSpace(moodCategory)),
		Steps: [4]Step{
			{Kind: StepBeliefIdentification, Title: "Notice the thought", Body: belief, FollowUp: beliefFollowUp},
			{Kind: StepValidation, Title: "Acknowledge the feeling", Body: validation},
			{Kind: StepReframe, Title: "Try another angle", Body: reframe, FollowUp: "What would change if you believed this a little more?"},
			{Kind: StepActionGoal, Title: "One small step", Body: action, FollowUp: "Mark this done when you've tried it."},
		},
	}
}

func (g *Generator) pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[g.selector.IntN(len(pool))]
}

func excerpt(text string) string {
	trimmed := strings.Join(strings.Fields(text), " ")
	if trimmed == "" {
		return ""
	}
	if end := strings.IndexAny(trimmed, ".!?"); end > 0 {
		trimmed = trimmed[:end]
	}
	if utf8.RuneCountInString(trimmed) <= excerptLength {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:excerptLength])) + "…"
}
