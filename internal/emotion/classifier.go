// Package emotion infers a discrete mood label from freeform journal text.
package emotion

import "github.com/MarcoPoloResearchLab/solace/backend/internal/lexicon"

// Label is a discrete mood tag.
type Label string

// String returns the raw label.
func (l Label) String() string {
	return string(l)
}

// Score is the keyword vote total for one label.
type Score struct {
	Label Label
	Hits  int
}

// Classifier scores text against a fixed lexicon. It holds no mutable state after construction.
type Classifier struct {
	labels    []Label
	termOwner []int
	scanner   *lexicon.Scanner
}

// NewClassifier compiles the categories. Declaration order decides ties.
func NewClassifier(categories []Category) *Classifier {
	classifier := &Classifier{labels: make([]Label, 0, len(categories))}
	terms := make([]string, 0, len(categories)*8)
	for labelIdx, category := range categories {
		classifier.labels = append(classifier.labels, category.Label)
		for _, keyword := range category.Keywords {
			terms = append(terms, keyword)
			classifier.termOwner = append(classifier.termOwner, labelIdx)
		}
	}
	classifier.scanner = lexicon.NewScanner(terms)
	return classifier
}

// NewDefaultClassifier compiles DefaultLexicon.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultLexicon)
}

// Classify returns the highest-scoring label. The boolean is false when no keyword matched.
func (c *Classifier) Classify(text string) (Label, bool) {
	scores := c.Scores(text)
	best := -1
	bestHits := 0
	for idx, score := range scores {
		if score.Hits > bestHits {
			best = idx
			bestHits = score.Hits
		}
	}
	if best < 0 {
		return "", false
	}
	return scores[best].Label, true
}

// Scores returns the whole-word hit total per label in declaration order.
func (c *Classifier) Scores(text string) []Score {
	scores := make([]Score, len(c.labels))
	for idx, label := range c.labels {
		scores[idx].Label = label
	}
	counts := c.scanner.Count(text, lexicon.WholeWord)
	for termIdx, count := range counts {
		if count == 0 {
			continue
		}
		scores[c.termOwner[termIdx]].Hits += count
	}
	return scores
}
