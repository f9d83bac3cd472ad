// Package lexicon scans text for keyword phrases in one Aho-Corasick pass.
package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Mode selects how a phrase occurrence is accepted.
type Mode int

const (
	// WholeWord accepts occurrences bounded by non-word characters on both sides.
	WholeWord Mode = iota
	// Substring accepts any occurrence, including inside longer words.
	Substring
)

// Scanner counts occurrences of a fixed term list. Terms keep their caller-assigned
// indices even when several of them normalize to the same phrase.
type Scanner struct {
	ac        ahocorasick.AhoCorasick
	owners    [][]int
	termCount int
}

// NewScanner compiles the terms into an automaton using overlapping standard matching.
func NewScanner(terms []string) *Scanner {
	scanner := &Scanner{termCount: len(terms)}
	patternIndex := make(map[string]int, len(terms))
	patterns := make([]string, 0, len(terms))
	for termIdx, term := range terms {
		key := Normalize(term)
		if key == "" {
			continue
		}
		if idx, ok := patternIndex[key]; ok {
			scanner.owners[idx] = append(scanner.owners[idx], termIdx)
			continue
		}
		patternIndex[key] = len(patterns)
		patterns = append(patterns, key)
		scanner.owners = append(scanner.owners, []int{termIdx})
	}
	if len(patterns) == 0 {
		return scanner
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: false,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.StandardMatch,
		DFA:                  false,
	})
	scanner.ac = builder.Build(patterns)
	return scanner
}

// Count returns per-term occurrence counts aligned with the terms passed to NewScanner.
func (s *Scanner) Count(text string, mode Mode) []int {
	counts := make([]int, s.termCount)
	if len(s.owners) == 0 {
		return counts
	}
	normalized := Normalize(text)
	if normalized == "" {
		return counts
	}

	iter := s.ac.IterOverlapping(normalized)
	for {
		match := iter.Next()
		if match == nil {
			break
		}
		patternIdx := match.Pattern()
		if patternIdx < 0 || patternIdx >= len(s.owners) {
			continue
		}
		if mode == WholeWord && !isWholeWord(normalized, match.Start(), match.End()) {
			continue
		}
		for _, termIdx := range s.owners[patternIdx] {
			counts[termIdx]++
		}
	}
	return counts
}

// Matched reports, per term, whether it occurs at least once.
func (s *Scanner) Matched(text string, mode Mode) []bool {
	counts := s.Count(text, mode)
	matched := make([]bool, len(counts))
	for idx, count := range counts {
		matched[idx] = count > 0
	}
	return matched
}

// Normalize lowercases text, folds curly apostrophes and collapses whitespace runs.
func Normalize(text string) string {
	var out strings.Builder
	out.Grow(len(text))
	for _, ch := range text {
		c := unicode.ToLower(ch)
		switch {
		case c == '’' || c == '‘':
			out.WriteRune('\'')
		case unicode.IsSpace(c):
			out.WriteRune(' ')
		default:
			out.WriteRune(c)
		}
	}
	return strings.Join(strings.Fields(out.String()), " ")
}

func isWholeWord(text string, start, end int) bool {
	if start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(before) {
			return false
		}
	}
	if end < len(text) {
		after, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(after) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
