package journal

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestNewEntryIDRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "whitespace", input: "   "},
		{name: "too-long", input: strings.Repeat("a", maxIdentifierLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEntryID(tt.input); !errors.Is(err, ErrInvalidEntryID) {
				t.Fatalf("expected ErrInvalidEntryID, got %v", err)
			}
		})
	}
}

func TestNewEntryNormalizesTagsAndMood(t *testing.T) {
	createdAt := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	entry := mustEntry(t, EntryConfig{
		EntryID:   mustEntryID(t, "entry-1"),
		AuthorID:  mustAuthorID(t, "author-1"),
		Text:      "slept badly",
		Mood:      "  Tired ",
		Tags:      []string{"Sleep", "sleep ", "", "work"},
		CreatedAt: createdAt,
	})

	if entry.Mood != "tired" {
		t.Fatalf("expected normalized mood, got %q", entry.Mood)
	}
	tags := entry.Tags()
	if len(tags) != 2 || tags[0] != "sleep" || tags[1] != "work" {
		t.Fatalf("unexpected tags %#v", tags)
	}
	if !entry.CreatedAt().Equal(createdAt) {
		t.Fatalf("unexpected created at %v", entry.CreatedAt())
	}
}

func TestNewEntryRejectsBlankText(t *testing.T) {
	_, err := NewEntry(EntryConfig{
		EntryID:   "entry-1",
		AuthorID:  "author-1",
		Text:      " \n\t",
		CreatedAt: time.Now(),
	})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestNewEntryTruncatesLongTagsOnRuneBoundary(t *testing.T) {
	// 63 ASCII bytes followed by a two-byte rune straddles the tag limit.
	long := strings.Repeat("a", maxTagLength-1) + "éé"
	entry := mustEntry(t, EntryConfig{
		EntryID:   mustEntryID(t, "entry-1"),
		AuthorID:  mustAuthorID(t, "author-1"),
		Text:      "tagged",
		Tags:      []string{long, strings.Repeat("ü", maxTagLength)},
		CreatedAt: time.Now(),
	})

	if !utf8.Valid(entry.TagsJSON) {
		t.Fatalf("expected valid utf-8 tag payload, got %q", entry.TagsJSON)
	}
	tags := entry.Tags()
	if len(tags) != 2 {
		t.Fatalf("expected two tags, got %#v", tags)
	}
	if tags[0] != strings.Repeat("a", maxTagLength-1) {
		t.Fatalf("expected the split rune to be dropped, got %q", tags[0])
	}
	if len(tags[1]) != maxTagLength || !utf8.ValidString(tags[1]) {
		t.Fatalf("expected %d bytes of whole runes, got %q", maxTagLength, tags[1])
	}
}

func TestEntrySameSubmission(t *testing.T) {
	base := Entry{EntryID: "entry-1", AuthorID: "author-1", Text: "walked home"}
	tests := []struct {
		name  string
		other Entry
		want  bool
	}{
		{name: "replay", other: base, want: true},
		{name: "other author", other: Entry{EntryID: "entry-1", AuthorID: "author-2", Text: "walked home"}, want: false},
		{name: "other text", other: Entry{EntryID: "entry-1", AuthorID: "author-1", Text: "took the bus"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.SameSubmission(tt.other); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
