package journal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestServiceInsertRejectsDuplicateID(t *testing.T) {
	now := time.Unix(1760000000, 0).UTC()
	service, db := newTestService(t, now)
	authorID := mustAuthorID(t, "author-1")

	entry := mustEntry(t, EntryConfig{
		EntryID:   mustEntryID(t, "entry-1"),
		AuthorID:  authorID,
		Text:      "first version",
		CreatedAt: now,
	})
	if _, err := service.Insert(context.Background(), entry); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	replay := entry
	replay.Text = "second version"
	_, err := service.Insert(context.Background(), replay)
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "journal.insert.duplicate_entry" {
		t.Fatalf("unexpected service error %v", err)
	}

	var stored Entry
	if err := db.Where("entry_id = ?", "entry-1").Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload entry: %v", err)
	}
	if stored.Text != "first version" {
		t.Fatalf("expected stored entry to remain unchanged, got %q", stored.Text)
	}
}

func TestServiceCountsPerAuthor(t *testing.T) {
	now := time.Unix(1760000000, 0).UTC()
	service, _ := newTestService(t, now)
	authorID := mustAuthorID(t, "author-1")
	otherID := mustAuthorID(t, "author-2")

	fixtures := []struct {
		id      string
		author  AuthorID
		created time.Time
	}{
		{id: "e1", author: authorID, created: now.Add(-10 * 24 * time.Hour)},
		{id: "e2", author: authorID, created: now.Add(-2 * 24 * time.Hour)},
		{id: "e3", author: authorID, created: now},
		{id: "e4", author: otherID, created: now},
	}
	for _, fixture := range fixtures {
		entry := mustEntry(t, EntryConfig{
			EntryID:   mustEntryID(t, fixture.id),
			AuthorID:  fixture.author,
			Text:      "text",
			CreatedAt: fixture.created,
		})
		if _, err := service.Insert(context.Background(), entry); err != nil {
			t.Fatalf("insert %s failed: %v", fixture.id, err)
		}
	}

	total, err := service.Count(context.Background(), authorID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 entries, got %d", total)
	}

	recent, err := service.CountSince(context.Background(), authorID, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("count since failed: %v", err)
	}
	if recent != 2 {
		t.Fatalf("expected 2 recent entries, got %d", recent)
	}

	listed, err := service.ListEntries(context.Background(), authorID, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 3 || listed[0].EntryID != "e3" {
		t.Fatalf("expected newest entry first, got %#v", listed)
	}
}

func TestServiceMarkActionCompleted(t *testing.T) {
	now := time.Unix(1760000000, 0).UTC()
	service, _ := newTestService(t, now)
	authorID := mustAuthorID(t, "author-1")
	entryID := mustEntryID(t, "entry-1")

	entry := mustEntry(t, EntryConfig{EntryID: entryID, AuthorID: authorID, Text: "text", CreatedAt: now})
	if _, err := service.Insert(context.Background(), entry); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	updated, err := service.MarkActionCompleted(context.Background(), authorID, entryID)
	if err != nil || !updated {
		t.Fatalf("expected first completion to update, got %v %v", updated, err)
	}
	updated, err = service.MarkActionCompleted(context.Background(), authorID, entryID)
	if err != nil || updated {
		t.Fatalf("expected second completion to be a no-op, got %v %v", updated, err)
	}

	_, err = service.MarkActionCompleted(context.Background(), mustAuthorID(t, "someone-else"), entryID)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound for foreign author, got %v", err)
	}
}

func TestServiceGetLoadsAnyAuthorsEntry(t *testing.T) {
	now := time.Unix(1760000000, 0).UTC()
	service, _ := newTestService(t, now)
	entry := mustEntry(t, EntryConfig{
		EntryID:   mustEntryID(t, "entry-1"),
		AuthorID:  mustAuthorID(t, "author-1"),
		Text:      "kept",
		CreatedAt: now,
	})
	if _, err := service.Insert(context.Background(), entry); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	stored, err := service.Get(context.Background(), "entry-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if !stored.SameSubmission(entry) {
		t.Fatalf("unexpected stored entry %+v", stored)
	}
	if _, err := service.Get(context.Background(), "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
