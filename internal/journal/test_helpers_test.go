package journal

import (
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, now time.Time) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "records.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return now
		},
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func mustAuthorID(t *testing.T, value string) AuthorID {
	t.Helper()
	id, err := NewAuthorID(value)
	if err != nil {
		t.Fatalf("unexpected author id error: %v", err)
	}
	return id
}

func mustEntryID(t *testing.T, value string) EntryID {
	t.Helper()
	id, err := NewEntryID(value)
	if err != nil {
		t.Fatalf("unexpected entry id error: %v", err)
	}
	return id
}

func mustEntry(t *testing.T, cfg EntryConfig) Entry {
	t.Helper()
	entry, err := NewEntry(cfg)
	if err != nil {
		t.Fatalf("unexpected entry error: %v", err)
	}
	return entry
}
