package users

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/auth"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T, name string, models ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, local *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:   openTestDB(t, "records.db", &Identity{}),
		LocalStore: local,
		Clock: func() time.Time {
			return time.Unix(1, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestResolveCanonicalUserIDStripsProviderPrefix(t *testing.T) {
	service := newTestService(t, nil)
	ctx := context.Background()

	claims := auth.SessionClaims{
		UserID:          "google:12345",
		UserEmail:       "user@example.com",
		UserDisplayName: "Example User",
	}
	userID, err := service.ResolveCanonicalUserID(ctx, claims)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if userID != "12345" {
		t.Fatalf("expected canonical user id without provider prefix, got %q", userID)
	}

	userID, err = service.ResolveCanonicalUserID(ctx, claims)
	if err != nil || userID != "12345" {
		t.Fatalf("expected canonical user id to remain stable, got %q (%v)", userID, err)
	}

	var identities int64
	service.db.Model(&Identity{}).Count(&identities)
	if identities != 1 {
		t.Fatalf("expected one identity row, got %d", identities)
	}
}

func TestResolveCanonicalUserIDRejectsEmptyClaims(t *testing.T) {
	service := newTestService(t, nil)
	if _, err := service.ResolveCanonicalUserID(context.Background(), auth.SessionClaims{}); err != ErrInvalidIdentity {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestResolveCanonicalUserIDNeverYieldsDeviceAuthor(t *testing.T) {
	service := newTestService(t, nil)
	userID, err := service.ResolveCanonicalUserID(context.Background(), auth.SessionClaims{UserID: "device:abc"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if IsDeviceAuthor(userID) {
		t.Fatalf("signed-in author must not look anonymous, got %q", userID)
	}
}

func TestDeviceAuthorIDIsStableAcrossServices(t *testing.T) {
	local := openTestDB(t, "local.db", &DeviceIdentity{})
	ctx := context.Background()

	first, err := newTestService(t, local).DeviceAuthorID(ctx)
	if err != nil {
		t.Fatalf("device id failed: %v", err)
	}
	if !strings.HasPrefix(first, DeviceAuthorPrefix) || len(first) <= len(DeviceAuthorPrefix) {
		t.Fatalf("unexpected device author id %q", first)
	}

	second, err := newTestService(t, local).DeviceAuthorID(ctx)
	if err != nil {
		t.Fatalf("device id failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected the stored device id to be reused, got %q then %q", first, second)
	}
}

func TestDeviceAuthorIDRequiresLocalStore(t *testing.T) {
	if _, err := newTestService(t, nil).DeviceAuthorID(context.Background()); err != ErrMissingLocalStore {
		t.Fatalf("expected ErrMissingLocalStore, got %v", err)
	}
}

func TestResolveCanonicalUserIDWithUnreachableStore(t *testing.T) {
	service := newTestService(t, nil)
	sqlDB, err := service.db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("failed to close db: %v", err)
	}

	userID, err := service.ResolveCanonicalUserID(context.Background(), auth.SessionClaims{UserID: "google:offline-user"})
	if err != nil {
		t.Fatalf("expected resolution without the record store, got %v", err)
	}
	if userID != "offline-user" {
		t.Fatalf("expected the subject as author id, got %q", userID)
	}
}
