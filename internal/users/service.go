// Package users resolves the author id a submission is keyed by: a canonical id for signed-in
// sessions, a device-scoped id for anonymous use.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/auth"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DeviceAuthorPrefix marks author ids that belong to an anonymous device.
	DeviceAuthorPrefix = "device:"

	deviceSlot      = "primary"
	defaultProvider = "default"
)

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrMissingLocalStore indicates DeviceAuthorID was called without a local database.
	ErrMissingLocalStore = errors.New("users: local store required for device identity")
)

// ServiceConfig describes the dependencies required for author resolution. Identities live in the
// record store; the device identity lives in the local store.
type ServiceConfig struct {
	Database   *gorm.DB
	LocalStore *gorm.DB
	Clock      func() time.Time
}

// Service resolves author ids.
type Service struct {
	db     *gorm.DB
	local  *gorm.DB
	now    func() time.Time
	cache  sync.Map
	device struct {
		sync.Mutex
		id string
	}
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		local: cfg.LocalStore,
		now:   clock,
	}, nil
}

// ResolveCanonicalUserID returns the author id for the session claims, creating the identity
// mapping the first time a provider+subject pair is seen.
func (s *Service) ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cached, ok := s.cache.Load(cacheKey); ok {
		if canonical, ok := cached.(string); ok {
			return canonical, nil
		}
	}

	db := s.db.WithContext(ctx)
	var identity Identity
	err := db.Where("provider = ? AND subject = ?", provider, subject).First(&identity).Error
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		// Identities map to their subject, so an unreachable record store still yields the right
		// author. The mapping row is written on the next reachable request.
		return subject, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      subject,
			Email:       normalize(claims.UserEmail),
			DisplayName: normalize(claims.UserDisplayName),
			LastSeenAt:  s.now(),
		}
		if err := db.Create(&identity).Error; err != nil {
			return subject, nil
		}
	default:
		updates := map[string]interface{}{"last_seen_at": s.now()}
		if email := normalize(claims.UserEmail); email != "" && email != identity.Email {
			updates["user_email"] = email
		}
		if display := normalize(claims.UserDisplayName); display != "" && display != identity.DisplayName {
			updates["user_display_name"] = display
		}
		_ = db.Model(&Identity{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(updates).
			Error
	}

	s.cache.Store(cacheKey, identity.UserID)
	return identity.UserID, nil
}

// DeviceAuthorID returns "device:<uuid>" for this device, creating the id on first use.
func (s *Service) DeviceAuthorID(ctx context.Context) (string, error) {
	if s.local == nil {
		return "", ErrMissingLocalStore
	}
	s.device.Lock()
	defer s.device.Unlock()
	if s.device.id != "" {
		return DeviceAuthorPrefix + s.device.id, nil
	}

	candidate := DeviceIdentity{Slot: deviceSlot, DeviceID: uuid.NewString()}
	db := s.local.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
		return "", fmt.Errorf("users: create device identity: %w", err)
	}
	var stored DeviceIdentity
	if err := db.Where("slot = ?", deviceSlot).Take(&stored).Error; err != nil {
		return "", fmt.Errorf("users: load device identity: %w", err)
	}
	s.device.id = stored.DeviceID
	return DeviceAuthorPrefix + stored.DeviceID, nil
}

// IsDeviceAuthor reports whether authorID is an anonymous device id.
func IsDeviceAuthor(authorID string) bool {
	return strings.HasPrefix(authorID, DeviceAuthorPrefix)
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if before, after, found := strings.Cut(raw, ":"); found {
			if normalize(before) != "" && normalize(after) != "" {
				provider = normalize(before)
				subject = normalize(after)
			}
		} else if subject == "" {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}
	// A subject shaped like a device id would collide with anonymous authors.
	if IsDeviceAuthor(subject) {
		subject = provider + "-" + subject
	}
	return provider, subject
}
