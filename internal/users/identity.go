package users

import (
	"strings"
	"time"
)

// Identity maps a provider login onto the canonical author id used as the journal key.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// DeviceIdentity is the single anonymous identity of this device, kept in the local store.
type DeviceIdentity struct {
	Slot      string    `gorm:"column:slot;primaryKey;size:16"`
	DeviceID  string    `gorm:"column:device_id;size:64;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing the device identity.
func (DeviceIdentity) TableName() string {
	return "device_identity"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
