package models

import (
	"time"
)

// Session tracks refresh token lifecycle state. At most one live row exists
// per user: issuing a new refresh token always deletes the prior rows first.
type Session struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	UserID       uint      `gorm:"not null;index"`
	RefreshToken string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt    time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`

	User User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}

// Expired reports whether the stored token has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
