package models

import (
	"time"
)

// User supports both local username/password login and Kakao OAuth login.
// Refreshing the stored Kakao access token is written with UpdateColumn so
// UpdatedAt stays put; otherwise every OAuth login shows up as a profile
// change.
type User struct {
	ID               uint    `gorm:"primaryKey;autoIncrement"`
	Username         *string `gorm:"type:text;uniqueIndex"`
	PasswordHash     *string `gorm:"type:text"`
	KakaoID          *int64  `gorm:"uniqueIndex"`
	KakaoAccessToken *string `gorm:"type:text"`
	Email            string  `gorm:"type:text"`
	Name             string  `gorm:"type:text;not null"`
	ProfileImageURL  string  `gorm:"type:text"`
	Role             string  `gorm:"type:text;not null;default:USER"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Sessions    []Session        `gorm:"constraint:OnDelete:CASCADE"`
	Memberships []TeamMember     `gorm:"constraint:OnDelete:CASCADE"`
	Preferences []NotificationPreference `gorm:"constraint:OnDelete:CASCADE"`
}

// HasKakaoToken reports whether the user can receive outbound Kakao messages.
func (u *User) HasKakaoToken() bool {
	return u.KakaoAccessToken != nil && *u.KakaoAccessToken != ""
}
