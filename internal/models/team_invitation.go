package models

import (
	"time"
)

// InvitationStatus is the lifecycle state of a team invitation. Transitions
// are one-way: PENDING moves to exactly one terminal state.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRejected InvitationStatus = "REJECTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// TeamInvitation invites a Kakao identity into a team. The invitee may not
// yet be a local user when the invitation is created.
type TeamInvitation struct {
	ID             uint             `gorm:"primaryKey;autoIncrement"`
	TeamID         uint             `gorm:"not null;index"`
	InviterID      uint             `gorm:"not null"`
	InviteeKakaoID int64            `gorm:"not null;index"`
	InviteeID      *uint
	Token          string           `gorm:"type:text;uniqueIndex;not null"`
	Status         InvitationStatus `gorm:"type:text;not null;default:PENDING"`
	ExpiresAt      time.Time        `gorm:"not null"`
	RespondedAt    *time.Time
	CreatedAt      time.Time        `gorm:"autoCreateTime"`

	Team    Team  `gorm:"constraint:OnDelete:CASCADE;foreignKey:TeamID;references:ID"`
	Inviter User  `gorm:"foreignKey:InviterID;references:ID"`
	Invitee *User `gorm:"foreignKey:InviteeID;references:ID"`
}

// Pending reports whether the invitation can still be responded to.
func (i *TeamInvitation) Pending() bool {
	return i.Status == InvitationPending
}

// ExpiredAt reports whether the invitation deadline has passed at now.
// Expiry is detected lazily at use time, not by a background sweep.
func (i *TeamInvitation) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Accept transitions to ACCEPTED, recording the invitee and response time.
func (i *TeamInvitation) Accept(userID uint, now time.Time) {
	i.Status = InvitationAccepted
	i.InviteeID = &userID
	i.RespondedAt = &now
}

// Reject transitions to REJECTED, recording the response time.
func (i *TeamInvitation) Reject(now time.Time) {
	i.Status = InvitationRejected
	i.RespondedAt = &now
}

// Expire transitions to EXPIRED.
func (i *TeamInvitation) Expire() {
	i.Status = InvitationExpired
}
