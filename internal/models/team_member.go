package models

import (
	"time"
)

// TeamRole is the role a user holds within a single team.
type TeamRole string

const (
	RoleAdmin  TeamRole = "ADMIN"
	RoleMember TeamRole = "MEMBER"
)

// TeamMember ties a user to a team with a role. The (team, user) pair is
// unique; JoinedAt drives admin-succession ordering.
type TeamMember struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	TeamID   uint      `gorm:"not null;uniqueIndex:idx_team_user"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_team_user"`
	Role     TeamRole  `gorm:"type:text;not null"`
	JoinedAt time.Time `gorm:"autoCreateTime"`

	Team Team `gorm:"constraint:OnDelete:CASCADE;foreignKey:TeamID;references:ID"`
	User User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}

// IsAdmin reports whether the membership carries the ADMIN role.
func (m *TeamMember) IsAdmin() bool {
	return m.Role == RoleAdmin
}
