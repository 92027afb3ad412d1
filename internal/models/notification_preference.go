package models

import (
	"time"
)

// NotificationActionType is the schedule action a preference applies to.
type NotificationActionType string

const (
	ActionCreated NotificationActionType = "CREATED"
	ActionUpdated NotificationActionType = "UPDATED"
	ActionDeleted NotificationActionType = "DELETED"
)

// NotificationActionTypes lists every known action type.
func NotificationActionTypes() []NotificationActionType {
	return []NotificationActionType{ActionCreated, ActionUpdated, ActionDeleted}
}

// NotificationPreference is a per-user opt-in flag for one (schedule type,
// action) pair. Default is enabled; rows are materialized lazily on first
// read or write rather than eagerly for every user.
type NotificationPreference struct {
	ID           uint                   `gorm:"primaryKey;autoIncrement"`
	UserID       uint                   `gorm:"not null;uniqueIndex:idx_user_pref"`
	ScheduleType ScheduleType           `gorm:"type:text;not null;uniqueIndex:idx_user_pref"`
	ActionType   NotificationActionType `gorm:"type:text;not null;uniqueIndex:idx_user_pref"`
	Enabled      bool                   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	User User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}
