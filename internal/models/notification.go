package models

import (
	"time"
)

// NotificationType identifies the schedule event behind a notification.
type NotificationType string

const (
	NotifyScheduleCreated NotificationType = "SCHEDULE_CREATED"
	NotifyScheduleUpdated NotificationType = "SCHEDULE_UPDATED"
	NotifyScheduleDeleted NotificationType = "SCHEDULE_DELETED"
)

// NotificationChannel is the delivery transport.
type NotificationChannel string

const ChannelKakao NotificationChannel = "KAKAO"

// NotificationStatus is the delivery outcome. PENDING moves to exactly one
// of SUCCESS or FAILED; terminal states are final.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSuccess NotificationStatus = "SUCCESS"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Notification records one delivery attempt trail for one recipient.
// ScheduleID is nullable: membership notifications carry no schedule.
type Notification struct {
	ID         uint                `gorm:"primaryKey;autoIncrement"`
	ScheduleID *uint               `gorm:"index"`
	UserID     uint                `gorm:"not null;index"`
	Type       NotificationType    `gorm:"type:text;not null"`
	Channel    NotificationChannel `gorm:"type:text;not null;default:KAKAO"`
	Status     NotificationStatus  `gorm:"type:text;not null;default:PENDING"`
	Message    string              `gorm:"type:text;not null"`
	SentAt     *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	Schedule *Schedule `gorm:"constraint:OnDelete:CASCADE;foreignKey:ScheduleID;references:ID"`
	User     User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}

// MarkSuccess records a successful delivery and its timestamp.
func (n *Notification) MarkSuccess(now time.Time) {
	n.Status = NotificationSuccess
	n.SentAt = &now
}

// MarkFailed records final failure after the retry budget is exhausted.
func (n *Notification) MarkFailed() {
	n.Status = NotificationFailed
}
