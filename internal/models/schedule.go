package models

import (
	"time"

	"gorm.io/gorm"
)

// ScheduleType tags a schedule. Immutable after creation.
type ScheduleType string

const (
	ScheduleVacation ScheduleType = "VACATION"
	ScheduleWork     ScheduleType = "WORK"
)

// ScheduleTypes lists every known schedule type.
func ScheduleTypes() []ScheduleType {
	return []ScheduleType{ScheduleVacation, ScheduleWork}
}

// Schedule is a team calendar entry. Deletion is soft only: DeletedAt marks
// the row archived and excludes it from default queries; archived rows are
// reachable solely through the explicit archive lookup.
type Schedule struct {
	ID          uint         `gorm:"primaryKey;autoIncrement"`
	TeamID      uint         `gorm:"not null;index"`
	Title       string       `gorm:"type:text;not null"`
	Description *string      `gorm:"type:text"`
	Type        ScheduleType `gorm:"type:text;not null"`
	StartAt     time.Time    `gorm:"not null;index"`
	EndAt       time.Time    `gorm:"not null"`
	AllDay      bool         `gorm:"not null;default:false"`
	CreatedBy   uint         `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`

	Team    Team `gorm:"constraint:OnDelete:CASCADE;foreignKey:TeamID;references:ID"`
	Creator User `gorm:"constraint:OnDelete:CASCADE;foreignKey:CreatedBy;references:ID"`
}

// Archived reports whether the schedule has been soft deleted.
func (s *Schedule) Archived() bool {
	return s.DeletedAt.Valid
}
