package models

import (
	"time"
)

// Team groups users who share schedules. Teams have no deletion lifecycle.
type Team struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"type:text;not null"`
	Description string `gorm:"type:text"`
	CreatedBy   uint   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Creator User         `gorm:"foreignKey:CreatedBy;references:ID"`
	Members []TeamMember `gorm:"constraint:OnDelete:CASCADE"`
}
