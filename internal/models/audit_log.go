package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog captures notable authentication and membership events.
type AuditLog struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	ActorID    *uint          `gorm:"index"`
	Action     string         `gorm:"type:text;not null"`
	TargetType string         `gorm:"type:text;not null"`
	TargetID   *string        `gorm:"type:text"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`

	Actor *User `gorm:"constraint:OnDelete:SET NULL;foreignKey:ActorID;references:ID"`
}
