package db

import (
	"context"

	"gorm.io/gorm"

	"teamsched/internal/models"
)

// Migrate performs schema migrations for the persistent models.
func Migrate(ctx context.Context, database *gorm.DB) error {
	return database.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Team{},
		&models.TeamMember{},
		&models.TeamInvitation{},
		&models.Schedule{},
		&models.Notification{},
		&models.NotificationPreference{},
		&models.AuditLog{},
	)
}
