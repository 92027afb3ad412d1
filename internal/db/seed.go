package db

import (
	"context"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"teamsched/internal/models"
)

// Seed inserts a local development user when SEED_USERNAME/SEED_PASSWORD are
// configured. Existing rows are left untouched.
func Seed(ctx context.Context, database *gorm.DB, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	hashStr := string(hash)
	user := models.User{
		Username:     &username,
		PasswordHash: &hashStr,
		Name:         username,
		Role:         "USER",
	}
	return database.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&user).Error
}
