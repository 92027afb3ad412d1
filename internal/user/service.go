// Package user exposes profile reads and updates for the authenticated user.
package user

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamsched/internal/apperr"
	"teamsched/internal/models"
)

// Service reads and updates user profiles.
type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewService constructs the user service.
func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Get returns the user identified by id.
func (s *Service) Get(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, apperr.ErrUserNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdateProfile changes the caller's display name and email.
func (s *Service) UpdateProfile(ctx context.Context, id uint, name, email string) (models.User, error) {
	if name == "" {
		return models.User{}, apperr.ErrBadRequest.WithMessage("name is required")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	u.Name = name
	if email != "" {
		u.Email = email
	}
	if err := s.db.WithContext(ctx).Model(&u).Updates(map[string]any{
		"name":  u.Name,
		"email": u.Email,
	}).Error; err != nil {
		return models.User{}, err
	}

	s.log.Info().Uint("user_id", id).Msg("profile updated")
	return u, nil
}
