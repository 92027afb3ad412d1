package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"teamsched/internal/apperr"
	"teamsched/internal/models"
)

// PreferenceService manages per-user notification opt-in flags. Rows are
// materialized lazily: a user without rows reads and writes against
// implicit enabled defaults until the first access persists them.
type PreferenceService struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(db *gorm.DB, log zerolog.Logger) *PreferenceService {
	return &PreferenceService{db: db, log: log}
}

// InitializeDefaults creates the full preference matrix for a user, every
// flag enabled. Called on signup and again from the lazy path; rows that
// already exist are left untouched.
func (s *PreferenceService) InitializeDefaults(ctx context.Context, userID uint) error {
	defaults := make([]models.NotificationPreference, 0,
		len(models.ScheduleTypes())*len(models.NotificationActionTypes()))
	for _, scheduleType := range models.ScheduleTypes() {
		for _, actionType := range models.NotificationActionTypes() {
			defaults = append(defaults, models.NotificationPreference{
				UserID:       userID,
				ScheduleType: scheduleType,
				ActionType:   actionType,
				Enabled:      true,
			})
		}
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&defaults).Error
	if err != nil {
		return apperr.ErrInternal.Wrap(err)
	}
	s.log.Debug().Uint("user_id", userID).Msg("default notification preferences initialized")
	return nil
}

// List returns every preference for the user. A user with no rows gets the
// defaults materialized first, so the first read after signup already
// returns the full matrix.
func (s *PreferenceService) List(ctx context.Context, userID uint) ([]models.NotificationPreference, error) {
	prefs, err := s.findAll(ctx, userID)
	if err != nil {
		return nil, apperr.ErrInternal.Wrap(err)
	}
	if len(prefs) == 0 {
		s.log.Info().Uint("user_id", userID).Msg("no notification preferences, initializing defaults")
		if err := s.requireUser(ctx, userID); err != nil {
			return nil, err
		}
		if err := s.InitializeDefaults(ctx, userID); err != nil {
			return nil, err
		}
		if prefs, err = s.findAll(ctx, userID); err != nil {
			return nil, apperr.ErrInternal.Wrap(err)
		}
	}
	return prefs, nil
}

// Update sets one flag identified by its key, e.g. "VACATION_CREATED" or
// "WORK_DELETED". A missing row is created with the new value.
func (s *PreferenceService) Update(ctx context.Context, userID uint, key string, enabled bool) (*models.NotificationPreference, error) {
	scheduleType, actionType, err := ParsePreferenceKey(key)
	if err != nil {
		return nil, err
	}

	var pref models.NotificationPreference
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND schedule_type = ? AND action_type = ?", userID, scheduleType, actionType).
		First(&pref).Error
	switch {
	case err == nil:
	case isNotFound(err):
		if err := s.requireUser(ctx, userID); err != nil {
			return nil, err
		}
		pref = models.NotificationPreference{
			UserID:       userID,
			ScheduleType: scheduleType,
			ActionType:   actionType,
		}
	default:
		return nil, apperr.ErrInternal.Wrap(err)
	}

	pref.Enabled = enabled
	if err := s.db.WithContext(ctx).Save(&pref).Error; err != nil {
		return nil, apperr.ErrInternal.Wrap(err)
	}
	s.log.Debug().
		Uint("user_id", userID).
		Str("key", key).
		Bool("enabled", enabled).
		Msg("notification preference updated")
	return &pref, nil
}

// IsEnabled reports whether the user accepts notifications for the pair.
// A missing row means the default, enabled.
func (s *PreferenceService) IsEnabled(ctx context.Context, userID uint, scheduleType models.ScheduleType, actionType models.NotificationActionType) bool {
	var pref models.NotificationPreference
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND schedule_type = ? AND action_type = ?", userID, scheduleType, actionType).
		First(&pref).Error
	if err != nil {
		return true
	}
	return pref.Enabled
}

// ParsePreferenceKey splits a "SCHEDULETYPE_ACTIONTYPE" key into its parts,
// validating both against the known enums.
func ParsePreferenceKey(key string) (models.ScheduleType, models.NotificationActionType, error) {
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.ErrBadRequest.WithMessage(
			"invalid preference key, expected SCHEDULE_TYPE_ACTION_TYPE, e.g. VACATION_CREATED")
	}

	scheduleType := models.ScheduleType(parts[0])
	validType := false
	for _, t := range models.ScheduleTypes() {
		if t == scheduleType {
			validType = true
			break
		}
	}
	if !validType {
		return "", "", apperr.ErrBadRequest.WithMessage("unsupported schedule type: " + parts[0])
	}

	actionType := models.NotificationActionType(parts[1])
	validAction := false
	for _, a := range models.NotificationActionTypes() {
		if a == actionType {
			validAction = true
			break
		}
	}
	if !validAction {
		return "", "", apperr.ErrBadRequest.WithMessage("unsupported action type: " + parts[1])
	}
	return scheduleType, actionType, nil
}

func (s *PreferenceService) findAll(ctx context.Context, userID uint) ([]models.NotificationPreference, error) {
	var prefs []models.NotificationPreference
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("schedule_type asc, action_type asc").
		Find(&prefs).Error
	return prefs, err
}

func (s *PreferenceService) requireUser(ctx context.Context, userID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return apperr.ErrInternal.Wrap(err)
	}
	if count == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
