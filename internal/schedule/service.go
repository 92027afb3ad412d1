// Package schedule implements the schedule lifecycle: create, list, get,
// update, and one-way archive, with owner-or-admin mutation authorization
// and commit-gated lifecycle events.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamsched/internal/apperr"
	"teamsched/internal/events"
	"teamsched/internal/models"
	"teamsched/internal/team"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service is the schedule lifecycle engine.
type Service struct {
	db        *gorm.DB
	teams     *team.Service
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewService constructs the schedule service. publisher may be nil when no
// notification path is configured.
func NewService(db *gorm.DB, teams *team.Service, publisher events.Publisher, log zerolog.Logger) *Service {
	return &Service{db: db, teams: teams, publisher: publisher, log: log, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams are the writable fields of a new schedule.
type CreateParams struct {
	Title       string
	Description *string
	Type        models.ScheduleType
	StartAt     time.Time
	EndAt       time.Time
	AllDay      bool
}

// UpdateParams are the writable fields of an update. Type is immutable
// after creation and deliberately absent.
type UpdateParams struct {
	Title       string
	Description *string
	StartAt     time.Time
	EndAt       time.Time
	AllDay      bool
}

// ListParams scope a paged list query.
type ListParams struct {
	From time.Time
	To   time.Time
	Type *models.ScheduleType
	Page int
	Size int
}

// ListResult is one page of schedule views.
type ListResult struct {
	Schedules  []View
	Page       int
	Size       int
	TotalCount int64
}

// Create validates and persists a schedule, then emits the created event
// once the transaction has committed.
func (s *Service) Create(ctx context.Context, userID, teamID uint, params CreateParams) (View, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return View{}, err
	}

	member, isMember, err := s.teams.Membership(ctx, teamID, userID)
	if err != nil {
		return View{}, err
	}
	if !isMember {
		return View{}, apperr.ErrForbidden
	}

	if err := validateParams(params.Title, params.Type, params.StartAt, params.EndAt); err != nil {
		return View{}, err
	}

	sched := models.Schedule{
		TeamID:      teamID,
		Title:       params.Title,
		Description: params.Description,
		Type:        params.Type,
		StartAt:     params.StartAt,
		EndAt:       params.EndAt,
		AllDay:      params.AllDay,
		CreatedBy:   userID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&sched).Error
	})
	if err != nil {
		return View{}, err
	}

	s.publish(ctx, &sched, models.NotifyScheduleCreated)

	s.log.Info().Uint("schedule_id", sched.ID).Uint("team_id", teamID).Uint("user_id", userID).Msg("schedule created")
	return memberView(&sched, userID, member.IsAdmin()), nil
}

// List returns one page of schedules in the team overlapping the window.
// Any authenticated caller may list; non-members get the redacted view.
// currentUserID nil means unauthenticated.
func (s *Service) List(ctx context.Context, currentUserID *uint, teamID uint, params ListParams) (ListResult, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return ListResult{}, err
	}

	isMember, isAdmin, err := s.callerRole(ctx, teamID, currentUserID)
	if err != nil {
		return ListResult{}, err
	}

	if params.Size <= 0 {
		params.Size = defaultPageSize
	}
	if params.Size > maxPageSize {
		params.Size = maxPageSize
	}
	if params.Page < 0 {
		params.Page = 0
	}

	if !params.From.IsZero() && !params.To.IsZero() && params.To.Before(params.From) {
		return ListResult{}, apperr.ErrInvalidDateRange
	}

	// Either bound may be given alone for a half-open window.
	query := s.db.WithContext(ctx).Model(&models.Schedule{}).Where("team_id = ?", teamID)
	if !params.From.IsZero() {
		query = query.Where("start_at >= ?", params.From)
	}
	if !params.To.IsZero() {
		query = query.Where("start_at <= ?", params.To)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return ListResult{}, err
	}

	var schedules []models.Schedule
	if err := query.
		Order("start_at asc").
		Offset(params.Page * params.Size).
		Limit(params.Size).
		Find(&schedules).Error; err != nil {
		return ListResult{}, err
	}

	views := make([]View, 0, len(schedules))
	for i := range schedules {
		views = append(views, s.project(&schedules[i], currentUserID, isMember, isAdmin))
	}

	return ListResult{Schedules: views, Page: params.Page, Size: params.Size, TotalCount: total}, nil
}

// Get returns one schedule. Archived schedules answer SCHEDULE_ARCHIVED so
// callers can tell "existed, now archived" from "never existed".
func (s *Service) Get(ctx context.Context, currentUserID *uint, teamID, scheduleID uint) (View, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return View{}, err
	}

	sched, err := s.findInTeam(ctx, scheduleID, teamID)
	if err != nil {
		return View{}, err
	}

	isMember, isAdmin, err := s.callerRole(ctx, teamID, currentUserID)
	if err != nil {
		return View{}, err
	}

	return s.project(sched, currentUserID, isMember, isAdmin), nil
}

// Update mutates an active schedule. Only the creator or a team ADMIN may
// update; the type tag is immutable. Emits the updated event post-commit.
func (s *Service) Update(ctx context.Context, userID, teamID, scheduleID uint, params UpdateParams) (View, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return View{}, err
	}

	sched, err := s.findInTeam(ctx, scheduleID, teamID)
	if err != nil {
		return View{}, err
	}

	member, err := s.requireMutate(ctx, sched, teamID, userID)
	if err != nil {
		return View{}, err
	}

	if err := validateParams(params.Title, sched.Type, params.StartAt, params.EndAt); err != nil {
		return View{}, err
	}

	sched.Title = params.Title
	sched.Description = params.Description
	sched.StartAt = params.StartAt
	sched.EndAt = params.EndAt
	sched.AllDay = params.AllDay

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(sched).Updates(map[string]any{
			"title":       sched.Title,
			"description": sched.Description,
			"start_at":    sched.StartAt,
			"end_at":      sched.EndAt,
			"all_day":     sched.AllDay,
		}).Error
	})
	if err != nil {
		return View{}, err
	}

	s.publish(ctx, sched, models.NotifyScheduleUpdated)

	s.log.Info().Uint("schedule_id", scheduleID).Uint("team_id", teamID).Uint("user_id", userID).Msg("schedule updated")
	return memberView(sched, userID, member.IsAdmin()), nil
}

// Archive soft-deletes a schedule. One-way: there is no un-archive. Only
// the creator or a team ADMIN may archive. Emits the deleted event
// post-commit.
func (s *Service) Archive(ctx context.Context, userID, teamID, scheduleID uint) error {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return err
	}

	sched, err := s.findInTeam(ctx, scheduleID, teamID)
	if err != nil {
		return err
	}

	if _, err := s.requireMutate(ctx, sched, teamID, userID); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Delete(sched).Error
	})
	if err != nil {
		return err
	}

	s.publish(ctx, sched, models.NotifyScheduleDeleted)

	s.log.Info().Uint("schedule_id", scheduleID).Uint("team_id", teamID).Uint("user_id", userID).Msg("schedule archived")
	return nil
}

// ListArchived returns the team's archived schedules. ADMIN only.
func (s *Service) ListArchived(ctx context.Context, userID, teamID uint) ([]View, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	member, isMember, err := s.teams.Membership(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember || !member.IsAdmin() {
		return nil, apperr.ErrForbidden
	}

	var archived []models.Schedule
	if err := s.db.WithContext(ctx).Unscoped().
		Where("team_id = ? AND deleted_at IS NOT NULL", teamID).
		Order("deleted_at desc").
		Find(&archived).Error; err != nil {
		return nil, err
	}

	views := make([]View, 0, len(archived))
	for i := range archived {
		views = append(views, memberView(&archived[i], userID, true))
	}
	return views, nil
}

// findInTeam loads an active schedule scoped to the team. A soft-deleted
// row answers SCHEDULE_ARCHIVED; anything else answers SCHEDULE_NOT_FOUND,
// including schedules that exist in a different team.
func (s *Service) findInTeam(ctx context.Context, scheduleID, teamID uint) (*models.Schedule, error) {
	var sched models.Schedule
	err := s.db.WithContext(ctx).First(&sched, scheduleID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		var archivedCount int64
		if err := s.db.WithContext(ctx).Unscoped().Model(&models.Schedule{}).
			Where("id = ? AND team_id = ? AND deleted_at IS NOT NULL", scheduleID, teamID).
			Count(&archivedCount).Error; err != nil {
			return nil, err
		}
		if archivedCount > 0 {
			return nil, apperr.ErrScheduleArchived
		}
		return nil, apperr.ErrScheduleNotFound
	}

	if sched.TeamID != teamID {
		return nil, apperr.ErrScheduleNotFound
	}
	return &sched, nil
}

func (s *Service) requireMutate(ctx context.Context, sched *models.Schedule, teamID, userID uint) (models.TeamMember, error) {
	member, isMember, err := s.teams.Membership(ctx, teamID, userID)
	if err != nil {
		return models.TeamMember{}, err
	}
	if !isMember {
		return models.TeamMember{}, apperr.ErrForbidden
	}
	if sched.CreatedBy != userID && !member.IsAdmin() {
		return models.TeamMember{}, apperr.ErrForbidden
	}
	return member, nil
}

func (s *Service) callerRole(ctx context.Context, teamID uint, currentUserID *uint) (isMember, isAdmin bool, err error) {
	if currentUserID == nil {
		return false, false, nil
	}
	member, ok, err := s.teams.Membership(ctx, teamID, *currentUserID)
	if err != nil {
		return false, false, err
	}
	return ok, ok && member.IsAdmin(), nil
}

func (s *Service) project(sched *models.Schedule, currentUserID *uint, isMember, isAdmin bool) View {
	if !isMember {
		return nonMemberView(sched)
	}
	return memberView(sched, *currentUserID, isAdmin)
}

// publish emits the lifecycle event after the mutation has committed. A
// publish failure is logged and swallowed: delivery is best-effort and must
// never affect the caller of the committed mutation.
func (s *Service) publish(ctx context.Context, sched *models.Schedule, typ models.NotificationType) {
	if s.publisher == nil {
		return
	}
	ev := events.FromSchedule(sched, typ)
	if err := s.publisher.PublishSchedule(ctx, ev); err != nil {
		s.log.Error().Err(err).Uint("schedule_id", sched.ID).Str("type", string(typ)).Msg("lifecycle event publish failed")
	}
}

func validateParams(title string, typ models.ScheduleType, startAt, endAt time.Time) error {
	if title == "" {
		return apperr.ErrBadRequest.WithMessage("title is required")
	}
	if typ != models.ScheduleVacation && typ != models.ScheduleWork {
		return apperr.ErrBadRequest.WithMessage("unknown schedule type")
	}
	if startAt.IsZero() || endAt.IsZero() {
		return apperr.ErrBadRequest.WithMessage("start and end times are required")
	}
	if !endAt.After(startAt) {
		return apperr.ErrInvalidDateRange
	}
	return nil
}
