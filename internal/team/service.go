// Package team implements team membership: creation, invitations, role
// changes, and the admin-succession invariant on departure.
package team

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamsched/internal/apperr"
	"teamsched/internal/audit"
	"teamsched/internal/models"
)

const (
	// maxTeamCount caps how many teams a single user may belong to,
	// enforced at invitation acceptance.
	maxTeamCount = 10

	invitationTTL = 7 * 24 * time.Hour
)

// Service is the membership ledger.
type Service struct {
	db    *gorm.DB
	audit *audit.Recorder
	log   zerolog.Logger
	now   func() time.Time
}

// NewService constructs the team service.
func NewService(db *gorm.DB, rec *audit.Recorder, log zerolog.Logger) *Service {
	return &Service{db: db, audit: rec, log: log, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateTeam creates a team with the creator as its first ADMIN member.
func (s *Service) CreateTeam(ctx context.Context, userID uint, name, description string) (models.Team, error) {
	if name == "" {
		return models.Team{}, apperr.ErrBadRequest.WithMessage("team name is required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Team{}, apperr.ErrUserNotFound
		}
		return models.Team{}, err
	}

	team := models.Team{Name: name, Description: description, CreatedBy: userID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		member := models.TeamMember{TeamID: team.ID, UserID: userID, Role: models.RoleAdmin}
		return tx.Create(&member).Error
	})
	if err != nil {
		return models.Team{}, err
	}

	s.log.Info().Uint("team_id", team.ID).Uint("user_id", userID).Msg("team created")
	return team, nil
}

// MyTeams lists every team the user belongs to.
func (s *Service) MyTeams(ctx context.Context, userID uint) ([]models.Team, error) {
	var teams []models.Team
	err := s.db.WithContext(ctx).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", userID).
		Find(&teams).Error
	return teams, err
}

// GetTeam returns one team by id.
func (s *Service) GetTeam(ctx context.Context, teamID uint) (models.Team, error) {
	var team models.Team
	if err := s.db.WithContext(ctx).First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Team{}, apperr.ErrTeamNotFound
		}
		return models.Team{}, err
	}
	return team, nil
}

// UpdateTeam changes name/description. Requester must hold ADMIN.
func (s *Service) UpdateTeam(ctx context.Context, userID, teamID uint, name, description string) (models.Team, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return models.Team{}, err
	}

	if _, err := s.requireAdmin(ctx, teamID, userID); err != nil {
		return models.Team{}, err
	}

	if name != "" {
		team.Name = name
	}
	team.Description = description
	if err := s.db.WithContext(ctx).Model(&team).Updates(map[string]any{
		"name":        team.Name,
		"description": team.Description,
	}).Error; err != nil {
		return models.Team{}, err
	}

	s.log.Info().Uint("team_id", teamID).Uint("user_id", userID).Msg("team updated")
	return team, nil
}

// Members lists the memberships of a team with users preloaded.
func (s *Service) Members(ctx context.Context, teamID uint) ([]models.TeamMember, error) {
	if err := s.requireTeam(ctx, teamID); err != nil {
		return nil, err
	}

	var members []models.TeamMember
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", teamID).
		Order("joined_at asc").
		Find(&members).Error
	return members, err
}

// Membership returns the requester's membership in a team, if any.
func (s *Service) Membership(ctx context.Context, teamID, userID uint) (models.TeamMember, bool, error) {
	var member models.TeamMember
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TeamMember{}, false, nil
		}
		return models.TeamMember{}, false, err
	}
	return member, true, nil
}

// Invite creates a PENDING invitation for a Kakao identity. Requester must
// hold ADMIN in the team. An unguessable opaque token identifies the
// invitation; it expires seven days after creation.
func (s *Service) Invite(ctx context.Context, inviterID, teamID uint, inviteeKakaoID int64) (models.TeamInvitation, error) {
	if err := s.requireTeam(ctx, teamID); err != nil {
		return models.TeamInvitation{}, err
	}

	if _, err := s.requireAdmin(ctx, teamID, inviterID); err != nil {
		return models.TeamInvitation{}, err
	}

	// The invitee may already be a local user; if so they must not already
	// be a member of this team.
	var invitee models.User
	err := s.db.WithContext(ctx).Where("kakao_id = ?", inviteeKakaoID).First(&invitee).Error
	if err == nil {
		_, isMember, err := s.Membership(ctx, teamID, invitee.ID)
		if err != nil {
			return models.TeamInvitation{}, err
		}
		if isMember {
			return models.TeamInvitation{}, apperr.ErrAlreadyTeamMember
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TeamInvitation{}, err
	}

	var pending int64
	if err := s.db.WithContext(ctx).Model(&models.TeamInvitation{}).
		Where("team_id = ? AND invitee_kakao_id = ? AND status = ?",
			teamID, inviteeKakaoID, models.InvitationPending).
		Count(&pending).Error; err != nil {
		return models.TeamInvitation{}, err
	}
	if pending > 0 {
		return models.TeamInvitation{}, apperr.ErrConflict.WithMessage("a pending invitation already exists for this user")
	}

	invitation := models.TeamInvitation{
		TeamID:         teamID,
		InviterID:      inviterID,
		InviteeKakaoID: inviteeKakaoID,
		Token:          uuid.NewString(),
		Status:         models.InvitationPending,
		ExpiresAt:      s.now().Add(invitationTTL),
	}
	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		return models.TeamInvitation{}, err
	}

	s.audit.Record(ctx, &inviterID, "team.invite", "team", teamID, map[string]any{"invitee_kakao_id": inviteeKakaoID})
	s.log.Info().Uint("team_id", teamID).Int64("invitee_kakao_id", inviteeKakaoID).Msg("invitation created")
	return invitation, nil
}

// AcceptInvitation joins the accepting user to the team as MEMBER. The
// token alone is not authorization: the accepting user's Kakao identity
// must match the invitation target. Expiry is detected lazily here.
func (s *Service) AcceptInvitation(ctx context.Context, userID uint, tok string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invitation models.TeamInvitation
		if err := tx.Where("token = ?", tok).First(&invitation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrInvitationNotFound
			}
			return err
		}

		if !invitation.Pending() {
			return apperr.ErrInvitationAlreadyResponded
		}

		now := s.now()
		if invitation.ExpiredAt(now) {
			invitation.Expire()
			if err := tx.Model(&invitation).Update("status", invitation.Status).Error; err != nil {
				return err
			}
			return apperr.ErrInvitationExpired
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrUserNotFound
			}
			return err
		}

		if user.KakaoID == nil || *user.KakaoID != invitation.InviteeKakaoID {
			s.log.Warn().Str("token", tok).Uint("user_id", userID).Msg("invitation accept denied: identity mismatch")
			return apperr.ErrForbidden.WithMessage("this invitation was issued to a different user")
		}

		var teamCount int64
		if err := tx.Model(&models.TeamMember{}).Where("user_id = ?", userID).Count(&teamCount).Error; err != nil {
			return err
		}
		if teamCount >= maxTeamCount {
			return apperr.ErrMaxTeamExceeded
		}

		invitation.Accept(userID, now)
		if err := tx.Model(&invitation).Updates(map[string]any{
			"status":       invitation.Status,
			"invitee_id":   invitation.InviteeID,
			"responded_at": invitation.RespondedAt,
		}).Error; err != nil {
			return err
		}

		member := models.TeamMember{TeamID: invitation.TeamID, UserID: userID, Role: models.RoleMember}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		s.log.Info().Uint("team_id", invitation.TeamID).Uint("user_id", userID).Msg("invitation accepted")
		return nil
	})
}

// RejectInvitation marks a PENDING invitation rejected.
func (s *Service) RejectInvitation(ctx context.Context, userID uint, tok string) error {
	var invitation models.TeamInvitation
	if err := s.db.WithContext(ctx).Where("token = ?", tok).First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrInvitationNotFound
		}
		return err
	}

	if !invitation.Pending() {
		return apperr.ErrInvitationAlreadyResponded
	}

	invitation.Reject(s.now())
	if err := s.db.WithContext(ctx).Model(&invitation).Updates(map[string]any{
		"status":       invitation.Status,
		"responded_at": invitation.RespondedAt,
	}).Error; err != nil {
		return err
	}

	s.log.Info().Str("token", tok).Uint("user_id", userID).Msg("invitation rejected")
	return nil
}

// RemoveMember expels a member. Requester must hold ADMIN and cannot remove
// themselves; self-removal goes through LeaveTeam.
func (s *Service) RemoveMember(ctx context.Context, requesterID, teamID, targetID uint) error {
	if err := s.requireTeam(ctx, teamID); err != nil {
		return err
	}

	if _, err := s.requireAdmin(ctx, teamID, requesterID); err != nil {
		return err
	}

	if requesterID == targetID {
		return apperr.ErrBadRequest.WithMessage("cannot remove yourself; leave the team instead")
	}

	_, isMember, err := s.Membership(ctx, teamID, targetID)
	if err != nil {
		return err
	}
	if !isMember {
		return apperr.ErrNotFound.WithMessage("target is not a member of this team")
	}

	if err := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, targetID).
		Delete(&models.TeamMember{}).Error; err != nil {
		return err
	}

	s.audit.Record(ctx, &requesterID, "team.remove_member", "team", teamID, map[string]any{"target_user_id": targetID})
	s.log.Info().Uint("team_id", teamID).Uint("target_user_id", targetID).Uint("requester_id", requesterID).Msg("member removed")
	return nil
}

// LeaveTeam removes the caller's own membership. When the caller is the
// team's only ADMIN, the longest-tenured MEMBER is promoted first; with no
// promotion candidate the leave is rejected so the team is never left
// admin-less while it has members.
func (s *Service) LeaveTeam(ctx context.Context, userID, teamID uint) error {
	if err := s.requireTeam(ctx, teamID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var leaving models.TeamMember
		err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).First(&leaving).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound.WithMessage("not a member of this team")
			}
			return err
		}

		if leaving.IsAdmin() {
			var adminCount int64
			if err := tx.Model(&models.TeamMember{}).
				Where("team_id = ? AND role = ?", teamID, models.RoleAdmin).
				Count(&adminCount).Error; err != nil {
				return err
			}

			if adminCount <= 1 {
				var candidate models.TeamMember
				err := tx.Where("team_id = ? AND role = ?", teamID, models.RoleMember).
					Order("joined_at asc").
					First(&candidate).Error
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return apperr.ErrBadRequest.WithMessage("no member available to promote; the team cannot be left without an admin")
					}
					return err
				}

				if err := tx.Model(&candidate).Update("role", models.RoleAdmin).Error; err != nil {
					return err
				}
				s.audit.Record(ctx, &userID, "team.promote_admin", "team", teamID, map[string]any{"promoted_user_id": candidate.UserID})
				s.log.Info().Uint("team_id", teamID).Uint("promoted_user_id", candidate.UserID).Msg("admin succession: member promoted")
			}
		}

		if err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).
			Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}

		s.log.Info().Uint("team_id", teamID).Uint("user_id", userID).Msg("left team")
		return nil
	})
}

// ChangeRole sets a member's role. Requester must hold ADMIN. Unlike
// LeaveTeam this path has no succession safeguard: an admin may demote the
// last admin here.
func (s *Service) ChangeRole(ctx context.Context, requesterID, teamID, targetID uint, role models.TeamRole) error {
	if role != models.RoleAdmin && role != models.RoleMember {
		return apperr.ErrBadRequest.WithMessage("unknown role")
	}

	if _, err := s.requireAdmin(ctx, teamID, requesterID); err != nil {
		return err
	}

	target, isMember, err := s.Membership(ctx, teamID, targetID)
	if err != nil {
		return err
	}
	if !isMember {
		return apperr.ErrNotFound.WithMessage("target is not a member of this team")
	}

	if err := s.db.WithContext(ctx).Model(&target).Update("role", role).Error; err != nil {
		return err
	}

	s.audit.Record(ctx, &requesterID, "team.change_role", "team", teamID, map[string]any{
		"target_user_id": targetID,
		"role":           string(role),
	})
	s.log.Info().Uint("team_id", teamID).Uint("target_user_id", targetID).Str("role", string(role)).Msg("role changed")
	return nil
}

func (s *Service) requireTeam(ctx context.Context, teamID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Team{}).Where("id = ?", teamID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.ErrTeamNotFound
	}
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, teamID, userID uint) (models.TeamMember, error) {
	member, isMember, err := s.Membership(ctx, teamID, userID)
	if err != nil {
		return models.TeamMember{}, err
	}
	if !isMember || !member.IsAdmin() {
		return models.TeamMember{}, apperr.ErrForbidden
	}
	return member, nil
}
