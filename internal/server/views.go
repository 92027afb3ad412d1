package server

import (
	"time"

	"teamsched/internal/models"
)

// userView is the public projection of a user. Credentials and provider
// tokens never leave the server.
type userView struct {
	ID              uint      `json:"id"`
	Username        *string   `json:"username,omitempty"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	KakaoLinked     bool      `json:"kakao_linked"`
	CreatedAt       time.Time `json:"created_at"`
}

func toUserView(u *models.User) userView {
	return userView{
		ID:              u.ID,
		Username:        u.Username,
		Name:            u.Name,
		Email:           u.Email,
		ProfileImageURL: u.ProfileImageURL,
		KakaoLinked:     u.KakaoID != nil,
		CreatedAt:       u.CreatedAt,
	}
}

type tokenPairView struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	IsNewUser    *bool    `json:"is_new_user,omitempty"`
	User         userView `json:"user"`
}

type teamView struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTeamView(t *models.Team) teamView {
	return teamView{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
	}
}

type memberView struct {
	UserID   uint            `json:"user_id"`
	Name     string          `json:"name"`
	Role     models.TeamRole `json:"role"`
	JoinedAt time.Time       `json:"joined_at"`
}

func toMemberView(m *models.TeamMember) memberView {
	return memberView{
		UserID:   m.UserID,
		Name:     m.User.Name,
		Role:     m.Role,
		JoinedAt: m.JoinedAt,
	}
}

type invitationView struct {
	Token     string                  `json:"token"`
	TeamID    uint                    `json:"team_id"`
	Status    models.InvitationStatus `json:"status"`
	ExpiresAt time.Time               `json:"expires_at"`
}

func toInvitationView(inv *models.TeamInvitation) invitationView {
	return invitationView{
		Token:     inv.Token,
		TeamID:    inv.TeamID,
		Status:    inv.Status,
		ExpiresAt: inv.ExpiresAt,
	}
}

type notificationView struct {
	ID         uint                       `json:"id"`
	ScheduleID *uint                      `json:"schedule_id,omitempty"`
	Type       models.NotificationType    `json:"type"`
	Status     models.NotificationStatus  `json:"status"`
	Channel    models.NotificationChannel `json:"channel"`
	Message    string                     `json:"message"`
	SentAt     *time.Time                 `json:"sent_at,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
}

func toNotificationView(n *models.Notification) notificationView {
	return notificationView{
		ID:         n.ID,
		ScheduleID: n.ScheduleID,
		Type:       n.Type,
		Status:     n.Status,
		Channel:    n.Channel,
		Message:    n.Message,
		SentAt:     n.SentAt,
		CreatedAt:  n.CreatedAt,
	}
}

type preferenceView struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

func toPreferenceView(p *models.NotificationPreference) preferenceView {
	return preferenceView{
		Key:     string(p.ScheduleType) + "_" + string(p.ActionType),
		Enabled: p.Enabled,
	}
}
