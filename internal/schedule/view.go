package schedule

import (
	"time"

	"teamsched/internal/models"
)

// View is the read-time projection of a schedule. Non-members and
// unauthenticated callers get the description redacted and the capability
// flags forced to false regardless of actual ownership; this is a
// projection rule, nothing is changed in storage.
type View struct {
	ID          uint                `json:"id"`
	TeamID      uint                `json:"team_id"`
	Title       string              `json:"title"`
	Description *string             `json:"description,omitempty"`
	Type        models.ScheduleType `json:"type"`
	StartAt     time.Time           `json:"start_at"`
	EndAt       time.Time           `json:"end_at"`
	AllDay      bool                `json:"all_day"`
	CreatedBy   uint                `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	ArchivedAt  *time.Time          `json:"archived_at,omitempty"`
	CanEdit     bool                `json:"can_edit"`
	CanDelete   bool                `json:"can_delete"`
}

func baseView(s *models.Schedule) View {
	v := View{
		ID:        s.ID,
		TeamID:    s.TeamID,
		Title:     s.Title,
		Type:      s.Type,
		StartAt:   s.StartAt,
		EndAt:     s.EndAt,
		AllDay:    s.AllDay,
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt,
	}
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		v.ArchivedAt = &t
	}
	return v
}

func memberView(s *models.Schedule, userID uint, isAdmin bool) View {
	v := baseView(s)
	v.Description = s.Description
	canMutate := isAdmin || s.CreatedBy == userID
	v.CanEdit = canMutate
	v.CanDelete = canMutate
	return v
}

func nonMemberView(s *models.Schedule) View {
	return baseView(s)
}
