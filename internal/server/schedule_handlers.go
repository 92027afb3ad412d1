package server

import (
	"net/http"
	"time"

	"teamsched/internal/apperr"
	"teamsched/internal/models"
	"teamsched/internal/schedule"
)

type scheduleRequest struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Type        string    `json:"type"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	AllDay      bool      `json:"all_day"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	scheduleType, err := parseScheduleType(req.Type)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	view, err := s.opts.Schedules.Create(r.Context(), id, teamID, schedule.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Type:        scheduleType,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		AllDay:      req.AllDay,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	params, err := listParamsFromQuery(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.opts.Schedules.List(r.Context(), optionalUserID(r), teamID, params)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"schedules":   result.Schedules,
		"page":        result.Page,
		"size":        result.Size,
		"total_count": result.TotalCount,
	})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	scheduleID, err := pathID(r, "scheduleID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	view, err := s.opts.Schedules.Get(r.Context(), optionalUserID(r), teamID, scheduleID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type scheduleUpdateRequest struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	AllDay      bool      `json:"all_day"`
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	scheduleID, err := pathID(r, "scheduleID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req scheduleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	view, err := s.opts.Schedules.Update(r.Context(), id, teamID, scheduleID, schedule.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		AllDay:      req.AllDay,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleArchiveSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	scheduleID, err := pathID(r, "scheduleID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.opts.Schedules.Archive(r.Context(), id, teamID, scheduleID); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListArchived(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	views, err := s.opts.Schedules.ListArchived(r.Context(), id, teamID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func listParamsFromQuery(r *http.Request) (schedule.ListParams, error) {
	var params schedule.ListParams

	var err error
	if params.From, err = queryTime(r, "from"); err != nil {
		return params, err
	}
	if params.To, err = queryTime(r, "to"); err != nil {
		return params, err
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := parseScheduleType(raw)
		if err != nil {
			return params, err
		}
		params.Type = &t
	}
	if params.Page, err = queryInt(r, "page", 0); err != nil {
		return params, err
	}
	if params.Size, err = queryInt(r, "size", 0); err != nil {
		return params, err
	}
	return params, nil
}

// queryTime accepts RFC 3339 timestamps and bare dates.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.ErrBadRequest.WithMessage("invalid " + name + " parameter")
}

func parseScheduleType(raw string) (models.ScheduleType, error) {
	for _, t := range models.ScheduleTypes() {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", apperr.ErrBadRequest.WithMessage("unsupported schedule type: " + raw)
}
