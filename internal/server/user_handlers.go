package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"teamsched/internal/apperr"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	user, err := s.opts.Users.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(&user))
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	user, err := s.opts.Users.UpdateProfile(r.Context(), id, req.Name, req.Email)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(&user))
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	notifications, err := s.opts.Notify.ListForUser(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	views := make([]notificationView, 0, len(notifications))
	for i := range notifications {
		views = append(views, toNotificationView(&notifications[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	prefs, err := s.opts.Prefs.List(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	views := make([]preferenceView, 0, len(prefs))
	for i := range prefs {
		views = append(views, toPreferenceView(&prefs[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

type updatePreferenceRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleUpdatePreference(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	var req updatePreferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Enabled == nil {
		s.respondError(w, r, apperr.ErrBadRequest.WithMessage("enabled is required"))
		return
	}
	pref, err := s.opts.Prefs.Update(r.Context(), id, key, *req.Enabled)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPreferenceView(pref))
}
