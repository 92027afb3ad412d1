package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"teamsched/internal/apperr"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return apperr.ErrBadRequest.WithMessage("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperr.ErrBadRequest.WithMessage("malformed request body").Wrap(err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps any error to its HTTP status and a stable {code,
// message} body. Unknown errors surface as 500 and are logged with detail;
// the client only sees the generic message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	if appErr.Status >= http.StatusInternalServerError {
		s.opts.Log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	respondJSON(w, appErr.Status, map[string]string{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// pathID parses a numeric path parameter. A non-numeric value is a 404
// rather than a 400: the resource addressed by a bad id can never exist.
func pathID(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.ErrNotFound
	}
	return uint(id), nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.ErrBadRequest.WithMessage("invalid " + name + " parameter")
	}
	return v, nil
}

var errMissingUser = errors.New("authenticated route without user in context")

// mustUserID returns the user id placed by requireAuth. Reaching an
// authenticated handler without it is a programming error.
func (s *Server) mustUserID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := userID(r)
	if !ok {
		s.respondError(w, r, apperr.ErrInternal.Wrap(errMissingUser))
		return 0, false
	}
	return id, true
}
