package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"teamsched/internal/apperr"
)

type contextKey string

const userIDKey contextKey = "userID"

// userID returns the authenticated user id from the request context.
func userID(r *http.Request) (uint, bool) {
	id, ok := r.Context().Value(userIDKey).(uint)
	return id, ok
}

// optionalUserID returns a pointer to the authenticated user id, or nil for
// anonymous requests.
func optionalUserID(r *http.Request) *uint {
	if id, ok := userID(r); ok {
		return &id
	}
	return nil
}

// requireAuth validates the bearer token and stores the user id in the
// request context. Missing or bad credentials end the request.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			s.respondError(w, r, apperr.ErrUnauthorized.WithMessage("missing bearer token"))
			return
		}
		id, err := s.opts.Codec.Validate(tok)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

// optionalAuth resolves a bearer token when present but lets anonymous
// requests through. A bearer that fails validation is treated as
// unauthenticated: an expired access token on a public read gets the
// anonymous view, not an error.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.opts.Codec.Validate(tok)
		if err != nil {
			if errors.Is(err, apperr.ErrExpiredToken) {
				s.opts.Log.Debug().Err(err).Str("path", r.URL.Path).Msg("expired bearer on public endpoint")
			} else {
				s.opts.Log.Warn().Err(err).Str("path", r.URL.Path).Msg("invalid bearer on public endpoint")
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
