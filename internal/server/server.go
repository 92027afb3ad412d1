// Package server wires the HTTP surface: routing, middleware, handlers, and
// the error-code response mapping.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"teamsched/internal/auth"
	"teamsched/internal/notify"
	"teamsched/internal/schedule"
	"teamsched/internal/team"
	"teamsched/internal/token"
	"teamsched/internal/user"
)

// Options carries the dependencies of the HTTP layer.
type Options struct {
	Codec     *token.Codec
	Auth      *auth.Service
	Users     *user.Service
	Teams     *team.Service
	Schedules *schedule.Service
	Notify    *notify.Dispatcher
	Prefs     *notify.PreferenceService

	AllowedOrigins []string
	Log            zerolog.Logger
}

// Server is the HTTP handler set.
type Server struct {
	opts Options
}

// New constructs a Server.
func New(opts Options) *Server {
	return &Server{opts: opts}
}

// Routes builds the router: operational endpoints unauthenticated, schedule
// reads under optional auth, everything else behind a bearer token.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	allowed := s.opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(300, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/kakao", s.handleKakaoLogin)
			r.Post("/reissue", s.handleReissue)
			r.Post("/logout", s.handleLogout)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleGetProfile)
			r.Patch("/", s.handleUpdateProfile)
			r.Get("/notifications", s.handleListNotifications)
			r.Route("/notification-preferences", func(r chi.Router) {
				r.Get("/", s.handleListPreferences)
				r.Patch("/{key}", s.handleUpdatePreference)
			})
		})

		r.Route("/invitations/{token}", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/accept", s.handleAcceptInvitation)
			r.Post("/reject", s.handleRejectInvitation)
		})

		r.Route("/teams", func(r chi.Router) {
			r.With(s.requireAuth).Post("/", s.handleCreateTeam)
			r.With(s.requireAuth).Get("/", s.handleMyTeams)
			r.Route("/{teamID}", func(r chi.Router) {
				r.With(s.requireAuth).Get("/", s.handleGetTeam)
				r.With(s.requireAuth).Patch("/", s.handleUpdateTeam)
				r.With(s.requireAuth).Get("/members", s.handleTeamMembers)
				r.With(s.requireAuth).Post("/invitations", s.handleInvite)
				r.With(s.requireAuth).Post("/leave", s.handleLeaveTeam)
				r.With(s.requireAuth).Delete("/members/{userID}", s.handleRemoveMember)
				r.With(s.requireAuth).Patch("/members/{userID}/role", s.handleChangeRole)

				r.Route("/schedules", func(r chi.Router) {
					// Reads are public: non-members get a redacted
					// projection, so authentication is optional there.
					r.With(s.optionalAuth).Get("/", s.handleListSchedules)
					r.With(s.optionalAuth).Get("/{scheduleID}", s.handleGetSchedule)
					r.With(s.requireAuth).Post("/", s.handleCreateSchedule)
					r.With(s.requireAuth).Get("/archived", s.handleListArchived)
					r.With(s.requireAuth).Patch("/{scheduleID}", s.handleUpdateSchedule)
					r.With(s.requireAuth).Delete("/{scheduleID}", s.handleArchiveSchedule)
				})
			})
		})
	})

	return r
}
