package server

import (
	"net/http"

	"teamsched/internal/apperr"
	"teamsched/internal/auth"
	"teamsched/internal/metrics"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	user, err := s.opts.Auth.Register(r.Context(), req.Username, req.Password, req.Name, req.Email)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserView(&user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.opts.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	metrics.Logins.WithLabelValues("local").Inc()
	respondJSON(w, http.StatusOK, toTokenPairView(result, false))
}

type kakaoLoginRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleKakaoLogin(w http.ResponseWriter, r *http.Request) {
	var req kakaoLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Code == "" {
		s.respondError(w, r, apperr.ErrBadRequest.WithMessage("authorization code required"))
		return
	}
	result, err := s.opts.Auth.KakaoLogin(r.Context(), req.Code)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	metrics.Logins.WithLabelValues("kakao").Inc()
	respondJSON(w, http.StatusOK, toTokenPairView(result, true))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleReissue(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		s.respondError(w, r, apperr.ErrBadRequest.WithMessage("refresh token required"))
		return
	}
	result, err := s.opts.Auth.Reissue(r.Context(), req.RefreshToken)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTokenPairView(result, false))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.opts.Auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// toTokenPairView renders a login result. is_new_user only appears on the
// OAuth path, where the distinction drives client onboarding.
func toTokenPairView(result auth.LoginResult, withNewUser bool) tokenPairView {
	v := tokenPairView{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         toUserView(&result.User),
	}
	if withNewUser {
		isNew := result.IsNewUser
		v.IsNewUser = &isNew
	}
	return v
}
