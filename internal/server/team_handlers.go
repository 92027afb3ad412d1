package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"teamsched/internal/apperr"
	"teamsched/internal/models"
)

type teamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	var req teamRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	team, err := s.opts.Teams.CreateTeam(r.Context(), id, req.Name, req.Description)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTeamView(&team))
}

func (s *Server) handleMyTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teams, err := s.opts.Teams.MyTeams(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	views := make([]teamView, 0, len(teams))
	for i := range teams {
		views = append(views, toTeamView(&teams[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	team, err := s.opts.Teams.GetTeam(r.Context(), teamID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTeamView(&team))
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req teamRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	team, err := s.opts.Teams.UpdateTeam(r.Context(), id, teamID, req.Name, req.Description)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTeamView(&team))
}

func (s *Server) handleTeamMembers(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	members, err := s.opts.Teams.Members(r.Context(), teamID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	views := make([]memberView, 0, len(members))
	for i := range members {
		views = append(views, toMemberView(&members[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

type inviteRequest struct {
	KakaoID int64 `json:"kakao_id"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.KakaoID == 0 {
		s.respondError(w, r, apperr.ErrBadRequest.WithMessage("kakao_id is required"))
		return
	}
	invitation, err := s.opts.Teams.Invite(r.Context(), id, teamID, req.KakaoID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toInvitationView(&invitation))
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	if err := s.opts.Teams.AcceptInvitation(r.Context(), id, chi.URLParam(r, "token")); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRejectInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	if err := s.opts.Teams.RejectInvitation(r.Context(), id, chi.URLParam(r, "token")); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	targetID, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.opts.Teams.RemoveMember(r.Context(), id, teamID, targetID); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleLeaveTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.opts.Teams.LeaveTeam(r.Context(), id, teamID); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type changeRoleRequest struct {
	Role models.TeamRole `json:"role"`
}

func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mustUserID(w, r)
	if !ok {
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	targetID, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleMember {
		s.respondError(w, r, apperr.ErrBadRequest.WithMessage("role must be ADMIN or MEMBER"))
		return
	}
	if err := s.opts.Teams.ChangeRole(r.Context(), id, teamID, targetID, req.Role); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
