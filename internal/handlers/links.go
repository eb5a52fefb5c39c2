package handlers

import (
	"net/http"

	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/jason-s-yu/partygames/internal/session"
)

// resolveRole resolves the {token} path segment and requires it to grant role.
func (s *APIServer) resolveRole(r *http.Request, role models.LinkRole) (*session.LinkInfo, error) {
	info, err := s.Sessions.ResolveLink(r.Context(), r.PathValue("token"))
	if err != nil {
		return nil, err
	}
	if role != "" && info.Role != role {
		return nil, apperror.NotFound(apperror.ReasonLinkNotFound, "link does not grant %s access", role)
	}
	return info, nil
}

func (s *APIServer) ResolveLinkHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.resolveRole(r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type joinRequest struct {
	Name string      `json:"name"`
	Team models.Team `json:"team"`
}

// JoinContestantHandler registers a contestant through the contestants link.
func (s *APIServer) JoinContestantHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.resolveRole(r, models.RoleContestant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Sessions.JoinContestant(r.Context(), info.SessionID, req.Name, req.Team)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type buzzRequest struct {
	Name string `json:"name"`
}

// BuzzHandler is the HTTP fallback for clients without a socket.
func (s *APIServer) BuzzHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.resolveRole(r, models.RoleContestant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req buzzRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Sessions.Buzz(r.Context(), info.SessionID, req.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
