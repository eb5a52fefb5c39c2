package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/models"
)

type grantPurchaseRequest struct {
	UserID    uuid.UUID `json:"user_id"`
	PackageID uuid.UUID `json:"package_id"`
}

// GrantPurchaseHandler records a paid package for the user named in the body. Only the
// payment service calls it, once the provider confirmed the charge.
func (s *APIServer) GrantPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req grantPurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.UserID == uuid.Nil || req.PackageID == uuid.Nil {
		s.writeError(w, r, apperror.Validation(apperror.ReasonInvalidRequest, "user_id and package_id are required"))
		return
	}
	p, err := s.Sessions.GrantPurchase(r.Context(), req.UserID, req.PackageID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ownPurchase loads a purchase and hides purchases of other users behind a 404.
func (s *APIServer) ownPurchase(r *http.Request) (*models.UserPurchase, error) {
	id, err := pathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	p, err := s.Sessions.GetPurchase(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userFrom(r.Context()) {
		return nil, apperror.NotFound(apperror.ReasonPurchaseNotFound, "purchase %s not found", id)
	}
	return p, nil
}

func (s *APIServer) GetPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.ownPurchase(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *APIServer) CompletePurchaseHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.ownPurchase(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err = s.Sessions.CompletePurchase(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
