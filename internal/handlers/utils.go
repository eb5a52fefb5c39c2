package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/auth"
)

type ctxKey int

const userIDKey ctxKey = iota

// errorBody is the JSON shape of every rejection.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps typed rejections to their status and reason; anything else is a 500
// whose cause stays in the log.
func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperror.As(err); ok {
		writeJSON(w, apperror.HTTPStatus(err), errorBody{Error: e.Reason, Message: e.Error()})
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	s.Logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"})
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperror.Validation(apperror.ReasonInvalidRequest, "bad request payload: %v", err)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperror.Validation(apperror.ReasonInvalidRequest, "invalid %s", name)
	}
	return id, nil
}

// userFrom returns the authenticated user placed in the context by requireUser.
func userFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey).(uuid.UUID)
	return id
}

// requirePaymentProvider admits only tokens issued to the payment service.
func (s *APIServer) requirePaymentProvider(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.Auth.AuthenticateClaims(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: apperror.ReasonUnauthorized, Message: err.Error()})
			return
		}
		if claims.Role != auth.RolePayments {
			writeJSON(w, http.StatusForbidden, errorBody{Error: apperror.ReasonUnauthorized, Message: "only the payment service may grant purchases"})
			return
		}
		next(w, r)
	}
}

// requireUser rejects requests without a valid token.
func (s *APIServer) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.Auth.Authenticate(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: apperror.ReasonUnauthorized, Message: err.Error()})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// requireHost additionally checks that the user started the session in the {id} path segment.
func (s *APIServer) requireHost(next http.HandlerFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := pathUUID(r, "id")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ok, err := s.Sessions.IsHost(r.Context(), sessionID, userFrom(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusForbidden, errorBody{Error: apperror.ReasonUnauthorized, Message: "only the host may do this"})
			return
		}
		next(w, r)
	})
}
