package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/clock"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/jason-s-yu/partygames/internal/session"
)

type createSessionRequest struct {
	PackageID  uuid.UUID  `json:"package_id"`
	PurchaseID *uuid.UUID `json:"purchase_id,omitempty"`
	Team1Name  string     `json:"team1_name"`
	Team2Name  string     `json:"team2_name"`
}

// CreateSessionHandler starts a session hosted by the caller.
func (s *APIServer) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.PackageID == uuid.Nil {
		s.writeError(w, r, apperror.Validation(apperror.ReasonInvalidRequest, "package_id is required"))
		return
	}
	sess, err := s.Sessions.CreateSession(r.Context(), session.CreateRequest{
		HostID:     userFrom(r.Context()),
		PackageID:  req.PackageID,
		PurchaseID: req.PurchaseID,
		Team1Name:  req.Team1Name,
		Team2Name:  req.Team2Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// SnapshotHandler returns the full session state for resync.
func (s *APIServer) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	snap, err := s.Sessions.Snapshot(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type selectLetterRequest struct {
	Letter  string         `json:"letter"`
	Variant models.Variant `json:"variant"`
}

func (s *APIServer) SelectLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	var req selectLetterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.Sessions.SelectLetter(r.Context(), id, req.Letter, req.Variant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type letterOrderRequest struct {
	Order []string `json:"order"`
}

// SetLetterOrderHandler forces the board order of a paid Letters session.
func (s *APIServer) SetLetterOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	var req letterOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	order, err := s.Sessions.SetLetterOrder(r.Context(), id, req.Order)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"order": order})
}

func (s *APIServer) RevealAnswerHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	q, err := s.Sessions.RevealAnswer(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type resolveCellRequest struct {
	Letter string      `json:"letter"`
	Team   models.Team `json:"team"`
}

func (s *APIServer) ResolveCellHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	var req resolveCellRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	progress, err := s.Sessions.ResolveCell(r.Context(), id, req.Letter, req.Team)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type scoreRequest struct {
	Team  models.Team `json:"team"`
	Delta int         `json:"delta"`
}

func (s *APIServer) UpdateScoreHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	var req scoreRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.Sessions.UpdateScore(r.Context(), id, req.Team, req.Delta)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type endRequest struct {
	Winner *models.Winner `json:"winner,omitempty"`
}

func (s *APIServer) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	var req endRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.Sessions.EndSession(r.Context(), id, req.Winner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *APIServer) DeactivateSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	sess, err := s.Sessions.DeactivateSession(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *APIServer) NextImageHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	progress, err := s.Sessions.NextImage(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type clockRequest struct {
	Side    clock.Side `json:"side"`
	Seconds *float64   `json:"seconds,omitempty"`
}

// ClockHandler drives the Time-Challenge clock: start, stop, switch or reset.
func (s *APIServer) ClockHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	var req clockRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		view *session.TimeView
		err  error
	)
	switch r.PathValue("action") {
	case "start":
		view, err = s.Sessions.StartClock(r.Context(), id, req.Side)
	case "stop":
		view, err = s.Sessions.StopClock(r.Context(), id)
	case "switch":
		view, err = s.Sessions.SwitchTurn(r.Context(), id)
	case "reset":
		seconds := s.Sessions.ClockSeconds()
		if req.Seconds != nil {
			seconds = *req.Seconds
		}
		side := req.Side
		if side == "" {
			side = clock.SideA
		}
		view, err = s.Sessions.ResetClock(r.Context(), id, seconds, side)
	default:
		err = apperror.NotFound(apperror.ReasonInvalidRequest, "unknown clock action %q", r.PathValue("action"))
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *APIServer) NextRiddleHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	view, err := s.Sessions.NextRiddle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *APIServer) CurrentRiddleHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	riddle, err := s.Sessions.CurrentRiddle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, riddle)
}

func (s *APIServer) ListContestantsHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	list, err := s.Sessions.ListContestants(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Contestant{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *APIServer) DeactivateContestantHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	contestantID, err := pathUUID(r, "contestant")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Sessions.DeactivateContestant(r.Context(), id, contestantID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
