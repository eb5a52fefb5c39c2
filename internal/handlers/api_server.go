// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/partygames/internal/auth"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/middleware"
	"github.com/jason-s-yu/partygames/internal/session"
	"github.com/sirupsen/logrus"
)

// APIServer exposes the session service over HTTP and websockets.
// Host actions require a JWT; display and contestant clients are identified by their link.
type APIServer struct {
	Sessions *session.Service
	Hub      *hub.Hub
	Auth     *auth.Signer
	Logger   logrus.FieldLogger

	// OriginPatterns is handed to websocket.Accept; empty means same-origin only.
	OriginPatterns []string
}

func NewAPIServer(svc *session.Service, h *hub.Hub, signer *auth.Signer, logger logrus.FieldLogger, origins []string) *APIServer {
	return &APIServer{
		Sessions:       svc,
		Hub:            h,
		Auth:           signer,
		Logger:         logger,
		OriginPatterns: origins,
	}
}

// Routes builds the request multiplexer.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	// host endpoints
	mux.HandleFunc("POST /api/sessions", s.requireUser(s.CreateSessionHandler))
	mux.HandleFunc("GET /api/sessions/{id}", s.requireHost(s.SnapshotHandler))
	mux.HandleFunc("POST /api/sessions/{id}/letters", s.requireHost(s.SelectLetterHandler))
	mux.HandleFunc("PUT /api/sessions/{id}/letter-order", s.requireHost(s.SetLetterOrderHandler))
	mux.HandleFunc("POST /api/sessions/{id}/answer", s.requireHost(s.RevealAnswerHandler))
	mux.HandleFunc("POST /api/sessions/{id}/cells", s.requireHost(s.ResolveCellHandler))
	mux.HandleFunc("POST /api/sessions/{id}/score", s.requireHost(s.UpdateScoreHandler))
	mux.HandleFunc("POST /api/sessions/{id}/end", s.requireHost(s.EndSessionHandler))
	mux.HandleFunc("POST /api/sessions/{id}/deactivate", s.requireHost(s.DeactivateSessionHandler))
	mux.HandleFunc("POST /api/sessions/{id}/images/next", s.requireHost(s.NextImageHandler))
	mux.HandleFunc("POST /api/sessions/{id}/clock/{action}", s.requireHost(s.ClockHandler))
	mux.HandleFunc("POST /api/sessions/{id}/riddles/next", s.requireHost(s.NextRiddleHandler))
	mux.HandleFunc("GET /api/sessions/{id}/riddle", s.requireHost(s.CurrentRiddleHandler))
	mux.HandleFunc("GET /api/sessions/{id}/contestants", s.requireHost(s.ListContestantsHandler))
	mux.HandleFunc("DELETE /api/sessions/{id}/contestants/{contestant}", s.requireHost(s.DeactivateContestantHandler))

	// purchases
	mux.HandleFunc("POST /api/purchases", s.requirePaymentProvider(s.GrantPurchaseHandler))
	mux.HandleFunc("GET /api/purchases/{id}", s.requireUser(s.GetPurchaseHandler))
	mux.HandleFunc("POST /api/purchases/{id}/complete", s.requireUser(s.CompletePurchaseHandler))

	// link holders
	mux.HandleFunc("GET /api/links/{token}", s.ResolveLinkHandler)
	mux.HandleFunc("POST /api/links/{token}/contestants", s.JoinContestantHandler)
	mux.HandleFunc("POST /api/links/{token}/buzz", s.BuzzHandler)

	mux.HandleFunc("GET /ws/{token}", s.SessionWSHandler)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return middleware.LogMiddleware(s.Logger)(mux)
}
