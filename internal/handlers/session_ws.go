package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/middleware"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/jason-s-yu/partygames/internal/session"
	"github.com/sirupsen/logrus"
)

const (
	subprotocol  = "session"
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// inboundMessage is what a socket may send.
type inboundMessage struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type snapshotMessage struct {
	Type    string            `json:"type"`
	Role    models.LinkRole   `json:"role"`
	Payload *session.Snapshot `json:"payload"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SessionWSHandler joins a display or contestant socket to its session group. The socket
// first receives a snapshot, then every event published to the session.
func (s *APIServer) SessionWSHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.resolveRole(r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{subprotocol},
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket accept error")
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != subprotocol {
		c.Close(BadSubprotocolError, "client must speak the session subprotocol")
		return
	}

	logger := s.Logger.WithFields(logrus.Fields{
		"session_id": info.SessionID,
		"role":       info.Role,
	})
	middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

	client := hub.NewClient(info.Role, strings.TrimSpace(r.URL.Query().Get("name")), hub.DefaultBuffer, logger)
	s.Hub.Join(info.SessionID, client)
	defer func() {
		s.Hub.Leave(info.SessionID, client)
		client.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// joined before the snapshot is read, so nothing published in between is lost
	snap, err := s.Sessions.Snapshot(ctx, info.SessionID)
	if err != nil {
		logger.WithError(err).Warn("snapshot for new socket failed")
		c.Close(InvalidLinkError, "session unavailable")
		return
	}
	if info.Role == models.RoleContestant {
		snap.Session.DisplayLink = ""
	}
	if err := writeWithTimeout(ctx, c, snapshotMessage{Type: "snapshot", Role: info.Role, Payload: snap}); err != nil {
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		return
	}

	go s.writePump(ctx, c, client, logger)
	err = s.readPump(ctx, c, info, client, logger)
	middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
}

// readPump handles messages from one socket until it closes.
func (s *APIServer) readPump(ctx context.Context, c *websocket.Conn, info *session.LinkInfo, client *hub.Client, logger logrus.FieldLogger) error {
	for {
		var msg inboundMessage
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		switch msg.Type {
		case "ping":
			_ = writeWithTimeout(ctx, c, map[string]string{"type": "pong"})
		case "buzz":
			if info.Role != models.RoleContestant {
				s.sendError(ctx, c, apperror.Validation(apperror.ReasonUnauthorized, "only contestants can buzz"))
				continue
			}
			name := msg.Name
			if name == "" {
				name = client.Name
			}
			if err := s.Sessions.Buzz(ctx, info.SessionID, name); err != nil {
				s.sendError(ctx, c, err)
			}
		case "snapshot":
			snap, err := s.Sessions.Snapshot(ctx, info.SessionID)
			if err != nil {
				s.sendError(ctx, c, err)
				continue
			}
			if info.Role == models.RoleContestant {
				snap.Session.DisplayLink = ""
			}
			_ = writeWithTimeout(ctx, c, snapshotMessage{Type: "snapshot", Role: info.Role, Payload: snap})
		default:
			logger.WithField("type", msg.Type).Debug("unknown socket message")
			s.sendError(ctx, c, apperror.Validation(apperror.ReasonInvalidRequest, "unknown message type %q", msg.Type))
		}
	}
}

// writePump forwards hub events to the socket and keeps it alive with pings.
func (s *APIServer) writePump(ctx context.Context, c *websocket.Conn, client *hub.Client, logger logrus.FieldLogger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithError(err).Debug("ping failed")
				c.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		case ev := <-client.OutChan:
			if err := writeWithTimeout(ctx, c, ev); err != nil {
				// the socket is gone; its read side will notice
				logger.WithError(err).WithField("type", ev.Type).Debug("dropped event for closed socket")
				return
			}
			if ev.Type == hub.GenericUpdate && isTerminalKind(ev.Payload["kind"]) {
				c.Close(SessionEndedError, "session ended")
				return
			}
		}
	}
}

func isTerminalKind(kind interface{}) bool {
	return kind == "session_expired" || kind == "session_ended"
}

func (s *APIServer) sendError(ctx context.Context, c *websocket.Conn, err error) {
	msg := errorMessage{Type: "error", Error: "internal", Message: "internal server error"}
	if e, ok := apperror.As(err); ok {
		msg.Error = e.Reason
		msg.Message = e.Error()
	} else {
		s.Logger.WithError(err).Error("socket request failed")
	}
	_ = writeWithTimeout(ctx, c, msg)
}

func writeWithTimeout(ctx context.Context, c *websocket.Conn, v interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, c, v)
}
