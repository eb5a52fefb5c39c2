package session

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/clock"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/sirupsen/logrus"
)

// CreateRequest is what a host supplies to start a game.
type CreateRequest struct {
	HostID     uuid.UUID
	PackageID  uuid.UUID
	PurchaseID *uuid.UUID
	Team1Name  string
	Team2Name  string
}

// CreateSession validates the package and purchase, allocates both link tokens and
// stores the session together with the progress record its game type needs.
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (*models.GameSession, error) {
	pkg, err := s.getPackage(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, apperror.Validation(apperror.ReasonPackageInactive, "package %s is not active", pkg.ID)
	}

	if req.PurchaseID != nil {
		if err := s.checkPurchase(ctx, req, pkg); err != nil {
			return nil, err
		}
	} else if !pkg.IsFree {
		return nil, apperror.Validation(apperror.ReasonPurchaseRequired, "package %s requires a purchase", pkg.ID)
	}

	team1, team2 := strings.TrimSpace(req.Team1Name), strings.TrimSpace(req.Team2Name)
	if team1 == "" {
		team1 = "Team 1"
	}
	if team2 == "" {
		team2 = "Team 2"
	}

	var sess *models.GameSession
	for attempt := 0; attempt < linkAttempts; attempt++ {
		now := s.now()
		sess = &models.GameSession{
			ID:              uuid.New(),
			GameType:        pkg.GameType,
			HostID:          req.HostID,
			PackageID:       pkg.ID,
			PurchaseID:      req.PurchaseID,
			DisplayLink:     newLinkToken(),
			ContestantsLink: newLinkToken(),
			Team1Name:       team1,
			Team2Name:       team2,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err = s.store.CreateSession(ctx, sess, s.initialProgress(sess))
		if err == nil {
			break
		}
		if !errors.Is(err, apperror.Conflict(apperror.ReasonLinkCollision, "")) {
			return nil, err
		}
		s.logger.WithField("attempt", attempt+1).Warn("link token collision, regenerating")
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"game_type":  sess.GameType,
		"host_id":    sess.HostID,
	}).Info("session created")
	s.record(ctx, sess.ID, "session_created", &sess.HostID, map[string]interface{}{
		"game_type":  string(sess.GameType),
		"package_id": sess.PackageID.String(),
		"paid":       sess.PurchaseID != nil,
	})
	return sess, nil
}

// checkPurchase reconciles the purchase first so an elapsed window is rejected even
// before the sweep has seen it.
func (s *Service) checkPurchase(ctx context.Context, req CreateRequest, pkg *models.Package) error {
	p, err := s.store.GetPurchase(ctx, *req.PurchaseID)
	if err != nil {
		return err
	}
	if p.UserID != req.HostID {
		return apperror.Validation(apperror.ReasonPurchaseNotOwned, "purchase %s belongs to another user", p.ID)
	}
	wasCompleted := p.IsCompleted
	p, _, err = s.reconcilePurchase(ctx, p)
	if err != nil {
		return err
	}
	if p.IsCompleted {
		if wasCompleted {
			return apperror.Validation(apperror.ReasonPurchaseCompleted, "purchase %s is already completed", p.ID)
		}
		return apperror.Validation(apperror.ReasonPurchaseExpired, "purchase %s has expired", p.ID)
	}
	if p.PackageID != pkg.ID {
		return apperror.Validation(apperror.ReasonPackageMismatch, "purchase %s is for another package", p.ID)
	}
	return nil
}

func (s *Service) initialProgress(sess *models.GameSession) models.SessionProgress {
	switch sess.GameType {
	case models.GameLetters:
		return models.SessionProgress{Letters: &models.LettersGameProgress{
			SessionID:   sess.ID,
			CellStates:  map[string]models.Cell{},
			UsedLetters: []string{},
			UpdatedAt:   sess.CreatedAt,
		}}
	case models.GameImages:
		return models.SessionProgress{Images: &models.ImagesGameProgress{
			SessionID:    sess.ID,
			CurrentIndex: 1,
			UpdatedAt:    sess.CreatedAt,
		}}
	case models.GameTime:
		return models.SessionProgress{Time: &models.TimeGameProgress{
			SessionID:          sess.ID,
			CurrentRiddleIndex: 1,
			Clock:              clock.New(s.clockSeconds),
			UpdatedAt:          sess.CreatedAt,
		}}
	}
	return models.SessionProgress{}
}

// newLinkToken is 122 random bits rendered as 32 hex characters.
func newLinkToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// LinkInfo is what a link token resolves to.
type LinkInfo struct {
	SessionID uuid.UUID       `json:"session_id"`
	Role      models.LinkRole `json:"role"`
	GameType  models.GameType `json:"game_type"`
}

// ResolveLink maps a display or contestants token to its session.
func (s *Service) ResolveLink(ctx context.Context, token string) (*LinkInfo, error) {
	if token == "" {
		return nil, apperror.NotFound(apperror.ReasonLinkNotFound, "empty link")
	}
	sess, role, err := s.store.FindSessionByLink(ctx, token)
	if err != nil {
		return nil, err
	}
	return &LinkInfo{SessionID: sess.ID, Role: role, GameType: sess.GameType}, nil
}

// IsHost reports whether userID started the session.
func (s *Service) IsHost(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess.HostID == userID, nil
}
