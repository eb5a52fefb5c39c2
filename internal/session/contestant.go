package session

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/models"
)

// JoinContestant registers a named contestant on a team. Names are unique per session.
func (s *Service) JoinContestant(ctx context.Context, sessionID uuid.UUID, name string, team models.Team) (*models.Contestant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation(apperror.ReasonNameRequired, "contestant name is required")
	}
	if !team.Valid() {
		return nil, apperror.Validation(apperror.ReasonInvalidTeam, "unknown team %q", team)
	}
	if _, err := s.loadLive(ctx, sessionID, ""); err != nil {
		return nil, err
	}
	c := &models.Contestant{
		ID:        uuid.New(),
		SessionID: sessionID,
		Name:      name,
		Team:      team,
		IsActive:  true,
		JoinedAt:  s.now(),
	}
	if err := s.store.AddContestant(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("contestant_joined", map[string]interface{}{
		"id":   c.ID.String(),
		"name": c.Name,
		"team": string(c.Team),
	}))
	s.record(ctx, sessionID, "contestant_joined", nil, map[string]interface{}{"name": c.Name, "team": string(c.Team)})
	return c, nil
}

// ListContestants returns every contestant of the session, inactive ones included.
func (s *Service) ListContestants(ctx context.Context, sessionID uuid.UUID) ([]models.Contestant, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListContestants(ctx, sessionID)
}

// DeactivateContestant removes a contestant from play without deleting it.
func (s *Service) DeactivateContestant(ctx context.Context, sessionID, contestantID uuid.UUID) error {
	ok, err := s.store.DeactivateContestant(ctx, sessionID, contestantID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound(apperror.ReasonContestantNotFound, "contestant %s not found", contestantID)
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("contestant_left", map[string]interface{}{"id": contestantID.String()}))
	return nil
}
