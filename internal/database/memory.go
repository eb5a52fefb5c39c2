package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/models"
)

type questionKey struct {
	packageID uuid.UUID
	letter    string
	variant   models.Variant
}

type riddleKey struct {
	packageID uuid.UUID
	index     int
}

// Memory is an in-process store with the same constraints and conditional updates as
// Postgres. It backs STORE=memory and the service tests. Records are copied on the way
// in and out so callers never share state with the store.
type Memory struct {
	mu sync.Mutex

	packages    map[uuid.UUID]models.Package
	questions   map[questionKey]models.LetterQuestion
	riddles     map[riddleKey]models.Riddle
	purchases   map[uuid.UUID]models.UserPurchase
	sessions    map[uuid.UUID]models.GameSession
	links       map[string]uuid.UUID
	letters     map[uuid.UUID]models.LettersGameProgress
	images      map[uuid.UUID]models.ImagesGameProgress
	timers      map[uuid.UUID]models.TimeGameProgress
	contestants map[uuid.UUID][]models.Contestant
	events      []models.SessionEvent
}

func NewMemory() *Memory {
	return &Memory{
		packages:    make(map[uuid.UUID]models.Package),
		questions:   make(map[questionKey]models.LetterQuestion),
		riddles:     make(map[riddleKey]models.Riddle),
		purchases:   make(map[uuid.UUID]models.UserPurchase),
		sessions:    make(map[uuid.UUID]models.GameSession),
		links:       make(map[string]uuid.UUID),
		letters:     make(map[uuid.UUID]models.LettersGameProgress),
		images:      make(map[uuid.UUID]models.ImagesGameProgress),
		timers:      make(map[uuid.UUID]models.TimeGameProgress),
		contestants: make(map[uuid.UUID][]models.Contestant),
	}
}

func copyLetters(p models.LettersGameProgress) *models.LettersGameProgress {
	cells := make(map[string]models.Cell, len(p.CellStates))
	for k, v := range p.CellStates {
		cells[k] = v
	}
	p.CellStates = cells
	p.UsedLetters = append([]string{}, p.UsedLetters...)
	return &p
}

// catalog

func (m *Memory) GetPackage(_ context.Context, id uuid.UUID) (*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[id]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonPackageNotFound, "package %s not found", id)
	}
	return &p, nil
}

func (m *Memory) UpsertPackage(_ context.Context, p *models.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packages[p.ID] = *p
	return nil
}

func (m *Memory) GetLetterQuestion(_ context.Context, packageID uuid.UUID, letter string, variant models.Variant) (*models.LetterQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[questionKey{packageID, letter, variant}]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonQuestionNotFound, "no %s question for %q", variant, letter)
	}
	return &q, nil
}

func (m *Memory) UpsertLetterQuestion(_ context.Context, lq *models.LetterQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[questionKey{lq.PackageID, lq.Letter, lq.Variant}] = *lq
	return nil
}

func (m *Memory) GetRiddle(_ context.Context, packageID uuid.UUID, index int) (*models.Riddle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.riddles[riddleKey{packageID, index}]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonRiddleNotFound, "riddle %d not found", index)
	}
	return &r, nil
}

func (m *Memory) UpsertRiddle(_ context.Context, r *models.Riddle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riddles[riddleKey{r.PackageID, r.Index}] = *r
	return nil
}

// purchases

func (m *Memory) CreatePurchase(_ context.Context, p *models.UserPurchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate purchase id: %w", err)
		}
		p.ID = id
	}
	if !p.IsCompleted {
		for _, other := range m.purchases {
			if !other.IsCompleted && other.UserID == p.UserID && other.PackageID == p.PackageID {
				return apperror.Conflict(apperror.ReasonPurchaseOpen, "an open purchase for this package already exists")
			}
		}
	}
	m.purchases[p.ID] = *p
	return nil
}

func (m *Memory) GetPurchase(_ context.Context, id uuid.UUID) (*models.UserPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonPurchaseNotFound, "purchase %s not found", id)
	}
	return &p, nil
}

func (m *Memory) FindOpenPurchase(_ context.Context, userID, packageID uuid.UUID) (*models.UserPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if !p.IsCompleted && p.UserID == userID && p.PackageID == packageID {
			return &p, nil
		}
	}
	return nil, apperror.NotFound(apperror.ReasonPurchaseNotFound, "no open purchase")
}

func (m *Memory) SetPurchaseExpiry(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if ok && p.ExpiresAt == nil {
		p.ExpiresAt = &expiresAt
		m.purchases[id] = p
	}
	return nil
}

func (m *Memory) CompletePurchase(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return false, apperror.NotFound(apperror.ReasonPurchaseNotFound, "purchase %s not found", id)
	}
	if p.IsCompleted {
		return false, nil
	}
	p.IsCompleted = true
	p.CompletedAt = &at
	m.purchases[id] = p
	return true, nil
}

func (m *Memory) ListOverduePurchases(_ context.Context, now, purchasedBefore time.Time, limit int) ([]models.UserPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserPurchase
	for _, p := range m.purchases {
		if p.IsCompleted {
			continue
		}
		if (p.ExpiresAt != nil && !p.ExpiresAt.After(now)) || (p.ExpiresAt == nil && !p.PurchasedAt.After(purchasedBefore)) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.Before(out[j].PurchasedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sessions

func (m *Memory) CreateSession(_ context.Context, s *models.GameSession, progress models.SessionProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.links[s.DisplayLink]; taken {
		return apperror.Conflict(apperror.ReasonLinkCollision, "display link collision")
	}
	if _, taken := m.links[s.ContestantsLink]; taken || s.ContestantsLink == s.DisplayLink {
		return apperror.Conflict(apperror.ReasonLinkCollision, "contestants link collision")
	}
	if s.PurchaseID != nil {
		for _, other := range m.sessions {
			if other.PurchaseID != nil && *other.PurchaseID == *s.PurchaseID {
				return apperror.Conflict(apperror.ReasonPurchaseInUse, "purchase already linked to a session")
			}
		}
	}
	m.sessions[s.ID] = *s
	m.links[s.DisplayLink] = s.ID
	m.links[s.ContestantsLink] = s.ID
	switch {
	case progress.Letters != nil:
		m.letters[s.ID] = *copyLetters(*progress.Letters)
	case progress.Images != nil:
		m.images[s.ID] = *progress.Images
	case progress.Time != nil:
		m.timers[s.ID] = *progress.Time
	}
	return nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonSessionNotFound, "session %s not found", id)
	}
	return &s, nil
}

func (m *Memory) FindSessionByLink(_ context.Context, token string) (*models.GameSession, models.LinkRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.links[token]
	if !ok {
		return nil, "", apperror.NotFound(apperror.ReasonLinkNotFound, "unknown link")
	}
	s := m.sessions[id]
	if s.DisplayLink == token {
		return &s, models.RoleDisplay, nil
	}
	return &s, models.RoleContestant, nil
}

func (m *Memory) CompleteSession(_ context.Context, id uuid.UUID, winner *models.Winner, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, apperror.NotFound(apperror.ReasonSessionNotFound, "session %s not found", id)
	}
	if s.IsCompleted {
		return false, nil
	}
	s.IsActive = false
	s.IsCompleted = true
	if winner != nil {
		w := *winner
		s.Winner = &w
	}
	s.UpdatedAt = at
	m.sessions[id] = s
	return true, nil
}

func (m *Memory) DeactivateSession(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, apperror.NotFound(apperror.ReasonSessionNotFound, "session %s not found", id)
	}
	if !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	s.UpdatedAt = at
	m.sessions[id] = s
	return true, nil
}

func (m *Memory) AddScore(_ context.Context, id uuid.UUID, team models.Team, delta int, at time.Time) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonSessionNotFound, "session %s not found", id)
	}
	if !s.IsActive {
		return nil, apperror.Conflict(apperror.ReasonSessionInactive, "session %s is not active", id)
	}
	score := &s.Team1Score
	if team == models.Team2 {
		score = &s.Team2Score
	}
	*score += delta
	if *score < 0 {
		*score = 0
	}
	s.UpdatedAt = at
	m.sessions[id] = s
	return &s, nil
}

func (m *Memory) ListExpirableSessions(_ context.Context, c ExpiryCandidates) ([]models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GameSession
	for _, s := range m.sessions {
		if s.IsCompleted {
			continue
		}
		if s.PurchaseID == nil {
			if (s.GameType == models.GameLetters || s.GameType == models.GameImages) && !s.CreatedAt.After(c.FreeCreatedBefore) {
				out = append(out, s)
			}
			continue
		}
		p, ok := m.purchases[*s.PurchaseID]
		if !ok {
			continue
		}
		if (p.ExpiresAt != nil && !p.ExpiresAt.After(c.Now)) || (p.ExpiresAt == nil && !p.PurchasedAt.After(c.PurchasedBefore)) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out, nil
}

// progress

func (m *Memory) GetLettersProgress(_ context.Context, sessionID uuid.UUID) (*models.LettersGameProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.letters[sessionID]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonProgressNotFound, "no letters progress for %s", sessionID)
	}
	return copyLetters(p), nil
}

func (m *Memory) MarkLetterUsed(_ context.Context, sessionID uuid.UUID, letter string, variant models.Variant, at time.Time) (*models.LettersGameProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.letters[sessionID]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonProgressNotFound, "no letters progress for %s", sessionID)
	}
	p := copyLetters(stored)
	if p.IsUsed(letter) {
		return nil, apperror.Conflict(apperror.ReasonLetterAlreadyUsed, "letter %q already used", letter)
	}
	p.UsedLetters = append(p.UsedLetters, letter)
	p.CurrentLetter = letter
	p.CurrentVariant = variant
	p.CellStates[letter] = models.Cell{State: models.CellRevealed}
	p.UpdatedAt = at
	m.letters[sessionID] = *p
	return copyLetters(*p), nil
}

func (m *Memory) SetCell(_ context.Context, sessionID uuid.UUID, letter string, cell models.Cell, at time.Time) (*models.LettersGameProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.letters[sessionID]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonProgressNotFound, "no letters progress for %s", sessionID)
	}
	p := copyLetters(stored)
	p.CellStates[letter] = cell
	p.UpdatedAt = at
	m.letters[sessionID] = *p
	return copyLetters(*p), nil
}

func (m *Memory) GetImagesProgress(_ context.Context, sessionID uuid.UUID) (*models.ImagesGameProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.images[sessionID]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonProgressNotFound, "no images progress for %s", sessionID)
	}
	return &p, nil
}

func (m *Memory) SetImageIndex(_ context.Context, sessionID uuid.UUID, from, to int, at time.Time) (*models.ImagesGameProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.images[sessionID]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonProgressNotFound, "no images progress for %s", sessionID)
	}
	if p.CurrentIndex != from {
		return nil, apperror.Conflict(apperror.ReasonStaleWrite, "image index moved concurrently")
	}
	p.CurrentIndex = to
	p.UpdatedAt = at
	m.images[sessionID] = p
	return &p, nil
}

func (m *Memory) GetTimeProgress(_ context.Context, sessionID uuid.UUID) (*models.TimeGameProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.timers[sessionID]
	if !ok {
		return nil, apperror.NotFound(apperror.ReasonProgressNotFound, "no time progress for %s", sessionID)
	}
	return &p, nil
}

func (m *Memory) SaveTimeProgress(_ context.Context, p *models.TimeGameProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.timers[p.SessionID]
	if !ok {
		return apperror.NotFound(apperror.ReasonProgressNotFound, "no time progress for %s", p.SessionID)
	}
	if stored.Version != p.Version {
		return apperror.Conflict(apperror.ReasonStaleWrite, "time progress changed concurrently")
	}
	p.Version++
	m.timers[p.SessionID] = *p
	return nil
}

// contestants

func (m *Memory) AddContestant(_ context.Context, c *models.Contestant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate contestant id: %w", err)
		}
		c.ID = id
	}
	for _, other := range m.contestants[c.SessionID] {
		if other.Name == c.Name {
			return apperror.Conflict(apperror.ReasonContestantNameTaken, "name %q already taken", c.Name)
		}
	}
	m.contestants[c.SessionID] = append(m.contestants[c.SessionID], *c)
	return nil
}

func (m *Memory) ListContestants(_ context.Context, sessionID uuid.UUID) ([]models.Contestant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Contestant(nil), m.contestants[sessionID]...), nil
}

func (m *Memory) DeactivateContestant(_ context.Context, sessionID, contestantID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.contestants[sessionID]
	for i := range list {
		if list[i].ID == contestantID {
			list[i].IsActive = false
			return true, nil
		}
	}
	return false, nil
}

// events

func (m *Memory) InsertSessionEvents(_ context.Context, events []models.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

// SessionEvents returns a copy of every journal entry inserted so far.
func (m *Memory) SessionEvents() []models.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SessionEvent(nil), m.events...)
}
