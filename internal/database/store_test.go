package database

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/clock"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractStore is what both implementations must provide identically.
type contractStore interface {
	UpsertPackage(ctx context.Context, p *models.Package) error
	CreatePurchase(ctx context.Context, p *models.UserPurchase) error
	CompletePurchase(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListOverduePurchases(ctx context.Context, now, purchasedBefore time.Time, limit int) ([]models.UserPurchase, error)
	CreateSession(ctx context.Context, s *models.GameSession, progress models.SessionProgress) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	FindSessionByLink(ctx context.Context, token string) (*models.GameSession, models.LinkRole, error)
	CompleteSession(ctx context.Context, id uuid.UUID, winner *models.Winner, at time.Time) (bool, error)
	AddScore(ctx context.Context, id uuid.UUID, team models.Team, delta int, at time.Time) (*models.GameSession, error)
	ListExpirableSessions(ctx context.Context, c ExpiryCandidates) ([]models.GameSession, error)
	MarkLetterUsed(ctx context.Context, sessionID uuid.UUID, letter string, variant models.Variant, at time.Time) (*models.LettersGameProgress, error)
	SetCell(ctx context.Context, sessionID uuid.UUID, letter string, cell models.Cell, at time.Time) (*models.LettersGameProgress, error)
	GetTimeProgress(ctx context.Context, sessionID uuid.UUID) (*models.TimeGameProgress, error)
	SaveTimeProgress(ctx context.Context, p *models.TimeGameProgress) error
	SetImageIndex(ctx context.Context, sessionID uuid.UUID, from, to int, at time.Time) (*models.ImagesGameProgress, error)
	AddContestant(ctx context.Context, c *models.Contestant) error
	InsertSessionEvents(ctx context.Context, events []models.SessionEvent) error
}

var t0 = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

func TestMemoryStoreContract(t *testing.T) {
	runContract(t, NewMemory())
}

func TestPostgresStoreContract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := ConnectDB(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, Migrate(ctx, pool))
	runContract(t, NewPostgres(pool))
}

func seedPackage(t *testing.T, st contractStore, gt models.GameType) models.Package {
	t.Helper()
	p := models.Package{ID: uuid.New(), Name: "pkg", GameType: gt, IsActive: true, RiddleCount: 3, ImageCount: 3, CreatedAt: t0}
	require.NoError(t, st.UpsertPackage(context.Background(), &p))
	return p
}

func newSession(pkg models.Package) *models.GameSession {
	return &models.GameSession{
		ID:              uuid.New(),
		GameType:        pkg.GameType,
		HostID:          uuid.New(),
		PackageID:       pkg.ID,
		DisplayLink:     uuid.NewString(),
		ContestantsLink: uuid.NewString(),
		Team1Name:       "red",
		Team2Name:       "blue",
		IsActive:        true,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
}

func runContract(t *testing.T, st contractStore) {
	ctx := context.Background()

	t.Run("one open purchase per user and package", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameLetters)
		user := uuid.New()
		exp := t0.Add(72 * time.Hour)
		first := models.UserPurchase{UserID: user, PackageID: pkg.ID, PurchasedAt: t0, ExpiresAt: &exp}
		require.NoError(t, st.CreatePurchase(ctx, &first))

		second := models.UserPurchase{UserID: user, PackageID: pkg.ID, PurchasedAt: t0, ExpiresAt: &exp}
		err := st.CreatePurchase(ctx, &second)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, apperror.ReasonPurchaseOpen, apperror.ReasonOf(err))

		changed, err := st.CompletePurchase(ctx, first.ID, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, changed)
		changed, err = st.CompletePurchase(ctx, first.ID, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)

		third := models.UserPurchase{UserID: user, PackageID: pkg.ID, PurchasedAt: t0, ExpiresAt: &exp}
		assert.NoError(t, st.CreatePurchase(ctx, &third))
	})

	t.Run("overdue purchases", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameLetters)
		exp := t0.Add(72 * time.Hour)
		p := models.UserPurchase{UserID: uuid.New(), PackageID: pkg.ID, PurchasedAt: t0, ExpiresAt: &exp}
		require.NoError(t, st.CreatePurchase(ctx, &p))

		now := t0.Add(72*time.Hour + time.Second)
		list, err := st.ListOverduePurchases(ctx, now, now.Add(-72*time.Hour), 1000)
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(list))
		for _, x := range list {
			ids = append(ids, x.ID)
		}
		assert.Contains(t, ids, p.ID)
	})

	t.Run("links are unique and resolve to a role", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameLetters)
		s := newSession(pkg)
		require.NoError(t, st.CreateSession(ctx, s, models.SessionProgress{Letters: &models.LettersGameProgress{
			SessionID: s.ID, CellStates: map[string]models.Cell{}, UpdatedAt: t0,
		}}))

		dup := newSession(pkg)
		dup.DisplayLink = s.DisplayLink
		err := st.CreateSession(ctx, dup, models.SessionProgress{})
		assert.Equal(t, apperror.ReasonLinkCollision, apperror.ReasonOf(err))

		got, role, err := st.FindSessionByLink(ctx, s.ContestantsLink)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, models.RoleContestant, role)

		_, _, err = st.FindSessionByLink(ctx, "nope")
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("a purchase backs at most one session", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameLetters)
		exp := t0.Add(72 * time.Hour)
		p := models.UserPurchase{UserID: uuid.New(), PackageID: pkg.ID, PurchasedAt: t0, ExpiresAt: &exp}
		require.NoError(t, st.CreatePurchase(ctx, &p))

		a := newSession(pkg)
		a.PurchaseID = &p.ID
		require.NoError(t, st.CreateSession(ctx, a, models.SessionProgress{}))
		b := newSession(pkg)
		b.PurchaseID = &p.ID
		err := st.CreateSession(ctx, b, models.SessionProgress{})
		assert.Equal(t, apperror.ReasonPurchaseInUse, apperror.ReasonOf(err))
	})

	t.Run("used letter conditional update", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameLetters)
		s := newSession(pkg)
		require.NoError(t, st.CreateSession(ctx, s, models.SessionProgress{Letters: &models.LettersGameProgress{
			SessionID: s.ID, CellStates: map[string]models.Cell{}, UpdatedAt: t0,
		}}))

		var wg sync.WaitGroup
		results := make([]error, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = st.MarkLetterUsed(ctx, s.ID, "ب", models.VariantMain, t0)
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.Equal(t, apperror.ReasonLetterAlreadyUsed, apperror.ReasonOf(err))
		}
		assert.Equal(t, 1, wins)

		p, err := st.SetCell(ctx, s.ID, "ب", models.Cell{State: models.CellAnswered, Team: models.Team2}, t0)
		require.NoError(t, err)
		assert.Equal(t, []string{"ب"}, p.UsedLetters)
		assert.Equal(t, models.Cell{State: models.CellAnswered, Team: models.Team2}, p.CellStates["ب"])
	})

	t.Run("score clamps at zero and needs an active session", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameImages)
		s := newSession(pkg)
		require.NoError(t, st.CreateSession(ctx, s, models.SessionProgress{Images: &models.ImagesGameProgress{SessionID: s.ID, CurrentIndex: 1, UpdatedAt: t0}}))

		got, err := st.AddScore(ctx, s.ID, models.Team1, 3, t0)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Team1Score)
		got, err = st.AddScore(ctx, s.ID, models.Team1, -10, t0)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Team1Score)

		_, err = st.SetImageIndex(ctx, s.ID, 1, 2, t0)
		require.NoError(t, err)
		_, err = st.SetImageIndex(ctx, s.ID, 1, 2, t0)
		assert.Equal(t, apperror.ReasonStaleWrite, apperror.ReasonOf(err))

		w := models.WinnerDraw
		changed, err := st.CompleteSession(ctx, s.ID, &w, t0)
		require.NoError(t, err)
		assert.True(t, changed)
		changed, err = st.CompleteSession(ctx, s.ID, nil, t0)
		require.NoError(t, err)
		assert.False(t, changed)

		done, err := st.GetSession(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, done.Terminal())
		require.NotNil(t, done.Winner)
		assert.Equal(t, models.WinnerDraw, *done.Winner)

		_, err = st.AddScore(ctx, s.ID, models.Team2, 1, t0)
		assert.Equal(t, apperror.ReasonSessionInactive, apperror.ReasonOf(err))
	})

	t.Run("time progress version compare-and-set", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameTime)
		s := newSession(pkg)
		require.NoError(t, st.CreateSession(ctx, s, models.SessionProgress{Time: &models.TimeGameProgress{
			SessionID: s.ID, CurrentRiddleIndex: 1, Clock: clock.New(60), UpdatedAt: t0,
		}}))

		a, err := st.GetTimeProgress(ctx, s.ID)
		require.NoError(t, err)
		b, err := st.GetTimeProgress(ctx, s.ID)
		require.NoError(t, err)

		require.NoError(t, a.Clock.Start(clock.SideA, t0))
		require.NoError(t, st.SaveTimeProgress(ctx, a))
		assert.Equal(t, int64(1), a.Version)

		b.Clock.Stop(t0)
		err = st.SaveTimeProgress(ctx, b)
		assert.Equal(t, apperror.ReasonStaleWrite, apperror.ReasonOf(err))

		stored, err := st.GetTimeProgress(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, stored.Clock.IsRunning)
		assert.Equal(t, clock.SideA, stored.Clock.CurrentSide)
		require.NotNil(t, stored.Clock.LastStartedAt)
		assert.True(t, t0.Equal(*stored.Clock.LastStartedAt))
	})

	t.Run("expirable sessions", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameLetters)
		s := newSession(pkg)
		require.NoError(t, st.CreateSession(ctx, s, models.SessionProgress{}))

		now := t0.Add(61 * time.Minute)
		list, err := st.ListExpirableSessions(ctx, ExpiryCandidates{
			Now: now, FreeCreatedBefore: now.Add(-time.Hour), PurchasedBefore: now.Add(-72 * time.Hour), Limit: 1000,
		})
		require.NoError(t, err)
		found := false
		for _, x := range list {
			found = found || x.ID == s.ID
		}
		assert.True(t, found)
	})

	t.Run("contestant names unique per session", func(t *testing.T) {
		pkg := seedPackage(t, st, models.GameLetters)
		s := newSession(pkg)
		require.NoError(t, st.CreateSession(ctx, s, models.SessionProgress{}))

		require.NoError(t, st.AddContestant(ctx, &models.Contestant{SessionID: s.ID, Name: "Mona", Team: models.Team1, IsActive: true, JoinedAt: t0}))
		err := st.AddContestant(ctx, &models.Contestant{SessionID: s.ID, Name: "Mona", Team: models.Team2, IsActive: true, JoinedAt: t0})
		assert.Equal(t, apperror.ReasonContestantNameTaken, apperror.ReasonOf(err))
	})

	t.Run("session events batch", func(t *testing.T) {
		err := st.InsertSessionEvents(ctx, []models.SessionEvent{
			{SessionID: uuid.New(), EventType: "letter_selected", Payload: map[string]interface{}{"letter": "أ"}, Timestamp: t0.UnixMilli()},
			{SessionID: uuid.New(), EventType: "buzz", Payload: map[string]interface{}{}, Timestamp: t0.UnixMilli()},
		})
		assert.NoError(t, err)
	})
}
