package session_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/ledger"
	"gamification_service/internal/notify"
	"gamification_service/internal/session"
	"gamification_service/internal/storage"
	"gamification_service/internal/storage/memstore"
)

type fixture struct {
	store      *memstore.Store
	hub        *notify.Hub
	ledger     *ledger.Service
	challenges *challenge.Service
	sessions   *session.Service
	coord      *session.Coordinator
	cust       *customer.Customer
}

// failingBoard makes every leaderboard write fail with err.
type failingBoard struct {
	leaderboard.Repository
	err error
}

func (f failingBoard) Save(ctx context.Context, e *leaderboard.Entry) error {
	return f.err
}

func setup(t *testing.T, boardErr error) *fixture {
	t.Helper()
	s := memstore.New()
	logger := slog.New(slog.DiscardHandler)

	var board leaderboard.Repository = s.Leaderboard()
	if boardErr != nil {
		board = failingBoard{Repository: board, err: boardErr}
	}

	hub := notify.NewHub()
	retry := storage.RetryPolicy{Attempts: 2, Delay: time.Millisecond}
	ledgerSvc := ledger.NewService(s, s.Ledger(), s.Customers(), retry, logger)
	tracker := challenge.NewTracker(challenge.TrackerDeps{
		Tx:         s,
		Challenges: s.Challenges(),
		Joined:     s.UserChallenges(),
		Customers:  s.Customers(),
		Sessions:   s.Sessions(),
		Ledger:     ledgerSvc,
		Retry:      retry,
		Logger:     logger,
	})
	f := &fixture{
		store:      s,
		hub:        hub,
		ledger:     ledgerSvc,
		challenges: challenge.NewService(s, s.Challenges(), s.UserChallenges(), s.Customers(), logger),
		sessions:   session.NewService(s.Sessions(), s.Customers(), logger),
		coord: session.NewCoordinator(session.Deps{
			Tx:        s,
			Sessions:  s.Sessions(),
			Customers: s.Customers(),
			Ledger:    ledgerSvc,
			Tracker:   tracker,
			Ranker:    leaderboard.NewRanker(s, board, logger),
			Notifier:  hub,
			Logger:    logger,
			Retry:     retry,
		}),
		cust: &customer.Customer{MerchantID: "merchant-1", Segment: customer.SegmentNew},
	}
	require.NoError(t, s.Customers().Create(context.Background(), f.cust))
	return f
}

func (f *fixture) start(t *testing.T) *session.GameSession {
	t.Helper()
	sess, err := f.sessions.Start(context.Background(), session.StartRequest{
		CustomerID: f.cust.ID,
		MerchantID: f.cust.MerchantID,
		GameType:   "spin_wheel",
	})
	require.NoError(t, err)
	return sess
}

func (f *fixture) event(sess *session.GameSession, points int64, score int64) session.Completed {
	return session.Completed{
		SessionID:       sess.ID,
		CustomerID:      f.cust.ID,
		MerchantID:      f.cust.MerchantID,
		GameType:        sess.GameType,
		Score:           &score,
		PointsEarned:    points,
		WasCompleted:    true,
		SessionDuration: 120,
	}
}

func (f *fixture) customer(t *testing.T) *customer.Customer {
	t.Helper()
	c, err := f.store.Customers().Get(context.Background(), f.cust.ID)
	require.NoError(t, err)
	return c
}

func (f *fixture) credit(t *testing.T, points int64) {
	t.Helper()
	_, err := f.ledger.Record(context.Background(), ledger.RecordRequest{
		CustomerID:      f.cust.ID,
		MerchantID:      f.cust.MerchantID,
		PointsChange:    points,
		TransactionType: ledger.TypeBonus,
		ReferenceID:     "welcome",
	})
	require.NoError(t, err)
}

func TestProcessAppliesEveryStep(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	ch, err := f.challenges.Create(ctx, challenge.CreateRequest{
		MerchantID:    f.cust.MerchantID,
		Name:          "collect 500",
		ChallengeType: challenge.TypePointsCollector,
		TargetValue:   500,
		RewardPoints:  100,
		StartDate:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	uc, err := f.challenges.Join(ctx, f.cust.ID, ch.ID)
	require.NoError(t, err)
	uc.CurrentProgress = 480
	require.NoError(t, f.store.UserChallenges().Save(ctx, uc))

	sess := f.start(t)
	res, err := f.coord.Process(ctx, f.event(sess, 30, 75))
	require.NoError(t, err)

	assert.Equal(t, session.StateDone, res.State)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.LedgerEntry)
	assert.Equal(t, int64(30), res.LedgerEntry.PointsChange)
	assert.Equal(t, sess.ID, res.LedgerEntry.ReferenceID)

	require.Len(t, res.Challenges, 1)
	assert.Equal(t, int64(500), res.Challenges[0].NewProgress)
	assert.True(t, res.Challenges[0].Completed)

	assert.Len(t, res.Leaderboard, len(leaderboard.Periods))

	assert.Equal(t, int64(130), res.Customer.TotalPoints)
	assert.Equal(t, 1, res.Customer.GamesPlayed)
	assert.NotNil(t, res.Customer.LastPlayDate)
	assert.Equal(t, "120", res.Customer.AverageSessionDuration.String())

	stored, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, int64(30), stored.PointsEarned)

	assert.NoError(t, f.ledger.Verify(ctx, f.cust.ID))
}

func TestRedeliveryDoesNotDoubleCredit(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.credit(t, 100)
	sess := f.start(t)
	ev := f.event(sess, 50, 10)

	first, err := f.coord.Process(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, int64(150), first.Customer.TotalPoints)

	again, err := f.coord.Process(ctx, ev)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, int64(150), again.Customer.TotalPoints)
	require.NotNil(t, again.LedgerEntry)
	assert.Equal(t, first.LedgerEntry.ID, again.LedgerEntry.ID)

	c := f.customer(t)
	assert.Equal(t, int64(150), c.TotalPoints)
	assert.Equal(t, 1, c.GamesPlayed)
}

func TestConcurrentRedeliveriesApplyOnce(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	sess := f.start(t)
	ev := f.event(sess, 25, 10)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		duplicates int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.coord.Process(ctx, ev)
			if !assert.NoError(t, err) {
				return
			}
			if res.Duplicate {
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 7, duplicates)
	c := f.customer(t)
	assert.Equal(t, int64(25), c.TotalPoints)
	assert.Equal(t, 1, c.GamesPlayed)
}

func TestZeroPointsSkipsLedger(t *testing.T) {
	f := setup(t, nil)
	sess := f.start(t)

	res, err := f.coord.Process(context.Background(), f.event(sess, 0, 10))
	require.NoError(t, err)
	assert.Nil(t, res.LedgerEntry)
	assert.Equal(t, 1, res.Customer.GamesPlayed)

	entries, err := f.ledger.History(context.Background(), f.cust.ID, ledger.Query{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAbandonedSessionSkipsLeaderboard(t *testing.T) {
	f := setup(t, nil)
	sess := f.start(t)
	ev := f.event(sess, 5, 10)
	ev.WasCompleted = false

	res, err := f.coord.Process(context.Background(), ev)
	require.NoError(t, err)
	assert.Empty(t, res.Leaderboard)

	stored, err := f.sessions.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAbandoned, stored.Status)
}

func TestFailedStepRollsEverythingBack(t *testing.T) {
	f := setup(t, errors.New("disk full"))
	ctx := context.Background()
	f.credit(t, 100)
	sess := f.start(t)

	_, err := f.coord.Process(ctx, f.event(sess, 50, 10))
	require.Error(t, err)

	c := f.customer(t)
	assert.Equal(t, int64(100), c.TotalPoints)
	assert.Equal(t, 0, c.GamesPlayed)
	assert.Nil(t, c.LastPlayDate)

	stored, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ProcessedAt)
	assert.Equal(t, session.StatusInProgress, stored.Status)

	entries, err := f.ledger.History(ctx, f.cust.ID, ledger.Query{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPersistentConflictIsReported(t *testing.T) {
	f := setup(t, storage.ErrOptimisticLock)
	sess := f.start(t)

	_, err := f.coord.Process(context.Background(), f.event(sess, 10, 10))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConsistencyConflict, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, storage.ErrOptimisticLock)
	assert.Equal(t, int64(0), f.customer(t).TotalPoints)
}

func TestEventMustMatchSession(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	sess := f.start(t)

	ev := f.event(sess, 10, 10)
	ev.MerchantID = "merchant-2"
	_, err := f.coord.Process(ctx, ev)
	assert.ErrorIs(t, err, session.ErrSessionMismatch)

	ev = f.event(sess, 10, 10)
	ev.SessionID = "missing"
	_, err = f.coord.Process(ctx, ev)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestInvalidEvents(t *testing.T) {
	f := setup(t, nil)
	sess := f.start(t)

	negative := f.event(sess, -1, 10)
	_, err := f.coord.Process(context.Background(), negative)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	noGame := f.event(sess, 1, 10)
	noGame.GameType = ""
	_, err = f.coord.Process(context.Background(), noGame)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestProcessNotifiesOnce(t *testing.T) {
	f := setup(t, nil)
	updates, cancel := f.hub.Subscribe(f.cust.ID)
	defer cancel()
	sess := f.start(t)
	ev := f.event(sess, 10, 10)

	_, err := f.coord.Process(context.Background(), ev)
	require.NoError(t, err)
	_, err = f.coord.Process(context.Background(), ev)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	u := <-updates
	assert.Equal(t, session.UpdateSessionProcessed, u.Type)
	res, ok := u.Payload.(*session.Result)
	require.True(t, ok)
	assert.Equal(t, sess.ID, res.SessionID)
}

func TestStreakAdvancesOncePerDay(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	ch, err := f.challenges.Create(ctx, challenge.CreateRequest{
		MerchantID:    f.cust.MerchantID,
		Name:          "week streak",
		ChallengeType: challenge.TypeDailyStreak,
		TargetValue:   7,
		StartDate:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = f.challenges.Join(ctx, f.cust.ID, ch.ID)
	require.NoError(t, err)

	abandoned := f.event(f.start(t), 5, 10)
	abandoned.WasCompleted = false
	res, err := f.coord.Process(ctx, abandoned)
	require.NoError(t, err)
	assert.Empty(t, res.Challenges)

	res, err = f.coord.Process(ctx, f.event(f.start(t), 5, 10))
	require.NoError(t, err)
	require.Len(t, res.Challenges, 1)
	assert.Equal(t, int64(1), res.Challenges[0].NewProgress)

	res, err = f.coord.Process(ctx, f.event(f.start(t), 5, 10))
	require.NoError(t, err)
	assert.Empty(t, res.Challenges)

	rows, err := f.challenges.Progress(ctx, f.cust.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].CurrentProgress)
}

func TestConcurrentSessionsBothCredit(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	events := []session.Completed{
		f.event(f.start(t), 10, 10),
		f.event(f.start(t), 10, 20),
	}

	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev session.Completed) {
			defer wg.Done()
			res, err := f.coord.Process(ctx, ev)
			if assert.NoError(t, err) {
				assert.False(t, res.Duplicate)
			}
		}(ev)
	}
	wg.Wait()

	c := f.customer(t)
	assert.Equal(t, int64(20), c.TotalPoints)
	assert.Equal(t, 2, c.GamesPlayed)
	assert.NoError(t, f.ledger.Verify(ctx, f.cust.ID))
}
