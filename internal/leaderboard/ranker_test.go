package leaderboard_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamification_service/internal/leaderboard"
	"gamification_service/internal/storage/memstore"
)

func newRanker() *leaderboard.Ranker {
	s := memstore.New()
	return leaderboard.NewRanker(s, s.Leaderboard(), slog.New(slog.DiscardHandler))
}

func TestRecordScoreKeepsBest(t *testing.T) {
	r := newRanker()
	ctx := context.Background()

	first, err := r.RecordScore(ctx, "c1", "m1", "quiz", 80, leaderboard.PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RankPosition)

	e, err := r.RecordScore(ctx, "c1", "m1", "quiz", 60, leaderboard.PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, first.ID, e.ID)
	assert.Equal(t, int64(80), e.BestScore)
	assert.Equal(t, 2, e.GamesPlayed)
	assert.Equal(t, int64(140), e.TotalPoints)

	e, err = r.RecordScore(ctx, "c1", "m1", "quiz", 95, leaderboard.PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(95), e.BestScore)
	assert.Equal(t, 1, e.RankPosition)
}

func TestRanksFollowArrival(t *testing.T) {
	r := newRanker()
	ctx := context.Background()

	for i, c := range []string{"c1", "c2", "c3"} {
		e, err := r.RecordScore(ctx, c, "m1", "quiz", int64(10*(i+1)), leaderboard.PeriodWeekly)
		require.NoError(t, err)
		assert.Equal(t, i+1, e.RankPosition)
	}

	// another group starts its own numbering
	e, err := r.RecordScore(ctx, "c3", "m1", "trivia", 10, leaderboard.PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, 1, e.RankPosition)
}

func TestRecordAllCoversEveryPeriod(t *testing.T) {
	r := newRanker()
	entries, err := r.RecordAll(context.Background(), "c1", "m1", "quiz", 42)
	require.NoError(t, err)
	require.Len(t, entries, len(leaderboard.Periods))
	for i, p := range leaderboard.Periods {
		assert.Equal(t, p, entries[i].PeriodType)
		assert.Equal(t, int64(42), entries[i].BestScore)
	}
}

func TestTopSortsByBestScore(t *testing.T) {
	r := newRanker()
	ctx := context.Background()
	scores := map[string]int64{"c1": 10, "c2": 50, "c3": 30}
	for _, c := range []string{"c1", "c2", "c3"} {
		_, err := r.RecordScore(ctx, c, "m1", "quiz", scores[c], leaderboard.PeriodMonthly)
		require.NoError(t, err)
	}

	top, err := r.Top(ctx, "m1", "quiz", leaderboard.PeriodMonthly, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "c2", top[0].CustomerID)
	assert.Equal(t, 1, top[0].RankPosition)
	assert.Equal(t, "c3", top[1].CustomerID)
	assert.Equal(t, 2, top[1].RankPosition)
}

func TestUnknownPeriod(t *testing.T) {
	r := newRanker()
	_, err := r.RecordScore(context.Background(), "c1", "m1", "quiz", 1, leaderboard.PeriodType("hourly"))
	assert.ErrorIs(t, err, leaderboard.ErrUnknownPeriod)

	_, err = r.Top(context.Background(), "m1", "quiz", leaderboard.PeriodType("hourly"), 0)
	assert.ErrorIs(t, err, leaderboard.ErrUnknownPeriod)
}
