package leaderboard

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/storage"
)

const defaultTopLimit = 10

// Ranker keeps per-period best scores. Rank positions are handed out in
// arrival order when a customer first enters a group and are not re-sorted
// afterwards; Top sorts by best score at read time.
type Ranker struct {
	tx     storage.Transactor
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewRanker(tx storage.Transactor, repo Repository, logger *slog.Logger) *Ranker {
	return &Ranker{tx: tx, repo: repo, logger: logger, now: time.Now}
}

func (r *Ranker) RecordScore(ctx context.Context, customerID, merchantID, gameType string, score int64, period PeriodType) (*Entry, error) {
	if !period.Valid() {
		return nil, ErrUnknownPeriod
	}
	if gameType == "" {
		return nil, apperrors.Validation("game_type is required")
	}

	now := r.now()
	start, end := Window(period, now)
	key := Key{
		Group: Group{
			MerchantID:  merchantID,
			GameType:    gameType,
			PeriodType:  period,
			PeriodStart: start,
		},
		CustomerID: customerID,
	}

	var entry *Entry
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.repo.LockGroup(ctx, key.Group); err != nil {
			return err
		}

		e, err := r.repo.Find(ctx, key)
		if err != nil {
			return err
		}
		if e != nil {
			if score > e.BestScore {
				e.BestScore = score
			}
			e.GamesPlayed++
			e.TotalPoints += score
			e.PeriodEnd = end
		} else {
			maxRank, err := r.repo.MaxRank(ctx, key.Group)
			if err != nil {
				return err
			}
			e = &Entry{
				MerchantID:   merchantID,
				CustomerID:   customerID,
				GameType:     gameType,
				PeriodType:   period,
				PeriodStart:  start,
				PeriodEnd:    end,
				RankPosition: maxRank + 1,
				BestScore:    score,
				GamesPlayed:  1,
				TotalPoints:  score,
			}
		}
		if err := r.repo.Save(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordAll records score in every period.
func (r *Ranker) RecordAll(ctx context.Context, customerID, merchantID, gameType string, score int64) ([]Entry, error) {
	out := make([]Entry, 0, len(Periods))
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		out = out[:0]
		for _, p := range Periods {
			e, err := r.RecordScore(ctx, customerID, merchantID, gameType, score, p)
			if err != nil {
				return err
			}
			out = append(out, *e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Top returns the current window's entries ordered by best score, with
// RankPosition rewritten to the display order.
func (r *Ranker) Top(ctx context.Context, merchantID, gameType string, period PeriodType, limit int) ([]Entry, error) {
	if !period.Valid() {
		return nil, ErrUnknownPeriod
	}
	if limit <= 0 {
		limit = defaultTopLimit
	}
	start, _ := Window(period, r.now())
	entries, err := r.repo.FindByGroup(ctx, Group{
		MerchantID:  merchantID,
		GameType:    gameType,
		PeriodType:  period,
		PeriodStart: start,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].BestScore != entries[j].BestScore {
			return entries[i].BestScore > entries[j].BestScore
		}
		return entries[i].RankPosition < entries[j].RankPosition
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].RankPosition = i + 1
	}
	return entries, nil
}
