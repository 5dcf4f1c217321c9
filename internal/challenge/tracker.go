package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/customer"
	"gamification_service/internal/ledger"
	"gamification_service/internal/storage"
)

// Tracker advances a customer's open challenges when they play.
type Tracker struct {
	tx         storage.Transactor
	challenges Repository
	joined     UserChallengeRepository
	customers  customer.Repository
	sessions   SessionCounter
	ledger     *ledger.Service
	retry      storage.RetryPolicy
	logger     *slog.Logger
	now        func() time.Time
}

type TrackerDeps struct {
	Tx         storage.Transactor
	Challenges Repository
	Joined     UserChallengeRepository
	Customers  customer.Repository
	Sessions   SessionCounter
	Ledger     *ledger.Service
	Retry      storage.RetryPolicy
	Logger     *slog.Logger
}

func NewTracker(d TrackerDeps) *Tracker {
	retry := d.Retry
	if retry.Attempts == 0 {
		retry = storage.DefaultRetryPolicy()
	}
	return &Tracker{
		tx:         d.Tx,
		challenges: d.Challenges,
		joined:     d.Joined,
		customers:  d.Customers,
		sessions:   d.Sessions,
		ledger:     d.Ledger,
		retry:      retry,
		logger:     d.Logger,
		now:        time.Now,
	}
}

// OnActivity applies a to every open challenge of the customer and returns
// the ones that moved. Completed challenges are never reloaded, so repeated
// activity cannot move them again.
func (t *Tracker) OnActivity(ctx context.Context, customerID, merchantID string, a Activity) ([]Delta, error) {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = t.now()
	}

	var deltas []Delta
	err := t.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		deltas = nil
		open, err := t.joined.FindActiveByCustomer(ctx, customerID)
		if err != nil {
			return err
		}

		for i := range open {
			uc := &open[i]
			ch := uc.Challenge
			if ch == nil || ch.MerchantID != merchantID || !ch.OpenAt(a.OccurredAt) {
				continue
			}

			inc, err := t.increment(ctx, customerID, ch, a)
			if err != nil {
				return err
			}
			if inc <= 0 {
				continue
			}

			d, err := t.advance(ctx, customerID, uc, ch, inc)
			if err != nil {
				return err
			}
			deltas = append(deltas, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deltas, nil
}

// OnSocialAction advances the customer's open social challenges by one.
// The customer row is locked before any challenge row, the same order session
// processing uses. Write conflicts are retried.
func (t *Tracker) OnSocialAction(ctx context.Context, customerID, merchantID string) ([]Delta, error) {
	var deltas []Delta
	err := storage.Retry(ctx, t.retry, func(ctx context.Context) error {
		return t.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			deltas = nil
			c, err := t.customers.GetForUpdate(ctx, customerID)
			if err != nil {
				return err
			}
			if c.MerchantID != merchantID {
				return customer.ErrCustomerNotFound
			}

			open, err := t.joined.FindActiveByCustomer(ctx, customerID)
			if err != nil {
				return err
			}
			now := t.now()
			for i := range open {
				uc := &open[i]
				ch := uc.Challenge
				if ch == nil || ch.ChallengeType != TypeSocial || ch.MerchantID != merchantID || !ch.OpenAt(now) {
					continue
				}
				d, err := t.advance(ctx, customerID, uc, ch, 1)
				if err != nil {
					return err
				}
				deltas = append(deltas, d)
			}
			return nil
		})
	})
	if err != nil {
		if storage.IsRetryable(err) {
			return nil, apperrors.Wrap(apperrors.CodeConsistencyConflict, "social action retries exhausted", err)
		}
		return nil, err
	}
	return deltas, nil
}

func (t *Tracker) increment(ctx context.Context, customerID string, ch *Challenge, a Activity) (int64, error) {
	switch ch.ChallengeType {
	case TypeGameMaster:
		req := ch.Requirements.Data()
		if req.MatchesGame(a.GameType) && a.Score >= req.MinScore {
			return 1, nil
		}
		return 0, nil
	case TypePointsCollector:
		return a.PointsEarned, nil
	case TypeDailyStreak:
		if !a.WasCompleted {
			return 0, nil
		}
		at := a.OccurredAt.UTC()
		dayStart := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		n, err := t.sessions.CountCompletedSessions(ctx, customerID, dayStart, dayStart.AddDate(0, 0, 1), a.SessionID)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 1, nil
		}
		return 0, nil
	default:
		// social progress comes from OnSocialAction
		return 0, nil
	}
}

func (t *Tracker) advance(ctx context.Context, customerID string, uc *UserChallenge, ch *Challenge, inc int64) (Delta, error) {
	old := uc.CurrentProgress
	progress := old + inc
	if progress > ch.TargetValue {
		progress = ch.TargetValue
	}
	uc.CurrentProgress = progress

	d := Delta{
		ChallengeID:     ch.ID,
		UserChallengeID: uc.ID,
		ChallengeType:   ch.ChallengeType,
		OldProgress:     old,
		NewProgress:     progress,
		TargetValue:     ch.TargetValue,
	}

	if progress >= ch.TargetValue {
		now := t.now()
		uc.IsCompleted = true
		uc.CompletedAt = &now
		if err := t.challenges.IncrementCompletion(ctx, ch.ID); err != nil {
			return Delta{}, err
		}
		if ch.RewardPoints > 0 {
			entry, err := t.ledger.Record(ctx, ledger.RecordRequest{
				CustomerID:      customerID,
				MerchantID:      ch.MerchantID,
				PointsChange:    ch.RewardPoints,
				TransactionType: ledger.TypeEarned,
				ReferenceID:     uc.ID,
				Description:     fmt.Sprintf("challenge reward: %s", ch.Name),
			})
			if err != nil {
				return Delta{}, fmt.Errorf("failed to award challenge reward: %w", err)
			}
			d.RewardPoints = ch.RewardPoints
			d.RewardEntryID = entry.ID
		}
		uc.RewardClaimed = true
		d.Completed = true
		t.logger.Info("challenge completed",
			"customer_id", customerID, "challenge_id", ch.ID, "reward_points", ch.RewardPoints)
	}

	if err := t.joined.Save(ctx, uc); err != nil {
		return Delta{}, err
	}
	return d, nil
}
