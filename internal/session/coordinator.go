package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/ledger"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/notify"
	"gamification_service/internal/storage"
)

const UpdateSessionProcessed = "session_processed"

type Notifier interface {
	Notify(customerID string, u notify.Update)
}

type Deps struct {
	Tx        storage.Transactor
	Sessions  Repository
	Customers customer.Repository
	Ledger    *ledger.Service
	Tracker   *challenge.Tracker
	Ranker    *leaderboard.Ranker
	Notifier  Notifier
	Logger    *slog.Logger
	Retry     storage.RetryPolicy
}

// Coordinator applies a completed session to the ledger, the customer's
// aggregates, challenge progress and the leaderboards as one transaction.
type Coordinator struct {
	tx        storage.Transactor
	sessions  Repository
	customers customer.Repository
	ledger    *ledger.Service
	tracker   *challenge.Tracker
	ranker    *leaderboard.Ranker
	notifier  Notifier
	logger    *slog.Logger
	tracer    trace.Tracer
	retry     storage.RetryPolicy
	now       func() time.Time
}

func NewCoordinator(d Deps) *Coordinator {
	retry := d.Retry
	if retry.Attempts == 0 {
		retry = storage.DefaultRetryPolicy()
	}
	return &Coordinator{
		tx:        d.Tx,
		sessions:  d.Sessions,
		customers: d.Customers,
		ledger:    d.Ledger,
		tracker:   d.Tracker,
		ranker:    d.Ranker,
		notifier:  d.Notifier,
		logger:    d.Logger,
		tracer:    otel.Tracer("gamification_service/internal/session"),
		retry:     retry,
		now:       time.Now,
	}
}

// Validate rejects malformed events before anything is read or written.
func (e Completed) Validate() error {
	switch {
	case e.SessionID == "":
		return apperrors.Validation("session_id is required")
	case e.CustomerID == "":
		return apperrors.Validation("customer_id is required")
	case e.MerchantID == "":
		return apperrors.Validation("merchant_id is required")
	case e.GameType == "":
		return apperrors.Validation("game_type is required")
	case e.PointsEarned < 0:
		return apperrors.Validation("points_earned must not be negative")
	case e.SessionDuration < 0:
		return apperrors.Validation("session_duration must not be negative")
	case e.Score != nil && *e.Score < 0:
		return apperrors.Validation("score must not be negative")
	}
	return nil
}

// Process handles one completion event. A session that was already processed
// yields a Duplicate result and changes nothing. Write conflicts are retried;
// when retries run out the error has code CONSISTENCY_CONFLICT.
func (c *Coordinator) Process(ctx context.Context, ev Completed) (*Result, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = c.now()
	}

	ctx, span := c.tracer.Start(ctx, "session.Process", trace.WithAttributes(
		attribute.String("session.id", ev.SessionID),
		attribute.String("customer.id", ev.CustomerID),
		attribute.String("game.type", ev.GameType),
	))
	defer span.End()

	var res *Result
	err := storage.Retry(ctx, c.retry, func(ctx context.Context) error {
		r, err := c.process(ctx, ev)
		res = r
		if storage.IsRetryable(err) {
			c.logger.Warn("session write conflict, retrying", "session_id", ev.SessionID, "error", err)
		}
		return err
	})
	if err != nil {
		if storage.IsRetryable(err) {
			err = apperrors.Wrap(apperrors.CodeConsistencyConflict, "session processing retries exhausted", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("session.duplicate", res.Duplicate))

	if !res.Duplicate && c.notifier != nil {
		c.notifier.Notify(ev.CustomerID, notify.Update{Type: UpdateSessionProcessed, Payload: res})
	}
	return res, nil
}

func (c *Coordinator) process(ctx context.Context, ev Completed) (*Result, error) {
	var (
		m   *machine
		res *Result
	)
	err := c.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		m = newMachine()
		res = nil

		sess, err := c.sessions.GetForUpdate(ctx, ev.SessionID)
		if err != nil {
			return err
		}
		if sess.CustomerID != ev.CustomerID || sess.MerchantID != ev.MerchantID {
			return ErrSessionMismatch
		}
		if sess.ProcessedAt != nil {
			res, err = c.replay(ctx, sess)
			return err
		}
		if _, err := c.customers.GetForUpdate(ctx, ev.CustomerID); err != nil {
			return err
		}

		r := &Result{SessionID: ev.SessionID, Challenges: []challenge.Delta{}}

		if ev.PointsEarned > 0 {
			entry, err := c.ledger.Record(ctx, ledger.RecordRequest{
				CustomerID:      ev.CustomerID,
				MerchantID:      ev.MerchantID,
				PointsChange:    ev.PointsEarned,
				TransactionType: ledger.TypeEarned,
				ReferenceID:     ev.SessionID,
				Description:     fmt.Sprintf("game session: %s", ev.GameType),
			})
			if err != nil {
				return err
			}
			r.LedgerEntry = entry
		}
		if err := m.advance(StateLedgerApplied); err != nil {
			return err
		}

		cust, err := c.customers.GetForUpdate(ctx, ev.CustomerID)
		if err != nil {
			return err
		}
		cust.RecordPlay(ev.SessionDuration, ev.OccurredAt, c.now())
		if err := c.customers.Save(ctx, cust); err != nil {
			return err
		}
		if err := m.advance(StateStatsUpdated); err != nil {
			return err
		}

		var score int64
		if ev.Score != nil {
			score = *ev.Score
		}
		deltas, err := c.tracker.OnActivity(ctx, ev.CustomerID, ev.MerchantID, challenge.Activity{
			SessionID:    ev.SessionID,
			GameType:     ev.GameType,
			Score:        score,
			PointsEarned: ev.PointsEarned,
			WasCompleted: ev.WasCompleted,
			OccurredAt:   ev.OccurredAt,
		})
		if err != nil {
			return err
		}
		if deltas != nil {
			r.Challenges = deltas
		}
		if err := m.advance(StateChallengesEvaluated); err != nil {
			return err
		}

		if ev.WasCompleted && ev.Score != nil {
			entries, err := c.ranker.RecordAll(ctx, ev.CustomerID, ev.MerchantID, ev.GameType, *ev.Score)
			if err != nil {
				return err
			}
			r.Leaderboard = entries
		}
		if err := m.advance(StateLeaderboardUpdated); err != nil {
			return err
		}

		now := c.now()
		sess.Score = ev.Score
		sess.PointsEarned = ev.PointsEarned
		sess.WasCompleted = ev.WasCompleted
		sess.SessionDuration = ev.SessionDuration
		sess.PrizeWon = ev.PrizeWon
		if ev.DifficultyLevel != "" {
			sess.DifficultyLevel = ev.DifficultyLevel
		}
		sess.Status = StatusAbandoned
		if ev.WasCompleted {
			sess.Status = StatusCompleted
		}
		completedAt := ev.OccurredAt
		sess.CompletedAt = &completedAt
		sess.ProcessedAt = &now
		if err := c.sessions.Save(ctx, sess); err != nil {
			return err
		}

		// challenge rewards may have moved the balance after the stats step
		cust, err = c.customers.Get(ctx, ev.CustomerID)
		if err != nil {
			return err
		}
		if err := m.advance(StateDone); err != nil {
			return err
		}
		r.State = m.state
		r.Customer = cust.Summary()
		res = r
		return nil
	})
	if err != nil {
		failedAt := StateReceived
		if m != nil {
			failedAt = m.state
			_ = m.advance(StateFailed)
		}
		c.logger.Error("session processing failed",
			"session_id", ev.SessionID, "customer_id", ev.CustomerID, "state", failedAt, "error", err)
		return nil, err
	}

	if res.Duplicate {
		c.logger.Info("session already processed", "session_id", ev.SessionID, "customer_id", ev.CustomerID)
	} else {
		c.logger.Info("session processed",
			"session_id", ev.SessionID,
			"customer_id", ev.CustomerID,
			"points", ev.PointsEarned,
			"balance", res.Customer.TotalPoints,
			"segment", res.Customer.Segment,
			"challenges", len(res.Challenges))
	}
	return res, nil
}

func (c *Coordinator) replay(ctx context.Context, sess *GameSession) (*Result, error) {
	cust, err := c.customers.Get(ctx, sess.CustomerID)
	if err != nil {
		return nil, err
	}
	entry, err := c.ledger.FindByReference(ctx, sess.CustomerID, sess.ID, ledger.TypeEarned)
	if err != nil {
		return nil, err
	}
	return &Result{
		SessionID:   sess.ID,
		State:       StateDone,
		Duplicate:   true,
		Customer:    cust.Summary(),
		LedgerEntry: entry,
		Challenges:  []challenge.Delta{},
	}, nil
}
