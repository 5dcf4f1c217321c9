// Package app assembles the services on top of a storage backend.
package app

import (
	"log/slog"

	"gamification_service/internal/api"
	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/ledger"
	"gamification_service/internal/notify"
	"gamification_service/internal/session"
	"gamification_service/internal/storage"
)

// Backend is satisfied by both pgstore.Store and memstore.Store.
type Backend interface {
	storage.Transactor
	Customers() customer.Repository
	Ledger() ledger.Repository
	Challenges() challenge.Repository
	UserChallenges() challenge.UserChallengeRepository
	Leaderboard() leaderboard.Repository
	Sessions() session.Repository
}

func Build(b Backend, retry storage.RetryPolicy, logger *slog.Logger) api.Services {
	customers := b.Customers()
	sessions := b.Sessions()
	hub := notify.NewHub()

	ledgerSvc := ledger.NewService(b, b.Ledger(), customers, retry, logger)
	tracker := challenge.NewTracker(challenge.TrackerDeps{
		Tx:         b,
		Challenges: b.Challenges(),
		Joined:     b.UserChallenges(),
		Customers:  customers,
		Sessions:   sessions,
		Ledger:     ledgerSvc,
		Retry:      retry,
		Logger:     logger,
	})
	ranker := leaderboard.NewRanker(b, b.Leaderboard(), logger)

	return api.Services{
		Customers:  customer.NewService(customers, logger),
		Ledger:     ledgerSvc,
		Challenges: challenge.NewService(b, b.Challenges(), b.UserChallenges(), customers, logger),
		Tracker:    tracker,
		Ranker:     ranker,
		Sessions:   session.NewService(sessions, customers, logger),
		Coordinator: session.NewCoordinator(session.Deps{
			Tx:        b,
			Sessions:  sessions,
			Customers: customers,
			Ledger:    ledgerSvc,
			Tracker:   tracker,
			Ranker:    ranker,
			Notifier:  hub,
			Logger:    logger,
			Retry:     retry,
		}),
		Hub: hub,
	}
}
