// Package memstore is an in-process storage backend. One mutex serializes
// every transaction; a transaction works on a copy of the committed state and
// swaps it in on success, so a failed unit of work leaves nothing behind.
package memstore

import (
	"context"
	"sync"

	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/ledger"
	"gamification_service/internal/session"
)

type state struct {
	customers      map[string]customer.Customer
	ledger         []ledger.Entry
	challenges     map[string]challenge.Challenge
	userChallenges map[string]challenge.UserChallenge
	leaderboard    map[string]leaderboard.Entry
	sessions       map[string]session.GameSession
}

func newState() *state {
	return &state{
		customers:      make(map[string]customer.Customer),
		challenges:     make(map[string]challenge.Challenge),
		userChallenges: make(map[string]challenge.UserChallenge),
		leaderboard:    make(map[string]leaderboard.Entry),
		sessions:       make(map[string]session.GameSession),
	}
}

func (s *state) clone() *state {
	c := &state{
		customers:      make(map[string]customer.Customer, len(s.customers)),
		ledger:         append([]ledger.Entry(nil), s.ledger...),
		challenges:     make(map[string]challenge.Challenge, len(s.challenges)),
		userChallenges: make(map[string]challenge.UserChallenge, len(s.userChallenges)),
		leaderboard:    make(map[string]leaderboard.Entry, len(s.leaderboard)),
		sessions:       make(map[string]session.GameSession, len(s.sessions)),
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.challenges {
		c.challenges[k] = v
	}
	for k, v := range s.userChallenges {
		c.userChallenges[k] = v
	}
	for k, v := range s.leaderboard {
		c.leaderboard[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	return c
}

type txKey struct{ s *Store }

type tx struct {
	st *state
}

type Store struct {
	mu        sync.Mutex
	committed *state
}

func New() *Store {
	return &Store{committed: newState()}
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{s}).(*tx); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{st: s.committed.clone()}
	if err := fn(context.WithValue(ctx, txKey{s}, t)); err != nil {
		return err
	}
	s.committed = t.st
	return nil
}

// view reads from the caller's transaction, or from committed state.
func (s *Store) view(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(txKey{s}).(*tx); ok {
		return fn(t.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.committed)
}

// update runs fn in the caller's transaction or in a fresh one.
func (s *Store) update(ctx context.Context, fn func(st *state) error) error {
	return s.WithinTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{s}).(*tx).st)
	})
}

func (s *Store) Customers() customer.Repository {
	return &customerRepo{s: s}
}

func (s *Store) Ledger() ledger.Repository {
	return &ledgerRepo{s: s}
}

func (s *Store) Challenges() challenge.Repository {
	return &challengeRepo{s: s}
}

func (s *Store) UserChallenges() challenge.UserChallengeRepository {
	return &userChallengeRepo{s: s}
}

func (s *Store) Leaderboard() leaderboard.Repository {
	return &leaderboardRepo{s: s}
}

func (s *Store) Sessions() session.Repository {
	return &sessionRepo{s: s}
}
