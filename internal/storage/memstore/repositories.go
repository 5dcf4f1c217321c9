package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/ledger"
	"gamification_service/internal/session"
	"gamification_service/internal/storage"
)

type customerRepo struct{ s *Store }

func (r *customerRepo) Create(ctx context.Context, c *customer.Customer) error {
	return r.s.update(ctx, func(st *state) error {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		now := time.Now()
		c.CreatedAt, c.UpdatedAt = now, now
		if c.Version == 0 {
			c.Version = 1
		}
		st.customers[c.ID] = *c
		return nil
	})
}

func (r *customerRepo) Get(ctx context.Context, id string) (*customer.Customer, error) {
	var out customer.Customer
	err := r.s.view(ctx, func(st *state) error {
		c, ok := st.customers[id]
		if !ok || c.DeletedAt.Valid {
			return customer.ErrCustomerNotFound
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (r *customerRepo) GetForUpdate(ctx context.Context, id string) (*customer.Customer, error) {
	return r.Get(ctx, id)
}

func (r *customerRepo) Save(ctx context.Context, c *customer.Customer) error {
	return r.s.update(ctx, func(st *state) error {
		cur, ok := st.customers[c.ID]
		if !ok || cur.DeletedAt.Valid {
			return customer.ErrCustomerNotFound
		}
		if cur.Version != c.Version {
			return storage.ErrOptimisticLock
		}
		c.Version++
		c.UpdatedAt = time.Now()
		st.customers[c.ID] = *c
		return nil
	})
}

func (r *customerRepo) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(st *state) error {
		c, ok := st.customers[id]
		if !ok || c.DeletedAt.Valid {
			return customer.ErrCustomerNotFound
		}
		c.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		st.customers[id] = c
		return nil
	})
}

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) FindByReference(ctx context.Context, customerID, referenceID string, txType ledger.TransactionType) (*ledger.Entry, error) {
	var out *ledger.Entry
	err := r.s.view(ctx, func(st *state) error {
		for _, e := range st.ledger {
			if e.CustomerID == customerID && e.ReferenceID == referenceID && e.TransactionType == txType {
				found := e
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *ledgerRepo) Append(ctx context.Context, e *ledger.Entry) error {
	return r.s.update(ctx, func(st *state) error {
		if e.ReferenceID != "" {
			for _, x := range st.ledger {
				if x.CustomerID == e.CustomerID && x.ReferenceID == e.ReferenceID && x.TransactionType == e.TransactionType {
					return storage.ErrOptimisticLock
				}
			}
		}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		st.ledger = append(st.ledger, *e)
		return nil
	})
}

func (r *ledgerRepo) List(ctx context.Context, customerID string, q ledger.Query) ([]ledger.Entry, error) {
	var out []ledger.Entry
	err := r.s.view(ctx, func(st *state) error {
		for i := len(st.ledger) - 1; i >= 0; i-- {
			e := st.ledger[i]
			if e.CustomerID != customerID || !matches(e, q) {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(e ledger.Entry, q ledger.Query) bool {
	if len(q.Types) > 0 {
		ok := false
		for _, t := range q.Types {
			if e.TransactionType == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.CreatedAt.Before(q.Until) {
		return false
	}
	return true
}

func (r *ledgerRepo) Sum(ctx context.Context, customerID string) (int64, error) {
	var sum int64
	err := r.s.view(ctx, func(st *state) error {
		for _, e := range st.ledger {
			if e.CustomerID == customerID {
				sum += e.PointsChange
			}
		}
		return nil
	})
	return sum, err
}

type challengeRepo struct{ s *Store }

func (r *challengeRepo) Create(ctx context.Context, c *challenge.Challenge) error {
	return r.s.update(ctx, func(st *state) error {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		now := time.Now()
		c.CreatedAt, c.UpdatedAt = now, now
		st.challenges[c.ID] = *c
		return nil
	})
}

func (r *challengeRepo) Get(ctx context.Context, id string) (*challenge.Challenge, error) {
	var out challenge.Challenge
	err := r.s.view(ctx, func(st *state) error {
		c, ok := st.challenges[id]
		if !ok {
			return challenge.ErrChallengeNotFound
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *challengeRepo) Save(ctx context.Context, c *challenge.Challenge) error {
	return r.s.update(ctx, func(st *state) error {
		if _, ok := st.challenges[c.ID]; !ok {
			return challenge.ErrChallengeNotFound
		}
		c.UpdatedAt = time.Now()
		st.challenges[c.ID] = *c
		return nil
	})
}

func (r *challengeRepo) IncrementCompletion(ctx context.Context, id string) error {
	return r.s.update(ctx, func(st *state) error {
		c, ok := st.challenges[id]
		if !ok {
			return challenge.ErrChallengeNotFound
		}
		c.CompletionCount++
		c.UpdatedAt = time.Now()
		st.challenges[id] = c
		return nil
	})
}

func (r *challengeRepo) IncrementParticipants(ctx context.Context, id string) error {
	return r.s.update(ctx, func(st *state) error {
		c, ok := st.challenges[id]
		if !ok {
			return challenge.ErrChallengeNotFound
		}
		if c.MaxParticipants > 0 && c.CurrentParticipants >= c.MaxParticipants {
			return challenge.ErrChallengeFull
		}
		c.CurrentParticipants++
		c.UpdatedAt = time.Now()
		st.challenges[id] = c
		return nil
	})
}

type userChallengeRepo struct{ s *Store }

func (r *userChallengeRepo) FindActiveByCustomer(ctx context.Context, customerID string) ([]challenge.UserChallenge, error) {
	return r.list(ctx, customerID, true)
}

func (r *userChallengeRepo) ListByCustomer(ctx context.Context, customerID string) ([]challenge.UserChallenge, error) {
	return r.list(ctx, customerID, false)
}

func (r *userChallengeRepo) list(ctx context.Context, customerID string, openOnly bool) ([]challenge.UserChallenge, error) {
	var out []challenge.UserChallenge
	err := r.s.view(ctx, func(st *state) error {
		for _, uc := range st.userChallenges {
			if uc.CustomerID != customerID || (openOnly && uc.IsCompleted) {
				continue
			}
			if ch, ok := st.challenges[uc.ChallengeID]; ok {
				uc.Challenge = &ch
			}
			out = append(out, uc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *userChallengeRepo) FindByCustomerAndChallenge(ctx context.Context, customerID, challengeID string) (*challenge.UserChallenge, error) {
	var out *challenge.UserChallenge
	err := r.s.view(ctx, func(st *state) error {
		for _, uc := range st.userChallenges {
			if uc.CustomerID == customerID && uc.ChallengeID == challengeID {
				found := uc
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *userChallengeRepo) Create(ctx context.Context, uc *challenge.UserChallenge) error {
	return r.s.update(ctx, func(st *state) error {
		for _, x := range st.userChallenges {
			if x.CustomerID == uc.CustomerID && x.ChallengeID == uc.ChallengeID {
				return challenge.ErrAlreadyJoined
			}
		}
		if uc.ID == "" {
			uc.ID = uuid.New().String()
		}
		if uc.JoinedAt.IsZero() {
			uc.JoinedAt = time.Now()
		}
		uc.UpdatedAt = time.Now()
		stored := *uc
		stored.Challenge = nil
		st.userChallenges[uc.ID] = stored
		return nil
	})
}

func (r *userChallengeRepo) Save(ctx context.Context, uc *challenge.UserChallenge) error {
	return r.s.update(ctx, func(st *state) error {
		if _, ok := st.userChallenges[uc.ID]; !ok {
			return challenge.ErrUserChallengeNotFound
		}
		uc.UpdatedAt = time.Now()
		stored := *uc
		stored.Challenge = nil
		st.userChallenges[uc.ID] = stored
		return nil
	})
}

type leaderboardRepo struct{ s *Store }

func inGroup(e leaderboard.Entry, g leaderboard.Group) bool {
	return e.MerchantID == g.MerchantID &&
		e.GameType == g.GameType &&
		e.PeriodType == g.PeriodType &&
		e.PeriodStart.Equal(g.PeriodStart)
}

func (r *leaderboardRepo) Find(ctx context.Context, key leaderboard.Key) (*leaderboard.Entry, error) {
	var out *leaderboard.Entry
	err := r.s.view(ctx, func(st *state) error {
		for _, e := range st.leaderboard {
			if e.CustomerID == key.CustomerID && inGroup(e, key.Group) {
				found := e
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *leaderboardRepo) FindByGroup(ctx context.Context, g leaderboard.Group) ([]leaderboard.Entry, error) {
	var out []leaderboard.Entry
	err := r.s.view(ctx, func(st *state) error {
		for _, e := range st.leaderboard {
			if inGroup(e, g) {
				out = append(out, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RankPosition < out[j].RankPosition })
	return out, nil
}

func (r *leaderboardRepo) MaxRank(ctx context.Context, g leaderboard.Group) (int, error) {
	var top int
	err := r.s.view(ctx, func(st *state) error {
		for _, e := range st.leaderboard {
			if inGroup(e, g) && e.RankPosition > top {
				top = e.RankPosition
			}
		}
		return nil
	})
	return top, err
}

func (r *leaderboardRepo) LockGroup(ctx context.Context, g leaderboard.Group) error {
	return nil
}

func (r *leaderboardRepo) Save(ctx context.Context, e *leaderboard.Entry) error {
	return r.s.update(ctx, func(st *state) error {
		now := time.Now()
		if e.ID == "" {
			e.ID = uuid.New().String()
			e.CreatedAt = now
		}
		e.UpdatedAt = now
		st.leaderboard[e.ID] = *e
		return nil
	})
}

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(ctx context.Context, gs *session.GameSession) error {
	return r.s.update(ctx, func(st *state) error {
		if gs.ID == "" {
			gs.ID = uuid.New().String()
		}
		if gs.StartedAt.IsZero() {
			gs.StartedAt = time.Now()
		}
		gs.UpdatedAt = time.Now()
		st.sessions[gs.ID] = *gs
		return nil
	})
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*session.GameSession, error) {
	var out session.GameSession
	err := r.s.view(ctx, func(st *state) error {
		gs, ok := st.sessions[id]
		if !ok {
			return session.ErrSessionNotFound
		}
		out = gs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) GetForUpdate(ctx context.Context, id string) (*session.GameSession, error) {
	return r.Get(ctx, id)
}

func (r *sessionRepo) Save(ctx context.Context, gs *session.GameSession) error {
	return r.s.update(ctx, func(st *state) error {
		if _, ok := st.sessions[gs.ID]; !ok {
			return session.ErrSessionNotFound
		}
		gs.UpdatedAt = time.Now()
		st.sessions[gs.ID] = *gs
		return nil
	})
}

func (r *sessionRepo) CountCompletedSessions(ctx context.Context, customerID string, from, to time.Time, excludeSessionID string) (int64, error) {
	var n int64
	err := r.s.view(ctx, func(st *state) error {
		for _, gs := range st.sessions {
			if gs.CustomerID != customerID || gs.ID == excludeSessionID || !gs.WasCompleted || gs.ProcessedAt == nil || gs.CompletedAt == nil {
				continue
			}
			if gs.CompletedAt.Before(from) || !gs.CompletedAt.Before(to) {
				continue
			}
			n++
		}
		return nil
	})
	return n, err
}
