package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/ledger"
	"gamification_service/internal/session"
	"gamification_service/internal/storage"
)

var forUpdate = clause.Locking{Strength: "UPDATE"}

// validID keeps malformed ids away from uuid columns, where postgres would
// reject the whole statement.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type customerRepo struct{ s *Store }

func (r *customerRepo) Create(ctx context.Context, c *customer.Customer) error {
	if !validID(c.MerchantID) {
		return apperrors.Validation("merchant_id must be a uuid")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return mapError(r.s.conn(ctx).Create(c).Error)
}

func (r *customerRepo) Get(ctx context.Context, id string) (*customer.Customer, error) {
	return r.get(r.s.conn(ctx), id)
}

func (r *customerRepo) GetForUpdate(ctx context.Context, id string) (*customer.Customer, error) {
	return r.get(r.s.conn(ctx).Clauses(forUpdate), id)
}

func (r *customerRepo) get(db *gorm.DB, id string) (*customer.Customer, error) {
	if !validID(id) {
		return nil, customer.ErrCustomerNotFound
	}
	var c customer.Customer
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, customer.ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *customerRepo) Save(ctx context.Context, c *customer.Customer) error {
	now := time.Now()
	result := r.s.conn(ctx).Model(&customer.Customer{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]interface{}{
			"name":                     c.Name,
			"email":                    c.Email,
			"social_handle":            c.SocialHandle,
			"age_group":                c.AgeGroup,
			"gender":                   c.Gender,
			"location":                 c.Location,
			"total_points":             c.TotalPoints,
			"games_played":             c.GamesPlayed,
			"total_session_duration":   c.TotalSessionDuration,
			"average_session_duration": c.AverageSessionDuration,
			"last_play_date":           c.LastPlayDate,
			"engagement_score":         c.EngagementScore,
			"segment":                  c.Segment,
			"version":                  gorm.Expr("version + 1"),
			"updated_at":               now,
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrOptimisticLock
	}
	c.Version++
	c.UpdatedAt = now
	return nil
}

func (r *customerRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return customer.ErrCustomerNotFound
	}
	result := r.s.conn(ctx).Where("id = ?", id).Delete(&customer.Customer{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return customer.ErrCustomerNotFound
	}
	return nil
}

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) FindByReference(ctx context.Context, customerID, referenceID string, txType ledger.TransactionType) (*ledger.Entry, error) {
	var e ledger.Entry
	err := r.s.conn(ctx).
		Where("customer_id = ? AND reference_id = ? AND transaction_type = ?", customerID, referenceID, txType).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *ledgerRepo) Append(ctx context.Context, e *ledger.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return mapError(r.s.conn(ctx).Create(e).Error)
}

func (r *ledgerRepo) List(ctx context.Context, customerID string, q ledger.Query) ([]ledger.Entry, error) {
	db := r.s.conn(ctx).Where("customer_id = ?", customerID)
	if len(q.Types) > 0 {
		db = db.Where("transaction_type IN ?", q.Types)
	}
	if !q.Since.IsZero() {
		db = db.Where("created_at >= ?", q.Since)
	}
	if !q.Until.IsZero() {
		db = db.Where("created_at < ?", q.Until)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	var out []ledger.Entry
	if err := db.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerRepo) Sum(ctx context.Context, customerID string) (int64, error) {
	var sum int64
	err := r.s.conn(ctx).Model(&ledger.Entry{}).
		Where("customer_id = ?", customerID).
		Select("COALESCE(SUM(points_change), 0)").
		Scan(&sum).Error
	return sum, err
}

type challengeRepo struct{ s *Store }

func (r *challengeRepo) Create(ctx context.Context, c *challenge.Challenge) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return mapError(r.s.conn(ctx).Create(c).Error)
}

func (r *challengeRepo) Get(ctx context.Context, id string) (*challenge.Challenge, error) {
	if !validID(id) {
		return nil, challenge.ErrChallengeNotFound
	}
	var c challenge.Challenge
	if err := r.s.conn(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, challenge.ErrChallengeNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *challengeRepo) Save(ctx context.Context, c *challenge.Challenge) error {
	return mapError(r.s.conn(ctx).Save(c).Error)
}

func (r *challengeRepo) IncrementCompletion(ctx context.Context, id string) error {
	result := r.s.conn(ctx).Model(&challenge.Challenge{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"completion_count": gorm.Expr("completion_count + 1"),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return challenge.ErrChallengeNotFound
	}
	return nil
}

func (r *challengeRepo) IncrementParticipants(ctx context.Context, id string) error {
	result := r.s.conn(ctx).Model(&challenge.Challenge{}).
		Where("id = ? AND (max_participants = 0 OR current_participants < max_participants)", id).
		Updates(map[string]interface{}{
			"current_participants": gorm.Expr("current_participants + 1"),
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return challenge.ErrChallengeFull
	}
	return nil
}

type userChallengeRepo struct{ s *Store }

func (r *userChallengeRepo) FindActiveByCustomer(ctx context.Context, customerID string) ([]challenge.UserChallenge, error) {
	var rows []challenge.UserChallenge
	err := r.s.conn(ctx).Clauses(forUpdate).
		Where("customer_id = ? AND is_completed = ?", customerID, false).
		Order("joined_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, r.attach(ctx, rows)
}

func (r *userChallengeRepo) ListByCustomer(ctx context.Context, customerID string) ([]challenge.UserChallenge, error) {
	var rows []challenge.UserChallenge
	err := r.s.conn(ctx).
		Where("customer_id = ?", customerID).
		Order("joined_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, r.attach(ctx, rows)
}

// attach loads the challenge definitions behind rows in one query.
func (r *userChallengeRepo) attach(ctx context.Context, rows []challenge.UserChallenge) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	for _, uc := range rows {
		ids = append(ids, uc.ChallengeID)
	}
	var defs []challenge.Challenge
	if err := r.s.conn(ctx).Where("id IN ?", ids).Find(&defs).Error; err != nil {
		return err
	}
	byID := make(map[string]*challenge.Challenge, len(defs))
	for i := range defs {
		byID[defs[i].ID] = &defs[i]
	}
	for i := range rows {
		rows[i].Challenge = byID[rows[i].ChallengeID]
	}
	return nil
}

func (r *userChallengeRepo) FindByCustomerAndChallenge(ctx context.Context, customerID, challengeID string) (*challenge.UserChallenge, error) {
	var uc challenge.UserChallenge
	err := r.s.conn(ctx).
		Where("customer_id = ? AND challenge_id = ?", customerID, challengeID).
		First(&uc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &uc, nil
}

func (r *userChallengeRepo) Create(ctx context.Context, uc *challenge.UserChallenge) error {
	if uc.ID == "" {
		uc.ID = uuid.New().String()
	}
	if uc.JoinedAt.IsZero() {
		uc.JoinedAt = time.Now()
	}
	err := r.s.conn(ctx).Create(uc).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return challenge.ErrAlreadyJoined
	}
	return err
}

func (r *userChallengeRepo) Save(ctx context.Context, uc *challenge.UserChallenge) error {
	now := time.Now()
	result := r.s.conn(ctx).Model(&challenge.UserChallenge{}).
		Where("id = ?", uc.ID).
		Updates(map[string]interface{}{
			"current_progress": uc.CurrentProgress,
			"is_completed":     uc.IsCompleted,
			"completed_at":     uc.CompletedAt,
			"reward_claimed":   uc.RewardClaimed,
			"updated_at":       now,
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return challenge.ErrUserChallengeNotFound
	}
	uc.UpdatedAt = now
	return nil
}

type leaderboardRepo struct{ s *Store }

func groupScope(g leaderboard.Group) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("merchant_id = ? AND game_type = ? AND period_type = ? AND period_start = ?",
			g.MerchantID, g.GameType, g.PeriodType, g.PeriodStart)
	}
}

func (r *leaderboardRepo) Find(ctx context.Context, key leaderboard.Key) (*leaderboard.Entry, error) {
	var e leaderboard.Entry
	err := r.s.conn(ctx).Scopes(groupScope(key.Group)).
		Where("customer_id = ?", key.CustomerID).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *leaderboardRepo) FindByGroup(ctx context.Context, g leaderboard.Group) ([]leaderboard.Entry, error) {
	var out []leaderboard.Entry
	if !validID(g.MerchantID) {
		return out, nil
	}
	if err := r.s.conn(ctx).Scopes(groupScope(g)).Order("rank_position").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *leaderboardRepo) MaxRank(ctx context.Context, g leaderboard.Group) (int, error) {
	var n int
	err := r.s.conn(ctx).Model(&leaderboard.Entry{}).
		Scopes(groupScope(g)).
		Select("COALESCE(MAX(rank_position), 0)").
		Scan(&n).Error
	return n, err
}

// LockGroup takes a transaction-scoped advisory lock keyed on the group.
func (r *leaderboardRepo) LockGroup(ctx context.Context, g leaderboard.Group) error {
	return r.s.conn(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", g.LockKey()).Error
}

func (r *leaderboardRepo) Save(ctx context.Context, e *leaderboard.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
		return mapError(r.s.conn(ctx).Create(e).Error)
	}
	return mapError(r.s.conn(ctx).Save(e).Error)
}

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(ctx context.Context, gs *session.GameSession) error {
	if gs.ID == "" {
		gs.ID = uuid.New().String()
	}
	if gs.StartedAt.IsZero() {
		gs.StartedAt = time.Now()
	}
	return mapError(r.s.conn(ctx).Create(gs).Error)
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*session.GameSession, error) {
	return r.get(r.s.conn(ctx), id)
}

func (r *sessionRepo) GetForUpdate(ctx context.Context, id string) (*session.GameSession, error) {
	return r.get(r.s.conn(ctx).Clauses(forUpdate), id)
}

func (r *sessionRepo) get(db *gorm.DB, id string) (*session.GameSession, error) {
	if !validID(id) {
		return nil, session.ErrSessionNotFound
	}
	var gs session.GameSession
	if err := db.Where("id = ?", id).First(&gs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrSessionNotFound
		}
		return nil, err
	}
	return &gs, nil
}

func (r *sessionRepo) Save(ctx context.Context, gs *session.GameSession) error {
	return mapError(r.s.conn(ctx).Save(gs).Error)
}

func (r *sessionRepo) CountCompletedSessions(ctx context.Context, customerID string, from, to time.Time, excludeSessionID string) (int64, error) {
	db := r.s.conn(ctx).Model(&session.GameSession{}).
		Where("customer_id = ? AND was_completed = ? AND processed_at IS NOT NULL AND completed_at >= ? AND completed_at < ?", customerID, true, from, to)
	if excludeSessionID != "" {
		db = db.Where("id <> ?", excludeSessionID)
	}
	var n int64
	err := db.Count(&n).Error
	return n, err
}
