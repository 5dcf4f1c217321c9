package session

import (
	"context"
	"log/slog"
	"time"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/customer"
)

type Service struct {
	repo      Repository
	customers customer.Repository
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, customers customer.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, customers: customers, logger: logger, now: time.Now}
}

// Start opens an in-progress session for a registered customer.
func (s *Service) Start(ctx context.Context, req StartRequest) (*GameSession, error) {
	if req.CustomerID == "" || req.MerchantID == "" || req.GameType == "" {
		return nil, apperrors.Validation("customer_id, merchant_id and game_type are required")
	}
	c, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if c.MerchantID != req.MerchantID {
		return nil, customer.ErrCustomerNotFound
	}

	sess := &GameSession{
		CustomerID:      req.CustomerID,
		MerchantID:      req.MerchantID,
		GameType:        req.GameType,
		DifficultyLevel: req.DifficultyLevel,
		Status:          StatusInProgress,
		StartedAt:       s.now(),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("session started", "session_id", sess.ID, "customer_id", sess.CustomerID, "game_type", sess.GameType)
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*GameSession, error) {
	return s.repo.Get(ctx, id)
}
