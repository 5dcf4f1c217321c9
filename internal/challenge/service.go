package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/customer"
	"gamification_service/internal/storage"
)

type Service struct {
	tx         storage.Transactor
	challenges Repository
	joined     UserChallengeRepository
	customers  customer.Repository
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(tx storage.Transactor, challenges Repository, joined UserChallengeRepository, customers customer.Repository, logger *slog.Logger) *Service {
	return &Service{
		tx:         tx,
		challenges: challenges,
		joined:     joined,
		customers:  customers,
		logger:     logger,
		now:        time.Now,
	}
}

func (r CreateRequest) Validate() error {
	if r.MerchantID == "" {
		return apperrors.Validation("merchant_id is required")
	}
	if r.Name == "" {
		return apperrors.Validation("name is required")
	}
	if !r.ChallengeType.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown challenge type %q", r.ChallengeType))
	}
	if r.TargetValue <= 0 {
		return apperrors.Validation("target_value must be positive")
	}
	if r.RewardPoints < 0 {
		return apperrors.Validation("reward_points must not be negative")
	}
	if r.MaxParticipants < 0 {
		return apperrors.Validation("max_participants must not be negative")
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return apperrors.Validation("end_date is before start_date")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Challenge, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := req.StartDate
	if start.IsZero() {
		start = s.now()
	}
	c := &Challenge{
		MerchantID:      req.MerchantID,
		Name:            req.Name,
		ChallengeType:   req.ChallengeType,
		TargetValue:     req.TargetValue,
		RewardPoints:    req.RewardPoints,
		MaxParticipants: req.MaxParticipants,
		Requirements:    datatypes.NewJSONType(req.Requirements),
		StartDate:       start,
		EndDate:         req.EndDate,
		IsActive:        true,
	}
	if err := s.challenges.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("challenge created", "challenge_id", c.ID, "merchant_id", c.MerchantID, "type", c.ChallengeType)
	return c, nil
}

// Join enrols the customer. Joining twice is a conflict, not a no-op.
func (s *Service) Join(ctx context.Context, customerID, challengeID string) (*UserChallenge, error) {
	var uc *UserChallenge
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cust, err := s.customers.Get(ctx, customerID)
		if err != nil {
			return err
		}
		ch, err := s.challenges.Get(ctx, challengeID)
		if err != nil {
			return err
		}
		if ch.MerchantID != cust.MerchantID {
			return ErrChallengeNotFound
		}
		now := s.now()
		if !ch.OpenAt(now) {
			return ErrChallengeClosed
		}

		existing, err := s.joined.FindByCustomerAndChallenge(ctx, customerID, challengeID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyJoined
		}

		if err := s.challenges.IncrementParticipants(ctx, challengeID); err != nil {
			return err
		}

		uc = &UserChallenge{
			CustomerID:  customerID,
			ChallengeID: challengeID,
			JoinedAt:    now,
		}
		return s.joined.Create(ctx, uc)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("challenge joined", "customer_id", customerID, "challenge_id", challengeID)
	return uc, nil
}

func (s *Service) Progress(ctx context.Context, customerID string) ([]UserChallenge, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	return s.joined.ListByCustomer(ctx, customerID)
}
