package customer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gamification_service/internal/apperrors"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Customer, error) {
	if strings.TrimSpace(req.MerchantID) == "" {
		return nil, apperrors.Validation("merchant_id is required")
	}
	now := s.now()
	c := &Customer{
		MerchantID:   req.MerchantID,
		Name:         req.Name,
		Email:        req.Email,
		SocialHandle: req.SocialHandle,
		AgeGroup:     req.AgeGroup,
		Gender:       req.Gender,
		Location:     req.Location,
		Segment:      SegmentNew,
		Version:      1,
	}
	e := Score(*c, now)
	c.EngagementScore = e.Score

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("customer registered", "customer_id", c.ID, "merchant_id", c.MerchantID)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("customer deleted", "customer_id", id)
	return nil
}

// RecordPlay folds one finished session into the customer's aggregates and
// recomputes engagement. Balance is owned by the ledger and left untouched.
func (c *Customer) RecordPlay(durationSeconds int64, playedAt, now time.Time) Engagement {
	c.GamesPlayed++
	c.TotalSessionDuration += durationSeconds
	c.AverageSessionDuration = decimal.NewFromInt(c.TotalSessionDuration).
		Div(decimal.NewFromInt(int64(c.GamesPlayed))).
		Round(2)
	if c.LastPlayDate == nil || playedAt.After(*c.LastPlayDate) {
		t := playedAt
		c.LastPlayDate = &t
	}
	e := Score(*c, now)
	c.EngagementScore = e.Score
	c.Segment = e.Segment
	return e
}
