package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/customer"
	"gamification_service/internal/storage"
)

type Service struct {
	tx        storage.Transactor
	repo      Repository
	customers customer.Repository
	retry     storage.RetryPolicy
	logger    *slog.Logger
}

// NewService builds the ledger. A zero retry policy falls back to
// storage.DefaultRetryPolicy.
func NewService(tx storage.Transactor, repo Repository, customers customer.Repository, retry storage.RetryPolicy, logger *slog.Logger) *Service {
	if retry.Attempts == 0 {
		retry = storage.DefaultRetryPolicy()
	}
	return &Service{
		tx:        tx,
		repo:      repo,
		customers: customers,
		retry:     retry,
		logger:    logger,
	}
}

// Validate checks the sign rules of a balance change before anything is read.
// Bonus and adjustment may go either way; a negative bonus is a penalty.
func (r RecordRequest) Validate() error {
	if r.CustomerID == "" {
		return apperrors.Validation("customer_id is required")
	}
	if r.MerchantID == "" {
		return apperrors.Validation("merchant_id is required")
	}
	if !r.TransactionType.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown transaction type %q", r.TransactionType))
	}
	if r.PointsChange == 0 {
		return apperrors.Validation("points change must not be zero")
	}
	switch r.TransactionType {
	case TypeRedeemed:
		if r.PointsChange > 0 {
			return apperrors.Validation("redeemed points must be negative")
		}
	case TypeEarned, TypeRefund:
		if r.PointsChange < 0 {
			return apperrors.Validation(fmt.Sprintf("%s points must be positive", r.TransactionType))
		}
	}
	return nil
}

// Record appends one entry and moves the customer's balance to match. It
// joins the caller's transaction when ctx carries one. Recording a reference
// that already exists for the customer and type returns the earlier entry.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.customers.GetForUpdate(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if c.MerchantID != req.MerchantID {
			return customer.ErrCustomerNotFound
		}

		if req.ReferenceID != "" {
			existing, err := s.repo.FindByReference(ctx, req.CustomerID, req.ReferenceID, req.TransactionType)
			if err != nil {
				return err
			}
			if existing != nil {
				s.logger.Info("ledger entry already recorded",
					"customer_id", req.CustomerID, "reference_id", req.ReferenceID, "entry_id", existing.ID)
				entry = existing
				return nil
			}
		}

		balanceBefore := c.TotalPoints
		balanceAfter := balanceBefore + req.PointsChange
		if balanceAfter < 0 {
			return apperrors.WithMetadata(ErrInsufficientBalance.Code, ErrInsufficientBalance.Message, map[string]string{
				"balance":   strconv.FormatInt(balanceBefore, 10),
				"requested": strconv.FormatInt(-req.PointsChange, 10),
			})
		}

		e := &Entry{
			CustomerID:      req.CustomerID,
			MerchantID:      req.MerchantID,
			TransactionType: req.TransactionType,
			PointsChange:    req.PointsChange,
			BalanceBefore:   balanceBefore,
			BalanceAfter:    balanceAfter,
			ReferenceID:     req.ReferenceID,
			Description:     req.Description,
		}
		if err := s.repo.Append(ctx, e); err != nil {
			return err
		}

		c.TotalPoints = balanceAfter
		if err := s.customers.Save(ctx, c); err != nil {
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

// Redeem spends points on a loyalty reward. It retries on write conflicts
// and is idempotent on the reference id.
func (s *Service) Redeem(ctx context.Context, customerID string, req RedeemRequest) (*Entry, error) {
	if req.Points <= 0 {
		return nil, apperrors.Validation("points must be positive")
	}

	var entry *Entry
	err := storage.Retry(ctx, s.retry, func(ctx context.Context) error {
		e, err := s.Record(ctx, RecordRequest{
			CustomerID:      customerID,
			MerchantID:      req.MerchantID,
			PointsChange:    -req.Points,
			TransactionType: TypeRedeemed,
			ReferenceID:     req.ReferenceID,
			Description:     req.Description,
		})
		entry = e
		return err
	})
	if err != nil {
		if storage.IsRetryable(err) {
			return nil, apperrors.Wrap(apperrors.CodeConsistencyConflict, "redeem retries exhausted", err)
		}
		return nil, err
	}
	s.logger.Info("points redeemed", "customer_id", customerID, "points", req.Points, "balance", entry.BalanceAfter)
	return entry, nil
}

func (s *Service) FindByReference(ctx context.Context, customerID, referenceID string, txType TransactionType) (*Entry, error) {
	return s.repo.FindByReference(ctx, customerID, referenceID, txType)
}

func (s *Service) History(ctx context.Context, customerID string, q Query) ([]Entry, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, customerID, q)
}

func (s *Service) Balance(ctx context.Context, customerID string) (int64, error) {
	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return c.TotalPoints, nil
}

// Verify checks that the customer's balance equals the sum of its entries.
func (s *Service) Verify(ctx context.Context, customerID string) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.customers.Get(ctx, customerID)
		if err != nil {
			return err
		}
		sum, err := s.repo.Sum(ctx, customerID)
		if err != nil {
			return err
		}
		if sum != c.TotalPoints {
			return apperrors.WithMetadata(ErrBalanceMismatch.Code, ErrBalanceMismatch.Message, map[string]string{
				"balance": strconv.FormatInt(c.TotalPoints, 10),
				"sum":     strconv.FormatInt(sum, 10),
			})
		}
		return nil
	})
}
