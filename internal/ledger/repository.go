package ledger

import (
	"context"

	"gamification_service/internal/apperrors"
)

var (
	ErrInsufficientBalance = apperrors.New(apperrors.CodeInsufficientBalance, "insufficient balance")
	ErrBalanceMismatch     = apperrors.New(apperrors.CodeUnknown, "ledger sum does not match customer balance")
)

type Repository interface {
	// FindByReference returns nil, nil when no entry matches.
	FindByReference(ctx context.Context, customerID, referenceID string, txType TransactionType) (*Entry, error)
	// Append assigns ID and CreatedAt when unset. A concurrent insert of the
	// same reference returns storage.ErrOptimisticLock.
	Append(ctx context.Context, e *Entry) error
	// List returns entries newest first.
	List(ctx context.Context, customerID string, q Query) ([]Entry, error)
	Sum(ctx context.Context, customerID string) (int64, error)
}
