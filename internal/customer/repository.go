package customer

import (
	"context"

	"gamification_service/internal/apperrors"
)

var (
	ErrCustomerNotFound = apperrors.New(apperrors.CodeNotFound, "customer not found")
)

// Repository persists customers. Implementations live in internal/storage.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	// GetForUpdate loads the customer and holds an exclusive lock on the row
	// until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Customer, error)
	// Save writes c if its Version still matches the stored row, then bumps
	// c.Version. A mismatch returns storage.ErrOptimisticLock.
	Save(ctx context.Context, c *Customer) error
	// Delete soft-deletes the customer.
	Delete(ctx context.Context, id string) error
}
