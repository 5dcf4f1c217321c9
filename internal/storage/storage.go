// Package storage holds the transaction contract shared by the repository
// implementations in pgstore and memstore.
package storage

import (
	"context"
	"errors"
)

// ErrOptimisticLock is returned when a write lost a race with another writer
// (version mismatch, serialization failure, deadlock, duplicate insert).
// Callers may retry the whole unit of work.
var ErrOptimisticLock = errors.New("optimistic lock error")

// Transactor runs fn inside a transaction. The transaction travels in the
// context handed to fn; a call made with a context that already carries a
// transaction joins it instead of opening a new one. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IsRetryable reports whether err is a transient write conflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}
