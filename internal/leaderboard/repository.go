package leaderboard

import (
	"context"

	"gamification_service/internal/apperrors"
)

var (
	ErrUnknownPeriod = apperrors.New(apperrors.CodeValidation, "unknown leaderboard period")
)

type Repository interface {
	// Find returns nil, nil when the customer has no row in the group.
	Find(ctx context.Context, key Key) (*Entry, error)
	FindByGroup(ctx context.Context, g Group) ([]Entry, error)
	// MaxRank returns 0 for an empty group.
	MaxRank(ctx context.Context, g Group) (int, error)
	// LockGroup serializes rank assignment in g until the surrounding
	// transaction ends. Backends without such a lock may return nil, in which
	// case concurrent first entries can share a rank.
	LockGroup(ctx context.Context, g Group) error
	Save(ctx context.Context, e *Entry) error
}
