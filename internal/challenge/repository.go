package challenge

import (
	"context"
	"time"

	"gamification_service/internal/apperrors"
)

var (
	ErrChallengeNotFound     = apperrors.New(apperrors.CodeNotFound, "challenge not found")
	ErrUserChallengeNotFound = apperrors.New(apperrors.CodeNotFound, "user challenge not found")
	ErrAlreadyJoined         = apperrors.New(apperrors.CodeConflictAlreadyCompleted, "challenge already joined")
	ErrChallengeFull         = apperrors.New(apperrors.CodeChallengeFull, "challenge has no free places")
	ErrChallengeClosed       = apperrors.New(apperrors.CodeValidation, "challenge is not open")
)

type Repository interface {
	Create(ctx context.Context, c *Challenge) error
	Get(ctx context.Context, id string) (*Challenge, error)
	Save(ctx context.Context, c *Challenge) error
	// IncrementCompletion bumps CompletionCount in a single atomic write.
	IncrementCompletion(ctx context.Context, id string) error
	// IncrementParticipants takes a place if MaxParticipants allows it, or
	// returns ErrChallengeFull.
	IncrementParticipants(ctx context.Context, id string) error
}

type UserChallengeRepository interface {
	// FindActiveByCustomer returns the customer's open rows with Challenge
	// populated, locking them for the surrounding transaction.
	FindActiveByCustomer(ctx context.Context, customerID string) ([]UserChallenge, error)
	// FindByCustomerAndChallenge returns nil, nil when the customer has not joined.
	FindByCustomerAndChallenge(ctx context.Context, customerID, challengeID string) (*UserChallenge, error)
	ListByCustomer(ctx context.Context, customerID string) ([]UserChallenge, error)
	// Create returns ErrAlreadyJoined when the pair already exists.
	Create(ctx context.Context, uc *UserChallenge) error
	Save(ctx context.Context, uc *UserChallenge) error
}

// SessionCounter answers the same-day question behind daily streaks.
type SessionCounter interface {
	// CountCompletedSessions counts the customer's processed, completed
	// sessions whose play ended (CompletedAt) in [from, to), ignoring
	// excludeSessionID.
	CountCompletedSessions(ctx context.Context, customerID string, from, to time.Time, excludeSessionID string) (int64, error)
}
