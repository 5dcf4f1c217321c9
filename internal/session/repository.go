package session

import (
	"context"
	"time"

	"gamification_service/internal/apperrors"
)

var (
	ErrSessionNotFound = apperrors.New(apperrors.CodeNotFound, "game session not found")
	ErrSessionMismatch = apperrors.New(apperrors.CodeValidation, "event does not belong to this session")
)

type Repository interface {
	Create(ctx context.Context, s *GameSession) error
	Get(ctx context.Context, id string) (*GameSession, error)
	// GetForUpdate locks the session row for the surrounding transaction so
	// duplicate deliveries of the same completion queue up behind each other.
	GetForUpdate(ctx context.Context, id string) (*GameSession, error)
	Save(ctx context.Context, s *GameSession) error
	CountCompletedSessions(ctx context.Context, customerID string, from, to time.Time, excludeSessionID string) (int64, error)
}
