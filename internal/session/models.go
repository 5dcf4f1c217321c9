package session

import (
	"time"

	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/ledger"
	"gamification_service/internal/leaderboard"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"
)

// GameSession is one play of a minigame. ProcessedAt is set once the
// completion fan-out has committed; CompletedAt is when the play ended,
// taken from the event.
type GameSession struct {
	ID              string     `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CustomerID      string     `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	MerchantID      string     `gorm:"column:merchant_id;type:uuid;not null" json:"merchant_id"`
	GameType        string     `gorm:"column:game_type;type:varchar(50);not null" json:"game_type"`
	DifficultyLevel string     `gorm:"column:difficulty_level;type:varchar(20);not null;default:''" json:"difficulty_level,omitempty"`
	Status          string     `gorm:"column:status;type:varchar(20);not null" json:"status"` // "in_progress", "completed", "abandoned"
	Score           *int64     `gorm:"column:score" json:"score,omitempty"`
	PointsEarned    int64      `gorm:"column:points_earned;not null;default:0" json:"points_earned"`
	WasCompleted    bool       `gorm:"column:was_completed;not null;default:false" json:"was_completed"`
	SessionDuration int64      `gorm:"column:session_duration;not null;default:0" json:"session_duration"` // seconds
	PrizeWon        *string    `gorm:"column:prize_won;type:varchar(255)" json:"prize_won,omitempty"`
	StartedAt       time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ProcessedAt     *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (GameSession) TableName() string {
	return "game_sessions"
}

// Completed is the event emitted once per finished session. Delivery is at
// least once; SessionID is the idempotency key.
type Completed struct {
	SessionID       string    `json:"session_id"`
	CustomerID      string    `json:"customer_id"`
	MerchantID      string    `json:"merchant_id"`
	GameType        string    `json:"game_type"`
	Score           *int64    `json:"score,omitempty"`
	PointsEarned    int64     `json:"points_earned"`
	WasCompleted    bool      `json:"was_completed"`
	DifficultyLevel string    `json:"difficulty_level,omitempty"`
	SessionDuration int64     `json:"session_duration"`
	PrizeWon        *string   `json:"prize_won,omitempty"`
	OccurredAt      time.Time `json:"occurred_at,omitempty"`
}

// Result is everything one processed completion changed.
type Result struct {
	SessionID   string              `json:"session_id"`
	State       State               `json:"state"`
	Duplicate   bool                `json:"duplicate"`
	Customer    customer.Summary    `json:"customer"`
	LedgerEntry *ledger.Entry       `json:"ledger_entry,omitempty"`
	Challenges  []challenge.Delta   `json:"challenges"`
	Leaderboard []leaderboard.Entry `json:"leaderboard,omitempty"`
}

type StartRequest struct {
	CustomerID      string `json:"customer_id" binding:"required"`
	MerchantID      string `json:"merchant_id" binding:"required"`
	GameType        string `json:"game_type" binding:"required"`
	DifficultyLevel string `json:"difficulty_level"`
}
