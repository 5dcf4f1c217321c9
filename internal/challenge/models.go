package challenge

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Type string

const (
	TypeGameMaster      Type = "game_master"
	TypePointsCollector Type = "points_collector"
	TypeDailyStreak     Type = "daily_streak"
	TypeSocial          Type = "social"
)

func (t Type) Valid() bool {
	switch t {
	case TypeGameMaster, TypePointsCollector, TypeDailyStreak, TypeSocial:
		return true
	}
	return false
}

// AllGames targets every game type in a game_master challenge.
const AllGames = "all"

// Requirements is the merchant-configurable part of a challenge, stored as JSON.
type Requirements struct {
	GameType string `json:"game_type,omitempty"`
	MinScore int64  `json:"min_score,omitempty"`
}

// MatchesGame reports whether gameType counts towards the challenge.
func (r Requirements) MatchesGame(gameType string) bool {
	if r.GameType == "" || strings.EqualFold(r.GameType, AllGames) {
		return true
	}
	return strings.EqualFold(r.GameType, gameType)
}

type Challenge struct {
	ID                  string                           `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	MerchantID          string                           `gorm:"column:merchant_id;type:uuid;not null;index" json:"merchant_id"`
	Name                string                           `gorm:"column:name;type:varchar(120);not null" json:"name"`
	ChallengeType       Type                             `gorm:"column:challenge_type;type:varchar(30);not null" json:"challenge_type"`
	TargetValue         int64                            `gorm:"column:target_value;not null" json:"target_value"`
	RewardPoints        int64                            `gorm:"column:reward_points;not null;default:0" json:"reward_points"`
	MaxParticipants     int                              `gorm:"column:max_participants;not null;default:0" json:"max_participants"` // 0 = unlimited
	CurrentParticipants int                              `gorm:"column:current_participants;not null;default:0" json:"current_participants"`
	CompletionCount     int                              `gorm:"column:completion_count;not null;default:0" json:"completion_count"`
	Requirements        datatypes.JSONType[Requirements] `gorm:"column:requirements;type:jsonb;not null" json:"requirements"`
	StartDate           time.Time                        `gorm:"column:start_date;not null" json:"start_date"`
	EndDate             time.Time                        `gorm:"column:end_date;not null" json:"end_date"`
	IsActive            bool                             `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt           time.Time                        `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt           time.Time                        `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// OpenAt reports whether the challenge accepts progress at t.
func (c *Challenge) OpenAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if t.Before(c.StartDate) {
		return false
	}
	return c.EndDate.IsZero() || !t.After(c.EndDate)
}

type UserChallenge struct {
	ID              string     `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CustomerID      string     `gorm:"column:customer_id;type:uuid;not null" json:"customer_id"`
	ChallengeID     string     `gorm:"column:challenge_id;type:uuid;not null" json:"challenge_id"`
	CurrentProgress int64      `gorm:"column:current_progress;not null;default:0" json:"current_progress"`
	IsCompleted     bool       `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	RewardClaimed   bool       `gorm:"column:reward_claimed;not null;default:false" json:"reward_claimed"`
	JoinedAt        time.Time  `gorm:"column:joined_at;not null" json:"joined_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`

	Challenge *Challenge `gorm:"-" json:"challenge,omitempty"`
}

func (UserChallenge) TableName() string {
	return "user_challenges"
}

// Activity is a finished piece of play that may advance challenges.
// OccurredAt is when the play ended; daily streaks bucket it by UTC day.
type Activity struct {
	SessionID    string
	GameType     string
	Score        int64
	PointsEarned int64
	WasCompleted bool
	OccurredAt   time.Time
}

// Delta reports how one challenge moved because of an activity.
type Delta struct {
	ChallengeID     string `json:"challenge_id"`
	UserChallengeID string `json:"user_challenge_id"`
	ChallengeType   Type   `json:"challenge_type"`
	OldProgress     int64  `json:"old_progress"`
	NewProgress     int64  `json:"new_progress"`
	TargetValue     int64  `json:"target_value"`
	Completed       bool   `json:"completed"`
	RewardPoints    int64  `json:"reward_points,omitempty"`
	RewardEntryID   string `json:"reward_entry_id,omitempty"`
}

type CreateRequest struct {
	MerchantID      string       `json:"merchant_id" binding:"required"`
	Name            string       `json:"name" binding:"required"`
	ChallengeType   Type         `json:"challenge_type" binding:"required"`
	TargetValue     int64        `json:"target_value" binding:"required"`
	RewardPoints    int64        `json:"reward_points"`
	MaxParticipants int          `json:"max_participants"`
	Requirements    Requirements `json:"requirements"`
	StartDate       time.Time    `json:"start_date"`
	EndDate         time.Time    `json:"end_date"`
}
