package leaderboard

import (
	"fmt"
	"time"
)

type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodAllTime PeriodType = "alltime"
)

// Periods lists every period a completed session is ranked in.
var Periods = []PeriodType{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}

func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

type Entry struct {
	ID           string     `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	MerchantID   string     `gorm:"column:merchant_id;type:uuid;not null" json:"merchant_id"`
	CustomerID   string     `gorm:"column:customer_id;type:uuid;not null" json:"customer_id"`
	GameType     string     `gorm:"column:game_type;type:varchar(50);not null" json:"game_type"`
	PeriodType   PeriodType `gorm:"column:period_type;type:varchar(10);not null" json:"period_type"`
	PeriodStart  time.Time  `gorm:"column:period_start;not null" json:"period_start"`
	PeriodEnd    time.Time  `gorm:"column:period_end;not null" json:"period_end"`
	RankPosition int        `gorm:"column:rank_position;not null" json:"rank_position"`
	BestScore    int64      `gorm:"column:best_score;not null;default:0" json:"best_score"`
	GamesPlayed  int        `gorm:"column:games_played;not null;default:0" json:"games_played"`
	TotalPoints  int64      `gorm:"column:total_points;not null;default:0" json:"total_points"` // sum of scores in the period
	CreatedAt    time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Entry) TableName() string {
	return "leaderboard_entries"
}

// Group identifies one ranking: a merchant's game type in one period window.
type Group struct {
	MerchantID  string
	GameType    string
	PeriodType  PeriodType
	PeriodStart time.Time
}

// LockKey is the stable text key used to serialize rank assignment.
func (g Group) LockKey() string {
	return fmt.Sprintf("leaderboard:%s:%s:%s:%d", g.MerchantID, g.GameType, g.PeriodType, g.PeriodStart.Unix())
}

// Key identifies one customer's row inside a group.
type Key struct {
	Group
	CustomerID string
}

func (e *Entry) Group() Group {
	return Group{
		MerchantID:  e.MerchantID,
		GameType:    e.GameType,
		PeriodType:  e.PeriodType,
		PeriodStart: e.PeriodStart,
	}
}
