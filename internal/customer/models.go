package customer

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Segment string

const (
	SegmentNew      Segment = "new"
	SegmentActive   Segment = "active"
	SegmentLoyal    Segment = "loyal"
	SegmentAtRisk   Segment = "at_risk"
	SegmentInactive Segment = "inactive"
)

type Customer struct {
	ID           string `gorm:"column:id;primaryKey;type:uuid"`
	MerchantID   string `gorm:"column:merchant_id;type:uuid;not null;index"`
	Name         string `gorm:"column:name;type:varchar(120);not null;default:''"`
	Email        string `gorm:"column:email;type:varchar(255);not null;default:''"`
	SocialHandle string `gorm:"column:social_handle;type:varchar(120);not null;default:''"`
	AgeGroup     string `gorm:"column:age_group;type:varchar(20);not null;default:''"`
	Gender       string `gorm:"column:gender;type:varchar(20);not null;default:''"`
	Location     string `gorm:"column:location;type:varchar(120);not null;default:''"`

	TotalPoints            int64           `gorm:"column:total_points;not null;default:0"`
	GamesPlayed            int             `gorm:"column:games_played;not null;default:0"`
	TotalSessionDuration   int64           `gorm:"column:total_session_duration;not null;default:0"` // seconds
	AverageSessionDuration decimal.Decimal `gorm:"column:average_session_duration;type:numeric(12,2);not null;default:0"`
	LastPlayDate           *time.Time      `gorm:"column:last_play_date"`
	EngagementScore        decimal.Decimal `gorm:"column:engagement_score;type:numeric(6,2);not null;default:0"`
	Segment                Segment         `gorm:"column:segment;type:varchar(20);not null;default:'new'"`

	Version   int            `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Customer) TableName() string {
	return "customers"
}

// Summary is the customer view handed back to API callers.
type Summary struct {
	ID                     string          `json:"id"`
	MerchantID             string          `json:"merchant_id"`
	TotalPoints            int64           `json:"total_points"`
	GamesPlayed            int             `json:"games_played"`
	AverageSessionDuration decimal.Decimal `json:"average_session_duration"`
	LastPlayDate           *time.Time      `json:"last_play_date,omitempty"`
	EngagementScore        decimal.Decimal `json:"engagement_score"`
	Segment                Segment         `json:"segment"`
}

func (c *Customer) Summary() Summary {
	return Summary{
		ID:                     c.ID,
		MerchantID:             c.MerchantID,
		TotalPoints:            c.TotalPoints,
		GamesPlayed:            c.GamesPlayed,
		AverageSessionDuration: c.AverageSessionDuration,
		LastPlayDate:           c.LastPlayDate,
		EngagementScore:        c.EngagementScore,
		Segment:                c.Segment,
	}
}

type RegisterRequest struct {
	MerchantID   string `json:"merchant_id" binding:"required"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	SocialHandle string `json:"social_handle"`
	AgeGroup     string `json:"age_group"`
	Gender       string `json:"gender"`
	Location     string `json:"location"`
}
