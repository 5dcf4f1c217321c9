package ledger

import (
	"time"
)

type TransactionType string

const (
	TypeEarned     TransactionType = "earned"
	TypeRedeemed   TransactionType = "redeemed"
	TypeAdjustment TransactionType = "adjustment"
	TypeBonus      TransactionType = "bonus"
	TypeRefund     TransactionType = "refund"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeEarned, TypeRedeemed, TypeAdjustment, TypeBonus, TypeRefund:
		return true
	}
	return false
}

// Entry is one immutable balance change.
type Entry struct {
	ID              string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CustomerID      string          `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	MerchantID      string          `gorm:"column:merchant_id;type:uuid;not null" json:"merchant_id"`
	TransactionType TransactionType `gorm:"column:transaction_type;type:varchar(20);not null" json:"transaction_type"`
	PointsChange    int64           `gorm:"column:points_change;not null" json:"points_change"`
	BalanceBefore   int64           `gorm:"column:balance_before;not null" json:"balance_before"`
	BalanceAfter    int64           `gorm:"column:balance_after;not null" json:"balance_after"`
	ReferenceID     string          `gorm:"column:reference_id;type:varchar(255);not null;default:''" json:"reference_id,omitempty"` // game session, user challenge, redemption
	Description     string          `gorm:"column:description;type:text;not null;default:''" json:"description,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (Entry) TableName() string {
	return "points_ledger"
}

type RecordRequest struct {
	CustomerID      string
	MerchantID      string
	PointsChange    int64
	TransactionType TransactionType
	ReferenceID     string
	Description     string
}

// Query filters a customer's history. Zero fields do not filter.
type Query struct {
	Types []TransactionType
	Since time.Time
	Until time.Time
	Limit int
}

type RedeemRequest struct {
	MerchantID  string `json:"merchant_id" binding:"required"`
	Points      int64  `json:"points" binding:"required"`
	ReferenceID string `json:"reference_id" binding:"required"`
	Description string `json:"description"`
}
