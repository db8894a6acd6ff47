package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxPurchase   TransactionType = "purchase"
	TxBonus      TransactionType = "bonus"
	TxReferral   TransactionType = "referral"
	TxSignup     TransactionType = "signup"
	TxRedemption TransactionType = "redemption"
)

// Transaction is an immutable ledger entry. Points is signed: redemptions
// are negative.
type Transaction struct {
	ID           int64            `json:"id"`
	Ref          string           `json:"ref"`
	CustomerID   int64            `json:"customer_id"`
	RestaurantID int64            `json:"restaurant_id"`
	Type         TransactionType  `json:"type"`
	Points       int              `json:"points"`
	AmountSpent  *decimal.Decimal `json:"amount_spent,omitempty"`
	Description  string           `json:"description"`
	RewardID     *int64           `json:"reward_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
