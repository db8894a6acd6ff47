package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoyaltyModeBlanket = "blanket"
	LoyaltyModeMenu    = "menu"
)

type Restaurant struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Slug              string          `json:"slug"`
	APIKeyHash        string          `json:"-"`
	PointsPerCurrency decimal.Decimal `json:"points_per_currency"`
	SignupBonus       int             `json:"signup_bonus"`
	LoyaltyMode       string          `json:"loyalty_mode"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ROISettings are the merchant's assumptions used by the ROI view.
// Margin and COGS are fractions; the target is a percentage.
type ROISettings struct {
	DefaultProfitMargin     decimal.Decimal `json:"default_profit_margin"`
	EstimatedCOGSPercentage decimal.Decimal `json:"estimated_cogs_percentage"`
	TargetROIPercentage     decimal.Decimal `json:"target_roi_percentage"`
}
