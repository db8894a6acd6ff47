package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID             int64           `json:"id"`
	RestaurantID   int64           `json:"restaurant_id"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Email          string          `json:"email"`
	Phone          *string         `json:"phone,omitempty"`
	DateOfBirth    *string         `json:"date_of_birth,omitempty"`
	TotalPoints    int             `json:"total_points"`
	LifetimePoints int             `json:"lifetime_points"`
	CurrentTier    Tier            `json:"current_tier"`
	TierProgress   int             `json:"tier_progress"`
	VisitCount     int             `json:"visit_count"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	LastVisit      *time.Time      `json:"last_visit,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Balance is the pair of point counters derived from a customer's ledger.
type Balance struct {
	TotalPoints    int `json:"total_points"`
	LifetimePoints int `json:"lifetime_points"`
}
