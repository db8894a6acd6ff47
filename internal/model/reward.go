package model

import "time"

type Reward struct {
	ID             int64     `json:"id"`
	RestaurantID   int64     `json:"restaurant_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	PointsRequired int       `json:"points_required"`
	Category       string    `json:"category"`
	MinTier        Tier      `json:"min_tier"`
	IsActive       bool      `json:"is_active"`
	TotalAvailable *int      `json:"total_available,omitempty"`
	TotalRedeemed  int       `json:"total_redeemed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
