package model

import "time"

// Session is a logged-in customer's wallet session.
type Session struct {
	ID           int64     `json:"id"`
	Token        string    `json:"token"`
	CustomerID   int64     `json:"customer_id"`
	RestaurantID int64     `json:"restaurant_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
