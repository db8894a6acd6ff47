package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/punchcard/internal/model"
)

type RestaurantStore struct {
	db *sql.DB
}

func NewRestaurantStore(db *sql.DB) *RestaurantStore {
	return &RestaurantStore{db: db}
}

// NewRestaurant holds the fields needed to register a restaurant.
type NewRestaurant struct {
	Name              string
	Slug              string
	APIKey            string
	PointsPerCurrency decimal.Decimal
	SignupBonus       int
	LoyaltyMode       string
}

func scanRestaurant(scanner interface{ Scan(...any) error }) (*model.Restaurant, error) {
	var r model.Restaurant
	err := scanner.Scan(&r.ID, &r.Name, &r.Slug, &r.APIKeyHash, &r.PointsPerCurrency, &r.SignupBonus, &r.LoyaltyMode, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const restaurantCols = `id, name, slug, api_key_hash, points_per_currency, signup_bonus, loyalty_mode, created_at`

// Create registers a restaurant. The API key is stored only as a bcrypt hash.
func (s *RestaurantStore) Create(ctx context.Context, in NewRestaurant) (*model.Restaurant, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.APIKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}
	if in.LoyaltyMode == "" {
		in.LoyaltyMode = model.LoyaltyModeBlanket
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO restaurants (name, slug, api_key_hash, points_per_currency, signup_bonus, loyalty_mode) VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Slug, string(hash), in.PointsPerCurrency.String(), in.SignupBonus, in.LoyaltyMode,
	)
	if err != nil {
		return nil, fmt.Errorf("insert restaurant: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RestaurantStore) GetByID(ctx context.Context, id int64) (*model.Restaurant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+restaurantCols+` FROM restaurants WHERE id = ?`, id)
	r, err := scanRestaurant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	return r, nil
}

func (s *RestaurantStore) GetBySlug(ctx context.Context, slug string) (*model.Restaurant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+restaurantCols+` FROM restaurants WHERE slug = ?`, slug)
	r, err := scanRestaurant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant by slug: %w", err)
	}
	return r, nil
}

// Authenticate returns the restaurant whose slug and API key match, or nil.
func (s *RestaurantStore) Authenticate(ctx context.Context, slug, apiKey string) (*model.Restaurant, error) {
	r, err := s.GetBySlug(ctx, slug)
	if err != nil || r == nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(r.APIKeyHash), []byte(apiKey)) != nil {
		return nil, nil
	}
	return r, nil
}

// UpdateEarning changes the earn rate and signup bonus.
func (s *RestaurantStore) UpdateEarning(ctx context.Context, id int64, pointsPerCurrency decimal.Decimal, signupBonus int) (*model.Restaurant, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE restaurants SET points_per_currency = ?, signup_bonus = ? WHERE id = ?`,
		pointsPerCurrency.String(), signupBonus, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update restaurant earning: %w", err)
	}
	return s.GetByID(ctx, id)
}
