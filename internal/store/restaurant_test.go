package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/model"
)

func TestRestaurantCreateAndGet(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()

	r := createTestRestaurant(t, ts, "cafe", 25)
	if r.Slug != "cafe" {
		t.Errorf("slug = %q, want %q", r.Slug, "cafe")
	}
	if r.LoyaltyMode != model.LoyaltyModeBlanket {
		t.Errorf("loyalty_mode = %q, want %q", r.LoyaltyMode, model.LoyaltyModeBlanket)
	}
	if !r.PointsPerCurrency.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("points_per_currency = %s, want 0.1", r.PointsPerCurrency)
	}
	if r.APIKeyHash == "secret-cafe" || r.APIKeyHash == "" {
		t.Error("expected api key to be stored hashed")
	}

	got, err := ts.restaurants.GetBySlug(ctx, "cafe")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got == nil || got.ID != r.ID {
		t.Fatalf("get by slug = %+v, want id %d", got, r.ID)
	}

	missing, err := ts.restaurants.GetBySlug(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown slug")
	}
}

func TestRestaurantAuthenticate(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	r := createTestRestaurant(t, ts, "cafe", 0)

	got, err := ts.restaurants.Authenticate(ctx, "cafe", "secret-cafe")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got == nil || got.ID != r.ID {
		t.Fatal("expected valid credentials to authenticate")
	}

	got, err = ts.restaurants.Authenticate(ctx, "cafe", "wrong")
	if err != nil {
		t.Fatalf("authenticate wrong key: %v", err)
	}
	if got != nil {
		t.Error("expected nil for wrong key")
	}

	got, err = ts.restaurants.Authenticate(ctx, "other", "secret-cafe")
	if err != nil {
		t.Fatalf("authenticate unknown slug: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown slug")
	}
}

func TestRestaurantUpdateEarning(t *testing.T) {
	ts := setupTestDB(t)
	r := createTestRestaurant(t, ts, "cafe", 0)

	updated, err := ts.restaurants.UpdateEarning(context.Background(), r.ID, decimal.RequireFromString("2.5"), 100)
	if err != nil {
		t.Fatalf("update earning: %v", err)
	}
	if !updated.PointsPerCurrency.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("points_per_currency = %s, want 2.5", updated.PointsPerCurrency)
	}
	if updated.SignupBonus != 100 {
		t.Errorf("signup_bonus = %d, want 100", updated.SignupBonus)
	}
}
