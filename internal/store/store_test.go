package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/database"
	"github.com/dukerupert/punchcard/internal/model"
)

type testStores struct {
	db          *sql.DB
	restaurants *RestaurantStore
	customers   *CustomerStore
	rewards     *RewardStore
	ledger      *LedgerStore
	sessions    *SessionStore
}

func setupTestDB(t *testing.T) *testStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &testStores{
		db:          db,
		restaurants: NewRestaurantStore(db),
		customers:   NewCustomerStore(db),
		rewards:     NewRewardStore(db),
		ledger:      NewLedgerStore(db),
		sessions:    NewSessionStore(db),
	}
}

// tickingClock returns a clock that advances one second per call so that
// ledger ordering in tests never depends on wall-clock resolution.
func tickingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func createTestRestaurant(t *testing.T, ts *testStores, slug string, signupBonus int) *model.Restaurant {
	t.Helper()
	r, err := ts.restaurants.Create(context.Background(), NewRestaurant{
		Name:              "Test " + slug,
		Slug:              slug,
		APIKey:            "secret-" + slug,
		PointsPerCurrency: decimal.RequireFromString("0.1"),
		SignupBonus:       signupBonus,
	})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	return r
}

func createTestCustomer(t *testing.T, ts *testStores, restaurantID int64, email string, signup int) *model.Customer {
	t.Helper()
	c, err := ts.customers.Create(context.Background(), restaurantID, NewCustomer{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
	}, signup)
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}
