package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/auth"
	"github.com/dukerupert/punchcard/internal/database"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
	"github.com/dukerupert/punchcard/internal/wallet"
)

type fixture struct {
	restaurants *store.RestaurantStore
	customers   *store.CustomerStore
	rewards     *store.RewardStore
	ledger      *store.LedgerStore
	sessions    *store.SessionStore
	wallet      *wallet.Service
	restaurant  *model.Restaurant

	onboarding *OnboardingHandler
	walletH    *WalletHandler
	merchant   *MerchantHandler
	rewardH    *RewardHandler
	analytics  *AnalyticsHandler
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	f := &fixture{
		restaurants: store.NewRestaurantStore(db),
		customers:   store.NewCustomerStore(db),
		rewards:     store.NewRewardStore(db),
		ledger:      store.NewLedgerStore(db),
		sessions:    store.NewSessionStore(db),
	}
	f.restaurant = f.createRestaurant(t, "harbor", 100)
	f.wallet = wallet.NewService(f.restaurants, f.customers, f.rewards, f.ledger, logger)

	f.onboarding = NewOnboardingHandler(f.restaurants, f.sessions, f.wallet, logger)
	f.walletH = NewWalletHandler(f.wallet, f.sessions, logger)
	f.merchant = NewMerchantHandler(f.restaurants, f.customers, f.wallet, logger)
	f.rewardH = NewRewardHandler(f.rewards, nil, logger)
	f.analytics = NewAnalyticsHandler(store.NewAnalyticsStore(db), store.NewROISettingsStore(db), logger)
	return f
}

func (f *fixture) createRestaurant(t *testing.T, slug string, signupBonus int) *model.Restaurant {
	t.Helper()
	r, err := f.restaurants.Create(context.Background(), store.NewRestaurant{
		Name:              "Harbor Cafe",
		Slug:              slug,
		APIKey:            "key-" + slug,
		PointsPerCurrency: decimal.RequireFromString("0.1"),
		SignupBonus:       signupBonus,
	})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	return r
}

func (f *fixture) createCustomer(t *testing.T, restaurantID int64, email string) *model.Customer {
	t.Helper()
	c, err := f.customers.Create(context.Background(), restaurantID, store.NewCustomer{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
	}, 100)
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

func (f *fixture) addPoints(t *testing.T, customerID int64, points int) {
	t.Helper()
	if _, err := f.ledger.RecordEvent(context.Background(), customerID, model.TxBonus, points, store.EventMeta{}); err != nil {
		t.Fatalf("add points: %v", err)
	}
}

func (f *fixture) createReward(t *testing.T, in store.RewardInput) *model.Reward {
	t.Helper()
	r, err := f.rewards.Create(context.Background(), f.restaurant.ID, in)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	return r
}

func newRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// asCustomer attaches a real wallet session for c to req.
func (f *fixture) asCustomer(t *testing.T, req *http.Request, c *model.Customer) *http.Request {
	t.Helper()
	sess, err := f.sessions.Create(context.Background(), c.ID, c.RestaurantID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	ctx := auth.WithCustomer(req.Context(), auth.CustomerContext{
		CustomerID:   c.ID,
		RestaurantID: c.RestaurantID,
		SessionID:    sess.ID,
	})
	return req.WithContext(ctx)
}

func (f *fixture) asMerchant(req *http.Request) *http.Request {
	return req.WithContext(auth.WithMerchant(req.Context(), f.restaurant))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
