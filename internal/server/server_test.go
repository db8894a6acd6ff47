package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/database"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
)

type testServer struct {
	*httptest.Server
	restaurant *model.Restaurant
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r, err := store.NewRestaurantStore(db).Create(context.Background(), store.NewRestaurant{
		Name:              "Harbor Cafe",
		Slug:              "harbor",
		APIKey:            "harbor-key",
		PointsPerCurrency: decimal.RequireFromString("0.1"),
		SignupBonus:       100,
	})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}

	srv := New(db, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, restaurant: r}
}

// customerClient returns a client whose cookie jar holds wallet sessions.
func customerClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func do(t *testing.T, client *http.Client, method, url, body string, setup func(*http.Request)) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if setup != nil {
		setup(req)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func asMerchant(slug, key string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(slug, key) }
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)

	resp := do(t, ts.Client(), http.MethodGet, ts.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a request ID header")
	}
}

func TestWalletFlow(t *testing.T) {
	ts := setupServer(t)
	client := customerClient(t)
	merchant := asMerchant("harbor", "harbor-key")

	resp := do(t, client, http.MethodPost, ts.URL+"/api/restaurants/harbor/signup",
		`{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", resp.StatusCode)
	}
	var c model.Customer
	json.NewDecoder(resp.Body).Decode(&c)

	resp = do(t, ts.Client(), http.MethodPost, ts.URL+"/api/merchant/customers/"+itoa(c.ID)+"/points",
		`{"type":"bonus","points":200}`, merchant)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add points status = %d, want 201", resp.StatusCode)
	}

	resp = do(t, ts.Client(), http.MethodPost, ts.URL+"/api/merchant/rewards",
		`{"name":"Free Coffee","points_required":250}`, merchant)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create reward status = %d, want 201", resp.StatusCode)
	}
	var reward model.Reward
	json.NewDecoder(resp.Body).Decode(&reward)

	resp = do(t, client, http.MethodPost, ts.URL+"/api/wallet/rewards/"+itoa(reward.ID)+"/redeem", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("redeem status = %d, want 201", resp.StatusCode)
	}

	resp = do(t, client, http.MethodGet, ts.URL+"/api/wallet", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wallet status = %d, want 200", resp.StatusCode)
	}
	var snap struct {
		Customer     model.Customer      `json:"customer"`
		Transactions []model.Transaction `json:"transactions"`
	}
	json.NewDecoder(resp.Body).Decode(&snap)
	if snap.Customer.TotalPoints != 50 || snap.Customer.LifetimePoints != 300 {
		t.Errorf("balance = %d/%d, want 50/300", snap.Customer.TotalPoints, snap.Customer.LifetimePoints)
	}
	if len(snap.Transactions) != 3 || snap.Transactions[0].Type != model.TxRedemption {
		t.Errorf("transactions = %+v, want redemption first of 3", snap.Transactions)
	}

	resp = do(t, client, http.MethodPost, ts.URL+"/api/wallet/logout", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", resp.StatusCode)
	}
	resp = do(t, client, http.MethodGet, ts.URL+"/api/wallet", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wallet after logout = %d, want 401", resp.StatusCode)
	}
}

func TestWalletRequiresSession(t *testing.T) {
	ts := setupServer(t)

	resp := do(t, ts.Client(), http.MethodGet, ts.URL+"/api/wallet/transactions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMerchantRequiresCredentials(t *testing.T) {
	ts := setupServer(t)

	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"none", nil},
		{"wrong key", asMerchant("harbor", "guess")},
		{"unknown slug", asMerchant("nowhere", "harbor-key")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, ts.Client(), http.MethodGet, ts.URL+"/api/merchant/customers", "", tt.setup)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
			if resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("expected Basic challenge")
			}
		})
	}
}

func TestOnboardingRateLimit(t *testing.T) {
	ts := setupServer(t)

	var last int
	for range onboardingLimit + 1 {
		resp := do(t, ts.Client(), http.MethodPost, ts.URL+"/api/restaurants/harbor/customers/lookup",
			`{"email":"ada@example.com"}`, nil)
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after %d lookups = %d, want 429", onboardingLimit+1, last)
	}

	// Other restaurants are limited separately.
	resp := do(t, ts.Client(), http.MethodPost, ts.URL+"/api/restaurants/other/customers/lookup",
		`{"email":"ada@example.com"}`, nil)
	if resp.StatusCode == http.StatusTooManyRequests {
		t.Error("other restaurant should not share the limit")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
