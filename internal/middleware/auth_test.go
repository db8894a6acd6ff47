package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/auth"
	"github.com/dukerupert/punchcard/internal/database"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
)

type authFixture struct {
	sessions    *store.SessionStore
	restaurants *store.RestaurantStore
	restaurant  *model.Restaurant
	customer    *model.Customer
}

func setupAuthMiddlewareDB(t *testing.T) *authFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f := &authFixture{
		sessions:    store.NewSessionStore(db),
		restaurants: store.NewRestaurantStore(db),
	}
	f.restaurant, err = f.restaurants.Create(ctx, store.NewRestaurant{
		Name: "Cafe", Slug: "cafe", APIKey: "s3cret", PointsPerCurrency: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	f.customer, err = store.NewCustomerStore(db).Create(ctx, f.restaurant.ID, store.NewCustomer{
		FirstName: "Alice", LastName: "Smith", Email: "alice@example.com",
	}, 0)
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return f
}

func mustNotReach(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireCustomerNoCookie(t *testing.T) {
	f := setupAuthMiddlewareDB(t)
	handler := RequireCustomer(f.sessions)(mustNotReach(t))

	req := httptest.NewRequest("GET", "/api/wallet", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireCustomerInvalidToken(t *testing.T) {
	f := setupAuthMiddlewareDB(t)
	handler := RequireCustomer(f.sessions)(mustNotReach(t))

	req := httptest.NewRequest("GET", "/api/wallet", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireCustomerValidSession(t *testing.T) {
	f := setupAuthMiddlewareDB(t)
	sess, err := f.sessions.Create(context.Background(), f.customer.ID, f.restaurant.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var got auth.CustomerContext
	handler := RequireCustomer(f.sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cc, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected CustomerContext in request context")
		}
		got = cc
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/wallet", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.CustomerID != f.customer.ID {
		t.Errorf("CustomerID = %d, want %d", got.CustomerID, f.customer.ID)
	}
	if got.RestaurantID != f.restaurant.ID {
		t.Errorf("RestaurantID = %d, want %d", got.RestaurantID, f.restaurant.ID)
	}
	if got.SessionID != sess.ID {
		t.Errorf("SessionID = %d, want %d", got.SessionID, sess.ID)
	}
}

func TestRequireMerchant(t *testing.T) {
	f := setupAuthMiddlewareDB(t)

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong key", "cafe", "nope", true, http.StatusUnauthorized},
		{"unknown slug", "diner", "s3cret", true, http.StatusUnauthorized},
		{"valid", "cafe", "s3cret", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var merchant *model.Restaurant
			handler := RequireMerchant(f.restaurants)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				merchant = auth.Merchant(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/merchant/customers", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate challenge")
			}
			if tt.want == http.StatusOK && (merchant == nil || merchant.ID != f.restaurant.ID) {
				t.Errorf("merchant = %+v, want id %d", merchant, f.restaurant.ID)
			}
		})
	}
}
