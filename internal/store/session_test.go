package store

import (
	"context"
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	r := createTestRestaurant(t, ts, "cafe", 0)
	c := createTestCustomer(t, ts, r.ID, "ada@example.com", 0)

	sess, err := ts.sessions.Create(ctx, c.ID, r.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 43 { // 32 bytes, unpadded base64url
		t.Errorf("token length = %d, want 43", len(sess.Token))
	}

	var stored string
	if err := ts.db.QueryRowContext(ctx, `SELECT token FROM sessions WHERE id = ?`, sess.ID).Scan(&stored); err != nil {
		t.Fatalf("read stored token: %v", err)
	}
	if stored == sess.Token {
		t.Error("raw token persisted, want digest")
	}
	if sess.CustomerID != c.ID {
		t.Errorf("customer_id = %d, want %d", sess.CustomerID, c.ID)
	}
	if sess.RestaurantID != r.ID {
		t.Errorf("restaurant_id = %d, want %d", sess.RestaurantID, r.ID)
	}
	if time.Until(sess.ExpiresAt) < 89*24*time.Hour {
		t.Errorf("expires_at = %v, want ~90 days out", sess.ExpiresAt)
	}
}

func TestSessionGetByToken(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	r := createTestRestaurant(t, ts, "cafe", 0)
	c := createTestCustomer(t, ts, r.ID, "ada@example.com", 0)
	created, _ := ts.sessions.Create(ctx, c.ID, r.ID)

	sess, err := ts.sessions.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != created.ID {
		t.Errorf("id = %d, want %d", sess.ID, created.ID)
	}
	if sess.Token != created.Token {
		t.Errorf("token = %q, want the raw token back", sess.Token)
	}

	missing, err := ts.sessions.GetByToken(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionExpiry(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	r := createTestRestaurant(t, ts, "cafe", 0)
	c := createTestCustomer(t, ts, r.ID, "ada@example.com", 0)

	past := time.Now().Add(-100 * 24 * time.Hour)
	ts.sessions.now = func() time.Time { return past }
	old, err := ts.sessions.Create(ctx, c.ID, r.ID)
	if err != nil {
		t.Fatalf("create old session: %v", err)
	}
	ts.sessions.now = time.Now
	fresh, err := ts.sessions.Create(ctx, c.ID, r.ID)
	if err != nil {
		t.Fatalf("create fresh session: %v", err)
	}

	got, err := ts.sessions.GetByToken(ctx, old.Token)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if got != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ts.sessions.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	if err := ts.sessions.Delete(ctx, fresh.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = ts.sessions.GetByToken(ctx, fresh.Token)
	if got != nil {
		t.Error("expected nil after delete")
	}
}
