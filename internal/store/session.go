package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/punchcard/internal/model"
)

// SessionTTL is how long a wallet session stays valid.
const SessionTTL = 90 * 24 * time.Hour

// SessionStore keeps wallet sessions. Only a SHA-256 digest of each token
// is persisted; the raw token exists in the cookie alone.
type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create opens a session for the customer and returns it with the raw token set.
func (s *SessionStore) Create(ctx context.Context, customerID, restaurantID int64) (*model.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	sess := &model.Session{
		Token:        token,
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		CreatedAt:    s.now().UTC(),
	}
	sess.ExpiresAt = sess.CreatedAt.Add(SessionTTL)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, customer_id, restaurant_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		digestToken(token), customerID, restaurantID, sess.ExpiresAt, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	if sess.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	return sess, nil
}

// GetByToken resolves a raw cookie token. Unknown and expired tokens give (nil, nil).
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	sess := model.Session{Token: token}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, customer_id, restaurant_id, expires_at, created_at
		 FROM sessions WHERE token = ? AND expires_at > ?`,
		digestToken(token), s.now().UTC(),
	).Scan(&sess.ID, &sess.CustomerID, &sess.RestaurantID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

// DeleteExpired purges sessions past their expiry and reports how many went.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
