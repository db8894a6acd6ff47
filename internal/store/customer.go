package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
)

type CustomerStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewCustomerStore(db *sql.DB) *CustomerStore {
	return &CustomerStore{db: db, now: time.Now}
}

// NewCustomer holds the onboarding form fields.
type NewCustomer struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       *string
	DateOfBirth *string
}

func scanCustomer(scanner interface{ Scan(...any) error }) (*model.Customer, error) {
	var c model.Customer
	var phone, dob sql.NullString
	var tier string
	var lastVisit sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.RestaurantID, &c.FirstName, &c.LastName, &c.Email, &phone, &dob,
		&c.TotalPoints, &c.LifetimePoints, &tier, &c.TierProgress, &c.VisitCount, &c.TotalSpent,
		&lastVisit, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.CurrentTier = model.Tier(tier)
	if phone.Valid {
		c.Phone = &phone.String
	}
	if dob.Valid {
		c.DateOfBirth = &dob.String
	}
	if lastVisit.Valid {
		c.LastVisit = &lastVisit.Time
	}
	return &c, nil
}

const customerCols = `id, restaurant_id, first_name, last_name, email, phone, date_of_birth,
	total_points, lifetime_points, current_tier, tier_progress, visit_count, total_spent,
	last_visit, created_at, updated_at`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a customer with zero balances and records the signup ledger
// entry in the same transaction. signupPoints may be zero.
func (s *CustomerStore) Create(ctx context.Context, restaurantID int64, in NewCustomer, signupPoints int) (*model.Customer, error) {
	if err := loyalty.ValidateEvent(model.TxSignup, signupPoints); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin signup: %w", err)
	}
	defer tx.Rollback()

	email := normalizeEmail(in.Email)
	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE restaurant_id = ? AND email = ?`,
		restaurantID, email,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: %s", loyalty.ErrEmailTaken, email)
	}

	now := s.now().UTC()
	cls := loyalty.Classify(0)
	result, err := tx.ExecContext(ctx,
		`INSERT INTO customers (restaurant_id, first_name, last_name, email, phone, date_of_birth, current_tier, tier_progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		restaurantID, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), email,
		nullString(in.Phone), nullString(in.DateOfBirth), string(cls.Tier), cls.ProgressPercent, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := recordEvent(ctx, tx, id, model.TxSignup, signupPoints, EventMeta{Description: "Welcome bonus"}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit signup: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CustomerStore) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerCols+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// GetByEmail looks a customer up within one restaurant. Emails are matched
// case-insensitively.
func (s *CustomerStore) GetByEmail(ctx context.Context, restaurantID int64, email string) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerCols+` FROM customers WHERE restaurant_id = ? AND email = ?`,
		restaurantID, normalizeEmail(email),
	)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by email: %w", err)
	}
	return c, nil
}

// ListByRestaurant returns a restaurant's customers, highest lifetime points first.
func (s *CustomerStore) ListByRestaurant(ctx context.Context, restaurantID int64) ([]model.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+customerCols+` FROM customers WHERE restaurant_id = ? ORDER BY lifetime_points DESC, id ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*s), Valid: true}
}
