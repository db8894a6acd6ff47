package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
)

// LedgerStore is the append-only points ledger. Every entry and the
// balance change it causes are written in one transaction.
type LedgerStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db, now: time.Now}
}

// EventMeta carries the optional fields of a ledger entry.
type EventMeta struct {
	AmountSpent *decimal.Decimal
	Description string
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var typ string
	var amount decimal.NullDecimal
	var rewardID sql.NullInt64

	err := scanner.Scan(&t.ID, &t.Ref, &t.CustomerID, &t.RestaurantID, &typ, &t.Points, &amount, &t.Description, &rewardID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.Type = model.TransactionType(typ)
	if amount.Valid {
		t.AmountSpent = &amount.Decimal
	}
	if rewardID.Valid {
		t.RewardID = &rewardID.Int64
	}
	return &t, nil
}

const transactionCols = `id, ref, customer_id, restaurant_id, type, points, amount_spent, description, reward_id, created_at`

// RecordEvent appends an earn-side entry (purchase, bonus, referral or
// signup) and applies it to the customer's balances.
func (s *LedgerStore) RecordEvent(ctx context.Context, customerID int64, typ model.TransactionType, points int, meta EventMeta) (*model.Transaction, error) {
	if err := loyalty.ValidateEvent(typ, points); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", loyalty.ErrPersistence, err)
	}
	defer tx.Rollback()

	entry, err := recordEvent(ctx, tx, customerID, typ, points, meta, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", loyalty.ErrPersistence, err)
	}
	return entry, nil
}

func recordEvent(ctx context.Context, tx *sql.Tx, customerID int64, typ model.TransactionType, points int, meta EventMeta, now time.Time) (*model.Transaction, error) {
	var restaurantID int64
	var bal model.Balance
	var spent decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT restaurant_id, total_points, lifetime_points, total_spent FROM customers WHERE id = ?`,
		customerID,
	).Scan(&restaurantID, &bal.TotalPoints, &bal.LifetimePoints, &spent)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: customer %d", loyalty.ErrNotFound, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load balance: %w", loyalty.ErrPersistence, err)
	}

	next, err := loyalty.ApplyDelta(bal, points)
	if err != nil {
		return nil, err
	}
	cls := loyalty.Classify(next.LifetimePoints)

	if typ == model.TxPurchase {
		if meta.AmountSpent != nil {
			spent = spent.Add(*meta.AmountSpent)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE customers SET total_points = ?, lifetime_points = ?, current_tier = ?, tier_progress = ?,
			 visit_count = visit_count + 1, total_spent = ?, last_visit = ?, updated_at = ? WHERE id = ?`,
			next.TotalPoints, next.LifetimePoints, string(cls.Tier), cls.ProgressPercent,
			spent.String(), now, now, customerID,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE customers SET total_points = ?, lifetime_points = ?, current_tier = ?, tier_progress = ?, updated_at = ? WHERE id = ?`,
			next.TotalPoints, next.LifetimePoints, string(cls.Tier), cls.ProgressPercent, now, customerID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: update balance: %w", loyalty.ErrPersistence, err)
	}

	return insertTransaction(ctx, tx, model.Transaction{
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		Type:         typ,
		Points:       points,
		AmountSpent:  meta.AmountSpent,
		Description:  meta.Description,
		CreatedAt:    now,
	})
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t model.Transaction) (*model.Transaction, error) {
	var amount sql.NullString
	if t.AmountSpent != nil {
		amount = sql.NullString{String: t.AmountSpent.String(), Valid: true}
	}
	var rewardID sql.NullInt64
	if t.RewardID != nil {
		rewardID = sql.NullInt64{Int64: *t.RewardID, Valid: true}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (ref, customer_id, restaurant_id, type, points, amount_spent, description, reward_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), t.CustomerID, t.RestaurantID, string(t.Type), t.Points, amount, t.Description, rewardID, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert transaction: %w", loyalty.ErrPersistence, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: last insert id: %w", loyalty.ErrPersistence, err)
	}

	row := tx.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	entry, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("%w: reload transaction: %w", loyalty.ErrPersistence, err)
	}
	return entry, nil
}

// GetBalance returns the customer's current and lifetime points.
func (s *LedgerStore) GetBalance(ctx context.Context, customerID int64) (model.Balance, error) {
	var b model.Balance
	err := s.db.QueryRowContext(ctx,
		`SELECT total_points, lifetime_points FROM customers WHERE id = ?`,
		customerID,
	).Scan(&b.TotalPoints, &b.LifetimePoints)
	if err == sql.ErrNoRows {
		return b, fmt.Errorf("%w: customer %d", loyalty.ErrNotFound, customerID)
	}
	if err != nil {
		return b, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// History yields the customer's ledger entries newest first, at most limit
// of them when limit > 0. Each range over the sequence runs a fresh query.
// The caller must not issue other queries on the same store while ranging:
// the rows hold the only connection.
func (s *LedgerStore) History(ctx context.Context, customerID int64, limit int) iter.Seq2[model.Transaction, error] {
	return func(yield func(model.Transaction, error) bool) {
		query := `SELECT ` + transactionCols + ` FROM transactions WHERE customer_id = ? ORDER BY created_at DESC, id DESC`
		args := []any{customerID}
		if limit > 0 {
			query += ` LIMIT ?`
			args = append(args, limit)
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(model.Transaction{}, fmt.Errorf("list transactions: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				yield(model.Transaction{}, fmt.Errorf("scan transaction: %w", err))
				return
			}
			if !yield(*t, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Transaction{}, fmt.Errorf("iterate transactions: %w", err))
		}
	}
}

// Recent collects up to limit entries from History.
func (s *LedgerStore) Recent(ctx context.Context, customerID int64, limit int) ([]model.Transaction, error) {
	var entries []model.Transaction
	for t, err := range s.History(ctx, customerID, limit) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, t)
	}
	return entries, nil
}

// RedemptionCommit describes one redemption to commit. ExpectedTotal, Cost
// and MinTier are the balance and reward terms the caller validated against;
// the commit fails with ErrConcurrentModification if any of them changed in
// storage since. An empty MinTier means bronze.
type RedemptionCommit struct {
	CustomerID    int64
	RestaurantID  int64
	RewardID      int64
	Cost          int
	MinTier       model.Tier
	ExpectedTotal int
	Description   string
}

// CommitRedemption debits the customer, appends the redemption entry and
// bumps the reward's redeemed counter as one unit. On any failure nothing
// is written.
func (s *LedgerStore) CommitRedemption(ctx context.Context, c RedemptionCommit) (*model.Transaction, error) {
	if c.Cost <= 0 || c.ExpectedTotal < c.Cost {
		return nil, fmt.Errorf("%w: cost %d against balance %d", loyalty.ErrInvalidAmount, c.Cost, c.ExpectedTotal)
	}
	if c.MinTier == "" {
		c.MinTier = model.TierBronze
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", loyalty.ErrPersistence, err)
	}
	defer tx.Rollback()

	now := s.now().UTC()

	result, err := tx.ExecContext(ctx,
		`UPDATE customers SET total_points = ?, updated_at = ? WHERE id = ? AND total_points = ?`,
		c.ExpectedTotal-c.Cost, now, c.CustomerID, c.ExpectedTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: debit customer: %w", loyalty.ErrPersistence, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("%w: rows affected: %w", loyalty.ErrPersistence, err)
	} else if n == 0 {
		return nil, fmt.Errorf("%w: customer %d balance is no longer %d", loyalty.ErrConcurrentModification, c.CustomerID, c.ExpectedTotal)
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE rewards SET total_redeemed = total_redeemed + 1, updated_at = ?
		 WHERE id = ? AND restaurant_id = ? AND is_active = 1
		   AND points_required = ? AND min_tier = ?
		   AND (total_available IS NULL OR total_redeemed < total_available)`,
		now, c.RewardID, c.RestaurantID, c.Cost, string(c.MinTier),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: increment reward: %w", loyalty.ErrPersistence, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("%w: rows affected: %w", loyalty.ErrPersistence, err)
	} else if n == 0 {
		return nil, rewardUnavailable(ctx, tx, c)
	}

	rewardID := c.RewardID
	entry, err := insertTransaction(ctx, tx, model.Transaction{
		CustomerID:   c.CustomerID,
		RestaurantID: c.RestaurantID,
		Type:         model.TxRedemption,
		Points:       -c.Cost,
		Description:  c.Description,
		RewardID:     &rewardID,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", loyalty.ErrPersistence, err)
	}
	return entry, nil
}

// rewardUnavailable explains why the reward counter update matched no row.
func rewardUnavailable(ctx context.Context, tx *sql.Tx, c RedemptionCommit) error {
	var (
		active    bool
		cost      int
		minTier   string
		redeemed  int
		available sql.NullInt64
	)
	err := tx.QueryRowContext(ctx,
		`SELECT is_active, points_required, min_tier, total_redeemed, total_available
		 FROM rewards WHERE id = ? AND restaurant_id = ?`,
		c.RewardID, c.RestaurantID,
	).Scan(&active, &cost, &minTier, &redeemed, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: reward %d", loyalty.ErrNotFound, c.RewardID)
	}
	if err != nil {
		return fmt.Errorf("%w: load reward: %w", loyalty.ErrPersistence, err)
	}
	if !active {
		return &loyalty.IneligibleError{Reason: loyalty.ReasonInactive, RewardID: c.RewardID, Balance: c.ExpectedTotal, Required: c.Cost}
	}
	if cost != c.Cost || model.Tier(minTier) != c.MinTier {
		return fmt.Errorf("%w: reward %d is now %d points for %s, validated %d for %s",
			loyalty.ErrConcurrentModification, c.RewardID, cost, minTier, c.Cost, c.MinTier)
	}
	return fmt.Errorf("%w: reward %d redeemed %d of %d", loyalty.ErrRewardExhausted, c.RewardID, redeemed, available.Int64)
}
