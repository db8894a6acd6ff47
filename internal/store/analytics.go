package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/punchcard/internal/analytics"
)

// AnalyticsStore loads the ledger facts the ROI report is computed from.
type AnalyticsStore struct {
	db *sql.DB
}

func NewAnalyticsStore(db *sql.DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

func (s *AnalyticsStore) Purchases(ctx context.Context, restaurantID int64, r analytics.DateRange) ([]analytics.PurchaseFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.customer_id, c.created_at, t.amount_spent, t.points, t.created_at
		 FROM transactions t JOIN customers c ON c.id = t.customer_id
		 WHERE t.restaurant_id = ? AND t.type = 'purchase' AND t.created_at >= ? AND t.created_at < ?
		 ORDER BY t.created_at ASC, t.id ASC`,
		restaurantID, r.Start, r.End,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	facts := []analytics.PurchaseFact{}
	for rows.Next() {
		var f analytics.PurchaseFact
		var amount decimal.NullDecimal
		if err := rows.Scan(&f.CustomerID, &f.CustomerSince, &amount, &f.Points, &f.At); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		f.Amount = amount.Decimal
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (s *AnalyticsStore) Redemptions(ctx context.Context, restaurantID int64, r analytics.DateRange) ([]analytics.RedemptionFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, -points, created_at FROM transactions
		 WHERE restaurant_id = ? AND type = 'redemption' AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`,
		restaurantID, r.Start, r.End,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	facts := []analytics.RedemptionFact{}
	for rows.Next() {
		var f analytics.RedemptionFact
		if err := rows.Scan(&f.CustomerID, &f.Points, &f.At); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// Summary counts points issued in the range plus the current outstanding
// balance and customer totals.
func (s *AnalyticsStore) Summary(ctx context.Context, restaurantID int64, r analytics.DateRange) (analytics.Summary, error) {
	var sum analytics.Summary

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM transactions
		 WHERE restaurant_id = ? AND points > 0 AND created_at >= ? AND created_at < ?`,
		restaurantID, r.Start, r.End,
	).Scan(&sum.PointsIssued)
	if err != nil {
		return sum, fmt.Errorf("sum points issued: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_points), 0), COUNT(*),
		        COALESCE(SUM(CASE WHEN created_at >= ? AND created_at < ? THEN 1 ELSE 0 END), 0)
		 FROM customers WHERE restaurant_id = ?`,
		r.Start, r.End, restaurantID,
	).Scan(&sum.OutstandingPoints, &sum.TotalCustomers, &sum.NewCustomers)
	if err != nil {
		return sum, fmt.Errorf("sum customers: %w", err)
	}
	return sum, nil
}

// Facts loads purchases, redemptions and the summary for the range
// concurrently. The first failure cancels the others.
func (s *AnalyticsStore) Facts(ctx context.Context, restaurantID int64, r analytics.DateRange) (analytics.Facts, error) {
	var f analytics.Facts
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		f.Purchases, err = s.Purchases(ctx, restaurantID, r)
		return err
	})
	g.Go(func() (err error) {
		f.Redemptions, err = s.Redemptions(ctx, restaurantID, r)
		return err
	})
	g.Go(func() (err error) {
		f.Summary, err = s.Summary(ctx, restaurantID, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.Facts{}, err
	}
	return f, nil
}
