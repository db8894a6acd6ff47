package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
)

const (
	keyProfitMargin = "default_profit_margin"
	keyCOGS         = "estimated_cogs_percentage"
	keyTargetROI    = "target_roi_percentage"
)

// DefaultROISettings are used for any key a restaurant has not set.
func DefaultROISettings() model.ROISettings {
	return model.ROISettings{
		DefaultProfitMargin:     decimal.RequireFromString("0.30"),
		EstimatedCOGSPercentage: decimal.RequireFromString("0.35"),
		TargetROIPercentage:     decimal.NewFromInt(200),
	}
}

// ROISettingsStore keeps per-restaurant analytics assumptions as key/value rows.
type ROISettingsStore struct {
	db *sql.DB
}

func NewROISettingsStore(db *sql.DB) *ROISettingsStore {
	return &ROISettingsStore{db: db}
}

func (s *ROISettingsStore) Get(ctx context.Context, restaurantID int64) (model.ROISettings, error) {
	settings := DefaultROISettings()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM roi_settings WHERE restaurant_id = ?`, restaurantID)
	if err != nil {
		return settings, fmt.Errorf("get roi settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, fmt.Errorf("scan roi setting: %w", err)
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return settings, fmt.Errorf("parse roi setting %q: %w", key, err)
		}
		switch key {
		case keyProfitMargin:
			settings.DefaultProfitMargin = d
		case keyCOGS:
			settings.EstimatedCOGSPercentage = d
		case keyTargetROI:
			settings.TargetROIPercentage = d
		}
	}
	return settings, rows.Err()
}

// Update writes all three settings. Margin and COGS must be fractions in
// [0, 1]; the target must not be negative.
func (s *ROISettingsStore) Update(ctx context.Context, restaurantID int64, in model.ROISettings) (model.ROISettings, error) {
	one := decimal.NewFromInt(1)
	if in.DefaultProfitMargin.IsNegative() || in.DefaultProfitMargin.GreaterThan(one) {
		return in, fmt.Errorf("%w: profit margin %s must be between 0 and 1", loyalty.ErrInvalidInput, in.DefaultProfitMargin)
	}
	if in.EstimatedCOGSPercentage.IsNegative() || in.EstimatedCOGSPercentage.GreaterThan(one) {
		return in, fmt.Errorf("%w: cogs %s must be between 0 and 1", loyalty.ErrInvalidInput, in.EstimatedCOGSPercentage)
	}
	if in.TargetROIPercentage.IsNegative() {
		return in, fmt.Errorf("%w: target roi %s must not be negative", loyalty.ErrInvalidInput, in.TargetROIPercentage)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return in, fmt.Errorf("begin roi settings: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	values := map[string]decimal.Decimal{
		keyProfitMargin: in.DefaultProfitMargin,
		keyCOGS:         in.EstimatedCOGSPercentage,
		keyTargetROI:    in.TargetROIPercentage,
	}
	for key, value := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO roi_settings (restaurant_id, key, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(restaurant_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			restaurantID, key, value.String(), now,
		)
		if err != nil {
			return in, fmt.Errorf("set roi setting %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return in, fmt.Errorf("commit roi settings: %w", err)
	}
	return s.Get(ctx, restaurantID)
}
