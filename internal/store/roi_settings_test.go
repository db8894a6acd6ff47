package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
)

func TestROISettingsDefaults(t *testing.T) {
	ts := setupTestDB(t)
	rs := NewROISettingsStore(ts.db)
	r := createTestRestaurant(t, ts, "cafe", 0)

	got, err := rs.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := DefaultROISettings()
	if !got.DefaultProfitMargin.Equal(want.DefaultProfitMargin) ||
		!got.EstimatedCOGSPercentage.Equal(want.EstimatedCOGSPercentage) ||
		!got.TargetROIPercentage.Equal(want.TargetROIPercentage) {
		t.Errorf("settings = %+v, want defaults %+v", got, want)
	}
}

func TestROISettingsUpdate(t *testing.T) {
	ts := setupTestDB(t)
	rs := NewROISettingsStore(ts.db)
	ctx := context.Background()
	r := createTestRestaurant(t, ts, "cafe", 0)
	other := createTestRestaurant(t, ts, "diner", 0)

	in := model.ROISettings{
		DefaultProfitMargin:     decimal.RequireFromString("0.4"),
		EstimatedCOGSPercentage: decimal.RequireFromString("0.25"),
		TargetROIPercentage:     decimal.RequireFromString("150"),
	}
	got, err := rs.Update(ctx, r.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.DefaultProfitMargin.Equal(in.DefaultProfitMargin) {
		t.Errorf("margin = %s, want 0.4", got.DefaultProfitMargin)
	}
	if !got.TargetROIPercentage.Equal(in.TargetROIPercentage) {
		t.Errorf("target = %s, want 150", got.TargetROIPercentage)
	}

	// Update is idempotent and scoped to one restaurant.
	if _, err := rs.Update(ctx, r.ID, in); err != nil {
		t.Fatalf("second update: %v", err)
	}
	untouched, _ := rs.Get(ctx, other.ID)
	if !untouched.DefaultProfitMargin.Equal(DefaultROISettings().DefaultProfitMargin) {
		t.Errorf("other margin = %s, want default", untouched.DefaultProfitMargin)
	}

	in.EstimatedCOGSPercentage = decimal.RequireFromString("1.5")
	if _, err := rs.Update(ctx, r.ID, in); !errors.Is(err, loyalty.ErrInvalidInput) {
		t.Errorf("invalid cogs err = %v, want ErrInvalidInput", err)
	}
}
