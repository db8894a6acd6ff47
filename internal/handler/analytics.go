package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/punchcard/internal/analytics"
	"github.com/dukerupert/punchcard/internal/auth"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
)

// AnalyticsHandler serves the loyalty ROI dashboard and its settings.
type AnalyticsHandler struct {
	analytics *store.AnalyticsStore
	settings  *store.ROISettingsStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewAnalyticsHandler(as *store.AnalyticsStore, ss *store.ROISettingsStore, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: as, settings: ss, logger: logger, now: time.Now}
}

// Report loads the range's facts alongside the ROI settings and computes
// the report.
func (h *AnalyticsHandler) Report(w http.ResponseWriter, r *http.Request) {
	rng, err := analytics.ParseRange(r.URL.Query().Get("range"), h.now())
	if err != nil {
		writeError(w, r, "invalid range", err)
		return
	}
	restaurant := auth.Merchant(r.Context())

	var (
		facts    analytics.Facts
		settings model.ROISettings
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		facts, err = h.analytics.Facts(ctx, restaurant.ID, rng)
		return err
	})
	g.Go(func() (err error) {
		settings, err = h.settings.Get(ctx, restaurant.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, "failed to load analytics", storeError(err))
		return
	}

	report := analytics.Compute(rng, facts, settings, restaurant.PointsPerCurrency)
	h.logger.Debug("analytics computed", "restaurant_id", restaurant.ID, "range", rng.Label,
		"purchases", len(facts.Purchases), "redemptions", len(facts.Redemptions))
	writeJSON(w, http.StatusOK, report)
}

func (h *AnalyticsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context(), auth.RestaurantID(r.Context()))
	if err != nil {
		writeError(w, r, "failed to load settings", storeError(err))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type roiSettingsRequest struct {
	DefaultProfitMargin     *decimal.Decimal `json:"default_profit_margin"`
	EstimatedCOGSPercentage *decimal.Decimal `json:"estimated_cogs_percentage"`
	TargetROIPercentage     *decimal.Decimal `json:"target_roi_percentage"`
}

// UpdateSettings changes any of the three ROI assumptions; omitted fields
// keep their current value.
func (h *AnalyticsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req roiSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	restaurantID := auth.RestaurantID(r.Context())
	settings, err := h.settings.Get(r.Context(), restaurantID)
	if err != nil {
		writeError(w, r, "failed to load settings", storeError(err))
		return
	}
	if req.DefaultProfitMargin != nil {
		settings.DefaultProfitMargin = *req.DefaultProfitMargin
	}
	if req.EstimatedCOGSPercentage != nil {
		settings.EstimatedCOGSPercentage = *req.EstimatedCOGSPercentage
	}
	if req.TargetROIPercentage != nil {
		settings.TargetROIPercentage = *req.TargetROIPercentage
	}

	updated, err := h.settings.Update(r.Context(), restaurantID, settings)
	if err != nil {
		writeError(w, r, "failed to update settings", storeError(err))
		return
	}
	h.logger.Info("roi settings updated", "restaurant_id", restaurantID)
	writeJSON(w, http.StatusOK, updated)
}
