package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/auth"
	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
	"github.com/dukerupert/punchcard/internal/wallet"
)

// MerchantHandler serves the restaurant dashboard's customer views and the
// staff-side point crediting.
type MerchantHandler struct {
	restaurants *store.RestaurantStore
	customers   *store.CustomerStore
	wallet      *wallet.Service
	logger      *slog.Logger
}

func NewMerchantHandler(rs *store.RestaurantStore, cs *store.CustomerStore, ws *wallet.Service, logger *slog.Logger) *MerchantHandler {
	return &MerchantHandler{restaurants: rs, customers: cs, wallet: ws, logger: logger}
}

func (h *MerchantHandler) Restaurant(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.Merchant(r.Context()))
}

type earningRequest struct {
	PointsPerCurrency *decimal.Decimal `json:"points_per_currency"`
	SignupBonus       *int             `json:"signup_bonus"`
}

// UpdateEarning changes the earn rate and signup bonus. Omitted fields keep
// their current value.
func (h *MerchantHandler) UpdateEarning(w http.ResponseWriter, r *http.Request) {
	var req earningRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	current := auth.Merchant(r.Context())
	rate, bonus := current.PointsPerCurrency, current.SignupBonus
	if req.PointsPerCurrency != nil {
		rate = *req.PointsPerCurrency
	}
	if req.SignupBonus != nil {
		bonus = *req.SignupBonus
	}
	if rate.IsNegative() {
		writeError(w, r, "invalid earn rate", fmt.Errorf("%w: points_per_currency %s must not be negative", loyalty.ErrInvalidAmount, rate))
		return
	}
	if bonus < 0 {
		writeError(w, r, "invalid signup bonus", fmt.Errorf("%w: signup_bonus %d must not be negative", loyalty.ErrInvalidAmount, bonus))
		return
	}

	updated, err := h.restaurants.UpdateEarning(r.Context(), current.ID, rate, bonus)
	if err != nil {
		writeError(w, r, "failed to update earning", storeError(err))
		return
	}
	h.logger.Info("earning updated", "restaurant_id", current.ID, "points_per_currency", rate.String(), "signup_bonus", bonus)
	writeJSON(w, http.StatusOK, updated)
}

type customerSummary struct {
	model.Customer
	Classification loyalty.Classification `json:"classification"`
}

func (h *MerchantHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.ListByRestaurant(r.Context(), auth.RestaurantID(r.Context()))
	if err != nil {
		writeError(w, r, "failed to list customers", storeError(err))
		return
	}
	out := make([]customerSummary, 0, len(customers))
	for _, c := range customers {
		out = append(out, customerSummary{Customer: c, Classification: loyalty.Classify(c.LifetimePoints)})
	}
	writeJSON(w, http.StatusOK, out)
}

// customerFromPath loads the customer named in the path, answering 404 for
// customers of other restaurants.
func (h *MerchantHandler) customerFromPath(w http.ResponseWriter, r *http.Request) *model.Customer {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid customer ID")
		return nil
	}
	c, err := h.customers.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, "failed to load customer", storeError(err))
		return nil
	}
	if c == nil || c.RestaurantID != auth.RestaurantID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found", "kind": "not_found"})
		return nil
	}
	return c
}

func (h *MerchantHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c := h.customerFromPath(w, r)
	if c == nil {
		return
	}
	entries, err := h.wallet.History(r.Context(), c.ID, wallet.RecentLimit)
	if err != nil {
		writeError(w, r, "failed to load transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customer":       c,
		"classification": loyalty.Classify(c.LifetimePoints),
		"transactions":   entries,
	})
}

// AddPoints credits a purchase, bonus or referral.
func (h *MerchantHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid customer ID")
		return
	}
	var req wallet.EarnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	entry, err := h.wallet.Earn(r.Context(), auth.RestaurantID(r.Context()), id, req)
	if err != nil {
		writeError(w, r, "failed to add points", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
