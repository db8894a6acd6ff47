package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/middleware"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
	"github.com/dukerupert/punchcard/internal/wallet"
)

// OnboardingHandler serves the public screens a customer sees before they
// have a wallet session: restaurant profile, email lookup, signup and login.
type OnboardingHandler struct {
	restaurants *store.RestaurantStore
	sessions    *store.SessionStore
	wallet      *wallet.Service
	logger      *slog.Logger
}

func NewOnboardingHandler(rs *store.RestaurantStore, ss *store.SessionStore, ws *wallet.Service, logger *slog.Logger) *OnboardingHandler {
	return &OnboardingHandler{restaurants: rs, sessions: ss, wallet: ws, logger: logger}
}

type restaurantProfile struct {
	Name              string          `json:"name"`
	Slug              string          `json:"slug"`
	PointsPerCurrency decimal.Decimal `json:"points_per_currency"`
	SignupBonus       int             `json:"signup_bonus"`
	LoyaltyMode       string          `json:"loyalty_mode"`
	SilverThreshold   int             `json:"silver_threshold"`
	GoldThreshold     int             `json:"gold_threshold"`
}

// restaurantFromSlug writes a 404 and returns nil when the slug is unknown.
func (h *OnboardingHandler) restaurantFromSlug(w http.ResponseWriter, r *http.Request) *model.Restaurant {
	restaurant, err := h.restaurants.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, r, "failed to load restaurant", storeError(err))
		return nil
	}
	if restaurant == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found", "kind": "not_found"})
		return nil
	}
	return restaurant
}

func (h *OnboardingHandler) Profile(w http.ResponseWriter, r *http.Request) {
	restaurant := h.restaurantFromSlug(w, r)
	if restaurant == nil {
		return
	}
	writeJSON(w, http.StatusOK, restaurantProfile{
		Name:              restaurant.Name,
		Slug:              restaurant.Slug,
		PointsPerCurrency: restaurant.PointsPerCurrency,
		SignupBonus:       restaurant.SignupBonus,
		LoyaltyMode:       restaurant.LoyaltyMode,
		SilverThreshold:   loyalty.SilverThreshold,
		GoldThreshold:     loyalty.GoldThreshold,
	})
}

type emailRequest struct {
	Email string `json:"email"`
}

type lookupResponse struct {
	Exists   bool            `json:"exists"`
	Customer *model.Customer `json:"customer,omitempty"`
}

// Lookup tells the onboarding screen whether to show login or signup.
func (h *OnboardingHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	restaurant := h.restaurantFromSlug(w, r)
	if restaurant == nil {
		return
	}
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	c, err := h.wallet.FindByEmail(r.Context(), restaurant.ID, req.Email)
	switch {
	case errors.Is(err, loyalty.ErrNotFound):
		writeJSON(w, http.StatusOK, lookupResponse{Exists: false})
	case err != nil:
		writeError(w, r, "failed to look up customer", err)
	default:
		writeJSON(w, http.StatusOK, lookupResponse{Exists: true, Customer: c})
	}
}

func (h *OnboardingHandler) Signup(w http.ResponseWriter, r *http.Request) {
	restaurant := h.restaurantFromSlug(w, r)
	if restaurant == nil {
		return
	}
	var req wallet.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	c, err := h.wallet.Signup(r.Context(), restaurant.ID, req)
	if err != nil {
		writeError(w, r, "failed to sign up", err)
		return
	}
	if !h.startSession(w, r, c) {
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *OnboardingHandler) Login(w http.ResponseWriter, r *http.Request) {
	restaurant := h.restaurantFromSlug(w, r)
	if restaurant == nil {
		return
	}
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	c, err := h.wallet.FindByEmail(r.Context(), restaurant.ID, req.Email)
	if err != nil {
		writeError(w, r, "failed to log in", err)
		return
	}
	if !h.startSession(w, r, c) {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *OnboardingHandler) startSession(w http.ResponseWriter, r *http.Request, c *model.Customer) bool {
	sess, err := h.sessions.Create(r.Context(), c.ID, c.RestaurantID)
	if err != nil {
		writeError(w, r, "failed to create session", storeError(err))
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(store.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	h.logger.Info("wallet session started", "customer_id", c.ID, "restaurant_id", c.RestaurantID)
	return true
}
