package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/punchcard/internal/auth"
	"github.com/dukerupert/punchcard/internal/middleware"
	"github.com/dukerupert/punchcard/internal/store"
	"github.com/dukerupert/punchcard/internal/wallet"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// WalletHandler serves the logged-in customer's wallet.
type WalletHandler struct {
	wallet   *wallet.Service
	sessions *store.SessionStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewWalletHandler(ws *wallet.Service, ss *store.SessionStore, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallet: ws, sessions: ss, logger: logger, now: time.Now}
}

func (h *WalletHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.wallet.Snapshot(r.Context(), auth.CustomerID(r.Context()))
	if err != nil {
		writeError(w, r, "failed to load wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.wallet.History(r.Context(), auth.CustomerID(r.Context()), limit)
	if err != nil {
		writeError(w, r, "failed to load transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Rewards lists the catalog annotated for this customer, or with
// ?eligible=true only what they can redeem now.
func (h *WalletHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	customerID := auth.CustomerID(r.Context())
	if r.URL.Query().Get("eligible") == "true" {
		rewards, err := h.wallet.Eligible(r.Context(), customerID)
		if err != nil {
			writeError(w, r, "failed to list rewards", err)
			return
		}
		writeJSON(w, http.StatusOK, rewards)
		return
	}

	views, err := h.wallet.Catalog(r.Context(), customerID)
	if err != nil {
		writeError(w, r, "failed to list rewards", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *WalletHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	rewardID, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid reward ID")
		return
	}

	entry, err := h.wallet.Redeem(r.Context(), auth.CustomerID(r.Context()), rewardID)
	if err != nil {
		writeError(w, r, "failed to redeem reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type qrPayload struct {
	CustomerID   int64  `json:"customer_id"`
	RestaurantID int64  `json:"restaurant_id"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        string `json:"nonce"`
}

// QR returns the payload the wallet renders as a QR code for staff to scan
// when crediting a purchase.
func (h *WalletHandler) QR(w http.ResponseWriter, r *http.Request) {
	cc, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, qrPayload{
		CustomerID:   cc.CustomerID,
		RestaurantID: cc.RestaurantID,
		Timestamp:    h.now().UnixMilli(),
		Nonce:        uuid.NewString(),
	})
}

func (h *WalletHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cc, _ := auth.FromContext(r.Context())
	if err := h.sessions.Delete(r.Context(), cc.SessionID); err != nil {
		writeError(w, r, "failed to log out", storeError(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}
