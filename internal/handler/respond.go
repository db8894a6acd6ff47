package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg, "kind": "invalid_input"})
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, loyalty.ErrInvalidAmount), errors.Is(err, loyalty.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, loyalty.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loyalty.ErrIneligibleRedemption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loyalty.ErrRewardExhausted),
		errors.Is(err, loyalty.ErrConcurrentModification),
		errors.Is(err, loyalty.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, loyalty.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err as {"error", "kind"} plus the values behind an
// ineligible redemption. Server-side failures are logged and their cause
// is not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	body := map[string]any{"kind": loyalty.Kind(err)}

	if status >= http.StatusInternalServerError {
		middleware.Logger(r.Context()).Error(msg, "error", err)
		body["error"] = msg
		body["retryable"] = loyalty.Retryable(err)
		writeJSON(w, status, body)
		return
	}

	body["error"] = err.Error()
	var ie *loyalty.IneligibleError
	if errors.As(err, &ie) {
		body["reason"] = ie.Reason
		body["reward_id"] = ie.RewardID
		switch ie.Reason {
		case loyalty.ReasonInsufficientPoints:
			body["balance"] = ie.Balance
			body["required"] = ie.Required
		case loyalty.ReasonTierTooLow:
			body["tier"] = ie.Tier
			body["min_tier"] = ie.MinTier
		}
	}
	writeJSON(w, status, body)
}

// storeError marks a store failure as a persistence error unless it already
// carries a domain kind.
func storeError(err error) error {
	if loyalty.Kind(err) != "internal" {
		return err
	}
	return fmt.Errorf("%w: %w", loyalty.ErrPersistence, err)
}
