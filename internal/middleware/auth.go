package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/punchcard/internal/auth"
	"github.com/dukerupert/punchcard/internal/store"
)

const SessionCookieName = "punchcard_session"

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": kind})
}

// RequireCustomer validates the wallet session cookie and populates the
// customer context.
func RequireCustomer(sessionStore *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "please log in to view your wallet", "unauthenticated")
				return
			}

			sess, err := sessionStore.GetByToken(r.Context(), cookie.Value)
			if err != nil {
				Logger(r.Context()).Error("load session", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to load session", "internal")
				return
			}
			if sess == nil {
				writeError(w, http.StatusUnauthorized, "session expired, please log in again", "unauthenticated")
				return
			}

			ctx := auth.WithCustomer(r.Context(), auth.CustomerContext{
				CustomerID:   sess.CustomerID,
				RestaurantID: sess.RestaurantID,
				SessionID:    sess.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMerchant checks HTTP Basic credentials: the restaurant slug as the
// username and its API key as the password.
func RequireMerchant(restaurantStore *store.RestaurantStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug, key, ok := r.BasicAuth()
			if !ok || slug == "" || key == "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="punchcard merchant"`)
				writeError(w, http.StatusUnauthorized, "merchant credentials required", "unauthenticated")
				return
			}

			restaurant, err := restaurantStore.Authenticate(r.Context(), slug, key)
			if err != nil {
				Logger(r.Context()).Error("authenticate merchant", "slug", slug, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to authenticate", "internal")
				return
			}
			if restaurant == nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="punchcard merchant"`)
				writeError(w, http.StatusUnauthorized, "invalid merchant credentials", "unauthenticated")
				return
			}

			ctx := auth.WithMerchant(r.Context(), restaurant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
