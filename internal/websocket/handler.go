package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/punchcard/internal/auth"
)

// HandleWebSocket upgrades an authenticated merchant request and streams
// that restaurant's events until the connection closes.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := auth.Merchant(r.Context())
		if merchant == nil {
			http.Error(w, "merchant credentials required", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			hub.logger.Warn("accept websocket", "restaurant_id", merchant.ID, "error", err)
			return
		}

		hub.logger.Debug("dashboard connected", "restaurant_id", merchant.ID)
		client := NewClient(hub, conn, merchant.ID)
		client.Run(r.Context())
	}
}
