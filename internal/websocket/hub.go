package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/punchcard/internal/wallet"
)

// Message is a live dashboard notification. Messages are delivered only to
// dashboards of the restaurant they belong to.
type Message struct {
	Type         string         `json:"type"`
	Entity       string         `json:"entity"`
	Action       string         `json:"action"`
	RestaurantID int64          `json:"restaurant_id"`
	ID           int64          `json:"id,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// NewMessage builds a Message whose Type is "<entity>_<action>".
func NewMessage(restaurantID int64, entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:         entity + "_" + action,
		Entity:       entity,
		Action:       action,
		RestaurantID: restaurantID,
		ID:           id,
		Extra:        extra,
	}
}

// Hub fans dashboard messages out to connected merchants, grouped by
// restaurant so a broadcast only visits that restaurant's dashboards.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.restaurantID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.restaurantID] = room
	}
	room[c] = struct{}{}
}

// Unregister drops c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.restaurantID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.restaurantID)
	}
}

// Broadcast queues msg for every dashboard of msg.RestaurantID.
// A client whose buffer is full misses the message instead of stalling the caller.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode dashboard message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var dropped int
	for c := range h.rooms[msg.RestaurantID] {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("dashboard buffer full", "type", msg.Type, "restaurant_id", msg.RestaurantID, "dropped", dropped)
	}
}

// Notify turns a committed wallet event into a dashboard message.
func (h *Hub) Notify(e wallet.Event) {
	extra := map[string]any{
		"customer_id":  e.CustomerID,
		"points":       e.Points,
		"total_points": e.TotalPoints,
	}
	if e.Ref != "" {
		extra["ref"] = e.Ref
	}

	switch e.Type {
	case wallet.EventCustomerCreated:
		h.Broadcast(NewMessage(e.RestaurantID, "customer", "created", e.CustomerID, extra))
	case wallet.EventPointsChanged:
		h.Broadcast(NewMessage(e.RestaurantID, "customer_points", "changed", e.CustomerID, extra))
	case wallet.EventRewardRedeemed:
		h.Broadcast(NewMessage(e.RestaurantID, "reward", "redeemed", e.RewardID, extra))
	default:
		h.logger.Warn("unknown wallet event", "type", e.Type)
	}
}

// ClientCount returns the number of connected dashboards across all restaurants.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}
