package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/punchcard/internal/auth"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
	"github.com/dukerupert/punchcard/internal/websocket"
)

// RewardHandler manages a restaurant's reward catalog.
type RewardHandler struct {
	rewards *store.RewardStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rs, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type rewardRequest struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	PointsRequired int        `json:"points_required"`
	Category       string     `json:"category"`
	MinTier        model.Tier `json:"min_tier"`
	IsActive       *bool      `json:"is_active"`
	TotalAvailable *int       `json:"total_available"`
}

// input converts the request; a missing is_active means active.
func (req rewardRequest) input() store.RewardInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return store.RewardInput{
		Name:           req.Name,
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		Category:       req.Category,
		MinTier:        req.MinTier,
		IsActive:       active,
		TotalAvailable: req.TotalAvailable,
	}
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.ListByRestaurant(r.Context(), auth.RestaurantID(r.Context()))
	if err != nil {
		writeError(w, r, "failed to list rewards", storeError(err))
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	restaurantID := auth.RestaurantID(r.Context())
	reward, err := h.rewards.Create(r.Context(), restaurantID, req.input())
	if err != nil {
		writeError(w, r, "failed to create reward", storeError(err))
		return
	}

	h.logger.Info("reward created", "restaurant_id", restaurantID, "reward_id", reward.ID, "points_required", reward.PointsRequired)
	h.broadcast(websocket.NewMessage(restaurantID, "reward", "created", reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

// rewardFromPath loads the reward named in the path, answering 404 for
// rewards of other restaurants.
func (h *RewardHandler) rewardFromPath(w http.ResponseWriter, r *http.Request) *model.Reward {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid reward ID")
		return nil
	}
	reward, err := h.rewards.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, "failed to load reward", storeError(err))
		return nil
	}
	if reward == nil || reward.RestaurantID != auth.RestaurantID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found", "kind": "not_found"})
		return nil
	}
	return reward
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.rewardFromPath(w, r)
	if existing == nil {
		return
	}
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	reward, err := h.rewards.Update(r.Context(), existing.ID, req.input())
	if err != nil {
		writeError(w, r, "failed to update reward", storeError(err))
		return
	}

	h.broadcast(websocket.NewMessage(reward.RestaurantID, "reward", "updated", reward.ID, nil))
	writeJSON(w, http.StatusOK, reward)
}

// Deactivate hides a reward from customers. Rewards are never deleted
// because ledger entries refer to them.
func (h *RewardHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	existing := h.rewardFromPath(w, r)
	if existing == nil {
		return
	}

	reward, err := h.rewards.SetActive(r.Context(), existing.ID, false)
	if err != nil {
		writeError(w, r, "failed to deactivate reward", storeError(err))
		return
	}

	h.broadcast(websocket.NewMessage(reward.RestaurantID, "reward", "updated", reward.ID, map[string]any{"is_active": false}))
	writeJSON(w, http.StatusOK, reward)
}
