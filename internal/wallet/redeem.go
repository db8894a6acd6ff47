package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
)

// RedemptionState is the lifecycle of one redemption attempt.
type RedemptionState string

const (
	StateInitiated  RedemptionState = "initiated"
	StateValidated  RedemptionState = "validated"
	StateCommitted  RedemptionState = "committed"
	StateRejected   RedemptionState = "rejected"
	StateRolledBack RedemptionState = "rolled_back"
)

var transitions = map[RedemptionState][]RedemptionState{
	StateInitiated: {StateValidated, StateRejected},
	StateValidated: {StateCommitted, StateRolledBack},
}

// CanTransition reports whether a redemption may move from one state to
// another. Committed, rejected and rolled back are terminal.
func CanTransition(from, to RedemptionState) bool {
	return slices.Contains(transitions[from], to)
}

type redemption struct {
	state  RedemptionState
	logger *slog.Logger
}

func (r *redemption) moveTo(next RedemptionState, args ...any) {
	if !CanTransition(r.state, next) {
		r.logger.Error("invalid redemption transition", "from", r.state, "to", next)
	}
	r.logger.Debug("redemption "+string(next), append([]any{"from", r.state}, args...)...)
	r.state = next
}

type redeemed struct {
	customer model.Customer
	reward   model.Reward
	entry    *model.Transaction
}

// Redeem spends the customer's points on a reward. The customer and reward
// are re-read from storage; the debit, the ledger entry and the reward
// counter commit together or not at all. If another writer changed the
// balance or the reward's price or tier between validation and commit, the
// whole attempt is re-run once.
func (s *Service) Redeem(ctx context.Context, customerID, rewardID int64) (*model.Transaction, error) {
	logger := s.logger.With("customer_id", customerID, "reward_id", rewardID)

	var result *redeemed
	err := func() error {
		unlock := s.locks.Lock(customerID)
		defer unlock()

		attempt := 0
		backoff := retry.WithMaxRetries(1, retry.NewConstant(s.retryDelay))
		return retry.Do(ctx, backoff, func(ctx context.Context) error {
			attempt++
			r, err := s.attemptRedeem(ctx, logger.With("attempt", attempt), customerID, rewardID)
			if errors.Is(err, loyalty.ErrConcurrentModification) {
				return retry.RetryableError(err)
			}
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	}()
	if err != nil {
		logger.Info("redemption failed", "kind", loyalty.Kind(err), "error", err)
		return nil, err
	}

	logger.Info("reward redeemed", "points", result.reward.PointsRequired, "ref", result.entry.Ref)
	s.notify(Event{
		Type:         EventRewardRedeemed,
		RestaurantID: result.customer.RestaurantID,
		CustomerID:   customerID,
		RewardID:     rewardID,
		Points:       result.entry.Points,
		TotalPoints:  result.customer.TotalPoints + result.entry.Points,
		Ref:          result.entry.Ref,
	})
	s.sendReceipt(ctx, logger, result)
	return result.entry, nil
}

func (s *Service) attemptRedeem(ctx context.Context, logger *slog.Logger, customerID, rewardID int64) (*redeemed, error) {
	rd := &redemption{state: StateInitiated, logger: logger}

	c, err := s.customer(ctx, customerID)
	if err != nil {
		rd.moveTo(StateRejected, "error", err)
		return nil, err
	}
	reward, err := s.rewards.GetByID(ctx, rewardID)
	if err != nil {
		err = persistence("load reward", err)
		rd.moveTo(StateRejected, "error", err)
		return nil, err
	}
	if reward == nil || reward.RestaurantID != c.RestaurantID {
		err := fmt.Errorf("%w: reward %d", loyalty.ErrNotFound, rewardID)
		rd.moveTo(StateRejected, "error", err)
		return nil, err
	}

	if err := loyalty.CheckRedeemable(*c, *reward); err != nil {
		rd.moveTo(StateRejected, "error", err)
		return nil, err
	}
	if err := loyalty.CheckAvailability(*reward); err != nil {
		rd.moveTo(StateRejected, "error", err)
		return nil, err
	}
	rd.moveTo(StateValidated, "balance", c.TotalPoints, "cost", reward.PointsRequired)

	entry, err := s.ledger.CommitRedemption(ctx, store.RedemptionCommit{
		CustomerID:    c.ID,
		RestaurantID:  c.RestaurantID,
		RewardID:      reward.ID,
		Cost:          reward.PointsRequired,
		MinTier:       reward.MinTier,
		ExpectedTotal: c.TotalPoints,
		Description:   "Redeemed: " + reward.Name,
	})
	if err != nil {
		rd.moveTo(StateRolledBack, "error", err)
		return nil, err
	}
	rd.moveTo(StateCommitted, "ref", entry.Ref)

	return &redeemed{customer: *c, reward: *reward, entry: entry}, nil
}

func (s *Service) sendReceipt(ctx context.Context, logger *slog.Logger, r *redeemed) {
	if s.receipts == nil {
		return
	}
	restaurant, err := s.restaurant(ctx, r.customer.RestaurantID)
	if err != nil {
		logger.Warn("load restaurant for receipt", "error", err)
		return
	}
	if err := s.receipts.SendRedemptionReceipt(ctx, *restaurant, r.customer, r.reward, *r.entry); err != nil {
		logger.Warn("send redemption receipt", "error", err)
	}
}
