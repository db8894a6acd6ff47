package loyalty

import (
	"errors"
	"fmt"

	"github.com/dukerupert/punchcard/internal/model"
)

// CheckRedeemable returns nil if the customer can redeem the reward right
// now, or an *IneligibleError naming the first failed check. The customer's
// tier is derived from lifetime points rather than read from the stored
// field, so a stale snapshot cannot unlock a reward.
func CheckRedeemable(c model.Customer, r model.Reward) error {
	tier := Classify(c.LifetimePoints).Tier

	if !r.IsActive {
		return &IneligibleError{Reason: ReasonInactive, RewardID: r.ID, Balance: c.TotalPoints, Required: r.PointsRequired, Tier: tier, MinTier: r.MinTier}
	}
	if !TierAtLeast(tier, r.MinTier) {
		return &IneligibleError{Reason: ReasonTierTooLow, RewardID: r.ID, Balance: c.TotalPoints, Required: r.PointsRequired, Tier: tier, MinTier: r.MinTier}
	}
	if c.TotalPoints < r.PointsRequired {
		return &IneligibleError{Reason: ReasonInsufficientPoints, RewardID: r.ID, Balance: c.TotalPoints, Required: r.PointsRequired, Tier: tier, MinTier: r.MinTier}
	}
	return nil
}

// IsRedeemable is the boolean form of CheckRedeemable.
func IsRedeemable(c model.Customer, r model.Reward) bool {
	return CheckRedeemable(c, r) == nil
}

// ListEligible returns the rewards the customer can redeem, in catalog order.
func ListEligible(c model.Customer, all []model.Reward) []model.Reward {
	eligible := make([]model.Reward, 0, len(all))
	for _, r := range all {
		if IsRedeemable(c, r) {
			eligible = append(eligible, r)
		}
	}
	return eligible
}

// CheckAvailability fails with ErrRewardExhausted once a capped reward has
// been redeemed as many times as it allows.
func CheckAvailability(r model.Reward) error {
	if r.TotalAvailable != nil && r.TotalRedeemed >= *r.TotalAvailable {
		return fmt.Errorf("%w: reward %d redeemed %d of %d", ErrRewardExhausted, r.ID, r.TotalRedeemed, *r.TotalAvailable)
	}
	return nil
}

// RewardView is a catalog entry annotated for one customer.
type RewardView struct {
	model.Reward
	Redeemable  bool   `json:"redeemable"`
	Reason      string `json:"reason,omitempty"`
	PointsShort int    `json:"points_short,omitempty"`
}

// Annotate marks every reward in the catalog with whether the customer can
// redeem it and, if not, why.
func Annotate(c model.Customer, all []model.Reward) []RewardView {
	views := make([]RewardView, 0, len(all))
	for _, r := range all {
		v := RewardView{Reward: r, Redeemable: true}
		if err := CheckRedeemable(c, r); err != nil {
			v.Redeemable = false
			var ie *IneligibleError
			if errors.As(err, &ie) {
				v.Reason = ie.Reason
			}
		} else if err := CheckAvailability(r); err != nil {
			v.Redeemable = false
			v.Reason = "exhausted"
		}
		if short := r.PointsRequired - c.TotalPoints; short > 0 {
			v.PointsShort = short
		}
		views = append(views, v)
	}
	return views
}
