package loyalty

import (
	"errors"
	"fmt"

	"github.com/dukerupert/punchcard/internal/model"
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrIneligibleRedemption   = errors.New("ineligible redemption")
	ErrRewardExhausted        = errors.New("reward exhausted")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPersistence            = errors.New("persistence failure")
	ErrNotFound               = errors.New("not found")
	ErrEmailTaken             = errors.New("email already registered")
	ErrInvalidInput           = errors.New("invalid input")
)

// Reasons a reward cannot be redeemed.
const (
	ReasonInactive           = "inactive"
	ReasonTierTooLow         = "tier_too_low"
	ReasonInsufficientPoints = "insufficient_points"
)

// IneligibleError describes which eligibility check failed and the values
// that failed it.
type IneligibleError struct {
	Reason   string
	RewardID int64
	Balance  int
	Required int
	Tier     model.Tier
	MinTier  model.Tier
}

func (e *IneligibleError) Error() string {
	switch e.Reason {
	case ReasonInactive:
		return fmt.Sprintf("ineligible redemption: reward %d is not active", e.RewardID)
	case ReasonTierTooLow:
		return fmt.Sprintf("ineligible redemption: reward %d requires %s tier, customer is %s", e.RewardID, e.MinTier, e.Tier)
	default:
		return fmt.Sprintf("ineligible redemption: reward %d costs %d points, balance is %d", e.RewardID, e.Required, e.Balance)
	}
}

func (e *IneligibleError) Unwrap() error {
	return ErrIneligibleRedemption
}

// Retryable reports whether the caller may retry the same request unchanged.
// Only persistence failures qualify; every other kind needs new input.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// Kind returns a stable name for the domain error kind carried by err, or
// "internal" when err is not a domain error.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrIneligibleRedemption):
		return "ineligible_redemption"
	case errors.Is(err, ErrRewardExhausted):
		return "reward_exhausted"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
