package loyalty

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/model"
)

// ValidateEvent checks a point delta for an earn-side ledger event.
// Redemptions are rejected here; they are recorded only by the redemption
// commit, which derives the delta from the reward.
func ValidateEvent(typ model.TransactionType, points int) error {
	switch typ {
	case model.TxSignup:
		if points < 0 {
			return fmt.Errorf("%w: signup points %d must not be negative", ErrInvalidAmount, points)
		}
	case model.TxPurchase, model.TxBonus, model.TxReferral:
		if points <= 0 {
			return fmt.Errorf("%w: %s points %d must be positive", ErrInvalidAmount, typ, points)
		}
	case model.TxRedemption:
		return fmt.Errorf("%w: redemptions are recorded through a reward redemption", ErrInvalidAmount)
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidAmount, typ)
	}
	return nil
}

// ApplyDelta returns the balance after applying a signed point delta.
// Lifetime points only grow. A delta that would take the spendable balance
// below zero fails with ErrInvalidAmount.
func ApplyDelta(b model.Balance, points int) (model.Balance, error) {
	if b.TotalPoints+points < 0 {
		return b, fmt.Errorf("%w: delta %d exceeds balance %d", ErrInvalidAmount, points, b.TotalPoints)
	}
	b.TotalPoints += points
	if points > 0 {
		b.LifetimePoints += points
	}
	return b, nil
}

// DefaultPointsPerCurrency is the earn rate a restaurant gets when none is
// configured: one point per ten currency units.
var DefaultPointsPerCurrency = decimal.New(1, -1)

// PointsForPurchase converts a purchase amount into points at the given
// earn rate (points per currency unit), rounding down.
func PointsForPurchase(amount, pointsPerCurrency decimal.Decimal) (int, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: amount %s must not be negative", ErrInvalidAmount, amount)
	}
	if pointsPerCurrency.IsNegative() {
		return 0, fmt.Errorf("%w: earn rate %s must not be negative", ErrInvalidAmount, pointsPerCurrency)
	}
	return int(amount.Mul(pointsPerCurrency).Floor().IntPart()), nil
}
