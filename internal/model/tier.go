package model

// Tier is a customer's loyalty rank. The set is closed: bronze < silver < gold.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// Rank returns the ordinal of the tier, or -1 for an unknown value.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 0
	case TierSilver:
		return 1
	case TierGold:
		return 2
	default:
		return -1
	}
}

// Valid reports whether t is one of the modeled tiers.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}
