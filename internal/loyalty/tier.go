package loyalty

import "github.com/dukerupert/punchcard/internal/model"

// Lifetime-point lower bounds for each tier. Bounds are inclusive.
const (
	SilverThreshold = 500
	GoldThreshold   = 1000
)

// Classification is the tier standing derived from lifetime points.
type Classification struct {
	Tier            model.Tier  `json:"tier"`
	ProgressPercent int         `json:"progress_percent"`
	NextTier        *model.Tier `json:"next_tier"`
	PointsToNext    int         `json:"points_to_next"`
}

// Classify maps lifetime points to a tier and the progress toward the next
// one. Gold is the top tier: it reports 100% and no next tier.
func Classify(lifetimePoints int) Classification {
	if lifetimePoints < 0 {
		lifetimePoints = 0
	}

	var tier, next model.Tier
	var nextThreshold int
	switch {
	case lifetimePoints >= GoldThreshold:
		return Classification{Tier: model.TierGold, ProgressPercent: 100}
	case lifetimePoints >= SilverThreshold:
		tier, next, nextThreshold = model.TierSilver, model.TierGold, GoldThreshold
	default:
		tier, next, nextThreshold = model.TierBronze, model.TierSilver, SilverThreshold
	}

	progress := lifetimePoints * 100 / nextThreshold
	if progress > 100 {
		progress = 100
	}

	return Classification{
		Tier:            tier,
		ProgressPercent: progress,
		NextTier:        &next,
		PointsToNext:    nextThreshold - lifetimePoints,
	}
}

// TierAtLeast reports whether tier ranks at or above min.
func TierAtLeast(tier, min model.Tier) bool {
	return tier.Valid() && min.Valid() && tier.Rank() >= min.Rank()
}
