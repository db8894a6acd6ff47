// Package seed bootstraps restaurants and their reward catalogs from a YAML
// file at startup.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
)

type File struct {
	Restaurants []Restaurant `yaml:"restaurants"`
}

type Restaurant struct {
	Name              string   `yaml:"name"`
	Slug              string   `yaml:"slug"`
	APIKey            string   `yaml:"api_key"`
	PointsPerCurrency string   `yaml:"points_per_currency"`
	SignupBonus       int      `yaml:"signup_bonus"`
	LoyaltyMode       string   `yaml:"loyalty_mode"`
	Rewards           []Reward `yaml:"rewards"`
}

type Reward struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	PointsRequired int    `yaml:"points_required"`
	Category       string `yaml:"category"`
	MinTier        string `yaml:"min_tier"`
	Inactive       bool   `yaml:"inactive"`
	TotalAvailable *int   `yaml:"total_available"`
}

// Load reads and parses a seed file. API keys may reference environment
// variables as ${NAME}.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	seen := make(map[string]bool)
	for i := range f.Restaurants {
		r := &f.Restaurants[i]
		r.APIKey = os.ExpandEnv(r.APIKey)
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("restaurant %d: %w", i, err)
		}
		if seen[r.Slug] {
			return nil, fmt.Errorf("restaurant %d: duplicate slug %q", i, r.Slug)
		}
		seen[r.Slug] = true
	}
	return &f, nil
}

func (r *Restaurant) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = strings.TrimSpace(r.Slug)
	switch {
	case r.Name == "":
		return fmt.Errorf("name is required")
	case r.Slug == "":
		return fmt.Errorf("slug is required")
	case r.APIKey == "":
		return fmt.Errorf("%s: api_key is required", r.Slug)
	case r.SignupBonus < 0:
		return fmt.Errorf("%s: signup_bonus must not be negative", r.Slug)
	}
	if _, err := r.earnRate(); err != nil {
		return err
	}
	switch r.LoyaltyMode {
	case "", model.LoyaltyModeBlanket, model.LoyaltyModeMenu:
	default:
		return fmt.Errorf("%s: unknown loyalty_mode %q", r.Slug, r.LoyaltyMode)
	}
	return nil
}

// earnRate parses points_per_currency. An omitted rate means the default.
func (r *Restaurant) earnRate() (decimal.Decimal, error) {
	if strings.TrimSpace(r.PointsPerCurrency) == "" {
		return loyalty.DefaultPointsPerCurrency, nil
	}
	rate, err := decimal.NewFromString(r.PointsPerCurrency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: points_per_currency: %w", r.Slug, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s: points_per_currency must not be negative", r.Slug)
	}
	return rate, nil
}

// Apply creates every restaurant in f that does not exist yet, together with
// its rewards. Existing restaurants are left untouched, so Apply is safe to
// run on every start.
func Apply(ctx context.Context, f *File, restaurants *store.RestaurantStore, rewards *store.RewardStore, logger *slog.Logger) error {
	for _, sr := range f.Restaurants {
		existing, err := restaurants.GetBySlug(ctx, sr.Slug)
		if err != nil {
			return fmt.Errorf("check restaurant %s: %w", sr.Slug, err)
		}
		if existing != nil {
			logger.Debug("seed restaurant exists", "slug", sr.Slug)
			continue
		}

		rate, _ := sr.earnRate()
		r, err := restaurants.Create(ctx, store.NewRestaurant{
			Name:              sr.Name,
			Slug:              sr.Slug,
			APIKey:            sr.APIKey,
			PointsPerCurrency: rate,
			SignupBonus:       sr.SignupBonus,
			LoyaltyMode:       sr.LoyaltyMode,
		})
		if err != nil {
			return fmt.Errorf("create restaurant %s: %w", sr.Slug, err)
		}

		for _, rw := range sr.Rewards {
			_, err := rewards.Create(ctx, r.ID, store.RewardInput{
				Name:           rw.Name,
				Description:    rw.Description,
				PointsRequired: rw.PointsRequired,
				Category:       rw.Category,
				MinTier:        model.Tier(rw.MinTier),
				IsActive:       !rw.Inactive,
				TotalAvailable: rw.TotalAvailable,
			})
			if err != nil {
				return fmt.Errorf("create reward %q for %s: %w", rw.Name, sr.Slug, err)
			}
		}
		logger.Info("seeded restaurant", "slug", sr.Slug, "rewards", len(sr.Rewards))
	}
	return nil
}
