package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
)

type RewardStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db, now: time.Now}
}

// RewardInput holds the merchant-editable fields of a reward.
type RewardInput struct {
	Name           string
	Description    string
	PointsRequired int
	Category       string
	MinTier        model.Tier
	IsActive       bool
	TotalAvailable *int
}

func (in *RewardInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", loyalty.ErrInvalidInput)
	}
	if in.PointsRequired <= 0 {
		return fmt.Errorf("%w: points_required %d must be positive", loyalty.ErrInvalidInput, in.PointsRequired)
	}
	if in.MinTier == "" {
		in.MinTier = model.TierBronze
	}
	if !in.MinTier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", loyalty.ErrInvalidInput, in.MinTier)
	}
	if in.TotalAvailable != nil && *in.TotalAvailable < 0 {
		return fmt.Errorf("%w: total_available %d must not be negative", loyalty.ErrInvalidInput, *in.TotalAvailable)
	}
	return nil
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var tier string
	var active int
	var available sql.NullInt64

	err := scanner.Scan(&r.ID, &r.RestaurantID, &r.Name, &r.Description, &r.PointsRequired, &r.Category,
		&tier, &active, &available, &r.TotalRedeemed, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.MinTier = model.Tier(tier)
	r.IsActive = active != 0
	if available.Valid {
		n := int(available.Int64)
		r.TotalAvailable = &n
	}
	return &r, nil
}

const rewardCols = `id, restaurant_id, name, description, points_required, category,
	min_tier, is_active, total_available, total_redeemed, created_at, updated_at`

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func (s *RewardStore) Create(ctx context.Context, restaurantID int64, in RewardInput) (*model.Reward, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (restaurant_id, name, description, points_required, category, min_tier, is_active, total_available, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		restaurantID, in.Name, in.Description, in.PointsRequired, in.Category, string(in.MinTier),
		boolInt(in.IsActive), nullInt(in.TotalAvailable), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListByRestaurant returns the full catalog, active or not, in catalog order.
func (s *RewardStore) ListByRestaurant(ctx context.Context, restaurantID int64) ([]model.Reward, error) {
	return s.list(ctx, `SELECT `+rewardCols+` FROM rewards WHERE restaurant_id = ? ORDER BY created_at ASC, id ASC`, restaurantID)
}

// ListActive returns the active rewards in catalog order.
func (s *RewardStore) ListActive(ctx context.Context, restaurantID int64) ([]model.Reward, error) {
	return s.list(ctx, `SELECT `+rewardCols+` FROM rewards WHERE restaurant_id = ? AND is_active = 1 ORDER BY created_at ASC, id ASC`, restaurantID)
}

func (s *RewardStore) list(ctx context.Context, query string, args ...any) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []model.Reward{}
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// Update replaces the editable fields. The redeemed counter is left alone.
func (s *RewardStore) Update(ctx context.Context, id int64, in RewardInput) (*model.Reward, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET name = ?, description = ?, points_required = ?, category = ?, min_tier = ?,
		 is_active = ?, total_available = ?, updated_at = ? WHERE id = ?`,
		in.Name, in.Description, in.PointsRequired, in.Category, string(in.MinTier),
		boolInt(in.IsActive), nullInt(in.TotalAvailable), s.now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetActive toggles a reward. Rewards referenced by the ledger are never
// deleted, only deactivated.
func (s *RewardStore) SetActive(ctx context.Context, id int64, active bool) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), s.now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set reward active: %w", err)
	}
	return s.GetByID(ctx, id)
}
