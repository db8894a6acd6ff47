// Package wallet runs the customer-facing loyalty operations: signup,
// earning, redemption and the wallet snapshot. Every operation that touches
// one customer's balance is serialized on a per-customer lock.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
	"github.com/dukerupert/punchcard/internal/store"
)

// RecentLimit is how many ledger entries the wallet snapshot carries.
const RecentLimit = 20

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

type Restaurants interface {
	GetByID(ctx context.Context, id int64) (*model.Restaurant, error)
}

type Customers interface {
	Create(ctx context.Context, restaurantID int64, in store.NewCustomer, signupPoints int) (*model.Customer, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	GetByEmail(ctx context.Context, restaurantID int64, email string) (*model.Customer, error)
}

type Rewards interface {
	GetByID(ctx context.Context, id int64) (*model.Reward, error)
	ListByRestaurant(ctx context.Context, restaurantID int64) ([]model.Reward, error)
	ListActive(ctx context.Context, restaurantID int64) ([]model.Reward, error)
}

type Ledger interface {
	RecordEvent(ctx context.Context, customerID int64, typ model.TransactionType, points int, meta store.EventMeta) (*model.Transaction, error)
	GetBalance(ctx context.Context, customerID int64) (model.Balance, error)
	Recent(ctx context.Context, customerID int64, limit int) ([]model.Transaction, error)
	CommitRedemption(ctx context.Context, c store.RedemptionCommit) (*model.Transaction, error)
}

// Receipts sends customer emails. Failures are logged, never returned.
type Receipts interface {
	SendWelcome(ctx context.Context, r model.Restaurant, c model.Customer) error
	SendRedemptionReceipt(ctx context.Context, r model.Restaurant, c model.Customer, reward model.Reward, entry model.Transaction) error
}

type Service struct {
	restaurants Restaurants
	customers   Customers
	rewards     Rewards
	ledger      Ledger
	notifier    Notifier
	receipts    Receipts
	logger      *slog.Logger
	locks       *keyedMutex
	retryDelay  time.Duration
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithReceipts(r Receipts) Option {
	return func(s *Service) { s.receipts = r }
}

// WithRetryDelay sets the pause before re-validating a redemption that lost
// a race on the customer's balance. Non-positive values are ignored.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

func NewService(restaurants Restaurants, customers Customers, rewards Rewards, ledger Ledger, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		restaurants: restaurants,
		customers:   customers,
		rewards:     rewards,
		ledger:      ledger,
		logger:      logger.With("component", "wallet"),
		locks:       newKeyedMutex(),
		retryDelay:  10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func persistence(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", loyalty.ErrPersistence, what, err)
}

func (s *Service) restaurant(ctx context.Context, id int64) (*model.Restaurant, error) {
	r, err := s.restaurants.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("load restaurant", err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: restaurant %d", loyalty.ErrNotFound, id)
	}
	return r, nil
}

func (s *Service) customer(ctx context.Context, id int64) (*model.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("load customer", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: customer %d", loyalty.ErrNotFound, id)
	}
	return c, nil
}

// SignupRequest holds the onboarding form.
type SignupRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
}

func (r SignupRequest) validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", loyalty.ErrInvalidInput)
	}
	if !ValidEmail(r.Email) {
		return fmt.Errorf("%w: please enter a valid email address", loyalty.ErrInvalidInput)
	}
	return nil
}

// ValidEmail applies the loose something@something.something check used at
// onboarding.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// Signup creates the customer and records the restaurant's signup bonus,
// which may be zero.
func (s *Service) Signup(ctx context.Context, restaurantID int64, req SignupRequest) (*model.Customer, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	r, err := s.restaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	c, err := s.customers.Create(ctx, r.ID, store.NewCustomer{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
	}, r.SignupBonus)
	if err != nil {
		if loyalty.Kind(err) == "internal" {
			err = persistence("create customer", err)
		}
		return nil, err
	}

	s.logger.Info("customer signed up", "restaurant_id", r.ID, "customer_id", c.ID, "signup_bonus", r.SignupBonus)
	s.notify(Event{Type: EventCustomerCreated, RestaurantID: r.ID, CustomerID: c.ID, Points: r.SignupBonus, TotalPoints: c.TotalPoints})
	if s.receipts != nil {
		if err := s.receipts.SendWelcome(ctx, *r, *c); err != nil {
			s.logger.Warn("send welcome email", "customer_id", c.ID, "error", err)
		}
	}
	return c, nil
}

// FindByEmail returns the restaurant's customer with that email, or
// ErrNotFound.
func (s *Service) FindByEmail(ctx context.Context, restaurantID int64, email string) (*model.Customer, error) {
	if !ValidEmail(email) {
		return nil, fmt.Errorf("%w: please enter a valid email address", loyalty.ErrInvalidInput)
	}
	c, err := s.customers.GetByEmail(ctx, restaurantID, email)
	if err != nil {
		return nil, persistence("find customer", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: customer not found", loyalty.ErrNotFound)
	}
	return c, nil
}

// EarnRequest is a merchant-side accrual. For purchases with Amount set the
// points are derived from the restaurant's earn rate and Points is ignored.
// Amount is rejected on any other type.
type EarnRequest struct {
	Type        model.TransactionType `json:"type"`
	Points      int                   `json:"points"`
	Amount      *decimal.Decimal      `json:"amount_spent,omitempty"`
	Description string                `json:"description"`
}

// Earn credits points to a customer of the given restaurant.
func (s *Service) Earn(ctx context.Context, restaurantID, customerID int64, req EarnRequest) (*model.Transaction, error) {
	switch req.Type {
	case model.TxPurchase, model.TxBonus, model.TxReferral:
	default:
		return nil, fmt.Errorf("%w: cannot earn points with type %q", loyalty.ErrInvalidAmount, req.Type)
	}
	if req.Amount != nil && req.Type != model.TxPurchase {
		return nil, fmt.Errorf("%w: amount_spent only applies to purchases, not %s", loyalty.ErrInvalidInput, req.Type)
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	c, err := s.customer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c.RestaurantID != restaurantID {
		return nil, fmt.Errorf("%w: customer %d", loyalty.ErrNotFound, customerID)
	}

	points := req.Points
	if req.Type == model.TxPurchase && req.Amount != nil {
		r, err := s.restaurant(ctx, restaurantID)
		if err != nil {
			return nil, err
		}
		if points, err = loyalty.PointsForPurchase(*req.Amount, r.PointsPerCurrency); err != nil {
			return nil, err
		}
	}

	entry, err := s.ledger.RecordEvent(ctx, customerID, req.Type, points, store.EventMeta{
		AmountSpent: req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("points earned", "customer_id", customerID, "type", req.Type, "points", points, "ref", entry.Ref)
	s.notify(Event{
		Type:         EventPointsChanged,
		RestaurantID: restaurantID,
		CustomerID:   customerID,
		Points:       points,
		TotalPoints:  c.TotalPoints + points,
		Ref:          entry.Ref,
	})
	return entry, nil
}

// Balance reads the customer's balances under the customer's lock, so it
// never observes a half-applied redemption from this process.
func (s *Service) Balance(ctx context.Context, customerID int64) (model.Balance, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()
	return s.ledger.GetBalance(ctx, customerID)
}

// History returns up to limit ledger entries, newest first.
func (s *Service) History(ctx context.Context, customerID int64, limit int) ([]model.Transaction, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()
	return s.history(ctx, customerID, limit)
}

func (s *Service) history(ctx context.Context, customerID int64, limit int) ([]model.Transaction, error) {
	entries, err := s.ledger.Recent(ctx, customerID, limit)
	if err != nil {
		return nil, persistence("load history", err)
	}
	if entries == nil {
		entries = []model.Transaction{}
	}
	return entries, nil
}

// Catalog returns the restaurant's active rewards annotated with whether
// this customer can redeem each one.
func (s *Service) Catalog(ctx context.Context, customerID int64) ([]loyalty.RewardView, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	c, err := s.customer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	active, err := s.rewards.ListActive(ctx, c.RestaurantID)
	if err != nil {
		return nil, persistence("list rewards", err)
	}
	return loyalty.Annotate(*c, active), nil
}

// Eligible returns the rewards the customer can redeem right now.
func (s *Service) Eligible(ctx context.Context, customerID int64) ([]model.Reward, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	c, err := s.customer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	all, err := s.rewards.ListByRestaurant(ctx, c.RestaurantID)
	if err != nil {
		return nil, persistence("list rewards", err)
	}
	return loyalty.ListEligible(*c, all), nil
}

// Wallet is everything the customer wallet screen shows.
type Wallet struct {
	Customer       model.Customer         `json:"customer"`
	Classification loyalty.Classification `json:"classification"`
	Rewards        []loyalty.RewardView   `json:"rewards"`
	Transactions   []model.Transaction    `json:"transactions"`
}

// Snapshot loads the wallet in one consistent view of the customer.
func (s *Service) Snapshot(ctx context.Context, customerID int64) (*Wallet, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	c, err := s.customer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	active, err := s.rewards.ListActive(ctx, c.RestaurantID)
	if err != nil {
		return nil, persistence("list rewards", err)
	}
	entries, err := s.history(ctx, customerID, RecentLimit)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		Customer:       *c,
		Classification: loyalty.Classify(c.LifetimePoints),
		Rewards:        loyalty.Annotate(*c, active),
		Transactions:   entries,
	}, nil
}
