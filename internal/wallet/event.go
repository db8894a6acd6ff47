package wallet

// Event types published to merchant dashboards.
const (
	EventCustomerCreated = "customer_created"
	EventPointsChanged   = "customer_points_changed"
	EventRewardRedeemed  = "reward_redeemed"
)

// Event describes a committed change to a customer's wallet.
type Event struct {
	Type         string
	RestaurantID int64
	CustomerID   int64
	RewardID     int64
	Points       int
	TotalPoints  int
	Ref          string
}

// Notifier receives events after they are committed. It must not block.
type Notifier interface {
	Notify(Event)
}

func (s *Service) notify(e Event) {
	if s.notifier != nil {
		s.notifier.Notify(e)
	}
}
