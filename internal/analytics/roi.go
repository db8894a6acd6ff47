// Package analytics computes the loyalty programme's return on investment
// from purchase and redemption facts. Everything here is pure; the facts
// are loaded by store.AnalyticsStore.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
)

// ROI status values.
const (
	StatusNoData         = "no-data"
	StatusHighPerforming = "high-performing"
	StatusProfitable     = "profitable"
	StatusLosingMoney    = "losing-money"
	defaultRangeLabel    = "30d"
	monthLayout          = "2006-01"
)

var rangeDays = map[string]int{"7d": 7, "30d": 30, "90d": 90}

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseRange turns a dashboard range label into a window ending at now.
// An empty label selects 30 days.
func ParseRange(label string, now time.Time) (DateRange, error) {
	if label == "" {
		label = defaultRangeLabel
	}
	days, ok := rangeDays[label]
	if !ok {
		return DateRange{}, fmt.Errorf("%w: range %q must be one of 7d, 30d, 90d", loyalty.ErrInvalidInput, label)
	}
	end := now.UTC()
	return DateRange{Label: label, Start: end.AddDate(0, 0, -days), End: end}, nil
}

// PurchaseFact is one purchase ledger entry.
type PurchaseFact struct {
	CustomerID    int64
	CustomerSince time.Time
	Amount        decimal.Decimal
	Points        int
	At            time.Time
}

// RedemptionFact is one redemption ledger entry. Points is the positive cost.
type RedemptionFact struct {
	CustomerID int64
	Points     int
	At         time.Time
}

// Summary holds the restaurant-wide counters for a range.
type Summary struct {
	PointsIssued      int
	OutstandingPoints int
	TotalCustomers    int
	NewCustomers      int
}

type Facts struct {
	Purchases   []PurchaseFact
	Redemptions []RedemptionFact
	Summary     Summary
}

type Metrics struct {
	ROI                   decimal.Decimal `json:"roi"`
	ROIStatus             string          `json:"roi_status"`
	ROISummaryText        string          `json:"roi_summary_text"`
	GrossRevenue          decimal.Decimal `json:"gross_revenue"`
	EstimatedGrossProfit  decimal.Decimal `json:"estimated_gross_profit"`
	ProfitMargin          decimal.Decimal `json:"profit_margin"`
	RewardCost            decimal.Decimal `json:"reward_cost"`
	RewardCostPercentage  decimal.Decimal `json:"reward_cost_percentage"`
	NetRevenue            decimal.Decimal `json:"net_revenue"`
	NetProfit             decimal.Decimal `json:"net_profit"`
	TotalPointsIssued     int             `json:"total_points_issued"`
	TotalPointsRedeemed   int             `json:"total_points_redeemed"`
	TotalRewardLiability  decimal.Decimal `json:"total_reward_liability"`
	PointRedemptionRate   decimal.Decimal `json:"point_redemption_rate"`
	RepeatPurchaseRate    decimal.Decimal `json:"repeat_purchase_rate"`
	AverageOrderValue     decimal.Decimal `json:"average_order_value"`
	LoyaltyAOV            decimal.Decimal `json:"loyalty_aov"`
	CustomerLifetimeValue decimal.Decimal `json:"customer_lifetime_value"`
	PurchaseFrequency     decimal.Decimal `json:"purchase_frequency"`
}

// MonthRevenue is one bar of the revenue chart.
type MonthRevenue struct {
	Month        string          `json:"month"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
	RewardCost   decimal.Decimal `json:"reward_cost"`
	NetProfit    decimal.Decimal `json:"net_profit"`
}

type Behavior struct {
	NewCustomers          int             `json:"new_customers"`
	ReturningCustomers    int             `json:"returning_customers"`
	AveragePointsEarned   decimal.Decimal `json:"average_points_earned"`
	AveragePointsRedeemed decimal.Decimal `json:"average_points_redeemed"`
	LoyaltyParticipation  decimal.Decimal `json:"loyalty_participation"`
}

type Report struct {
	Range            DateRange      `json:"range"`
	Metrics          Metrics        `json:"metrics"`
	RevenueBreakdown []MonthRevenue `json:"revenue_breakdown"`
	Behavior         Behavior       `json:"behavior"`
}

var hundred = decimal.NewFromInt(100)

// PointValue is the currency value of one point at the given earn rate.
// A zero or negative rate gives zero.
func PointValue(pointsPerCurrency decimal.Decimal) decimal.Decimal {
	if !pointsPerCurrency.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Div(pointsPerCurrency)
}

// RewardCost is what redeemed points cost the restaurant to fulfil.
func RewardCost(points int, pointValue, cogs decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(points)).Mul(pointValue).Mul(cogs)
}

// percent returns part/whole*100, or zero when whole is zero.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

func ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole)
}

// Status classifies an ROI figure against the merchant's target.
func Status(revenue, rewardCost, roi, target decimal.Decimal) string {
	switch {
	case !revenue.IsPositive():
		return StatusNoData
	case rewardCost.IsPositive() && roi.GreaterThanOrEqual(target):
		return StatusHighPerforming
	case roi.IsPositive() || rewardCost.IsZero():
		return StatusProfitable
	default:
		return StatusLosingMoney
	}
}

func summaryText(status string, roi, target decimal.Decimal) string {
	switch status {
	case StatusHighPerforming:
		return fmt.Sprintf("Your loyalty programme returns %s%% on reward spend, at or above your %s%% target.", roi.StringFixed(1), target.StringFixed(0))
	case StatusProfitable:
		return fmt.Sprintf("Your loyalty programme is profitable at %s%% ROI, below your %s%% target.", roi.StringFixed(1), target.StringFixed(0))
	case StatusLosingMoney:
		return fmt.Sprintf("Reward costs exceed the profit they generate (%s%% ROI). Review reward pricing or your earn rate.", roi.StringFixed(1))
	default:
		return "No purchases recorded in this period yet."
	}
}

// Compute builds the full ROI report.
func Compute(r DateRange, facts Facts, settings model.ROISettings, pointsPerCurrency decimal.Decimal) Report {
	pv := PointValue(pointsPerCurrency)
	cogs := settings.EstimatedCOGSPercentage
	margin := settings.DefaultProfitMargin

	revenue := decimal.Zero
	pointsEarned := 0
	purchasesBy := make(map[int64]int)
	revenueBy := make(map[int64]decimal.Decimal)
	returning := make(map[int64]bool)
	for _, p := range facts.Purchases {
		revenue = revenue.Add(p.Amount)
		pointsEarned += p.Points
		purchasesBy[p.CustomerID]++
		revenueBy[p.CustomerID] = revenueBy[p.CustomerID].Add(p.Amount)
		if p.CustomerSince.Before(r.Start) {
			returning[p.CustomerID] = true
		}
	}

	redeemed := 0
	redeemers := make(map[int64]bool)
	for _, rd := range facts.Redemptions {
		redeemed += rd.Points
		redeemers[rd.CustomerID] = true
	}

	rewardCost := RewardCost(redeemed, pv, cogs)
	grossProfit := revenue.Mul(margin)
	netProfit := grossProfit.Sub(rewardCost)
	roi := percent(netProfit, rewardCost)
	status := Status(revenue, rewardCost, roi, settings.TargetROIPercentage)

	active := decimal.NewFromInt(int64(len(purchasesBy)))
	orders := decimal.NewFromInt(int64(len(facts.Purchases)))
	repeaters := 0
	for _, n := range purchasesBy {
		if n >= 2 {
			repeaters++
		}
	}

	loyaltyRevenue := decimal.Zero
	loyaltyOrders := 0
	for id := range redeemers {
		loyaltyRevenue = loyaltyRevenue.Add(revenueBy[id])
		loyaltyOrders += purchasesBy[id]
	}

	aov := ratio(revenue, orders)
	frequency := ratio(orders, active)

	m := Metrics{
		ROI:                   roi.Round(2),
		ROIStatus:             status,
		ROISummaryText:        summaryText(status, roi, settings.TargetROIPercentage),
		GrossRevenue:          revenue.Round(2),
		EstimatedGrossProfit:  grossProfit.Round(2),
		ProfitMargin:          margin.Mul(hundred).Round(2),
		RewardCost:            rewardCost.Round(2),
		RewardCostPercentage:  percent(rewardCost, revenue).Round(2),
		NetRevenue:            revenue.Sub(rewardCost).Round(2),
		NetProfit:             netProfit.Round(2),
		TotalPointsIssued:     facts.Summary.PointsIssued,
		TotalPointsRedeemed:   redeemed,
		TotalRewardLiability:  RewardCost(facts.Summary.OutstandingPoints, pv, cogs).Round(2),
		PointRedemptionRate:   percent(decimal.NewFromInt(int64(redeemed)), decimal.NewFromInt(int64(facts.Summary.PointsIssued))).Round(2),
		RepeatPurchaseRate:    percent(decimal.NewFromInt(int64(repeaters)), active).Round(2),
		AverageOrderValue:     aov.Round(2),
		LoyaltyAOV:            ratio(loyaltyRevenue, decimal.NewFromInt(int64(loyaltyOrders))).Round(2),
		CustomerLifetimeValue: aov.Mul(frequency).Round(2),
		PurchaseFrequency:     frequency.Round(2),
	}

	b := Behavior{
		NewCustomers:          facts.Summary.NewCustomers,
		ReturningCustomers:    len(returning),
		AveragePointsEarned:   ratio(decimal.NewFromInt(int64(pointsEarned)), active).Round(2),
		AveragePointsRedeemed: ratio(decimal.NewFromInt(int64(redeemed)), decimal.NewFromInt(int64(len(redeemers)))).Round(2),
		LoyaltyParticipation:  percent(decimal.NewFromInt(int64(len(redeemers))), decimal.NewFromInt(int64(facts.Summary.TotalCustomers))).Round(2),
	}

	return Report{
		Range:            r,
		Metrics:          m,
		RevenueBreakdown: Breakdown(facts, pv, settings),
		Behavior:         b,
	}
}

// Breakdown groups revenue and reward cost by calendar month, oldest first.
func Breakdown(facts Facts, pointValue decimal.Decimal, settings model.ROISettings) []MonthRevenue {
	months := make(map[string]*MonthRevenue)
	get := func(t time.Time) *MonthRevenue {
		key := t.UTC().Format(monthLayout)
		m, ok := months[key]
		if !ok {
			m = &MonthRevenue{Month: key}
			months[key] = m
		}
		return m
	}

	for _, p := range facts.Purchases {
		m := get(p.At)
		m.GrossRevenue = m.GrossRevenue.Add(p.Amount)
	}
	for _, rd := range facts.Redemptions {
		m := get(rd.At)
		m.RewardCost = m.RewardCost.Add(RewardCost(rd.Points, pointValue, settings.EstimatedCOGSPercentage))
	}

	out := make([]MonthRevenue, 0, len(months))
	for _, m := range months {
		m.NetProfit = m.GrossRevenue.Mul(settings.DefaultProfitMargin).Sub(m.RewardCost).Round(2)
		m.GrossRevenue = m.GrossRevenue.Round(2)
		m.RewardCost = m.RewardCost.Round(2)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
