package auth

import (
	"context"

	"github.com/dukerupert/punchcard/internal/model"
)

type contextKey struct{}

type merchantKey struct{}

// CustomerContext identifies the customer behind a wallet request.
type CustomerContext struct {
	CustomerID   int64
	RestaurantID int64
	SessionID    int64
}

func WithCustomer(ctx context.Context, cc CustomerContext) context.Context {
	return context.WithValue(ctx, contextKey{}, cc)
}

func FromContext(ctx context.Context) (CustomerContext, bool) {
	cc, ok := ctx.Value(contextKey{}).(CustomerContext)
	return cc, ok
}

func CustomerID(ctx context.Context) int64 {
	cc, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return cc.CustomerID
}

// WithMerchant stores the restaurant authenticated by merchant credentials.
func WithMerchant(ctx context.Context, r *model.Restaurant) context.Context {
	return context.WithValue(ctx, merchantKey{}, r)
}

// Merchant returns the authenticated restaurant, or nil.
func Merchant(ctx context.Context) *model.Restaurant {
	r, _ := ctx.Value(merchantKey{}).(*model.Restaurant)
	return r
}

// RestaurantID returns the restaurant of the current customer or merchant.
func RestaurantID(ctx context.Context) int64 {
	if r := Merchant(ctx); r != nil {
		return r.ID
	}
	cc, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return cc.RestaurantID
}
