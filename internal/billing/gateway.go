package billing

import (
	"context"
	"errors"
	"time"
)

// ErrGatewayUnavailable marks failures talking to the payment processor.
// Callers surface these as retryable; no local state is committed first.
var ErrGatewayUnavailable = errors.New("billing gateway unavailable")

// SubscriptionState is the gateway's authoritative view of a subscription.
type SubscriptionState struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
}

type CheckoutParams struct {
	CustomerID string
	PriceID    string
	// Mode is "subscription" for plans or "payment" for one-time book buys.
	Mode       string
	TrialDays  int
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string

	// Inline price for payment mode, when no catalog price exists.
	ProductName string
	AmountCents int64
	Currency    string
}

// Gateway is the boundary to the external payment processor. Stripe owns the
// source of truth for payment state; everything local is a mirror updated
// through webhook events.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*SubscriptionState, error)
	ReactivateSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
}
