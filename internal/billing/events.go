package billing

import "time"

// Typed webhook events, validated at the boundary before any state mutation.

type CheckoutCompleted struct {
	At             time.Time
	SessionID      string
	Mode           string
	CustomerID     string
	SubscriptionID string
	UserID         string
	PlanID         string
	BookID         string
	AmountTotal    int64
	Currency       string
	PaymentID      string
}

type SubscriptionUpdated struct {
	At    time.Time
	State SubscriptionState
}

type SubscriptionDeleted struct {
	At             time.Time
	SubscriptionID string
}

type TrialWillEnd struct {
	At             time.Time
	SubscriptionID string
	TrialEnd       *time.Time
}
