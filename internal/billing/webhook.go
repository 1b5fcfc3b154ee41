package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// Local payload shapes for the fields we consume. Decoding into our own
// structs keeps the boundary stable across Stripe API version changes.
type checkoutSessionPayload struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

type subscriptionPayload struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	TrialStart         int64  `json:"trial_start"`
	TrialEnd           int64  `json:"trial_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// ParseWebhook verifies the Stripe signature and returns one of the typed
// events, or (nil, nil) for event types we deliberately ignore.
func ParseWebhook(payload []byte, sigHeader, secret string) (interface{}, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	at := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case "checkout.session.completed":
		var sess checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		return &CheckoutCompleted{
			At:             at,
			SessionID:      sess.ID,
			Mode:           sess.Mode,
			CustomerID:     sess.Customer,
			SubscriptionID: sess.Subscription,
			UserID:         sess.Metadata["userId"],
			PlanID:         sess.Metadata["planId"],
			BookID:         sess.Metadata["bookId"],
			AmountTotal:    sess.AmountTotal,
			Currency:       sess.Currency,
			PaymentID:      sess.PaymentIntent,
		}, nil

	case "customer.subscription.updated":
		sub, err := decodeSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		return &SubscriptionUpdated{At: at, State: *sub}, nil

	case "customer.subscription.deleted":
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		return &SubscriptionDeleted{At: at, SubscriptionID: sub.ID}, nil

	case "customer.subscription.trial_will_end":
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		ev := &TrialWillEnd{At: at, SubscriptionID: sub.ID}
		if sub.TrialEnd > 0 {
			t := time.Unix(sub.TrialEnd, 0).UTC()
			ev.TrialEnd = &t
		}
		return ev, nil
	}

	// Unhandled event types are acknowledged and dropped.
	return nil, nil
}

func decodeSubscription(raw json.RawMessage) (*SubscriptionState, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}

	state := &SubscriptionState{
		ID:                 sub.ID,
		CustomerID:         sub.Customer,
		Status:             sub.Status,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		state.PriceID = item.Price.ID
		// Newer API versions carry the period on the item instead.
		if item.CurrentPeriodEnd > 0 {
			state.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
			state.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	if sub.TrialStart > 0 {
		t := time.Unix(sub.TrialStart, 0).UTC()
		state.TrialStart = &t
	}
	if sub.TrialEnd > 0 {
		t := time.Unix(sub.TrialEnd, 0).UTC()
		state.TrialEnd = &t
	}
	return state, nil
}
