package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	portal "github.com/stripe/stripe-go/v82/billingportal/session"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
)

// StripeGateway implements Gateway against the Stripe API. Every call runs
// under an explicit timeout so a hung gateway never holds a request open.
type StripeGateway struct {
	timeout time.Duration
}

func NewStripeGateway(secretKey string, timeout time.Duration) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{timeout: timeout}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(name),
		Metadata: map[string]string{
			"userId": userID,
		},
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", ErrGatewayUnavailable, err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	lineItem := &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
	}
	if p.PriceID != "" {
		lineItem.Price = stripe.String(p.PriceID)
	} else {
		lineItem.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(p.Currency),
			UnitAmount: stripe.Int64(p.AmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(p.ProductName),
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(p.Mode),
		Customer:   stripe.String(p.CustomerID),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{lineItem},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		Metadata:   p.Metadata,
	}
	if p.Mode == string(stripe.CheckoutSessionModeSubscription) && p.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(int64(p.TrialDays)),
			Metadata:        p.Metadata,
		}
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %v", ErrGatewayUnavailable, err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := portal.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create portal session: %v", ErrGatewayUnavailable, err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}}
	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: get subscription: %v", ErrGatewayUnavailable, err)
	}
	return stateFromStripe(sub), nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*SubscriptionState, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if immediate {
		sub, err := subscription.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
			Params: stripe.Params{Context: ctx},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: cancel subscription: %v", ErrGatewayUnavailable, err)
		}
		return stateFromStripe(sub), nil
	}

	sub, err := subscription.Update(subscriptionID, &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: schedule cancellation: %v", ErrGatewayUnavailable, err)
	}
	return stateFromStripe(sub), nil
}

func (g *StripeGateway) ReactivateSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	sub, err := subscription.Update(subscriptionID, &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reactivate subscription: %v", ErrGatewayUnavailable, err)
	}
	return stateFromStripe(sub), nil
}

func stateFromStripe(sub *stripe.Subscription) *SubscriptionState {
	state := &SubscriptionState{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			state.PriceID = item.Price.ID
		}
		state.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		state.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	if sub.TrialStart > 0 {
		t := unixTime(sub.TrialStart)
		state.TrialStart = &t
	}
	if sub.TrialEnd > 0 {
		t := unixTime(sub.TrialEnd)
		state.TrialEnd = &t
	}
	return state
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
