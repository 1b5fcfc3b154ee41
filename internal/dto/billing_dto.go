package dto

import "time"

type CheckoutRequest struct {
	PlanID string `json:"plan_id,omitempty"`
	BookID string `json:"book_id,omitempty"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type CancelSubscriptionRequest struct {
	Immediate bool `json:"immediate"`
}

type SubscriptionResponse struct {
	PlanID             string     `json:"plan_id"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
}

type PlanResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Interval  string `json:"interval"`
	TrialDays int    `json:"trial_days"`
}
