package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses. Canceled is terminal: a canceled record is never
// mutated again, only superseded by a new record.
const (
	SubscriptionActive     = "active"
	SubscriptionTrialing   = "trialing"
	SubscriptionPastDue    = "past_due"
	SubscriptionCancelling = "cancelling"
	SubscriptionCanceled   = "canceled"
)

// Subscription mirrors a Stripe subscription. LastEventAt holds the Stripe
// event timestamp of the last applied webhook, so stale out-of-order
// deliveries can be dropped (last-writer-wins on the gateway's clock).
type Subscription struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID               string     `gorm:"size:100" json:"plan_id"`
	StripeSubscriptionID string     `gorm:"uniqueIndex;size:255" json:"stripe_subscription_id"`
	StripeCustomerID     string     `gorm:"index;size:255" json:"-"`
	Status               string     `gorm:"not null;size:50;index" json:"status"`
	CurrentPeriodStart   time.Time  `json:"current_period_start"`
	CurrentPeriodEnd     time.Time  `json:"current_period_end"`
	TrialStart           *time.Time `json:"trial_start,omitempty"`
	TrialEnd             *time.Time `json:"trial_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	LastEventAt          time.Time  `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	User                 User       `gorm:"foreignKey:UserID" json:"-"`
}

// Live reports whether the record currently confers premium access.
func (s *Subscription) Live(now time.Time) bool {
	switch s.Status {
	case SubscriptionActive, SubscriptionTrialing, SubscriptionCancelling:
		return now.Before(s.CurrentPeriodEnd)
	default:
		return false
	}
}
