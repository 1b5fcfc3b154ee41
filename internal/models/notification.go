package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationTrialEnding    = "trial_ending"
	NotificationSubCanceled    = "subscription_canceled"
	NotificationReferralReward = "referral_reward"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      string    `gorm:"size:50;not null" json:"type"`
	Title     string    `gorm:"size:255" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
