package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
)

// Referral records who referred whom. A user is referred by exactly one other
// user (unique index on referred_id). A referral that never completes stays
// pending forever; that is a valid terminal state, not an error.
type Referral struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReferrerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"referrer_id"`
	ReferredID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"referred_id"`
	Status      string    `gorm:"not null;default:'pending';size:20" json:"status"`
	RewardGiven bool      `gorm:"not null;default:false" json:"reward_given"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
