package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered reader account. IsPremium is a derived cache: it is
// written only by the entitlement service's Recompute, never ad hoc.
type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string         `gorm:"size:100" json:"name"`
	Email            string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password         string         `gorm:"not null" json:"-"`
	Role             string         `gorm:"size:20;default:'user'" json:"role"`
	IsPremium        bool           `gorm:"not null;default:false" json:"is_premium"`
	PremiumUntil     *time.Time     `json:"premium_until,omitempty"`
	ReferralCode     *string        `gorm:"size:64;uniqueIndex" json:"referral_code,omitempty"`
	ReferralCount    int            `gorm:"not null;default:0" json:"referral_count"`
	ReferredBy       *uuid.UUID     `gorm:"type:uuid;index" json:"-"`
	StripeCustomerID *string        `gorm:"size:255;index" json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
