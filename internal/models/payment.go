package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment records a one-time book purchase settled through Stripe.
type Payment struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	BookID          uuid.UUID `gorm:"type:uuid;not null;index" json:"book_id"`
	Amount          float64   `json:"amount"`
	Currency        string    `gorm:"size:10" json:"currency"`
	StripePaymentID string    `gorm:"uniqueIndex;size:255" json:"-"`
	Status          string    `gorm:"size:20" json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}
