package models

import (
	"time"

	"github.com/google/uuid"
)

// Gated action kinds, each bounded by a free-tier monthly limit.
const (
	UsageBooks     = "books"
	UsagePreviews  = "previews"
	UsageAIQueries = "ai_queries"
)

// Usage tracks free-tier consumption for one user. Counters reset on the
// calendar-month rollover (reset-on-read, no background job); limits are
// preserved across resets.
type Usage struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	BooksRead      int       `gorm:"not null;default:0" json:"books_read"`
	BooksLimit     int       `gorm:"not null" json:"books_limit"`
	PreviewsViewed int       `gorm:"not null;default:0" json:"previews_viewed"`
	PreviewsLimit  int       `gorm:"not null" json:"previews_limit"`
	AIQueriesUsed  int       `gorm:"not null;default:0" json:"ai_queries_used"`
	AIQueriesLimit int       `gorm:"not null" json:"ai_queries_limit"`
	LastResetDate  time.Time `gorm:"not null" json:"last_reset_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CountFor returns the current count and limit for a gated action kind.
func (u *Usage) CountFor(kind string) (count, limit int) {
	switch kind {
	case UsageBooks:
		return u.BooksRead, u.BooksLimit
	case UsagePreviews:
		return u.PreviewsViewed, u.PreviewsLimit
	case UsageAIQueries:
		return u.AIQueriesUsed, u.AIQueriesLimit
	}
	return 0, 0
}
