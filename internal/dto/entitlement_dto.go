package dto

import "time"

// DeniedResponse is the user-facing shape of a gated-action denial: which
// limit was hit and when the free-tier period resets.
type DeniedResponse struct {
	Error    bool      `json:"error"`
	Reason   string    `json:"reason"`
	Message  string    `json:"message"`
	Limit    int       `json:"limit,omitempty"`
	ResetsAt time.Time `json:"resets_at,omitempty"`
}

type UsageResponse struct {
	BooksRead      int       `json:"books_read"`
	BooksLimit     int       `json:"books_limit"`
	PreviewsViewed int       `json:"previews_viewed"`
	PreviewsLimit  int       `json:"previews_limit"`
	AIQueriesUsed  int       `json:"ai_queries_used"`
	AIQueriesLimit int       `json:"ai_queries_limit"`
	ResetsAt       time.Time `json:"resets_at"`
	IsPremium      bool      `json:"is_premium"`
}
