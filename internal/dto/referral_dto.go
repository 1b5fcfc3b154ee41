package dto

import (
	"time"

	"github.com/google/uuid"
)

type ReferralCodeResponse struct {
	Code string `json:"code"`
}

type ReferralEntry struct {
	ID          uuid.UUID `json:"id"`
	ReferredID  uuid.UUID `json:"referred_id"`
	Status      string    `json:"status"`
	RewardGiven bool      `json:"reward_given"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReferralListResponse struct {
	Total   int             `json:"total"`
	Entries []ReferralEntry `json:"entries"`
}
