package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/models"
)

type RegisterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	IsPremium     bool       `json:"is_premium"`
	PremiumUntil  *time.Time `json:"premium_until,omitempty"`
	ReferralCount int        `json:"referral_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

func UserFromModel(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		IsPremium:     u.IsPremium,
		PremiumUntil:  u.PremiumUntil,
		ReferralCount: u.ReferralCount,
		CreatedAt:     u.CreatedAt,
	}
}

type UpdateProfileRequest struct {
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password,omitempty"`
}

type ReadingStats struct {
	TotalBooks     int `json:"total_books"`
	CompletedBooks int `json:"completed_books"`
}

type RecentBook struct {
	ID       uuid.UUID  `json:"id"`
	Title    string     `json:"title"`
	Author   string     `json:"author"`
	Progress float64    `json:"progress"`
	LastRead *time.Time `json:"last_read,omitempty"`
}

type ProfileResponse struct {
	User        UserResponse `json:"user"`
	Stats       ReadingStats `json:"stats"`
	RecentBooks []RecentBook `json:"recent_books,omitempty"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
