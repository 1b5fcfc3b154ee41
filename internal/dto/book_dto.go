package dto

import (
	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/models"
)

type BookListResponse struct {
	Books      []models.Book `json:"books"`
	Pagination Pagination    `json:"pagination"`
}

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

type UpdateProgressRequest struct {
	Progress float64 `json:"progress"`
}

type OpenBookResponse struct {
	BookID   uuid.UUID `json:"book_id"`
	Progress float64   `json:"progress"`
}

type AssistantRequest struct {
	Query string `json:"query"`
}

type AssistantResponse struct {
	Reply string `json:"reply"`
}
