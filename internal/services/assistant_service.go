package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/models"
	"gorm.io/gorm"
)

// AssistantService is a rule-based reading assistant. It matches the query
// against known genres and suggests titles from the catalog; queries count
// against the free-tier allowance.
type AssistantService struct {
	db           *gorm.DB
	entitlements *EntitlementService
}

func NewAssistantService(db *gorm.DB, entitlements *EntitlementService) *AssistantService {
	return &AssistantService{db: db, entitlements: entitlements}
}

var assistantGenres = []string{
	"fantasy", "mystery", "romance", "science fiction", "thriller",
	"biography", "history", "poetry", "horror", "classics",
}

func (s *AssistantService) Query(ctx context.Context, userID uuid.UUID, query string) (Decision, string, error) {
	decision, err := s.entitlements.Consume(ctx, userID, models.UsageAIQueries)
	if err != nil {
		return Decision{}, "", err
	}
	if !decision.Allowed {
		return decision, "", nil
	}

	reply, err := s.respond(ctx, query)
	if err != nil {
		return Decision{}, "", err
	}
	return decision, reply, nil
}

func (s *AssistantService) respond(ctx context.Context, query string) (string, error) {
	lower := strings.ToLower(query)

	for _, genre := range assistantGenres {
		if !strings.Contains(lower, genre) {
			continue
		}
		var books []models.Book
		err := s.db.WithContext(ctx).
			Where("LOWER(genre) = ?", genre).
			Order("created_at DESC").
			Limit(3).
			Find(&books).Error
		if err != nil {
			return "", fmt.Errorf("failed to query books: %w", err)
		}
		if len(books) == 0 {
			break
		}
		titles := make([]string, 0, len(books))
		for i := range books {
			titles = append(titles, fmt.Sprintf("%q by %s", books[i].Title, books[i].Author))
		}
		return fmt.Sprintf("For %s readers I'd suggest %s.", genre, strings.Join(titles, ", ")), nil
	}

	switch {
	case strings.Contains(lower, "recommend"), strings.Contains(lower, "suggest"):
		return "Tell me a genre you enjoy, like mystery or science fiction, and I'll pick something from the catalog.", nil
	case strings.Contains(lower, "premium"):
		return "Premium gives you unlimited reading, previews and assistant queries. You can start a subscription from the plans page.", nil
	default:
		return "I can recommend books by genre, or answer questions about your reading. What are you in the mood for?", nil
	}
}
