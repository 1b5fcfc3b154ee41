package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/models"
	"gorm.io/gorm"
)

// BookService serves the catalog and the gated reading flows. Opening a book
// for the first time consumes one unit of the monthly free-tier allowance;
// re-opening a book already in the library is free.
type BookService struct {
	db           *gorm.DB
	entitlements *EntitlementService
}

func NewBookService(db *gorm.DB, entitlements *EntitlementService) *BookService {
	return &BookService{db: db, entitlements: entitlements}
}

type ListBooksQuery struct {
	Genre  string
	Search string
	Page   int
	Limit  int
}

func (s *BookService) List(ctx context.Context, q ListBooksQuery) ([]models.Book, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	tx := s.db.WithContext(ctx).Model(&models.Book{})
	if q.Genre != "" {
		tx = tx.Where("genre = ?", q.Genre)
	}
	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		tx = tx.Where("title LIKE ? OR author LIKE ?", pattern, pattern)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	var books []models.Book
	err := tx.Order("title ASC").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&books).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}
	return books, total, nil
}

func (s *BookService) Get(ctx context.Context, bookID uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, "id = ?", bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return &book, nil
}

// Open adds the book to the user's library, consuming the free-tier books
// allowance on first open. Premium-only books require premium regardless of
// remaining allowance.
func (s *BookService) Open(ctx context.Context, userID, bookID uuid.UUID) (Decision, *models.UserBook, error) {
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return Decision{}, nil, err
	}

	now := time.Now().UTC()

	// Already in the library (opened before, or purchased): no consumption.
	var entry models.UserBook
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		First(&entry).Error
	if err == nil {
		s.db.WithContext(ctx).Model(&entry).Update("last_read", now)
		entry.LastRead = &now
		return Decision{Allowed: true}, &entry, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Decision{}, nil, fmt.Errorf("failed to load library entry: %w", err)
	}

	if book.IsPremium {
		premium, err := s.entitlements.IsPremium(ctx, userID)
		if err != nil {
			return Decision{}, nil, err
		}
		if !premium {
			return Decision{Reason: DenyPremiumRequired}, nil, nil
		}
	}

	decision, err := s.entitlements.Consume(ctx, userID, models.UsageBooks)
	if err != nil {
		return Decision{}, nil, err
	}
	if !decision.Allowed {
		return decision, nil, nil
	}

	entry = models.UserBook{
		ID:       uuid.New(),
		UserID:   userID,
		BookID:   bookID,
		LastRead: &now,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return Decision{}, nil, fmt.Errorf("failed to create library entry: %w", err)
	}
	return decision, &entry, nil
}

// Preview consumes one unit of the previews allowance.
func (s *BookService) Preview(ctx context.Context, userID, bookID uuid.UUID) (Decision, error) {
	if _, err := s.Get(ctx, bookID); err != nil {
		return Decision{}, err
	}
	return s.entitlements.Consume(ctx, userID, models.UsagePreviews)
}

// UpdateProgress records reading progress in [0, 1] and touches last_read.
func (s *BookService) UpdateProgress(ctx context.Context, userID, bookID uuid.UUID, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	res := s.db.WithContext(ctx).Model(&models.UserBook{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Updates(map[string]interface{}{
			"progress":  progress,
			"last_read": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

func (s *BookService) Library(ctx context.Context, userID uuid.UUID) ([]models.UserBook, error) {
	var entries []models.UserBook
	err := s.db.WithContext(ctx).Preload("Book").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&entries).Error
	return entries, err
}
