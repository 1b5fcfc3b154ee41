package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/config"
	"github.com/textcentre/textcentre-backend/internal/models"
	"gorm.io/gorm"
)

// UsageService tracks free-tier consumption per account per calendar month.
// It is a pure data component: limit policy lives in the entitlement service.
type UsageService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewUsageService(db *gorm.DB, cfg *config.Config) *UsageService {
	return &UsageService{db: db, cfg: cfg}
}

// Get returns the user's usage row, creating it with the configured default
// limits when absent. This is the single place where the absent-to-default
// policy lives.
func (s *UsageService) Get(ctx context.Context, userID uuid.UUID) (*models.Usage, error) {
	var usage models.Usage
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&usage).Error
	if err == nil {
		return &usage, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}

	usage = models.Usage{
		ID:             uuid.New(),
		UserID:         userID,
		BooksLimit:     s.cfg.FreeBooksLimit,
		PreviewsLimit:  s.cfg.FreePreviewsLimit,
		AIQueriesLimit: s.cfg.FreeAIQueriesLimit,
		LastResetDate:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&usage).Error; err != nil {
		// Lost a create race with a concurrent request; the row exists now.
		var existing models.Usage
		if ferr := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create usage: %w", err)
	}
	return &usage, nil
}

// ResetIfPeriodElapsed zeroes the counters once a calendar month has passed
// since the last reset, preserving the configured limits. Reset happens on
// read rather than on a schedule; a dormant account resets on next touch.
func (s *UsageService) ResetIfPeriodElapsed(ctx context.Context, userID uuid.UUID) error {
	usage, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if now.Before(usage.LastResetDate.AddDate(0, 1, 0)) {
		return nil
	}

	// Conditioned on the old reset date so two concurrent resets collapse
	// into one.
	return s.db.WithContext(ctx).Model(&models.Usage{}).
		Where("user_id = ? AND last_reset_date = ?", userID, usage.LastResetDate).
		Updates(map[string]interface{}{
			"books_read":      0,
			"previews_viewed": 0,
			"ai_queries_used": 0,
			"last_reset_date": now,
		}).Error
}

// Increment bumps one counter if and only if it is still under its limit,
// in a single conditional UPDATE. Returns false when the limit is reached.
// Two concurrent calls at limit-1 cannot both succeed.
func (s *UsageService) Increment(ctx context.Context, userID uuid.UUID, kind string) (bool, error) {
	countCol, limitCol, err := usageColumns(kind)
	if err != nil {
		return false, err
	}

	res := s.db.WithContext(ctx).Model(&models.Usage{}).
		Where(fmt.Sprintf("user_id = ? AND %s < %s", countCol, limitCol), userID).
		Update(countCol, gorm.Expr(countCol+" + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("failed to increment usage: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ResetsAt reports when the current free-tier period rolls over.
func ResetsAt(usage *models.Usage) time.Time {
	return usage.LastResetDate.AddDate(0, 1, 0)
}

func usageColumns(kind string) (string, string, error) {
	switch kind {
	case models.UsageBooks:
		return "books_read", "books_limit", nil
	case models.UsagePreviews:
		return "previews_viewed", "previews_limit", nil
	case models.UsageAIQueries:
		return "ai_queries_used", "ai_queries_limit", nil
	}
	return "", "", fmt.Errorf("unknown usage kind %q", kind)
}
