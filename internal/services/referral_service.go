package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrCodeNotFound    = errors.New("referral code not found")
	ErrSelfReferral    = errors.New("cannot refer yourself")
	ErrAlreadyReferred = errors.New("account was already referred")
)

// ReferralService records referrer/referred relationships and drives the
// one-time reward on completion. A referral completes when the referred
// account's first subscription checkout lands.
type ReferralService struct {
	db           *gorm.DB
	entitlements *EntitlementService
	notifier     *Notifier
	rewardDays   int
}

func NewReferralService(db *gorm.DB, entitlements *EntitlementService, notifier *Notifier, rewardDays int) *ReferralService {
	return &ReferralService{
		db:           db,
		entitlements: entitlements,
		notifier:     notifier,
		rewardDays:   rewardDays,
	}
}

// GetOrAssignCode returns the user's referral code, generating one on first
// use: first name plus four digits, retried on collision.
func (s *ReferralService) GetOrAssignCode(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user.ReferralCode != nil {
		return *user.ReferralCode, nil
	}

	name := strings.ToLower(strings.Split(user.Name, " ")[0])
	if name == "" {
		name = "friend"
	}

	for attempt := 0; attempt < 5; attempt++ {
		code := fmt.Sprintf("%s%04d", name, rand.Intn(10000))
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", userID).
			Update("referral_code", code).Error
		if err == nil {
			return code, nil
		}
	}
	return "", errors.New("failed to assign referral code")
}

// Register links a new account to the owner of the given code and creates a
// pending ledger entry. Callers at registration ignore ErrCodeNotFound: a
// bad code must never fail account creation.
func (s *ReferralService) Register(ctx context.Context, code string, newUserID uuid.UUID) (*models.Referral, error) {
	var referrer models.User
	err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&referrer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}
	if referrer.ID == newUserID {
		return nil, ErrSelfReferral
	}

	entry := models.Referral{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		ReferredID: newUserID,
		Status:     models.ReferralPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return ErrAlreadyReferred
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", newUserID).
			Update("referred_by", referrer.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", referrer.ID).
			Update("referral_count", gorm.Expr("referral_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Complete transitions the referred account's entry from pending to
// completed and issues the reward exactly once. The conditional UPDATE on
// status and reward_given claims the reward before the grant runs, so a
// duplicate call (or a redelivered webhook) is a no-op.
func (s *ReferralService) Complete(ctx context.Context, referredUserID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referred_id = ? AND status = ? AND reward_given = ?",
			referredUserID, models.ReferralPending, false).
		Updates(map[string]interface{}{
			"status":       models.ReferralCompleted,
			"reward_given": true,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to complete referral: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// No pending entry: the account was never referred, or the reward
		// was already issued.
		return nil
	}

	var entry models.Referral
	if err := s.db.WithContext(ctx).Where("referred_id = ?", referredUserID).First(&entry).Error; err != nil {
		return fmt.Errorf("failed to reload referral: %w", err)
	}

	if err := s.entitlements.GrantPremium(ctx, entry.ReferrerID, s.rewardDays); err != nil {
		slog.Error("referral reward grant failed", "referrer_id", entry.ReferrerID, "error", err)
		return err
	}

	s.notifier.Notify(entry.ReferrerID, models.NotificationReferralReward,
		"You earned a referral reward",
		fmt.Sprintf("A friend you referred subscribed to TextCentre. Enjoy %d days of premium on us.", s.rewardDays))
	return nil
}

// ListForReferrer returns the entries where the user is the referrer.
func (s *ReferralService) ListForReferrer(ctx context.Context, userID uuid.UUID) ([]models.Referral, error) {
	var entries []models.Referral
	err := s.db.WithContext(ctx).
		Where("referrer_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}
