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

type DenyReason string

const (
	DenyLimitExceeded   DenyReason = "limit_exceeded"
	DenyPremiumRequired DenyReason = "premium_required"
)

// Decision is the outcome of a gated-action check. Denials are expected,
// frequent, user-facing outcomes, so they travel as values, not errors.
type Decision struct {
	Allowed  bool
	Reason   DenyReason
	Limit    int
	Used     int
	ResetsAt time.Time
}

var allowed = Decision{Allowed: true}

var liveStatuses = []string{
	models.SubscriptionActive,
	models.SubscriptionTrialing,
	models.SubscriptionCancelling,
}

// EntitlementService answers "may this account perform this gated action
// right now?". It is the only component allowed to write users.is_premium.
type EntitlementService struct {
	db    *gorm.DB
	usage *UsageService
}

func NewEntitlementService(db *gorm.DB, usage *UsageService) *EntitlementService {
	return &EntitlementService{db: db, usage: usage}
}

// IsPremium is true iff the account has a subscription in active, trialing
// or cancelling with the period end still ahead, or an out-of-band grant
// (referral reward, admin) that has not expired.
func (s *EntitlementService) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	now := time.Now().UTC()

	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ? AND current_period_end > ?", userID, liveStatuses, now).
		First(&sub).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to query subscriptions: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("premium_until").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	return user.PremiumUntil != nil && now.Before(*user.PremiumUntil), nil
}

// CanPerform is the read-only check. A free-tier caller that gets Allowed
// must still go through Consume, which re-checks atomically.
func (s *EntitlementService) CanPerform(ctx context.Context, userID uuid.UUID, kind string) (Decision, error) {
	premium, err := s.IsPremium(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if premium {
		return allowed, nil
	}

	if err := s.usage.ResetIfPeriodElapsed(ctx, userID); err != nil {
		return Decision{}, err
	}
	usage, err := s.usage.Get(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	count, limit := usage.CountFor(kind)
	if count < limit {
		return allowed, nil
	}
	return Decision{
		Reason:   DenyLimitExceeded,
		Limit:    limit,
		Used:     count,
		ResetsAt: ResetsAt(usage),
	}, nil
}

// Consume records one unit of a gated action. For free-tier accounts the
// limit is re-checked inside a conditional increment, so concurrent requests
// cannot push a counter past its limit.
func (s *EntitlementService) Consume(ctx context.Context, userID uuid.UUID, kind string) (Decision, error) {
	premium, err := s.IsPremium(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if premium {
		return allowed, nil
	}

	if err := s.usage.ResetIfPeriodElapsed(ctx, userID); err != nil {
		return Decision{}, err
	}
	// Get ensures the row exists before the conditional UPDATE.
	usage, err := s.usage.Get(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	ok, err := s.usage.Increment(ctx, userID, kind)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return allowed, nil
	}

	_, limit := usage.CountFor(kind)
	return Decision{
		Reason:   DenyLimitExceeded,
		Limit:    limit,
		Used:     limit,
		ResetsAt: ResetsAt(usage),
	}, nil
}

// Recompute derives users.is_premium from current subscription and grant
// state and persists it. All premium flag writers funnel through here.
func (s *EntitlementService) Recompute(ctx context.Context, userID uuid.UUID) (bool, error) {
	premium, err := s.IsPremium(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_premium", premium).Error; err != nil {
		return false, fmt.Errorf("failed to update premium flag: %w", err)
	}
	return premium, nil
}

// GrantPremium extends the out-of-band premium window by the given number of
// days, stacking on top of any remaining grant.
func (s *EntitlementService) GrantPremium(ctx context.Context, userID uuid.UUID, days int) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	base := time.Now().UTC()
	if user.PremiumUntil != nil && user.PremiumUntil.After(base) {
		base = *user.PremiumUntil
	}
	until := base.AddDate(0, 0, days)

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("premium_until", until).Error; err != nil {
		return fmt.Errorf("failed to extend premium grant: %w", err)
	}

	_, err := s.Recompute(ctx, userID)
	return err
}
