package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/billing"
	"github.com/textcentre/textcentre-backend/internal/catalog"
	"github.com/textcentre/textcentre-backend/internal/config"
	"github.com/textcentre/textcentre-backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrPlanNotFound         = errors.New("unknown subscription plan")
	ErrBookNotFound         = errors.New("book not found")
	ErrSubscriptionNotFound = errors.New("no active subscription")
	ErrSubscriptionExists   = errors.New("an active subscription already exists")
	ErrNotCancelling        = errors.New("subscription is not scheduled for cancellation")
	ErrNoBillingAccount     = errors.New("no billing account for user")
)

// SubscriptionService keeps the local subscription mirror consistent with
// Stripe, driven by webhook events, and fronts user-initiated billing
// operations. Local records are created only after the gateway has
// confirmed, so a timed-out checkout leaves no partial state behind.
type SubscriptionService struct {
	db           *gorm.DB
	gateway      billing.Gateway
	plans        *catalog.Registry
	entitlements *EntitlementService
	referrals    *ReferralService
	notifier     *Notifier
	cfg          *config.Config
}

func NewSubscriptionService(
	db *gorm.DB,
	gateway billing.Gateway,
	plans *catalog.Registry,
	entitlements *EntitlementService,
	referrals *ReferralService,
	notifier *Notifier,
	cfg *config.Config,
) *SubscriptionService {
	return &SubscriptionService{
		db:           db,
		gateway:      gateway,
		plans:        plans,
		entitlements: entitlements,
		referrals:    referrals,
		notifier:     notifier,
		cfg:          cfg,
	}
}

// Current returns the user's live subscription record, if any.
func (s *SubscriptionService) Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, liveStatuses).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// CheckoutPlan creates a Stripe checkout session for a subscription plan and
// returns the redirect URL. No local record is written here; the record
// materializes when the checkout.session.completed webhook arrives.
func (s *SubscriptionService) CheckoutPlan(ctx context.Context, userID uuid.UUID, planID string) (string, error) {
	plan := s.plans.Get(planID)
	if plan == nil {
		return "", ErrPlanNotFound
	}

	if _, err := s.Current(ctx, userID); err == nil {
		return "", ErrSubscriptionExists
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return "", err
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	return s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    plan.StripePriceID,
		Mode:       "subscription",
		TrialDays:  plan.TrialDays,
		SuccessURL: s.cfg.CheckoutSuccessURL,
		CancelURL:  s.cfg.CheckoutCancelURL,
		Metadata: map[string]string{
			"userId": userID.String(),
			"planId": plan.ID,
		},
	})
}

// CheckoutBook creates a one-time payment session for a single book.
func (s *SubscriptionService) CheckoutBook(ctx context.Context, userID, bookID uuid.UUID) (string, error) {
	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, "id = ?", bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrBookNotFound
		}
		return "", fmt.Errorf("failed to load book: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	return s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID:  customerID,
		Mode:        "payment",
		SuccessURL:  s.cfg.CheckoutSuccessURL,
		CancelURL:   s.cfg.CheckoutCancelURL,
		ProductName: book.Title,
		AmountCents: int64(book.Price * 100),
		Currency:    "usd",
		Metadata: map[string]string{
			"userId": userID.String(),
			"bookId": book.ID.String(),
		},
	})
}

// PortalURL creates a Stripe billing portal session for the user.
func (s *SubscriptionService) PortalURL(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoBillingAccount
	}
	return s.gateway.CreatePortalSession(ctx, *user.StripeCustomerID, s.cfg.BillingPortalURL)
}

// Cancel ends the user's subscription. Immediate cancellation flips premium
// off now; otherwise the subscription enters cancelling and premium holds
// until the period end. The gateway is called first: if it fails, local
// state is untouched.
func (s *SubscriptionService) Cancel(ctx context.Context, userID uuid.UUID, immediate bool) error {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return err
	}
	if !immediate && sub.Status == models.SubscriptionCancelling {
		return nil
	}

	if _, err := s.gateway.CancelSubscription(ctx, sub.StripeSubscriptionID, immediate); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if immediate {
		updates["status"] = models.SubscriptionCanceled
	} else {
		updates["status"] = models.SubscriptionCancelling
		updates["cancel_at_period_end"] = true
	}
	if err := s.db.WithContext(ctx).Model(sub).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if _, err := s.entitlements.Recompute(ctx, userID); err != nil {
		return err
	}
	if immediate {
		s.notifier.Notify(userID, models.NotificationSubCanceled,
			"Subscription canceled",
			"Your TextCentre subscription has been canceled. You can resubscribe at any time.")
	}
	return nil
}

// Reactivate clears a scheduled cancellation. Only valid from cancelling.
func (s *SubscriptionService) Reactivate(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return err
	}
	if sub.Status != models.SubscriptionCancelling {
		return ErrNotCancelling
	}

	if _, err := s.gateway.ReactivateSubscription(ctx, sub.StripeSubscriptionID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(sub).Updates(map[string]interface{}{
		"status":               models.SubscriptionActive,
		"cancel_at_period_end": false,
	}).Error; err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	_, err = s.entitlements.Recompute(ctx, userID)
	return err
}

// HandleEvent dispatches a parsed webhook event. Every branch is safe to
// apply more than once with the same payload.
func (s *SubscriptionService) HandleEvent(ctx context.Context, event interface{}) error {
	switch ev := event.(type) {
	case *billing.CheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, ev)
	case *billing.SubscriptionUpdated:
		return s.applySubscriptionUpdated(ctx, ev)
	case *billing.SubscriptionDeleted:
		return s.applySubscriptionDeleted(ctx, ev)
	case *billing.TrialWillEnd:
		return s.applyTrialWillEnd(ctx, ev)
	}
	return nil
}

func (s *SubscriptionService) applyCheckoutCompleted(ctx context.Context, ev *billing.CheckoutCompleted) error {
	if ev.Mode == "payment" && ev.BookID != "" {
		return s.applyBookPurchase(ctx, ev)
	}
	if ev.SubscriptionID == "" {
		slog.Warn("checkout completed without subscription id", "session_id", ev.SessionID)
		return nil
	}

	// Duplicate delivery: the record already exists for this subscription.
	var existing models.Subscription
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", ev.SubscriptionID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing subscription: %w", err)
	}

	userID, err := s.resolveUser(ctx, ev.UserID, ev.CustomerID)
	if err != nil {
		slog.Warn("checkout completed for unknown user", "session_id", ev.SessionID, "customer_id", ev.CustomerID)
		return nil
	}

	// Only one record may be live per account. A second live subscription
	// for the same user is a conflicting event; drop it.
	var liveCount int64
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND status IN ?", userID, liveStatuses).
		Count(&liveCount).Error; err != nil {
		return fmt.Errorf("failed to count live subscriptions: %w", err)
	}
	if liveCount > 0 {
		slog.Warn("dropping checkout for user with live subscription", "user_id", userID, "subscription_id", ev.SubscriptionID)
		return nil
	}

	// Period and trial bounds come from the gateway's authoritative view,
	// not from the checkout session payload.
	state, err := s.gateway.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return err
	}

	planID := ev.PlanID
	if planID == "" {
		if plan := s.plans.ByPriceID(state.PriceID); plan != nil {
			planID = plan.ID
		}
	}

	sub := models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		PlanID:               planID,
		StripeSubscriptionID: state.ID,
		StripeCustomerID:     state.CustomerID,
		Status:               localStatus(state),
		CurrentPeriodStart:   state.CurrentPeriodStart,
		CurrentPeriodEnd:     state.CurrentPeriodEnd,
		TrialStart:           state.TrialStart,
		TrialEnd:             state.TrialEnd,
		CancelAtPeriodEnd:    state.CancelAtPeriodEnd,
		LastEventAt:          ev.At,
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	if state.CustomerID != "" {
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", userID).
			Update("stripe_customer_id", state.CustomerID).Error; err != nil {
			return fmt.Errorf("failed to store customer id: %w", err)
		}
	}

	if _, err := s.entitlements.Recompute(ctx, userID); err != nil {
		return err
	}

	// First subscription checkout is the referral qualifying event.
	if err := s.referrals.Complete(ctx, userID); err != nil {
		slog.Error("referral completion failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *SubscriptionService) applyBookPurchase(ctx context.Context, ev *billing.CheckoutCompleted) error {
	userID, err := uuid.Parse(ev.UserID)
	if err != nil {
		slog.Warn("book purchase without valid user id", "session_id", ev.SessionID)
		return nil
	}
	bookID, err := uuid.Parse(ev.BookID)
	if err != nil {
		slog.Warn("book purchase without valid book id", "session_id", ev.SessionID)
		return nil
	}

	// Redelivered event: the payment is already recorded.
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("stripe_payment_id = ?", ev.PaymentID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check payment: %w", err)
	}
	if count > 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment := models.Payment{
			ID:              uuid.New(),
			UserID:          userID,
			BookID:          bookID,
			Amount:          float64(ev.AmountTotal) / 100,
			Currency:        ev.Currency,
			StripePaymentID: ev.PaymentID,
			Status:          "completed",
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		entry := models.UserBook{
			ID:     uuid.New(),
			UserID: userID,
			BookID: bookID,
		}
		return tx.Where("user_id = ? AND book_id = ?", userID, bookID).
			FirstOrCreate(&entry).Error
	})
}

func (s *SubscriptionService) applySubscriptionUpdated(ctx context.Context, ev *billing.SubscriptionUpdated) error {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", ev.State.ID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The local record may legitimately lag creation.
			slog.Warn("update for unknown subscription, dropping", "subscription_id", ev.State.ID)
			return nil
		}
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	// Canceled is terminal.
	if sub.Status == models.SubscriptionCanceled {
		return nil
	}
	// Last-writer-wins on the gateway's own event clock: a stale
	// out-of-order delivery never overwrites newer state.
	if ev.At.Before(sub.LastEventAt) {
		slog.Info("dropping stale subscription event", "subscription_id", ev.State.ID, "event_at", ev.At, "last_event_at", sub.LastEventAt)
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&sub).Updates(map[string]interface{}{
		"status":               localStatus(&ev.State),
		"current_period_start": ev.State.CurrentPeriodStart,
		"current_period_end":   ev.State.CurrentPeriodEnd,
		"cancel_at_period_end": ev.State.CancelAtPeriodEnd,
		"trial_start":          ev.State.TrialStart,
		"trial_end":            ev.State.TrialEnd,
		"last_event_at":        ev.At,
	}).Error; err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	_, err = s.entitlements.Recompute(ctx, sub.UserID)
	return err
}

func (s *SubscriptionService) applySubscriptionDeleted(ctx context.Context, ev *billing.SubscriptionDeleted) error {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", ev.SubscriptionID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Warn("delete for unknown subscription, dropping", "subscription_id", ev.SubscriptionID)
			return nil
		}
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub.Status == models.SubscriptionCanceled {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&sub).Updates(map[string]interface{}{
		"status":        models.SubscriptionCanceled,
		"last_event_at": ev.At,
	}).Error; err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if _, err := s.entitlements.Recompute(ctx, sub.UserID); err != nil {
		return err
	}

	s.notifier.Notify(sub.UserID, models.NotificationSubCanceled,
		"Subscription ended",
		"Your TextCentre subscription has ended. Your library is still here whenever you want to come back.")
	return nil
}

func (s *SubscriptionService) applyTrialWillEnd(ctx context.Context, ev *billing.TrialWillEnd) error {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", ev.SubscriptionID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Warn("trial notice for unknown subscription, dropping", "subscription_id", ev.SubscriptionID)
			return nil
		}
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	body := "Your TextCentre trial is ending soon. Add a payment method to keep premium access."
	if ev.TrialEnd != nil {
		body = fmt.Sprintf("Your TextCentre trial ends on %s. Add a payment method to keep premium access.",
			ev.TrialEnd.Format("January 2, 2006"))
	}
	s.notifier.Notify(sub.UserID, models.NotificationTrialEnding, "Your trial is ending", body)
	return nil
}

func (s *SubscriptionService) ensureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, user.Email, user.Name, user.ID.String())
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error; err != nil {
		return "", fmt.Errorf("failed to store customer id: %w", err)
	}
	return customerID, nil
}

func (s *SubscriptionService) resolveUser(ctx context.Context, metaUserID, customerID string) (uuid.UUID, error) {
	if metaUserID != "" {
		if id, err := uuid.Parse(metaUserID); err == nil {
			return id, nil
		}
	}
	if customerID != "" {
		var user models.User
		if err := s.db.WithContext(ctx).
			Where("stripe_customer_id = ?", customerID).
			First(&user).Error; err == nil {
			return user.ID, nil
		}
	}
	return uuid.Nil, errors.New("user not resolvable")
}

// localStatus maps the gateway's status to the local state machine. An
// active subscription scheduled to cancel at period end is "cancelling".
func localStatus(state *billing.SubscriptionState) string {
	switch state.Status {
	case "trialing":
		if state.CancelAtPeriodEnd {
			return models.SubscriptionCancelling
		}
		return models.SubscriptionTrialing
	case "active":
		if state.CancelAtPeriodEnd {
			return models.SubscriptionCancelling
		}
		return models.SubscriptionActive
	case "past_due":
		return models.SubscriptionPastDue
	case "canceled":
		return models.SubscriptionCanceled
	default:
		return state.Status
	}
}

// ExpireLapsed flips the premium flag off for users whose grace windows
// have passed without any webhook (cancelling subscriptions reaching period
// end, expired grants). Called from a periodic job.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context) error {
	now := time.Now().UTC()
	var subs []models.Subscription
	if err := s.db.WithContext(ctx).
		Where("status IN ? AND current_period_end <= ?", liveStatuses, now).
		Find(&subs).Error; err != nil {
		return fmt.Errorf("failed to find lapsed subscriptions: %w", err)
	}
	for i := range subs {
		if _, err := s.entitlements.Recompute(ctx, subs[i].UserID); err != nil {
			slog.Error("failed to recompute premium for lapsed subscription", "user_id", subs[i].UserID, "error", err)
		}
	}
	return nil
}
