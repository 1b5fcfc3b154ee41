package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/textcentre/textcentre-backend/internal/billing"
	"github.com/textcentre/textcentre-backend/internal/catalog"
	"github.com/textcentre/textcentre-backend/internal/models"
)

// fakeGateway is an in-memory billing.Gateway for exercising the
// synchronizer without the real payment processor.
type fakeGateway struct {
	state         *billing.SubscriptionState
	checkoutURL   string
	portalURL     string
	err           error
	cancelCalls   int
	lastImmediate bool
}

func (f *fakeGateway) CreateCustomer(_ context.Context, _, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "cus_test", nil
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, _ billing.CheckoutParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.checkoutURL, nil
}

func (f *fakeGateway) CreatePortalSession(_ context.Context, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.portalURL, nil
}

func (f *fakeGateway) GetSubscription(_ context.Context, _ string) (*billing.SubscriptionState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}

func (f *fakeGateway) CancelSubscription(_ context.Context, _ string, immediate bool) (*billing.SubscriptionState, error) {
	f.cancelCalls++
	f.lastImmediate = immediate
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}

func (f *fakeGateway) ReactivateSubscription(_ context.Context, _ string) (*billing.SubscriptionState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}

type subscriptionFixture struct {
	db      *gorm.DB
	svc     *SubscriptionService
	gateway *fakeGateway
}

func newSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()
	db := newTestDB(t)
	cfg := testConfig()

	plans := catalog.NewRegistry()
	plans.Register(&catalog.Plan{
		ID:            "monthly",
		Name:          "Premium Monthly",
		StripePriceID: "price_monthly",
		Interval:      "month",
		TrialDays:     7,
	})

	gateway := &fakeGateway{checkoutURL: "https://checkout.example/session", portalURL: "https://portal.example"}
	notifier := NewNotifier(db, cfg)
	entitlements := NewEntitlementService(db, NewUsageService(db, cfg))
	referrals := NewReferralService(db, entitlements, notifier, cfg.ReferralRewardDays)
	svc := NewSubscriptionService(db, gateway, plans, entitlements, referrals, notifier, cfg)

	return &subscriptionFixture{db: db, svc: svc, gateway: gateway}
}

func liveState(subID string, periodEnd time.Time) *billing.SubscriptionState {
	return &billing.SubscriptionState{
		ID:                 subID,
		CustomerID:         "cus_test",
		Status:             "active",
		PriceID:            "price_monthly",
		CurrentPeriodStart: periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   periodEnd,
	}
}

func TestCheckoutPlanUnknownPlan(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Shopper", "shopper@example.com")

	_, err := fx.svc.CheckoutPlan(context.Background(), user.ID, "lifetime")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCheckoutPlanRejectsSecondLiveSubscription(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Subscribed", "subbed@example.com")
	createTestSubscription(t, fx.db, user.ID, models.SubscriptionActive, time.Now().UTC().Add(time.Hour))

	_, err := fx.svc.CheckoutPlan(context.Background(), user.ID, "monthly")
	assert.ErrorIs(t, err, ErrSubscriptionExists)
}

// Starting a checkout must not write any local subscription state; the
// record appears only when the webhook lands.
func TestCheckoutPlanLeavesNoLocalRecord(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Shopper", "shopper@example.com")

	url, err := fx.svc.CheckoutPlan(context.Background(), user.ID, "monthly")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/session", url)

	var count int64
	require.NoError(t, fx.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutGatewayFailureLeavesNoState(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Unlucky", "unlucky@example.com")
	fx.gateway.err = billing.ErrGatewayUnavailable

	_, err := fx.svc.CheckoutPlan(context.Background(), user.ID, "monthly")
	assert.ErrorIs(t, err, billing.ErrGatewayUnavailable)

	var count int64
	require.NoError(t, fx.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)

	var reloaded models.User
	require.NoError(t, fx.db.First(&reloaded, "id = ?", user.ID).Error)
	assert.Nil(t, reloaded.StripeCustomerID)
}

func TestCheckoutCompletedCreatesSubscriptionOnce(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Buyer", "buyer@example.com")

	periodEnd := time.Now().UTC().AddDate(0, 1, 0)
	fx.gateway.state = liveState("sub_abc", periodEnd)

	ev := &billing.CheckoutCompleted{
		At:             time.Now().UTC(),
		SessionID:      "cs_1",
		Mode:           "subscription",
		CustomerID:     "cus_test",
		SubscriptionID: "sub_abc",
		UserID:         user.ID.String(),
		PlanID:         "monthly",
	}
	require.NoError(t, fx.svc.HandleEvent(context.Background(), ev))

	var subs []models.Subscription
	require.NoError(t, fx.db.Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionActive, subs[0].Status)
	assert.Equal(t, "monthly", subs[0].PlanID)
	assert.WithinDuration(t, periodEnd, subs[0].CurrentPeriodEnd, time.Second)

	var reloaded models.User
	require.NoError(t, fx.db.First(&reloaded, "id = ?", user.ID).Error)
	assert.True(t, reloaded.IsPremium)
	require.NotNil(t, reloaded.StripeCustomerID)
	assert.Equal(t, "cus_test", *reloaded.StripeCustomerID)

	// Duplicate delivery of the same session creates nothing new.
	require.NoError(t, fx.svc.HandleEvent(context.Background(), ev))
	require.NoError(t, fx.db.Find(&subs).Error)
	assert.Len(t, subs, 1)
}

func TestCheckoutCompletedResolvesPlanByPrice(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Buyer", "buyer@example.com")
	fx.gateway.state = liveState("sub_price", time.Now().UTC().AddDate(0, 1, 0))

	ev := &billing.CheckoutCompleted{
		At:             time.Now().UTC(),
		SessionID:      "cs_2",
		Mode:           "subscription",
		SubscriptionID: "sub_price",
		UserID:         user.ID.String(),
		// No planId metadata; must fall back to the price id.
	}
	require.NoError(t, fx.svc.HandleEvent(context.Background(), ev))

	var sub models.Subscription
	require.NoError(t, fx.db.First(&sub, "stripe_subscription_id = ?", "sub_price").Error)
	assert.Equal(t, "monthly", sub.PlanID)
}

func TestCheckoutCompletedCompletesReferral(t *testing.T) {
	fx := newSubscriptionFixture(t)
	referrer := createTestUser(t, fx.db, "Ref Errer", "referrer@example.com")
	referred := createTestUser(t, fx.db, "New Comer", "newcomer@example.com")

	cfg := testConfig()
	entitlements := NewEntitlementService(fx.db, NewUsageService(fx.db, cfg))
	referrals := NewReferralService(fx.db, entitlements, NewNotifier(fx.db, cfg), cfg.ReferralRewardDays)
	code, err := referrals.GetOrAssignCode(context.Background(), referrer.ID)
	require.NoError(t, err)
	_, err = referrals.Register(context.Background(), code, referred.ID)
	require.NoError(t, err)

	fx.gateway.state = liveState("sub_ref", time.Now().UTC().AddDate(0, 1, 0))
	require.NoError(t, fx.svc.HandleEvent(context.Background(), &billing.CheckoutCompleted{
		At:             time.Now().UTC(),
		SessionID:      "cs_3",
		Mode:           "subscription",
		SubscriptionID: "sub_ref",
		UserID:         referred.ID.String(),
		PlanID:         "monthly",
	}))

	var entry models.Referral
	require.NoError(t, fx.db.Where("referred_id = ?", referred.ID).First(&entry).Error)
	assert.Equal(t, models.ReferralCompleted, entry.Status)
	assert.True(t, entry.RewardGiven)

	var reloaded models.User
	require.NoError(t, fx.db.First(&reloaded, "id = ?", referrer.ID).Error)
	require.NotNil(t, reloaded.PremiumUntil)
	assert.True(t, reloaded.IsPremium)
}

func TestSubscriptionUpdatedIdempotent(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Updated", "updated@example.com")
	sub := createTestSubscription(t, fx.db, user.ID, models.SubscriptionActive, time.Now().UTC().Add(time.Hour))

	newEnd := time.Now().UTC().AddDate(0, 1, 0)
	ev := &billing.SubscriptionUpdated{
		At:    time.Now().UTC(),
		State: *liveState(sub.StripeSubscriptionID, newEnd),
	}

	require.NoError(t, fx.svc.HandleEvent(context.Background(), ev))
	require.NoError(t, fx.svc.HandleEvent(context.Background(), ev))

	var reloaded models.Subscription
	require.NoError(t, fx.db.First(&reloaded, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriptionActive, reloaded.Status)
	assert.WithinDuration(t, newEnd, reloaded.CurrentPeriodEnd, time.Second)
}

// An out-of-order delivery carrying an older event timestamp must not
// overwrite newer local state.
func TestSubscriptionUpdatedDropsStaleEvent(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Ordered", "ordered@example.com")
	sub := createTestSubscription(t, fx.db, user.ID, models.SubscriptionActive, time.Now().UTC().Add(time.Hour))

	now := time.Now().UTC()
	newEnd := now.AddDate(0, 1, 0)

	fresh := liveState(sub.StripeSubscriptionID, newEnd)
	fresh.CancelAtPeriodEnd = true
	require.NoError(t, fx.svc.HandleEvent(context.Background(), &billing.SubscriptionUpdated{
		At:    now,
		State: *fresh,
	}))

	var afterFresh models.Subscription
	require.NoError(t, fx.db.First(&afterFresh, "id = ?", sub.ID).Error)
	require.Equal(t, models.SubscriptionCancelling, afterFresh.Status)

	// The older event says the subscription was plain active.
	stale := liveState(sub.StripeSubscriptionID, now.Add(time.Hour))
	require.NoError(t, fx.svc.HandleEvent(context.Background(), &billing.SubscriptionUpdated{
		At:    now.Add(-10 * time.Minute),
		State: *stale,
	}))

	var afterStale models.Subscription
	require.NoError(t, fx.db.First(&afterStale, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriptionCancelling, afterStale.Status)
	assert.WithinDuration(t, newEnd, afterStale.CurrentPeriodEnd, time.Second)
}

func TestSubscriptionUpdatedUnknownRecordDropped(t *testing.T) {
	fx := newSubscriptionFixture(t)

	err := fx.svc.HandleEvent(context.Background(), &billing.SubscriptionUpdated{
		At:    time.Now().UTC(),
		State: *liveState("sub_ghost", time.Now().UTC().Add(time.Hour)),
	})
	assert.NoError(t, err, "unknown subscription is logged and dropped, not an error")
}

func TestSubscriptionDeletedIsTerminal(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Leaver", "leaver@example.com")
	sub := createTestSubscription(t, fx.db, user.ID, models.SubscriptionActive, time.Now().UTC().Add(time.Hour))

	require.NoError(t, fx.svc.HandleEvent(context.Background(), &billing.SubscriptionDeleted{
		At:             time.Now().UTC(),
		SubscriptionID: sub.StripeSubscriptionID,
	}))

	var reloaded models.Subscription
	require.NoError(t, fx.db.First(&reloaded, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriptionCanceled, reloaded.Status)

	var reloadedUser models.User
	require.NoError(t, fx.db.First(&reloadedUser, "id = ?", user.ID).Error)
	assert.False(t, reloadedUser.IsPremium)

	// A later update event must not resurrect the canceled record.
	require.NoError(t, fx.svc.HandleEvent(context.Background(), &billing.SubscriptionUpdated{
		At:    time.Now().UTC().Add(time.Minute),
		State: *liveState(sub.StripeSubscriptionID, time.Now().UTC().AddDate(0, 1, 0)),
	}))
	require.NoError(t, fx.db.First(&reloaded, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriptionCanceled, reloaded.Status)
}

// Scheduled cancellation keeps premium until the period runs out.
func TestCancelAtPeriodEndKeepsPremium(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Waverer", "waverer@example.com")
	periodEnd := time.Now().UTC().Add(10 * 24 * time.Hour)
	sub := createTestSubscription(t, fx.db, user.ID, models.SubscriptionTrialing, periodEnd)
	fx.gateway.state = liveState(sub.StripeSubscriptionID, periodEnd)

	require.NoError(t, fx.svc.Cancel(context.Background(), user.ID, false))
	assert.Equal(t, 1, fx.gateway.cancelCalls)
	assert.False(t, fx.gateway.lastImmediate)

	var reloaded models.Subscription
	require.NoError(t, fx.db.First(&reloaded, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriptionCancelling, reloaded.Status)
	assert.True(t, reloaded.CancelAtPeriodEnd)

	entitlements := NewEntitlementService(fx.db, NewUsageService(fx.db, testConfig()))
	premium, err := entitlements.IsPremium(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, premium, "cancelling holds premium until period end")

	// Cancelling again at period end is a no-op, not an error.
	require.NoError(t, fx.svc.Cancel(context.Background(), user.ID, false))
	assert.Equal(t, 1, fx.gateway.cancelCalls)
}

func TestCancelImmediateDropsPremium(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Decisive", "decisive@example.com")
	sub := createTestSubscription(t, fx.db, user.ID, models.SubscriptionActive, time.Now().UTC().Add(time.Hour))
	fx.gateway.state = liveState(sub.StripeSubscriptionID, time.Now().UTC())

	require.NoError(t, fx.svc.Cancel(context.Background(), user.ID, true))
	assert.True(t, fx.gateway.lastImmediate)

	var reloaded models.Subscription
	require.NoError(t, fx.db.First(&reloaded, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriptionCanceled, reloaded.Status)

	var reloadedUser models.User
	require.NoError(t, fx.db.First(&reloadedUser, "id = ?", user.ID).Error)
	assert.False(t, reloadedUser.IsPremium)
}

// The gateway is called before any local write; when it fails nothing
// changes locally.
func TestCancelGatewayFailureLeavesStateUntouched(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Stuck", "stuck@example.com")
	sub := createTestSubscription(t, fx.db, user.ID, models.SubscriptionActive, time.Now().UTC().Add(time.Hour))
	fx.gateway.err = billing.ErrGatewayUnavailable

	err := fx.svc.Cancel(context.Background(), user.ID, true)
	assert.True(t, errors.Is(err, billing.ErrGatewayUnavailable))

	var reloaded models.Subscription
	require.NoError(t, fx.db.First(&reloaded, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriptionActive, reloaded.Status)
}

func TestReactivateOnlyFromCancelling(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Returner", "returner@example.com")
	sub := createTestSubscription(t, fx.db, user.ID, models.SubscriptionActive, time.Now().UTC().Add(time.Hour))

	err := fx.svc.Reactivate(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrNotCancelling)

	require.NoError(t, fx.db.Model(sub).Updates(map[string]interface{}{
		"status":               models.SubscriptionCancelling,
		"cancel_at_period_end": true,
	}).Error)
	fx.gateway.state = liveState(sub.StripeSubscriptionID, sub.CurrentPeriodEnd)

	require.NoError(t, fx.svc.Reactivate(context.Background(), user.ID))

	var reloaded models.Subscription
	require.NoError(t, fx.db.First(&reloaded, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriptionActive, reloaded.Status)
	assert.False(t, reloaded.CancelAtPeriodEnd)
}

func TestBookPurchaseRecordedOnce(t *testing.T) {
	fx := newSubscriptionFixture(t)
	user := createTestUser(t, fx.db, "Collector", "collector@example.com")
	book := models.Book{ID: uuid.New(), Title: "The Paper Menagerie", Price: 9.99}
	require.NoError(t, fx.db.Create(&book).Error)

	ev := &billing.CheckoutCompleted{
		At:          time.Now().UTC(),
		SessionID:   "cs_pay",
		Mode:        "payment",
		UserID:      user.ID.String(),
		BookID:      book.ID.String(),
		AmountTotal: 999,
		Currency:    "usd",
		PaymentID:   "pi_1",
	}
	require.NoError(t, fx.svc.HandleEvent(context.Background(), ev))
	require.NoError(t, fx.svc.HandleEvent(context.Background(), ev))

	var payments int64
	require.NoError(t, fx.db.Model(&models.Payment{}).Count(&payments).Error)
	assert.EqualValues(t, 1, payments)

	var entry models.UserBook
	require.NoError(t, fx.db.Where("user_id = ? AND book_id = ?", user.ID, book.ID).First(&entry).Error)
}
