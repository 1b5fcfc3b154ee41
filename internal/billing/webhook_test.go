package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_testsecret"

func signPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventJSON(eventType string, created int64, object string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_test","type":%q,"created":%d,"data":{"object":%s}}`,
		eventType, created, object))
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	payload := eventJSON("checkout.session.completed", time.Now().Unix(), `{"id":"cs_1"}`)

	_, err := ParseWebhook(payload, "t=1,v1=deadbeef", testSecret)
	assert.Error(t, err)

	sig := signPayload(payload, "whsec_wrongsecret", time.Now())
	_, err = ParseWebhook(payload, sig, testSecret)
	assert.Error(t, err)
}

func TestParseWebhookCheckoutCompleted(t *testing.T) {
	created := time.Now().Unix()
	payload := eventJSON("checkout.session.completed", created, `{
		"id": "cs_123",
		"mode": "subscription",
		"customer": "cus_123",
		"subscription": "sub_123",
		"amount_total": 999,
		"currency": "usd",
		"metadata": {"userId": "u-1", "planId": "monthly"}
	}`)
	sig := signPayload(payload, testSecret, time.Now())

	event, err := ParseWebhook(payload, sig, testSecret)
	require.NoError(t, err)

	ev, ok := event.(*CheckoutCompleted)
	require.True(t, ok)
	assert.Equal(t, "cs_123", ev.SessionID)
	assert.Equal(t, "subscription", ev.Mode)
	assert.Equal(t, "cus_123", ev.CustomerID)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
	assert.Equal(t, "u-1", ev.UserID)
	assert.Equal(t, "monthly", ev.PlanID)
	assert.Equal(t, created, ev.At.Unix())
}

func TestParseWebhookSubscriptionUpdated(t *testing.T) {
	periodEnd := time.Now().Add(720 * time.Hour).Unix()
	payload := eventJSON("customer.subscription.updated", time.Now().Unix(), fmt.Sprintf(`{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "active",
		"cancel_at_period_end": true,
		"items": {"data": [{
			"price": {"id": "price_monthly"},
			"current_period_start": %d,
			"current_period_end": %d
		}]}
	}`, periodEnd-2592000, periodEnd))
	sig := signPayload(payload, testSecret, time.Now())

	event, err := ParseWebhook(payload, sig, testSecret)
	require.NoError(t, err)

	ev, ok := event.(*SubscriptionUpdated)
	require.True(t, ok)
	assert.Equal(t, "sub_123", ev.State.ID)
	assert.Equal(t, "active", ev.State.Status)
	assert.True(t, ev.State.CancelAtPeriodEnd)
	assert.Equal(t, "price_monthly", ev.State.PriceID)
	assert.Equal(t, periodEnd, ev.State.CurrentPeriodEnd.Unix())
}

func TestParseWebhookSubscriptionDeleted(t *testing.T) {
	payload := eventJSON("customer.subscription.deleted", time.Now().Unix(), `{"id":"sub_123","status":"canceled"}`)
	sig := signPayload(payload, testSecret, time.Now())

	event, err := ParseWebhook(payload, sig, testSecret)
	require.NoError(t, err)

	ev, ok := event.(*SubscriptionDeleted)
	require.True(t, ok)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
}

func TestParseWebhookTrialWillEnd(t *testing.T) {
	trialEnd := time.Now().Add(72 * time.Hour).Unix()
	payload := eventJSON("customer.subscription.trial_will_end", time.Now().Unix(),
		fmt.Sprintf(`{"id":"sub_123","trial_end":%d}`, trialEnd))
	sig := signPayload(payload, testSecret, time.Now())

	event, err := ParseWebhook(payload, sig, testSecret)
	require.NoError(t, err)

	ev, ok := event.(*TrialWillEnd)
	require.True(t, ok)
	require.NotNil(t, ev.TrialEnd)
	assert.Equal(t, trialEnd, ev.TrialEnd.Unix())
}

// Event types outside the handled set are acknowledged and dropped.
func TestParseWebhookIgnoresUnhandledTypes(t *testing.T) {
	payload := eventJSON("invoice.paid", time.Now().Unix(), `{"id":"in_1"}`)
	sig := signPayload(payload, testSecret, time.Now())

	event, err := ParseWebhook(payload, sig, testSecret)
	require.NoError(t, err)
	assert.Nil(t, event)
}
