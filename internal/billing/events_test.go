package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestParseWebhookCheckoutCompleted(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"client_reference_id": "profile-1",
			"customer": "cus_1",
			"customer_details": {"email": "ana@example.com"},
			"subscription": "sub_1",
			"metadata": {"plan": "2"}
		}}
	}`)

	ev, err := ParseWebhook(payload, sign(payload, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	require.Equal(t, "evt_1", ev.ID)
	require.Equal(t, EventCheckoutCompleted, ev.Type)
	require.NotNil(t, ev.Checkout)
	require.Equal(t, "profile-1", ev.Checkout.ProfileID)
	require.Equal(t, "cus_1", ev.Checkout.CustomerID)
	require.Equal(t, "ana@example.com", ev.Checkout.CustomerEmail)
	require.Equal(t, "sub_1", ev.Checkout.SubscriptionID)
	require.Equal(t, "2", ev.Checkout.Plan)
}

func TestParseWebhookSubscriptionUpdated(t *testing.T) {
	payload := []byte(`{
		"id": "evt_2",
		"object": "event",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"customer": "cus_1",
			"status": "active",
			"cancel_at_period_end": true,
			"current_period_end": 1798761600,
			"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "price": {"id": "price_base", "object": "price"}}]}
		}}
	}`)

	ev, err := ParseWebhook(payload, sign(payload, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	require.NotNil(t, ev.Subscription)
	require.Equal(t, "sub_1", ev.Subscription.ID)
	require.Equal(t, "cus_1", ev.Subscription.CustomerID)
	require.Equal(t, "price_base", ev.Subscription.PriceID)
	require.True(t, ev.Subscription.Active())
	require.True(t, ev.Subscription.CancelAtPeriodEnd)
	require.NotNil(t, ev.Subscription.CurrentPeriodEnd)
	require.Equal(t, int64(1798761600), ev.Subscription.CurrentPeriodEnd.Unix())
}

func TestParseWebhookInvoiceFailed(t *testing.T) {
	payload := []byte(`{
		"id": "evt_3",
		"object": "event",
		"type": "invoice.payment_failed",
		"data": {"object": {
			"id": "in_1",
			"object": "invoice",
			"customer": "cus_1",
			"customer_email": "ana@example.com",
			"amount_due": 1900,
			"currency": "usd",
			"hosted_invoice_url": "https://pay.example.com/in_1"
		}}
	}`)

	ev, err := ParseWebhook(payload, sign(payload, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	require.NotNil(t, ev.Invoice)
	require.Equal(t, int64(1900), ev.Invoice.AmountDue)
	require.Equal(t, "usd", ev.Invoice.Currency)
	require.Equal(t, "https://pay.example.com/in_1", ev.Invoice.InvoiceURL)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_4","object":"event","type":"ping","data":{"object":{}}}`)

	_, err := ParseWebhook(payload, sign(payload, "whsec_other", time.Now()), testSecret)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParseWebhook(payload, sign(payload, testSecret, time.Now().Add(-time.Hour)), testSecret)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookUnknownTypeHasNoPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_5","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	ev, err := ParseWebhook(payload, sign(payload, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	require.Equal(t, "customer.created", ev.Type)
	require.Nil(t, ev.Checkout)
	require.Nil(t, ev.Subscription)
	require.Nil(t, ev.Invoice)
}
