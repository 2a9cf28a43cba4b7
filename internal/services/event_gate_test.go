package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhub/backend/internal/models"
)

const testWebhookSecret = "whsec_test"

func signPayload(secret string, ts time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

const paymentIntentEvent = `{
	"id": "evt_1",
	"type": "payment_intent.succeeded",
	"created": 1709287200,
	"data": {"object": {
		"id": "pi_1",
		"object": "payment_intent",
		"amount": 13120,
		"application_fee_amount": 590,
		"currency": "eur",
		"customer": "cus_1",
		"latest_charge": {"id": "ch_1", "object": "charge"},
		"status": "succeeded",
		"metadata": {"tempJobDraftId": "d1", "firebaseUserId": "u1"}
	}}
}`

func TestEventGate_Verify(t *testing.T) {
	ctx := context.Background()
	payload := []byte(paymentIntentEvent)
	gate := NewEventGate(testWebhookSecret, 5*time.Minute, NewErrorLogLimiter(nil, time.Minute))

	t.Run("valid signature", func(t *testing.T) {
		ev, err := gate.Verify(ctx, payload, signPayload(testWebhookSecret, time.Now(), payload))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", ev.EventID)
		assert.Equal(t, models.EventPaymentIntentSucceeded, ev.Type)
		assert.Equal(t, int64(13120), ev.Amount)
		assert.Equal(t, int64(590), ev.ApplicationFeeAmount)
		assert.Equal(t, "pi_1", ev.PaymentReference)
		assert.Equal(t, "ch_1", ev.ChargeReference)
		assert.Equal(t, "cus_1", ev.PayerHandle)
		assert.Equal(t, "d1", ev.Metadata["tempJobDraftId"])
		assert.Equal(t, time.Unix(1709287200, 0).UTC(), ev.Timestamp)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := signPayload(testWebhookSecret, time.Now(), payload)
		tampered := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"amount":1}}}`)

		_, err := gate.Verify(ctx, tampered, header)
		var verr *VerificationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := gate.Verify(ctx, payload, signPayload("whsec_other", time.Now(), payload))
		var verr *VerificationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("stale timestamp", func(t *testing.T) {
		_, err := gate.Verify(ctx, payload, signPayload(testWebhookSecret, time.Now().Add(-10*time.Minute), payload))
		var verr *VerificationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := gate.Verify(ctx, payload, "")
		var verr *VerificationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "missing signature header", verr.Reason)
	})

	t.Run("secret not configured", func(t *testing.T) {
		unconfigured := NewEventGate("", 5*time.Minute, nil)
		_, err := unconfigured.Verify(ctx, payload, signPayload(testWebhookSecret, time.Now(), payload))
		var verr *VerificationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "webhook secret not configured", verr.Reason)
	})

	t.Run("signed garbage", func(t *testing.T) {
		garbage := []byte(`not json`)
		_, err := gate.Verify(ctx, garbage, signPayload(testWebhookSecret, time.Now(), garbage))
		var verr *VerificationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "malformed event payload", verr.Reason)
	})
}

func TestDecodeEvent(t *testing.T) {
	t.Run("charge carries the payment intent as reference", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"id":"evt_2","type":"charge.succeeded","created":1,
			"data":{"object":{"id":"ch_2","object":"charge","amount":500,"payment_intent":"pi_2"}}}`))
		require.NoError(t, err)
		assert.Equal(t, "pi_2", ev.PaymentReference)
		assert.Equal(t, "ch_2", ev.ChargeReference)
	})

	t.Run("checkout session falls back to amount_total", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"id":"evt_3","type":"checkout.session.completed","created":1,
			"data":{"object":{"id":"cs_3","object":"checkout.session","amount_total":2500,"payment_intent":{"id":"pi_3"}}}}`))
		require.NoError(t, err)
		assert.Equal(t, int64(2500), ev.Amount)
		assert.Equal(t, "pi_3", ev.PaymentReference)
		assert.NotNil(t, ev.Metadata)
	})

	t.Run("subscription uses its own id", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"id":"evt_4","type":"customer.subscription.updated","created":1,
			"data":{"object":{"id":"sub_4","object":"subscription","status":"past_due","metadata":{"companyId":"c1"}}}}`))
		require.NoError(t, err)
		assert.Equal(t, "sub_4", ev.PaymentReference)
		assert.Equal(t, "past_due", ev.ObjectStatus)
	})

	t.Run("missing id or type", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":"charge.succeeded"}`))
		var verr *VerificationError
		assert.True(t, errors.As(err, &verr))
	})
}
