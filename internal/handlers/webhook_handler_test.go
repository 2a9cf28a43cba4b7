package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jobhub/backend/internal/models"
	"github.com/jobhub/backend/internal/services"
)

const webhookBody = `{"id":"evt_1","type":"payment_intent.succeeded"}`

func serveWebhook(t *testing.T, h *WebhookHandler, signature string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/webhooks/stripe", h.HandleStripeEvent)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(webhookBody))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler_HandleStripeEvent(t *testing.T) {
	ev := &models.PaymentEvent{EventID: "evt_1", Type: models.EventPaymentIntentSucceeded}

	t.Run("acknowledges a processed event", func(t *testing.T) {
		gate, router := new(MockVerifier), new(MockDispatcher)
		gate.On("Verify", mock.Anything, []byte(webhookBody), "t=1,v1=abc").Return(ev, nil).Once()
		router.On("Route", mock.Anything, ev).
			Return(&services.RouteResult{Handled: true, OrderID: "o1", Message: "order created"}, nil).Once()

		rec := serveWebhook(t, NewWebhookHandler(gate, router), "t=1,v1=abc")

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp WebhookResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, WebhookResponse{Received: true, Message: "order created", OrderID: "o1"}, resp)
		gate.AssertExpectations(t)
		router.AssertExpectations(t)
	})

	t.Run("business failures are still acknowledged", func(t *testing.T) {
		gate, router := new(MockVerifier), new(MockDispatcher)
		gate.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(ev, nil)
		router.On("Route", mock.Anything, ev).
			Return(&services.RouteResult{Message: "draft d1 not found"}, nil)

		rec := serveWebhook(t, NewWebhookHandler(gate, router), "sig")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"received":true`)
		assert.Contains(t, rec.Body.String(), "draft d1 not found")
	})

	t.Run("rejects an unverified event", func(t *testing.T) {
		gate, router := new(MockVerifier), new(MockDispatcher)
		gate.On("Verify", mock.Anything, mock.Anything, "bad").
			Return(nil, &services.VerificationError{Reason: "signature mismatch"})

		rec := serveWebhook(t, NewWebhookHandler(gate, router), "bad")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		router.AssertNotCalled(t, "Route", mock.Anything, mock.Anything)
	})

	t.Run("store outage asks the gateway to retry", func(t *testing.T) {
		gate, router := new(MockVerifier), new(MockDispatcher)
		gate.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(ev, nil)
		router.On("Route", mock.Anything, ev).
			Return(nil, fmt.Errorf("begin: %w", services.ErrStoreUnavailable))

		rec := serveWebhook(t, NewWebhookHandler(gate, router), "sig")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("unexpected router error is acknowledged", func(t *testing.T) {
		gate, router := new(MockVerifier), new(MockDispatcher)
		gate.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(ev, nil)
		router.On("Route", mock.Anything, ev).Return(nil, errors.New("boom"))

		rec := serveWebhook(t, NewWebhookHandler(gate, router), "sig")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "boom")
	})
}
