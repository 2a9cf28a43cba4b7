package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/jobhub/backend/internal/models"
	"github.com/jobhub/backend/internal/services"
)

const maxWebhookBody = 1_048_576

// EventVerifier authenticates a raw webhook delivery.
type EventVerifier interface {
	Verify(ctx context.Context, payload []byte, header string) (*models.PaymentEvent, error)
}

// EventDispatcher applies a verified event.
type EventDispatcher interface {
	Route(ctx context.Context, ev *models.PaymentEvent) (*services.RouteResult, error)
}

// WebhookResponse is the acknowledgement returned to the payment gateway.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Message  string `json:"message,omitempty"`
	OrderID  string `json:"orderId,omitempty"`
}

type WebhookHandler struct {
	gate   EventVerifier
	router EventDispatcher
}

func NewWebhookHandler(gate EventVerifier, router EventDispatcher) *WebhookHandler {
	return &WebhookHandler{gate: gate, router: router}
}

// HandleStripeEvent receives payment gateway events
// @Summary Payment gateway webhook
// @Description Verifies the signed event and reconciles it. Business outcomes are always acknowledged with 200.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Gateway signature"
// @Success 200 {object} WebhookResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		services.SendErrorResponse(w, "Unable to read request body", http.StatusBadRequest, nil)
		return
	}

	ev, err := h.gate.Verify(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		services.SendErrorResponse(w, "Webhook verification failed", http.StatusBadRequest, nil)
		return
	}

	result, err := h.router.Route(r.Context(), ev)
	if err != nil {
		if errors.Is(err, services.ErrStoreUnavailable) {
			log.Printf("[WEBHOOK] Event %s not processed, store unavailable: %v", ev.EventID, err)
			services.SendErrorResponse(w, "Service temporarily unavailable", http.StatusServiceUnavailable, nil)
			return
		}
		// Route only surfaces store failures; anything else is still acknowledged.
		log.Printf("[WEBHOOK] Event %s failed: %v", ev.EventID, err)
		services.SendJSONResponse(w, http.StatusOK, WebhookResponse{Received: true, Message: err.Error()})
		return
	}

	services.SendJSONResponse(w, http.StatusOK, WebhookResponse{
		Received: true,
		Message:  result.Message,
		OrderID:  result.OrderID,
	})
}
