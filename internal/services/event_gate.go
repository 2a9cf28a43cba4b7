package services

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jobhub/backend/internal/models"
)

// SignatureHeader is the header the gateway signs webhook deliveries with.
const SignatureHeader = "Stripe-Signature"

// EventGate authenticates raw webhook deliveries and decodes them.
type EventGate struct {
	secret    string
	tolerance time.Duration
	limiter   *ErrorLogLimiter
}

func NewEventGate(secret string, tolerance time.Duration, limiter *ErrorLogLimiter) *EventGate {
	return &EventGate{
		secret:    secret,
		tolerance: tolerance,
		limiter:   limiter,
	}
}

// Verify checks the signature header against the raw payload and decodes the event.
func (g *EventGate) Verify(ctx context.Context, payload []byte, header string) (*models.PaymentEvent, error) {
	if err := g.verifySignature(payload, header); err != nil {
		g.limiter.Logf(ctx, "signature", "%v", err)
		return nil, err
	}

	ev, err := DecodeEvent(payload)
	if err != nil {
		g.limiter.Logf(ctx, "decode", "%v", err)
		return nil, err
	}
	return ev, nil
}

func (g *EventGate) verifySignature(payload []byte, header string) error {
	if g.secret == "" {
		return &VerificationError{Reason: "webhook secret not configured"}
	}
	if header == "" {
		return &VerificationError{Reason: "missing signature header"}
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, header, g.secret, g.tolerance); err != nil {
		return &VerificationError{Reason: err.Error()}
	}
	return nil
}

type gatewayEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object gatewayObject `json:"object"`
	} `json:"data"`
}

type gatewayObject struct {
	ID                   string            `json:"id"`
	Object               string            `json:"object"`
	Amount               int64             `json:"amount"`
	AmountTotal          int64             `json:"amount_total"`
	ApplicationFeeAmount int64             `json:"application_fee_amount"`
	Currency             string            `json:"currency"`
	Customer             expandableID      `json:"customer"`
	PaymentIntent        expandableID      `json:"payment_intent"`
	LatestCharge         expandableID      `json:"latest_charge"`
	Status               string            `json:"status"`
	Metadata             map[string]string `json:"metadata"`
}

// expandableID accepts either an id string or an expanded object with an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

// DecodeEvent maps the gateway envelope onto a PaymentEvent.
func DecodeEvent(payload []byte) (*models.PaymentEvent, error) {
	var env gatewayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &VerificationError{Reason: "malformed event payload"}
	}
	if env.ID == "" || env.Type == "" {
		return nil, &VerificationError{Reason: "event id or type missing"}
	}

	obj := env.Data.Object
	ev := &models.PaymentEvent{
		EventID:              env.ID,
		Type:                 env.Type,
		ObjectID:             obj.ID,
		ObjectType:           obj.Object,
		ObjectStatus:         obj.Status,
		Metadata:             obj.Metadata,
		Amount:               obj.Amount,
		ApplicationFeeAmount: obj.ApplicationFeeAmount,
		Currency:             obj.Currency,
		PayerHandle:          string(obj.Customer),
		Timestamp:            time.Unix(env.Created, 0).UTC(),
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]string{}
	}
	if ev.Amount == 0 {
		ev.Amount = obj.AmountTotal
	}

	switch obj.Object {
	case "payment_intent":
		ev.PaymentReference = obj.ID
		ev.ChargeReference = string(obj.LatestCharge)
	case "charge":
		ev.PaymentReference = string(obj.PaymentIntent)
		ev.ChargeReference = obj.ID
	case "checkout.session":
		ev.PaymentReference = string(obj.PaymentIntent)
	}
	if ev.PaymentReference == "" {
		ev.PaymentReference = obj.ID
	}

	return ev, nil
}
