package models

import "time"

// Gateway event types the router knows about.
const (
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventChargeSucceeded          = "charge.succeeded"
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// PaymentEvent is a verified, decoded gateway event. It is never mutated.
type PaymentEvent struct {
	EventID              string            `json:"eventId"`
	Type                 string            `json:"type"`
	ObjectID             string            `json:"objectId"`
	ObjectType           string            `json:"objectType"`
	ObjectStatus         string            `json:"objectStatus,omitempty"`
	Metadata             map[string]string `json:"metadata"`
	Amount               int64             `json:"amount"`
	ApplicationFeeAmount int64             `json:"applicationFeeAmount"`
	Currency             string            `json:"currency,omitempty"`
	PayerHandle          string            `json:"payerHandle,omitempty"`
	PaymentReference     string            `json:"paymentReference"`
	ChargeReference      string            `json:"chargeReference,omitempty"`
	Timestamp            time.Time         `json:"timestamp"`
}

// Reference returns the identifier orders are keyed on for this payment.
func (e *PaymentEvent) Reference() string {
	switch {
	case e.PaymentReference != "":
		return e.PaymentReference
	case e.ObjectID != "":
		return e.ObjectID
	default:
		return e.EventID
	}
}
