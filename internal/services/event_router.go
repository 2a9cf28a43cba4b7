package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jobhub/backend/internal/database"
	"github.com/jobhub/backend/internal/models"
)

// OrderConverter materializes orders for the booking variants.
type OrderConverter interface {
	MaterializeDraft(ctx context.Context, v StandardBooking, ev *models.PaymentEvent) (*MaterializeResult, error)
	MaterializeB2B(ctx context.Context, v B2BBooking, ev *models.PaymentEvent) (*MaterializeResult, error)
	MaterializeQuote(ctx context.Context, v QuoteBooking, ev *models.PaymentEvent) (*MaterializeResult, error)
	MaterializeMobile(ctx context.Context, v MobileBooking, ev *models.PaymentEvent) (*MaterializeResult, error)
}

// AdditionalHoursSettler books payments for approved additional hours.
type AdditionalHoursSettler interface {
	SettleAdditionalHoursPayment(ctx context.Context, v AdditionalHoursPayment, ev *models.PaymentEvent) (*SettlementResult, error)
}

// SubscriptionUpdater applies storage subscription changes.
type SubscriptionUpdater interface {
	ApplySubscription(ctx context.Context, v StorageSubscription) error
}

// RouteResult is what the webhook acknowledges back to the gateway.
type RouteResult struct {
	Handled   bool   `json:"handled"`
	OrderID   string `json:"orderId,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EventRouter dispatches verified events to the component owning their variant.
type EventRouter struct {
	parser        *VariantParser
	orders        OrderConverter
	hours         AdditionalHoursSettler
	subscriptions SubscriptionUpdater
	limiter       *ErrorLogLimiter
}

func NewEventRouter(parser *VariantParser, orders OrderConverter, hours AdditionalHoursSettler, subscriptions SubscriptionUpdater, limiter *ErrorLogLimiter) *EventRouter {
	return &EventRouter{
		parser:        parser,
		orders:        orders,
		hours:         hours,
		subscriptions: subscriptions,
		limiter:       limiter,
	}
}

// Route handles ev and always produces a result to acknowledge. The only
// error returned is ErrStoreUnavailable, which the caller should surface so
// the gateway redelivers.
func (r *EventRouter) Route(ctx context.Context, ev *models.PaymentEvent) (*RouteResult, error) {
	switch ev.Type {
	case models.EventPaymentIntentSucceeded, models.EventChargeSucceeded, models.EventCheckoutSessionCompleted,
		models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
	default:
		return &RouteResult{Message: fmt.Sprintf("event type %s ignored", ev.Type)}, nil
	}

	variant, err := r.parser.Parse(ev)
	if err != nil {
		return r.failed(ctx, ev, err)
	}

	result, err := r.dispatch(ctx, variant, ev)
	if err != nil {
		return r.failed(ctx, ev, err)
	}
	return result, nil
}

func (r *EventRouter) dispatch(ctx context.Context, variant PaymentVariant, ev *models.PaymentEvent) (*RouteResult, error) {
	var (
		mr  *MaterializeResult
		err error
	)

	switch v := variant.(type) {
	case StandardBooking:
		mr, err = r.orders.MaterializeDraft(ctx, v, ev)
	case B2BBooking:
		mr, err = r.orders.MaterializeB2B(ctx, v, ev)
	case QuoteBooking:
		mr, err = r.orders.MaterializeQuote(ctx, v, ev)
	case MobileBooking:
		mr, err = r.orders.MaterializeMobile(ctx, v, ev)
	case AdditionalHoursPayment:
		sr, err := r.hours.SettleAdditionalHoursPayment(ctx, v, ev)
		if err != nil {
			return nil, err
		}
		res := &RouteResult{Handled: true, OrderID: sr.OrderID, Duplicate: sr.Duplicate}
		switch {
		case sr.Duplicate:
			res.Message = "additional hours already settled"
		case sr.Queued:
			res.Message = "additional hours held, payout queued for retry"
		default:
			res.Message = "additional hours settled"
		}
		return res, nil
	case StorageSubscription:
		if err := r.subscriptions.ApplySubscription(ctx, v); err != nil {
			return nil, err
		}
		return &RouteResult{Handled: true, Message: "subscription updated"}, nil
	default:
		return &RouteResult{Message: fmt.Sprintf("variant %s not handled", variant.Tag())}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &RouteResult{Handled: true, OrderID: mr.OrderID, Duplicate: !mr.Created}
	if res.Duplicate {
		res.Message = "order already exists"
	} else {
		res.Message = "order created"
	}
	return res, nil
}

// failed turns an error into an acknowledgement, except when the store is down.
func (r *EventRouter) failed(ctx context.Context, ev *models.PaymentEvent, err error) (*RouteResult, error) {
	if errors.Is(err, ErrStoreUnavailable) {
		log.Printf("[WEBHOOK] Store unavailable while handling %s (%s): %v", ev.EventID, ev.Type, err)
		return nil, err
	}

	var (
		incomplete *MetadataIncompleteError
		notFound   *NotFoundError
		conflict   *database.TransactionConflictError
		external   *ExternalCallError
	)
	class := "internal"
	switch {
	case errors.As(err, &incomplete):
		class = "metadata_incomplete"
	case errors.As(err, &notFound):
		class = "not_found"
	case errors.As(err, &conflict):
		class = "tx_conflict"
	case errors.As(err, &external):
		class = "gateway"
	case errors.Is(err, ErrInvalidTransition):
		class = "invalid_transition"
	}

	r.limiter.Logf(ctx, class, "Event %s (%s) not processed: %v", ev.EventID, ev.Type, err)
	return &RouteResult{Message: err.Error()}, nil
}
