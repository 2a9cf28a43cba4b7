package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeGateway implements Gateway on top of the Stripe API.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, nil)}
}

// NewStripeGatewayWithURL points the API client at baseURL instead of the
// live endpoint.
func NewStripeGatewayWithURL(secretKey, baseURL string) *StripeGateway {
	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(baseURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		}),
	}
	return &StripeGateway{api: client.New(secretKey, backends)}
}

func (g *StripeGateway) CreateChargeAuthorization(ctx context.Context, req ChargeRequest) (*ChargeAuthorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerHandle != "" {
		params.Customer = stripe.String(req.CustomerHandle)
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		log.Printf("[GATEWAY] PaymentIntent creation failed: %v", err)
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &ChargeAuthorization{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
	}, nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.Destination),
	}
	if req.SourceTransaction != "" {
		params.SourceTransaction = stripe.String(req.SourceTransaction)
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		log.Printf("[GATEWAY] Transfer to %s failed: %v", req.Destination, err)
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	return &Transfer{ID: tr.ID, Amount: tr.Amount}, nil
}
