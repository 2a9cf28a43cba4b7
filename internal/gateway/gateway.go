package gateway

import "context"

// ChargeRequest asks the gateway for a new customer charge authorization.
type ChargeRequest struct {
	Amount         int64
	Currency       string
	CustomerHandle string
	Description    string
	TransferGroup  string
	Metadata       map[string]string
	IdempotencyKey string
}

// ChargeAuthorization is the client-confirmable handle returned for a charge.
type ChargeAuthorization struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
}

// TransferRequest moves held funds to a provider's payout account.
type TransferRequest struct {
	Amount            int64
	Currency          string
	Destination       string
	SourceTransaction string
	TransferGroup     string
	Metadata          map[string]string
	IdempotencyKey    string
}

type Transfer struct {
	ID     string
	Amount int64
}

// Gateway is the payment processor as seen by billing and payouts.
type Gateway interface {
	CreateChargeAuthorization(ctx context.Context, req ChargeRequest) (*ChargeAuthorization, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}
