package models

import (
	"time"
)

// BalanceEntryType classifies rows in the company balance history.
type BalanceEntryType string

const (
	BalanceEntryAdditionalHoursPayment  BalanceEntryType = "additional_hours_payment"
	BalanceEntryAdditionalHoursTransfer BalanceEntryType = "additional_hours_transfer"
)

type BalanceEntryStatus string

const (
	BalanceStatusPlatformHeld BalanceEntryStatus = "platform_held"
	BalanceStatusTransferred  BalanceEntryStatus = "transferred"
)

// BalanceHistoryEntry is an append-only audit row for a company balance change.
type BalanceHistoryEntry struct {
	ID               string             `json:"id" db:"id"`
	CompanyID        string             `json:"companyId" db:"company_id"`
	OrderID          string             `json:"orderId" db:"order_id"`
	Type             BalanceEntryType   `json:"type" db:"type"`
	Status           BalanceEntryStatus `json:"status" db:"status"`
	Amount           int64              `json:"amount" db:"amount"` // in cents
	PaymentReference string             `json:"paymentReference" db:"payment_reference"`
	TransferID       string             `json:"transferId,omitempty" db:"transfer_id"`
	TimeEntryIDs     []string           `json:"timeEntryIds" db:"time_entry_ids"`
	CreatedAt        time.Time          `json:"createdAt" db:"created_at"`
}

// CompanyBalance is the running total of funds held for a provider company.
type CompanyBalance struct {
	CompanyID           string    `json:"companyId" db:"company_id"`
	PlatformHoldBalance int64     `json:"platformHoldBalance" db:"platform_hold_balance"`
	TransferredTotal    int64     `json:"transferredTotal" db:"transferred_total"`
	UpdatedAt           time.Time `json:"updatedAt" db:"updated_at"`
}

type FailedTransferStatus string

const (
	FailedTransferPendingRetry FailedTransferStatus = "pending_retry"
	FailedTransferSucceeded    FailedTransferStatus = "succeeded"
	FailedTransferExhausted    FailedTransferStatus = "exhausted"
)

// FailedTransfer records a payout that failed after local state committed.
type FailedTransfer struct {
	ID               string               `json:"id" db:"id"`
	OrderID          string               `json:"orderId" db:"order_id"`
	CompanyID        string               `json:"companyId" db:"company_id"`
	PaymentReference string               `json:"paymentReference" db:"payment_reference"`
	ChargeReference  string               `json:"chargeReference,omitempty" db:"charge_reference"`
	ProviderAccount  string               `json:"providerAccount" db:"provider_account"`
	Amount           int64                `json:"amount" db:"amount"`
	Currency         string               `json:"currency" db:"currency"`
	TimeEntryIDs     []string             `json:"timeEntryIds" db:"time_entry_ids"`
	IdempotencyKey   string               `json:"idempotencyKey" db:"idempotency_key"`
	Error            string               `json:"error" db:"error"`
	RetryCount       int                  `json:"retryCount" db:"retry_count"`
	Status           FailedTransferStatus `json:"status" db:"status"`
	CreatedAt        time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time            `json:"updatedAt" db:"updated_at"`
}
