package models

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusClearing  OrderStatus = "zahlung_erhalten_clearing"
	OrderStatusActive    OrderStatus = "aktiv"
	OrderStatusCompleted OrderStatus = "abgeschlossen"
	OrderStatusCancelled OrderStatus = "storniert"
)

// OrderVariant records which payment flow created the order.
type OrderVariant string

const (
	VariantStandard OrderVariant = "standard"
	VariantB2B      OrderVariant = "b2b"
	VariantQuote    OrderVariant = "quote"
	VariantMobile   OrderVariant = "mobile_b2c"
)

// Order is a paid engagement. Amounts are in minor currency units.
type Order struct {
	ID                      string       `json:"id" db:"id"`
	Variant                 OrderVariant `json:"variant" db:"variant"`
	SourceDraftID           string       `json:"sourceDraftId,omitempty" db:"source_draft_id"`
	QuoteID                 string       `json:"quoteId,omitempty" db:"quote_id"`
	CustomerID              string       `json:"customerId" db:"customer_id"`
	ProviderID              string       `json:"providerId" db:"provider_id"`
	CustomerName            string       `json:"customerName,omitempty" db:"customer_name"`
	ProviderName            string       `json:"providerName,omitempty" db:"provider_name"`
	Category                string       `json:"category,omitempty" db:"category"`
	Subcategory             string       `json:"subcategory,omitempty" db:"subcategory"`
	Description             string       `json:"description,omitempty" db:"description"`
	DateFrom                string       `json:"dateFrom,omitempty" db:"date_from"`
	DateTo                  string       `json:"dateTo,omitempty" db:"date_to"`
	Time                    string       `json:"time,omitempty" db:"time_slot"`
	Location                string       `json:"location,omitempty" db:"location"`
	JobDurationString       string       `json:"jobDurationString,omitempty" db:"job_duration_string"`
	JobTotalCalculatedHours float64      `json:"jobTotalCalculatedHours" db:"job_total_calculated_hours"`

	TotalAmountPaidByBuyer   int64  `json:"totalAmountPaidByBuyer" db:"total_amount_paid_by_buyer"`
	TotalPlatformFeeInCents  int64  `json:"totalPlatformFeeInCents" db:"total_platform_fee_in_cents"`
	NetProviderAmountInCents int64  `json:"netProviderAmountInCents" db:"net_provider_amount_in_cents"`
	Currency                 string `json:"currency" db:"currency"`

	Status               OrderStatus  `json:"status" db:"status"`
	ClearingPeriodEndsAt *time.Time   `json:"clearingPeriodEndsAt,omitempty" db:"clearing_period_ends_at"`
	PaymentReference     string       `json:"paymentReference" db:"payment_reference"`
	ChargeReference      string       `json:"chargeReference,omitempty" db:"charge_reference"`
	PayerHandle          string       `json:"payerHandle,omitempty" db:"payer_handle"`
	TimeTracking         TimeTracking `json:"timeTracking" db:"time_tracking"`
	Metadata             Metadata     `json:"metadata,omitempty" db:"metadata"`
	Version              int          `json:"version" db:"version"`
	PaidAt               time.Time    `json:"paidAt" db:"paid_at"`
	CreatedAt            time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time    `json:"updatedAt" db:"updated_at"`
}

// AmountsReconcile checks gross = net + fee.
func (o *Order) AmountsReconcile() bool {
	return o.TotalAmountPaidByBuyer == o.NetProviderAmountInCents+o.TotalPlatformFeeInCents
}

// SplitAmount clamps fee into [0, gross] and derives net from it, so the
// order always reconciles.
func SplitAmount(gross, fee int64) (int64, int64) {
	if gross < 0 {
		gross = 0
	}
	if fee < 0 {
		fee = 0
	}
	if fee > gross {
		fee = gross
	}
	return fee, gross - fee
}
