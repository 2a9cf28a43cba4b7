package models

import "time"

type DraftStatus string

const (
	DraftPending   DraftStatus = "pending"
	DraftConverted DraftStatus = "converted"
)

// Draft is an unpaid booking waiting for its payment confirmation.
type Draft struct {
	ID                      string      `json:"id" db:"id"`
	Status                  DraftStatus `json:"status" db:"status"`
	ConvertedToOrderID      string      `json:"convertedToOrderId,omitempty" db:"converted_to_order_id"`
	CustomerID              string      `json:"customerId" db:"customer_id"`
	ProviderID              string      `json:"providerId" db:"provider_id"`
	CustomerName            string      `json:"customerName" db:"customer_name"`
	ProviderName            string      `json:"providerName" db:"provider_name"`
	Category                string      `json:"category" db:"category"`
	Subcategory             string      `json:"subcategory" db:"subcategory"`
	Description             string      `json:"description" db:"description"`
	DateFrom                string      `json:"dateFrom" db:"date_from"`
	DateTo                  string      `json:"dateTo" db:"date_to"`
	Time                    string      `json:"time" db:"time_slot"`
	Location                string      `json:"location" db:"location"`
	JobDurationString       string      `json:"jobDurationString" db:"job_duration_string"`
	JobTotalCalculatedHours float64     `json:"jobTotalCalculatedHours" db:"job_total_calculated_hours"`
	TotalPriceInCents       int64       `json:"totalPriceInCents" db:"total_price_in_cents"`
	CreatedAt               time.Time   `json:"createdAt" db:"created_at"`
}

// Quote is a customer's request for proposals from several providers.
type Quote struct {
	ID                 string      `json:"id" db:"id"`
	CustomerID         string      `json:"customerId" db:"customer_id"`
	CustomerName       string      `json:"customerName" db:"customer_name"`
	Category           string      `json:"category" db:"category"`
	Subcategory        string      `json:"subcategory" db:"subcategory"`
	Description        string      `json:"description" db:"description"`
	Location           string      `json:"location" db:"location"`
	DateFrom           string      `json:"dateFrom" db:"date_from"`
	DateTo             string      `json:"dateTo" db:"date_to"`
	Status             QuoteStatus `json:"status" db:"status"`
	OrderID            string      `json:"orderId,omitempty" db:"order_id"`
	AcceptedProposalID string      `json:"acceptedProposalId,omitempty" db:"accepted_proposal_id"`
	Proposals          []Proposal  `json:"proposals"`
}

type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteAccepted QuoteStatus = "accepted"
)

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalDeclined ProposalStatus = "declined"
)

// Proposal is one provider's priced answer to a quote. Each proposal is its
// own row; only its status ever changes.
type Proposal struct {
	ID                 string         `json:"id" db:"id"`
	QuoteID            string         `json:"quoteId" db:"quote_id"`
	ProviderID         string         `json:"providerId" db:"provider_id"`
	ProviderName       string         `json:"providerName" db:"provider_name"`
	TotalAmountInCents int64          `json:"totalAmountInCents" db:"total_amount_in_cents"`
	PlatformFeeInCents int64          `json:"platformFeeInCents" db:"platform_fee_in_cents"`
	EstimatedHours     float64        `json:"estimatedHours" db:"estimated_hours"`
	Status             ProposalStatus `json:"status" db:"status"`
	PaymentIntentID    string         `json:"paymentIntentId,omitempty" db:"payment_intent_id"`
}
