package models

import "time"

type ApprovalStatus string

const (
	ApprovalPending           ApprovalStatus = "pending"
	ApprovalApproved          ApprovalStatus = "approved"
	ApprovalRejected          ApprovalStatus = "rejected"
	ApprovalPartiallyApproved ApprovalStatus = "partially_approved"
)

// IsDecision reports whether s is a value a customer may resolve a request with.
func (s ApprovalStatus) IsDecision() bool {
	return s == ApprovalApproved || s == ApprovalRejected || s == ApprovalPartiallyApproved
}

// ApprovalRequest groups time entries submitted together for a customer decision.
type ApprovalRequest struct {
	ID                string         `json:"id" db:"id"`
	OrderID           string         `json:"orderId" db:"order_id"`
	TimeEntryIDs      []string       `json:"timeEntryIds" db:"time_entry_ids"`
	ApprovedEntryIDs  []string       `json:"approvedEntryIds,omitempty" db:"approved_entry_ids"`
	Status            ApprovalStatus `json:"status" db:"status"`
	TotalHours        float64        `json:"totalHours" db:"total_hours"`
	TotalAmount       int64          `json:"totalAmount" db:"total_amount"`
	ApprovedAmount    int64          `json:"approvedAmount" db:"approved_amount"`
	ProviderNote      string         `json:"providerNote,omitempty" db:"provider_note"`
	CustomerNote      string         `json:"customerNote,omitempty" db:"customer_note"`
	CustomerInitiated bool           `json:"customerInitiated" db:"customer_initiated"`
	SubmittedAt       time.Time      `json:"submittedAt" db:"submitted_at"`
	ResolvedAt        *time.Time     `json:"resolvedAt,omitempty" db:"resolved_at"`
}
