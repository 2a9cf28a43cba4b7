package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type TimeEntryCategory string

const (
	TimeEntryOriginal   TimeEntryCategory = "original"
	TimeEntryAdditional TimeEntryCategory = "additional"
)

// TimeEntryStatus is the closed set of states a logged unit of work moves through.
type TimeEntryStatus string

const (
	TimeEntryLogged            TimeEntryStatus = "logged"
	TimeEntrySubmitted         TimeEntryStatus = "submitted"
	TimeEntryCustomerApproved  TimeEntryStatus = "customer_approved"
	TimeEntryPartiallyApproved TimeEntryStatus = "partially_approved"
	TimeEntryRejected          TimeEntryStatus = "rejected"
	TimeEntryBillingPending    TimeEntryStatus = "billing_pending"
	TimeEntryBilled            TimeEntryStatus = "billed"
	TimeEntryPlatformHeld      TimeEntryStatus = "platform_held"
	TimeEntryPlatformReleased  TimeEntryStatus = "platform_released"
	TimeEntryTransferred       TimeEntryStatus = "transferred"
	TimeEntryEscrowAuthorized  TimeEntryStatus = "escrow_authorized"
	TimeEntryEscrowReleased    TimeEntryStatus = "escrow_released"
)

var timeEntryTransitions = map[TimeEntryStatus][]TimeEntryStatus{
	TimeEntryLogged:            {TimeEntrySubmitted},
	TimeEntrySubmitted:         {TimeEntryCustomerApproved, TimeEntryPartiallyApproved, TimeEntryRejected},
	TimeEntryCustomerApproved:  {TimeEntryBillingPending},
	TimeEntryPartiallyApproved: {TimeEntryBillingPending},
	TimeEntryRejected:          {TimeEntryLogged},
	TimeEntryBillingPending:    {TimeEntryBilled, TimeEntryPlatformHeld, TimeEntryTransferred, TimeEntryEscrowAuthorized},
	TimeEntryBilled:            {TimeEntryPlatformHeld, TimeEntryTransferred},
	TimeEntryPlatformHeld:      {TimeEntryPlatformReleased, TimeEntryTransferred},
	TimeEntryEscrowAuthorized:  {TimeEntryEscrowReleased},
}

// Valid reports whether s is one of the known statuses.
func (s TimeEntryStatus) Valid() bool {
	switch s {
	case TimeEntryLogged, TimeEntrySubmitted, TimeEntryCustomerApproved, TimeEntryPartiallyApproved,
		TimeEntryRejected, TimeEntryBillingPending, TimeEntryBilled, TimeEntryPlatformHeld,
		TimeEntryPlatformReleased, TimeEntryTransferred, TimeEntryEscrowAuthorized, TimeEntryEscrowReleased:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s TimeEntryStatus) CanTransitionTo(next TimeEntryStatus) bool {
	for _, candidate := range timeEntryTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsSettled reports whether money for an entry in this status has been
// received. billing_pending is approved but not settled.
func (s TimeEntryStatus) IsSettled() bool {
	switch s {
	case TimeEntryBilled, TimeEntryPlatformHeld, TimeEntryPlatformReleased,
		TimeEntryTransferred, TimeEntryEscrowAuthorized, TimeEntryEscrowReleased:
		return true
	}
	return false
}

// IsApproved reports whether the customer has accepted the hours, paid or not.
func (s TimeEntryStatus) IsApproved() bool {
	switch s {
	case TimeEntryCustomerApproved, TimeEntryPartiallyApproved, TimeEntryBillingPending:
		return true
	}
	return s.IsSettled()
}

// TimeEntry is one logged unit of work on an order.
type TimeEntry struct {
	ID                           string            `json:"id"`
	Category                     TimeEntryCategory `json:"category"`
	Date                         string            `json:"date,omitempty"`
	Hours                        float64           `json:"hours"`
	BillableAmount               int64             `json:"billableAmount"`
	Description                  string            `json:"description,omitempty"`
	Status                       TimeEntryStatus   `json:"status"`
	ApprovalRequestID            string            `json:"approvalRequestId,omitempty"`
	BillingPaymentIntentID       string            `json:"billingPaymentIntentId,omitempty"`
	PaymentReference             string            `json:"paymentReference,omitempty"`
	PlatformHoldPaymentReference string            `json:"platformHoldPaymentReference,omitempty"`
	TransferID                   string            `json:"transferId,omitempty"`
	CustomerNote                 string            `json:"customerNote,omitempty"`
	SubmittedAt                  *time.Time        `json:"submittedAt,omitempty"`
	ResolvedAt                   *time.Time        `json:"resolvedAt,omitempty"`
	PaidAt                       *time.Time        `json:"paidAt,omitempty"`
}

// IsPaid reports whether the entry counts towards the amount already paid.
func (e *TimeEntry) IsPaid() bool {
	return e.Status.IsSettled() || e.PaymentReference != ""
}

// Transition moves the entry to next, refusing any edge outside the graph.
func (e *TimeEntry) Transition(next TimeEntryStatus) error {
	if !e.Status.CanTransitionTo(next) {
		return &TransitionError{EntryID: e.ID, From: e.Status, To: next}
	}
	e.Status = next
	return nil
}

// TransitionError describes a refused time entry status change.
type TransitionError struct {
	EntryID string
	From    TimeEntryStatus
	To      TimeEntryStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("time entry %s cannot move from %s to %s", e.EntryID, e.From, e.To)
}

type TimeTrackingStatus string

const (
	TimeTrackingActive          TimeTrackingStatus = "active"
	TimeTrackingPendingApproval TimeTrackingStatus = "pending_approval"
	TimeTrackingBillingPending  TimeTrackingStatus = "billing_pending"
	TimeTrackingCompleted       TimeTrackingStatus = "completed"
)

// BillingData aggregates the billing history of an order's additional hours.
type BillingData struct {
	LastPaymentIntentID string     `json:"lastPaymentIntentId,omitempty"`
	LastBilledAmount    int64      `json:"lastBilledAmount,omitempty"`
	LastPlatformFee     int64      `json:"lastPlatformFee,omitempty"`
	TotalPaidAmount     int64      `json:"totalPaidAmount"`
	LastPaymentAt       *time.Time `json:"lastPaymentAt,omitempty"`
	LastTransferID      string     `json:"lastTransferId,omitempty"`
	LastPayoutAt        *time.Time `json:"lastPayoutAt,omitempty"`
	PayoutStatus        string     `json:"payoutStatus,omitempty"`
}

// TimeTracking is embedded in an order and stored as JSONB.
type TimeTracking struct {
	TimeEntries   []TimeEntry        `json:"timeEntries"`
	BillingData   BillingData        `json:"billingData"`
	Status        TimeTrackingStatus `json:"status"`
	LastUpdatedAt *time.Time         `json:"lastUpdatedAt,omitempty"`
}

// Entry returns a pointer into the entry slice so callers can mutate in place.
func (tt *TimeTracking) Entry(id string) (*TimeEntry, bool) {
	for i := range tt.TimeEntries {
		if tt.TimeEntries[i].ID == id {
			return &tt.TimeEntries[i], true
		}
	}
	return nil, false
}

// Recompute derives the aggregate status from the entries.
func (tt *TimeTracking) Recompute() {
	var additional, paid, submitted, pending int
	for i := range tt.TimeEntries {
		e := &tt.TimeEntries[i]
		if e.Category != TimeEntryAdditional {
			continue
		}
		additional++
		switch {
		case e.IsPaid():
			paid++
		case e.Status == TimeEntryBillingPending:
			pending++
		case e.Status == TimeEntrySubmitted:
			submitted++
		}
	}

	switch {
	case additional > 0 && paid == additional:
		tt.Status = TimeTrackingCompleted
	case pending > 0:
		tt.Status = TimeTrackingBillingPending
	case submitted > 0:
		tt.Status = TimeTrackingPendingApproval
	default:
		tt.Status = TimeTrackingActive
	}
}

// TimeTrackingSummary splits additional hours into approved and paid money.
type TimeTrackingSummary struct {
	Status            TimeTrackingStatus `json:"status"`
	LoggedHours       float64            `json:"loggedHours"`
	UnpaidLoggedHours float64            `json:"unpaidLoggedHours"`
	ApprovedAmount    int64              `json:"approvedAmount"`
	PaidAmount        int64              `json:"paidAmount"`
	PendingAmount     int64              `json:"pendingAmount"`
}

// Summary computes the money view over the additional entries.
func (tt *TimeTracking) Summary() TimeTrackingSummary {
	s := TimeTrackingSummary{Status: tt.Status}
	for i := range tt.TimeEntries {
		e := &tt.TimeEntries[i]
		if e.Category != TimeEntryAdditional {
			continue
		}
		s.LoggedHours += e.Hours
		paid := e.IsPaid()
		if !paid {
			s.UnpaidLoggedHours += e.Hours
		}
		if paid || e.Status.IsApproved() {
			s.ApprovedAmount += e.BillableAmount
		}
		if paid {
			s.PaidAmount += e.BillableAmount
		} else if e.Status == TimeEntryBillingPending {
			s.PendingAmount += e.BillableAmount
		}
	}
	return s
}

// Value implements driver.Valuer for TimeTracking
func (tt TimeTracking) Value() (driver.Value, error) {
	return json.Marshal(tt)
}

// Scan implements sql.Scanner for TimeTracking
func (tt *TimeTracking) Scan(value any) error {
	if value == nil {
		*tt = TimeTracking{}
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, tt)
}
