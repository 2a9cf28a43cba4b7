package audit

import (
	"encoding/json"
	"log"
	"time"
)

type AuditEvent struct {
	Timestamp        time.Time `json:"timestamp"`
	EventType        string    `json:"event_type"`
	OrderID          string    `json:"order_id"`
	CompanyID        string    `json:"company_id,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	Amount           int64     `json:"amount,omitempty"`
	Status           string    `json:"status"`
	Details          any       `json:"details,omitempty"`
}

// AuditLogger writes one JSON line per money-relevant state change.
type AuditLogger struct {
	now func() time.Time
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{now: time.Now}
}

func (a *AuditLogger) LogOrderCreated(orderID, variant, paymentReference string, gross, fee int64) {
	a.log(AuditEvent{
		EventType:        "ORDER_CREATED",
		OrderID:          orderID,
		PaymentReference: paymentReference,
		Amount:           gross,
		Status:           "SUCCESS",
		Details: map[string]any{
			"variant":      variant,
			"platform_fee": fee,
		},
	})
}

func (a *AuditLogger) LogPlatformHold(orderID, companyID, paymentReference string, amount int64, entryIDs []string) {
	a.log(AuditEvent{
		EventType:        "PLATFORM_HOLD",
		OrderID:          orderID,
		CompanyID:        companyID,
		PaymentReference: paymentReference,
		Amount:           amount,
		Status:           "SUCCESS",
		Details:          map[string]any{"time_entry_ids": entryIDs},
	})
}

func (a *AuditLogger) LogTransfer(orderID, companyID, transferID string, amount int64, status string) {
	a.log(AuditEvent{
		EventType: "TRANSFER",
		OrderID:   orderID,
		CompanyID: companyID,
		Amount:    amount,
		Status:    status,
		Details:   map[string]string{"transfer_id": transferID},
	})
}

func (a *AuditLogger) LogError(orderID, companyID string, err error) {
	a.log(AuditEvent{
		EventType: "ERROR",
		OrderID:   orderID,
		CompanyID: companyID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) LogOperation(orderID, operation, details string) {
	a.log(AuditEvent{
		EventType: operation,
		OrderID:   orderID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	event.Timestamp = a.now()
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
