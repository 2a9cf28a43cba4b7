package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jobhub/backend/internal/audit"
	"github.com/jobhub/backend/internal/database"
	"github.com/jobhub/backend/internal/models"
)

// ApprovalService drives additional time entries from logged to billing_pending.
type ApprovalService struct {
	db         *sql.DB
	audit      *audit.AuditLogger
	txAttempts int
	now        func() time.Time
	newID      func() string
}

func NewApprovalService(db *sql.DB, auditLogger *audit.AuditLogger, txAttempts int) *ApprovalService {
	return &ApprovalService{
		db:         db,
		audit:      auditLogger,
		txAttempts: txAttempts,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// TimeTrackingView is the read model returned to either party of an order.
type TimeTrackingView struct {
	OrderID     string                     `json:"orderId"`
	Summary     models.TimeTrackingSummary `json:"summary"`
	BillingData models.BillingData         `json:"billingData"`
	TimeEntries []models.TimeEntry         `json:"timeEntries"`
}

// SubmitForApproval groups logged additional entries into a pending request.
// Only the order's provider may submit.
func (s *ApprovalService) SubmitForApproval(ctx context.Context, actorID, orderID string, entryIDs []string, note string) (*models.ApprovalRequest, error) {
	ids := uniqueIDs(entryIDs)
	if len(ids) == 0 {
		return nil, ErrNothingToApprove
	}

	var req *models.ApprovalRequest
	err := database.RunInTx(ctx, s.db, s.txAttempts, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if actorID != order.ProviderID {
			return ErrForbidden
		}

		now := s.now()
		req = &models.ApprovalRequest{
			ID:           s.newID(),
			OrderID:      orderID,
			TimeEntryIDs: ids,
			Status:       models.ApprovalPending,
			ProviderNote: note,
			SubmittedAt:  now,
		}

		for _, id := range ids {
			e, ok := order.TimeTracking.Entry(id)
			if !ok {
				return &NotFoundError{Kind: "time entry", ID: id}
			}
			if e.Category != models.TimeEntryAdditional {
				return fmt.Errorf("%w: entry %s is not additional work", ErrInvalidTransition, id)
			}
			if err := e.Transition(models.TimeEntrySubmitted); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
			}
			e.ApprovalRequestID = req.ID
			e.SubmittedAt = &now
			req.TotalHours += e.Hours
			req.TotalAmount += e.BillableAmount
		}

		order.TimeTracking.Recompute()
		if err := saveTimeTracking(ctx, tx, order, now); err != nil {
			return err
		}
		return insertApprovalRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[APPROVAL] Order %s: request %s submitted with %d entries (%.2fh, %d)", orderID, req.ID, len(ids), req.TotalHours, req.TotalAmount)
	return req, nil
}

// ResolveApproval applies the customer's decision to a pending request.
// Approved entries move to billing_pending, the rest return to logged.
func (s *ApprovalService) ResolveApproval(ctx context.Context, actorID, orderID, requestID string, decision models.ApprovalStatus, approvedIDs []string, note string) (*models.ApprovalRequest, error) {
	if !decision.IsDecision() {
		return nil, ErrInvalidDecision
	}

	var req *models.ApprovalRequest
	err := database.RunInTx(ctx, s.db, s.txAttempts, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if actorID != order.CustomerID {
			return ErrForbidden
		}

		req, err = lockApprovalRequest(ctx, tx, orderID, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.ApprovalPending {
			return ErrAlreadyResolved
		}

		approved, err := approvedSet(req, decision, approvedIDs)
		if err != nil {
			return err
		}

		now := s.now()
		req.ApprovedEntryIDs = nil
		req.ApprovedAmount = 0
		for _, id := range req.TimeEntryIDs {
			e, ok := order.TimeTracking.Entry(id)
			if !ok {
				return &NotFoundError{Kind: "time entry", ID: id}
			}

			path := []models.TimeEntryStatus{models.TimeEntryRejected, models.TimeEntryLogged}
			if approved[id] {
				mid := models.TimeEntryCustomerApproved
				if decision == models.ApprovalPartiallyApproved {
					mid = models.TimeEntryPartiallyApproved
				}
				path = []models.TimeEntryStatus{mid, models.TimeEntryBillingPending}
			}
			for _, next := range path {
				if err := e.Transition(next); err != nil {
					return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
				}
			}

			if approved[id] {
				req.ApprovedEntryIDs = append(req.ApprovedEntryIDs, id)
				req.ApprovedAmount += e.BillableAmount
			} else {
				e.ApprovalRequestID = ""
			}
			e.ResolvedAt = &now
			e.CustomerNote = note
		}

		req.Status = decision
		req.CustomerNote = note
		req.ResolvedAt = &now

		order.TimeTracking.Recompute()
		if err := saveTimeTracking(ctx, tx, order, now); err != nil {
			return err
		}
		return updateApprovalRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[APPROVAL] Order %s: request %s resolved as %s (%d of %d entries, approved amount %d)",
		orderID, requestID, decision, len(req.ApprovedEntryIDs), len(req.TimeEntryIDs), req.ApprovedAmount)
	s.audit.LogOperation(orderID, "APPROVAL_RESOLVED", fmt.Sprintf("request=%s decision=%s approved_amount=%d", requestID, decision, req.ApprovedAmount))
	return req, nil
}

// CustomerInitiatedApproval lets the customer approve every logged additional
// entry the provider never submitted, in one step.
func (s *ApprovalService) CustomerInitiatedApproval(ctx context.Context, actorID, orderID, note string) (*models.ApprovalRequest, error) {
	var req *models.ApprovalRequest
	err := database.RunInTx(ctx, s.db, s.txAttempts, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if actorID != order.CustomerID {
			return ErrForbidden
		}

		now := s.now()
		req = &models.ApprovalRequest{
			ID:                s.newID(),
			OrderID:           orderID,
			Status:            models.ApprovalApproved,
			CustomerNote:      note,
			CustomerInitiated: true,
			SubmittedAt:       now,
			ResolvedAt:        &now,
		}

		path := []models.TimeEntryStatus{models.TimeEntrySubmitted, models.TimeEntryCustomerApproved, models.TimeEntryBillingPending}
		for i := range order.TimeTracking.TimeEntries {
			e := &order.TimeTracking.TimeEntries[i]
			if e.Category != models.TimeEntryAdditional || e.Status != models.TimeEntryLogged {
				continue
			}
			for _, next := range path {
				if err := e.Transition(next); err != nil {
					return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
				}
			}
			e.ApprovalRequestID = req.ID
			e.SubmittedAt = &now
			e.ResolvedAt = &now
			e.CustomerNote = note

			req.TimeEntryIDs = append(req.TimeEntryIDs, e.ID)
			req.ApprovedEntryIDs = append(req.ApprovedEntryIDs, e.ID)
			req.TotalHours += e.Hours
			req.TotalAmount += e.BillableAmount
			req.ApprovedAmount += e.BillableAmount
		}
		if len(req.TimeEntryIDs) == 0 {
			return ErrNothingToApprove
		}

		order.TimeTracking.Recompute()
		if err := saveTimeTracking(ctx, tx, order, now); err != nil {
			return err
		}
		return insertApprovalRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[APPROVAL] Order %s: customer approved %d unsubmitted entries (%d)", orderID, len(req.TimeEntryIDs), req.ApprovedAmount)
	s.audit.LogOperation(orderID, "CUSTOMER_INITIATED_APPROVAL", fmt.Sprintf("request=%s approved_amount=%d", req.ID, req.ApprovedAmount))
	return req, nil
}

// GetTimeTracking returns the time tracking of an order to its customer or provider.
func (s *ApprovalService) GetTimeTracking(ctx context.Context, actorID, orderID string) (*TimeTrackingView, error) {
	var (
		customerID, providerID string
		tt                     models.TimeTracking
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_id, provider_id, time_tracking FROM orders WHERE id = $1`, orderID).
		Scan(&customerID, &providerID, &tt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if actorID != customerID && actorID != providerID {
		return nil, ErrForbidden
	}

	return &TimeTrackingView{
		OrderID:     orderID,
		Summary:     tt.Summary(),
		BillingData: tt.BillingData,
		TimeEntries: tt.TimeEntries,
	}, nil
}

// approvedSet decides which entries of req the decision approves.
func approvedSet(req *models.ApprovalRequest, decision models.ApprovalStatus, approvedIDs []string) (map[string]bool, error) {
	set := make(map[string]bool, len(req.TimeEntryIDs))
	switch decision {
	case models.ApprovalApproved:
		for _, id := range req.TimeEntryIDs {
			set[id] = true
		}
	case models.ApprovalPartiallyApproved:
		inRequest := make(map[string]bool, len(req.TimeEntryIDs))
		for _, id := range req.TimeEntryIDs {
			inRequest[id] = true
		}
		for _, id := range approvedIDs {
			if !inRequest[id] {
				return nil, fmt.Errorf("%w: entry %s is not part of request %s", ErrInvalidDecision, id, req.ID)
			}
			set[id] = true
		}
		if len(set) == 0 {
			return nil, fmt.Errorf("%w: partial approval needs at least one entry", ErrInvalidDecision)
		}
	}
	return set, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func insertApprovalRequest(ctx context.Context, tx *sql.Tx, req *models.ApprovalRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO approval_requests (
			id, order_id, time_entry_ids, approved_entry_ids, status, total_hours, total_amount,
			approved_amount, provider_note, customer_note, customer_initiated, submitted_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		req.ID, req.OrderID, pq.Array(req.TimeEntryIDs), pq.Array(req.ApprovedEntryIDs), req.Status,
		req.TotalHours, req.TotalAmount, req.ApprovedAmount, req.ProviderNote, req.CustomerNote,
		req.CustomerInitiated, req.SubmittedAt, req.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert approval request %s: %w", req.ID, err)
	}
	return nil
}

func lockApprovalRequest(ctx context.Context, tx *sql.Tx, orderID, requestID string) (*models.ApprovalRequest, error) {
	req := models.ApprovalRequest{OrderID: orderID}
	err := tx.QueryRowContext(ctx, `
		SELECT id, time_entry_ids, status, total_hours, total_amount, provider_note, customer_initiated, submitted_at
		FROM approval_requests
		WHERE id = $1 AND order_id = $2
		FOR UPDATE`, requestID, orderID).Scan(
		&req.ID, pq.Array(&req.TimeEntryIDs), &req.Status, &req.TotalHours, &req.TotalAmount,
		&req.ProviderNote, &req.CustomerInitiated, &req.SubmittedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "approval request", ID: requestID}
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func updateApprovalRequest(ctx context.Context, tx *sql.Tx, req *models.ApprovalRequest) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE approval_requests
		SET status = $1, approved_entry_ids = $2, approved_amount = $3, customer_note = $4, resolved_at = $5
		WHERE id = $6`,
		req.Status, pq.Array(req.ApprovedEntryIDs), req.ApprovedAmount, req.CustomerNote, req.ResolvedAt, req.ID)
	if err != nil {
		return fmt.Errorf("update approval request %s: %w", req.ID, err)
	}
	return nil
}
