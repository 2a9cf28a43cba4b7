package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jobhub/backend/internal/audit"
	"github.com/jobhub/backend/internal/database"
	"github.com/jobhub/backend/internal/models"
	"github.com/jobhub/backend/internal/notify"
)

const notifyTimeout = 5 * time.Second

// MaterializeResult identifies the order an event resolved to.
type MaterializeResult struct {
	OrderID string
	Created bool
}

// OrderMaterializer turns confirmed payments into orders exactly once.
type OrderMaterializer struct {
	db         *sql.DB
	notifier   notify.Notifier
	audit      *audit.AuditLogger
	policy     OrderPolicy
	txAttempts int
	now        func() time.Time
	newID      func() string
}

func NewOrderMaterializer(db *sql.DB, notifier notify.Notifier, auditLogger *audit.AuditLogger, policy OrderPolicy, txAttempts int) *OrderMaterializer {
	return &OrderMaterializer{
		db:         db,
		notifier:   notifier,
		audit:      auditLogger,
		policy:     policy,
		txAttempts: txAttempts,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// MaterializeDraft converts the draft named in v. A draft that is already
// converted yields its existing order without any write.
func (m *OrderMaterializer) MaterializeDraft(ctx context.Context, v StandardBooking, ev *models.PaymentEvent) (*MaterializeResult, error) {
	var (
		result  MaterializeResult
		created *models.Order
	)

	err := database.RunInTx(ctx, m.db, m.txAttempts, func(tx *sql.Tx) error {
		result, created = MaterializeResult{}, nil

		draft, err := lockDraft(ctx, tx, v.DraftID)
		if err != nil {
			return err
		}
		if draft.Status == models.DraftConverted {
			result.OrderID = draft.ConvertedToOrderID
			return nil
		}

		now := m.now()
		order := m.policy.BuildStandardOrder(m.newID(), draft, v, ev, now)
		inserted, err := insertOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := orderIDByPaymentReference(ctx, tx, order.PaymentReference)
			if err != nil {
				return fmt.Errorf("resolve order for payment %s: %w", order.PaymentReference, err)
			}
			log.Printf("[MATERIALIZER] Payment %s already produced order %s, linking draft %s", order.PaymentReference, existing, draft.ID)
			order.ID = existing
		} else {
			created = order
		}

		if err := markDraftConverted(ctx, tx, draft.ID, order.ID, now); err != nil {
			return err
		}
		result = MaterializeResult{OrderID: order.ID, Created: inserted}
		return nil
	})
	if err != nil {
		log.Printf("[MATERIALIZER] Draft %s conversion failed: %v", v.DraftID, err)
		return nil, err
	}

	if created != nil {
		m.afterCreate(ctx, created)
	} else {
		log.Printf("[MATERIALIZER] Draft %s already converted to order %s", v.DraftID, result.OrderID)
	}
	return &result, nil
}

// MaterializeB2B creates a business order keyed on the payment reference.
func (m *OrderMaterializer) MaterializeB2B(ctx context.Context, v B2BBooking, ev *models.PaymentEvent) (*MaterializeResult, error) {
	return m.materializeWithoutDraft(ctx, ev, func(id string, now time.Time) *models.Order {
		return m.policy.BuildB2BOrder(id, v, ev, now)
	})
}

// MaterializeMobile creates a mobile direct booking order keyed on the payment reference.
func (m *OrderMaterializer) MaterializeMobile(ctx context.Context, v MobileBooking, ev *models.PaymentEvent) (*MaterializeResult, error) {
	return m.materializeWithoutDraft(ctx, ev, func(id string, now time.Time) *models.Order {
		return m.policy.BuildMobileOrder(id, v, ev, now)
	})
}

func (m *OrderMaterializer) materializeWithoutDraft(ctx context.Context, ev *models.PaymentEvent, build func(id string, now time.Time) *models.Order) (*MaterializeResult, error) {
	var (
		result  MaterializeResult
		created *models.Order
	)
	ref := ev.Reference()

	err := database.RunInTx(ctx, m.db, m.txAttempts, func(tx *sql.Tx) error {
		result, created = MaterializeResult{}, nil

		existing, err := orderIDByPaymentReference(ctx, tx, ref)
		if err == nil {
			result.OrderID = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		order := build(m.newID(), m.now())
		inserted, err := insertOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := orderIDByPaymentReference(ctx, tx, ref)
			if err != nil {
				return err
			}
			result.OrderID = existing
			return nil
		}

		created = order
		result = MaterializeResult{OrderID: order.ID, Created: true}
		return nil
	})
	if err != nil {
		log.Printf("[MATERIALIZER] Order for payment %s failed: %v", ref, err)
		return nil, err
	}

	if created != nil {
		m.afterCreate(ctx, created)
	} else {
		log.Printf("[MATERIALIZER] Payment %s already materialized as order %s", ref, result.OrderID)
	}
	return &result, nil
}

// afterCreate runs the best-effort work that follows a committed new order.
func (m *OrderMaterializer) afterCreate(ctx context.Context, o *models.Order) {
	log.Printf("[MATERIALIZER] Created %s order %s (gross=%d fee=%d net=%d)",
		o.Variant, o.ID, o.TotalAmountPaidByBuyer, o.TotalPlatformFeeInCents, o.NetProviderAmountInCents)
	m.audit.LogOrderCreated(o.ID, string(o.Variant), o.PaymentReference, o.TotalAmountPaidByBuyer, o.TotalPlatformFeeInCents)

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	err := m.notifier.NotifyNewOrder(nctx, o.ID, o.CustomerID, o.ProviderID, notify.NewOrderDetails{
		CustomerName: o.CustomerName,
		ProviderName: o.ProviderName,
		Category:     o.Category,
		Subcategory:  o.Subcategory,
		Amount:       o.TotalAmountPaidByBuyer,
		DateFrom:     o.DateFrom,
		DateTo:       o.DateTo,
	})
	if err != nil {
		log.Printf("[NOTIFY] New order notification for %s failed: %v", o.ID, err)
	}
}

func lockDraft(ctx context.Context, tx *sql.Tx, draftID string) (*models.Draft, error) {
	var d models.Draft
	err := tx.QueryRowContext(ctx, `
		SELECT id, status, COALESCE(converted_to_order_id, ''), customer_id, provider_id,
		       customer_name, provider_name, category, subcategory, description,
		       date_from, date_to, time_slot, location, job_duration_string,
		       job_total_calculated_hours, total_price_in_cents
		FROM job_drafts
		WHERE id = $1
		FOR UPDATE`, draftID).Scan(
		&d.ID, &d.Status, &d.ConvertedToOrderID, &d.CustomerID, &d.ProviderID,
		&d.CustomerName, &d.ProviderName, &d.Category, &d.Subcategory, &d.Description,
		&d.DateFrom, &d.DateTo, &d.Time, &d.Location, &d.JobDurationString,
		&d.JobTotalCalculatedHours, &d.TotalPriceInCents,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "draft", ID: draftID}
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func markDraftConverted(ctx context.Context, tx *sql.Tx, draftID, orderID string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE job_drafts
		SET status = $1, converted_to_order_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		models.DraftConverted, orderID, now, draftID, models.DraftPending)
	if err != nil {
		return fmt.Errorf("mark draft %s converted: %w", draftID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("draft %s changed during conversion", draftID)
	}
	return nil
}
