package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jobhub/backend/internal/models"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// insertOrder writes a new order. It reports false when an order for the
// same payment reference already exists.
func insertOrder(ctx context.Context, tx *sql.Tx, o *models.Order) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, variant, source_draft_id, quote_id, customer_id, provider_id,
			customer_name, provider_name, category, subcategory, description,
			date_from, date_to, time_slot, location, job_duration_string, job_total_calculated_hours,
			total_amount_paid_by_buyer, total_platform_fee_in_cents, net_provider_amount_in_cents, currency,
			status, clearing_period_ends_at, payment_reference, charge_reference, payer_handle,
			time_tracking, metadata, version, paid_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32
		)
		ON CONFLICT (payment_reference) DO NOTHING`,
		o.ID, o.Variant, nullString(o.SourceDraftID), nullString(o.QuoteID), o.CustomerID, o.ProviderID,
		o.CustomerName, o.ProviderName, o.Category, o.Subcategory, o.Description,
		o.DateFrom, o.DateTo, o.Time, o.Location, o.JobDurationString, o.JobTotalCalculatedHours,
		o.TotalAmountPaidByBuyer, o.TotalPlatformFeeInCents, o.NetProviderAmountInCents, o.Currency,
		o.Status, o.ClearingPeriodEndsAt, o.PaymentReference, o.ChargeReference, o.PayerHandle,
		o.TimeTracking, o.Metadata, o.Version, o.PaidAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert order %s: %w", o.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func orderIDByPaymentReference(ctx context.Context, tx *sql.Tx, ref string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM orders WHERE payment_reference = $1 FOR UPDATE`, ref).Scan(&id)
	return id, err
}

// lockOrder loads the parts of an order the approval and billing flows mutate.
func lockOrder(ctx context.Context, tx *sql.Tx, orderID string) (*models.Order, error) {
	var o models.Order
	err := tx.QueryRowContext(ctx, `
		SELECT id, customer_id, provider_id, status, payment_reference, charge_reference, payer_handle,
		       currency, total_amount_paid_by_buyer, total_platform_fee_in_cents, net_provider_amount_in_cents,
		       time_tracking, version
		FROM orders
		WHERE id = $1
		FOR UPDATE`, orderID).Scan(
		&o.ID, &o.CustomerID, &o.ProviderID, &o.Status, &o.PaymentReference, &o.ChargeReference, &o.PayerHandle,
		&o.Currency, &o.TotalAmountPaidByBuyer, &o.TotalPlatformFeeInCents, &o.NetProviderAmountInCents,
		&o.TimeTracking, &o.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// saveTimeTracking writes the embedded time tracking back under the version
// read by lockOrder.
func saveTimeTracking(ctx context.Context, tx *sql.Tx, o *models.Order, now time.Time) error {
	o.TimeTracking.LastUpdatedAt = &now
	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET time_tracking = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		o.TimeTracking, now, o.ID, o.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for order %s", o.ID)
	}
	o.Version++
	return nil
}
