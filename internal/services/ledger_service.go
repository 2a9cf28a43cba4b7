package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jobhub/backend/internal/models"
)

// LedgerService keeps the platform hold balance of each provider company and
// its append-only history. The Tx methods run inside the caller's transaction.
type LedgerService struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreditPlatformHoldTx adds e.Amount to the company's hold balance and records it.
func (s *LedgerService) CreditPlatformHoldTx(ctx context.Context, tx *sql.Tx, e *models.BalanceHistoryEntry) error {
	if e.Amount <= 0 {
		return fmt.Errorf("invalid platform hold amount %d", e.Amount)
	}
	e.Type = models.BalanceEntryAdditionalHoursPayment
	e.Status = models.BalanceStatusPlatformHeld

	now := s.now()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO company_balances (company_id, platform_hold_balance, transferred_total, updated_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (company_id) DO UPDATE
		SET platform_hold_balance = company_balances.platform_hold_balance + EXCLUDED.platform_hold_balance,
		    updated_at = EXCLUDED.updated_at`,
		e.CompanyID, e.Amount, now)
	if err != nil {
		return fmt.Errorf("credit platform hold for company %s: %w", e.CompanyID, err)
	}
	return s.appendHistory(ctx, tx, e, now)
}

// ReleaseToTransferredTx moves e.Amount from the hold balance to the transferred total.
func (s *LedgerService) ReleaseToTransferredTx(ctx context.Context, tx *sql.Tx, e *models.BalanceHistoryEntry) error {
	e.Type = models.BalanceEntryAdditionalHoursTransfer
	e.Status = models.BalanceStatusTransferred

	now := s.now()
	result, err := tx.ExecContext(ctx, `
		UPDATE company_balances
		SET platform_hold_balance = platform_hold_balance - $1,
		    transferred_total = transferred_total + $1,
		    updated_at = $2
		WHERE company_id = $3 AND platform_hold_balance >= $1`,
		e.Amount, now, e.CompanyID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("insufficient platform hold balance for company %s", e.CompanyID)
	}
	return s.appendHistory(ctx, tx, e, now)
}

// GetBalance returns the company balance, zero valued if nothing was ever held.
func (s *LedgerService) GetBalance(ctx context.Context, companyID string) (*models.CompanyBalance, error) {
	b := models.CompanyBalance{CompanyID: companyID}
	err := s.db.QueryRowContext(ctx, `
		SELECT platform_hold_balance, transferred_total, updated_at
		FROM company_balances
		WHERE company_id = $1`, companyID).Scan(&b.PlatformHoldBalance, &b.TransferredTotal, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &b, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *LedgerService) appendHistory(ctx context.Context, tx *sql.Tx, e *models.BalanceHistoryEntry, now time.Time) error {
	if e.ID == "" {
		e.ID = s.newID()
	}
	e.CreatedAt = now
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balance_history (id, company_id, order_id, type, status, amount, payment_reference, transfer_id, time_entry_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.CompanyID, e.OrderID, e.Type, e.Status, e.Amount, e.PaymentReference,
		nullString(e.TransferID), pq.Array(e.TimeEntryIDs), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append balance history for company %s: %w", e.CompanyID, err)
	}
	return nil
}
