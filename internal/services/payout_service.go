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
	"github.com/jobhub/backend/internal/config"
	"github.com/jobhub/backend/internal/database"
	"github.com/jobhub/backend/internal/gateway"
	"github.com/jobhub/backend/internal/models"
)

const recordTimeout = 5 * time.Second

// PayoutPlan is everything needed to move held funds to a provider, fixed at
// settlement time so that retries send the exact same request.
type PayoutPlan struct {
	OrderID          string
	CompanyID        string
	ProviderAccount  string
	PaymentReference string
	ChargeReference  string
	Amount           int64
	Currency         string
	TimeEntryIDs     []string
	IdempotencyKey   string
}

// PayoutOutcome reports what happened to a payout attempt.
type PayoutOutcome struct {
	TransferID string
	Queued     bool
	Err        error
}

// RetryReport summarizes one pass of the retry job.
type RetryReport struct {
	Attempted int
	Succeeded int
	Failed    int
	Exhausted int
}

// PayoutService transfers platform-held funds to providers and keeps the
// failed-transfer queue for anything that could not be sent.
type PayoutService struct {
	db              *sql.DB
	gateway         gateway.Gateway
	ledger          *LedgerService
	audit           *audit.AuditLogger
	transferTimeout time.Duration
	txAttempts      int
	maxAttempts     int
	batchSize       int
	now             func() time.Time
	newID           func() string
}

func NewPayoutService(cfg *config.Config, db *sql.DB, gw gateway.Gateway, ledger *LedgerService, auditLogger *audit.AuditLogger) *PayoutService {
	return &PayoutService{
		db:              db,
		gateway:         gw,
		ledger:          ledger,
		audit:           auditLogger,
		transferTimeout: cfg.TransferTimeout,
		txAttempts:      cfg.TxMaxRetries,
		maxAttempts:     cfg.RetryMaxAttempts,
		batchSize:       cfg.RetryBatchSize,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// TransferOrEnqueue runs after the platform hold committed. It never fails
// the caller: any problem turns into a pending_retry failed transfer.
func (p *PayoutService) TransferOrEnqueue(ctx context.Context, plan PayoutPlan) PayoutOutcome {
	ctx = context.WithoutCancel(ctx)

	if plan.ProviderAccount == "" {
		account, err := payoutAccount(ctx, p.db, plan.CompanyID)
		if err != nil {
			return p.enqueue(ctx, plan, err)
		}
		plan.ProviderAccount = account
	}

	transfer, err := p.transfer(ctx, plan)
	if err != nil {
		return p.enqueue(ctx, plan, err)
	}

	err = database.RunInTx(ctx, p.db, p.txAttempts, func(tx *sql.Tx) error {
		return p.applyTransferSuccessTx(ctx, tx, plan, transfer.ID)
	})
	if err != nil {
		// The transfer went out; a retry with the same key returns it again
		// and finishes the bookkeeping.
		log.Printf("[PAYOUT] Transfer %s for order %s sent but bookkeeping failed: %v", transfer.ID, plan.OrderID, err)
		return p.enqueue(ctx, plan, err)
	}

	log.Printf("[PAYOUT] Transferred %d %s to company %s for order %s (transfer %s)",
		plan.Amount, plan.Currency, plan.CompanyID, plan.OrderID, transfer.ID)
	p.audit.LogTransfer(plan.OrderID, plan.CompanyID, transfer.ID, plan.Amount, "SUCCESS")
	return PayoutOutcome{TransferID: transfer.ID}
}

func (p *PayoutService) enqueue(ctx context.Context, plan PayoutPlan, cause error) PayoutOutcome {
	log.Printf("[PAYOUT] Transfer for order %s to company %s failed: %v", plan.OrderID, plan.CompanyID, cause)
	p.audit.LogError(plan.OrderID, plan.CompanyID, cause)

	if err := p.recordFailedTransfer(ctx, plan, cause); err != nil {
		log.Printf("[PAYOUT] CRITICAL: could not record failed transfer %s for order %s: %v", plan.IdempotencyKey, plan.OrderID, err)
		return PayoutOutcome{Err: err}
	}
	return PayoutOutcome{Queued: true, Err: cause}
}

// transfer calls the gateway with the plan's idempotency key, bounded by the transfer timeout.
func (p *PayoutService) transfer(ctx context.Context, plan PayoutPlan) (*gateway.Transfer, error) {
	if plan.ProviderAccount == "" {
		return nil, &ExternalCallError{Op: "create transfer", Err: fmt.Errorf("company %s has no payout account", plan.CompanyID)}
	}

	tctx, cancel := context.WithTimeout(ctx, p.transferTimeout)
	defer cancel()

	transfer, err := p.gateway.CreateTransfer(tctx, gateway.TransferRequest{
		Amount:            plan.Amount,
		Currency:          plan.Currency,
		Destination:       plan.ProviderAccount,
		SourceTransaction: plan.ChargeReference,
		TransferGroup:     plan.OrderID,
		Metadata: map[string]string{
			"type":             string(TagAdditionalHours),
			"orderId":          plan.OrderID,
			"companyId":        plan.CompanyID,
			"paymentReference": plan.PaymentReference,
		},
		IdempotencyKey: plan.IdempotencyKey,
	})
	if err != nil {
		return nil, &ExternalCallError{Op: "create transfer", Err: err}
	}
	return transfer, nil
}

// applyTransferSuccessTx marks the held entries transferred and moves the
// amount out of the company's hold balance.
func (p *PayoutService) applyTransferSuccessTx(ctx context.Context, tx *sql.Tx, plan PayoutPlan, transferID string) error {
	order, err := lockOrder(ctx, tx, plan.OrderID)
	if err != nil {
		return err
	}

	moved := 0
	for _, id := range plan.TimeEntryIDs {
		e, ok := order.TimeTracking.Entry(id)
		if !ok {
			return &NotFoundError{Kind: "time entry", ID: id}
		}
		if e.Status == models.TimeEntryTransferred {
			continue
		}
		if err := e.Transition(models.TimeEntryTransferred); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		e.TransferID = transferID
		moved++
	}
	if moved == 0 {
		log.Printf("[PAYOUT] Order %s entries already transferred, nothing to book", plan.OrderID)
		return nil
	}

	now := p.now()
	bd := &order.TimeTracking.BillingData
	bd.LastTransferID = transferID
	bd.LastPayoutAt = &now
	bd.PayoutStatus = string(models.BalanceStatusTransferred)

	order.TimeTracking.Recompute()
	if err := saveTimeTracking(ctx, tx, order, now); err != nil {
		return err
	}

	if err := p.ledger.ReleaseToTransferredTx(ctx, tx, &models.BalanceHistoryEntry{
		CompanyID:        plan.CompanyID,
		OrderID:          plan.OrderID,
		Amount:           plan.Amount,
		PaymentReference: plan.PaymentReference,
		TransferID:       transferID,
		TimeEntryIDs:     plan.TimeEntryIDs,
	}); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE companies SET last_payout_at = $1, updated_at = $1 WHERE id = $2`,
		now, plan.CompanyID)
	return err
}

func (p *PayoutService) recordFailedTransfer(ctx context.Context, plan PayoutPlan, cause error) error {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	now := p.now()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO failed_transfers (
			id, order_id, company_id, payment_reference, charge_reference, provider_account, amount, currency,
			time_entry_ids, idempotency_key, error, retry_count, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13, $13)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		p.newID(), plan.OrderID, plan.CompanyID, plan.PaymentReference, plan.ChargeReference, plan.ProviderAccount,
		plan.Amount, plan.Currency, pq.Array(plan.TimeEntryIDs), plan.IdempotencyKey, cause.Error(),
		models.FailedTransferPendingRetry, now)
	return err
}

// RetryFailedTransfers re-attempts queued transfers. Each row is claimed with
// SKIP LOCKED so concurrent runs never send the same transfer twice at once.
func (p *PayoutService) RetryFailedTransfers(ctx context.Context) (RetryReport, error) {
	var report RetryReport

	rows, err := p.db.QueryContext(ctx, `
		SELECT id FROM failed_transfers
		WHERE status = $1 AND retry_count < $2
		ORDER BY created_at
		LIMIT $3`,
		models.FailedTransferPendingRetry, p.maxAttempts, p.batchSize)
	if err != nil {
		return report, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return report, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	for _, id := range ids {
		status, attempted, err := p.retryOne(ctx, id)
		if err != nil {
			log.Printf("[RETRY] Failed transfer %s: %v", id, err)
		}
		if !attempted {
			continue
		}
		report.Attempted++
		switch status {
		case models.FailedTransferSucceeded:
			report.Succeeded++
		case models.FailedTransferExhausted:
			report.Exhausted++
			report.Failed++
		default:
			report.Failed++
		}
	}

	if report.Attempted > 0 {
		log.Printf("[RETRY] Attempted %d failed transfers: %d succeeded, %d failed, %d exhausted",
			report.Attempted, report.Succeeded, report.Failed, report.Exhausted)
	}
	return report, nil
}

func (p *PayoutService) retryOne(ctx context.Context, id string) (models.FailedTransferStatus, bool, error) {
	var (
		status    models.FailedTransferStatus
		attempted bool
		ft        *models.FailedTransfer
		transfer  *gateway.Transfer
	)

	err := database.RunInTx(ctx, p.db, p.txAttempts, func(tx *sql.Tx) error {
		status, attempted, transfer = "", false, nil

		var err error
		ft, err = lockFailedTransfer(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		attempted = true

		plan := PayoutPlan{
			OrderID:          ft.OrderID,
			CompanyID:        ft.CompanyID,
			ProviderAccount:  ft.ProviderAccount,
			PaymentReference: ft.PaymentReference,
			ChargeReference:  ft.ChargeReference,
			Amount:           ft.Amount,
			Currency:         ft.Currency,
			TimeEntryIDs:     ft.TimeEntryIDs,
			IdempotencyKey:   ft.IdempotencyKey,
		}
		if plan.ProviderAccount == "" {
			if account, err := payoutAccount(ctx, tx, plan.CompanyID); err == nil {
				plan.ProviderAccount = account
			}
		}

		now := p.now()
		retryCount := ft.RetryCount + 1

		transfer, err = p.transfer(ctx, plan)
		if err == nil {
			if err := p.applyTransferSuccessTx(ctx, tx, plan, transfer.ID); err != nil {
				return err
			}
			status = models.FailedTransferSucceeded
			_, err := tx.ExecContext(ctx, `
				UPDATE failed_transfers
				SET status = $1, retry_count = $2, provider_account = $3, error = '', updated_at = $4
				WHERE id = $5`,
				status, retryCount, plan.ProviderAccount, now, ft.ID)
			return err
		}

		status = models.FailedTransferPendingRetry
		if retryCount >= p.maxAttempts {
			status = models.FailedTransferExhausted
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE failed_transfers
			SET status = $1, retry_count = $2, provider_account = $3, error = $4, updated_at = $5
			WHERE id = $6`,
			status, retryCount, plan.ProviderAccount, err.Error(), now, ft.ID)
		return err
	})
	if err != nil {
		if !attempted || ft == nil {
			return "", false, err
		}
		// The transaction rolled back, so the attempt is booked on its own.
		var rerr error
		status, rerr = p.recordRetryFailure(ctx, ft.ID, err)
		if rerr != nil {
			return "", true, fmt.Errorf("%w (recording attempt: %v)", err, rerr)
		}
		if status == models.FailedTransferExhausted {
			log.Printf("[RETRY] Transfer %s for order %s exhausted after %d attempts", ft.IdempotencyKey, ft.OrderID, ft.RetryCount+1)
			p.audit.LogTransfer(ft.OrderID, ft.CompanyID, "", ft.Amount, "EXHAUSTED")
		}
		return status, true, err
	}

	switch {
	case !attempted:
	case status == models.FailedTransferSucceeded:
		log.Printf("[RETRY] Transfer %s for order %s succeeded (transfer %s)", ft.IdempotencyKey, ft.OrderID, transfer.ID)
		p.audit.LogTransfer(ft.OrderID, ft.CompanyID, transfer.ID, ft.Amount, "SUCCESS")
	case status == models.FailedTransferExhausted:
		log.Printf("[RETRY] Transfer %s for order %s exhausted after %d attempts", ft.IdempotencyKey, ft.OrderID, ft.RetryCount+1)
		p.audit.LogTransfer(ft.OrderID, ft.CompanyID, "", ft.Amount, "EXHAUSTED")
	}
	return status, attempted, nil
}

// recordRetryFailure bumps the retry count of a row whose attempt could not be
// committed and exhausts it once the attempt budget is used up.
func (p *PayoutService) recordRetryFailure(ctx context.Context, id string, cause error) (models.FailedTransferStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	var status models.FailedTransferStatus
	err := p.db.QueryRowContext(ctx, `
		UPDATE failed_transfers
		SET retry_count = retry_count + 1,
		    error = $1,
		    updated_at = $2,
		    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
		WHERE id = $5 AND status = $6
		RETURNING status`,
		cause.Error(), p.now(), p.maxAttempts, models.FailedTransferExhausted, id, models.FailedTransferPendingRetry,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FailedTransferPendingRetry, nil
	}
	return status, err
}

func lockFailedTransfer(ctx context.Context, tx *sql.Tx, id string) (*models.FailedTransfer, error) {
	var ft models.FailedTransfer
	err := tx.QueryRowContext(ctx, `
		SELECT id, order_id, company_id, payment_reference, COALESCE(charge_reference, ''), COALESCE(provider_account, ''),
		       amount, currency, time_entry_ids, idempotency_key, retry_count, status
		FROM failed_transfers
		WHERE id = $1 AND status = $2
		FOR UPDATE SKIP LOCKED`, id, models.FailedTransferPendingRetry).Scan(
		&ft.ID, &ft.OrderID, &ft.CompanyID, &ft.PaymentReference, &ft.ChargeReference, &ft.ProviderAccount,
		&ft.Amount, &ft.Currency, pq.Array(&ft.TimeEntryIDs), &ft.IdempotencyKey, &ft.RetryCount, &ft.Status,
	)
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func payoutAccount(ctx context.Context, q queryRower, companyID string) (string, error) {
	var account string
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(payout_account_id, '') FROM companies WHERE id = $1`, companyID).Scan(&account)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &NotFoundError{Kind: "company", ID: companyID}
	}
	return account, err
}
