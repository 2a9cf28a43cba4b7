package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	"github.com/jobhub/backend/internal/audit"
	"github.com/jobhub/backend/internal/config"
	"github.com/jobhub/backend/internal/database"
	"github.com/jobhub/backend/internal/gateway"
	"github.com/jobhub/backend/internal/models"
)

// SagaKey identifies one billing of one set of entries on an order. It is
// stable under reordering of entryIDs.
func SagaKey(orderID string, entryIDs []string) string {
	ids := append([]string(nil), entryIDs...)
	sort.Strings(ids)
	sum := blake2b.Sum256([]byte(orderID + "|" + strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:])
}

func chargeKey(orderID string, entryIDs []string) string {
	return "ah-charge-" + SagaKey(orderID, entryIDs)
}

func transferKey(orderID string, entryIDs []string) string {
	return "ah-transfer-" + SagaKey(orderID, entryIDs)
}

// BillingHandle is returned to the customer to confirm the charge client side.
type BillingHandle struct {
	OrderID         string   `json:"orderId"`
	PaymentIntentID string   `json:"paymentIntentId"`
	BillingBatchID  string   `json:"billingBatchId"`
	ClientSecret    string   `json:"clientSecret"`
	Status          string   `json:"status"`
	TimeEntryIDs    []string `json:"timeEntryIds"`
	Hours           float64  `json:"hours"`
	GrossAmount     int64    `json:"grossAmount"`
	PlatformFee     int64    `json:"platformFee"`
	NetAmount       int64    `json:"netAmount"`
	Currency        string   `json:"currency"`
}

// SettlementResult reports what a settled additional hours payment changed.
type SettlementResult struct {
	OrderID    string
	Held       int
	Amount     int64
	Duplicate  bool
	TransferID string
	Queued     bool
}

// BillingService charges approved additional hours and settles the payments.
type BillingService struct {
	db             *sql.DB
	gateway        gateway.Gateway
	ledger         *LedgerService
	payouts        *PayoutService
	audit          *audit.AuditLogger
	feeRate        decimal.Decimal
	gatewayTimeout time.Duration
	txAttempts     int
	now            func() time.Time
}

func NewBillingService(cfg *config.Config, db *sql.DB, gw gateway.Gateway, ledger *LedgerService, payouts *PayoutService, auditLogger *audit.AuditLogger) *BillingService {
	return &BillingService{
		db:             db,
		gateway:        gw,
		ledger:         ledger,
		payouts:        payouts,
		audit:          auditLogger,
		feeRate:        decimal.NewFromFloat(cfg.AdditionalHoursFeeRate),
		gatewayTimeout: cfg.GatewayTimeout,
		txAttempts:     cfg.TxMaxRetries,
		now:            time.Now,
	}
}

// BillApprovedHours asks the gateway for a charge covering every
// billing_pending entry. Billing the same entry set again returns the same
// charge, because the gateway call is keyed on the entry set.
func (s *BillingService) BillApprovedHours(ctx context.Context, actorID, orderID string) (*BillingHandle, error) {
	var (
		handle *BillingHandle
		payer  string
	)

	err := database.RunInTx(ctx, s.db, s.txAttempts, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if actorID != order.CustomerID {
			return ErrForbidden
		}

		handle = &BillingHandle{OrderID: orderID, Currency: order.Currency}
		for _, e := range order.TimeTracking.TimeEntries {
			if e.Category != models.TimeEntryAdditional || e.Status != models.TimeEntryBillingPending {
				continue
			}
			handle.TimeEntryIDs = append(handle.TimeEntryIDs, e.ID)
			handle.Hours += e.Hours
			handle.GrossAmount += e.BillableAmount
		}
		if len(handle.TimeEntryIDs) == 0 || handle.GrossAmount <= 0 {
			return ErrNothingToBill
		}
		sort.Strings(handle.TimeEntryIDs)
		payer = order.PayerHandle

		handle.BillingBatchID = SagaKey(orderID, handle.TimeEntryIDs)
		return insertBillingBatch(ctx, tx, handle.BillingBatchID, orderID, handle.TimeEntryIDs, s.now())
	})
	if err != nil {
		return nil, err
	}

	handle.PlatformFee, handle.NetAmount = models.SplitAmount(handle.GrossAmount, feeAtRate(handle.GrossAmount, s.feeRate))

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	auth, err := s.gateway.CreateChargeAuthorization(gctx, gateway.ChargeRequest{
		Amount:         handle.GrossAmount,
		Currency:       handle.Currency,
		CustomerHandle: payer,
		Description:    fmt.Sprintf("Additional hours for order %s", orderID),
		TransferGroup:  orderID,
		Metadata: map[string]string{
			"type":               string(TagAdditionalHours),
			"orderId":            orderID,
			"billingBatchId":     handle.BillingBatchID,
			"platformFeeInCents": strconv.FormatInt(handle.PlatformFee, 10),
		},
		IdempotencyKey: chargeKey(orderID, handle.TimeEntryIDs),
	})
	if err != nil {
		log.Printf("[BILLING] Charge for order %s failed: %v", orderID, err)
		return nil, &ExternalCallError{Op: "create charge authorization", Err: err}
	}
	handle.PaymentIntentID = auth.ID
	handle.ClientSecret = auth.ClientSecret
	handle.Status = auth.Status

	err = database.RunInTx(ctx, s.db, s.txAttempts, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, id := range handle.TimeEntryIDs {
			if e, ok := order.TimeTracking.Entry(id); ok && e.Status == models.TimeEntryBillingPending {
				e.BillingPaymentIntentID = auth.ID
			}
		}
		bd := &order.TimeTracking.BillingData
		bd.LastPaymentIntentID = auth.ID
		bd.LastBilledAmount = handle.GrossAmount
		bd.LastPlatformFee = handle.PlatformFee
		return saveTimeTracking(ctx, tx, order, s.now())
	})
	if err != nil {
		// The charge exists and its billing batch names the entries, so the
		// missing stamp only affects reporting.
		log.Printf("[BILLING] Order %s: could not stamp payment intent %s: %v", orderID, auth.ID, err)
	}

	log.Printf("[BILLING] Order %s: requested %d %s for %d entries (fee %d, net %d, intent %s)",
		orderID, handle.GrossAmount, handle.Currency, len(handle.TimeEntryIDs), handle.PlatformFee, handle.NetAmount, auth.ID)
	s.audit.LogOperation(orderID, "ADDITIONAL_HOURS_BILLED", fmt.Sprintf("intent=%s amount=%d fee=%d", auth.ID, handle.GrossAmount, handle.PlatformFee))
	return handle, nil
}

// SettleAdditionalHoursPayment books a confirmed additional hours payment:
// entries move to platform_held and the provider's hold balance is credited
// in one transaction. The payout to the provider follows outside of it.
func (s *BillingService) SettleAdditionalHoursPayment(ctx context.Context, v AdditionalHoursPayment, ev *models.PaymentEvent) (*SettlementResult, error) {
	ref := ev.Reference()
	var (
		result SettlementResult
		plan   *PayoutPlan
	)

	err := database.RunInTx(ctx, s.db, s.txAttempts, func(tx *sql.Tx) error {
		result, plan = SettlementResult{OrderID: v.OrderID}, nil

		order, err := lockOrder(ctx, tx, v.OrderID)
		if err != nil {
			return err
		}

		entryIDs := v.EntryIDs
		if len(entryIDs) == 0 {
			if entryIDs, err = billingBatchEntries(ctx, tx, v.BatchID, v.OrderID); err != nil {
				return err
			}
		}

		now := s.now()
		var (
			held  []string
			gross int64
		)
		for _, id := range uniqueIDs(entryIDs) {
			e, ok := order.TimeTracking.Entry(id)
			if !ok {
				return &NotFoundError{Kind: "time entry", ID: id}
			}
			if e.IsPaid() {
				continue
			}
			if err := e.Transition(models.TimeEntryPlatformHeld); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
			}
			e.PaymentReference = ref
			e.PlatformHoldPaymentReference = ref
			e.PaidAt = &now
			held = append(held, id)
			gross += e.BillableAmount
		}
		if len(held) == 0 {
			result.Duplicate = true
			return nil
		}
		if ev.Amount > 0 && ev.Amount != gross {
			log.Printf("[BILLING] Order %s: payment %s amount %d differs from entry total %d", v.OrderID, ref, ev.Amount, gross)
		}

		fee := v.PlatformFeeInCents
		if fee <= 0 {
			fee = ev.ApplicationFeeAmount
		}
		if fee <= 0 {
			fee = feeAtRate(gross, s.feeRate)
		}
		fee, net := models.SplitAmount(gross, fee)

		bd := &order.TimeTracking.BillingData
		bd.LastPaymentIntentID = ref
		bd.LastBilledAmount = gross
		bd.LastPlatformFee = fee
		bd.TotalPaidAmount += gross
		bd.LastPaymentAt = &now
		bd.PayoutStatus = string(models.BalanceStatusPlatformHeld)

		order.TimeTracking.Recompute()
		if err := saveTimeTracking(ctx, tx, order, now); err != nil {
			return err
		}

		if err := s.ledger.CreditPlatformHoldTx(ctx, tx, &models.BalanceHistoryEntry{
			CompanyID:        order.ProviderID,
			OrderID:          order.ID,
			Amount:           net,
			PaymentReference: ref,
			TimeEntryIDs:     held,
		}); err != nil {
			return err
		}

		currency := order.Currency
		if ev.Currency != "" {
			currency = strings.ToLower(ev.Currency)
		}
		plan = &PayoutPlan{
			OrderID:          order.ID,
			CompanyID:        order.ProviderID,
			PaymentReference: ref,
			ChargeReference:  ev.ChargeReference,
			Amount:           net,
			Currency:         currency,
			TimeEntryIDs:     held,
			IdempotencyKey:   transferKey(order.ID, held),
		}
		result.Held = len(held)
		result.Amount = net
		return nil
	})
	if err != nil {
		log.Printf("[BILLING] Settlement of %s for order %s failed: %v", ref, v.OrderID, err)
		return nil, err
	}

	if plan == nil {
		log.Printf("[BILLING] Payment %s for order %s already settled", ref, v.OrderID)
		return &result, nil
	}

	log.Printf("[BILLING] Order %s: %d entries held on platform, credited %d to company %s", plan.OrderID, result.Held, plan.Amount, plan.CompanyID)
	s.audit.LogPlatformHold(plan.OrderID, plan.CompanyID, ref, plan.Amount, plan.TimeEntryIDs)

	outcome := s.payouts.TransferOrEnqueue(ctx, *plan)
	result.TransferID = outcome.TransferID
	result.Queued = outcome.Queued
	return &result, nil
}

// insertBillingBatch records which entries a charge covers. Gateway metadata
// only carries the batch id, so the entry list is not bounded by its size.
func insertBillingBatch(ctx context.Context, tx *sql.Tx, batchID, orderID string, entryIDs []string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO billing_batches (id, order_id, time_entry_ids, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		batchID, orderID, pq.Array(entryIDs), now)
	return err
}

func billingBatchEntries(ctx context.Context, tx *sql.Tx, batchID, orderID string) ([]string, error) {
	var ids []string
	err := tx.QueryRowContext(ctx, `
		SELECT time_entry_ids FROM billing_batches WHERE id = $1 AND order_id = $2`,
		batchID, orderID).Scan(pq.Array(&ids))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "billing batch", ID: batchID}
	}
	return ids, err
}
