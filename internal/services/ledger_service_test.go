package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhub/backend/internal/models"
)

func newLedger(t *testing.T) (*LedgerService, *sql.DB, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	ledger := NewLedgerService(db)
	ledger.now = fixedNow
	ledger.newID = func() string { return "bh-1" }
	return ledger, db, mock
}

func TestLedgerService_CreditPlatformHoldTx(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts the balance and appends history", func(t *testing.T) {
		ledger, db, mock := newLedger(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO company_balances (.+) ON CONFLICT \(company_id\) DO UPDATE SET platform_hold_balance = company_balances.platform_hold_balance \+ EXCLUDED.platform_hold_balance`).
			WithArgs("prov1", int64(8595), testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO balance_history").
			WithArgs("bh-1", "prov1", "o1", models.BalanceEntryAdditionalHoursPayment, models.BalanceStatusPlatformHeld,
				int64(8595), "pi_add", nil, "{\"te1\"}", testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		entry := &models.BalanceHistoryEntry{CompanyID: "prov1", OrderID: "o1", Amount: 8595, PaymentReference: "pi_add", TimeEntryIDs: []string{"te1"}}
		require.NoError(t, ledger.CreditPlatformHoldTx(ctx, tx, entry))
		require.NoError(t, tx.Commit())

		assert.Equal(t, models.BalanceStatusPlatformHeld, entry.Status)
		assert.Equal(t, "bh-1", entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		ledger, db, mock := newLedger(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		err = ledger.CreditPlatformHoldTx(ctx, tx, &models.BalanceHistoryEntry{CompanyID: "prov1", Amount: 0})
		assert.Error(t, err)
		require.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_ReleaseToTransferredTx(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient balance", func(t *testing.T) {
		ledger, db, mock := newLedger(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE company_balances (.+) WHERE company_id = \$3 AND platform_hold_balance >= \$1`).
			WithArgs(int64(10000), testNow, "prov1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		err = ledger.ReleaseToTransferredTx(ctx, tx, &models.BalanceHistoryEntry{CompanyID: "prov1", Amount: 10000})
		assert.ErrorContains(t, err, "insufficient platform hold balance")
		require.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_GetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("existing balance", func(t *testing.T) {
		ledger, _, mock := newLedger(t)
		mock.ExpectQuery(`SELECT platform_hold_balance, transferred_total, updated_at FROM company_balances WHERE company_id = \$1`).
			WithArgs("prov1").
			WillReturnRows(sqlmock.NewRows([]string{"platform_hold_balance", "transferred_total", "updated_at"}).AddRow(8595, 12892, testNow))

		b, err := ledger.GetBalance(ctx, "prov1")
		require.NoError(t, err)
		assert.Equal(t, int64(8595), b.PlatformHoldBalance)
		assert.Equal(t, int64(12892), b.TransferredTotal)
	})

	t.Run("no balance yet", func(t *testing.T) {
		ledger, _, mock := newLedger(t)
		mock.ExpectQuery("SELECT platform_hold_balance").WithArgs("prov2").WillReturnError(sql.ErrNoRows)

		b, err := ledger.GetBalance(ctx, "prov2")
		require.NoError(t, err)
		assert.Zero(t, b.PlatformHoldBalance)
	})

	t.Run("store error", func(t *testing.T) {
		ledger, _, mock := newLedger(t)
		mock.ExpectQuery("SELECT platform_hold_balance").WithArgs("prov1").WillReturnError(errors.New("down"))

		_, err := ledger.GetBalance(ctx, "prov1")
		assert.Error(t, err)
	})
}
