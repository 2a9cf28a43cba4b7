package services

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/jobhub/backend/internal/models"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var lockOrderColumns = []string{
	"id", "customer_id", "provider_id", "status", "payment_reference", "charge_reference", "payer_handle",
	"currency", "total_amount_paid_by_buyer", "total_platform_fee_in_cents", "net_provider_amount_in_cents",
	"time_tracking", "version",
}

// lockedOrderRows returns the row lockOrder scans for order o1 of customer
// cust1 and provider prov1.
func lockedOrderRows(t *testing.T, tt models.TimeTracking, version int) *sqlmock.Rows {
	t.Helper()
	b, err := json.Marshal(tt)
	require.NoError(t, err)
	return sqlmock.NewRows(lockOrderColumns).
		AddRow("o1", "cust1", "prov1", string(models.OrderStatusActive), "pi_order", "ch_order", "cus_1",
			"eur", 13120, 590, 12530, b, version)
}

func additionalEntry(id string, status models.TimeEntryStatus, hours float64, amount int64) models.TimeEntry {
	return models.TimeEntry{
		ID:             id,
		Category:       models.TimeEntryAdditional,
		Hours:          hours,
		BillableAmount: amount,
		Status:         status,
	}
}

func trackingOf(entries ...models.TimeEntry) models.TimeTracking {
	tt := models.TimeTracking{TimeEntries: entries}
	tt.Recompute()
	return tt
}

// trackingArg matches the JSONB time_tracking parameter of an order update.
type trackingArg struct {
	check func(tt models.TimeTracking) bool
}

func (a trackingArg) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	var tt models.TimeTracking
	if err := json.Unmarshal(b, &tt); err != nil {
		return false
	}
	return a.check(tt)
}

func entryStatuses(want map[string]models.TimeEntryStatus) trackingArg {
	return trackingArg{check: func(tt models.TimeTracking) bool {
		for id, status := range want {
			e, ok := tt.Entry(id)
			if !ok || e.Status != status {
				return false
			}
		}
		return true
	}}
}
