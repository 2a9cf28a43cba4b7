package services

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/jobhub/backend/internal/models"
)

// ClearingService activates orders whose clearing period has run out.
type ClearingService struct {
	db  *sql.DB
	now func() time.Time
}

func NewClearingService(db *sql.DB) *ClearingService {
	return &ClearingService{db: db, now: time.Now}
}

// ReleaseClearedOrders moves every order past its clearing end from
// zahlung_erhalten_clearing to aktiv and returns how many changed.
func (s *ClearingService) ReleaseClearedOrders(ctx context.Context) (int64, error) {
	now := s.now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, version = version + 1, updated_at = $2
		WHERE status = $3 AND clearing_period_ends_at <= $2`,
		models.OrderStatusActive, now, models.OrderStatusClearing)
	if err != nil {
		return 0, err
	}

	released, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if released > 0 {
		log.Printf("[CLEARING] Released %d orders from clearing", released)
	}
	return released, nil
}
