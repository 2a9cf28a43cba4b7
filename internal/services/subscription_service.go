package services

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// SubscriptionService mirrors storage subscription state onto the company record.
type SubscriptionService struct {
	db  *sql.DB
	now func() time.Time
}

func NewSubscriptionService(db *sql.DB) *SubscriptionService {
	return &SubscriptionService{db: db, now: time.Now}
}

// ApplySubscription overwrites the company's storage plan fields. The update
// is a plain overwrite, so replays are harmless.
func (s *SubscriptionService) ApplySubscription(ctx context.Context, v StorageSubscription) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE companies
		SET storage_plan = COALESCE(NULLIF($1, ''), storage_plan),
		    storage_subscription_status = $2,
		    storage_subscription_id = COALESCE(NULLIF($3, ''), storage_subscription_id),
		    updated_at = $4
		WHERE id = $5`,
		v.PlanID, v.Status, v.SubscriptionID, s.now(), v.CompanyID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return &NotFoundError{Kind: "company", ID: v.CompanyID}
	}

	log.Printf("[SUBSCRIPTION] Company %s storage plan %q is now %s", v.CompanyID, v.PlanID, v.Status)
	return nil
}
