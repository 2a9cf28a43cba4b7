package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jobhub/backend/internal/database"
	"github.com/jobhub/backend/internal/models"
)

// MaterializeQuote accepts the paid proposal on a quote and creates an active
// order from it. Competing pending proposals are declined row by row.
func (m *OrderMaterializer) MaterializeQuote(ctx context.Context, v QuoteBooking, ev *models.PaymentEvent) (*MaterializeResult, error) {
	var (
		result  MaterializeResult
		created *models.Order
	)

	err := database.RunInTx(ctx, m.db, m.txAttempts, func(tx *sql.Tx) error {
		result, created = MaterializeResult{}, nil

		quote, err := lockQuote(ctx, tx, v.QuoteID)
		if err != nil {
			return err
		}
		if quote.Status == models.QuoteAccepted && quote.OrderID != "" {
			result.OrderID = quote.OrderID
			return nil
		}

		quote.Proposals, err = loadProposals(ctx, tx, quote.ID)
		if err != nil {
			return err
		}
		proposal := selectProposal(quote.Proposals, v.ProposalID, ev.Reference())
		if proposal == nil {
			id := v.ProposalID
			if id == "" {
				id = ev.Reference()
			}
			return &NotFoundError{Kind: "proposal", ID: id}
		}
		if proposal.Status == models.ProposalDeclined {
			log.Printf("[MATERIALIZER] Quote %s paid for declined proposal %s, accepting it", quote.ID, proposal.ID)
		}

		now := m.now()
		order := m.policy.BuildQuoteOrder(m.newID(), quote, proposal, v, ev, now)
		inserted, err := insertOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := orderIDByPaymentReference(ctx, tx, order.PaymentReference)
			if err != nil {
				return err
			}
			order.ID = existing
		} else {
			created = order
		}

		if err := acceptQuote(ctx, tx, quote.ID, proposal.ID, order.ID, now); err != nil {
			return err
		}
		result = MaterializeResult{OrderID: order.ID, Created: inserted}
		return nil
	})
	if err != nil {
		log.Printf("[MATERIALIZER] Quote %s conversion failed: %v", v.QuoteID, err)
		return nil, err
	}

	if created != nil {
		m.afterCreate(ctx, created)
	} else {
		log.Printf("[MATERIALIZER] Quote %s already converted to order %s", v.QuoteID, result.OrderID)
	}
	return &result, nil
}

// selectProposal matches by proposal id first, then by the payment reference
// the proposal was checked out with.
func selectProposal(proposals []models.Proposal, proposalID, paymentRef string) *models.Proposal {
	if proposalID != "" {
		for i := range proposals {
			if proposals[i].ID == proposalID {
				return &proposals[i]
			}
		}
	}
	if paymentRef != "" {
		for i := range proposals {
			if proposals[i].PaymentIntentID == paymentRef {
				return &proposals[i]
			}
		}
	}
	return nil
}

func lockQuote(ctx context.Context, tx *sql.Tx, quoteID string) (*models.Quote, error) {
	var q models.Quote
	err := tx.QueryRowContext(ctx, `
		SELECT id, customer_id, customer_name, category, subcategory, description,
		       location, date_from, date_to, status, COALESCE(order_id, '')
		FROM quotes
		WHERE id = $1
		FOR UPDATE`, quoteID).Scan(
		&q.ID, &q.CustomerID, &q.CustomerName, &q.Category, &q.Subcategory, &q.Description,
		&q.Location, &q.DateFrom, &q.DateTo, &q.Status, &q.OrderID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "quote", ID: quoteID}
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func loadProposals(ctx context.Context, tx *sql.Tx, quoteID string) ([]models.Proposal, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, provider_id, provider_name, total_amount_in_cents, platform_fee_in_cents,
		       estimated_hours, status, COALESCE(payment_intent_id, '')
		FROM quote_proposals
		WHERE quote_id = $1
		ORDER BY created_at
		FOR UPDATE`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		p := models.Proposal{QuoteID: quoteID}
		if err := rows.Scan(&p.ID, &p.ProviderID, &p.ProviderName, &p.TotalAmountInCents, &p.PlatformFeeInCents,
			&p.EstimatedHours, &p.Status, &p.PaymentIntentID); err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

func acceptQuote(ctx context.Context, tx *sql.Tx, quoteID, proposalID, orderID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE quotes
		SET status = $1, order_id = $2, accepted_proposal_id = $3, updated_at = $4
		WHERE id = $5`,
		models.QuoteAccepted, orderID, proposalID, now, quoteID); err != nil {
		return fmt.Errorf("accept quote %s: %w", quoteID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE quote_proposals
		SET status = $1, updated_at = $2
		WHERE id = $3`,
		models.ProposalAccepted, now, proposalID); err != nil {
		return fmt.Errorf("accept proposal %s: %w", proposalID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE quote_proposals
		SET status = $1, updated_at = $2
		WHERE quote_id = $3 AND id <> $4 AND status = $5`,
		models.ProposalDeclined, now, quoteID, proposalID, models.ProposalPending); err != nil {
		return fmt.Errorf("decline competing proposals on %s: %w", quoteID, err)
	}
	return nil
}
