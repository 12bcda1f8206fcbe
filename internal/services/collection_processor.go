package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"raisin/internal/amqp"
	"raisin/internal/core"
	"raisin/internal/storage"
)

// CollectionProcessor materializes scheduled payments once their due time
// arrives: it charges them, computes the match they earn against the pool
// remaining at collection time, moves the fundraiser totals and queues a
// receipt for the ledger mirror.
type CollectionProcessor struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	batchSize  int
}

// NewCollectionProcessor creates a new collection processor
func NewCollectionProcessor(storage *storage.SQLiteRepository, amqpClient *amqp.Client, batchSize int) *CollectionProcessor {
	if batchSize < 1 {
		batchSize = 10
	}
	return &CollectionProcessor{
		storage:    storage,
		amqpClient: amqpClient,
		batchSize:  batchSize,
	}
}

// ProcessDuePayments collects all scheduled payments due at or before now
// and returns how many were collected.
func (p *CollectionProcessor) ProcessDuePayments(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.storage.ListDuePayments(ctx, now, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due payments: %w", err)
	}

	slog.InfoContext(ctx, "Processing due payments",
		"total_due", len(due),
		"processing_date", now.Format("2006-01-02"))

	collected := 0
	for _, payment := range due {
		if err := p.collectPayment(ctx, payment); err != nil {
			slog.ErrorContext(ctx, "Failed to collect payment",
				"payment_id", payment.ID,
				"donation_id", payment.DonationID,
				"error", err)
			continue
		}
		collected++
	}

	slog.InfoContext(ctx, "Due payment processing complete",
		"collected", collected,
		"total_checked", len(due))

	return collected, nil
}

func (p *CollectionProcessor) collectPayment(ctx context.Context, payment core.Payment) error {
	fundraiser, err := p.storage.GetFundraiser(ctx, payment.FundraiserID)
	if err != nil {
		return fmt.Errorf("load fundraiser %d: %w", payment.FundraiserID, err)
	}

	// The match is earned against whatever pool remains now, not against
	// the pool as it stood when the schedule was created.
	match := core.CalcMatchFunding(payment.DonationAmount, fundraiser.MatchFundingTerms())
	var matchPtr *int64
	if fundraiser.MatchFundingPerDonationLimit != nil {
		matchPtr = &match
	}

	// Status flip and delta application commit together: a crash between
	// the two can neither double-count nor drop the collection.
	deltas := core.FundraiserDeltas{
		TotalRaised:           payment.DonationAmount,
		MatchFundingRemaining: -match,
	}
	if err := p.storage.MarkPaymentCollected(ctx, payment.ID, matchPtr, deltas); err != nil {
		return fmt.Errorf("mark payment collected: %w", err)
	}

	if p.amqpClient != nil {
		if err := p.amqpClient.PublishDonationReceipt(ctx, payment.ID, payment.Version+1); err != nil {
			slog.ErrorContext(ctx, "Failed to publish receipt message for collected payment",
				"payment_id", payment.ID, "error", err)
			// The payment is collected; the pending-sync sweep will catch it
		}
	}

	slog.InfoContext(ctx, "Collected scheduled payment",
		"payment_id", payment.ID,
		"donation_id", payment.DonationID,
		"amount_minor", payment.DonationAmount,
		"match_minor", match)

	return nil
}
