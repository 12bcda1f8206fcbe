package worker

import (
	"context"
	"fmt"
	"log/slog"

	"raisin/internal/amqp"
	"raisin/internal/core"
	"raisin/internal/ledger"
	"raisin/internal/storage"
)

// SyncWorker mirrors collected payments from SQLite to the receipt ledger.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	mirror    ledger.ReceiptWriter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, mirror ledger.ReceiptWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleReceiptMessage processes a single donation receipt message from AMQP
func (w *SyncWorker) HandleReceiptMessage(ctx context.Context, msg *amqp.DonationReceiptMessage) error {
	slog.InfoContext(ctx, "Processing receipt message",
		"payment_id", msg.PaymentID,
		"version", msg.Version)

	return w.mirrorPayment(ctx, msg.PaymentID)
}

// ProcessPendingReceipts mirrors any payments that haven't been synced yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingReceipts(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncPayments(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending payments: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending receipts", "count", len(pending))

	for _, p := range pending {
		if err := w.mirrorPayment(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror payment", "payment_id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck mirrors pending payments at worker startup. This recovers
// from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncPayments(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending payments for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending receipts found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending receipts on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		if err := w.mirrorPayment(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror payment during startup",
				"payment_id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

func (w *SyncWorker) mirrorPayment(ctx context.Context, paymentID int64) error {
	payment, err := w.storage.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("get payment from storage: %w", err)
	}

	donation, err := w.storage.GetDonation(ctx, payment.DonationID)
	if err != nil {
		return fmt.Errorf("get donation from storage: %w", err)
	}

	fundraiser, err := w.storage.GetFundraiser(ctx, payment.FundraiserID)
	if err != nil {
		return fmt.Errorf("get fundraiser from storage: %w", err)
	}

	var giftAid int64
	if donation.GiftAid {
		giftAid = core.GiftAidAmount(payment.DonationAmount)
	}

	row := ledger.ReceiptRow{
		PaymentID:          payment.ID,
		DonationID:         payment.DonationID,
		FundraiserID:       payment.FundraiserID,
		At:                 payment.At,
		Currency:           string(fundraiser.Currency),
		DonationAmount:     payment.DonationAmount,
		ContributionAmount: payment.ContributionAmount,
		MatchFundingAmount: payment.MatchFundingAmount,
		GiftAidAmount:      giftAid,
		Status:             string(payment.Status),
		Version:            payment.Version,
	}

	ref, err := w.mirror.Append(ctx, row)
	if err != nil {
		// Mark as sync error
		if markErr := w.storage.MarkSyncError(ctx, paymentID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "payment_id", paymentID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	// Mark as successfully synced
	if err := w.storage.MarkSynced(ctx, paymentID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "payment_id", paymentID, "error", err)
		// Don't return error here - the mirror write actually worked
	}

	slog.InfoContext(ctx, "Successfully mirrored payment",
		"payment_id", paymentID,
		"ledger_ref", ref,
		"amount_minor", payment.DonationAmount)

	return nil
}
