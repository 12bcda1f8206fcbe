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

// ReconcileService applies admin corrections to donations and payments and
// keeps the fundraiser's running totals consistent. Totals are moved by the
// delta between the edit's new and previous values, never recomputed from
// history and never overwritten.
type ReconcileService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewReconcileService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *ReconcileService {
	return &ReconcileService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// EditDonationResult is what an applied donation correction reports back.
type EditDonationResult struct {
	Donation core.Donation
	Deltas   core.FundraiserDeltas
}

// EditPaymentResult is what an applied payment correction reports back.
type EditPaymentResult struct {
	Payment core.Payment
	Deltas  core.FundraiserDeltas
}

// EditDonation applies an admin correction to a donation. The edit must
// carry the previous value for every field it changes; core.ErrMissingPrevious
// is returned otherwise and nothing is persisted.
func (s *ReconcileService) EditDonation(ctx context.Context, donationID int64, edit core.DonationEdit) (EditDonationResult, error) {
	deltas, err := core.ReconcileDonationEdit(edit)
	if err != nil {
		return EditDonationResult{}, err
	}

	// Field update and delta application commit together; a failure on
	// either side leaves both untouched.
	updated, err := s.storage.UpdateDonationAmounts(ctx, donationID,
		edit.DonationAmount.New, edit.ContributionAmount.New, edit.MatchFundingAmount.New, deltas)
	if err != nil {
		return EditDonationResult{}, fmt.Errorf("update donation amounts: %w", err)
	}

	slog.InfoContext(ctx, "Donation reconciled",
		"donation_id", donationID,
		"fundraiser_id", updated.FundraiserID,
		"total_raised_delta", deltas.TotalRaised,
		"match_remaining_delta", deltas.MatchFundingRemaining)

	return EditDonationResult{Donation: updated, Deltas: deltas}, nil
}

// EditPayment applies an admin correction to a payment's amounts. Refunds
// are not corrections and go through RefundPayment instead. The edited
// payment is re-queued for the ledger mirror.
func (s *ReconcileService) EditPayment(ctx context.Context, paymentID int64, edit core.PaymentEdit) (EditPaymentResult, error) {
	deltas, err := core.ReconcilePaymentEdit(edit)
	if err != nil {
		return EditPaymentResult{}, err
	}

	updated, err := s.storage.UpdatePaymentAmounts(ctx, paymentID,
		edit.DonationAmount.New, edit.ContributionAmount.New, edit.MatchFundingAmount.New, deltas)
	if err != nil {
		return EditPaymentResult{}, fmt.Errorf("update payment amounts: %w", err)
	}

	// Publish async receipt message so the mirror picks up the correction
	if s.amqpClient != nil {
		if err := s.amqpClient.PublishDonationReceipt(ctx, paymentID, updated.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to publish receipt message for edited payment",
				"payment_id", paymentID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Payment reconciled",
		"payment_id", paymentID,
		"fundraiser_id", updated.FundraiserID,
		"total_raised_delta", deltas.TotalRaised,
		"match_remaining_delta", deltas.MatchFundingRemaining)

	return EditPaymentResult{Payment: updated, Deltas: deltas}, nil
}

// RefundResult is what an issued refund reports back.
type RefundResult struct {
	Refund core.Payment
	Deltas core.FundraiserDeltas
}

// RefundPayment reverses a settled payment by appending its negated
// counterpart to the donation. The original row stays as charged, so the
// books show both sides netting to zero, and the refund is queued for the
// ledger mirror like any other paid payment.
func (s *ReconcileService) RefundPayment(ctx context.Context, paymentID int64) (RefundResult, error) {
	original, err := s.storage.GetPayment(ctx, paymentID)
	if err != nil {
		return RefundResult{}, fmt.Errorf("load payment %d: %w", paymentID, err)
	}

	refund, deltas, err := core.RefundPayment(original, time.Now().UTC())
	if err != nil {
		return RefundResult{}, err
	}

	created, err := s.storage.AddPayment(ctx, refund, deltas)
	if err != nil {
		return RefundResult{}, fmt.Errorf("save refund payment: %w", err)
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.PublishDonationReceipt(ctx, created.ID, created.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to publish receipt message for refund",
				"payment_id", created.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Payment refunded",
		"payment_id", paymentID,
		"refund_payment_id", created.ID,
		"amount_minor", original.DonationAmount)

	return RefundResult{Refund: created, Deltas: deltas}, nil
}
