// Package services provides business logic and orchestration services.
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

// DonationService orchestrates donation creation across SQLite and AMQP.
type DonationService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewDonationService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *DonationService {
	return &DonationService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// PaymentIntent is the response contract for a submitted donation: what is
// charged now and the series of future charges.
type PaymentIntent struct {
	Amount              int64           `json:"amount"`
	Currency            core.Currency   `json:"currency"`
	TotalDonationAmount int64           `json:"totalDonationAmount"`
	FuturePayments      []FuturePayment `json:"futurePayments"`
}

// FuturePayment is one scheduled charge in a payment intent.
type FuturePayment struct {
	Amount int64     `json:"amount"`
	At     time.Time `json:"at"`
}

// DonationResult carries the persisted donation and its payment intent.
type DonationResult struct {
	Donation core.Donation
	Intent   PaymentIntent
}

// CreateDonation validates and persists a donation with its full payment
// schedule, applies the fundraiser deltas and queues the first receipt for
// the ledger mirror.
//
// Match funding is earned by the "now" payment immediately; future payments
// earn their match when collected, against whatever pool remains then.
func (s *DonationService) CreateDonation(ctx context.Context, d core.Donation) (DonationResult, error) {
	if err := d.Validate(); err != nil {
		return DonationResult{}, err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	fundraiser, err := s.storage.GetFundraiser(ctx, d.FundraiserID)
	if err != nil {
		return DonationResult{}, fmt.Errorf("load fundraiser %d: %w", d.FundraiserID, err)
	}

	schedule, err := core.CalcPaymentSchedule(d.DonationAmount, d.CreatedAt, d.Frequency, fundraiser.RecurringDonationsTo)
	if err != nil {
		return DonationResult{}, fmt.Errorf("build schedule: %w", err)
	}

	match := core.CalcMatchFunding(schedule.Now.Amount, fundraiser.MatchFundingTerms())
	var matchPtr *int64
	if fundraiser.MatchFundingPerDonationLimit != nil {
		matchPtr = &match
	}
	d.MatchFundingAmount = matchPtr

	payments := make([]core.Payment, 0, 1+len(schedule.Future))
	payments = append(payments, core.Payment{
		FundraiserID:       d.FundraiserID,
		At:                 schedule.Now.At,
		DonationAmount:     schedule.Now.Amount,
		ContributionAmount: d.ContributionAmount,
		MatchFundingAmount: matchPtr,
		Method:             "card",
		Status:             core.PaymentPaid,
	})
	for _, fp := range schedule.Future {
		payments = append(payments, core.Payment{
			FundraiserID:   d.FundraiserID,
			At:             fp.At,
			DonationAmount: fp.Amount,
			Method:         "card",
			Status:         core.PaymentScheduled,
		})
	}

	// The raised total moves by the now payment only; scheduled payments
	// count when they are collected.
	deltas := core.FundraiserDeltas{
		TotalRaised:           schedule.Now.Amount,
		MatchFundingRemaining: -match,
		DonationsCount:        1,
	}

	saved, paymentIDs, err := s.storage.CreateDonationWithPayments(ctx, d, payments, deltas)
	if err != nil {
		return DonationResult{}, fmt.Errorf("save donation: %w", err)
	}

	// Publish async receipt message for the collected payment (non-blocking)
	if err := s.publishReceiptMessage(ctx, paymentIDs[0], 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish receipt message",
			"payment_id", paymentIDs[0], "error", err)
		// Don't fail the request - the donation is saved locally
	}

	intent := PaymentIntent{
		Amount:              schedule.Now.Amount,
		Currency:            fundraiser.Currency,
		TotalDonationAmount: schedule.Now.Amount * int64(1+len(schedule.Future)),
	}
	for _, fp := range schedule.Future {
		intent.FuturePayments = append(intent.FuturePayments, FuturePayment{Amount: fp.Amount, At: fp.At})
	}

	slog.InfoContext(ctx, "Donation created",
		"donation_id", saved.ID,
		"fundraiser_id", d.FundraiserID,
		"amount_minor", d.DonationAmount,
		"match_minor", match,
		"future_payments", len(schedule.Future))

	return DonationResult{Donation: saved, Intent: intent}, nil
}

// GiftAidForDonation returns the reclaimable gift aid for a stored donation,
// zero when the donor did not opt in.
func (s *DonationService) GiftAidForDonation(ctx context.Context, donationID int64) (int64, error) {
	d, err := s.storage.GetDonation(ctx, donationID)
	if err != nil {
		return 0, err
	}
	if !d.GiftAid {
		return 0, nil
	}
	return core.GiftAidAmount(d.DonationAmount), nil
}

func (s *DonationService) publishReceiptMessage(ctx context.Context, paymentID, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping receipt message")
		return nil
	}

	return s.amqpClient.PublishDonationReceipt(ctx, paymentID, version)
}

// Close closes both storage and AMQP connections
func (s *DonationService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close donation service: %v", errs)
	}

	return nil
}
