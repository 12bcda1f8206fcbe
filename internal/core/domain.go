package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// FrequencyOneOff marks a donation with no recurring series.
	FrequencyOneOff  Frequency = ""
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentScheduled PaymentStatus = "scheduled"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

type (
	// Frequency is the recurrence cadence of a donation.
	Frequency string

	// PaymentStatus is the lifecycle state of a single payment.
	PaymentStatus string

	// Donation is one donor's pledge against a fundraiser. DonationAmount is
	// the per-payment ("now") amount; a non-one-off Frequency implies a
	// series of identical payments up to the fundraiser's recurring cutoff.
	Donation struct {
		ID                 int64
		FundraiserID       int64
		DonorName          string
		DonorEmail         string
		Message            string
		DonationAmount     int64
		ContributionAmount int64
		MatchFundingAmount *int64
		Frequency          Frequency
		GiftAid            bool
		NameVisible        bool
		MessageVisible     bool
		Version            int64
		CreatedAt          time.Time
	}

	// Payment is one concrete, dated charge belonging to a donation.
	// Amounts are signed: a refund is a payment with negated amounts.
	Payment struct {
		ID                 int64
		DonationID         int64
		FundraiserID       int64
		At                 time.Time
		DonationAmount     int64
		ContributionAmount int64
		MatchFundingAmount *int64
		Method             string
		Status             PaymentStatus
		Version            int64
		CreatedAt          time.Time
	}

	// Fundraiser is the aggregate a donation pays into. TotalRaised,
	// DonationsCount and MatchFundingRemaining are running totals and must
	// only be mutated through reconciliation deltas, never overwritten.
	Fundraiser struct {
		ID                           int64
		Name                         string
		Currency                     Currency
		Goal                         int64
		TotalRaised                  int64
		DonationsCount               int64
		MatchFundingRate             int64
		MatchFundingPerDonationLimit *int64
		MatchFundingRemaining        *int64
		RecurringDonationsTo         *time.Time
		CreatedAt                    time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidFrequency = errors.New("invalid recurrence frequency")
	ErrInvalidStatus    = errors.New("invalid payment status")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrEmptyDonorName   = errors.New("empty donor name")
	ErrEmptyName        = errors.New("empty fundraiser name")
)

// Valid reports whether the frequency is one-off, weekly or monthly.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOneOff, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// Recurring reports whether the frequency implies a series of payments.
func (f Frequency) Recurring() bool {
	return f == FrequencyWeekly || f == FrequencyMonthly
}

// Valid reports whether the status is one of the known payment states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentScheduled, PaymentPaid, PaymentCancelled:
		return true
	default:
		return false
	}
}

func (d Donation) Validate() error {
	if d.DonationAmount <= 0 {
		return ErrInvalidAmount
	}
	if d.ContributionAmount < 0 {
		return ErrInvalidAmount
	}
	if !d.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if strings.TrimSpace(d.DonorName) == "" {
		return ErrEmptyDonorName
	}
	if len(d.Message) > 500 {
		return errors.New("message too long (max 500 characters)")
	}
	return nil
}

func (p Payment) Validate() error {
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if p.At.IsZero() {
		return errors.New("payment time cannot be zero")
	}
	// DonationAmount may be negative: refunds are first-class payments.
	return nil
}

func (f Fundraiser) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if !f.Currency.Valid() {
		return ErrInvalidCurrency
	}
	if f.Goal <= 0 {
		return ErrInvalidAmount
	}
	if f.MatchFundingRate < 0 {
		return errors.New("match funding rate cannot be negative")
	}
	if f.MatchFundingPerDonationLimit != nil && *f.MatchFundingPerDonationLimit < 0 {
		return errors.New("per-donation match limit cannot be negative")
	}
	if f.MatchFundingRemaining != nil && *f.MatchFundingRemaining < 0 {
		return errors.New("match funding pool cannot be negative")
	}
	return nil
}

// MatchFundingTerms extracts the fundraiser's matching configuration in the
// form CalcMatchFunding consumes.
func (f Fundraiser) MatchFundingTerms() MatchFundingTerms {
	return MatchFundingTerms{
		Rate:             f.MatchFundingRate,
		PerDonationLimit: f.MatchFundingPerDonationLimit,
		Remaining:        f.MatchFundingRemaining,
	}
}
