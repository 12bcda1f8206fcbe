package core

import (
	"errors"
	"time"
)

// ErrMissingPrevious is returned when an edit omits the previous value for
// a field it changes. Deltas are computed against the value the editor saw,
// not the value currently stored, so the previous value is mandatory.
var ErrMissingPrevious = errors.New("edit is missing the previous value")

// ErrNotRefundable is returned when a refund is requested for a payment
// that has not settled.
var ErrNotRefundable = errors.New("only paid payments can be refunded")

type (
	// MoneyEdit is a client-supplied change to one money field: the new
	// value and the value the editor last saw. A nil New leaves the field
	// untouched.
	MoneyEdit struct {
		New      *int64
		Previous *int64
	}

	// DonationEdit is an admin correction to a donation's amounts.
	DonationEdit struct {
		DonationAmount     MoneyEdit
		ContributionAmount MoneyEdit
		MatchFundingAmount MoneyEdit
	}

	// PaymentEdit is an admin correction to a payment's amounts.
	PaymentEdit struct {
		DonationAmount     MoneyEdit
		ContributionAmount MoneyEdit
		MatchFundingAmount MoneyEdit
	}

	// FundraiserDeltas are signed adjustments to a fundraiser's running
	// totals. They are applied atomically by the storage layer, never by
	// overwriting the stored totals.
	FundraiserDeltas struct {
		TotalRaised           int64
		MatchFundingRemaining int64
		DonationsCount        int64
	}
)

// IsZero reports whether applying the deltas would change nothing.
func (d FundraiserDeltas) IsZero() bool {
	return d.TotalRaised == 0 && d.MatchFundingRemaining == 0 && d.DonationsCount == 0
}

// Add returns the member-wise sum of two delta sets.
func (d FundraiserDeltas) Add(other FundraiserDeltas) FundraiserDeltas {
	return FundraiserDeltas{
		TotalRaised:           d.TotalRaised + other.TotalRaised,
		MatchFundingRemaining: d.MatchFundingRemaining + other.MatchFundingRemaining,
		DonationsCount:        d.DonationsCount + other.DonationsCount,
	}
}

// delta returns new-minus-previous for one edited field, or 0 when the
// field is not being changed.
func (e MoneyEdit) delta() (int64, error) {
	if e.New == nil {
		return 0, nil
	}
	if e.Previous == nil {
		return 0, ErrMissingPrevious
	}
	return *e.New - *e.Previous, nil
}

// Changed reports whether the edit carries a new value for the field.
func (e MoneyEdit) Changed() bool { return e.New != nil }

// ReconcileDonationEdit turns a donation correction into fundraiser deltas.
//
// Donation amount changes move the raised total; match funding changes draw
// from (or return to) the pool, so the pool delta is the negated match
// delta. Contribution changes are platform revenue and touch no fundraiser
// total.
func ReconcileDonationEdit(edit DonationEdit) (FundraiserDeltas, error) {
	donationDelta, err := edit.DonationAmount.delta()
	if err != nil {
		return FundraiserDeltas{}, err
	}
	if _, err := edit.ContributionAmount.delta(); err != nil {
		return FundraiserDeltas{}, err
	}
	matchDelta, err := edit.MatchFundingAmount.delta()
	if err != nil {
		return FundraiserDeltas{}, err
	}
	return FundraiserDeltas{
		TotalRaised:           donationDelta,
		MatchFundingRemaining: -matchDelta,
	}, nil
}

// ReconcilePaymentEdit turns a payment correction into fundraiser deltas.
// Payment corrections follow the same rules as donation corrections.
func ReconcilePaymentEdit(edit PaymentEdit) (FundraiserDeltas, error) {
	return ReconcileDonationEdit(DonationEdit(edit))
}

// RefundPayment builds the reversing payment for a settled charge together
// with the fundraiser deltas that hand the money back. The refund is a
// first-class payment with every amount negated; the original row stays
// untouched, so the books show both the charge and its reversal netting to
// zero. Any match the charge consumed returns to the pool.
func RefundPayment(p Payment, at time.Time) (Payment, FundraiserDeltas, error) {
	if p.Status != PaymentPaid {
		return Payment{}, FundraiserDeltas{}, ErrNotRefundable
	}

	refund := Payment{
		DonationID:         p.DonationID,
		FundraiserID:       p.FundraiserID,
		At:                 at,
		DonationAmount:     -p.DonationAmount,
		ContributionAmount: -p.ContributionAmount,
		Method:             "refund",
		Status:             PaymentPaid,
	}
	deltas := FundraiserDeltas{TotalRaised: -p.DonationAmount}
	if p.MatchFundingAmount != nil {
		negated := -*p.MatchFundingAmount
		refund.MatchFundingAmount = &negated
		deltas.MatchFundingRemaining = *p.MatchFundingAmount
	}
	return refund, deltas, nil
}

// GiftAidAmount is the UK tax relief reclaimable on a donation: 25% of the
// donated amount, rounded towards zero. Non-positive amounts reclaim
// nothing.
func GiftAidAmount(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount * 25 / 100
}
