package core

// MatchFundingTerms is a fundraiser's matching configuration at one moment.
//
// Rate is a whole percentage (50 means 50%). A nil PerDonationLimit means
// the sponsor has not agreed per-donation terms and no matching applies.
// A nil Remaining means the pool is unlimited.
type MatchFundingTerms struct {
	Rate             int64
	PerDonationLimit *int64
	Remaining        *int64
}

// CalcMatchFunding computes the sponsor match earned by a single payment.
//
// The raw match is amount*Rate/100 rounded towards zero, capped first by
// the per-donation limit and then by the remaining pool. The function is
// pure: it never mutates terms, and draining the pool is the caller's job
// (see FundraiserDeltas). Non-positive amounts and a zero rate earn no
// match.
func CalcMatchFunding(amount int64, terms MatchFundingTerms) int64 {
	if amount <= 0 || terms.Rate <= 0 {
		return 0
	}
	if terms.PerDonationLimit == nil {
		return 0
	}

	match := amount * terms.Rate / 100
	if match > *terms.PerDonationLimit {
		match = *terms.PerDonationLimit
	}
	if terms.Remaining != nil && match > *terms.Remaining {
		match = *terms.Remaining
	}
	if match < 0 {
		match = 0
	}
	return match
}
