// Package ledger defines the outbound ports for mirroring payment receipts
// to an external ledger. The database stays the source of truth; the mirror
// is an append-only audit trail.
package ledger

import (
	"context"
	"time"
)

// ReceiptRow is one payment as it appears in the mirrored ledger.
type ReceiptRow struct {
	PaymentID          int64
	DonationID         int64
	FundraiserID       int64
	At                 time.Time
	Currency           string
	DonationAmount     int64
	ContributionAmount int64
	MatchFundingAmount *int64
	GiftAidAmount      int64
	Status             string
	Version            int64
}

// ReceiptWriter appends receipt rows to the mirror.
type ReceiptWriter interface {
	Append(ctx context.Context, row ReceiptRow) (rowRef string, err error)
}
