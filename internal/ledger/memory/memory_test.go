package memory

import (
	"context"
	"testing"
	"time"

	"raisin/internal/ledger"
)

func TestAppendAndRows(t *testing.T) {
	store := New()
	ctx := context.Background()

	ref, err := store.Append(ctx, ledger.ReceiptRow{
		PaymentID:      1,
		DonationID:     1,
		FundraiserID:   1,
		At:             time.Now(),
		Currency:       "gbp",
		DonationAmount: 900,
		Status:         "paid",
		Version:        1,
	})
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("Append() ref = %q, want mem:1", ref)
	}

	ref, _ = store.Append(ctx, ledger.ReceiptRow{PaymentID: 2})
	if ref != "mem:2" {
		t.Errorf("second Append() ref = %q, want mem:2", ref)
	}

	rows := store.Rows()
	if len(rows) != 2 || rows[0].PaymentID != 1 || rows[1].PaymentID != 2 {
		t.Errorf("Rows() = %+v", rows)
	}

	// Rows returns a copy: mutating it must not affect the store.
	rows[0].PaymentID = 99
	if store.Rows()[0].PaymentID != 1 {
		t.Error("Rows() should return a copy")
	}
}
