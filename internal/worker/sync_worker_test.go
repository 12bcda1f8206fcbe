package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"raisin/internal/amqp"
	"raisin/internal/core"
	"raisin/internal/ledger"
	"raisin/internal/ledger/memory"
	"raisin/internal/storage"
)

func setupWorker(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	mirror := memory.New()
	return NewSyncWorker(repo, mirror, 10), repo, mirror
}

func seedPaidPayment(t *testing.T, repo *storage.SQLiteRepository, giftAid bool) int64 {
	t.Helper()
	ctx := context.Background()
	f, err := repo.CreateFundraiser(ctx, core.Fundraiser{Name: "Winter Appeal", Currency: core.GBP, Goal: 100000})
	if err != nil {
		t.Fatalf("CreateFundraiser() error: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	match := int64(450)
	_, ids, err := repo.CreateDonationWithPayments(ctx,
		core.Donation{FundraiserID: f.ID, DonorName: "Ada", DonationAmount: 900, GiftAid: giftAid, CreatedAt: now},
		[]core.Payment{{FundraiserID: f.ID, At: now, DonationAmount: 900, MatchFundingAmount: &match, Status: core.PaymentPaid}},
		core.FundraiserDeltas{TotalRaised: 900, DonationsCount: 1})
	if err != nil {
		t.Fatalf("CreateDonationWithPayments() error: %v", err)
	}
	return ids[0]
}

func TestProcessPendingReceipts(t *testing.T) {
	w, repo, mirror := setupWorker(t)
	ctx := context.Background()
	paymentID := seedPaidPayment(t, repo, true)

	if err := w.ProcessPendingReceipts(ctx); err != nil {
		t.Fatalf("ProcessPendingReceipts() error: %v", err)
	}

	rows := mirror.Rows()
	if len(rows) != 1 {
		t.Fatalf("mirrored rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.PaymentID != paymentID || row.DonationAmount != 900 || row.Currency != "gbp" {
		t.Errorf("mirrored row = %+v", row)
	}
	if row.GiftAidAmount != 225 {
		t.Errorf("GiftAidAmount = %d, want 225", row.GiftAidAmount)
	}
	if row.MatchFundingAmount == nil || *row.MatchFundingAmount != 450 {
		t.Errorf("MatchFundingAmount = %v, want 450", row.MatchFundingAmount)
	}

	pending, _ := repo.GetPendingSyncPayments(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending after sync = %+v, want empty", pending)
	}

	// A second sweep mirrors nothing new.
	if err := w.ProcessPendingReceipts(ctx); err != nil {
		t.Fatalf("second ProcessPendingReceipts() error: %v", err)
	}
	if len(mirror.Rows()) != 1 {
		t.Errorf("mirrored rows after second sweep = %d, want 1", len(mirror.Rows()))
	}
}

func TestHandleReceiptMessage(t *testing.T) {
	w, repo, mirror := setupWorker(t)
	ctx := context.Background()
	paymentID := seedPaidPayment(t, repo, false)

	msg := amqp.NewDonationReceiptMessage(paymentID, 1)
	if err := w.HandleReceiptMessage(ctx, msg); err != nil {
		t.Fatalf("HandleReceiptMessage() error: %v", err)
	}
	if len(mirror.Rows()) != 1 {
		t.Fatalf("mirrored rows = %d, want 1", len(mirror.Rows()))
	}
	if mirror.Rows()[0].GiftAidAmount != 0 {
		t.Errorf("GiftAidAmount = %d, want 0 without opt-in", mirror.Rows()[0].GiftAidAmount)
	}
}

func TestHandleReceiptMessage_UnknownPayment(t *testing.T) {
	w, _, _ := setupWorker(t)

	err := w.HandleReceiptMessage(context.Background(), amqp.NewDonationReceiptMessage(9999, 1))
	if err == nil {
		t.Fatal("HandleReceiptMessage() should fail for an unknown payment")
	}
}

func TestStartupSyncCheck(t *testing.T) {
	w, repo, mirror := setupWorker(t)
	ctx := context.Background()
	seedPaidPayment(t, repo, false)
	seedPaidPayment(t, repo, true)

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck() error: %v", err)
	}
	if len(mirror.Rows()) != 2 {
		t.Errorf("mirrored rows = %d, want 2", len(mirror.Rows()))
	}
}

type failingMirror struct{}

func (failingMirror) Append(context.Context, ledger.ReceiptRow) (string, error) {
	return "", errors.New("mirror unavailable")
}

func TestMirrorFailureMarksSyncError(t *testing.T) {
	_, repo, _ := setupWorker(t)
	w := NewSyncWorker(repo, failingMirror{}, 10)
	ctx := context.Background()
	paymentID := seedPaidPayment(t, repo, false)

	if err := w.mirrorPayment(ctx, paymentID); err == nil {
		t.Fatal("mirrorPayment() should fail when the mirror is down")
	}

	// The payment is out of the pending queue, parked in error state.
	pending, _ := repo.GetPendingSyncPayments(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending after mirror failure = %+v, want empty", pending)
	}
}
