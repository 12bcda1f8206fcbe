package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"raisin/internal/core"
	"raisin/internal/services"
	"raisin/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	donations := services.NewDonationService(repo, nil)
	reconcile := services.NewReconcileService(repo, nil)
	srv := NewServer("127.0.0.1:0", donations, reconcile, repo)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, repo
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func createTestFundraiser(t *testing.T, srv *Server, body string) int64 {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/fundraisers", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create fundraiser status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ov fundraiserOverview
	if err := json.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode fundraiser: %v", err)
	}
	return ov.ID
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	if rec := doJSON(t, srv, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d", rec.Code)
	}
}

func TestCreateAndGetFundraiser(t *testing.T) {
	srv, _ := newTestServer(t)

	id := createTestFundraiser(t, srv,
		`{"name":"Winter Appeal","currency":"gbp","goal":100000,"matchFundingRate":50,"matchFundingPerDonationLimit":2000,"matchFundingRemaining":50000}`)

	rec := doJSON(t, srv, http.MethodGet, "/fundraisers/"+strconv.FormatInt(id, 10), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get fundraiser status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ov fundraiserOverview
	if err := json.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.Name != "Winter Appeal" || ov.Currency != core.GBP {
		t.Errorf("overview = %+v", ov)
	}
	if ov.GoalFormatted != "£1000" {
		t.Errorf("GoalFormatted = %q, want £1000", ov.GoalFormatted)
	}
	if ov.TotalRaisedFormatted != "£0.00" {
		t.Errorf("TotalRaisedFormatted = %q, want £0.00", ov.TotalRaisedFormatted)
	}
	if ov.MatchFundingRate != "50%" {
		t.Errorf("MatchFundingRate = %q, want 50%%", ov.MatchFundingRate)
	}
}

func TestGetFundraiser_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/fundraisers/999", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateDonation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createTestFundraiser(t, srv,
		`{"name":"Winter Appeal","currency":"gbp","goal":100000,"matchFundingRate":100,"matchFundingPerDonationLimit":2000,"matchFundingRemaining":50000}`)
	base := "/fundraisers/" + strconv.FormatInt(id, 10)

	rec := doJSON(t, srv, http.MethodPost, base+"/donations",
		`{"donorName":"Ada","donationAmount":"£9.00","contributionAmount":"1.00","giftAid":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create donation status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp donationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DonationID == 0 {
		t.Error("DonationID not set")
	}
	if resp.PaymentIntent.Amount != 900 {
		t.Errorf("intent amount = %d, want 900", resp.PaymentIntent.Amount)
	}
	if resp.PaymentIntent.TotalDonationAmount != 900 {
		t.Errorf("intent total = %d, want 900", resp.PaymentIntent.TotalDonationAmount)
	}
	if resp.GiftAidAmount != 225 {
		t.Errorf("gift aid = %d, want 225", resp.GiftAidAmount)
	}
	if len(resp.PaymentIntent.FuturePayments) != 0 {
		t.Errorf("one-off donation has %d future payments", len(resp.PaymentIntent.FuturePayments))
	}

	// The overview cache is invalidated so the new total shows immediately.
	getRec := doJSON(t, srv, http.MethodGet, base, "")
	var ov fundraiserOverview
	if err := json.Unmarshal(getRec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.TotalRaised != 900 {
		t.Errorf("TotalRaised = %d, want 900", ov.TotalRaised)
	}
	if ov.DonationsCount != 1 {
		t.Errorf("DonationsCount = %d, want 1", ov.DonationsCount)
	}
	// 900 matched at 100% capped by the 2000 per-donation limit: pool drops by 900.
	if ov.MatchFundingRemaining == nil || *ov.MatchFundingRemaining != 49100 {
		t.Errorf("MatchFundingRemaining = %v, want 49100", ov.MatchFundingRemaining)
	}
}

func TestCreateDonation_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createTestFundraiser(t, srv, `{"name":"Appeal","currency":"gbp","goal":100000}`)
	base := "/fundraisers/" + strconv.FormatInt(id, 10) + "/donations"

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"bad money grammar", `{"donorName":"Ada","donationAmount":"1.2"}`, 422},
		{"missing donor name", `{"donationAmount":"9"}`, 422},
		{"bad frequency", `{"donorName":"Ada","donationAmount":"9","frequency":"DAILY"}`, 422},
		{"not json", `not json`, 400},
		{"empty body", ``, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, base, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestCreateDonation_UnknownFundraiser(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/fundraisers/424242/donations",
		`{"donorName":"Ada","donationAmount":"9"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestEditDonation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createTestFundraiser(t, srv, `{"name":"Appeal","currency":"gbp","goal":100000}`)
	base := "/fundraisers/" + strconv.FormatInt(id, 10)

	rec := doJSON(t, srv, http.MethodPost, base+"/donations", `{"donorName":"Ada","donationAmount":"9"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create donation status = %d", rec.Code)
	}
	var created donationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	editPath := "/admin/donations/" + strconv.FormatInt(created.DonationID, 10) + "/edits"

	// Missing previous value is rejected before anything is persisted.
	rec = doJSON(t, srv, http.MethodPost, editPath, `{"donationAmount":{"new":1000}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("edit without previous status = %d, want 422", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, editPath, `{"donationAmount":{"new":1000,"previous":900}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var edit editResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &edit); err != nil {
		t.Fatalf("decode edit response: %v", err)
	}
	if edit.TotalRaisedDelta != 100 {
		t.Errorf("TotalRaisedDelta = %d, want 100", edit.TotalRaisedDelta)
	}
	if edit.Version != 2 {
		t.Errorf("Version = %d, want 2", edit.Version)
	}

	getRec := doJSON(t, srv, http.MethodGet, base, "")
	var ov fundraiserOverview
	if err := json.Unmarshal(getRec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.TotalRaised != 1000 {
		t.Errorf("TotalRaised after edit = %d, want 1000", ov.TotalRaised)
	}
}

func TestEditPayment_Correction(t *testing.T) {
	srv, repo := newTestServer(t)
	id := createTestFundraiser(t, srv, `{"name":"Appeal","currency":"gbp","goal":100000}`)
	base := "/fundraisers/" + strconv.FormatInt(id, 10)

	rec := doJSON(t, srv, http.MethodPost, base+"/donations", `{"donorName":"Ada","donationAmount":"9"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create donation status = %d", rec.Code)
	}

	// The now payment of the first donation in a fresh database.
	payment, err := repo.GetPayment(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPayment() error: %v", err)
	}
	editPath := "/admin/payments/" + strconv.FormatInt(payment.ID, 10) + "/edits"

	// The charge was actually £7.00: correct it down.
	rec = doJSON(t, srv, http.MethodPost, editPath, `{"donationAmount":{"new":700,"previous":900}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("correction status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var edit editResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &edit); err != nil {
		t.Fatalf("decode edit response: %v", err)
	}
	if edit.TotalRaisedDelta != -200 {
		t.Errorf("TotalRaisedDelta = %d, want -200", edit.TotalRaisedDelta)
	}

	getRec := doJSON(t, srv, http.MethodGet, base, "")
	var ov fundraiserOverview
	if err := json.Unmarshal(getRec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.TotalRaised != 700 {
		t.Errorf("TotalRaised after correction = %d, want 700", ov.TotalRaised)
	}
}

func TestRefundPayment(t *testing.T) {
	srv, repo := newTestServer(t)
	id := createTestFundraiser(t, srv, `{"name":"Appeal","currency":"gbp","goal":100000}`)
	base := "/fundraisers/" + strconv.FormatInt(id, 10)

	rec := doJSON(t, srv, http.MethodPost, base+"/donations", `{"donorName":"Ada","donationAmount":"9"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create donation status = %d", rec.Code)
	}

	payment, err := repo.GetPayment(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPayment() error: %v", err)
	}

	rec = doJSON(t, srv, http.MethodPost, "/admin/payments/"+strconv.FormatInt(payment.ID, 10)+"/refunds", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("refund status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var refund refundResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &refund); err != nil {
		t.Fatalf("decode refund response: %v", err)
	}
	if refund.Amount != -900 || refund.TotalRaisedDelta != -900 {
		t.Errorf("refund = %+v, want amount and delta -900", refund)
	}
	if refund.RefundPaymentID == payment.ID {
		t.Error("refund reused the original payment row")
	}

	// Received 900, refunded 900: the fundraiser nets to zero.
	getRec := doJSON(t, srv, http.MethodGet, base, "")
	var ov fundraiserOverview
	if err := json.Unmarshal(getRec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.TotalRaised != 0 {
		t.Errorf("TotalRaised after refund = %d, want 0", ov.TotalRaised)
	}

	// Refunding a payment that does not exist is a 404.
	rec = doJSON(t, srv, http.MethodPost, "/admin/payments/424242/refunds", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("refund unknown payment status = %d, want 404", rec.Code)
	}
}

func TestRateLimiting(t *testing.T) {
	srv, _ := newTestServer(t)

	var lastCode int
	for i := 0; i < 65; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/fundraisers", `{"name":"x","currency":"gbp","goal":1}`)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Errorf("status after 65 POSTs = %d, want 429", lastCode)
	}
}
