package http

import (
	"errors"
	"testing"

	"raisin/internal/core"
)

func TestDonationRequestToDonation(t *testing.T) {
	tests := []struct {
		name    string
		req     donationRequest
		want    core.Donation
		wantErr error
	}{
		{
			name: "plain amount",
			req:  donationRequest{DonorName: "Ada", DonationAmount: "9"},
			want: core.Donation{FundraiserID: 7, DonorName: "Ada", DonationAmount: 900},
		},
		{
			name: "symbol and pence",
			req:  donationRequest{DonorName: "Ada", DonationAmount: "£12.34", ContributionAmount: "1.00"},
			want: core.Donation{FundraiserID: 7, DonorName: "Ada", DonationAmount: 1234, ContributionAmount: 100},
		},
		{
			name: "trims and strips control characters",
			req:  donationRequest{DonorName: "  Ada\x00 ", DonationAmount: "9", Message: "hi\x01there"},
			want: core.Donation{FundraiserID: 7, DonorName: "Ada", DonationAmount: 900, Message: "hithere"},
		},
		{
			name:    "rejects doubled symbol",
			req:     donationRequest{DonorName: "Ada", DonationAmount: "££1.23"},
			wantErr: core.ErrInvalidMoneyFormat,
		},
		{
			name:    "rejects one decimal digit",
			req:     donationRequest{DonorName: "Ada", DonationAmount: "1.2"},
			wantErr: core.ErrInvalidMoneyFormat,
		},
		{
			name:    "rejects bad contribution",
			req:     donationRequest{DonorName: "Ada", DonationAmount: "9", ContributionAmount: "abc"},
			wantErr: core.ErrInvalidMoneyFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.toDonation(7)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("toDonation() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("toDonation() error: %v", err)
			}
			if got.DonorName != tt.want.DonorName ||
				got.DonationAmount != tt.want.DonationAmount ||
				got.ContributionAmount != tt.want.ContributionAmount ||
				got.Message != tt.want.Message ||
				got.FundraiserID != tt.want.FundraiserID {
				t.Errorf("toDonation() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEditRequestToDonationEdit(t *testing.T) {
	newVal := int64(1000)
	prevVal := int64(900)

	req := editRequest{
		DonationAmount: moneyEditField{New: &newVal, Previous: &prevVal},
	}

	edit := req.toDonationEdit()
	if edit.DonationAmount.New == nil || *edit.DonationAmount.New != 1000 {
		t.Errorf("New = %v, want 1000", edit.DonationAmount.New)
	}
	if edit.DonationAmount.Previous == nil || *edit.DonationAmount.Previous != 900 {
		t.Errorf("Previous = %v, want 900", edit.DonationAmount.Previous)
	}
	if edit.ContributionAmount.Changed() || edit.MatchFundingAmount.Changed() {
		t.Error("untouched fields should not be marked as changed")
	}
}
