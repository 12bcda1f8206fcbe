// Package http provides the JSON API server and handler implementations.
//
// This file implements parsing and validation of request payloads. Money
// fields on the public donation endpoint are strings in the accepted money
// grammar; admin reconciliation endpoints carry integer minor units because
// the previous-value contract needs exact stored values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"raisin/internal/core"
)

// maxBodySize caps request bodies. Donation payloads are small.
const maxBodySize = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads and unmarshals a request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return err
	}
	if len(body) > maxBodySize {
		return errBodyTooLarge
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, dst)
}

// donationRequest is the payload for submitting a donation. Amounts are
// money strings ("9", "£12.34") parsed with the strict money grammar.
type donationRequest struct {
	DonorName          string `json:"donorName"`
	DonorEmail         string `json:"donorEmail"`
	Message            string `json:"message"`
	DonationAmount     string `json:"donationAmount"`
	ContributionAmount string `json:"contributionAmount"`
	Frequency          string `json:"frequency"`
	GiftAid            bool   `json:"giftAid"`
	NameVisible        bool   `json:"nameVisible"`
	MessageVisible     bool   `json:"messageVisible"`
}

// toDonation converts the request into a domain donation for the given
// fundraiser. Money parse failures surface as ErrInvalidMoneyFormat.
func (req donationRequest) toDonation(fundraiserID int64) (core.Donation, error) {
	amount, err := core.ParseMoney(req.DonationAmount)
	if err != nil {
		return core.Donation{}, fmt.Errorf("donationAmount: %w", err)
	}

	var contribution int64
	if req.ContributionAmount != "" {
		contribution, err = core.ParseMoney(req.ContributionAmount)
		if err != nil {
			return core.Donation{}, fmt.Errorf("contributionAmount: %w", err)
		}
	}

	return core.Donation{
		FundraiserID:       fundraiserID,
		DonorName:          sanitizeInput(req.DonorName),
		DonorEmail:         sanitizeInput(req.DonorEmail),
		Message:            sanitizeInput(req.Message),
		DonationAmount:     amount,
		ContributionAmount: contribution,
		Frequency:          core.Frequency(req.Frequency),
		GiftAid:            req.GiftAid,
		NameVisible:        req.NameVisible,
		MessageVisible:     req.MessageVisible,
	}, nil
}

// moneyEditField is one edited money field: the new value and the value the
// editor last saw. Leaving New null leaves the field untouched.
type moneyEditField struct {
	New      *int64 `json:"new"`
	Previous *int64 `json:"previous"`
}

func (f moneyEditField) toEdit() core.MoneyEdit {
	return core.MoneyEdit{New: f.New, Previous: f.Previous}
}

// editRequest is the payload for admin corrections to a donation or payment.
type editRequest struct {
	DonationAmount     moneyEditField `json:"donationAmount"`
	ContributionAmount moneyEditField `json:"contributionAmount"`
	MatchFundingAmount moneyEditField `json:"matchFundingAmount"`
}

func (req editRequest) toDonationEdit() core.DonationEdit {
	return core.DonationEdit{
		DonationAmount:     req.DonationAmount.toEdit(),
		ContributionAmount: req.ContributionAmount.toEdit(),
		MatchFundingAmount: req.MatchFundingAmount.toEdit(),
	}
}

func (req editRequest) toPaymentEdit() core.PaymentEdit {
	return core.PaymentEdit(req.toDonationEdit())
}
