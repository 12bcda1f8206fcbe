package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"raisin/internal/core"
	"raisin/internal/storage"
)

// fundraiserOverview is the public read model for a fundraiser. Raw minor
// units travel next to their formatted renderings so clients never format
// money themselves.
type fundraiserOverview struct {
	ID                           int64         `json:"id"`
	Name                         string        `json:"name"`
	Currency                     core.Currency `json:"currency"`
	Goal                         int64         `json:"goal"`
	GoalFormatted                string        `json:"goalFormatted"`
	TotalRaised                  int64         `json:"totalRaised"`
	TotalRaisedFormatted         string        `json:"totalRaisedFormatted"`
	DonationsCount               int64         `json:"donationsCount"`
	PeopleProtected              int64         `json:"peopleProtected"`
	MatchFundingRate             string        `json:"matchFundingRate"`
	MatchFundingRemaining        *int64        `json:"matchFundingRemaining"`
	MatchFundingRemainingDisplay string        `json:"matchFundingRemainingDisplay"`
	MatchFundingPerDonationLimit *int64        `json:"matchFundingPerDonationLimit"`
	RecurringDonationsTo         string        `json:"recurringDonationsTo"`
}

// createFundraiserRequest is the payload for registering a fundraiser.
// Money fields are minor units: this is an operator-facing endpoint.
type createFundraiserRequest struct {
	Name                         string     `json:"name"`
	Currency                     string     `json:"currency"`
	Goal                         int64      `json:"goal"`
	MatchFundingRate             int64      `json:"matchFundingRate"`
	MatchFundingPerDonationLimit *int64     `json:"matchFundingPerDonationLimit"`
	MatchFundingRemaining        *int64     `json:"matchFundingRemaining"`
	RecurringDonationsTo         *time.Time `json:"recurringDonationsTo"`
}

func (s *Server) handleCreateFundraiser(w http.ResponseWriter, r *http.Request) {
	var req createFundraiserRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	f := core.Fundraiser{
		Name:                         sanitizeInput(req.Name),
		Currency:                     core.Currency(req.Currency),
		Goal:                         req.Goal,
		MatchFundingRate:             req.MatchFundingRate,
		MatchFundingPerDonationLimit: req.MatchFundingPerDonationLimit,
		MatchFundingRemaining:        req.MatchFundingRemaining,
		RecurringDonationsTo:         req.RecurringDonationsTo,
	}

	saved, err := s.storage.CreateFundraiser(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err, "Create fundraiser failed")
		return
	}

	NewAPIResponse().Status(http.StatusCreated).JSON(buildFundraiserOverview(saved)).Write(w)
}

func (s *Server) handleGetFundraiser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid fundraiser id").Write(w)
		return
	}

	ov, err := s.getOverview(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, "Fundraiser overview failed")
		return
	}

	NewAPIResponse().JSON(ov).Write(w)
}

// donationResponse is the body returned for a submitted donation.
type donationResponse struct {
	DonationID    int64         `json:"donationId"`
	GiftAidAmount int64         `json:"giftAidAmount"`
	PaymentIntent paymentIntent `json:"paymentIntent"`
}

type paymentIntent struct {
	Amount              int64           `json:"amount"`
	Currency            core.Currency   `json:"currency"`
	TotalDonationAmount int64           `json:"totalDonationAmount"`
	FuturePayments      []futurePayment `json:"futurePayments"`
}

type futurePayment struct {
	Amount int64  `json:"amount"`
	At     string `json:"at"`
}

func (s *Server) handleCreateDonation(w http.ResponseWriter, r *http.Request) {
	fundraiserID, err := pathID(r)
	if err != nil {
		BadRequestError("invalid fundraiser id").Write(w)
		return
	}

	var req donationRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	donation, err := req.toDonation(fundraiserID)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if err := donation.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	result, err := s.donations.CreateDonation(r.Context(), donation)
	if err != nil {
		writeDomainError(w, r, err, "Create donation failed")
		return
	}

	s.invalidateOverview(fundraiserID)
	s.structured.LogDonationCreated(r.Context(), fundraiserID, result.Donation.ID,
		result.Donation.DonationAmount, string(result.Donation.Frequency))

	var giftAid int64
	if result.Donation.GiftAid {
		giftAid = core.GiftAidAmount(result.Donation.DonationAmount)
	}

	resp := donationResponse{
		DonationID:    result.Donation.ID,
		GiftAidAmount: giftAid,
		PaymentIntent: paymentIntent{
			Amount:              result.Intent.Amount,
			Currency:            result.Intent.Currency,
			TotalDonationAmount: result.Intent.TotalDonationAmount,
			FuturePayments:      make([]futurePayment, 0, len(result.Intent.FuturePayments)),
		},
	}
	for _, fp := range result.Intent.FuturePayments {
		at := fp.At
		resp.PaymentIntent.FuturePayments = append(resp.PaymentIntent.FuturePayments,
			futurePayment{Amount: fp.Amount, At: core.FormatTimestamp(&at)})
	}

	NewAPIResponse().Status(http.StatusCreated).JSON(resp).Write(w)
}

func (s *Server) handleGiftAid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid donation id").Write(w)
		return
	}

	amount, err := s.donations.GiftAidForDonation(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, "Gift aid lookup failed")
		return
	}

	NewAPIResponse().JSON(map[string]int64{"giftAidAmount": amount}).Write(w)
}

// editResponse reports an applied reconciliation and the totals it moved.
type editResponse struct {
	TotalRaisedDelta           int64 `json:"totalRaisedDelta"`
	MatchFundingRemainingDelta int64 `json:"matchFundingRemainingDelta"`
	Version                    int64 `json:"version"`
}

func (s *Server) handleEditDonation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid donation id").Write(w)
		return
	}

	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	result, err := s.reconcile.EditDonation(r.Context(), id, req.toDonationEdit())
	if err != nil {
		writeDomainError(w, r, err, "Edit donation failed")
		return
	}

	s.invalidateOverview(result.Donation.FundraiserID)

	NewAPIResponse().JSON(editResponse{
		TotalRaisedDelta:           result.Deltas.TotalRaised,
		MatchFundingRemainingDelta: result.Deltas.MatchFundingRemaining,
		Version:                    result.Donation.Version,
	}).Write(w)
}

func (s *Server) handleEditPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid payment id").Write(w)
		return
	}

	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	result, err := s.reconcile.EditPayment(r.Context(), id, req.toPaymentEdit())
	if err != nil {
		writeDomainError(w, r, err, "Edit payment failed")
		return
	}

	s.invalidateOverview(result.Payment.FundraiserID)

	NewAPIResponse().JSON(editResponse{
		TotalRaisedDelta:           result.Deltas.TotalRaised,
		MatchFundingRemainingDelta: result.Deltas.MatchFundingRemaining,
		Version:                    result.Payment.Version,
	}).Write(w)
}

// refundResponse reports the reversing payment appended for a refund.
type refundResponse struct {
	RefundPaymentID            int64 `json:"refundPaymentId"`
	Amount                     int64 `json:"amount"`
	TotalRaisedDelta           int64 `json:"totalRaisedDelta"`
	MatchFundingRemainingDelta int64 `json:"matchFundingRemainingDelta"`
}

func (s *Server) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid payment id").Write(w)
		return
	}

	result, err := s.reconcile.RefundPayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, "Refund payment failed")
		return
	}

	s.invalidateOverview(result.Refund.FundraiserID)

	NewAPIResponse().Status(http.StatusCreated).JSON(refundResponse{
		RefundPaymentID:            result.Refund.ID,
		Amount:                     result.Refund.DonationAmount,
		TotalRaisedDelta:           result.Deltas.TotalRaised,
		MatchFundingRemainingDelta: result.Deltas.MatchFundingRemaining,
	}).Write(w)
}

// writeDomainError maps domain and storage errors onto API status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("not found").Write(w)
	case errors.Is(err, core.ErrMissingPrevious),
		errors.Is(err, core.ErrNotRefundable),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrEmptyDonorName),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidMoneyFormat):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		slog.ErrorContext(r.Context(), logMsg, "error", err, "url", r.URL.Path)
		InternalServerError("internal error").Write(w)
	}
}
