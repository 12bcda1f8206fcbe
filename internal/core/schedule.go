// Package core holds the donation domain model and the pure money
// calculations the rest of the system is built on.
//
// This file implements the Strategy Pattern for recurring payment cadences.
// Each frequency (weekly, monthly) has its own stepper that encapsulates
// how to advance from one payment date to the next.

package core

import (
	"fmt"
	"time"
)

// CadenceStepper is the strategy interface for advancing a payment schedule.
// Each implementation encapsulates the step algorithm for one frequency.
type CadenceStepper interface {
	// Next returns the payment date following at.
	Next(at time.Time) time.Time
}

// WeeklyStepper implements CadenceStepper for weekly donations.
type WeeklyStepper struct{}

// Next returns the date exactly 7 days after at.
func (WeeklyStepper) Next(at time.Time) time.Time {
	return at.AddDate(0, 0, 7)
}

// MonthlyStepper implements CadenceStepper for monthly donations.
type MonthlyStepper struct{}

// Next returns the date one calendar month after at. Go normalizes
// overflowing dates, so Jan 31 steps to Mar 3 rather than failing.
func (MonthlyStepper) Next(at time.Time) time.Time {
	return at.AddDate(0, 1, 0)
}

// cadenceStrategies maps frequencies to their corresponding steppers.
// This registry enables O(1) lookup and easy extension for new cadences.
var cadenceStrategies = map[Frequency]CadenceStepper{
	FrequencyWeekly:  WeeklyStepper{},
	FrequencyMonthly: MonthlyStepper{},
}

// GetCadenceStepper returns the stepper for a recurring frequency.
// Returns an error for one-off or unknown frequencies.
func GetCadenceStepper(frequency Frequency) (CadenceStepper, error) {
	stepper, ok := cadenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("no cadence for frequency: %q", frequency)
	}
	return stepper, nil
}

// RegisterCadenceStepper allows registering custom steppers for new cadences.
func RegisterCadenceStepper(frequency Frequency, stepper CadenceStepper) {
	cadenceStrategies[frequency] = stepper
}

// ScheduledPayment is one future charge produced by BuildSchedule.
type ScheduledPayment struct {
	Amount int64
	At     time.Time
}

// BuildSchedule expands a recurring donation into its future payments.
//
// The first future payment falls one cadence step after createdAt (the
// "now" payment at createdAt itself is charged immediately and is not part
// of the returned schedule). Payments continue while they do not fall after
// the cutoff: a payment landing exactly on the cutoff is included. A nil
// cutoff, a one-off frequency, or a cutoff before the first step all yield
// an empty schedule.
func BuildSchedule(amount int64, createdAt time.Time, frequency Frequency, cutoff *time.Time) ([]ScheduledPayment, error) {
	if !frequency.Valid() {
		return nil, ErrInvalidFrequency
	}
	if !frequency.Recurring() || cutoff == nil {
		return nil, nil
	}

	stepper, err := GetCadenceStepper(frequency)
	if err != nil {
		return nil, err
	}

	var out []ScheduledPayment
	for at := stepper.Next(createdAt); !at.After(*cutoff); at = stepper.Next(at) {
		out = append(out, ScheduledPayment{Amount: amount, At: at})
	}
	return out, nil
}

// PaymentSchedule is the full expansion of a donation: the payment charged
// immediately plus every future payment in the series.
type PaymentSchedule struct {
	Now    ScheduledPayment
	Future []ScheduledPayment
}

// Payments returns the whole series, now first.
func (s PaymentSchedule) Payments() []ScheduledPayment {
	return append([]ScheduledPayment{s.Now}, s.Future...)
}

// CalcPaymentSchedule builds the complete schedule for a donation created
// at createdAt. The now payment is always present; the future series comes
// from BuildSchedule.
func CalcPaymentSchedule(amount int64, createdAt time.Time, frequency Frequency, cutoff *time.Time) (PaymentSchedule, error) {
	future, err := BuildSchedule(amount, createdAt, frequency, cutoff)
	if err != nil {
		return PaymentSchedule{}, err
	}
	return PaymentSchedule{
		Now:    ScheduledPayment{Amount: amount, At: createdAt},
		Future: future,
	}, nil
}
