package core

import (
	"errors"
	"testing"
	"time"
)

func TestBuildSchedule(t *testing.T) {
	createdAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		amount    int64
		frequency Frequency
		cutoff    *time.Time
		wantDates []time.Time
	}{
		{
			name:      "one-off has no future payments",
			amount:    900,
			frequency: FrequencyOneOff,
			cutoff:    timePtr(createdAt.AddDate(0, 2, 0)),
			wantDates: nil,
		},
		{
			name:      "weekly up to inclusive cutoff",
			amount:    900,
			frequency: FrequencyWeekly,
			cutoff:    timePtr(createdAt.AddDate(0, 0, 21)),
			wantDates: []time.Time{
				createdAt.AddDate(0, 0, 7),
				createdAt.AddDate(0, 0, 14),
				createdAt.AddDate(0, 0, 21),
			},
		},
		{
			name:      "cutoff between steps excludes the next step",
			amount:    900,
			frequency: FrequencyWeekly,
			cutoff:    timePtr(createdAt.AddDate(0, 0, 20)),
			wantDates: []time.Time{
				createdAt.AddDate(0, 0, 7),
				createdAt.AddDate(0, 0, 14),
			},
		},
		{
			name:      "monthly series",
			amount:    2500,
			frequency: FrequencyMonthly,
			cutoff:    timePtr(createdAt.AddDate(0, 3, 0)),
			wantDates: []time.Time{
				createdAt.AddDate(0, 1, 0),
				createdAt.AddDate(0, 2, 0),
				createdAt.AddDate(0, 3, 0),
			},
		},
		{
			name:      "cutoff before first step degenerates to now only",
			amount:    900,
			frequency: FrequencyWeekly,
			cutoff:    timePtr(createdAt.AddDate(0, 0, 3)),
			wantDates: nil,
		},
		{
			name:      "nil cutoff yields no future payments",
			amount:    900,
			frequency: FrequencyWeekly,
			cutoff:    nil,
			wantDates: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSchedule(tt.amount, createdAt, tt.frequency, tt.cutoff)
			if err != nil {
				t.Fatalf("BuildSchedule() unexpected error: %v", err)
			}
			if len(got) != len(tt.wantDates) {
				t.Fatalf("BuildSchedule() returned %d payments, want %d", len(got), len(tt.wantDates))
			}
			for i, p := range got {
				if p.Amount != tt.amount {
					t.Errorf("payment %d amount = %d, want %d", i, p.Amount, tt.amount)
				}
				if !p.At.Equal(tt.wantDates[i]) {
					t.Errorf("payment %d at = %v, want %v", i, p.At, tt.wantDates[i])
				}
			}
		})
	}
}

func TestBuildScheduleInvalidFrequency(t *testing.T) {
	_, err := BuildSchedule(900, time.Now(), Frequency("DAILY"), nil)
	if !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("BuildSchedule() error = %v, want %v", err, ErrInvalidFrequency)
	}
}

func TestCalcPaymentSchedule(t *testing.T) {
	createdAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	cutoff := createdAt.AddDate(0, 0, 21)

	schedule, err := CalcPaymentSchedule(900, createdAt, FrequencyWeekly, &cutoff)
	if err != nil {
		t.Fatalf("CalcPaymentSchedule() unexpected error: %v", err)
	}

	payments := schedule.Payments()
	if len(payments) != 4 {
		t.Fatalf("schedule has %d payments, want 4", len(payments))
	}
	for i, p := range payments {
		if p.Amount != 900 {
			t.Errorf("payment %d amount = %d, want 900", i, p.Amount)
		}
		if i > 0 {
			gap := p.At.Sub(payments[i-1].At)
			if gap != 7*24*time.Hour {
				t.Errorf("gap between payments %d and %d = %v, want 168h", i-1, i, gap)
			}
			if !p.At.After(payments[i-1].At) {
				t.Errorf("payment times not strictly increasing at index %d", i)
			}
		}
	}
	if !payments[0].At.Equal(createdAt) {
		t.Errorf("now payment at = %v, want %v", payments[0].At, createdAt)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
