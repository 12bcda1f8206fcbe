package core

import "testing"

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"9", 900, true},
		{"0", 0, true},
		{"1.23", 123, true},
		{"£1.23", 123, true},
		{"$1.23", 123, true},
		{"£9", 900, true},
		{"1234.05", 123405, true},
		{"", 0, false},
		{".23", 0, false},
		{"£.23", 0, false},
		{"££1.23", 0, false},
		{"$$1.23", 0, false},
		{"£$1.23", 0, false},
		{"$£1.23", 0, false},
		{"1.2", 0, false},
		{"1.234", 0, false},
		{"1,234.00", 0, false},
		{"1.23.4", 0, false},
		{"-1.23", 0, false},
		{"abc", 0, false},
		{"1.ab", 0, false},
		{"£", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("ParseMoney(%q) = %d, %v; want %d", tc.in, got, err, tc.out)
			}
		} else {
			if err == nil {
				t.Fatalf("ParseMoney(%q) expected error, got %d", tc.in, got)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	amt := func(v int64) *int64 { return &v }

	cases := []struct {
		name string
		cur  Currency
		in   *int64
		want string
	}{
		{"gbp with pence", GBP, amt(1234), "£12.34"},
		{"usd with cents", USD, amt(50), "$0.50"},
		{"whole pounds", GBP, amt(900), "£9.00"},
		{"negative", GBP, amt(-350), "-£3.50"},
		{"nil amount", GBP, nil, Placeholder},
		{"unknown currency", Currency("eur"), amt(100), Placeholder},
		{"empty currency", Currency(""), amt(100), Placeholder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatAmount(tc.cur, tc.in); got != tc.want {
				t.Errorf("FormatAmount = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatAmountShort(t *testing.T) {
	amt := func(v int64) *int64 { return &v }

	if got := FormatAmountShort(GBP, amt(900)); got != "£9" {
		t.Errorf("whole amount = %q, want £9", got)
	}
	if got := FormatAmountShort(GBP, amt(950)); got != "£9.50" {
		t.Errorf("fractional amount = %q, want £9.50", got)
	}
	if got := FormatAmountShort(GBP, nil); got != Placeholder {
		t.Errorf("nil amount = %q, want placeholder", got)
	}
}

// Formatting without a symbol must normalize to a string that re-parses to
// the same number of minor units.
func TestMoneyRoundTrip(t *testing.T) {
	for _, in := range []string{"9", "£9", "1.23", "$1.23", "0.05", "1234.00"} {
		parsed, err := ParseMoney(in)
		if err != nil {
			t.Fatalf("ParseMoney(%q): %v", in, err)
		}
		formatted := FormatAmountPlain(GBP, &parsed, false)
		reparsed, err := ParseMoney(formatted)
		if err != nil {
			t.Fatalf("ParseMoney(%q): %v", formatted, err)
		}
		if reparsed != parsed {
			t.Errorf("round trip %q -> %d -> %q -> %d", in, parsed, formatted, reparsed)
		}
	}
}
