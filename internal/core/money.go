// Package core implements the donation money engine: money parsing and
// formatting, payment schedule generation, match funding and the
// reconciliation delta contract used to keep fundraiser totals honest.
//
// All monetary amounts are integer counts of minor currency units (pence,
// cents). Floating point never touches money in this package.
package core

import (
	"errors"
	"strconv"
	"strings"
)

// Currency identifies one of the supported settlement currencies.
type Currency string

const (
	GBP Currency = "gbp"
	USD Currency = "usd"
)

// Placeholder is rendered wherever a money value is missing; formatters
// degrade to it instead of failing so page rendering never breaks.
const Placeholder = "—"

// Symbol returns the display symbol for the currency, or "" if unknown.
func (c Currency) Symbol() string {
	switch c {
	case GBP:
		return "£"
	case USD:
		return "$"
	default:
		return ""
	}
}

// Valid reports whether the currency is one of the supported set.
func (c Currency) Valid() bool {
	return c == GBP || c == USD
}

// ErrInvalidMoneyFormat is returned by ParseMoney for any input that does
// not match the accepted money grammar. Callers should treat it as a user
// input validation error, never a system fault.
var ErrInvalidMoneyFormat = errors.New("invalid money format")

// ParseMoney converts a user-entered amount to integer minor units.
//
// Accepted grammar: an optional single leading currency symbol (£ or $),
// then one or more digits, then optionally a dot and exactly two digits.
// Thousands separators are not accepted.
//
// Examples:
//
//	ParseMoney("9")      -> 900, nil
//	ParseMoney("£1.23")  -> 123, nil
//	ParseMoney("$20.00") -> 2000, nil
//	ParseMoney(".23")    -> 0, ErrInvalidMoneyFormat
//	ParseMoney("££1.23") -> 0, ErrInvalidMoneyFormat
func ParseMoney(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidMoneyFormat
	}

	// Strip at most one leading symbol; a second symbol of either kind
	// (doubled or mismatched pair) is rejected.
	rest := s
	if trimmed, ok := cutSymbol(rest); ok {
		rest = trimmed
	}
	if _, ok := cutSymbol(rest); ok {
		return 0, ErrInvalidMoneyFormat
	}

	intPart := rest
	decPart := ""
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		intPart, decPart = rest[:i], rest[i+1:]
		if len(decPart) != 2 {
			return 0, ErrInvalidMoneyFormat
		}
	}
	if intPart == "" || !allDigits(intPart) || (decPart != "" && !allDigits(decPart)) {
		return 0, ErrInvalidMoneyFormat
	}

	major, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidMoneyFormat
	}
	// Guard the *100 below against overflow.
	const maxMajor = (1<<63 - 1) / 100
	if major > maxMajor {
		return 0, ErrInvalidMoneyFormat
	}

	var minor int64
	if decPart != "" {
		minor = int64(decPart[0]-'0')*10 + int64(decPart[1]-'0')
	}
	return major*100 + minor, nil
}

func cutSymbol(s string) (string, bool) {
	for _, sym := range []string{"£", "$"} {
		if rest, ok := strings.CutPrefix(s, sym); ok {
			return rest, true
		}
	}
	return s, false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// FormatAmount renders minor units with a currency symbol and two decimal
// places ("£12.34"). A nil amount or unsupported currency renders as the
// placeholder.
func FormatAmount(cur Currency, amount *int64) string {
	return formatAmount(cur, amount, true, false)
}

// FormatAmountShort is FormatAmount but drops a trailing ".00" for whole
// numbers of major units ("£12" instead of "£12.00").
func FormatAmountShort(cur Currency, amount *int64) string {
	return formatAmount(cur, amount, true, true)
}

// FormatAmountPlain renders without the currency symbol when withSymbol is
// false; the result re-parses to the same value via ParseMoney.
func FormatAmountPlain(cur Currency, amount *int64, withSymbol bool) string {
	return formatAmount(cur, amount, withSymbol, false)
}

func formatAmount(cur Currency, amount *int64, withSymbol, short bool) string {
	if amount == nil || !cur.Valid() {
		return Placeholder
	}

	v := *amount
	neg := v < 0
	if neg {
		v = -v
	}
	major := v / 100
	minor := v % 100

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	if withSymbol {
		b.WriteString(cur.Symbol())
	}
	b.WriteString(strconv.FormatInt(major, 10))
	if !short || minor != 0 {
		b.WriteByte('.')
		if minor < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(minor, 10))
	}
	return b.String()
}
