package core

// minorUnitsPerPerson is the product constant behind the "people protected"
// figure shown next to fundraiser totals. Values are minor units per
// person, fixed per currency rather than derived from any rate table.
var minorUnitsPerPerson = map[Currency]int64{
	GBP: 200,
	USD: 250,
}

const defaultMinorUnitsPerPerson int64 = 200

// MoneyToPeopleProtected converts an amount into the illustrative number of
// people it protects. Monotonically increasing in amount, floors fractional
// people, and never returns a negative figure. Display only.
func MoneyToPeopleProtected(currency Currency, amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	per, ok := minorUnitsPerPerson[currency]
	if !ok {
		per = defaultMinorUnitsPerPerson
	}
	return amount / per
}
