package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// The contract stores money in stroops (1e-7) and impact in hundredths. These helpers are the only
// place where domain decimals become contract integers.
const (
	amountScale = 7
	impactScale = 2
)

// ToStroops converts a currency amount to the contract's i128 integer string, truncating extra digits.
func ToStroops(amount decimal.Decimal) string {
	return amount.Shift(amountScale).Truncate(0).String()
}

// ToImpactUnits converts an impact quantity to the contract's i128 integer string.
func ToImpactUnits(impact decimal.Decimal) string {
	return impact.Shift(impactScale).Truncate(0).String()
}

// FromStroops converts a contract integer amount back to a currency decimal.
func FromStroops(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: bad stroop amount %q: %w", raw, err)
	}
	return d.Shift(-amountScale), nil
}
