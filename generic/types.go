/*
Package generic provides the domain-agnostic building blocks of the freight engine.

PURPOSE:
  Money math, time-window parsing, pay-period calculation, interval gating,
  errors and the audit sink interface. Nothing in here knows about loads,
  legs or settlements; the freight, pay, dispatch and settlement packages
  build on these pieces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal rounded to cents at every stored total
  - Actor: who performed a state change (id + optional display name)

DESIGN PRINCIPLES:
  1. Precision: all currency, miles and hours use decimal.Decimal
  2. Rounding happens once, when a total is stored, never mid-calculation
  3. No floats cross a persistence boundary

USAGE:
  total := generic.RoundMoney(qty.Mul(rate))
  actor := generic.Actor{ID: "user-42", Name: "Dispatch Desk"}

SEE ALSO:
  - time.go: Stop time parsing and overlap checks
  - period.go: Pay period calculation
  - errors.go: Error taxonomy
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places kept on stored currency totals.
const MoneyPlaces = 2

// RoundMoney rounds a currency amount to cents (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// SumMoney adds amounts and rounds the result once.
func SumMoney(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return RoundMoney(total)
}

// MustParseDecimal parses s, returning zero for malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseDecimalPtr parses an optional decimal. Empty input yields nil.
func ParseDecimalPtr(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DecimalPtr returns a pointer to a copy of d.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// =============================================================================
// ACTOR
// =============================================================================

// Actor identifies who performed a state-changing operation.
type Actor struct {
	ID   string
	Name string
}

// SystemActor is used for scheduler and auto-assignment initiated changes.
var SystemActor = Actor{ID: "system", Name: "System"}

// Display returns the display name, falling back to the ID.
func (a Actor) Display() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
