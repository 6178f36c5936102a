package core

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitScale is the number of decimal places in one minor currency unit.
const MinorUnitScale = 2

// Money is an amount in integer minor units (cents). Ledger sums are always
// computed on Money so balance checks are exact.
type Money int64

// MoneyFromDecimal converts d to minor units. It fails when d carries more
// precision than the minor unit can represent.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(MinorUnitScale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d, MinorUnitScale)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", d)
	}
	return Money(shifted.IntPart()), nil
}

// RoundMoney rounds d half away from zero to the minor unit. It fails when
// the rounded amount does not fit in Money.
func RoundMoney(d decimal.Decimal) (Money, error) {
	shifted := d.Round(MinorUnitScale).Shift(MinorUnitScale)
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", d)
	}
	return Money(shifted.IntPart()), nil
}

// AddMoney returns a+b, or false when the sum overflows.
func AddMoney(a, b Money) (Money, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// ParseMoney parses a decimal string such as "100.00".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MinorUnitScale)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitScale)
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var d decimal.Decimal
		if err := d.UnmarshalJSON(b); err != nil {
			return fmt.Errorf("invalid amount %s: %w", string(b), err)
		}
		v, err := MoneyFromDecimal(d)
		if err != nil {
			return err
		}
		*m = v
		return nil
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
