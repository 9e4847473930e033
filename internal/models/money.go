package models

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"
)

// Money is a currency amount stored as DECIMAL(10,2).
// It always serialises with two decimals, e.g. "118.80".
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

// MustMoney parses s and panics on malformed input. Intended for constants and tests.
func MustMoney(s string) Money {
	return NewMoney(decimal.RequireFromString(s))
}

func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.Decimal.StringFixed(2) + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

func (m Money) Value() (driver.Value, error) {
	return m.Decimal.StringFixed(2), nil
}

func (m *Money) Scan(value interface{}) error {
	return m.Decimal.Scan(value)
}
