package valueobject

import (
	"fmt"

	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// DefaultCurrency is the platform currency. The system is single-currency;
// amounts are integer minor units and never floating point.
const DefaultCurrency = "XOF"

// Materials/labor fragmentation applied to every escrow total.
const (
	MaterialsSharePercent = 65
	LaborSharePercent     = 35
)

// Money is an exact amount in integer minor units. All arithmetic is closed
// over non-negative integers; an operation that would produce a negative
// amount fails.
type Money struct {
	Amount   int64  `db:"amount" json:"amount_minor"`
	Currency string `db:"currency" json:"currency"`
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "amount cannot be negative")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// MustMoney is for fixtures and constants where the amount is known valid.
func MustMoney(amount int64) Money {
	m, err := NewMoney(amount, DefaultCurrency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: 0, Currency: currency}
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.Amount > m.Amount {
		return Money{}, apperror.Newf(apperror.ErrCodeInsufficientFunds,
			"cannot subtract %d from %d", other.Amount, m.Amount)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Percent returns p percent of the amount, rounded to the nearest minor
// unit.
func (m Money) Percent(p int64) Money {
	return Money{Amount: (m.Amount*p + 50) / 100, Currency: m.Currency}
}

// SplitMaterialsLabor fragments the amount 65/35. The labor part takes the
// rounding remainder so the two parts always sum exactly to the total.
func (m Money) SplitMaterialsLabor() (materials, labor Money) {
	materials = m.Percent(MaterialsSharePercent)
	labor = Money{Amount: m.Amount - materials.Amount, Currency: m.Currency}
	return materials, labor
}

func (m Money) Cmp(other Money) int {
	switch {
	case m.Amount < other.Amount:
		return -1
	case m.Amount > other.Amount:
		return 1
	}
	return 0
}

func (m Money) LessThan(other Money) bool {
	return m.Amount < other.Amount
}

func (m Money) GreaterThan(other Money) bool {
	return m.Amount > other.Amount
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return apperror.Newf(apperror.ErrCodeValidation,
			"currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return nil
}
