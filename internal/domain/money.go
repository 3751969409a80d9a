package domain

import (
	"fmt"
	"strings"
)

// Money is an amount in integer minor units of an ISO 4217 currency.
// Commission math never touches floating point.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Compare returns -1, 0 or 1. Comparing across currencies is a caller bug.
func (m Money) Compare(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, ErrCurrencyMismatch
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

func (m Money) String() string {
	sign := ""
	units := m.Amount
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, units/100, units%100, m.Currency)
}

// Rate is a commission rate in basis points (10000 = 100%).
type Rate int64

const rateScale = 10000

func RateFromBasisPoints(bps int64) (Rate, error) {
	if bps < 0 || bps > rateScale {
		return 0, ErrInvalidInput
	}
	return Rate(bps), nil
}

func (r Rate) Valid() bool {
	return r >= 0 && r <= rateScale
}

func (r Rate) BasisPoints() int64 {
	return int64(r)
}

// Apply computes amount x rate rounded to the nearest minor unit, ties away
// from zero. For rate in [0,1] and a positive amount the result never exceeds
// the amount, so net = amount - Apply(amount) stays non-negative.
func (r Rate) Apply(m Money) Money {
	num := m.Amount * int64(r)
	quo := num / rateScale
	rem := num % rateScale
	if rem < 0 {
		rem = -rem
	}
	if rem*2 >= rateScale {
		if num >= 0 {
			quo++
		} else {
			quo--
		}
	}
	return Money{Amount: quo, Currency: m.Currency}
}
