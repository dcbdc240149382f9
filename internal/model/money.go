package model

import (
	"strconv"
	"strings"
)

// Money is a currency amount from the DOGE API. Known is false when the
// upstream value was missing or failed to parse; that is distinct from a
// confirmed zero, and consumers must never treat an unknown amount as 0.
type Money struct {
	Amount float64
	Known  bool
}

// KnownMoney returns a Money holding a confirmed amount.
func KnownMoney(amount float64) Money {
	return Money{Amount: amount, Known: true}
}

// UnknownMoney returns the sentinel for a missing or unparseable amount.
func UnknownMoney() Money {
	return Money{}
}

// ParseMoney parses a currency string such as "1234.56", "$1,234.56" or
// "-500". An empty or unparseable string yields the unknown sentinel.
func ParseMoney(s string) Money {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return UnknownMoney()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return UnknownMoney()
	}
	return KnownMoney(f)
}

// String serializes for the dataset CSV: unknown amounts are the empty
// string, never "0", "null" or "NaN".
func (m Money) String() string {
	if !m.Known {
		return ""
	}
	return strconv.FormatFloat(m.Amount, 'f', -1, 64)
}
