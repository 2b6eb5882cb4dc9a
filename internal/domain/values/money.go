package values

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with currency and precision handling
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Common currency codes (ISO 4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	JPY = "JPY"
	CAD = "CAD"
)

var (
	currencySymbols = map[string]string{
		"$": USD,
		"€": EUR,
		"£": GBP,
		"¥": JPY,
	}

	// $1,234.56 | €99 | 1,234.56 USD
	currencyAmountRegex = regexp.MustCompile(`^(?:([$€£¥])\s?(-?\d[\d,]*(?:\.\d+)?)|(-?\d[\d,]*(?:\.\d+)?)\s?([A-Z]{3}))$`)
)

// NewMoney creates a new Money value object
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if err := validateCurrency(currency); err != nil {
		return Money{}, err
	}

	return Money{
		amount:   amount,
		currency: strings.ToUpper(currency),
	}, nil
}

// NewMoneyFromFloat creates Money from float64 amount and currency
// Note: Use with caution due to floating point precision issues
func NewMoneyFromFloat(amount float64, currency string) (Money, error) {
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

// ParseCurrencyAmount parses strings such as "$12,345.67" or "980 EUR".
func ParseCurrencyAmount(s string) (Money, bool) {
	matches := currencyAmountRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return Money{}, false
	}

	var currency, raw string
	if matches[1] != "" {
		currency, raw = currencySymbols[matches[1]], matches[2]
	} else {
		currency, raw = matches[4], matches[3]
	}

	dec, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return Money{}, false
	}
	m, err := NewMoney(dec, currency)
	if err != nil {
		return Money{}, false
	}
	return m, true
}

// IsCurrencyAmount reports whether s is a currency-formatted amount
func IsCurrencyAmount(s string) bool {
	_, ok := ParseCurrencyAmount(s)
	return ok
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() string {
	return m.currency
}

// String returns formatted money string (e.g., "$123.45")
func (m Money) String() string {
	return getCurrencySymbol(m.currency) + m.amount.StringFixed(2)
}

// RoundToNearest rounds the amount to the nearest multiple of unit
func (m Money) RoundToNearest(unit int64) Money {
	return Money{
		amount:   RoundDecimalToNearest(m.amount, unit),
		currency: m.currency,
	}
}

// RoundDecimalToNearest rounds d to the nearest multiple of unit (half away
// from zero). A non-positive unit leaves d unchanged.
func RoundDecimalToNearest(d decimal.Decimal, unit int64) decimal.Decimal {
	if unit <= 0 {
		return d
	}
	u := decimal.NewFromInt(unit)
	return d.Div(u).Round(0).Mul(u)
}

func validateCurrency(currency string) error {
	if currency == "" {
		return fmt.Errorf("currency cannot be empty")
	}

	currency = strings.ToUpper(currency)
	if len(currency) != 3 {
		return fmt.Errorf("currency code must be 3 characters")
	}

	validCurrencies := map[string]bool{
		USD: true, EUR: true, GBP: true, JPY: true, CAD: true,
		"AUD": true, "CHF": true, "CNY": true, "SEK": true, "NZD": true,
		"MXN": true, "SGD": true, "HKD": true, "NOK": true, "INR": true,
	}
	if !validCurrencies[currency] {
		return fmt.Errorf("unsupported currency: %s", currency)
	}

	return nil
}

func getCurrencySymbol(currency string) string {
	symbols := map[string]string{
		USD: "$",
		EUR: "€",
		GBP: "£",
		JPY: "¥",
		CAD: "C$",
	}

	if symbol, ok := symbols[currency]; ok {
		return symbol
	}
	return currency + " "
}
