package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// maxPaise is 2^63 as a float64, the first value int64 cannot hold.
const maxPaise = float64(1 << 63)

// ErrAmountTooLarge is returned when a rupee amount does not fit in int64 paise.
var ErrAmountTooLarge = errors.New("amount is too large")

// RupeesToPaise converts a float64 rupee amount to int64 paise.
// It validates that the input has at most 2 decimal places and returns
// an error if more precision is provided. Uses math.Round after
// multiplying by 100 to handle floating-point representation issues.
func RupeesToPaise(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("monetary values must be finite")
	}

	// Multiply by 1000 to check for a third decimal place.
	// Round to avoid floating-point artifacts (e.g., 1.10 * 1000 = 1099.9999...).
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}

	paise := math.Round(f * 100)
	if paise >= maxPaise || paise < -maxPaise {
		return 0, ErrAmountTooLarge
	}
	return int64(paise), nil
}

// PaiseToRupees converts an int64 paise value to a float64 rupee amount.
func PaiseToRupees(p int64) float64 {
	return float64(p) / 100.0
}

// PaiseToDecimal converts paise to an exact rupee decimal.
func PaiseToDecimal(p int64) decimal.Decimal {
	return decimal.New(p, -2)
}

// RoundedRupees renders a rupee decimal as a float64 rounded to 2 places.
func RoundedRupees(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// FloatToPaise converts a stored rupee amount to paise, rounding to the
// nearest paisa. Used when reading values written by other clients.
func FloatToPaise(f float64) int64 {
	return int64(math.Round(f * 100))
}
