package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CAD Currency = "CAD"
	USD Currency = "USD"
)

// minorDigits is the number of decimal places between major and minor units.
const minorDigits = 2

// maxMajor bounds what ToMinor accepts so the int64 conversion cannot overflow.
var maxMajor = decimal.New(1, 15)

// ToMinor converts a major-unit amount (dollars) into minor units (cents).
// Half cents round away from zero, so 10.005 becomes 1001. The result is not
// validated; callers check the sign themselves. Amounts too large to
// represent yield ErrInvalidAmount.
//
// Example: $10.50 is stored as 1050.
func ToMinor(major decimal.Decimal) (int64, error) {
	if major.Abs().GreaterThan(maxMajor) {
		return 0, ErrInvalidAmount
	}
	return major.Shift(minorDigits).Round(0).IntPart(), nil
}

// ToMajor converts minor units back to a major-unit decimal.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorDigits)
}

// MajorFloat is ToMajor for JSON responses that carry plain numbers.
func MajorFloat(minor int64) float64 {
	return ToMajor(minor).InexactFloat64()
}

// FormatMajor renders minor units as "$12.34".
func FormatMajor(minor int64) string {
	return fmt.Sprintf("$%s", ToMajor(minor).StringFixed(minorDigits))
}
