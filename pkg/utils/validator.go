package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// amounts are stored with max_digits=10, decimal_places=2
	maxAmount = decimal.RequireFromString("99999999.99")
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateAmount validates a money amount. Zero and negative values are only
// accepted when requirePositive is false.
func ValidateAmount(amount decimal.Decimal, requirePositive bool) error {
	if requirePositive && !amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %s", amount.String())
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("amount must have at most 2 decimal places: %s", amount.String())
	}
	if amount.Abs().GreaterThan(maxAmount) {
		return fmt.Errorf("amount exceeds maximum limit: %s", amount.String())
	}
	return nil
}

// ValidateLength checks that a trimmed value is non-empty (when required) and
// no longer than max runes.
func ValidateLength(value string, max int, required bool) error {
	trimmed := strings.TrimSpace(value)
	if required && trimmed == "" {
		return fmt.Errorf("this field is required")
	}
	if n := len([]rune(value)); n > max {
		return fmt.Errorf("ensure this field has no more than %d characters (it has %d)", max, n)
	}
	return nil
}
