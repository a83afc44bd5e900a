package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxDescriptionLength = 500
	MaxMovementAmount    = "1000000000" // 1 billion, per-movement cap
)

// ParseAmount parses a caller-supplied amount string into a decimal.
// Amounts travel as strings end to end so precision is never lost in
// float conversion.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	return amount, nil
}

// ValidateAmount enforces the per-movement magnitude cap.
func ValidateAmount(amount decimal.Decimal) error {
	maxAmount, _ := decimal.NewFromString(MaxMovementAmount)
	if amount.Abs().GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount exceeds %s", ErrInvalidAmount, MaxMovementAmount)
	}
	return nil
}

// ValidateDescription bounds free-text descriptions. Descriptions are
// informational only; they are never used to classify movements.
func ValidateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, MaxDescriptionLength)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters.
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
