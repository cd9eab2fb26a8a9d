package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation errors
var (
	ErrInvalidIDFormat  = errors.New("invalid ID format")
	ErrQuantityTooLarge = errors.New("quantity exceeds maximum allowed")
)

// Validation constants
const (
	MaxIDLength            = 64
	MaxReservationQuantity = 1_000_000_000
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateID validates an opaque identifier supplied by a caller
func ValidateID(id string) error {
	id = strings.TrimSpace(id)

	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidIDFormat)
	}

	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidIDFormat, MaxIDLength)
	}

	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: id contains forbidden characters", ErrInvalidIDFormat)
	}

	return nil
}

// ValidateQuantity validates a requested reservation quantity
func ValidateQuantity(quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	if quantity > MaxReservationQuantity {
		return fmt.Errorf("%w: maximum quantity is %d", ErrQuantityTooLarge, MaxReservationQuantity)
	}

	return nil
}
