package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the root of every "missing or logically deleted" error.
var ErrNotFound = errors.New("not found")

var (
	// Reservation errors
	ErrLedgerEntryNotFound = fmt.Errorf("reservation target offering %w", ErrNotFound)
	ErrInsufficientStock   = errors.New("requested quantity exceeds available stock")
	ErrInvalidQuantity     = errors.New("quantity must be positive")

	// Release errors
	ErrContractNotFound        = fmt.Errorf("cancellation target contract %w", ErrNotFound)
	ErrReferencedEntryNotFound = fmt.Errorf("referenced offering %w", ErrNotFound)

	// Caller errors
	ErrMissingActor = errors.New("actor user id is required")
)

// InfrastructureError wraps a failure of the storage layer: lock-wait
// timeouts, deadlock aborts, connectivity problems and the like.
type InfrastructureError struct {
	Op  string
	Err error
}

// NewInfrastructureError wraps err. It returns nil for a nil err and leaves
// an already wrapped error untouched.
func NewInfrastructureError(op string, err error) error {
	if err == nil {
		return nil
	}

	var infraErr *InfrastructureError
	if errors.As(err, &infraErr) {
		return err
	}

	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure: %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies errors surfaced by the reservation protocol.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindInsufficientStock
	KindInvalidInput
	KindInfrastructure
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInvalidInput:
		return "invalid_input"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of err. Domain kinds take precedence over
// infrastructure wrapping.
func KindOf(err error) ErrorKind {
	var infraErr *InfrastructureError

	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrQuantityTooLarge),
		errors.Is(err, ErrInvalidIDFormat),
		errors.Is(err, ErrMissingActor):
		return KindInvalidInput
	case errors.As(err, &infraErr):
		return KindInfrastructure
	default:
		return KindUnknown
	}
}

// IsInfrastructure reports whether err came from the storage layer.
func IsInfrastructure(err error) bool {
	return KindOf(err) == KindInfrastructure
}
