package domain

import "time"

// Lifecycle is the logical-delete tag carried by every persisted entity.
// Lookups never return LifecycleDeleted rows.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

// IsActive reports whether the row is visible to lookups.
func (l Lifecycle) IsActive() bool {
	return l == LifecycleActive
}

// Audit holds who touched a row and when.
type Audit struct {
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

// Touch records a modification by actor at t.
func (a *Audit) Touch(actor string, t time.Time) {
	a.UpdatedBy = actor
	a.UpdatedAt = t
}

// LedgerEntry is a provider's offering instance with a finite stock.
type LedgerEntry struct {
	ID             string
	OwnerUserID    string
	ServiceID      string
	InitialStock   int64
	AvailableStock int64
	Lifecycle      Lifecycle
	Audit
}

// CanReserve reports whether quantity fits in the available stock.
func (e *LedgerEntry) CanReserve(quantity int64) bool {
	return quantity > 0 && e.AvailableStock >= quantity
}

// ValidateReserve checks quantity against the available stock.
func (e *LedgerEntry) ValidateReserve(quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if e.AvailableStock < quantity {
		return ErrInsufficientStock
	}
	return nil
}

// ApplyReserve returns the stock left after reserving quantity.
func (e *LedgerEntry) ApplyReserve(quantity int64) int64 {
	return e.AvailableStock - quantity
}

// ApplyRestore returns the stock after giving quantity back.
func (e *LedgerEntry) ApplyRestore(quantity int64) int64 {
	return e.AvailableStock + quantity
}
