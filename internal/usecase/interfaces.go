package usecase

import (
	"context"
	"time"

	"github.com/iho/stockledger/internal/domain"
)

// LedgerEntryRepository defines data access for ledger entries.
//
// GetByIDForUpdate is the row lock primitive: it takes an exclusive lock on
// the row that lasts until tx ends and reports domain.ErrLedgerEntryNotFound
// for missing or deleted rows.
type LedgerEntryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LedgerEntry, error)
	UpdateStock(ctx context.Context, tx Transaction, id string, availableStock int64, actor string, updatedAt time.Time) error
}

// ContractRepository defines data access for contracts.
//
// GetByIDForUpdate locks the contract row and reports
// domain.ErrContractNotFound for missing or canceled contracts.
type ContractRepository interface {
	Create(ctx context.Context, tx Transaction, contract *domain.Contract) error
	GetByID(ctx context.Context, id string) (*domain.Contract, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Contract, error)
	Cancel(ctx context.Context, tx Transaction, id string, actor string, updatedAt time.Time) error
}

// LedgerRepository defines data access for ledger-wide checks.
type LedgerRepository interface {
	// StockSummaries returns one summary per active ledger entry, or only
	// the given entry when id is not empty.
	StockSummaries(ctx context.Context, id string) ([]*StockSummary, error)
}

// StockSummary compares the stored stock of an entry with its reservations.
type StockSummary struct {
	LedgerEntryID   string
	InitialStock    int64
	AvailableStock  int64
	ActiveReserved  int64
	ActiveContracts int64
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	// DeletePublished removes published events older than before and
	// reports how many were removed.
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	Create(ctx context.Context, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key so the request can be retried.
	Delete(ctx context.Context, key string) error
}
