package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/postgres/generated"
	"github.com/iho/stockledger/internal/usecase"
)

// LedgerEntryRepository implements usecase.LedgerEntryRepository.
type LedgerEntryRepository struct {
	queries *generated.Queries
}

// NewLedgerEntryRepository creates a new LedgerEntryRepository.
func NewLedgerEntryRepository(db generated.DBTX) *LedgerEntryRepository {
	return &LedgerEntryRepository{
		queries: generated.New(db),
	}
}

// GetByID retrieves an active ledger entry without locking it.
func (r *LedgerEntryRepository) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	row, err := r.queries.GetLedgerEntryByID(ctx, id)
	if err != nil {
		return nil, mapNotFound("get ledger entry", err, domain.ErrLedgerEntryNotFound)
	}

	return rowToLedgerEntry(row), nil
}

// GetByIDForUpdate retrieves an active ledger entry with a FOR UPDATE lock.
// A caller that waited on the lock sees the row as committed by the holder;
// if the holder deleted it, no row comes back.
func (r *LedgerEntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error) {
	pgxTx := tx.(*Tx).PgxTx()
	queries := generated.New(pgxTx)

	row, err := queries.GetLedgerEntryByIDForUpdate(ctx, id)
	if err != nil {
		return nil, mapNotFound("lock ledger entry", err, domain.ErrLedgerEntryNotFound)
	}

	return rowToLedgerEntry(row), nil
}

// UpdateStock writes the available stock of a locked ledger entry.
func (r *LedgerEntryRepository) UpdateStock(ctx context.Context, tx usecase.Transaction, id string, availableStock int64, actor string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()
	queries := generated.New(pgxTx)

	n, err := queries.UpdateLedgerEntryStock(ctx, generated.UpdateLedgerEntryStockParams{
		ID:             id,
		AvailableStock: availableStock,
		UpdatedBy:      actor,
		UpdatedAt:      timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return domain.NewInfrastructureError("update ledger entry stock", err)
	}
	if n == 0 {
		return domain.ErrLedgerEntryNotFound
	}

	return nil
}

// Create inserts a ledger entry. Offerings are owned by the catalog side of
// the system; this is used by seeding tools and tests.
func (r *LedgerEntryRepository) Create(ctx context.Context, entry *domain.LedgerEntry) error {
	lifecycle := entry.Lifecycle
	if lifecycle == "" {
		lifecycle = domain.LifecycleActive
	}

	_, err := r.queries.CreateLedgerEntry(ctx, generated.CreateLedgerEntryParams{
		ID:             entry.ID,
		OwnerUserID:    entry.OwnerUserID,
		ServiceID:      entry.ServiceID,
		InitialStock:   entry.InitialStock,
		AvailableStock: entry.AvailableStock,
		Lifecycle:      string(lifecycle),
		CreatedBy:      entry.CreatedBy,
		CreatedAt:      timeToPgTimestamptz(entry.CreatedAt),
		UpdatedBy:      entry.UpdatedBy,
		UpdatedAt:      timeToPgTimestamptz(entry.UpdatedAt),
	})
	if err != nil {
		return domain.NewInfrastructureError("create ledger entry", err)
	}

	return nil
}

func rowToLedgerEntry(row generated.LedgerEntry) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:             row.ID,
		OwnerUserID:    row.OwnerUserID,
		ServiceID:      row.ServiceID,
		InitialStock:   row.InitialStock,
		AvailableStock: row.AvailableStock,
		Lifecycle:      domain.Lifecycle(row.Lifecycle),
		Audit: domain.Audit{
			CreatedBy: row.CreatedBy,
			CreatedAt: row.CreatedAt.Time,
			UpdatedBy: row.UpdatedBy,
			UpdatedAt: row.UpdatedAt.Time,
		},
	}
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
