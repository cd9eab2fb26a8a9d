package postgres

import (
	"context"
	"time"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/postgres/generated"
	"github.com/iho/stockledger/internal/usecase"
)

// ContractRepository implements usecase.ContractRepository.
type ContractRepository struct {
	queries *generated.Queries
}

// NewContractRepository creates a new ContractRepository.
func NewContractRepository(db generated.DBTX) *ContractRepository {
	return &ContractRepository{
		queries: generated.New(db),
	}
}

// Create inserts a contract within a transaction.
func (r *ContractRepository) Create(ctx context.Context, tx usecase.Transaction, contract *domain.Contract) error {
	pgxTx := tx.(*Tx).PgxTx()
	queries := generated.New(pgxTx)

	err := queries.CreateContract(ctx, generated.CreateContractParams{
		ID:               contract.ID,
		ConsumerUserID:   contract.ConsumerUserID,
		LedgerEntryID:    contract.LedgerEntryID,
		ReservedQuantity: contract.ReservedQuantity,
		Lifecycle:        string(contract.Lifecycle),
		CreatedBy:        contract.CreatedBy,
		CreatedAt:        timeToPgTimestamptz(contract.CreatedAt),
		UpdatedBy:        contract.UpdatedBy,
		UpdatedAt:        timeToPgTimestamptz(contract.UpdatedAt),
	})
	if err != nil {
		return domain.NewInfrastructureError("create contract", err)
	}

	return nil
}

// GetByID retrieves an active contract without locking it.
func (r *ContractRepository) GetByID(ctx context.Context, id string) (*domain.Contract, error) {
	row, err := r.queries.GetContractByID(ctx, id)
	if err != nil {
		return nil, mapNotFound("get contract", err, domain.ErrContractNotFound)
	}

	return rowToContract(row), nil
}

// GetByIDForUpdate retrieves an active contract with a FOR UPDATE lock.
func (r *ContractRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Contract, error) {
	pgxTx := tx.(*Tx).PgxTx()
	queries := generated.New(pgxTx)

	row, err := queries.GetContractByIDForUpdate(ctx, id)
	if err != nil {
		return nil, mapNotFound("lock contract", err, domain.ErrContractNotFound)
	}

	return rowToContract(row), nil
}

// Cancel zeroes the reserved quantity and marks the contract deleted.
func (r *ContractRepository) Cancel(ctx context.Context, tx usecase.Transaction, id string, actor string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()
	queries := generated.New(pgxTx)

	n, err := queries.CancelContract(ctx, generated.CancelContractParams{
		ID:        id,
		UpdatedBy: actor,
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return domain.NewInfrastructureError("cancel contract", err)
	}
	if n == 0 {
		return domain.ErrContractNotFound
	}

	return nil
}

func rowToContract(row generated.Contract) *domain.Contract {
	return &domain.Contract{
		ID:               row.ID,
		ConsumerUserID:   row.ConsumerUserID,
		LedgerEntryID:    row.LedgerEntryID,
		ReservedQuantity: row.ReservedQuantity,
		Lifecycle:        domain.Lifecycle(row.Lifecycle),
		Audit: domain.Audit{
			CreatedBy: row.CreatedBy,
			CreatedAt: row.CreatedAt.Time,
			UpdatedBy: row.UpdatedBy,
			UpdatedAt: row.UpdatedAt.Time,
		},
	}
}
