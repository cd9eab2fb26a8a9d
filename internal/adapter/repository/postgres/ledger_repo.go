package postgres

import (
	"context"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/postgres/generated"
	"github.com/iho/stockledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db generated.DBTX
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db generated.DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// StockSummaries sums the active reservations of every active ledger entry,
// or of the entry with the given id.
func (r *LedgerRepository) StockSummaries(ctx context.Context, id string) ([]*usecase.StockSummary, error) {
	q := generated.New(r.db)
	rows, err := q.GetStockSummaries(ctx, id)
	if err != nil {
		return nil, domain.NewInfrastructureError("stock summaries", err)
	}

	summaries := make([]*usecase.StockSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, &usecase.StockSummary{
			LedgerEntryID:   row.ID,
			InitialStock:    row.InitialStock,
			AvailableStock:  row.AvailableStock,
			ActiveReserved:  row.ActiveReserved,
			ActiveContracts: row.ActiveContracts,
		})
	}

	return summaries, nil
}
