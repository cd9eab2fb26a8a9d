package usecase

import (
	"context"
	"time"

	"github.com/iho/stockledger/internal/domain"
)

// ReconciliationUseCase checks that stock is conserved across ledger
// entries and their contracts.
type ReconciliationUseCase struct {
	ledgerRepo LedgerRepository
	opts       options
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(ledgerRepo LedgerRepository, opts ...Option) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		ledgerRepo: ledgerRepo,
		opts:       newOptions(opts),
	}
}

// ReconciliationResult represents the result of a reconciliation check
// for a single ledger entry.
type ReconciliationResult struct {
	LedgerEntryID   string
	InitialStock    int64
	AvailableStock  int64
	ActiveReserved  int64
	ActiveContracts int64
	Difference      int64
	IsReconciled    bool
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalEntries      int
	ReconciledEntries int
	Discrepancies     []*ReconciliationResult
	CheckedAt         time.Time
}

// Consistent reports whether no discrepancy was found.
func (r *ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}

func newReconciliationResult(s *StockSummary) *ReconciliationResult {
	// initial = available + sum of active reservations
	diff := s.InitialStock - s.AvailableStock - s.ActiveReserved
	return &ReconciliationResult{
		LedgerEntryID:   s.LedgerEntryID,
		InitialStock:    s.InitialStock,
		AvailableStock:  s.AvailableStock,
		ActiveReserved:  s.ActiveReserved,
		ActiveContracts: s.ActiveContracts,
		Difference:      diff,
		IsReconciled:    diff == 0 && s.AvailableStock >= 0,
	}
}

// CheckEntry reconciles a single ledger entry.
func (uc *ReconciliationUseCase) CheckEntry(ctx context.Context, ledgerEntryID string) (*ReconciliationResult, error) {
	summaries, err := uc.ledgerRepo.StockSummaries(ctx, ledgerEntryID)
	if err != nil {
		return nil, err
	}

	for _, s := range summaries {
		if s.LedgerEntryID == ledgerEntryID {
			return newReconciliationResult(s), nil
		}
	}

	return nil, domain.ErrLedgerEntryNotFound
}

// CheckAll reconciles every active ledger entry.
func (uc *ReconciliationUseCase) CheckAll(ctx context.Context) (*ReconciliationReport, error) {
	summaries, err := uc.ledgerRepo.StockSummaries(ctx, "")
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalEntries:  len(summaries),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for _, s := range summaries {
		result := newReconciliationResult(s)
		if result.IsReconciled {
			report.ReconciledEntries++
			continue
		}

		report.Discrepancies = append(report.Discrepancies, result)
		uc.opts.logger.Error().
			Str("ledger_entry_id", result.LedgerEntryID).
			Int64("initial_stock", result.InitialStock).
			Int64("available_stock", result.AvailableStock).
			Int64("active_reserved", result.ActiveReserved).
			Int64("difference", result.Difference).
			Msg("stock conservation violated")
	}

	if uc.opts.metrics != nil {
		uc.opts.metrics.InconsistentEntries.Set(float64(len(report.Discrepancies)))
	}

	return report, nil
}
