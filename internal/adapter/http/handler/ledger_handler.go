package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// LedgerEntryReader reads ledger entries without locking them.
type LedgerEntryReader interface {
	GetLedgerEntry(ctx context.Context, id string) (*domain.LedgerEntry, error)
}

// ConsistencyChecker verifies stock conservation.
type ConsistencyChecker interface {
	CheckAll(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	entries    LedgerEntryReader
	reconciler ConsistencyChecker
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(entries LedgerEntryReader, reconciler ConsistencyChecker) *LedgerHandler {
	return &LedgerHandler{
		entries:    entries,
		reconciler: reconciler,
	}
}

// GetEntry returns the current stock of a ledger entry.
func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := domain.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid ledger entry id", err.Error())
		return
	}

	entry, err := h.entries.GetLedgerEntry(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get ledger entry", errorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerEntryFromDomain(entry))
}

// CheckConsistency checks that every entry's stock adds up.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.CheckAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check consistency", errorMessage(err))
		return
	}

	status := http.StatusOK
	if !report.Consistent() {
		status = http.StatusConflict
	}

	writeJSON(w, status, dto.ConsistencyFromReport(report))
}
