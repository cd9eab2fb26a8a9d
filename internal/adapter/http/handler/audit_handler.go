package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
)

// ContractHistoryReader reads the audit trail of a contract.
type ContractHistoryReader interface {
	ContractHistory(ctx context.Context, contractID string, limit, offset int) ([]*domain.AuditLog, error)
}

// AuditHandler serves audit trail reads.
type AuditHandler struct {
	history ContractHistoryReader
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(history ContractHistoryReader) *AuditHandler {
	return &AuditHandler{history: history}
}

// ContractHistory lists the create, cancel and rejected attempts recorded
// for a contract, newest first.
func (h *AuditHandler) ContractHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := domain.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id", err.Error())
		return
	}

	logs, err := h.history.ContractHistory(r.Context(), id,
		parseIntQuery(r, "limit", 0),
		parseIntQuery(r, "offset", 0),
	)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get contract history", errorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}
