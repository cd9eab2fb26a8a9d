package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// ReservationService defines the behavior needed to create contracts.
type ReservationService interface {
	ReserveContract(ctx context.Context, input usecase.ReserveContractInput) (*domain.Contract, error)
}

// ReleaseService defines the behavior needed to cancel and read contracts.
type ReleaseService interface {
	CancelContract(ctx context.Context, input usecase.CancelContractInput) error
	GetContract(ctx context.Context, id string) (*domain.Contract, error)
}

// ContractHandler handles contract-related HTTP requests.
type ContractHandler struct {
	reservations ReservationService
	releases     ReleaseService
}

// NewContractHandler creates a new ContractHandler.
func NewContractHandler(reservations ReservationService, releases ReleaseService) *ContractHandler {
	return &ContractHandler{
		reservations: reservations,
		releases:     releases,
	}
}

// Create reserves stock for the calling consumer.
func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor", "")
		return
	}

	var req dto.ReserveContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := domain.ValidateID(req.LedgerEntryID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid ledger_entry_id", err.Error())
		return
	}

	contract, err := h.reservations.ReserveContract(r.Context(), req.ToUseCaseInput(actor))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reserve", errorMessage(err))
		return
	}

	writeJSON(w, http.StatusCreated, dto.ContractFromDomain(contract))
}

// Cancel releases a contract and returns its quantity to stock.
func (h *ContractHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor", "")
		return
	}

	id := chi.URLParam(r, "id")
	if err := domain.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id", err.Error())
		return
	}

	err := h.releases.CancelContract(r.Context(), usecase.CancelContractInput{
		ActorUserID: actor,
		ContractID:  id,
	})
	if err != nil {
		writeError(w, mapDomainError(err), "failed to cancel contract", errorMessage(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get returns an active contract.
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := domain.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id", err.Error())
		return
	}

	contract, err := h.releases.GetContract(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get contract", errorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.ContractFromDomain(contract))
}
