package dto

import "github.com/iho/stockledger/internal/usecase"

// ReserveContractRequest represents a request to reserve stock.
type ReserveContractRequest struct {
	LedgerEntryID string `json:"ledger_entry_id"`
	Quantity      int64  `json:"quantity"`
}

// ToUseCaseInput converts the request for the given consumer.
func (r *ReserveContractRequest) ToUseCaseInput(consumerUserID string) usecase.ReserveContractInput {
	return usecase.ReserveContractInput{
		ConsumerUserID: consumerUserID,
		ReservationRequest: usecase.ReservationRequest{
			LedgerEntryID: r.LedgerEntryID,
			Quantity:      r.Quantity,
		},
	}
}
