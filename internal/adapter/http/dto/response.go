package dto

import (
	"time"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// ContractResponse represents a contract in API responses.
type ContractResponse struct {
	ID               string    `json:"id"`
	ConsumerUserID   string    `json:"consumer_user_id"`
	LedgerEntryID    string    `json:"ledger_entry_id"`
	ReservedQuantity int64     `json:"reserved_quantity"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ContractFromDomain converts domain contract to response.
func ContractFromDomain(c *domain.Contract) *ContractResponse {
	return &ContractResponse{
		ID:               c.ID,
		ConsumerUserID:   c.ConsumerUserID,
		LedgerEntryID:    c.LedgerEntryID,
		ReservedQuantity: c.ReservedQuantity,
		State:            string(c.State()),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// LedgerEntryResponse represents a ledger entry in API responses.
type LedgerEntryResponse struct {
	ID             string    `json:"id"`
	OwnerUserID    string    `json:"owner_user_id"`
	ServiceID      string    `json:"service_id"`
	InitialStock   int64     `json:"initial_stock"`
	AvailableStock int64     `json:"available_stock"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LedgerEntryFromDomain converts domain ledger entry to response.
func LedgerEntryFromDomain(e *domain.LedgerEntry) *LedgerEntryResponse {
	return &LedgerEntryResponse{
		ID:             e.ID,
		OwnerUserID:    e.OwnerUserID,
		ServiceID:      e.ServiceID,
		InitialStock:   e.InitialStock,
		AvailableStock: e.AvailableStock,
		UpdatedAt:      e.UpdatedAt,
	}
}

// DiscrepancyResponse describes a ledger entry whose stock does not add up.
type DiscrepancyResponse struct {
	LedgerEntryID   string `json:"ledger_entry_id"`
	InitialStock    int64  `json:"initial_stock"`
	AvailableStock  int64  `json:"available_stock"`
	ActiveReserved  int64  `json:"active_reserved"`
	ActiveContracts int64  `json:"active_contracts"`
	Difference      int64  `json:"difference"`
}

// ConsistencyResponse is the result of a conservation check.
type ConsistencyResponse struct {
	Status            string                 `json:"status"`
	Consistent        bool                   `json:"consistent"`
	TotalEntries      int                    `json:"total_entries"`
	ReconciledEntries int                    `json:"reconciled_entries"`
	Discrepancies     []*DiscrepancyResponse `json:"discrepancies,omitempty"`
	CheckedAt         time.Time              `json:"checked_at"`
}

// ConsistencyFromReport converts a reconciliation report to response.
func ConsistencyFromReport(r *usecase.ReconciliationReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		Status:            "consistent",
		Consistent:        r.Consistent(),
		TotalEntries:      r.TotalEntries,
		ReconciledEntries: r.ReconciledEntries,
		CheckedAt:         r.CheckedAt,
	}
	if !resp.Consistent {
		resp.Status = "inconsistent"
	}

	for _, d := range r.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, &DiscrepancyResponse{
			LedgerEntryID:   d.LedgerEntryID,
			InitialStock:    d.InitialStock,
			AvailableStock:  d.AvailableStock,
			ActiveReserved:  d.ActiveReserved,
			ActiveContracts: d.ActiveContracts,
			Difference:      d.Difference,
		})
	}

	return resp
}

// AuditLogResponse represents one audit row in API responses.
type AuditLogResponse struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditLogsFromDomain converts audit rows to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []*AuditLogResponse {
	resp := make([]*AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, &AuditLogResponse{
			ID:           l.ID,
			UserID:       l.UserID,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			BeforeState:  l.BeforeState,
			AfterState:   l.AfterState,
			Status:       l.Status,
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		})
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
