package domain

import "time"

// Event types
const (
	EventTypeContractCreated  = "contract.created"
	EventTypeContractCanceled = "contract.canceled"
)

// Aggregate types
const (
	AggregateTypeContract = "contract"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// ContractCreatedEvent payload
type ContractCreatedEvent struct {
	ContractID     string `json:"contract_id"`
	LedgerEntryID  string `json:"ledger_entry_id"`
	ConsumerUserID string `json:"consumer_user_id"`
	Quantity       int64  `json:"quantity"`
	AvailableStock int64  `json:"available_stock"`
}

// ContractCanceledEvent payload
type ContractCanceledEvent struct {
	ContractID       string `json:"contract_id"`
	LedgerEntryID    string `json:"ledger_entry_id"`
	ActorUserID      string `json:"actor_user_id"`
	RestoredQuantity int64  `json:"restored_quantity"`
	AvailableStock   int64  `json:"available_stock"`
}

// Payload flattens the event into the outbox payload map.
func (e ContractCreatedEvent) Payload() map[string]any {
	return map[string]any{
		"contract_id":      e.ContractID,
		"ledger_entry_id":  e.LedgerEntryID,
		"consumer_user_id": e.ConsumerUserID,
		"quantity":         e.Quantity,
		"available_stock":  e.AvailableStock,
	}
}

// Payload flattens the event into the outbox payload map.
func (e ContractCanceledEvent) Payload() map[string]any {
	return map[string]any{
		"contract_id":       e.ContractID,
		"ledger_entry_id":   e.LedgerEntryID,
		"actor_user_id":     e.ActorUserID,
		"restored_quantity": e.RestoredQuantity,
		"available_stock":   e.AvailableStock,
	}
}
