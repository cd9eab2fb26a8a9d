package domain

import "time"

// ContractState is the externally visible state of a contract.
type ContractState string

const (
	ContractStateActive   ContractState = "active"
	ContractStateCanceled ContractState = "canceled"
)

// Contract is a consumer's reservation of a quantity against a LedgerEntry.
//
// An active contract always has ReservedQuantity > 0. Cancellation zeroes
// the quantity and marks the row deleted; nothing leaves that state.
type Contract struct {
	ID               string
	ConsumerUserID   string
	LedgerEntryID    string
	ReservedQuantity int64
	Lifecycle        Lifecycle
	Audit
}

// NewContract builds an active contract created by consumer at t.
func NewContract(id, consumerUserID, ledgerEntryID string, quantity int64, t time.Time) *Contract {
	return &Contract{
		ID:               id,
		ConsumerUserID:   consumerUserID,
		LedgerEntryID:    ledgerEntryID,
		ReservedQuantity: quantity,
		Lifecycle:        LifecycleActive,
		Audit: Audit{
			CreatedBy: consumerUserID,
			CreatedAt: t,
			UpdatedBy: consumerUserID,
			UpdatedAt: t,
		},
	}
}

// State maps the lifecycle tag onto the contract state machine.
func (c *Contract) State() ContractState {
	if c.Lifecycle.IsActive() {
		return ContractStateActive
	}
	return ContractStateCanceled
}

// Cancel moves the contract to its terminal state. Canceling a contract
// that is already canceled reports ErrContractNotFound, the same answer a
// lookup would give.
func (c *Contract) Cancel(actor string, t time.Time) error {
	if !c.Lifecycle.IsActive() {
		return ErrContractNotFound
	}

	c.ReservedQuantity = 0
	c.Lifecycle = LifecycleDeleted
	c.Touch(actor, t)

	return nil
}
