package domain

import (
	"context"
	"encoding/json"
	"time"
)

// AuditLog is one row of the reservation audit trail. Successful creates and
// cancels are written in the same transaction as the change; refused
// requests are written afterwards with Status failure.
type AuditLog struct {
	ID           string
	UserID       string // acting user
	Action       string // contract.create, contract.cancel
	ResourceType string // contract, or ledger_entry for a refused create
	ResourceID   string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       string
	ErrorMessage string // set for failures
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionContractCreate AuditAction = "contract.create"
	AuditActionContractCancel AuditAction = "contract.cancel"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// Resource types
const (
	ResourceTypeContract    = "contract"
	ResourceTypeLedgerEntry = "ledger_entry"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying the id of the inbound request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Limit        int
	Offset       int
}
