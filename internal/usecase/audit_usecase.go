package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// AuditUseCase reads the audit trail written by the reservation and release
// use cases.
type AuditUseCase struct {
	auditRepo AuditRepository
}

// NewAuditUseCase creates a new AuditUseCase.
func NewAuditUseCase(auditRepo AuditRepository) *AuditUseCase {
	return &AuditUseCase{auditRepo: auditRepo}
}

// ContractHistory returns the audit rows of one contract, newest first.
// A limit outside (0, 500] falls back to 50.
func (uc *AuditUseCase) ContractHistory(ctx context.Context, contractID string, limit, offset int) ([]*domain.AuditLog, error) {
	if err := domain.ValidateID(contractID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	return uc.auditRepo.List(ctx, domain.AuditFilter{
		ResourceType: domain.ResourceTypeContract,
		ResourceID:   contractID,
		Limit:        limit,
		Offset:       offset,
	})
}

// recordRejection stores a failure row for a request that was refused. The
// refused transaction rolled back, so the row is written on its own and a
// failure to write it is only logged.
func recordRejection(ctx context.Context, o options, idGen IDGenerator, log *domain.AuditLog, cause error, logger zerolog.Logger) {
	if o.auditRepo == nil || domain.IsInfrastructure(cause) {
		return
	}

	log.ID = idGen.Generate()
	log.RequestID = domain.RequestIDFromContext(ctx)
	log.Status = string(domain.AuditStatusFailure)
	log.ErrorMessage = cause.Error()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	if err := o.auditRepo.Create(context.WithoutCancel(ctx), log); err != nil {
		logger.Warn().Err(err).Msg("failed to record rejected request")
	}
}
