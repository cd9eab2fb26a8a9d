package usecase

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/metrics"
)

// ReleaseUseCase cancels contracts and returns their quantity to stock.
type ReleaseUseCase struct {
	uow          *UnitOfWork
	entryRepo    LedgerEntryRepository
	contractRepo ContractRepository
	outboxRepo   OutboxRepository
	idGen        IDGenerator
	opts         options
}

// NewReleaseUseCase creates a new ReleaseUseCase.
func NewReleaseUseCase(
	txManager TransactionManager,
	entryRepo LedgerEntryRepository,
	contractRepo ContractRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	opts ...Option,
) *ReleaseUseCase {
	return &ReleaseUseCase{
		uow:          NewUnitOfWork(txManager),
		entryRepo:    entryRepo,
		contractRepo: contractRepo,
		outboxRepo:   outboxRepo,
		idGen:        idGen,
		opts:         newOptions(opts),
	}
}

// CancelContractInput represents input for CancelContract.
type CancelContractInput struct {
	ActorUserID string
	ContractID  string
	At          time.Time // zero means now
}

// Cancel releases an active contract inside tx. The contract row is locked
// before the ledger entry row; every writer in this package takes locks in
// that order. A second cancel of the same contract, including one that was
// waiting on the lock, reports domain.ErrContractNotFound.
func (uc *ReleaseUseCase) Cancel(
	ctx context.Context,
	tx Transaction,
	actorUserID string,
	at time.Time,
	contractID string,
) error {
	_, err := uc.release(ctx, tx, actorUserID, at, contractID)
	return err
}

// release does the work of Cancel and reports the quantity given back.
func (uc *ReleaseUseCase) release(
	ctx context.Context,
	tx Transaction,
	actorUserID string,
	at time.Time,
	contractID string,
) (int64, error) {
	contract, err := uc.contractRepo.GetByIDForUpdate(ctx, tx, contractID)
	if err != nil {
		return 0, err
	}

	entry, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, contract.LedgerEntryID)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerEntryNotFound) {
			return 0, domain.ErrReferencedEntryNotFound
		}
		return 0, err
	}

	before := domain.MarshalState(contract)
	restored := contract.ReservedQuantity
	available := entry.ApplyRestore(restored)

	if err := uc.entryRepo.UpdateStock(ctx, tx, entry.ID, available, actorUserID, at); err != nil {
		return 0, err
	}

	if err := contract.Cancel(actorUserID, at); err != nil {
		return 0, err
	}

	if err := uc.contractRepo.Cancel(ctx, tx, contract.ID, actorUserID, at); err != nil {
		return 0, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   contract.ID,
		AggregateType: domain.AggregateTypeContract,
		EventType:     domain.EventTypeContractCanceled,
		Payload: domain.ContractCanceledEvent{
			ContractID:       contract.ID,
			LedgerEntryID:    entry.ID,
			ActorUserID:      actorUserID,
			RestoredQuantity: restored,
			AvailableStock:   available,
		}.Payload(),
		CreatedAt: at,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return 0, err
	}

	if uc.opts.auditRepo != nil {
		auditLog := &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			UserID:       actorUserID,
			Action:       string(domain.AuditActionContractCancel),
			ResourceType: domain.ResourceTypeContract,
			ResourceID:   contract.ID,
			RequestID:    domain.RequestIDFromContext(ctx),
			BeforeState:  before,
			AfterState:   domain.MarshalState(contract),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    at,
		}
		if err := uc.opts.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return 0, err
		}
	}

	return restored, nil
}

// CancelContract cancels a contract in its own unit of work.
func (uc *ReleaseUseCase) CancelContract(ctx context.Context, input CancelContractInput) error {
	ctx, span := tracer.Start(ctx, "ReleaseUseCase.CancelContract", trace.WithAttributes(
		attribute.String("contract_id", input.ContractID),
	))
	defer span.End()

	start := time.Now()
	logger := uc.opts.logger.With().
		Str("contract_id", input.ContractID).
		Str("actor_id", input.ActorUserID).
		Logger()

	if input.ActorUserID == "" {
		return domain.ErrMissingActor
	}

	at := input.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var restored int64
	err := runWithRetry(ctx, uc.opts.retrier, func() error {
		return uc.uow.Run(ctx, func(ctx context.Context, tx Transaction) error {
			var err error
			restored, err = uc.release(ctx, tx, input.ActorUserID, at, input.ContractID)
			return err
		})
	})
	if err != nil {
		if domain.IsInfrastructure(err) {
			logger.Error().Err(err).Msg("cancellation failed")
		} else {
			logger.Warn().Err(err).Msg("cancellation rejected")
		}
		recordRejection(ctx, uc.opts, uc.idGen, &domain.AuditLog{
			UserID:       input.ActorUserID,
			Action:       string(domain.AuditActionContractCancel),
			ResourceType: domain.ResourceTypeContract,
			ResourceID:   input.ContractID,
			CreatedAt:    at,
		}, err, logger)
		recordError(span, uc.opts.metrics, metrics.OperationCancel, err)
		return err
	}

	if uc.opts.metrics != nil {
		uc.opts.metrics.ContractsCanceled.Inc()
		uc.opts.metrics.QuantityRestored.Add(float64(restored))
		uc.opts.metrics.OperationDuration.WithLabelValues(metrics.OperationCancel).Observe(time.Since(start).Seconds())
	}

	logger.Debug().Int64("restored_quantity", restored).Msg("contract canceled")

	return nil
}

// GetContract retrieves an active contract.
func (uc *ReleaseUseCase) GetContract(ctx context.Context, id string) (*domain.Contract, error) {
	return uc.contractRepo.GetByID(ctx, id)
}
