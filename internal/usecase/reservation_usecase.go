package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/metrics"
)

// ReservationUseCase creates contracts against ledger entry stock.
type ReservationUseCase struct {
	uow          *UnitOfWork
	entryRepo    LedgerEntryRepository
	contractRepo ContractRepository
	outboxRepo   OutboxRepository
	idGen        IDGenerator
	opts         options
}

// NewReservationUseCase creates a new ReservationUseCase.
func NewReservationUseCase(
	txManager TransactionManager,
	entryRepo LedgerEntryRepository,
	contractRepo ContractRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	opts ...Option,
) *ReservationUseCase {
	return &ReservationUseCase{
		uow:          NewUnitOfWork(txManager),
		entryRepo:    entryRepo,
		contractRepo: contractRepo,
		outboxRepo:   outboxRepo,
		idGen:        idGen,
		opts:         newOptions(opts),
	}
}

// ReservationRequest is what a consumer asks for.
type ReservationRequest struct {
	LedgerEntryID string
	Quantity      int64
}

// ReserveContractInput represents input for ReserveContract.
type ReserveContractInput struct {
	ConsumerUserID string
	At             time.Time // zero means now
	ReservationRequest
}

// CheckReservation looks at the entry without locking it. The answer may be
// stale by the time a transaction opens; Create re-checks under lock.
func (uc *ReservationUseCase) CheckReservation(ctx context.Context, req ReservationRequest) error {
	if err := domain.ValidateQuantity(req.Quantity); err != nil {
		return err
	}

	entry, err := uc.entryRepo.GetByID(ctx, req.LedgerEntryID)
	if err != nil {
		return err
	}

	return entry.ValidateReserve(req.Quantity)
}

// IsReservationPlausible reports whether req could succeed right now.
// Only storage failures are returned as errors.
func (uc *ReservationUseCase) IsReservationPlausible(ctx context.Context, req ReservationRequest) (bool, error) {
	err := uc.CheckReservation(ctx, req)
	switch domain.KindOf(err) {
	case domain.KindNotFound, domain.KindInsufficientStock, domain.KindInvalidInput:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create reserves req.Quantity of the ledger entry inside tx: lock the
// entry, check its stock, decrement it and insert an active contract.
// Nothing is written when an error is returned, and the caller must roll
// tx back.
func (uc *ReservationUseCase) Create(
	ctx context.Context,
	tx Transaction,
	consumerUserID string,
	at time.Time,
	req ReservationRequest,
) (*domain.Contract, error) {
	entry, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, req.LedgerEntryID)
	if err != nil {
		return nil, err
	}

	if err := entry.ValidateReserve(req.Quantity); err != nil {
		return nil, err
	}

	remaining := entry.ApplyReserve(req.Quantity)
	if err := uc.entryRepo.UpdateStock(ctx, tx, entry.ID, remaining, consumerUserID, at); err != nil {
		return nil, err
	}

	contract := domain.NewContract(uc.idGen.Generate(), consumerUserID, entry.ID, req.Quantity, at)
	if err := uc.contractRepo.Create(ctx, tx, contract); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   contract.ID,
		AggregateType: domain.AggregateTypeContract,
		EventType:     domain.EventTypeContractCreated,
		Payload: domain.ContractCreatedEvent{
			ContractID:     contract.ID,
			LedgerEntryID:  entry.ID,
			ConsumerUserID: consumerUserID,
			Quantity:       req.Quantity,
			AvailableStock: remaining,
		}.Payload(),
		CreatedAt: at,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if uc.opts.auditRepo != nil {
		auditLog := &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			UserID:       consumerUserID,
			Action:       string(domain.AuditActionContractCreate),
			ResourceType: domain.ResourceTypeContract,
			ResourceID:   contract.ID,
			RequestID:    domain.RequestIDFromContext(ctx),
			AfterState:   domain.MarshalState(contract),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    at,
		}
		if err := uc.opts.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return nil, err
		}
	}

	return contract, nil
}

// ReserveContract validates the input, runs the advisory pre-check and then
// creates the contract in its own unit of work.
func (uc *ReservationUseCase) ReserveContract(ctx context.Context, input ReserveContractInput) (*domain.Contract, error) {
	ctx, span := tracer.Start(ctx, "ReservationUseCase.ReserveContract", trace.WithAttributes(
		attribute.String("ledger_entry_id", input.LedgerEntryID),
		attribute.Int64("quantity", input.Quantity),
	))
	defer span.End()

	start := time.Now()
	logger := uc.opts.logger.With().
		Str("ledger_entry_id", input.LedgerEntryID).
		Str("actor_id", input.ConsumerUserID).
		Int64("quantity", input.Quantity).
		Logger()

	if input.ConsumerUserID == "" {
		return nil, domain.ErrMissingActor
	}

	if err := uc.CheckReservation(ctx, input.ReservationRequest); err != nil {
		if uc.opts.metrics != nil && !domain.IsInfrastructure(err) {
			uc.opts.metrics.PrecheckRejections.WithLabelValues(domain.KindOf(err).String()).Inc()
		}
		logger.Warn().Err(err).Msg("reservation rejected by pre-check")
		uc.recordRejection(ctx, input, err, logger)
		recordError(span, uc.opts.metrics, metrics.OperationReserve, err)
		return nil, err
	}

	at := input.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var contract *domain.Contract
	err := runWithRetry(ctx, uc.opts.retrier, func() error {
		return uc.uow.Run(ctx, func(ctx context.Context, tx Transaction) error {
			var err error
			contract, err = uc.Create(ctx, tx, input.ConsumerUserID, at, input.ReservationRequest)
			return err
		})
	})
	if err != nil {
		if domain.IsInfrastructure(err) {
			logger.Error().Err(err).Msg("reservation failed")
		} else {
			logger.Warn().Err(err).Msg("reservation rejected")
		}
		uc.recordRejection(ctx, input, err, logger)
		recordError(span, uc.opts.metrics, metrics.OperationReserve, err)
		return nil, err
	}

	if uc.opts.metrics != nil {
		uc.opts.metrics.ContractsCreated.Inc()
		uc.opts.metrics.QuantityReserved.Add(float64(contract.ReservedQuantity))
		uc.opts.metrics.OperationDuration.WithLabelValues(metrics.OperationReserve).Observe(time.Since(start).Seconds())
	}

	span.SetAttributes(attribute.String("contract_id", contract.ID))
	logger.Debug().Str("contract_id", contract.ID).Msg("contract reserved")

	return contract, nil
}

func (uc *ReservationUseCase) recordRejection(ctx context.Context, input ReserveContractInput, cause error, logger zerolog.Logger) {
	recordRejection(ctx, uc.opts, uc.idGen, &domain.AuditLog{
		UserID:       input.ConsumerUserID,
		Action:       string(domain.AuditActionContractCreate),
		ResourceType: domain.ResourceTypeLedgerEntry,
		ResourceID:   input.LedgerEntryID,
		AfterState:   domain.JSON{"quantity": input.Quantity},
		CreatedAt:    input.At,
	}, cause, logger)
}

// GetLedgerEntry retrieves a ledger entry without locking it.
func (uc *ReservationUseCase) GetLedgerEntry(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	return uc.entryRepo.GetByID(ctx, id)
}

func recordError(span trace.Span, m *metrics.Metrics, operation string, err error) {
	kind := domain.KindOf(err)

	if kind == domain.KindInfrastructure || kind == domain.KindUnknown {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("rejection", kind.String()))
	}

	if m != nil {
		m.OperationErrors.WithLabelValues(operation, kind.String()).Inc()
	}
}
