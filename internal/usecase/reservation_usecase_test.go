package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/metrics"
	"github.com/iho/stockledger/internal/usecase"
	"github.com/iho/stockledger/internal/usecase/fakes"
	"github.com/iho/stockledger/internal/usecase/mocks"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type sequenceIDGenerator struct {
	prefix string
	n      atomic.Int64
}

func (g *sequenceIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}

func newEntry(id string, stock int64) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:             id,
		OwnerUserID:    "provider-1",
		ServiceID:      "svc-1",
		InitialStock:   stock,
		AvailableStock: stock,
		Lifecycle:      domain.LifecycleActive,
		Audit: domain.Audit{
			CreatedBy: "provider-1",
			CreatedAt: testNow,
			UpdatedBy: "provider-1",
			UpdatedAt: testNow,
		},
	}
}

func newReservationFixture(store *fakes.Store, opts ...usecase.Option) *usecase.ReservationUseCase {
	return usecase.NewReservationUseCase(
		store,
		store.LedgerEntries(),
		store.ContractRepo(),
		store.Outbox(),
		&sequenceIDGenerator{prefix: "id"},
		opts...,
	)
}

func TestReservationUseCase_Create_LocksThenWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tx := mocks.NewMockTransaction(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)
	contractRepo := mocks.NewMockContractRepository(ctrl)
	outboxRepo := mocks.NewMockOutboxRepository(ctrl)
	auditRepo := mocks.NewMockAuditRepository(ctrl)
	idGen := mocks.NewMockIDGenerator(ctrl)

	idGen.EXPECT().Generate().Return("gen-id").AnyTimes()

	gomock.InOrder(
		entryRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, "entry-1").Return(newEntry("entry-1", 100), nil),
		entryRepo.EXPECT().UpdateStock(gomock.Any(), tx, "entry-1", int64(70), "consumer-1", testNow).Return(nil),
		contractRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ usecase.Transaction, c *domain.Contract) error {
				assert.Equal(t, "entry-1", c.LedgerEntryID)
				assert.Equal(t, "consumer-1", c.ConsumerUserID)
				assert.Equal(t, int64(30), c.ReservedQuantity)
				assert.Equal(t, domain.ContractStateActive, c.State())
				return nil
			}),
		outboxRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ usecase.Transaction, e *domain.OutboxEvent) error {
				assert.Equal(t, domain.EventTypeContractCreated, e.EventType)
				assert.Equal(t, int64(70), e.Payload["available_stock"])
				return nil
			}),
		auditRepo.EXPECT().CreateTx(gomock.Any(), tx, gomock.Any()).Return(nil),
	)

	uc := usecase.NewReservationUseCase(nil, entryRepo, contractRepo, outboxRepo, idGen, usecase.WithAuditRepository(auditRepo))

	contract, err := uc.Create(context.Background(), tx, "consumer-1", testNow, usecase.ReservationRequest{
		LedgerEntryID: "entry-1",
		Quantity:      30,
	})

	require.NoError(t, err)
	assert.Equal(t, "gen-id", contract.ID)
	assert.Equal(t, int64(30), contract.ReservedQuantity)
}

func TestReservationUseCase_Create_InsufficientStockWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tx := mocks.NewMockTransaction(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)
	contractRepo := mocks.NewMockContractRepository(ctrl)
	outboxRepo := mocks.NewMockOutboxRepository(ctrl)
	idGen := mocks.NewMockIDGenerator(ctrl)

	entryRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, "entry-1").Return(newEntry("entry-1", 4), nil)

	uc := usecase.NewReservationUseCase(nil, entryRepo, contractRepo, outboxRepo, idGen)

	_, err := uc.Create(context.Background(), tx, "consumer-1", testNow, usecase.ReservationRequest{
		LedgerEntryID: "entry-1",
		Quantity:      6,
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestReservationUseCase_Create_MissingEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tx := mocks.NewMockTransaction(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)

	entryRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, "missing").Return(nil, domain.ErrLedgerEntryNotFound)

	uc := usecase.NewReservationUseCase(nil, entryRepo, nil, nil, nil)

	_, err := uc.Create(context.Background(), tx, "consumer-1", testNow, usecase.ReservationRequest{
		LedgerEntryID: "missing",
		Quantity:      1,
	})

	assert.ErrorIs(t, err, domain.ErrLedgerEntryNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestReservationUseCase_IsReservationPlausible(t *testing.T) {
	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 10))
	deleted := newEntry("entry-deleted", 10)
	deleted.Lifecycle = domain.LifecycleDeleted
	store.AddLedgerEntry(deleted)

	uc := newReservationFixture(store)

	tests := []struct {
		name string
		req  usecase.ReservationRequest
		want bool
	}{
		{"fits", usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 10}, true},
		{"too much", usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 11}, false},
		{"zero quantity", usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 0}, false},
		{"negative quantity", usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: -1}, false},
		{"missing entry", usecase.ReservationRequest{LedgerEntryID: "nope", Quantity: 1}, false},
		{"deleted entry", usecase.ReservationRequest{LedgerEntryID: "entry-deleted", Quantity: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := uc.IsReservationPlausible(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 0, store.Commits()+store.Rollbacks(), "pre-check must not open a transaction")
}

func TestReservationUseCase_IsReservationPlausible_StorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)
	entryRepo.EXPECT().GetByID(gomock.Any(), "entry-1").
		Return(nil, domain.NewInfrastructureError("get ledger entry", errors.New("connection reset")))

	uc := usecase.NewReservationUseCase(nil, entryRepo, nil, nil, nil)

	ok, err := uc.IsReservationPlausible(context.Background(), usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 1})

	assert.False(t, ok)
	assert.True(t, domain.IsInfrastructure(err))
}

// Stock 100: reserving 30 leaves 70, then 80 does not fit.
func TestReservationUseCase_ReserveContract_InsufficientStock(t *testing.T) {
	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 100))
	uc := newReservationFixture(store)

	contract, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		At:                 testNow,
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ContractStateActive, contract.State())
	assert.Equal(t, int64(30), contract.ReservedQuantity)

	entry, _ := store.LedgerEntry("entry-1")
	assert.Equal(t, int64(70), entry.AvailableStock)
	assert.Equal(t, "consumer-1", entry.UpdatedBy)
	assert.Equal(t, testNow, entry.UpdatedAt)

	_, err = uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 80},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	entry, _ = store.LedgerEntry("entry-1")
	assert.Equal(t, int64(70), entry.AvailableStock)
	assert.Len(t, store.Contracts(), 1)
	assert.Len(t, store.OutboxEvents(), 1)
}

func TestReservationUseCase_ReserveContract_MissingEntryChangesNothing(t *testing.T) {
	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 10))
	uc := newReservationFixture(store)

	_, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "nope", Quantity: 1},
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, store.Contracts())
	assert.Empty(t, store.OutboxEvents())
	entry, _ := store.LedgerEntry("entry-1")
	assert.Equal(t, int64(10), entry.AvailableStock)
}

func TestReservationUseCase_ReserveContract_Validation(t *testing.T) {
	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 10))
	uc := newReservationFixture(store)

	_, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 1},
	})
	assert.ErrorIs(t, err, domain.ErrMissingActor)

	_, err = uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 0},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: domain.MaxReservationQuantity + 1},
	})
	assert.ErrorIs(t, err, domain.ErrQuantityTooLarge)

	assert.Equal(t, 0, store.Commits()+store.Rollbacks())
}

func TestReservationUseCase_ReserveContract_RollsBackOnOutboxFailure(t *testing.T) {
	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 10))
	store.FailNext(fakes.OpCreateOutbox, domain.NewInfrastructureError("create outbox event", errors.New("disk full")))
	uc := newReservationFixture(store)

	_, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 3},
	})

	require.Error(t, err)
	assert.True(t, domain.IsInfrastructure(err))
	assert.Equal(t, 1, store.Rollbacks())

	entry, _ := store.LedgerEntry("entry-1")
	assert.Equal(t, int64(10), entry.AvailableStock)
	assert.Empty(t, store.Contracts())
}

func TestReservationUseCase_ReserveContract_RetriesTransientFailure(t *testing.T) {
	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 10))
	store.FailNext(fakes.OpCommit, domain.NewInfrastructureError("commit transaction", errors.New("deadlock detected")))

	attempts := 0
	retrier := retrierFunc(func(ctx context.Context, op func() error) error {
		var err error
		for attempts = 1; attempts <= 3; attempts++ {
			if err = op(); err == nil || !domain.IsInfrastructure(err) {
				return err
			}
		}
		return err
	})

	uc := newReservationFixture(store, usecase.WithRetrier(retrier))

	contract, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 4},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, store.Commits())
	assert.Equal(t, 1, store.Rollbacks())

	entry, _ := store.LedgerEntry("entry-1")
	assert.Equal(t, int64(6), entry.AvailableStock)
	got, ok := store.Contract(contract.ID)
	require.True(t, ok)
	assert.Equal(t, int64(4), got.ReservedQuantity)
}

func TestReservationUseCase_ReserveContract_RecordsMetrics(t *testing.T) {
	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 10))
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	uc := newReservationFixture(store, usecase.WithMetrics(m))

	_, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 7},
	})
	require.NoError(t, err)

	_, err = uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 7},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ContractsCreated))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.QuantityReserved))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PrecheckRejections.WithLabelValues("insufficient_stock")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationErrors.WithLabelValues(metrics.OperationReserve, "insufficient_stock")))
}

type retrierFunc func(ctx context.Context, op func() error) error

func (f retrierFunc) Retry(ctx context.Context, op func() error) error { return f(ctx, op) }
