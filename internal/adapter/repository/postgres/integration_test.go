package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/stockledger/internal/adapter/repository/postgres"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/testutil"
	"github.com/iho/stockledger/internal/usecase"
)

type services struct {
	reservations   *usecase.ReservationUseCase
	releases       *usecase.ReleaseUseCase
	reconciliation *usecase.ReconciliationUseCase
	entries        *postgres.LedgerEntryRepository
	txManager      *postgres.TxManager
}

func newServices(db *testutil.TestDB, lockTimeout time.Duration) services {
	pool := db.Pool
	txManager := postgres.NewTxManager(pool, lockTimeout)
	entryRepo := postgres.NewLedgerEntryRepository(pool)
	contractRepo := postgres.NewContractRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	idGen := postgres.NewULIDGenerator()
	opts := []usecase.Option{
		usecase.WithAuditRepository(postgres.NewAuditRepository(pool)),
		usecase.WithRetrier(postgres.NewRetrier()),
	}

	return services{
		reservations:   usecase.NewReservationUseCase(txManager, entryRepo, contractRepo, outboxRepo, idGen, opts...),
		releases:       usecase.NewReleaseUseCase(txManager, entryRepo, contractRepo, outboxRepo, idGen, opts...),
		reconciliation: usecase.NewReconciliationUseCase(postgres.NewLedgerRepository(pool)),
		entries:        entryRepo,
		txManager:      txManager,
	}
}

func reserveInput(entryID string, quantity int64) usecase.ReserveContractInput {
	return usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: entryID, Quantity: quantity},
	}
}

func TestReservationProtocolIntegration(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := newServices(db, 5*time.Second)

	t.Run("reserve then reject when stock runs short", func(t *testing.T) {
		db.TruncateAll(ctx)
		entry := db.CreateLedgerEntry(ctx, 100)

		contract, err := svc.reservations.ReserveContract(ctx, reserveInput(entry.ID, 30))
		require.NoError(t, err)
		assert.Equal(t, int64(30), contract.ReservedQuantity)
		assert.Equal(t, int64(70), db.AvailableStock(ctx, entry.ID))

		_, err = svc.reservations.ReserveContract(ctx, reserveInput(entry.ID, 80))
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, int64(70), db.AvailableStock(ctx, entry.ID))
	})

	t.Run("cancel restores stock", func(t *testing.T) {
		db.TruncateAll(ctx)
		entry := db.CreateLedgerEntry(ctx, 50)

		contract, err := svc.reservations.ReserveContract(ctx, reserveInput(entry.ID, 20))
		require.NoError(t, err)
		assert.Equal(t, int64(30), db.AvailableStock(ctx, entry.ID))

		require.NoError(t, svc.releases.CancelContract(ctx, usecase.CancelContractInput{
			ActorUserID: "consumer-1",
			ContractID:  contract.ID,
		}))
		assert.Equal(t, int64(50), db.AvailableStock(ctx, entry.ID))
		assert.Equal(t, 1, db.CountContracts(ctx, entry.ID, domain.LifecycleDeleted))

		err = svc.releases.CancelContract(ctx, usecase.CancelContractInput{
			ActorUserID: "consumer-1",
			ContractID:  contract.ID,
		})
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		db.TruncateAll(ctx)

		err := svc.releases.CancelContract(ctx, usecase.CancelContractInput{ActorUserID: "consumer-1", ContractID: "nope"})
		assert.ErrorIs(t, err, domain.ErrContractNotFound)

		_, err = svc.reservations.ReserveContract(ctx, reserveInput("nope", 1))
		assert.ErrorIs(t, err, domain.ErrLedgerEntryNotFound)
	})

	t.Run("cancel after the entry is deleted", func(t *testing.T) {
		db.TruncateAll(ctx)
		entry := db.CreateLedgerEntry(ctx, 10)

		contract, err := svc.reservations.ReserveContract(ctx, reserveInput(entry.ID, 4))
		require.NoError(t, err)
		db.DeleteLedgerEntry(ctx, entry.ID)

		err = svc.releases.CancelContract(ctx, usecase.CancelContractInput{ActorUserID: "consumer-1", ContractID: contract.ID})
		assert.ErrorIs(t, err, domain.ErrReferencedEntryNotFound)
		assert.Equal(t, 1, db.CountContracts(ctx, entry.ID, domain.LifecycleActive))
	})
}

func TestConcurrentReservationsIntegration(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := newServices(db, 5*time.Second)

	t.Run("two reservations of 6 against 10", func(t *testing.T) {
		db.TruncateAll(ctx)
		entry := db.CreateLedgerEntry(ctx, 10)

		var (
			wg           sync.WaitGroup
			succeeded    atomic.Int32
			insufficient atomic.Int32
		)
		wg.Add(2)
		for range 2 {
			go func() {
				defer wg.Done()
				_, err := svc.reservations.ReserveContract(ctx, reserveInput(entry.ID, 6))
				switch {
				case err == nil:
					succeeded.Add(1)
				case domain.KindOf(err) == domain.KindInsufficientStock:
					insufficient.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), succeeded.Load())
		assert.Equal(t, int32(1), insufficient.Load())
		assert.Equal(t, int64(4), db.AvailableStock(ctx, entry.ID))
		assert.Equal(t, 1, db.CountContracts(ctx, entry.ID, domain.LifecycleActive))
	})

	t.Run("many reservations never oversell", func(t *testing.T) {
		db.TruncateAll(ctx)
		entry := db.CreateLedgerEntry(ctx, 30)

		var (
			wg        sync.WaitGroup
			succeeded atomic.Int32
		)
		const workers = 80
		wg.Add(workers)
		for range workers {
			go func() {
				defer wg.Done()
				if _, err := svc.reservations.ReserveContract(ctx, reserveInput(entry.ID, 1)); err == nil {
					succeeded.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(30), succeeded.Load())
		assert.Zero(t, db.AvailableStock(ctx, entry.ID))

		report, err := svc.reconciliation.CheckAll(ctx)
		require.NoError(t, err)
		assert.True(t, report.Consistent())
	})

	t.Run("concurrent cancels of one contract", func(t *testing.T) {
		db.TruncateAll(ctx)
		entry := db.CreateLedgerEntry(ctx, 50)
		contract, err := svc.reservations.ReserveContract(ctx, reserveInput(entry.ID, 20))
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			succeeded atomic.Int32
			notFound  atomic.Int32
		)
		const workers = 8
		wg.Add(workers)
		for range workers {
			go func() {
				defer wg.Done()
				err := svc.releases.CancelContract(ctx, usecase.CancelContractInput{
					ActorUserID: "consumer-1",
					ContractID:  contract.ID,
				})
				switch {
				case err == nil:
					succeeded.Add(1)
				case domain.KindOf(err) == domain.KindNotFound:
					notFound.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), succeeded.Load())
		assert.Equal(t, int32(workers-1), notFound.Load())
		assert.Equal(t, int64(50), db.AvailableStock(ctx, entry.ID))
	})
}

func TestLockTimeoutIntegration(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	db.TruncateAll(ctx)
	entry := db.CreateLedgerEntry(ctx, 10)

	svc := newServices(db, 100*time.Millisecond)

	holder, err := svc.txManager.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(ctx) }()

	_, err = svc.entries.GetByIDForUpdate(ctx, holder, entry.ID)
	require.NoError(t, err)

	waiter, err := svc.txManager.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = waiter.Rollback(ctx) }()

	_, err = svc.entries.GetByIDForUpdate(ctx, waiter, entry.ID)
	require.Error(t, err)
	assert.True(t, domain.IsInfrastructure(err))
}
