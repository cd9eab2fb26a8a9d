package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/stockledger/internal/domain"
)

var repoNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var ledgerEntryColumns = []string{
	"id", "owner_user_id", "service_id", "initial_stock", "available_stock",
	"lifecycle", "created_by", "created_at", "updated_by", "updated_at",
}

var contractColumns = []string{
	"id", "consumer_user_id", "ledger_entry_id", "reserved_quantity",
	"lifecycle", "created_by", "created_at", "updated_by", "updated_at",
}

func ts(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func TestLedgerEntryRepository_GetByIDForUpdate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(`FROM ledger_entries\s+WHERE id = \$1 AND lifecycle = 'active'\s+FOR UPDATE`).
		WithArgs("entry-1").
		WillReturnRows(pgxmock.NewRows(ledgerEntryColumns).AddRow(
			"entry-1", "provider-1", "svc-1", int64(100), int64(70),
			"active", "provider-1", ts(repoNow), "consumer-1", ts(repoNow),
		))

	repo := NewLedgerEntryRepository(pool)
	entry, err := repo.GetByIDForUpdate(context.Background(), tx, "entry-1")

	require.NoError(t, err)
	assert.Equal(t, int64(70), entry.AvailableStock)
	assert.Equal(t, int64(100), entry.InitialStock)
	assert.Equal(t, domain.LifecycleActive, entry.Lifecycle)
	assert.Equal(t, "consumer-1", entry.UpdatedBy)
	assertExpectations(t, pool)
}

func TestLedgerEntryRepository_GetByIDForUpdate_NoRowsIsNotFound(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(`FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(ledgerEntryColumns))

	_, err := NewLedgerEntryRepository(pool).GetByIDForUpdate(context.Background(), tx, "missing")

	assert.ErrorIs(t, err, domain.ErrLedgerEntryNotFound)
	assertExpectations(t, pool)
}

func TestLedgerEntryRepository_GetByIDForUpdate_LockTimeoutIsInfrastructure(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	lockErr := &pgconn.PgError{Code: pgErrLockNotAvailable, Message: "canceling statement due to lock timeout"}
	pool.ExpectQuery(`FOR UPDATE`).WithArgs("entry-1").WillReturnError(lockErr)

	_, err := NewLedgerEntryRepository(pool).GetByIDForUpdate(context.Background(), tx, "entry-1")

	require.Error(t, err)
	assert.True(t, domain.IsInfrastructure(err))
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, pgErrLockNotAvailable, pgErr.Code)
	assert.True(t, isRetryableError(err))
}

func TestLedgerEntryRepository_GetByID(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectQuery(`FROM ledger_entries\s+WHERE id = \$1 AND lifecycle = 'active'`).
		WithArgs("entry-1").
		WillReturnRows(pgxmock.NewRows(ledgerEntryColumns).AddRow(
			"entry-1", "provider-1", "svc-1", int64(10), int64(10),
			"active", "provider-1", ts(repoNow), "provider-1", ts(repoNow),
		))

	entry, err := NewLedgerEntryRepository(pool).GetByID(context.Background(), "entry-1")

	require.NoError(t, err)
	assert.Equal(t, "svc-1", entry.ServiceID)
	assertExpectations(t, pool)
}

func TestLedgerEntryRepository_UpdateStock(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectExec(`UPDATE ledger_entries`).
		WithArgs("entry-1", int64(40), "consumer-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := NewLedgerEntryRepository(pool).UpdateStock(context.Background(), tx, "entry-1", 40, "consumer-1", repoNow)

	require.NoError(t, err)
	assertExpectations(t, pool)
}

func TestLedgerEntryRepository_UpdateStock_CheckViolation(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectExec(`UPDATE ledger_entries`).
		WithArgs("entry-1", int64(-1), "consumer-1", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23514"})

	err := NewLedgerEntryRepository(pool).UpdateStock(context.Background(), tx, "entry-1", -1, "consumer-1", repoNow)

	assert.True(t, domain.IsInfrastructure(err))
	assert.False(t, isRetryableError(err))
}

func TestContractRepository_Create(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	contract := domain.NewContract("contract-1", "consumer-1", "entry-1", 30, repoNow)

	pool.ExpectExec(`INSERT INTO contracts`).
		WithArgs("contract-1", "consumer-1", "entry-1", int64(30), "active",
			"consumer-1", pgxmock.AnyArg(), "consumer-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewContractRepository(pool).Create(context.Background(), tx, contract))
	assertExpectations(t, pool)
}

func TestContractRepository_GetByIDForUpdate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(`FROM contracts\s+WHERE id = \$1 AND lifecycle = 'active'\s+FOR UPDATE`).
		WithArgs("contract-1").
		WillReturnRows(pgxmock.NewRows(contractColumns).AddRow(
			"contract-1", "consumer-1", "entry-1", int64(30),
			"active", "consumer-1", ts(repoNow), "consumer-1", ts(repoNow),
		))

	contract, err := NewContractRepository(pool).GetByIDForUpdate(context.Background(), tx, "contract-1")

	require.NoError(t, err)
	assert.Equal(t, "entry-1", contract.LedgerEntryID)
	assert.Equal(t, int64(30), contract.ReservedQuantity)
	assert.Equal(t, domain.ContractStateActive, contract.State())
	assertExpectations(t, pool)
}

// A cancel that waited on the lock finds no active row once the first
// cancel commits.
func TestContractRepository_GetByIDForUpdate_CanceledIsNotFound(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(`FOR UPDATE`).
		WithArgs("contract-1").
		WillReturnRows(pgxmock.NewRows(contractColumns))

	_, err := NewContractRepository(pool).GetByIDForUpdate(context.Background(), tx, "contract-1")

	assert.ErrorIs(t, err, domain.ErrContractNotFound)
}

func TestContractRepository_Cancel(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectExec(`UPDATE contracts\s+SET reserved_quantity = 0, lifecycle = 'deleted'`).
		WithArgs("contract-1", "provider-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(`UPDATE contracts`).
		WithArgs("contract-2", "provider-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewContractRepository(pool)
	require.NoError(t, repo.Cancel(context.Background(), tx, "contract-1", "provider-1", repoNow))
	assert.ErrorIs(t, repo.Cancel(context.Background(), tx, "contract-2", "provider-1", repoNow), domain.ErrContractNotFound)
	assertExpectations(t, pool)
}

func TestOutboxRepository_Create(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(`INSERT INTO outbox_events`).
		WithArgs("evt-1", "contract-1", domain.AggregateTypeContract, domain.EventTypeContractCreated,
			pgxmock.AnyArg(), pgxmock.AnyArg(), false).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published_at", "published",
		}).AddRow(
			"evt-1", "contract-1", domain.AggregateTypeContract, domain.EventTypeContractCreated,
			[]byte(`{}`), ts(repoNow), pgtype.Timestamptz{}, false,
		))

	err := NewOutboxRepository(pool).Create(context.Background(), tx, &domain.OutboxEvent{
		ID:            "evt-1",
		AggregateID:   "contract-1",
		AggregateType: domain.AggregateTypeContract,
		EventType:     domain.EventTypeContractCreated,
		Payload:       map[string]any{"quantity": 3},
		CreatedAt:     repoNow,
	})

	require.NoError(t, err)
	assertExpectations(t, pool)
}

func TestLedgerRepository_StockSummaries(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectQuery(`FROM ledger_entries e\s+LEFT JOIN contracts c`).
		WithArgs("").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "initial_stock", "available_stock", "active_reserved", "active_contracts",
		}).
			AddRow("entry-1", int64(100), int64(70), int64(30), int64(2)).
			AddRow("entry-2", int64(5), int64(5), int64(0), int64(0)))

	summaries, err := NewLedgerRepository(pool).StockSummaries(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, int64(30), summaries[0].ActiveReserved)
	assert.Equal(t, int64(2), summaries[0].ActiveContracts)
	assert.Equal(t, "entry-2", summaries[1].LedgerEntryID)
	assertExpectations(t, pool)
}

func TestOutboxRepository_GetUnpublishedOrdersByCreationAndID(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectQuery(`WHERE published = FALSE\s+ORDER BY created_at, id\s+LIMIT \$1`).
		WithArgs(int32(10)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published_at", "published",
		}).AddRow(
			"evt-1", "contract-1", domain.AggregateTypeContract, domain.EventTypeContractCreated,
			[]byte(`{"quantity":3}`), ts(repoNow), pgtype.Timestamptz{}, false,
		))

	events, err := NewOutboxRepository(pool).GetUnpublished(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, float64(3), events[0].Payload["quantity"])
	assert.Nil(t, events[0].PublishedAt)
	assertExpectations(t, pool)
}

func TestOutboxRepository_DeletePublishedReportsCount(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectExec(`DELETE FROM outbox_events`).
		WithArgs(ts(repoNow)).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := NewOutboxRepository(pool).DeletePublished(context.Background(), repoNow)

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assertExpectations(t, pool)
}

func TestOutboxRepository_MarkPublishedWrapsErrors(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectExec(`UPDATE outbox_events`).
		WithArgs("evt-1", ts(repoNow)).
		WillReturnError(errors.New("connection reset"))

	err := NewOutboxRepository(pool).MarkPublished(context.Background(), "evt-1", repoNow)

	assert.True(t, domain.IsInfrastructure(err))
	assertExpectations(t, pool)
}

func TestAuditRepository_CreateTx(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(pgxmock.AnyArg(), "consumer-1", string(domain.AuditActionContractCreate),
			domain.ResourceTypeContract, "contract-1", "", pgxmock.AnyArg(), pgxmock.AnyArg(),
			string(domain.AuditStatusSuccess), "", repoNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	log := &domain.AuditLog{
		UserID:       "consumer-1",
		Action:       string(domain.AuditActionContractCreate),
		ResourceType: domain.ResourceTypeContract,
		ResourceID:   "contract-1",
		AfterState:   domain.JSON{"quantity": 3},
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    repoNow,
	}
	require.NoError(t, NewAuditRepository(pool).CreateTx(context.Background(), tx, log))
	assert.NotEmpty(t, log.ID)
	assertExpectations(t, pool)
}

func TestAuditRepository_CreateOutsideTransaction(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs("audit-9", "consumer-1", string(domain.AuditActionContractCancel),
			domain.ResourceTypeContract, "nope", "", pgxmock.AnyArg(), pgxmock.AnyArg(),
			string(domain.AuditStatusFailure), "contract not found", repoNow).
		WillReturnError(errors.New("conn closed"))

	err := NewAuditRepository(pool).Create(context.Background(), &domain.AuditLog{
		ID:           "audit-9",
		UserID:       "consumer-1",
		Action:       string(domain.AuditActionContractCancel),
		ResourceType: domain.ResourceTypeContract,
		ResourceID:   "nope",
		Status:       string(domain.AuditStatusFailure),
		ErrorMessage: "contract not found",
		CreatedAt:    repoNow,
	})

	assert.True(t, domain.IsInfrastructure(err))
	assertExpectations(t, pool)
}

func TestAuditRepository_ListBuildsPositionalArgs(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectQuery(`AND resource_type = \$1 AND resource_id = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs(domain.ResourceTypeContract, "contract-1", 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "action", "resource_type", "resource_id", "request_id",
			"before_state", "after_state", "status", "error_message", "created_at",
		}).AddRow(
			"audit-1", "consumer-1", "contract.cancel", "contract", "contract-1", "",
			[]byte(`{"ReservedQuantity":20}`), []byte(`{"ReservedQuantity":0}`), "success", "", repoNow,
		))

	logs, err := NewAuditRepository(pool).List(context.Background(), domain.AuditFilter{
		ResourceType: domain.ResourceTypeContract,
		ResourceID:   "contract-1",
		Limit:        10,
	})

	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, float64(20), logs[0].BeforeState["ReservedQuantity"])
	assertExpectations(t, pool)
}

func TestULIDGeneratorIsMonotonic(t *testing.T) {
	g := NewULIDGenerator()
	g.now = func() time.Time { return repoNow }

	prev := g.Generate()
	for i := 0; i < 100; i++ {
		next := g.Generate()
		require.Less(t, prev, next)
		prev = next
	}
}
