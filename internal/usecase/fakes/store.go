// Package fakes provides an in-memory transactional store for use case tests.
//
// Store models what the use cases rely on from Postgres: exclusive row locks
// held until commit or rollback, writes that stay invisible until commit,
// and locked reads that see the latest committed row.
package fakes

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// Operation names accepted by FailNext.
const (
	OpUpdateStock    = "ledger_entry.update_stock"
	OpCreateContract = "contract.create"
	OpCancelContract = "contract.cancel"
	OpCreateOutbox   = "outbox.create"
	OpCommit         = "commit"
)

var errTxClosed = errors.New("tx is closed")

// Store is an in-memory implementation of the repositories and the
// transaction manager.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*domain.LedgerEntry
	contracts map[string]*domain.Contract
	outbox    []*domain.OutboxEvent
	locks     map[string]chan struct{}
	waiters   map[string]int
	failures  map[string]error
	commits   int
	rollbacks int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:   make(map[string]*domain.LedgerEntry),
		contracts: make(map[string]*domain.Contract),
		locks:     make(map[string]chan struct{}),
		waiters:   make(map[string]int),
		failures:  make(map[string]error),
	}
}

// AddLedgerEntry seeds a committed ledger entry.
func (s *Store) AddLedgerEntry(entry *domain.LedgerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	if cp.Lifecycle == "" {
		cp.Lifecycle = domain.LifecycleActive
	}
	s.entries[cp.ID] = &cp
}

// AddContract seeds a committed contract.
func (s *Store) AddContract(contract *domain.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *contract
	s.contracts[cp.ID] = &cp
}

// DeleteLedgerEntry marks a committed ledger entry as deleted.
func (s *Store) DeleteLedgerEntry(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.Lifecycle = domain.LifecycleDeleted
	}
}

// LedgerEntry returns a copy of the committed row, deleted or not.
func (s *Store) LedgerEntry(id string) (domain.LedgerEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return domain.LedgerEntry{}, false
	}
	return *e, true
}

// Contract returns a copy of the committed row, canceled or not.
func (s *Store) Contract(id string) (domain.Contract, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return domain.Contract{}, false
	}
	return *c, true
}

// Contracts returns copies of every committed contract.
func (s *Store) Contracts() []domain.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OutboxEvents returns the committed outbox events in insertion order.
func (s *Store) OutboxEvents() []*domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*domain.OutboxEvent(nil), s.outbox...)
}

// Commits returns the number of committed transactions.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Rollbacks returns the number of rolled back transactions.
func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

// FailNext makes the next call of op fail with err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) takeFailure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

// Tx is a transaction on a Store.
type Tx struct {
	store     *Store
	held      map[string]bool
	entries   map[string]*domain.LedgerEntry
	contracts map[string]*domain.Contract
	outbox    []*domain.OutboxEvent
	done      bool
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:     s,
		held:      make(map[string]bool),
		entries:   make(map[string]*domain.LedgerEntry),
		contracts: make(map[string]*domain.Contract),
	}, nil
}

// Commit publishes the buffered writes and releases every lock.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	if err := t.store.takeFailure(OpCommit); err != nil {
		t.finish(false)
		return err
	}
	t.finish(true)
	return nil
}

// Rollback discards the buffered writes and releases every lock.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish(false)
	return nil
}

func (t *Tx) finish(commit bool) {
	s := t.store
	s.mu.Lock()
	if commit {
		for id, e := range t.entries {
			s.entries[id] = e
		}
		for id, c := range t.contracts {
			s.contracts[id] = c
		}
		s.outbox = append(s.outbox, t.outbox...)
		s.commits++
	} else {
		s.rollbacks++
	}
	locks := make([]chan struct{}, 0, len(t.held))
	for key := range t.held {
		locks = append(locks, s.locks[key])
	}
	s.mu.Unlock()

	for _, l := range locks {
		<-l
	}
	t.held = nil
	t.done = true
}

func (s *Store) lock(ctx context.Context, t *Tx, key string) error {
	if t.held[key] {
		return nil
	}

	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[key] = l
	}
	s.waiters[key]++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.waiters[key]--
		s.mu.Unlock()
	}()

	select {
	case l <- struct{}{}:
		t.held[key] = true
		return nil
	case <-ctx.Done():
		return domain.NewInfrastructureError("lock "+key, ctx.Err())
	}
}

// LedgerEntryLockWaiters returns how many transactions are currently trying
// to lock the ledger entry, including ones about to acquire it.
func (s *Store) LedgerEntryLockWaiters(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters["ledger_entry:"+id]
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.done {
		return nil, domain.NewInfrastructureError("use transaction", errTxClosed)
	}
	return t, nil
}

// LedgerEntries exposes the store as a usecase.LedgerEntryRepository.
func (s *Store) LedgerEntries() usecase.LedgerEntryRepository { return ledgerEntryRepo{s} }

// ContractRepo exposes the store as a usecase.ContractRepository.
func (s *Store) ContractRepo() usecase.ContractRepository { return contractRepo{s} }

// Outbox exposes the store as a usecase.OutboxRepository.
func (s *Store) Outbox() usecase.OutboxRepository { return outboxRepo{s} }

// Ledger exposes the store as a usecase.LedgerRepository.
func (s *Store) Ledger() usecase.LedgerRepository { return ledgerRepo{s} }

type ledgerEntryRepo struct{ s *Store }

func (r ledgerEntryRepo) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	e, ok := r.s.LedgerEntry(id)
	if !ok || !e.Lifecycle.IsActive() {
		return nil, domain.ErrLedgerEntryNotFound
	}
	return &e, nil
}

func (r ledgerEntryRepo) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := r.s.lock(ctx, t, "ledger_entry:"+id); err != nil {
		return nil, err
	}

	if e, ok := t.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return r.GetByID(ctx, id)
}

func (r ledgerEntryRepo) UpdateStock(ctx context.Context, tx usecase.Transaction, id string, availableStock int64, actor string, updatedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := r.s.takeFailure(OpUpdateStock); err != nil {
		return err
	}
	if !t.held["ledger_entry:"+id] {
		return domain.NewInfrastructureError("update ledger entry stock", errors.New("row is not locked"))
	}
	if availableStock < 0 {
		return domain.NewInfrastructureError("update ledger entry stock", errors.New("available_stock check constraint"))
	}

	e, err := r.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	e.AvailableStock = availableStock
	e.Touch(actor, updatedAt)
	t.entries[id] = e
	return nil
}

type contractRepo struct{ s *Store }

func (r contractRepo) Create(ctx context.Context, tx usecase.Transaction, contract *domain.Contract) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := r.s.takeFailure(OpCreateContract); err != nil {
		return err
	}
	if _, exists := r.s.Contract(contract.ID); exists {
		return domain.NewInfrastructureError("create contract", errors.New("duplicate key"))
	}

	cp := *contract
	t.contracts[cp.ID] = &cp
	return nil
}

func (r contractRepo) GetByID(ctx context.Context, id string) (*domain.Contract, error) {
	c, ok := r.s.Contract(id)
	if !ok || !c.Lifecycle.IsActive() {
		return nil, domain.ErrContractNotFound
	}
	return &c, nil
}

func (r contractRepo) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Contract, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := r.s.lock(ctx, t, "contract:"+id); err != nil {
		return nil, err
	}

	if c, ok := t.contracts[id]; ok {
		if !c.Lifecycle.IsActive() {
			return nil, domain.ErrContractNotFound
		}
		cp := *c
		return &cp, nil
	}
	return r.GetByID(ctx, id)
}

func (r contractRepo) Cancel(ctx context.Context, tx usecase.Transaction, id string, actor string, updatedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := r.s.takeFailure(OpCancelContract); err != nil {
		return err
	}
	if !t.held["contract:"+id] {
		return domain.NewInfrastructureError("cancel contract", errors.New("row is not locked"))
	}

	c, err := r.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	c.ReservedQuantity = 0
	c.Lifecycle = domain.LifecycleDeleted
	c.Touch(actor, updatedAt)
	t.contracts[id] = c
	return nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := r.s.takeFailure(OpCreateOutbox); err != nil {
		return err
	}
	t.outbox = append(t.outbox, event)
	return nil
}

func (r outboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*domain.OutboxEvent
	for _, e := range r.s.outbox {
		if len(out) == limit {
			break
		}
		if !e.Published {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outbox {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (r outboxRepo) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outbox[:0]
	for _, e := range r.s.outbox {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	n := int64(len(r.s.outbox) - len(kept))
	r.s.outbox = kept
	return n, nil
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) StockSummaries(ctx context.Context, id string) ([]*usecase.StockSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byEntry := make(map[string]*usecase.StockSummary)
	ids := make([]string, 0, len(r.s.entries))
	for _, e := range r.s.entries {
		if !e.Lifecycle.IsActive() || (id != "" && e.ID != id) {
			continue
		}
		byEntry[e.ID] = &usecase.StockSummary{
			LedgerEntryID:  e.ID,
			InitialStock:   e.InitialStock,
			AvailableStock: e.AvailableStock,
		}
		ids = append(ids, e.ID)
	}
	for _, c := range r.s.contracts {
		sum, ok := byEntry[c.LedgerEntryID]
		if !ok || !c.Lifecycle.IsActive() {
			continue
		}
		sum.ActiveReserved += c.ReservedQuantity
		sum.ActiveContracts++
	}

	sort.Strings(ids)
	out := make([]*usecase.StockSummary, 0, len(ids))
	for _, entryID := range ids {
		out = append(out, byEntry[entryID])
	}
	return out, nil
}
