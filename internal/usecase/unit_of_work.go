package usecase

import (
	"context"
	"time"

	"github.com/iho/stockledger/internal/domain"
)

// UnitOfWork runs a callback inside a single database transaction.
type UnitOfWork struct {
	txManager TransactionManager
	timeout   time.Duration
}

// NewUnitOfWork creates a UnitOfWork bounded by DefaultTransactionTimeout.
func NewUnitOfWork(txManager TransactionManager) *UnitOfWork {
	return &UnitOfWork{
		txManager: txManager,
		timeout:   DefaultTransactionTimeout,
	}
}

// WithTimeout returns a copy of u that bounds transactions by timeout.
func (u *UnitOfWork) WithTimeout(timeout time.Duration) *UnitOfWork {
	return &UnitOfWork{txManager: u.txManager, timeout: timeout}
}

// Run begins a transaction, hands it to fn and commits when fn returns nil.
// Any error from fn, a failed commit or a panic rolls every write back.
// Errors from fn are returned as is.
func (u *UnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	txCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	tx, err := u.txManager.Begin(txCtx)
	if err != nil {
		return domain.NewInfrastructureError("begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(txCtx)
		}
	}()

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return domain.NewInfrastructureError("commit transaction", err)
	}
	committed = true

	return nil
}

// runWithRetry runs op once, or through r when a retrier is configured.
func runWithRetry(ctx context.Context, r Retrier, op func() error) error {
	if r == nil {
		return op()
	}
	return r.Retry(ctx, op)
}
