package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/stockledger/internal/domain"
)

// mapNotFound turns pgx.ErrNoRows into notFound and wraps anything else as
// an infrastructure error for op.
func mapNotFound(op string, err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return domain.NewInfrastructureError(op, err)
}
