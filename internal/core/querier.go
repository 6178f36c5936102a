package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so lookups run
// unchanged inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner runs fn inside one atomic unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// isConflict reports a serialization failure or deadlock that outlived the
// transaction runner's retries.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != sqlStateUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// assertScope fails unless the company exists and belongs to the tenant.
func assertScope(ctx context.Context, q Querier, scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	var tenantID uuid.UUID
	err := q.QueryRow(ctx, "SELECT tenant_id FROM companies WHERE id = $1", scope.CompanyID).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: company %d not found", ErrScopeViolation, scope.CompanyID)
		}
		return fmt.Errorf("failed to resolve company %d: %w", scope.CompanyID, err)
	}
	if tenantID != scope.TenantID {
		return ErrScopeViolation
	}
	return nil
}
