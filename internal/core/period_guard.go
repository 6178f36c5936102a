package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PeriodGuard rejects postings dated inside a locked (year, month) of a company.
type PeriodGuard interface {
	AssertOpen(ctx context.Context, q Querier, scope Scope, date time.Time) error
	LockPeriod(ctx context.Context, scope Scope, year int, month time.Month, actorID *string) error
	UnlockPeriod(ctx context.Context, scope Scope, year int, month time.Month) error
	IsLocked(ctx context.Context, q Querier, scope Scope, year int, month time.Month) (bool, error)
}

type PeriodLocks struct {
	pool *pgxpool.Pool
}

func NewPeriodLocks(pool *pgxpool.Pool) *PeriodLocks {
	return &PeriodLocks{pool: pool}
}

var _ PeriodGuard = (*PeriodLocks)(nil)

// AssertOpen checks the period containing date. Callers pass the date of the
// entry being created, never the date of an entry being reversed.
func (g *PeriodLocks) AssertOpen(ctx context.Context, q Querier, scope Scope, date time.Time) error {
	locked, err := g.IsLocked(ctx, q, scope, date.Year(), date.Month())
	if err != nil {
		return err
	}
	if locked {
		return &PeriodLockedError{CompanyID: scope.CompanyID, Year: date.Year(), Month: date.Month(), Date: date}
	}
	return nil
}

func (g *PeriodLocks) IsLocked(ctx context.Context, q Querier, scope Scope, year int, month time.Month) (bool, error) {
	if q == nil {
		q = g.pool
	}
	var locked bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM period_locks
			WHERE tenant_id = $1 AND company_id = $2 AND year = $3 AND month = $4
		)
	`, scope.TenantID, scope.CompanyID, year, int(month)).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("failed to check period lock %04d-%02d: %w", year, int(month), err)
	}
	return locked, nil
}

// LockPeriod is idempotent: locking an already locked period is a no-op.
func (g *PeriodLocks) LockPeriod(ctx context.Context, scope Scope, year int, month time.Month, actorID *string) error {
	if err := validatePeriod(year, month); err != nil {
		return err
	}
	if err := assertScope(ctx, g.pool, scope); err != nil {
		return err
	}
	_, err := g.pool.Exec(ctx, `
		INSERT INTO period_locks (tenant_id, company_id, year, month, locked_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, company_id, year, month) DO NOTHING
	`, scope.TenantID, scope.CompanyID, year, int(month), actorID)
	if err != nil {
		return fmt.Errorf("failed to lock period %04d-%02d: %w", year, int(month), err)
	}
	return nil
}

func (g *PeriodLocks) UnlockPeriod(ctx context.Context, scope Scope, year int, month time.Month) error {
	if err := validatePeriod(year, month); err != nil {
		return err
	}
	if err := assertScope(ctx, g.pool, scope); err != nil {
		return err
	}
	_, err := g.pool.Exec(ctx, `
		DELETE FROM period_locks
		WHERE tenant_id = $1 AND company_id = $2 AND year = $3 AND month = $4
	`, scope.TenantID, scope.CompanyID, year, int(month))
	if err != nil {
		return fmt.Errorf("failed to unlock period %04d-%02d: %w", year, int(month), err)
	}
	return nil
}

func validatePeriod(year int, month time.Month) error {
	if year < 1900 || year > 9999 {
		return fmt.Errorf("invalid period year %d", year)
	}
	if month < time.January || month > time.December {
		return fmt.Errorf("invalid period month %d", int(month))
	}
	return nil
}
