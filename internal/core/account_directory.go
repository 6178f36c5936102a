package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resolution is the tagged result of a purpose lookup: exactly one of
// Account (found) or Missing is meaningful.
type Resolution struct {
	Account Account
	Missing Purpose
	found   bool
}

func Found(a Account) Resolution { return Resolution{Account: a, found: true} }
func MissingPurpose(p Purpose) Resolution { return Resolution{Missing: p} }

func (r Resolution) IsFound() bool { return r.found }

// Require turns a Missing resolution into an AccountNotFoundError.
func (r Resolution) Require(companyID int64) (Account, error) {
	if !r.found {
		return Account{}, &AccountNotFoundError{CompanyID: companyID, Purpose: r.Missing}
	}
	return r.Account, nil
}

// AccountDirectory resolves purpose-tagged accounts of a company's chart.
// Implementations never fall back to a default account.
type AccountDirectory interface {
	Resolve(ctx context.Context, q Querier, scope Scope, purpose Purpose) (Resolution, error)
}

// AccountAdmin is the administrative side of the chart of accounts.
type AccountAdmin interface {
	CreateAccount(ctx context.Context, scope Scope, in NewAccount) (*Account, error)
	AssignPurpose(ctx context.Context, scope Scope, accountID int64, purpose Purpose) error
	ListAccounts(ctx context.Context, scope Scope) ([]Account, error)
	GetAccount(ctx context.Context, q Querier, scope Scope, accountID int64) (*Account, error)
}

type NewAccount struct {
	Code       string
	Name       string
	Type       AccountType
	NormalSide NormalSide
	Purpose    *Purpose
}

// AccountStore is the Postgres-backed chart of accounts.
type AccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

var (
	_ AccountDirectory = (*AccountStore)(nil)
	_ AccountAdmin     = (*AccountStore)(nil)
)

const accountColumns = "id, tenant_id, company_id, code, name, type, normal_side, purpose"

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var purpose *string
	if err := row.Scan(&a.ID, &a.TenantID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.NormalSide, &purpose); err != nil {
		return nil, err
	}
	if purpose != nil {
		p := Purpose(*purpose)
		a.Purpose = &p
	}
	return &a, nil
}

func (d *AccountStore) Resolve(ctx context.Context, q Querier, scope Scope, purpose Purpose) (Resolution, error) {
	if !purpose.Valid() {
		return Resolution{}, fmt.Errorf("%w %q", ErrUnknownPurpose, purpose)
	}
	if q == nil {
		q = d.pool
	}
	a, err := scanAccount(q.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE tenant_id = $1 AND company_id = $2 AND purpose = $3
	`, scope.TenantID, scope.CompanyID, string(purpose)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MissingPurpose(purpose), nil
		}
		return Resolution{}, fmt.Errorf("failed to resolve %s account for company %d: %w", purpose, scope.CompanyID, err)
	}
	return Found(*a), nil
}

// GetAccount loads an account by id and fails with ErrCrossCompanyAccount
// when it exists outside scope.
func (d *AccountStore) GetAccount(ctx context.Context, q Querier, scope Scope, accountID int64) (*Account, error) {
	if q == nil {
		q = d.pool
	}
	a, err := scanAccount(q.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account id %d", ErrAccountNotFound, accountID)
		}
		return nil, fmt.Errorf("failed to fetch account %d: %w", accountID, err)
	}
	if !a.inScope(scope) {
		return nil, fmt.Errorf("%w: account %d is not in company %d", ErrCrossCompanyAccount, accountID, scope.CompanyID)
	}
	return a, nil
}

func (d *AccountStore) CreateAccount(ctx context.Context, scope Scope, in NewAccount) (*Account, error) {
	if in.Purpose != nil && !in.Purpose.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownPurpose, *in.Purpose)
	}
	if err := assertScope(ctx, d.pool, scope); err != nil {
		return nil, err
	}
	var purpose *string
	if in.Purpose != nil {
		p := string(*in.Purpose)
		purpose = &p
	}
	a, err := scanAccount(d.pool.QueryRow(ctx, `
		INSERT INTO accounts (tenant_id, company_id, code, name, type, normal_side, purpose)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+accountColumns,
		scope.TenantID, scope.CompanyID, in.Code, in.Name, string(in.Type), string(in.NormalSide), purpose))
	if err != nil {
		if isUniqueViolation(err, "accounts_purpose_uniq") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePurpose, *in.Purpose)
		}
		return nil, fmt.Errorf("failed to create account %s: %w", in.Code, err)
	}
	return a, nil
}

// AssignPurpose tags accountID with purpose. A purpose already held by
// another account of the company is ErrDuplicatePurpose.
func (d *AccountStore) AssignPurpose(ctx context.Context, scope Scope, accountID int64, purpose Purpose) error {
	if !purpose.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownPurpose, purpose)
	}
	if _, err := d.GetAccount(ctx, d.pool, scope, accountID); err != nil {
		return err
	}
	_, err := d.pool.Exec(ctx, `
		UPDATE accounts SET purpose = $1
		WHERE id = $2 AND tenant_id = $3 AND company_id = $4
	`, string(purpose), accountID, scope.TenantID, scope.CompanyID)
	if err != nil {
		if isUniqueViolation(err, "accounts_purpose_uniq") {
			return fmt.Errorf("%w: %s", ErrDuplicatePurpose, purpose)
		}
		return fmt.Errorf("failed to assign purpose %s to account %d: %w", purpose, accountID, err)
	}
	return nil
}

func (d *AccountStore) ListAccounts(ctx context.Context, scope Scope) ([]Account, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE tenant_id = $1 AND company_id = $2
		ORDER BY code
	`, scope.TenantID, scope.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
