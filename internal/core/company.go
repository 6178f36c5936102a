package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Company is the unit of bookkeeping inside a tenant.
type Company struct {
	ID        int64     `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Company) Scope() Scope {
	return Scope{TenantID: c.TenantID, CompanyID: c.ID}
}

type CompanyStore struct {
	pool *pgxpool.Pool
}

func NewCompanyStore(pool *pgxpool.Pool) *CompanyStore {
	return &CompanyStore{pool: pool}
}

func (s *CompanyStore) CreateCompany(ctx context.Context, tenantID uuid.UUID, code, name string) (*Company, error) {
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)
	if tenantID == uuid.Nil {
		return nil, ErrInvalidScope
	}
	if code == "" || name == "" {
		return nil, invalidDocument("company code and name are required")
	}
	c := Company{TenantID: tenantID, Code: code, Name: name}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (tenant_id, code, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, tenantID, code, name).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create company %s: %w", code, err)
	}
	return &c, nil
}

func (s *CompanyStore) ListCompanies(ctx context.Context, tenantID uuid.UUID) ([]Company, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, code, name, created_at
		FROM companies
		WHERE tenant_id = $1
		ORDER BY code
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Code, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
