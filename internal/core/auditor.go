package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type StockMismatch struct {
	ProductID     int64           `json:"product_id"`
	SKU           string          `json:"sku"`
	CachedStock   decimal.Decimal `json:"cached_stock"`
	MovementTotal decimal.Decimal `json:"movement_total"`
}

type UnbalancedEntry struct {
	EntryID   int64  `json:"entry_id"`
	Reference string `json:"reference"`
	Debit     Money  `json:"debit"`
	Credit    Money  `json:"credit"`
}

// AuditReport lists every integrity violation found for one scope.
// UnreversedVoids are VOIDED references with no VOID- entry.
type AuditReport struct {
	UnbalancedEntries []UnbalancedEntry `json:"unbalanced_entries"`
	StockMismatches   []StockMismatch   `json:"stock_mismatches"`
	UnreversedVoids   []string          `json:"unreversed_voids"`
}

func (r AuditReport) OK() bool {
	return len(r.UnbalancedEntries) == 0 && len(r.StockMismatches) == 0 && len(r.UnreversedVoids) == 0
}

type Auditor struct {
	pool *pgxpool.Pool
}

func NewAuditor(pool *pgxpool.Pool) *Auditor {
	return &Auditor{pool: pool}
}

func (a *Auditor) Check(ctx context.Context, scope Scope) (*AuditReport, error) {
	if err := assertScope(ctx, a.pool, scope); err != nil {
		return nil, err
	}
	report := &AuditReport{
		UnbalancedEntries: []UnbalancedEntry{},
		StockMismatches:   []StockMismatch{},
		UnreversedVoids:   []string{},
	}

	rows, err := a.pool.Query(ctx, `
		SELECT je.id, je.reference, COALESCE(SUM(jl.debit), 0)::BIGINT, COALESCE(SUM(jl.credit), 0)::BIGINT
		FROM journal_entries je
		LEFT JOIN journal_lines jl ON jl.entry_id = je.id
		WHERE je.tenant_id = $1 AND je.company_id = $2 AND je.status IN ('POSTED', 'VOIDED')
		GROUP BY je.id, je.reference
		HAVING COALESCE(SUM(jl.debit), 0) <> COALESCE(SUM(jl.credit), 0) OR COUNT(jl.id) < 2
		ORDER BY je.id
	`, scope.TenantID, scope.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to audit entries: %w", err)
	}
	for rows.Next() {
		var u UnbalancedEntry
		var debit, credit int64
		if err := rows.Scan(&u.EntryID, &u.Reference, &debit, &credit); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entry audit: %w", err)
		}
		u.Debit, u.Credit = Money(debit), Money(credit)
		report.UnbalancedEntries = append(report.UnbalancedEntries, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to audit entries: %w", err)
	}

	rows, err = a.pool.Query(ctx, `
		SELECT p.id, p.sku, p.stock_quantity, COALESCE(SUM(m.quantity), 0)
		FROM products p
		LEFT JOIN inventory_movements m ON m.product_id = p.id
		WHERE p.tenant_id = $1 AND p.company_id = $2 AND p.kind = 'GOOD'
		GROUP BY p.id, p.sku, p.stock_quantity
		HAVING p.stock_quantity <> COALESCE(SUM(m.quantity), 0)
		ORDER BY p.id
	`, scope.TenantID, scope.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to audit stock: %w", err)
	}
	for rows.Next() {
		var m StockMismatch
		if err := rows.Scan(&m.ProductID, &m.SKU, &m.CachedStock, &m.MovementTotal); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stock audit: %w", err)
		}
		report.StockMismatches = append(report.StockMismatches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to audit stock: %w", err)
	}

	rows, err = a.pool.Query(ctx, `
		SELECT DISTINCT je.reference
		FROM journal_entries je
		WHERE je.tenant_id = $1 AND je.company_id = $2 AND je.status = 'VOIDED'
		  AND NOT EXISTS (
			SELECT 1 FROM journal_entries r
			WHERE r.tenant_id = je.tenant_id AND r.company_id = je.company_id
			  AND r.reference IN ('VOID-' || je.reference, 'VOID-INV-' || je.reference)
		  )
		ORDER BY je.reference
	`, scope.TenantID, scope.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to audit voids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan void audit: %w", err)
		}
		report.UnreversedVoids = append(report.UnreversedVoids, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to audit voids: %w", err)
	}
	return report, nil
}
