package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService records stock movements and keeps each product's cached
// stock equal to the sum of its movements.
type InventoryService interface {
	Move(ctx context.Context, scope Scope, in MovementInput) (*InventoryMovement, *NegativeStockWarning, error)
	MoveTx(ctx context.Context, tx Querier, scope Scope, in MovementInput) (*InventoryMovement, *NegativeStockWarning, error)
	CurrentStock(ctx context.Context, scope Scope, productID int64) (decimal.Decimal, error)
	CreateProduct(ctx context.Context, scope Scope, in NewProduct) (*Product, error)
	GetProduct(ctx context.Context, q Querier, scope Scope, productID int64) (*Product, error)
	MovementsByReference(ctx context.Context, q Querier, scope Scope, references []string) ([]InventoryMovement, error)
}

type NewProduct struct {
	SKU              string
	Name             string
	Kind             ProductKind
	CostPrice        decimal.Decimal
	RevenueAccountID *int64
}

type InventoryLedger struct {
	pool *pgxpool.Pool
	txm  TxRunner
	log  *zap.Logger
}

func NewInventoryLedger(pool *pgxpool.Pool, txm TxRunner, log *zap.Logger) *InventoryLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &InventoryLedger{pool: pool, txm: txm, log: log}
}

var _ InventoryService = (*InventoryLedger)(nil)

func (l *InventoryLedger) Move(ctx context.Context, scope Scope, in MovementInput) (*InventoryMovement, *NegativeStockWarning, error) {
	var (
		mv   *InventoryMovement
		warn *NegativeStockWarning
	)
	err := l.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := assertScope(ctx, tx, scope); err != nil {
			return err
		}
		var err error
		mv, warn, err = l.MoveTx(ctx, tx, scope, in)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return mv, warn, nil
}

// MoveTx appends a movement and adds its quantity to the product's stock in
// the caller's transaction. A movement that leaves stock below zero is
// committed and reported through the returned warning.
func (l *InventoryLedger) MoveTx(ctx context.Context, tx Querier, scope Scope, in MovementInput) (*InventoryMovement, *NegativeStockWarning, error) {
	if err := validateMovement(in); err != nil {
		return nil, nil, err
	}

	product, err := l.lockProduct(ctx, tx, scope, in.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if !product.Tracked() {
		return nil, nil, invalidDocument("product %s is a service and carries no stock", product.SKU)
	}

	newStock := product.StockQuantity.Add(in.Quantity)
	newCost := product.CostPrice
	if in.Type == MovementPurchase && in.Quantity.IsPositive() {
		newCost = weightedAverageCost(product.StockQuantity, product.CostPrice, in.Quantity, in.UnitCost)
	}

	_, err = tx.Exec(ctx, `
		UPDATE products SET stock_quantity = $1, cost_price = $2, updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4 AND company_id = $5
	`, newStock, newCost, product.ID, scope.TenantID, scope.CompanyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update stock of product %d: %w", product.ID, err)
	}

	mv := &InventoryMovement{
		TenantID:     scope.TenantID,
		CompanyID:    scope.CompanyID,
		ProductID:    product.ID,
		MovementType: in.Type,
		Quantity:     in.Quantity,
		MovementDate: dateOnly(in.Date),
		Reference:    in.Reference,
		LineNo:       in.LineNo,
		UnitCost:     in.UnitCost,
		Reason:       in.Reason,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO inventory_movements (tenant_id, company_id, product_id, movement_type, quantity, movement_date, reference, line_no, unit_cost, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, scope.TenantID, scope.CompanyID, mv.ProductID, string(mv.MovementType), mv.Quantity, mv.MovementDate,
		mv.Reference, mv.LineNo, mv.UnitCost, mv.Reason).Scan(&mv.ID, &mv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "inventory_movements_reference_uniq") {
			return nil, nil, fmt.Errorf("%w: %s movement %s line %d", ErrDuplicateReference, mv.MovementType, mv.Reference, mv.LineNo)
		}
		return nil, nil, fmt.Errorf("failed to insert inventory movement: %w", err)
	}

	if !newStock.IsNegative() {
		return mv, nil, nil
	}
	warn := &NegativeStockWarning{ProductID: product.ID, SKU: product.SKU, Reference: mv.Reference, Stock: newStock}
	l.log.Warn("negative stock",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.Int64("company_id", scope.CompanyID),
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.String("reference", mv.Reference),
		zap.String("resulting_stock", newStock.String()),
	)
	return mv, warn, nil
}

func (l *InventoryLedger) CurrentStock(ctx context.Context, scope Scope, productID int64) (decimal.Decimal, error) {
	p, err := l.GetProduct(ctx, l.pool, scope, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.StockQuantity, nil
}

func (l *InventoryLedger) CreateProduct(ctx context.Context, scope Scope, in NewProduct) (*Product, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	if in.SKU == "" || strings.TrimSpace(in.Name) == "" {
		return nil, invalidDocument("product sku and name are required")
	}
	if in.Kind != ProductGood && in.Kind != ProductService {
		return nil, invalidDocument("unknown product kind %q", in.Kind)
	}
	if in.CostPrice.IsNegative() {
		return nil, invalidDocument("cost price cannot be negative")
	}
	if err := assertScope(ctx, l.pool, scope); err != nil {
		return nil, err
	}
	p, err := scanProduct(l.pool.QueryRow(ctx, `
		INSERT INTO products (tenant_id, company_id, sku, name, kind, cost_price, revenue_account_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		scope.TenantID, scope.CompanyID, in.SKU, in.Name, string(in.Kind), in.CostPrice, in.RevenueAccountID))
	if err != nil {
		return nil, fmt.Errorf("failed to create product %s: %w", in.SKU, err)
	}
	return p, nil
}

// GetProduct fails with ErrScopeViolation, not ErrProductNotFound, for a
// product that exists under another tenant or company.
func (l *InventoryLedger) GetProduct(ctx context.Context, q Querier, scope Scope, productID int64) (*Product, error) {
	if q == nil {
		q = l.pool
	}
	return getProduct(ctx, q, scope, productID, false)
}

func (l *InventoryLedger) lockProduct(ctx context.Context, q Querier, scope Scope, productID int64) (*Product, error) {
	return getProduct(ctx, q, scope, productID, true)
}

func (l *InventoryLedger) MovementsByReference(ctx context.Context, q Querier, scope Scope, references []string) ([]InventoryMovement, error) {
	if q == nil {
		q = l.pool
	}
	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, company_id, product_id, movement_type, quantity, movement_date, reference, line_no, unit_cost, reason, created_at
		FROM inventory_movements
		WHERE tenant_id = $1 AND company_id = $2 AND reference = ANY($3)
		ORDER BY id
	`, scope.TenantID, scope.CompanyID, references)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var out []InventoryMovement
	for rows.Next() {
		var m InventoryMovement
		err := rows.Scan(&m.ID, &m.TenantID, &m.CompanyID, &m.ProductID, &m.MovementType, &m.Quantity,
			&m.MovementDate, &m.Reference, &m.LineNo, &m.UnitCost, &m.Reason, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const productColumns = "id, tenant_id, company_id, sku, name, kind, cost_price, stock_quantity, revenue_account_id"

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.TenantID, &p.CompanyID, &p.SKU, &p.Name, &p.Kind, &p.CostPrice, &p.StockQuantity, &p.RevenueAccountID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getProduct(ctx context.Context, q Querier, scope Scope, productID int64, forUpdate bool) (*Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	p, err := scanProduct(q.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	if !p.inScope(scope) {
		return nil, fmt.Errorf("%w: product %d", ErrScopeViolation, productID)
	}
	return p, nil
}

// QuantityScale is the number of decimal places stored for quantities and
// unit costs (NUMERIC(18,4)).
const QuantityScale = 4

var maxStorable = decimal.New(1, 18-QuantityScale)

// Storable reports whether d fits a NUMERIC(18,4) column without rounding.
func Storable(d decimal.Decimal) bool {
	return d.Equal(d.Round(QuantityScale)) && d.Abs().LessThan(maxStorable)
}

func validateMovement(in MovementInput) error {
	switch in.Type {
	case MovementSale, MovementPurchase, MovementAdjustment, MovementVoid, MovementTransfer:
	default:
		return invalidDocument("unknown movement type %q", in.Type)
	}
	if in.ProductID <= 0 {
		return invalidDocument("movement product is required")
	}
	if in.Quantity.IsZero() {
		return invalidDocument("movement quantity cannot be zero")
	}
	if !Storable(in.Quantity) {
		return invalidDocument("movement quantity %s exceeds %d decimal places or range", in.Quantity, QuantityScale)
	}
	if in.UnitCost.IsNegative() {
		return invalidDocument("unit cost cannot be negative")
	}
	if !Storable(in.UnitCost) {
		return invalidDocument("unit cost %s exceeds %d decimal places or range", in.UnitCost, QuantityScale)
	}
	if strings.TrimSpace(in.Reference) == "" {
		return invalidDocument("movement reference is required")
	}
	if in.Date.IsZero() {
		return invalidDocument("movement date is required")
	}
	return nil
}

// weightedAverageCost blends the incoming unit cost into the current cost.
// With no positive stock on hand the incoming cost replaces it outright.
func weightedAverageCost(stock, cost, qty, unitCost decimal.Decimal) decimal.Decimal {
	if !stock.IsPositive() {
		return unitCost
	}
	total := stock.Add(qty)
	return stock.Mul(cost).Add(qty.Mul(unitCost)).Div(total).Round(4)
}
