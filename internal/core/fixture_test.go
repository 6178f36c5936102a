package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"urutiq-ledger/internal/core"
	"urutiq-ledger/internal/db"
)

var (
	march14 = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	april2  = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
)

// ledgerFixture is one freshly created tenant and company with a full chart
// of purpose accounts, two goods (A at cost 10, B at cost 5, ten of each on
// hand) and one service.
type ledgerFixture struct {
	ctx   context.Context
	pool  *pgxpool.Pool
	scope core.Scope

	accounts  map[core.Purpose]*core.Account
	store     *core.AccountStore
	companies *core.CompanyStore
	periods   *core.PeriodLocks
	ledger    *core.Ledger
	inventory *core.InventoryLedger
	posting   *core.PostingService
	voids     *core.VoidEngine
	auditor   *core.Auditor

	productA *core.Product
	productB *core.Product
	service  *core.Product
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	policy core.NegativeStockPolicy
	skip   map[core.Purpose]bool
}

func withPolicy(p core.NegativeStockPolicy) fixtureOption {
	return func(c *fixtureConfig) { c.policy = p }
}

func withoutPurpose(p core.Purpose) fixtureOption {
	return func(c *fixtureConfig) { c.skip[p] = true }
}

var chart = []struct {
	code    string
	name    string
	typ     core.AccountType
	side    core.NormalSide
	purpose core.Purpose
}{
	{"1000", "Cash", core.Asset, core.DebitSide, core.PurposeCash},
	{"1100", "Accounts Receivable", core.Asset, core.DebitSide, core.PurposeAR},
	{"1200", "Inventory", core.Asset, core.DebitSide, core.PurposeInventory},
	{"1300", "Input Tax", core.Asset, core.DebitSide, core.PurposeInputTax},
	{"2000", "Accounts Payable", core.Liability, core.CreditSide, core.PurposeAP},
	{"2100", "Sales Tax Payable", core.Liability, core.CreditSide, core.PurposeSalesTax},
	{"4000", "Sales Revenue", core.Revenue, core.CreditSide, core.PurposeRevenue},
	{"5000", "Cost of Goods Sold", core.Expense, core.DebitSide, core.PurposeCOGS},
	{"6000", "General Expense", core.Expense, core.DebitSide, core.PurposeExpense},
}

func newLedgerFixture(t *testing.T, opts ...fixtureOption) *ledgerFixture {
	t.Helper()
	cfg := &fixtureConfig{policy: core.NegativeStockWarn, skip: map[core.Purpose]bool{}}
	for _, o := range opts {
		o(cfg)
	}

	pool := testPool(t)
	log := zap.NewNop()
	txm := db.NewTxManager(pool, 10, log)

	f := &ledgerFixture{
		ctx:       context.Background(),
		pool:      pool,
		accounts:  map[core.Purpose]*core.Account{},
		store:     core.NewAccountStore(pool),
		companies: core.NewCompanyStore(pool),
		periods:   core.NewPeriodLocks(pool),
		auditor:   core.NewAuditor(pool),
	}
	f.ledger = core.NewLedger(pool, txm, f.periods)
	f.inventory = core.NewInventoryLedger(pool, txm, log)
	f.posting = core.NewPostingService(txm, f.ledger, f.inventory, f.store, cfg.policy, log)
	f.voids = core.NewVoidEngine(txm, f.ledger, f.inventory, log)
	f.voids.WithNow(func() time.Time { return april2 })

	company, err := f.companies.CreateCompany(f.ctx, uuid.New(), "ACME", "Acme Trading")
	require.NoError(t, err)
	f.scope = company.Scope()

	for _, a := range chart {
		in := core.NewAccount{Code: a.code, Name: a.name, Type: a.typ, NormalSide: a.side}
		if !cfg.skip[a.purpose] {
			p := a.purpose
			in.Purpose = &p
		}
		acct, err := f.store.CreateAccount(f.ctx, f.scope, in)
		require.NoError(t, err)
		f.accounts[a.purpose] = acct
	}

	f.productA = f.createProduct(t, f.scope, "A", core.ProductGood, "10")
	f.productB = f.createProduct(t, f.scope, "B", core.ProductGood, "5")
	f.service = f.createProduct(t, f.scope, "SVC", core.ProductService, "0")
	f.adjust(t, f.productA.ID, "10", "OPENING-A")
	f.adjust(t, f.productB.ID, "10", "OPENING-B")
	return f
}

func (f *ledgerFixture) createProduct(t *testing.T, scope core.Scope, sku string, kind core.ProductKind, cost string) *core.Product {
	t.Helper()
	p, err := f.inventory.CreateProduct(f.ctx, scope, core.NewProduct{
		SKU:       sku,
		Name:      "Product " + sku,
		Kind:      kind,
		CostPrice: decimal.RequireFromString(cost),
	})
	require.NoError(t, err)
	return p
}

func (f *ledgerFixture) adjust(t *testing.T, productID int64, qty, ref string) {
	t.Helper()
	_, _, err := f.inventory.Move(f.ctx, f.scope, core.MovementInput{
		ProductID: productID,
		Type:      core.MovementAdjustment,
		Quantity:  decimal.RequireFromString(qty),
		Reference: ref,
		Date:      march14,
		Reason:    "opening stock",
	})
	require.NoError(t, err)
}

// saleAB is the two-good credit sale: 2 × A and 3 × B at 20 each.
func (f *ledgerFixture) saleAB(number string) core.Document {
	a, b := f.productA.ID, f.productB.ID
	total := core.Money(10000)
	return core.Document{
		Kind:   core.DocumentSale,
		Number: number,
		Date:   march14,
		Total:  &total,
		Lines: []core.DocumentLine{
			{ProductID: &a, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(20)},
			{ProductID: &b, Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(20)},
		},
	}
}

func (f *ledgerFixture) stock(t *testing.T, productID int64) decimal.Decimal {
	t.Helper()
	qty, err := f.inventory.CurrentStock(f.ctx, f.scope, productID)
	require.NoError(t, err)
	return qty
}

func (f *ledgerFixture) balance(t *testing.T, purpose core.Purpose, asOf time.Time) core.Money {
	t.Helper()
	m, err := f.ledger.GetAccountBalance(f.ctx, f.scope, f.accounts[purpose].ID, asOf)
	require.NoError(t, err)
	return m
}

// counts returns the number of journal entries, lines and movements of the company.
func (f *ledgerFixture) counts(t *testing.T) (entries, lines, movements int) {
	t.Helper()
	err := f.pool.QueryRow(f.ctx, `
		SELECT
			(SELECT COUNT(*) FROM journal_entries WHERE tenant_id = $1 AND company_id = $2),
			(SELECT COUNT(*) FROM journal_lines jl JOIN journal_entries je ON je.id = jl.entry_id
			  WHERE je.tenant_id = $1 AND je.company_id = $2),
			(SELECT COUNT(*) FROM inventory_movements WHERE tenant_id = $1 AND company_id = $2)
	`, f.scope.TenantID, f.scope.CompanyID).Scan(&entries, &lines, &movements)
	require.NoError(t, err)
	return entries, lines, movements
}

// movementSum is the net quantity of every movement of productID.
func (f *ledgerFixture) movementSum(t *testing.T, productID int64) decimal.Decimal {
	t.Helper()
	var sum decimal.Decimal
	err := f.pool.QueryRow(f.ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM inventory_movements WHERE product_id = $1 AND reference NOT LIKE 'OPENING-%'",
		productID).Scan(&sum)
	require.NoError(t, err)
	return sum
}

func (f *ledgerFixture) requireAuditClean(t *testing.T) {
	t.Helper()
	report, err := f.auditor.Check(f.ctx, f.scope)
	require.NoError(t, err)
	require.True(t, report.OK(), "audit report: %+v", report)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
