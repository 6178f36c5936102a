package core_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urutiq-ledger/internal/core"
)

func TestVoid_ReversesBothLedgers(t *testing.T) {
	f := newLedgerFixture(t)
	posted, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("1001"))
	require.NoError(t, err)

	actor := "user-7"
	res, err := f.voids.Void(f.ctx, f.scope, "1001", &actor)
	require.NoError(t, err)
	assert.True(t, res.Voided)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, "VOID-1001", res.VoidReference)
	assert.Equal(t, 4, res.ReversedLines)
	assert.Equal(t, 2, res.ReversedMovements)
	assert.True(t, res.StockDeltas[f.productA.ID].Equal(dec("2")))
	assert.True(t, res.StockDeltas[f.productB.ID].Equal(dec("3")))

	original, err := f.ledger.GetEntry(f.ctx, nil, f.scope, posted.JournalEntryID)
	require.NoError(t, err)
	assert.Equal(t, core.EntryVoided, original.Status)
	assert.NotNil(t, original.VoidedAt)

	reversal, err := f.ledger.GetEntryByReference(f.ctx, nil, f.scope, "VOID-1001")
	require.NoError(t, err)
	assert.Equal(t, res.ReversalEntryID, reversal.ID)
	assert.Equal(t, core.EntryPosted, reversal.Status)
	assert.Equal(t, core.SourceReversal, reversal.Source)
	assert.True(t, reversal.EntryDate.Equal(april2), "reversal dated %s", reversal.EntryDate)
	require.NotNil(t, reversal.ReversalOfID)
	assert.Equal(t, original.ID, *reversal.ReversalOfID)
	require.NotNil(t, reversal.CreatedBy)
	assert.Equal(t, actor, *reversal.CreatedBy)
	require.Len(t, reversal.Lines, len(original.Lines))
	for i, line := range reversal.Lines {
		assert.Equal(t, original.Lines[i].AccountID, line.AccountID)
		assert.Equal(t, original.Lines[i].Debit, line.Credit)
		assert.Equal(t, original.Lines[i].Credit, line.Debit)
	}

	assert.True(t, f.stock(t, f.productA.ID).Equal(dec("10")))
	assert.True(t, f.stock(t, f.productB.ID).Equal(dec("10")))
	assert.True(t, f.movementSum(t, f.productA.ID).IsZero())
	assert.True(t, f.movementSum(t, f.productB.ID).IsZero())

	for _, p := range []core.Purpose{core.PurposeAR, core.PurposeRevenue, core.PurposeCOGS, core.PurposeInventory} {
		assert.Equal(t, core.Money(0), f.balance(t, p, april2), "purpose %s", p)
	}
	// Before the reversal date the sale still stands.
	assert.Equal(t, core.Money(10000), f.balance(t, core.PurposeAR, march14))

	f.requireAuditClean(t)
}

func TestVoid_SecondCallIsIdempotent(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("1001"))
	require.NoError(t, err)
	_, err = f.voids.Void(f.ctx, f.scope, "1001", nil)
	require.NoError(t, err)
	entries, lines, movements := f.counts(t)

	res, err := f.voids.Void(f.ctx, f.scope, " 1001", nil)
	require.NoError(t, err)
	assert.True(t, res.Voided)
	assert.True(t, res.AlreadyProcessed)
	assert.Zero(t, res.ReversedLines)
	assert.Zero(t, res.ReversedMovements)

	e2, l2, m2 := f.counts(t)
	assert.Equal(t, []int{entries, lines, movements}, []int{e2, l2, m2})
	assert.True(t, f.stock(t, f.productA.ID).Equal(dec("10")))
}

func TestVoid_ConcurrentCallsReverseOnce(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("1001"))
	require.NoError(t, err)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*core.VoidResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.voids.Void(f.ctx, f.scope, "1001", nil)
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range results {
		require.NoError(t, errs[i])
		if !results[i].AlreadyProcessed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	assert.True(t, f.stock(t, f.productA.ID).Equal(dec("10")))
	assert.True(t, f.stock(t, f.productB.ID).Equal(dec("10")))
	f.requireAuditClean(t)
}

// conflictingTx behaves like a runner whose every attempt lost a
// serialization conflict.
type conflictingTx struct{}

func (conflictingTx) WithTx(context.Context, func(context.Context, pgx.Tx) error) error {
	return &pgconn.PgError{Code: "40001"}
}

func TestVoid_ExhaustedConflictAfterCommittedVoid(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("1001"))
	require.NoError(t, err)
	_, err = f.voids.Void(f.ctx, f.scope, "1001", nil)
	require.NoError(t, err)

	loser := core.NewVoidEngine(conflictingTx{}, f.ledger, f.inventory, nil)
	res, err := loser.Void(f.ctx, f.scope, "1001", nil)
	require.NoError(t, err)
	assert.True(t, res.Voided)
	assert.True(t, res.AlreadyProcessed)
}

func TestVoid_ExhaustedConflictWithoutVoidStillFails(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("1001"))
	require.NoError(t, err)

	loser := core.NewVoidEngine(conflictingTx{}, f.ledger, f.inventory, nil)
	_, err = loser.Void(f.ctx, f.scope, "1001", nil)
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40001", pgErr.Code)
}

func TestVoid_NeverPostedReference(t *testing.T) {
	f := newLedgerFixture(t)
	entries, lines, movements := f.counts(t)

	_, err := f.voids.Void(f.ctx, f.scope, "9999", nil)
	assert.ErrorIs(t, err, core.ErrNothingToVoid)

	e2, l2, m2 := f.counts(t)
	assert.Equal(t, []int{entries, lines, movements}, []int{e2, l2, m2})
}

func TestVoid_ReservedPrefixRejected(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.voids.Void(f.ctx, f.scope, "VOID-1001", nil)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestVoid_AfterPeriodLockIsDatedToday(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("1001"))
	require.NoError(t, err)
	require.NoError(t, f.periods.LockPeriod(f.ctx, f.scope, 2026, 3, nil))

	res, err := f.voids.Void(f.ctx, f.scope, "1001", nil)
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)

	reversal, err := f.ledger.GetEntryByReference(f.ctx, nil, f.scope, "VOID-1001")
	require.NoError(t, err)
	assert.Equal(t, 2026, reversal.EntryDate.Year())
	assert.Equal(t, 4, int(reversal.EntryDate.Month()))

	// March totals are untouched by the void.
	assert.Equal(t, core.Money(10000), f.balance(t, core.PurposeRevenue, march14))
	assert.Equal(t, core.Money(0), f.balance(t, core.PurposeRevenue, april2))
}

func TestVoid_ReversalPeriodLocked(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("1001"))
	require.NoError(t, err)
	require.NoError(t, f.periods.LockPeriod(f.ctx, f.scope, 2026, 4, nil))
	entries, lines, movements := f.counts(t)

	_, err = f.voids.Void(f.ctx, f.scope, "1001", nil)
	assert.ErrorIs(t, err, core.ErrPeriodLocked)

	e2, l2, m2 := f.counts(t)
	assert.Equal(t, []int{entries, lines, movements}, []int{e2, l2, m2})
	assert.True(t, f.stock(t, f.productA.ID).Equal(dec("8")))
}

func TestVoid_ServiceOnlyDocument(t *testing.T) {
	f := newLedgerFixture(t)
	svc := f.service.ID
	_, err := f.posting.PostDocument(f.ctx, f.scope, core.Document{
		Kind:   core.DocumentSale,
		Number: "2001",
		Date:   march14,
		Lines:  []core.DocumentLine{{ProductID: &svc, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(75)}},
	})
	require.NoError(t, err)
	_, _, before := f.counts(t)

	res, err := f.voids.Void(f.ctx, f.scope, "2001", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ReversedLines)
	assert.Zero(t, res.ReversedMovements)
	assert.Empty(t, res.StockDeltas)

	_, _, after := f.counts(t)
	assert.Equal(t, before, after)
	assert.Equal(t, core.Money(0), f.balance(t, core.PurposeAR, april2))
}

func TestVoid_PartialOriginalData(t *testing.T) {
	f := newLedgerFixture(t)
	svc := f.service.ID
	_, err := f.posting.PostDocument(f.ctx, f.scope, core.Document{
		Kind:   core.DocumentSale,
		Number: "3001",
		Date:   march14,
		Lines:  []core.DocumentLine{{ProductID: &svc, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	// A stray movement under the legacy alias that the entry never accounted for.
	_, err = f.pool.Exec(f.ctx, `
		INSERT INTO inventory_movements (tenant_id, company_id, product_id, movement_type, quantity, movement_date, reference, line_no)
		VALUES ($1, $2, $3, 'SALE', -1, $4, 'INV-3001', 1)
	`, f.scope.TenantID, f.scope.CompanyID, f.productA.ID, march14)
	require.NoError(t, err)
	entries, lines, movements := f.counts(t)

	_, err = f.voids.Void(f.ctx, f.scope, "3001", nil)
	var partial *core.PartialOriginalDataError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 0, partial.ExpectedMovements)
	assert.Equal(t, 1, partial.FoundMovements)

	e2, l2, m2 := f.counts(t)
	assert.Equal(t, []int{entries, lines, movements}, []int{e2, l2, m2})
}

func TestVoid_MovementsWithoutEntry(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.pool.Exec(f.ctx, `
		INSERT INTO inventory_movements (tenant_id, company_id, product_id, movement_type, quantity, movement_date, reference, line_no)
		VALUES ($1, $2, $3, 'SALE', -1, $4, '3003', 1)
	`, f.scope.TenantID, f.scope.CompanyID, f.productA.ID, march14)
	require.NoError(t, err)

	_, err = f.voids.Void(f.ctx, f.scope, "3003", nil)
	assert.ErrorIs(t, err, core.ErrPartialOriginalData)
}

func TestVoid_LegacyAliasMovements(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("3002"))
	require.NoError(t, err)
	_, err = f.pool.Exec(f.ctx,
		"UPDATE inventory_movements SET reference = 'INV-3002' WHERE tenant_id = $1 AND company_id = $2 AND reference = '3002'",
		f.scope.TenantID, f.scope.CompanyID)
	require.NoError(t, err)

	res, err := f.voids.Void(f.ctx, f.scope, "3002", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ReversedMovements)
	assert.True(t, f.stock(t, f.productA.ID).Equal(dec("10")))
	assert.True(t, f.stock(t, f.productB.ID).Equal(dec("10")))

	again, err := f.voids.Void(f.ctx, f.scope, "3002", nil)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	f.requireAuditClean(t)
}

func TestVoid_IgnoresAdjustmentsUnderSameNumber(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.posting.PostDocument(f.ctx, f.scope, f.saleAB("1001"))
	require.NoError(t, err)
	f.adjust(t, f.productA.ID, "1", "1001")

	res, err := f.voids.Void(f.ctx, f.scope, "1001", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ReversedMovements)
	assert.True(t, f.stock(t, f.productA.ID).Equal(dec("11")))
}

func TestVoid_ReversalWarnsOnNegativeStock(t *testing.T) {
	f := newLedgerFixture(t)
	a := f.productA.ID
	_, err := f.posting.PostDocument(f.ctx, f.scope, core.Document{
		Kind:   core.DocumentPurchaseReceipt,
		Number: "PO-7",
		Date:   march14,
		Lines:  []core.DocumentLine{{ProductID: &a, Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)
	f.adjust(t, a, "-14", "COUNT-1")

	res, err := f.voids.Void(f.ctx, f.scope, "PO-7", nil)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.True(t, res.Warnings[0].Stock.Equal(dec("-4")))
	assert.True(t, f.stock(t, a).Equal(dec("-4")))
}
