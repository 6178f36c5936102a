package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urutiq-ledger/internal/core"
)

var testScope = core.Scope{TenantID: uuid.MustParse("7b0c2c52-64f4-4a55-9d37-0f6a2a1d3b11"), CompanyID: 4}

type recordingPoster struct {
	doc core.Document
}

func (p *recordingPoster) PostDocument(_ context.Context, _ core.Scope, doc core.Document) (*core.PostResult, error) {
	p.doc = doc
	return &core.PostResult{JournalEntryID: 1, Reference: doc.Number}, nil
}

type recordingLedger struct {
	core.LedgerService
	posted  *core.EntryInput
	drafted *core.EntryInput
	asOf    time.Time
}

func (l *recordingLedger) Post(_ context.Context, _ core.Scope, in core.EntryInput) (*core.JournalEntry, error) {
	l.posted = &in
	return &core.JournalEntry{ID: 1, Status: core.EntryPosted}, nil
}

func (l *recordingLedger) CreateDraft(_ context.Context, _ core.Scope, in core.EntryInput) (*core.JournalEntry, error) {
	l.drafted = &in
	return &core.JournalEntry{ID: 2, Status: core.EntryDraft}, nil
}

func (l *recordingLedger) GetAccountBalance(_ context.Context, _ core.Scope, _ int64, asOf time.Time) (core.Money, error) {
	l.asOf = asOf
	return 1250, nil
}

type recordingInventory struct {
	core.InventoryService
	moved core.MovementInput
}

func (i *recordingInventory) Move(_ context.Context, _ core.Scope, in core.MovementInput) (*core.InventoryMovement, *core.NegativeStockWarning, error) {
	i.moved = in
	return &core.InventoryMovement{ID: 9, Quantity: in.Quantity}, nil, nil
}

func fixedNow() time.Time { return time.Date(2026, 5, 20, 17, 45, 0, 0, time.UTC) }

func TestPostDocument_TranslatesRequest(t *testing.T) {
	poster := &recordingPoster{}
	svc := NewAppService(Deps{Posting: poster, Now: fixedNow})
	total := decimal.RequireFromString("108.50")
	product := int64(3)

	_, err := svc.PostDocument(context.Background(), PostDocumentRequest{
		Scope:  testScope,
		Kind:   "sale",
		Number: "1001",
		Date:   "2026-03-14",
		Tax:    decimal.RequireFromString("8.5"),
		Total:  &total,
		Lines: []DocumentLineInput{
			{ProductID: &product, Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(20)},
		},
	})
	require.NoError(t, err)

	doc := poster.doc
	assert.Equal(t, core.DocumentSale, doc.Kind)
	assert.Equal(t, core.PaymentCredit, doc.Payment)
	assert.Equal(t, core.Money(850), doc.Tax)
	require.NotNil(t, doc.Total)
	assert.Equal(t, core.Money(10850), *doc.Total)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), doc.Date)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, &product, doc.Lines[0].ProductID)
}

func TestPostDocument_RejectsBadInput(t *testing.T) {
	svc := NewAppService(Deps{Posting: &recordingPoster{}, Now: fixedNow})

	_, err := svc.PostDocument(context.Background(), PostDocumentRequest{Scope: testScope, Date: "14/03/2026"})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)

	_, err = svc.PostDocument(context.Background(), PostDocumentRequest{
		Scope: testScope,
		Date:  "2026-03-14",
		Tax:   decimal.RequireFromString("0.001"),
	})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestPostManualEntry(t *testing.T) {
	ledger := &recordingLedger{}
	svc := NewAppService(Deps{Ledger: ledger, Now: fixedNow})
	req := ManualEntryRequest{
		Scope:     testScope,
		Date:      "2026-03-14",
		Reference: "JE-1",
		Lines: []ManualLineInput{
			{AccountID: 1, Debit: decimal.RequireFromString("12.5")},
			{AccountID: 2, Credit: decimal.RequireFromString("12.50")},
		},
	}

	res, err := svc.PostManualEntry(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, core.EntryPosted, res.Entry.Status)
	require.NotNil(t, ledger.posted)
	assert.Equal(t, core.SourceManual, ledger.posted.Source)
	assert.Equal(t, core.Money(1250), ledger.posted.Lines[0].Debit)
	assert.Equal(t, core.Money(1250), ledger.posted.Lines[1].Credit)
	assert.Nil(t, ledger.drafted)

	req.Draft = true
	res, err = svc.PostManualEntry(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, core.EntryDraft, res.Entry.Status)
	assert.NotNil(t, ledger.drafted)

	req.Lines[0].Debit = decimal.RequireFromString("12.505")
	_, err = svc.PostManualEntry(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrInvalidLine)
}

func TestGetAccountBalance_DefaultsToToday(t *testing.T) {
	ledger := &recordingLedger{}
	svc := NewAppService(Deps{Ledger: ledger, Now: fixedNow})

	res, err := svc.GetAccountBalance(context.Background(), testScope, 7, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-20", res.AsOf)
	assert.Equal(t, core.Money(1250), res.Balance)
	assert.Equal(t, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), ledger.asOf)

	res, err = svc.GetAccountBalance(context.Background(), testScope, 7, "2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-31", res.AsOf)
}

func TestAdjustStock(t *testing.T) {
	inv := &recordingInventory{}
	svc := NewAppService(Deps{Inventory: inv, Now: fixedNow})

	res, err := svc.AdjustStock(context.Background(), AdjustStockRequest{
		Scope:     testScope,
		ProductID: 3,
		Quantity:  decimal.NewFromInt(-2),
		Reference: " COUNT-7 ",
		Reason:    "shrinkage",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Movement.ID)
	assert.Equal(t, core.MovementAdjustment, inv.moved.Type)
	assert.Equal(t, "COUNT-7", inv.moved.Reference)
	assert.Equal(t, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), inv.moved.Date)

	_, err = svc.AdjustStock(context.Background(), AdjustStockRequest{
		Scope:     testScope,
		ProductID: 3,
		Quantity:  decimal.NewFromInt(1),
		Reference: "VOID-1001",
	})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}
