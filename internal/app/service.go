package app

import (
	"context"

	"github.com/google/uuid"

	"urutiq-ledger/internal/core"
)

// ApplicationService is the single interface all adapters (web, CLI) call.
// It decouples transport from the ledger core. Implementations must contain
// no display or transport logic of any kind.
type ApplicationService interface {
	// PostDocument projects a sale, purchase receipt or expense into one
	// balanced journal entry plus its inventory movements and commits both.
	PostDocument(ctx context.Context, req PostDocumentRequest) (*core.PostResult, error)

	// VoidDocument reverses a posted document. A repeat call reports
	// AlreadyProcessed and changes nothing.
	VoidDocument(ctx context.Context, req VoidDocumentRequest) (*core.VoidResult, error)

	// GetAccountBalance returns the balance of an account on its normal side.
	// asOfDate is YYYY-MM-DD; empty means today.
	GetAccountBalance(ctx context.Context, scope core.Scope, accountID int64, asOfDate string) (*AccountBalanceResult, error)

	// PostManualEntry posts a manual journal entry, or stores it as DRAFT when req.Draft is set.
	PostManualEntry(ctx context.Context, req ManualEntryRequest) (*EntryResult, error)

	// PostDraft validates a DRAFT entry and moves it to POSTED.
	PostDraft(ctx context.Context, scope core.Scope, entryID int64) (*EntryResult, error)

	// DiscardDraft deletes a DRAFT entry.
	DiscardDraft(ctx context.Context, scope core.Scope, entryID int64) error

	// GetEntryByReference returns the entry posted under reference with its lines.
	GetEntryByReference(ctx context.Context, scope core.Scope, reference string) (*EntryResult, error)

	LockPeriod(ctx context.Context, req PeriodRequest) error
	UnlockPeriod(ctx context.Context, req PeriodRequest) error

	CreateCompany(ctx context.Context, tenantID uuid.UUID, code, name string) (*core.Company, error)
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*core.Account, error)
	AssignPurpose(ctx context.Context, scope core.Scope, accountID int64, purpose string) error
	ListAccounts(ctx context.Context, scope core.Scope) (*AccountListResult, error)

	CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error)
	GetStock(ctx context.Context, scope core.Scope, productID int64) (*StockResult, error)

	// AdjustStock records a stand-alone ADJUSTMENT movement, e.g. after a stock count.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*MovementResult, error)

	// AuditLedger reports unbalanced entries, stock drift and voids without reversals.
	AuditLedger(ctx context.Context, scope core.Scope) (*core.AuditReport, error)
}
