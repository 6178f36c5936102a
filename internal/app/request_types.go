package app

import (
	"github.com/shopspring/decimal"

	"urutiq-ledger/internal/core"
)

// PostDocumentRequest is the input for posting a business document.
type PostDocumentRequest struct {
	Scope   core.Scope
	Kind    string // SALE, PURCHASE_RECEIPT, EXPENSE
	Number  string
	Date    string // YYYY-MM-DD
	Memo    string
	Payment string // CREDIT (default) or CASH
	Tax     decimal.Decimal
	Total   *decimal.Decimal
	Lines   []DocumentLineInput
	ActorID *string
}

// DocumentLineInput is a single line within a PostDocumentRequest.
type DocumentLineInput struct {
	ProductID   *int64
	AccountID   *int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// VoidDocumentRequest is the input for voiding a posted document.
type VoidDocumentRequest struct {
	Scope     core.Scope
	Reference string
	ActorID   *string
}

// ManualEntryRequest is the input for a manual journal entry.
type ManualEntryRequest struct {
	Scope     core.Scope
	Date      string // YYYY-MM-DD
	Memo      string
	Reference string
	Draft     bool
	Lines     []ManualLineInput
	ActorID   *string
}

// ManualLineInput is one debit or credit line. Exactly one of Debit and Credit is set.
type ManualLineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PeriodRequest names one (year, month) of a company.
type PeriodRequest struct {
	Scope   core.Scope
	Year    int
	Month   int
	ActorID *string
}

type CreateAccountRequest struct {
	Scope      core.Scope
	Code       string
	Name       string
	Type       string
	NormalSide string
	Purpose    string // optional
}

type CreateProductRequest struct {
	Scope            core.Scope
	SKU              string
	Name             string
	Kind             string // GOOD or SERVICE
	CostPrice        decimal.Decimal
	RevenueAccountID *int64
}

// AdjustStockRequest is the input for a stock count correction.
type AdjustStockRequest struct {
	Scope     core.Scope
	ProductID int64
	Quantity  decimal.Decimal // signed
	Reference string
	Reason    string
	Date      string // YYYY-MM-DD; empty means today
}
