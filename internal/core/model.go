package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scope is the (tenant, company) pair every record belongs to.
// Every query filters on both columns.
type Scope struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	CompanyID int64     `json:"company_id"`
}

func (s Scope) Validate() error {
	if s.TenantID == uuid.Nil {
		return ErrInvalidScope
	}
	if s.CompanyID <= 0 {
		return ErrInvalidScope
	}
	return nil
}

type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Revenue   AccountType = "revenue"
	Expense   AccountType = "expense"
)

// NormalSide is the side on which an account's balance grows.
type NormalSide string

const (
	DebitSide  NormalSide = "debit"
	CreditSide NormalSide = "credit"
)

// Purpose is the semantic tag used to resolve which account an economic event hits.
type Purpose string

const (
	PurposeAR        Purpose = "AR"
	PurposeAP        Purpose = "AP"
	PurposeCash      Purpose = "CASH"
	PurposeRevenue   Purpose = "REVENUE"
	PurposeCOGS      Purpose = "COGS"
	PurposeInventory Purpose = "INVENTORY"
	PurposeExpense   Purpose = "EXPENSE"
	PurposeSalesTax  Purpose = "SALES_TAX"
	PurposeInputTax  Purpose = "INPUT_TAX"
)

var knownPurposes = map[Purpose]struct{}{
	PurposeAR: {}, PurposeAP: {}, PurposeCash: {}, PurposeRevenue: {}, PurposeCOGS: {},
	PurposeInventory: {}, PurposeExpense: {}, PurposeSalesTax: {}, PurposeInputTax: {},
}

// Valid reports whether p is one of the recognised purpose tags.
func (p Purpose) Valid() bool {
	_, ok := knownPurposes[p]
	return ok
}

type Account struct {
	ID         int64       `json:"id"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	CompanyID  int64       `json:"company_id"`
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	NormalSide NormalSide  `json:"normal_side"`
	Purpose    *Purpose    `json:"purpose,omitempty"`
}

func (a Account) inScope(s Scope) bool {
	return a.TenantID == s.TenantID && a.CompanyID == s.CompanyID
}

type EntryStatus string

const (
	EntryDraft  EntryStatus = "DRAFT"
	EntryPosted EntryStatus = "POSTED"
	EntryVoided EntryStatus = "VOIDED"
)

// EntrySource records what produced a journal entry.
type EntrySource string

const (
	SourceManual   EntrySource = "MANUAL"
	SourceDocument EntrySource = "DOCUMENT"
	SourceReversal EntrySource = "REVERSAL"
)

type JournalEntry struct {
	ID            int64         `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	CompanyID     int64         `json:"company_id"`
	EntryDate     time.Time     `json:"entry_date"`
	Memo          string        `json:"memo"`
	Reference     string        `json:"reference"`
	Status        EntryStatus   `json:"status"`
	Source        EntrySource   `json:"source"`
	MovementCount int           `json:"movement_count"`
	ReversalOfID  *int64        `json:"reversal_of_id,omitempty"`
	CreatedBy     *string       `json:"created_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	VoidedAt      *time.Time    `json:"voided_at,omitempty"`
	Lines         []JournalLine `json:"lines"`
}

// Totals returns the summed debit and credit sides of the entry's lines.
func (e JournalEntry) Totals() (debit, credit Money) {
	for _, l := range e.Lines {
		debit += l.Debit
		credit += l.Credit
	}
	return debit, credit
}

type JournalLine struct {
	ID        int64  `json:"id"`
	EntryID   int64  `json:"entry_id"`
	LineNo    int    `json:"line_no"`
	AccountID int64  `json:"account_id"`
	Debit     Money  `json:"debit"`
	Credit    Money  `json:"credit"`
	Memo      string `json:"memo,omitempty"`
}

// LineInput is one requested debit or credit line of a new journal entry.
type LineInput struct {
	AccountID int64
	Debit     Money
	Credit    Money
	Memo      string
}

// EntryInput is the payload accepted by the posting engine.
type EntryInput struct {
	Date      time.Time
	Memo      string
	Reference string
	Source    EntrySource
	// MovementCount is the number of inventory movements committed alongside this entry.
	MovementCount int
	ReversalOfID  *int64
	ActorID       *string
	Lines         []LineInput
}

type ProductKind string

const (
	ProductGood    ProductKind = "GOOD"
	ProductService ProductKind = "SERVICE"
)

type Product struct {
	ID               int64           `json:"id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	CompanyID        int64           `json:"company_id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Kind             ProductKind     `json:"kind"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	StockQuantity    decimal.Decimal `json:"stock_quantity"`
	RevenueAccountID *int64          `json:"revenue_account_id,omitempty"`
}

// Tracked reports whether the product is a physical good with inventory effects.
func (p Product) Tracked() bool {
	return p.Kind == ProductGood
}

func (p Product) inScope(s Scope) bool {
	return p.TenantID == s.TenantID && p.CompanyID == s.CompanyID
}

type MovementType string

const (
	MovementSale       MovementType = "SALE"
	MovementPurchase   MovementType = "PURCHASE"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementVoid       MovementType = "VOID"
	MovementTransfer   MovementType = "TRANSFER"
)

type InventoryMovement struct {
	ID           int64           `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	CompanyID    int64           `json:"company_id"`
	ProductID    int64           `json:"product_id"`
	MovementType MovementType    `json:"movement_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	MovementDate time.Time       `json:"movement_date"`
	Reference    string          `json:"reference"`
	LineNo       int             `json:"line_no"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Reason       string          `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MovementInput describes one stock change to be recorded by the inventory ledger.
type MovementInput struct {
	ProductID int64
	Type      MovementType
	Quantity  decimal.Decimal
	Reference string
	LineNo    int
	UnitCost  decimal.Decimal
	Date      time.Time
	Reason    string
}

// NegativeStockWarning flags a movement that left a product below zero.
// It never aborts the transaction on its own.
type NegativeStockWarning struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Reference string          `json:"reference"`
	Stock     decimal.Decimal `json:"resulting_stock"`
}
