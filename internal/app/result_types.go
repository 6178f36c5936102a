package app

import (
	"github.com/shopspring/decimal"

	"urutiq-ledger/internal/core"
)

// AccountBalanceResult is returned by GetAccountBalance.
type AccountBalanceResult struct {
	AccountID int64      `json:"account_id"`
	AsOf      string     `json:"as_of"`
	Balance   core.Money `json:"balance"`
}

// EntryResult wraps a single journal entry with its lines.
type EntryResult struct {
	Entry *core.JournalEntry `json:"entry"`
}

// AccountListResult is returned by ListAccounts.
type AccountListResult struct {
	Accounts []core.Account `json:"accounts"`
}

// StockResult is returned by GetStock.
type StockResult struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// MovementResult is returned by AdjustStock. Warning is set when the
// adjustment left stock below zero.
type MovementResult struct {
	Movement *core.InventoryMovement    `json:"movement"`
	Warning  *core.NegativeStockWarning `json:"warning,omitempty"`
}
