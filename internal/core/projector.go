package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	DocumentSale            DocumentKind = "SALE"
	DocumentPurchaseReceipt DocumentKind = "PURCHASE_RECEIPT"
	DocumentExpense         DocumentKind = "EXPENSE"
)

// PaymentMode selects the settlement account: CREDIT posts to AR/AP, CASH to CASH.
type PaymentMode string

const (
	PaymentCredit PaymentMode = "CREDIT"
	PaymentCash   PaymentMode = "CASH"
)

// Document is the source payload handed over by collaborators. Total is
// optional; when set it must equal subtotal plus tax.
type Document struct {
	Kind    DocumentKind
	Number  string
	Date    time.Time
	Memo    string
	Payment PaymentMode
	Tax     Money
	Total   *Money
	Lines   []DocumentLine
	ActorID *string
}

// DocumentLine is one line of a document. UnitPrice is the selling price on a
// sale and the unit cost on a purchase receipt or expense.
type DocumentLine struct {
	ProductID   *int64
	AccountID   *int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Amount is the line's extended value rounded to the minor unit.
func (l DocumentLine) Amount() (Money, error) {
	return RoundMoney(l.Quantity.Mul(l.UnitPrice))
}

// ProjectionContext holds everything a projection reads from the store,
// already resolved and scoped.
type ProjectionContext struct {
	CompanyID int64
	Accounts  map[Purpose]Account
	Products  map[int64]Product
}

func (c ProjectionContext) account(p Purpose) (Account, error) {
	a, ok := c.Accounts[p]
	if !ok {
		return Account{}, &AccountNotFoundError{CompanyID: c.CompanyID, Purpose: p}
	}
	return a, nil
}

// Projection is the paired journal entry and movement set for one document.
type Projection struct {
	Entry     EntryInput
	Movements []MovementInput
}

// RequiredPurposes lists the purpose tags a projection of doc will resolve,
// so they can be looked up before Project runs.
func RequiredPurposes(doc Document, products map[int64]Product) []Purpose {
	settle := settlementPurpose(doc)
	var out []Purpose
	add := func(p Purpose) {
		for _, have := range out {
			if have == p {
				return
			}
		}
		out = append(out, p)
	}
	add(settle)

	switch doc.Kind {
	case DocumentSale:
		for _, line := range doc.Lines {
			p, ok := lineProduct(line, products)
			if line.AccountID == nil && (!ok || p.RevenueAccountID == nil) {
				add(PurposeRevenue)
			}
			if ok && p.Tracked() {
				add(PurposeCOGS)
				add(PurposeInventory)
			}
		}
		if doc.Tax > 0 {
			add(PurposeSalesTax)
		}
	case DocumentPurchaseReceipt, DocumentExpense:
		for _, line := range doc.Lines {
			p, ok := lineProduct(line, products)
			if doc.Kind == DocumentPurchaseReceipt && ok && p.Tracked() {
				add(PurposeInventory)
			} else if line.AccountID == nil {
				add(PurposeExpense)
			}
		}
		if doc.Tax > 0 {
			add(PurposeInputTax)
		}
	}
	return out
}

// Project turns a document into a balanced entry and its inventory movements.
// It reads nothing outside pc and writes nothing.
func Project(doc Document, pc ProjectionContext) (*Projection, error) {
	ref, err := validateDocument(doc, pc.Products)
	if err != nil {
		return nil, err
	}

	amounts, subtotal, err := lineAmounts(doc)
	if err != nil {
		return nil, err
	}
	total, ok := AddMoney(subtotal, doc.Tax)
	if !ok {
		return nil, invalidDocument("document %s total is out of range", ref)
	}
	if doc.Total != nil && *doc.Total != total {
		return nil, invalidDocument("total %s does not equal subtotal %s plus tax %s", *doc.Total, subtotal, doc.Tax)
	}
	if total <= 0 {
		return nil, invalidDocument("document %s has no value to post", ref)
	}

	settle, err := pc.account(settlementPurpose(doc))
	if err != nil {
		return nil, err
	}

	b := &entryBuilder{}
	var movements []MovementInput
	switch doc.Kind {
	case DocumentSale:
		movements, err = projectSale(doc, ref, pc, settle, amounts, total, b)
	case DocumentPurchaseReceipt:
		movements, err = projectPurchase(doc, ref, pc, settle, amounts, total, b)
	case DocumentExpense:
		err = projectExpense(doc, pc, settle, amounts, total, b)
	}
	if err != nil {
		return nil, err
	}

	memo := doc.Memo
	if memo == "" {
		memo = fmt.Sprintf("%s %s", strings.ToLower(strings.ReplaceAll(string(doc.Kind), "_", " ")), ref)
	}
	return &Projection{
		Entry: EntryInput{
			Date:          doc.Date,
			Memo:          memo,
			Reference:     ref,
			Source:        SourceDocument,
			MovementCount: len(movements),
			ActorID:       doc.ActorID,
			Lines:         b.lines,
		},
		Movements: movements,
	}, nil
}

// lineAmounts rounds every line and sums them. Amounts are never negative, so
// any per-account group of them is bounded by the subtotal.
func lineAmounts(doc Document) ([]Money, Money, error) {
	amounts := make([]Money, len(doc.Lines))
	var subtotal Money
	for i, line := range doc.Lines {
		amount, err := line.Amount()
		if err != nil {
			return nil, 0, invalidDocument("line %d: %v", i+1, err)
		}
		sum, ok := AddMoney(subtotal, amount)
		if !ok {
			return nil, 0, invalidDocument("line %d: document subtotal is out of range", i+1)
		}
		amounts[i], subtotal = amount, sum
	}
	return amounts, subtotal, nil
}

func projectSale(doc Document, ref string, pc ProjectionContext, settle Account, amounts []Money, total Money, b *entryBuilder) ([]MovementInput, error) {
	b.debit(settle.ID, total, "")

	revenue := newGroupedAmounts()
	var costOfSales decimal.Decimal
	var movements []MovementInput
	for i, line := range doc.Lines {
		p, isProduct := lineProduct(line, pc.Products)

		var revenueAccount int64
		switch {
		case line.AccountID != nil:
			revenueAccount = *line.AccountID
		case isProduct && p.RevenueAccountID != nil:
			revenueAccount = *p.RevenueAccountID
		default:
			a, err := pc.account(PurposeRevenue)
			if err != nil {
				return nil, err
			}
			revenueAccount = a.ID
		}
		revenue.add(revenueAccount, amounts[i])

		if !isProduct || !p.Tracked() {
			continue
		}
		costOfSales = costOfSales.Add(line.Quantity.Mul(p.CostPrice))
		movements = append(movements, MovementInput{
			ProductID: p.ID,
			Type:      MovementSale,
			Quantity:  line.Quantity.Neg(),
			Reference: ref,
			LineNo:    i + 1,
			UnitCost:  p.CostPrice,
			Date:      doc.Date,
			Reason:    "sale " + ref,
		})
	}

	for _, accountID := range revenue.order {
		b.credit(accountID, revenue.amounts[accountID], "")
	}
	if doc.Tax > 0 {
		tax, err := pc.account(PurposeSalesTax)
		if err != nil {
			return nil, err
		}
		b.credit(tax.ID, doc.Tax, "sales tax")
	}

	cogs, err := RoundMoney(costOfSales)
	if err != nil {
		return nil, invalidDocument("cost of goods sold: %v", err)
	}
	if cogs > 0 {
		cogsAccount, err := pc.account(PurposeCOGS)
		if err != nil {
			return nil, err
		}
		inventory, err := pc.account(PurposeInventory)
		if err != nil {
			return nil, err
		}
		b.debit(cogsAccount.ID, cogs, "cost of goods sold")
		b.credit(inventory.ID, cogs, "cost of goods sold")
	}
	return movements, nil
}

func projectPurchase(doc Document, ref string, pc ProjectionContext, settle Account, amounts []Money, total Money, b *entryBuilder) ([]MovementInput, error) {
	debits := newGroupedAmounts()
	var movements []MovementInput
	for i, line := range doc.Lines {
		p, isProduct := lineProduct(line, pc.Products)
		if isProduct && p.Tracked() {
			inventory, err := pc.account(PurposeInventory)
			if err != nil {
				return nil, err
			}
			debits.add(inventory.ID, amounts[i])
			movements = append(movements, MovementInput{
				ProductID: p.ID,
				Type:      MovementPurchase,
				Quantity:  line.Quantity,
				Reference: ref,
				LineNo:    i + 1,
				UnitCost:  line.UnitPrice,
				Date:      doc.Date,
				Reason:    "purchase receipt " + ref,
			})
			continue
		}
		accountID, err := expenseAccount(line, pc)
		if err != nil {
			return nil, err
		}
		debits.add(accountID, amounts[i])
	}
	if err := debitGroupsAndTax(doc, pc, debits, b); err != nil {
		return nil, err
	}
	b.credit(settle.ID, total, "")
	return movements, nil
}

func projectExpense(doc Document, pc ProjectionContext, settle Account, amounts []Money, total Money, b *entryBuilder) error {
	debits := newGroupedAmounts()
	for i, line := range doc.Lines {
		accountID, err := expenseAccount(line, pc)
		if err != nil {
			return err
		}
		debits.add(accountID, amounts[i])
	}
	if err := debitGroupsAndTax(doc, pc, debits, b); err != nil {
		return err
	}
	b.credit(settle.ID, total, "")
	return nil
}

func debitGroupsAndTax(doc Document, pc ProjectionContext, debits *groupedAmounts, b *entryBuilder) error {
	for _, accountID := range debits.order {
		b.debit(accountID, debits.amounts[accountID], "")
	}
	if doc.Tax > 0 {
		tax, err := pc.account(PurposeInputTax)
		if err != nil {
			return err
		}
		b.debit(tax.ID, doc.Tax, "input tax")
	}
	return nil
}

func expenseAccount(line DocumentLine, pc ProjectionContext) (int64, error) {
	if line.AccountID != nil {
		return *line.AccountID, nil
	}
	a, err := pc.account(PurposeExpense)
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

func settlementPurpose(doc Document) Purpose {
	cash := doc.Payment == PaymentCash
	switch {
	case cash:
		return PurposeCash
	case doc.Kind == DocumentSale:
		return PurposeAR
	default:
		return PurposeAP
	}
}

func lineProduct(line DocumentLine, products map[int64]Product) (Product, bool) {
	if line.ProductID == nil {
		return Product{}, false
	}
	p, ok := products[*line.ProductID]
	return p, ok
}

// validateDocument checks the document shape and returns its canonical reference.
func validateDocument(doc Document, products map[int64]Product) (string, error) {
	switch doc.Kind {
	case DocumentSale, DocumentPurchaseReceipt, DocumentExpense:
	default:
		return "", invalidDocument("unknown document kind %q", doc.Kind)
	}
	switch doc.Payment {
	case PaymentCredit, PaymentCash, "":
	default:
		return "", invalidDocument("unknown payment mode %q", doc.Payment)
	}
	ref := NormalizeReference(doc.Number)
	if err := validateReference(ref); err != nil {
		return "", err
	}
	if doc.Date.IsZero() {
		return "", invalidDocument("document date is required")
	}
	if doc.Tax.IsNegative() {
		return "", invalidDocument("tax cannot be negative")
	}
	if len(doc.Lines) == 0 {
		return "", invalidDocument("document %s has no lines", ref)
	}
	for i, line := range doc.Lines {
		if !line.Quantity.IsPositive() {
			return "", invalidDocument("line %d: quantity must be positive", i+1)
		}
		if !Storable(line.Quantity) {
			return "", invalidDocument("line %d: quantity %s exceeds %d decimal places or range", i+1, line.Quantity, QuantityScale)
		}
		if line.UnitPrice.IsNegative() {
			return "", invalidDocument("line %d: unit price cannot be negative", i+1)
		}
		if line.ProductID == nil {
			continue
		}
		p, ok := products[*line.ProductID]
		if !ok {
			return "", fmt.Errorf("%w: id %d on line %d", ErrProductNotFound, *line.ProductID, i+1)
		}
		if doc.Kind == DocumentExpense && p.Tracked() {
			return "", invalidDocument("line %d: goods are received on a purchase receipt, not an expense", i+1)
		}
		if doc.Kind == DocumentPurchaseReceipt && p.Tracked() && !Storable(line.UnitPrice) {
			return "", invalidDocument("line %d: unit cost %s exceeds %d decimal places or range", i+1, line.UnitPrice, QuantityScale)
		}
	}
	return ref, nil
}

type entryBuilder struct {
	lines []LineInput
}

func (b *entryBuilder) debit(accountID int64, amount Money, memo string) {
	if amount > 0 {
		b.lines = append(b.lines, LineInput{AccountID: accountID, Debit: amount, Memo: memo})
	}
}

func (b *entryBuilder) credit(accountID int64, amount Money, memo string) {
	if amount > 0 {
		b.lines = append(b.lines, LineInput{AccountID: accountID, Credit: amount, Memo: memo})
	}
}

// groupedAmounts sums amounts per account, keeping first-seen order so the
// line order of an entry is deterministic.
type groupedAmounts struct {
	order   []int64
	amounts map[int64]Money
}

func newGroupedAmounts() *groupedAmounts {
	return &groupedAmounts{amounts: make(map[int64]Money)}
}

func (g *groupedAmounts) add(accountID int64, amount Money) {
	if _, ok := g.amounts[accountID]; !ok {
		g.order = append(g.order, accountID)
	}
	g.amounts[accountID] += amount
}
