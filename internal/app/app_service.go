package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"urutiq-ledger/internal/core"
)

const dateLayout = "2006-01-02"

// DocumentPoster is satisfied by *core.PostingService.
type DocumentPoster interface {
	PostDocument(ctx context.Context, scope core.Scope, doc core.Document) (*core.PostResult, error)
}

// DocumentVoider is satisfied by *core.VoidEngine.
type DocumentVoider interface {
	Void(ctx context.Context, scope core.Scope, originalReference string, actorID *string) (*core.VoidResult, error)
}

// Auditor is satisfied by *core.Auditor.
type Auditor interface {
	Check(ctx context.Context, scope core.Scope) (*core.AuditReport, error)
}

// Deps are the collaborators of the application service, constructed in main.
type Deps struct {
	Companies *core.CompanyStore
	Accounts  core.AccountAdmin
	Periods   core.PeriodGuard
	Ledger    core.LedgerService
	Inventory core.InventoryService
	Posting   DocumentPoster
	Voids     DocumentVoider
	Auditor   Auditor
	Now       func() time.Time
}

type appService struct {
	companies *core.CompanyStore
	accounts  core.AccountAdmin
	periods   core.PeriodGuard
	ledger    core.LedgerService
	inventory core.InventoryService
	posting   DocumentPoster
	voids     DocumentVoider
	auditor   Auditor
	now       func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(d Deps) ApplicationService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &appService{
		companies: d.Companies,
		accounts:  d.Accounts,
		periods:   d.Periods,
		ledger:    d.Ledger,
		inventory: d.Inventory,
		posting:   d.Posting,
		voids:     d.Voids,
		auditor:   d.Auditor,
		now:       now,
	}
}

func (s *appService) PostDocument(ctx context.Context, req PostDocumentRequest) (*core.PostResult, error) {
	doc, err := toDocument(req)
	if err != nil {
		return nil, err
	}
	return s.posting.PostDocument(ctx, req.Scope, doc)
}

func (s *appService) VoidDocument(ctx context.Context, req VoidDocumentRequest) (*core.VoidResult, error) {
	return s.voids.Void(ctx, req.Scope, req.Reference, req.ActorID)
}

func (s *appService) GetAccountBalance(ctx context.Context, scope core.Scope, accountID int64, asOfDate string) (*AccountBalanceResult, error) {
	asOf, err := s.parseDateOrToday(asOfDate)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.GetAccountBalance(ctx, scope, accountID, asOf)
	if err != nil {
		return nil, err
	}
	return &AccountBalanceResult{AccountID: accountID, AsOf: asOf.Format(dateLayout), Balance: balance}, nil
}

func (s *appService) PostManualEntry(ctx context.Context, req ManualEntryRequest) (*EntryResult, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	in := core.EntryInput{
		Date:      date,
		Memo:      req.Memo,
		Reference: req.Reference,
		Source:    core.SourceManual,
		ActorID:   req.ActorID,
	}
	for i, line := range req.Lines {
		debit, err := core.MoneyFromDecimal(line.Debit)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", core.ErrInvalidLine, i+1, err)
		}
		credit, err := core.MoneyFromDecimal(line.Credit)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", core.ErrInvalidLine, i+1, err)
		}
		in.Lines = append(in.Lines, core.LineInput{AccountID: line.AccountID, Debit: debit, Credit: credit, Memo: line.Memo})
	}

	var entry *core.JournalEntry
	if req.Draft {
		entry, err = s.ledger.CreateDraft(ctx, req.Scope, in)
	} else {
		entry, err = s.ledger.Post(ctx, req.Scope, in)
	}
	if err != nil {
		return nil, err
	}
	return &EntryResult{Entry: entry}, nil
}

func (s *appService) PostDraft(ctx context.Context, scope core.Scope, entryID int64) (*EntryResult, error) {
	entry, err := s.ledger.PostDraft(ctx, scope, entryID)
	if err != nil {
		return nil, err
	}
	return &EntryResult{Entry: entry}, nil
}

func (s *appService) DiscardDraft(ctx context.Context, scope core.Scope, entryID int64) error {
	return s.ledger.DiscardDraft(ctx, scope, entryID)
}

func (s *appService) GetEntryByReference(ctx context.Context, scope core.Scope, reference string) (*EntryResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	entry, err := s.ledger.GetEntryByReference(ctx, nil, scope, reference)
	if err != nil {
		return nil, err
	}
	return &EntryResult{Entry: entry}, nil
}

func (s *appService) LockPeriod(ctx context.Context, req PeriodRequest) error {
	return s.periods.LockPeriod(ctx, req.Scope, req.Year, time.Month(req.Month), req.ActorID)
}

func (s *appService) UnlockPeriod(ctx context.Context, req PeriodRequest) error {
	return s.periods.UnlockPeriod(ctx, req.Scope, req.Year, time.Month(req.Month))
}

func (s *appService) CreateCompany(ctx context.Context, tenantID uuid.UUID, code, name string) (*core.Company, error) {
	return s.companies.CreateCompany(ctx, tenantID, code, name)
}

func (s *appService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*core.Account, error) {
	in := core.NewAccount{
		Code:       strings.TrimSpace(req.Code),
		Name:       strings.TrimSpace(req.Name),
		Type:       core.AccountType(strings.ToLower(req.Type)),
		NormalSide: core.NormalSide(strings.ToLower(req.NormalSide)),
	}
	if req.Purpose != "" {
		p := core.Purpose(strings.ToUpper(req.Purpose))
		in.Purpose = &p
	}
	return s.accounts.CreateAccount(ctx, req.Scope, in)
}

func (s *appService) AssignPurpose(ctx context.Context, scope core.Scope, accountID int64, purpose string) error {
	return s.accounts.AssignPurpose(ctx, scope, accountID, core.Purpose(strings.ToUpper(purpose)))
}

func (s *appService) ListAccounts(ctx context.Context, scope core.Scope) (*AccountListResult, error) {
	accounts, err := s.accounts.ListAccounts(ctx, scope)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	return &AccountListResult{Accounts: accounts}, nil
}

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error) {
	return s.inventory.CreateProduct(ctx, req.Scope, core.NewProduct{
		SKU:              req.SKU,
		Name:             req.Name,
		Kind:             core.ProductKind(strings.ToUpper(req.Kind)),
		CostPrice:        req.CostPrice,
		RevenueAccountID: req.RevenueAccountID,
	})
}

func (s *appService) GetStock(ctx context.Context, scope core.Scope, productID int64) (*StockResult, error) {
	qty, err := s.inventory.CurrentStock(ctx, scope, productID)
	if err != nil {
		return nil, err
	}
	return &StockResult{ProductID: productID, Quantity: qty}, nil
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*MovementResult, error) {
	date, err := s.parseDateOrToday(req.Date)
	if err != nil {
		return nil, err
	}
	ref := core.NormalizeReference(req.Reference)
	if core.IsVoidReference(ref) {
		return nil, fmt.Errorf("%w: reference %q uses the reserved void prefix", core.ErrInvalidDocument, ref)
	}
	mv, warn, err := s.inventory.Move(ctx, req.Scope, core.MovementInput{
		ProductID: req.ProductID,
		Type:      core.MovementAdjustment,
		Quantity:  req.Quantity,
		Reference: ref,
		Date:      date,
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &MovementResult{Movement: mv, Warning: warn}, nil
}

func (s *appService) AuditLedger(ctx context.Context, scope core.Scope) (*core.AuditReport, error) {
	return s.auditor.Check(ctx, scope)
}

func toDocument(req PostDocumentRequest) (core.Document, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Document{}, err
	}
	tax, err := core.MoneyFromDecimal(req.Tax)
	if err != nil {
		return core.Document{}, fmt.Errorf("%w: tax: %v", core.ErrInvalidDocument, err)
	}
	doc := core.Document{
		Kind:    core.DocumentKind(strings.ToUpper(req.Kind)),
		Number:  req.Number,
		Date:    date,
		Memo:    req.Memo,
		Payment: core.PaymentMode(strings.ToUpper(req.Payment)),
		Tax:     tax,
		ActorID: req.ActorID,
	}
	if doc.Payment == "" {
		doc.Payment = core.PaymentCredit
	}
	if req.Total != nil {
		total, err := core.MoneyFromDecimal(*req.Total)
		if err != nil {
			return core.Document{}, fmt.Errorf("%w: total: %v", core.ErrInvalidDocument, err)
		}
		doc.Total = &total
	}
	for _, line := range req.Lines {
		doc.Lines = append(doc.Lines, core.DocumentLine{
			ProductID:   line.ProductID,
			AccountID:   line.AccountID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	return doc, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", core.ErrInvalidDocument, s)
	}
	return t, nil
}

func (s *appService) parseDateOrToday(v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		y, m, d := s.now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return parseDate(v)
}
