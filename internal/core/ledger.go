package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerService is the posting engine: the append-only system of record for
// every financial effect.
type LedgerService interface {
	Post(ctx context.Context, scope Scope, in EntryInput) (*JournalEntry, error)
	PostTx(ctx context.Context, tx Querier, scope Scope, in EntryInput) (*JournalEntry, error)
	CreateDraft(ctx context.Context, scope Scope, in EntryInput) (*JournalEntry, error)
	PostDraft(ctx context.Context, scope Scope, entryID int64) (*JournalEntry, error)
	DiscardDraft(ctx context.Context, scope Scope, entryID int64) error
	GetEntry(ctx context.Context, q Querier, scope Scope, entryID int64) (*JournalEntry, error)
	GetEntryByReference(ctx context.Context, q Querier, scope Scope, reference string) (*JournalEntry, error)
	GetAccountBalance(ctx context.Context, scope Scope, accountID int64, asOf time.Time) (Money, error)
}

type Ledger struct {
	pool  *pgxpool.Pool
	txm   TxRunner
	guard PeriodGuard
}

func NewLedger(pool *pgxpool.Pool, txm TxRunner, guard PeriodGuard) *Ledger {
	return &Ledger{pool: pool, txm: txm, guard: guard}
}

var _ LedgerService = (*Ledger)(nil)

// Post commits a manual entry in its own transaction.
func (l *Ledger) Post(ctx context.Context, scope Scope, in EntryInput) (*JournalEntry, error) {
	if in.Source == "" {
		in.Source = SourceManual
	}
	var entry *JournalEntry
	err := l.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := assertScope(ctx, tx, scope); err != nil {
			return err
		}
		var err error
		entry, err = l.PostTx(ctx, tx, scope, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PostTx validates and persists a POSTED entry inside the caller's transaction.
// The caller owns commit and rollback, so inventory movements written on the
// same tx succeed or fail together with the entry.
func (l *Ledger) PostTx(ctx context.Context, tx Querier, scope Scope, in EntryInput) (*JournalEntry, error) {
	if err := validateEntryHeader(in); err != nil {
		return nil, err
	}
	if err := validateLines(in.Lines); err != nil {
		return nil, err
	}
	if err := l.assertAccounts(ctx, tx, scope, in.Lines); err != nil {
		return nil, err
	}
	if err := l.guard.AssertOpen(ctx, tx, scope, in.Date); err != nil {
		return nil, err
	}
	return l.insertEntry(ctx, tx, scope, in, EntryPosted)
}

// CreateDraft stores an entry that is not yet part of the ledger. Only the
// shape of each line is checked; balance is checked by PostDraft.
func (l *Ledger) CreateDraft(ctx context.Context, scope Scope, in EntryInput) (*JournalEntry, error) {
	if in.Source == "" {
		in.Source = SourceManual
	}
	if err := validateEntryHeader(in); err != nil {
		return nil, err
	}
	for i, line := range in.Lines {
		if err := validateLineShape(i+1, line); err != nil {
			return nil, err
		}
	}
	var entry *JournalEntry
	err := l.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := assertScope(ctx, tx, scope); err != nil {
			return err
		}
		if err := l.assertAccounts(ctx, tx, scope, in.Lines); err != nil {
			return err
		}
		var err error
		entry, err = l.insertEntry(ctx, tx, scope, in, EntryDraft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *Ledger) PostDraft(ctx context.Context, scope Scope, entryID int64) (*JournalEntry, error) {
	var entry *JournalEntry
	err := l.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := assertScope(ctx, tx, scope); err != nil {
			return err
		}
		draft, err := l.loadEntry(ctx, tx, scope, "id = $3", entryID, true)
		if err != nil {
			return err
		}
		if draft.Status != EntryDraft {
			return fmt.Errorf("%w: entry %d is %s", ErrInvalidStatus, entryID, draft.Status)
		}
		lines := make([]LineInput, 0, len(draft.Lines))
		for _, jl := range draft.Lines {
			lines = append(lines, LineInput{AccountID: jl.AccountID, Debit: jl.Debit, Credit: jl.Credit, Memo: jl.Memo})
		}
		if err := validateLines(lines); err != nil {
			return err
		}
		if err := l.assertAccounts(ctx, tx, scope, lines); err != nil {
			return err
		}
		if err := l.guard.AssertOpen(ctx, tx, scope, draft.EntryDate); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "UPDATE journal_entries SET status = $1 WHERE id = $2", string(EntryPosted), entryID); err != nil {
			return fmt.Errorf("failed to post draft %d: %w", entryID, err)
		}
		draft.Status = EntryPosted
		entry = draft
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DiscardDraft deletes a DRAFT entry and its lines. Entries in any other
// status are never deleted.
func (l *Ledger) DiscardDraft(ctx context.Context, scope Scope, entryID int64) error {
	return l.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := assertScope(ctx, tx, scope); err != nil {
			return err
		}
		draft, err := l.loadEntry(ctx, tx, scope, "id = $3", entryID, true)
		if err != nil {
			return err
		}
		if draft.Status != EntryDraft {
			return fmt.Errorf("%w: entry %d is %s", ErrInvalidStatus, entryID, draft.Status)
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM journal_entries
			WHERE id = $1 AND tenant_id = $2 AND company_id = $3 AND status = $4
		`, entryID, scope.TenantID, scope.CompanyID, string(EntryDraft))
		if err != nil {
			return fmt.Errorf("failed to discard draft %d: %w", entryID, err)
		}
		return nil
	})
}

func (l *Ledger) GetEntry(ctx context.Context, q Querier, scope Scope, entryID int64) (*JournalEntry, error) {
	if q == nil {
		q = l.pool
	}
	return l.loadEntry(ctx, q, scope, "id = $3", entryID, false)
}

func (l *Ledger) GetEntryByReference(ctx context.Context, q Querier, scope Scope, reference string) (*JournalEntry, error) {
	if q == nil {
		q = l.pool
	}
	return l.loadEntry(ctx, q, scope, "reference = $3", NormalizeReference(reference), false)
}

// GetAccountBalance returns the balance of accountID on its normal side,
// over POSTED and VOIDED entries dated on or before asOf. A voided entry
// and its reversal both count, so they cancel.
func (l *Ledger) GetAccountBalance(ctx context.Context, scope Scope, accountID int64, asOf time.Time) (Money, error) {
	var owner Scope
	var side NormalSide
	err := l.pool.QueryRow(ctx, "SELECT tenant_id, company_id, normal_side FROM accounts WHERE id = $1", accountID).
		Scan(&owner.TenantID, &owner.CompanyID, &side)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: account id %d", ErrAccountNotFound, accountID)
		}
		return 0, fmt.Errorf("failed to fetch account %d: %w", accountID, err)
	}
	if owner != scope {
		return 0, fmt.Errorf("%w: account %d is not in company %d", ErrCrossCompanyAccount, accountID, scope.CompanyID)
	}

	var debit, credit int64
	err = l.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(jl.debit), 0)::BIGINT, COALESCE(SUM(jl.credit), 0)::BIGINT
		FROM journal_lines jl
		JOIN journal_entries je ON je.id = jl.entry_id
		WHERE jl.account_id = $1
		  AND je.tenant_id = $2 AND je.company_id = $3
		  AND je.status IN ('POSTED', 'VOIDED')
		  AND je.entry_date <= $4
	`, accountID, scope.TenantID, scope.CompanyID, dateOnly(asOf)).Scan(&debit, &credit)
	if err != nil {
		return 0, fmt.Errorf("failed to sum account %d: %w", accountID, err)
	}
	if side == CreditSide {
		return Money(credit - debit), nil
	}
	return Money(debit - credit), nil
}

// markVoidedTx flips POSTED entries to VOIDED. Rows are never deleted.
func (l *Ledger) markVoidedTx(ctx context.Context, tx Querier, scope Scope, ids []int64, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE journal_entries SET status = $1, voided_at = $2
		WHERE id = ANY($3) AND tenant_id = $4 AND company_id = $5 AND status = $6
	`, string(EntryVoided), at, ids, scope.TenantID, scope.CompanyID, string(EntryPosted))
	if err != nil {
		return fmt.Errorf("failed to mark entries voided: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("%w: expected to void %d entries, updated %d", ErrInvalidStatus, len(ids), tag.RowsAffected())
	}
	return nil
}

func (l *Ledger) insertEntry(ctx context.Context, tx Querier, scope Scope, in EntryInput, status EntryStatus) (*JournalEntry, error) {
	entry := &JournalEntry{
		TenantID:      scope.TenantID,
		CompanyID:     scope.CompanyID,
		EntryDate:     dateOnly(in.Date),
		Memo:          in.Memo,
		Reference:     NormalizeReference(in.Reference),
		Status:        status,
		Source:        in.Source,
		MovementCount: in.MovementCount,
		ReversalOfID:  in.ReversalOfID,
		CreatedBy:     in.ActorID,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO journal_entries (tenant_id, company_id, entry_date, memo, reference, status, source, movement_count, reversal_of_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, scope.TenantID, scope.CompanyID, entry.EntryDate, entry.Memo, entry.Reference, string(status),
		string(entry.Source), entry.MovementCount, entry.ReversalOfID, entry.CreatedBy).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "journal_entries_reference_uniq") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, entry.Reference)
		}
		return nil, fmt.Errorf("failed to insert journal entry: %w", err)
	}

	entry.Lines = make([]JournalLine, 0, len(in.Lines))
	for i, line := range in.Lines {
		jl := JournalLine{
			EntryID:   entry.ID,
			LineNo:    i + 1,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO journal_lines (entry_id, line_no, account_id, debit, credit, memo)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, entry.ID, jl.LineNo, jl.AccountID, int64(jl.Debit), int64(jl.Credit), jl.Memo).Scan(&jl.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert journal line %d: %w", jl.LineNo, err)
		}
		entry.Lines = append(entry.Lines, jl)
	}
	return entry, nil
}

const entryColumns = "id, tenant_id, company_id, entry_date, memo, reference, status, source, movement_count, reversal_of_id, created_by, created_at, voided_at"

func scanEntry(row pgx.Row) (*JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.CompanyID, &e.EntryDate, &e.Memo, &e.Reference, &e.Status, &e.Source,
		&e.MovementCount, &e.ReversalOfID, &e.CreatedBy, &e.CreatedAt, &e.VoidedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// loadEntry fetches one entry of scope matching where (which binds $3) together
// with its lines.
func (l *Ledger) loadEntry(ctx context.Context, q Querier, scope Scope, where string, arg any, forUpdate bool) (*JournalEntry, error) {
	query := "SELECT " + entryColumns + " FROM journal_entries WHERE tenant_id = $1 AND company_id = $2 AND " + where
	if forUpdate {
		query += " FOR UPDATE"
	}
	entry, err := scanEntry(q.QueryRow(ctx, query, scope.TenantID, scope.CompanyID, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: journal entry %v", ErrOriginalNotFound, arg)
		}
		return nil, fmt.Errorf("failed to load journal entry %v: %w", arg, err)
	}
	entry.Lines, err = loadLines(ctx, q, entry.ID)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func loadLines(ctx context.Context, q Querier, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, entry_id, line_no, account_id, debit, credit, memo
		FROM journal_lines
		WHERE entry_id = $1
		ORDER BY line_no
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines of entry %d: %w", entryID, err)
	}
	defer rows.Close()

	var lines []JournalLine
	for rows.Next() {
		var jl JournalLine
		var debit, credit int64
		if err := rows.Scan(&jl.ID, &jl.EntryID, &jl.LineNo, &jl.AccountID, &debit, &credit, &jl.Memo); err != nil {
			return nil, fmt.Errorf("failed to scan journal line: %w", err)
		}
		jl.Debit, jl.Credit = Money(debit), Money(credit)
		lines = append(lines, jl)
	}
	return lines, rows.Err()
}

// assertAccounts fails unless every line's account exists inside scope.
func (l *Ledger) assertAccounts(ctx context.Context, q Querier, scope Scope, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, line := range lines {
		if !seen[line.AccountID] {
			seen[line.AccountID] = true
			ids = append(ids, line.AccountID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := q.Query(ctx, "SELECT id, tenant_id, company_id FROM accounts WHERE id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	owners := make(map[int64]Scope, len(ids))
	for rows.Next() {
		var id int64
		var s Scope
		if err := rows.Scan(&id, &s.TenantID, &s.CompanyID); err != nil {
			return fmt.Errorf("failed to scan account: %w", err)
		}
		owners[id] = s
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read accounts: %w", err)
	}

	for _, id := range ids {
		owner, ok := owners[id]
		if !ok {
			return fmt.Errorf("%w: account id %d", ErrAccountNotFound, id)
		}
		if owner != scope {
			return fmt.Errorf("%w: account %d is not in company %d", ErrCrossCompanyAccount, id, scope.CompanyID)
		}
	}
	return nil
}

func validateEntryHeader(in EntryInput) error {
	if in.Date.IsZero() {
		return invalidDocument("entry date is required")
	}
	ref := NormalizeReference(in.Reference)
	if in.Source == SourceReversal {
		if !IsVoidReference(ref) {
			return invalidDocument("reversal reference %q must start with %s", ref, voidPrefix)
		}
		return nil
	}
	return validateReference(ref)
}

// validateLines enforces the posting invariants that need no store access:
// at least two lines, exactly one positive side per line, and equal totals.
func validateLines(lines []LineInput) error {
	if len(lines) < 2 {
		return fmt.Errorf("%w: an entry needs at least two lines, got %d", ErrInvalidLine, len(lines))
	}
	var debit, credit Money
	for i, line := range lines {
		if err := validateLineShape(i+1, line); err != nil {
			return err
		}
		var ok bool
		if debit, ok = AddMoney(debit, line.Debit); !ok {
			return invalidLine(i+1, "debit total is out of range")
		}
		if credit, ok = AddMoney(credit, line.Credit); !ok {
			return invalidLine(i+1, "credit total is out of range")
		}
	}
	if debit != credit {
		return unbalanced(debit, credit)
	}
	return nil
}

func validateLineShape(lineNo int, line LineInput) error {
	switch {
	case line.AccountID <= 0:
		return invalidLine(lineNo, "account is required")
	case line.Debit.IsNegative() || line.Credit.IsNegative():
		return invalidLine(lineNo, "negative amount")
	case line.Debit > 0 && line.Credit > 0:
		return invalidLine(lineNo, "both debit and credit are set")
	case line.Debit.IsZero() && line.Credit.IsZero():
		return invalidLine(lineNo, "neither debit nor credit is set")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
