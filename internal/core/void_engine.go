package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type VoidResult struct {
	Voided            bool                      `json:"voided"`
	AlreadyProcessed  bool                      `json:"already_processed"`
	Reference         string                    `json:"reference"`
	VoidReference     string                    `json:"void_reference"`
	ReversalEntryID   int64                     `json:"reversal_entry_id,omitempty"`
	ReversedLines     int                       `json:"reversed_lines"`
	ReversedMovements int                       `json:"reversed_movements"`
	StockDeltas       map[int64]decimal.Decimal `json:"stock_deltas"`
	Warnings          []NegativeStockWarning    `json:"warnings,omitempty"`
}

// errVoidRace marks a void that lost the insert race to a concurrent void of
// the same reference. It never leaves this file.
var errVoidRace = errors.New("concurrent void already committed")

// VoidEngine reverses a posted document in both ledgers.
type VoidEngine struct {
	txm       TxRunner
	ledger    *Ledger
	inventory *InventoryLedger
	log       *zap.Logger
	now       func() time.Time
}

func NewVoidEngine(txm TxRunner, ledger *Ledger, inventory *InventoryLedger, log *zap.Logger) *VoidEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &VoidEngine{txm: txm, ledger: ledger, inventory: inventory, log: log, now: time.Now}
}

// WithNow replaces the clock used to date reversals.
func (e *VoidEngine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Void reverses every journal entry and inventory movement posted under
// originalReference. Reversals are dated today; a repeat call reports
// AlreadyProcessed and writes nothing.
func (e *VoidEngine) Void(ctx context.Context, scope Scope, originalReference string, actorID *string) (*VoidResult, error) {
	ref := NormalizeReference(originalReference)
	if err := validateReference(ref); err != nil {
		return nil, err
	}

	var result *VoidResult
	err := e.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		result = nil
		if err := assertScope(ctx, tx, scope); err != nil {
			return err
		}

		done, err := e.alreadyReversed(ctx, tx, scope, ref)
		if err != nil {
			return err
		}
		if done {
			result = alreadyProcessed(ref)
			return nil
		}

		res, err := e.reverse(ctx, tx, scope, ref, actorID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if errors.Is(err, errVoidRace) {
		result, err = alreadyProcessed(ref), nil
	}
	if isConflict(err) {
		// A concurrent void may have committed while every attempt conflicted.
		if done, checkErr := e.alreadyReversed(ctx, e.ledger.pool, scope, ref); checkErr == nil && done {
			result, err = alreadyProcessed(ref), nil
		}
	}
	if err != nil {
		e.log.Info("void rejected",
			zap.String("tenant_id", scope.TenantID.String()),
			zap.Int64("company_id", scope.CompanyID),
			zap.String("reference", ref),
			zap.Error(err),
		)
		return nil, err
	}

	e.log.Info("document voided",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.Int64("company_id", scope.CompanyID),
		zap.String("reference", ref),
		zap.Bool("already_processed", result.AlreadyProcessed),
		zap.Int("reversed_lines", result.ReversedLines),
		zap.Int("reversed_movements", result.ReversedMovements),
	)
	return result, nil
}

func (e *VoidEngine) reverse(ctx context.Context, tx pgx.Tx, scope Scope, ref string, actorID *string) (*VoidResult, error) {
	entries, err := e.loadOriginalEntries(ctx, tx, scope, ref)
	if err != nil {
		return nil, err
	}
	all, err := e.inventory.MovementsByReference(ctx, tx, scope, originalReferences(ref))
	if err != nil {
		return nil, err
	}
	// Stock count adjustments may share a document number but are not part of its posting.
	var movements []InventoryMovement
	for _, m := range all {
		if m.MovementType != MovementVoid && m.MovementType != MovementAdjustment {
			movements = append(movements, m)
		}
	}

	posted, err := checkOriginals(ref, entries, movements)
	if err != nil {
		return nil, err
	}

	today := dateOnly(e.now())
	voidRef := VoidReference(ref)

	var reversal EntryInput
	reversal.Date = today
	reversal.Memo = "void of " + ref
	reversal.Reference = voidRef
	reversal.Source = SourceReversal
	reversal.MovementCount = len(movements)
	reversal.ReversalOfID = &posted[0].ID
	reversal.ActorID = actorID
	ids := make([]int64, 0, len(posted))
	for _, entry := range posted {
		ids = append(ids, entry.ID)
		for _, line := range entry.Lines {
			reversal.Lines = append(reversal.Lines, LineInput{
				AccountID: line.AccountID,
				Debit:     line.Credit,
				Credit:    line.Debit,
				Memo:      line.Memo,
			})
		}
	}

	entry, err := e.ledger.PostTx(ctx, tx, scope, reversal)
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return nil, errVoidRace
		}
		return nil, err
	}
	if err := e.ledger.markVoidedTx(ctx, tx, scope, ids, e.now()); err != nil {
		return nil, err
	}

	res := &VoidResult{
		Voided:          true,
		Reference:       ref,
		VoidReference:   voidRef,
		ReversalEntryID: entry.ID,
		ReversedLines:   len(reversal.Lines),
		StockDeltas:     make(map[int64]decimal.Decimal),
	}
	for i, m := range movements {
		mv, warn, err := e.inventory.MoveTx(ctx, tx, scope, MovementInput{
			ProductID: m.ProductID,
			Type:      MovementVoid,
			Quantity:  m.Quantity.Neg(),
			Reference: voidRef,
			LineNo:    i + 1,
			UnitCost:  m.UnitCost,
			Date:      today,
			Reason:    fmt.Sprintf("void of %s movement %d", m.Reference, m.ID),
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrDuplicateReference):
				return nil, errVoidRace
			case errors.Is(err, ErrProductNotFound):
				return nil, fmt.Errorf("%w: product %d of movement %d", ErrOriginalNotFound, m.ProductID, m.ID)
			}
			return nil, err
		}
		if warn != nil {
			res.Warnings = append(res.Warnings, *warn)
		}
		res.ReversedMovements++
		res.StockDeltas[mv.ProductID] = res.StockDeltas[mv.ProductID].Add(mv.Quantity)
	}
	return res, nil
}

// checkOriginals decides whether the loaded originals can be reversed and
// returns the POSTED entries to reverse.
func checkOriginals(ref string, entries []JournalEntry, movements []InventoryMovement) ([]JournalEntry, error) {
	var posted []JournalEntry
	voided := 0
	for _, entry := range entries {
		switch entry.Status {
		case EntryPosted:
			posted = append(posted, entry)
		case EntryVoided:
			voided++
		}
	}

	if voided > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyVoided, ref)
	}
	if len(posted) == 0 {
		if len(movements) > 0 {
			return nil, &PartialOriginalDataError{Reference: ref, FoundMovements: len(movements)}
		}
		return nil, fmt.Errorf("%w: %s", ErrNothingToVoid, ref)
	}

	expected := 0
	for _, entry := range posted {
		if len(entry.Lines) == 0 {
			return nil, fmt.Errorf("%w: journal entry %d of %s has no lines", ErrOriginalNotFound, entry.ID, ref)
		}
		expected += entry.MovementCount
	}
	if expected != len(movements) {
		return nil, &PartialOriginalDataError{
			Reference:         ref,
			Entries:           len(posted),
			ExpectedMovements: expected,
			FoundMovements:    len(movements),
		}
	}
	return posted, nil
}

func (e *VoidEngine) alreadyReversed(ctx context.Context, q Querier, scope Scope, ref string) (bool, error) {
	var done bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM journal_entries
			WHERE tenant_id = $1 AND company_id = $2 AND reference = ANY($3)
		) OR EXISTS (
			SELECT 1 FROM inventory_movements
			WHERE tenant_id = $1 AND company_id = $2 AND reference = ANY($3)
		)
	`, scope.TenantID, scope.CompanyID, voidReferences(ref)).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("failed to check void status of %s: %w", ref, err)
	}
	return done, nil
}

// loadOriginalEntries locks every non-reversal entry under ref.
func (e *VoidEngine) loadOriginalEntries(ctx context.Context, q Querier, scope Scope, ref string) ([]JournalEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM journal_entries
		WHERE tenant_id = $1 AND company_id = $2 AND reference = $3 AND source <> $4
		ORDER BY id
		FOR UPDATE
	`, scope.TenantID, scope.CompanyID, ref, string(SourceReversal))
	if err != nil {
		return nil, fmt.Errorf("failed to query entries of %s: %w", ref, err)
	}
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries of %s: %w", ref, err)
	}

	for i := range entries {
		entries[i].Lines, err = loadLines(ctx, q, entries[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func alreadyProcessed(ref string) *VoidResult {
	return &VoidResult{
		Voided:           true,
		AlreadyProcessed: true,
		Reference:        ref,
		VoidReference:    VoidReference(ref),
		StockDeltas:      map[int64]decimal.Decimal{},
	}
}
