package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// NegativeStockPolicy decides what a posting does when a sale would take
// stock below zero.
type NegativeStockPolicy string

const (
	NegativeStockWarn   NegativeStockPolicy = "warn"
	NegativeStockReject NegativeStockPolicy = "reject"
)

func (p NegativeStockPolicy) Valid() bool {
	return p == NegativeStockWarn || p == NegativeStockReject
}

type PostResult struct {
	JournalEntryID int64                  `json:"journal_entry_id"`
	Reference      string                 `json:"reference"`
	MovementIDs    []int64                `json:"movement_ids"`
	Warnings       []NegativeStockWarning `json:"warnings,omitempty"`
}

// PostingService projects documents and commits the entry and its movements
// as one transaction.
type PostingService struct {
	txm       TxRunner
	ledger    *Ledger
	inventory *InventoryLedger
	accounts  AccountDirectory
	policy    NegativeStockPolicy
	log       *zap.Logger
}

func NewPostingService(txm TxRunner, ledger *Ledger, inventory *InventoryLedger, accounts AccountDirectory, policy NegativeStockPolicy, log *zap.Logger) *PostingService {
	if log == nil {
		log = zap.NewNop()
	}
	if policy == "" {
		policy = NegativeStockWarn
	}
	return &PostingService{
		txm:       txm,
		ledger:    ledger,
		inventory: inventory,
		accounts:  accounts,
		policy:    policy,
		log:       log,
	}
}

func (s *PostingService) PostDocument(ctx context.Context, scope Scope, doc Document) (*PostResult, error) {
	var result *PostResult
	err := s.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Reset on every attempt; a serialization retry reruns the whole body.
		result = nil
		if err := assertScope(ctx, tx, scope); err != nil {
			return err
		}

		pc, err := s.loadContext(ctx, tx, scope, doc)
		if err != nil {
			return err
		}
		proj, err := Project(doc, pc)
		if err != nil {
			return err
		}

		entry, err := s.ledger.PostTx(ctx, tx, scope, proj.Entry)
		if err != nil {
			return err
		}

		res := &PostResult{JournalEntryID: entry.ID, Reference: entry.Reference, MovementIDs: []int64{}}
		for _, in := range proj.Movements {
			mv, warn, err := s.inventory.MoveTx(ctx, tx, scope, in)
			if err != nil {
				return err
			}
			if warn != nil {
				if s.policy == NegativeStockReject {
					return &InsufficientStockError{Warning: *warn}
				}
				res.Warnings = append(res.Warnings, *warn)
			}
			res.MovementIDs = append(res.MovementIDs, mv.ID)
		}
		result = res
		return nil
	})
	if err != nil {
		s.log.Info("document not posted",
			zap.String("tenant_id", scope.TenantID.String()),
			zap.Int64("company_id", scope.CompanyID),
			zap.String("kind", string(doc.Kind)),
			zap.String("number", doc.Number),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("document posted",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.Int64("company_id", scope.CompanyID),
		zap.String("kind", string(doc.Kind)),
		zap.String("reference", result.Reference),
		zap.Int64("journal_entry_id", result.JournalEntryID),
		zap.Int("movements", len(result.MovementIDs)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// loadContext reads the products and purpose accounts a projection of doc needs.
func (s *PostingService) loadContext(ctx context.Context, tx Querier, scope Scope, doc Document) (ProjectionContext, error) {
	pc := ProjectionContext{
		CompanyID: scope.CompanyID,
		Accounts:  make(map[Purpose]Account),
		Products:  make(map[int64]Product),
	}
	for _, line := range doc.Lines {
		if line.ProductID == nil {
			continue
		}
		if _, ok := pc.Products[*line.ProductID]; ok {
			continue
		}
		p, err := s.inventory.GetProduct(ctx, tx, scope, *line.ProductID)
		if err != nil {
			return pc, err
		}
		pc.Products[p.ID] = *p
	}

	for _, purpose := range RequiredPurposes(doc, pc.Products) {
		res, err := s.accounts.Resolve(ctx, tx, scope, purpose)
		if err != nil {
			return pc, err
		}
		acct, err := res.Require(scope.CompanyID)
		if err != nil {
			return pc, fmt.Errorf("cannot post %s %s: %w", doc.Kind, doc.Number, err)
		}
		pc.Accounts[purpose] = acct
	}
	return pc, nil
}
