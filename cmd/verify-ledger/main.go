// Command verify-ledger audits every company of a tenant and exits non-zero
// when any integrity check fails.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"urutiq-ledger/internal/config"
	"urutiq-ledger/internal/core"
	"urutiq-ledger/internal/db"
	"urutiq-ledger/internal/logging"
)

func main() {
	tenant := flag.String("tenant", "", "tenant UUID to audit")
	company := flag.Int64("company", 0, "audit only this company ID")
	flag.Parse()

	log := logging.New(logging.Config{Level: "info", Format: "console"})
	defer func() { _ = log.Sync() }()

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		log.Fatal("-tenant must be a UUID", zap.String("tenant", *tenant))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, db.Options{
		URL:              cfg.DatabaseURL,
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: cfg.DBStatementTimeout,
	})
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	companies, err := core.NewCompanyStore(pool).ListCompanies(ctx, tenantID)
	if err != nil {
		log.Fatal("failed to list companies", zap.Error(err))
	}

	auditor := core.NewAuditor(pool)
	failed := 0
	for _, c := range companies {
		if *company != 0 && c.ID != *company {
			continue
		}
		report, err := auditor.Check(ctx, c.Scope())
		if err != nil {
			log.Fatal("audit failed", zap.Int64("company_id", c.ID), zap.Error(err))
		}
		if report.OK() {
			log.Info("[PASS]", zap.Int64("company_id", c.ID), zap.String("code", c.Code))
			continue
		}
		failed++
		log.Error("[FAIL]",
			zap.Int64("company_id", c.ID),
			zap.String("code", c.Code),
			zap.Any("unbalanced_entries", report.UnbalancedEntries),
			zap.Any("stock_mismatches", report.StockMismatches),
			zap.Strings("unreversed_voids", report.UnreversedVoids),
		)
	}

	if failed > 0 {
		// Deferred cleanups do not run after os.Exit.
		pool.Close()
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("[DONE] all companies balanced", zap.Int("companies", len(companies)))
}
