package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"urutiq-ledger/internal/config"
	"urutiq-ledger/internal/db"
	"urutiq-ledger/internal/logging"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down]")
		flag.PrintDefaults()
	}
	flag.Parse()

	dir := db.Up
	if flag.NArg() > 0 {
		dir = db.Direction(flag.Arg(0))
	}
	if dir != db.Up && dir != db.Down {
		flag.Usage()
		os.Exit(2)
	}

	log := logging.New(logging.Config{Level: "info", Format: "console"})
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	changed, err := db.Migrate(cfg.DatabaseURL, dir)
	if err != nil {
		log.Fatal("migration failed", zap.String("direction", string(dir)), zap.Error(err))
	}
	if !changed {
		log.Info("schema already up to date", zap.String("direction", string(dir)))
		return
	}
	log.Info("migrations applied", zap.String("direction", string(dir)))
}
