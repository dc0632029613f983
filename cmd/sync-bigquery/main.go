package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/config"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/export"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/ledger"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/logger"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/normalize"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/pipeline"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/schema"
)

// sync-bigquery runs the full pipeline and streams the canonical table plus
// the ledger to BigQuery for the reporting consumers.
func main() {
	configPath := flag.String("config", "configs/balance.yaml", "Path to the application config")
	dir := flag.String("dir", "", "Input directory (overrides config)")
	workers := flag.Int("workers", 4, "Concurrent file workers")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	log := logger.New(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading configuration failed")
	}
	catalog, err := schema.Load(cfg.Inputs.SchemaCatalog)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading schema catalog failed")
	}
	if *dir != "" {
		cfg.Inputs.Dir = *dir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	paths, err := pipeline.ListCSVFiles(cfg.Inputs.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Inputs.Dir).Msg("Listing input files failed")
	}

	normalizer := normalize.New(catalog, normalize.Options{
		MerchantFallbackThreshold: cfg.MerchantFallbackThreshold,
		OutlierLimit:              cfg.OutlierLimit,
		OverrideMarker:            cfg.OverrideMarker,
	}, log)
	result := pipeline.NewRunner(normalizer, *workers, log).Run(ctx, paths)

	var rent, expenses []normalize.Record
	for _, rec := range result.Records {
		if cfg.IsRentSchema(rec.DataSourceName) {
			rent = append(rent, rec)
		} else {
			expenses = append(expenses, rec)
		}
	}
	led := ledger.Build(cfg, rent, expenses, log)

	client, err := export.NewClient(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating BigQuery client failed")
	}
	defer client.Close()

	if err := client.InsertCanonical(ctx, result.RunID, result.Records); err != nil {
		log.Fatal().Err(err).Msg("Canonical export failed")
	}
	if err := client.InsertLedger(ctx, result.RunID, led.Entries); err != nil {
		log.Fatal().Err(err).Msg("Ledger export failed")
	}

	count, err := client.CountRunRows(ctx, "canonical_transactions", result.RunID)
	if err != nil {
		log.Warn().Err(err).Msg("Export verification query failed")
	} else if count != int64(len(result.Records)) {
		log.Warn().
			Int64("exported", count).
			Int("expected", len(result.Records)).
			Msg("Export row count mismatch (streaming buffer may lag)")
	}

	fmt.Printf("Exported run %s: %d canonical rows, %d ledger rows\n",
		result.RunID, len(result.Records), len(led.Entries))
	os.Exit(0)
}
