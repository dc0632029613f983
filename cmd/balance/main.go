package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/config"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/gcsfetch"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/ingest"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/ledger"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/logger"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/normalize"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/pipeline"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/schema"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runBatch()
	case "match":
		runMatch()
	case "pull":
		runPull()
	case "report":
		runReport()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Balance CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  balance <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Ingest input files, build the ledger, and reconcile")
	fmt.Println("  match     Show how one file's headers resolve against the catalog")
	fmt.Println("  pull      Download input CSVs from Cloud Storage")
	fmt.Println("  report    Print the full ledger and reconciliation report")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'balance <command> -h' for more information on a command.")
}

func loadAll(configPath string, log zerolog.Logger) (config.Config, *schema.Catalog) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading configuration failed")
	}
	catalog, err := schema.Load(cfg.Inputs.SchemaCatalog)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading schema catalog failed")
	}
	return cfg, catalog
}

// buildLedger executes the whole pipeline: list inputs, normalize them
// concurrently, split rent from expense records, and build the ledger.
func buildLedger(cfg config.Config, catalog *schema.Catalog, workers int, log zerolog.Logger) (*pipeline.RunResult, *ledger.Ledger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	paths, err := pipeline.ListCSVFiles(cfg.Inputs.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Inputs.Dir).Msg("Listing input files failed")
	}
	if len(paths) == 0 {
		log.Fatal().Str("dir", cfg.Inputs.Dir).Msg("No input files found")
	}

	normalizer := normalize.New(catalog, normalize.Options{
		MerchantFallbackThreshold: cfg.MerchantFallbackThreshold,
		OutlierLimit:              cfg.OutlierLimit,
		OverrideMarker:            cfg.OverrideMarker,
	}, log)
	result := pipeline.NewRunner(normalizer, workers, log).Run(ctx, paths)

	var rent, expenses []normalize.Record
	for _, rec := range result.Records {
		if cfg.IsRentSchema(rec.DataSourceName) {
			rent = append(rent, rec)
		} else {
			expenses = append(expenses, rec)
		}
	}
	return result, ledger.Build(cfg, rent, expenses, log)
}

func runBatch() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "configs/balance.yaml", "Path to the application config")
	dir := fs.String("dir", "", "Input directory (overrides config)")
	workers := fs.Int("workers", 4, "Concurrent file workers")
	verbose := fs.Bool("verbose", false, "Debug logging")
	fs.Parse(os.Args[2:])

	log := logger.New(*verbose)
	cfg, catalog := loadAll(*configPath, log)
	if *dir != "" {
		cfg.Inputs.Dir = *dir
	}

	result, led := buildLedger(cfg, catalog, *workers, log)
	recon := ledger.Reconcile(led, cfg.ReconcileTolerance)

	fmt.Printf("\n=== Run %s ===\n", result.RunID)
	fmt.Printf("files processed: %d, skipped: %d\n", len(result.Files), len(result.Skipped))
	fmt.Printf("canonical records: %d, ledger entries: %d\n", len(result.Records), len(led.Entries))
	fmt.Printf("audit entries: %d\n\n", len(result.Audit))
	fmt.Print(recon.Summary())

	if !recon.Reconciled {
		log.Error().Msg("Reconciliation failed; inspect upstream data and rules")
	}
}

func runReport() {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "configs/balance.yaml", "Path to the application config")
	dir := fs.String("dir", "", "Input directory (overrides config)")
	workers := fs.Int("workers", 4, "Concurrent file workers")
	fs.Parse(os.Args[2:])

	log := logger.New(false)
	cfg, catalog := loadAll(*configPath, log)
	if *dir != "" {
		cfg.Inputs.Dir = *dir
	}

	_, led := buildLedger(cfg, catalog, *workers, log)
	recon := ledger.Reconcile(led, cfg.ReconcileTolerance)

	fmt.Printf("\n=== Ledger: %s / %s ===\n", led.PartyA, led.PartyB)
	fmt.Printf("%-10s  %-10s  %-10s  %12s  %12s  %s\n",
		"date", "payer", "kind", "impact", "balance", "note")
	for _, e := range led.Entries {
		date := ""
		if e.Record.Date != nil {
			date = e.Record.Date.Format("2006-01-02")
		}
		fmt.Printf("%-10s  %-10s  %-10s  %12s  %12s  %s\n",
			date, e.Payer, e.Kind,
			e.BalanceImpact.StringFixed(2), e.RunningBalance.StringFixed(2), e.AuditNote)
	}
	fmt.Println()
	fmt.Print(recon.Summary())
}

func runMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", "configs/balance.yaml", "Path to the application config")
	file := fs.String("file", "", "Input file to match")
	fs.Parse(os.Args[2:])

	log := logger.New(false)
	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}
	_, catalog := loadAll(*configPath, log)

	tbl, err := ingest.Load(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Reading file failed")
	}
	match := catalog.Match(tbl.Headers)

	fmt.Printf("\n=== Match for %s ===\n", tbl.Name)
	fmt.Printf("schema:        %s\n", match.Definition.ID)
	fmt.Printf("fallback:      %v\n", match.Fallback)
	fmt.Printf("required hits: %d\n", match.RequiredHits)
	fmt.Printf("optional hits: %d\n", match.OptionalHits)
	if len(match.MissingRequired) > 0 {
		fmt.Printf("missing:       %v\n", match.MissingRequired)
	}
	if len(match.Unrecognized) > 0 {
		fmt.Printf("unrecognized:  %v\n", match.Unrecognized)
	}
	fmt.Println("\nheader map:")
	for _, h := range tbl.Headers {
		if field, ok := match.HeaderMap[h]; ok {
			fmt.Printf("  %-30s -> %s\n", h, field)
		} else {
			fmt.Printf("  %-30s -> (extras)\n", h)
		}
	}
}

func runPull() {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	configPath := fs.String("config", "configs/balance.yaml", "Path to the application config")
	fs.Parse(os.Args[2:])

	log := logger.New(false)
	cfg, _ := loadAll(*configPath, log)
	if cfg.GCS.Bucket == "" {
		log.Fatal().Msg("Error: gcs.bucket is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	paths, err := gcsfetch.PullCSVs(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix, cfg.Inputs.Dir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Pull failed")
	}
	fmt.Printf("Downloaded %d files to %s\n", len(paths), cfg.Inputs.Dir)
}
