package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/ingest"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/normalize"
)

// FileError records one skipped input file. A failure on one file never
// aborts the run.
type FileError struct {
	Path string
	Err  error
}

// RunResult is the canonical transaction table for one batch run, with
// per-file results in input order regardless of worker scheduling.
type RunResult struct {
	RunID   string
	Files   []*normalize.FileResult
	Records []normalize.Record
	Audit   []normalize.AuditEntry
	Skipped []FileError
}

// Runner processes input files through match → transform → normalize.
// Files are independent, so workers process them concurrently; the merge
// step reassembles results in input order to keep the run deterministic.
type Runner struct {
	normalizer *normalize.Normalizer
	workers    int
	log        zerolog.Logger
}

// NewRunner builds a runner with the given worker count (minimum 1).
func NewRunner(normalizer *normalize.Normalizer, workers int, log zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		normalizer: normalizer,
		workers:    workers,
		log:        log.With().Str("component", "runner").Logger(),
	}
}

// Run processes every path. Unreadable or empty files are logged and
// skipped; the rest of the batch continues.
func (r *Runner) Run(ctx context.Context, paths []string) *RunResult {
	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Logger()
	log.Info().Int("files", len(paths)).Int("workers", r.workers).Msg("starting batch run")

	type slot struct {
		result *normalize.FileResult
		err    error
	}
	slots := make([]slot, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case i, ok := <-jobs:
					if !ok {
						return
					}
					tbl, err := ingest.Load(paths[i])
					if err != nil {
						slots[i] = slot{err: err}
						continue
					}
					slots[i] = slot{result: r.normalizer.NormalizeFile(tbl)}
				}
			}
		}()
	}

	for i := range paths {
		select {
		case <-ctx.Done():
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	result := &RunResult{RunID: runID}
	seen := make(map[string]string)
	for i, s := range slots {
		switch {
		case s.err != nil:
			log.Warn().Str("file", paths[i]).Err(s.err).Msg("file skipped")
			result.Skipped = append(result.Skipped, FileError{Path: paths[i], Err: s.err})
		case s.result != nil:
			result.Files = append(result.Files, s.result)
			result.Audit = append(result.Audit, s.result.Audit...)
			for _, rec := range s.result.Records {
				// Within-file collisions are flagged by the normalizer;
				// the merge catches collisions across files.
				first, ok := seen[rec.TxnID]
				switch {
				case !ok:
					seen[rec.TxnID] = s.result.Source
				case first != s.result.Source && !rec.HasFlag(normalize.FlagIdentityCollision):
					rec = rec.WithFlag(normalize.FlagIdentityCollision)
					log.Warn().
						Str("txn_id", rec.TxnID).
						Str("file", s.result.Source).
						Str("first_seen_file", first).
						Msg("identity collision across files")
					result.Audit = append(result.Audit, normalize.AuditEntry{
						File:  s.result.Source,
						Row:   rec.SourceRow,
						TxnID: rec.TxnID,
						Flag:  normalize.FlagIdentityCollision,
						Note:  fmt.Sprintf("a row in %s hashed to the same transaction id", first),
					})
				}
				result.Records = append(result.Records, rec)
			}
		}
	}
	log.Info().
		Int("records", len(result.Records)).
		Int("skipped", len(result.Skipped)).
		Msg("batch run complete")
	return result
}

// ListCSVFiles returns the CSV files directly under dir, sorted by name so
// input order is stable across runs.
func ListCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
