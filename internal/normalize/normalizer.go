package normalize

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/ingest"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/schema"
)

// Options tunes the normalizer's heuristics. Zero values fall back to the
// documented defaults.
type Options struct {
	// MerchantFallbackThreshold is the fraction of blank-merchant rows above
	// which merchants are backfilled from descriptions. Default 0.5.
	MerchantFallbackThreshold float64

	// OutlierLimit flags amounts whose magnitude exceeds it. Default 10000.
	OutlierLimit decimal.Decimal

	// OverrideMarker is the description substring that marks a manual
	// override. Default "2x".
	OverrideMarker string
}

func (o Options) withDefaults() Options {
	if o.MerchantFallbackThreshold <= 0 {
		o.MerchantFallbackThreshold = 0.5
	}
	if o.OutlierLimit.IsZero() {
		o.OutlierLimit = decimal.NewFromInt(10000)
	}
	if o.OverrideMarker == "" {
		o.OverrideMarker = "2x"
	}
	return o
}

// AuditEntry is one row-level anomaly surfaced in the dedicated audit
// collection.
type AuditEntry struct {
	File  string
	Row   int
	TxnID string
	Flag  QualityFlag
	Note  string
}

// FileResult is the canonical output for one input file.
type FileResult struct {
	Source  string
	Match   schema.MatchResult
	Records []Record
	Audit   []AuditEntry
}

// Normalizer orchestrates matching, transformation, identity hashing, and
// sharing-status derivation per input file. It holds no per-file state and
// is safe to share across concurrent workers.
type Normalizer struct {
	catalog *schema.Catalog
	opts    Options
	log     zerolog.Logger
}

// New builds a Normalizer over a loaded catalog.
func New(catalog *schema.Catalog, opts Options, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		catalog: catalog,
		opts:    opts.withDefaults(),
		log:     log.With().Str("component", "normalizer").Logger(),
	}
}

// NormalizeFile turns one raw table into canonical records. Row anomalies
// become quality flags and audit entries, never errors.
func (n *Normalizer) NormalizeFile(tbl *ingest.RawTable) *FileResult {
	match := n.catalog.Match(tbl.Headers)
	log := n.log.With().Str("file", tbl.Name).Logger()
	event := log.Info().
		Str("schema", match.Definition.ID).
		Int("required_hits", match.RequiredHits).
		Int("optional_hits", match.OptionalHits)
	if match.Fallback {
		event = event.Bool("fallback", true).Strs("missing_required", match.MissingRequired)
	}
	event.Msg("schema matched")

	transformer := NewTransformer(match, n.opts.MerchantFallbackThreshold, log)
	records := transformer.Apply(tbl)

	result := &FileResult{Source: tbl.Name, Match: match}
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		rec.TxnID = TxnID(rec.Date, rec.Amount, rec.Description, rec.Account)
		rec.SharingStatus = DeriveSharingStatus(rec.SharedFlag, rec.SplitPercent)

		rec = n.flagAnomalies(rec)
		if prev, dup := seen[rec.TxnID]; dup {
			rec = rec.WithFlag(FlagIdentityCollision)
			log.Warn().
				Str("txn_id", rec.TxnID).
				Int("row", rec.SourceRow).
				Int("first_seen_row", prev).
				Msg("identity collision within file")
		} else {
			seen[rec.TxnID] = rec.SourceRow
		}

		for _, flag := range rec.Flags {
			result.Audit = append(result.Audit, AuditEntry{
				File:  tbl.Name,
				Row:   rec.SourceRow,
				TxnID: rec.TxnID,
				Flag:  flag,
				Note:  auditNoteFor(flag, rec),
			})
		}
		result.Records = append(result.Records, rec)
	}
	return result
}

func (n *Normalizer) flagAnomalies(rec Record) Record {
	if rec.Date == nil {
		rec = rec.WithFlag(FlagMissingDate)
	}
	if rec.Amount.IsNegative() {
		rec = rec.WithFlag(FlagNegativeAmount)
	}
	if rec.Amount.Abs().GreaterThan(n.opts.OutlierLimit) {
		rec = rec.WithFlag(FlagOutlierAmount)
	}
	if containsFold(rec.Description, n.opts.OverrideMarker) ||
		containsFold(rec.OriginalDescription, n.opts.OverrideMarker) {
		rec = rec.WithFlag(FlagManualOverride)
	}
	return rec
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func auditNoteFor(flag QualityFlag, rec Record) string {
	switch flag {
	case FlagMissingDate:
		return "no parseable date; row sorts before dated rows"
	case FlagNegativeAmount:
		return fmt.Sprintf("negative amount %s", rec.Amount.StringFixed(2))
	case FlagOutlierAmount:
		return fmt.Sprintf("amount %s exceeds outlier limit", rec.Amount.StringFixed(2))
	case FlagManualOverride:
		return "description carries a manual override marker"
	case FlagIdentityCollision:
		return "another row in this file hashed to the same transaction id"
	default:
		return string(flag)
	}
}
