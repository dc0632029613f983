package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/ingest"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/schema"
)

// canonicalFields is the fixed, source-independent field set rows normalize
// into. Anything a schema maps outside this set lands in Extras.
var canonicalFields = map[string]struct{}{
	"owner":                {},
	"date":                 {},
	"post_date":            {},
	"statement_start":      {},
	"statement_end":        {},
	"amount":               {},
	"allowed_amount":       {},
	"currency":             {},
	"original_description": {},
	"description":          {},
	"original_merchant":    {},
	"merchant":             {},
	"category":             {},
	"account":              {},
	"account_last4":        {},
	"account_type":         {},
	"institution":          {},
	"shared_flag":          {},
	"split_percent":        {},
	"data_source_name":     {},
	"data_source_date":     {},
}

// fieldSynonyms folds per-schema field spellings onto canonical names, so a
// schema may declare its required set as {date, person, actual_amount} and
// still populate the canonical record.
var fieldSynonyms = map[string]string{
	"person":        "owner",
	"payer":         "owner",
	"paid_by":       "owner",
	"actual_amount": "amount",
}

func resolveField(name string) string {
	if canonical, ok := fieldSynonyms[name]; ok {
		return canonical
	}
	return name
}

// Transformer applies one matched schema's rules to a raw table. Stages run
// in a fixed order (header mapping, date parsing, amount handling, derived
// fields, fallbacks, source metadata) and each stage logs what it did.
type Transformer struct {
	def   *schema.Definition
	match schema.MatchResult

	// merchantFallbackThreshold is the blank-row fraction above which the
	// merchant column is backfilled from descriptions.
	merchantFallbackThreshold float64

	log zerolog.Logger
}

// NewTransformer builds a transformer for one matched file. The sign rule
// and derived patterns were already validated at catalog load, so rule
// errors cannot surface per-row.
func NewTransformer(match schema.MatchResult, merchantFallbackThreshold float64, log zerolog.Logger) *Transformer {
	return &Transformer{
		def:                       match.Definition,
		match:                     match,
		merchantFallbackThreshold: merchantFallbackThreshold,
		log:                       log.With().Str("component", "transformer").Str("schema", match.Definition.ID).Logger(),
	}
}

// Apply transforms every row of the table into a canonical record. TxnID,
// sharing status, and quality flags are left for the normalizer.
func (t *Transformer) Apply(tbl *ingest.RawTable) []Record {
	log := t.log.With().Str("file", tbl.Name).Logger()

	// Stage 1: header mapping. Columns resolve to canonical fields via the
	// alias sets; everything unmapped (minus the extras-ignore list) feeds
	// the extras bucket.
	colField := make([]string, len(tbl.Headers))
	extrasCols := make([]int, 0)
	for i, h := range tbl.Headers {
		if field, ok := t.match.HeaderMap[h]; ok {
			colField[i] = resolveField(field)
			continue
		}
		if _, ignored := t.def.ExtrasIgnore[schema.CanonicalizeHeader(h)]; !ignored {
			extrasCols = append(extrasCols, i)
		}
	}
	log.Debug().
		Int("mapped", len(tbl.Headers)-len(extrasCols)).
		Int("extras", len(extrasCols)).
		Msg("header mapping resolved")

	records := make([]Record, 0, len(tbl.Rows))
	blankMerchants := 0
	for idx, row := range tbl.Rows {
		fields := make(map[string]string, len(colField))
		extras := make(map[string]string)
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if colField[i] != "" {
				fields[colField[i]] = cell
			}
		}
		for _, i := range extrasCols {
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				extras[tbl.Headers[i]] = strings.TrimSpace(row[i])
			}
		}

		rec := t.transformRow(idx+1, fields, extras, tbl.ModTime, log)
		if rec.Merchant == "" {
			blankMerchants++
		}
		records = append(records, rec)
	}

	// Stage 5 (file-level part): backfill merchants only when most of the
	// file would otherwise be blank. The threshold is configurable; the
	// default is half the rows.
	if len(records) > 0 && float64(blankMerchants) > t.merchantFallbackThreshold*float64(len(records)) {
		filled := 0
		for i := range records {
			if records[i].Merchant != "" {
				continue
			}
			switch {
			case records[i].Description != "":
				records[i].Merchant = records[i].Description
				filled++
			case records[i].OriginalDescription != "":
				records[i].Merchant = records[i].OriginalDescription
				filled++
			}
		}
		log.Debug().Int("filled", filled).Msg("merchant backfilled from descriptions")
	}

	log.Info().Int("rows", len(records)).Msg("transformation complete")
	return records
}

func (t *Transformer) transformRow(rowNum int, fields, extras map[string]string, modTime time.Time, log zerolog.Logger) Record {
	// Stage 2: date parsing. Unparseable values become nil, never an error.
	date := ParseDate(fields["date"], t.def.DateFormat)
	if fields["date"] != "" && date == nil {
		log.Warn().Int("row", rowNum).Str("value", fields["date"]).Msg("unparseable date")
	}
	postDate := ParseDate(fields["post_date"], t.def.DateFormat)
	stmtStart := ParseDate(fields["statement_start"], t.def.DateFormat)
	stmtEnd := ParseDate(fields["statement_end"], t.def.DateFormat)

	// Stage 3: amount handling. Extraction pattern, numeric coercion, then
	// the schema's sign rule.
	amount, amountOK := ParseAmount(fields["amount"], t.def.AmountPattern)
	if amountOK {
		amount = t.def.Sign.Apply(amount, fields)
	} else if fields["amount"] != "" {
		log.Warn().Int("row", rowNum).Str("value", fields["amount"]).Msg("unparseable amount")
	}
	allowed, _ := ParseAmount(fields["allowed_amount"], nil)

	// Stage 4: derived fields, in declaration order. A failed extraction
	// yields no value with a warning.
	derived := make(map[string]bool, len(t.def.Derived))
	for _, rule := range t.def.Derived {
		value, ok := rule.Extract(fields)
		if !ok {
			log.Warn().Int("row", rowNum).Str("field", rule.Field).Msg("derived rule produced no value")
			continue
		}
		field := resolveField(rule.Field)
		if _, canonical := canonicalFields[field]; canonical {
			fields[field] = value
			derived[field] = true
		} else {
			extras[rule.Field] = value
		}
	}

	// Derived rules may target fields stage 2 already parsed; re-parse
	// those so the derived values are not lost.
	if derived["date"] {
		date = ParseDate(fields["date"], t.def.DateFormat)
	}
	if derived["post_date"] {
		postDate = ParseDate(fields["post_date"], t.def.DateFormat)
	}
	if derived["statement_start"] {
		stmtStart = ParseDate(fields["statement_start"], t.def.DateFormat)
	}
	if derived["statement_end"] {
		stmtEnd = ParseDate(fields["statement_end"], t.def.DateFormat)
	}

	// Stage 5 (row-level part): description falls back to the original.
	if fields["description"] == "" {
		fields["description"] = fields["original_description"]
	}

	// Stage 6: static defaults, then source metadata unless a rule already
	// populated it.
	for field, value := range t.def.Defaults {
		field = resolveField(field)
		if fields[field] == "" {
			fields[field] = value
		}
	}
	if fields["data_source_name"] == "" {
		fields["data_source_name"] = t.def.ID
	}
	sourceDate := modTime
	if v := fields["data_source_date"]; v != "" {
		if d := ParseDate(v, t.def.DateFormat); d != nil {
			sourceDate = *d
		}
	}

	split, _ := ParsePercent(fields["split_percent"])

	return Record{
		Owner:               fields["owner"],
		Date:                date,
		PostDate:            postDate,
		StatementStart:      stmtStart,
		StatementEnd:        stmtEnd,
		Amount:              amount,
		AllowedAmount:       allowed,
		Currency:            fields["currency"],
		OriginalDescription: fields["original_description"],
		Description:         fields["description"],
		OriginalMerchant:    fields["original_merchant"],
		Merchant:            firstNonEmpty(fields["merchant"], fields["original_merchant"]),
		Category:            fields["category"],
		Account:             fields["account"],
		AccountLast4:        fields["account_last4"],
		AccountType:         fields["account_type"],
		Institution:         fields["institution"],
		SharedFlag:          ParseTriState(fields["shared_flag"]),
		SplitPercent:        split,
		DataSourceName:      fields["data_source_name"],
		DataSourceDate:      sourceDate,
		Extras:              encodeExtras(extras),
		SourceRow:           rowNum,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// encodeExtras serializes the unmapped columns. json.Marshal sorts map keys,
// so repeated ingestion yields byte-identical records.
func encodeExtras(extras map[string]string) string {
	if len(extras) == 0 {
		return ""
	}
	data, err := json.Marshal(extras)
	if err != nil {
		return ""
	}
	return string(data)
}
