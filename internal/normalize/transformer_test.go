package normalize

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/ingest"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/schema"
)

func mustCatalog(t *testing.T, yaml string) *schema.Catalog {
	t.Helper()
	catalog, err := schema.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return catalog
}

func applySchema(t *testing.T, catalog *schema.Catalog, tbl *ingest.RawTable) []Record {
	t.Helper()
	match := catalog.Match(tbl.Headers)
	if match.Fallback {
		t.Fatalf("expected a configured schema, got fallback for headers %v", tbl.Headers)
	}
	return NewTransformer(match, 0.5, zerolog.Nop()).Apply(tbl)
}

func TestApplySignRuleFlipsWithdrawals(t *testing.T) {
	catalog := mustCatalog(t, `
schemas:
  - id: checking
    required:
      date: ["Posting Date"]
      original_description: ["Details"]
      amount: ["Amount"]
      category: ["Type"]
    sign_rule: flip_if_withdrawal
`)
	tbl := &ingest.RawTable{
		Name:    "checking.csv",
		Headers: []string{"Posting Date", "Details", "Amount", "Type"},
		Rows: [][]string{
			{"2024-03-01", "ATM CASH", "50.00", "Withdrawal"},
			{"2024-03-02", "PAYROLL", "50.00", "Deposit"},
		},
	}

	records := applySchema(t, catalog, tbl)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if got := records[0].Amount.String(); got != "-50" {
		t.Errorf("withdrawal amount = %s, want -50", got)
	}
	if got := records[1].Amount.String(); got != "50" {
		t.Errorf("deposit amount = %s, want 50", got)
	}
}

func TestApplyFieldSynonymsAndDefaults(t *testing.T) {
	catalog := mustCatalog(t, `
schemas:
  - id: history
    required:
      date: ["Date"]
      person: ["Name"]
      actual_amount: ["Actual Amount"]
    optional:
      allowed_amount: ["Allowed Amount"]
    date_format: "1/2/2006"
    defaults:
      currency: USD
      account_type: shared_tracker
`)
	tbl := &ingest.RawTable{
		Name:    "history.csv",
		Headers: []string{"Date", "Name", "Actual Amount", "Allowed Amount"},
		Rows: [][]string{
			{"3/1/2024", "Ryan", "$100.00", "$100.00"},
		},
	}

	records := applySchema(t, catalog, tbl)
	rec := records[0]
	if rec.Owner != "Ryan" {
		t.Errorf("owner = %q, want Ryan (person synonym)", rec.Owner)
	}
	if rec.Amount.String() != "100" {
		t.Errorf("amount = %s, want 100 (actual_amount synonym)", rec.Amount)
	}
	if rec.AllowedAmount.String() != "100" {
		t.Errorf("allowed amount = %s, want 100", rec.AllowedAmount)
	}
	if rec.Currency != "USD" || rec.AccountType != "shared_tracker" {
		t.Errorf("defaults not applied: currency=%q account_type=%q", rec.Currency, rec.AccountType)
	}
	if rec.DataSourceName != "history" {
		t.Errorf("data source name = %q, want history", rec.DataSourceName)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if rec.Date == nil || !rec.Date.Equal(want) {
		t.Errorf("date = %v, want %v", rec.Date, want)
	}
}

func TestApplyDerivedFieldsAndExtras(t *testing.T) {
	catalog := mustCatalog(t, `
schemas:
  - id: card
    required:
      date: ["Transaction Date"]
      original_description: ["Description"]
      amount: ["Amount"]
    optional:
      account: ["Account"]
    sign_rule: flip_if_positive
    derived:
      - field: institution
        kind: static
        value: Chase
      - field: account_last4
        kind: regex
        source: account
        pattern: '(\d{4})\s*$'
    extras_ignore: ["Running Total"]
`)
	tbl := &ingest.RawTable{
		Name:    "card.csv",
		Headers: []string{"Transaction Date", "Description", "Amount", "Account", "Rewards", "Running Total"},
		Rows: [][]string{
			{"2024-03-01", "COSTCO", "25.00", "Freedom ...9876", "1.2", "900.00"},
		},
	}

	records := applySchema(t, catalog, tbl)
	rec := records[0]
	if rec.Institution != "Chase" {
		t.Errorf("institution = %q, want Chase", rec.Institution)
	}
	if rec.AccountLast4 != "9876" {
		t.Errorf("account last4 = %q, want 9876", rec.AccountLast4)
	}
	if rec.Amount.String() != "-25" {
		t.Errorf("amount = %s, want -25 (flip_if_positive)", rec.Amount)
	}
	if rec.Description != "COSTCO" {
		t.Errorf("description fallback = %q, want COSTCO", rec.Description)
	}
	if rec.Extras != `{"Rewards":"1.2"}` {
		t.Errorf("extras = %q, want only the Rewards column", rec.Extras)
	}
}

func TestApplyDerivedDateFields(t *testing.T) {
	catalog := mustCatalog(t, `
schemas:
  - id: statement
    required:
      date: ["Date"]
      amount: ["Amount"]
    optional:
      original_description: ["Description"]
    derived:
      - field: statement_start
        kind: regex
        source: original_description
        pattern: 'from (\d{4}-\d{2}-\d{2})'
      - field: statement_end
        kind: regex
        source: original_description
        pattern: 'to (\d{4}-\d{2}-\d{2})'
      - field: data_source_date
        kind: static
        value: "2020-01-01"
`)
	tbl := &ingest.RawTable{
		Name:    "statement.csv",
		ModTime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Headers: []string{"Date", "Amount", "Description"},
		Rows: [][]string{
			{"2024-03-01", "50.00", "Period from 2024-02-01 to 2024-02-29"},
		},
	}

	rec := applySchema(t, catalog, tbl)[0]
	wantStart := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if rec.StatementStart == nil || !rec.StatementStart.Equal(wantStart) {
		t.Errorf("statement start = %v, want %v", rec.StatementStart, wantStart)
	}
	wantEnd := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if rec.StatementEnd == nil || !rec.StatementEnd.Equal(wantEnd) {
		t.Errorf("statement end = %v, want %v", rec.StatementEnd, wantEnd)
	}
	wantSource := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !rec.DataSourceDate.Equal(wantSource) {
		t.Errorf("data source date = %v, want the derived value %v", rec.DataSourceDate, wantSource)
	}
}

func TestApplyDataSourceDateDefaultsToModTime(t *testing.T) {
	catalog := mustCatalog(t, `
schemas:
  - id: plain
    required:
      date: ["Date"]
      amount: ["Amount"]
`)
	mod := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tbl := &ingest.RawTable{
		Name:    "plain.csv",
		ModTime: mod,
		Headers: []string{"Date", "Amount"},
		Rows:    [][]string{{"2024-03-01", "10.00"}},
	}

	rec := applySchema(t, catalog, tbl)[0]
	if !rec.DataSourceDate.Equal(mod) {
		t.Errorf("data source date = %v, want file mod time %v", rec.DataSourceDate, mod)
	}
}

func TestApplyMerchantBackfillThreshold(t *testing.T) {
	yaml := `
schemas:
  - id: sparse
    required:
      date: ["Date"]
      original_description: ["Description"]
      amount: ["Amount"]
    optional:
      merchant: ["Merchant"]
`
	tbl := func() *ingest.RawTable {
		return &ingest.RawTable{
			Name:    "sparse.csv",
			Headers: []string{"Date", "Description", "Amount", "Merchant"},
			Rows: [][]string{
				{"2024-03-01", "STARBUCKS #100", "5.00", ""},
				{"2024-03-02", "TRADER JOES", "40.00", ""},
				{"2024-03-03", "COSTCO", "90.00", "Costco"},
			},
		}
	}

	catalog := mustCatalog(t, yaml)
	match := catalog.Match(tbl().Headers)

	// Two of three rows blank exceeds the 0.5 threshold, so descriptions
	// backfill the merchant column.
	records := NewTransformer(match, 0.5, zerolog.Nop()).Apply(tbl())
	if records[0].Merchant != "STARBUCKS #100" || records[1].Merchant != "TRADER JOES" {
		t.Errorf("merchants not backfilled: %q, %q", records[0].Merchant, records[1].Merchant)
	}
	if records[2].Merchant != "Costco" {
		t.Errorf("populated merchant overwritten: %q", records[2].Merchant)
	}

	// A higher threshold leaves the blanks alone.
	records = NewTransformer(match, 0.9, zerolog.Nop()).Apply(tbl())
	if records[0].Merchant != "" {
		t.Errorf("merchant backfilled below threshold: %q", records[0].Merchant)
	}
}

func TestApplyUnparseableValuesDoNotDropRows(t *testing.T) {
	catalog := mustCatalog(t, `
schemas:
  - id: messy
    required:
      date: ["Date"]
      amount: ["Amount"]
`)
	tbl := &ingest.RawTable{
		Name:    "messy.csv",
		Headers: []string{"Date", "Amount"},
		Rows: [][]string{
			{"not a date", "pending"},
			{"2024-03-01", "10.00"},
		},
	}

	records := applySchema(t, catalog, tbl)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (rows are never dropped)", len(records))
	}
	if records[0].Date != nil {
		t.Errorf("unparseable date = %v, want nil", records[0].Date)
	}
	if !records[0].Amount.IsZero() {
		t.Errorf("unparseable amount = %s, want 0", records[0].Amount)
	}
}
