package export

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/ledger"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/normalize"
)

const (
	canonicalTable = "canonical_transactions"
	ledgerTable    = "ledger"
)

// CanonicalRow maps one canonical record into the
// shared_finance.canonical_transactions table schema.
type CanonicalRow struct {
	TxnID string `bigquery:"txn_id"` // REQUIRED
	RunID string `bigquery:"run_id"` // REQUIRED

	Owner string `bigquery:"owner"` // NULLABLE

	TransactionDate bigquery.NullDate `bigquery:"transaction_date"`
	PostDate        bigquery.NullDate `bigquery:"post_date"`
	StatementStart  bigquery.NullDate `bigquery:"statement_start"`
	StatementEnd    bigquery.NullDate `bigquery:"statement_end"`

	Amount        *big.Rat `bigquery:"amount"`         // REQUIRED NUMERIC
	AllowedAmount *big.Rat `bigquery:"allowed_amount"` // NULLABLE NUMERIC
	Currency      string   `bigquery:"currency"`

	OriginalDescription string              `bigquery:"original_description"`
	Description         string              `bigquery:"description"`
	OriginalMerchant    bigquery.NullString `bigquery:"original_merchant"`
	Merchant            bigquery.NullString `bigquery:"merchant"`
	Category            bigquery.NullString `bigquery:"category"`

	Account      bigquery.NullString `bigquery:"account"`
	AccountLast4 bigquery.NullString `bigquery:"account_last4"`
	AccountType  bigquery.NullString `bigquery:"account_type"`
	Institution  bigquery.NullString `bigquery:"institution"`

	SharingStatus string              `bigquery:"sharing_status"`
	SplitPercent  *big.Rat            `bigquery:"split_percent"`
	Extras        bigquery.NullString `bigquery:"extras"`

	DataSourceName string    `bigquery:"data_source_name"`
	DataSourceDate time.Time `bigquery:"data_source_date"`

	Flags []string `bigquery:"flags"` // REPEATED STRING

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// LedgerRow maps one ledger entry into the shared_finance.ledger table
// schema. The sign convention of the balance columns matches the ledger:
// positive means party A owes party B.
type LedgerRow struct {
	RunID string `bigquery:"run_id"`
	TxnID string `bigquery:"txn_id"`

	EntryDate bigquery.NullDate `bigquery:"entry_date"`

	Payer   string `bigquery:"payer"`
	Kind    string `bigquery:"kind"`
	Lineage string `bigquery:"lineage"`

	AllowedAmount  *big.Rat `bigquery:"allowed_amount"`
	BalanceImpact  *big.Rat `bigquery:"balance_impact"`
	RunningBalance *big.Rat `bigquery:"running_balance"`

	Category  string   `bigquery:"category"`
	AuditNote string   `bigquery:"audit_note"`
	Flags     []string `bigquery:"flags"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// Client writes run output to BigQuery for the external reporting
// collaborators.
type Client struct {
	bq      *bigquery.Client
	dataset string
	log     zerolog.Logger
}

// NewClient opens a BigQuery client against the configured project and
// dataset.
func NewClient(ctx context.Context, project, dataset string, log zerolog.Logger) (*Client, error) {
	if project == "" || dataset == "" {
		return nil, fmt.Errorf("NewClient: bigquery project and dataset are required")
	}
	bq, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewClient: bigquery client: %w", err)
	}
	return &Client{
		bq:      bq,
		dataset: dataset,
		log:     log.With().Str("component", "export").Logger(),
	}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.bq.Close()
}

// InsertCanonical streams the canonical transaction table.
func (c *Client) InsertCanonical(ctx context.Context, runID string, records []normalize.Record) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*CanonicalRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, canonicalRow(runID, rec, now))
	}
	inserter := c.bq.Dataset(c.dataset).Table(canonicalTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertCanonical: inserting %d rows: %w", len(rows), err)
	}
	c.log.Info().Int("rows", len(rows)).Str("run_id", runID).Msg("canonical table exported")
	return nil
}

// InsertLedger streams the ledger rows.
func (c *Client) InsertLedger(ctx context.Context, runID string, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*LedgerRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ledgerRow(runID, e, now))
	}
	inserter := c.bq.Dataset(c.dataset).Table(ledgerTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertLedger: inserting %d rows: %w", len(rows), err)
	}
	c.log.Info().Int("rows", len(rows)).Str("run_id", runID).Msg("ledger exported")
	return nil
}

// CountRunRows verifies an export by counting a run's rows in a table.
func (c *Client) CountRunRows(ctx context.Context, table, runID string) (int64, error) {
	q := c.bq.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS cnt
		FROM %s.%s
		WHERE run_id = @run_id
	`, c.dataset, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountRunRows: query read: %w", err)
	}
	var row struct {
		Cnt int64 `bigquery:"cnt"`
	}
	for {
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("CountRunRows: iter next: %w", err)
		}
	}
	return row.Cnt, nil
}

func canonicalRow(runID string, rec normalize.Record, now time.Time) *CanonicalRow {
	return &CanonicalRow{
		TxnID:               rec.TxnID,
		RunID:               runID,
		Owner:               rec.Owner,
		TransactionDate:     nullDate(rec.Date),
		PostDate:            nullDate(rec.PostDate),
		StatementStart:      nullDate(rec.StatementStart),
		StatementEnd:        nullDate(rec.StatementEnd),
		Amount:              rec.Amount.Rat(),
		AllowedAmount:       rec.AllowedAmount.Rat(),
		Currency:            rec.Currency,
		OriginalDescription: rec.OriginalDescription,
		Description:         rec.Description,
		OriginalMerchant:    nullString(rec.OriginalMerchant),
		Merchant:            nullString(rec.Merchant),
		Category:            nullString(rec.Category),
		Account:             nullString(rec.Account),
		AccountLast4:        nullString(rec.AccountLast4),
		AccountType:         nullString(rec.AccountType),
		Institution:         nullString(rec.Institution),
		SharingStatus:       string(rec.SharingStatus),
		SplitPercent:        rec.SplitPercent.Rat(),
		Extras:              nullString(rec.Extras),
		DataSourceName:      rec.DataSourceName,
		DataSourceDate:      rec.DataSourceDate,
		Flags:               flagNames(rec.Flags),
		ExportedTS:          now,
	}
}

func ledgerRow(runID string, e ledger.Entry, now time.Time) *LedgerRow {
	return &LedgerRow{
		RunID:          runID,
		TxnID:          e.Record.TxnID,
		EntryDate:      nullDate(e.Record.Date),
		Payer:          e.Payer,
		Kind:           string(e.Kind),
		Lineage:        string(e.Lineage),
		AllowedAmount:  e.AllowedAmount.Rat(),
		BalanceImpact:  e.BalanceImpact.Rat(),
		RunningBalance: e.RunningBalance.Rat(),
		Category:       e.Category(),
		AuditNote:      e.AuditNote,
		Flags:          flagNames(e.Flags),
		ExportedTS:     now,
	}
}

func nullDate(t *time.Time) bigquery.NullDate {
	if t == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: civil.DateOf(*t), Valid: true}
}

func nullString(s string) bigquery.NullString {
	if s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: s, Valid: true}
}

func flagNames(flags []normalize.QualityFlag) []string {
	if len(flags) == 0 {
		return nil
	}
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = string(f)
	}
	return names
}
