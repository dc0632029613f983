package ledger

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/config"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/normalize"
)

// Ledger is the chronologically ordered two-party balance sheet: rent plus
// expense entries with a cumulative running balance. Positive balance means
// party A owes party B. Built once per run and never mutated.
type Ledger struct {
	Entries []Entry

	PartyA string
	PartyB string
	ShareA decimal.Decimal
}

// Build merges processed rent and expense records into one ledger. Ordering
// is load-bearing: entries sort date-ascending with undated rows first, and
// the running balance accumulates in that order.
func Build(cfg config.Config, rentRecords, expenseRecords []normalize.Record, log zerolog.Logger) *Ledger {
	log = log.With().Str("component", "ledger").Logger()

	entries := processRent(cfg, rentRecords, log)
	entries = append(entries, processExpenses(cfg, expenseRecords, log)...)
	sortEntries(entries)

	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(entries[i].BalanceImpact)
		entries[i].RunningBalance = balance
	}

	log.Info().
		Int("entries", len(entries)).
		Str("final_balance", balance.StringFixed(2)).
		Msg("ledger built")

	return &Ledger{
		Entries: entries,
		PartyA:  cfg.Parties.A,
		PartyB:  cfg.Parties.B,
		ShareA:  cfg.PartyAShare,
	}
}

// sortEntries orders by date ascending with undated entries first. Ties
// break on source name, then source row, then transaction id, so the order
// is stable across runs and across worker scheduling.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].Record.Date, entries[j].Record.Date
		switch {
		case di == nil && dj != nil:
			return true
		case di != nil && dj == nil:
			return false
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		}
		ri, rj := entries[i].Record, entries[j].Record
		if ri.DataSourceName != rj.DataSourceName {
			return ri.DataSourceName < rj.DataSourceName
		}
		if ri.SourceRow != rj.SourceRow {
			return ri.SourceRow < rj.SourceRow
		}
		return ri.TxnID < rj.TxnID
	})
}

// FinalBalance returns the last running balance, or zero for an empty
// ledger.
func (l *Ledger) FinalBalance() decimal.Decimal {
	if len(l.Entries) == 0 {
		return decimal.Zero
	}
	return l.Entries[len(l.Entries)-1].RunningBalance
}

// Validate checks the cumulative-sum invariant: every running balance is the
// previous one plus the entry's impact, and the final balance equals the sum
// of all impacts.
func (l *Ledger) Validate() error {
	prev := decimal.Zero
	sum := decimal.Zero
	for i, e := range l.Entries {
		if !e.RunningBalance.Equal(prev.Add(e.BalanceImpact)) {
			return fmt.Errorf("ledger entry %d: running balance %s != %s + %s",
				i, e.RunningBalance, prev, e.BalanceImpact)
		}
		prev = e.RunningBalance
		sum = sum.Add(e.BalanceImpact)
	}
	if !l.FinalBalance().Equal(sum) {
		return fmt.Errorf("final balance %s != impact sum %s", l.FinalBalance(), sum)
	}
	return nil
}
