package ledger

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/config"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/normalize"
)

// processRent applies the rent business rules: one entry per monthly record,
// the gross total split by the fixed percentages, with a variance flag when
// the month deviates from the configured baseline.
func processRent(cfg config.Config, records []normalize.Record, log zerolog.Logger) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		gross := rec.Amount.Abs()

		if varianceExceeded(cfg, gross) {
			rec = rec.WithFlag(normalize.FlagRentVariance)
			log.Warn().
				Str("txn_id", rec.TxnID).
				Str("gross", gross.StringFixed(2)).
				Str("baseline", cfg.Rent.Baseline.StringFixed(2)).
				Msg("rent deviates from baseline")
		}

		payer := cfg.RentPayerName()
		if name, known := matchParty(cfg, rec.Owner); known {
			payer = name
		}

		var impact decimal.Decimal
		var owedShare decimal.Decimal
		if payer == cfg.Parties.A {
			owedShare = cfg.PartyBShare()
			impact = gross.Mul(owedShare).Neg()
		} else {
			owedShare = cfg.PartyAShare
			impact = gross.Mul(owedShare)
		}

		reason := fmt.Sprintf("gross rent %s split at %s", gross.StringFixed(2), owedShare.String())
		entries = append(entries, newEntry(rec, payer, ShareRent, LineageRent, gross, impact, reason))
	}
	return entries
}

func varianceExceeded(cfg config.Config, gross decimal.Decimal) bool {
	if !cfg.Rent.Baseline.IsPositive() {
		return false
	}
	tolerance := decimal.NewFromFloat(cfg.Rent.VarianceTolerance)
	deviation := gross.Sub(cfg.Rent.Baseline).Abs().Div(cfg.Rent.Baseline)
	return deviation.GreaterThan(tolerance)
}
