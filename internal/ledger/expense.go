package ledger

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/config"
	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/normalize"
)

var two = decimal.NewFromInt(2)

// processExpenses applies the expense business rules to canonical records:
// settlement detection by keyword, the manual double-allowed override,
// duplicate flagging on (date, payer, amount, merchant), and shared versus
// personal classification on the allowed amount.
func processExpenses(cfg config.Config, records []normalize.Record, log zerolog.Logger) []Entry {
	entries := make([]Entry, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		payer, known := matchParty(cfg, rec.Owner)
		if !known {
			log.Warn().Str("owner", rec.Owner).Str("txn_id", rec.TxnID).Msg("payer is neither party; excluded from balance")
			entries = append(entries, newEntry(rec, rec.Owner, SharePersonal, LineageExpense,
				decimal.Zero, decimal.Zero, "payer not a ledger party"))
			continue
		}

		key := duplicateKey(rec, payer)
		if seen[key] {
			rec = rec.WithFlag(normalize.FlagDuplicateSuspected)
		} else {
			seen[key] = true
		}

		if isSettlement(cfg, rec) {
			amount := rec.Amount.Abs()
			impact := amount.Neg()
			if payer == cfg.Parties.B {
				impact = amount
			}
			entries = append(entries, newEntry(rec, payer, ShareSettlement, LineageExpense,
				amount, impact, fmt.Sprintf("settlement of %s between parties", amount.StringFixed(2))))
			continue
		}

		allowed := rec.AllowedAmount
		reason := fmt.Sprintf("allowed %s of actual %s", allowed.StringFixed(2), rec.Amount.StringFixed(2))
		if rec.HasFlag(normalize.FlagManualOverride) {
			allowed = allowed.Mul(two)
			reason = fmt.Sprintf("allowed doubled to %s by override marker", allowed.StringFixed(2))
		}

		if allowed.Abs().LessThanOrEqual(cfg.SharedEpsilon) {
			entries = append(entries, newEntry(rec, payer, SharePersonal, LineageExpense,
				decimal.Zero, decimal.Zero, "personal expense; no shared amount"))
			continue
		}

		// Positive impact means party A owes party B: when A pays a shared
		// item, B's share reduces what A owes.
		var impact decimal.Decimal
		if payer == cfg.Parties.A {
			impact = allowed.Mul(cfg.PartyBShare()).Neg()
		} else {
			impact = allowed.Mul(cfg.PartyAShare)
		}
		entries = append(entries, newEntry(rec, payer, ShareShared, LineageExpense, allowed, impact, reason))
	}
	return entries
}

func newEntry(rec normalize.Record, payer string, kind ShareKind, lineage Lineage,
	allowed, impact decimal.Decimal, reason string) Entry {
	return Entry{
		Record:        rec,
		Payer:         payer,
		Kind:          kind,
		Lineage:       lineage,
		AllowedAmount: allowed,
		BalanceImpact: impact,
		AuditNote:     FormatAuditNote(payer, kind, reason, rec.Flags),
		Flags:         rec.Flags,
	}
}

func matchParty(cfg config.Config, owner string) (string, bool) {
	owner = strings.TrimSpace(owner)
	switch {
	case strings.EqualFold(owner, cfg.Parties.A):
		return cfg.Parties.A, true
	case strings.EqualFold(owner, cfg.Parties.B):
		return cfg.Parties.B, true
	default:
		return "", false
	}
}

func isSettlement(cfg config.Config, rec normalize.Record) bool {
	haystacks := []string{rec.Merchant, rec.OriginalMerchant, rec.Description, rec.OriginalDescription}
	for _, keyword := range cfg.SettlementKeywords {
		for _, h := range haystacks {
			if h != "" && strings.Contains(strings.ToLower(h), strings.ToLower(keyword)) {
				return true
			}
		}
	}
	return false
}

func duplicateKey(rec normalize.Record, payer string) string {
	date := "<none>"
	if rec.Date != nil {
		date = rec.Date.Format("2006-01-02")
	}
	return strings.Join([]string{
		date,
		strings.ToLower(payer),
		rec.Amount.StringFixed(2),
		strings.ToLower(strings.TrimSpace(rec.Merchant)),
	}, "|")
}
