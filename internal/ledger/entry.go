package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rzimmerman2022/BALANCE-pyexcel-sub000/internal/normalize"
)

// ShareKind classifies how an entry affects the two-party balance.
type ShareKind string

const (
	ShareShared     ShareKind = "shared"
	SharePersonal   ShareKind = "personal"
	ShareSettlement ShareKind = "settlement"
	ShareRent       ShareKind = "rent"
)

// Lineage tags which business-rule stage produced an entry.
type Lineage string

const (
	LineageExpense Lineage = "expense"
	LineageRent    Lineage = "rent"
)

// Entry is one ledger row. BalanceImpact and RunningBalance follow the fixed
// sign convention: positive means party A owes party B.
type Entry struct {
	Record normalize.Record

	Payer   string
	Kind    ShareKind
	Lineage Lineage

	// AllowedAmount is the shareable amount after overrides; zero for
	// personal entries.
	AllowedAmount decimal.Decimal

	BalanceImpact  decimal.Decimal
	RunningBalance decimal.Decimal

	AuditNote string
	Flags     []normalize.QualityFlag
}

// Category returns the entry's reporting category, defaulting by kind so the
// per-category reconciliation always has a bucket.
func (e Entry) Category() string {
	if c := strings.TrimSpace(e.Record.Category); c != "" {
		return c
	}
	switch e.Kind {
	case ShareSettlement:
		return "Settlement"
	case ShareRent:
		return "Rent"
	default:
		return "Uncategorized"
	}
}

// AuditBreakdown is the parsed form of an entry's audit note.
type AuditBreakdown struct {
	Payer  string
	Kind   ShareKind
	Reason string
	Flags  []string
}

// FormatAuditNote renders the fixed-format audit note:
//
//	paid by <name> | share <kind> | reason <text>[ | flags f1,f2]
func FormatAuditNote(payer string, kind ShareKind, reason string, flags []normalize.QualityFlag) string {
	note := fmt.Sprintf("paid by %s | share %s | reason %s", payer, kind, reason)
	if len(flags) > 0 {
		names := make([]string, len(flags))
		for i, f := range flags {
			names[i] = string(f)
		}
		note += " | flags " + strings.Join(names, ",")
	}
	return note
}

// ParseAuditNote parses a note produced by FormatAuditNote back into its
// breakdown.
func ParseAuditNote(note string) (AuditBreakdown, error) {
	var b AuditBreakdown
	for _, part := range strings.Split(note, " | ") {
		switch {
		case strings.HasPrefix(part, "paid by "):
			b.Payer = strings.TrimPrefix(part, "paid by ")
		case strings.HasPrefix(part, "share "):
			b.Kind = ShareKind(strings.TrimPrefix(part, "share "))
		case strings.HasPrefix(part, "reason "):
			b.Reason = strings.TrimPrefix(part, "reason ")
		case strings.HasPrefix(part, "flags "):
			b.Flags = strings.Split(strings.TrimPrefix(part, "flags "), ",")
		default:
			return AuditBreakdown{}, fmt.Errorf("ParseAuditNote: unrecognized segment %q", part)
		}
	}
	if b.Payer == "" || b.Kind == "" || b.Reason == "" {
		return AuditBreakdown{}, fmt.Errorf("ParseAuditNote: incomplete note %q", note)
	}
	return b, nil
}
