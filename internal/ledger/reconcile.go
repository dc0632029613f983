package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Result cross-validates the ledger balance three ways:
//
//	M1: the final running balance.
//	M2: party A's actual outlay toward shared items minus A's fair share of
//	    total shared spend (settlements count as outlay adjustments).
//	M3: the same variance computed independently per category and summed.
//
// The methods must agree within the tolerance; disagreement signals an
// upstream data or rule-application defect and is reported, never
// auto-corrected.
type Result struct {
	Method1 decimal.Decimal
	Method2 decimal.Decimal
	Method3 decimal.Decimal

	Reconciled bool
	Tolerance  decimal.Decimal

	// ByCategory holds each category's fair-share variance from method 3.
	ByCategory map[string]decimal.Decimal

	// Issues lists data-consistency findings: invariant violations and
	// reconciliation failures.
	Issues []string
}

// Reconcile computes the three balance figures for a finished ledger and
// checks |M1 + M2| and |M2 - M3| against the tolerance.
func Reconcile(l *Ledger, tolerance decimal.Decimal) *Result {
	result := &Result{
		Tolerance:  tolerance,
		ByCategory: make(map[string]decimal.Decimal),
	}

	if err := l.Validate(); err != nil {
		result.Issues = append(result.Issues, fmt.Sprintf("ledger invariant violated: %v", err))
	}

	result.Method1 = l.FinalBalance()

	// Method 2: global fair-share variance for party A.
	paidA := decimal.Zero
	totalShared := decimal.Zero
	for _, e := range l.Entries {
		switch e.Kind {
		case ShareShared, ShareRent:
			totalShared = totalShared.Add(e.AllowedAmount)
			if e.Payer == l.PartyA {
				paidA = paidA.Add(e.AllowedAmount)
			}
		case ShareSettlement:
			// A settlement is an outlay transfer, not shared spend.
			if e.Payer == l.PartyA {
				paidA = paidA.Add(e.AllowedAmount)
			} else {
				paidA = paidA.Sub(e.AllowedAmount)
			}
		}
	}
	result.Method2 = paidA.Sub(l.ShareA.Mul(totalShared))

	// Method 3: the same variance per category, summed.
	type catTotals struct {
		paidA decimal.Decimal
		total decimal.Decimal
	}
	byCat := make(map[string]*catTotals)
	totalsFor := func(category string) *catTotals {
		t, ok := byCat[category]
		if !ok {
			t = &catTotals{paidA: decimal.Zero, total: decimal.Zero}
			byCat[category] = t
		}
		return t
	}
	for _, e := range l.Entries {
		switch e.Kind {
		case ShareShared, ShareRent:
			t := totalsFor(e.Category())
			t.total = t.total.Add(e.AllowedAmount)
			if e.Payer == l.PartyA {
				t.paidA = t.paidA.Add(e.AllowedAmount)
			}
		case ShareSettlement:
			t := totalsFor(e.Category())
			if e.Payer == l.PartyA {
				t.paidA = t.paidA.Add(e.AllowedAmount)
			} else {
				t.paidA = t.paidA.Sub(e.AllowedAmount)
			}
		}
	}
	result.Method3 = decimal.Zero
	for category, t := range byCat {
		variance := t.paidA.Sub(l.ShareA.Mul(t.total))
		result.ByCategory[category] = variance
		result.Method3 = result.Method3.Add(variance)
	}

	m1m2 := result.Method1.Add(result.Method2).Abs()
	m2m3 := result.Method2.Sub(result.Method3).Abs()
	if m1m2.GreaterThan(tolerance) || m2m3.GreaterThan(tolerance) {
		result.Issues = append(result.Issues, fmt.Sprintf(
			"balance methods disagree: M1=%s M2=%s M3=%s (|M1+M2|=%s, |M2-M3|=%s, tolerance=%s)",
			result.Method1.StringFixed(2), result.Method2.StringFixed(2), result.Method3.StringFixed(2),
			m1m2.StringFixed(4), m2m3.StringFixed(4), tolerance.String()))
	}
	result.Reconciled = len(result.Issues) == 0
	return result
}

// Summary renders a human-readable reconciliation report.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "M1 final running balance:   %s\n", r.Method1.StringFixed(2))
	fmt.Fprintf(&b, "M2 fair-share variance:     %s\n", r.Method2.StringFixed(2))
	fmt.Fprintf(&b, "M3 per-category variance:   %s\n", r.Method3.StringFixed(2))
	fmt.Fprintf(&b, "reconciled:                 %v (tolerance %s)\n", r.Reconciled, r.Tolerance)

	categories := make([]string, 0, len(r.ByCategory))
	for c := range r.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&b, "  %-24s %s\n", c, r.ByCategory[c].StringFixed(2))
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(&b, "issue: %s\n", issue)
	}
	return b.String()
}
