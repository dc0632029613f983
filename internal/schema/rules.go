package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// SignRuleKind enumerates the closed set of amount sign corrections a schema
// may declare. Unknown identifiers are rejected when the catalog is parsed,
// before any row is processed.
type SignRuleKind int

const (
	// SignAsIs leaves the parsed amount untouched.
	SignAsIs SignRuleKind = iota
	// SignFlipIfPositive negates amounts that parsed positive.
	SignFlipIfPositive
	// SignFlipIfNegative negates amounts that parsed negative.
	SignFlipIfNegative
	// SignFlipAlways negates every amount.
	SignFlipAlways
	// SignFlipIfWithdrawal negates the amount when the category column marks
	// the row as a withdrawal.
	SignFlipIfWithdrawal
	// SignFlipIfColumnValueIn negates the amount when a named column's value
	// is in a configured set.
	SignFlipIfColumnValueIn
)

var signRuleNames = map[SignRuleKind]string{
	SignAsIs:                "as_is",
	SignFlipIfPositive:      "flip_if_positive",
	SignFlipIfNegative:      "flip_if_negative",
	SignFlipAlways:          "flip_always",
	SignFlipIfWithdrawal:    "flip_if_withdrawal",
	SignFlipIfColumnValueIn: "flip_if_column_value_in",
}

func (k SignRuleKind) String() string {
	if name, ok := signRuleNames[k]; ok {
		return name
	}
	return fmt.Sprintf("sign_rule(%d)", int(k))
}

// ParseSignRuleKind resolves a configured identifier to a SignRuleKind.
// An empty identifier means as_is.
func ParseSignRuleKind(s string) (SignRuleKind, error) {
	if strings.TrimSpace(s) == "" {
		return SignAsIs, nil
	}
	for kind, name := range signRuleNames {
		if name == strings.TrimSpace(strings.ToLower(s)) {
			return kind, nil
		}
	}
	return SignAsIs, fmt.Errorf("%w: unknown sign rule %q", ErrConfig, s)
}

// SignRule is the compiled sign correction of one schema definition.
type SignRule struct {
	Kind SignRuleKind

	// Column names the canonical field inspected by the column-based kinds.
	// Defaults to "category" for flip_if_withdrawal.
	Column string

	// Values holds the lowercased column values that trigger a flip for
	// SignFlipIfColumnValueIn.
	Values map[string]struct{}
}

func newSignRule(kind, column string, values []string) (SignRule, error) {
	k, err := ParseSignRuleKind(kind)
	if err != nil {
		return SignRule{}, err
	}
	rule := SignRule{Kind: k, Column: strings.TrimSpace(column)}
	switch k {
	case SignFlipIfWithdrawal:
		if rule.Column == "" {
			rule.Column = "category"
		}
	case SignFlipIfColumnValueIn:
		if rule.Column == "" {
			return SignRule{}, fmt.Errorf("%w: sign rule %s requires a column", ErrConfig, k)
		}
		if len(values) == 0 {
			return SignRule{}, fmt.Errorf("%w: sign rule %s requires at least one value", ErrConfig, k)
		}
		rule.Values = make(map[string]struct{}, len(values))
		for _, v := range values {
			rule.Values[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
		}
	}
	return rule, nil
}

// Apply returns the sign-corrected amount for one row. The row is the
// canonical field map built by the header-mapping stage.
func (r SignRule) Apply(amount decimal.Decimal, row map[string]string) decimal.Decimal {
	switch r.Kind {
	case SignFlipIfPositive:
		if amount.IsPositive() {
			return amount.Neg()
		}
	case SignFlipIfNegative:
		if amount.IsNegative() {
			return amount.Neg()
		}
	case SignFlipAlways:
		return amount.Neg()
	case SignFlipIfWithdrawal:
		if strings.EqualFold(strings.TrimSpace(row[r.Column]), "withdrawal") {
			return amount.Neg()
		}
	case SignFlipIfColumnValueIn:
		value := strings.ToLower(strings.TrimSpace(row[r.Column]))
		if _, ok := r.Values[value]; ok {
			return amount.Neg()
		}
	}
	return amount
}

// DerivedKind enumerates how a derived field obtains its value.
type DerivedKind int

const (
	// DerivedStatic assigns a fixed value.
	DerivedStatic DerivedKind = iota
	// DerivedRegex extracts the first capture group of a pattern applied to
	// a source column.
	DerivedRegex
)

// DerivedRule produces one extra canonical field from a row.
type DerivedRule struct {
	Field   string
	Kind    DerivedKind
	Value   string         // static value
	Source  string         // canonical source field for regex extraction
	Pattern *regexp.Regexp // compiled at catalog load
}

func newDerivedRule(field, kind, value, source, pattern string) (DerivedRule, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return DerivedRule{}, fmt.Errorf("%w: derived rule missing target field", ErrConfig)
	}
	rule := DerivedRule{Field: field}
	switch strings.TrimSpace(strings.ToLower(kind)) {
	case "static":
		rule.Kind = DerivedStatic
		rule.Value = value
	case "regex":
		rule.Kind = DerivedRegex
		rule.Source = strings.TrimSpace(source)
		if rule.Source == "" {
			return DerivedRule{}, fmt.Errorf("%w: derived rule for %q missing source column", ErrConfig, field)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return DerivedRule{}, fmt.Errorf("%w: derived rule for %q has invalid pattern: %v", ErrConfig, field, err)
		}
		rule.Pattern = re
	default:
		return DerivedRule{}, fmt.Errorf("%w: derived rule for %q has unknown kind %q", ErrConfig, field, kind)
	}
	return rule, nil
}

// Extract evaluates the rule against a row. The bool reports whether a value
// was produced; a failed regex or missing source column yields no value.
func (r DerivedRule) Extract(row map[string]string) (string, bool) {
	switch r.Kind {
	case DerivedStatic:
		return r.Value, true
	case DerivedRegex:
		source, ok := row[r.Source]
		if !ok || source == "" {
			return "", false
		}
		m := r.Pattern.FindStringSubmatch(source)
		if m == nil {
			return "", false
		}
		if len(m) > 1 {
			return m[1], true
		}
		return m[0], true
	}
	return "", false
}
