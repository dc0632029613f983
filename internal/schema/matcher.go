package schema

import (
	"sort"
	"strings"
	"unicode"
)

// MatchResult records how a file's headers resolved against the catalog.
// Matching never fails: when no configured schema qualifies, the generic
// fallback is returned with Fallback set.
type MatchResult struct {
	Definition *Definition

	// RequiredHits and OptionalHits are the alias-set hit counts for the
	// chosen definition.
	RequiredHits int
	OptionalHits int

	// MissingRequired lists required canonical fields with no alias among
	// the input headers. Empty unless Fallback is set.
	MissingRequired []string

	// Unrecognized lists input headers no alias or rename of the chosen
	// definition covers.
	Unrecognized []string

	// HeaderMap maps each recognized raw header to its canonical field.
	HeaderMap map[string]string

	Fallback bool
}

// CanonicalizeHeader normalizes a header or alias for comparison: lowercase,
// non-alphanumeric characters (except spaces) stripped, whitespace collapsed.
func CanonicalizeHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// aliasIndex maps canonicalized alias -> canonical field for one definition.
func aliasIndex(def *Definition) map[string]string {
	idx := make(map[string]string)
	for field, aliases := range def.Optional {
		for _, a := range aliases {
			idx[CanonicalizeHeader(a)] = field
		}
	}
	// Required aliases win over optional ones on collision.
	for field, aliases := range def.Required {
		for _, a := range aliases {
			idx[CanonicalizeHeader(a)] = field
		}
	}
	// Explicit renames win over everything.
	for header, field := range def.Rename {
		idx[header] = field
	}
	return idx
}

type score struct {
	def          *Definition
	requiredHits int
	optionalHits int
	missing      []string
}

func scoreDefinition(def *Definition, present map[string]bool) score {
	s := score{def: def}
	for field, aliases := range def.Required {
		if anyAliasPresent(aliases, present) {
			s.requiredHits++
		} else {
			s.missing = append(s.missing, field)
		}
	}
	for field, aliases := range def.Optional {
		if _, alsoRequired := def.Required[field]; alsoRequired {
			continue
		}
		if anyAliasPresent(aliases, present) {
			s.optionalHits++
		}
	}
	sort.Strings(s.missing)
	return s
}

func anyAliasPresent(aliases []string, present map[string]bool) bool {
	for _, a := range aliases {
		if present[CanonicalizeHeader(a)] {
			return true
		}
	}
	return false
}

// Match scores every configured schema against the raw header list and
// returns the best qualifying match, or the generic fallback when none
// qualifies. A schema qualifies only when all of its required fields hit;
// among qualifiers the greatest (required hits, optional hits) pair wins and
// ties keep catalog declaration order.
func (c *Catalog) Match(headers []string) MatchResult {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[CanonicalizeHeader(h)] = true
	}

	var best *score
	for _, def := range c.defs {
		if def.Generic {
			continue
		}
		s := scoreDefinition(def, present)
		if len(s.missing) > 0 {
			continue
		}
		if best == nil ||
			s.requiredHits > best.requiredHits ||
			(s.requiredHits == best.requiredHits && s.optionalHits > best.optionalHits) {
			chosen := s
			best = &chosen
		}
	}

	if best == nil {
		s := scoreDefinition(c.generic, present)
		return c.buildResult(c.generic, s, headers, true)
	}
	return c.buildResult(best.def, *best, headers, false)
}

func (c *Catalog) buildResult(def *Definition, s score, headers []string, fallback bool) MatchResult {
	idx := aliasIndex(def)
	result := MatchResult{
		Definition:      def,
		RequiredHits:    s.requiredHits,
		OptionalHits:    s.optionalHits,
		MissingRequired: s.missing,
		HeaderMap:       make(map[string]string, len(headers)),
		Fallback:        fallback,
	}
	for _, h := range headers {
		if field, ok := idx[CanonicalizeHeader(h)]; ok {
			result.HeaderMap[h] = field
		} else {
			result.Unrecognized = append(result.Unrecognized, h)
		}
	}
	return result
}
