package schema

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks fatal configuration errors. A catalog that fails to parse
// aborts the whole run; it is never degraded to a per-file skip.
var ErrConfig = errors.New("schema configuration error")

// GenericID is the identifier of the built-in fallback definition used when
// no configured schema qualifies for a file.
const GenericID = "generic_csv"

// Definition is one declarative source schema: alias sets plus the
// transformation rules applied to matched files. Immutable once loaded.
type Definition struct {
	ID string

	// Required and Optional map canonical field names to accepted header
	// aliases. A schema qualifies for a file only when every required field
	// has at least one alias among the file's headers.
	Required map[string][]string
	Optional map[string][]string

	// Rename maps raw header names directly to canonical fields, on top of
	// the alias sets.
	Rename map[string]string

	// DateFormat is a Go time layout, or empty/"infer" for automatic
	// inference.
	DateFormat string

	Sign SignRule

	// AmountPattern optionally extracts the numeric part of the amount
	// column before coercion.
	AmountPattern *regexp.Regexp

	Derived []DerivedRule

	// ExtrasIgnore holds canonicalized header names excluded from the
	// catch-all extras bucket.
	ExtrasIgnore map[string]struct{}

	// Defaults are static field values injected when no rule populated the
	// field.
	Defaults map[string]string

	Generic bool
}

type rawDerived struct {
	Field   string `yaml:"field"`
	Kind    string `yaml:"kind"`
	Value   string `yaml:"value"`
	Source  string `yaml:"source"`
	Pattern string `yaml:"pattern"`
}

type rawDefinition struct {
	ID            string              `yaml:"id"`
	Required      map[string][]string `yaml:"required"`
	Optional      map[string][]string `yaml:"optional"`
	Rename        map[string]string   `yaml:"rename"`
	DateFormat    string              `yaml:"date_format"`
	SignRule      string              `yaml:"sign_rule"`
	SignColumn    string              `yaml:"sign_column"`
	SignValues    []string            `yaml:"sign_values"`
	AmountPattern string              `yaml:"amount_pattern"`
	Derived       []rawDerived        `yaml:"derived"`
	ExtrasIgnore  []string            `yaml:"extras_ignore"`
	Defaults      map[string]string   `yaml:"defaults"`
	Generic       bool                `yaml:"generic"`
}

type rawCatalog struct {
	Schemas []rawDefinition `yaml:"schemas"`
}

// Catalog holds every loaded definition in declaration order plus the
// generic fallback. Read-only after Load; safe to share across concurrent
// file-processing workers.
type Catalog struct {
	defs    []*Definition
	byID    map[string]*Definition
	generic *Definition
}

// Load reads and parses a schema catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: reading catalog %s: %w", path, err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("Load: catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Parse builds a Catalog from YAML. All rule identifiers and patterns are
// validated here so that rule errors surface before any row is processed.
func Parse(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(raw.Schemas) == 0 {
		return nil, fmt.Errorf("%w: catalog declares no schemas", ErrConfig)
	}

	catalog := &Catalog{byID: make(map[string]*Definition, len(raw.Schemas))}
	for i, r := range raw.Schemas {
		def, err := compileDefinition(r)
		if err != nil {
			return nil, fmt.Errorf("schema %d (%q): %w", i, r.ID, err)
		}
		if _, exists := catalog.byID[def.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate schema id %q", ErrConfig, def.ID)
		}
		catalog.byID[def.ID] = def
		catalog.defs = append(catalog.defs, def)
		if def.Generic {
			if catalog.generic != nil {
				return nil, fmt.Errorf("%w: more than one generic schema (%q and %q)",
					ErrConfig, catalog.generic.ID, def.ID)
			}
			catalog.generic = def
		}
	}

	if catalog.generic == nil {
		def := builtinGeneric()
		catalog.generic = def
		catalog.byID[def.ID] = def
	}
	return catalog, nil
}

func compileDefinition(raw rawDefinition) (*Definition, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: schema id is empty", ErrConfig)
	}

	def := &Definition{
		ID:         id,
		Required:   make(map[string][]string, len(raw.Required)),
		Optional:   make(map[string][]string, len(raw.Optional)),
		Rename:     make(map[string]string, len(raw.Rename)),
		DateFormat: normalizeDateFormat(raw.DateFormat),
		Defaults:   make(map[string]string, len(raw.Defaults)),
		Generic:    raw.Generic,
	}

	for field, aliases := range raw.Required {
		cleaned, err := cleanAliases(field, aliases)
		if err != nil {
			return nil, err
		}
		def.Required[strings.TrimSpace(field)] = cleaned
	}
	for field, aliases := range raw.Optional {
		cleaned, err := cleanAliases(field, aliases)
		if err != nil {
			return nil, err
		}
		def.Optional[strings.TrimSpace(field)] = cleaned
	}
	for header, field := range raw.Rename {
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("%w: rename for header %q targets an empty field", ErrConfig, header)
		}
		def.Rename[CanonicalizeHeader(header)] = strings.TrimSpace(field)
	}

	sign, err := newSignRule(raw.SignRule, raw.SignColumn, raw.SignValues)
	if err != nil {
		return nil, err
	}
	def.Sign = sign

	if raw.AmountPattern != "" {
		re, err := regexp.Compile(raw.AmountPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid amount pattern: %v", ErrConfig, err)
		}
		def.AmountPattern = re
	}

	for _, d := range raw.Derived {
		rule, err := newDerivedRule(d.Field, d.Kind, d.Value, d.Source, d.Pattern)
		if err != nil {
			return nil, err
		}
		def.Derived = append(def.Derived, rule)
	}

	def.ExtrasIgnore = make(map[string]struct{}, len(raw.ExtrasIgnore))
	for _, h := range raw.ExtrasIgnore {
		def.ExtrasIgnore[CanonicalizeHeader(h)] = struct{}{}
	}
	for field, value := range raw.Defaults {
		def.Defaults[strings.TrimSpace(field)] = value
	}
	return def, nil
}

func cleanAliases(field string, aliases []string) ([]string, error) {
	if strings.TrimSpace(field) == "" {
		return nil, fmt.Errorf("%w: alias set declared for an empty field name", ErrConfig)
	}
	if len(aliases) == 0 {
		return nil, fmt.Errorf("%w: field %q has no aliases", ErrConfig, field)
	}
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if strings.TrimSpace(a) == "" {
			return nil, fmt.Errorf("%w: field %q has an empty alias", ErrConfig, field)
		}
		out = append(out, a)
	}
	return out, nil
}

func normalizeDateFormat(format string) string {
	format = strings.TrimSpace(format)
	if strings.EqualFold(format, "infer") {
		return ""
	}
	return format
}

// builtinGeneric is the fallback used when the catalog declares no generic
// schema. It has no required fields, so it qualifies for any file, and knows
// only the most common header aliases.
func builtinGeneric() *Definition {
	return &Definition{
		ID:       GenericID,
		Required: map[string][]string{},
		Optional: map[string][]string{
			"date":                 {"Date", "Transaction Date", "Posted Date", "Date of Purchase"},
			"post_date":            {"Post Date", "Posting Date"},
			"amount":               {"Amount", "Actual Amount", "Transaction Amount"},
			"allowed_amount":       {"Allowed Amount"},
			"original_description": {"Description", "Original Description", "Details", "Memo"},
			"merchant":             {"Merchant", "Payee", "Name"},
			"category":             {"Category", "Type"},
			"account":              {"Account", "Account Name", "Account Number"},
			"owner":                {"Owner", "Person", "Paid By"},
			"currency":             {"Currency"},
		},
		Rename:       map[string]string{},
		ExtrasIgnore: map[string]struct{}{},
		Defaults:     map[string]string{"currency": "USD"},
		Generic:      true,
	}
}

// Lookup returns the definition with the given identifier.
func (c *Catalog) Lookup(id string) (*Definition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// Definitions returns all configured definitions in declaration order.
func (c *Catalog) Definitions() []*Definition {
	return c.defs
}

// Generic returns the fallback definition.
func (c *Catalog) Generic() *Definition {
	return c.generic
}
