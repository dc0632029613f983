package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks fatal configuration errors; the run aborts before any
// file is processed.
var ErrInvalid = errors.New("invalid configuration")

// Parties names the two ledger parties. The sign convention is fixed:
// a positive balance means party A owes party B.
type Parties struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Rent configures the monthly rent split.
type Rent struct {
	// Payer is "a" or "b": the party who pays the landlord in full.
	Payer string `yaml:"payer"`

	// Baseline is the expected monthly gross rent.
	Baseline decimal.Decimal `yaml:"-"`

	// VarianceTolerance is the fractional deviation from baseline above
	// which a month is flagged.
	VarianceTolerance float64 `yaml:"variance_tolerance"`

	RawBaseline float64 `yaml:"baseline"`
}

// Inputs locates the input data and the schema catalog. RentSchemas lists
// the schema identifiers whose records feed the rent rules instead of the
// expense rules.
type Inputs struct {
	Dir           string   `yaml:"dir"`
	SchemaCatalog string   `yaml:"schema_catalog"`
	RentSchemas   []string `yaml:"rent_schemas"`
}

// BigQuery configures the canonical-table export destination.
type BigQuery struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
}

// GCS configures the optional input pull from Cloud Storage.
type GCS struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Config is the application configuration. Loaded once at startup and
// read-only afterwards. Monetary knobs are decimals; the Raw* fields exist
// only for YAML decoding and are folded into their decimal counterparts by
// Load.
type Config struct {
	Parties Parties `yaml:"parties"`

	PartyAShare    decimal.Decimal `yaml:"-"`
	RawPartyAShare float64         `yaml:"party_a_share"`

	Rent Rent `yaml:"rent"`

	// SettlementKeywords mark direct payments between the parties when found
	// in a merchant or description.
	SettlementKeywords []string `yaml:"settlement_keywords"`

	// OverrideMarker is the description substring that doubles the allowed
	// amount of an expense.
	OverrideMarker string `yaml:"override_marker"`

	// MerchantFallbackThreshold is the blank-merchant row fraction above
	// which merchants are backfilled from descriptions.
	MerchantFallbackThreshold float64 `yaml:"merchant_fallback_threshold"`

	// SharedEpsilon is the near-zero threshold separating shared from
	// personal expenses on the allowed amount.
	SharedEpsilon    decimal.Decimal `yaml:"-"`
	RawSharedEpsilon float64         `yaml:"shared_epsilon"`

	// ReconcileTolerance is the maximum absolute disagreement between the
	// three balance methods.
	ReconcileTolerance    decimal.Decimal `yaml:"-"`
	RawReconcileTolerance float64         `yaml:"reconcile_tolerance"`

	// OutlierLimit flags amounts whose magnitude exceeds it.
	OutlierLimit    decimal.Decimal `yaml:"-"`
	RawOutlierLimit float64         `yaml:"outlier_limit"`

	Inputs   Inputs   `yaml:"inputs"`
	BigQuery BigQuery `yaml:"bigquery"`
	GCS      GCS      `yaml:"gcs"`
}

// Default returns the configuration defaults applied underneath any loaded
// file.
func Default() Config {
	cfg := Config{
		Parties:                   Parties{A: "A", B: "B"},
		RawPartyAShare:            0.5,
		Rent:                      Rent{Payer: "a", VarianceTolerance: 0.10},
		SettlementKeywords:        []string{"venmo", "zelle", "payment to"},
		OverrideMarker:            "2x",
		MerchantFallbackThreshold: 0.5,
		RawSharedEpsilon:          0.005,
		RawReconcileTolerance:     0.015,
		RawOutlierLimit:           10000,
		Inputs: Inputs{
			Dir:           "data",
			SchemaCatalog: "configs/schemas.yaml",
			RentSchemas:   []string{"rent_allocation"},
		},
		BigQuery: BigQuery{Dataset: "shared_finance"},
	}
	cfg.fold()
	return cfg
}

// fold converts the YAML-facing float fields into their decimal
// counterparts.
func (c *Config) fold() {
	c.PartyAShare = decimal.NewFromFloat(c.RawPartyAShare)
	c.Rent.Baseline = decimal.NewFromFloat(c.Rent.RawBaseline)
	c.SharedEpsilon = decimal.NewFromFloat(c.RawSharedEpsilon)
	c.ReconcileTolerance = decimal.NewFromFloat(c.RawReconcileTolerance)
	c.OutlierLimit = decimal.NewFromFloat(c.RawOutlierLimit)
}

// Load reads, merges over defaults, and validates a configuration file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("Load: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	cfg.applyEnv()
	cfg.fold()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv layers deploy-time environment overrides over the file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("BALANCE_BIGQUERY_PROJECT"); v != "" {
		c.BigQuery.Project = v
	}
	if v := os.Getenv("BALANCE_BIGQUERY_DATASET"); v != "" {
		c.BigQuery.Dataset = v
	}
	if v := os.Getenv("BALANCE_GCS_BUCKET"); v != "" {
		c.GCS.Bucket = v
	}
	if v := os.Getenv("BALANCE_INPUT_DIR"); v != "" {
		c.Inputs.Dir = v
	}
}

// Validate checks the invariants the ledger math depends on.
func (c Config) Validate() error {
	if c.Parties.A == "" || c.Parties.B == "" {
		return fmt.Errorf("%w: both parties must be named", ErrInvalid)
	}
	if c.Parties.A == c.Parties.B {
		return fmt.Errorf("%w: parties must be distinct", ErrInvalid)
	}
	one := decimal.NewFromInt(1)
	if !c.PartyAShare.IsPositive() || c.PartyAShare.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: party_a_share must be in (0, 1), got %s", ErrInvalid, c.PartyAShare)
	}
	if c.Rent.Payer != "a" && c.Rent.Payer != "b" {
		return fmt.Errorf("%w: rent payer must be \"a\" or \"b\", got %q", ErrInvalid, c.Rent.Payer)
	}
	if c.Rent.Baseline.IsNegative() {
		return fmt.Errorf("%w: rent baseline must not be negative", ErrInvalid)
	}
	if c.MerchantFallbackThreshold < 0 || c.MerchantFallbackThreshold > 1 {
		return fmt.Errorf("%w: merchant_fallback_threshold must be in [0, 1]", ErrInvalid)
	}
	if !c.ReconcileTolerance.IsPositive() {
		return fmt.Errorf("%w: reconcile_tolerance must be positive", ErrInvalid)
	}
	return nil
}

// PartyBShare is the complement of party A's configured share.
func (c Config) PartyBShare() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(c.PartyAShare)
}

// IsRentSchema reports whether records from the given schema feed the rent
// rules.
func (c Config) IsRentSchema(schemaID string) bool {
	for _, id := range c.Inputs.RentSchemas {
		if id == schemaID {
			return true
		}
	}
	return false
}

// RentPayerName resolves the rent payer setting to a party name.
func (c Config) RentPayerName() string {
	if c.Rent.Payer == "b" {
		return c.Parties.B
	}
	return c.Parties.A
}
