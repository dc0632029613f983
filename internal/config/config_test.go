package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults fail validation: %v", err)
	}
	if cfg.PartyAShare.String() != "0.5" {
		t.Errorf("default share = %s", cfg.PartyAShare)
	}
	if cfg.ReconcileTolerance.String() != "0.015" {
		t.Errorf("default tolerance = %s", cfg.ReconcileTolerance)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance.yaml")
	content := `
parties:
  a: Ryan
  b: Jordyn
party_a_share: 0.43
rent:
  payer: a
  baseline: 2100.00
inputs:
  dir: testdata
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Parties.A != "Ryan" || cfg.Parties.B != "Jordyn" {
		t.Errorf("parties = %+v", cfg.Parties)
	}
	if cfg.PartyAShare.String() != "0.43" {
		t.Errorf("share = %s, want 0.43", cfg.PartyAShare)
	}
	if got := cfg.PartyBShare().String(); got != "0.57" {
		t.Errorf("complement share = %s, want 0.57", got)
	}
	if cfg.Rent.Baseline.String() != "2100" {
		t.Errorf("baseline = %s", cfg.Rent.Baseline)
	}
	// Untouched keys keep their defaults.
	if cfg.OverrideMarker != "2x" {
		t.Errorf("override marker = %q, want default 2x", cfg.OverrideMarker)
	}
	if cfg.Inputs.Dir != "testdata" {
		t.Errorf("input dir = %q", cfg.Inputs.Dir)
	}
	if !cfg.IsRentSchema("rent_allocation") {
		t.Error("default rent schema list lost in merge")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("BALANCE_BIGQUERY_PROJECT", "env-project")
	t.Setenv("BALANCE_GCS_BUCKET", "env-bucket")

	path := filepath.Join(t.TempDir(), "balance.yaml")
	content := `
bigquery:
  project: file-project
gcs:
  bucket: file-bucket
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BigQuery.Project != "env-project" {
		t.Errorf("project = %q, want the environment override", cfg.BigQuery.Project)
	}
	if cfg.GCS.Bucket != "env-bucket" {
		t.Errorf("bucket = %q, want the environment override", cfg.GCS.Bucket)
	}
	if cfg.BigQuery.Dataset != "shared_finance" {
		t.Errorf("dataset = %q, want the default untouched", cfg.BigQuery.Dataset)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unnamed party", func(c *Config) { c.Parties.B = "" }},
		{"identical parties", func(c *Config) { c.Parties = Parties{A: "Ryan", B: "Ryan"} }},
		{"zero share", func(c *Config) { c.RawPartyAShare = 0 }},
		{"full share", func(c *Config) { c.RawPartyAShare = 1 }},
		{"bad rent payer", func(c *Config) { c.Rent.Payer = "landlord" }},
		{"negative baseline", func(c *Config) { c.Rent.RawBaseline = -100 }},
		{"threshold above one", func(c *Config) { c.MerchantFallbackThreshold = 1.5 }},
		{"zero tolerance", func(c *Config) { c.RawReconcileTolerance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			cfg.fold()
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted a bad config")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestLoadRejectsMissingAndMalformed(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("parties: [not, a, map]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("malformed yaml error = %v, want ErrInvalid", err)
	}
}

func TestValidateAcceptsZeroBaseline(t *testing.T) {
	cfg := Default()
	cfg.Rent.RawBaseline = 0
	cfg.fold()
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero baseline (variance flagging disabled) rejected: %v", err)
	}
}

func TestRentPayerName(t *testing.T) {
	cfg := Default()
	cfg.Parties = Parties{A: "Ryan", B: "Jordyn"}
	if got := cfg.RentPayerName(); got != "Ryan" {
		t.Errorf("payer a resolves to %q", got)
	}
	cfg.Rent.Payer = "b"
	if got := cfg.RentPayerName(); got != "Jordyn" {
		t.Errorf("payer b resolves to %q", got)
	}
}
