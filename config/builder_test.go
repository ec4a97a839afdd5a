package config

import (
	"testing"

	"github.com/barnum167/nanodc-monitor"
)

// parseValid is a helper wrapping Parse with a fatal on error.
func parseValid(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

// TestBuildOptions_Minimal verifies a minimal config yields options that
// construct a working monitor with defaults.
func TestBuildOptions_Minimal(t *testing.T) {
	cfg := parseValid(t, `
site: bc02
api:
  base_url: https://api.nanodc.example
`)

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	m, err := nanodc.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.CurrentSite() != "bc02" {
		t.Errorf("CurrentSite = %q, want bc02", m.CurrentSite())
	}
}

// TestBuildOptions_CustomLayout verifies declared layouts are expanded and
// rejected when invalid.
func TestBuildOptions_CustomLayout(t *testing.T) {
	cfg := parseValid(t, `
site: bc02
api:
  base_url: https://api.nanodc.example
layout:
  - image_type: lonovo_post
    slots: 2
  - image_type: nas
    slots: 1
`)

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	if _, err := nanodc.New(opts...); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// an unknown image type passes YAML parsing but fails layout expansion
	bad := parseValid(t, `
site: bc02
api:
  base_url: https://api.nanodc.example
layout:
  - image_type: hologram
    slots: 2
`)
	if _, err := BuildOptions(bad); err == nil {
		t.Error("expected BuildOptions to reject unknown image type")
	}
}

// TestBuildRuleSet_MergedOverDefaults verifies config site tables overlay
// the built-in rule set without erasing other sites.
func TestBuildRuleSet_MergedOverDefaults(t *testing.T) {
	cfg := parseValid(t, `
site: bc03
api:
  base_url: https://api.nanodc.example
sites:
  bc03:
    lonovo_post:
      0: "all:Edge,Node"
    nas:
      0: NAS1
`)

	merged := nanodc.DefaultRuleSet().Merge(buildRuleSet(cfg.Sites))

	// the configured site is present with its rule
	rule, ok := merged["bc03"][nanodc.ImageTypeLonovoPost][0]
	if !ok {
		t.Fatal("expected bc03 rule in merged set")
	}
	if rule.Mode != nanodc.MatchAll || len(rule.Keywords) != 2 {
		t.Errorf("unexpected converted rule: %+v", rule)
	}

	// the built-in sites survive the overlay
	if _, ok := merged["bc02"]; !ok {
		t.Error("expected built-in bc02 table to survive merge")
	}

	// the merged set passes SDK validation (e.g. NAS single-keyword check)
	if err := merged.Validate(); err != nil {
		t.Errorf("merged rule set must validate, got %v", err)
	}
}

// TestBuildRule verifies the RuleConfig conversion covers both modes and the
// display-name default.
func TestBuildRule(t *testing.T) {
	all := buildRule(RuleConfig{Keywords: []string{"Filecoin", "Miner"}, DisplayName: "Filecoin Miner"})
	if all.Mode != nanodc.MatchAll {
		t.Errorf("Mode = %q, want all (default)", all.Mode)
	}

	any := buildRule(RuleConfig{Match: "any", Keywords: []string{"3080Ti", "GPU Worker"}, DisplayName: "GPU"})
	if any.Mode != nanodc.MatchAny {
		t.Errorf("Mode = %q, want any", any.Mode)
	}
	if len(any.Keywords) != 2 || any.DisplayName != "GPU" {
		t.Errorf("unexpected converted rule: %+v", any)
	}
}
