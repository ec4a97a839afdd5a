// Package config provides YAML configuration parsing for the NanoDC monitor.
//
// This package enables running the monitor as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	site: bc02
//	port: 8080
//	refresh_interval: 20s
//
//	api:
//	  base_url: https://api.nanodc.example
//	  timeout: 10s
//	  headers:
//	    Authorization: Bearer ${NANODC_TOKEN}
//
//	layout:
//	  - image_type: lonovo_post
//	    slots: 6
//	  - image_type: nas
//	    slots: 3
//	  - image_type: logo
//	    slots: 1
//
//	sites:
//	  bc02:
//	    lonovo_post:
//	      0: Supra
//	      1: "any:3080Ti,GPU Worker"
//	      4:
//	        match: all
//	        keywords: [Filecoin, Miner]
//	        display_name: Filecoin Miner
//	    nas:
//	      0: NAS1
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minRefreshInterval is the minimum allowed refresh interval for production
// configs. This prevents accidental DoS of the telemetry API with overly
// aggressive polling.
const minRefreshInterval = 1 * time.Second

// Config is the root configuration structure for the NanoDC monitor.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Site is the site identifier to monitor at startup. Required.
	Site string `yaml:"site"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// RefreshInterval is the pause between the end of one refresh cycle
	// and the start of the next. Accepts duration strings like "20s",
	// "1m", "500ms". Defaults to 20s.
	RefreshInterval Duration `yaml:"refresh_interval"`

	// API configures the telemetry API client.
	API APIConfig `yaml:"api"`

	// Layout declares the fixed slot sequence of the display wall, in
	// order. If omitted, the built-in default layout is used.
	Layout []LayoutConfig `yaml:"layout"`

	// Sites maps site identifiers to their slot-rule tables. Entries here
	// override the built-in tables for the same site identifier.
	Sites map[string]SiteConfig `yaml:"sites"`
}

// APIConfig configures the telemetry API client.
type APIConfig struct {
	// BaseURL is the telemetry API root, e.g. "https://api.nanodc.example".
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// LayoutConfig declares a run of consecutive slots of one image type.
type LayoutConfig struct {
	// ImageType is the visual family: "lonovo_post", "nas", or "logo".
	ImageType string `yaml:"image_type"`

	// Slots is how many consecutive slots of this type to declare.
	Slots int `yaml:"slots"`
}

// SiteConfig is one site's rule tables, keyed by image type and then by
// zero-based slot index.
type SiteConfig map[string]map[int]RuleConfig

// RuleConfig specifies how one display slot selects a node.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	0: Supra
//	1: "any:3080Ti,GPU Worker"
//	4: "all:Filecoin,Miner"
//
// Structured object:
//
//	4:
//	  match: all
//	  keywords: [Filecoin, Miner]
//	  display_name: Filecoin Miner
//
// In the shorthand form the display name defaults to the keywords joined
// with spaces.
type RuleConfig struct {
	// Match combines the keywords: "all" (every keyword must appear) or
	// "any" (at least one must). Empty means "all".
	Match string

	// Keywords are the substrings tested against node names.
	Keywords []string

	// DisplayName is the slot caption. Defaults to the keywords joined
	// with spaces.
	DisplayName string
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for RuleConfig.
func (r *RuleConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return r.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Match       string   `yaml:"match"`
			Keywords    []string `yaml:"keywords"`
			Keyword     string   `yaml:"keyword"`
			DisplayName string   `yaml:"display_name"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		r.Match = raw.Match
		r.Keywords = raw.Keywords
		if raw.Keyword != "" {
			r.Keywords = append(r.Keywords, raw.Keyword)
		}
		r.DisplayName = raw.DisplayName
		if r.DisplayName == "" {
			r.DisplayName = strings.Join(r.Keywords, " ")
		}
		return nil
	}

	return fmt.Errorf("rule must be a string or object, got %v", node.Kind)
}

// parseShorthand parses rule shorthand syntax.
//
// Supported formats:
//   - "keyword" → single keyword, match all
//   - "all:kw1,kw2" → every keyword must appear
//   - "any:kw1,kw2" → at least one keyword must appear
func (r *RuleConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("rule shorthand must not be empty")
	}

	if idx := strings.Index(s, ":"); idx != -1 {
		mode := s[:idx]
		switch mode {
		case "all", "any":
			r.Match = mode
		default:
			return fmt.Errorf("unknown match mode %q (expected 'all' or 'any')", mode)
		}
		for _, kw := range strings.Split(s[idx+1:], ",") {
			kw = strings.TrimSpace(kw)
			if kw != "" {
				r.Keywords = append(r.Keywords, kw)
			}
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule shorthand %q has no keywords", s)
		}
	} else {
		r.Keywords = []string{s}
	}

	r.DisplayName = strings.Join(r.Keywords, " ")
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the API base URL and header values.
// Defaults are applied for Port (8080), RefreshInterval (20s) and the API
// Timeout (10s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = Duration(20 * time.Second)
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = Duration(10 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Site == "" {
		return errors.New("site is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.RefreshInterval.Duration() < minRefreshInterval {
		return fmt.Errorf("refresh_interval must be at least %s, got %s",
			minRefreshInterval, c.RefreshInterval.Duration())
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	expanded, err := expandEnvVars(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	c.API.BaseURL = expanded

	parsedURL, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if c.API.Timeout.Duration() < 0 {
		return fmt.Errorf("api.timeout cannot be negative, got %s", c.API.Timeout.Duration())
	}

	for k, v := range c.API.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("api.headers[%s]: %w", k, err)
		}
		c.API.Headers[k] = expanded
	}

	for i, lc := range c.Layout {
		if lc.ImageType == "" {
			return fmt.Errorf("layout[%d]: image_type is required", i)
		}
		if lc.Slots < 1 {
			return fmt.Errorf("layout[%d] (%s): slots must be positive, got %d", i, lc.ImageType, lc.Slots)
		}
	}

	for site, tables := range c.Sites {
		if site == "" {
			return errors.New("sites: site identifier must be non-empty")
		}
		for img, slots := range tables {
			for idx, rule := range slots {
				if idx < 0 {
					return fmt.Errorf("sites[%s].%s[%d]: slot index must not be negative", site, img, idx)
				}
				if len(rule.Keywords) == 0 {
					return fmt.Errorf("sites[%s].%s[%d]: at least one keyword is required", site, img, idx)
				}
				if rule.Match != "" && rule.Match != "all" && rule.Match != "any" {
					return fmt.Errorf("sites[%s].%s[%d]: match must be 'all' or 'any', got %q",
						site, img, idx, rule.Match)
				}
			}
		}
	}

	return nil
}
