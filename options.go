package nanodc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// monConfig holds mutable state during Monitor construction.
type monConfig struct {
	site            string
	layout          []SlotDescriptor
	rules           RuleSet
	defaultResolver DefaultResolver
	refreshInterval time.Duration
	requestTimeout  time.Duration
	apiBaseURL      string
	apiHeaders      map[string]string
	port            int
	logger          *slog.Logger
	fetcher         Fetcher
	cycleCallbacks  []func(CycleResult)
}

// Option configures a [Monitor] during construction.
//
// Option implements the functional options pattern; options return an error
// if validation fails. Built-in options: [WithSite], [WithLayout],
// [WithRules], [WithRefreshInterval], [WithAPIBaseURL], [WithRequestTimeout],
// [WithPort], [WithLogger], [WithFetcher], [WithCycleCallback],
// [WithDefaultResolver].
type Option func(*monConfig) error

// Fetcher performs one telemetry request for a site identifier.
//
// The default fetcher is the built-in HTTP client configured via
// [WithAPIBaseURL]; [WithFetcher] substitutes a custom implementation, which
// is also how tests inject fakes. Implementations must not retry internally
// and must honour context cancellation promptly.
type Fetcher interface {
	FetchNodes(ctx context.Context, site string) (Catalog, error)
}

// WithSite selects the initial site identifier to monitor.
//
// Exactly one site is active at a time; switch at runtime with
// [Monitor.ChangeSite]. A site is required for [New] to succeed.
func WithSite(site string) Option {
	return func(cfg *monConfig) error {
		if site == "" {
			return errors.New("site identifier cannot be empty")
		}
		cfg.site = site
		return nil
	}
}

// WithLayout sets the fixed ordered slot sequence for the display.
//
// Build the descriptor list with [BuildLayout]. Defaults to
// [DefaultLayout] if not specified.
func WithLayout(layout []SlotDescriptor) Option {
	return func(cfg *monConfig) error {
		if len(layout) == 0 {
			return errors.New("layout cannot be empty")
		}
		cfg.layout = append([]SlotDescriptor(nil), layout...)
		return nil
	}
}

// WithRules sets the per-site mapping tables, replacing the built-in
// [DefaultRuleSet]. To extend the defaults instead, start from
// DefaultRuleSet() and add entries before passing the set in.
//
// Returns an error if any table is invalid.
func WithRules(rules RuleSet) Option {
	return func(cfg *monConfig) error {
		if err := rules.Validate(); err != nil {
			return fmt.Errorf("invalid rule set: %w", err)
		}
		cfg.rules = rules
		return nil
	}
}

// WithDefaultResolver supplies non-site-specific resolution for slots that
// are absent from the active site's table. Without one, unmapped slots stay
// absent.
func WithDefaultResolver(resolver DefaultResolver) Option {
	return func(cfg *monConfig) error {
		cfg.defaultResolver = resolver
		return nil
	}
}

// WithRefreshInterval sets the pause between the end of one refresh cycle
// and the start of the next. Defaults to 20 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRefreshInterval(d time.Duration) Option {
	return func(cfg *monConfig) error {
		if d <= 0 {
			return errors.New("refresh interval must be positive")
		}
		cfg.refreshInterval = d
		return nil
	}
}

// WithAPIBaseURL sets the telemetry API root for the built-in HTTP fetcher,
// e.g. "https://api.nanodc.example". Required unless [WithFetcher] is used.
//
// Returns an error if the URL is invalid or has no http(s) scheme.
func WithAPIBaseURL(rawURL string) Option {
	return func(cfg *monConfig) error {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid API base URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New("API base URL scheme must be http or https")
		}
		cfg.apiBaseURL = rawURL
		return nil
	}
}

// WithAPIHeaders sets custom HTTP headers sent with every telemetry request
// made by the built-in fetcher (e.g. an authorization token). Ignored when
// [WithFetcher] is used.
func WithAPIHeaders(headers map[string]string) Option {
	return func(cfg *monConfig) error {
		cfg.apiHeaders = copyHeaders(headers)
		return nil
	}
}

// WithRequestTimeout bounds each telemetry fetch made by the built-in
// fetcher. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *monConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the display-state API server. Defaults to
// 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *monConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithFetcher substitutes a custom [Fetcher] for the built-in HTTP client.
// When set, [WithAPIBaseURL] is not required.
//
// Returns an error if the fetcher is nil.
func WithFetcher(f Fetcher) Option {
	return func(cfg *monConfig) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		cfg.fetcher = f
		return nil
	}
}

// WithCycleCallback registers a function invoked once per completed refresh
// cycle (success or failure), after the cycle has been resolved and stored.
//
// Multiple callbacks may be registered; they execute in registration order,
// synchronously from the result-consumer goroutine, so they must be
// non-blocking. Panics in callbacks are recovered and logged with a
// correlation ID; they never crash the refresh loop. Nil callbacks are
// silently ignored.
func WithCycleCallback(cb func(CycleResult)) Option {
	return func(cfg *monConfig) error {
		if cb == nil {
			return nil
		}
		cfg.cycleCallbacks = append(cfg.cycleCallbacks, cb)
		return nil
	}
}

// copyHeaders returns a shallow copy of the map, or nil for a nil map.
func copyHeaders(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
