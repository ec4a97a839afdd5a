package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion on long-running
// displays that cycle forever against the same API host
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Node is the poller-internal representation of one reported device.
//
// This is decoupled from the public nanodc.Node type to avoid a dependency
// cycle between the internal packages and the library root; the root package
// converts between the two.
type Node struct {
	// Name is the device name reported by the API.
	Name string

	// Metrics holds the node's metric fields, opaque to this package.
	Metrics map[string]any
}

// FailureKind classifies a failed fetch for reporting on cycle results.
//
// Using a string type keeps the classification JSON- and log-friendly while
// the constants give it type safety.
type FailureKind string

const (
	// FailureNone marks a successful cycle.
	FailureNone FailureKind = ""

	// FailureNetwork marks transient connectivity problems, including
	// unexpected HTTP status codes from the telemetry API.
	FailureNetwork FailureKind = "network"

	// FailureMalformed marks a payload that does not match the expected
	// schema. Malformed cycles still complete — with an empty catalog —
	// and the loop keeps its schedule.
	FailureMalformed FailureKind = "malformed"

	// FailureTimeout marks a fetch that exceeded its bound.
	FailureTimeout FailureKind = "timeout"
)

// ErrMalformed is wrapped into every schema-level fetch failure. Use
// errors.Is to test for it.
var ErrMalformed = errors.New("malformed telemetry response")

// Classify maps a fetch error to its [FailureKind].
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrMalformed) {
		return FailureMalformed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureNetwork
}

// Fetcher performs one telemetry request for a site identifier.
//
// Implementations must not retry internally — retry policy belongs to the
// [Controller] — and must honour context cancellation, returning promptly
// once the context is done rather than running to their own timeout.
type Fetcher interface {
	FetchNodes(ctx context.Context, site string) ([]Node, error)
}

// Client is the HTTP [Fetcher] for the NanoDC telemetry API.
//
// Each call performs exactly one GET against
// {baseURL}/api/v1/sites/{site}/nodes with a per-request timeout applied via
// context. Response bodies are limited to 1MB.
type Client struct {
	baseURL    string
	headers    map[string]string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a telemetry [Client].
//
// baseURL is the API root without a trailing path. headers are sent with
// every request (e.g. an authorization token) and may be nil. timeout bounds
// each fetch; the [Controller] never waits longer than this for a cycle.
func NewClient(baseURL string, timeout time.Duration, headers map[string]string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		timeout: timeout,
		httpClient: &http.Client{
			// no global timeout - the per-request context carries it
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// nodesResponse is the expected wire schema. Anything beyond node_name and
// the metrics bag is owned by the external API and ignored here.
type nodesResponse struct {
	Nodes []nodePayload `json:"nodes"`
}

type nodePayload struct {
	Name    string         `json:"node_name"`
	Metrics map[string]any `json:"metrics"`
}

// FetchNodes performs one request and returns the parsed node catalog.
//
// Failures are typed for [Classify]: connection and HTTP-status problems
// classify as network, deadline expiry as timeout, and schema violations
// wrap [ErrMalformed]. FetchNodes never retries.
func (c *Client) FetchNodes(ctx context.Context, site string) ([]Node, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/v1/sites/%s/nodes", c.baseURL, url.PathEscape(site))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from telemetry API", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var payload nodesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	nodes := make([]Node, 0, len(payload.Nodes))
	for i, np := range payload.Nodes {
		if np.Name == "" {
			return nil, fmt.Errorf("%w: nodes[%d] missing node_name", ErrMalformed, i)
		}
		nodes = append(nodes, Node{Name: np.Name, Metrics: np.Metrics})
	}
	return nodes, nil
}

// Close releases idle connections in the client's pool. Safe to call
// multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
