// Package mcpclient executes named operations against a remote MCP server.
//
// Two wire strategies hide behind a single Execute call: a direct JSON-RPC
// over HTTP path with an explicit session handshake for the known CloudWatch
// operations, and a legacy streamable-HTTP MCP session for tool listing and
// generic calls. Callers never see the distinction; the operation name
// selects the strategy.
package mcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// timeoutBuffer pads the per-call deadline past the configured
	// connection timeout so transport errors classify before the deadline
	// fires.
	timeoutBuffer = 5 * time.Second

	// defaultInitTimeout bounds the legacy session handshake alone.
	// Materially shorter than the overall deadline so a slow server
	// produces a crisp failure instead of a silent outer timeout.
	defaultInitTimeout = 5 * time.Second

	clientName    = "cloudwatch-mcp-adapter"
	clientVersion = "1.0.0"
)

// Reserved operation names dispatched to the legacy path.
const (
	OpListTools = "list_tools"
	OpCallTool  = "call_tool"
)

// directOps maps the known CloudWatch operations to their REST-style URL
// suffixes on the direct JSON-RPC path. Anything else rides the legacy
// streamable session.
var directOps = map[string]string{
	"describe_log_groups":           "describe-log-groups",
	"analyze_log_group":             "analyze-log-group",
	"get_metric_data":               "get-metric-data",
	"get_metric_metadata":           "get-metric-metadata",
	"get_recommended_metric_alarms": "get-recommended-metric-alarms",
	"get_active_alarms":             "get-active-alarms",
	"get_alarm_history":             "get-alarm-history",
}

// Client talks to one MCP server. It is immutable after construction and
// safe for concurrent use.
type Client struct {
	serverURL      string
	connectTimeout time.Duration
	toolTimeout    time.Duration
	initTimeout    time.Duration
	httpClient     *http.Client
	dial           DialFunc
	log            *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithConnectionTimeout sets the connection timeout used to derive the
// per-call deadline.
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithToolTimeout bounds an individual tool invocation round trip.
func WithToolTimeout(d time.Duration) Option {
	return func(c *Client) { c.toolTimeout = d }
}

// WithHTTPClient swaps the HTTP client used by both wire strategies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDialer swaps the legacy session dialer. Tests use this to isolate the
// legacy strategy from a real streamable transport.
func WithDialer(dial DialFunc) Option {
	return func(c *Client) { c.dial = dial }
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a Client for the given MCP server base URL.
func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL:      serverURL,
		connectTimeout: 10 * time.Second,
		toolTimeout:    30 * time.Second,
		initTimeout:    defaultInitTimeout,
		httpClient:     http.DefaultClient,
		log:            slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = c.dialStreamable
	}
	return c
}

// Execute runs the named operation with the given parameters. It never
// returns an error and never panics outward: every failure path resolves to
// a Result with a classified Kind, and the whole call is bounded by the
// connection timeout plus a small buffer.
func (c *Client) Execute(ctx context.Context, op string, params map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic during MCP execute", "operation", op, "panic", r)
			res = Failure(fmt.Sprintf("internal fault executing %q: %v", op, r), KindProcessing)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout+timeoutBuffer)
	defer cancel()

	if suffix, ok := directOps[op]; ok {
		res = c.executeDirect(ctx, op, suffix, params)
	} else {
		res = c.executeLegacy(ctx, op, params)
	}

	if !res.OK && ctx.Err() == context.DeadlineExceeded {
		c.log.Error("MCP operation deadline exceeded", "operation", op)
		return Failure("MCP session timeout", KindConnection)
	}

	if res.OK {
		c.log.Info("MCP operation succeeded", "operation", op)
	} else {
		c.log.Error("MCP operation failed", "operation", op, "kind", string(res.Kind), "error", res.Err)
	}
	return res
}

// HealthCheck probes the server with a cheap listing call and reports
// whether it answered successfully.
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.Execute(ctx, OpListTools, nil).OK
}
