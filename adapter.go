// Package adapter bridges Bedrock Agent action-group invocations to a
// remote MCP server: it normalizes the inbound event, routes the API path to
// a handler, executes the matching MCP operation, and shapes the outcome
// into the response envelope the agent platform expects.
package adapter

import (
	"context"
	"log/slog"
	"os"

	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/bedrock"
	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/internal/logctx"
	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/mcpclient"
	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/routes"
)

// Generic user-facing messages per error kind. The real failure detail is
// logged internally and never echoed to the agent platform.
const (
	msgValidation = "Invalid request parameters"
	msgConnection = "Service temporarily unavailable"
	msgServer     = "External service error"
	msgProcessing = "Request processing failed"
	msgInternal   = "Internal server error"
)

// Adapter orchestrates one inbound event into one outbound envelope. It is
// stateless across requests and safe for concurrent use.
type Adapter struct {
	cfg       Config
	processor *bedrock.Processor
	client    *mcpclient.Client
	registry  *routes.Registry
	log       *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the base logger. Its handler is wrapped so request-scoped
// attributes surface on every record.
func WithLogger(log *slog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// WithProcessor overrides the parameter processor.
func WithProcessor(p *bedrock.Processor) Option {
	return func(a *Adapter) { a.processor = p }
}

// WithClient overrides the MCP client.
func WithClient(c *mcpclient.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithRegistry overrides the route registry.
func WithRegistry(r *routes.Registry) Option {
	return func(a *Adapter) { a.registry = r }
}

// New builds an Adapter from a validated Config. Components not overridden
// via options are created with their defaults.
func New(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}
	a.log = slog.New(logctx.Handler{Handler: a.log.Handler()})

	if a.processor == nil {
		a.processor = bedrock.NewProcessor(a.log)
	}
	if a.client == nil {
		a.client = mcpclient.New(cfg.ServerURL,
			mcpclient.WithConnectionTimeout(cfg.connectionTimeout()),
			mcpclient.WithToolTimeout(cfg.toolTimeout()),
			mcpclient.WithLogger(a.log),
		)
	}
	if a.registry == nil {
		a.registry = routes.NewRegistry()
	}

	return a
}

// Config returns the configuration the adapter was built with.
func (a *Adapter) Config() Config { return a.cfg }

// HandleRequest turns one Bedrock Agent event into a response envelope. It
// never panics outward and never leaks internal failure detail: every exit
// path is a well-formed envelope with a generic message.
func (a *Adapter) HandleRequest(ctx context.Context, event *bedrock.Event) (env bedrock.Envelope) {
	if event == nil {
		event = &bedrock.Event{}
	}
	actionGroup, apiPath, httpMethod := bedrock.ExtractRequestInfo(event)

	defer func() {
		if r := recover(); r != nil {
			a.log.ErrorContext(ctx, "unexpected fault handling request", "panic", r)
			env = bedrock.FormatError(actionGroup, apiPath, httpMethod, msgInternal, 500)
		}
	}()

	params, err := a.processor.Process(event)
	if err != nil {
		a.log.ErrorContext(ctx, "parameter processing failed",
			"api_path", apiPath, "error", err)
		return bedrock.FormatError(actionGroup, apiPath, httpMethod, msgProcessing, 500)
	}

	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{
		RequestID:   params.Context.RequestID,
		ActionGroup: actionGroup,
		APIPath:     apiPath,
		HTTPMethod:  httpMethod,
	})
	a.log.InfoContext(ctx, "processing request")

	handler := a.registry.Lookup(apiPath)
	if handler == nil {
		a.log.WarnContext(ctx, "no handler for api path")
		return bedrock.FormatError(actionGroup, apiPath, httpMethod,
			"Unknown API path: "+apiPath, 404)
	}

	result := handler.Handle(ctx, a.client, params)
	if result.OK {
		a.log.InfoContext(ctx, "request completed")
		return bedrock.FormatSuccess(actionGroup, apiPath, httpMethod, result.Data)
	}

	a.log.ErrorContext(ctx, "request failed",
		"kind", string(result.Kind), "error", result.Err)
	return bedrock.FormatError(actionGroup, apiPath, httpMethod,
		messageForKind(result.Kind), statusForKind(result.Kind))
}

// HealthCheck reports the adapter's view of the MCP server. It never panics
// outward; any fault reads as unhealthy.
func (a *Adapter) HealthCheck(ctx context.Context) (health map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			a.log.ErrorContext(ctx, "health check fault", "panic", r)
			health = map[string]any{"status": "unhealthy"}
		}
	}()

	verdict := "unhealthy"
	if a.client.HealthCheck(ctx) {
		verdict = "healthy"
	}

	return map[string]any{
		"status":     verdict,
		"mcp_server": verdict,
		"config": map[string]any{
			"server_url": a.cfg.ServerURL,
			"timeout":    a.cfg.ConnectionTimeout,
		},
	}
}

// statusForKind maps an error kind to the HTTP-style status code surfaced in
// the envelope. Unknown kinds collapse to 500.
func statusForKind(kind mcpclient.Kind) int {
	switch kind {
	case mcpclient.KindValidation:
		return 400
	case mcpclient.KindConnection:
		return 502
	case mcpclient.KindServer:
		return 503
	case mcpclient.KindProcessing:
		return 500
	default:
		return 500
	}
}

// messageForKind picks the fixed user-facing message for an error kind.
func messageForKind(kind mcpclient.Kind) string {
	switch kind {
	case mcpclient.KindValidation:
		return msgValidation
	case mcpclient.KindConnection:
		return msgConnection
	case mcpclient.KindServer:
		return msgServer
	case mcpclient.KindProcessing:
		return msgProcessing
	default:
		return msgInternal
	}
}
