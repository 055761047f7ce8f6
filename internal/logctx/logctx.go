package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates an slog.Handler so that request-scoped attributes stashed
// in the context surface on every record without the call sites threading
// them through by hand.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("action_group", rd.ActionGroup),
			slog.String("api_path", rd.APIPath),
			slog.String("http_method", rd.HTTPMethod),
		))
	}

	if cd, ok := ctx.Value(callDataKey{}).(*CallData); ok {
		r.AddAttrs(slog.Group("mcp",
			slog.String("operation", cd.Operation),
			slog.String("protocol", cd.Protocol),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type requestDataKey struct{}

// RequestData carries the identifying triple of an inbound Bedrock Agent
// invocation plus the synthesized request id.
type RequestData struct {
	RequestID   string
	ActionGroup string
	APIPath     string
	HTTPMethod  string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type callDataKey struct{}

// CallData identifies an in-flight outbound MCP operation and which protocol
// strategy is carrying it ("direct" or "legacy").
type CallData struct {
	Operation string
	Protocol  string
}

func WithCallData(ctx context.Context, data *CallData) context.Context {
	return context.WithValue(ctx, callDataKey{}, data)
}
