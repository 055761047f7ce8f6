// Package routes maps Bedrock Agent API paths to the MCP operations that
// serve them.
package routes

import (
	"context"
	"fmt"

	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/bedrock"
	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/mcpclient"
)

// Handler serves one route category against the MCP client.
type Handler interface {
	Handle(ctx context.Context, client *mcpclient.Client, params *bedrock.Params) mcpclient.Result
}

// KindHealthCheckFailed tags a failed health probe. It is outside the closed
// error taxonomy on purpose: the orchestrator maps it through the unknown
// branch to a plain 500.
const KindHealthCheckFailed mcpclient.Kind = "health_check_failed"

// ToolCallHandler invokes a fixed MCP tool with the request parameters. The
// operation name alone determines which wire strategy carries the call.
type ToolCallHandler struct {
	Tool string
}

func (h *ToolCallHandler) Handle(ctx context.Context, client *mcpclient.Client, params *bedrock.Params) (res mcpclient.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = mcpclient.Failure(fmt.Sprintf("tool %q execution failed: %v", h.Tool, r), mcpclient.KindProcessing)
		}
	}()

	var values map[string]any
	if params != nil {
		values = params.Values
	}
	return client.Execute(ctx, h.Tool, values)
}

// ListToolsHandler lists the tools the MCP server exposes.
type ListToolsHandler struct{}

func (h *ListToolsHandler) Handle(ctx context.Context, client *mcpclient.Client, params *bedrock.Params) mcpclient.Result {
	return client.Execute(ctx, mcpclient.OpListTools, nil)
}

// HealthCheckHandler probes the MCP server and reports a health verdict,
// echoing a caller-supplied timestamp when present.
type HealthCheckHandler struct{}

func (h *HealthCheckHandler) Handle(ctx context.Context, client *mcpclient.Client, params *bedrock.Params) mcpclient.Result {
	if !client.HealthCheck(ctx) {
		return mcpclient.Failure("MCP server unhealthy", KindHealthCheckFailed)
	}

	var timestamp any
	if params != nil {
		timestamp = params.Values["timestamp"]
	}
	return mcpclient.Success(map[string]any{
		"status":    "healthy",
		"timestamp": timestamp,
	})
}
