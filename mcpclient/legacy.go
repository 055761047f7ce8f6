package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/internal/logctx"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Session is the slice of an MCP client session the legacy strategy needs.
// *sdk.ClientSession satisfies it; tests substitute fakes via WithDialer.
type Session interface {
	ListTools(ctx context.Context, params *sdk.ListToolsParams) (*sdk.ListToolsResult, error)
	CallTool(ctx context.Context, params *sdk.CallToolParams) (*sdk.CallToolResult, error)
	Close() error
}

// DialFunc establishes an initialized MCP session. The provided context
// bounds the handshake only.
type DialFunc func(ctx context.Context) (Session, error)

// dialStreamable is the production dialer: a streamable-HTTP MCP session
// against the configured server URL.
func (c *Client) dialStreamable(ctx context.Context) (Session, error) {
	client := sdk.NewClient(&sdk.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, &sdk.ClientOptions{})

	transport := &sdk.StreamableClientTransport{
		Endpoint:   c.serverURL,
		HTTPClient: c.httpClient,
	}

	return client.Connect(ctx, transport, &sdk.ClientSessionOptions{})
}

// executeLegacy runs the streamable-session strategy: connect and initialize
// under a short handshake sub-deadline so a slow server surfaces as a crisp
// connection failure instead of burning the whole call budget, then dispatch
// the sub-action.
func (c *Client) executeLegacy(ctx context.Context, action string, params map[string]any) Result {
	ctx = logctx.WithCallData(ctx, &logctx.CallData{Operation: action, Protocol: "legacy"})

	// The handshake context must outlive the handshake itself: the session
	// may be bound to it, so it is only canceled once the operations below
	// have completed.
	handshakeCtx, cancelHandshake := context.WithCancel(ctx)
	defer cancelHandshake()
	timer := time.AfterFunc(c.initTimeout, cancelHandshake)

	sess, err := c.dial(handshakeCtx)
	timer.Stop()
	if err != nil {
		// The timer firing and the dial failing are independent events;
		// only a dial error that is the cancellation itself reads as the
		// handshake timing out.
		if handshakeCtx.Err() != nil && ctx.Err() == nil && errors.Is(err, context.Canceled) {
			c.log.ErrorContext(ctx, "session initialization timed out")
			return Failure("Session initialization timeout - server may be slow", KindConnection)
		}
		c.log.ErrorContext(ctx, "failed to connect to MCP server", "error", err)
		return Failure(fmt.Sprintf("failed to connect to MCP server: %v", err), KindConnection)
	}
	defer sess.Close()

	c.log.DebugContext(ctx, "legacy session initialized")

	switch action {
	case OpListTools:
		return c.listTools(ctx, sess)
	case OpCallTool:
		return c.callTool(ctx, sess, params)
	default:
		c.log.ErrorContext(ctx, "unknown action requested")
		return Failure(fmt.Sprintf("Unknown action: %s", action), KindValidation)
	}
}

// listTools maps the server's tool descriptors into the adapter's listing
// shape.
func (c *Client) listTools(ctx context.Context, sess Session) Result {
	resp, err := sess.ListTools(ctx, &sdk.ListToolsParams{})
	if err != nil {
		c.log.ErrorContext(ctx, "list tools failed", "error", err)
		return Failure(fmt.Sprintf("failed to list tools: %v", err), KindServer)
	}

	tools := make([]map[string]any, 0, len(resp.Tools))
	for _, tool := range resp.Tools {
		desc := tool.Description
		if desc == "" {
			desc = "No description"
		}
		tools = append(tools, map[string]any{
			"name":         tool.Name,
			"description":  desc,
			"input_schema": tool.InputSchema,
		})
	}

	return Success(map[string]any{"tools": tools})
}

// callTool invokes a named tool with an arguments sub-map and flattens the
// returned content items to their text.
func (c *Client) callTool(ctx context.Context, sess Session, params map[string]any) Result {
	name, _ := params["tool_name"].(string)
	if name == "" {
		return Failure("Tool name is required", KindValidation)
	}

	args, _ := params["arguments"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	callCtx := ctx
	if c.toolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.toolTimeout)
		defer cancel()
	}

	resp, err := sess.CallTool(callCtx, &sdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		c.log.ErrorContext(ctx, "tool call failed", "tool", name, "error", err)
		return Failure(fmt.Sprintf("tool %q execution failed: %v", name, err), KindServer)
	}

	content := make([]map[string]any, 0, len(resp.Content))
	for _, item := range resp.Content {
		if tc, ok := item.(*sdk.TextContent); ok {
			content = append(content, map[string]any{"text": tc.Text})
		}
	}

	return Success(map[string]any{"content": content})
}
