package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/internal/jsonrpc"
	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/internal/logctx"
	"github.com/google/uuid"
)

const (
	// Use the canonical header name for clarity; Go matches headers
	// case-insensitively.
	mcpSessionIDHeader = "Mcp-Session-Id"

	mcpProtocolVersion = "2024-11-05"
)

// sessionResponse is the body of the session bootstrap endpoint.
type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// initializeParams is the params object of the JSON-RPC initialize request.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// toolCallParams is the params object of the JSON-RPC tools/call request.
type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// executeDirect runs the stateless JSON-RPC over HTTP strategy: bootstrap a
// session, initialize, then invoke the tool. The session identifier is never
// reused across Execute calls; the remote server hands out a fresh one per
// handshake and nothing here assumes otherwise.
func (c *Client) executeDirect(ctx context.Context, op, suffix string, params map[string]any) Result {
	ctx = logctx.WithCallData(ctx, &logctx.CallData{Operation: op, Protocol: "direct"})

	sessionID, res := c.bootstrapSession(ctx)
	if !res.OK {
		return res
	}

	opURL := c.baseURL() + "/" + suffix

	if res := c.initializeSession(ctx, opURL, sessionID); !res.OK {
		return res
	}

	return c.callDirect(ctx, opURL, sessionID, op, params)
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.serverURL, "/")
}

// bootstrapSession obtains a session identifier from the session endpoint.
func (c *Client) bootstrapSession(ctx context.Context) (string, Result) {
	status, body, err := c.postJSON(ctx, c.baseURL()+"/session", "", map[string]any{})
	if err != nil {
		c.log.ErrorContext(ctx, "session bootstrap failed", "error", err)
		return "", Failure(fmt.Sprintf("failed to reach MCP session endpoint: %v", err), KindConnection)
	}
	if status != http.StatusOK {
		c.log.ErrorContext(ctx, "session bootstrap rejected", "status", status)
		return "", Failure(fmt.Sprintf("session endpoint returned status %d", status), KindConnection)
	}

	var sess sessionResponse
	if err := json.Unmarshal(body, &sess); err != nil || sess.SessionID == "" {
		c.log.ErrorContext(ctx, "session bootstrap response missing session_id")
		return "", Failure("session endpoint response missing session_id", KindConnection)
	}

	c.log.DebugContext(ctx, "session established")
	return sess.SessionID, Success(nil)
}

// initializeSession sends the JSON-RPC initialize envelope for the obtained
// session.
func (c *Client) initializeSession(ctx context.Context, opURL, sessionID string) Result {
	req, err := jsonrpc.NewRequest(jsonrpc.NewRequestID(uuid.NewString()), "initialize", initializeParams{
		ProtocolVersion: mcpProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
	})
	if err != nil {
		return Failure(fmt.Sprintf("failed to build initialize request: %v", err), KindProcessing)
	}

	status, body, err := c.postJSON(ctx, opURL, sessionID, req)
	if err != nil {
		c.log.ErrorContext(ctx, "initialize failed", "error", err)
		return Failure(fmt.Sprintf("failed to initialize MCP session: %v", err), KindConnection)
	}
	if status != http.StatusOK {
		c.log.ErrorContext(ctx, "initialize rejected", "status", status)
		return Failure(fmt.Sprintf("initialize returned status %d", status), KindServer)
	}

	var env jsonrpc.Response
	if uerr := json.Unmarshal(body, &env); uerr == nil && env.Error != nil {
		c.log.ErrorContext(ctx, "initialize returned an error",
			"code", int(env.Error.Code), "error", env.Error.Message)
		return Failure(rpcErrorMessage(env.Error), KindServer)
	}

	return Success(nil)
}

// callDirect sends the tools/call envelope and shapes the response.
func (c *Client) callDirect(ctx context.Context, opURL, sessionID, op string, params map[string]any) Result {
	if params == nil {
		params = map[string]any{}
	}
	id := jsonrpc.NewRequestID(uuid.NewString())
	req, err := jsonrpc.NewRequest(id, "tools/call", toolCallParams{
		Name:      op,
		Arguments: params,
	})
	if err != nil {
		return Failure(fmt.Sprintf("failed to build tools/call request: %v", err), KindProcessing)
	}

	callCtx := ctx
	if c.toolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.toolTimeout)
		defer cancel()
	}

	status, body, err := c.postJSON(callCtx, opURL, sessionID, req)
	if err != nil {
		c.log.ErrorContext(ctx, "tools/call failed", "error", err)
		return Failure(fmt.Sprintf("failed to call MCP tool: %v", err), KindConnection)
	}
	if status != http.StatusOK {
		msg := extractErrorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("MCP server returned status %d", status)
		}
		c.log.ErrorContext(ctx, "tools/call rejected", "status", status, "error", msg)
		return Failure(msg, KindServer)
	}

	// Servers on this path answer with either a JSON-RPC envelope or the
	// bare tool payload; an envelope may carry a body-level error despite
	// the 200.
	var env jsonrpc.Response
	if uerr := json.Unmarshal(body, &env); uerr == nil {
		if !env.ID.IsNil() && env.ID.String() != id.String() {
			c.log.WarnContext(ctx, "response id does not match request",
				"rpc_id", id.String(), "response_id", env.ID.String())
		}
		if env.Error != nil {
			c.log.ErrorContext(ctx, "tools/call returned an error",
				"code", int(env.Error.Code), "error", env.Error.Message)
			return Failure(rpcErrorMessage(env.Error), kindForRPCError(env.Error.Code))
		}
		return Success(decodePayload(env.Result))
	}

	return Success(decodePayload(body))
}

// kindForRPCError classifies a body-level JSON-RPC error. Invalid params
// trace back to caller input; a parse or invalid-request fault means this
// client built a bad envelope; everything else is the server's failure.
func kindForRPCError(code jsonrpc.ErrorCode) Kind {
	switch code {
	case jsonrpc.ErrorCodeInvalidParams:
		return KindValidation
	case jsonrpc.ErrorCodeParseError, jsonrpc.ErrorCodeInvalidRequest:
		return KindProcessing
	case jsonrpc.ErrorCodeMethodNotFound, jsonrpc.ErrorCodeInternalError:
		return KindServer
	default:
		return KindServer
	}
}

func rpcErrorMessage(e *jsonrpc.Error) string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("MCP server returned JSON-RPC error %d", int(e.Code))
}

// postJSON performs one round trip, returning the status code and the full
// response body. The session header is attached when non-empty.
func (c *Client) postJSON(ctx context.Context, url, sessionID string, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sessionID != "" {
		req.Header.Set(mcpSessionIDHeader, sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// decodePayload shapes a successful response body. JSON objects pass through
// as-is; any other payload is wrapped so the envelope body stays an object.
func decodePayload(body []byte) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		return obj
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return map[string]any{"result": v}
	}
	return map[string]any{"result": string(body)}
}

// extractErrorMessage pulls the error field out of a structured failure
// body, falling back to the raw body text.
func extractErrorMessage(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg, ok := obj["error"].(string); ok && msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}
