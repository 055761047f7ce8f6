// Package bedrock models the wire contract between this adapter and the
// Bedrock Agent action-group runtime: the inbound invocation event, the
// normalized parameter set handed to route handlers, and the fixed-shape
// response envelope the agent platform expects back.
package bedrock

import "encoding/json"

// Event is the Bedrock Agent action-group invocation event as delivered to
// the hosting runtime. Fields the adapter does not consume are ignored by
// the decoder.
type Event struct {
	ActionGroup string       `json:"actionGroup"`
	APIPath     string       `json:"apiPath"`
	HTTPMethod  string       `json:"httpMethod"`
	Parameters  []Parameter  `json:"parameters,omitempty"`
	RequestBody *RequestBody `json:"requestBody,omitempty"`
	RequestID   string       `json:"requestId,omitempty"`
	SessionID   string       `json:"sessionId,omitempty"`
	Agent       *Agent       `json:"agent,omitempty"`
}

// Parameter is a single name/value pair from the event's flat parameter list.
// Values arrive as strings from the agent platform but the shape tolerates
// arbitrary JSON.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// RequestBody wraps the per-media-type content map of the inbound event.
// Entries are kept raw; only the JSON entry is interpreted, and its exact
// shape varies across agent platform versions.
type RequestBody struct {
	Content map[string]json.RawMessage `json:"content,omitempty"`
}

// Agent identifies the calling Bedrock agent.
type Agent struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Alias   string `json:"alias,omitempty"`
	Version string `json:"version,omitempty"`
}

// RequestContext travels with every normalized parameter set so that each
// outbound MCP call can be correlated back to the triggering invocation.
type RequestContext struct {
	RequestID string
	Source    string
	SessionID string
	AgentID   string
}

// Params is the immutable result of parameter processing: the flat
// name→value map handed to tool calls plus the request context. Create once
// per inbound event and treat as read-only afterwards.
type Params struct {
	Values  map[string]any
	Context RequestContext
}
