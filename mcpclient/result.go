package mcpclient

// Kind classifies a failed MCP operation. The orchestrator maps each kind to
// an HTTP-style status code and a generic user-facing message; the detailed
// message on the Result is for logs only.
type Kind string

const (
	// KindValidation marks bad or missing caller input.
	KindValidation Kind = "validation_error"
	// KindConnection marks a failure to reach the MCP server or establish a
	// session with it.
	KindConnection Kind = "connection_error"
	// KindServer marks a reachable MCP server that returned a failure or
	// protocol fault.
	KindServer Kind = "mcp_server_error"
	// KindProcessing marks an unexpected internal fault during handling.
	KindProcessing Kind = "processing_error"
)

// Result is the outcome of one MCP operation. Exactly one of Data or Err is
// meaningful, per OK.
type Result struct {
	OK   bool
	Data map[string]any
	Err  string
	Kind Kind
}

// Success wraps payload data in a successful Result.
func Success(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{OK: true, Data: data}
}

// Failure wraps a classified error message in a failed Result.
func Failure(message string, kind Kind) Result {
	return Result{Err: message, Kind: kind}
}
