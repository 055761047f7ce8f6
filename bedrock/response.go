package bedrock

import "encoding/json"

// MessageVersion is the fixed envelope version understood by the agent
// platform.
const MessageVersion = "1.0"

// Envelope is the outbound response contract for an action-group invocation.
type Envelope struct {
	MessageVersion string   `json:"messageVersion"`
	Response       Response `json:"response"`
}

// Response echoes the routing triple back to the agent alongside the status
// code and body.
type Response struct {
	ActionGroup    string                 `json:"actionGroup"`
	APIPath        string                 `json:"apiPath"`
	HTTPMethod     string                 `json:"httpMethod"`
	HTTPStatusCode int                    `json:"httpStatusCode"`
	ResponseBody   map[string]ContentBody `json:"responseBody"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
}

// ContentBody holds the response payload as a compact JSON string, keyed by
// content type in the enclosing ResponseBody map.
type ContentBody struct {
	Body string `json:"body"`
}

// FormatSuccess builds a 200 envelope wrapping data as compact JSON.
func FormatSuccess(actionGroup, apiPath, httpMethod string, data any) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	body, err := json.Marshal(data)
	if err != nil {
		// Payloads come from decoded JSON so this only fires on programmer
		// error; degrade to a generic failure rather than panicking.
		return FormatError(actionGroup, apiPath, httpMethod, "Internal server error", 500)
	}
	return newEnvelope(actionGroup, apiPath, httpMethod, 200, string(body))
}

// FormatError builds an error envelope with body {"error": message}.
func FormatError(actionGroup, apiPath, httpMethod, message string, statusCode int) Envelope {
	body, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		body = []byte(`{"error":"Internal server error"}`)
	}
	return newEnvelope(actionGroup, apiPath, httpMethod, statusCode, string(body))
}

// FormatValidationError builds a 400 envelope carrying field-specific
// validation messages.
func FormatValidationError(actionGroup, apiPath, httpMethod string, fieldErrors map[string]string) Envelope {
	body, err := json.Marshal(map[string]any{
		"error":             "Validation failed",
		"validation_errors": fieldErrors,
	})
	if err != nil {
		return FormatError(actionGroup, apiPath, httpMethod, "Validation failed", 400)
	}
	return newEnvelope(actionGroup, apiPath, httpMethod, 400, string(body))
}

// ExtractRequestInfo pulls the routing triple out of an event. Missing
// fields come back as empty strings, never an error.
func ExtractRequestInfo(event *Event) (actionGroup, apiPath, httpMethod string) {
	if event == nil {
		return "", "", ""
	}
	return event.ActionGroup, event.APIPath, event.HTTPMethod
}

// AddMetadata attaches debugging/monitoring metadata to an envelope.
func AddMetadata(env Envelope, metadata map[string]any) Envelope {
	if env.Response.Metadata == nil {
		env.Response.Metadata = make(map[string]any, len(metadata))
	}
	for k, v := range metadata {
		env.Response.Metadata[k] = v
	}
	return env
}

func newEnvelope(actionGroup, apiPath, httpMethod string, statusCode int, body string) Envelope {
	return Envelope{
		MessageVersion: MessageVersion,
		Response: Response{
			ActionGroup:    actionGroup,
			APIPath:        apiPath,
			HTTPMethod:     httpMethod,
			HTTPStatusCode: statusCode,
			ResponseBody: map[string]ContentBody{
				"application/json": {Body: body},
			},
		},
	}
}
