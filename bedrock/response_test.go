package bedrock

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decodeBody(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	content, ok := env.Response.ResponseBody["application/json"]
	if !ok {
		t.Fatalf("missing application/json response body: %+v", env)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(content.Body), &out); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	return out
}

func TestFormatSuccessRoundTrip(t *testing.T) {
	env := FormatSuccess("ag", "/x", "GET", map[string]any{"x": 1})

	if env.MessageVersion != "1.0" {
		t.Errorf("want messageVersion 1.0, got %q", env.MessageVersion)
	}
	if env.Response.HTTPStatusCode != 200 {
		t.Errorf("want status 200, got %d", env.Response.HTTPStatusCode)
	}
	if env.Response.ActionGroup != "ag" || env.Response.APIPath != "/x" || env.Response.HTTPMethod != "GET" {
		t.Errorf("routing triple not echoed: %+v", env.Response)
	}

	body := decodeBody(t, env)
	if !reflect.DeepEqual(body, map[string]any{"x": float64(1)}) {
		t.Errorf("round trip failed: %v", body)
	}
}

func TestFormatSuccessNilData(t *testing.T) {
	env := FormatSuccess("ag", "/x", "GET", nil)
	if body := decodeBody(t, env); len(body) != 0 {
		t.Errorf("want empty object body, got %v", body)
	}
}

func TestFormatError(t *testing.T) {
	env := FormatError("ag", "/x", "POST", "boom", 503)

	if env.Response.HTTPStatusCode != 503 {
		t.Errorf("want status 503, got %d", env.Response.HTTPStatusCode)
	}
	body := decodeBody(t, env)
	if body["error"] != "boom" {
		t.Errorf("want error body, got %v", body)
	}
}

func TestFormatValidationError(t *testing.T) {
	env := FormatValidationError("ag", "/x", "POST", map[string]string{"max_results": "must be positive"})

	if env.Response.HTTPStatusCode != 400 {
		t.Errorf("want status 400, got %d", env.Response.HTTPStatusCode)
	}
	body := decodeBody(t, env)
	if body["error"] != "Validation failed" {
		t.Errorf("want Validation failed, got %v", body["error"])
	}
	fields, ok := body["validation_errors"].(map[string]any)
	if !ok || fields["max_results"] != "must be positive" {
		t.Errorf("want field errors echoed, got %v", body["validation_errors"])
	}
}

func TestExtractRequestInfo(t *testing.T) {
	ag, path, method := ExtractRequestInfo(&Event{ActionGroup: "ag", APIPath: "/p", HTTPMethod: "GET"})
	if ag != "ag" || path != "/p" || method != "GET" {
		t.Errorf("unexpected triple: %q %q %q", ag, path, method)
	}

	ag, path, method = ExtractRequestInfo(nil)
	if ag != "" || path != "" || method != "" {
		t.Errorf("nil event must yield empty strings, got %q %q %q", ag, path, method)
	}
}

func TestAddMetadata(t *testing.T) {
	env := FormatSuccess("ag", "/x", "GET", map[string]any{})
	env = AddMetadata(env, map[string]any{"duration_ms": 12})

	if env.Response.Metadata["duration_ms"] != 12 {
		t.Errorf("metadata not attached: %v", env.Response.Metadata)
	}
}
