package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/internal/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ============================================================================
// Direct path
// ============================================================================

// directServer fakes the stateless JSON-RPC endpoint: a session bootstrap
// route plus per-operation routes that accept initialize and tools/call.
type directServer struct {
	t *testing.T

	mu           sync.Mutex
	sessionPosts int
	lastSession  string

	sessionStatus  int
	sessionBody    string
	initStatus     int
	initBody       string
	callStatus     int
	callBody       string
	sessionDelay   time.Duration
	requireSession bool
}

func newDirectServer(t *testing.T) *directServer {
	return &directServer{
		t:              t,
		sessionStatus:  http.StatusOK,
		sessionBody:    `{"session_id":"sess-1"}`,
		initStatus:     http.StatusOK,
		callStatus:     http.StatusOK,
		callBody:       `{"logGroups":[]}`,
		requireSession: true,
	}
}

func (s *directServer) stats() (posts int, lastSession string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionPosts, s.lastSession
}

func (s *directServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session" {
			s.mu.Lock()
			s.sessionPosts++
			s.mu.Unlock()
			if s.sessionDelay > 0 {
				time.Sleep(s.sessionDelay)
			}
			w.WriteHeader(s.sessionStatus)
			io.WriteString(w, s.sessionBody)
			return
		}

		if s.requireSession && r.Header.Get("Mcp-Session-Id") == "" {
			s.t.Errorf("missing Mcp-Session-Id header on %s", r.URL.Path)
		}
		s.mu.Lock()
		s.lastSession = r.Header.Get("Mcp-Session-Id")
		s.mu.Unlock()

		var req jsonrpc.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.t.Errorf("non JSON-RPC body on %s: %v", r.URL.Path, err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		idJSON, err := json.Marshal(req.ID)
		if err != nil {
			s.t.Errorf("request id does not marshal: %v", err)
		}

		switch req.Method {
		case "initialize":
			w.WriteHeader(s.initStatus)
			if s.initBody != "" {
				io.WriteString(w, s.initBody)
			} else {
				io.WriteString(w, `{"jsonrpc":"2.0","result":{},"id":`+string(idJSON)+`}`)
			}
		case "tools/call":
			w.WriteHeader(s.callStatus)
			io.WriteString(w, strings.ReplaceAll(s.callBody, `"$ID"`, string(idJSON)))
		default:
			s.t.Errorf("unexpected JSON-RPC method %q", req.Method)
			w.WriteHeader(http.StatusBadRequest)
		}
	})
}

func TestExecuteDirect(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		fake := newDirectServer(t)
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		c := New(srv.URL, WithLogger(testLogger(t)))
		res := c.Execute(context.Background(), "describe_log_groups", nil)
		if !res.OK {
			t.Fatalf("want success, got %+v", res)
		}
		groups, ok := res.Data["logGroups"]
		if !ok {
			t.Fatalf("payload not passed through: %v", res.Data)
		}
		if arr, ok := groups.([]any); !ok || len(arr) != 0 {
			t.Errorf("want empty logGroups, got %v", groups)
		}
		if _, last := fake.stats(); last != "sess-1" {
			t.Errorf("session header not threaded: %q", last)
		}
	})

	t.Run("fresh session per call", func(t *testing.T) {
		fake := newDirectServer(t)
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		c := New(srv.URL, WithLogger(testLogger(t)))
		for i := 0; i < 2; i++ {
			if res := c.Execute(context.Background(), "get_active_alarms", nil); !res.OK {
				t.Fatalf("call %d failed: %+v", i, res)
			}
		}
		if posts, _ := fake.stats(); posts != 2 {
			t.Errorf("want 2 session bootstraps, got %d", posts)
		}
	})

	t.Run("session endpoint non-200 is a connection failure", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.sessionStatus = http.StatusInternalServerError
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if res.OK || res.Kind != KindConnection {
			t.Fatalf("want connection failure, got %+v", res)
		}
	})

	t.Run("missing session id is a connection failure", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.sessionBody = `{}`
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if res.OK || res.Kind != KindConnection {
			t.Fatalf("want connection failure, got %+v", res)
		}
	})

	t.Run("initialize rejection is a server failure", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.initStatus = http.StatusBadGateway
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if res.OK || res.Kind != KindServer {
			t.Fatalf("want server failure, got %+v", res)
		}
	})

	t.Run("tool call rejection extracts the error field", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.callStatus = http.StatusForbidden
		fake.callBody = `{"error":"access denied"}`
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if res.OK || res.Kind != KindServer {
			t.Fatalf("want server failure, got %+v", res)
		}
		if res.Err != "access denied" {
			t.Errorf("want extracted error message, got %q", res.Err)
		}
	})

	t.Run("unreachable server is a connection failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		res := New(url, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if res.OK || res.Kind != KindConnection {
			t.Fatalf("want connection failure, got %+v", res)
		}
	})

	t.Run("deadline expiry reads as a session timeout", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.sessionDelay = 500 * time.Millisecond
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(ctx, "describe_log_groups", nil)
		if res.OK || res.Kind != KindConnection {
			t.Fatalf("want connection failure, got %+v", res)
		}
		if res.Err != "MCP session timeout" {
			t.Errorf("want session timeout message, got %q", res.Err)
		}
	})

	t.Run("json-rpc result envelope is unwrapped", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.callBody = `{"jsonrpc":"2.0","result":{"metrics":[{"name":"CPUUtilization"}]},"id":"$ID"}`
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "get_metric_data", nil)
		if !res.OK {
			t.Fatalf("want success, got %+v", res)
		}
		if _, ok := res.Data["metrics"]; !ok {
			t.Errorf("envelope result not unwrapped: %v", res.Data)
		}
	})

	t.Run("json-rpc error body is a server failure despite the 200", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.callBody = `{"jsonrpc":"2.0","error":{"code":-32603,"message":"backend exploded"},"id":"$ID"}`
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if res.OK || res.Kind != KindServer {
			t.Fatalf("want server failure, got %+v", res)
		}
		if res.Err != "backend exploded" {
			t.Errorf("want error message surfaced, got %q", res.Err)
		}
	})

	t.Run("json-rpc invalid params is a validation failure", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.callBody = `{"jsonrpc":"2.0","error":{"code":-32602,"message":"max_results out of range"},"id":"$ID"}`
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if res.OK || res.Kind != KindValidation {
			t.Fatalf("want validation failure, got %+v", res)
		}
		if res.Err != "max_results out of range" {
			t.Errorf("want error message surfaced, got %q", res.Err)
		}
	})

	t.Run("initialize error body is a server failure despite the 200", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.initBody = `{"jsonrpc":"2.0","error":{"code":-32603,"message":"init broke"},"id":1}`
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if res.OK || res.Kind != KindServer {
			t.Fatalf("want server failure, got %+v", res)
		}
		if res.Err != "init broke" {
			t.Errorf("want error message surfaced, got %q", res.Err)
		}
	})

	t.Run("non-object payload is wrapped", func(t *testing.T) {
		fake := newDirectServer(t)
		fake.callBody = `[1,2,3]`
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		res := New(srv.URL, WithLogger(testLogger(t))).Execute(context.Background(), "describe_log_groups", nil)
		if !res.OK {
			t.Fatalf("want success, got %+v", res)
		}
		if _, ok := res.Data["result"]; !ok {
			t.Errorf("want payload wrapped under result, got %v", res.Data)
		}
	})
}

// ============================================================================
// Legacy path
// ============================================================================

type fakeSession struct {
	listResult *sdk.ListToolsResult
	listErr    error
	callResult *sdk.CallToolResult
	callErr    error

	gotCall *sdk.CallToolParams
	closed  bool
}

func (f *fakeSession) ListTools(ctx context.Context, params *sdk.ListToolsParams) (*sdk.ListToolsResult, error) {
	return f.listResult, f.listErr
}

func (f *fakeSession) CallTool(ctx context.Context, params *sdk.CallToolParams) (*sdk.CallToolResult, error) {
	f.gotCall = params
	return f.callResult, f.callErr
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func dialerFor(sess Session, err error) DialFunc {
	return func(ctx context.Context) (Session, error) {
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func TestExecuteLegacy(t *testing.T) {
	t.Run("list tools maps descriptors", func(t *testing.T) {
		sess := &fakeSession{
			listResult: &sdk.ListToolsResult{
				Tools: []*sdk.Tool{
					{Name: "describe_log_groups", Description: "Lists log groups"},
					{Name: "mystery_tool"},
				},
			},
		}
		c := New("http://mcp.internal", WithDialer(dialerFor(sess, nil)), WithLogger(testLogger(t)))

		res := c.Execute(context.Background(), OpListTools, nil)
		if !res.OK {
			t.Fatalf("want success, got %+v", res)
		}
		tools, ok := res.Data["tools"].([]map[string]any)
		if !ok || len(tools) != 2 {
			t.Fatalf("unexpected tools payload: %v", res.Data)
		}
		if tools[0]["name"] != "describe_log_groups" || tools[0]["description"] != "Lists log groups" {
			t.Errorf("descriptor not mapped: %v", tools[0])
		}
		if tools[1]["description"] != "No description" {
			t.Errorf("want default description, got %v", tools[1]["description"])
		}
		if !sess.closed {
			t.Error("session not closed")
		}
	})

	t.Run("call tool flattens text content", func(t *testing.T) {
		sess := &fakeSession{
			callResult: &sdk.CallToolResult{
				Content: []sdk.Content{
					&sdk.TextContent{Text: "line one"},
					&sdk.TextContent{Text: "line two"},
				},
			},
		}
		c := New("http://mcp.internal", WithDialer(dialerFor(sess, nil)), WithLogger(testLogger(t)))

		res := c.Execute(context.Background(), OpCallTool, map[string]any{
			"tool_name": "describe_log_groups",
			"arguments": map[string]any{"max_results": 10},
		})
		if !res.OK {
			t.Fatalf("want success, got %+v", res)
		}
		content, ok := res.Data["content"].([]map[string]any)
		if !ok || len(content) != 2 {
			t.Fatalf("unexpected content payload: %v", res.Data)
		}
		if content[0]["text"] != "line one" {
			t.Errorf("content not flattened: %v", content[0])
		}
		if sess.gotCall.Name != "describe_log_groups" {
			t.Errorf("tool name not forwarded: %q", sess.gotCall.Name)
		}
	})

	t.Run("empty content yields an empty list", func(t *testing.T) {
		sess := &fakeSession{callResult: &sdk.CallToolResult{}}
		c := New("http://mcp.internal", WithDialer(dialerFor(sess, nil)), WithLogger(testLogger(t)))

		res := c.Execute(context.Background(), OpCallTool, map[string]any{"tool_name": "x"})
		if !res.OK {
			t.Fatalf("want success, got %+v", res)
		}
		content, ok := res.Data["content"].([]map[string]any)
		if !ok || len(content) != 0 {
			t.Errorf("want empty content list, got %v", res.Data)
		}
	})

	t.Run("missing tool name is a validation failure", func(t *testing.T) {
		c := New("http://mcp.internal", WithDialer(dialerFor(&fakeSession{}, nil)), WithLogger(testLogger(t)))

		res := c.Execute(context.Background(), OpCallTool, nil)
		if res.OK || res.Kind != KindValidation {
			t.Fatalf("want validation failure, got %+v", res)
		}
		if res.Err != "Tool name is required" {
			t.Errorf("unexpected message: %q", res.Err)
		}
	})

	t.Run("unknown action is a validation failure", func(t *testing.T) {
		c := New("http://mcp.internal", WithDialer(dialerFor(&fakeSession{}, nil)), WithLogger(testLogger(t)))

		res := c.Execute(context.Background(), "frobnicate", nil)
		if res.OK || res.Kind != KindValidation {
			t.Fatalf("want validation failure, got %+v", res)
		}
		if res.Err != "Unknown action: frobnicate" {
			t.Errorf("unexpected message: %q", res.Err)
		}
	})

	t.Run("slow handshake is a crisp connection failure", func(t *testing.T) {
		c := New("http://mcp.internal", WithDialer(func(ctx context.Context) (Session, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), WithLogger(testLogger(t)))
		c.initTimeout = 50 * time.Millisecond

		res := c.Execute(context.Background(), OpListTools, nil)
		if res.OK || res.Kind != KindConnection {
			t.Fatalf("want connection failure, got %+v", res)
		}
		if res.Err != "Session initialization timeout - server may be slow" {
			t.Errorf("unexpected message: %q", res.Err)
		}
	})

	t.Run("dial error after the handshake deadline keeps its own message", func(t *testing.T) {
		// The handshake timer fires before the dial returns, but the dial
		// fails on its own terms; that must not read as a timeout.
		c := New("http://mcp.internal", WithDialer(func(ctx context.Context) (Session, error) {
			time.Sleep(50 * time.Millisecond)
			return nil, io.ErrUnexpectedEOF
		}), WithLogger(testLogger(t)))
		c.initTimeout = 10 * time.Millisecond

		res := c.Execute(context.Background(), OpListTools, nil)
		if res.OK || res.Kind != KindConnection {
			t.Fatalf("want connection failure, got %+v", res)
		}
		if res.Err == "Session initialization timeout - server may be slow" {
			t.Errorf("dial error misclassified as handshake timeout: %q", res.Err)
		}
		if !strings.Contains(res.Err, "failed to connect") {
			t.Errorf("want the dial error surfaced, got %q", res.Err)
		}
	})

	t.Run("dial error is a connection failure", func(t *testing.T) {
		c := New("http://mcp.internal",
			WithDialer(dialerFor(nil, io.ErrUnexpectedEOF)), WithLogger(testLogger(t)))

		res := c.Execute(context.Background(), OpListTools, nil)
		if res.OK || res.Kind != KindConnection {
			t.Fatalf("want connection failure, got %+v", res)
		}
	})

	t.Run("list error is a server failure", func(t *testing.T) {
		c := New("http://mcp.internal",
			WithDialer(dialerFor(&fakeSession{listErr: io.ErrUnexpectedEOF}, nil)), WithLogger(testLogger(t)))

		res := c.Execute(context.Background(), OpListTools, nil)
		if res.OK || res.Kind != KindServer {
			t.Fatalf("want server failure, got %+v", res)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy when listing succeeds", func(t *testing.T) {
		c := New("http://mcp.internal",
			WithDialer(dialerFor(&fakeSession{listResult: &sdk.ListToolsResult{}}, nil)), WithLogger(testLogger(t)))
		if !c.HealthCheck(context.Background()) {
			t.Error("want healthy")
		}
	})

	t.Run("unhealthy when the server is unreachable", func(t *testing.T) {
		c := New("http://mcp.internal",
			WithDialer(dialerFor(nil, io.ErrUnexpectedEOF)), WithLogger(testLogger(t)))
		if c.HealthCheck(context.Background()) {
			t.Error("want unhealthy")
		}
	})
}

// ============================================================================

// Bridge is an implementation of slog.Handler that works
// with the stdlib testing pkg.
type Bridge struct {
	slog.Handler
	t   testing.TB
	buf *bytes.Buffer
	mu  *sync.Mutex
}

// Handle implements slog.Handler.
func (b *Bridge) Handle(ctx context.Context, rec slog.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.Handler.Handle(ctx, rec); err != nil {
		return err
	}

	output, err := io.ReadAll(b.buf)
	if err != nil {
		return err
	}

	b.t.Helper()
	b.t.Log(string(bytes.TrimSuffix(output, []byte("\n"))))

	return nil
}

// WithAttrs implements slog.Handler.
func (b *Bridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Bridge{t: b.t, buf: b.buf, mu: b.mu, Handler: b.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (b *Bridge) WithGroup(name string) slog.Handler {
	return &Bridge{t: b.t, buf: b.buf, mu: b.mu, Handler: b.Handler.WithGroup(name)}
}

func testLogger(t testing.TB) *slog.Logger {
	b := &Bridge{t: t, buf: &bytes.Buffer{}, mu: &sync.Mutex{}}
	b.Handler = slog.NewTextHandler(b.buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(b)
}
