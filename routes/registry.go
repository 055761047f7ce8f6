package routes

import (
	"fmt"
	"strings"
	"sync"
)

// defaultActionGroupPrefix is the action-group token some callers prepend to
// the API path.
const defaultActionGroupPrefix = "CloudWatchMCP"

// Registry associates API paths with handlers. Stored keys are canonical
// (single leading slash); lookups normalize caller-supplied variants. Safe
// for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]Handler
	prefix string
}

// Option configures a Registry.
type Option func(*Registry)

// WithActionGroupPrefix overrides the action-group token stripped during
// path normalization.
func WithActionGroupPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// NewRegistry builds a Registry preloaded with the CloudWatch tool routes.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		routes: map[string]Handler{
			"/describe-log-groups":           &ToolCallHandler{Tool: "describe_log_groups"},
			"/analyze-log-group":             &ToolCallHandler{Tool: "analyze_log_group"},
			"/get-metric-data":               &ToolCallHandler{Tool: "get_metric_data"},
			"/get-metric-metadata":           &ToolCallHandler{Tool: "get_metric_metadata"},
			"/get-recommended-metric-alarms": &ToolCallHandler{Tool: "get_recommended_metric_alarms"},
			"/get-active-alarms":             &ToolCallHandler{Tool: "get_active_alarms"},
			"/get-alarm-history":             &ToolCallHandler{Tool: "get_alarm_history"},
			"/list-tools":                    &ListToolsHandler{},
			"/health":                        &HealthCheckHandler{},
		},
		prefix: defaultActionGroupPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a route.
func (r *Registry) Register(path string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = h
}

// Lookup returns the handler for an API path, or nil when no route matches.
// The raw path is tried first, then its normalized form. A miss is not an
// error; the caller owns the not-found response.
func (r *Registry) Lookup(path string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.routes[path]; ok {
		return h
	}
	if h, ok := r.routes[r.normalize(path)]; ok {
		return h
	}
	return nil
}

// Normalize exposes the lookup normalization, chiefly for diagnostics.
func (r *Registry) Normalize(path string) string {
	return r.normalize(path)
}

// normalize strips the action-group prefix (with or without a doubled
// slash), drops leading slashes, and re-prepends exactly one. Idempotent.
func (r *Registry) normalize(path string) string {
	p := strings.ReplaceAll(path, r.prefix+"//", "")
	p = strings.ReplaceAll(p, r.prefix+"/", "")
	p = strings.TrimLeft(p, "/")
	return "/" + p
}

// List reports every registered path and the kind of handler bound to it.
func (r *Registry) List() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.routes))
	for path, h := range r.routes {
		out[path] = fmt.Sprintf("%T", h)
	}
	return out
}

// Unregister removes a route, reporting whether it existed.
func (r *Registry) Unregister(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[path]; !ok {
		return false
	}
	delete(r.routes, path)
	return true
}
