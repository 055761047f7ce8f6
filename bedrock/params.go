package bedrock

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
)

// Source is the fixed tag identifying the calling platform in synthesized
// request contexts.
const Source = "bedrock-agent"

const (
	defaultSessionID = "no-session"
	defaultAgentID   = "unknown-agent"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// Converter coerces a raw parameter value into its typed form. Returning an
// error keeps the raw value in place; it never fails the request.
type Converter func(value any) (any, error)

// IntConverter coerces numeric strings (and JSON numbers, which decode as
// float64) to int.
func IntConverter(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("not an integer: %w", err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

// Processor normalizes the heterogeneous parameter shapes of a Bedrock Agent
// event into a flat name→value map. A fixed set of field names is coerced to
// integers or booleans; both sets are extensible at runtime because the
// remote tool surface evolves independently of this adapter.
type Processor struct {
	mu         sync.RWMutex
	converters map[string]Converter
	boolFields map[string]struct{}

	log *slog.Logger
}

// NewProcessor returns a Processor seeded with the CloudWatch-relevant
// coercion sets. Logs are discarded unless a logger is provided.
func NewProcessor(log *slog.Logger) *Processor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		converters: map[string]Converter{
			"max_results": IntConverter,
			"timeout":     IntConverter,
			"retries":     IntConverter,
		},
		boolFields: map[string]struct{}{
			"dry_run":     {},
			"include_all": {},
			"recursive":   {},
			"force":       {},
			"verbose":     {},
		},
		log: log,
	}
}

// RegisterConverter adds or replaces the converter for a field name.
func (p *Processor) RegisterConverter(name string, fn Converter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.converters[name] = fn
}

// RegisterBoolField marks a field name for boolean coercion.
func (p *Processor) RegisterBoolField(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boolFields[name] = struct{}{}
}

// Process converts the event's parameter list and request body into a Params
// value. It is a pure transformation: coercion failures keep the raw value,
// unexpected body shapes are skipped, and only a malformed JSON body entry
// is reported as an error (the caller decides the response).
func (p *Processor) Process(event *Event) (*Params, error) {
	values := make(map[string]any)

	for _, param := range event.Parameters {
		if param.Name == "" {
			continue
		}
		p.store(param.Name, param.Value, values)
	}

	if event.RequestBody != nil {
		if err := p.processBody(event.RequestBody, values); err != nil {
			return nil, err
		}
	}

	return &Params{
		Values:  values,
		Context: synthesizeContext(event),
	}, nil
}

// bodyContent is the nested properties shape some agent platform versions
// use for JSON request bodies.
type bodyContent struct {
	Properties []Parameter `json:"properties"`
}

func (p *Processor) processBody(body *RequestBody, values map[string]any) error {
	raw, ok := jsonContentEntry(body)
	if !ok {
		return nil
	}

	// The JSON entry is either {properties: [...]} or a bare parameter list.
	var nested bodyContent
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Properties != nil {
		for _, param := range nested.Properties {
			if param.Name == "" {
				continue
			}
			p.store(param.Name, param.Value, values)
		}
		return nil
	}

	var list []Parameter
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, param := range list {
			if param.Name == "" {
				continue
			}
			p.store(param.Name, param.Value, values)
		}
		return nil
	}

	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("malformed JSON request body: %w", err)
	}

	p.log.Warn("unexpected request body shape, skipping", "type", fmt.Sprintf("%T", probe))
	return nil
}

// jsonContentEntry finds the application/json entry in the content map,
// tolerating media-type parameters such as "; charset=utf-8".
func jsonContentEntry(body *RequestBody) (json.RawMessage, bool) {
	if raw, ok := body.Content["application/json"]; ok {
		return raw, true
	}
	for key, raw := range body.Content {
		mt := contenttype.NewMediaType(key)
		if mt.Type == jsonMediaType.Type && mt.Subtype == jsonMediaType.Subtype {
			return raw, true
		}
	}
	return nil, false
}

func (p *Processor) store(name string, value any, values map[string]any) {
	p.mu.RLock()
	converter, hasConverter := p.converters[name]
	_, isBool := p.boolFields[name]
	p.mu.RUnlock()

	if hasConverter {
		converted, err := converter(value)
		if err != nil {
			p.log.Warn("parameter coercion failed, keeping original",
				"name", name, "error", err)
			values[name] = value
			return
		}
		values[name] = converted
		return
	}

	if isBool {
		values[name] = coerceBool(value)
		return
	}

	values[name] = value
}

// coerceBool maps the platform's string booleans to real booleans. Anything
// unrecognized passes through verbatim.
func coerceBool(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return value
	}
}

func synthesizeContext(event *Event) RequestContext {
	rc := RequestContext{
		RequestID: event.RequestID,
		Source:    Source,
		SessionID: event.SessionID,
		AgentID:   "",
	}
	if event.Agent != nil {
		rc.AgentID = event.Agent.ID
	}
	if rc.RequestID == "" {
		rc.RequestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	if rc.SessionID == "" {
		rc.SessionID = defaultSessionID
	}
	if rc.AgentID == "" {
		rc.AgentID = defaultAgentID
	}
	return rc
}
