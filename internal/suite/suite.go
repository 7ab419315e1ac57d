package suite

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TestSpec is one named test as declared in a suite file.
type TestSpec struct {
	Name  string     `yaml:"name" json:"name"`
	URL   string     `yaml:"url,omitempty" json:"url,omitempty"`
	Steps []StepSpec `yaml:"steps" json:"steps"`
}

// StepSpec is a single step. In YAML it is a mapping whose first key (other
// than "info") names the action and whose value is the payload:
//
//	- fill: {selector: "#email", value: "a@b.c"}
//	  info: enter email
type StepSpec struct {
	Action  string
	Payload Payload
	Info    string

	// Ignored holds action keys after the first one. They are not executed.
	Ignored []string
}

func (s *StepSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: step must be a mapping of action to payload", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value == "info" {
			if err := val.Decode(&s.Info); err != nil {
				return fmt.Errorf("line %d: info: %w", val.Line, err)
			}
			continue
		}
		if s.Action != "" {
			s.Ignored = append(s.Ignored, key.Value)
			continue
		}

		s.Action = key.Value
		var raw any
		if err := val.Decode(&raw); err != nil {
			return fmt.Errorf("line %d: %s: %w", val.Line, key.Value, err)
		}
		s.Payload = NewPayload(raw)
	}

	if s.Action == "" {
		return fmt.Errorf("line %d: step has no action", node.Line)
	}
	return nil
}

// MarshalYAML writes the step back in its authoring form.
func (s StepSpec) MarshalYAML() (any, error) {
	out := map[string]any{s.Action: s.Payload.raw}
	if s.Info != "" {
		out["info"] = s.Info
	}
	return out, nil
}

// Payload is the value attached to a step: a mapping of named parameters,
// a bare scalar, or nothing.
type Payload struct {
	raw any
}

func NewPayload(v any) Payload {
	if m, ok := v.(map[string]string); ok {
		conv := make(map[string]any, len(m))
		for k, s := range m {
			conv[k] = s
		}
		v = conv
	}
	return Payload{raw: v}
}

func (p Payload) IsZero() bool { return p.raw == nil }

func (p Payload) fields() map[string]any {
	m, _ := p.raw.(map[string]any)
	return m
}

// Scalar returns the payload as a string when it is not a mapping.
func (p Payload) Scalar() (string, bool) {
	switch v := p.raw.(type) {
	case nil, map[string]any, []any:
		return "", false
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

func (p Payload) Has(key string) bool {
	_, ok := p.fields()[key]
	return ok
}

// String returns the named parameter rendered as a string, or "" when absent.
func (p Payload) String(key string) string {
	v, ok := p.fields()[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Strings returns a list parameter. A single scalar becomes a one element
// list; an absent key gives nil.
func (p Payload) Strings(key string) []string {
	v, ok := p.fields()[key]
	if !ok || v == nil {
		return nil
	}
	switch v := v.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return append([]string{}, v...)
	default:
		return []string{p.String(key)}
	}
}

// StringOrScalar returns the named parameter, falling back to a scalar payload.
func (p Payload) StringOrScalar(key string) string {
	if s, ok := p.Scalar(); ok {
		return s
	}
	return p.String(key)
}

func (p Payload) Int(key string, def int) (int, error) {
	v, ok := p.fields()[key]
	if !ok || v == nil {
		return def, nil
	}
	return toInt(key, v)
}

// IntOrScalar is Int with a scalar payload taking the place of key.
func (p Payload) IntOrScalar(key string, def int) (int, error) {
	if _, ok := p.Scalar(); ok {
		return toInt(key, p.raw)
	}
	return p.Int(key, def)
}

func toInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not an integer", key, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%s: %v is not an integer", key, v)
	}
}

func (p Payload) Bool(key string, def bool) (bool, error) {
	v, ok := p.fields()[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("%s: %q is not a boolean", key, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%s: %v is not a boolean", key, v)
	}
}

// Millis reads a millisecond count into a duration.
func (p Payload) Millis(key string, def time.Duration) (time.Duration, error) {
	if !p.Has(key) {
		return def, nil
	}
	ms, err := p.Int(key, 0)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Summary renders the payload for progress lines and logs.
func (p Payload) Summary() string {
	switch v := p.raw.(type) {
	case nil:
		return ""
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v[k]))
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
