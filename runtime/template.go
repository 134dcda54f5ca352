package runtime

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// placeholderPattern accepts a variable name optionally followed by dotted keys.
var placeholderPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*(\.[A-Za-z0-9_-]+)*$`)

// Template is a string with {name} placeholders resolved against the variable store.
// Dotted names read nested maps ({token.access}); {{ and }} produce literal braces.
// Parsing is deferred to Get so that a malformed template fails where it is used.
type Template struct {
	raw string
}

func NewTemplate(s string) *Template {
	return &Template{raw: s}
}

func (t *Template) String() string {
	return t.raw
}

// UnmarshalYAML accepts any scalar, so numbers and booleans work as literal templates.
func (t *Template) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a string template", node.Line)
	}
	t.raw = node.Value
	return nil
}

// Get resolves every placeholder. A missing variable or a malformed template
// yields a *SubstitutionError.
func (t *Template) Get(env *Environment) (string, error) {
	var b strings.Builder
	s := t.raw
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return "", &SubstitutionError{Template: t.raw, Reason: "unclosed placeholder"}
			}
			name := s[i+1 : i+1+end]
			if !placeholderPattern.MatchString(name) {
				return "", &SubstitutionError{Template: t.raw, Name: name, Reason: "invalid placeholder"}
			}
			v, ok := env.Vars.Get(name)
			if !ok {
				return "", &SubstitutionError{Template: t.raw, Name: name, Reason: "missing variable"}
			}
			b.WriteString(formatValue(v))
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", &SubstitutionError{Template: t.raw, Reason: "single '}' encountered"}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// Literal escapes braces so s is reproduced verbatim by a Template.
func Literal(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case map[string]any, []any:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// resolveAll resolves a map of templates, keeping keys.
func resolveAll(env *Environment, templates map[string]*Template) (map[string]string, error) {
	out := make(map[string]string, len(templates))
	for k, t := range templates {
		v, err := t.Get(env)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// VarPath is a dot-separated destination in the variable store.
type VarPath string

// Store writes value at the path, creating intermediate maps. It never fails.
func (p VarPath) Store(env *Environment, value any) {
	env.Vars.Set(string(p), value)
}

func (p VarPath) validate() error {
	if p == "" {
		return fmt.Errorf("variable path is empty")
	}
	for _, part := range strings.Split(string(p), ".") {
		if part == "" {
			return fmt.Errorf("variable path %q has an empty segment", string(p))
		}
	}
	return nil
}
