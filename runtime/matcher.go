package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const negateSuffix = "_not"

// MatchEntry is one predicate of a matcher spec: its key (possibly suffixed with _not)
// and the raw argument node.
type MatchEntry struct {
	Key   string
	Value yaml.Node
}

// MatchSpec is an ordered matcher specification. Decoding from YAML keeps the
// authored key order, which is the evaluation order.
type MatchSpec []MatchEntry

func (m *MatchSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: matcher must be a mapping", node.Line)
	}
	spec := make(MatchSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		spec = append(spec, MatchEntry{Key: node.Content[i].Value, Value: *node.Content[i+1]})
	}
	*m = spec
	return nil
}

// predicate is a named test against the environment.
type predicate struct {
	desc    string
	compile func(node *yaml.Node) (any, error)
	match   func(env *Environment, arg any) (bool, error)
}

var predicates = map[string]predicate{
	"status": {
		desc:    "Status is %s",
		compile: compileInt,
		match: func(env *Environment, arg any) (bool, error) {
			resp, err := env.Response()
			if err != nil {
				return false, err
			}
			return resp.StatusCode == arg.(int), nil
		},
	},
	"text_match": {
		desc:    "Text matches %s",
		compile: compileRegexp,
		match: func(env *Environment, arg any) (bool, error) {
			resp, err := env.Response()
			if err != nil {
				return false, err
			}
			return arg.(*regexp.Regexp).Match(resp.Body), nil
		},
	},
	"path_match": {
		desc:    "Path matches %s",
		compile: compileRegexp,
		match: func(env *Environment, arg any) (bool, error) {
			u, err := env.URL()
			if err != nil {
				return false, err
			}
			return arg.(*regexp.Regexp).MatchString(u.Path), nil
		},
	},
	"query_match": {
		desc:    "Query matches %s",
		compile: compileRegexpMap,
		match:   matchQuery,
	},
	"document": {
		desc:    "Document contains elements %s",
		compile: compileElements,
		match: func(env *Environment, arg any) (bool, error) {
			doc, err := env.Document()
			if err != nil {
				return false, err
			}
			for _, el := range arg.([]elementSpec) {
				if findElement(doc.Selection, el.Element, el.Attrs) == nil {
					return false, nil
				}
			}
			return true, nil
		},
	},
	"json": {
		desc:    "Response JSON matches %s",
		compile: compileJSON,
		match: func(env *Environment, arg any) (bool, error) {
			body, err := env.JSON()
			if err != nil {
				return false, err
			}
			return matchJSON(arg, body.Data()), nil
		},
	},
	"variable_exists": {
		desc:    "Variable %s exists",
		compile: compileTemplate,
		match: func(env *Environment, arg any) (bool, error) {
			v, err := arg.(*Template).Get(env)
			if err != nil {
				var subErr *SubstitutionError
				if errors.As(err, &subErr) {
					return false, nil
				}
				return false, err
			}
			return v != "", nil
		},
	},
	"expr": {
		desc:    "Expression %s holds",
		compile: compileExpression,
		match: func(env *Environment, arg any) (bool, error) {
			return arg.(*Expression).Eval(env.Vars.All())
		},
	},
}

type check struct {
	key     string
	pred    predicate
	arg     any
	display string
	negate  bool
}

// Matcher evaluates an ordered list of predicates against the environment.
type Matcher struct {
	checks []check
}

// NewMatcher compiles a matcher spec. Unknown predicate keys and malformed
// arguments are reported here rather than at run time.
func NewMatcher(spec MatchSpec) (*Matcher, error) {
	m := &Matcher{}
	for _, entry := range spec {
		key := entry.Key
		negate := strings.HasSuffix(key, negateSuffix)
		if negate {
			key = strings.TrimSuffix(key, negateSuffix)
		}
		pred, ok := predicates[key]
		if !ok {
			return nil, fmt.Errorf("unknown matcher %q", entry.Key)
		}
		node := entry.Value
		arg, err := pred.compile(&node)
		if err != nil {
			return nil, fmt.Errorf("matcher %s: %w", entry.Key, err)
		}
		m.checks = append(m.checks, check{
			key:     key,
			pred:    pred,
			arg:     arg,
			display: displayNode(&node),
			negate:  negate,
		})
	}
	return m, nil
}

// Match evaluates predicates in order and stops at the first that does not hold,
// returning its explanation. A matcher without predicates always matches.
func (m *Matcher) Match(env *Environment) (bool, string, error) {
	for _, c := range m.checks {
		result, err := c.pred.match(env, c.arg)
		if err != nil {
			return false, "", fmt.Errorf("error evaluating %s: %w", c.key, err)
		}
		reason := fmt.Sprintf(c.pred.desc, c.display)
		if c.negate {
			result = !result
			reason = "NOT " + reason
		}
		if !result {
			return false, reason, nil
		}
	}
	return true, "", nil
}

func (m *Matcher) Len() int {
	return len(m.checks)
}

// SuccessMatcher turns a failed match into a *CheckFailedError.
type SuccessMatcher struct {
	matcher *Matcher
}

func NewSuccessMatcher(spec MatchSpec) (*SuccessMatcher, error) {
	m, err := NewMatcher(spec)
	if err != nil {
		return nil, err
	}
	return &SuccessMatcher{matcher: m}, nil
}

// DefaultSuccessMatcher requires HTTP status 200.
var DefaultSuccessMatcher = mustSuccessMatcher(MatchSpec{
	{Key: "status", Value: yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: "200"}},
})

func mustSuccessMatcher(spec MatchSpec) *SuccessMatcher {
	m, err := NewSuccessMatcher(spec)
	if err != nil {
		panic(fmt.Sprintf("invalid success matcher: %v", err))
	}
	return m
}

func (s *SuccessMatcher) Check(env *Environment) error {
	ok, reason, err := s.matcher.Match(env)
	if err != nil {
		return err
	}
	if !ok {
		return &CheckFailedError{Reason: reason}
	}
	return nil
}

func matchQuery(env *Environment, arg any) (bool, error) {
	u, err := env.URL()
	if err != nil {
		return false, err
	}
	query := u.Query()
	for key, re := range arg.(map[string]*regexp.Regexp) {
		values := query[key]
		if len(values) == 0 {
			values = []string{""}
		}
		matched := false
		for _, v := range values {
			if re.MatchString(v) {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// matchJSON reports whether got structurally contains expect. Objects need every
// expected key with a matching value; arrays need every expected item to match some
// actual item, in any order; scalars compare by equality.
func matchJSON(expect, got any) bool {
	switch e := expect.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for key, want := range e {
			have, ok := g[key]
			if !ok || !matchJSON(want, have) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok {
			return false
		}
		for _, want := range e {
			found := false
			for _, have := range g {
				if matchJSON(want, have) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return expect == got
	}
}

type elementSpec struct {
	Element string            `yaml:"element"`
	Attrs   map[string]string `yaml:"attrs"`
}

func compileInt(node *yaml.Node) (any, error) {
	n, err := strconv.Atoi(node.Value)
	if err != nil || node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: expected an integer", node.Line)
	}
	return n, nil
}

func compileRegexp(node *yaml.Node) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: expected a regular expression", node.Line)
	}
	return regexp.Compile(node.Value)
}

func compileRegexpMap(node *yaml.Node) (any, error) {
	var raw map[string]string
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]*regexp.Regexp, len(raw))
	for k, v := range raw {
		re, err := regexp.Compile(v)
		if err != nil {
			return nil, fmt.Errorf("query parameter %s: %w", k, err)
		}
		out[k] = re
	}
	return out, nil
}

func compileElements(node *yaml.Node) (any, error) {
	var elems []elementSpec
	if err := node.Decode(&elems); err != nil {
		return nil, err
	}
	for i, el := range elems {
		if el.Element == "" {
			return nil, fmt.Errorf("document entry %d has no element", i+1)
		}
	}
	return elems, nil
}

func compileJSON(node *yaml.Node) (any, error) {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}
	return normalizeJSON(raw)
}

func compileTemplate(node *yaml.Node) (any, error) {
	t := &Template{}
	if err := t.UnmarshalYAML(node); err != nil {
		return nil, err
	}
	return t, nil
}

func compileExpression(node *yaml.Node) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: expected an expression", node.Line)
	}
	return CompileExpression(node.Value)
}

// displayNode renders a predicate argument for explanations; maps come out with sorted keys.
func displayNode(node *yaml.Node) string {
	if node.Kind == yaml.ScalarNode {
		return node.Value
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return "<invalid>"
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprintf("%v", raw)
	}
	return string(data)
}
