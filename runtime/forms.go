package runtime

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// valueSource produces a fill value, from a template or by asking the user.
type valueSource interface {
	get(env *Environment) (string, error)
}

type templateSource struct{ t *Template }

func (s templateSource) get(env *Environment) (string, error) { return s.t.Get(env) }

type promptSource struct{ c challenge }

func (s promptSource) get(env *Environment) (string, error) { return s.c.ask(env, nil) }

type fill struct {
	field  string
	source valueSource
}

// matchForm finds the first form carrying every declared field, with every declared
// value, and captures it as the environment's working form with fills applied.
type matchForm struct {
	fields []string
	values map[string]*Template
	fills  []fill
	attrs  map[string]*Template
}

type formRule struct {
	Field  string    `yaml:"field"`
	Attr   string    `yaml:"attr"`
	Value  *Template `yaml:"value"`
	Fill   *Template `yaml:"fill"`
	Prompt string    `yaml:"prompt"`
}

func newMatchForm(node *yaml.Node) (*matchForm, error) {
	var rules []formRule
	if err := node.Decode(&rules); err != nil {
		return nil, err
	}

	c := &matchForm{
		values: make(map[string]*Template),
		attrs:  make(map[string]*Template),
	}
	for i, rule := range rules {
		switch {
		case rule.Field != "" && rule.Attr != "":
			return nil, fmt.Errorf("rule %d: field and attr are exclusive", i+1)
		case rule.Field != "":
			if rule.Fill != nil && rule.Prompt != "" {
				return nil, fmt.Errorf("rule %d: fill and prompt are exclusive", i+1)
			}
			c.fields = append(c.fields, rule.Field)
			if rule.Value != nil {
				c.values[rule.Field] = rule.Value
			}
			switch {
			case rule.Fill != nil:
				c.fills = append(c.fills, fill{field: rule.Field, source: templateSource{rule.Fill}})
			case rule.Prompt != "":
				ch, err := lookupChallenge(rule.Prompt)
				if err != nil {
					return nil, fmt.Errorf("rule %d: %w", i+1, err)
				}
				c.fills = append(c.fills, fill{field: rule.Field, source: promptSource{ch}})
			}
		case rule.Attr != "":
			if rule.Value == nil {
				return nil, fmt.Errorf("rule %d: attr %s needs a value", i+1, rule.Attr)
			}
			c.attrs[rule.Attr] = rule.Value
		default:
			return nil, fmt.Errorf("rule %d: expected field or attr", i+1)
		}
	}
	return c, nil
}

func newMatchFormComponent(node *yaml.Node) (Component, error) {
	return newMatchForm(node)
}

func (c *matchForm) Execute(env *Environment) Result {
	form, err := c.match(env)
	if err != nil {
		return Fail(err)
	}
	env.Form = form
	return Continue()
}

func (c *matchForm) match(env *Environment) (*Form, error) {
	attrs, err := resolveAll(env, c.attrs)
	if err != nil {
		return nil, err
	}
	values, err := resolveAll(env, c.values)
	if err != nil {
		return nil, err
	}
	doc, err := env.Document()
	if err != nil {
		return nil, err
	}

	forms := findElements(doc.Selection, "form", attrs)
	for i := 0; i < forms.Length(); i++ {
		el := forms.Eq(i)
		data := formData(el)
		if !c.accepts(data, values) {
			continue
		}
		for _, f := range c.fills {
			v, err := f.source.get(env)
			if err != nil {
				return nil, fmt.Errorf("failed to fill field %s: %w", f.field, err)
			}
			data[f.field] = v
		}
		method := strings.ToUpper(el.AttrOr("method", ""))
		if method == "" {
			method = "GET"
		}
		return &Form{
			Action: el.AttrOr("action", ""),
			Method: method,
			Data:   data,
		}, nil
	}
	return nil, lookupErrorf("could not find form with fields", "%v", c.fields)
}

func (c *matchForm) accepts(data map[string]string, values map[string]string) bool {
	for _, field := range c.fields {
		if _, ok := data[field]; !ok {
			return false
		}
	}
	for field, want := range values {
		if data[field] != want {
			return false
		}
	}
	return true
}

func (c *matchForm) String() string {
	return "match_form"
}

// matchAnyForm tries several form specs in order and keeps the first that matches.
type matchAnyForm struct {
	candidates []*matchForm
}

func newMatchAnyForm(node *yaml.Node) (Component, error) {
	var specs []yaml.Node
	if err := node.Decode(&specs); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("match_any_form needs at least one form spec")
	}
	c := &matchAnyForm{}
	for i := range specs {
		m, err := newMatchForm(&specs[i])
		if err != nil {
			return nil, fmt.Errorf("form %d: %w", i+1, err)
		}
		c.candidates = append(c.candidates, m)
	}
	return c, nil
}

func (c *matchAnyForm) Execute(env *Environment) Result {
	var tried []string
	for _, candidate := range c.candidates {
		form, err := candidate.match(env)
		if err == nil {
			env.Form = form
			return Continue()
		}
		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) {
			return Fail(err)
		}
		tried = append(tried, fmt.Sprintf("%v", candidate.fields))
	}
	return Fail(lookupErrorf("could not find form matching any of", "%s", strings.Join(tried, ", ")))
}

func (c *matchAnyForm) String() string {
	return "match_any_form"
}
