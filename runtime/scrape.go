package runtime

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// storeJSJSON decodes JSON embedded in a <script> block.
type storeJSJSON struct {
	re       *regexp.Regexp
	variable VarPath
}

type storeJSJSONArgs struct {
	Match    string  `yaml:"match"`
	Variable VarPath `yaml:"variable"`
}

func newStoreJSJSON(node *yaml.Node) (Component, error) {
	var args storeJSJSONArgs
	if err := node.Decode(&args); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(args.Match)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("store_js_json pattern %q needs a capture group", args.Match)
	}
	if err := args.Variable.validate(); err != nil {
		return nil, err
	}
	return &storeJSJSON{re: re, variable: args.Variable}, nil
}

func (c *storeJSJSON) Execute(env *Environment) Result {
	doc, err := env.Document()
	if err != nil {
		return Fail(err)
	}

	var captured string
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		// the match must start at the beginning of the script
		loc := c.re.FindStringSubmatchIndex(text)
		if loc == nil || loc[0] != 0 || loc[2] < 0 {
			return true
		}
		captured, found = text[loc[2]:loc[3]], true
		return false
	})
	if !found {
		return Fail(lookupErrorf("could not find match", "%s", c.re))
	}

	var data any
	if err := json.Unmarshal([]byte(captured), &data); err != nil {
		return Fail(fmt.Errorf("failed to decode embedded JSON: %w", err))
	}
	c.variable.Store(env, data)
	return Continue()
}

func (c *storeJSJSON) String() string {
	return "store_js_json, match: " + c.re.String()
}

// storeURL copies parts of the current URL into variables, verbatim or through a regex.
type storeURL struct {
	parts []urlPart
}

type urlPart struct {
	name     string
	variable VarPath
	re       *regexp.Regexp // nil stores the part verbatim
}

var urlParts = map[string]func(u *url.URL) string{
	"scheme":   func(u *url.URL) string { return u.Scheme },
	"host":     func(u *url.URL) string { return u.Host },
	"netloc":   func(u *url.URL) string { return u.Host },
	"hostname": func(u *url.URL) string { return u.Hostname() },
	"path":     func(u *url.URL) string { return u.Path },
	"query":    func(u *url.URL) string { return u.RawQuery },
	"fragment": func(u *url.URL) string { return u.Fragment },
}

type urlPartArgs struct {
	Match    string  `yaml:"match"`
	Variable VarPath `yaml:"variable"`
}

func newStoreURL(node *yaml.Node) (Component, error) {
	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}

	c := &storeURL{}
	for name, spec := range raw {
		if _, ok := urlParts[name]; !ok {
			return nil, fmt.Errorf("unknown URL part %q", name)
		}
		part := urlPart{name: name}
		if spec.Kind == yaml.ScalarNode {
			part.variable = VarPath(spec.Value)
		} else {
			var args urlPartArgs
			if err := spec.Decode(&args); err != nil {
				return nil, err
			}
			re, err := regexp.Compile(args.Match)
			if err != nil {
				return nil, err
			}
			part.re, part.variable = re, args.Variable
		}
		if err := part.variable.validate(); err != nil {
			return nil, err
		}
		c.parts = append(c.parts, part)
	}
	sort.Slice(c.parts, func(i, j int) bool { return c.parts[i].name < c.parts[j].name })
	return c, nil
}

func (c *storeURL) Execute(env *Environment) Result {
	u, err := env.URL()
	if err != nil {
		return Fail(err)
	}
	for _, part := range c.parts {
		value := urlParts[part.name](u)
		if part.re != nil {
			m := part.re.FindStringSubmatch(value)
			if m == nil {
				return Fail(lookupErrorf("no match on", "%s", part.re))
			}
			value = firstGroup(m)
		}
		part.variable.Store(env, value)
	}
	return Continue()
}

func (c *storeURL) String() string {
	return "store_url"
}

// storeCookie copies cookies visible to the current URL into variables.
type storeCookie struct {
	names     []string
	variables map[string]VarPath
}

func newStoreCookie(node *yaml.Node) (Component, error) {
	var vars map[string]VarPath
	if err := node.Decode(&vars); err != nil {
		return nil, err
	}
	c := &storeCookie{variables: vars}
	for name, v := range vars {
		if err := v.validate(); err != nil {
			return nil, err
		}
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

func (c *storeCookie) Execute(env *Environment) Result {
	session, err := env.Session()
	if err != nil {
		return Fail(err)
	}
	// without a response every stored cookie is a candidate
	u, _ := env.URL()
	for _, name := range c.names {
		cookie, ok := session.Cookie(u, name)
		if !ok {
			return Fail(lookupErrorf("no such cookie", "%s", name))
		}
		c.variables[name].Store(env, cookie.Value)
	}
	return Continue()
}

func (c *storeCookie) String() string {
	return "store_cookie"
}

// storeElement stores an attribute of, or a regex capture over the text of,
// the first element matching a name and attribute filters.
type storeElement struct {
	element  string
	attrs    map[string]*Template
	attr     string
	text     *regexp.Regexp
	variable VarPath
}

type storeElementArgs struct {
	Element string               `yaml:"element"`
	Attrs   map[string]*Template `yaml:"attrs"`
	Store   struct {
		Attr     string  `yaml:"attr"`
		Text     string  `yaml:"text"`
		Variable VarPath `yaml:"variable"`
	} `yaml:"store"`
}

func newStoreElement(node *yaml.Node) (Component, error) {
	var args storeElementArgs
	if err := node.Decode(&args); err != nil {
		return nil, err
	}
	if args.Element == "" {
		return nil, fmt.Errorf("store_element requires an element")
	}
	if (args.Store.Attr == "") == (args.Store.Text == "") {
		return nil, fmt.Errorf("store_element needs exactly one of store.attr and store.text")
	}
	if err := args.Store.Variable.validate(); err != nil {
		return nil, err
	}

	c := &storeElement{
		element:  args.Element,
		attrs:    args.Attrs,
		attr:     args.Store.Attr,
		variable: args.Store.Variable,
	}
	if args.Store.Text != "" {
		re, err := regexp.Compile(args.Store.Text)
		if err != nil {
			return nil, err
		}
		c.text = re
	}
	return c, nil
}

func (c *storeElement) Execute(env *Environment) Result {
	attrs, err := resolveAll(env, c.attrs)
	if err != nil {
		return Fail(err)
	}
	doc, err := env.Document()
	if err != nil {
		return Fail(err)
	}
	el := findElement(doc.Selection, c.element, attrs)
	if el == nil {
		return Fail(lookupErrorf("cannot find element", "<%s> with attrs %s", c.element, describeAttrs(attrs)))
	}

	var value string
	if c.text != nil {
		m := c.text.FindStringSubmatch(el.Text())
		if m == nil {
			return Fail(lookupErrorf("no match for", "%s", c.text))
		}
		value = firstGroup(m)
	} else {
		v, ok := el.Attr(c.attr)
		if !ok {
			return Fail(lookupErrorf("element doesn't have attribute", "%s", c.attr))
		}
		value = v
	}
	c.variable.Store(env, value)
	return Continue()
}

func (c *storeElement) String() string {
	return "store_element " + c.element
}

// storeJSON stores the decoded JSON body, or the value at a dotted path inside it.
type storeJSON struct {
	variable VarPath
	path     string
}

type storeJSONArgs struct {
	Variable VarPath `yaml:"variable"`
	Path     string  `yaml:"path"`
}

func newStoreJSON(node *yaml.Node) (Component, error) {
	var args storeJSONArgs
	if node.Kind == yaml.ScalarNode {
		args.Variable = VarPath(node.Value)
	} else if err := node.Decode(&args); err != nil {
		return nil, err
	}
	if err := args.Variable.validate(); err != nil {
		return nil, err
	}
	return &storeJSON{variable: args.Variable, path: args.Path}, nil
}

func (c *storeJSON) Execute(env *Environment) Result {
	body, err := env.JSON()
	if err != nil {
		return Fail(err)
	}
	if c.path != "" {
		if !body.ExistsP(c.path) {
			return Fail(lookupErrorf("no JSON value at", "%s", c.path))
		}
		body = body.Path(c.path)
	}
	c.variable.Store(env, body.Data())
	return Continue()
}

func (c *storeJSON) String() string {
	return "store_json"
}

// firstGroup returns capture group 1, or the whole match for patterns without groups.
func firstGroup(m []string) string {
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}
