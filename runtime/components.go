package runtime

import (
	"fmt"
	"net/http"
	"net/url"

	"gopkg.in/yaml.v3"
)

// ifMatch aborts the flow when its predicates do not hold.
type ifMatch struct {
	matcher *Matcher
}

func newIfMatch(node *yaml.Node) (Component, error) {
	var spec MatchSpec
	if err := node.Decode(&spec); err != nil {
		return nil, err
	}
	m, err := NewMatcher(spec)
	if err != nil {
		return nil, err
	}
	return &ifMatch{matcher: m}, nil
}

func (c *ifMatch) Execute(env *Environment) Result {
	ok, reason, err := c.matcher.Match(env)
	if err != nil {
		return Fail(err)
	}
	if !ok {
		env.Logger().InfoContext(env, "Condition not met, aborting flow", "reason", reason)
		return Abort()
	}
	return Continue()
}

func (c *ifMatch) String() string {
	return "if_match"
}

// promptStep asks for a value and stores the answer.
type promptStep struct {
	challenge challenge
	variable  VarPath
	message   *Template
}

type promptArgs struct {
	Kind     string    `yaml:"kind"`
	Variable VarPath   `yaml:"variable"`
	Message  *Template `yaml:"message"`
}

func newPromptStep(node *yaml.Node) (Component, error) {
	var args promptArgs
	if err := node.Decode(&args); err != nil {
		return nil, err
	}
	if args.Kind == "" {
		args.Kind = string(PromptGeneric)
	}
	ch, err := lookupChallenge(args.Kind)
	if err != nil {
		return nil, err
	}
	if err := args.Variable.validate(); err != nil {
		return nil, err
	}
	return &promptStep{challenge: ch, variable: args.Variable, message: args.Message}, nil
}

func (c *promptStep) Execute(env *Environment) Result {
	answer, err := c.challenge.ask(env, c.message)
	if err != nil {
		return Fail(err)
	}
	c.variable.Store(env, answer)
	return Continue()
}

func (c *promptStep) String() string {
	return fmt.Sprintf("prompt %s, variable: %s", c.challenge.name, c.variable)
}

// setVariable resolves a template into a variable.
type setVariable struct {
	variable VarPath
	value    *Template
}

type setVariableArgs struct {
	Variable VarPath   `yaml:"variable"`
	Value    *Template `yaml:"value"`
}

func newSetVariable(node *yaml.Node) (Component, error) {
	var args setVariableArgs
	if err := node.Decode(&args); err != nil {
		return nil, err
	}
	if err := args.Variable.validate(); err != nil {
		return nil, err
	}
	if args.Value == nil {
		return nil, fmt.Errorf("set_variable requires a value")
	}
	return &setVariable{variable: args.Variable, value: args.Value}, nil
}

func (c *setVariable) Execute(env *Environment) Result {
	v, err := c.value.Get(env)
	if err != nil {
		return Fail(err)
	}
	c.variable.Store(env, v)
	return Continue()
}

func (c *setVariable) String() string {
	return "set_variable " + string(c.variable)
}

// setCookie places cookies in the session jar.
type setCookie struct {
	cookies []cookieSpec
}

type cookieSpec struct {
	Name   *Template `yaml:"name"`
	Value  *Template `yaml:"value"`
	Domain *Template `yaml:"domain"`
	Path   *Template `yaml:"path"`
	Secure bool      `yaml:"secure"`
}

func newSetCookie(node *yaml.Node) (Component, error) {
	var cookies []cookieSpec
	if err := node.Decode(&cookies); err != nil {
		return nil, err
	}
	for i, c := range cookies {
		if c.Name == nil || c.Value == nil {
			return nil, fmt.Errorf("cookie %d needs a name and a value", i+1)
		}
	}
	return &setCookie{cookies: cookies}, nil
}

func (c *setCookie) Execute(env *Environment) Result {
	session, err := env.Session()
	if err != nil {
		return Fail(err)
	}
	for _, spec := range c.cookies {
		cookie, target, err := spec.resolve(env)
		if err != nil {
			return Fail(err)
		}
		session.SetCookie(target, cookie)
	}
	return Continue()
}

// resolve builds the cookie and the URL it is scoped to. Without a domain the
// cookie belongs to the host of the current response.
func (s cookieSpec) resolve(env *Environment) (*http.Cookie, *url.URL, error) {
	name, err := s.Name.Get(env)
	if err != nil {
		return nil, nil, err
	}
	value, err := s.Value.Get(env)
	if err != nil {
		return nil, nil, err
	}
	cookie := &http.Cookie{Name: name, Value: value, Secure: s.Secure, Path: "/"}
	if s.Path != nil {
		if cookie.Path, err = s.Path.Get(env); err != nil {
			return nil, nil, err
		}
	}

	if s.Domain == nil {
		u, err := env.URL()
		if err != nil {
			return nil, nil, fmt.Errorf("cookie %s has no domain: %w", name, err)
		}
		return cookie, u, nil
	}

	domain, err := s.Domain.Get(env)
	if err != nil {
		return nil, nil, err
	}
	cookie.Domain = domain
	scheme := "http"
	if s.Secure {
		scheme = "https"
	}
	return cookie, &url.URL{Scheme: scheme, Host: domain, Path: cookie.Path}, nil
}

func (c *setCookie) String() string {
	return "set_cookie"
}

// getURL fetches a page and requires the success check to pass.
type getURL struct {
	url             *Template
	headers         map[string]*Template
	followRedirects bool
	success         *SuccessMatcher
}

type getURLArgs struct {
	URL             *Template            `yaml:"url"`
	Headers         map[string]*Template `yaml:"headers"`
	FollowRedirects *bool                `yaml:"follow_redirects"`
	Success         *MatchSpec           `yaml:"success"`
}

func newGetURL(node *yaml.Node) (Component, error) {
	// Short-cut for basic string urls
	if node.Kind == yaml.ScalarNode {
		return &getURL{
			url:             NewTemplate(node.Value),
			followRedirects: true,
			success:         DefaultSuccessMatcher,
		}, nil
	}

	var args getURLArgs
	if err := node.Decode(&args); err != nil {
		return nil, err
	}
	if args.URL == nil {
		return nil, fmt.Errorf("get_url requires a url")
	}
	success, err := successMatcher(args.Success)
	if err != nil {
		return nil, err
	}
	return &getURL{
		url:             args.URL,
		headers:         args.Headers,
		followRedirects: args.FollowRedirects == nil || *args.FollowRedirects,
		success:         success,
	}, nil
}

func (c *getURL) Execute(env *Environment) Result {
	target, err := c.url.Get(env)
	if err != nil {
		return Fail(err)
	}
	headers, err := resolveAll(env, c.headers)
	if err != nil {
		return Fail(err)
	}
	if _, err := env.Do(&Request{
		Method:          http.MethodGet,
		URL:             target,
		Header:          headers,
		FollowRedirects: c.followRedirects,
	}); err != nil {
		return Fail(err)
	}
	return Fail(c.success.Check(env))
}

func (c *getURL) String() string {
	return "get_url " + c.url.String()
}

func successMatcher(spec *MatchSpec) (*SuccessMatcher, error) {
	if spec == nil {
		return DefaultSuccessMatcher, nil
	}
	return NewSuccessMatcher(*spec)
}
