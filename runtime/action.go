package runtime

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

// FailMode decides what a failing action turns into.
type FailMode string

const (
	FailDie     FailMode = "die"
	FailRetry   FailMode = "retry"
	FailRestart FailMode = "restart"
)

func parseFailMode(s string) (FailMode, error) {
	switch FailMode(s) {
	case "":
		return FailDie, nil
	case FailDie, FailRetry, FailRestart:
		return FailMode(s), nil
	default:
		return "", fmt.Errorf("unknown fail mode %q", s)
	}
}

// actionArgs is the union of the arguments accepted by every action type.
type actionArgs struct {
	Type            string               `yaml:"type"`
	URL             *Template            `yaml:"url"`
	Data            map[string]*Template `yaml:"data"`
	DataJSON        map[string]*Template `yaml:"data_json"`
	Headers         map[string]*Template `yaml:"headers"`
	FollowRedirects *bool                `yaml:"follow_redirects"`
	Success         *MatchSpec           `yaml:"success"`
	Fail            string               `yaml:"fail"`
}

// performer issues the side-effecting request of an action.
type performer interface {
	perform(env *Environment) error
	String() string
}

var actionTypes = map[string]func(args actionArgs) (performer, error){
	"submit_form": newSubmitForm,
	"http_get":    httpVerb(http.MethodGet),
	"http_post":   httpVerb(http.MethodPost),
	"http_put":    httpVerb(http.MethodPut),
	"http_patch":  httpVerb(http.MethodPatch),
}

// action runs a performer, checks the success matcher, and converts any failure
// according to its fail mode.
type action struct {
	performer performer
	success   *SuccessMatcher
	fail      FailMode
}

func newAction(node *yaml.Node) (Component, error) {
	var args actionArgs
	if node.Kind == yaml.ScalarNode {
		args.Type = node.Value
	} else if err := node.Decode(&args); err != nil {
		return nil, err
	}

	ctor, ok := actionTypes[args.Type]
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", args.Type)
	}
	p, err := ctor(args)
	if err != nil {
		return nil, err
	}
	fail, err := parseFailMode(args.Fail)
	if err != nil {
		return nil, err
	}
	success, err := successMatcher(args.Success)
	if err != nil {
		return nil, err
	}
	return &action{performer: p, success: success, fail: fail}, nil
}

func (a *action) Execute(env *Environment) Result {
	err := a.performer.perform(env)
	if err == nil {
		err = a.success.Check(env)
	}
	if err == nil {
		return Continue()
	}

	switch a.fail {
	case FailRetry:
		env.Logger().WarnContext(env, "Action failed, retrying flow", "component", a.String(), "error", err)
		return Retry(err)
	case FailRestart:
		env.Logger().WarnContext(env, "Action failed, restarting stage", "component", a.String(), "error", err)
		return RestartStage(err)
	default:
		return Fail(err)
	}
}

func (a *action) String() string {
	return a.performer.String()
}

// submitForm sends the working form captured by match_form.
type submitForm struct {
	headers         map[string]*Template
	followRedirects bool
}

func newSubmitForm(args actionArgs) (performer, error) {
	return &submitForm{
		headers:         args.Headers,
		followRedirects: args.FollowRedirects == nil || *args.FollowRedirects,
	}, nil
}

func (s *submitForm) perform(env *Environment) error {
	if env.Form == nil {
		return ErrNoForm
	}
	base, err := env.URL()
	if err != nil {
		return err
	}
	action, err := url.Parse(env.Form.Action)
	if err != nil {
		return fmt.Errorf("invalid form action %q: %w", env.Form.Action, err)
	}
	headers, err := resolveAll(env, s.headers)
	if err != nil {
		return err
	}

	req := &Request{
		Method:          env.Form.Method,
		URL:             base.ResolveReference(action).String(),
		Header:          headers,
		FollowRedirects: s.followRedirects,
	}
	data := toValues(env.Form.Data)
	if req.Method == http.MethodGet {
		req.Query = data
	} else {
		req.Form = data
	}
	_, err = env.Do(req)
	return err
}

func (s *submitForm) String() string {
	return "submit_form"
}

// verbAction sends a request with an optional form or JSON body.
type verbAction struct {
	verb            string
	url             *Template
	data            map[string]*Template
	json            bool
	headers         map[string]*Template
	followRedirects bool
}

func httpVerb(verb string) func(args actionArgs) (performer, error) {
	return func(args actionArgs) (performer, error) {
		if args.URL == nil {
			return nil, fmt.Errorf("http_%s requires a url", strings.ToLower(verb))
		}
		if args.Data != nil && args.DataJSON != nil {
			return nil, fmt.Errorf("data and data_json are exclusive")
		}
		v := &verbAction{
			verb:            verb,
			url:             args.URL,
			data:            args.Data,
			headers:         args.Headers,
			followRedirects: args.FollowRedirects == nil || *args.FollowRedirects,
		}
		if args.DataJSON != nil {
			v.data, v.json = args.DataJSON, true
		}
		return v, nil
	}
}

func (v *verbAction) perform(env *Environment) error {
	target, err := v.url.Get(env)
	if err != nil {
		return err
	}
	headers, err := resolveAll(env, v.headers)
	if err != nil {
		return err
	}
	req := &Request{
		Method:          v.verb,
		URL:             target,
		Header:          headers,
		FollowRedirects: v.followRedirects,
	}

	if v.data != nil {
		data, err := resolveAll(env, v.data)
		if err != nil {
			return err
		}
		switch {
		case v.json:
			req.JSON = data
		case v.verb == http.MethodGet:
			req.Query = toValues(data)
		default:
			req.Form = toValues(data)
		}
	}

	_, err = env.Do(req)
	return err
}

func (v *verbAction) String() string {
	return fmt.Sprintf("http_%s, URL: %s", strings.ToLower(v.verb), v.url)
}

func toValues(m map[string]string) url.Values {
	values := make(url.Values, len(m))
	for k, v := range m {
		values.Set(k, v)
	}
	return values
}
