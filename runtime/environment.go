package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

var _ context.Context = &Environment{}

// Form is the working value captured by match_form and consumed by submit_form.
type Form struct {
	Action string // resolved against the page URL
	Method string // upper case
	Data   map[string]string
}

// views caches values derived from the current response.
// They are valid only while version equals the environment's response version.
type views struct {
	version  uint64
	document *goquery.Document
	json     *gabs.Container
	url      *url.URL
}

// Environment is the mutable state of one provider run, shared by both stages.
type Environment struct {
	ID       string
	Vars     *ValueStore
	Form     *Form
	session  Session
	prompter Prompter
	logger   *slog.Logger

	current  *Response
	previous *Response
	version  uint64
	cache    views

	ctx context.Context // real context carrying deadline/cancellation
}

// context.Context implementation: delegates to the embedded ctx so cancellation reaches
// HTTP calls and prompts, and slog *Context calls can take the environment directly.

func (e *Environment) Deadline() (deadline time.Time, ok bool) {
	return e.ctx.Deadline()
}

func (e *Environment) Done() <-chan struct{} {
	return e.ctx.Done()
}

func (e *Environment) Err() error {
	return e.ctx.Err()
}

func (e *Environment) Value(key any) any {
	return e.ctx.Value(key)
}

// NewEnvironment creates the environment for one provider run.
// vars seeds the variable store; nil session or prompter are allowed for runs
// that never make requests or ask questions.
func NewEnvironment(session Session, prompter Prompter, logger *slog.Logger, vars map[string]any) *Environment {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	env := &Environment{
		ID:       id,
		Vars:     NewValueStore(),
		session:  session,
		prompter: prompter,
		ctx:      context.Background(),
	}
	env.logger = logger.With("run", id)
	env.Vars.Merge(vars)
	return env
}

// WithScopedContext temporarily swaps the environment context while fn runs.
// Execution is single-threaded, so temporary ctx mutation is safe here.
func (e *Environment) WithScopedContext(ctx context.Context, fn func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	prev := e.ctx
	e.ctx = ctx
	defer func() {
		e.ctx = prev
	}()
	fn()
}

func (e *Environment) Logger() *slog.Logger {
	return e.logger
}

func (e *Environment) Session() (Session, error) {
	if e.session == nil {
		return nil, errors.New("environment has no HTTP session")
	}
	return e.session, nil
}

// Prompt asks the configured prompter and blocks until it answers.
func (e *Environment) Prompt(message string, kind PromptKind) (string, error) {
	if e.prompter == nil {
		return "", fmt.Errorf("no prompter available for %s prompt", kind)
	}
	return e.prompter.Prompt(e, message, kind)
}

// Do issues a request on the session and makes its response current.
func (e *Environment) Do(req *Request) (*Response, error) {
	session, err := e.Session()
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(e, "Sending request", "method", req.Method, "url", req.URL)
	resp, err := session.Do(e, req)
	if err != nil {
		return nil, err
	}
	e.SetResponse(resp)
	e.logger.DebugContext(e, "Received response", "status", resp.StatusCode, "url", resp.URL.String())
	return resp, nil
}

// SetResponse replaces the current response. The previous one is kept and every
// derived view is invalidated before the method returns.
func (e *Environment) SetResponse(resp *Response) {
	if resp == nil {
		panic("runtime: cannot set response to nil")
	}
	e.previous = e.current
	e.current = resp
	e.version++
	e.cache = views{version: e.version}
}

func (e *Environment) Response() (*Response, error) {
	if e.current == nil {
		return nil, ErrNoResponse
	}
	return e.current, nil
}

// PreviousResponse returns the response that was current before the last request, or nil.
func (e *Environment) PreviousResponse() *Response {
	return e.previous
}

func (e *Environment) views() (*views, error) {
	if e.current == nil {
		return nil, ErrNoResponse
	}
	if e.cache.version != e.version {
		e.cache = views{version: e.version}
	}
	return &e.cache, nil
}

// URL returns the final URL of the current response.
func (e *Environment) URL() (*url.URL, error) {
	v, err := e.views()
	if err != nil {
		return nil, err
	}
	if v.url == nil {
		u := *e.current.URL
		v.url = &u
	}
	return v.url, nil
}

// Document returns the current response body parsed as HTML.
func (e *Environment) Document() (*goquery.Document, error) {
	v, err := e.views()
	if err != nil {
		return nil, err
	}
	if v.document == nil {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(e.current.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}
		v.document = doc
	}
	return v.document, nil
}

// JSON returns the current response body decoded as JSON.
func (e *Environment) JSON() (*gabs.Container, error) {
	v, err := e.views()
	if err != nil {
		return nil, err
	}
	if v.json == nil {
		c, err := gabs.ParseJSON(e.current.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode JSON response: %w", err)
		}
		v.json = c
	}
	return v.json, nil
}
