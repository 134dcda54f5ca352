package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// Request describes one HTTP call issued by a step.
type Request struct {
	Method          string
	URL             string
	Header          map[string]string
	Query           url.Values // appended to the URL query
	Form            url.Values // urlencoded body
	JSON            any        // JSON body, mutually exclusive with Form
	FollowRedirects bool
}

// Response is the part of an HTTP response the interpreter works with.
// URL is the final URL after redirects were followed.
type Response struct {
	StatusCode int
	URL        *url.URL
	Header     http.Header
	Body       []byte
}

func (r *Response) Text() string {
	return string(r.Body)
}

// Session is the HTTP client state owned by one environment.
type Session interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	// Cookie finds a cookie by name. A cookie that would be sent to u wins;
	// otherwise any cookie stored in the session matches. u may be nil.
	Cookie(u *url.URL, name string) (*http.Cookie, bool)
	SetCookie(u *url.URL, cookie *http.Cookie)
}

// SessionConfig holds the HTTP session configuration with declarative tags
type SessionConfig struct {
	Timeout      time.Duration `yaml:"timeout" default:"0s" validate:"gte=0"`
	MaxRedirects int           `yaml:"max_redirects" default:"10" validate:"gte=0,lte=50"`
	UserAgent    string        `yaml:"user_agent" default:"rotor/1.0"`
	Proxy        string        `yaml:"proxy" validate:"omitempty,url_format"`
	Debug        bool          `yaml:"debug" default:"false"`
}

// HTTPSession implements Session on top of a resty client with a cookie jar.
type HTTPSession struct {
	config SessionConfig
	client *resty.Client
	jar    *recordingJar
}

// NewHTTPSession creates a session. A zero Timeout keeps the client default (no timeout).
func NewHTTPSession(config SessionConfig) *HTTPSession {
	jar := newRecordingJar()
	client := resty.New().
		SetCookieJar(jar).
		SetDebug(config.Debug).
		SetHeader("User-Agent", config.UserAgent)
	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}
	if config.Proxy != "" {
		client.SetProxy(config.Proxy)
	}

	return &HTTPSession{
		config: config,
		client: client,
		jar:    jar,
	}
}

func (s *HTTPSession) Do(ctx context.Context, req *Request) (*Response, error) {
	s.client.SetRedirectPolicy(s.redirectPolicy(req.FollowRedirects))

	r := s.client.R().
		SetContext(ctx).
		SetHeaders(req.Header)

	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}

	switch {
	case req.JSON != nil:
		body, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON body: %w", err)
		}
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	case req.Form != nil:
		r.SetFormDataFromValues(req.Form)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	final := resp.RawResponse.Request.URL
	return &Response{
		StatusCode: resp.StatusCode(),
		URL:        final,
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

func (s *HTTPSession) redirectPolicy(follow bool) resty.RedirectPolicy {
	if !follow {
		return resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})
	}
	return resty.FlexibleRedirectPolicy(s.config.MaxRedirects)
}

func (s *HTTPSession) Cookie(u *url.URL, name string) (*http.Cookie, bool) {
	return s.jar.lookup(u, name)
}

func (s *HTTPSession) SetCookie(u *url.URL, cookie *http.Cookie) {
	s.jar.SetCookies(u, []*http.Cookie{cookie})
}
