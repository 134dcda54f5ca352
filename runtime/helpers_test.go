package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, vars map[string]any) *Environment {
	t.Helper()
	session := NewHTTPSession(SessionConfig{MaxRedirects: 10, UserAgent: "rotor-test"})
	return NewEnvironment(session, nil, discardLogger(), vars)
}

// answers returns a prompter that replies from a fixed list and records the questions.
func answers(replies ...string) (Prompter, *[]string) {
	var asked []string
	p := PrompterFunc(func(_ context.Context, message string, kind PromptKind) (string, error) {
		asked = append(asked, string(kind)+": "+message)
		if len(replies) == 0 {
			return "", io.EOF
		}
		r := replies[0]
		replies = replies[1:]
		return r, nil
	})
	return p, &asked
}

// setPage makes a synthetic response current.
func setPage(t *testing.T, env *Environment, status int, rawURL, body string) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("invalid URL %q: %v", rawURL, err)
	}
	env.SetResponse(&Response{
		StatusCode: status,
		URL:        u,
		Header:     http.Header{},
		Body:       []byte(body),
	})
}

func parseNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("empty YAML document")
	}
	return doc.Content[0]
}

func buildComponent(t *testing.T, kind StepKind, src string) Component {
	t.Helper()
	c, err := NewComponentRegistry().Build(kind, parseNode(t, src))
	if err != nil {
		t.Fatalf("failed to build %s: %v", kind, err)
	}
	return c
}

func buildFlow(t *testing.T, config RunConfig, src string) *Flow {
	t.Helper()
	var spec FlowSpec
	if err := yaml.Unmarshal([]byte(src), &spec); err != nil {
		t.Fatalf("invalid flow YAML: %v", err)
	}
	flow, err := NewFlowBuilder(NewComponentRegistry(), config).Build(spec)
	if err != nil {
		t.Fatalf("failed to build flow: %v", err)
	}
	return flow
}

func newTestServer(t *testing.T, routes func(r *gin.Engine)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// recorder is a component that counts executions and returns scripted results.
type recorder struct {
	name    string
	calls   int
	results []Result // consumed in order; Continue once exhausted
	log     *[]string
}

func (r *recorder) Execute(env *Environment) Result {
	r.calls++
	if r.log != nil {
		*r.log = append(*r.log, r.name)
	}
	if len(r.results) == 0 {
		return Continue()
	}
	res := r.results[0]
	r.results = r.results[1:]
	return res
}

func (r *recorder) String() string {
	return r.name
}
