package runtime

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func compileMatcher(t *testing.T, src string) *Matcher {
	t.Helper()
	var spec MatchSpec
	if err := yaml.Unmarshal([]byte(src), &spec); err != nil {
		t.Fatalf("invalid matcher YAML: %v", err)
	}
	m, err := NewMatcher(spec)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	return m
}

const loginPage = `<html><body>
<div class="alert error">Invalid password</div>
<form id="login" action="/session" method="post">
  <input type="hidden" name="csrf_token" value="abc">
  <input name="password">
</form>
</body></html>`

func TestMatcher_Predicates(t *testing.T) {
	env := newTestEnv(t, map[string]any{"username": "alice", "attempts": 2})
	setPage(t, env, 200, "https://example.com/account/login?next=%2Fsettings&lang=en&lang=de", loginPage)

	tests := []struct {
		name string
		spec string
		want bool
	}{
		{"empty", "{}", true},
		{"status", "status: 200", true},
		{"status mismatch", "status: 404", false},
		{"status negated", "status_not: 404", true},
		{"text", "text_match: Invalid pass", true},
		{"text anywhere", "text_match: '(?i)INVALID'", true},
		{"text mismatch", "text_match: Welcome back", false},
		{"path", "path_match: ^/account/", true},
		{"path mismatch", "path_match: ^/dashboard", false},
		{"query", "query_match: {next: ^/settings$}", true},
		{"query any value", "query_match: {lang: ^de$}", true},
		{"query absent matches empty", "query_match: {missing: ^$}", true},
		{"query absent", "query_match: {missing: .+}", false},
		{"document", "document: [{element: form, attrs: {id: login}}]", true},
		{"document single class", "document: [{element: div, attrs: {class: error}}]", true},
		{"document all required", "document: [{element: form}, {element: table}]", false},
		{"document negated", "document_not: [{element: table}]", true},
		{"variable exists", "variable_exists: '{username}'", true},
		{"variable missing", "variable_exists: '{password}'", false},
		{"expr", "expr: attempts < 3 && username == 'alice'", true},
		{"expr false", "expr: attempts > 5", false},
		{"all must hold", "status: 200\ntext_match: Welcome", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _, err := compileMatcher(t, tt.spec).Match(env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("Match() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestMatcher_JSON(t *testing.T) {
	env := newTestEnv(t, nil)
	setPage(t, env, 200, "https://api.example.com/user", `{
		"user": {"id": 42, "name": "alice", "roles": ["admin", "dev"]},
		"mfa": false,
		"devices": [{"type": "totp", "active": true}, {"type": "sms", "active": false}]
	}`)

	tests := []struct {
		name string
		spec string
		want bool
	}{
		{"subset object", "json: {user: {name: alice}}", true},
		{"number", "json: {user: {id: 42}}", true},
		{"number mismatch", "json: {user: {id: 43}}", false},
		{"bool", "json: {mfa: false}", true},
		{"missing key", "json: {user: {email: a@b.c}}", false},
		{"array any order", "json: {user: {roles: [dev]}}", true},
		{"array item missing", "json: {user: {roles: [root]}}", false},
		{"array of objects", "json: {devices: [{type: sms}]}", true},
		{"type mismatch", "json: {user: [alice]}", false},
		{"negated", "json_not: {mfa: true}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _, err := compileMatcher(t, tt.spec).Match(env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("Match() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestMatcher_Reason(t *testing.T) {
	env := newTestEnv(t, nil)
	setPage(t, env, 302, "https://example.com/", "")

	tests := []struct {
		spec   string
		reason string
	}{
		{"status: 200", "Status is 200"},
		{"status_not: 302", "NOT Status is 302"},
		{"path_match: ^/done$", "Path matches ^/done$"},
		{"status: 302\ntext_match: ok", "Text matches ok"},
	}

	for _, tt := range tests {
		ok, reason, err := compileMatcher(t, tt.spec).Match(env)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.spec, err)
		}
		if ok {
			t.Errorf("%s: expected no match", tt.spec)
		}
		if reason != tt.reason {
			t.Errorf("%s: reason = %q, want %q", tt.spec, reason, tt.reason)
		}
	}
}

func TestMatcher_ShortCircuit(t *testing.T) {
	env := newTestEnv(t, nil)
	setPage(t, env, 404, "https://example.com/", "not json")

	// json would fail to decode the body, but status fails first
	ok, reason, err := compileMatcher(t, "status: 200\njson: {a: 1}").Match(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || reason != "Status is 200" {
		t.Errorf("Match() = %v, %q; want false, %q", ok, reason, "Status is 200")
	}

	// in the other order the decode error surfaces
	if _, _, err := compileMatcher(t, "json: {a: 1}\nstatus: 200").Match(env); err == nil {
		t.Error("expected JSON decode error")
	}
}

func TestMatcher_NoResponse(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _, err := compileMatcher(t, "status: 200").Match(env)
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("expected ErrNoResponse, got %v", err)
	}

	// variable predicates do not need a response
	ok, _, err := compileMatcher(t, "variable_exists: '{x}'").Match(env)
	if err != nil || ok {
		t.Errorf("Match() = %v, %v; want false, nil", ok, err)
	}
}

func TestNewMatcher_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"unknown key", "title_match: foo"},
		{"bad status", "status: ok"},
		{"bad regex", "text_match: '(['"},
		{"bad query regex", "query_match: {a: '(['}"},
		{"document without element", "document: [{attrs: {id: x}}]"},
		{"bad expression", "expr: 'a =='"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var spec MatchSpec
			if err := yaml.Unmarshal([]byte(tt.spec), &spec); err != nil {
				t.Fatalf("invalid YAML: %v", err)
			}
			if _, err := NewMatcher(spec); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMatchSpec_KeepsOrder(t *testing.T) {
	var spec MatchSpec
	if err := yaml.Unmarshal([]byte("text_match: a\nstatus: 200\njson: {}"), &spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"text_match", "status", "json"}
	if len(spec) != len(want) {
		t.Fatalf("got %d entries, want %d", len(spec), len(want))
	}
	for i, key := range want {
		if spec[i].Key != key {
			t.Errorf("entry %d = %q, want %q", i, spec[i].Key, key)
		}
	}
}

func TestSuccessMatcher_Check(t *testing.T) {
	env := newTestEnv(t, nil)
	setPage(t, env, 500, "https://example.com/", "")

	err := DefaultSuccessMatcher.Check(env)
	var checkErr *CheckFailedError
	if !errors.As(err, &checkErr) {
		t.Fatalf("expected *CheckFailedError, got %v", err)
	}
	if checkErr.Error() != "Check failed: Status is 200" {
		t.Errorf("got %q", checkErr.Error())
	}

	setPage(t, env, 200, "https://example.com/", "")
	if err := DefaultSuccessMatcher.Check(env); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
