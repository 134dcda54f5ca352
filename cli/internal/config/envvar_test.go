package config

import (
	"strings"
	"testing"
)

func TestParseEnvVar(t *testing.T) {
	tests := []struct {
		input       string
		wantLiteral bool
		wantVar     string
		wantDefault string
		hasDefault  bool
	}{
		{"alice@example.com", true, "", "", false},
		{"", true, "", "", false},
		{"${EXAMPLE_USER}", false, "EXAMPLE_USER", "", false},
		{"${EXAMPLE_USER:alice@example.com}", false, "EXAMPLE_USER", "alice@example.com", true},
		{"${API_KEY:}", false, "API_KEY", "", true},
		{"${LOGIN_URL:https://example.com/login?next=/}", false, "LOGIN_URL", "https://example.com/login?next=/", true},
		// not references, kept verbatim
		{"${lowercase}", true, "", "", false},
		{"${123VAR}", true, "", "", false},
		{"$VAR", true, "", "", false},
		{"${VAR", true, "", "", false},
		{"${}", true, "", "", false},
	}

	for _, tt := range tests {
		spec, err := ParseEnvVar(tt.input)
		if err != nil {
			t.Errorf("ParseEnvVar(%q) failed: %v", tt.input, err)
			continue
		}
		if spec.IsLiteral != tt.wantLiteral {
			t.Errorf("ParseEnvVar(%q).IsLiteral = %v, want %v", tt.input, spec.IsLiteral, tt.wantLiteral)
			continue
		}
		if tt.wantLiteral {
			if spec.LiteralValue != tt.input {
				t.Errorf("ParseEnvVar(%q).LiteralValue = %q", tt.input, spec.LiteralValue)
			}
			continue
		}
		if spec.VarName != tt.wantVar || spec.HasDefault != tt.hasDefault || spec.DefaultValue != tt.wantDefault {
			t.Errorf("ParseEnvVar(%q) = %+v", tt.input, spec)
		}
	}
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		value   any
		want    string
		wantErr bool
	}{
		{8080, "8080", false},
		{true, "true", false},
		{nil, "", false},
		{map[string]string{"key": "value"}, "", true},
		{[]string{"a"}, "", true},
	}

	for _, tt := range tests {
		spec, err := ParseConfigValue(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseConfigValue(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (!spec.IsLiteral || spec.LiteralValue != tt.want) {
			t.Errorf("ParseConfigValue(%v) = %+v, want literal %q", tt.value, spec, tt.want)
		}
	}
}

func TestEnvVarSpec_Resolve(t *testing.T) {
	env := map[string]string{"EXAMPLE_USER": "bob", "EMPTY": ""}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "plain", false},
		{"${EXAMPLE_USER}", "bob", false},
		{"${EXAMPLE_USER:alice}", "bob", false},
		{"${MISSING:alice}", "alice", false},
		{"${EMPTY:fallback}", "", false},
		{"${MISSING}", "", true},
	}

	for _, test := range tests {
		spec, err := ParseEnvVar(test.input)
		if err != nil {
			t.Fatalf("ParseEnvVar(%q) failed: %v", test.input, err)
		}
		got, err := spec.Resolve(lookup)
		if (err != nil) != test.wantErr {
			t.Errorf("Resolve(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("Resolve(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestParseOptionFlags(t *testing.T) {
	t.Setenv("ROTOR_TEST_REGION", "eu")

	got, err := ParseOptionFlags([]string{"username=alice", "region=${ROTOR_TEST_REGION}", "note=a=b", "tier=${ROTOR_TEST_TIER:free}"})
	if err != nil {
		t.Fatalf("ParseOptionFlags failed: %v", err)
	}

	want := map[string]string{"username": "alice", "region": "eu", "note": "a=b", "tier": "free"}
	if len(got) != len(want) {
		t.Fatalf("got %d options, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("option %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseOptionFlags_Invalid(t *testing.T) {
	tests := []struct {
		flag    string
		errPart string
	}{
		{"novalue", "expected key=value"},
		{"=value", "expected key=value"},
		{"user=${ROTOR_TEST_UNSET_VAR}", "ROTOR_TEST_UNSET_VAR is not set"},
	}

	for _, test := range tests {
		_, err := ParseOptionFlags([]string{test.flag})
		if err == nil {
			t.Errorf("ParseOptionFlags(%q) expected error", test.flag)
			continue
		}
		if !strings.Contains(err.Error(), test.errPart) {
			t.Errorf("ParseOptionFlags(%q) error = %q, want it to contain %q", test.flag, err, test.errPart)
		}
	}
}
