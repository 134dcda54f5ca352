package runtime

import (
	"testing"
	"time"
)

type cookieOptions struct {
	Name    string        `yaml:"name"`
	MaxAge  int           `yaml:"max_age"`
	Secure  bool          `yaml:"secure"`
	Refresh time.Duration `yaml:"refresh"`
}

// Test mapToStruct with basic types
func TestMapToStruct_BasicTypes(t *testing.T) {
	input := map[string]any{
		"name":    "session",
		"max_age": 3600,
		"secure":  true,
	}

	var result cookieOptions
	if err := mapToStructFromYAML(input, &result); err != nil {
		t.Fatalf("mapToStructFromYAML failed: %v", err)
	}

	if result.Name != "session" {
		t.Errorf("Expected name 'session', got '%s'", result.Name)
	}
	if result.MaxAge != 3600 {
		t.Errorf("Expected max_age 3600, got %d", result.MaxAge)
	}
	if !result.Secure {
		t.Error("Expected secure=true")
	}
}

// Test mapToStruct with type coercion
func TestMapToStruct_TypeCoercion(t *testing.T) {
	input := map[string]any{
		"max_age": "60",
		"secure":  "true",
	}

	var result cookieOptions
	if err := mapToStructFromYAML(input, &result); err != nil {
		t.Fatalf("mapToStructFromYAML failed: %v", err)
	}

	if result.MaxAge != 60 {
		t.Errorf("Expected max_age 60, got %d", result.MaxAge)
	}
	if !result.Secure {
		t.Error("Expected secure=true")
	}
}

func TestMapToStruct_Duration(t *testing.T) {
	var result cookieOptions
	if err := mapToStructFromYAML(map[string]any{"refresh": "90s"}, &result); err != nil {
		t.Fatalf("mapToStructFromYAML failed: %v", err)
	}
	if result.Refresh != 90*time.Second {
		t.Errorf("Expected refresh 90s, got %v", result.Refresh)
	}
}

func TestDecodeMap_Option(t *testing.T) {
	input := map[string]any{
		"description": "Account region",
		"optional":    true,
		"values":      map[string]any{"us": "United States", "eu": "Europe"},
	}

	var opt Option
	if err := DecodeMap(input, &opt); err != nil {
		t.Fatalf("DecodeMap failed: %v", err)
	}

	if opt.Description != "Account region" {
		t.Errorf("Expected description 'Account region', got '%s'", opt.Description)
	}
	if !opt.Optional {
		t.Error("Expected optional=true")
	}
	if opt.Values["eu"] != "Europe" || len(opt.Values) != 2 {
		t.Errorf("Unexpected values: %v", opt.Values)
	}
}

func TestMapToStruct_InvalidInput(t *testing.T) {
	var result cookieOptions
	err := mapToStructFromYAML(map[string]any{"max_age": "not a number"}, &result)
	if err == nil {
		t.Error("Expected error for invalid input")
	}
}

func TestNormalizeJSON(t *testing.T) {
	got, err := normalizeJSON(map[string]any{
		"count": 3,
		"tags":  []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("normalizeJSON failed: %v", err)
	}

	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("Expected map[string]any, got %T", got)
	}
	if m["count"] != float64(3) {
		t.Errorf("Expected count float64(3), got %#v", m["count"])
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" {
		t.Errorf("Expected tags []any{a b}, got %#v", m["tags"])
	}
}
