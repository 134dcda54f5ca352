package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// EnvVarSpec represents a parsed environment variable specification
type EnvVarSpec struct {
	// VarName is the environment variable name (e.g., "EXAMPLE_USER")
	VarName string

	// HasDefault indicates if a default value was provided
	HasDefault bool

	// DefaultValue is the default value if HasDefault is true
	DefaultValue string

	// IsLiteral indicates if this is a literal value (not an env var)
	IsLiteral bool

	// LiteralValue is the literal value if IsLiteral is true
	LiteralValue string
}

// envVarPattern matches ${VAR} and ${VAR:default} syntax
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// ParseEnvVar parses an option value that may reference an environment variable.
//
// Supported formats:
//   - ${VAR}         - Required environment variable
//   - ${VAR:default} - Optional environment variable with default
//   - literal        - Plain literal value
//
// Anything that does not match the reference syntax exactly is a literal.
func ParseEnvVar(value string) (*EnvVarSpec, error) {
	if value == "" {
		return &EnvVarSpec{
			IsLiteral:    true,
			LiteralValue: "",
		}, nil
	}

	matches := envVarPattern.FindStringSubmatch(value)
	if matches == nil {
		return &EnvVarSpec{
			IsLiteral:    true,
			LiteralValue: value,
		}, nil
	}

	varName := matches[1]
	defaultPart := matches[2] // ":default" or empty

	if !isValidEnvVarName(varName) {
		return nil, fmt.Errorf("invalid environment variable name: %s", varName)
	}

	spec := &EnvVarSpec{
		VarName:    varName,
		HasDefault: defaultPart != "",
	}
	if spec.HasDefault {
		spec.DefaultValue = strings.TrimPrefix(defaultPart, ":")
	}
	return spec, nil
}

// Resolve returns the value the spec stands for. lookup is normally os.LookupEnv.
func (s *EnvVarSpec) Resolve(lookup func(string) (string, bool)) (string, error) {
	if s.IsLiteral {
		return s.LiteralValue, nil
	}
	if v, ok := lookup(s.VarName); ok {
		return v, nil
	}
	if s.HasDefault {
		return s.DefaultValue, nil
	}
	return "", fmt.Errorf("environment variable %s is not set", s.VarName)
}

// isValidEnvVarName checks if a string is a valid environment variable name
// Valid names: Start with A-Z or underscore, contain only A-Z, 0-9, underscore
func isValidEnvVarName(name string) bool {
	if name == "" {
		return false
	}

	first := name[0]
	if !((first >= 'A' && first <= 'Z') || first == '_') {
		return false
	}

	for i := 1; i < len(name); i++ {
		c := name[i]
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}

	return true
}

// ParseConfigValue parses a scalar option value from the config file.
func ParseConfigValue(value any) (*EnvVarSpec, error) {
	switch v := value.(type) {
	case string:
		return ParseEnvVar(v)
	case int, int32, int64, float32, float64, bool:
		return &EnvVarSpec{
			IsLiteral:    true,
			LiteralValue: fmt.Sprintf("%v", v),
		}, nil
	case nil:
		return &EnvVarSpec{
			IsLiteral:    true,
			LiteralValue: "",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported option value type: %T", value)
	}
}

// ResolveValue parses and resolves a value against the process environment.
func ResolveValue(value any) (string, error) {
	spec, err := ParseConfigValue(value)
	if err != nil {
		return "", err
	}
	return spec.Resolve(os.LookupEnv)
}

// ParseOptionFlags turns repeated key=value flags into a map. Values may
// reference environment variables.
func ParseOptionFlags(flags []string) (map[string]string, error) {
	options := make(map[string]string, len(flags))
	for _, flag := range flags {
		key, value, ok := strings.Cut(flag, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q, expected key=value", flag)
		}
		resolved, err := ResolveValue(value)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", key, err)
		}
		options[key] = resolved
	}
	return options, nil
}
