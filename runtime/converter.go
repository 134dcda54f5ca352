package runtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// mapToStruct converts a map[string]any to a struct using mapstructure.
// tagName selects the struct tag used for field mapping ("yaml" for configs and definitions).
// It supports time.Duration and time.Time conversions.
func mapToStruct(m map[string]any, target any, tagName string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: tagName,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true, // Allow type coercion (e.g., "10" -> 10)
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("failed to decode map to struct: %w", err)
	}

	return nil
}

// mapToStructFromYAML decodes raw configuration values keyed by yaml tags.
func mapToStructFromYAML(m map[string]any, target any) error {
	return mapToStruct(m, target, "yaml")
}

// DecodeMap decodes a generic map (e.g. a YAML section) into target using yaml tags.
func DecodeMap(m map[string]any, target any) error {
	return mapToStructFromYAML(m, target)
}

// normalizeJSON converts an arbitrary value into the shapes encoding/json produces
// (map[string]any, []any, float64, string, bool, nil) using a JSON round-trip.
func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return result, nil
}
