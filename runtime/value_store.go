package runtime

import "strings"

// ValueStore holds the variables of one provider run as nested maps.
// Keys are dot-separated paths: writing "token.access" creates values["token"]["access"],
// so templates can read either the whole "token" map or the leaf.
type ValueStore struct {
	values map[string]any
}

func NewValueStore() *ValueStore {
	return &ValueStore{
		values: make(map[string]any),
	}
}

// Set stores a value at a dot-separated key path, creating intermediate maps.
// A non-map value found on the way is replaced by a new map.
func (s *ValueStore) Set(key string, value any) {
	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		s.values[key] = value
		return
	}

	current := s.values
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			m := make(map[string]any)
			current[part] = m
			current = m
			continue
		}
		if m, ok := next.(map[string]any); ok {
			current = m
		} else {
			m := make(map[string]any)
			current[part] = m
			current = m
		}
	}
	current[parts[len(parts)-1]] = value
}

// Get retrieves a value at a dot-separated key path by traversing nested maps.
func (s *ValueStore) Get(key string) (any, bool) {
	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		v, ok := s.values[key]
		return v, ok
	}

	current := s.values
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			return nil, false
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, false
		}
		current = m
	}

	v, ok := current[parts[len(parts)-1]]
	return v, ok
}

// Merge copies every top-level entry of m into the store, overwriting existing keys.
func (s *ValueStore) Merge(m map[string]any) {
	for k, v := range m {
		s.values[k] = v
	}
}

// All returns the top-level map. The expression evaluator receives it as its environment.
func (s *ValueStore) All() map[string]any {
	return s.values
}
