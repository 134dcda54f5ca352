package runtime

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// StepKind identifies a step category. The numeric order of the constants is the
// canonical execution order inside a flow, whatever order the steps were authored in.
type StepKind int

const (
	StepIfMatch StepKind = iota
	StepPrompt
	StepSetVariable
	StepSetCookie
	StepGetURL
	StepStoreJSJSON
	StepStoreURL
	StepStoreCookie
	StepStoreElement
	StepStoreJSON
	StepMatchForm
	StepMatchAnyForm
	StepAction

	numStepKinds
)

var stepKeys = [numStepKinds]string{
	StepIfMatch:      "if_match",
	StepPrompt:       "prompt",
	StepSetVariable:  "set_variable",
	StepSetCookie:    "set_cookie",
	StepGetURL:       "get_url",
	StepStoreJSJSON:  "store_js_json",
	StepStoreURL:     "store_url",
	StepStoreCookie:  "store_cookie",
	StepStoreElement: "store_element",
	StepStoreJSON:    "store_json",
	StepMatchForm:    "match_form",
	StepMatchAnyForm: "match_any_form",
	StepAction:       "action",
}

func (k StepKind) String() string {
	if k < 0 || k >= numStepKinds {
		return fmt.Sprintf("step(%d)", int(k))
	}
	return stepKeys[k]
}

// ParseStepKind maps a configuration key to its step kind.
func ParseStepKind(key string) (StepKind, error) {
	for k, name := range stepKeys {
		if name == key {
			return StepKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", key)
}

// StepKinds returns every step kind in canonical order.
func StepKinds() []StepKind {
	kinds := make([]StepKind, numStepKinds)
	for i := range kinds {
		kinds[i] = StepKind(i)
	}
	return kinds
}

// Component is one executable step of a flow. Components are built once and
// never mutated, so the same flow can run any number of times.
type Component interface {
	Execute(env *Environment) Result
	String() string
}

// Constructor builds a component from the step's YAML arguments.
type Constructor func(node *yaml.Node) (Component, error)

// ComponentRegistry maps step kinds to their constructors.
type ComponentRegistry struct {
	constructors map[StepKind]Constructor
}

// NewComponentRegistry returns a registry holding the built-in step vocabulary.
func NewComponentRegistry() *ComponentRegistry {
	r := &ComponentRegistry{constructors: make(map[StepKind]Constructor)}

	r.Register(StepIfMatch, newIfMatch)
	r.Register(StepPrompt, newPromptStep)
	r.Register(StepSetVariable, newSetVariable)
	r.Register(StepSetCookie, newSetCookie)
	r.Register(StepGetURL, newGetURL)
	r.Register(StepStoreJSJSON, newStoreJSJSON)
	r.Register(StepStoreURL, newStoreURL)
	r.Register(StepStoreCookie, newStoreCookie)
	r.Register(StepStoreElement, newStoreElement)
	r.Register(StepStoreJSON, newStoreJSON)
	r.Register(StepMatchForm, newMatchFormComponent)
	r.Register(StepMatchAnyForm, newMatchAnyForm)
	r.Register(StepAction, newAction)

	return r
}

// Register replaces the constructor of a step kind.
func (r *ComponentRegistry) Register(kind StepKind, ctor Constructor) {
	r.constructors[kind] = ctor
}

func (r *ComponentRegistry) Build(kind StepKind, node *yaml.Node) (Component, error) {
	ctor, ok := r.constructors[kind]
	if !ok {
		return nil, fmt.Errorf("no constructor registered for step %s", kind)
	}
	return ctor(node)
}
