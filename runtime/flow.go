package runtime

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FlowSpec is a flow as authored: step key to step arguments.
type FlowSpec map[string]yaml.Node

// Flow is an immutable sequence of components in canonical order.
type Flow struct {
	components []Component
	maxRetries int
}

// FlowBuilder turns flow specs into flows using a component registry.
type FlowBuilder struct {
	registry *ComponentRegistry
	config   RunConfig
}

func NewFlowBuilder(registry *ComponentRegistry, config RunConfig) *FlowBuilder {
	return &FlowBuilder{registry: registry, config: config}
}

// Build constructs a flow. Steps run in canonical kind order regardless of the
// order in which they appear in spec.
func (b *FlowBuilder) Build(spec FlowSpec) (*Flow, error) {
	var slots [numStepKinds]Component
	for key, node := range spec {
		kind, err := ParseStepKind(key)
		if err != nil {
			return nil, &BuildError{Step: key, Err: err}
		}
		c, err := b.registry.Build(kind, &node)
		if err != nil {
			return nil, &BuildError{Step: key, Err: err}
		}
		slots[kind] = c
	}

	flow := &Flow{maxRetries: b.config.MaxFlowRetries}
	for _, c := range slots {
		if c != nil {
			flow.components = append(flow.components, c)
		}
	}
	return flow, nil
}

// NewFlow assembles a flow from already built components, kept in the given order.
func NewFlow(maxRetries int, components ...Component) *Flow {
	return &Flow{components: components, maxRetries: maxRetries}
}

// Components returns the flow's components in execution order.
func (f *Flow) Components() []Component {
	return f.components
}

// Run executes the components in order. An abort ends the flow successfully, a
// retry starts it over from the first component, and a stage restart is handed
// to the caller. Errors are wrapped with the label of the failing component.
func (f *Flow) Run(env *Environment) Result {
	l := env.Logger()
	retries := 0

attempt:
	for {
		for _, c := range f.components {
			if err := env.Err(); err != nil {
				return Fail(err)
			}

			l.DebugContext(env, fmt.Sprintf("Executing component: %s", c))
			res := c.Execute(env)

			switch res.Signal {
			case SignalContinue:
				continue
			case SignalAbort:
				l.InfoContext(env, fmt.Sprintf("Flow aborted at: %s", c))
				return Continue()
			case SignalRetry:
				retries++
				if f.maxRetries > 0 && retries > f.maxRetries {
					l.ErrorContext(env, "Flow retry limit exceeded", "component", c.String(), "limit", f.maxRetries)
					return Fail(&ComponentError{
						Component: c.String(),
						Err:       &RetryLimitError{Scope: "flow", Limit: f.maxRetries, Err: res.Err},
					})
				}
				l.InfoContext(env, fmt.Sprintf("Retrying flow, attempt %d", retries+1), "component", c.String())
				continue attempt
			case SignalRestartStage:
				return res
			default:
				l.ErrorContext(env, fmt.Sprintf("Component failed: %s", c), "error", res.Err)
				return Fail(&ComponentError{Component: c.String(), Err: res.Err})
			}
		}
		return Continue()
	}
}
