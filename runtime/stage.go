package runtime

import (
	"fmt"
)

// Stage is a named, ordered list of flows sharing one environment.
type Stage struct {
	Name  string
	Flows []*Flow
}

// Run executes the flows in order. A stage restart signal reruns every flow from
// the first one, with the environment left as the previous attempt left it.
func (s *Stage) Run(env *Environment, maxRestarts int) error {
	l := env.Logger().With("stage", s.Name)
	restarts := 0

restart:
	for {
		for i, flow := range s.Flows {
			res := flow.Run(env)
			switch res.Signal {
			case SignalRestartStage:
				restarts++
				if maxRestarts > 0 && restarts > maxRestarts {
					return &StageError{
						Stage: s.Name,
						Index: i + 1,
						Err:   &RetryLimitError{Scope: "stage", Limit: maxRestarts, Err: res.Err},
					}
				}
				l.InfoContext(env, fmt.Sprintf("Restarting stage, attempt %d", restarts+1), "flow", i+1)
				continue restart
			case SignalError:
				return &StageError{Stage: s.Name, Index: i + 1, Err: res.Err}
			}
		}
		l.DebugContext(env, "Stage completed")
		return nil
	}
}
