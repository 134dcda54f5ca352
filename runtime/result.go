package runtime

import "fmt"

// Signal tells the flow and stage runners how to proceed after a component ran.
type Signal int

const (
	// SignalContinue moves on to the next component.
	SignalContinue Signal = iota
	// SignalAbort ends the current flow without an error.
	SignalAbort
	// SignalRetry restarts the enclosing flow from its first component.
	SignalRetry
	// SignalRestartStage reruns every flow of the current stage from the first one.
	SignalRestartStage
	// SignalError fails the flow with Result.Err.
	SignalError
)

func (s Signal) String() string {
	switch s {
	case SignalContinue:
		return "continue"
	case SignalAbort:
		return "abort"
	case SignalRetry:
		return "retry"
	case SignalRestartStage:
		return "restart"
	case SignalError:
		return "error"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Result is the outcome of executing a component or a flow.
// Err is only set when Signal is SignalError, except for Retry and RestartStage
// raised by an action, which carry the failure that triggered them for logging.
type Result struct {
	Signal Signal
	Err    error
}

func Continue() Result { return Result{Signal: SignalContinue} }

func Abort() Result { return Result{Signal: SignalAbort} }

func Retry(cause error) Result { return Result{Signal: SignalRetry, Err: cause} }

func RestartStage(cause error) Result { return Result{Signal: SignalRestartStage, Err: cause} }

// Fail returns an error result, or Continue when err is nil.
func Fail(err error) Result {
	if err == nil {
		return Continue()
	}
	return Result{Signal: SignalError, Err: err}
}

func (r Result) IsError() bool {
	return r.Signal == SignalError
}
