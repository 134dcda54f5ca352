package runtime

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoResponse is returned when a derived view is read before any request was made.
	ErrNoResponse = errors.New("no current response")

	// ErrNoForm is returned by submit_form when no match_form step ran before it.
	ErrNoForm = errors.New("no form has been matched")

	// ErrNotPrepared is returned by Execute when Prepare did not run first.
	ErrNotPrepared = errors.New("provider has not been prepared")
)

// SubstitutionError reports a template that could not be resolved against the variable store.
type SubstitutionError struct {
	Template string
	Name     string // offending placeholder, empty for syntax errors
	Reason   string
}

func (e *SubstitutionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("error in format string %q: %s %q", e.Template, e.Reason, e.Name)
	}
	return fmt.Sprintf("error in format string %q: %s", e.Template, e.Reason)
}

// LookupError reports that something a step needed was not present:
// an element, a form, a cookie, a regex match.
type LookupError struct {
	What   string
	Detail string
}

func (e *LookupError) Error() string {
	if e.Detail == "" {
		return e.What
	}
	return fmt.Sprintf("%s %s", e.What, e.Detail)
}

func lookupErrorf(what string, format string, args ...any) *LookupError {
	return &LookupError{What: what, Detail: fmt.Sprintf(format, args...)}
}

// CheckFailedError is raised by a success matcher whose predicates did not hold.
// Reason is the explanation of the first failing predicate.
type CheckFailedError struct {
	Reason string
}

func (e *CheckFailedError) Error() string {
	return "Check failed: " + e.Reason
}

// ComponentError attaches the label of the step that failed.
type ComponentError struct {
	Component string
	Err       error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("error in component %s: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

func (e *ComponentError) context() string {
	return "error in component " + e.Component
}

// StageError attaches the stage name and the 1-based index of the failing flow.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("error in %s stage, step %d: %v", e.Stage, e.Index, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) context() string {
	return fmt.Sprintf("error in %s stage, step %d", e.Stage, e.Index)
}

// RetryLimitError is returned when a configured retry or restart bound is exhausted.
// Err is the failure that triggered the last attempt, if any.
type RetryLimitError struct {
	Scope string // "flow" or "stage"
	Limit int
	Err   error
}

func (e *RetryLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s retry limit of %d exceeded: %v", e.Scope, e.Limit, e.Err)
	}
	return fmt.Sprintf("%s retry limit of %d exceeded", e.Scope, e.Limit)
}

func (e *RetryLimitError) Unwrap() error {
	return e.Err
}

func (e *RetryLimitError) context() string {
	return fmt.Sprintf("%s retry limit of %d exceeded", e.Scope, e.Limit)
}

// BuildError reports a flow definition that could not be turned into components.
type BuildError struct {
	Step string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("invalid step %s: %v", e.Step, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func (e *BuildError) context() string {
	return "invalid step " + e.Step
}

type contextual interface {
	context() string
}

// Explain renders an error chain one message per line, innermost cause first.
func Explain(err error) string {
	if err == nil {
		return ""
	}

	var lines []string
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		next := errors.Unwrap(cur)
		switch {
		case next == nil:
			lines = append(lines, cur.Error())
		default:
			if c, ok := cur.(contextual); ok {
				lines = append(lines, c.context())
				continue
			}
			// fmt.Errorf("...: %w") wrappers: keep only their own prefix
			own := strings.TrimSuffix(cur.Error(), ": "+next.Error())
			if own != cur.Error() && own != "" {
				lines = append(lines, own)
			}
		}
	}

	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}
