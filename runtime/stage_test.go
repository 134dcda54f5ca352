package runtime

import (
	"errors"
	"testing"
)

func TestStage_Run(t *testing.T) {
	var log []string
	a := &recorder{name: "a", log: &log}
	b := &recorder{name: "b", log: &log}
	stage := &Stage{Name: "execute", Flows: []*Flow{NewFlow(0, a), NewFlow(0, b)}}

	if err := stage.Run(newTestEnv(t, nil), 0); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(log) != 2 || log[0] != "a" || log[1] != "b" {
		t.Errorf("ran %v, want [a b]", log)
	}
}

func TestStage_Restart(t *testing.T) {
	env := newTestEnv(t, nil)
	var log []string

	first := NewFlow(0, &recorder{name: "first", log: &log})
	third := NewFlow(0, &recorder{name: "third", log: &log})

	// counts stage passes in the environment, to check state survives restarts
	counter := buildFlow(t, RunConfig{}, `set_variable: {variable: runs, value: 'x{runs}'}`)
	env.Vars.Set("runs", "")

	second := &recorder{name: "second", log: &log, results: []Result{RestartStage(errors.New("expired"))}}
	stage := &Stage{Name: "execute", Flows: []*Flow{counter, first, NewFlow(0, second), third}}
	if err := stage.Run(env, 0); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	want := []string{"first", "second", "first", "second", "third"}
	if len(log) != len(want) {
		t.Fatalf("ran %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, log[i], want[i])
		}
	}
	if runs, _ := env.Vars.Get("runs"); runs != "xx" {
		t.Errorf("variables should survive restarts, runs = %v, want xx", runs)
	}
}

func TestStage_RestartLimit(t *testing.T) {
	cause := errors.New("expired")
	always := &recorder{name: "always"}
	for i := 0; i < 5; i++ {
		always.results = append(always.results, RestartStage(cause))
	}

	stage := &Stage{Name: "prepare", Flows: []*Flow{NewFlow(0), NewFlow(0, always)}}
	err := stage.Run(newTestEnv(t, nil), 2)

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != "prepare" || stageErr.Index != 2 {
		t.Errorf("got stage %q index %d, want prepare 2", stageErr.Stage, stageErr.Index)
	}
	var limitErr *RetryLimitError
	if !errors.As(err, &limitErr) || limitErr.Scope != "stage" || limitErr.Limit != 2 {
		t.Errorf("expected stage RetryLimitError, got %v", err)
	}
	if always.calls != 3 {
		t.Errorf("calls = %d, want 3", always.calls)
	}
}

func TestStage_Error(t *testing.T) {
	cause := errors.New("boom")
	var log []string
	stage := &Stage{Name: "execute", Flows: []*Flow{
		NewFlow(0, &recorder{name: "ok", log: &log}),
		NewFlow(0, &recorder{name: "bad", log: &log, results: []Result{Fail(cause)}}),
		NewFlow(0, &recorder{name: "never", log: &log}),
	}}

	err := stage.Run(newTestEnv(t, nil), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), "error in execute stage, step 2: error in component bad: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be in the chain")
	}
	if len(log) != 2 {
		t.Errorf("ran %v, want [ok bad]", log)
	}
}
