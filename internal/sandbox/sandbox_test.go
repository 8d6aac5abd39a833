package sandbox

import (
	"encoding/json"
	"testing"

	"github.com/phobologic/unfoldgo/internal/model"
)

// Evaluate itself forks a child that re-invokes os.Executable() as the
// sandbox worker; under `go test` that binary is the test binary, not
// unfoldgo, so exercising Evaluate's success path here would depend on
// the test binary recognizing --sandbox-worker. This file covers the
// pieces that don't need a real worker process; the real fork/exec,
// applyResourceLimits, and JSON round-trip are exercised end to end by
// TestSandboxWorkerRewritesScenarioOne in cmd/unfoldgo.

func TestIsWorkerInvocationRequiresBothEnvAndFlag(t *testing.T) {
	t.Setenv(WorkerEnv, "")
	if IsWorkerInvocation([]string{"--sandbox-worker"}) {
		t.Error("expected false when the worker env var is unset")
	}

	t.Setenv(WorkerEnv, "1")
	if IsWorkerInvocation([]string{"run", "file.js"}) {
		t.Error("expected false when the flag is absent even with the env var set")
	}
	if !IsWorkerInvocation([]string{"--sandbox-worker"}) {
		t.Error("expected true when both the env var and the flag are present")
	}
}

func TestIsWorkerInvocationIgnoresUnrelatedFlags(t *testing.T) {
	t.Setenv(WorkerEnv, "1")
	if IsWorkerInvocation([]string{"--verbose", "--debug"}) {
		t.Error("expected false when --sandbox-worker is not among the arguments")
	}
}

func TestOutcomeRoundTripsThroughJSON(t *testing.T) {
	t.Parallel()

	result := model.Integer(42)
	out := Outcome{
		Status:  StatusOK,
		Results: map[string]model.Value{"f1(1,2,3,4)": model.Integer(7)},
		Trace: []TraceEntry{
			{Call: "f1(1,2,3,4)", Args: []model.Value{model.Integer(1)}, Result: &result, ElapsedMs: 3},
		},
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var round Outcome
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if round.Status != StatusOK {
		t.Errorf("Status = %q, want %q", round.Status, StatusOK)
	}
	if v, ok := round.Results["f1(1,2,3,4)"]; !ok || v.Int != 7 {
		t.Errorf("Results[f1(1,2,3,4)] = %+v, want Int 7", v)
	}
	if len(round.Trace) != 1 || round.Trace[0].Result == nil || round.Trace[0].Result.Int != 42 {
		t.Errorf("Trace round-trip mismatch: %+v", round.Trace)
	}
}
