package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/harness"
	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/resolve"
	"github.com/phobologic/unfoldgo/internal/sandbox"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

var builtBinary string

// TestMain builds the real unfoldgo binary once, so the tests in this
// package can re-exec it as its own sandbox worker the same way
// sandbox.Evaluate does in production, instead of only exercising the
// pieces that don't need a real worker process.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "unfoldgo-integration")
	if err != nil {
		os.Stderr.WriteString("TestMain: MkdirTemp: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	builtBinary = filepath.Join(dir, "unfoldgo")
	build := exec.Command("go", "build", "-o", builtBinary, ".")
	build.Dir = "."
	if out, err := build.CombinedOutput(); err != nil {
		os.Stderr.WriteString("TestMain: go build: " + err.Error() + "\n" + string(out) + "\n")
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// TestSandboxWorkerRewritesScenarioOne exercises the real subprocess
// worker end to end: it assembles the constant-arithmetic scenario's
// program exactly the way internal/harness.Run does, feeds it to the
// compiled binary over stdin with --sandbox-worker set, and checks the
// resulting Outcome carries the rewritten value (10) for f123's call
// site. This is the path internal/sandbox's own unit tests cannot
// reach, since under `go test` the re-exec'd binary is the test binary
// itself rather than unfoldgo.
func TestSandboxWorkerRewritesScenarioOne(t *testing.T) {
	source := []byte("function f123(a,b,c,d){return a+b+c+d;}\nvar x = f123(1,2,3,4);\n")
	tree, err := syntax.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()
	root := tree.Root()

	pattern, err := coregex.Compile(`^f\d+$`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	helpers := classify.Helpers(root, tree.Source(), pattern)
	dep := resolve.Closure(root, tree.Source(), helpers, []string{"f123"}, nil)

	pure := []model.CallSite{
		{
			Name:    "f123",
			Key:     "f123(1,2,3,4)",
			Args:    []model.Value{model.Integer(1), model.Integer(2), model.Integer(3), model.Integer(4)},
			Literal: true,
		},
	}
	program := harness.Assemble(root, tree.Source(), helpers, dep, pure)

	cmd := exec.Command(builtBinary, "--sandbox-worker")
	cmd.Env = append(os.Environ(), sandbox.WorkerEnv+"=1")
	cmd.Stdin = bytes.NewReader([]byte(program))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("running built binary as sandbox worker: %v\nstderr: %s", err, stderr.String())
	}

	var outcome sandbox.Outcome
	if err := json.Unmarshal(stdout.Bytes(), &outcome); err != nil {
		t.Fatalf("unmarshaling worker outcome: %v\nstdout: %s", err, stdout.String())
	}

	if outcome.Status != sandbox.StatusOK {
		t.Fatalf("Status = %q, want %q (fatal: %s)", outcome.Status, sandbox.StatusOK, outcome.Fatal)
	}
	v, ok := outcome.Results["f123(1,2,3,4)"]
	if !ok {
		t.Fatalf("no result for f123(1,2,3,4) in %+v", outcome.Results)
	}
	if v.Int != 10 {
		t.Errorf("Results[f123(1,2,3,4)].Int = %d, want 10", v.Int)
	}
}
