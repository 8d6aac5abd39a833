package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/phobologic/unfoldgo/internal/syntax"
)

// defaultAddressSpaceLimit bounds the worker's virtual memory, failing the
// evaluation loudly rather than letting a runaway helper hang the process.
// 256 MiB comfortably covers the small programs this harness assembles
// while still catching a helper that builds an unbounded structure.
const defaultAddressSpaceLimit = 256 << 20

// RunWorker is the entrypoint cmd/unfoldgo dispatches to when
// IsWorkerInvocation reports this process was re-exec'd as the sandbox
// evaluator. It reads the assembled program from stdin, applies rlimits,
// interprets the program, and writes the resulting Outcome as JSON to
// stdout. It always exits the process — there is nothing for the caller
// to do afterward.
func RunWorker() {
	outcome := runWorkerInternal()
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(outcome); err != nil {
		fmt.Fprintln(os.Stderr, "unfoldgo: sandbox worker: encode outcome:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func runWorkerInternal() Outcome {
	if err := applyResourceLimits(); err != nil {
		return Outcome{Status: StatusFatal, Fatal: "setrlimit: " + err.Error()}
	}

	program, err := io.ReadAll(os.Stdin)
	if err != nil {
		return Outcome{Status: StatusFatal, Fatal: "read program: " + err.Error()}
	}

	tree, err := syntax.Parse(context.Background(), program)
	if err != nil {
		return Outcome{Status: StatusFatal, Fatal: "parse assembled program: " + err.Error()}
	}
	defer tree.Close()

	it := newInterp(program)
	results, trace, err := it.run(tree.Root())
	if err != nil {
		return Outcome{Status: StatusFatal, Fatal: err.Error()}
	}

	return Outcome{Status: StatusOK, Results: results, Trace: trace}
}

// applyResourceLimits sets RLIMIT_AS so a runaway helper's allocations fail
// loudly instead of pressuring the host, and RLIMIT_CPU as a second,
// process-local backstop behind the parent's wall-clock context timeout.
// Only an OS rlimit on a forked child can enforce a memory ceiling at all;
// nothing in-process can.
func applyResourceLimits() error {
	asLimit := unix.Rlimit{Cur: defaultAddressSpaceLimit, Max: defaultAddressSpaceLimit}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &asLimit); err != nil {
		return err
	}
	cpuLimit := unix.Rlimit{Cur: 60, Max: 60}
	return unix.Setrlimit(unix.RLIMIT_CPU, &cpuLimit)
}
