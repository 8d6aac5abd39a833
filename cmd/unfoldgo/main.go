// unfoldgo is a constant-folding deobfuscator: it intercepts a configured
// family of helper routines, evaluates the pure ones in a sandboxed child
// process, and rewrites call sites with the captured literal results.
package main

import (
	"fmt"
	"os"

	"github.com/phobologic/unfoldgo/internal/sandbox"
)

func main() {
	if sandbox.IsWorkerInvocation(os.Args[1:]) {
		sandbox.RunWorker()
		return
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
