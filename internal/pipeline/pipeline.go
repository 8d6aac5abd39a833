// Package pipeline orchestrates the full deobfuscation run over a single
// source blob: normalize, parse, classify, extract, resolve, evaluate,
// rewrite, cleanup. It runs single-threaded and sequential — each stage
// completes before the next begins.
package pipeline

import (
	"context"
	"time"

	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/cleanup"
	"github.com/phobologic/unfoldgo/internal/config"
	"github.com/phobologic/unfoldgo/internal/corefail"
	"github.com/phobologic/unfoldgo/internal/extract"
	"github.com/phobologic/unfoldgo/internal/harness"
	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/normalize"
	"github.com/phobologic/unfoldgo/internal/resolve"
	"github.com/phobologic/unfoldgo/internal/rewrite"
	"github.com/phobologic/unfoldgo/internal/sandbox"
	"github.com/phobologic/unfoldgo/internal/syntax"
	"github.com/phobologic/unfoldgo/internal/trace"
)

// CallLogEntry is one line of the debug trace's callLog.
type CallLogEntry struct {
	Call      string        `json:"call"`
	Args      []model.Value `json:"args"`
	Result    *model.Value  `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	ElapsedMs int64         `json:"elapsedMs"`
}

// Summary is the debug trace's summary object.
type Summary struct {
	TotalCalls      int `json:"totalCalls"`
	SuccessfulCalls int `json:"successfulCalls"`
	FailedCalls     int `json:"failedCalls"`
}

// DebugTrace is the debug_output_path JSON shape written to disk.
type DebugTrace struct {
	Timestamp string         `json:"timestamp"`
	CallLog   []CallLogEntry `json:"callLog"`
	Summary   Summary        `json:"summary"`
}

// Output is everything one pipeline run produces: the revised source, the
// results map, the cleanup decision, and the diagnostic trace — every
// field beyond Source is optional/diagnostic.
type Output struct {
	Source        []byte
	Values        map[string]model.Value
	RewrittenKeys map[string]bool
	Cleanup       cleanup.Report
	Dependency    resolve.Result
	Debug         DebugTrace
	// Diagnostics collects every contained, non-fatal corefail error
	// noticed along the run: classifier inconsistencies from extraction,
	// sandbox timeouts/crashes, and per-call failures from evaluation.
	Diagnostics []error
}

// Run executes one full deobfuscation pass over source under cfg.
func Run(ctx context.Context, source []byte, cfg config.Compiled) (Output, error) {
	ctx, end := trace.Phase(ctx, "normalize")
	normalized := source
	if cfg.StringReverse {
		var err error
		normalized, err = normalize.Apply(source)
		if err != nil {
			end()
			return Output{}, corefail.ParseError{Cause: err}
		}
	}
	end(trace.Int("bytes", len(normalized)))

	ctx, end = trace.Phase(ctx, "parse")
	tree, err := syntax.Parse(ctx, normalized)
	if err != nil {
		end()
		return Output{}, corefail.ParseError{Cause: err}
	}
	defer tree.Close()
	root := tree.Root()
	end()

	ctx, end = trace.Phase(ctx, "classify")
	helpers := classify.Helpers(root, normalized, cfg.InterceptPattern)
	end(trace.Int("helpers", len(helpers.Helpers)))

	if !cfg.FunctionCalls {
		return Output{Source: normalized, Values: map[string]model.Value{}}, nil
	}

	ctx, end = trace.Phase(ctx, "extract")
	extracted := extract.CallSites(ctx, root, normalized, extract.Config{
		InterceptPattern:   cfg.InterceptPattern,
		FunctionNameFilter: cfg.FunctionNameFilter,
		MinArgs:            cfg.MinArgs,
		MaxArgs:            cfg.MaxArgs,
		TraceLines:         cfg.TraceLines,
	}, helpers)
	end(trace.Int("pure_call_sites", len(extracted.Pure)), trace.Int("diagnostics", len(extracted.Diagnostics)))

	ctx, end = trace.Phase(ctx, "resolve")
	pureCallees := make([]string, 0, len(extracted.Pure))
	for _, cs := range extracted.Pure {
		pureCallees = append(pureCallees, cs.Name)
	}
	dep := resolve.Closure(root, normalized, helpers, pureCallees, extracted.SeedNames)
	end(trace.Int("extracted_set_size", len(dep.Extracted)), trace.Bool("has_cycle", dep.HasCycle))

	timeout := harness.DefaultTimeout
	if cfg.SandboxTimeoutMs > 0 {
		timeout = time.Duration(cfg.SandboxTimeoutMs) * time.Millisecond
	}

	evalCtx, end := trace.Phase(ctx, "evaluate")
	harnessResult := harness.Run(evalCtx, root, normalized, helpers, dep, extracted.Pure, timeout, cfg.TraceLines)
	end(trace.String("status", string(harnessResult.Status)), trace.Int("results", len(harnessResult.Values)))

	_, end = trace.Phase(ctx, "rewrite")
	rewriteResult, err := rewrite.Apply(root, normalized, rewrite.Config{
		InterceptPattern: cfg.InterceptPattern,
		MinArgs:          cfg.MinArgs,
		MaxArgs:          cfg.MaxArgs,
	}, harnessResult.Values, cfg.DisableReplace)
	if err != nil {
		end()
		return Output{}, corefail.AssemblyError{Cause: err}
	}
	end(trace.Int("rewritten", len(rewriteResult.RewrittenKeys)))

	revisedSource := rewriteResult.Output
	cleanupReport := cleanup.Report{}
	if cfg.CleanupMode != "" && cfg.CleanupMode != config.CleanupNone {
		_, end = trace.Phase(ctx, "cleanup")
		revisedTree, err := syntax.Parse(ctx, revisedSource)
		if err != nil {
			end()
			return Output{}, corefail.AssemblyError{Cause: err}
		}
		revisedHelpers := classify.Helpers(revisedTree.Root(), revisedSource, cfg.InterceptPattern)
		out, report, err := cleanup.Apply(revisedTree.Root(), revisedSource, revisedHelpers, rewriteResult.RewrittenKeys, cleanup.Mode(cfg.CleanupMode))
		revisedTree.Close()
		if err != nil {
			end()
			return Output{}, corefail.AssemblyError{Cause: err}
		}
		revisedSource = out
		cleanupReport = report
		end(trace.Int("dead_helpers", len(report.DeadHelpers)))
	}

	diagnostics := make([]error, 0, len(extracted.Diagnostics)+len(harnessResult.Diagnostics))
	diagnostics = append(diagnostics, extracted.Diagnostics...)
	diagnostics = append(diagnostics, harnessResult.Diagnostics...)

	return Output{
		Source:        revisedSource,
		Values:        harnessResult.Values,
		RewrittenKeys: rewriteResult.RewrittenKeys,
		Cleanup:       cleanupReport,
		Dependency:    dep,
		Debug:         buildDebugTrace(harnessResult.Trace),
		Diagnostics:   diagnostics,
	}, nil
}

func buildDebugTrace(entries []sandbox.TraceEntry) DebugTrace {
	dt := DebugTrace{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	successful, failed := 0, 0
	for _, e := range entries {
		entry := CallLogEntry{Call: e.Call, Args: e.Args, ElapsedMs: e.ElapsedMs, Error: e.Error}
		if e.Result != nil {
			entry.Result = e.Result
		}
		if e.Error == "" {
			successful++
		} else {
			failed++
		}
		dt.CallLog = append(dt.CallLog, entry)
	}
	dt.Summary = Summary{TotalCalls: len(entries), SuccessfulCalls: successful, FailedCalls: failed}
	return dt
}
