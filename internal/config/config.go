// Package config holds K: the flat, immutable configuration record the
// core pipeline consults. The core never imports cobra or viper —
// cmd/unfoldgo binds flags/env/file into a K value and hands the
// finished, read-only record to internal/pipeline.
package config

import (
	"fmt"

	"github.com/coregx/coregex"
)

// CleanupMode is the cleanup_mode configuration enum.
type CleanupMode string

const (
	CleanupNone    CleanupMode = "none"
	CleanupComment CleanupMode = "comment"
	CleanupRemove  CleanupMode = "remove"
)

// K is the configuration record. All fields are set once, before any
// pipeline phase runs, and never mutated afterward.
type K struct {
	InterceptPattern   string
	FunctionNameFilter string
	MinArgs            int
	MaxArgs            int
	StringReverse      bool
	FunctionCalls      bool
	DisableReplace     bool
	CleanupMode        CleanupMode
	Verbose            bool
	Debug              bool
	TraceLines         bool
	DebugOutputPath    string
	SandboxTimeoutMs   int
}

// Default returns K populated with its documented defaults: intercept
// pattern ^f\d+$, min_args=4, max_args=6.
func Default() K {
	return K{
		InterceptPattern: `^f\d+$`,
		MinArgs:          4,
		MaxArgs:          6,
		StringReverse:    true,
		FunctionCalls:    true,
		CleanupMode:      CleanupNone,
		SandboxTimeoutMs: 30_000,
	}
}

// Compiled is K plus the patterns pre-compiled once, so every pipeline
// phase that matches identifiers shares the same *coregex.Regexp instead of
// recompiling per call (coregex, like its stdlib counterpart, is meant to
// be compiled once and reused).
type Compiled struct {
	K
	InterceptPattern   *coregex.Regexp
	FunctionNameFilter *coregex.Regexp // nil when K.FunctionNameFilter == ""
}

// Compile validates and compiles K's regular expressions.
func Compile(k K) (Compiled, error) {
	pattern, err := coregex.Compile(k.InterceptPattern)
	if err != nil {
		return Compiled{}, fmt.Errorf("compiling intercept_pattern %q: %w", k.InterceptPattern, err)
	}

	c := Compiled{K: k, InterceptPattern: pattern}

	if k.FunctionNameFilter != "" {
		filter, err := coregex.Compile(k.FunctionNameFilter)
		if err != nil {
			return Compiled{}, fmt.Errorf("compiling function_name_filter %q: %w", k.FunctionNameFilter, err)
		}
		c.FunctionNameFilter = filter
	}

	switch k.CleanupMode {
	case "", CleanupNone, CleanupComment, CleanupRemove:
	default:
		return Compiled{}, fmt.Errorf("unrecognized cleanup_mode %q", k.CleanupMode)
	}
	if c.CleanupMode == "" {
		c.CleanupMode = CleanupNone
	}

	if k.MinArgs > k.MaxArgs {
		return Compiled{}, fmt.Errorf("min_args (%d) exceeds max_args (%d)", k.MinArgs, k.MaxArgs)
	}

	return c, nil
}
