package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/phobologic/unfoldgo/internal/config"
	"github.com/phobologic/unfoldgo/internal/corefail"
	"github.com/phobologic/unfoldgo/internal/pipeline"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Try a configuration interactively, one snippet at a time",
		Long: `Reads one statement or short snippet at a time, runs it through the
normalizer, parser, extractor, and sandboxed evaluator with rewriting
disabled, and prints the captured result for that one call site (or
"not pure" / "sandbox timeout" when it has none). Nothing is ever
written back to a file; repl never rewrites or cleans up. Use it to
tune intercept_pattern and the argument-count window before running
against real files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.DisableReplace = true
			cfg.CleanupMode = config.CleanupNone
			return runRepl(cfg)
		},
	}
}

func runRepl(cfg config.Compiled) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "unfoldgo> ",
		HistoryFile:       historyPath(),
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		out, err := pipeline.Run(context.Background(), []byte(line), cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		timedOut := false
		for _, diag := range out.Diagnostics {
			fmt.Fprintf(os.Stderr, "unfoldgo: %v\n", diag)
			if _, ok := diag.(corefail.SandboxTimeout); ok {
				timedOut = true
			}
		}

		switch {
		case timedOut:
			fmt.Println("sandbox timeout")
		case len(out.Values) == 0:
			fmt.Println("not pure (no helper call captured a literal result)")
		default:
			for key, v := range out.Values {
				fmt.Printf("%s => %s\n", key, v.Literal())
			}
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".unfoldgo_history")
}
