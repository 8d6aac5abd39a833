package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phobologic/unfoldgo/internal/config"
)

var cfgFile string

var shutdownTracing func(context.Context) error

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "unfoldgo",
		Short: "Constant-folding deobfuscator",
		Long: `unfoldgo intercepts a configured family of helper routines in a
JavaScript-family source file, evaluates the ones whose call sites pass
literal arguments in a sandboxed child process, and rewrites those call
sites with the captured result.

  unfoldgo run file.js              Deobfuscate one file, print the result
  unfoldgo batch ./src               Deobfuscate every matching file under a tree
  unfoldgo repl                      Try a configuration interactively`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			shutdown, err := setupTracing(viper.GetBool("verbose"), viper.GetBool("debug"))
			if err != nil {
				return err
			}
			shutdownTracing = shutdown
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if shutdownTracing == nil {
				return nil
			}
			return shutdownTracing(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .unfoldgo.yaml in the working directory)")

	root.PersistentFlags().String("intercept-pattern", "", `regular expression selecting helper routine names (default "^f\d+$")`)
	root.PersistentFlags().String("function-name-filter", "", "optional regular expression further restricting which helpers are evaluated")
	root.PersistentFlags().Int("min-args", 0, "minimum argument count for rewriting a call (default 4)")
	root.PersistentFlags().Int("max-args", 0, "maximum argument count for rewriting a call (default 6)")
	root.PersistentFlags().Bool("string-reverse", false, "fold the reversed-string-literal idiom before parsing (default true)")
	root.PersistentFlags().Bool("disable-replace", false, "evaluate helpers but do not rewrite call sites")
	root.PersistentFlags().String("cleanup-mode", "", "dead-helper handling after rewriting: none, comment, or remove (default none)")
	root.PersistentFlags().Bool("verbose", false, "enable verbose phase tracing")
	root.PersistentFlags().Bool("debug", false, "enable debug-level phase tracing")
	root.PersistentFlags().Bool("trace-lines", false, "trace individual call sites, not just pipeline phases")
	root.PersistentFlags().String("debug-output-path", "", "write a JSON call trace to this path")
	root.PersistentFlags().Int("sandbox-timeout-ms", 0, "wall-clock bound on the sandboxed evaluation, in milliseconds (default 30000)")
	root.PersistentFlags().Bool("report-cycles", false, "print detected dependency cycles to stderr")

	for _, name := range []string{
		"intercept-pattern", "function-name-filter", "min-args", "max-args",
		"string-reverse", "disable-replace", "cleanup-mode", "verbose",
		"debug", "trace-lines", "debug-output-path", "sandbox-timeout-ms",
		"report-cycles",
	} {
		_ = viper.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}

	cobra.OnInitialize(initConfig)

	root.AddCommand(newRunCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newReplCmd())

	return root
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".unfoldgo")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("UNFOLDGO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "unfoldgo: reading config file:", err)
		}
	}
}

// loadConfig merges defaults, the config file, and flags/env (in viper's
// usual override order) into a compiled K.
func loadConfig() (config.Compiled, error) {
	k := config.Default()

	if v := viper.GetString("intercept-pattern"); v != "" {
		k.InterceptPattern = v
	}
	k.FunctionNameFilter = viper.GetString("function-name-filter")
	if v := viper.GetInt("min-args"); v != 0 {
		k.MinArgs = v
	}
	if v := viper.GetInt("max-args"); v != 0 {
		k.MaxArgs = v
	}
	if viper.IsSet("string-reverse") {
		k.StringReverse = viper.GetBool("string-reverse")
	}
	k.FunctionCalls = true
	k.DisableReplace = viper.GetBool("disable-replace")
	if v := viper.GetString("cleanup-mode"); v != "" {
		k.CleanupMode = config.CleanupMode(v)
	}
	k.Verbose = viper.GetBool("verbose")
	k.Debug = viper.GetBool("debug")
	k.TraceLines = viper.GetBool("trace-lines")
	k.DebugOutputPath = viper.GetString("debug-output-path")
	if v := viper.GetInt("sandbox-timeout-ms"); v != 0 {
		k.SandboxTimeoutMs = v
	}

	return config.Compile(k)
}
