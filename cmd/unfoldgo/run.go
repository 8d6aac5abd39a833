package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phobologic/unfoldgo/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Deobfuscate one source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			out, err := pipeline.Run(context.Background(), source, cfg)
			if err != nil {
				return err
			}

			if viper.GetBool("report-cycles") && out.Dependency.HasCycle {
				fmt.Fprintf(os.Stderr, "unfoldgo: dependency cycle among: %v\n", out.Dependency.CycleNames)
			}

			for _, diag := range out.Diagnostics {
				fmt.Fprintf(os.Stderr, "unfoldgo: %v\n", diag)
			}

			if cfg.DebugOutputPath != "" {
				data, err := json.MarshalIndent(out.Debug, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling debug trace: %w", err)
				}
				if err := os.WriteFile(cfg.DebugOutputPath, data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", cfg.DebugOutputPath, err)
				}
			}

			_, err = os.Stdout.Write(out.Source)
			return err
		},
	}

	return cmd
}
