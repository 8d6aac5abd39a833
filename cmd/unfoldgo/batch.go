package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phobologic/unfoldgo/internal/discover"
	"github.com/phobologic/unfoldgo/internal/pipeline"
)

func newBatchCmd() *cobra.Command {
	var glob string

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Deobfuscate every matching file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			files, err := discover.Files(root, glob)
			if err != nil {
				return fmt.Errorf("discovering files under %s: %w", root, err)
			}

			var rewritten, unchanged, failed int
			for _, rel := range files {
				path := filepath.Join(root, rel)
				source, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "unfoldgo: %s: %v\n", rel, err)
					failed++
					continue
				}

				out, err := pipeline.Run(context.Background(), source, cfg)
				if err != nil {
					fmt.Fprintf(os.Stderr, "unfoldgo: %s: %v\n", rel, err)
					failed++
					continue
				}

				if viper.GetBool("report-cycles") && out.Dependency.HasCycle {
					fmt.Fprintf(os.Stderr, "unfoldgo: %s: dependency cycle among: %v\n", rel, out.Dependency.CycleNames)
				}

				for _, diag := range out.Diagnostics {
					fmt.Fprintf(os.Stderr, "unfoldgo: %s: %v\n", rel, diag)
				}

				if len(out.RewrittenKeys) == 0 {
					unchanged++
					continue
				}

				if err := os.WriteFile(path+".bak", source, 0o644); err != nil {
					fmt.Fprintf(os.Stderr, "unfoldgo: %s: writing backup: %v\n", rel, err)
					failed++
					continue
				}
				if err := os.WriteFile(path, out.Source, 0o644); err != nil {
					fmt.Fprintf(os.Stderr, "unfoldgo: %s: writing result: %v\n", rel, err)
					failed++
					continue
				}
				rewritten++
				fmt.Fprintln(os.Stdout, wordwrap.String(
					fmt.Sprintf("%s: rewrote %d call site(s)", rel, len(out.RewrittenKeys)), 88))
			}

			fmt.Fprintf(os.Stdout, "\n%d rewritten, %d unchanged, %d failed, %d total\n",
				rewritten, unchanged, failed, len(files))
			return nil
		},
	}

	cmd.Flags().StringVar(&glob, "glob", "*.js", "filename glob to match under the directory")

	return cmd
}
