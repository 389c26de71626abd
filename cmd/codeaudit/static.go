package main

import (
	"github.com/spf13/cobra"

	"github.com/steveyegge/codeaudit/internal/report"
)

var staticCmd = &cobra.Command{
	Use:   "static <path>",
	Short: "Run the static scanner and summarize issues by severity",
	Long: `Scan a file or directory with the built-in static rules.

Examples:
  codeaudit static .
  codeaudit static ./deploy --format sarif > static.sarif`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(args[0])
		if err != nil {
			return err
		}
		scan, err := p.Scan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeReport(cmd, &report.Report{
			Kind:    report.KindStatic,
			Target:  scan.Root,
			Files:   scan.Files,
			Skipped: scan.Skipped,
		})
	},
}

func init() {
	rootCmd.AddCommand(staticCmd)
}
