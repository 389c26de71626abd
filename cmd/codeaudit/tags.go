package main

import (
	"github.com/spf13/cobra"

	"github.com/steveyegge/codeaudit/internal/report"
)

var tagsCmd = &cobra.Command{
	Use:   "tags <path>",
	Short: "List audit tags and TODO-style comment markers",
	Long: `List every @audit-* tag and conventional marker (TODO, FIXME, HACK, NOTE, SECURITY:, REVIEW:)
found in comments, in path and line order.`,
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
			Kind:   report.KindTags,
			Target: scan.Root,
			Files:  scan.Files,
			Tags:   scan.Tags(),
		})
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}
