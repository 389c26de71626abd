package main

import (
	"github.com/spf13/cobra"

	"github.com/steveyegge/codeaudit/internal/report"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks <path>",
	Short: "Generate a prioritized task list from static findings and tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(args[0])
		if err != nil {
			return err
		}
		result, scan, err := p.Tasks(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeReport(cmd, &report.Report{
			Kind:   report.KindTasks,
			Target: scan.Root,
			Files:  scan.Files,
			Tasks:  result,
		})
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
