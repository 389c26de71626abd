package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/steveyegge/codeaudit/internal/ai"
	"github.com/steveyegge/codeaudit/internal/pipeline"
	"github.com/steveyegge/codeaudit/internal/report"
)

var (
	auditLLM      bool
	auditProvider string
	auditModel    string
)

var auditCmd = &cobra.Command{
	Use:   "audit <path>",
	Short: "Scan, optionally review with an LLM, and merge everything into tasks",
	Long: `Run the static scanner and the tag scanner, optionally send the riskiest
files to an LLM for review, and merge all findings into one deduplicated,
prioritized task list. Each audit is recorded in the run history.

Credentials come from ANTHROPIC_API_KEY, OPENAI_API_KEY, XAI_API_KEY or
GEMINI_API_KEY/GOOGLE_API_KEY depending on the provider. Set AUDIT_DEBUG_DIR
to keep raw responses that could not be parsed.

Examples:
  codeaudit audit .
  codeaudit audit . --llm
  codeaudit audit ./services/api --llm --provider anthropic --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args[0])
		if err != nil {
			return err
		}
		if auditProvider != "" {
			cfg.LLM.Provider = auditProvider
		}
		if auditModel != "" {
			cfg.LLM.Model = auditModel
		}
		p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
		if err != nil {
			return err
		}

		res, err := p.Audit(cmd.Context(), args[0], pipeline.AuditOptions{LLM: auditLLM})
		if res == nil {
			return err
		}
		if werr := writeReport(cmd, auditReport(res)); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	},
}

func init() {
	auditCmd.Flags().BoolVar(&auditLLM, "llm", false, "review the riskiest files with an LLM")
	auditCmd.Flags().StringVar(&auditProvider, "provider", "", "LLM provider: xai, anthropic, openai or gemini (overrides llm.provider)")
	auditCmd.Flags().StringVar(&auditModel, "model", "", "LLM model (overrides llm.model)")
	rootCmd.AddCommand(auditCmd)
}

func auditReport(res *pipeline.AuditResult) *report.Report {
	r := &report.Report{
		Kind:    report.KindAudit,
		Target:  res.Scan.Root,
		Run:     res.Run,
		Files:   res.Scan.Files,
		Skipped: res.Scan.Skipped,
		Tags:    res.Scan.Tags(),
		Tasks:   res.Tasks,
	}
	if res.LLM != nil {
		r.LLM = llmSummary(res, res.LLM)
	}
	return r
}

func llmSummary(res *pipeline.AuditResult, run *ai.RunResult) *report.LLMSummary {
	return &report.LLMSummary{
		Provider:     res.Provider,
		Model:        res.Model,
		Batches:      run.Batches,
		Parsed:       run.Parsed,
		Failed:       run.Failed,
		Skipped:      run.Skipped,
		Cached:       res.Cached,
		BudgetHalted: run.BudgetHalted,
		Canceled:     run.Canceled,
		Budget:       res.Budget,
		Totals:       run.Ledger.Totals(),
		Dumps:        res.Dumps,
	}
}
