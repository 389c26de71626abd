package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/codeaudit/internal/config"
	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/report"
	"github.com/steveyegge/codeaudit/internal/storage"
	"github.com/steveyegge/codeaudit/internal/storage/sqlite"
	"github.com/steveyegge/codeaudit/internal/types"
)

var (
	costDays int
	costRuns int
)

var costCmd = &cobra.Command{
	Use:   "cost [path]",
	Short: "Show recorded LLM spend and recent audit runs",
	Long: `Display LLM spend by model and the most recent audit runs from the run
history of a project (default: the current directory).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		cfg, err := loadConfig(root)
		if err != nil {
			return err
		}
		if costDays < 1 {
			return fmt.Errorf("--days must be positive")
		}

		h, err := storage.Open(cmd.Context(), storage.Config{Path: cfg.History.Path, Root: configRoot(root)})
		if err != nil {
			return fmt.Errorf("opening run history: %w", err)
		}
		defer func() { _ = h.Close() }()

		since := time.Now().AddDate(0, 0, -costDays)
		spend, err := h.SpendByModel(cmd.Context(), since)
		if err != nil {
			return err
		}
		runs, err := h.ListRuns(cmd.Context(), costRuns)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch outputFormat() {
		case report.FormatText:
			printCost(out, cfg, spend, runs)
			return nil
		case report.FormatJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(costJSON{Days: costDays, Spend: nonNilSpend(spend), Runs: nonNilRuns(runs)})
		default:
			return fmt.Errorf("cost supports text and json output")
		}
	},
}

func init() {
	costCmd.Flags().IntVar(&costDays, "days", 30, "spend window in days")
	costCmd.Flags().IntVar(&costRuns, "runs", 10, "number of recent runs to list")
	rootCmd.AddCommand(costCmd)
}

type costJSON struct {
	Days  int                 `json:"days"`
	Spend []sqlite.ModelSpend `json:"spend"`
	Runs  []*types.Run        `json:"runs"`
}

func nonNilSpend(s []sqlite.ModelSpend) []sqlite.ModelSpend {
	if s == nil {
		return []sqlite.ModelSpend{}
	}
	return s
}

func nonNilRuns(r []*types.Run) []*types.Run {
	if r == nil {
		return []*types.Run{}
	}
	return r
}

func printCost(w io.Writer, cfg config.Config, spend []sqlite.ModelSpend, runs []*types.Run) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("=== LLM Spend ==="))

	fmt.Fprintf(w, "%s\n", yellow(fmt.Sprintf("By Model (last %d days):", costDays)))
	if len(spend) == 0 {
		fmt.Fprintln(w, "  No LLM calls recorded")
	}
	var total float64
	var tokens int64
	for _, m := range spend {
		total += m.Cost
		tokens += m.PromptTokens + m.CompletionTokens
		fmt.Fprintf(w, "  %s/%s: %d calls in %d runs, %s in / %s out (%s cached), $%.4f\n",
			m.Provider, m.Model, m.Calls, m.Runs,
			report.FormatTokens(m.PromptTokens), report.FormatTokens(m.CompletionTokens),
			report.FormatTokens(m.CachedTokens), m.Cost)
	}
	if len(spend) > 0 {
		fmt.Fprintf(w, "  Total:  %s tokens, $%.4f\n", report.FormatTokens(tokens), total)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s\n", yellow("Recent Runs:"))
	if len(runs) == 0 {
		fmt.Fprintln(w, "  No runs recorded")
	}
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "  %s  %s  %-6s %s  %3d tasks  $%.4f",
			id, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Mode, statusColor(r.Status).Sprintf("%-9s", r.Status),
			r.TaskCount, r.Cost)
		if r.Branch != "" {
			fmt.Fprintf(w, "  %s", r.Branch)
		}
		fmt.Fprintln(w)
		if cfg.Cost.Enabled && cfg.Cost.MaxCostPerRun > 0 && r.Mode == types.ModeLLM {
			fmt.Fprintf(w, "           %s\n", renderProgressBar(r.Cost/cfg.Cost.MaxCostPerRun*100, 40))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s\n", yellow("Budget:"))
	if !cfg.Cost.Enabled {
		fmt.Fprintln(w, "  Disabled")
	} else {
		printLimit(w, "Max cost/run:  ", cfg.Cost.MaxCostPerRun > 0, fmt.Sprintf("$%.2f", cfg.Cost.MaxCostPerRun))
		printLimit(w, "Max tokens/run:", cfg.Cost.MaxTokensPerRun > 0, report.FormatTokens(cfg.Cost.MaxTokensPerRun))
		fmt.Fprintf(w, "  Alert at:       %.0f%%\n", cfg.Cost.AlertThreshold*100)
	}
	fmt.Fprintln(w)
}

func printLimit(w io.Writer, label string, set bool, value string) {
	if !set {
		value = "unlimited"
	}
	fmt.Fprintf(w, "  %s %s\n", label, value)
}

func statusColor(s types.RunStatus) *color.Color {
	switch s {
	case types.RunFailed:
		return color.New(color.FgRed, color.Bold)
	case types.RunPartial:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

// budgetColor matches the budget status colors used in audit output.
func budgetColor(s cost.BudgetStatus) *color.Color {
	switch s {
	case cost.BudgetExceeded:
		return color.New(color.FgRed, color.Bold)
	case cost.BudgetWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

// renderProgressBar renders a text-based progress bar
func renderProgressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100.0 * float64(width))
	status := cost.BudgetHealthy
	if percent >= 100 {
		status = cost.BudgetExceeded
	} else if percent >= 80 {
		status = cost.BudgetWarning
	}
	barColor := budgetColor(status)

	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += barColor.Sprint("█")
		} else {
			bar += color.New(color.FgHiBlack).Sprint("░")
		}
	}
	return fmt.Sprintf("[%s]", bar)
}
