package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/codeaudit/internal/config"
	"github.com/steveyegge/codeaudit/internal/logging"
	"github.com/steveyegge/codeaudit/internal/pipeline"
	"github.com/steveyegge/codeaudit/internal/report"
)

var (
	// Global flags
	formatFlag string
	configPath string
	verbose    bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "codeaudit",
	Short: "Static and LLM-assisted code auditing",
	Long: `codeaudit scans a source tree for risky patterns and audit tags,
optionally asks an LLM to review the riskiest files, and turns the findings
into a prioritized, deduplicated task list.

Exit status is 0 whenever a run completes, findings or not.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := report.ParseFormat(formatFlag); err != nil {
			return err
		}
		l, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", string(report.FormatText), "output format: text, json, csv or sarif")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: <target>/"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// outputFormat returns the validated --format value.
func outputFormat() report.Format {
	f, err := report.ParseFormat(formatFlag)
	if err != nil {
		return report.FormatText
	}
	return f
}

// configRoot is the directory searched for the config file.
func configRoot(target string) string {
	info, err := os.Stat(target)
	if err == nil && !info.IsDir() {
		return filepath.Dir(target)
	}
	return target
}

func loadConfig(target string) (config.Config, error) {
	cfg, err := config.Load(configPath, configRoot(target))
	if err != nil {
		return cfg, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// newPipeline loads the configuration for target and builds a pipeline.
func newPipeline(target string, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	cfg, err := loadConfig(target)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)...)
}

// writeReport renders r to the command's stdout in the selected format.
func writeReport(cmd *cobra.Command, r *report.Report) error {
	if err := report.Write(cmd.OutOrStdout(), outputFormat(), r); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
