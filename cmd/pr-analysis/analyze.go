package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/managedkaos/pull-request-analysis/internal/config"
	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/logging"
	"github.com/managedkaos/pull-request-analysis/internal/metrics"
	"github.com/managedkaos/pull-request-analysis/internal/nower"
	"github.com/managedkaos/pull-request-analysis/internal/pipeline"
	"github.com/managedkaos/pull-request-analysis/internal/report"
	"github.com/managedkaos/pull-request-analysis/internal/source"
	"github.com/managedkaos/pull-request-analysis/internal/source/bitbucket"
	"github.com/managedkaos/pull-request-analysis/internal/source/github"
	"github.com/managedkaos/pull-request-analysis/internal/stats"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze pull requests in the configured repository",
		Args:  cobra.NoArgs,
		RunE:  runAnalyze,
	}

	f := cmd.Flags()
	f.StringP("config", "c", "", "Configuration file (YAML)")
	f.String("provider", config.ProviderBitbucket, "Record source: bitbucket or github")
	f.StringP("state", "s", "MERGED", "Pull request state: MERGED, OPEN, DECLINED or SUPERSEDED")
	f.Bool("openprs", false, "Analyze open pull requests (same as --state OPEN)")
	f.IntP("limit", "l", 100, "Maximum number of pull requests to analyze (0 for no limit)")
	f.IntP("days", "d", 0, "Only analyze pull requests active in the last N days (default: all time)")
	f.Int64("id", 0, "Analyze a single pull request by id")
	f.String("csv", "pr_analysis.csv", "CSV output file")
	f.String("markdown", "pr_analysis.md", "Markdown report file")
	f.Bool("no-files-changed", false, "Do not report the number of changed files")
	f.String("metrics-file", "", "Write run metrics in Prometheus textfile format")

	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := applyFlags(cmd, &cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := newSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	run := metrics.NewRun()
	runner := pipeline.New(src, nower.New(), logger, run, cfg.Analysis.IgnoreReviewers)

	logger.Info("starting analysis",
		zap.String("provider", cfg.Provider),
		zap.String("repository", cfg.RepositoryName()),
		zap.String("state", opts.State.String()),
		zap.Int("limit", opts.Limit),
		zap.Int("days", opts.Days))

	res, err := runner.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if res.SourceErr != nil {
		pterm.Warning.Printf("Listing stopped early, reporting %d pull requests: %v\n", len(res.Tuples), res.SourceErr)
	}
	if res.Cancelled {
		pterm.Warning.Println("Interrupted, reporting partial results")
	}

	var summary *stats.Summary
	s, err := stats.Summarize(res.Tuples)
	switch {
	case err == nil:
		summary = &s
	case !errors.Is(err, stats.ErrNoData):
		return err
	}

	meta := report.Meta{
		Repository:          cfg.RepositoryName(),
		GeneratedAt:         res.FinishedAt,
		RunID:               res.RunID,
		State:               opts.State,
		Days:                opts.Days,
		Limit:               opts.Limit,
		Cancelled:           res.Cancelled,
		IncludeFilesChanged: opts.IncludeFilesChanged,
	}

	if err := report.PrintConsole(cmd.OutOrStdout(), summary, meta); err != nil {
		return err
	}
	if err := report.WriteFiles(cfg.Output.CSV, cfg.Output.Markdown, res.Tuples, summary, meta); err != nil {
		return err
	}
	if cfg.Output.Metrics != "" {
		if err := run.WriteTextfile(cfg.Output.Metrics); err != nil {
			return err
		}
	}

	logger.Info("reports written",
		zap.String("csv", cfg.Output.CSV),
		zap.String("markdown", cfg.Output.Markdown))
	return nil
}

// applyFlags overrides cfg with every flag set on the command line and
// returns the run options derived from the result.
func applyFlags(cmd *cobra.Command, cfg *config.Config) (pipeline.Options, error) {
	f := cmd.Flags()

	if f.Changed("provider") {
		cfg.Provider, _ = f.GetString("provider")
	}
	if f.Changed("state") {
		cfg.Analysis.State, _ = f.GetString("state")
	}
	if openOnly, _ := f.GetBool("openprs"); openOnly {
		cfg.Analysis.State = string(domain.StateOpen)
	}
	if f.Changed("limit") {
		cfg.Analysis.Limit, _ = f.GetInt("limit")
	}
	if f.Changed("days") {
		cfg.Analysis.Days, _ = f.GetInt("days")
	}
	if noFiles, _ := f.GetBool("no-files-changed"); noFiles {
		cfg.Analysis.IncludeFilesChanged = false
	}
	if f.Changed("csv") {
		cfg.Output.CSV, _ = f.GetString("csv")
	}
	if f.Changed("markdown") {
		cfg.Output.Markdown, _ = f.GetString("markdown")
	}
	if f.Changed("metrics-file") {
		cfg.Output.Metrics, _ = f.GetString("metrics-file")
	}

	state, err := domain.ParseState(cfg.Analysis.State)
	if err != nil {
		return pipeline.Options{}, err
	}
	if cfg.Analysis.Limit < 0 {
		return pipeline.Options{}, fmt.Errorf("limit must not be negative, got %d", cfg.Analysis.Limit)
	}
	if cfg.Analysis.Days < 0 {
		return pipeline.Options{}, fmt.Errorf("days must not be negative, got %d", cfg.Analysis.Days)
	}

	opts := pipeline.Options{
		State:               state,
		Limit:               cfg.Analysis.Limit,
		Days:                cfg.Analysis.Days,
		IncludeFilesChanged: cfg.Analysis.IncludeFilesChanged,
	}
	if f.Changed("id") {
		id, _ := f.GetInt64("id")
		if id <= 0 {
			return pipeline.Options{}, fmt.Errorf("pull request id must be positive, got %d", id)
		}
		opts.SingleID = &id
	}
	return opts, nil
}

func newSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (source.Source, error) {
	switch cfg.Provider {
	case config.ProviderBitbucket:
		return bitbucket.New(ctx, cfg.Bitbucket, cfg.HTTP.Timeout, logger), nil
	case config.ProviderGitHub:
		client, err := github.New(ctx, cfg.GitHub, cfg.HTTP.Timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
