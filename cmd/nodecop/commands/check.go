package commands

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/nodecop/pkg/config"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
	"github.com/Sumatoshi-tech/nodecop/pkg/observability"
	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
	"github.com/Sumatoshi-tech/nodecop/pkg/version"
)

const stdinPath = "-"

type checkOptions struct {
	format    string
	stdinName string
	failLevel string
	cops      []string
	noColor   bool
}

func newCheckCommand(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <tree-file...|->",
		Short: "Run cops over tree documents",
		Long: `Run cops over one or more tree documents and report offenses.

Tree documents are JSON or YAML (by extension), optionally LZ4-compressed
(".lz4" suffix). "-" reads a document from stdin.

Exit status is 1 when offenses at or above --fail-level are reported and 2
on usage or input errors.

Examples:
  nodecop check boot.json
  nodecop check --format table app/*.json.lz4
  parser --emit-tree boot.rb | nodecop check --stdin-name boot.rb -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: text, json or table (default from config)")
	cmd.Flags().StringSliceVar(&opts.cops, "cops", nil, "run only the named cops, comma-separated")
	cmd.Flags().StringVar(&opts.stdinName, "stdin-name", "stdin", "unit name for a document read from stdin")
	cmd.Flags().StringVar(&opts.failLevel, "fail-level", string(cop.SeverityInfo),
		"lowest severity that makes the command fail: info, convention, warning or error")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	return cmd
}

func runCheck(cmd *cobra.Command, root *rootOptions, opts *checkOptions, paths []string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	format := cfg.Output.Format
	if opts.format != "" {
		format = opts.format
	}

	if !slices.Contains([]string{config.FormatText, config.FormatJSON, config.FormatTable}, format) {
		return fmt.Errorf("%w: %q", config.ErrInvalidFormat, format)
	}

	failLevel, err := cop.ParseSeverity(opts.failLevel)
	if err != nil {
		return fmt.Errorf("--fail-level: %w", err)
	}

	rules, err := cfg.SelectCops(availableCops(), opts.cops)
	if err != nil {
		return err
	}

	obsCfg, err := cfg.Observability(observability.ModeCLI, version.Version)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	units, err := loadUnits(cmd.InOrStdin(), cfg, opts.stdinName, paths)
	if err != nil {
		return err
	}

	runner := cfg.NewRunner(rules)
	runner.Logger = providers.Logger
	runner.Tracer = providers.Tracer

	reports := runner.Run(cmd.Context(), units)
	summary := cop.Summarize(reports)

	metrics, err := observability.NewCopMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	metrics.RecordRun(cmd.Context(), runStats(summary))

	renderErr := render(cmd.OutOrStdout(), format, reports, summary, renderOptions{
		color: cfg.Output.Color && !opts.noColor && !color.NoColor,
	})
	if renderErr != nil {
		return renderErr
	}

	if summary.Skipped > 0 {
		return fmt.Errorf("%d of %d units could not be checked", summary.Skipped, summary.Units)
	}

	for _, offense := range cop.Offenses(reports) {
		if offense.Severity.AtLeast(failLevel) {
			return ErrOffensesFound
		}
	}

	return nil
}

// loadUnits reads every tree document named by paths into runner units.
func loadUnits(stdin io.Reader, cfg *config.Config, stdinName string, paths []string) ([]cop.Unit, error) {
	maxSize, err := cfg.Input.MaxSizeBytes()
	if err != nil {
		return nil, err
	}

	readOpts := syntax.ReadOptions{MaxSize: maxSize, ValidateSchema: cfg.Input.ValidateSchema}

	var units []cop.Unit

	for _, path := range paths {
		var docs []syntax.Unit

		if path == stdinPath {
			docs, err = syntax.Read(stdin, stdinName, readOpts)
		} else {
			docs, err = syntax.ReadFile(path, readOpts)
		}

		if err != nil {
			return nil, err
		}

		for _, doc := range docs {
			units = append(units, cop.Unit{Name: doc.Name, Tree: doc.Tree})
		}
	}

	return units, nil
}

func runStats(summary cop.Summary) observability.RunStats {
	return observability.RunStats{
		OffensesByCop:    summary.OffensesByCop,
		FailuresByReason: summary.FailuresByReason,
		UnitDurations:    summary.Durations,
		Units:            summary.Units,
		Nodes:            summary.Nodes,
	}
}
