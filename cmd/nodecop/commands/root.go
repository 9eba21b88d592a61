// Package commands implements the nodecop CLI commands.
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/nodecop/pkg/config"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop/threadsafety"
	"github.com/Sumatoshi-tech/nodecop/pkg/version"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitOffenses = 1
	ExitUsage    = 2
)

// ErrOffensesFound is returned by check when offenses at or above the fail
// level were reported.
var ErrOffensesFound = errors.New("offenses found")

// ExitCode maps a command error to the process exit code: ErrOffensesFound
// exits 1, every other error is a usage or input error.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrOffensesFound):
		return ExitOffenses
	default:
		return ExitUsage
	}
}

// rootOptions holds the persistent flags shared by all subcommands.
type rootOptions struct {
	configPath string
}

func (opts *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// availableCops returns every built-in cop.
func availableCops() []*cop.Rule {
	return threadsafety.Cops()
}

// NewRootCommand creates the nodecop root command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "nodecop",
		Short: "nodecop - pattern-based diagnostics over parsed syntax trees",
		Long: `nodecop runs cops over syntax trees produced by an external parser and
reports offenses at the nodes their patterns match.

Commands:
  check     Run cops over tree documents
  validate  Validate a tree document
  cops      List available cops
  mcp       Start the MCP server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ./.nodecop.yaml)")

	rootCmd.AddCommand(newCheckCommand(opts))
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newCopsCommand(opts))
	rootCmd.AddCommand(newMCPCommand(opts))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nodecop %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
