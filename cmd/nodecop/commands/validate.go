package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

func newValidateCommand(root *rootOptions) *cobra.Command {
	var (
		stdinName string
		noColor   bool
	)

	cmd := &cobra.Command{
		Use:   "validate <tree-file|->",
		Short: "Validate a tree document",
		Long: `Decode a tree document and, for JSON, validate it against the tree schema.

Examples:
  nodecop validate boot.json
  nodecop validate - < boot.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root, args[0], stdinName, noColor)
		},
	}

	cmd.Flags().StringVar(&stdinName, "stdin-name", "stdin", "document name for stdin; a .yaml suffix selects YAML")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(cmd *cobra.Command, root *rootOptions, path, stdinName string, noColor bool) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	maxSize, err := cfg.Input.MaxSizeBytes()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	if noColor || !cfg.Output.Color {
		green.DisableColor()
		red.DisableColor()
	}

	readOpts := syntax.ReadOptions{MaxSize: maxSize, ValidateSchema: true}
	label := path

	var units []syntax.Unit

	if path == stdinPath {
		label = stdinName
		units, err = syntax.Read(cmd.InOrStdin(), stdinName, readOpts)
	} else {
		units, err = syntax.ReadFile(path, readOpts)
	}

	out := cmd.OutOrStdout()

	if err != nil {
		red.Fprintf(out, "Tree document is invalid (%s)\n", label)

		var schemaErr *syntax.SchemaError
		if errors.As(err, &schemaErr) {
			for _, violation := range schemaErr.Violations {
				red.Fprintf(out, "  - %s\n", violation)
			}
		}

		return err
	}

	nodes := 0
	for _, unit := range units {
		nodes += syntax.Count(unit.Tree)
	}

	green.Fprintf(out, "Tree document is valid (%s)\n", label)
	fmt.Fprintf(out, "  Units: %d\n  Nodes: %d\n", len(units), nodes)

	return nil
}
