package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/nodecop/pkg/config"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
)

// copListing describes one cop as configured.
type copListing struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity"`
	Pattern     string   `json:"pattern"`
	RestrictTo  []string `json:"restrict_to,omitempty"`
	Enabled     bool     `json:"enabled"`
}

func newCopsCommand(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "cops",
		Short: "List available cops",
		Long:  `List the built-in cops with their effective severity, node-type restriction and pattern.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			listings, err := listCops(cfg, availableCops())
			if err != nil {
				return err
			}

			if format == config.FormatJSON {
				return writeJSON(cmd.OutOrStdout(), listings)
			}

			renderCops(cmd.OutOrStdout(), listings)

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", config.FormatTable, "output format: table or json")

	return cmd
}

// listCops applies the configuration to available and describes every cop,
// enabled or not.
func listCops(cfg *config.Config, available []*cop.Rule) ([]copListing, error) {
	enabled, err := cfg.SelectCops(available, nil)
	if err != nil {
		return nil, err
	}

	listings := make([]copListing, 0, len(available))

	for _, rule := range available {
		listing := copListing{
			ID:          rule.ID(),
			Description: rule.Description(),
			Severity:    string(rule.Severity()),
			Pattern:     rule.Pattern().String(),
		}

		idx := slices.IndexFunc(enabled, func(candidate *cop.Rule) bool { return candidate.ID() == rule.ID() })
		if idx >= 0 {
			listing.Enabled = true
			listing.Severity = string(enabled[idx].Severity())
		}

		for _, nodeType := range rule.RestrictTo() {
			listing.RestrictTo = append(listing.RestrictTo, string(nodeType))
		}

		listings = append(listings, listing)
	}

	return listings, nil
}

func renderCops(w io.Writer, listings []copListing) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Cop", "Enabled", "Severity", "Node types", "Description"})

	for _, listing := range listings {
		tbl.AppendRow(table.Row{
			listing.ID,
			listing.Enabled,
			listing.Severity,
			strings.Join(listing.RestrictTo, ","),
			listing.Description,
		})
	}

	tbl.Render()

	for _, listing := range listings {
		fmt.Fprintf(w, "\n%s:\n  %s\n", listing.ID, listing.Pattern)
	}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(value)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}
