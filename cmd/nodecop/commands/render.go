package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/nodecop/pkg/config"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
)

type renderOptions struct {
	color bool
}

// palette holds the colors of the text renderer; all of them are disabled
// when color output is off.
type palette struct {
	location *color.Color
	ruleID   *color.Color
	skipped  *color.Color
	severity map[cop.Severity]*color.Color
}

func newPalette(enabled bool) palette {
	colors := palette{
		location: color.New(color.Bold),
		ruleID:   color.New(color.FgMagenta),
		skipped:  color.New(color.FgRed),
		severity: map[cop.Severity]*color.Color{
			cop.SeverityInfo:       color.New(color.FgBlue),
			cop.SeverityConvention: color.New(color.FgCyan),
			cop.SeverityWarning:    color.New(color.FgYellow),
			cop.SeverityError:      color.New(color.FgRed, color.Bold),
		},
	}

	all := slices.AppendSeq([]*color.Color{colors.location, colors.ruleID, colors.skipped}, maps.Values(colors.severity))

	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return colors
}

func render(w io.Writer, format string, reports []cop.Report, summary cop.Summary, opts renderOptions) error {
	switch format {
	case config.FormatJSON:
		return renderJSON(w, reports, summary)
	case config.FormatTable:
		renderTable(w, summary)

		return nil
	default:
		renderText(w, reports, summary, newPalette(opts.color))

		return nil
	}
}

func renderText(w io.Writer, reports []cop.Report, summary cop.Summary, colors palette) {
	for _, report := range reports {
		if report.Err != nil {
			colors.skipped.Fprintf(w, "%s: skipped: %v\n", report.Unit, report.Err)

			continue
		}

		for _, offense := range report.Offenses {
			location := offense.Location.String()
			if offense.File != "" {
				location = offense.File + ":" + location
			}

			severity := colors.severity[offense.Severity]
			if severity == nil {
				severity = colors.location
			}

			fmt.Fprintf(w, "%s: %s: %s %s\n",
				colors.location.Sprint(location),
				severity.Sprint(offense.Severity),
				colors.ruleID.Sprintf("[%s]", offense.RuleID),
				offense.Message,
			)
		}

		for _, failure := range report.Failures {
			colors.skipped.Fprintf(w, "%s: %v\n", report.Unit, failure)
		}
	}

	if summary.Offenses > 0 || summary.Skipped > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%s inspected, %s detected\n",
		english.Plural(int(summary.Units), "unit", ""),
		english.Plural(int(summary.Offenses), "offense", ""),
	)
}

type jsonFailure struct {
	Unit  string `json:"unit"`
	Error string `json:"error"`
}

type jsonSummary struct {
	Units    int64 `json:"units"`
	Skipped  int64 `json:"skipped"`
	Nodes    int64 `json:"nodes"`
	Offenses int64 `json:"offenses"`
}

type jsonReport struct {
	Offenses []cop.Offense `json:"offenses"`
	Failures []jsonFailure `json:"failures,omitempty"`
	Summary  jsonSummary   `json:"summary"`
}

func renderJSON(w io.Writer, reports []cop.Report, summary cop.Summary) error {
	out := jsonReport{
		Offenses: cop.Offenses(reports),
		Summary: jsonSummary{
			Units:    summary.Units,
			Skipped:  summary.Skipped,
			Nodes:    summary.Nodes,
			Offenses: summary.Offenses,
		},
	}

	if out.Offenses == nil {
		out.Offenses = []cop.Offense{}
	}

	for _, report := range reports {
		if report.Err != nil {
			out.Failures = append(out.Failures, jsonFailure{Unit: report.Unit, Error: report.Err.Error()})
		}

		for _, failure := range report.Failures {
			out.Failures = append(out.Failures, jsonFailure{Unit: report.Unit, Error: failure.Error()})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(out)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}

// renderTable renders the per-cop offense counts.
func renderTable(w io.Writer, summary cop.Summary) {
	ids := slices.Sorted(maps.Keys(summary.OffensesByCop))

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.AppendHeader(table.Row{"Cop", "Offenses"})

	for _, id := range ids {
		tbl.AppendRow(table.Row{id, humanize.Comma(summary.OffensesByCop[id])})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%s, %s", english.Plural(int(summary.Units), "unit", ""), humanize.Comma(summary.Nodes)+" nodes"),
		humanize.Comma(summary.Offenses),
	})
	tbl.Render()

	if summary.Skipped > 0 {
		fmt.Fprintf(w, "%s skipped\n", english.Plural(int(summary.Skipped), "unit", ""))
	}
}
