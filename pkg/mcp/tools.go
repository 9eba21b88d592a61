package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/nodecop/pkg/config"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
	"github.com/Sumatoshi-tech/nodecop/pkg/observability"
	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

// Tool name constants.
const (
	ToolNameCheck = "nodecop_check"
	ToolNameCops  = "nodecop_cops"
)

// MaxTreeInputBytes is the default limit for an inline tree document (8 MB).
const MaxTreeInputBytes = 8 << 20

const defaultUnitName = "input.json"

// Sentinel errors for tool input validation.
var (
	// ErrEmptyTree indicates the tree parameter is empty.
	ErrEmptyTree = errors.New("tree parameter is required and must not be empty")
	// ErrNoCops indicates no cop was selected to run.
	ErrNoCops = errors.New("no cops selected")
)

// CheckInput is the input schema for the nodecop_check tool.
type CheckInput struct {
	Cops []string `json:"cops,omitempty" jsonschema:"optional list of cop identifiers to run (default: all)"`
	Name string   `json:"name,omitempty" jsonschema:"unit name offenses are reported under; a .yaml suffix selects YAML"`
	Tree string   `json:"tree"           jsonschema:"syntax tree document with type, token, pos, props and children fields"`
}

// CopsInput is the input schema for the nodecop_cops tool.
type CopsInput struct{}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// CheckResult is the payload of a nodecop_check call.
type CheckResult struct {
	Offenses []cop.Offense `json:"offenses"`
	Failures []string      `json:"failures,omitempty"`
	Units    int           `json:"units"`
	Nodes    int           `json:"nodes"`
}

// CopInfo describes one available cop.
type CopInfo struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity"`
	Pattern     string   `json:"pattern"`
	RestrictTo  []string `json:"restrict_to,omitempty"`
}

func (s *Server) handleCheck(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if strings.TrimSpace(input.Tree) == "" {
		return errorResult(ErrEmptyTree)
	}

	rules, err := s.selectCops(input.Cops)
	if err != nil {
		return errorResult(err)
	}

	name := input.Name
	if name == "" {
		name = defaultUnitName
	}

	docs, err := syntax.Read(strings.NewReader(input.Tree), name, syntax.ReadOptions{
		MaxSize:        s.maxTree,
		ValidateSchema: true,
	})
	if err != nil {
		return errorResult(err)
	}

	units := make([]cop.Unit, 0, len(docs))
	for _, doc := range docs {
		units = append(units, cop.Unit{Name: doc.Name, Tree: doc.Tree})
	}

	runner := s.newRunner(rules)
	runner.Logger = s.logger

	if s.tracer != nil {
		runner.Tracer = s.tracer
	}

	reports := runner.Run(ctx, units)
	summary := cop.Summarize(reports)

	s.copMetrics.RecordRun(ctx, observability.RunStats{
		OffensesByCop:    summary.OffensesByCop,
		FailuresByReason: summary.FailuresByReason,
		UnitDurations:    summary.Durations,
		Units:            summary.Units,
		Nodes:            summary.Nodes,
	})

	result := CheckResult{
		Offenses: cop.Offenses(reports),
		Units:    len(reports),
		Nodes:    int(summary.Nodes),
	}

	if result.Offenses == nil {
		result.Offenses = []cop.Offense{}
	}

	for _, report := range reports {
		if report.Err != nil {
			result.Failures = append(result.Failures, report.Err.Error())
		}

		for _, failure := range report.Failures {
			result.Failures = append(result.Failures, failure.Error())
		}
	}

	return jsonResult(result)
}

func (s *Server) handleCops(_ context.Context, _ *mcpsdk.CallToolRequest, _ CopsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	infos := make([]CopInfo, 0, len(s.cops))

	for _, rule := range s.cops {
		info := CopInfo{
			ID:          rule.ID(),
			Description: rule.Description(),
			Severity:    string(rule.Severity()),
			Pattern:     rule.Pattern().String(),
		}

		for _, nodeType := range rule.RestrictTo() {
			info.RestrictTo = append(info.RestrictTo, string(nodeType))
		}

		infos = append(infos, info)
	}

	return jsonResult(infos)
}

// selectCops returns the rules named by ids, or every available rule when
// ids is empty.
func (s *Server) selectCops(ids []string) ([]*cop.Rule, error) {
	if len(ids) == 0 {
		if len(s.cops) == 0 {
			return nil, ErrNoCops
		}

		return s.cops, nil
	}

	rules := make([]*cop.Rule, 0, len(ids))

	for _, id := range ids {
		var found *cop.Rule

		for _, rule := range s.cops {
			if strings.EqualFold(rule.ID(), id) {
				found = rule

				break
			}
		}

		if found == nil {
			return nil, config.UnknownCopError(id, s.cops)
		}

		rules = append(rules, found)
	}

	return rules, nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
