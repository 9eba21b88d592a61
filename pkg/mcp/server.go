// Package mcp implements a Model Context Protocol server exposing the nodecop
// cops as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
	"github.com/Sumatoshi-tech/nodecop/pkg/observability"
	"github.com/Sumatoshi-tech/nodecop/pkg/version"
)

const (
	serverName = "nodecop"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// CopMetrics records evaluation statistics of every check. Nil disables them.
	CopMetrics *observability.CopMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Cops are the rules a check may run. Nil means no cops.
	Cops []*cop.Rule

	// NewRunner builds the runner for a check. Nil uses cop.NewRunner.
	NewRunner func(rules []*cop.Rule) *cop.Runner

	// MaxTreeBytes bounds the tree document size. Zero uses MaxTreeInputBytes.
	MaxTreeBytes uint64
}

// Server wraps the MCP SDK server with nodecop tool registrations.
type Server struct {
	inner      *mcpsdk.Server
	mu         sync.RWMutex
	tools      []string
	metrics    *observability.REDMetrics
	copMetrics *observability.CopMetrics
	tracer     trace.Tracer
	logger     *slog.Logger
	cops       []*cop.Rule
	newRunner  func(rules []*cop.Rule) *cop.Runner
	maxTree    uint64
}

// NewServer creates a new MCP server with all nodecop tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:      inner,
		tools:      make([]string, 0, toolCount),
		metrics:    deps.Metrics,
		copMetrics: deps.CopMetrics,
		tracer:     deps.Tracer,
		logger:     deps.Logger,
		cops:       deps.Cops,
		newRunner:  deps.NewRunner,
		maxTree:    deps.MaxTreeBytes,
	}

	if srv.logger == nil {
		srv.logger = slog.Default()
	}

	if srv.newRunner == nil {
		srv.newRunner = func(rules []*cop.Rule) *cop.Runner { return cop.NewRunner(rules...) }
	}

	if srv.maxTree == 0 {
		srv.maxTree = MaxTreeInputBytes
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameCheck,
		Description: checkToolDescription,
	}, withMetrics(s.metrics, ToolNameCheck, withTracing(s.tracer, ToolNameCheck, s.handleCheck)))

	s.trackTool(ToolNameCheck)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameCops,
		Description: copsToolDescription,
	}, withMetrics(s.metrics, ToolNameCops, withTracing(s.tracer, ToolNameCops, s.handleCops)))

	s.trackTool(ToolNameCops)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	op := mcpSpanPrefix + toolName

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, op)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, op, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	checkToolDescription = "Run nodecop cops over a syntax tree produced by an external parser. " +
		"Accepts a JSON or YAML tree document and an optional list of cop identifiers. " +
		"Returns offenses in document order."

	copsToolDescription = "List the available nodecop cops with their severity, " +
		"node-type restriction and pattern."
)
