package cop

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

var (
	// ErrCycleDetected is reported when cycle detection finds a node reached twice.
	ErrCycleDetected = errors.New("cycle detected in syntax tree")
	// ErrOnMatchFailed marks a failure of a rule's match handler.
	ErrOnMatchFailed = errors.New("match handler failed")
)

// TraversalError reports a malformed tree found while walking it.
type TraversalError struct {
	Err      error
	NodeType syntax.Type
	Location syntax.Positions
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("traversal at %s (%s): %v", e.Location, e.NodeType, e.Err)
}

func (e *TraversalError) Unwrap() error {
	return e.Err
}

// OnMatchError records a match handler failure for one node. Evaluation
// continues past it; it matches both ErrOnMatchFailed and the handler's error.
type OnMatchError struct {
	Err      error
	RuleID   string
	Location syntax.Positions
}

func (e *OnMatchError) Error() string {
	return fmt.Sprintf("%s at %s: %v: %v", e.RuleID, e.Location, ErrOnMatchFailed, e.Err)
}

func (e *OnMatchError) Unwrap() []error {
	return []error{ErrOnMatchFailed, e.Err}
}

// Stats describes one evaluation.
type Stats struct {
	// Visited counts every node of the tree.
	Visited int
	// Candidates counts (node, rule) pairs whose node type the rule accepts.
	Candidates int
	// Matches counts successful pattern matches, including those whose
	// handler failed.
	Matches int
}

// Result is the outcome of evaluating rules over one tree.
type Result struct {
	// Offenses are in traversal order; offenses on the same node follow rule order.
	Offenses []Offense
	// Failures holds one *OnMatchError per failed match handler.
	Failures []error
	Stats    Stats
}

type evalConfig struct {
	ctx          context.Context //nolint:containedctx // bounded to one evaluation.
	file         string
	detectCycles bool
}

// EvalOption configures an evaluation.
type EvalOption func(*evalConfig)

// WithCycleDetection tracks visited nodes and fails the evaluation with
// ErrCycleDetected when a node is reached twice.
func WithCycleDetection() EvalOption {
	return func(cfg *evalConfig) { cfg.detectCycles = true }
}

// WithFile sets the unit name recorded on every offense.
func WithFile(name string) EvalOption {
	return func(cfg *evalConfig) { cfg.file = name }
}

// WithContext stops the walk with the context's error once ctx is done.
func WithContext(ctx context.Context) EvalOption {
	return func(cfg *evalConfig) { cfg.ctx = ctx }
}

// Evaluate walks tree and reports the rule's offenses.
func (rule *Rule) Evaluate(tree *syntax.Node, opts ...EvalOption) (*Result, error) {
	return EvaluateAll([]*Rule{rule}, tree, opts...)
}

// ctxCheckInterval is how many nodes are visited between context checks.
const ctxCheckInterval = 256

// EvaluateAll walks tree once and evaluates every rule on each node. The
// offenses are in traversal order, ties broken by the order of rules.
//
// On a traversal error (cycle or context) no offenses are returned.
func EvaluateAll(rules []*Rule, tree *syntax.Node, opts ...EvalOption) (*Result, error) {
	var cfg evalConfig

	for _, opt := range opts {
		opt(&cfg)
	}

	result := &Result{}

	var visited map[*syntax.Node]struct{}
	if cfg.detectCycles {
		visited = make(map[*syntax.Node]struct{})
	}

	for n := range tree.PreOrder() {
		if visited != nil {
			if _, seen := visited[n]; seen {
				return nil, &TraversalError{Err: ErrCycleDetected, NodeType: n.Type, Location: n.Location()}
			}

			visited[n] = struct{}{}
		}

		result.Stats.Visited++

		if cfg.ctx != nil && result.Stats.Visited%ctxCheckInterval == 0 {
			ctxErr := cfg.ctx.Err()
			if ctxErr != nil {
				return nil, fmt.Errorf("evaluation stopped after %d nodes: %w", result.Stats.Visited, ctxErr)
			}
		}

		for _, rule := range rules {
			evaluateNode(rule, n, &cfg, result)
		}
	}

	return result, nil
}

func evaluateNode(rule *Rule, n *syntax.Node, cfg *evalConfig, result *Result) {
	if !rule.accepts(n.Type) {
		return
	}

	result.Stats.Candidates++

	match := rule.pattern.Match(n)
	if !match.Matched {
		return
	}

	result.Stats.Matches++

	offense, err := rule.offense(n, match.Bindings, cfg.file)
	if err != nil {
		result.Failures = append(result.Failures, &OnMatchError{
			RuleID:   rule.id,
			Location: n.Location(),
			Err:      err,
		})

		return
	}

	result.Offenses = append(result.Offenses, offense)
}
