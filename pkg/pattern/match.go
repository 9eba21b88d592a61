package pattern

import "github.com/Sumatoshi-tech/nodecop/pkg/syntax"

// Bindings maps capture names to the matched nodes. The nodes are views into
// the matched tree, not copies.
type Bindings map[string]*syntax.Node

// Result is the outcome of matching a pattern against a node.
type Result struct {
	Bindings Bindings
	Matched  bool
}

// NoMatch is the result of a failed match.
var NoMatch = Result{}

type binding struct {
	node *syntax.Node
	name string
}

// Match matches the pattern against n. It never mutates n and returns the
// same result for the same inputs.
func (p *Pattern) Match(n *syntax.Node) Result {
	var captured []binding

	if !p.root.match(n, &captured) {
		return NoMatch
	}

	if len(captured) == 0 {
		return Result{Matched: true}
	}

	bindings := make(Bindings, len(captured))

	for _, bound := range captured {
		bindings[bound.name] = bound.node
	}

	return Result{Matched: true, Bindings: bindings}
}

// Match matches p against n.
func Match(p *Pattern, n *syntax.Node) Result {
	return p.Match(n)
}

func (expr *exactExpr) match(n *syntax.Node, captured *[]binding) bool {
	if n == nil || n.Type != expr.nodeType {
		return false
	}

	patterns := expr.children
	hasRest := false

	if len(patterns) > 0 {
		if _, ok := patterns[len(patterns)-1].(restExpr); ok {
			patterns = patterns[:len(patterns)-1]
			hasRest = true
		}
	}

	if len(n.Children) < len(patterns) || (!hasRest && len(n.Children) != len(patterns)) {
		return false
	}

	for idx, child := range patterns {
		if !child.match(n.Children[idx], captured) {
			return false
		}
	}

	return true
}

func (expr *alternativeExpr) match(n *syntax.Node, captured *[]binding) bool {
	mark := len(*captured)

	for _, branch := range expr.branches {
		if branch.match(n, captured) {
			return true
		}

		// Drop whatever a failed branch bound before it gave up.
		*captured = (*captured)[:mark]
	}

	return false
}

func (wildcardExpr) match(n *syntax.Node, _ *[]binding) bool {
	return n != nil
}

func (restExpr) match(_ *syntax.Node, _ *[]binding) bool {
	return false
}

func (expr literalExpr) match(n *syntax.Node, _ *[]binding) bool {
	return n.IsLeaf() && n.Token == expr.value
}

func (nilExpr) match(n *syntax.Node, _ *[]binding) bool {
	return n != nil && n.Type == syntax.TypeNil
}

func (expr *captureExpr) match(n *syntax.Node, captured *[]binding) bool {
	if !expr.inner.match(n, captured) {
		return false
	}

	*captured = append(*captured, binding{name: expr.name, node: n})

	return true
}
