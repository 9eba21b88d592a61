// Package pattern compiles declarative node-shape patterns and matches them
// against syntax trees.
//
// A pattern is built from a closed set of variants with the constructor
// functions of this package (ExactNode, Alternative, Wildcard, Rest, Literal,
// Nil, Capture) and compiled once with Compile. Compilation rejects malformed
// shapes, so matching itself never fails: a node either matches, yielding its
// capture bindings, or it does not.
package pattern

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

// Sentinel errors for pattern construction.
var (
	ErrDuplicateCapture = errors.New("duplicate capture name")
	ErrInvalidShape     = errors.New("invalid pattern shape")
)

// Expr is one variant of the pattern language. The set of variants is closed.
type Expr interface {
	match(n *syntax.Node, captured *[]binding) bool
	writeTo(buf *strings.Builder)
}

type exactExpr struct {
	nodeType syntax.Type
	children []Expr
}

type alternativeExpr struct {
	branches []Expr
}

type wildcardExpr struct{}

type restExpr struct{}

type literalExpr struct {
	value string
}

type nilExpr struct{}

type captureExpr struct {
	inner Expr
	name  string
}

// ExactNode matches a node of the given type whose children match children
// positionally. When the last child pattern is Rest, any remaining children
// are accepted; otherwise the child counts must be equal.
func ExactNode(nodeType syntax.Type, children ...Expr) Expr {
	return &exactExpr{nodeType: nodeType, children: children}
}

// Alternative matches when any branch matches. Branches are tried in
// declaration order and the first successful branch's bindings are used.
func Alternative(branches ...Expr) Expr {
	return &alternativeExpr{branches: branches}
}

// Wildcard matches any single node without binding it.
func Wildcard() Expr {
	return wildcardExpr{}
}

// Rest accepts all remaining children. It is only valid as the last child
// pattern of ExactNode.
func Rest() Expr {
	return restExpr{}
}

// Literal matches a leaf node whose token equals value.
func Literal(value string) Expr {
	return literalExpr{value: value}
}

// Nil matches the host's nil-literal node, e.g. the absent scope of an
// unqualified constant reference.
func Nil() Expr {
	return nilExpr{}
}

// Capture matches when inner matches and binds the node under name.
func Capture(name string, inner Expr) Expr {
	return &captureExpr{name: name, inner: inner}
}

// Pattern is a compiled, immutable pattern. It is safe for concurrent use.
type Pattern struct {
	root     Expr
	captures []string
}

// Compile validates expr and returns the compiled pattern.
//
// Capture names must be unique along any single match path
// (ErrDuplicateCapture). The branches of an Alternative are separate paths:
// they may reuse names, and when any branch captures, every branch must bind
// the same set of names (ErrInvalidShape otherwise). Other malformed shapes,
// such as Rest outside the last child slot of ExactNode or an empty type tag,
// are reported as ErrInvalidShape.
func Compile(expr Expr) (*Pattern, error) {
	names, err := validate(expr, false)
	if err != nil {
		return nil, err
	}

	captures := slices.Sorted(maps.Keys(names))

	return &Pattern{root: expr, captures: captures}, nil
}

// MustCompile is like Compile but panics on error. It is intended for
// patterns declared at package initialization.
func MustCompile(expr Expr) *Pattern {
	compiled, err := Compile(expr)
	if err != nil {
		panic(fmt.Sprintf("pattern: %v", err))
	}

	return compiled
}

// Captures returns the sorted capture names bound by a successful match.
func (p *Pattern) Captures() []string {
	return slices.Clone(p.captures)
}

// HasCapture reports whether a successful match binds name.
func (p *Pattern) HasCapture(name string) bool {
	_, found := slices.BinarySearch(p.captures, name)

	return found
}

// String renders the pattern in S-expression notation.
func (p *Pattern) String() string {
	var buf strings.Builder

	p.root.writeTo(&buf)

	return buf.String()
}

type nameSet map[string]struct{}

func validate(expr Expr, restAllowed bool) (nameSet, error) {
	switch typed := expr.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil sub-pattern", ErrInvalidShape)
	case *exactExpr:
		return validateExact(typed)
	case *alternativeExpr:
		return validateAlternative(typed)
	case *captureExpr:
		return validateCapture(typed)
	case restExpr:
		if !restAllowed {
			return nil, fmt.Errorf("%w: rest is only valid as the last child of a node pattern", ErrInvalidShape)
		}

		return nameSet{}, nil
	case wildcardExpr, literalExpr, nilExpr:
		return nameSet{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown pattern variant %T", ErrInvalidShape, expr)
	}
}

func validateExact(expr *exactExpr) (nameSet, error) {
	if expr.nodeType == "" {
		return nil, fmt.Errorf("%w: node pattern without a type", ErrInvalidShape)
	}

	names := nameSet{}

	for idx, child := range expr.children {
		childNames, err := validate(child, idx == len(expr.children)-1)
		if err != nil {
			return nil, fmt.Errorf("(%s) child %d: %w", expr.nodeType, idx, err)
		}

		for name := range childNames {
			if _, dup := names[name]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateCapture, name)
			}

			names[name] = struct{}{}
		}
	}

	return names, nil
}

func validateAlternative(expr *alternativeExpr) (nameSet, error) {
	if len(expr.branches) == 0 {
		return nil, fmt.Errorf("%w: alternative without branches", ErrInvalidShape)
	}

	var first nameSet

	for idx, branch := range expr.branches {
		branchNames, err := validate(branch, false)
		if err != nil {
			return nil, fmt.Errorf("alternative branch %d: %w", idx, err)
		}

		if idx == 0 {
			first = branchNames

			continue
		}

		if !maps.Equal(first, branchNames) {
			return nil, fmt.Errorf("%w: alternative branch %d captures %v, branch 0 captures %v",
				ErrInvalidShape, idx, slices.Sorted(maps.Keys(branchNames)), slices.Sorted(maps.Keys(first)))
		}
	}

	return first, nil
}

func validateCapture(expr *captureExpr) (nameSet, error) {
	if expr.name == "" {
		return nil, fmt.Errorf("%w: capture without a name", ErrInvalidShape)
	}

	names, err := validate(expr.inner, false)
	if err != nil {
		return nil, fmt.Errorf("capture %q: %w", expr.name, err)
	}

	if _, dup := names[expr.name]; dup {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateCapture, expr.name)
	}

	names[expr.name] = struct{}{}

	return names, nil
}

func (expr *exactExpr) writeTo(buf *strings.Builder) {
	buf.WriteString("(")
	buf.WriteString(string(expr.nodeType))

	for _, child := range expr.children {
		buf.WriteString(" ")
		child.writeTo(buf)
	}

	buf.WriteString(")")
}

func (expr *alternativeExpr) writeTo(buf *strings.Builder) {
	buf.WriteString("{")

	for idx, branch := range expr.branches {
		if idx > 0 {
			buf.WriteString(" ")
		}

		branch.writeTo(buf)
	}

	buf.WriteString("}")
}

func (wildcardExpr) writeTo(buf *strings.Builder) { buf.WriteString("_") }

func (restExpr) writeTo(buf *strings.Builder) { buf.WriteString("...") }

func (expr literalExpr) writeTo(buf *strings.Builder) {
	buf.WriteString(":")
	buf.WriteString(expr.value)
}

func (nilExpr) writeTo(buf *strings.Builder) { buf.WriteString("nil?") }

func (expr *captureExpr) writeTo(buf *strings.Builder) {
	buf.WriteString("$")
	buf.WriteString(expr.name)
	buf.WriteString("=")
	expr.inner.writeTo(buf)
}
