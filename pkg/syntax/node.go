// Package syntax provides the syntax tree handed to the diagnostic engine by
// an external parser, together with traversal, snapshot, and decoding helpers.
package syntax

import (
	"fmt"
	"iter"
	"maps"
	"strconv"
	"strings"
)

// Node type tags emitted by the host-language parser for the constructs the
// built-in cops inspect.
const (
	TypeSend   Type = "send"
	TypeConst  Type = "const"
	TypeCbase  Type = "cbase"
	TypeNil    Type = "nil"
	TypeSym    Type = "sym"
	TypeStr    Type = "str"
	TypeBegin  Type = "begin"
	TypeBlock  Type = "block"
	TypeLvasgn Type = "lvasgn"
)

// Type represents a type tag for a node.
type Type string

// Positions represents the byte and line/col offsets for a node.
// All fields are 1-based except StartOffset/EndOffset, which are byte offsets.
type Positions struct {
	StartLine   uint `json:"start_line,omitempty"   yaml:"start_line,omitempty"`
	StartCol    uint `json:"start_col,omitempty"    yaml:"start_col,omitempty"`
	StartOffset uint `json:"start_offset,omitempty" yaml:"start_offset,omitempty"`
	EndLine     uint `json:"end_line,omitempty"     yaml:"end_line,omitempty"`
	EndCol      uint `json:"end_col,omitempty"      yaml:"end_col,omitempty"`
	EndOffset   uint `json:"end_offset,omitempty"   yaml:"end_offset,omitempty"`
}

// NewPositions creates a Positions value from start and end coordinates.
func NewPositions(startLine, startCol, startOffset, endLine, endCol, endOffset uint) *Positions {
	return &Positions{
		StartLine:   startLine,
		StartCol:    startCol,
		StartOffset: startOffset,
		EndLine:     endLine,
		EndCol:      endCol,
		EndOffset:   endOffset,
	}
}

// String returns the "line:col" form of the start position.
func (pos Positions) String() string {
	return strconv.FormatUint(uint64(pos.StartLine), 10) + ":" + strconv.FormatUint(uint64(pos.StartCol), 10)
}

// Node is one node of a syntax tree.
//
// Fields:
//
//	Type: node type tag (e.g., "send", "const").
//	Token: literal value for leaf nodes (identifiers, symbols, strings).
//	Pos: source code position info (optional).
//	Props: additional properties supplied by the parser.
//	Children: child nodes (ordered).
//
// A tree is owned by its root; children are owned by their parent and the
// structure is acyclic. Nothing in this module mutates a tree it is given.
type Node struct {
	Token    string            `json:"token,omitempty"    yaml:"token,omitempty"`
	Type     Type              `json:"type"               yaml:"type"`
	Pos      *Positions        `json:"pos,omitempty"      yaml:"pos,omitempty"`
	Props    map[string]string `json:"props,omitempty"    yaml:"props,omitempty"`
	Children []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
}

// NodeBuilder provides a fluent interface for building Node instances.
type NodeBuilder struct {
	node *Node
}

// NewBuilder creates a new NodeBuilder.
func NewBuilder() *NodeBuilder {
	return &NodeBuilder{node: &Node{}}
}

// WithType sets the node type.
func (builder *NodeBuilder) WithType(nodeType Type) *NodeBuilder {
	builder.node.Type = nodeType

	return builder
}

// WithToken sets the node token.
func (builder *NodeBuilder) WithToken(token string) *NodeBuilder {
	builder.node.Token = token

	return builder
}

// WithPosition sets the node position.
func (builder *NodeBuilder) WithPosition(pos *Positions) *NodeBuilder {
	builder.node.Pos = pos

	return builder
}

// WithProps sets the node properties.
func (builder *NodeBuilder) WithProps(props map[string]string) *NodeBuilder {
	builder.node.Props = props

	return builder
}

// WithChildren appends children to the node.
func (builder *NodeBuilder) WithChildren(children ...*Node) *NodeBuilder {
	builder.node.Children = append(builder.node.Children, children...)

	return builder
}

// Build returns the final Node.
func (builder *NodeBuilder) Build() *Node {
	return builder.node
}

// New creates an inner node with the given type and children.
func New(nodeType Type, children ...*Node) *Node {
	return NewBuilder().WithType(nodeType).WithChildren(children...).Build()
}

// NewLeaf creates a leaf node with the given type and token.
func NewLeaf(nodeType Type, token string) *Node {
	return NewBuilder().WithType(nodeType).WithToken(token).Build()
}

// At sets the node position and returns the node, for use in tree literals.
func (targetNode *Node) At(pos *Positions) *Node {
	targetNode.Pos = pos

	return targetNode
}

// AddChild appends a child node to n.
func (targetNode *Node) AddChild(child *Node) {
	targetNode.Children = append(targetNode.Children, child)
}

// IsLeaf reports whether the node has no children.
func (targetNode *Node) IsLeaf() bool {
	return targetNode != nil && len(targetNode.Children) == 0
}

// Location returns the node position, or the zero value when the parser
// supplied none.
func (targetNode *Node) Location() Positions {
	if targetNode == nil || targetNode.Pos == nil {
		return Positions{}
	}

	return *targetNode.Pos
}

// Text returns the source-level name of the node: the token of a leaf, or
// the short name of a constant reference (its last child's token).
func (targetNode *Node) Text() string {
	if targetNode == nil {
		return ""
	}

	if targetNode.Token != "" {
		return targetNode.Token
	}

	if targetNode.Type == TypeConst && len(targetNode.Children) > 0 {
		return targetNode.Children[len(targetNode.Children)-1].Text()
	}

	return ""
}

// PreOrder returns an iterator over the tree in pre-order (root, then
// children left-to-right). Nil children are skipped.
func (targetNode *Node) PreOrder() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if targetNode == nil {
			return
		}

		stack := make([]*Node, 0, defaultStackCap)
		stack = append(stack, targetNode)

		for len(stack) > 0 {
			curr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if curr == nil {
				continue
			}

			if !yield(curr) {
				return
			}

			stack = pushChildrenReversed(stack, curr.Children)
		}
	}
}

// VisitPreOrder visits all nodes in pre-order.
func (targetNode *Node) VisitPreOrder(fn func(*Node)) {
	for visitNode := range targetNode.PreOrder() {
		fn(visitNode)
	}
}

// Find returns all nodes in the tree (including root) for which predicate(node) is true.
// Traversal is pre-order. Returns nil if n is nil.
func (targetNode *Node) Find(predicate func(*Node) bool) []*Node {
	var result []*Node

	for curr := range targetNode.PreOrder() {
		if predicate(curr) {
			result = append(result, curr)
		}
	}

	return result
}

// Count returns the number of nodes in the tree.
func Count(root *Node) int {
	total := 0

	for range root.PreOrder() {
		total++
	}

	return total
}

// CountAtMost counts nodes but stops once limit+1 nodes were seen, so it
// terminates even on a malformed (cyclic) tree.
func CountAtMost(root *Node, limit int) int {
	total := 0

	for range root.PreOrder() {
		total++

		if total > limit {
			break
		}
	}

	return total
}

// Clone returns a deep copy of the tree.
func (targetNode *Node) Clone() *Node {
	if targetNode == nil {
		return nil
	}

	clone := &Node{
		Token: targetNode.Token,
		Type:  targetNode.Type,
	}

	if targetNode.Pos != nil {
		pos := *targetNode.Pos
		clone.Pos = &pos
	}

	if targetNode.Props != nil {
		clone.Props = maps.Clone(targetNode.Props)
	}

	if len(targetNode.Children) > 0 {
		clone.Children = make([]*Node, len(targetNode.Children))

		for idx, child := range targetNode.Children {
			clone.Children[idx] = child.Clone()
		}
	}

	return clone
}

// String returns a compact S-expression rendering of the tree.
func (targetNode *Node) String() string {
	var buf strings.Builder

	writeNode(&buf, targetNode)

	return buf.String()
}

func writeNode(buf *strings.Builder, targetNode *Node) {
	if targetNode == nil {
		buf.WriteString("nil")

		return
	}

	if targetNode.IsLeaf() && targetNode.Token != "" {
		fmt.Fprintf(buf, "(%s %q)", targetNode.Type, targetNode.Token)

		return
	}

	buf.WriteString("(")
	buf.WriteString(string(targetNode.Type))

	for _, child := range targetNode.Children {
		buf.WriteString(" ")
		writeNode(buf, child)
	}

	buf.WriteString(")")
}

// Traversal capacity constants.
const (
	defaultStackCap = 64
	stackCapGrowth  = 32
)

// pushChildrenReversed pushes children to the stack in reverse order so they
// pop left-to-right.
func pushChildrenReversed(stack, children []*Node) []*Node {
	if cap(stack) < len(stack)+len(children) {
		grown := make([]*Node, len(stack), len(stack)+len(children)+stackCapGrowth)
		copy(grown, stack)
		stack = grown
	}

	for idx := len(children) - 1; idx >= 0; idx-- {
		stack = append(stack, children[idx])
	}

	return stack
}
