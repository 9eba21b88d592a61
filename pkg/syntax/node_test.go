package syntax_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

func makeTestTree() *syntax.Node {
	// Tree structure:
	//      root
	//     / |  \
	//   c1 c2  c3
	//  /      /  \
	// gc1   gc2 gc3.
	gc1 := syntax.NewLeaf("Grandchild", "gc1")
	gc2 := syntax.NewLeaf("Grandchild", "gc2")
	gc3 := syntax.NewLeaf("Grandchild", "gc3")
	c1 := syntax.NewBuilder().WithType("Child").WithToken("c1").WithChildren(gc1).Build()
	c2 := syntax.NewLeaf("Child", "c2")
	c3 := syntax.NewBuilder().WithType("Child").WithToken("c3").WithChildren(gc2, gc3).Build()

	return syntax.New("Root", c1, c2, c3)
}

func tokens(nodes []*syntax.Node) []string {
	var got []string //nolint:prealloc // nil slice needed for comparison.

	for _, n := range nodes {
		got = append(got, n.Token)
	}

	return got
}

func TestNodePreOrder(t *testing.T) {
	t.Parallel()

	tree := makeTestTree()

	var got []*syntax.Node

	tree.VisitPreOrder(func(n *syntax.Node) { got = append(got, n) })

	assert.Equal(t, []string{"", "c1", "gc1", "c2", "c3", "gc2", "gc3"}, tokens(got))
}

func TestNodePreOrder_StopsEarly(t *testing.T) {
	t.Parallel()

	seen := 0

	for range makeTestTree().PreOrder() {
		seen++

		if seen == 3 {
			break
		}
	}

	assert.Equal(t, 3, seen)
}

func TestNodePreOrder_NilRoot(t *testing.T) {
	t.Parallel()

	var root *syntax.Node

	assert.Equal(t, 0, syntax.Count(root))
	assert.Nil(t, root.Find(func(*syntax.Node) bool { return true }))
}

func TestNodeFind(t *testing.T) {
	t.Parallel()

	tree := makeTestTree()

	tests := []struct {
		name      string
		predicate func(*syntax.Node) bool
		want      []string
	}{
		{"Find children", func(n *syntax.Node) bool { return n.Type == "Child" }, []string{"c1", "c2", "c3"}},
		{"Find none", func(_ *syntax.Node) bool { return false }, nil},
		{"Find leaf", func(n *syntax.Node) bool { return n.Token == "gc2" }, []string{"gc2"}},
		{"Find leaves", (*syntax.Node).IsLeaf, []string{"gc1", "c2", "gc2", "gc3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tokens(tree.Find(tt.predicate)))
		})
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	tree := makeTestTree()

	assert.Equal(t, 7, syntax.Count(tree))
	assert.Equal(t, 4, syntax.CountAtMost(tree, 3))
	assert.Equal(t, 7, syntax.CountAtMost(tree, 100))
}

func TestCountAtMost_TerminatesOnCycle(t *testing.T) {
	t.Parallel()

	root := syntax.New(syntax.TypeBegin)
	child := syntax.New(syntax.TypeBegin, root)
	root.AddChild(child)

	assert.Equal(t, 11, syntax.CountAtMost(root, 10))
}

func TestNodeClone(t *testing.T) {
	t.Parallel()

	tree := makeTestTree()
	tree.Pos = syntax.NewPositions(1, 1, 0, 3, 4, 20)
	tree.Props = map[string]string{"file": "a.rb"}

	clone := tree.Clone()

	require.Empty(t, cmp.Diff(tree, clone))
	assert.NotSame(t, tree, clone)
	assert.NotSame(t, tree.Pos, clone.Pos)
	assert.NotSame(t, tree.Children[0], clone.Children[0])

	clone.Children[0].Token = "changed"
	clone.Props["file"] = "b.rb"

	assert.Equal(t, "c1", tree.Children[0].Token)
	assert.Equal(t, "a.rb", tree.Props["file"])
}

func TestNodeText(t *testing.T) {
	t.Parallel()

	constRef := syntax.New(syntax.TypeConst, syntax.New(syntax.TypeCbase), syntax.NewLeaf(syntax.TypeSym, "Dir"))

	assert.Equal(t, "Dir", constRef.Text())
	assert.Equal(t, "chdir", syntax.NewLeaf(syntax.TypeSym, "chdir").Text())
	assert.Empty(t, syntax.New(syntax.TypeSend).Text())
}

func TestNodeLocation(t *testing.T) {
	t.Parallel()

	n := syntax.NewLeaf(syntax.TypeStr, "x").At(syntax.NewPositions(4, 7, 30, 4, 10, 33))

	assert.Equal(t, uint(4), n.Location().StartLine)
	assert.Equal(t, "4:7", n.Location().String())
	assert.Equal(t, syntax.Positions{}, syntax.New(syntax.TypeNil).Location())
}

func TestNodeString(t *testing.T) {
	t.Parallel()

	call := syntax.New(syntax.TypeSend,
		syntax.New(syntax.TypeConst, syntax.New(syntax.TypeNil), syntax.NewLeaf(syntax.TypeSym, "Dir")),
		syntax.NewLeaf(syntax.TypeSym, "chdir"),
	)

	assert.Equal(t, `(send (const (nil) (sym "Dir")) (sym "chdir"))`, call.String())
}
