package pattern_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/nodecop/pkg/pattern"
	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

func sym(token string) *syntax.Node { return syntax.NewLeaf(syntax.TypeSym, token) }

func constRef(name string) *syntax.Node {
	return syntax.New(syntax.TypeConst, syntax.New(syntax.TypeNil), sym(name))
}

func send(receiver *syntax.Node, method string, args ...*syntax.Node) *syntax.Node {
	return syntax.New(syntax.TypeSend, append([]*syntax.Node{receiver, sym(method)}, args...)...)
}

// chdirExpr is the DirChdir cop pattern:
//
//	{(send (const {nil? cbase} ${:Dir :FileUtils}) $:chdir ...)
//	 (send (const {nil? cbase} $:FileUtils) $:cd ...)}.
func chdirExpr() pattern.Expr {
	scope := pattern.Alternative(pattern.Nil(), pattern.ExactNode(syntax.TypeCbase))

	return pattern.Alternative(
		pattern.ExactNode(syntax.TypeSend,
			pattern.ExactNode(syntax.TypeConst, scope,
				pattern.Capture("module", pattern.Alternative(pattern.Literal("Dir"), pattern.Literal("FileUtils")))),
			pattern.Capture("method", pattern.Literal("chdir")),
			pattern.Rest(),
		),
		pattern.ExactNode(syntax.TypeSend,
			pattern.ExactNode(syntax.TypeConst, scope, pattern.Capture("module", pattern.Literal("FileUtils"))),
			pattern.Capture("method", pattern.Literal("cd")),
			pattern.Rest(),
		),
	)
}

func TestCompile_Captures(t *testing.T) {
	t.Parallel()

	compiled, err := pattern.Compile(chdirExpr())
	require.NoError(t, err)

	assert.Equal(t, []string{"method", "module"}, compiled.Captures())
	assert.True(t, compiled.HasCapture("module"))
	assert.False(t, compiled.HasCapture("receiver"))
}

func TestCompile_String(t *testing.T) {
	t.Parallel()

	compiled := pattern.MustCompile(chdirExpr())

	assert.Equal(t,
		"{(send (const {nil? (cbase)} $module={:Dir :FileUtils}) $method=:chdir ...) "+
			"(send (const {nil? (cbase)} $module=:FileUtils) $method=:cd ...)}",
		compiled.String())
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		expr    pattern.Expr
		wantErr error
	}{
		{
			name: "capture reused across children",
			expr: pattern.ExactNode(syntax.TypeSend,
				pattern.Capture("x", pattern.Wildcard()), pattern.Capture("x", pattern.Wildcard())),
			wantErr: pattern.ErrDuplicateCapture,
		},
		{
			name:    "capture nested in same name",
			expr:    pattern.Capture("x", pattern.ExactNode(syntax.TypeSend, pattern.Capture("x", pattern.Wildcard()))),
			wantErr: pattern.ErrDuplicateCapture,
		},
		{
			name:    "rest not last",
			expr:    pattern.ExactNode(syntax.TypeSend, pattern.Rest(), pattern.Wildcard()),
			wantErr: pattern.ErrInvalidShape,
		},
		{
			name:    "rest at top level",
			expr:    pattern.Rest(),
			wantErr: pattern.ErrInvalidShape,
		},
		{
			name:    "rest inside alternative",
			expr:    pattern.ExactNode(syntax.TypeSend, pattern.Alternative(pattern.Rest(), pattern.Wildcard())),
			wantErr: pattern.ErrInvalidShape,
		},
		{
			name:    "rest inside capture",
			expr:    pattern.ExactNode(syntax.TypeSend, pattern.Capture("args", pattern.Rest())),
			wantErr: pattern.ErrInvalidShape,
		},
		{
			name:    "empty type",
			expr:    pattern.ExactNode(""),
			wantErr: pattern.ErrInvalidShape,
		},
		{
			name:    "empty alternative",
			expr:    pattern.Alternative(),
			wantErr: pattern.ErrInvalidShape,
		},
		{
			name:    "unnamed capture",
			expr:    pattern.Capture("", pattern.Wildcard()),
			wantErr: pattern.ErrInvalidShape,
		},
		{
			name:    "nil sub-pattern",
			expr:    pattern.ExactNode(syntax.TypeSend, nil),
			wantErr: pattern.ErrInvalidShape,
		},
		{
			name: "alternative branches capture different names",
			expr: pattern.Alternative(
				pattern.Capture("a", pattern.Wildcard()),
				pattern.Capture("b", pattern.Wildcard()),
			),
			wantErr: pattern.ErrInvalidShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			compiled, err := pattern.Compile(tt.expr)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, compiled)
		})
	}
}

func TestMustCompile_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { pattern.MustCompile(pattern.Rest()) })
}

func TestMatch_ChdirScenarios(t *testing.T) {
	t.Parallel()

	compiled := pattern.MustCompile(chdirExpr())

	tests := []struct {
		name       string
		node       *syntax.Node
		wantMatch  bool
		wantModule string
		wantMethod string
	}{
		{"Dir.chdir with argument", send(constRef("Dir"), "chdir", syntax.NewLeaf(syntax.TypeStr, "/var/run")), true, "Dir", "chdir"},
		{"FileUtils.cd without arguments", send(constRef("FileUtils"), "cd"), true, "FileUtils", "cd"},
		{"FileUtils.chdir", send(constRef("FileUtils"), "chdir", syntax.NewLeaf(syntax.TypeStr, "/tmp")), true, "FileUtils", "chdir"},
		{
			"::Dir.chdir",
			send(syntax.New(syntax.TypeConst, syntax.New(syntax.TypeCbase), sym("Dir")), "chdir"),
			true, "Dir", "chdir",
		},
		{"wrong receiver", send(constRef("Other"), "chdir"), false, "", ""},
		{"Dir.cd is not flagged", send(constRef("Dir"), "cd"), false, "", ""},
		{
			"namespaced constant",
			send(syntax.New(syntax.TypeConst, constRef("Foo"), sym("Dir")), "chdir"),
			false, "", "",
		},
		{"receiverless call", send(syntax.New(syntax.TypeNil), "chdir"), false, "", ""},
		{"not a call", constRef("Dir"), false, "", ""},
		{"nil node", nil, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := compiled.Match(tt.node)

			require.Equal(t, tt.wantMatch, result.Matched)

			if !tt.wantMatch {
				assert.Nil(t, result.Bindings)

				return
			}

			assert.Equal(t, tt.wantModule, result.Bindings["module"].Text())
			assert.Equal(t, tt.wantMethod, result.Bindings["method"].Text())
		})
	}
}

func TestMatch_BindingsAreViews(t *testing.T) {
	t.Parallel()

	call := send(constRef("Dir"), "chdir")
	result := pattern.Match(pattern.MustCompile(chdirExpr()), call)

	require.True(t, result.Matched)
	assert.Same(t, call.Children[0].Children[1], result.Bindings["module"])
	assert.Same(t, call.Children[1], result.Bindings["method"])
}

func TestMatch_ExactArity(t *testing.T) {
	t.Parallel()

	fixed := pattern.MustCompile(pattern.ExactNode(syntax.TypeSend, pattern.Wildcard(), pattern.Literal("x")))
	variadic := pattern.MustCompile(pattern.ExactNode(syntax.TypeSend, pattern.Wildcard(), pattern.Literal("x"), pattern.Rest()))

	two := send(syntax.New(syntax.TypeNil), "x")
	three := send(syntax.New(syntax.TypeNil), "x", sym("arg"))
	one := syntax.New(syntax.TypeSend, syntax.New(syntax.TypeNil))

	assert.True(t, fixed.Match(two).Matched)
	assert.False(t, fixed.Match(three).Matched)
	assert.False(t, fixed.Match(one).Matched)
	assert.True(t, variadic.Match(two).Matched)
	assert.True(t, variadic.Match(three).Matched)
	assert.False(t, variadic.Match(one).Matched)
}

func TestMatch_LiteralRequiresLeaf(t *testing.T) {
	t.Parallel()

	compiled := pattern.MustCompile(pattern.Literal("Dir"))

	assert.True(t, compiled.Match(sym("Dir")).Matched)
	assert.False(t, compiled.Match(syntax.NewBuilder().WithType(syntax.TypeSym).WithToken("Dir").WithChildren(sym("x")).Build()).Matched)
	assert.False(t, compiled.Match(sym("dir")).Matched)
}

func TestMatch_FirstAlternativeWins(t *testing.T) {
	t.Parallel()

	compiled := pattern.MustCompile(pattern.Alternative(
		pattern.ExactNode(syntax.TypeSend, pattern.Capture("picked", pattern.Wildcard()), pattern.Rest()),
		pattern.ExactNode(syntax.TypeSend, pattern.Wildcard(), pattern.Capture("picked", pattern.Wildcard()), pattern.Rest()),
	))

	call := send(constRef("Dir"), "chdir")
	result := compiled.Match(call)

	require.True(t, result.Matched)
	assert.Same(t, call.Children[0], result.Bindings["picked"])
}

func TestMatch_FailedBranchLeavesNoBindings(t *testing.T) {
	t.Parallel()

	compiled := pattern.MustCompile(pattern.Alternative(
		pattern.ExactNode(syntax.TypeSend, pattern.Capture("recv", pattern.Wildcard()), pattern.Literal("nope")),
		pattern.ExactNode(syntax.TypeSend, pattern.Wildcard(), pattern.Capture("recv", pattern.Wildcard())),
	))

	call := send(constRef("Dir"), "chdir")
	result := compiled.Match(call)

	require.True(t, result.Matched)
	assert.Len(t, result.Bindings, 1)
	assert.Same(t, call.Children[1], result.Bindings["recv"])
}

func TestMatch_Deterministic(t *testing.T) {
	t.Parallel()

	compiled := pattern.MustCompile(chdirExpr())
	call := send(constRef("FileUtils"), "cd", syntax.NewLeaf(syntax.TypeStr, "/"))

	first := compiled.Match(call)

	for range 50 {
		assert.Equal(t, first, compiled.Match(call))
	}
}

func TestMatch_DoesNotMutate(t *testing.T) {
	t.Parallel()

	compiled := pattern.MustCompile(chdirExpr())
	call := send(constRef("Dir"), "chdir", syntax.NewLeaf(syntax.TypeStr, "/var/run")).
		At(syntax.NewPositions(1, 1, 0, 1, 22, 21))
	snapshot := call.Clone()
	children := call.Children

	compiled.Match(call)
	compiled.Match(call.Children[0])

	require.Empty(t, cmp.Diff(snapshot, call))
	assert.Same(t, &children[0], &call.Children[0])
}
