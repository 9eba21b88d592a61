package threadsafety_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop/threadsafety"
	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

func sym(token string) *syntax.Node { return syntax.NewLeaf(syntax.TypeSym, token) }

func call(scope *syntax.Node, module, method string, args ...*syntax.Node) *syntax.Node {
	receiver := syntax.New(syntax.TypeConst, scope, sym(module))

	return syntax.New(syntax.TypeSend, append([]*syntax.Node{receiver, sym(method)}, args...)...)
}

func TestDirChdir_Offenses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tree    *syntax.Node
		message string
	}{
		{
			name:    "Dir.chdir",
			tree:    call(syntax.New(syntax.TypeNil), "Dir", "chdir", syntax.NewLeaf(syntax.TypeStr, "/var/run")),
			message: "Avoid using `Dir.chdir` due to its process-wide effect.",
		},
		{
			name:    "FileUtils.chdir",
			tree:    call(syntax.New(syntax.TypeNil), "FileUtils", "chdir", syntax.NewLeaf(syntax.TypeStr, "/var/run")),
			message: "Avoid using `FileUtils.chdir` due to its process-wide effect.",
		},
		{
			name:    "FileUtils.cd",
			tree:    call(syntax.New(syntax.TypeNil), "FileUtils", "cd"),
			message: "Avoid using `FileUtils.cd` due to its process-wide effect.",
		},
		{
			name:    "top-level ::Dir.chdir",
			tree:    call(syntax.New(syntax.TypeCbase), "Dir", "chdir", syntax.NewLeaf(syntax.TypeLvasgn, "x")),
			message: "Avoid using `Dir.chdir` due to its process-wide effect.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := threadsafety.DirChdir.Evaluate(tt.tree)
			require.NoError(t, err)
			require.Len(t, result.Offenses, 1)

			offense := result.Offenses[0]
			assert.Equal(t, threadsafety.DirChdirID, offense.RuleID)
			assert.Equal(t, tt.message, offense.Message)
			assert.Equal(t, cop.SeverityWarning, offense.Severity)
			assert.Equal(t, syntax.TypeSend, offense.NodeType)
		})
	}
}

func TestDirChdir_PlainMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tree *syntax.Node
		want string
	}{
		{
			tree: call(syntax.New(syntax.TypeNil), "Dir", "chdir", syntax.NewLeaf(syntax.TypeStr, "/var/run")),
			want: "Avoid using Dir.chdir due to its process-wide effect.",
		},
		{
			tree: call(syntax.New(syntax.TypeNil), "FileUtils", "cd"),
			want: "Avoid using FileUtils.cd due to its process-wide effect.",
		},
	}

	for _, tt := range tests {
		result, err := threadsafety.DirChdir.Evaluate(tt.tree)
		require.NoError(t, err)
		require.Len(t, result.Offenses, 1)

		assert.Equal(t, tt.want, strings.ReplaceAll(result.Offenses[0].Message, "`", ""))
	}
}

func TestDirChdir_NoOffense(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tree *syntax.Node
	}{
		{"Dir.cd", call(syntax.New(syntax.TypeNil), "Dir", "cd")},
		{"Other.chdir", call(syntax.New(syntax.TypeNil), "Other", "chdir")},
		{"namespaced Foo::Dir.chdir", call(syntax.New(syntax.TypeConst, syntax.New(syntax.TypeNil), sym("Foo")), "Dir", "chdir")},
		{"Dir.pwd", call(syntax.New(syntax.TypeNil), "Dir", "pwd")},
		{"bare chdir", syntax.New(syntax.TypeSend, syntax.New(syntax.TypeNil), sym("chdir"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := threadsafety.DirChdir.Evaluate(tt.tree)
			require.NoError(t, err)
			assert.Empty(t, result.Offenses)
		})
	}
}

func TestDirChdir_BlockForm(t *testing.T) {
	t.Parallel()

	// Dir.chdir("/tmp") { FileUtils.cd("/") }
	inner := call(syntax.New(syntax.TypeNil), "FileUtils", "cd", syntax.NewLeaf(syntax.TypeStr, "/")).
		At(syntax.NewPositions(1, 21, 20, 1, 37, 36))
	outer := call(syntax.New(syntax.TypeNil), "Dir", "chdir", syntax.NewLeaf(syntax.TypeStr, "/tmp")).
		At(syntax.NewPositions(1, 1, 0, 1, 18, 17))
	tree := syntax.New(syntax.TypeBlock, outer, syntax.New("args"), inner)

	result, err := threadsafety.DirChdir.Evaluate(tree, cop.WithFile("boot.rb"))
	require.NoError(t, err)
	require.Len(t, result.Offenses, 2)

	assert.Equal(t, "boot.rb:1:1: warning: [ThreadSafety/DirChdir] Avoid using `Dir.chdir` due to its process-wide effect.",
		result.Offenses[0].String())
	assert.Equal(t, "1:21", result.Offenses[1].Location.String())
	assert.Equal(t, 2, result.Stats.Candidates)
}

func TestDirChdir_Registration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []*cop.Rule{threadsafety.DirChdir}, threadsafety.Cops())
	assert.Equal(t, []syntax.Type{syntax.TypeSend}, threadsafety.DirChdir.RestrictTo())
	assert.Equal(t, []string{"method", "module"}, threadsafety.DirChdir.Pattern().Captures())
	assert.Contains(t, threadsafety.DirChdir.Pattern().String(), "$method=:cd")
}
