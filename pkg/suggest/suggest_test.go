package suggest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/nodecop/pkg/suggest"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"sitting", "kitten", 3},
		{"chdir", "chdir", 0},
		{"Dir", "dir", 1},
		{"héllo", "hello", 1},
	}

	var ctx suggest.Context

	for _, tt := range tests {
		assert.Equal(t, tt.want, ctx.Distance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestClosest(t *testing.T) {
	t.Parallel()

	cops := []string{"ThreadSafety/DirChdir", "ThreadSafety/MutableClassInstanceVariable"}

	got, ok := suggest.Closest("threadsafety/dirchdr", cops)
	assert.True(t, ok)
	assert.Equal(t, "ThreadSafety/DirChdir", got)

	_, ok = suggest.Closest("Style/Nope", cops)
	assert.False(t, ok)

	_, ok = suggest.Closest("x", nil)
	assert.False(t, ok)
}
