// Package suggest finds the closest known name to a mistyped one.
package suggest

import (
	"strings"
)

// Context computes edit distances, reusing one buffer between calls.
// It is not safe for concurrent use.
type Context struct {
	column []int
}

func (ctx *Context) buffer(length int) []int {
	if cap(ctx.column) < length {
		ctx.column = make([]int, length)
	}

	return ctx.column[:length]
}

// Distance returns the Levenshtein distance between two strings, counted in
// runes, in O(min(m,n)) space.
func (ctx *Context) Distance(str1, str2 string) int {
	s1 := []rune(str1)
	s2 := []rune(str2)

	if len(s1) < len(s2) {
		s1, s2 = s2, s1
	}

	if len(s2) == 0 {
		return len(s1)
	}

	column := ctx.buffer(len(s2) + 1)
	for idx := range column {
		column[idx] = idx
	}

	for row, r1 := range s1 {
		lastdiag := column[0]
		column[0] = row + 1

		for col, r2 := range s2 {
			olddiag := column[col+1]

			cost := 0
			if r1 != r2 {
				cost = 1
			}

			column[col+1] = min(column[col+1]+1, column[col]+1, lastdiag+cost)
			lastdiag = olddiag
		}
	}

	return column[len(s2)]
}

// Closest returns the candidate nearest to name, compared case-insensitively,
// when it is within a third of name's length. ok is false when no candidate
// is close enough.
func Closest(name string, candidates []string) (string, bool) {
	var ctx Context

	lowered := strings.ToLower(name)
	limit := max(len([]rune(name))/3, 1)
	best, bestDistance := "", limit+1

	for _, candidate := range candidates {
		distance := ctx.Distance(lowered, strings.ToLower(candidate))
		if distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}

	return best, best != ""
}
