// Package threadsafety holds cops that flag calls with process-wide side
// effects, which are unsafe in multi-threaded programs.
package threadsafety

import (
	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
	"github.com/Sumatoshi-tech/nodecop/pkg/pattern"
	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

// DirChdirID is the identifier of the DirChdir cop.
const DirChdirID = "ThreadSafety/DirChdir"

const dirChdirMessage = "Avoid using `{module}.{method}` due to its process-wide effect."

// DirChdirPattern returns the DirChdir pattern:
//
//	{
//	  (send (const {nil? cbase} ${:Dir :FileUtils}) $:chdir ...)
//	  (send (const {nil? cbase} $:FileUtils) $:cd ...)
//	}
//
// Dir.cd does not exist, so only FileUtils is matched for cd.
func DirChdirPattern() pattern.Expr {
	return pattern.Alternative(
		chdirCall(pattern.Alternative(pattern.Literal("Dir"), pattern.Literal("FileUtils")), "chdir"),
		chdirCall(pattern.Literal("FileUtils"), "cd"),
	)
}

func chdirCall(module pattern.Expr, method string) pattern.Expr {
	// Receiver is an unqualified (Dir) or top-level (::Dir) constant.
	scope := pattern.Alternative(pattern.Nil(), pattern.ExactNode(syntax.TypeCbase))

	return pattern.ExactNode(syntax.TypeSend,
		pattern.ExactNode(syntax.TypeConst, scope, pattern.Capture("module", module)),
		pattern.Capture("method", pattern.Literal(method)),
		pattern.Rest(),
	)
}

// DirChdir flags Dir.chdir, FileUtils.chdir and FileUtils.cd, which change
// the working directory of the whole process. The message quotes the call
// in backticks, e.g. "Avoid using `FileUtils.cd` due to its process-wide
// effect.". Stripped of them it is the plain "Avoid using FileUtils.cd due to
// its process-wide effect.".
//
//	# bad
//	Dir.chdir("/var/run")
//
//	# bad
//	FileUtils.chdir("/var/run")
var DirChdir = cop.MustNew(cop.Definition{
	ID:          DirChdirID,
	Description: "Avoid using `Dir.chdir` due to its process-wide effect.",
	Severity:    cop.SeverityWarning,
	Pattern:     DirChdirPattern(),
	RestrictTo:  []syntax.Type{syntax.TypeSend},
	Message:     dirChdirMessage,
})

// Cops returns the cops of this department.
func Cops() []*cop.Rule {
	return []*cop.Rule{DirChdir}
}
