package cop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

// ErrUnknownSeverity is returned for a severity name that is not supported.
var ErrUnknownSeverity = errors.New("unknown severity")

// Severity classifies how serious an offense is.
type Severity string

// Supported severities, from least to most serious.
const (
	SeverityInfo       Severity = "info"
	SeverityConvention Severity = "convention"
	SeverityWarning    Severity = "warning"
	SeverityError      Severity = "error"
)

// DefaultSeverity is used when a definition leaves Severity empty.
const DefaultSeverity = SeverityWarning

var severityRank = map[Severity]int{
	SeverityInfo:       0,
	SeverityConvention: 1,
	SeverityWarning:    2,
	SeverityError:      3,
}

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	severity := Severity(strings.ToLower(strings.TrimSpace(name)))

	if _, ok := severityRank[severity]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
	}

	return severity, nil
}

// AtLeast reports whether s is at least as serious as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Offense is one diagnostic produced by a rule.
type Offense struct {
	RuleID   string           `json:"cop"`
	Message  string           `json:"message"`
	Severity Severity         `json:"severity"`
	File     string           `json:"file,omitempty"`
	NodeType syntax.Type      `json:"node_type"`
	Location syntax.Positions `json:"location"`
}

// String renders the offense as "file:line:col: severity: [cop] message".
func (o Offense) String() string {
	var buf strings.Builder

	if o.File != "" {
		buf.WriteString(o.File)
		buf.WriteString(":")
	}

	fmt.Fprintf(&buf, "%s: %s: [%s] %s", o.Location, o.Severity, o.RuleID, o.Message)

	return buf.String()
}
