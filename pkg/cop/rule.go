// Package cop evaluates pattern-based rules ("cops") over syntax trees and
// collects the offenses they report.
//
// A rule is declared as a Definition and registered with New, which compiles
// its pattern and validates its message once. Evaluation walks a tree in
// pre-order, offers every node whose type the rule is restricted to to the
// pattern, and turns each match into an Offense. Matches never prune the
// walk, so nested offenses are all reported.
package cop

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/nodecop/pkg/pattern"
	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

// ErrInvalidDefinition is returned by New for a definition it cannot register.
var ErrInvalidDefinition = errors.New("invalid cop definition")

// OnMatchFunc builds the offense message for a matched node. The offense
// location is always taken from the matched node.
type OnMatchFunc func(n *syntax.Node, bindings pattern.Bindings) (string, error)

// Definition declares a rule. Exactly one of Message and OnMatch is set.
type Definition struct {
	// ID is the qualified rule name, e.g. "ThreadSafety/DirChdir".
	ID          string
	Description string
	// Severity defaults to DefaultSeverity.
	Severity Severity
	Pattern  pattern.Expr
	// RestrictTo lists the node types offered to the pattern. Empty offers every node.
	RestrictTo []syntax.Type
	// Message is a template whose {name} placeholders are replaced with the
	// text of the captured node of the same name.
	Message string
	OnMatch OnMatchFunc
}

// Rule is a registered, immutable rule. It is safe for concurrent use.
type Rule struct {
	pattern     *pattern.Pattern
	message     *messageTemplate
	onMatch     OnMatchFunc
	restrict    map[syntax.Type]struct{}
	id          string
	description string
	severity    Severity
	restrictTo  []syntax.Type
}

// New validates def and registers it as a rule. Pattern errors
// (pattern.ErrDuplicateCapture, pattern.ErrInvalidShape) are returned
// wrapped; a message placeholder that names no capture is ErrInvalidShape.
func New(def Definition) (*Rule, error) {
	if def.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}

	if (def.Message == "") == (def.OnMatch == nil) {
		return nil, fmt.Errorf("%w: %s: exactly one of message and match handler must be set", ErrInvalidDefinition, def.ID)
	}

	severity := def.Severity
	if severity == "" {
		severity = DefaultSeverity
	}

	if _, ok := severityRank[severity]; !ok {
		return nil, fmt.Errorf("%s: %w: %q", def.ID, ErrUnknownSeverity, severity)
	}

	compiled, err := pattern.Compile(def.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.ID, err)
	}

	rule := &Rule{
		id:          def.ID,
		description: def.Description,
		severity:    severity,
		pattern:     compiled,
		onMatch:     def.OnMatch,
	}

	if def.Message != "" {
		tmpl, tmplErr := parseTemplate(def.Message)
		if tmplErr != nil {
			return nil, fmt.Errorf("%s: %w", def.ID, tmplErr)
		}

		checkErr := tmpl.checkAgainst(compiled)
		if checkErr != nil {
			return nil, fmt.Errorf("%s: %w", def.ID, checkErr)
		}

		rule.message = tmpl
	}

	if len(def.RestrictTo) > 0 {
		rule.restrict = make(map[syntax.Type]struct{}, len(def.RestrictTo))

		for _, nodeType := range def.RestrictTo {
			rule.restrict[nodeType] = struct{}{}
		}

		rule.restrictTo = slices.Sorted(maps.Keys(rule.restrict))
	}

	return rule, nil
}

// MustNew is like New but panics on error. It is intended for built-in
// rules declared at package initialization.
func MustNew(def Definition) *Rule {
	rule, err := New(def)
	if err != nil {
		panic(fmt.Sprintf("cop: %v", err))
	}

	return rule
}

// ID returns the rule identifier.
func (rule *Rule) ID() string { return rule.id }

// Description returns the human-readable rule description.
func (rule *Rule) Description() string { return rule.description }

// Severity returns the severity assigned to the rule's offenses.
func (rule *Rule) Severity() Severity { return rule.severity }

// Pattern returns the compiled pattern.
func (rule *Rule) Pattern() *pattern.Pattern { return rule.pattern }

// RestrictTo returns the sorted node types offered to the pattern, or nil
// when every node is offered.
func (rule *Rule) RestrictTo() []syntax.Type { return slices.Clone(rule.restrictTo) }

// Message returns the message template source, or "" for a rule with a
// match handler.
func (rule *Rule) Message() string {
	if rule.message == nil {
		return ""
	}

	return rule.message.source
}

// WithSeverity returns a copy of the rule reporting at severity.
func (rule *Rule) WithSeverity(severity Severity) *Rule {
	clone := *rule
	clone.severity = severity

	return &clone
}

// accepts reports whether nodes of nodeType are offered to the pattern.
func (rule *Rule) accepts(nodeType syntax.Type) bool {
	if rule.restrict == nil {
		return true
	}

	_, ok := rule.restrict[nodeType]

	return ok
}

func (rule *Rule) offense(n *syntax.Node, bindings pattern.Bindings, file string) (Offense, error) {
	var (
		message string
		err     error
	)

	if rule.onMatch != nil {
		message, err = rule.onMatch(n, bindings)
	} else {
		message, err = rule.message.render(bindings)
	}

	if err != nil {
		return Offense{}, err
	}

	return Offense{
		RuleID:   rule.id,
		Message:  message,
		Severity: rule.severity,
		File:     file,
		NodeType: n.Type,
		Location: n.Location(),
	}, nil
}
