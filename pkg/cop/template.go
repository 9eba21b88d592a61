package cop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/nodecop/pkg/pattern"
)

// ErrEmptyCapture is reported when a message placeholder names a capture
// bound to a node without text, such as an inner call node.
var ErrEmptyCapture = errors.New("captured node has no text")

// messageTemplate is a parsed offense message. Placeholders are written
// {name} and refer to capture names; {{ and }} produce literal braces.
type messageTemplate struct {
	source   string
	segments []segment
}

type segment struct {
	text        string
	placeholder bool
}

func parseTemplate(source string) (*messageTemplate, error) {
	tmpl := &messageTemplate{source: source}

	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			tmpl.segments = append(tmpl.segments, segment{text: literal.String()})
			literal.Reset()
		}
	}

	for idx := 0; idx < len(source); idx++ {
		ch := source[idx]

		switch {
		case ch == '{' && idx+1 < len(source) && source[idx+1] == '{':
			literal.WriteByte('{')
			idx++
		case ch == '}' && idx+1 < len(source) && source[idx+1] == '}':
			literal.WriteByte('}')
			idx++
		case ch == '{':
			end := strings.IndexByte(source[idx+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: message %q: unclosed placeholder at offset %d",
					pattern.ErrInvalidShape, source, idx)
			}

			name := strings.TrimSpace(source[idx+1 : idx+1+end])
			if name == "" || strings.ContainsRune(name, '{') {
				return nil, fmt.Errorf("%w: message %q: malformed placeholder at offset %d",
					pattern.ErrInvalidShape, source, idx)
			}

			flush()
			tmpl.segments = append(tmpl.segments, segment{text: name, placeholder: true})
			idx += end + 1
		case ch == '}':
			return nil, fmt.Errorf("%w: message %q: unmatched '}' at offset %d", pattern.ErrInvalidShape, source, idx)
		default:
			literal.WriteByte(ch)
		}
	}

	flush()

	return tmpl, nil
}

// placeholders returns the placeholder names in order of appearance.
func (tmpl *messageTemplate) placeholders() []string {
	var names []string

	for _, seg := range tmpl.segments {
		if seg.placeholder {
			names = append(names, seg.text)
		}
	}

	return names
}

// checkAgainst reports the first placeholder the pattern does not capture.
func (tmpl *messageTemplate) checkAgainst(compiled *pattern.Pattern) error {
	for _, name := range tmpl.placeholders() {
		if !compiled.HasCapture(name) {
			return fmt.Errorf("%w: message placeholder {%s} is not captured by the pattern (captures: %v)",
				pattern.ErrInvalidShape, name, compiled.Captures())
		}
	}

	return nil
}

func (tmpl *messageTemplate) render(bindings pattern.Bindings) (string, error) {
	var buf strings.Builder

	buf.Grow(len(tmpl.source))

	for _, seg := range tmpl.segments {
		if !seg.placeholder {
			buf.WriteString(seg.text)

			continue
		}

		captured := bindings[seg.text]
		if captured == nil {
			return "", fmt.Errorf("%w: {%s} is unbound", ErrEmptyCapture, seg.text)
		}

		text := captured.Text()
		if text == "" {
			return "", fmt.Errorf("%w: {%s} bound to a %s node", ErrEmptyCapture, seg.text, captured.Type)
		}

		buf.WriteString(text)
	}

	return buf.String(), nil
}
