// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package authinject

import (
	"errors"
	"fmt"
	"strings"
)

// Template is a parsed header template. Placeholders are written {field} and
// refer to keys of the credential bundle; {{ and }} produce literal braces.
//
// Substituted values are never re-scanned, so a credential that itself
// contains braces renders verbatim.
type Template struct {
	raw   string
	parts []part
}

type part struct {
	text  string
	field bool
}

var errUnbalanced = errors.New("unbalanced brace")

// ParseTemplate parses s. It fails on an unterminated or empty placeholder,
// a lone closing brace, or a placeholder containing an opening brace.
func ParseTemplate(s string) (*Template, error) {
	t := &Template{raw: s}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("template %q: %w at offset %d", s, errUnbalanced, i)
			}
			name := s[i+1 : i+1+end]
			if name == "" {
				return nil, fmt.Errorf("template %q: empty placeholder at offset %d", s, i)
			}
			if strings.IndexByte(name, '{') >= 0 {
				return nil, fmt.Errorf("template %q: %w at offset %d", s, errUnbalanced, i)
			}
			flush()
			t.parts = append(t.parts, part{text: name, field: true})
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("template %q: %w at offset %d", s, errUnbalanced, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// Fields returns the placeholder names in order of appearance.
func (t *Template) Fields() []string {
	var names []string
	for _, p := range t.parts {
		if p.field {
			names = append(names, p.text)
		}
	}
	return names
}

// Render substitutes values into the template. ok is false unless every
// placeholder names a present, non-empty value.
func (t *Template) Render(values map[string]string) (string, bool) {
	var b strings.Builder
	for _, p := range t.parts {
		if !p.field {
			b.WriteString(p.text)
			continue
		}
		v := values[p.text]
		if v == "" {
			return "", false
		}
		b.WriteString(v)
	}
	return b.String(), true
}

func (t *Template) String() string {
	return t.raw
}
