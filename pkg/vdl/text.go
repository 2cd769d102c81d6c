// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vdl

import (
	"fmt"
	"html"
	"strings"
)

type segment struct {
	text string
	expr bool
}

// splitText cuts s into literal text and #{...} or ${...} expressions.
func splitText(s string) ([]segment, error) {
	var out []segment

	for s != "" {
		start := expressionStart(s)
		if start < 0 {
			out = append(out, segment{text: s})

			break
		}

		end := closingBrace(s, start+2)
		if end < 0 {
			return nil, fmt.Errorf("unterminated expression %q", s[start:])
		}

		if start > 0 {
			out = append(out, segment{text: s[:start]})
		}

		out = append(out, segment{text: s[start : end+1], expr: true})
		s = s[end+1:]
	}

	return out, nil
}

func expressionStart(s string) int {
	hash := strings.Index(s, "#{")
	dollar := strings.Index(s, "${")

	switch {
	case hash < 0:
		return dollar
	case dollar < 0:
		return hash
	case hash < dollar:
		return hash
	}

	return dollar
}

// closingBrace returns the index of the brace closing an expression body
// starting at from, skipping quoted strings and nested braces.
func closingBrace(s string, from int) int {
	depth := 0

	var quote byte

	for i := from; i < len(s); i++ {
		ch := s[i]

		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '{':
			depth++
		case ch == '}':
			if depth == 0 {
				return i
			}

			depth--
		}
	}

	return -1
}

// singleExpression returns the body of s when s is exactly one expression.
func singleExpression(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#{") && !strings.HasPrefix(s, "${") {
		return "", false
	}

	if closingBrace(s, 2) != len(s)-1 {
		return "", false
	}

	return s[2 : len(s)-1], true
}

// escapeLiteral escapes the literal parts of an attribute value and keeps
// expressions as written.
func escapeLiteral(v string) string {
	segs, err := splitText(v)
	if err != nil {
		return html.EscapeString(v)
	}

	var b strings.Builder

	for _, seg := range segs {
		if seg.expr {
			b.WriteString(seg.text)
		} else {
			b.WriteString(html.EscapeString(seg.text))
		}
	}

	return b.String()
}

// literalValue turns a literal into an expression body producing it.
func literalValue(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
