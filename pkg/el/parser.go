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

package el

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type node interface{}

type (
	literalNode  struct{ value any }
	identNode    struct{ name string }
	propertyNode struct{ base, property node }
	callNode     struct {
		base   node
		method string
		args   []node
	}
	unaryNode struct {
		op string
		x  node
	}
	binaryNode struct {
		op   string
		l, r node
	}
	condNode struct{ cond, then, els node }
	// compositeNode concatenates literal text and expressions.
	compositeNode struct{ parts []node }
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywordOps = map[string]string{
	"not": "!", "and": "&&", "or": "||",
	"eq": "==", "ne": "!=", "lt": "<", "gt": ">", "le": "<=", "ge": ">=",
	"empty": "empty", "div": "/", "mod": "%",
}

func lex(src string) ([]token, error) {
	var toks []token

	for i := 0; i < len(src); {
		c := rune(src[i])

		switch {
		case unicode.IsSpace(c):
			i++
		case c == '\'' || c == '"':
			var sb strings.Builder

			j := i + 1
			for ; j < len(src) && rune(src[j]) != c; j++ {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}

				sb.WriteByte(src[j])
			}

			if j >= len(src) {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, i)
			}

			toks = append(toks, token{kind: tokString, text: sb.String(), pos: i})
			i = j + 1
		case unicode.IsDigit(c):
			j := i
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.' && j+1 < len(src) && unicode.IsDigit(rune(src[j+1]))) {
				j++
			}

			toks = append(toks, token{kind: tokNumber, text: src[i:j], pos: i})
			i = j
		case unicode.IsLetter(c) || c == '_' || c == '$':
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_' || src[j] == '$') {
				j++
			}

			word := src[i:j]
			if op, ok := keywordOps[word]; ok {
				toks = append(toks, token{kind: tokOp, text: op, pos: i})
			} else {
				toks = append(toks, token{kind: tokIdent, text: word, pos: i})
			}

			i = j
		default:
			op := ""

			for _, candidate := range []string{"==", "!=", "<=", ">=", "&&", "||"} {
				if strings.HasPrefix(src[i:], candidate) {
					op = candidate

					break
				}
			}

			if op == "" {
				if !strings.ContainsRune(".[](),!<>?:+-*/%", c) {
					return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, i)
				}

				op = string(c)
			}

			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}

	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}

	return t
}

func (p *parser) accept(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++

		return true
	}

	return false
}

func (p *parser) expect(op string) error {
	if !p.accept(op) {
		return fmt.Errorf("%w: expected %q at %d", ErrSyntax, op, p.peek().pos)
	}

	return nil
}

func (p *parser) expr() (node, error) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}

	if !p.accept("?") {
		return cond, nil
	}

	then, err := p.expr()
	if err != nil {
		return nil, err
	}

	if err := p.expect(":"); err != nil {
		return nil, err
	}

	els, err := p.expr()
	if err != nil {
		return nil, err
	}

	return condNode{cond: cond, then: then, els: els}, nil
}

var precedence = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *parser) binary(level int) (node, error) {
	if level == len(precedence) {
		return p.unary()
	}

	l, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}

	for {
		matched := ""

		for _, op := range precedence[level] {
			if p.accept(op) {
				matched = op

				break
			}
		}

		if matched == "" {
			return l, nil
		}

		r, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}

		l = binaryNode{op: matched, l: l, r: r}
	}
}

func (p *parser) unary() (node, error) {
	for _, op := range []string{"!", "empty", "-"} {
		if p.accept(op) {
			x, err := p.unary()
			if err != nil {
				return nil, err
			}

			return unaryNode{op: op, x: x}, nil
		}
	}

	return p.postfix()
}

func (p *parser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.accept("."):
			t := p.next()
			if t.kind != tokIdent {
				return nil, fmt.Errorf("%w: expected property name at %d", ErrSyntax, t.pos)
			}

			if p.accept("(") {
				args, err := p.args()
				if err != nil {
					return nil, err
				}

				n = callNode{base: n, method: t.text, args: args}
			} else {
				n = propertyNode{base: n, property: literalNode{value: t.text}}
			}
		case p.accept("["):
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}

			if err := p.expect("]"); err != nil {
				return nil, err
			}

			n = propertyNode{base: n, property: idx}
		default:
			return n, nil
		}
	}
}

func (p *parser) args() ([]node, error) {
	var args []node
	if p.accept(")") {
		return args, nil
	}

	for {
		a, err := p.expr()
		if err != nil {
			return nil, err
		}

		args = append(args, a)

		if p.accept(")") {
			return args, nil
		}

		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) primary() (node, error) {
	t := p.next()

	switch t.kind {
	case tokNumber:
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
			}

			return literalNode{value: f}, nil
		}

		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}

		return literalNode{value: i}, nil
	case tokString:
		return literalNode{value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return literalNode{value: true}, nil
		case "false":
			return literalNode{value: false}, nil
		case "null":
			return literalNode{value: nil}, nil
		}

		return identNode{name: t.text}, nil
	case tokOp:
		if t.text == "(" {
			n, err := p.expr()
			if err != nil {
				return nil, err
			}

			return n, p.expect(")")
		}
	}

	return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
}

func parseExpression(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}

	n, err := p.expr()
	if err != nil {
		return nil, err
	}

	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
	}

	return n, nil
}

// parseTemplate splits text with embedded #{...} or ${...} expressions. A
// text consisting of exactly one expression parses to that expression so its
// value keeps its type.
func parseTemplate(src string) (node, error) {
	var parts []node

	var lit strings.Builder

	for i := 0; i < len(src); {
		if src[i] == '\\' && i+2 < len(src) && (src[i+1] == '#' || src[i+1] == '$') && src[i+2] == '{' {
			lit.WriteString(src[i+1 : i+3])
			i += 3

			continue
		}

		if (src[i] == '#' || src[i] == '$') && i+1 < len(src) && src[i+1] == '{' {
			end := closingBrace(src, i+2)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated expression at %d", ErrSyntax, i)
			}

			n, err := parseExpression(src[i+2 : end])
			if err != nil {
				return nil, err
			}

			if lit.Len() > 0 {
				parts = append(parts, literalNode{value: lit.String()})
				lit.Reset()
			}

			parts = append(parts, n)
			i = end + 1

			continue
		}

		lit.WriteByte(src[i])
		i++
	}

	if lit.Len() > 0 || len(parts) == 0 {
		parts = append(parts, literalNode{value: lit.String()})
	}

	if len(parts) == 1 {
		return parts[0], nil
	}

	return compositeNode{parts: parts}, nil
}

func closingBrace(src string, from int) int {
	var quote byte

	depth := 0

	for i := from; i < len(src); i++ {
		c := src[i]

		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return i
			}

			depth--
		}
	}

	return -1
}
