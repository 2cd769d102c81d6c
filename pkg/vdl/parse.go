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
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// node is a parsed markup element or a run of raw text.
type node struct {
	// ns is the canonical namespace of an element, empty for literal markup.
	ns string
	// name is the local tag name in lower case; rawName keeps the source case.
	name    string
	rawName string
	attrs   []attribute
	// raw is the source text of literal markup: a start tag, end tag or text.
	raw      string
	children []*node
	closing  string
	line     int
	text     bool
}

type attribute struct {
	name  string
	value string
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.name == name {
			return a.value, true
		}
	}

	return "", false
}

func (n *node) isElement(ns, name string) bool {
	return !n.text && n.ns == ns && n.name == name
}

// parseMarkup reads XHTML into a node tree. Prefixed elements are resolved
// through the xmlns declarations in scope; everything else is literal.
func parseMarkup(r io.Reader, path string) (*node, error) {
	z := html.NewTokenizer(r)
	root := &node{}
	stack := []*node{root}
	scopes := []map[string]string{{}}
	line := 1

	for {
		tt := z.Next()
		raw := string(z.Raw())
		at := line
		line += strings.Count(raw, "\n")

		top := stack[len(stack)-1]

		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if len(stack) > 1 {
					return nil, &TemplateError{Path: path, Line: at, Err: fmt.Errorf("unclosed <%s>", stack[len(stack)-1].rawName)}
				}

				return root, nil
			}

			return nil, &TemplateError{Path: path, Line: at, Err: z.Err()}

		case html.TextToken, html.DoctypeToken:
			top.children = append(top.children, &node{raw: raw, text: true, line: at})

		case html.CommentToken:

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			n, scope := newElement(tok, raw, at, scopes[len(scopes)-1])
			top.children = append(top.children, n)

			if tt == html.StartTagToken && !voidElement(n) {
				stack = append(stack, n)
				scopes = append(scopes, scope)
			}

		case html.EndTagToken:
			name := strings.ToLower(rawTagName(raw))
			if len(stack) == 1 || qualifiedLower(top) != name {
				return nil, &TemplateError{Path: path, Line: at, Err: fmt.Errorf("unexpected </%s>", rawTagName(raw))}
			}

			top.closing = raw
			stack = stack[:len(stack)-1]
			scopes = scopes[:len(scopes)-1]
		}
	}
}

func newElement(tok html.Token, raw string, line int, outer map[string]string) (*node, map[string]string) {
	scope := outer
	copied := false

	for _, a := range tok.Attr {
		if a.Key == "xmlns" || strings.HasPrefix(a.Key, "xmlns:") {
			if !copied {
				scope = make(map[string]string, len(outer)+1)
				for k, v := range outer {
					scope[k] = v
				}

				copied = true
			}

			scope[strings.TrimPrefix(strings.TrimPrefix(a.Key, "xmlns"), ":")] = canonicalNamespace(a.Val)
		}
	}

	n := &node{rawName: rawTagName(raw), raw: raw, line: line}
	n.name = strings.ToLower(n.rawName)

	if prefix, local, ok := strings.Cut(n.rawName, ":"); ok {
		if ns, known := scope[prefix]; known {
			n.ns = ns
			n.name = strings.ToLower(local)
			n.rawName = local
		}
	}

	for _, a := range tok.Attr {
		if a.Key == "xmlns" || strings.HasPrefix(a.Key, "xmlns:") {
			continue
		}

		n.attrs = append(n.attrs, attribute{name: attributeName(a.Key), value: a.Val})
	}

	return n, scope
}

// qualifiedLower returns the lower case tag name as written in the source.
func qualifiedLower(n *node) string {
	return strings.ToLower(rawTagName(n.raw))
}

// rawTagName extracts the tag name from the source of a tag.
func rawTagName(raw string) string {
	s := strings.TrimLeft(raw, "</")
	if i := strings.IndexAny(s, " \t\r\n/>"); i >= 0 {
		s = s[:i]
	}

	return s
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

// voidElement reports literal elements that never have an end tag.
func voidElement(n *node) bool {
	return n.ns == "" && voidElements[n.name]
}

// literalStartTag renders the start tag of a literal element without
// namespace declarations.
func literalStartTag(n *node) string {
	if !strings.Contains(n.raw, "xmlns") {
		return n.raw
	}

	var b bytes.Buffer

	b.WriteByte('<')
	b.WriteString(rawTagName(n.raw))

	for _, a := range n.attrs {
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteString(`="`)
		b.WriteString(escapeLiteral(a.value))
		b.WriteByte('"')
	}

	if strings.HasSuffix(n.raw, "/>") {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}

	return b.String()
}
