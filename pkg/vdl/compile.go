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
	"io"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
)

// Facelet is a compiled template.
type Facelet struct {
	Path string

	handlers []handler
	// composite and implementation are set for composite component files.
	composite         *CompositeMetadata
	implementation    []handler
	hasImplementation bool
}

// Composite returns the interface of a composite component file, or nil.
func (f *Facelet) Composite() *CompositeMetadata { return f.composite }

// Compile parses a facelet. Only the content of the first ui:composition or
// ui:component is kept when the document has one.
func Compile(r io.Reader, path string) (*Facelet, error) {
	doc, err := parseMarkup(r, path)
	if err != nil {
		return nil, err
	}

	c := &compiler{path: path}
	f := &Facelet{Path: path}

	if iface := findElement(doc, NamespaceComposite, "interface"); iface != nil {
		f.composite = compileInterface(iface)
	}

	if impl := findElement(doc, NamespaceComposite, "implementation"); impl != nil {
		f.hasImplementation = true

		if f.implementation, err = c.children(impl); err != nil {
			return nil, err
		}
	}

	body := doc
	if trim := findTrim(doc); trim != nil {
		if _, ok := trim.attr("template"); ok && trim.name == "composition" {
			h, err := c.composition(trim)
			if err != nil {
				return nil, err
			}

			f.handlers = []handler{h}

			return f, nil
		}

		body = trim
	}

	if f.handlers, err = c.children(body); err != nil {
		return nil, err
	}

	return f, nil
}

func findElement(n *node, ns, name string) *node {
	for _, k := range n.children {
		if k.text {
			continue
		}

		if k.isElement(ns, name) {
			return k
		}

		if found := findElement(k, ns, name); found != nil {
			return found
		}
	}

	return nil
}

func findTrim(n *node) *node {
	for _, k := range n.children {
		if k.text {
			continue
		}

		if k.isElement(NamespaceFacelets, "composition") || k.isElement(NamespaceFacelets, "component") {
			return k
		}

		if found := findTrim(k); found != nil {
			return found
		}
	}

	return nil
}

type compiler struct {
	path string
	seq  int
}

func (c *compiler) mark() string {
	c.seq++

	return strconv.Itoa(c.seq)
}

func (c *compiler) errorf(line int, format string, args ...any) error {
	return &TemplateError{Path: c.path, Line: line, Err: fmt.Errorf(format, args...)}
}

// builder collects handlers and pending literal text.
type builder struct {
	handlers []handler
	text     strings.Builder
	textLine int

	// defines and params are collected instead of compiled inside a
	// template client.
	defines map[string][]handler
	params  *[]*paramHandler
}

func (b *builder) write(s string, line int) {
	if b.text.Len() == 0 {
		b.textLine = line
	}

	b.text.WriteString(s)
}

func (c *compiler) children(n *node) ([]handler, error) {
	b := &builder{}
	if err := c.into(n, b); err != nil {
		return nil, err
	}

	if err := c.flush(b); err != nil {
		return nil, err
	}

	return b.handlers, nil
}

func literal(n *node) bool {
	switch n.ns {
	case NamespaceHTML, NamespaceCore, NamespaceFacelets, NamespaceJSTL, NamespaceComposite:
		return false
	}

	_, lib := compositeLibrary(n.ns)

	return !lib
}

func (c *compiler) into(n *node, b *builder) error {
	for _, k := range n.children {
		switch {
		case k.text:
			b.write(k.raw, k.line)
		case literal(k):
			b.write(literalStartTag(k), k.line)

			if err := c.into(k, b); err != nil {
				return err
			}

			b.write(k.closing, k.line)
		case b.defines != nil && k.isElement(NamespaceFacelets, "define"):
			name, _ := k.attr("name")

			hs, err := c.children(k)
			if err != nil {
				return err
			}

			b.defines[name] = hs
		case b.params != nil && k.isElement(NamespaceFacelets, "param"):
			*b.params = append(*b.params, c.param(k))
		default:
			if err := c.flush(b); err != nil {
				return err
			}

			h, err := c.element(k)
			if err != nil {
				return err
			}

			if h != nil {
				b.handlers = append(b.handlers, h)
			}
		}
	}

	return nil
}

// flush turns pending text into text handlers. Whitespace only runs are dropped.
func (c *compiler) flush(b *builder) error {
	s := b.text.String()
	b.text.Reset()

	if strings.TrimSpace(s) == "" {
		return nil
	}

	segs, err := splitText(s)
	if err != nil {
		return &TemplateError{Path: c.path, Line: b.textLine, Err: err}
	}

	for _, seg := range segs {
		b.handlers = append(b.handlers, &textHandler{mark: c.mark(), text: seg.text, expr: seg.expr, line: b.textLine})
	}

	return nil
}

func (c *compiler) element(n *node) (handler, error) {
	switch n.ns {
	case NamespaceHTML:
		return c.html(n)
	case NamespaceCore:
		return c.core(n)
	case NamespaceFacelets:
		return c.facelets(n)
	case NamespaceJSTL:
		return c.jstl(n)
	case NamespaceComposite:
		switch n.name {
		case "insertchildren":
			return &insertChildrenHandler{line: n.line}, nil
		case "interface", "implementation":
			return nil, nil
		}
	default:
		if lib, ok := compositeLibrary(n.ns); ok {
			return c.compositeUsage(n, lib)
		}
	}

	return nil, c.errorf(n.line, "unknown tag <%s>", n.rawName)
}

func (c *compiler) component(n *node, componentType string) (*componentHandler, error) {
	children, err := c.children(n)
	if err != nil {
		return nil, err
	}

	return &componentHandler{
		mark:          c.mark(),
		tag:           n.rawName,
		componentType: componentType,
		attrs:         n.attrs,
		children:      children,
		line:          n.line,
	}, nil
}

func (c *compiler) html(n *node) (handler, error) {
	switch n.name {
	case "outputscript":
		h, err := c.component(n, component.TypeOutputScript)
		if err != nil {
			return nil, err
		}

		return &resourceHandler{componentHandler: *h, script: true}, nil
	case "outputstylesheet":
		h, err := c.component(n, component.TypeOutputStylesheet)
		if err != nil {
			return nil, err
		}

		return &resourceHandler{componentHandler: *h}, nil
	}

	if t, ok := componentTag(NamespaceHTML, n.name); ok {
		return c.component(n, t)
	}

	return nil, c.errorf(n.line, "unknown tag <%s>", n.rawName)
}

func (c *compiler) core(n *node) (handler, error) {
	switch n.name {
	case "facet":
		return c.facet(n)
	case "view":
		children, err := c.children(n)
		if err != nil {
			return nil, err
		}

		return &groupHandler{children: children}, nil
	case "phaselistener":
		binding, ok := n.attr("binding")
		if !ok {
			return nil, c.errorf(n.line, "f:phaseListener needs a binding")
		}

		return &phaseListenerHandler{binding: binding, line: n.line}, nil
	case "validator", "validatelength", "validaterequired", "validateregex", "converter",
		"actionlistener", "valuechangelistener", "setpropertyactionlistener":
		return c.attached(n)
	}

	if t, ok := componentTag(NamespaceCore, n.name); ok {
		return c.component(n, t)
	}

	return nil, c.errorf(n.line, "unknown tag <%s>", n.rawName)
}

func (c *compiler) facet(n *node) (handler, error) {
	name, ok := n.attr("name")
	if !ok || name == "" {
		return nil, c.errorf(n.line, "f:facet needs a name")
	}

	children, err := c.children(n)
	if err != nil {
		return nil, err
	}

	single := false
	if len(children) == 1 {
		switch children[0].(type) {
		case *componentHandler, *textHandler, *compositeHandler:
			single = true
		}
	}

	return &facetHandler{mark: c.mark(), name: name, children: children, wrap: !single, line: n.line}, nil
}

func (c *compiler) attached(n *node) (handler, error) {
	h := &attachedHandler{
		mark:    c.mark(),
		tag:     n.rawName,
		params:  map[string]string{},
		methods: map[string]bool{},
		line:    n.line,
	}

	for _, a := range n.attrs {
		switch a.name {
		case "for":
			h.forName = a.value
		case "validatorId", "converterId":
		default:
			h.params[a.name] = a.value
		}
	}

	method := func(from, to string) {
		if v, ok := h.params[from]; ok {
			delete(h.params, from)
			h.params[to] = v
			h.methods[to] = true
		}
	}

	switch n.name {
	case "validator":
		h.role = component.RoleValidator
		h.kind, _ = n.attr("validatorId")
	case "validatelength":
		h.role, h.kind = component.RoleValidator, component.KindLengthValidator
	case "validaterequired":
		h.role, h.kind = component.RoleValidator, component.KindRequiredValidator
	case "validateregex":
		h.role, h.kind = component.RoleValidator, component.KindRegexValidator
	case "converter":
		h.role = component.RoleConverter
		h.kind, _ = n.attr("converterId")
	case "actionlistener":
		h.role, h.kind = component.RoleActionListener, component.KindMethodAction
		method("binding", "method")
	case "valuechangelistener":
		h.role, h.kind = component.RoleValueChangeListener, component.KindMethodValueChange
		method("binding", "method")
	case "setpropertyactionlistener":
		h.role, h.kind = component.RoleActionListener, component.KindPropertyActionSetter
		method("target", "target")
		method("value", "value")
	}

	if h.kind == "" {
		return nil, c.errorf(n.line, "<%s> needs an id", n.rawName)
	}

	return h, nil
}

func (c *compiler) facelets(n *node) (handler, error) {
	switch n.name {
	case "include":
		src, ok := n.attr("src")
		if !ok {
			return nil, c.errorf(n.line, "ui:include needs a src")
		}

		h := &includeHandler{mark: c.mark(), src: src, line: n.line}

		for _, k := range n.children {
			if k.isElement(NamespaceFacelets, "param") {
				h.params = append(h.params, c.param(k))
			}
		}

		return h, nil
	case "composition", "component", "fragment":
		if _, ok := n.attr("template"); ok && n.name == "composition" {
			return c.composition(n)
		}

		children, err := c.children(n)
		if err != nil {
			return nil, err
		}

		return &groupHandler{children: children}, nil
	case "insert":
		name, _ := n.attr("name")

		children, err := c.children(n)
		if err != nil {
			return nil, err
		}

		return &insertHandler{mark: c.mark(), name: name, children: children}, nil
	case "define", "param", "remove", "debug":
		return nil, nil
	}

	return nil, c.errorf(n.line, "unknown tag <%s>", n.rawName)
}

func (c *compiler) param(n *node) *paramHandler {
	name, _ := n.attr("name")
	value, _ := n.attr("value")

	return &paramHandler{name: name, value: value}
}

// composition compiles a template client. Content outside ui:define is
// available to a ui:insert without name.
func (c *compiler) composition(n *node) (handler, error) {
	template, _ := n.attr("template")

	var params []*paramHandler

	b := &builder{defines: map[string][]handler{}, params: &params}
	if err := c.into(n, b); err != nil {
		return nil, err
	}

	if err := c.flush(b); err != nil {
		return nil, err
	}

	if _, ok := b.defines[""]; !ok {
		b.defines[""] = b.handlers
	}

	return &compositionHandler{mark: c.mark(), template: template, defines: b.defines, params: params, line: n.line}, nil
}

func (c *compiler) jstl(n *node) (handler, error) {
	switch n.name {
	case "if":
		test, ok := n.attr("test")
		if !ok {
			return nil, c.errorf(n.line, "c:if needs a test")
		}

		children, err := c.children(n)
		if err != nil {
			return nil, err
		}

		return &ifHandler{test: test, children: children, line: n.line}, nil
	case "foreach":
		children, err := c.children(n)
		if err != nil {
			return nil, err
		}

		h := &forEachHandler{mark: c.mark(), children: children, line: n.line}
		h.items, _ = n.attr("items")
		h.varName, _ = n.attr("var")
		h.begin, _ = n.attr("begin")
		h.end, _ = n.attr("end")
		h.step, _ = n.attr("step")

		return h, nil
	}

	return nil, c.errorf(n.line, "unknown tag <%s>", n.rawName)
}

// compositeUsage compiles a composite component tag. Facets and attached
// objects belong to the composite itself; other content is inserted by
// cc:insertChildren.
func (c *compiler) compositeUsage(n *node, lib string) (handler, error) {
	h := &compositeHandler{mark: c.mark(), lib: lib, name: n.rawName, attrs: n.attrs, line: n.line}

	b := &builder{}
	if err := c.into(n, b); err != nil {
		return nil, err
	}

	if err := c.flush(b); err != nil {
		return nil, err
	}

	for _, k := range b.handlers {
		switch k.(type) {
		case *facetHandler, *attachedHandler:
			h.own = append(h.own, k)
		default:
			h.children = append(h.children, k)
		}
	}

	return h, nil
}
