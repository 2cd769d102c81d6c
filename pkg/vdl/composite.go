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
	"errors"
	"fmt"
	"strings"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

// CompositeLibraryRoot is the directory holding composite libraries, one
// subdirectory per library.
const CompositeLibraryRoot = "/resources"

// CompositeAttribute is a cc:attribute declaration.
type CompositeAttribute struct {
	Name     string
	Default  string
	Required bool
}

// CompositeTarget exposes inner components for attached objects of the
// usage tag: cc:actionSource, cc:editableValueHolder or cc:valueHolder.
type CompositeTarget struct {
	Name    string
	Kind    component.Capability
	Targets []string
}

// ids returns the inner component ids, the name if none are listed.
func (t CompositeTarget) ids() []string {
	if len(t.Targets) == 0 {
		return []string{t.Name}
	}

	return t.Targets
}

func (t CompositeTarget) accepts(role string) bool {
	switch role {
	case component.RoleActionListener:
		return t.Kind == component.CapActionSource
	case component.RoleValidator, component.RoleValueChangeListener:
		return t.Kind == component.CapEditableValueHolder
	case component.RoleConverter:
		return t.Kind == component.CapValueHolder || t.Kind == component.CapEditableValueHolder
	}

	return false
}

// CompositeMetadata is the cc:interface of a composite component.
type CompositeMetadata struct {
	Attributes []CompositeAttribute
	Targets    []CompositeTarget
}

// Target picks the target of an attached object: the target named forName
// if given, otherwise the first target accepting role.
func (m *CompositeMetadata) Target(role, forName string) (CompositeTarget, bool) {
	for _, t := range m.Targets {
		if forName != "" {
			if t.Name == forName {
				return t, true
			}

			continue
		}

		if t.accepts(role) {
			return t, true
		}
	}

	return CompositeTarget{}, false
}

func compositePath(lib, name string) string {
	return CompositeLibraryRoot + "/" + lib + "/" + name + ".xhtml"
}

// compositeHandler is the usage tag of a composite component.
type compositeHandler struct {
	mark  string
	lib   string
	name  string
	attrs []attribute
	// own holds facets and attached objects of the usage tag.
	own []handler
	// children are inserted by cc:insertChildren.
	children []handler
	line     int
}

func (h *compositeHandler) has(name string) bool {
	for _, a := range h.attrs {
		if a.name == name {
			return true
		}
	}

	return false
}

func (h *compositeHandler) apply(fc *faceletContext, parent *component.Component) error {
	p := compositePath(h.lib, h.name)

	f, err := fc.vdl.cache.Facelet(fc.ctx, p)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	if f.composite == nil || !f.hasImplementation {
		return fc.errorf(h.line, fmt.Errorf("%w: %s needs cc:interface and cc:implementation", ErrCompositeMetadata, p))
	}

	for _, a := range f.composite.Attributes {
		if a.Required && !h.has(a.Name) {
			return fc.errorf(h.line, fmt.Errorf("%w: %s requires attribute %s", ErrCompositeMetadata, p, a.Name))
		}
	}

	mark := fc.mark(h.mark)
	usage := &componentHandler{mark: h.mark, tag: h.lib + ":" + h.name, componentType: component.TypeComposite, attrs: h.attrs, line: h.line}

	c, created, err := fc.place(parent, mark, h.line, func() (*component.Component, error) {
		return usage.create(fc)
	})
	if err != nil {
		return err
	}

	if created {
		if err := configure(fc, c, mark, h.attrs, "id", "binding"); err != nil {
			return fc.errorf(h.line, err)
		}

		for _, a := range f.composite.Attributes {
			if h.has(a.Name) || a.Default == "" {
				continue
			}

			if el.IsLiteralText(a.Default) {
				c.SetAttr(a.Name, a.Default)
			} else {
				c.SetValueExpression(a.Name, el.NewValueExpression(a.Default))
			}
		}
	}

	if err := bind(fc, c, h.attrs); err != nil {
		return fc.errorf(h.line, err)
	}

	fc.metas[c] = f.composite

	release := fc.elContext().PushComponent(c)
	defer release()

	if err := applyAll(fc, h.own, c); err != nil {
		return err
	}

	frame := &compositeFrame{component: c, children: h.children, caller: fc.scopeState}

	state := fc.scopeState
	state.prefix = fc.prefix + h.mark + "/"
	state.vars = nil
	state.clients = nil
	state.composites = append(append([]*compositeFrame(nil), fc.composites...), frame)

	restore := fc.enter(state)
	defer restore()

	return fc.applyHandlers(f.Path, f.implementation, c)
}

// insertChildrenHandler is cc:insertChildren.
type insertChildrenHandler struct {
	line int
}

func (h *insertChildrenHandler) apply(fc *faceletContext, parent *component.Component) error {
	if len(fc.composites) == 0 {
		return fc.errorf(h.line, errors.New("cc:insertChildren outside of a composite component"))
	}

	frame := fc.composites[len(fc.composites)-1]

	state := frame.caller
	state.depth = fc.depth

	restore := fc.enter(state)
	defer restore()

	return applyAll(fc, frame.children, parent)
}

// retarget attaches the objects declared on composite usages to the inner
// components the composites expose. It runs after the whole view is built
// so the targets exist.
func (fc *faceletContext) retarget() error {
	for i := 0; i < len(fc.retargets); i++ {
		r := fc.retargets[i]

		t, ok := r.meta.Target(r.handler.role, r.handler.forName)
		if !ok {
			fc.vdl.log.Debugf("No target for <%s> in composite %s", r.handler.tag, r.composite.ClientID())

			continue
		}

		for _, id := range t.ids() {
			target := r.composite.FindComponent(id)
			if target == nil {
				return &TemplateError{Path: r.state.path, Line: r.handler.line,
					Err: fmt.Errorf("%w: target %q of %s not found in %s", ErrCompositeMetadata, id, t.Name, r.composite.ClientID())}
			}

			if target.Has(component.CapComposite) {
				meta, ok := fc.metas[target]
				if !ok {
					return &TemplateError{Path: r.state.path, Line: r.handler.line,
						Err: fmt.Errorf("%w: no metadata for %s", ErrCompositeMetadata, target.ClientID())}
				}

				next := r
				next.composite = target
				next.meta = meta
				fc.retargets = append(fc.retargets, next)

				continue
			}

			if err := fc.attachIn(r, target); err != nil {
				return err
			}
		}
	}

	return nil
}

func (fc *faceletContext) attachIn(r retarget, target *component.Component) error {
	restore := fc.enter(r.state)
	defer restore()

	if err := r.handler.attach(fc, target, r.mark); err != nil {
		return fc.errorf(r.handler.line, err)
	}

	return nil
}

// compileInterface reads the declarations of a cc:interface element.
func compileInterface(n *node) *CompositeMetadata {
	meta := &CompositeMetadata{}

	for _, k := range n.children {
		if k.text || k.ns != NamespaceComposite {
			continue
		}

		name, _ := k.attr("name")

		switch k.name {
		case "attribute":
			def, _ := k.attr("default")
			req, _ := k.attr("required")
			meta.Attributes = append(meta.Attributes, CompositeAttribute{Name: name, Default: def, Required: req == "true"})
		case "actionsource", "editablevalueholder", "valueholder":
			kind := component.CapValueHolder

			switch k.name {
			case "actionsource":
				kind = component.CapActionSource
			case "editablevalueholder":
				kind = component.CapEditableValueHolder
			}

			targets, _ := k.attr("targets")
			meta.Targets = append(meta.Targets, CompositeTarget{Name: name, Kind: kind, Targets: strings.Fields(targets)})
		}
	}

	return meta
}
