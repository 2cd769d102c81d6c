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

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

// groupHandler applies its children in place.
type groupHandler struct {
	children []handler
}

func (h *groupHandler) apply(fc *faceletContext, parent *component.Component) error {
	return applyAll(fc, h.children, parent)
}

// textHandler emits template text. Expressions are evaluated and escaped
// when rendered; literal markup is written as is.
type textHandler struct {
	mark string
	text string
	expr bool
	line int
}

func (h *textHandler) apply(fc *faceletContext, parent *component.Component) error {
	_, _, err := fc.place(parent, fc.mark(h.mark), h.line, func() (*component.Component, error) {
		c := component.MustNew(component.TypeInstructions)
		c.SetTransient(true)

		if h.expr {
			c.SetValueExpression("text", fc.expression(h.text))
			c.SetAttr("escape", true)
		} else {
			c.SetAttr("text", h.text)
		}

		return c, nil
	})

	return err
}

// componentHandler creates a component from a tag.
type componentHandler struct {
	mark          string
	tag           string
	componentType string
	attrs         []attribute
	children      []handler
	line          int
}

func (h *componentHandler) attr(name string) (string, bool) {
	for _, a := range h.attrs {
		if a.name == name {
			return a.value, true
		}
	}

	return "", false
}

func (h *componentHandler) create(fc *faceletContext) (*component.Component, error) {
	c, err := component.NewOf(h.componentType)
	if err != nil {
		return nil, err
	}

	if raw, ok := h.attr("id"); ok {
		id, err := fc.evalString(raw)
		if err != nil {
			return nil, fmt.Errorf("id of <%s>: %w", h.tag, err)
		}

		if err := c.SetID(id); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (h *componentHandler) apply(fc *faceletContext, parent *component.Component) error {
	mark := fc.mark(h.mark)

	c, created, err := fc.place(parent, mark, h.line, func() (*component.Component, error) {
		return h.create(fc)
	})
	if err != nil {
		return err
	}

	if created {
		if err := configure(fc, c, mark, h.attrs, "id", "binding"); err != nil {
			return fc.errorf(h.line, fmt.Errorf("<%s>: %w", h.tag, err))
		}
	}

	if err := bind(fc, c, h.attrs); err != nil {
		return fc.errorf(h.line, err)
	}

	release := fc.elContext().PushComponent(c)
	defer release()

	return applyAll(fc, h.children, c)
}

// configure copies tag attributes to a new component. Literal values
// become attributes, expressions bindings. Listener, validator and
// converter attributes attach objects.
func configure(fc *faceletContext, c *component.Component, mark string, attrs []attribute, skip ...string) error {
	skipped := func(name string) bool {
		for _, s := range skip {
			if s == name {
				return true
			}
		}

		return false
	}

	for _, a := range attrs {
		if skipped(a.name) {
			continue
		}

		switch a.name {
		case "validator":
			c.AddValidator(mark+"@validator", component.MethodValidator{Method: fc.expression(a.value)})
		case "actionListener":
			c.AddActionListener(mark+"@actionListener", component.MethodActionListener{Method: fc.expression(a.value)})
		case "valueChangeListener":
			c.AddValueChangeListener(mark+"@valueChangeListener", component.MethodValueChangeListener{Method: fc.expression(a.value)})
		case "converter":
			conv, err := converterFor(fc, a.value)
			if err != nil {
				return err
			}

			c.SetConverter(mark+"@converter", conv)
		default:
			if el.IsLiteralText(a.value) {
				c.SetAttr(a.name, a.value)
			} else {
				c.SetValueExpression(a.name, fc.expression(a.value))
			}
		}
	}

	return nil
}

// converterFor resolves a converter attribute: a registered converter id,
// or an expression yielding a converter or an id.
func converterFor(fc *faceletContext, value string) (component.Converter, error) {
	v, err := fc.eval(value)
	if err != nil {
		return nil, fmt.Errorf("converter: %w", err)
	}

	if conv, ok := v.(component.Converter); ok {
		return conv, nil
	}

	obj, err := component.NewAttached(el.ToString(v), nil)
	if err != nil {
		return nil, fmt.Errorf("converter: %w", err)
	}

	conv, ok := obj.(component.Converter)
	if !ok {
		return nil, fmt.Errorf("converter: %s is a %T", el.ToString(v), obj)
	}

	return conv, nil
}

// bind stores c into the binding expression of the tag on every build.
func bind(fc *faceletContext, c *component.Component, attrs []attribute) error {
	for _, a := range attrs {
		if a.name != "binding" {
			continue
		}

		if err := fc.expression(a.value).SetValue(fc.elContext(), c); err != nil {
			return fmt.Errorf("binding %s: %w", a.value, err)
		}
	}

	return nil
}

// facetHandler places its content in a named facet. Content that is not a
// single component is wrapped in a panel.
type facetHandler struct {
	mark     string
	name     string
	children []handler
	wrap     bool
	line     int
}

func (h *facetHandler) apply(fc *faceletContext, parent *component.Component) error {
	defer func() { fc.facet = "" }()

	fc.facet = h.name

	if !h.wrap {
		return applyAll(fc, h.children, parent)
	}

	panel, _, err := fc.place(parent, fc.mark(h.mark), h.line, func() (*component.Component, error) {
		return component.NewOf(component.TypePanel)
	})
	if err != nil {
		return err
	}

	release := fc.elContext().PushComponent(panel)
	defer release()

	return applyAll(fc, h.children, panel)
}

// resourceHandler adds a script or stylesheet to a resource target of the
// view. A script without target is rendered where it appears.
type resourceHandler struct {
	componentHandler
	script bool
}

func (h *resourceHandler) apply(fc *faceletContext, parent *component.Component) error {
	target := ""
	if raw, ok := h.attr("target"); ok {
		t, err := fc.evalString(raw)
		if err != nil {
			return fc.errorf(h.line, err)
		}

		target = t
	}

	if target == "" {
		if h.script {
			return h.componentHandler.apply(fc, parent)
		}

		target = constants.TargetHead
	}

	mark := fc.mark(h.mark)
	for _, r := range fc.root.ComponentResources(target) {
		if r.MarkID() == mark {
			r.Touch(fc.gen)

			return nil
		}
	}

	c, err := component.NewOf(h.componentType)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	c.SetMarkID(mark)
	c.Touch(fc.gen)

	if err := c.SetID(fc.root.CreateUniqueID(seed(mark))); err != nil {
		return fc.errorf(h.line, err)
	}

	if err := configure(fc, c, mark, h.attrs, "id", "binding", "target"); err != nil {
		return fc.errorf(h.line, err)
	}

	if _, err := fc.root.AddComponentResource(fc.fctx, c, target); err != nil {
		return fc.errorf(h.line, err)
	}

	return nil
}

// attachedHandler attaches a converter, validator or listener to its parent.
// Inside a composite component usage the attachment is retargeted to the
// components the composite exposes.
type attachedHandler struct {
	mark    string
	tag     string
	kind    string
	role    string
	params  map[string]string
	methods map[string]bool
	forName string
	line    int
}

func (h *attachedHandler) apply(fc *faceletContext, parent *component.Component) error {
	mark := fc.mark(h.mark)

	if parent.Has(component.CapComposite) {
		meta, ok := fc.metas[parent]
		if !ok {
			return fc.errorf(h.line, fmt.Errorf("%w: no metadata for %s", ErrCompositeMetadata, parent.ClientID()))
		}

		fc.retargets = append(fc.retargets, retarget{
			handler:   h,
			composite: parent,
			meta:      meta,
			mark:      mark,
			state:     fc.scopeState,
		})

		return nil
	}

	if err := h.attach(fc, parent, mark); err != nil {
		return fc.errorf(h.line, err)
	}

	return nil
}

var errNotApplicable = errors.New("not applicable to component")

func (h *attachedHandler) attach(fc *faceletContext, c *component.Component, mark string) error {
	if c.HasAttachedMark(mark) {
		return nil
	}

	params := make(map[string]string, len(h.params))

	for name, raw := range h.params {
		if h.methods[name] {
			params[name] = raw

			continue
		}

		v, err := fc.evalString(raw)
		if err != nil {
			return fmt.Errorf("<%s> %s: %w", h.tag, name, err)
		}

		params[name] = v
	}

	obj, err := component.NewAttached(h.kind, params)
	if err != nil {
		return fmt.Errorf("<%s>: %w", h.tag, err)
	}

	switch h.role {
	case component.RoleValidator:
		v, ok := obj.(component.Validator)
		if !ok || !c.Has(component.CapEditableValueHolder) {
			return fmt.Errorf("<%s> on %s: %w", h.tag, c, errNotApplicable)
		}

		c.AddValidator(mark, v)
	case component.RoleConverter:
		conv, ok := obj.(component.Converter)
		if !ok || !c.Has(component.CapValueHolder) {
			return fmt.Errorf("<%s> on %s: %w", h.tag, c, errNotApplicable)
		}

		c.SetConverter(mark, conv)
	case component.RoleActionListener:
		l, ok := obj.(component.ActionListener)
		if !ok || !c.Has(component.CapActionSource) {
			return fmt.Errorf("<%s> on %s: %w", h.tag, c, errNotApplicable)
		}

		c.AddActionListener(mark, l)
	case component.RoleValueChangeListener:
		l, ok := obj.(component.ValueChangeListener)
		if !ok || !c.Has(component.CapEditableValueHolder) {
			return fmt.Errorf("<%s> on %s: %w", h.tag, c, errNotApplicable)
		}

		c.AddValueChangeListener(mark, l)
	}

	return nil
}

// phaseListenerHandler registers a view phase listener once per view.
type phaseListenerHandler struct {
	binding string
	line    int
}

func (h *phaseListenerHandler) apply(fc *faceletContext, _ *component.Component) error {
	v, err := fc.eval(h.binding)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	l, ok := v.(component.PhaseListener)
	if !ok {
		return fc.errorf(h.line, fmt.Errorf("phase listener binding %s yields %T", h.binding, v))
	}

	for _, existing := range fc.root.PhaseListeners() {
		if component.SameListener(existing, l) {
			return nil
		}
	}

	fc.root.AddPhaseListener(l)

	return nil
}
