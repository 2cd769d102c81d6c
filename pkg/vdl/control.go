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
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

// resolvePath resolves src against the facelet at current.
func resolvePath(current, src string) string {
	if strings.HasPrefix(src, "/") {
		return path.Clean(src)
	}

	return path.Join(path.Dir(current), src)
}

// ifHandler is c:if.
type ifHandler struct {
	test     string
	children []handler
	line     int
}

func (h *ifHandler) apply(fc *faceletContext, parent *component.Component) error {
	fc.dynamic = true

	v, err := fc.eval(h.test)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	ok, err := el.ToBool(v)
	if err != nil {
		return fc.errorf(h.line, fmt.Errorf("test %s: %w", h.test, err))
	}

	if !ok {
		return nil
	}

	return applyAll(fc, h.children, parent)
}

// forEachHandler is c:forEach over items or a begin..end range.
type forEachHandler struct {
	mark     string
	items    string
	varName  string
	begin    string
	end      string
	step     string
	children []handler
	line     int
}

func (h *forEachHandler) intAttr(fc *faceletContext, name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}

	v, err := fc.eval(raw)
	if err != nil {
		return 0, err
	}

	n, err := el.ToInt(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}

	return n, nil
}

func (h *forEachHandler) apply(fc *faceletContext, parent *component.Component) error {
	fc.dynamic = true

	body := ""
	count := -1

	if h.items != "" {
		var ok bool
		if body, ok = singleExpression(h.items); !ok {
			return fc.errorf(h.line, fmt.Errorf("items %q is not an expression", h.items))
		}

		items, err := fc.eval(h.items)
		if err != nil {
			return fc.errorf(h.line, err)
		}

		count, err = length(items)
		if err != nil {
			return fc.errorf(h.line, err)
		}
	}

	begin, err := h.intAttr(fc, "begin", h.begin, 0)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	end, err := h.intAttr(fc, "end", h.end, count-1)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	step, err := h.intAttr(fc, "step", h.step, 1)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	if step < 1 {
		return fc.errorf(h.line, errors.New("step must be positive"))
	}

	if count >= 0 && end > count-1 {
		end = count - 1
	}

	for i := begin; i <= end; i += step {
		if err := h.iterate(fc, parent, body, i); err != nil {
			return err
		}
	}

	return nil
}

func (h *forEachHandler) iterate(fc *faceletContext, parent *component.Component, body string, i int) error {
	index := strconv.Itoa(i)

	restorePrefix := fc.withPrefix(h.mark + "[" + index + "]")
	defer restorePrefix()

	if h.varName != "" {
		expr := index
		if body != "" {
			expr = body + "[" + index + "]"
		}

		restoreVar := fc.withVar(h.varName, expr)
		defer restoreVar()
	}

	return applyAll(fc, h.children, parent)
}

func length(items any) (int, error) {
	if items == nil {
		return 0, nil
	}

	rv := reflect.ValueOf(items)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), nil
	}

	return 0, fmt.Errorf("cannot iterate over %T", items)
}

// paramHandler is ui:param inside ui:include or a template client.
type paramHandler struct {
	name  string
	value string
}

// bind makes the parameter visible to the facelet applied next.
func (h *paramHandler) bind(fc *faceletContext) (restore func(), err error) {
	if body, ok := singleExpression(h.value); ok {
		return fc.withVar(h.name, body), nil
	}

	v, err := fc.evalString(h.value)
	if err != nil {
		return nil, fmt.Errorf("param %s: %w", h.name, err)
	}

	return fc.withVar(h.name, literalValue(v)), nil
}

func bindParams(fc *faceletContext, params []*paramHandler) (restore func(), err error) {
	restores := make([]func(), 0, len(params))
	undo := func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}

	for _, p := range params {
		r, err := p.bind(fc)
		if err != nil {
			undo()

			return nil, err
		}

		restores = append(restores, r)
	}

	return undo, nil
}

// includeHandler is ui:include.
type includeHandler struct {
	mark   string
	src    string
	params []*paramHandler
	line   int
}

func (h *includeHandler) apply(fc *faceletContext, parent *component.Component) error {
	if !el.IsLiteralText(h.src) {
		fc.dynamic = true
	}

	src, err := fc.evalString(h.src)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	if src == "" {
		return nil
	}

	target := resolvePath(fc.path, src)

	f, err := fc.vdl.cache.Facelet(fc.ctx, target)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	restoreParams, err := bindParams(fc, h.params)
	if err != nil {
		return fc.errorf(h.line, err)
	}
	defer restoreParams()

	restorePrefix := fc.withPrefix(h.mark + "(" + target + ")")
	defer restorePrefix()

	return fc.applyFacelet(f, parent)
}

// compositionHandler is ui:composition with a template: it applies the
// template with its ui:define content available to ui:insert.
type compositionHandler struct {
	mark     string
	template string
	defines  map[string][]handler
	params   []*paramHandler
	line     int
}

func (h *compositionHandler) apply(fc *faceletContext, parent *component.Component) error {
	src, err := fc.evalString(h.template)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	target := resolvePath(fc.path, src)

	f, err := fc.vdl.cache.Facelet(fc.ctx, target)
	if err != nil {
		return fc.errorf(h.line, err)
	}

	client := &templateClient{defines: h.defines, state: fc.scopeState}

	state := fc.scopeState
	state.clients = append(append([]*templateClient(nil), fc.clients...), client)
	state.prefix = fc.prefix + h.mark + "/"

	restore := fc.enter(state)
	defer restore()

	restoreParams, err := bindParams(fc, h.params)
	if err != nil {
		return fc.errorf(h.line, err)
	}
	defer restoreParams()

	return fc.applyFacelet(f, parent)
}

// insertHandler is ui:insert. The outermost template client defining the
// name wins; without a definition the handler's own content is applied.
type insertHandler struct {
	mark     string
	name     string
	children []handler
}

func (h *insertHandler) apply(fc *faceletContext, parent *component.Component) error {
	for _, client := range fc.clients {
		defined, ok := client.defines[h.name]
		if !ok {
			continue
		}

		state := client.state
		state.prefix = fc.prefix + h.mark + "/"
		state.depth = fc.depth

		restore := fc.enter(state)
		defer restore()

		return applyAll(fc, defined, parent)
	}

	return applyAll(fc, h.children, parent)
}
