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
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

const maxIncludeDepth = 64

// seedSpace bounds the seeds of generated ids to eight base-36 digits.
const seedSpace = 2821109907456

// handler is a compiled tag.
type handler interface {
	apply(fc *faceletContext, parent *component.Component) error
}

// templateClient provides ui:define content to the templates it uses.
type templateClient struct {
	defines map[string][]handler
	state   scopeState
}

// compositeFrame is a composite component being applied.
type compositeFrame struct {
	component *component.Component
	// children of the usage tag, applied at cc:insertChildren.
	children []handler
	caller   scopeState
}

// scopeState is the part of the context that follows the facelet being applied.
type scopeState struct {
	path       string
	prefix     string
	vars       []el.VarMapping
	clients    []*templateClient
	composites []*compositeFrame
	depth      int
}

// retarget is an attached object handler found inside a composite usage.
type retarget struct {
	handler   *attachedHandler
	composite *component.Component
	meta      *CompositeMetadata
	mark      string
	state     scopeState
}

// faceletContext carries the state of one build.
type faceletContext struct {
	ctx  context.Context
	vdl  *FaceletsVDL
	fctx component.Context
	root *component.ViewRoot
	gen  uint64

	scopeState

	// facet is consumed by the next component placed.
	facet string
	// placed is the last component placed under each parent.
	placed    map[*component.Component]*component.Component
	metas     map[*component.Component]*CompositeMetadata
	retargets []retarget
	dynamic   bool
}

func newFaceletContext(ctx context.Context, v *FaceletsVDL, fctx component.Context, root *component.ViewRoot, gen uint64) *faceletContext {
	return &faceletContext{
		ctx:    ctx,
		vdl:    v,
		fctx:   fctx,
		root:   root,
		gen:    gen,
		placed: map[*component.Component]*component.Component{},
		metas:  map[*component.Component]*CompositeMetadata{},
	}
}

func (fc *faceletContext) elContext() *el.Context { return fc.fctx.ELContext() }

// enter switches to state and returns a function restoring the previous one.
func (fc *faceletContext) enter(state scopeState) (restore func()) {
	prev := fc.scopeState
	fc.scopeState = state

	return func() { fc.scopeState = prev }
}

// applyFacelet applies the root handlers of f with f as the current facelet.
func (fc *faceletContext) applyFacelet(f *Facelet, parent *component.Component) error {
	return fc.applyHandlers(f.Path, f.handlers, parent)
}

func (fc *faceletContext) applyHandlers(path string, handlers []handler, parent *component.Component) error {
	if fc.depth >= maxIncludeDepth {
		return &TemplateError{Path: path, Err: errors.New("include depth exceeded")}
	}

	state := fc.scopeState
	state.path = path
	state.depth++

	restore := fc.enter(state)
	defer restore()

	return applyAll(fc, handlers, parent)
}

func applyAll(fc *faceletContext, handlers []handler, parent *component.Component) error {
	for _, h := range handlers {
		if err := h.apply(fc, parent); err != nil {
			return err
		}
	}

	return nil
}

// mark returns the build mark of a compiled handler mark.
func (fc *faceletContext) mark(static string) string {
	return fc.prefix + static
}

// withPrefix extends the mark prefix for a nested application.
func (fc *faceletContext) withPrefix(part string) (restore func()) {
	state := fc.scopeState
	state.prefix = fc.prefix + part + "/"

	return fc.enter(state)
}

// withVar binds name to the value of expr for captured expressions.
func (fc *faceletContext) withVar(name, expr string) (restore func()) {
	state := fc.scopeState
	state.vars = append(append([]el.VarMapping(nil), fc.vars...), el.VarMapping{Name: name, Expr: expr})

	return fc.enter(state)
}

// expression captures text with the variables in scope.
func (fc *faceletContext) expression(text string) el.ValueExpression {
	return el.ValueExpression{Expr: text, Vars: fc.vars}
}

// eval evaluates attribute text. Literal text is returned as is.
func (fc *faceletContext) eval(text string) (any, error) {
	if el.IsLiteralText(text) {
		return text, nil
	}

	return fc.expression(text).GetValue(fc.elContext())
}

func (fc *faceletContext) evalString(text string) (string, error) {
	v, err := fc.eval(text)
	if err != nil {
		return "", err
	}

	return el.ToString(v), nil
}

func (fc *faceletContext) errorf(line int, err error) error {
	var te *TemplateError
	if errors.As(err, &te) {
		return err
	}

	return &TemplateError{Path: fc.path, Line: line, Err: err}
}

// seed derives the deterministic id seed of a mark.
func seed(mark string) string {
	return "t" + strconv.FormatUint(xxhash.Sum64String(mark)%seedSpace, 36)
}

// place returns the component with mark under parent, creating it with
// create when the template did not produce it before. New components get a
// seeded id and are inserted after the component placed last.
func (fc *faceletContext) place(parent *component.Component, mark string, line int, create func() (*component.Component, error)) (*component.Component, bool, error) {
	facetName := fc.facet
	fc.facet = ""

	if facetName != "" {
		if f := parent.Facet(facetName); f != nil && f.MarkID() == mark {
			f.Touch(fc.gen)

			return f, false, nil
		}
	} else {
		for _, k := range parent.Children() {
			if k.MarkID() == mark {
				k.Touch(fc.gen)
				fc.placed[parent] = k

				return k, false, nil
			}
		}
	}

	c, err := create()
	if err != nil {
		return nil, false, fc.errorf(line, err)
	}

	c.SetMarkID(mark)
	c.Touch(fc.gen)

	if c.ID() == "" {
		if err := c.SetID(parent.CreateUniqueID(seed(mark))); err != nil {
			return nil, false, fc.errorf(line, err)
		}
	}

	if facetName != "" {
		if err := parent.SetFacet(facetName, c); err != nil {
			return nil, false, fc.errorf(line, fmt.Errorf("facet %s: %w", facetName, err))
		}

		return c, true, nil
	}

	index := 0
	if last := fc.placed[parent]; last != nil {
		index = parent.IndexOf(last) + 1
	}

	if err := parent.InsertChild(index, c); err != nil {
		return nil, false, fc.errorf(line, err)
	}

	fc.placed[parent] = c

	return c, true, nil
}

// sweep removes the components earlier builds created that this build did
// not produce. It returns the number of removed subtrees.
func (fc *faceletContext) sweep() int {
	var stale []*component.Component

	var collect func(c *component.Component)
	collect = func(c *component.Component) {
		for _, k := range c.FacetsAndChildren() {
			if k.MarkID() != "" && k.BuildGeneration() != fc.gen {
				stale = append(stale, k)

				continue
			}

			collect(k)
		}
	}

	collect(fc.root.Component)

	for _, c := range stale {
		parent := c.Parent()
		if name, ok := parent.FacetName(c); ok {
			parent.RemoveFacet(name)
		} else {
			parent.RemoveChild(c)
		}
	}

	return len(stale)
}
