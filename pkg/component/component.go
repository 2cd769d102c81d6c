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

// Package component implements the component tree: ordered children, named
// facets, attributes and bindings, naming container id scoping, unique id
// generation, visiting, events and state capture.
package component

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

var (
	// ErrDuplicateID is returned when an id is already used in the same
	// naming container.
	ErrDuplicateID = errors.New("duplicate component id")
	ErrInvalidID   = errors.New("invalid component id")
	ErrUnknownType = errors.New("unknown component type")
	// ErrAbortProcessing stops the remaining listeners of an event.
	ErrAbortProcessing = errors.New("abort event processing")
)

type facet struct {
	name string
	c    *Component
}

type attached[T any] struct {
	mark string
	obj  T
}

// Component is a node of the view tree.
type Component struct {
	desc Descriptor

	id       string
	parent   *Component
	children []*Component
	facets   []facet

	attrs     map[string]any
	bindings  map[string]el.ValueExpression
	transient bool

	// markID identifies the template handler that created the component.
	markID   string
	buildGen uint64

	// value holders
	localValue    any
	localValueSet bool
	submitted     *string
	valid         bool

	converter            *attached[Converter]
	validators           []attached[Validator]
	valueChangeListeners []attached[ValueChangeListener]
	actionListeners      []attached[ActionListener]

	formSubmitted bool
	vendorSeq     int

	// initial is the baseline captured by MarkInitialState.
	initial *State

	view *ViewRoot
}

func newComponent(d Descriptor) *Component {
	return &Component{
		desc:  d,
		valid: true,
	}
}

func (c *Component) Type() string         { return c.desc.Type }
func (c *Component) Family() string       { return c.desc.Family }
func (c *Component) RendererType() string { return c.desc.RendererType }

// SetRendererType overrides the renderer chosen by the type descriptor.
func (c *Component) SetRendererType(t string) { c.desc.RendererType = t }

// Has reports whether c has all capabilities in caps.
func (c *Component) Has(caps Capability) bool { return c.desc.Caps&caps == caps }

// Capabilities returns the capability set.
func (c *Component) Capabilities() Capability { return c.desc.Caps }

func (c *Component) ID() string { return c.id }

// SetID changes the id. If c is attached, the id must be unique in its naming container.
func (c *Component) SetID(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	if c.parent != nil && id != c.id {
		scope := scopeOf(c.parent)
		if other := findInScope(scope, id); other != nil && other != c {
			return fmt.Errorf("%w: %q in %q", ErrDuplicateID, id, scope.ClientID())
		}
	}

	c.id = id

	return nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}

	for i, r := range id {
		letter := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_'
		if i == 0 && !letter {
			return fmt.Errorf("%w: %q must start with a letter or underscore", ErrInvalidID, id)
		}

		if !letter && !(r >= '0' && r <= '9') && r != '-' {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, r)
		}
	}

	return nil
}

func (c *Component) IsTransient() bool       { return c.transient }
func (c *Component) SetTransient(t bool)     { c.transient = t }
func (c *Component) MarkID() string          { return c.markID }
func (c *Component) SetMarkID(mark string)   { c.markID = mark }
func (c *Component) BuildGeneration() uint64 { return c.buildGen }

// Touch records that the build with generation gen produced c.
func (c *Component) Touch(gen uint64) { c.buildGen = gen }

func (c *Component) Parent() *Component { return c.parent }

// Children returns the child list. Callers must not modify it.
func (c *Component) Children() []*Component { return c.children }

func (c *Component) ChildCount() int { return len(c.children) }

// IndexOf returns the position of child, or -1.
func (c *Component) IndexOf(child *Component) int {
	for i, k := range c.children {
		if k == child {
			return i
		}
	}

	return -1
}

// AddChild appends child. See InsertChild.
func (c *Component) AddChild(child *Component) error {
	return c.InsertChild(len(c.children), child)
}

// InsertChild inserts child at index, moving it from its current parent.
// Components without an id receive a generated one. ErrDuplicateID is
// returned, and nothing changes, if an id of the inserted subtree is already
// used in the target naming container.
func (c *Component) InsertChild(index int, child *Component) error {
	if child == nil || child == c {
		return fmt.Errorf("%w: cannot add %v to itself", ErrInvalidID, child)
	}

	if err := c.adopt(child); err != nil {
		return err
	}

	if index < 0 || index > len(c.children) {
		index = len(c.children)
	}

	c.children = append(c.children, nil)
	copy(c.children[index+1:], c.children[index:])
	c.children[index] = child
	child.parent = c

	return nil
}

// adopt detaches child from its parent and checks its ids against the scope of c.
func (c *Component) adopt(child *Component) error {
	for p := c; p != nil; p = p.parent {
		if p == child {
			return fmt.Errorf("%w: %q is an ancestor of its new parent", ErrInvalidID, child.id)
		}
	}

	scope := scopeOf(c)
	assignIDs(child, vendorOf(c))

	ids := scopeIDs(child)
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: %q appears twice in the added subtree", ErrDuplicateID, id)
		}

		seen[id] = true

		if other := findInScope(scope, id); other != nil && !isWithin(other, child) {
			return fmt.Errorf("%w: %q in %q", ErrDuplicateID, id, scope.ClientID())
		}
	}

	if child.parent != nil {
		child.parent.detach(child)
	}

	return nil
}

// RemoveChild removes child and reports whether it was a child of c.
func (c *Component) RemoveChild(child *Component) bool {
	if child == nil || child.parent != c || c.IndexOf(child) < 0 {
		return false
	}

	c.detach(child)

	return true
}

func (c *Component) detach(child *Component) {
	if root := c.ViewRoot(); root != nil {
		root.componentRemoved(child)
	}

	if i := c.IndexOf(child); i >= 0 {
		c.children = append(c.children[:i], c.children[i+1:]...)
	} else {
		for i, f := range c.facets {
			if f.c == child {
				c.facets = append(c.facets[:i], c.facets[i+1:]...)

				break
			}
		}
	}

	child.parent = nil
}

// Facet returns the facet with the given name or nil.
func (c *Component) Facet(name string) *Component {
	for _, f := range c.facets {
		if f.name == name {
			return f.c
		}
	}

	return nil
}

// SetFacet sets or replaces a facet.
func (c *Component) SetFacet(name string, f *Component) error {
	if old := c.Facet(name); old == f {
		return nil
	} else if old != nil {
		c.detach(old)
	}

	if err := c.adopt(f); err != nil {
		return err
	}

	c.facets = append(c.facets, facet{name: name, c: f})
	f.parent = c

	return nil
}

// RemoveFacet removes a facet and returns it.
func (c *Component) RemoveFacet(name string) *Component {
	f := c.Facet(name)
	if f != nil {
		c.detach(f)
	}

	return f
}

// FacetNames returns the facet names in insertion order.
func (c *Component) FacetNames() []string {
	names := make([]string, len(c.facets))
	for i, f := range c.facets {
		names[i] = f.name
	}

	return names
}

// FacetName returns the name under which child is a facet of c.
func (c *Component) FacetName(child *Component) (string, bool) {
	for _, f := range c.facets {
		if f.c == child {
			return f.name, true
		}
	}

	return "", false
}

// FacetsAndChildren returns facets followed by children.
func (c *Component) FacetsAndChildren() []*Component {
	all := make([]*Component, 0, len(c.facets)+len(c.children))
	for _, f := range c.facets {
		all = append(all, f.c)
	}

	return append(all, c.children...)
}

// Top returns the topmost ancestor.
func (c *Component) Top() *Component {
	for c.parent != nil {
		c = c.parent
	}

	return c
}

// ViewRoot returns the view c belongs to, or nil if it is detached.
func (c *Component) ViewRoot() *ViewRoot {
	return c.Top().view
}

// NamingContainer returns the closest ancestor naming container.
func (c *Component) NamingContainer() *Component {
	for p := c.parent; p != nil; p = p.parent {
		if p.Has(CapNamingContainer) {
			return p
		}
	}

	return nil
}

// ClientID is the id prefixed by the client ids of the enclosing naming
// containers. The view root does not contribute a prefix.
func (c *Component) ClientID() string {
	if c.view != nil {
		return c.id
	}

	nc := c.NamingContainer()
	if nc == nil || nc.view != nil {
		return c.id
	}

	return nc.ClientID() + string(constants.SeparatorChar) + c.id
}

// CreateUniqueID returns an id from the closest unique id vendor. A seed
// yields a deterministic id so that rebuilding a view reproduces its ids.
func (c *Component) CreateUniqueID(seed string) string {
	for p := c; p != nil; p = p.parent {
		if p.Has(CapUniqueIDVendor) {
			return p.nextUniqueID(seed)
		}
	}

	return c.Top().nextUniqueID(seed)
}

func (c *Component) nextUniqueID(seed string) string {
	if seed != "" {
		return constants.UniqueIDPrefix + seed
	}

	c.vendorSeq++

	return constants.UniqueIDPrefix + strconv.FormatInt(int64(c.vendorSeq), 36)
}

// scopeOf returns the naming container whose id scope contains the children of parent.
func scopeOf(parent *Component) *Component {
	if parent.Has(CapNamingContainer) {
		return parent
	}

	if nc := parent.NamingContainer(); nc != nil {
		return nc
	}

	return parent.Top()
}

// walkScope visits the descendants of scope sharing its id scope. Nested
// naming containers are visited but not entered.
func walkScope(scope *Component, fn func(*Component) bool) bool {
	for _, k := range scope.FacetsAndChildren() {
		if !fn(k) {
			return false
		}

		if !k.Has(CapNamingContainer) && !walkScope(k, fn) {
			return false
		}
	}

	return true
}

func findInScope(scope *Component, id string) *Component {
	var found *Component

	walkScope(scope, func(k *Component) bool {
		if k.id == id {
			found = k

			return false
		}

		return true
	})

	return found
}

// scopeIDs lists the ids that child contributes to the scope it is added to.
func scopeIDs(child *Component) []string {
	ids := []string{child.id}
	if child.Has(CapNamingContainer) {
		return ids
	}

	walkScope(child, func(k *Component) bool {
		ids = append(ids, k.id)

		return true
	})

	return ids
}

func isWithin(c, ancestor *Component) bool {
	for p := c; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}

	return false
}

// assignIDs gives every component of the subtree without an id one
// generated by vendor, or by the closest vendor inside the subtree.
func assignIDs(c *Component, vendor *Component) {
	if c.id == "" {
		c.id = vendor.nextUniqueID("")
	}

	next := vendor
	if c.Has(CapUniqueIDVendor) {
		next = c
	}

	for _, k := range c.FacetsAndChildren() {
		assignIDs(k, next)
	}
}

func vendorOf(c *Component) *Component {
	for p := c; p != nil; p = p.parent {
		if p.Has(CapUniqueIDVendor) {
			return p
		}
	}

	return c.Top()
}

// Attr returns a literal attribute.
func (c *Component) Attr(name string) (any, bool) {
	v, ok := c.attrs[name]

	return v, ok
}

func (c *Component) SetAttr(name string, value any) {
	if c.attrs == nil {
		c.attrs = map[string]any{}
	}

	c.attrs[name] = value
}

func (c *Component) RemoveAttr(name string) {
	delete(c.attrs, name)
	delete(c.bindings, name)
}

// AttrNames returns the names of literal attributes and bindings, sorted.
func (c *Component) AttrNames() []string {
	seen := map[string]bool{}
	for k := range c.attrs {
		seen[k] = true
	}

	for k := range c.bindings {
		seen[k] = true
	}

	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}

// SetValueExpression binds an attribute. A binding takes precedence over a
// literal value of the same name.
func (c *Component) SetValueExpression(name string, ve el.ValueExpression) {
	if c.bindings == nil {
		c.bindings = map[string]el.ValueExpression{}
	}

	c.bindings[name] = ve
}

func (c *Component) ValueExpression(name string) (el.ValueExpression, bool) {
	ve, ok := c.bindings[name]

	return ve, ok
}

// Eval returns the value of an attribute, evaluating its binding with c as
// the current component.
func (c *Component) Eval(ctx Context, name string) (any, error) {
	if ve, ok := c.bindings[name]; ok {
		release := ctx.ELContext().PushComponent(c)
		defer release()

		return ve.GetValue(ctx.ELContext())
	}

	return c.attrs[name], nil
}

// EvalString evaluates an attribute as text. Errors are queued and yield "".
func (c *Component) EvalString(ctx Context, name string) string {
	v, err := c.Eval(ctx, name)
	if err != nil {
		ctx.QueueException(fmt.Errorf("attribute %s of %s: %w", name, c.ClientID(), err))

		return ""
	}

	return el.ToString(v)
}

// EvalBool evaluates an attribute as a boolean, using def when it is unset.
func (c *Component) EvalBool(ctx Context, name string, def bool) bool {
	v, err := c.Eval(ctx, name)
	if err != nil {
		ctx.QueueException(fmt.Errorf("attribute %s of %s: %w", name, c.ClientID(), err))

		return def
	}

	if v == nil {
		return def
	}

	b, err := el.ToBool(v)
	if err != nil {
		ctx.QueueException(fmt.Errorf("attribute %s of %s: %w", name, c.ClientID(), err))

		return def
	}

	return b
}

// IsRendered evaluates the rendered attribute. A failing binding is queued
// and the component treated as not rendered.
func (c *Component) IsRendered(ctx Context) bool {
	if _, bound := c.bindings["rendered"]; !bound {
		if _, set := c.attrs["rendered"]; !set {
			return true
		}
	}

	v, err := c.Eval(ctx, "rendered")
	if err != nil {
		ctx.QueueException(fmt.Errorf("rendered of %s: %w", c.ClientID(), err))

		return false
	}

	b, err := el.ToBool(v)
	if err != nil {
		ctx.QueueException(fmt.Errorf("rendered of %s: %w", c.ClientID(), err))

		return false
	}

	return b
}

// IsImmediate evaluates the immediate attribute.
func (c *Component) IsImmediate(ctx Context) bool {
	return c.EvalBool(ctx, "immediate", false)
}

func (c *Component) String() string {
	var sb strings.Builder

	sb.WriteString(c.desc.Type)
	sb.WriteByte('[')
	sb.WriteString(c.ClientID())
	sb.WriteByte(']')

	return sb.String()
}
