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

package component

import (
	"bytes"
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/safejson"
)

// State is the saved state of a single component.
type State struct {
	Attrs        map[string]Value              `json:"attrs,omitempty"`
	Bindings     map[string]el.ValueExpression `json:"bindings,omitempty"`
	RendererType string                        `json:"rendererType,omitempty"`
	LocalValue   *Value                        `json:"localValue,omitempty"`
	Submitted    *string                       `json:"submitted,omitempty"`
	Invalid      bool                          `json:"invalid,omitempty"`
	Attached     []AttachedState               `json:"attached,omitempty"`
	VendorSeq    int                           `json:"vendorSeq,omitempty"`
}

// TreeState is the saved state of a component and its non-transient subtree.
type TreeState struct {
	Type     string       `json:"type"`
	ID       string       `json:"id"`
	MarkID   string       `json:"mark,omitempty"`
	State    State        `json:"state"`
	Facets   []FacetState `json:"facets,omitempty"`
	Children []TreeState  `json:"children,omitempty"`
}

type FacetState struct {
	Name string    `json:"name"`
	Tree TreeState `json:"tree"`
}

// Deltas is the partial state of a view: the components whose state
// differs from the marked baseline, subtrees added after marking and the
// client ids of removed baseline components.
type Deltas struct {
	States  map[string]State `json:"states,omitempty"`
	Added   []AddedState     `json:"added,omitempty"`
	Removed []string         `json:"removed,omitempty"`
}

// AddedState locates an added subtree: a facet name or a child index of the parent.
type AddedState struct {
	ParentClientID string    `json:"parent"`
	FacetName      string    `json:"facet,omitempty"`
	Index          int       `json:"index"`
	Tree           TreeState `json:"tree"`
}

// SaveState captures the state of c alone.
func (c *Component) SaveState() (State, error) {
	s := State{
		RendererType: c.desc.RendererType,
		Submitted:    c.submitted,
		Invalid:      !c.valid,
		VendorSeq:    c.vendorSeq,
	}

	if d, ok := Lookup(c.desc.Type); ok && d.RendererType == s.RendererType {
		s.RendererType = ""
	}

	if len(c.attrs) > 0 {
		s.Attrs = make(map[string]Value, len(c.attrs))

		for name, v := range c.attrs {
			sv, err := EncodeValue(v)
			if err != nil {
				return State{}, fmt.Errorf("attribute %s of %s: %w", name, c.ClientID(), err)
			}

			s.Attrs[name] = sv
		}
	}

	if len(c.bindings) > 0 {
		s.Bindings = make(map[string]el.ValueExpression, len(c.bindings))
		for name, ve := range c.bindings {
			s.Bindings[name] = ve
		}
	}

	if c.localValueSet {
		lv, err := EncodeValue(c.localValue)
		if err != nil {
			return State{}, fmt.Errorf("local value of %s: %w", c.ClientID(), err)
		}

		s.LocalValue = &lv
	}

	s.Attached = c.saveAttached()

	return s, nil
}

// RestoreState replaces the state of c with s.
func (c *Component) RestoreState(s State) error {
	attrs := make(map[string]any, len(s.Attrs))

	for name, sv := range s.Attrs {
		v, err := sv.Decode()
		if err != nil {
			return fmt.Errorf("attribute %s of %s: %w", name, c.id, err)
		}

		attrs[name] = v
	}

	c.attrs = attrs
	c.bindings = make(map[string]el.ValueExpression, len(s.Bindings))

	for name, ve := range s.Bindings {
		c.bindings[name] = ve
	}

	if s.RendererType != "" {
		c.desc.RendererType = s.RendererType
	}

	c.localValue, c.localValueSet = nil, false

	if s.LocalValue != nil {
		v, err := s.LocalValue.Decode()
		if err != nil {
			return fmt.Errorf("local value of %s: %w", c.id, err)
		}

		c.SetLocalValue(v)
	}

	c.submitted = s.Submitted
	c.valid = !s.Invalid
	c.vendorSeq = s.VendorSeq

	return c.restoreAttached(s.Attached)
}

func describe(role, mark string, obj any) (AttachedState, bool) {
	as := AttachedState{Role: role, Mark: mark}
	if d, ok := obj.(Describer); ok {
		as.Kind, as.Params = d.Describe()

		return as, true
	}

	// Objects the template attaches are recreated by the next build.
	return as, mark != ""
}

// saveAttached describes the attached objects. Objects that are neither
// describable nor created by the template are not saved.
func (c *Component) saveAttached() []AttachedState {
	var out []AttachedState

	add := func(role, mark string, obj any) {
		if as, ok := describe(role, mark, obj); ok {
			out = append(out, as)
		}
	}

	if c.converter != nil {
		add(RoleConverter, c.converter.mark, c.converter.obj)
	}

	for _, a := range c.validators {
		add(RoleValidator, a.mark, a.obj)
	}

	for _, a := range c.actionListeners {
		add(RoleActionListener, a.mark, a.obj)
	}

	for _, a := range c.valueChangeListeners {
		add(RoleValueChangeListener, a.mark, a.obj)
	}

	return out
}

func existing[T any](list []attached[T], mark string) (T, bool) {
	var zero T

	if mark == "" {
		return zero, false
	}

	for _, a := range list {
		if a.mark == mark {
			return a.obj, true
		}
	}

	return zero, false
}

// attachedObject returns the attached object already present under the
// mark of as, or creates one from its kind. ok is false when nothing can
// stand in for as.
func attachedObject[T any](list []attached[T], as AttachedState) (T, bool, error) {
	if obj, ok := existing(list, as.Mark); ok {
		return obj, true, nil
	}

	var zero T

	if as.Kind == "" {
		return zero, false, nil
	}

	raw, err := NewAttached(as.Kind, as.Params)
	if err != nil {
		return zero, false, err
	}

	obj, ok := raw.(T)
	if !ok {
		return zero, false, fmt.Errorf("%w: %s is not a %s", ErrUnknownType, as.Kind, as.Role)
	}

	return obj, true, nil
}

func restoreList[T any](list []attached[T], as AttachedState, out *[]attached[T]) error {
	obj, ok, err := attachedObject(list, as)
	if err != nil || !ok {
		return err
	}

	*out = append(*out, attached[T]{mark: as.Mark, obj: obj})

	return nil
}

func (c *Component) restoreAttached(states []AttachedState) error {
	var (
		conv       *attached[Converter]
		validators []attached[Validator]
		actions    []attached[ActionListener]
		changes    []attached[ValueChangeListener]
		err        error
	)

	for _, as := range states {
		switch as.Role {
		case RoleConverter:
			var current []attached[Converter]
			if c.converter != nil {
				current = append(current, *c.converter)
			}

			var restored []attached[Converter]
			if err = restoreList(current, as, &restored); err == nil && len(restored) == 1 {
				conv = &restored[0]
			}
		case RoleValidator:
			err = restoreList(c.validators, as, &validators)
		case RoleActionListener:
			err = restoreList(c.actionListeners, as, &actions)
		case RoleValueChangeListener:
			err = restoreList(c.valueChangeListeners, as, &changes)
		default:
			err = fmt.Errorf("%w: attached role %q", ErrUnknownType, as.Role)
		}

		if err != nil {
			return fmt.Errorf("attached %s of %s: %w", as.Role, c.id, err)
		}
	}

	c.converter = conv
	c.validators = validators
	c.actionListeners = actions
	c.valueChangeListeners = changes

	return nil
}

// SaveTree captures c and its non-transient subtree.
func (c *Component) SaveTree() (TreeState, error) {
	s, err := c.SaveState()
	if err != nil {
		return TreeState{}, err
	}

	ts := TreeState{Type: c.desc.Type, ID: c.id, MarkID: c.markID, State: s}

	for _, f := range c.facets {
		if f.c.transient {
			continue
		}

		sub, err := f.c.SaveTree()
		if err != nil {
			return TreeState{}, err
		}

		ts.Facets = append(ts.Facets, FacetState{Name: f.name, Tree: sub})
	}

	for _, k := range c.children {
		if k.transient {
			continue
		}

		sub, err := k.SaveTree()
		if err != nil {
			return TreeState{}, err
		}

		ts.Children = append(ts.Children, sub)
	}

	return ts, nil
}

// RestoreTree creates a detached subtree from ts.
func RestoreTree(ts TreeState) (*Component, error) {
	c, err := NewOf(ts.Type)
	if err != nil {
		return nil, err
	}

	if err := restoreInto(c, ts); err != nil {
		return nil, err
	}

	return c, nil
}

func restoreInto(c *Component, ts TreeState) error {
	c.id = ts.ID
	c.markID = ts.MarkID

	if err := c.RestoreState(ts.State); err != nil {
		return err
	}

	for _, fs := range ts.Facets {
		f, err := RestoreTree(fs.Tree)
		if err != nil {
			return err
		}

		if err := c.SetFacet(fs.Name, f); err != nil {
			return fmt.Errorf("restore facet %s of %s: %w", fs.Name, c.id, err)
		}
	}

	for _, cs := range ts.Children {
		k, err := RestoreTree(cs)
		if err != nil {
			return err
		}

		if err := c.AddChild(k); err != nil {
			return fmt.Errorf("restore child of %s: %w", c.id, err)
		}
	}

	return nil
}

// RestoreView recreates a view from a full tree state. Transient components
// are not part of the state, so the view is Dirty and has to be rebuilt
// before it is rendered.
func RestoreView(viewID string, ts TreeState) (*ViewRoot, error) {
	if ts.Type != TypeViewRoot {
		return nil, fmt.Errorf("%w: saved root has type %s", ErrUnknownType, ts.Type)
	}

	v := NewViewRoot(viewID)
	if err := restoreInto(v.Component, ts); err != nil {
		return nil, fmt.Errorf("restore view %s: %w", viewID, err)
	}

	v.buildState = Dirty

	return v, nil
}

func (c *Component) markInitial() error {
	s, err := c.SaveState()
	if err != nil {
		return err
	}

	var baseline State
	if err := deepcopy.Copy(&baseline, &s); err != nil {
		return fmt.Errorf("copy initial state of %s: %w", c.ClientID(), err)
	}

	c.initial = &baseline

	return nil
}

// MarkInitialState records the current state of every component as the
// baseline for SaveDeltas.
func (v *ViewRoot) MarkInitialState() error {
	var err error

	v.Walk(func(c *Component) bool {
		if c.transient {
			return true
		}

		err = c.markInitial()

		return err == nil
	})

	if err != nil {
		return fmt.Errorf("mark initial state of %s: %w", v.viewID, err)
	}

	v.initialStateMarked = true
	v.removed = nil

	return nil
}

// SaveDeltas captures the deviations from the baseline.
func (v *ViewRoot) SaveDeltas() (Deltas, error) {
	d := Deltas{States: map[string]State{}, Removed: v.RemovedClientIDs()}

	if err := v.saveDeltas(v.Component, &d); err != nil {
		return Deltas{}, fmt.Errorf("save deltas of %s: %w", v.viewID, err)
	}

	return d, nil
}

func (v *ViewRoot) saveDeltas(c *Component, d *Deltas) error {
	if c.initial == nil && c.parent != nil {
		tree, err := c.SaveTree()
		if err != nil {
			return err
		}

		added := AddedState{ParentClientID: c.parent.ClientID(), Tree: tree}
		if name, ok := c.parent.FacetName(c); ok {
			added.FacetName = name
		} else {
			added.Index = c.parent.IndexOf(c)
		}

		d.Added = append(d.Added, added)

		return nil
	}

	s, err := c.SaveState()
	if err != nil {
		return err
	}

	changed, err := stateChanged(c.initial, s)
	if err != nil {
		return err
	}

	if changed {
		d.States[c.ClientID()] = s
	}

	for _, k := range c.FacetsAndChildren() {
		if k.transient {
			continue
		}

		if err := v.saveDeltas(k, d); err != nil {
			return err
		}
	}

	return nil
}

func stateChanged(initial *State, s State) (bool, error) {
	if initial == nil {
		return true, nil
	}

	a, err := safejson.Marshal(initial)
	if err != nil {
		return false, err
	}

	b, err := safejson.Marshal(&s)
	if err != nil {
		return false, err
	}

	return !bytes.Equal(a, b), nil
}

// ApplyDeltas reconciles a freshly built view with saved deltas: removals
// first, then additions in document order, then component state. Entries
// for components that no longer exist are ignored.
func (v *ViewRoot) ApplyDeltas(d Deltas) error {
	for _, id := range d.Removed {
		if c := v.FindByClientID(id); c != nil && c.parent != nil {
			c.parent.detach(c)
		} else {
			v.addRemoved(id)
		}
	}

	for _, a := range d.Added {
		parent := v.FindByClientID(a.ParentClientID)
		if parent == nil {
			continue
		}

		c, err := RestoreTree(a.Tree)
		if err != nil {
			return fmt.Errorf("restore added %s: %w", a.Tree.ID, err)
		}

		if a.FacetName != "" {
			err = parent.SetFacet(a.FacetName, c)
		} else {
			err = parent.InsertChild(a.Index, c)
		}

		if err != nil {
			return fmt.Errorf("insert added %s into %s: %w", a.Tree.ID, a.ParentClientID, err)
		}
	}

	if len(d.States) == 0 {
		return nil
	}

	index := map[string]*Component{}
	v.Walk(func(c *Component) bool {
		index[c.ClientID()] = c

		return true
	})

	for id, s := range d.States {
		c, ok := index[id]
		if !ok {
			continue
		}

		if err := c.RestoreState(s); err != nil {
			return fmt.Errorf("apply state of %s: %w", id, err)
		}
	}

	return nil
}
