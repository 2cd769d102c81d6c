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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
)

// ErrBuildInProgress is returned by BeginBuild while a build is running.
var ErrBuildInProgress = errors.New("view build already in progress")

// BuildState tracks whether the template has been applied to a view.
type BuildState int

const (
	Unbuilt BuildState = iota
	Building
	Built
	// Dirty views are rebuilt before they are rendered.
	Dirty
)

func (s BuildState) String() string {
	switch s {
	case Building:
		return "building"
	case Built:
		return "built"
	case Dirty:
		return "dirty"
	}

	return "unbuilt"
}

const (
	// RootID is the id of every view root.
	RootID = constants.UniqueIDPrefix + "1"

	resourceFacetPrefix = "jakarta.faces.location."
	resourceIDPrefix    = "jakarta_faces_location_"
)

// ViewRoot is the root of a view. It owns the event queue, the view level
// phase listeners, the component resources and the build state.
type ViewRoot struct {
	*Component

	viewID      string
	renderKitID string
	viewScopeID string

	buildState BuildState
	generation uint64
	dynamic    bool

	events    []Event
	listeners []PhaseListener

	initialStateMarked bool
	// removed holds the client ids of marked components removed outside a build.
	removed []string
}

// NewViewRoot creates an empty, unbuilt view.
func NewViewRoot(viewID string) *ViewRoot {
	c := MustNew(TypeViewRoot)
	c.id = RootID
	c.vendorSeq = 1

	v := &ViewRoot{
		Component:   c,
		viewID:      viewID,
		renderKitID: constants.DefaultRenderKitID,
	}
	c.view = v

	return v
}

func (v *ViewRoot) ViewID() string { return v.viewID }

func (v *ViewRoot) RenderKitID() string { return v.renderKitID }

func (v *ViewRoot) SetRenderKitID(id string) { v.renderKitID = id }

// ViewScopeID returns the id of the view scope map, or "" if the view has no view scope yet.
func (v *ViewRoot) ViewScopeID() string { return v.viewScopeID }

func (v *ViewRoot) SetViewScopeID(id string) { v.viewScopeID = id }

func (v *ViewRoot) BuildState() BuildState { return v.buildState }

// Generation is incremented by every build.
func (v *ViewRoot) Generation() uint64 { return v.generation }

// BeginBuild starts a build and returns its generation.
func (v *ViewRoot) BeginBuild() (uint64, error) {
	if v.buildState == Building {
		return 0, fmt.Errorf("%w: %s", ErrBuildInProgress, v.viewID)
	}

	v.buildState = Building
	v.generation++

	return v.generation, nil
}

// FinishBuild completes a build. If the initial state was already marked,
// components the template created during this build get their baseline now
// so they are not saved as additions.
func (v *ViewRoot) FinishBuild() error {
	v.buildState = Built

	if !v.initialStateMarked {
		return nil
	}

	var err error

	v.Walk(func(c *Component) bool {
		if c.transient || c.initial != nil || c.markID == "" || c.buildGen != v.generation {
			return true
		}

		err = c.markInitial()

		return err == nil
	})

	return err
}

// AbortBuild ends a failed build. The view is left Dirty so it is rebuilt.
func (v *ViewRoot) AbortBuild() { v.buildState = Dirty }

func (v *ViewRoot) MarkDirty() { v.buildState = Dirty }

// NeedsBuild reports whether the template has to be applied before rendering.
func (v *ViewRoot) NeedsBuild() bool { return v.buildState != Built }

// SetDynamic records that the template contains handlers whose output
// depends on model state.
func (v *ViewRoot) SetDynamic(d bool) { v.dynamic = d }

func (v *ViewRoot) IsDynamic() bool { return v.dynamic }

// IsInitialStateMarked reports whether MarkInitialState ran for this view.
func (v *ViewRoot) IsInitialStateMarked() bool { return v.initialStateMarked }

// RemovedClientIDs returns the client ids of baseline components removed
// since the initial state was marked.
func (v *ViewRoot) RemovedClientIDs() []string {
	return append([]string(nil), v.removed...)
}

func (v *ViewRoot) componentRemoved(c *Component) {
	if !v.initialStateMarked {
		return
	}

	record := v.buildState != Building && c.initial != nil
	if record {
		v.addRemoved(c.ClientID())
	}

	c.walk(func(k *Component) bool {
		k.initial = nil

		return true
	})
}

func (v *ViewRoot) addRemoved(clientID string) {
	for _, id := range v.removed {
		if id == clientID {
			return
		}
	}

	v.removed = append(v.removed, clientID)
}

// AddPhaseListener registers a view level listener. View listeners run
// after the application listeners.
func (v *ViewRoot) AddPhaseListener(l PhaseListener) {
	v.listeners = append(v.listeners, l)
}

// RemovePhaseListener removes the first registration of l.
func (v *ViewRoot) RemovePhaseListener(l PhaseListener) bool {
	for i, x := range v.listeners {
		if SameListener(x, l) {
			v.listeners = append(v.listeners[:i], v.listeners[i+1:]...)

			return true
		}
	}

	return false
}

func (v *ViewRoot) PhaseListeners() []PhaseListener {
	return append([]PhaseListener(nil), v.listeners...)
}

// SameListener compares two listeners. Listeners of uncomparable types
// (such as PhaseListenerFuncs values) are only equal to themselves by
// pointer, so they should be registered as pointers.
func SameListener(a, b PhaseListener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}

	return a == b
}

// resourceContainer returns the container holding resources for target,
// creating it if create is set.
func (v *ViewRoot) resourceContainer(target string, create bool) *Component {
	name := resourceFacetPrefix + target
	if f := v.Facet(name); f != nil {
		return f
	}

	if !create {
		return nil
	}

	f := MustNew(TypeResourceContainer)
	f.id = resourceIDPrefix + target

	if err := v.SetFacet(name, f); err != nil {
		return nil
	}

	return f
}

// ResourceKey identifies a resource for de-duplication: library and name
// when a name is set, otherwise the id.
func ResourceKey(r *Component) string {
	name, _ := r.Attr("name")
	if n, ok := name.(string); ok && n != "" {
		lib, _ := r.Attr("library")
		if l, ok := lib.(string); ok && l != "" {
			return l + "/" + n
		}

		return n
	}

	return r.id
}

// AddComponentResource adds r to the resources of target unless a resource
// with the same key is already present. It reports whether r was added.
// Additions after the restore view phase are reported to ctx.
func (v *ViewRoot) AddComponentResource(ctx Context, r *Component, target string) (bool, error) {
	if target == "" {
		target = constants.TargetHead
	}

	container := v.resourceContainer(target, true)
	if container == nil {
		return false, fmt.Errorf("%w: resource container for %q", ErrInvalidID, target)
	}

	key := ResourceKey(r)
	for _, existing := range container.children {
		if existing == r {
			return false, nil
		}

		if key != "" && ResourceKey(existing) == key {
			return false, nil
		}
	}

	if err := container.AddChild(r); err != nil {
		return false, fmt.Errorf("add resource %s to %s: %w", key, target, err)
	}

	if ctx != nil && ctx.Phase() != phase.RestoreView {
		ctx.ResourceAdded(r, target)
	}

	return true, nil
}

// RemoveComponentResource removes r from the resources of target.
func (v *ViewRoot) RemoveComponentResource(r *Component, target string) bool {
	container := v.resourceContainer(target, false)
	if container == nil {
		return false
	}

	return container.RemoveChild(r)
}

// ComponentResources returns the resources of target in insertion order.
func (v *ViewRoot) ComponentResources(target string) []*Component {
	container := v.resourceContainer(target, false)
	if container == nil {
		return nil
	}

	return append([]*Component(nil), container.children...)
}

// ResourceTargets returns the targets that have a resource container.
func (v *ViewRoot) ResourceTargets() []string {
	var targets []string

	for _, name := range v.FacetNames() {
		if t, ok := strings.CutPrefix(name, resourceFacetPrefix); ok {
			targets = append(targets, t)
		}
	}

	return targets
}
