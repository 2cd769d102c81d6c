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

package faces

import (
	"fmt"
	"reflect"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
)

// Implicit object names.
const (
	ImplicitFacesContext     = "facesContext"
	ImplicitView             = "view"
	ImplicitComponent        = "component"
	ImplicitCompositeContext = "cc"
	ImplicitParam            = "param"
	ImplicitRequestScope     = "requestScope"
	ImplicitViewScope        = "viewScope"
	ImplicitSessionScope     = "sessionScope"
	ImplicitApplicationScope = "applicationScope"
	ImplicitFlash            = "flash"
	ImplicitFlowScope        = "flowScope"
)

// mapKV exposes a LazyMap as el.KeyValue.
type mapKV struct{ m *scope.LazyMap }

func (k mapKV) Get(key string) (any, bool) { return k.m.Get(key) }
func (k mapKV) Put(key string, value any)  { k.m.Put(key, value) }

// viewScopeKV creates the view scope on the first write.
type viewScopeKV struct{ fctx *Context }

func (k viewScopeKV) Get(key string) (any, bool) {
	m, err := k.fctx.ViewScope(false)
	if err != nil || m == nil {
		return nil, false
	}

	return m.Get(key)
}

func (k viewScopeKV) Put(key string, value any) {
	m, err := k.fctx.ViewScope(true)
	if err != nil || m == nil {
		k.fctx.log.Warnf("Dropping view scope write of %q: %v", key, err)

		return
	}

	m.Put(key, value)
}

// sessionKV maps session attributes and starts a session on the first write.
type sessionKV struct{ fctx *Context }

func (k sessionKV) Get(key string) (any, bool) {
	sess := k.fctx.Session(false)
	if sess == nil {
		return nil, false
	}

	return sess.Attr(key)
}

func (k sessionKV) Put(key string, value any) {
	k.fctx.Session(true).SetAttr(key, value)
}

type flashKV struct{ fctx *Context }

func (k flashKV) Get(key string) (any, bool) {
	if !k.fctx.HasFlash() {
		return nil, false
	}

	return k.fctx.Flash().Get(key)
}

func (k flashKV) Put(key string, value any) { k.fctx.Flash().Put(key, value) }

type flowKV struct{ fctx *Context }

func (k flowKV) Get(key string) (any, bool) {
	m, ok, err := k.fctx.FlowScope()
	if err != nil || !ok {
		return nil, false
	}

	return m.Get(key)
}

func (k flowKV) Put(key string, value any) {
	m, ok, err := k.fctx.FlowScope()
	if err != nil || !ok {
		k.fctx.log.Warnf("Dropping flow scope write of %q outside a flow: %v", key, err)

		return
	}

	m.Put(key, value)
}

// compositeAttrs is cc.attrs. Reads evaluate bindings of the composite
// component, writes go through them when present.
type compositeAttrs struct {
	fctx *Context
	c    *component.Component
}

func (a compositeAttrs) Get(key string) (any, bool) {
	if _, bound := a.c.ValueExpression(key); !bound {
		if _, set := a.c.Attr(key); !set {
			return nil, false
		}
	}

	v, err := a.c.Eval(a.fctx, key)
	if err != nil {
		a.fctx.QueueException(fmt.Errorf("attribute %s of %s: %w", key, a.c.ClientID(), err))

		return nil, false
	}

	return v, true
}

func (a compositeAttrs) Put(key string, value any) {
	if ve, ok := a.c.ValueExpression(key); ok {
		if err := ve.SetValue(a.fctx.elctx, value); err != nil {
			a.fctx.QueueException(fmt.Errorf("attribute %s of %s: %w", key, a.c.ClientID(), err))
		}

		return
	}

	a.c.SetAttr(key, value)
}

// nearestComposite returns the composite component around the current component.
func nearestComposite(elctx *el.Context) *component.Component {
	c, _ := elctx.CurrentComponent().(*component.Component)
	for ; c != nil; c = c.Parent() {
		if c.Has(component.CapComposite) {
			return c
		}
	}

	return nil
}

func requestContext(elctx *el.Context) (*Context, bool) {
	fctx, ok := elctx.Owner().(*Context)

	return fctx, ok
}

// implicitResolver resolves implicit objects, scoped attributes and
// registered beans.
type implicitResolver struct{ el.NopResolver }

func (implicitResolver) implicit(fctx *Context, name string) (any, bool) {
	switch name {
	case ImplicitFacesContext:
		return fctx, true
	case ImplicitView:
		if fctx.root == nil {
			return nil, true
		}

		return fctx.root, true
	case ImplicitComponent:
		return fctx.elctx.CurrentComponent(), true
	case ImplicitCompositeContext:
		if c := nearestComposite(fctx.elctx); c != nil {
			return c, true
		}

		return nil, true
	case ImplicitParam:
		return fctx.ext.ParamMap(), true
	case ImplicitRequestScope:
		return mapKV{fctx.request}, true
	case ImplicitViewScope:
		return viewScopeKV{fctx}, true
	case ImplicitSessionScope:
		return sessionKV{fctx}, true
	case ImplicitApplicationScope:
		return mapKV{fctx.app.scope}, true
	case ImplicitFlash:
		return flashKV{fctx}, true
	case ImplicitFlowScope:
		return flowKV{fctx}, true
	}

	return nil, false
}

// scoped finds name in request, view, session and application scope.
func scoped(fctx *Context, name string) (el.KeyValue, any, bool) {
	for _, kv := range []el.KeyValue{mapKV{fctx.request}, viewScopeKV{fctx}, sessionKV{fctx}, mapKV{fctx.app.scope}} {
		if v, ok := kv.Get(name); ok {
			return kv, v, true
		}
	}

	return nil, nil, false
}

func (r implicitResolver) GetValue(ctx *el.Context, base, property any) (any, bool, error) {
	name, ok := property.(string)
	if base != nil || !ok {
		return nil, false, nil
	}

	fctx, ok := requestContext(ctx)
	if !ok {
		return nil, false, nil
	}

	if v, ok := r.implicit(fctx, name); ok {
		return v, true, nil
	}

	if _, v, ok := scoped(fctx, name); ok {
		return v, true, nil
	}

	b, ok := fctx.app.c.Beans.Lookup(name)
	if !ok {
		return nil, false, nil
	}

	v, err := fctx.app.createBean(fctx, b)
	if err != nil {
		return nil, true, err
	}

	return v, true, nil
}

func (r implicitResolver) SetValue(ctx *el.Context, base, property, value any) (bool, error) {
	name, ok := property.(string)
	if base != nil || !ok {
		return false, nil
	}

	fctx, ok := requestContext(ctx)
	if !ok {
		return false, nil
	}

	if _, ok := r.implicit(fctx, name); ok {
		return true, fmt.Errorf("%w: %s", el.ErrPropertyNotWritable, name)
	}

	kv, _, found := scoped(fctx, name)
	if !found {
		return false, nil
	}

	kv.Put(name, value)

	return true, nil
}

func (r implicitResolver) GetType(ctx *el.Context, base, property any) (reflect.Type, bool, error) {
	v, ok, err := r.GetValue(ctx, base, property)
	if !ok || err != nil {
		return nil, ok, err
	}

	return reflect.TypeOf(v), true, nil
}

func (r implicitResolver) IsReadOnly(ctx *el.Context, base, property any) (bool, bool, error) {
	name, ok := property.(string)
	if base != nil || !ok {
		return false, false, nil
	}

	fctx, ok := requestContext(ctx)
	if !ok {
		return false, false, nil
	}

	if _, ok := r.implicit(fctx, name); ok {
		return true, true, nil
	}

	if _, _, found := scoped(fctx, name); found {
		return false, true, nil
	}

	return false, false, nil
}

// createBean instantiates b and stores it in its scope. Application beans
// are created once across concurrent requests.
func (a *Application) createBean(fctx *Context, b *Bean) (any, error) {
	if b.Scope == ApplicationScope {
		a.beanMu.Lock()
		defer a.beanMu.Unlock()

		if v, ok := a.scope.Get(b.Name); ok {
			return v, nil
		}
	}

	v, err := b.New(fctx)
	if err != nil {
		return nil, fmt.Errorf("create bean %s: %w", b.Name, err)
	}

	switch b.Scope {
	case RequestScope:
		fctx.request.Put(b.Name, v)
	case ViewScope:
		m, err := fctx.ViewScope(true)
		if err != nil {
			return nil, fmt.Errorf("create bean %s: %w", b.Name, err)
		}

		if m == nil {
			return nil, fmt.Errorf("create bean %s: no view", b.Name)
		}

		m.Put(b.Name, v)
	case SessionScope:
		sess := fctx.Session(true)
		sess.SetAttr(b.Name, v)
		sess.OnDestroy(func(_ *session.Session) { a.c.Destroyer.Destroy(b.Name, v) })
	case ApplicationScope:
		a.scope.Put(b.Name, v)
	case FlowScope:
		m, ok, err := fctx.FlowScope()
		if err != nil {
			return nil, fmt.Errorf("create bean %s: %w", b.Name, err)
		}

		if !ok {
			return nil, fmt.Errorf("create bean %s: %w", b.Name, scope.ErrNoActiveFlow)
		}

		m.Put(b.Name, v)
	}

	a.log.Debugf("Created %s scoped bean %s", b.Scope, b.Name)

	return v, nil
}

// componentResolver exposes component properties such as #{component.clientId}
// and #{cc.attrs.label}.
type componentResolver struct{ el.NopResolver }

func componentBase(base any) (*component.Component, *component.ViewRoot) {
	switch b := base.(type) {
	case *component.ViewRoot:
		return b.Component, b
	case *component.Component:
		if b == nil {
			return nil, nil
		}

		return b, b.ViewRoot()
	}

	return nil, nil
}

func (componentResolver) GetValue(ctx *el.Context, base, property any) (any, bool, error) {
	c, root := componentBase(base)
	if c == nil {
		return nil, false, nil
	}

	name, ok := property.(string)
	if !ok {
		return nil, true, fmt.Errorf("%w: component property %v", el.ErrPropertyNotFound, property)
	}

	fctx, _ := requestContext(ctx)

	switch name {
	case "attrs":
		if fctx == nil {
			return nil, true, fmt.Errorf("%w: attrs outside a request", el.ErrPropertyNotFound)
		}

		return compositeAttrs{fctx: fctx, c: c}, true, nil
	case "clientId":
		return c.ClientID(), true, nil
	case "id":
		return c.ID(), true, nil
	case "parent":
		return c.Parent(), true, nil
	case "children":
		return c.Children(), true, nil
	case "childCount":
		return c.ChildCount(), true, nil
	case "valid":
		return c.IsValid(), true, nil
	case "submittedValue":
		v, _ := c.SubmittedValue()

		return v, true, nil
	case "value":
		if fctx == nil {
			v, _ := c.LocalValue()

			return v, true, nil
		}

		v, err := c.Value(fctx)

		return v, true, err
	case "viewId":
		if root != nil && root.Component == c {
			return root.ViewID(), true, nil
		}
	case "renderKitId":
		if root != nil && root.Component == c {
			return root.RenderKitID(), true, nil
		}
	}

	return nil, true, fmt.Errorf("%w: %s of %s", el.ErrPropertyNotFound, name, c.Type())
}

func (componentResolver) IsReadOnly(_ *el.Context, base, _ any) (bool, bool, error) {
	if c, _ := componentBase(base); c == nil {
		return false, false, nil
	}

	return true, true, nil
}

func (componentResolver) SetValue(_ *el.Context, base, property, _ any) (bool, error) {
	if c, _ := componentBase(base); c == nil {
		return false, nil
	}

	return true, fmt.Errorf("%w: component property %v", el.ErrPropertyNotWritable, property)
}
