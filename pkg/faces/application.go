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

// Package faces holds the per-request Context and the Application that
// owns the services a request is processed with.
package faces

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
	"github.com/united-manufacturing-hub/faces-core/pkg/vdl"
)

// DefaultExpressionCacheSize is the number of parsed expressions the default
// evaluator keeps.
const DefaultExpressionCacheSize = 512

// Decoder applies request parameters to a component. The render kit
// implements it.
type Decoder interface {
	Decode(ctx component.Context, c *component.Component)
}

// Collaborators are the services an Application delegates to. VDL and
// Sessions are required; the others get defaults.
type Collaborators struct {
	VDL      *vdl.FaceletsVDL
	Sessions *session.Manager

	Destroyer  *scope.Destroyer
	ViewScopes *scope.ViewScopes
	Windows    *scope.ClientWindows
	Flows      *scope.FlowHandler
	Flash      *scope.Flash
	Beans      *BeanRegistry

	Decoder   Decoder
	Evaluator el.Evaluator
	// Resolvers are consulted after the implicit objects and before the
	// resolvers for plain Go values.
	Resolvers []el.Resolver
}

// Application is shared by all requests.
type Application struct {
	c          Collaborators
	scope      *scope.LazyMap
	navigation *NavigationHandler
	log        *zap.SugaredLogger

	beanMu sync.Mutex
}

// NewApplication wires the collaborators. Destroyed client windows end
// their flows.
func NewApplication(c Collaborators, log *zap.SugaredLogger) (*Application, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if c.VDL == nil {
		return nil, errors.New("application needs a view declaration language")
	}

	if c.Sessions == nil {
		return nil, errors.New("application needs a session manager")
	}

	if c.Beans == nil {
		c.Beans = NewBeanRegistry()
	}

	if c.Destroyer == nil {
		c.Destroyer = scope.NewDestroyer(log, c.Beans)
	}

	if c.ViewScopes == nil {
		c.ViewScopes = scope.NewViewScopes(c.Destroyer, log)
	}

	if c.Windows == nil {
		c.Windows = scope.NewClientWindows(scope.WindowModeNone, scope.DefaultClientWindows, c.Destroyer, log)
	}

	if c.Flows == nil {
		c.Flows = scope.NewFlowHandler(scope.NewFlowRegistry(), c.Destroyer, log)
	}

	if c.Flash == nil {
		c.Flash = scope.NewFlash(scope.DefaultFlashTTL, c.Destroyer, log)
	}

	if c.Evaluator == nil {
		c.Evaluator = el.NewPathEvaluator(DefaultExpressionCacheSize)
	}

	c.Windows.OnDestroyed(c.Flows.WindowDestroyed)

	a := &Application{c: c, scope: &scope.LazyMap{}, log: log}
	a.navigation = &NavigationHandler{app: a, log: log}

	return a, nil
}

func (a *Application) VDL() *vdl.FaceletsVDL          { return a.c.VDL }
func (a *Application) Sessions() *session.Manager     { return a.c.Sessions }
func (a *Application) Destroyer() *scope.Destroyer    { return a.c.Destroyer }
func (a *Application) ViewScopes() *scope.ViewScopes  { return a.c.ViewScopes }
func (a *Application) Windows() *scope.ClientWindows  { return a.c.Windows }
func (a *Application) Flows() *scope.FlowHandler      { return a.c.Flows }
func (a *Application) Flash() *scope.Flash            { return a.c.Flash }
func (a *Application) Beans() *BeanRegistry           { return a.c.Beans }
func (a *Application) Navigation() *NavigationHandler { return a.navigation }
func (a *Application) Log() *zap.SugaredLogger        { return a.log }

// Scope is the application scope.
func (a *Application) Scope() *scope.LazyMap { return a.scope }

// NewContext starts the processing of a request.
func (a *Application) NewContext(ctx context.Context, ext *ExternalContext) *Context {
	fc := &Context{
		ctx:       ctx,
		app:       a,
		ext:       ext,
		log:       a.log,
		messages:  map[string][]component.Message{},
		resources: map[string][]*component.Component{},
		request:   &scope.LazyMap{},
		partial:   NewPartialViewContext(ext),
	}

	resolvers := append([]el.Resolver{implicitResolver{}, componentResolver{}}, a.c.Resolvers...)
	fc.elctx = el.NewContext(a.c.Evaluator, el.DefaultResolver(resolvers...), fc)

	_, fc.postback = ext.Param(constants.ViewStateParam)

	return fc
}
