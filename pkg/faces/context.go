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
	"context"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
)

// Context is the state of one request. It is used by a single goroutine.
type Context struct {
	ctx   context.Context
	app   *Application
	ext   *ExternalContext
	elctx *el.Context
	log   *zap.SugaredLogger

	root  *component.ViewRoot
	phase phase.ID

	renderResponse   bool
	responseComplete bool
	validationFailed bool
	postback         bool

	messages   map[string][]component.Message
	messageIDs []string
	exceptions []error

	partial *PartialViewContext

	resources       map[string][]*component.Component
	resourceTargets []string

	request    *scope.LazyMap
	windowID   string
	flashToken string
	flash      *scope.LazyMap
	viewState  string
}

var _ component.Context = (*Context)(nil)

// Context returns the context.Context of the request.
func (c *Context) Context() context.Context { return c.ctx }

func (c *Context) Application() *Application        { return c.app }
func (c *Context) External() *ExternalContext       { return c.ext }
func (c *Context) ELContext() *el.Context           { return c.elctx }
func (c *Context) Partial() *PartialViewContext     { return c.partial }
func (c *Context) Log() *zap.SugaredLogger          { return c.log }
func (c *Context) RequestScope() *scope.LazyMap     { return c.request }
func (c *Context) Param(name string) (string, bool) { return c.ext.Param(name) }

// IsPostback reports whether the request carries a view state token.
func (c *Context) IsPostback() bool { return c.postback }

func (c *Context) Decode(comp *component.Component) {
	if c.app.c.Decoder != nil {
		c.app.c.Decoder.Decode(c, comp)

		return
	}

	component.DefaultDecode(c, comp)
}

func (c *Context) InvokeAction(e *component.ActionEvent) error {
	return c.app.navigation.InvokeAction(c, e)
}

// AddMessage queues m for clientID. The empty client id holds global messages.
func (c *Context) AddMessage(clientID string, m component.Message) {
	if _, ok := c.messages[clientID]; !ok {
		c.messageIDs = append(c.messageIDs, clientID)
	}

	c.messages[clientID] = append(c.messages[clientID], m)
}

func (c *Context) Messages(clientID string) []component.Message { return c.messages[clientID] }

// MessageClientIDs returns the client ids with messages in the order the
// first message of each was added.
func (c *Context) MessageClientIDs() []string { return c.messageIDs }

// AllMessages returns every message in client id order.
func (c *Context) AllMessages() []component.Message {
	var all []component.Message
	for _, id := range c.messageIDs {
		all = append(all, c.messages[id]...)
	}

	return all
}

// MaximumSeverity returns the highest severity queued and false without messages.
func (c *Context) MaximumSeverity() (component.Severity, bool) {
	var (
		max   component.Severity
		found bool
	)

	for _, ms := range c.messages {
		for _, m := range ms {
			if !found || m.Severity > max {
				max = m.Severity
				found = true
			}
		}
	}

	return max, found
}

func (c *Context) MarkValidationFailed()         { c.validationFailed = true }
func (c *Context) IsValidationFailed() bool      { return c.validationFailed }
func (c *Context) RenderResponse()               { c.renderResponse = true }
func (c *Context) ResponseComplete()             { c.responseComplete = true }
func (c *Context) IsRenderResponse() bool        { return c.renderResponse }
func (c *Context) IsResponseComplete() bool      { return c.responseComplete }
func (c *Context) Phase() phase.ID               { return c.phase }
func (c *Context) SetPhase(p phase.ID)           { c.phase = p }
func (c *Context) QueueException(err error)      { c.exceptions = append(c.exceptions, err) }
func (c *Context) HasExceptions() bool           { return len(c.exceptions) > 0 }
func (c *Context) ViewRoot() *component.ViewRoot { return c.root }

// DrainExceptions returns the queued errors and empties the queue.
func (c *Context) DrainExceptions() []error {
	errs := c.exceptions
	c.exceptions = nil

	return errs
}

// ResourceAdded records a component resource added after the view was
// restored so a partial response can send it.
func (c *Context) ResourceAdded(r *component.Component, target string) {
	if _, ok := c.resources[target]; !ok {
		c.resourceTargets = append(c.resourceTargets, target)
	}

	c.resources[target] = append(c.resources[target], r)
}

// AddedResources returns the resources reported for target in the order
// they were added.
func (c *Context) AddedResources(target string) []*component.Component {
	return c.resources[target]
}

// AddedResourceTargets returns the targets with added resources.
func (c *Context) AddedResourceTargets() []string { return c.resourceTargets }

// SetViewRoot installs root. The view scope of a replaced root ends unless
// root continues it.
func (c *Context) SetViewRoot(root *component.ViewRoot) {
	previous := c.root
	c.root = root

	if previous == nil || previous == root {
		return
	}

	if sess := c.Session(false); sess != nil {
		if err := c.app.c.ViewScopes.ViewReplaced(c.ctx, sess, previous, root); err != nil {
			c.log.Warnf("Failed to end view scope of %s: %s", previous.ViewID(), err)
		}
	}
}

// Session returns the session, creating it with create set.
func (c *Context) Session(create bool) *session.Session { return c.ext.Session(create) }

// ViewScope returns the view scope of the current view. Without create a
// view that never used its scope yields nil.
func (c *Context) ViewScope(create bool) (*scope.LazyMap, error) {
	if c.root == nil {
		return nil, nil
	}

	sess := c.Session(create)
	if sess == nil {
		return nil, nil
	}

	return c.app.c.ViewScopes.Map(c.ctx, sess, c.root, create)
}

func (c *Context) WindowID() string      { return c.windowID }
func (c *Context) SetWindowID(id string) { c.windowID = id }
func (c *Context) ViewState() string     { return c.viewState }
func (c *Context) SetViewState(t string) { c.viewState = t }
func (c *Context) FlashToken() string    { return c.flashToken }

// UseFlash makes the flash identified by token current. An unknown or
// expired token is ignored.
func (c *Context) UseFlash(token string) bool {
	m, ok := c.app.c.Flash.Get(token)
	if !ok {
		return false
	}

	c.flashToken = token
	c.flash = m

	return true
}

// Flash returns the flash of the request, creating one on first use.
func (c *Context) Flash() *scope.LazyMap {
	if c.flash == nil {
		c.flashToken, c.flash = c.app.c.Flash.Create()
	}

	return c.flash
}

// HasFlash reports whether the request uses a flash.
func (c *Context) HasFlash() bool { return c.flash != nil }

// FlowScope returns the scope of the innermost active flow of the window.
func (c *Context) FlowScope() (*scope.LazyMap, bool, error) {
	sess := c.Session(false)
	if sess == nil {
		return nil, false, nil
	}

	active, ok, err := c.app.c.Flows.Current(c.ctx, sess, c.windowID)
	if err != nil || !ok {
		return nil, false, err
	}

	return active.Scope, true, nil
}

// Eval evaluates a value expression against the request.
func (c *Context) Eval(expr string) (any, error) {
	return el.NewValueExpression(expr).GetValue(c.elctx)
}
