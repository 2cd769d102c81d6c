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

// Package lifecycle runs the request processing phases over a view: it
// restores the view, applies and validates the submitted values, updates
// the model, invokes the application and renders the response.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/logger"
	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
	"github.com/united-manufacturing-hub/faces-core/pkg/render"
	"github.com/united-manufacturing-hub/faces-core/pkg/statemanager"
)

// Options configure a Lifecycle. States is required.
type Options struct {
	Kit        *render.Kit
	States     *statemanager.Manager
	Exceptions ExceptionHandler
}

// Lifecycle processes requests of one application. It keeps no request
// state and is safe for concurrent use.
type Lifecycle struct {
	app        *faces.Application
	kit        *render.Kit
	states     *statemanager.Manager
	exceptions ExceptionHandler
	log        *zap.SugaredLogger

	mu        sync.RWMutex
	listeners []component.PhaseListener
}

func New(app *faces.Application, opts Options, log *zap.SugaredLogger) (*Lifecycle, error) {
	if app == nil {
		return nil, errors.New("lifecycle needs an application")
	}

	if opts.States == nil {
		return nil, errors.New("lifecycle needs a state manager")
	}

	log = logger.OrNop(log)

	if opts.Kit == nil {
		opts.Kit = render.NewKit()
	}

	if opts.Exceptions == nil {
		opts.Exceptions = DefaultExceptionHandler{Log: log}
	}

	return &Lifecycle{
		app:        app,
		kit:        opts.Kit,
		states:     opts.States,
		exceptions: opts.Exceptions,
		log:        log,
	}, nil
}

func (l *Lifecycle) Kit() *render.Kit                { return l.kit }
func (l *Lifecycle) States() *statemanager.Manager   { return l.states }
func (l *Lifecycle) Application() *faces.Application { return l.app }

// AddPhaseListener registers an application wide listener. Application
// listeners run before the listeners of the view.
func (l *Lifecycle) AddPhaseListener(pl component.PhaseListener) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.listeners = append(l.listeners, pl)
}

func (l *Lifecycle) RemovePhaseListener(pl component.PhaseListener) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, existing := range l.listeners {
		if component.SameListener(existing, pl) {
			l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)

			return true
		}
	}

	return false
}

func (l *Lifecycle) PhaseListeners() []component.PhaseListener {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]component.PhaseListener(nil), l.listeners...)
}

func (l *Lifecycle) listenersFor(fctx *faces.Context, p phase.ID) []component.PhaseListener {
	var out []component.PhaseListener

	for _, pl := range l.PhaseListeners() {
		if pl.PhaseID().Matches(p) {
			out = append(out, pl)
		}
	}

	if root := fctx.ViewRoot(); root != nil {
		for _, pl := range root.PhaseListeners() {
			if pl.PhaseID().Matches(p) {
				out = append(out, pl)
			}
		}
	}

	return out
}

// machine tracks the phase of fctx. Phases only advance, and
// RENDER_RESPONSE is entered at most once per request.
func (l *Lifecycle) machine(fctx *faces.Context) *fsm.FSM {
	events := fsm.Events{
		{Name: phase.RestoreView.String(), Src: []string{phase.Any.String()}, Dst: phase.RestoreView.String()},
	}

	renderSrc := []string{phase.Any.String()}

	for _, p := range phase.Execute {
		renderSrc = append(renderSrc, p.String())

		if next := p.Next(); next != phase.RenderResponse {
			events = append(events, fsm.EventDesc{Name: next.String(), Src: []string{p.String()}, Dst: next.String()})
		}
	}

	events = append(events, fsm.EventDesc{Name: phase.RenderResponse.String(), Src: renderSrc, Dst: phase.RenderResponse.String()})

	return fsm.NewFSM(
		fctx.Phase().String(),
		events,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if p, ok := phase.Parse(e.Dst); ok {
					fctx.SetPhase(p)
				}

				l.log.Debugf("Entering %s (from %s)", e.Dst, e.Src)
			},
		},
	)
}

// Execute runs the phases up to INVOKE_APPLICATION. It stops early when a
// phase asks for the response to be rendered or marks it complete.
func (l *Lifecycle) Execute(fctx *faces.Context) error {
	m := l.machine(fctx)

	for _, p := range phase.Execute {
		if fctx.IsResponseComplete() || fctx.IsRenderResponse() {
			return nil
		}

		if err := m.Event(fctx.Context(), p.String()); err != nil {
			return fmt.Errorf("enter %s: %w", p, err)
		}

		if err := l.run(fctx, p, l.body(p)); err != nil {
			return err
		}

		if p == phase.RestoreView {
			if err := l.ensureView(fctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *Lifecycle) body(p phase.ID) func(*faces.Context) error {
	switch p {
	case phase.RestoreView:
		return l.restoreView
	case phase.ApplyRequestValues:
		return func(fctx *faces.Context) error {
			return l.process(fctx, p, (*component.Component).ProcessDecodes)
		}
	case phase.ProcessValidations:
		return func(fctx *faces.Context) error {
			return l.process(fctx, p, (*component.Component).ProcessValidators)
		}
	case phase.UpdateModelValues:
		return func(fctx *faces.Context) error {
			return l.process(fctx, p, (*component.Component).ProcessUpdates)
		}
	case phase.InvokeApplication:
		return func(fctx *faces.Context) error {
			fctx.ViewRoot().BroadcastEvents(fctx, p)

			return nil
		}
	}

	return func(*faces.Context) error { return nil }
}

// run executes one phase: before listeners in order, the body unless a
// listener completed the response or skipped ahead to rendering, and the
// after listeners whose before call succeeded in reverse order. Queued
// exceptions are handled last.
func (l *Lifecycle) run(fctx *faces.Context, p phase.ID, body func(*faces.Context) error) error {
	start := time.Now()
	defer func() { metrics.ObservePhaseTime(p.String(), time.Since(start)) }()

	listeners := l.listenersFor(fctx, p)
	called := make([]component.PhaseListener, 0, len(listeners))

	for _, pl := range listeners {
		if l.guard(fctx, p, func() error { return pl.BeforePhase(fctx, p) }) {
			called = append(called, pl)
		}
	}

	skip := fctx.IsResponseComplete() || (p != phase.RenderResponse && fctx.IsRenderResponse())
	if !skip {
		l.guard(fctx, p, func() error { return body(fctx) })
	}

	for i := len(called) - 1; i >= 0; i-- {
		pl := called[i]
		l.guard(fctx, p, func() error { return pl.AfterPhase(fctx, p) })
	}

	if !fctx.HasExceptions() {
		return nil
	}

	if err := l.exceptions.Handle(fctx, fctx.DrainExceptions()); err != nil {
		metrics.IncErrorCount(metrics.ComponentLifecycle, p.String())

		return fmt.Errorf("%s: %w", p, err)
	}

	return nil
}

// guard calls fn and queues its error or panic. It reports whether fn
// succeeded.
func (l *Lifecycle) guard(fctx *faces.Context, p phase.ID, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("Panic in %s: %v\n%s", p, r, debug.Stack())
			fctx.QueueException(fmt.Errorf("panic: %v", r))

			ok = false
		}
	}()

	if err := fn(); err != nil {
		fctx.QueueException(err)

		return false
	}

	return true
}

// process applies fn to the view, or to the execute subset of a partial
// request, and broadcasts the events queued for p.
func (l *Lifecycle) process(fctx *faces.Context, p phase.ID, fn func(*component.Component, component.Context)) error {
	root := fctx.ViewRoot()
	pv := fctx.Partial()

	if !pv.IsPartialRequest() || pv.IsExecuteAll() {
		fn(root.Component, fctx)
	} else {
		ids := pv.ExecuteIDs(root)
		if len(ids) > 0 {
			root.Visit(component.NewVisitContext(fctx, ids, true), func(c *component.Component) component.VisitResult {
				fn(c, fctx)

				return component.VisitReject
			})
		}
	}

	root.BroadcastEvents(fctx, p)

	return nil
}

// ensureView gives the request a fresh view when restoring failed and the
// exception handler let the request continue.
func (l *Lifecycle) ensureView(fctx *faces.Context) error {
	if fctx.ViewRoot() != nil || fctx.IsResponseComplete() {
		return nil
	}

	viewID := ViewIDFromPath(fctx.External().RequestPath())

	root, err := l.app.VDL().CreateView(fctx.Context(), viewID)
	if err != nil {
		return fmt.Errorf("%s: %w", phase.RestoreView, err)
	}

	fctx.SetViewRoot(root)
	fctx.RenderResponse()

	return nil
}

// ViewIDFromPath maps a request path to a view id. Directories map to
// their index page and the .jsf and .faces mappings to .xhtml.
func ViewIDFromPath(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return "/index.xhtml"
	}

	switch ext := path.Ext(p); ext {
	case "":
		return p + ".xhtml"
	case ".jsf", ".faces":
		return strings.TrimSuffix(p, ext) + ".xhtml"
	}

	return p
}
