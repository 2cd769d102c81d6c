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
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

const viewSuffix = ".xhtml"

// NavigationCase is an explicit navigation rule. Empty match fields and a
// FromViewID of "*" match everything.
type NavigationCase struct {
	FromViewID  string
	FromAction  string
	FromOutcome string
	ToViewID    string
	Redirect    bool
}

func (nc NavigationCase) matches(viewID, action, outcome string) bool {
	if nc.FromViewID != "" && nc.FromViewID != "*" && nc.FromViewID != viewID {
		return false
	}

	if nc.FromAction != "" && nc.FromAction != action {
		return false
	}

	return nc.FromOutcome == "" || nc.FromOutcome == outcome
}

// NavigationHandler turns action outcomes into view changes.
type NavigationHandler struct {
	app *Application
	log *zap.SugaredLogger

	mu    sync.RWMutex
	cases []NavigationCase
}

// AddCase registers an explicit rule. Rules are tried in registration
// order before implicit navigation.
func (n *NavigationHandler) AddCase(nc NavigationCase) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cases = append(n.cases, nc)
}

func (n *NavigationHandler) match(viewID, action, outcome string) (NavigationCase, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, nc := range n.cases {
		if nc.matches(viewID, action, outcome) {
			return nc, true
		}
	}

	return NavigationCase{}, false
}

// InvokeAction runs the action of the event source and navigates on its
// outcome. A nil or empty outcome redisplays the current view.
func (n *NavigationHandler) InvokeAction(fctx *Context, e *component.ActionEvent) error {
	src := e.Source()

	var action, outcome string

	if ve, ok := src.ValueExpression("action"); ok {
		action = ve.Expr

		res, err := ve.Invoke(fctx.elctx)
		if err != nil {
			return err
		}

		if res != nil {
			outcome = el.ToString(res)
		}
	} else if v, ok := src.Attr("action"); ok {
		outcome = el.ToString(v)
	}

	if outcome == "" {
		return nil
	}

	return n.HandleNavigation(fctx, action, outcome)
}

// target is the resolved destination of an outcome.
type target struct {
	viewID   string
	query    url.Values
	redirect bool
}

// HandleNavigation navigates from the current view on outcome.
func (n *NavigationHandler) HandleNavigation(fctx *Context, action, outcome string) error {
	if fctx.root == nil {
		return errors.New("navigation without a view")
	}

	current := fctx.root.ViewID()

	outcome, flowTarget, err := n.flows(fctx, outcome)
	if err != nil {
		return err
	}

	var t target

	switch {
	case flowTarget != "":
		t = target{viewID: flowTarget}
	case outcome == "":
		return nil
	default:
		var ok bool

		t, ok = n.resolve(current, action, outcome)
		if !ok {
			n.log.Debugf("No navigation case for outcome %q from %s", outcome, current)

			return nil
		}
	}

	if !n.app.c.VDL.ViewExists(t.viewID) {
		n.log.Warnf("Navigation from %s on %q targets unknown view %s", current, outcome, t.viewID)
		fctx.AddMessage("", component.Message{
			Severity: component.SeverityWarn,
			Summary:  fmt.Sprintf("Unable to find matching navigation case for outcome %q", outcome),
		})

		return nil
	}

	if t.redirect {
		return n.redirect(fctx, t)
	}

	root, err := n.app.c.VDL.CreateView(fctx.ctx, t.viewID)
	if err != nil {
		return err
	}

	fctx.SetViewRoot(root)
	fctx.RenderResponse()

	if fctx.partial.IsAjaxRequest() {
		fctx.partial.SetRenderAll(true)
	}

	n.log.Debugf("Navigated from %s to %s", current, t.viewID)

	return nil
}

// flows enters a flow named by outcome or leaves the active flow on its
// return outcome. It returns the outcome left to resolve and the start
// view of an entered flow.
func (n *NavigationHandler) flows(fctx *Context, outcome string) (string, string, error) {
	flows := n.app.c.Flows

	if sess := fctx.Session(false); sess != nil {
		active, ok, err := flows.Current(fctx.ctx, sess, fctx.windowID)
		if err != nil {
			return "", "", err
		}

		if ok && outcome == active.Flow.ID+constants.FlowReturnSuffix {
			if _, err := flows.Exit(fctx.ctx, sess, fctx.windowID); err != nil {
				return "", "", err
			}

			return active.Flow.Return, "", nil
		}
	}

	f, ok := flows.Registry().Lookup("", outcome)
	if !ok {
		return outcome, "", nil
	}

	active, err := flows.Enter(fctx.ctx, fctx.Session(true), fctx.windowID, f.DocumentID, f.ID)
	if err != nil {
		return "", "", err
	}

	start := active.Flow.Start
	if start == "" {
		start = "/" + f.ID + "/" + f.ID + viewSuffix
	}

	return outcome, start, nil
}

func (n *NavigationHandler) resolve(current, action, outcome string) (target, bool) {
	if nc, ok := n.match(current, action, outcome); ok {
		t := parseOutcome(current, nc.ToViewID)
		t.redirect = t.redirect || nc.Redirect

		return t, true
	}

	return parseOutcome(current, outcome), true
}

// parseOutcome turns an implicit outcome such as "edit?faces-redirect=true"
// into a view id relative to the current view.
func parseOutcome(current, outcome string) target {
	p, rawQuery, _ := strings.Cut(outcome, "?")

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}

	redirect := query.Get(constants.RedirectParam) == "true"
	query.Del(constants.RedirectParam)

	if path.Ext(p) == "" {
		p += viewSuffix
	}

	if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir(current), p)
	}

	return target{viewID: p, query: query, redirect: redirect}
}

// redirect completes the response with a redirect to t. The flash of the
// request survives the redirect.
func (n *NavigationHandler) redirect(fctx *Context, t target) error {
	query := url.Values{}
	for k, vs := range t.query {
		query[k] = append([]string(nil), vs...)
	}

	if fctx.HasFlash() && n.app.c.Flash.Keep(fctx.flashToken) {
		query.Set(constants.FlashParam, fctx.flashToken)
	}

	location := t.viewID
	if len(query) > 0 {
		location += "?" + query.Encode()
	}

	location, err := n.app.c.Windows.URL(location, fctx.windowID)
	if err != nil {
		return fmt.Errorf("redirect to %s: %w", t.viewID, err)
	}

	fctx.ext.Redirect(location)
	fctx.ResponseComplete()

	n.log.Debugf("Redirecting to %s", location)

	return nil
}
