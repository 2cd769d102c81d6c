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

package lifecycle

import (
	"bytes"
	"fmt"
	"io"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
	"github.com/united-manufacturing-hub/faces-core/pkg/render"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
	"github.com/united-manufacturing-hub/faces-core/pkg/sentry"
	"github.com/united-manufacturing-hub/faces-core/pkg/standarderrors"
)

// restoreView installs the view of the request. A postback restores the
// saved state, any other request creates a new view and skips to rendering.
func (l *Lifecycle) restoreView(fctx *faces.Context) error {
	ctx := fctx.Context()
	viewID := ViewIDFromPath(fctx.External().RequestPath())

	if err := l.resolveWindow(fctx); err != nil {
		return err
	}

	if !fctx.IsPostback() {
		if token, ok := fctx.Param(constants.FlashParam); ok && !fctx.UseFlash(token) {
			l.log.Debugf("Flash %s for %s expired", token, viewID)
		}

		root, err := l.app.VDL().CreateView(ctx, viewID)
		if err != nil {
			return err
		}

		fctx.SetViewRoot(root)
		fctx.RenderResponse()

		return nil
	}

	root, err := l.states.RestoreView(ctx, fctx, viewID)
	if err != nil {
		sentry.ReportStateError(l.log, viewID, "restore", err)

		return err
	}

	if id, ok := fctx.Param(constants.RenderKitIDParam); ok && id != "" {
		root.SetRenderKitID(id)
	}

	if pv := fctx.Partial(); pv.IsPartialRequest() && pv.ResetValues() {
		resetValues(fctx, root, pv.RenderIDs(root))
	}

	return nil
}

func (l *Lifecycle) resolveWindow(fctx *faces.Context) error {
	windows := l.app.Windows()
	if windows.Mode() == scope.WindowModeNone {
		return nil
	}

	requested, _ := fctx.Param(constants.ClientWindowParam)

	id, err := windows.Resolve(fctx.Context(), fctx.Session(true), requested)
	if err != nil {
		return fmt.Errorf("resolve client window: %w", err)
	}

	fctx.SetWindowID(id)

	return nil
}

// resetValues clears the inputs below the render targets so they show the
// model again.
func resetValues(fctx *faces.Context, root *component.ViewRoot, ids []string) {
	if len(ids) == 0 {
		return
	}

	root.Visit(component.NewVisitContext(fctx, ids, false), func(c *component.Component) component.VisitResult {
		c.Walk(func(k *component.Component) bool {
			if k.Has(component.CapEditableValueHolder) {
				k.ResetValue()
			}

			return true
		})

		return component.VisitReject
	})
}

// Render runs RENDER_RESPONSE and writes the page, or the partial response
// of an ajax request, to w. Nothing is written when the response is
// complete or rendering failed.
func (l *Lifecycle) Render(fctx *faces.Context, w io.Writer) error {
	if fctx.IsResponseComplete() {
		return nil
	}

	if err := l.machine(fctx).Event(fctx.Context(), phase.RenderResponse.String()); err != nil {
		return fmt.Errorf("enter %s: %w", phase.RenderResponse, err)
	}

	var out bytes.Buffer

	err := l.run(fctx, phase.RenderResponse, func(fctx *faces.Context) error {
		return l.renderView(fctx, &out)
	})
	if err != nil {
		return err
	}

	if fctx.IsResponseComplete() {
		return nil
	}

	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

func (l *Lifecycle) renderView(fctx *faces.Context, out io.Writer) error {
	root := fctx.ViewRoot()
	if root == nil {
		return standarderrors.ErrViewNotFound
	}

	ctx := fctx.Context()
	vdl := l.app.VDL()

	root.ClearEvents()

	if fctx.IsPostback() && root.BuildState() == component.Built && vdl.RefreshNeeded(ctx, root) {
		root.MarkDirty()
	}

	if err := vdl.BuildView(ctx, fctx, root); err != nil {
		return fmt.Errorf("build %s: %w", root.ViewID(), err)
	}

	if l.states.IsPartial() && !root.IsTransient() && !root.IsInitialStateMarked() {
		if err := root.MarkInitialState(); err != nil {
			return fmt.Errorf("mark initial state of %s: %w", root.ViewID(), err)
		}
	}

	token, err := l.states.SaveView(ctx, fctx)
	if err != nil {
		sentry.ReportStateError(l.log, root.ViewID(), "save", err)

		return fmt.Errorf("save %s: %w", root.ViewID(), err)
	}

	fctx.SetViewState(token)

	if fctx.Partial().IsPartialRequest() {
		return l.renderPartial(fctx, root, out)
	}

	return l.kit.NewEncoder(fctx, out).Encode(root.Component)
}

// renderPartial writes updates for the render targets, for resources added
// since the view was restored, and for the state fields.
func (l *Lifecycle) renderPartial(fctx *faces.Context, root *component.ViewRoot, out io.Writer) error {
	pv := fctx.Partial()
	pw := render.NewPartialWriter(out)

	encode := func(cs ...*component.Component) func(io.Writer) error {
		return func(w io.Writer) error {
			enc := l.kit.NewEncoder(fctx, w)
			for _, c := range cs {
				if err := enc.Encode(c); err != nil {
					return err
				}
			}

			return nil
		}
	}

	pw.StartDocument(root.ClientID())

	if pv.IsRenderAll() {
		if err := pw.Update(constants.PartialViewRoot, encode(root.Component)); err != nil {
			return err
		}
	} else {
		rendered := make(map[string]bool)

		for _, id := range pv.RenderIDs(root) {
			c := root.FindByClientID(id)
			if c == nil {
				l.log.Debugf("Render target %s not found in %s", id, root.ViewID())

				continue
			}

			updateID := c.ClientID()

			switch c.Type() {
			case component.TypeHead:
				updateID = constants.PartialViewHead
				rendered[constants.TargetHead] = true
			case component.TypeBody:
				updateID = constants.PartialViewBody
				rendered[constants.TargetBody] = true
			}

			if err := pw.Update(updateID, encode(c)); err != nil {
				return err
			}
		}

		for _, target := range fctx.AddedResourceTargets() {
			// The container renderer already wrote these.
			if rendered[target] {
				continue
			}

			if err := pw.Update(constants.PartialResource, encode(fctx.AddedResources(target)...)); err != nil {
				return err
			}
		}
	}

	err := pw.Update(render.ViewStateID(root, 0), func(w io.Writer) error {
		_, err := io.WriteString(w, fctx.ViewState())

		return err
	})
	if err != nil {
		return err
	}

	if window := fctx.WindowID(); window != "" {
		err := pw.Update(render.ClientWindowID(root, 0), func(w io.Writer) error {
			_, err := io.WriteString(w, window)

			return err
		})
		if err != nil {
			return err
		}
	}

	return pw.EndDocument()
}

// WriteRedirect writes the partial response telling an ajax client to load
// location.
func WriteRedirect(w io.Writer, rootID, location string) error {
	pw := render.NewPartialWriter(w)
	pw.StartDocument(rootID)
	pw.Redirect(location)

	return pw.EndDocument()
}
