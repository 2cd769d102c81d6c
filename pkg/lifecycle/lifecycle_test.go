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

package lifecycle_test

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/lifecycle"
	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
	"github.com/united-manufacturing-hub/faces-core/pkg/standarderrors"
)

var _ = Describe("Lifecycle", func() {
	var (
		h   *harness
		rec *recorder
	)

	BeforeEach(func() {
		h = newHarness(false, nil)
		rec = &recorder{}
	})

	get := func() string {
		_, page, err := h.do("/form.xhtml", nil)
		Expect(err).NotTo(HaveOccurred())

		return page
	}

	Context("initial requests", func() {
		It("creates the view and skips to rendering", func() {
			h.lc.AddPhaseListener(rec.listener("a", phase.Any))

			fctx, page, err := h.do("/form.xhtml", nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(fctx.ViewRoot().ViewID()).To(Equal("/form.xhtml"))
			Expect(page).To(ContainSubstring(`<form id="f"`))
			Expect(page).To(ContainSubstring("<head></head>"))
			Expect(viewState(page)).NotTo(BeEmpty())
			Expect(rec.Calls()).To(Equal([]string{
				"before a RESTORE_VIEW", "after a RESTORE_VIEW",
				"before a RENDER_RESPONSE", "after a RENDER_RESPONSE",
			}))
		})

		It("maps request paths to view ids", func() {
			Expect(lifecycle.ViewIDFromPath("/")).To(Equal("/index.xhtml"))
			Expect(lifecycle.ViewIDFromPath("/form")).To(Equal("/form.xhtml"))
			Expect(lifecycle.ViewIDFromPath("/app/form.jsf")).To(Equal("/app/form.xhtml"))
			Expect(lifecycle.ViewIDFromPath("app/../form.xhtml")).To(Equal("/form.xhtml"))
		})

		It("fails for unknown views", func() {
			_, _, err := h.do("/missing.xhtml", nil)
			Expect(errors.Is(err, standarderrors.ErrViewNotFound)).To(BeTrue())
		})

		It("enters the render phase only once", func() {
			fctx, _, err := h.do("/form.xhtml", nil)
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(h.lc.Render(fctx, &buf)).To(MatchError(ContainSubstring("enter RENDER_RESPONSE")))
			Expect(buf.Len()).To(BeZero())
		})
	})

	Context("postbacks", func() {
		It("updates the model, invokes the action and rebuilds the view", func() {
			page := get()

			_, page, err := h.do("/form.xhtml", submit(page, map[string]string{"f:name": "grace", "f:save": "Save"}))
			Expect(err).NotTo(HaveOccurred())

			Expect(h.user.Name).To(Equal("grace"))
			Expect(h.user.Saved).To(BeTrue())
			Expect(page).To(ContainSubstring(`<span id="greeting">grace</span>`))
			Expect(page).To(ContainSubstring(`<script src="/jakarta.faces.resource/saved.js"></script></head>`))
		})

		It("renders validation errors without touching the model", func() {
			page := get()
			h.lc.AddPhaseListener(rec.listener("a", phase.Any))

			_, page, err := h.do("/form.xhtml", submit(page, map[string]string{"f:name": "", "f:save": "Save"}))
			Expect(err).NotTo(HaveOccurred())

			Expect(h.user.Saved).To(BeFalse())
			Expect(page).To(ContainSubstring(`<li class="error">f:name: Validation Error: Value is required.</li>`))
			Expect(rec.Calls()).To(Equal([]string{
				"before a RESTORE_VIEW", "after a RESTORE_VIEW",
				"before a APPLY_REQUEST_VALUES", "after a APPLY_REQUEST_VALUES",
				"before a PROCESS_VALIDATIONS", "after a PROCESS_VALIDATIONS",
				"before a RENDER_RESPONSE", "after a RENDER_RESPONSE",
			}))
		})

		It("navigates to the outcome of the action", func() {
			page := get()

			fctx, page, err := h.do("/form.xhtml", submit(page, map[string]string{"f:name": "ada", "f:finish": "Finish"}))
			Expect(err).NotTo(HaveOccurred())

			Expect(fctx.ViewRoot().ViewID()).To(Equal("/done.xhtml"))
			Expect(page).To(ContainSubstring("Done ada"))
		})

		It("restores views saved as deltas", func() {
			h = newHarness(true, nil)
			page := get()

			_, page, err := h.do("/form.xhtml", submit(page, map[string]string{"f:name": "grace", "f:save": "Save"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(ContainSubstring(`value="grace"`))
			Expect(page).To(ContainSubstring("saved.js"))

			_, _, err = h.do("/form.xhtml", submit(page, map[string]string{"f:name": "hopper", "f:save": "Save"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(h.user.Name).To(Equal("hopper"))
		})
	})

	Context("phase listeners", func() {
		It("calls after listeners in reverse order and view listeners last", func() {
			h.lc.AddPhaseListener(&component.PhaseListenerFuncs{
				Phase: phase.RestoreView,
				After: func(ctx component.Context, _ phase.ID) error {
					ctx.(*faces.Context).ViewRoot().AddPhaseListener(rec.listener("view", phase.RenderResponse))

					return nil
				},
			})
			h.lc.AddPhaseListener(rec.listener("a", phase.RenderResponse))
			h.lc.AddPhaseListener(rec.listener("b", phase.RenderResponse))

			get()

			Expect(rec.Calls()).To(Equal([]string{
				"before a RENDER_RESPONSE", "before b RENDER_RESPONSE", "before view RENDER_RESPONSE",
				"after view RENDER_RESPONSE", "after b RENDER_RESPONSE", "after a RENDER_RESPONSE",
			}))
		})

		It("removes listeners", func() {
			a := rec.listener("a", phase.Any)
			h.lc.AddPhaseListener(a)

			Expect(h.lc.RemovePhaseListener(a)).To(BeTrue())
			Expect(h.lc.RemovePhaseListener(a)).To(BeFalse())

			get()
			Expect(rec.Calls()).To(BeEmpty())
		})

		It("skips to rendering when a listener asks for it in APPLY_REQUEST_VALUES", func() {
			page := get()

			h.lc.AddPhaseListener(&component.PhaseListenerFuncs{
				Phase: phase.ApplyRequestValues,
				Before: func(ctx component.Context, _ phase.ID) error {
					ctx.RenderResponse()

					return nil
				},
			})
			h.lc.AddPhaseListener(rec.listener("a", phase.Any))

			_, page, err := h.do("/form.xhtml", submit(page, map[string]string{"f:name": "grace", "f:save": "Save"}))
			Expect(err).NotTo(HaveOccurred())

			Expect(h.user.Name).To(BeEmpty())
			Expect(h.user.Saved).To(BeFalse())
			Expect(page).To(ContainSubstring(`<form id="f"`))
			Expect(rec.Calls()).To(Equal([]string{
				"before a RESTORE_VIEW", "after a RESTORE_VIEW",
				"before a APPLY_REQUEST_VALUES", "after a APPLY_REQUEST_VALUES",
				"before a RENDER_RESPONSE", "after a RENDER_RESPONSE",
			}))
		})

		It("only calls after listeners whose before call succeeded", func() {
			h = newHarness(false, lifecycle.LoggingExceptionHandler{})

			h.lc.AddPhaseListener(rec.listener("a", phase.RestoreView))
			h.lc.AddPhaseListener(&component.PhaseListenerFuncs{
				Phase:  phase.RestoreView,
				Before: func(component.Context, phase.ID) error { return errListener },
				After: func(component.Context, phase.ID) error {
					rec.add("after b")

					return nil
				},
			})

			_, page, err := h.do("/form.xhtml", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(ContainSubstring(`<form id="f"`))
			Expect(rec.Calls()).To(Equal([]string{"before a RESTORE_VIEW", "after a RESTORE_VIEW"}))
		})

		It("aborts with listener errors by default", func() {
			h.lc.AddPhaseListener(&component.PhaseListenerFuncs{
				Phase: phase.RestoreView,
				After: func(component.Context, phase.ID) error { return errListener },
			})

			_, page, err := h.do("/form.xhtml", nil)
			Expect(err).To(MatchError(errListener))
			Expect(err).To(MatchError(ContainSubstring("RESTORE_VIEW")))
			Expect(page).To(BeEmpty())
		})
	})

	Context("exceptions", func() {
		It("turns panics into errors of the phase", func() {
			page := get()
			h.user.Panic = true

			_, _, err := h.do("/form.xhtml", submit(page, map[string]string{"f:name": "grace", "f:save": "Save"}))
			Expect(err).To(MatchError(ContainSubstring("INVOKE_APPLICATION")))
			Expect(err).To(MatchError(ContainSubstring("save exploded")))
		})

		It("reports expired views", func() {
			_, _, err := h.do("/form.xhtml", url.Values{"f": {"f"}, constants.ViewStateParam: {"garbage"}})
			Expect(errors.Is(err, standarderrors.ErrViewExpired)).To(BeTrue())
		})

		It("maps expired views to a distinct error", func() {
			h = newHarness(false, lifecycle.ViewExpiredExceptionHandler{})

			_, _, err := h.do("/form.xhtml", url.Values{"f": {"f"}, constants.ViewStateParam: {"garbage"}})

			var expired *lifecycle.ViewExpiredError
			Expect(errors.As(err, &expired)).To(BeTrue())
			Expect(expired.ViewID).To(Equal("/form.xhtml"))
			Expect(errors.Is(err, standarderrors.ErrViewExpired)).To(BeTrue())
		})

		It("renders the expired page when one is configured", func() {
			h = newHarness(false, lifecycle.ViewExpiredExceptionHandler{Page: "/expired.xhtml"})

			fctx, page, err := h.do("/form.xhtml", url.Values{"f": {"f"}, constants.ViewStateParam: {"garbage"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(fctx.ViewRoot().ViewID()).To(Equal("/expired.xhtml"))
			Expect(page).To(ContainSubstring("Expired /form.xhtml"))
		})

		It("hands other errors to the wrapped handler", func() {
			handler := lifecycle.ViewExpiredExceptionHandler{
				ExceptionHandlerWrapper: lifecycle.ExceptionHandlerWrapper{Wrapped: lifecycle.LoggingExceptionHandler{}},
			}

			h = newHarness(false, handler)
			h.lc.AddPhaseListener(&component.PhaseListenerFuncs{
				Phase: phase.RestoreView,
				After: func(component.Context, phase.ID) error { return errListener },
			})

			_, page, err := h.do("/form.xhtml", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(ContainSubstring(`<form id="f"`))
		})
	})

	Context("ajax requests", func() {
		ajax := func(page, render string) url.Values {
			form := submit(page, map[string]string{"f:name": "grace", "f:save": "Save"})
			form.Set(constants.PartialAjaxParam, "true")
			form.Set(constants.SourceParam, "f:save")
			form.Set(constants.PartialExecuteParam, constants.KeywordForm)
			form.Set(constants.PartialRenderParam, render)

			return form
		}

		It("renders updates for the render ids and resources added on the way", func() {
			page := get()

			_, resp, err := h.do("/form.xhtml", ajax(page, "greeting"))
			Expect(err).NotTo(HaveOccurred())

			Expect(h.user.Saved).To(BeTrue())
			Expect(resp).To(HavePrefix(`<?xml version="1.0" encoding="UTF-8"?>`))
			Expect(resp).To(ContainSubstring(`<partial-response id="j_id1"><changes>`))
			Expect(resp).To(ContainSubstring(`<update id="greeting"><![CDATA[<span id="greeting">grace</span>]]></update>`))
			Expect(resp).To(ContainSubstring(`<update id="jakarta.faces.Resource"><![CDATA[<script src="/jakarta.faces.resource/saved.js"></script>]]></update>`))
			Expect(resp).To(ContainSubstring(`<update id="j_id1:jakarta.faces.ViewState:0"><![CDATA[`))
			Expect(resp).NotTo(ContainSubstring("<form"))
			Expect(resp).To(HaveSuffix("</changes></partial-response>"))
		})

		It("writes the head under its pseudo id without repeating its resources", func() {
			fctx, page, err := h.do("/form.xhtml", nil)
			Expect(err).NotTo(HaveOccurred())

			var head *component.Component
			var find func(c *component.Component)
			find = func(c *component.Component) {
				if c.Type() == component.TypeHead {
					head = c
				}
				for _, k := range c.FacetsAndChildren() {
					find(k)
				}
			}
			find(fctx.ViewRoot().Component)
			Expect(head).NotTo(BeNil())

			_, resp, err := h.do("/form.xhtml", ajax(page, head.ClientID()))
			Expect(err).NotTo(HaveOccurred())

			Expect(resp).To(ContainSubstring(`<update id="jakarta.faces.ViewHead"><![CDATA[<head>`))
			Expect(resp).NotTo(ContainSubstring(`<update id="` + head.ClientID() + `">`))
			Expect(resp).NotTo(ContainSubstring(`<update id="jakarta.faces.Resource">`))
			Expect(strings.Count(resp, "saved.js")).To(Equal(1))
		})

		It("only executes the requested components", func() {
			page := get()

			form := ajax(page, "@none")
			form.Set(constants.PartialExecuteParam, "f:save")

			_, resp, err := h.do("/form.xhtml", form)
			Expect(err).NotTo(HaveOccurred())

			Expect(h.user.Saved).To(BeTrue())
			Expect(h.user.Name).To(BeEmpty())
			Expect(resp).NotTo(ContainSubstring(`<update id="greeting">`))
		})

		It("renders the whole view after navigation", func() {
			page := get()

			form := ajax(page, "greeting")
			form.Del("f:save")
			form.Set("f:finish", "Finish")
			form.Set(constants.SourceParam, "f:finish")

			_, resp, err := h.do("/form.xhtml", form)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(ContainSubstring(`<update id="jakarta.faces.ViewRoot"><![CDATA[<html><body>Done grace</body></html>]]></update>`))
		})

		It("writes redirects", func() {
			var buf bytes.Buffer
			Expect(lifecycle.WriteRedirect(&buf, "j_id1", "/done.xhtml")).To(Succeed())
			Expect(buf.String()).To(HaveSuffix(`<partial-response id="j_id1"><redirect url="/done.xhtml"/></partial-response>`))
		})
	})
})
