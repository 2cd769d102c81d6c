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

package faces_test

import (
	"context"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
)

var _ = Describe("NavigationHandler", func() {
	var (
		app  *faces.Application
		fctx *faces.Context
	)

	start := func(viewID string, form url.Values, configure func(c *faces.Collaborators)) {
		app = newApp(views("/app/list.xhtml", "/app/edit.xhtml", "/home.xhtml", "/wizard/wizard.xhtml", "/done.xhtml"), configure)
		fctx, _ = newRequest(app, viewID, form)

		root, err := app.VDL().CreateView(context.Background(), viewID)
		Expect(err).NotTo(HaveOccurred())
		fctx.SetViewRoot(root)
	}

	BeforeEach(func() {
		start("/app/list.xhtml", nil, nil)
	})

	It("resolves implicit outcomes relative to the current view", func() {
		Expect(app.Navigation().HandleNavigation(fctx, "", "edit")).To(Succeed())

		Expect(fctx.ViewRoot().ViewID()).To(Equal("/app/edit.xhtml"))
		Expect(fctx.IsRenderResponse()).To(BeTrue())
		Expect(fctx.ViewRoot().BuildState()).To(Equal(component.Unbuilt))
	})

	It("resolves absolute outcomes", func() {
		Expect(app.Navigation().HandleNavigation(fctx, "", "/home")).To(Succeed())
		Expect(fctx.ViewRoot().ViewID()).To(Equal("/home.xhtml"))
	})

	It("stays on the view for unknown targets and reports it", func() {
		Expect(app.Navigation().HandleNavigation(fctx, "", "missing")).To(Succeed())

		Expect(fctx.ViewRoot().ViewID()).To(Equal("/app/list.xhtml"))
		Expect(fctx.Messages("")).To(HaveLen(1))
		Expect(fctx.IsRenderResponse()).To(BeFalse())
	})

	It("redirects and keeps the flash", func() {
		fctx.Flash().Put("notice", "saved")

		Expect(app.Navigation().HandleNavigation(fctx, "", "edit?faces-redirect=true&id=7")).To(Succeed())

		location, ok := fctx.External().RedirectLocation()
		Expect(ok).To(BeTrue())
		Expect(fctx.IsResponseComplete()).To(BeTrue())

		u, err := url.Parse(location)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Path).To(Equal("/app/edit.xhtml"))
		Expect(u.Query().Get("id")).To(Equal("7"))
		Expect(u.Query().Get(constants.FlashParam)).To(Equal(fctx.FlashToken()))

		next, _ := newRequest(app, location, nil)
		Expect(next.UseFlash(u.Query().Get(constants.FlashParam))).To(BeTrue())
		Expect(next.Eval("#{flash.notice}")).To(Equal("saved"))
	})

	It("adds the client window to redirects in url mode", func() {
		start("/app/list.xhtml", nil, func(c *faces.Collaborators) {
			c.Windows = scope.NewClientWindows(scope.WindowModeURL, 4, nil, nil)
		})
		fctx.SetWindowID("w1")

		Expect(app.Navigation().HandleNavigation(fctx, "", "/home?faces-redirect=true")).To(Succeed())

		location, _ := fctx.External().RedirectLocation()
		u, err := url.Parse(location)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Query().Get(constants.ClientWindowParam)).To(Equal("w1"))
	})

	It("prefers explicit cases", func() {
		app.Navigation().AddCase(faces.NavigationCase{FromViewID: "*", FromOutcome: "cancel", ToViewID: "/home.xhtml", Redirect: true})

		Expect(app.Navigation().HandleNavigation(fctx, "", "cancel")).To(Succeed())

		location, ok := fctx.External().RedirectLocation()
		Expect(ok).To(BeTrue())
		Expect(location).To(Equal("/home.xhtml"))
	})

	It("renders the whole view after navigating in an ajax request", func() {
		start("/app/list.xhtml", url.Values{constants.PartialAjaxParam: {"true"}, constants.PartialRenderParam: {"out"}}, nil)
		Expect(fctx.Partial().IsRenderAll()).To(BeFalse())

		Expect(app.Navigation().HandleNavigation(fctx, "", "edit")).To(Succeed())
		Expect(fctx.Partial().IsRenderAll()).To(BeTrue())
	})

	It("navigates on the outcome of an action method", func() {
		setValue(fctx, "#{requestScope.nav}", &navigator{outcome: "/home"})

		button := component.MustNew(component.TypeCommandButton)
		button.SetValueExpression("action", el.NewValueExpression("#{nav.save}"))

		Expect(fctx.InvokeAction(component.NewActionEvent(button))).To(Succeed())
		Expect(fctx.ViewRoot().ViewID()).To(Equal("/home.xhtml"))
	})

	It("redisplays the view on an empty outcome", func() {
		setValue(fctx, "#{requestScope.nav}", &navigator{})
		before := fctx.ViewRoot()

		button := component.MustNew(component.TypeCommandButton)
		button.SetValueExpression("action", el.NewValueExpression("#{nav.save}"))

		Expect(fctx.InvokeAction(component.NewActionEvent(button))).To(Succeed())
		Expect(fctx.ViewRoot()).To(BeIdenticalTo(before))
	})

	It("uses literal action outcomes", func() {
		button := component.MustNew(component.TypeCommandButton)
		button.SetAttr("action", "edit")

		Expect(fctx.InvokeAction(component.NewActionEvent(button))).To(Succeed())
		Expect(fctx.ViewRoot().ViewID()).To(Equal("/app/edit.xhtml"))
	})

	It("enters and leaves flows", func() {
		Expect(app.Flows().Registry().Register(&scope.Flow{
			ID:          "wizard",
			Return:      "/done",
			Initializer: func(s *scope.LazyMap) { s.Put("step", 1) },
		})).To(Succeed())

		Expect(app.Navigation().HandleNavigation(fctx, "", "wizard")).To(Succeed())
		Expect(fctx.ViewRoot().ViewID()).To(Equal("/wizard/wizard.xhtml"))
		Expect(fctx.Eval("#{flowScope.step}")).To(Equal(1))

		Expect(app.Navigation().HandleNavigation(fctx, "", "wizard-return")).To(Succeed())
		Expect(fctx.ViewRoot().ViewID()).To(Equal("/done.xhtml"))

		_, active, err := fctx.FlowScope()
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(BeFalse())
	})
})

var _ = Describe("PartialViewContext", func() {
	var (
		app  *faces.Application
		root *component.ViewRoot
	)

	BeforeEach(func() {
		app = newApp(views("/index.xhtml"), nil)

		var err error
		root, err = app.VDL().CreateView(context.Background(), "/index.xhtml")
		Expect(err).NotTo(HaveOccurred())

		form := component.MustNew(component.TypeForm)
		Expect(form.SetID("f")).To(Succeed())
		Expect(root.AddChild(form)).To(Succeed())

		in := component.MustNew(component.TypeInputText)
		Expect(in.SetID("in")).To(Succeed())
		Expect(form.AddChild(in)).To(Succeed())
	})

	partial := func(form url.Values) *faces.PartialViewContext {
		form.Set(constants.PartialAjaxParam, "true")
		fctx, _ := newRequest(app, "/index.xhtml", form)

		return fctx.Partial()
	}

	It("executes everything outside ajax requests", func() {
		fctx, _ := newRequest(app, "/index.xhtml", url.Values{})
		Expect(fctx.Partial().IsAjaxRequest()).To(BeFalse())
		Expect(fctx.Partial().ExecuteIDs(root)).To(BeNil())
		Expect(fctx.Partial().IsRenderAll()).To(BeTrue())
	})

	It("defaults the execute list to the source", func() {
		p := partial(url.Values{constants.SourceParam: {"f:in"}})

		Expect(p.ExecuteIDs(root)).To(Equal([]string{"f:in"}))
		Expect(p.RenderIDs(root)).To(BeEmpty())
	})

	It("resolves keywords", func() {
		p := partial(url.Values{
			constants.SourceParam:         {"f:in"},
			constants.PartialExecuteParam: {"@form @this :f:in"},
			constants.PartialRenderParam:  {"@all"},
		})

		Expect(p.ExecuteIDs(root)).To(Equal([]string{"f", "f:in"}))
		Expect(p.IsRenderAll()).To(BeTrue())
		Expect(p.RenderIDs(root)).To(BeNil())
	})
})
