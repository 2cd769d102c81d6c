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
	"errors"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
)

type counter struct{ N int }

type navigator struct{ outcome string }

func (n *navigator) Save() string { return n.outcome }

func setValue(fctx *faces.Context, expr string, v any) {
	Expect(el.NewValueExpression(expr).SetValue(fctx.ELContext(), v)).To(Succeed())
}

var _ = Describe("Context", func() {
	var app *faces.Application

	BeforeEach(func() {
		app = newApp(views("/index.xhtml"), nil)
	})

	It("keeps messages in insertion order per client id", func() {
		fctx, _ := newRequest(app, "/index.xhtml", nil)

		fctx.AddMessage("f:b", component.Message{Severity: component.SeverityWarn, Summary: "b"})
		fctx.AddMessage("", component.Message{Summary: "global"})
		fctx.AddMessage("f:b", component.Message{Severity: component.SeverityError, Summary: "b2"})

		Expect(fctx.MessageClientIDs()).To(Equal([]string{"f:b", ""}))
		Expect(fctx.Messages("f:b")).To(HaveLen(2))

		sev, ok := fctx.MaximumSeverity()
		Expect(ok).To(BeTrue())
		Expect(sev).To(Equal(component.SeverityError))

		summaries := []string{}
		for _, m := range fctx.AllMessages() {
			summaries = append(summaries, m.Summary)
		}

		Expect(summaries).To(Equal([]string{"b", "b2", "global"}))
	})

	It("detects postbacks by the view state parameter", func() {
		get, _ := newRequest(app, "/index.xhtml", nil)
		Expect(get.IsPostback()).To(BeFalse())

		post, _ := newRequest(app, "/index.xhtml", url.Values{constants.ViewStateParam: {"1"}})
		Expect(post.IsPostback()).To(BeTrue())
	})

	It("drains queued exceptions", func() {
		fctx, _ := newRequest(app, "/index.xhtml", nil)
		fctx.QueueException(errors.New("boom"))

		Expect(fctx.HasExceptions()).To(BeTrue())
		Expect(fctx.DrainExceptions()).To(HaveLen(1))
		Expect(fctx.HasExceptions()).To(BeFalse())
	})

	It("records added resources per target", func() {
		fctx, _ := newRequest(app, "/index.xhtml", nil)
		script := component.MustNew(component.TypeOutputScript)

		fctx.ResourceAdded(script, constants.TargetHead)

		Expect(fctx.AddedResourceTargets()).To(Equal([]string{constants.TargetHead}))
		Expect(fctx.AddedResources(constants.TargetHead)).To(ConsistOf(script))
	})
})

var _ = Describe("Implicit objects", func() {
	var app *faces.Application

	BeforeEach(func() {
		app = newApp(views("/index.xhtml"), nil)
	})

	It("exposes request parameters", func() {
		fctx, _ := newRequest(app, "/index.xhtml?q=go", nil)

		Expect(fctx.Eval("#{param.q}")).To(Equal("go"))
		Expect(fctx.Eval("#{facesContext}")).To(BeIdenticalTo(fctx))
	})

	It("reads and writes request and application scope", func() {
		fctx, _ := newRequest(app, "/index.xhtml", nil)

		setValue(fctx, "#{requestScope.x}", 5)
		setValue(fctx, "#{applicationScope.site}", "umh")

		Expect(fctx.Eval("#{x}")).To(Equal(5))

		next, _ := newRequest(app, "/index.xhtml", nil)
		Expect(next.Eval("#{requestScope.x}")).To(BeNil())
		Expect(next.Eval("#{site}")).To(Equal("umh"))
	})

	It("starts a session on the first session scope write", func() {
		fctx, w := newRequest(app, "/index.xhtml", nil)
		Expect(fctx.Session(false)).To(BeNil())

		setValue(fctx, "#{sessionScope.user}", "ada")

		Expect(fctx.Session(false)).NotTo(BeNil())
		Expect(w.Result().Cookies()).To(ContainElement(HaveField("Name", constants.SessionCookie)))
		Expect(fctx.Eval("#{user}")).To(Equal("ada"))
	})

	It("writes existing scoped names in place", func() {
		fctx, _ := newRequest(app, "/index.xhtml", nil)
		setValue(fctx, "#{applicationScope.limit}", 1)

		setValue(fctx, "#{limit}", 2)

		v, ok := app.Scope().Get("limit")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(2))
	})

	It("exposes component properties", func() {
		fctx, _ := newRequest(app, "/index.xhtml", nil)
		root, err := app.VDL().CreateView(context.Background(), "/index.xhtml")
		Expect(err).NotTo(HaveOccurred())

		fctx.SetViewRoot(root)

		form := component.MustNew(component.TypeForm)
		Expect(form.SetID("f")).To(Succeed())
		Expect(root.AddChild(form)).To(Succeed())

		release := fctx.ELContext().PushComponent(form)
		defer release()

		Expect(fctx.Eval("#{component.clientId}")).To(Equal("f"))
		Expect(fctx.Eval("#{view.viewId}")).To(Equal("/index.xhtml"))
		Expect(fctx.Eval("#{component.parent.id}")).To(Equal(component.RootID))
	})

	It("reads and writes composite attributes through cc.attrs", func() {
		fctx, _ := newRequest(app, "/index.xhtml", nil)
		root, err := app.VDL().CreateView(context.Background(), "/index.xhtml")
		Expect(err).NotTo(HaveOccurred())

		fctx.SetViewRoot(root)
		setValue(fctx, "#{requestScope.bean}", map[string]any{"name": "ada"})

		cc := component.MustNew(component.TypeComposite)
		Expect(cc.SetID("cc1")).To(Succeed())
		cc.SetAttr("label", "Name")
		cc.SetValueExpression("value", el.NewValueExpression("#{bean.name}"))
		Expect(root.AddChild(cc)).To(Succeed())

		inner := component.MustNew(component.TypeOutputText)
		Expect(inner.SetID("out")).To(Succeed())
		Expect(cc.AddChild(inner)).To(Succeed())

		release := fctx.ELContext().PushComponent(inner)
		defer release()

		Expect(fctx.Eval("#{cc.attrs.label}")).To(Equal("Name"))
		Expect(fctx.Eval("#{cc.attrs.value}")).To(Equal("ada"))

		setValue(fctx, "#{cc.attrs.value}", "grace")
		Expect(fctx.Eval("#{bean.name}")).To(Equal("grace"))
	})
})

var _ = Describe("Beans", func() {
	var (
		app       *faces.Application
		destroyed []string
	)

	BeforeEach(func() {
		destroyed = nil
		app = newApp(views("/a.xhtml", "/b.xhtml"), nil)

		for _, s := range []faces.Scope{faces.RequestScope, faces.ViewScope, faces.SessionScope, faces.ApplicationScope} {
			name := string(s) + "Counter"
			Expect(app.Beans().Register(&faces.Bean{
				Name:    name,
				Scope:   s,
				New:     func(*faces.Context) (any, error) { return &counter{}, nil },
				Destroy: func(any) { destroyed = append(destroyed, name) },
			})).To(Succeed())
		}
	})

	incr := func(fctx *faces.Context, name string) int {
		v, err := fctx.Eval("#{" + name + "}")
		Expect(err).NotTo(HaveOccurred())

		c := v.(*counter)
		c.N++

		return c.N
	}

	It("rejects duplicate names", func() {
		err := app.Beans().Register(&faces.Bean{Name: "requestCounter", New: func(*faces.Context) (any, error) { return nil, nil }})
		Expect(err).To(MatchError(faces.ErrDuplicateBean))
	})

	It("creates request beans per request", func() {
		fctx, _ := newRequest(app, "/a.xhtml", nil)
		Expect(incr(fctx, "requestCounter")).To(Equal(1))
		Expect(incr(fctx, "requestCounter")).To(Equal(2))

		next, _ := newRequest(app, "/a.xhtml", nil)
		Expect(incr(next, "requestCounter")).To(Equal(1))
	})

	It("shares application beans", func() {
		fctx, _ := newRequest(app, "/a.xhtml", nil)
		Expect(incr(fctx, "applicationCounter")).To(Equal(1))

		next, _ := newRequest(app, "/a.xhtml", nil)
		Expect(incr(next, "applicationCounter")).To(Equal(2))
	})

	It("destroys session beans with the session", func() {
		fctx, _ := newRequest(app, "/a.xhtml", nil)
		Expect(incr(fctx, "sessionCounter")).To(Equal(1))

		fctx.External().InvalidateSession()

		Expect(destroyed).To(Equal([]string{"sessionCounter"}))
	})

	It("ends view beans when the view is replaced", func() {
		fctx, _ := newRequest(app, "/a.xhtml", nil)
		a, err := app.VDL().CreateView(context.Background(), "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())
		fctx.SetViewRoot(a)

		Expect(incr(fctx, "viewCounter")).To(Equal(1))
		Expect(a.ViewScopeID()).NotTo(BeEmpty())

		b, err := app.VDL().CreateView(context.Background(), "/b.xhtml")
		Expect(err).NotTo(HaveOccurred())
		fctx.SetViewRoot(b)

		Expect(destroyed).To(Equal([]string{"viewCounter"}))
		Expect(incr(fctx, "viewCounter")).To(Equal(1))
	})

	It("fails flow beans outside a flow", func() {
		Expect(app.Beans().Register(&faces.Bean{
			Name:  "wizardState",
			Scope: faces.FlowScope,
			New:   func(*faces.Context) (any, error) { return &counter{}, nil },
		})).To(Succeed())

		fctx, _ := newRequest(app, "/a.xhtml", nil)
		_, err := fctx.Eval("#{wizardState}")
		Expect(err).To(MatchError(scope.ErrNoActiveFlow))
	})
})
