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

package render_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/render"
)

var _ = Describe("Kit", func() {
	var kit *render.Kit

	BeforeEach(func() {
		kit = render.NewKit()
	})

	encode := func(fctx *faces.Context) string {
		var buf bytes.Buffer
		Expect(kit.NewEncoder(fctx, &buf).Encode(fctx.ViewRoot().Component)).To(Succeed())

		return buf.String()
	}

	It("renders a form with inputs and the view state field", func() {
		fctx := buildPage(`<html `+xmlns+`><h:body><h:form id="f">`+
			`<h:inputText id="name" value="#{bean.name}"/>`+
			`<h:selectBooleanCheckbox id="ok" value="#{bean.agreed}"/>`+
			`<h:commandButton id="go" value="Save"/>`+
			`</h:form></h:body></html>`, &bean{Name: `<Ada & "Co">`, Agreed: true})
		fctx.SetViewState("token-1")

		out := encode(fctx)
		Expect(out).To(ContainSubstring(`<form id="f" name="f" method="post" action="/index.xhtml"`))
		Expect(out).To(ContainSubstring(`<input type="hidden" name="f" value="f"/>`))
		Expect(out).To(ContainSubstring(`<input type="text" id="f:name" name="f:name" value="&lt;Ada &amp; &#34;Co&#34;&gt;"/>`))
		Expect(out).To(ContainSubstring(`<input type="checkbox" id="f:ok" name="f:ok" value="true" checked="checked"/>`))
		Expect(out).To(ContainSubstring(`<input type="submit" id="f:go" name="f:go" value="Save"/>`))
		Expect(out).To(ContainSubstring(`name="jakarta.faces.ViewState" id="j_id1:jakarta.faces.ViewState:0" value="token-1"`))
		Expect(out).To(ContainSubstring(`</form></body>`))
		Expect(out).To(HavePrefix("<html><body>"))
	})

	It("numbers the state fields of every form", func() {
		fctx := buildPage(`<html `+xmlns+`><h:body><h:form id="a"/><h:form id="b"/></h:body></html>`, &bean{})
		fctx.SetWindowID("w1")

		out := encode(fctx)
		Expect(out).To(ContainSubstring(`id="j_id1:jakarta.faces.ViewState:0"`))
		Expect(out).To(ContainSubstring(`id="j_id1:jakarta.faces.ViewState:1"`))
		Expect(out).To(ContainSubstring(`name="jakarta.faces.ClientWindow" id="j_id1:jakarta.faces.ClientWindow:1" value="w1"`))
	})

	It("shows the submitted value of an invalid input", func() {
		fctx := buildPage(`<html `+xmlns+`><h:body><h:form id="f"><h:inputText id="age" value="#{bean.name}"/></h:form></h:body></html>`, &bean{Name: "kept"})

		input := fctx.ViewRoot().FindByClientID("f:age")
		Expect(input).NotTo(BeNil())
		input.SetSubmittedValue("not a number")

		Expect(encode(fctx)).To(ContainSubstring(`value="not a number"`))
	})

	It("escapes expressions in template text but not literal markup", func() {
		fctx := buildPage(`<html `+xmlns+`><h:body><p>#{bean.name}</p></h:body></html>`, &bean{Name: "<b>"})

		Expect(encode(fctx)).To(ContainSubstring(`<p>&lt;b&gt;</p>`))
	})

	It("wraps output text in a span only when it needs one", func() {
		fctx := buildPage(`<html `+xmlns+`><h:body><h:outputText value="plain"/>`+
			`<h:outputText id="x" value="#{bean.name}" escape="false"/>`+
			`<h:panelGroup layout="block" styleClass="box"><h:outputText value="in"/></h:panelGroup>`+
			`</h:body></html>`, &bean{Name: "<i>raw</i>"})

		out := encode(fctx)
		Expect(out).To(ContainSubstring(`<body>plain<span id="x"><i>raw</i></span><div class="box">in</div></body>`))
	})

	It("skips components that are not rendered", func() {
		fctx := buildPage(`<html `+xmlns+`><h:body><h:outputText id="x" value="hidden" rendered="#{bean.agreed}"/></h:body></html>`, &bean{})

		Expect(encode(fctx)).NotTo(ContainSubstring("hidden"))
	})

	It("renders messages by severity", func() {
		fctx := buildPage(`<html `+xmlns+`><h:body><h:messages id="msgs" globalOnly="true"/></h:body></html>`, &bean{})
		fctx.AddMessage("", component.Message{Severity: component.SeverityError, Summary: "Broken", Detail: "really"})
		fctx.AddMessage("f:name", component.Message{Severity: component.SeverityWarn, Summary: "field"})

		out := encode(fctx)
		Expect(out).To(ContainSubstring(`<ul id="msgs"><li class="error">Broken really</li></ul>`))
		Expect(out).NotTo(ContainSubstring("field"))
	})

	It("renders head resources with library urls", func() {
		fctx := buildPage(`<html `+xmlns+`><h:head><h:outputStylesheet name="site.css" library="theme"/></h:head>`+
			`<h:body><h:outputScript name="app.js" target="head"/></h:body></html>`, &bean{})

		out := encode(fctx)
		Expect(out).To(ContainSubstring(`<link rel="stylesheet" href="/jakarta.faces.resource/site.css?ln=theme"/>`))
		Expect(out).To(ContainSubstring(`<script src="/jakarta.faces.resource/app.js"></script></head>`))
	})

	It("lets applications replace renderers", func() {
		kit.Register("jakarta.faces.Output", "jakarta.faces.Text", render.RendererFunc(func(e *render.Encoder, c *component.Component) error {
			e.W.WriteText("custom")

			return nil
		}))

		fctx := buildPage(`<html `+xmlns+`><h:body><h:outputText value="x"/></h:body></html>`, &bean{})
		Expect(encode(fctx)).To(ContainSubstring("<body>custom</body>"))
	})

	It("reports renderer errors", func() {
		kit.Register("jakarta.faces.Output", "jakarta.faces.Text", render.RendererFunc(func(*render.Encoder, *component.Component) error {
			return errors.New("boom")
		}))

		fctx := buildPage(`<html `+xmlns+`><h:body><h:outputText value="x"/></h:body></html>`, &bean{})

		var buf bytes.Buffer
		err := kit.NewEncoder(fctx, &buf).Encode(fctx.ViewRoot().Component)
		Expect(err).To(MatchError(ContainSubstring("boom")))
	})
})

var _ = Describe("PartialWriter", func() {
	It("writes updates, the view state and the document end", func() {
		var buf bytes.Buffer
		p := render.NewPartialWriter(&buf)

		p.StartDocument("j_id1")
		Expect(p.Update("f:out", func(w io.Writer) error {
			_, err := io.WriteString(w, "<span>a]]>b</span>")

			return err
		})).To(Succeed())
		Expect(p.Update("j_id1:jakarta.faces.ViewState:0", func(w io.Writer) error {
			_, err := io.WriteString(w, "tok")

			return err
		})).To(Succeed())
		Expect(p.EndDocument()).To(Succeed())

		Expect(buf.String()).To(Equal(`<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
			`<partial-response id="j_id1"><changes>` +
			`<update id="f:out"><![CDATA[<span>a]]]]><![CDATA[>b</span>]]></update>` +
			`<update id="j_id1:jakarta.faces.ViewState:0"><![CDATA[tok]]></update>` +
			`</changes></partial-response>`))
	})

	It("closes the changes before a redirect", func() {
		var buf bytes.Buffer
		p := render.NewPartialWriter(&buf)

		p.StartDocument("j_id1")
		p.Eval("alert(1)")
		p.Redirect("/next.xhtml?a=1&b=2")
		Expect(p.EndDocument()).To(Succeed())

		Expect(buf.String()).To(HaveSuffix(`<changes><eval><![CDATA[alert(1)]]></eval></changes>` +
			`<redirect url="/next.xhtml?a=1&amp;b=2"/></partial-response>`))
	})

	It("does not write an update whose content failed", func() {
		var buf bytes.Buffer
		p := render.NewPartialWriter(&buf)

		err := p.Update("x", func(io.Writer) error { return errors.New("broken") })
		Expect(err).To(MatchError("broken"))
		Expect(strings.Contains(buf.String(), "update")).To(BeFalse())
	})
})
