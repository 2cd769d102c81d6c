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

package server_test

import (
	"net/http"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/config"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/server"
)

var _ = Describe("Server", func() {
	var (
		c *client
		u *user
	)

	BeforeEach(func() {
		var s *server.Server
		s, u = newServer()
		c = &client{handler: s.Handler()}
	})

	It("rejects an invalid configuration", func() {
		_, err := server.NewServer(nil, config.HTTPConfig{Port: 8080}, nil, nil)
		Expect(err).To(HaveOccurred())
	})

	It("answers health checks", func() {
		w := c.get("/healthz")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("online"))
	})

	It("renders a view and starts a session", func() {
		w := c.get("/form")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/html"))
		Expect(w.Header().Get("Cache-Control")).To(Equal("no-store"))
		Expect(w.Body.String()).To(ContainSubstring(`<form id="f" name="f" method="post" action="/form.xhtml"`))
		Expect(c.cookies).To(ContainElement(HaveField("Name", constants.SessionCookie)))
	})

	It("applies a postback to the model", func() {
		page := c.get("/form.xhtml").Body.String()

		w := c.post("/form.xhtml", submit(page, map[string]string{"f:name": "ada", "f:save": "Save"}))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(u.Name).To(Equal("ada"))
		Expect(w.Body.String()).To(ContainSubstring("Hello ada"))

		// The second postback restores the state saved by the first.
		w = c.post("/form.xhtml", submit(w.Body.String(), map[string]string{"f:name": "grace", "f:save": "Save"}))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(u.Name).To(Equal("grace"))
	})

	It("redirects after navigation", func() {
		page := c.get("/form.xhtml").Body.String()

		w := c.post("/form.xhtml", submit(page, map[string]string{"f:name": "ada", "f:leave": "Leave"}))
		Expect(w.Code).To(Equal(http.StatusSeeOther))
		Expect(w.Header().Get("Location")).To(Equal("/done.xhtml"))

		w = c.get("/done.xhtml")
		Expect(w.Body.String()).To(ContainSubstring("Done ada"))
	})

	It("redirects ajax clients with a partial response", func() {
		page := c.get("/form.xhtml").Body.String()

		form := submit(page, map[string]string{"f:name": "ada", "f:leave": "Leave"})
		form.Set(constants.SourceParam, "f:leave")
		form.Set(constants.PartialExecuteParam, constants.KeywordForm)

		w := c.ajax("/form.xhtml", form)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/xml"))
		Expect(w.Body.String()).To(ContainSubstring(`<redirect url="/done.xhtml"/>`))
	})

	It("answers ajax requests with partial updates", func() {
		page := c.get("/form.xhtml").Body.String()

		form := submit(page, map[string]string{"f:name": "ada", "f:save": "Save"})
		form.Set(constants.SourceParam, "f:save")
		form.Set(constants.PartialExecuteParam, constants.KeywordForm)
		form.Set(constants.PartialRenderParam, "greeting")

		w := c.ajax("/form.xhtml", form)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(HavePrefix(`<?xml version="1.0" encoding="UTF-8"?>`))
		Expect(w.Body.String()).To(ContainSubstring(`<update id="greeting"><![CDATA[<span id="greeting">Hello ada</span>]]></update>`))
		Expect(w.Body.String()).To(ContainSubstring(`<update id="j_id1:jakarta.faces.ViewState:0">`))
	})

	Context("when the view state is unknown", func() {
		var form url.Values

		BeforeEach(func() {
			page := c.get("/form.xhtml").Body.String()
			form = submit(page, map[string]string{"f:name": "ada", "f:save": "Save"})
			form.Set(constants.ViewStateParam, "zz:1")
		})

		It("shows the view expired page", func() {
			w := c.post("/form.xhtml", form)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("View expired"))
			Expect(w.Body.String()).To(ContainSubstring(`<a href="/form.xhtml">`))
			Expect(u.Name).To(BeEmpty())
		})

		It("sends ajax clients a partial error", func() {
			w := c.ajax("/form.xhtml", form)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("<error-name>ViewExpiredException</error-name>"))
		})
	})

	It("reports failing actions as server errors", func() {
		page := c.get("/form.xhtml").Body.String()

		w := c.post("/form.xhtml", submit(page, map[string]string{"f:name": "ada", "f:crash": "Crash"}))
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).NotTo(ContainSubstring("crashed"))
	})

	It("answers unknown views with 404", func() {
		Expect(c.get("/missing.xhtml").Code).To(Equal(http.StatusNotFound))
	})

	It("only accepts GET and POST for views", func() {
		w := c.do(http.MethodPut, "/form.xhtml", nil, nil)
		Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
		Expect(w.Header().Get("Allow")).To(Equal("GET, POST"))
	})

	Describe("resources", func() {
		It("serves a resource from its library", func() {
			w := c.get(constants.ResourcePrefix + "app.js?ln=scripts")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal("console.log('app')"))
		})

		It("serves nested names", func() {
			w := c.get(constants.ResourcePrefix + "lib/x.js?ln=scripts")
			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("refuses to leave the resource root", func() {
			Expect(c.get(constants.ResourcePrefix + "key.txt?ln=../private").Code).To(Equal(http.StatusNotFound))
			Expect(c.get(constants.ResourcePrefix + "missing.js?ln=scripts").Code).To(Equal(http.StatusNotFound))
			Expect(c.get(constants.ResourcePrefix + "?ln=scripts").Code).To(Equal(http.StatusNotFound))
		})
	})
})
