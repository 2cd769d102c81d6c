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

package component_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
)

var _ = Describe("Tree", func() {
	var (
		root *component.ViewRoot
		form *component.Component
		name *component.Component
	)

	BeforeEach(func() {
		root = component.NewViewRoot("/index.xhtml")
		form = withID(component.TypeForm, "f")
		name = withID(component.TypeInputText, "name")

		Expect(root.AddChild(form)).To(Succeed())
		Expect(form.AddChild(name)).To(Succeed())
	})

	It("prefixes client ids with naming containers but not the root", func() {
		Expect(root.ClientID()).To(Equal(component.RootID))
		Expect(form.ClientID()).To(Equal("f"))
		Expect(name.ClientID()).To(Equal("f:name"))
		Expect(name.ViewRoot()).To(BeIdenticalTo(root))
	})

	It("generates ids from the closest unique id vendor", func() {
		a := component.MustNew(component.TypeOutputText)
		b := component.MustNew(component.TypeOutputText)
		inner := component.MustNew(component.TypeOutputText)

		Expect(root.AddChild(a)).To(Succeed())
		Expect(root.AddChild(b)).To(Succeed())
		Expect(form.AddChild(inner)).To(Succeed())

		Expect(a.ID()).To(Equal("j_id2"))
		Expect(b.ID()).To(Equal("j_id3"))
		Expect(inner.ClientID()).To(Equal("f:j_id1"))
		Expect(a.CreateUniqueID("t1x")).To(Equal("j_idt1x"))
	})

	It("rejects duplicate ids in the same naming container", func() {
		err := root.AddChild(withID(component.TypePanelGroup, "f"))
		Expect(err).To(MatchError(component.ErrDuplicateID))

		other := withID(component.TypeInputText, "name")
		Expect(root.AddChild(other)).To(Succeed())

		panel := withID(component.TypePanelGroup, "p")
		Expect(root.AddChild(panel)).To(Succeed())
		Expect(panel.AddChild(withID(component.TypeOutputText, "name"))).To(MatchError(component.ErrDuplicateID))
		Expect(other.SetID("p")).To(MatchError(component.ErrDuplicateID))
		Expect(panel.ChildCount()).To(Equal(0))
	})

	It("rejects invalid ids and cycles", func() {
		Expect(name.SetID("1abc")).To(MatchError(component.ErrInvalidID))
		Expect(name.SetID("a:b")).To(MatchError(component.ErrInvalidID))
		Expect(form.AddChild(root.Component)).To(MatchError(component.ErrInvalidID))
	})

	It("finds components by expression and client id", func() {
		Expect(root.FindComponent(":f:name")).To(BeIdenticalTo(name))
		Expect(root.FindComponent("f:name")).To(BeIdenticalTo(name))
		Expect(name.FindComponent("name")).To(BeIdenticalTo(name))
		Expect(root.FindComponent("f:missing")).To(BeNil())
		Expect(root.FindComponent("missing:name")).To(BeNil())
		Expect(root.FindByClientID("f:name")).To(BeIdenticalTo(name))
	})

	It("moves a component to a new parent", func() {
		other := withID(component.TypeForm, "g")
		Expect(root.AddChild(other)).To(Succeed())
		Expect(other.AddChild(name)).To(Succeed())

		Expect(form.ChildCount()).To(Equal(0))
		Expect(name.Parent()).To(BeIdenticalTo(other))
		Expect(name.ClientID()).To(Equal("g:name"))
	})

	It("keeps facets apart from children", func() {
		header := withID(component.TypeOutputText, "header")
		Expect(form.SetFacet("header", header)).To(Succeed())

		Expect(form.FacetNames()).To(Equal([]string{"header"}))
		Expect(form.Children()).To(HaveLen(1))
		Expect(form.FacetsAndChildren()).To(Equal([]*component.Component{header, name}))
		Expect(form.RemoveFacet("header")).To(BeIdenticalTo(header))
		Expect(header.Parent()).To(BeNil())
	})

	Describe("Visit", func() {
		var ctx *fakeContext

		BeforeEach(func() {
			ctx = newFakeContext(nil)
			Expect(form.AddChild(withID(component.TypeInputText, "email"))).To(Succeed())
		})

		It("visits only the requested client ids", func() {
			var visited []string

			done := root.Visit(component.NewVisitContext(ctx, []string{"f:email"}, false), func(c *component.Component) component.VisitResult {
				visited = append(visited, c.ClientID())

				return component.VisitContinue
			})

			Expect(done).To(BeTrue())
			Expect(visited).To(Equal([]string{"f:email"}))
		})

		It("skips unrendered subtrees when asked", func() {
			form.SetAttr("rendered", false)

			var visited []string

			root.Visit(component.NewVisitContext(ctx, nil, true), func(c *component.Component) component.VisitResult {
				visited = append(visited, c.ClientID())

				return component.VisitContinue
			})

			Expect(visited).To(Equal([]string{component.RootID}))
		})
	})
})

var _ = Describe("Build state", func() {
	It("moves through building to built and aborts to dirty", func() {
		root := component.NewViewRoot("/a.xhtml")
		Expect(root.BuildState()).To(Equal(component.Unbuilt))
		Expect(root.NeedsBuild()).To(BeTrue())

		gen, err := root.BeginBuild()
		Expect(err).NotTo(HaveOccurred())
		Expect(gen).To(Equal(uint64(1)))

		_, err = root.BeginBuild()
		Expect(err).To(MatchError(component.ErrBuildInProgress))

		Expect(root.FinishBuild()).To(Succeed())
		Expect(root.NeedsBuild()).To(BeFalse())

		gen, err = root.BeginBuild()
		Expect(err).NotTo(HaveOccurred())
		Expect(gen).To(Equal(uint64(2)))

		root.AbortBuild()
		Expect(root.BuildState()).To(Equal(component.Dirty))
		Expect(root.NeedsBuild()).To(BeTrue())
	})
})

var _ = Describe("Component resources", func() {
	var (
		root *component.ViewRoot
		ctx  *fakeContext
	)

	script := func(name string) *component.Component {
		c := component.MustNew(component.TypeOutputScript)
		c.SetAttr("library", "app")
		c.SetAttr("name", name)

		return c
	}

	BeforeEach(func() {
		root = component.NewViewRoot("/index.xhtml")
		ctx = newFakeContext(nil)
	})

	It("adds each resource once per target", func() {
		added, err := root.AddComponentResource(ctx, script("app.js"), "head")
		Expect(err).NotTo(HaveOccurred())
		Expect(added).To(BeTrue())

		added, err = root.AddComponentResource(ctx, script("app.js"), "head")
		Expect(err).NotTo(HaveOccurred())
		Expect(added).To(BeFalse())

		Expect(root.ComponentResources("head")).To(HaveLen(1))
		Expect(root.ResourceTargets()).To(Equal([]string{"head"}))
	})

	It("reports additions only after the view was restored", func() {
		ctx.phase = phase.RestoreView
		_, err := root.AddComponentResource(ctx, script("a.js"), "head")
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.resources).To(BeEmpty())

		ctx.phase = phase.RenderResponse
		_, err = root.AddComponentResource(ctx, script("b.js"), "head")
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.resources["head"]).To(HaveLen(1))
	})

	It("removes resources", func() {
		r := script("a.js")
		_, err := root.AddComponentResource(ctx, r, "body")
		Expect(err).NotTo(HaveOccurred())

		Expect(root.RemoveComponentResource(r, "body")).To(BeTrue())
		Expect(root.ComponentResources("body")).To(BeEmpty())
		Expect(root.RemoveComponentResource(r, "head")).To(BeFalse())
	})
})
