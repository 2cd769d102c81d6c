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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/safejson"
)

// buildPage builds the same small page every time, like a template would.
func buildPage(extra func(root *component.ViewRoot, gen uint64)) *component.ViewRoot {
	root := component.NewViewRoot("/page.xhtml")

	gen, err := root.BeginBuild()
	Expect(err).NotTo(HaveOccurred())

	form := withID(component.TypeForm, "f")
	form.SetMarkID("m1")

	name := bound(component.TypeInputText, "name", "#{bean.name}")
	name.SetMarkID("m2")
	name.SetAttr("label", "Name")
	name.AddValidator("m4", component.LengthValidator{Maximum: 10})

	out := withID(component.TypeOutputText, "out")
	out.SetMarkID("m3")
	out.SetAttr("value", "hello")

	text := component.MustNew(component.TypeInstructions)
	text.SetTransient(true)
	text.SetAttr("text", "<p>static</p>")

	Expect(root.AddChild(form)).To(Succeed())

	for _, c := range []*component.Component{name, out, text} {
		Expect(form.AddChild(c)).To(Succeed())
	}

	root.Walk(func(c *component.Component) bool {
		c.Touch(gen)

		return true
	})

	if extra != nil {
		extra(root, gen)
	}

	Expect(root.FinishBuild()).To(Succeed())

	return root
}

func roundTrip[T any](in T) T {
	raw, err := safejson.Marshal(in)
	Expect(err).NotTo(HaveOccurred())

	var out T
	Expect(safejson.Unmarshal(raw, &out)).To(Succeed())

	return out
}

var _ = Describe("Partial state", func() {
	var first *component.ViewRoot

	BeforeEach(func() {
		first = buildPage(nil)
		Expect(first.MarkInitialState()).To(Succeed())
	})

	It("saves nothing for an unchanged view", func() {
		d, err := first.SaveDeltas()
		Expect(err).NotTo(HaveOccurred())
		Expect(d.States).To(BeEmpty())
		Expect(d.Added).To(BeEmpty())
		Expect(d.Removed).To(BeEmpty())
	})

	It("saves and reapplies changes, additions and removals", func() {
		form := first.FindComponent("f")
		first.FindComponent(":f:name").SetAttr("styleClass", "error")

		extra := withID(component.TypeOutputText, "extra")
		extra.SetAttr("value", "dynamic")
		Expect(form.AddChild(extra)).To(Succeed())
		Expect(form.RemoveChild(first.FindComponent(":f:out"))).To(BeTrue())

		d, err := first.SaveDeltas()
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Removed).To(Equal([]string{"f:out"}))
		Expect(d.Added).To(HaveLen(1))
		Expect(d.Added[0].ParentClientID).To(Equal("f"))
		Expect(d.Added[0].Index).To(Equal(2))
		Expect(d.States).To(HaveLen(1))
		Expect(d.States).To(HaveKey("f:name"))

		second := buildPage(nil)
		Expect(second.MarkInitialState()).To(Succeed())
		Expect(second.ApplyDeltas(roundTrip(d))).To(Succeed())

		Expect(second.FindComponent(":f:out")).To(BeNil())

		restored := second.FindComponent(":f:extra")
		Expect(restored).NotTo(BeNil())
		value, _ := restored.Attr("value")
		Expect(value).To(Equal("dynamic"))
		Expect(restored.Parent().IndexOf(restored)).To(Equal(2))

		name := second.FindComponent(":f:name")
		styleClass, _ := name.Attr("styleClass")
		Expect(styleClass).To(Equal("error"))
		Expect(name.Validators()).To(Equal([]component.Validator{component.LengthValidator{Maximum: 10}}))

		again, err := second.SaveDeltas()
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Removed).To(Equal([]string{"f:out"}))
		Expect(again.Added).To(HaveLen(1))
	})

	It("does not record what a rebuild removes or creates", func() {
		gen, err := first.BeginBuild()
		Expect(err).NotTo(HaveOccurred())

		form := first.FindComponent("f")
		Expect(form.RemoveChild(first.FindComponent(":f:out"))).To(BeTrue())

		created := withID(component.TypeOutputText, "created")
		created.SetMarkID("m9")
		created.Touch(gen)
		Expect(form.AddChild(created)).To(Succeed())
		Expect(first.FinishBuild()).To(Succeed())

		d, err := first.SaveDeltas()
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Removed).To(BeEmpty())
		Expect(d.Added).To(BeEmpty())
	})

	It("saves local values of inputs", func() {
		name := first.FindComponent(":f:name")
		name.SetLocalValue("Bob")

		d, err := first.SaveDeltas()
		Expect(err).NotTo(HaveOccurred())

		second := buildPage(nil)
		Expect(second.MarkInitialState()).To(Succeed())
		Expect(second.ApplyDeltas(roundTrip(d))).To(Succeed())

		v, ok := second.FindComponent(":f:name").LocalValue()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("Bob"))
	})
})

var _ = Describe("Full state", func() {
	It("restores the non-transient tree as a dirty view", func() {
		root := buildPage(nil)
		root.FindComponent(":f:name").SetLocalValue(7)

		ts, err := root.SaveTree()
		Expect(err).NotTo(HaveOccurred())

		restored, err := component.RestoreView("/page.xhtml", roundTrip(ts))
		Expect(err).NotTo(HaveOccurred())
		Expect(restored.BuildState()).To(Equal(component.Dirty))

		form := restored.FindComponent("f")
		Expect(form.ChildCount()).To(Equal(2))
		Expect(form.MarkID()).To(Equal("m1"))

		name := restored.FindComponent(":f:name")
		label, _ := name.Attr("label")
		Expect(label).To(Equal("Name"))

		ve, ok := name.ValueExpression("value")
		Expect(ok).To(BeTrue())
		Expect(ve).To(Equal(el.NewValueExpression("#{bean.name}")))
		Expect(name.Validators()).To(Equal([]component.Validator{component.LengthValidator{Maximum: 10}}))

		v, set := name.LocalValue()
		Expect(set).To(BeTrue())
		Expect(v).To(Equal(7))
	})

	It("keeps the kind of saved values", func() {
		for _, in := range []any{"x", true, 3, int64(4), 2.5, []string{"a", "b"}} {
			v, err := component.EncodeValue(in)
			Expect(err).NotTo(HaveOccurred())

			out, err := roundTrip(v).Decode()
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(in))
		}

		v, err := component.EncodeValue(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(roundTrip(v).Decode()).To(BeNil())

		at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		v, err = component.EncodeValue(at)
		Expect(err).NotTo(HaveOccurred())

		out, err := roundTrip(v).Decode()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeTemporally("==", at))

		_, err = component.EncodeValue(struct{}{})
		Expect(err).To(MatchError(component.ErrNotSerializable))
	})
})
