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

package vdl_test

import (
	"context"
	"sync"
	"testing/fstest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/vdl"
)

var _ = Describe("FaceletCache", func() {
	var (
		ctx  context.Context
		fsys fstest.MapFS
	)

	BeforeEach(func() {
		ctx = context.Background()
		fsys = fstest.MapFS{"a.xhtml": file(`<p>a</p>`)}
	})

	It("compiles a facelet once", func() {
		cache := vdl.NewFaceletCache(fsys, -1, nil)

		first, err := cache.Facelet(ctx, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Path).To(Equal("/a.xhtml"))
		Expect(first.Composite()).To(BeNil())

		fsys["a.xhtml"] = &fstest.MapFile{Data: []byte(`<p>b</p>`), ModTime: time.Unix(1800000000, 0)}

		second, err := cache.Facelet(ctx, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeIdenticalTo(first))
		Expect(cache.Len()).To(Equal(1))
	})

	It("recompiles changed files", func() {
		cache := vdl.NewFaceletCache(fsys, 0, nil)

		first, err := cache.Facelet(ctx, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())

		same, err := cache.Facelet(ctx, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())
		Expect(same).To(BeIdenticalTo(first))

		fsys["a.xhtml"] = &fstest.MapFile{Data: []byte(`<p>b</p>`), ModTime: time.Unix(1800000000, 0)}

		changed, err := cache.Facelet(ctx, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).NotTo(BeIdenticalTo(first))
	})

	It("forgets deleted files", func() {
		cache := vdl.NewFaceletCache(fsys, 0, nil)

		_, err := cache.Facelet(ctx, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())

		delete(fsys, "a.xhtml")

		_, err = cache.Facelet(ctx, "/a.xhtml")
		Expect(err).To(MatchError(vdl.ErrViewNotFound))
		Expect(cache.Exists("/a.xhtml")).To(BeFalse())
		Expect(cache.Len()).To(Equal(0))
	})

	It("invalidates entries", func() {
		cache := vdl.NewFaceletCache(fsys, -1, nil)

		_, err := cache.Facelet(ctx, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())

		cache.Invalidate("/a.xhtml")
		Expect(cache.Len()).To(Equal(0))
	})

	It("serves concurrent lookups", func() {
		cache := vdl.NewFaceletCache(fsys, -1, nil)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results = map[*vdl.Facelet]bool{}
		)

		for i := 0; i < 8; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()
				defer GinkgoRecover()

				f, err := cache.Facelet(ctx, "/a.xhtml")
				Expect(err).NotTo(HaveOccurred())

				mu.Lock()
				results[f] = true
				mu.Unlock()
			}()
		}

		wg.Wait()
		Expect(cache.Len()).To(Equal(1))
		Expect(results).NotTo(BeEmpty())
	})

	It("reads composite interfaces", func() {
		fsys["resources/ez/field.xhtml"] = file(`<ui:composition xmlns:ui="jakarta.faces.facelets" xmlns:cc="jakarta.faces.composite">` +
			`<cc:interface><cc:attribute name="label" required="true"/><cc:actionSource name="go" targets="a b"/></cc:interface>` +
			`<cc:implementation/></ui:composition>`)

		cache := vdl.NewFaceletCache(fsys, -1, nil)

		f, err := cache.Facelet(ctx, "/resources/ez/field.xhtml")
		Expect(err).NotTo(HaveOccurred())

		meta := f.Composite()
		Expect(meta).NotTo(BeNil())
		Expect(meta.Attributes).To(ConsistOf(vdl.CompositeAttribute{Name: "label", Required: true}))
		Expect(meta.Targets).To(HaveLen(1))
		Expect(meta.Targets[0].Targets).To(Equal([]string{"a", "b"}))
	})
})
