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

package scope_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
	"github.com/united-manufacturing-hub/faces-core/pkg/viewstate"
)

var _ = Describe("LazyMap", func() {
	It("allocates only on write", func() {
		var m scope.LazyMap

		_, ok := m.Get("a")
		Expect(ok).To(BeFalse())
		_, ok = m.Remove("a")
		Expect(ok).To(BeFalse())
		Expect(m.Len()).To(Equal(0))
		Expect(m.Created()).To(BeFalse())

		Expect(m.Put("b", 2)).To(BeNil())
		Expect(m.Put("a", 1)).To(BeNil())
		Expect(m.Put("a", 3)).To(Equal(1))
		Expect(m.Created()).To(BeTrue())
		Expect(m.Keys()).To(Equal([]string{"a", "b"}))
	})

	It("ranges over a snapshot", func() {
		var m scope.LazyMap
		m.Put("a", 1)
		m.Put("b", 2)

		var seen []string
		m.Range(func(name string, _ any) bool {
			seen = append(seen, name)
			m.Remove(name)

			return true
		})

		Expect(seen).To(Equal([]string{"a", "b"}))
		Expect(m.Len()).To(Equal(0))
	})
})

var _ = Describe("Destroyer", func() {
	It("runs hooks in name order and survives panics", func() {
		var destroyed []string

		var m scope.LazyMap
		m.Put("z", &bean{name: "z", destroyed: &destroyed})
		m.Put("p", panickingBean{})
		m.Put("a", &bean{name: "a", destroyed: &destroyed})
		m.Put("plain", 5)

		scope.NewDestroyer(nil).DestroyMap(&m)

		Expect(destroyed).To(Equal([]string{"a", "z"}))
		Expect(m.Len()).To(Equal(0))
	})
})

var _ = Describe("ViewScopes", func() {
	var (
		ctx       context.Context
		sessions  *session.Manager
		sess      *session.Session
		views     *scope.ViewScopes
		destroyed []string
	)

	BeforeEach(func() {
		ctx = context.Background()
		sessions = session.NewManager(time.Hour, 0, nil)
		sess = sessions.Create()
		views = scope.NewViewScopes(nil, nil)
		destroyed = nil
	})

	It("creates an id on first write only", func() {
		root := component.NewViewRoot("/a.xhtml")

		m, err := views.Map(ctx, sess, root, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(BeNil())
		Expect(root.ViewScopeID()).To(BeEmpty())

		m, err = views.Map(ctx, sess, root, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(root.ViewScopeID()).NotTo(BeEmpty())

		again, err := views.Map(ctx, sess, root, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeIdenticalTo(m))
	})

	It("destroys the scope when the view is replaced", func() {
		first := component.NewViewRoot("/a.xhtml")
		m, err := views.Map(ctx, sess, first, true)
		Expect(err).NotTo(HaveOccurred())
		m.Put("bean", &bean{name: "first", destroyed: &destroyed})

		same := component.NewViewRoot("/a.xhtml")
		same.SetViewScopeID(first.ViewScopeID())
		Expect(views.ViewReplaced(ctx, sess, first, same)).To(Succeed())
		Expect(destroyed).To(BeEmpty())

		Expect(views.ViewReplaced(ctx, sess, first, component.NewViewRoot("/b.xhtml"))).To(Succeed())
		Expect(destroyed).To(Equal([]string{"first"}))
		Expect(views.Len(ctx, sess)).To(Equal(0))
	})

	It("destroys all scopes with the session", func() {
		for _, id := range []string{"/a.xhtml", "/b.xhtml"} {
			root := component.NewViewRoot(id)
			m, err := views.Map(ctx, sess, root, true)
			Expect(err).NotTo(HaveOccurred())
			m.Put("bean", &bean{name: id, destroyed: &destroyed})
		}

		sessions.Invalidate(sess.ID())

		Expect(destroyed).To(ConsistOf("/a.xhtml", "/b.xhtml"))
	})
})

var _ = Describe("ClientWindows", func() {
	var (
		ctx      context.Context
		sessions *session.Manager
		sess     *session.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		sessions = session.NewManager(time.Hour, 0, nil)
		sess = sessions.Create()
	})

	It("parses modes", func() {
		Expect(scope.ParseWindowMode("")).To(Equal(scope.WindowModeNone))
		Expect(scope.ParseWindowMode("client")).To(Equal(scope.WindowModeClient))
		_, err := scope.ParseWindowMode("tab")
		Expect(err).To(HaveOccurred())
	})

	It("has no windows in mode none", func() {
		windows := scope.NewClientWindows(scope.WindowModeNone, 2, nil, nil)

		id, err := windows.Resolve(ctx, sess, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(BeEmpty())
	})

	It("keeps known windows and opens new ones", func() {
		windows := scope.NewClientWindows(scope.WindowModeClient, 2, nil, nil)

		id, err := windows.Resolve(ctx, sess, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		again, err := windows.Resolve(ctx, sess, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(id))

		other, err := windows.Resolve(ctx, sess, strings.Repeat("x", 100))
		Expect(err).NotTo(HaveOccurred())
		Expect(other).NotTo(Equal(id))
		Expect(windows.Len(ctx, sess)).To(Equal(2))
	})

	It("destroys the least recently used window and notifies listeners", func() {
		var destroyed, notified []string

		windows := scope.NewClientWindows(scope.WindowModeClient, 2, nil, nil)
		windows.OnDestroyed(func(_ *session.Session, id string) {
			notified = append(notified, id)
		})

		for _, id := range []string{"w1", "w2"} {
			_, err := windows.Resolve(ctx, sess, id)
			Expect(err).NotTo(HaveOccurred())

			m, ok, err := windows.Map(ctx, sess, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			m.Put("bean", &bean{name: id, destroyed: &destroyed})
		}

		_, err := windows.Resolve(ctx, sess, "w1")
		Expect(err).NotTo(HaveOccurred())
		_, err = windows.Resolve(ctx, sess, "w3")
		Expect(err).NotTo(HaveOccurred())

		Expect(destroyed).To(Equal([]string{"w2"}))
		Expect(notified).To(Equal([]string{"w2"}))

		sessions.Invalidate(sess.ID())
		Expect(notified).To(ConsistOf("w2", "w1", "w3"))
	})

	It("adds the window to urls in url mode", func() {
		windows := scope.NewClientWindows(scope.WindowModeURL, 2, nil, nil)

		u, err := windows.URL("/faces/a.xhtml?x=1", "w1")
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(Equal("/faces/a.xhtml?jakarta.faces.ClientWindow=w1&x=1"))

		client := scope.NewClientWindows(scope.WindowModeClient, 2, nil, nil)
		u, err = client.URL("/faces/a.xhtml", "w1")
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(Equal("/faces/a.xhtml"))
	})
})

var _ = Describe("Flows", func() {
	var (
		ctx      context.Context
		sessions *session.Manager
		sess     *session.Session
		registry *scope.FlowRegistry
		flows    *scope.FlowHandler
		log      []string
	)

	BeforeEach(func() {
		ctx = context.Background()
		sessions = session.NewManager(time.Hour, 0, nil)
		sess = sessions.Create()
		log = nil

		registry = scope.NewFlowRegistry()
		Expect(registry.Register(&scope.Flow{
			ID:          "checkout",
			DocumentID:  "shop",
			Start:       "/checkout/start.xhtml",
			Initializer: func(m *scope.LazyMap) { m.Put("step", 1) },
			Finalizer:   func(*scope.LazyMap) { log = append(log, "checkout") },
		})).To(Succeed())
		Expect(registry.Register(&scope.Flow{ID: "address", DocumentID: "shop"})).To(Succeed())

		flows = scope.NewFlowHandler(registry, nil, nil)
	})

	It("builds map keys and tokens", func() {
		f, ok := registry.Lookup("", "checkout")
		Expect(ok).To(BeTrue())
		Expect(f.MapKey()).To(Equal("shop_checkout"))
		Expect(scope.FlowToken("w1", f)).To(Equal("flowscope.w1:shop_checkout"))
	})

	It("rejects duplicates and unknown flows", func() {
		Expect(registry.Register(&scope.Flow{ID: "checkout", DocumentID: "shop"})).To(MatchError(scope.ErrDuplicateFlow))

		_, err := flows.Enter(ctx, sess, "w1", "shop", "missing")
		Expect(err).To(MatchError(scope.ErrUnknownFlow))

		_, err = flows.Exit(ctx, sess, "w1")
		Expect(err).To(MatchError(scope.ErrNoActiveFlow))
	})

	It("nests flows per window", func() {
		outer, err := flows.Enter(ctx, sess, "w1", "shop", "checkout")
		Expect(err).NotTo(HaveOccurred())
		step, _ := outer.Scope.Get("step")
		Expect(step).To(Equal(1))

		_, err = flows.Enter(ctx, sess, "w1", "", "address")
		Expect(err).NotTo(HaveOccurred())

		current, ok, err := flows.Current(ctx, sess, "w1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(current.Flow.ID).To(Equal("address"))

		_, ok, err = flows.Current(ctx, sess, "w2")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		left, err := flows.Exit(ctx, sess, "w1")
		Expect(err).NotTo(HaveOccurred())
		Expect(left.Flow.ID).To(Equal("address"))

		current, _, _ = flows.Current(ctx, sess, "w1")
		Expect(current).To(BeIdenticalTo(outer))
	})

	It("ends flows with their window", func() {
		windows := scope.NewClientWindows(scope.WindowModeClient, 1, nil, nil)
		windows.OnDestroyed(flows.WindowDestroyed)

		_, err := windows.Resolve(ctx, sess, "w1")
		Expect(err).NotTo(HaveOccurred())
		_, err = flows.Enter(ctx, sess, "w1", "shop", "checkout")
		Expect(err).NotTo(HaveOccurred())

		_, err = windows.Resolve(ctx, sess, "w2")
		Expect(err).NotTo(HaveOccurred())

		Expect(log).To(Equal([]string{"checkout"}))
		_, ok, _ := flows.Current(ctx, sess, "w1")
		Expect(ok).To(BeFalse())
	})

	It("ends flows with the session", func() {
		_, err := flows.Enter(ctx, sess, "w1", "shop", "checkout")
		Expect(err).NotTo(HaveOccurred())

		sessions.Invalidate(sess.ID())

		Expect(log).To(Equal([]string{"checkout"}))
	})
})

var _ = Describe("Flash", func() {
	It("releases the flash of an evicted view", func() {
		var destroyed []string

		flash := scope.NewFlash(time.Minute, nil, nil)
		token, m := flash.Create()
		m.Put("notice", &bean{name: "notice", destroyed: &destroyed})

		got, ok := flash.Get(token)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(m))
		Expect(flash.Keep(token)).To(BeTrue())

		store := viewstate.NewLRUStore(1, nil, flash.ViewEvicted)
		sess := session.NewManager(time.Hour, 0, nil).Create()
		ctx := context.Background()

		Expect(store.Put(ctx, sess, "", viewstate.Entry{Key: statecodec.NewCounterKey("/a.xhtml", 1), FlashToken: token})).To(Succeed())
		Expect(store.Put(ctx, sess, "", viewstate.Entry{Key: statecodec.NewCounterKey("/a.xhtml", 2)})).To(Succeed())

		Expect(destroyed).To(Equal([]string{"notice"}))
		_, ok = flash.Get(token)
		Expect(ok).To(BeFalse())
		Expect(flash.Keep(token)).To(BeFalse())
	})

	It("destroys maps whose TTL ran out", func() {
		var destroyed []string

		flash := scope.NewFlash(20*time.Millisecond, nil, nil)
		token, m := flash.Create()
		m.Put("notice", &bean{name: "notice", destroyed: &destroyed})

		Eventually(func() bool {
			_, ok := flash.Get(token)

			return ok
		}).Should(BeFalse())

		Expect(flash.Sweep()).To(Equal(1))
		Expect(destroyed).To(Equal([]string{"notice"}))
		Expect(flash.Len()).To(Equal(0))
		Expect(flash.Keep(token)).To(BeFalse())

		flash.Release(token)
		Expect(destroyed).To(HaveLen(1))
	})

	It("does not keep a released map alive", func() {
		flash := scope.NewFlash(time.Minute, nil, nil)

		for range 200 {
			token, _ := flash.Create()

			var wg sync.WaitGroup
			kept := make(chan bool, 1)

			wg.Add(2)
			go func() {
				defer wg.Done()
				kept <- flash.Keep(token)
			}()
			go func() {
				defer wg.Done()
				flash.Release(token)
			}()
			wg.Wait()

			<-kept
			_, ok := flash.Get(token)
			Expect(ok).To(BeFalse())
		}

		Expect(flash.Len()).To(Equal(0))
	})

	It("releases each map once", func() {
		var released atomic.Int32

		flash := scope.NewFlash(time.Minute, nil, nil)
		token, m := flash.Create()
		m.Put("counter", countingBean{&released})

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				flash.Release(token)
			}()
		}
		wg.Wait()

		Expect(released.Load()).To(Equal(int32(1)))
	})
})
