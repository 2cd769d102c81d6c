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

package session_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/session"
)

var _ = Describe("Manager", func() {
	var m *session.Manager

	BeforeEach(func() {
		m = session.NewManager(time.Hour, 0, nil)
	})

	It("creates and finds sessions", func() {
		s := m.Create()
		Expect(s.ID()).NotTo(BeEmpty())

		found, ok := m.Get(s.ID())
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(s))

		_, ok = m.Get("unknown")
		Expect(ok).To(BeFalse())

		again, created := m.GetOrCreate(s.ID())
		Expect(created).To(BeFalse())
		Expect(again).To(BeIdenticalTo(s))
	})

	It("runs destroy hooks in reverse order on invalidation", func() {
		s := m.Create()

		var order []int
		s.OnDestroy(func(*session.Session) { order = append(order, 1) })
		s.OnDestroy(func(*session.Session) { panic("hook failure") })
		s.OnDestroy(func(*session.Session) { order = append(order, 3) })

		m.Invalidate(s.ID())

		Expect(order).To(Equal([]int{3, 1}))
		Expect(s.IsDestroyed()).To(BeTrue())

		_, ok := m.Get(s.ID())
		Expect(ok).To(BeFalse())
	})

	It("destroys expired sessions", func() {
		short := session.NewManager(10*time.Millisecond, 0, nil)
		s := short.Create()

		destroyed := make(chan struct{})
		s.OnDestroy(func(*session.Session) { close(destroyed) })

		Eventually(func() bool {
			short.DeleteExpired()

			return s.IsDestroyed()
		}).Should(BeTrue())
		Eventually(destroyed).Should(BeClosed())
	})

	It("ends every session on close", func() {
		a, b := m.Create(), m.Create()
		m.Close()

		Expect(a.IsDestroyed()).To(BeTrue())
		Expect(b.IsDestroyed()).To(BeTrue())
		Expect(m.Count()).To(Equal(0))
	})
})

var _ = Describe("Session", func() {
	It("stores attributes", func() {
		s := session.NewManager(time.Hour, 0, nil).Create()

		s.SetAttr("b", 2)
		s.SetAttr("a", 1)
		Expect(s.AttrNames()).To(Equal([]string{"a", "b"}))

		v := s.AttrOrCreate("a", func() any { return 10 })
		Expect(v).To(Equal(1))
		v = s.AttrOrCreate("c", func() any { return 3 })
		Expect(v).To(Equal(3))

		s.RemoveAttr("a")
		_, ok := s.Attr("a")
		Expect(ok).To(BeFalse())
	})

	It("serializes holders of the object lock", func() {
		s := session.NewManager(time.Hour, 0, nil).Create()
		Expect(s.Lock(context.Background())).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		Expect(s.Lock(ctx)).To(MatchError(context.DeadlineExceeded))

		s.Unlock()
		Expect(s.Lock(context.Background())).To(Succeed())
		s.Unlock()
	})
})
