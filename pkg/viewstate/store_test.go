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

package viewstate_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/session"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
	"github.com/united-manufacturing-hub/faces-core/pkg/viewstate"
)

func entry(n int32, flash string) viewstate.Entry {
	return viewstate.Entry{Key: statecodec.NewCounterKey("/index.xhtml", n), Data: []byte{byte(n)}, FlashToken: flash}
}

var _ = Describe("LRUStore", func() {
	var (
		ctx     context.Context
		sess    *session.Session
		mu      sync.Mutex
		evicted []viewstate.Entry
		store   *viewstate.LRUStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		sess = session.NewManager(time.Hour, 0, nil).Create()
		evicted = nil
		store = viewstate.NewLRUStore(2, nil, func(_ *session.Session, _ string, e viewstate.Entry) {
			mu.Lock()
			defer mu.Unlock()

			evicted = append(evicted, e)
		})
	})

	It("returns what was put", func() {
		Expect(store.Put(ctx, sess, "", entry(1, ""))).To(Succeed())

		e, ok, err := store.Get(ctx, sess, "", statecodec.NewCounterKey("/index.xhtml", 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(e.Data).To(Equal([]byte{1}))

		_, ok, err = store.Get(ctx, sess, "", statecodec.NewCounterKey("/other.xhtml", 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("evicts the least recently used entry exactly once", func() {
		Expect(store.Put(ctx, sess, "", entry(1, "flash-1"))).To(Succeed())
		Expect(store.Put(ctx, sess, "", entry(2, "flash-2"))).To(Succeed())

		_, ok, _ := store.Get(ctx, sess, "", statecodec.NewCounterKey("/index.xhtml", 1))
		Expect(ok).To(BeTrue())

		Expect(store.Put(ctx, sess, "", entry(3, "flash-3"))).To(Succeed())

		Expect(evicted).To(HaveLen(1))
		Expect(evicted[0].FlashToken).To(Equal("flash-2"))
		Expect(store.Len(ctx, sess, "")).To(Equal(2))

		_, ok, _ = store.Get(ctx, sess, "", statecodec.NewCounterKey("/index.xhtml", 2))
		Expect(ok).To(BeFalse())
	})

	It("keeps windows apart", func() {
		Expect(store.Put(ctx, sess, "w1", entry(1, ""))).To(Succeed())
		Expect(store.Put(ctx, sess, "w2", entry(2, ""))).To(Succeed())
		Expect(store.Put(ctx, sess, "w2", entry(3, ""))).To(Succeed())

		Expect(evicted).To(BeEmpty())

		_, ok, _ := store.Get(ctx, sess, "w2", statecodec.NewCounterKey("/index.xhtml", 1))
		Expect(ok).To(BeFalse())

		Expect(store.DropWindow(ctx, sess, "w1")).To(Succeed())
		Expect(store.Len(ctx, sess, "w1")).To(Equal(0))
	})

	It("is safe for concurrent use", func() {
		var wg sync.WaitGroup

		for i := 0; i < 4; i++ {
			wg.Add(1)

			go func(base int32) {
				defer GinkgoRecover()
				defer wg.Done()

				for j := int32(0); j < 50; j++ {
					Expect(store.Put(ctx, sess, "", entry(base*100+j+1, ""))).To(Succeed())
				}
			}(int32(i))
		}

		wg.Wait()

		Expect(store.Len(ctx, sess, "")).To(Equal(2))
		Expect(evicted).To(HaveLen(198))
	})
})

type fakeRedis struct {
	mu       sync.Mutex
	data     map[string][]byte
	failSets int
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}

	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSets > 0 {
		f.failSets--

		return redis.NewStatusResult("", errors.New("connection reset"))
	}

	b, _ := value.([]byte)
	f.data[key] = b

	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Keys(_ context.Context, pattern string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string

	for k := range f.data {
		if strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			keys = append(keys, k)
		}
	}

	return redis.NewStringSliceResult(keys, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, k := range keys {
		delete(f.data, k)
	}

	return redis.NewIntResult(int64(len(keys)), nil)
}

var _ = Describe("RedisStore", func() {
	var (
		ctx    context.Context
		sess   *session.Session
		client *fakeRedis
		store  *viewstate.RedisStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		sess = session.NewManager(time.Hour, 0, nil).Create()
		client = &fakeRedis{data: map[string][]byte{}}
		store = viewstate.NewRedisStore(client, time.Hour, nil)
	})

	It("stores and loads entries", func() {
		Expect(store.Put(ctx, sess, "w", entry(5, "flash"))).To(Succeed())

		e, ok, err := store.Get(ctx, sess, "w", statecodec.NewCounterKey("/index.xhtml", 5))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(e.Data).To(Equal([]byte{5}))
		Expect(e.FlashToken).To(Equal("flash"))

		_, ok, err = store.Get(ctx, sess, "w", statecodec.NewCounterKey("/index.xhtml", 6))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("retries failing writes", func() {
		client.failSets = 2

		Expect(store.Put(ctx, sess, "", entry(1, ""))).To(Succeed())
		Expect(client.data).To(HaveLen(1))
	})

	It("gives up after the retries are used up", func() {
		client.failSets = 10

		Expect(store.Put(ctx, sess, "", entry(1, ""))).To(MatchError(ContainSubstring("connection reset")))
	})

	It("drops the entries of a window", func() {
		Expect(store.Put(ctx, sess, "w1", entry(1, ""))).To(Succeed())
		Expect(store.Put(ctx, sess, "w2", entry(2, ""))).To(Succeed())

		Expect(store.DropWindow(ctx, sess, "w1")).To(Succeed())
		Expect(client.data).To(HaveLen(1))
	})
})
