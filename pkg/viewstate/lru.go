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

package viewstate

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
)

const lruSessionAttr = "faces.viewstate.views"

// DefaultViewsInSession is the number of views kept per window when no capacity is configured.
const DefaultViewsInSession = 20

// LRUStore keeps the most recently used views of each session window in
// memory. The entries live in a session attribute and end with the session.
type LRUStore struct {
	capacity int
	onEvict  []EvictionFunc
	log      *zap.SugaredLogger
}

// NewLRUStore creates a store keeping capacity views per window.
func NewLRUStore(capacity int, log *zap.SugaredLogger, onEvict ...EvictionFunc) *LRUStore {
	if capacity <= 0 {
		capacity = DefaultViewsInSession
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &LRUStore{capacity: capacity, onEvict: onEvict, log: log}
}

// sessionViews holds the caches of one session by window id.
type sessionViews struct {
	mu      sync.Mutex
	windows map[string]*lru.Cache[string, Entry]
}

func (s *LRUStore) views(ctx context.Context, sess *session.Session) (*sessionViews, error) {
	if v, ok := sess.Attr(lruSessionAttr); ok {
		if views, ok := v.(*sessionViews); ok {
			return views, nil
		}
	}

	if err := sess.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock session %s: %w", sess.ID(), err)
	}
	defer sess.Unlock()

	v := sess.AttrOrCreate(lruSessionAttr, func() any {
		return &sessionViews{windows: map[string]*lru.Cache[string, Entry]{}}
	})

	views, ok := v.(*sessionViews)
	if !ok {
		return nil, fmt.Errorf("session attribute %s has type %T", lruSessionAttr, v)
	}

	return views, nil
}

func (s *LRUStore) window(sess *session.Session, views *sessionViews, window string, create bool) (*lru.Cache[string, Entry], error) {
	views.mu.Lock()
	defer views.mu.Unlock()

	if c, ok := views.windows[window]; ok || !create {
		return c, nil
	}

	c, err := lru.NewWithEvict(s.capacity, func(_ string, e Entry) {
		s.evicted(sess, window, e)
	})
	if err != nil {
		return nil, fmt.Errorf("create view cache: %w", err)
	}

	views.windows[window] = c

	return c, nil
}

func (s *LRUStore) evicted(sess *session.Session, window string, e Entry) {
	metrics.IncEviction("lru")
	s.log.Debugf("Evicted view %s of session %s window %q", e.Key.ViewID, sess.ID(), window)

	for _, fn := range s.onEvict {
		fn(sess, window, e)
	}
}

func (s *LRUStore) Put(ctx context.Context, sess *session.Session, window string, e Entry) error {
	views, err := s.views(ctx, sess)
	if err != nil {
		return err
	}

	c, err := s.window(sess, views, window, true)
	if err != nil {
		return err
	}

	c.Add(e.Key.String(), e)

	return nil
}

func (s *LRUStore) Get(ctx context.Context, sess *session.Session, window string, key statecodec.Key) (Entry, bool, error) {
	views, err := s.views(ctx, sess)
	if err != nil {
		return Entry{}, false, err
	}

	c, err := s.window(sess, views, window, false)
	if err != nil || c == nil {
		return Entry{}, false, err
	}

	e, ok := c.Get(key.String())
	if !ok || !e.Key.Equal(key) {
		return Entry{}, false, nil
	}

	return e, true, nil
}

// DropWindow removes the cache of a window without running eviction callbacks.
func (s *LRUStore) DropWindow(ctx context.Context, sess *session.Session, window string) error {
	views, err := s.views(ctx, sess)
	if err != nil {
		return err
	}

	views.mu.Lock()
	defer views.mu.Unlock()

	delete(views.windows, window)

	return nil
}

// Len returns the number of views kept for a window.
func (s *LRUStore) Len(ctx context.Context, sess *session.Session, window string) int {
	views, err := s.views(ctx, sess)
	if err != nil {
		return 0
	}

	c, _ := s.window(sess, views, window, false)
	if c == nil {
		return 0
	}

	return c.Len()
}
