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

// Package session provides HTTP sessions: an attribute map, a context aware
// object lock, TTL expiry and destroy hooks.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Session is a server side session. Attribute access is synchronized; Lock
// additionally serializes multi step updates across concurrent requests of
// the same session.
type Session struct {
	id      string
	created time.Time

	sem *semaphore.Weighted

	mu        sync.RWMutex
	attrs     map[string]any
	hooks     []func(*Session)
	destroyed bool

	log *zap.SugaredLogger
}

func newSession(id string, log *zap.SugaredLogger) *Session {
	return &Session{
		id:      id,
		created: time.Now(),
		sem:     semaphore.NewWeighted(1),
		attrs:   map[string]any{},
		log:     log,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Created() time.Time { return s.created }

// Lock acquires the session object lock or fails when ctx is done.
func (s *Session) Lock(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

func (s *Session) Unlock() {
	s.sem.Release(1)
}

func (s *Session) Attr(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.attrs[name]

	return v, ok
}

func (s *Session) SetAttr(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attrs[name] = value
}

// AttrOrCreate returns the attribute name, storing the result of create first
// if it is missing.
func (s *Session) AttrOrCreate(name string, create func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.attrs[name]; ok {
		return v
	}

	v := create()
	s.attrs[name] = v

	return v
}

func (s *Session) RemoveAttr(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attrs, name)
}

// AttrNames returns the attribute names, sorted.
func (s *Session) AttrNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}

// OnDestroy registers fn to run when the session ends. Hooks run in reverse
// registration order.
func (s *Session) OnDestroy(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, fn)
}

func (s *Session) IsDestroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.destroyed
}

func (s *Session) destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()

		return
	}

	s.destroyed = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		s.runHook(hooks[i])
	}
}

func (s *Session) runHook(fn func(*Session)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Session %s destroy hook panicked: %v", s.id, r)
		}
	}()

	fn(s)
}
