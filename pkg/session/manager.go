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

package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
)

// Manager keeps sessions in memory. Sessions expire after the idle timeout;
// expiry, invalidation and Close run the destroy hooks.
type Manager struct {
	sessions *cache.Cache
	log      *zap.SugaredLogger
}

// NewManager creates a manager whose sessions expire after timeout without
// access. Expired sessions are collected every cleanup interval.
func NewManager(timeout, cleanup time.Duration, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	m := &Manager{sessions: cache.New(timeout, cleanup), log: log}
	m.sessions.OnEvicted(func(id string, v interface{}) {
		s, ok := v.(*Session)
		if !ok {
			return
		}

		m.log.Debugf("Session %s ended", id)
		s.destroy()
		metrics.SessionDestroyed()
	})

	return m
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.log)
	m.sessions.SetDefault(s.id, s)
	metrics.SessionCreated()

	return s
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}

	s, ok := v.(*Session)
	if !ok || s.IsDestroyed() {
		return nil, false
	}

	m.sessions.SetDefault(id, s)

	return s, true
}

// GetOrCreate returns the session id if it is live, otherwise a new one.
// created reports whether a new session was started.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	if s, ok := m.Get(id); ok {
		return s, false
	}

	return m.Create(), true
}

// Invalidate ends a session immediately.
func (m *Manager) Invalidate(id string) {
	m.sessions.Delete(id)
}

// Count returns the number of sessions, including expired ones not yet collected.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// DeleteExpired ends every expired session now.
func (m *Manager) DeleteExpired() {
	m.sessions.DeleteExpired()
}

// Close ends every session.
func (m *Manager) Close() {
	for id := range m.sessions.Items() {
		m.sessions.Delete(id)
	}
}
