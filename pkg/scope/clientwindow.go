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

package scope

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
)

type WindowMode string

const (
	WindowModeNone   WindowMode = "none"
	WindowModeURL    WindowMode = "url"
	WindowModeClient WindowMode = "client"
)

// ParseWindowMode accepts none, url and client. The empty string is none.
func ParseWindowMode(s string) (WindowMode, error) {
	switch WindowMode(s) {
	case "", WindowModeNone:
		return WindowModeNone, nil
	case WindowModeURL, WindowModeClient:
		return WindowMode(s), nil
	default:
		return "", fmt.Errorf("unknown client window mode %q", s)
	}
}

const (
	DefaultClientWindows = 10

	clientWindowsAttr = "faces.scope.windows"
	maxWindowIDLength = 64
)

// WindowListener is notified after a client window was destroyed.
type WindowListener func(sess *session.Session, windowID string)

// ClientWindows tracks the client windows of each session. Every session
// keeps at most capacity windows; the least recently used window is
// destroyed together with its scope when the limit is exceeded.
type ClientWindows struct {
	mode      WindowMode
	capacity  int
	destroyer *Destroyer
	log       *zap.SugaredLogger

	mu        sync.RWMutex
	listeners []WindowListener
}

func NewClientWindows(mode WindowMode, capacity int, destroyer *Destroyer, log *zap.SugaredLogger) *ClientWindows {
	if capacity <= 0 {
		capacity = DefaultClientWindows
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if destroyer == nil {
		destroyer = NewDestroyer(log)
	}

	return &ClientWindows{mode: mode, capacity: capacity, destroyer: destroyer, log: log}
}

func (w *ClientWindows) Mode() WindowMode { return w.mode }

// OnDestroyed registers fn for every destroyed window.
func (w *ClientWindows) OnDestroyed(fn WindowListener) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.listeners = append(w.listeners, fn)
}

func (w *ClientWindows) windows(ctx context.Context, sess *session.Session) (*lru.Cache[string, *LazyMap], error) {
	return sessionState(ctx, sess, clientWindowsAttr,
		func() *lru.Cache[string, *LazyMap] {
			c, err := lru.NewWithEvict(w.capacity, func(id string, m *LazyMap) {
				w.destroyed(sess, id, m)
			})
			if err != nil {
				// capacity is positive
				panic(err)
			}

			return c
		},
		func(_ *session.Session, c *lru.Cache[string, *LazyMap]) { c.Purge() })
}

func (w *ClientWindows) destroyed(sess *session.Session, id string, m *LazyMap) {
	metrics.IncEviction("client_window")
	w.log.Debugf("Destroying client window %s of session %s", id, sess.ID())
	w.destroyer.DestroyMap(m)

	w.mu.RLock()
	listeners := append([]WindowListener(nil), w.listeners...)
	w.mu.RUnlock()

	for _, fn := range listeners {
		fn(sess, id)
	}
}

// Resolve returns the window id for a request that carried requested. A known
// or well formed id is kept, otherwise a new window is opened. With mode none
// the result is always empty.
func (w *ClientWindows) Resolve(ctx context.Context, sess *session.Session, requested string) (string, error) {
	if w.mode == WindowModeNone {
		return "", nil
	}

	windows, err := w.windows(ctx, sess)
	if err != nil {
		return "", err
	}

	if requested != "" {
		if _, ok := windows.Get(requested); ok {
			return requested, nil
		}

		if len(requested) <= maxWindowIDLength {
			windows.Add(requested, &LazyMap{})

			return requested, nil
		}
	}

	id := uuid.NewString()
	windows.Add(id, &LazyMap{})

	return id, nil
}

// Map returns the window scope of id.
func (w *ClientWindows) Map(ctx context.Context, sess *session.Session, id string) (*LazyMap, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	windows, err := w.windows(ctx, sess)
	if err != nil {
		return nil, false, err
	}

	m, ok := windows.Get(id)

	return m, ok, nil
}

// Destroy closes a window.
func (w *ClientWindows) Destroy(ctx context.Context, sess *session.Session, id string) error {
	windows, err := w.windows(ctx, sess)
	if err != nil {
		return err
	}

	windows.Remove(id)

	return nil
}

// Len returns the number of open windows of sess.
func (w *ClientWindows) Len(ctx context.Context, sess *session.Session) int {
	windows, err := w.windows(ctx, sess)
	if err != nil {
		return 0
	}

	return windows.Len()
}

// URL adds the window id to rawURL when windows travel in the url.
func (w *ClientWindows) URL(rawURL, id string) (string, error) {
	if w.mode != WindowModeURL || id == "" {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	q := u.Query()
	q.Set(constants.ClientWindowParam, id)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
