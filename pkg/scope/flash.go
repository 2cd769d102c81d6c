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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/session"
	"github.com/united-manufacturing-hub/faces-core/pkg/viewstate"
)

const DefaultFlashTTL = 10 * time.Minute

// Flash keeps token-keyed maps that survive one redirect. Entries expire
// after the TTL unless kept; the view state store releases the map of an
// evicted view. Expired maps get their pre-destroy hooks on the next sweep.
type Flash struct {
	maps      *expiremap.ExpireMap[string, *LazyMap]
	destroyer *Destroyer
	log       *zap.SugaredLogger
	ttl       time.Duration

	// live holds every map handed out and not yet destroyed, including
	// those the expire map already dropped.
	mu   sync.Mutex
	live map[string]*LazyMap
}

func NewFlash(ttl time.Duration, destroyer *Destroyer, log *zap.SugaredLogger) *Flash {
	if ttl <= 0 {
		ttl = DefaultFlashTTL
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if destroyer == nil {
		destroyer = NewDestroyer(log)
	}

	return &Flash{
		maps:      expiremap.NewEx[string, *LazyMap](ttl, ttl),
		destroyer: destroyer,
		log:       log,
		ttl:       ttl,
		live:      make(map[string]*LazyMap),
	}
}

// Create opens a new flash map.
func (f *Flash) Create() (string, *LazyMap) {
	f.Sweep()

	token := uuid.NewString()
	m := &LazyMap{}

	f.mu.Lock()
	f.maps.Set(token, m)
	f.live[token] = m
	f.mu.Unlock()

	return token, m
}

func (f *Flash) Get(token string) (*LazyMap, bool) {
	if token == "" {
		return nil, false
	}

	m, ok := f.maps.Load(token)
	if !ok || m == nil {
		return nil, false
	}

	return *m, true
}

// Keep restarts the TTL of a flash map.
func (f *Flash) Keep(token string) bool {
	if token == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.maps.Load(token)
	if !ok || m == nil {
		return false
	}

	f.maps.Set(token, *m)

	return true
}

// Release drops a flash map and runs the pre-destroy hooks of its values.
func (f *Flash) Release(token string) {
	if token == "" {
		return
	}

	f.mu.Lock()
	f.maps.Delete(token)
	m, ok := f.live[token]
	delete(f.live, token)
	f.mu.Unlock()

	if !ok {
		return
	}

	f.destroyer.DestroyMap(m)
	f.log.Debugf("Released flash %s", token)
}

// Sweep destroys the maps whose TTL ran out and returns how many it found.
func (f *Flash) Sweep() int {
	var expired []*LazyMap

	f.mu.Lock()
	for token, m := range f.live {
		if _, ok := f.maps.Load(token); ok {
			continue
		}

		delete(f.live, token)
		expired = append(expired, m)
	}
	f.mu.Unlock()

	for _, m := range expired {
		f.destroyer.DestroyMap(m)
	}

	if len(expired) > 0 {
		f.log.Debugf("Swept %d expired flash maps", len(expired))
	}

	return len(expired)
}

// Run sweeps once per TTL until ctx is done.
func (f *Flash) Run(ctx context.Context) {
	ticker := time.NewTicker(f.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Sweep()
		}
	}
}

// ViewEvicted releases the flash map of an evicted view. It matches
// viewstate.EvictionFunc.
func (f *Flash) ViewEvicted(_ *session.Session, _ string, e viewstate.Entry) {
	if e.FlashToken != "" {
		f.Release(e.FlashToken)
	}
}

func (f *Flash) Len() int {
	f.Sweep()

	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.live)
}
