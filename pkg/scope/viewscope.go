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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
)

const viewScopesAttr = "faces.scope.views"

// ViewScopes manages the view scope maps of all sessions. A view scope is
// keyed by the view-scope id of its root and lives until the view is
// replaced or the session ends.
type ViewScopes struct {
	destroyer *Destroyer
	log       *zap.SugaredLogger
}

type viewMaps struct {
	mu   sync.Mutex
	maps map[string]*LazyMap
}

func NewViewScopes(destroyer *Destroyer, log *zap.SugaredLogger) *ViewScopes {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if destroyer == nil {
		destroyer = NewDestroyer(log)
	}

	return &ViewScopes{destroyer: destroyer, log: log}
}

func (v *ViewScopes) sessionMaps(ctx context.Context, sess *session.Session) (*viewMaps, error) {
	return sessionState(ctx, sess, viewScopesAttr,
		func() *viewMaps { return &viewMaps{maps: map[string]*LazyMap{}} },
		func(_ *session.Session, m *viewMaps) { v.destroyAll(m) })
}

// Map returns the view scope of root. With create set, a root without a
// view-scope id receives a fresh one; without it nil is returned instead.
func (v *ViewScopes) Map(ctx context.Context, sess *session.Session, root *component.ViewRoot, create bool) (*LazyMap, error) {
	id := root.ViewScopeID()
	if id == "" {
		if !create {
			return nil, nil
		}

		id = uuid.NewString()
		root.SetViewScopeID(id)
	}

	maps, err := v.sessionMaps(ctx, sess)
	if err != nil {
		return nil, err
	}

	maps.mu.Lock()
	defer maps.mu.Unlock()

	m, ok := maps.maps[id]
	if !ok {
		if !create {
			return nil, nil
		}

		m = &LazyMap{}
		maps.maps[id] = m
	}

	return m, nil
}

// ViewReplaced destroys the scope of previous unless next continues it.
func (v *ViewScopes) ViewReplaced(ctx context.Context, sess *session.Session, previous, next *component.ViewRoot) error {
	if previous == nil || previous.ViewScopeID() == "" {
		return nil
	}

	if next != nil && next.ViewScopeID() == previous.ViewScopeID() {
		return nil
	}

	return v.Destroy(ctx, sess, previous.ViewScopeID())
}

// Destroy removes a view scope and runs its pre-destroy hooks.
func (v *ViewScopes) Destroy(ctx context.Context, sess *session.Session, id string) error {
	maps, err := v.sessionMaps(ctx, sess)
	if err != nil {
		return err
	}

	maps.mu.Lock()
	m := maps.maps[id]
	delete(maps.maps, id)
	maps.mu.Unlock()

	if m != nil {
		v.log.Debugf("Destroying view scope %s of session %s", id, sess.ID())
		v.destroyer.DestroyMap(m)
	}

	return nil
}

// Len returns the number of live view scopes of sess.
func (v *ViewScopes) Len(ctx context.Context, sess *session.Session) int {
	maps, err := v.sessionMaps(ctx, sess)
	if err != nil {
		return 0
	}

	maps.mu.Lock()
	defer maps.mu.Unlock()

	return len(maps.maps)
}

func (v *ViewScopes) destroyAll(maps *viewMaps) {
	maps.mu.Lock()
	all := maps.maps
	maps.maps = map[string]*LazyMap{}
	maps.mu.Unlock()

	for _, m := range all {
		v.destroyer.DestroyMap(m)
	}
}
