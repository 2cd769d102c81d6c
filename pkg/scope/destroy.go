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
	"sort"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
)

// PreDestroyer is implemented by scoped values that release resources when
// their scope ends.
type PreDestroyer interface {
	PreDestroy()
}

// BeanProvider destroys values it manages. Destroy returns false when value
// is not one of its beans.
type BeanProvider interface {
	Destroy(name string, value any) bool
}

// Destroyer runs pre-destroy hooks on values leaving a scope.
type Destroyer struct {
	providers []BeanProvider
	log       *zap.SugaredLogger
}

func NewDestroyer(log *zap.SugaredLogger, providers ...BeanProvider) *Destroyer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Destroyer{providers: providers, log: log}
}

// Destroy runs the hook of a single value. A panicking hook is logged and
// does not stop the caller.
func (d *Destroyer) Destroy(name string, value any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncErrorCount("scope", "pre_destroy")
			d.log.Errorf("Pre-destroy of %q panicked: %v", name, r)
		}
	}()

	for _, p := range d.providers {
		if p.Destroy(name, value) {
			return
		}
	}

	if pd, ok := value.(PreDestroyer); ok {
		pd.PreDestroy()
	}
}

// DestroyMap clears m and runs the hooks of its former values in name order.
func (d *Destroyer) DestroyMap(m *LazyMap) {
	if m == nil {
		return
	}

	values := m.Clear()

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		d.Destroy(name, values[name])
	}
}

// sessionState returns the session attribute name, creating it under the
// session lock. onDestroy is registered together with the creation.
func sessionState[T any](ctx context.Context, sess *session.Session, name string, create func() T, onDestroy func(*session.Session, T)) (T, error) {
	var zero T

	if v, ok := sess.Attr(name); ok {
		return typedAttr[T](v, name)
	}

	if err := sess.Lock(ctx); err != nil {
		return zero, fmt.Errorf("lock session %s: %w", sess.ID(), err)
	}
	defer sess.Unlock()

	if v, ok := sess.Attr(name); ok {
		return typedAttr[T](v, name)
	}

	t := create()
	sess.SetAttr(name, t)

	if onDestroy != nil {
		sess.OnDestroy(func(s *session.Session) { onDestroy(s, t) })
	}

	return t, nil
}

func typedAttr[T any](v any, name string) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T

		return zero, fmt.Errorf("session attribute %s has type %T", name, v)
	}

	return t, nil
}
