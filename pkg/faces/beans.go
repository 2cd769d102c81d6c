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

package faces

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Scope names a bean lifetime.
type Scope string

const (
	RequestScope     Scope = "request"
	ViewScope        Scope = "view"
	SessionScope     Scope = "session"
	ApplicationScope Scope = "application"
	FlowScope        Scope = "flow"
)

var ErrDuplicateBean = errors.New("bean already registered")

// Bean describes a named value created on first reference.
type Bean struct {
	Name  string
	Scope Scope
	New   func(ctx *Context) (any, error)
	// Destroy runs when the scope of the bean ends. Without it a bean
	// implementing scope.PreDestroyer gets PreDestroy called.
	Destroy func(value any)
}

// BeanRegistry holds the beans of an application.
type BeanRegistry struct {
	mu    sync.RWMutex
	beans map[string]*Bean
}

func NewBeanRegistry() *BeanRegistry {
	return &BeanRegistry{beans: map[string]*Bean{}}
}

// Register adds b. Names are unique across scopes.
func (r *BeanRegistry) Register(b *Bean) error {
	if b == nil || b.Name == "" || b.New == nil {
		return errors.New("bean needs a name and a constructor")
	}

	switch b.Scope {
	case RequestScope, ViewScope, SessionScope, ApplicationScope, FlowScope:
	case "":
		b.Scope = RequestScope
	default:
		return fmt.Errorf("bean %s: unknown scope %q", b.Name, b.Scope)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.beans[b.Name]; ok {
		return fmt.Errorf("bean %s: %w", b.Name, ErrDuplicateBean)
	}

	r.beans[b.Name] = b

	return nil
}

func (r *BeanRegistry) Lookup(name string) (*Bean, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.beans[name]

	return b, ok
}

// Names returns the registered bean names, sorted.
func (r *BeanRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.beans))
	for n := range r.beans {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Destroy implements scope.BeanProvider for beans with a Destroy func.
func (r *BeanRegistry) Destroy(name string, value any) bool {
	b, ok := r.Lookup(name)
	if !ok || b.Destroy == nil {
		return false
	}

	b.Destroy(value)

	return true
}
