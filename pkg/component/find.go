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

package component

import (
	"strings"

	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
)

const separator = string(constants.SeparatorChar)

// FindComponent looks up a component by search expression. An expression
// starting with ':' is resolved from the view root; otherwise it is resolved
// from the closest naming container of c, or c itself if it is one. Each
// ':' separated segment but the last must name a naming container. A missing
// component yields nil.
func (c *Component) FindComponent(expr string) *Component {
	if expr == "" {
		return nil
	}

	base := c
	if strings.HasPrefix(expr, separator) {
		base = c.Top()
		expr = expr[1:]
	} else if !c.Has(CapNamingContainer) {
		if nc := c.NamingContainer(); nc != nil {
			base = nc
		} else {
			base = c.Top()
		}
	}

	for _, seg := range strings.Split(expr, separator) {
		if base == nil || seg == "" {
			return nil
		}

		found := findInScope(base, seg)
		if found == nil {
			return nil
		}

		base = found
	}

	return base
}

// FindByClientID walks the subtree of c for a component with the given client id.
func (c *Component) FindByClientID(clientID string) *Component {
	var found *Component

	c.walk(func(k *Component) bool {
		if k.ClientID() == clientID {
			found = k

			return false
		}

		return true
	})

	return found
}

// walk visits c and its subtree depth first until fn returns false.
func (c *Component) walk(fn func(*Component) bool) bool {
	if !fn(c) {
		return false
	}

	for _, k := range c.FacetsAndChildren() {
		if !k.walk(fn) {
			return false
		}
	}

	return true
}

// Walk visits c and its whole subtree, facets before children, until fn returns false.
func (c *Component) Walk(fn func(*Component) bool) {
	c.walk(fn)
}

// VisitResult steers a visit.
type VisitResult int

const (
	// VisitContinue descends into the component.
	VisitContinue VisitResult = iota
	// VisitReject skips the subtree of the component.
	VisitReject
	// VisitComplete ends the visit.
	VisitComplete
)

// VisitContext restricts a visit to a set of client ids and optionally to
// rendered components.
type VisitContext struct {
	ctx            Context
	ids            map[string]bool
	remaining      int
	skipUnrendered bool
}

// NewVisitContext creates a visit context for a single visit. A nil ids
// slice visits every component.
func NewVisitContext(ctx Context, ids []string, skipUnrendered bool) *VisitContext {
	vc := &VisitContext{ctx: ctx, skipUnrendered: skipUnrendered}
	if ids != nil {
		vc.ids = make(map[string]bool, len(ids))
		for _, id := range ids {
			vc.ids[id] = true
		}

		vc.remaining = len(vc.ids)
	}

	return vc
}

// Subset returns the requested client ids or nil for a full visit.
func (vc *VisitContext) Subset() []string {
	if vc.ids == nil {
		return nil
	}

	out := make([]string, 0, len(vc.ids))
	for id := range vc.ids {
		out = append(out, id)
	}

	return out
}

// Visit walks the subtree of c. With an id subset, fn is only called for the
// listed components; it returns true if the visit completed early.
func (c *Component) Visit(vc *VisitContext, fn func(*Component) VisitResult) bool {
	if vc.skipUnrendered && vc.ctx != nil && !c.IsRendered(vc.ctx) {
		return false
	}

	result := VisitContinue

	if vc.ids == nil {
		result = fn(c)
	} else if vc.ids[c.ClientID()] {
		result = fn(c)
		vc.remaining--

		if vc.remaining == 0 {
			return true
		}
	}

	switch result {
	case VisitComplete:
		return true
	case VisitReject:
		return false
	}

	for _, k := range c.FacetsAndChildren() {
		if k.Visit(vc, fn) {
			return true
		}
	}

	return false
}
