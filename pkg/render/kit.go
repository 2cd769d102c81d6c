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

// Package render is the HTML render kit: it decodes request parameters into
// components and encodes components as markup.
package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
)

// Context is what renderers need from the request.
type Context interface {
	component.Context
	ViewRoot() *component.ViewRoot
	// ViewState returns the token of the saved view.
	ViewState() string
	WindowID() string
	Messages(clientID string) []component.Message
	MessageClientIDs() []string
}

// Renderer decodes and encodes components of one family and renderer type.
// Encode renders the children itself.
type Renderer interface {
	Decode(ctx component.Context, c *component.Component)
	Encode(e *Encoder, c *component.Component) error
}

// RendererFunc adapts an encode function. Decoding falls back to
// component.DefaultDecode.
type RendererFunc func(e *Encoder, c *component.Component) error

func (f RendererFunc) Decode(ctx component.Context, c *component.Component) {
	component.DefaultDecode(ctx, c)
}

func (f RendererFunc) Encode(e *Encoder, c *component.Component) error { return f(e, c) }

type kitKey struct {
	family       string
	rendererType string
}

// Kit maps component families and renderer types to renderers.
type Kit struct {
	mu        sync.RWMutex
	renderers map[kitKey]Renderer
}

// NewKit returns the HTML_BASIC kit.
func NewKit() *Kit {
	k := &Kit{renderers: map[kitKey]Renderer{}}
	registerHTML(k)

	return k
}

// Register adds or replaces the renderer for family and rendererType.
func (k *Kit) Register(family, rendererType string, r Renderer) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.renderers[kitKey{family, rendererType}] = r
}

// Renderer returns the renderer of c.
func (k *Kit) Renderer(c *component.Component) (Renderer, bool) {
	if c.RendererType() == "" {
		return nil, false
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	r, ok := k.renderers[kitKey{c.Family(), c.RendererType()}]

	return r, ok
}

// Decode implements faces.Decoder.
func (k *Kit) Decode(ctx component.Context, c *component.Component) {
	if r, ok := k.Renderer(c); ok {
		r.Decode(ctx, c)

		return
	}

	component.DefaultDecode(ctx, c)
}

// Encoder renders one response.
type Encoder struct {
	Kit *Kit
	Ctx Context
	W   *Writer

	forms int
}

func (k *Kit) NewEncoder(ctx Context, w io.Writer) *Encoder {
	return &Encoder{Kit: k, Ctx: ctx, W: NewWriter(w)}
}

// Encode renders c when it is rendered. Components without a renderer
// render their children.
func (e *Encoder) Encode(c *component.Component) error {
	if !c.IsRendered(e.Ctx) {
		return nil
	}

	release := e.Ctx.ELContext().PushComponent(c)
	defer release()

	r, ok := e.Kit.Renderer(c)
	if !ok {
		return e.Children(c)
	}

	if err := r.Encode(e, c); err != nil {
		return fmt.Errorf("render %s: %w", c, err)
	}

	return e.W.Err()
}

// Children renders the children of c in order.
func (e *Encoder) Children(c *component.Component) error {
	for _, child := range c.Children() {
		if err := e.Encode(child); err != nil {
			return err
		}
	}

	return e.W.Err()
}

// Resources renders the component resources of target.
func (e *Encoder) Resources(target string) error {
	root := e.Ctx.ViewRoot()
	if root == nil {
		return nil
	}

	for _, r := range root.ComponentResources(target) {
		if err := e.Encode(r); err != nil {
			return err
		}
	}

	return nil
}
