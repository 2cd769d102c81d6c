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

// Package el adapts expression evaluation to the component tree. It keeps a
// stack of the components being processed so that expressions resolve
// against the current component, and it hides the concrete evaluator behind
// the Evaluator interface.
package el

import "reflect"

// Evaluator evaluates expression strings such as "#{bean.name}".
type Evaluator interface {
	GetValue(ctx *Context, expr string) (any, error)
	SetValue(ctx *Context, expr string, value any) error
	GetType(ctx *Context, expr string) (reflect.Type, error)
	IsReadOnly(ctx *Context, expr string) (bool, error)
	// Invoke calls the method named by a method expression like "#{bean.save}".
	Invoke(ctx *Context, expr string, args ...any) (any, error)
}

// Context carries the state of one evaluation: the component stack, local
// variables and the resolver chain. A Context belongs to a single request
// and is not safe for concurrent use.
type Context struct {
	evaluator Evaluator
	resolver  Resolver
	owner     any

	stack []any
	vars  map[string]any
}

// NewContext creates a context evaluating through evaluator and resolving
// identifiers and properties through resolver. owner is the request context
// that created it and is returned by Owner.
func NewContext(evaluator Evaluator, resolver Resolver, owner any) *Context {
	return &Context{
		evaluator: evaluator,
		resolver:  resolver,
		owner:     owner,
		vars:      map[string]any{},
	}
}

func (c *Context) Evaluator() Evaluator { return c.evaluator }

func (c *Context) Resolver() Resolver { return c.resolver }

// Owner returns the request context this evaluation context belongs to.
func (c *Context) Owner() any { return c.owner }

// PushComponent makes comp the current component until the returned release
// function is called. Callers defer release so the stack unwinds on every
// path, including panics.
func (c *Context) PushComponent(comp any) (release func()) {
	c.stack = append(c.stack, comp)
	depth := len(c.stack)

	return func() {
		if len(c.stack) >= depth {
			c.stack = c.stack[:depth-1]
		}
	}
}

// CurrentComponent returns the top of the component stack or nil.
func (c *Context) CurrentComponent() any {
	if len(c.stack) == 0 {
		return nil
	}

	return c.stack[len(c.stack)-1]
}

// StackDepth reports how many components are pushed.
func (c *Context) StackDepth() int { return len(c.stack) }

// SetVariable binds name for the following evaluations. The returned function
// restores the previous binding.
func (c *Context) SetVariable(name string, value any) (restore func()) {
	prev, had := c.vars[name]
	c.vars[name] = value

	return func() {
		if had {
			c.vars[name] = prev
		} else {
			delete(c.vars, name)
		}
	}
}

// Variable returns a variable bound with SetVariable.
func (c *Context) Variable(name string) (any, bool) {
	v, ok := c.vars[name]

	return v, ok
}

// WithResolver replaces the resolver chain until restore is called.
func (c *Context) WithResolver(r Resolver) (restore func()) {
	prev := c.resolver
	c.resolver = r

	return func() { c.resolver = prev }
}
