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

package el

import (
	"fmt"
	"reflect"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultParseCacheSize = 2048

// PathEvaluator is the bundled Evaluator. It understands property paths
// (a.b, a['b'], a[0]), method calls, literals, the empty and not operators,
// comparisons, boolean and arithmetic operators, the conditional operator and
// literal text with embedded expressions. Parsed expressions are cached.
type PathEvaluator struct {
	cache *lru.Cache[string, node]
}

// NewPathEvaluator returns an evaluator caching up to cacheSize parsed
// expressions. A non-positive size selects the default.
func NewPathEvaluator(cacheSize int) *PathEvaluator {
	if cacheSize <= 0 {
		cacheSize = defaultParseCacheSize
	}

	cache, err := lru.New[string, node](cacheSize)
	if err != nil {
		panic(err)
	}

	return &PathEvaluator{cache: cache}
}

func (e *PathEvaluator) parse(expr string) (node, error) {
	if n, ok := e.cache.Get(expr); ok {
		return n, nil
	}

	n, err := parseTemplate(expr)
	if err != nil {
		return nil, err
	}

	e.cache.Add(expr, n)

	return n, nil
}

func (e *PathEvaluator) GetValue(ctx *Context, expr string) (any, error) {
	n, err := e.parse(expr)
	if err != nil {
		return nil, evalError("get", expr, err)
	}

	v, err := e.eval(ctx, n)
	if err != nil {
		return nil, evalError("get", expr, err)
	}

	return v, nil
}

func (e *PathEvaluator) SetValue(ctx *Context, expr string, value any) error {
	n, err := e.parse(expr)
	if err != nil {
		return evalError("set", expr, err)
	}

	switch t := n.(type) {
	case identNode:
		ok, err := ctx.resolver.SetValue(ctx, nil, t.name, value)
		if err == nil && !ok {
			err = fmt.Errorf("%w: %s", ErrPropertyNotFound, t.name)
		}

		if err != nil {
			return evalError("set", expr, err)
		}

		return nil
	case propertyNode:
		base, prop, err := e.target(ctx, t)
		if err != nil {
			return evalError("set", expr, err)
		}

		if base == nil {
			return evalError("set", expr, fmt.Errorf("%w: base of %v is null", ErrPropertyNotFound, prop))
		}

		ok, err := ctx.resolver.SetValue(ctx, base, prop, value)
		if err == nil && !ok {
			err = fmt.Errorf("%w: %v on %T", ErrPropertyNotWritable, prop, base)
		}

		if err != nil {
			return evalError("set", expr, err)
		}

		return nil
	}

	return evalError("set", expr, fmt.Errorf("%w: not an lvalue", ErrPropertyNotWritable))
}

func (e *PathEvaluator) GetType(ctx *Context, expr string) (reflect.Type, error) {
	n, err := e.parse(expr)
	if err != nil {
		return nil, evalError("type", expr, err)
	}

	var (
		t  reflect.Type
		ok bool
	)

	switch p := n.(type) {
	case identNode:
		t, ok, err = ctx.resolver.GetType(ctx, nil, p.name)
	case propertyNode:
		var base, prop any

		base, prop, err = e.target(ctx, p)
		if err == nil && base != nil {
			t, ok, err = ctx.resolver.GetType(ctx, base, prop)
		}
	default:
		var v any

		v, err = e.eval(ctx, n)
		t, ok = reflect.TypeOf(v), true
	}

	if err != nil {
		return nil, evalError("type", expr, err)
	}

	if !ok {
		return nil, nil
	}

	return t, nil
}

func (e *PathEvaluator) IsReadOnly(ctx *Context, expr string) (bool, error) {
	n, err := e.parse(expr)
	if err != nil {
		return true, evalError("readonly", expr, err)
	}

	switch p := n.(type) {
	case identNode:
		ro, ok, err := ctx.resolver.IsReadOnly(ctx, nil, p.name)
		if err != nil {
			return true, evalError("readonly", expr, err)
		}

		return ro || !ok, nil
	case propertyNode:
		base, prop, err := e.target(ctx, p)
		if err != nil {
			return true, evalError("readonly", expr, err)
		}

		if base == nil {
			return true, nil
		}

		ro, ok, err := ctx.resolver.IsReadOnly(ctx, base, prop)
		if err != nil {
			return true, evalError("readonly", expr, err)
		}

		return ro || !ok, nil
	}

	return true, nil
}

func (e *PathEvaluator) Invoke(ctx *Context, expr string, args ...any) (any, error) {
	n, err := e.parse(expr)
	if err != nil {
		return nil, evalError("invoke", expr, err)
	}

	var (
		base   any
		method string
	)

	switch p := n.(type) {
	case callNode:
		v, err := e.eval(ctx, p)
		if err != nil {
			return nil, evalError("invoke", expr, err)
		}

		return v, nil
	case propertyNode:
		var prop any

		base, prop, err = e.target(ctx, p)
		if err != nil {
			return nil, evalError("invoke", expr, err)
		}

		method = ToString(prop)
	case identNode:
		method = p.name
	case literalNode:
		// A literal method expression such as action="home" returns its text.
		return ToString(p.value), nil
	default:
		return nil, evalError("invoke", expr, fmt.Errorf("%w: not a method expression", ErrMethodNotFound))
	}

	v, ok, err := ctx.resolver.Invoke(ctx, base, method, args)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}

	if err != nil {
		return nil, evalError("invoke", expr, err)
	}

	return v, nil
}

func (e *PathEvaluator) target(ctx *Context, p propertyNode) (base, prop any, err error) {
	base, err = e.eval(ctx, p.base)
	if err != nil {
		return nil, nil, err
	}

	prop, err = e.eval(ctx, p.property)

	return base, prop, err
}

func (e *PathEvaluator) eval(ctx *Context, n node) (any, error) {
	switch t := n.(type) {
	case literalNode:
		return t.value, nil
	case identNode:
		v, _, err := ctx.resolver.GetValue(ctx, nil, t.name)

		return v, err
	case propertyNode:
		base, prop, err := e.target(ctx, t)
		if err != nil || base == nil {
			return nil, err
		}

		v, ok, err := ctx.resolver.GetValue(ctx, base, prop)
		if err == nil && !ok {
			err = fmt.Errorf("%w: %v on %T", ErrPropertyNotFound, prop, base)
		}

		return v, err
	case callNode:
		base, err := e.eval(ctx, t.base)
		if err != nil {
			return nil, err
		}

		if base == nil {
			return nil, fmt.Errorf("%w: %s on null", ErrMethodNotFound, t.method)
		}

		args := make([]any, len(t.args))
		for i, a := range t.args {
			if args[i], err = e.eval(ctx, a); err != nil {
				return nil, err
			}
		}

		v, ok, err := ctx.resolver.Invoke(ctx, base, t.method, args)
		if err == nil && !ok {
			err = fmt.Errorf("%w: %s on %T", ErrMethodNotFound, t.method, base)
		}

		return v, err
	case unaryNode:
		return e.unary(ctx, t)
	case binaryNode:
		return e.binary(ctx, t)
	case condNode:
		c, err := e.eval(ctx, t.cond)
		if err != nil {
			return nil, err
		}

		b, err := ToBool(c)
		if err != nil {
			return nil, err
		}

		if b {
			return e.eval(ctx, t.then)
		}

		return e.eval(ctx, t.els)
	case compositeNode:
		var sb strings.Builder

		for _, part := range t.parts {
			v, err := e.eval(ctx, part)
			if err != nil {
				return nil, err
			}

			sb.WriteString(ToString(v))
		}

		return sb.String(), nil
	}

	return nil, fmt.Errorf("%w: unknown node %T", ErrSyntax, n)
}

func (e *PathEvaluator) unary(ctx *Context, t unaryNode) (any, error) {
	v, err := e.eval(ctx, t.x)
	if err != nil {
		return nil, err
	}

	switch t.op {
	case "empty":
		return IsEmpty(v), nil
	case "!":
		b, err := ToBool(v)

		return !b, err
	case "-":
		f, isInt, err := toNumber(v)
		if err != nil {
			return nil, err
		}

		if isInt {
			return -int64(f), nil
		}

		return -f, nil
	}

	return nil, fmt.Errorf("%w: unknown operator %s", ErrSyntax, t.op)
}

func (e *PathEvaluator) binary(ctx *Context, t binaryNode) (any, error) {
	l, err := e.eval(ctx, t.l)
	if err != nil {
		return nil, err
	}

	if t.op == "&&" || t.op == "||" {
		lb, err := ToBool(l)
		if err != nil {
			return nil, err
		}

		if t.op == "&&" && !lb || t.op == "||" && lb {
			return lb, nil
		}

		r, err := e.eval(ctx, t.r)
		if err != nil {
			return nil, err
		}

		return ToBool(r)
	}

	r, err := e.eval(ctx, t.r)
	if err != nil {
		return nil, err
	}

	switch t.op {
	case "==":
		return Equal(l, r), nil
	case "!=":
		return !Equal(l, r), nil
	case "<", ">", "<=", ">=":
		c, err := compare(l, r)
		if err != nil {
			return nil, err
		}

		switch t.op {
		case "<":
			return c < 0, nil
		case ">":
			return c > 0, nil
		case "<=":
			return c <= 0, nil
		}

		return c >= 0, nil
	case "+":
		if _, ok := l.(string); ok && !isNumeric(r) {
			if _, _, err := toNumber(l); err != nil {
				return ToString(l) + ToString(r), nil
			}
		}
	}

	return arithmetic(t.op, l, r)
}

func arithmetic(op string, l, r any) (any, error) {
	fl, li, err := toNumber(l)
	if err != nil {
		return nil, err
	}

	fr, ri, err := toNumber(r)
	if err != nil {
		return nil, err
	}

	if li && ri && op != "/" {
		a, b := int64(fl), int64(fr)

		switch op {
		case "+":
			return a + b, nil
		case "-":
			return a - b, nil
		case "*":
			return a * b, nil
		case "%":
			if b == 0 {
				return nil, fmt.Errorf("%w: modulo by zero", ErrTypeMismatch)
			}

			return a % b, nil
		}
	}

	switch op {
	case "+":
		return fl + fr, nil
	case "-":
		return fl - fr, nil
	case "*":
		return fl * fr, nil
	case "/":
		if fr == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrTypeMismatch)
		}

		return fl / fr, nil
	}

	return nil, fmt.Errorf("%w: unknown operator %s", ErrSyntax, op)
}
