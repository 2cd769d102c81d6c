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
	"reflect"
	"strings"
)

// VarMapping binds a variable to the expression producing its value, for
// example an iteration variable to "bean.items[2]".
type VarMapping struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// ValueExpression is a bound attribute value. Vars are evaluated in order and
// bound as variables before Expr is evaluated.
type ValueExpression struct {
	Expr string       `json:"expr"`
	Vars []VarMapping `json:"vars,omitempty"`
}

// NewValueExpression returns a value expression for expr with no captured variables.
func NewValueExpression(expr string) ValueExpression {
	return ValueExpression{Expr: expr}
}

// IsLiteralText reports whether s contains no #{ or ${ expression.
func IsLiteralText(s string) bool {
	return !strings.Contains(s, "#{") && !strings.Contains(s, "${")
}

func (v ValueExpression) bind(ctx *Context) (restore func(), err error) {
	if len(v.Vars) == 0 {
		return func() {}, nil
	}

	restores := make([]func(), 0, len(v.Vars))
	undo := func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}

	for _, m := range v.Vars {
		val, err := ctx.evaluator.GetValue(ctx, "#{"+m.Expr+"}")
		if err != nil {
			undo()

			return nil, err
		}

		restores = append(restores, ctx.SetVariable(m.Name, val))
	}

	return undo, nil
}

func (v ValueExpression) GetValue(ctx *Context) (any, error) {
	restore, err := v.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer restore()

	return ctx.evaluator.GetValue(ctx, v.Expr)
}

func (v ValueExpression) SetValue(ctx *Context, value any) error {
	restore, err := v.bind(ctx)
	if err != nil {
		return err
	}
	defer restore()

	return ctx.evaluator.SetValue(ctx, v.Expr, value)
}

func (v ValueExpression) GetType(ctx *Context) (reflect.Type, error) {
	restore, err := v.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer restore()

	return ctx.evaluator.GetType(ctx, v.Expr)
}

func (v ValueExpression) IsReadOnly(ctx *Context) (bool, error) {
	restore, err := v.bind(ctx)
	if err != nil {
		return true, err
	}
	defer restore()

	return ctx.evaluator.IsReadOnly(ctx, v.Expr)
}

// Invoke treats the expression as a method expression.
func (v ValueExpression) Invoke(ctx *Context, args ...any) (any, error) {
	restore, err := v.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer restore()

	return ctx.evaluator.Invoke(ctx, v.Expr, args...)
}
