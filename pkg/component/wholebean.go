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
	"fmt"
	"reflect"

	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

// TypeValidateWholeBean validates a bean as a whole after the inputs of its
// form passed field validation. Its value attribute binds the bean and its
// method attribute names a validation method of the bean. The method runs on
// a copy of the bean carrying the new input values, so the model is not
// touched before the update model values phase.
const TypeValidateWholeBean = "faces.ValidateWholeBean"

func init() {
	Register(Descriptor{Type: TypeValidateWholeBean, Family: "jakarta.faces.Input"})
}

// copyOnlyResolver routes reads and writes on the original bean to its copy
// and drops writes to any other base.
type copyOnlyResolver struct {
	*el.SubstitutingResolver
}

func (r copyOnlyResolver) SetValue(ctx *el.Context, base, property, value any) (bool, error) {
	if !el.Identical(base, r.Original) {
		return true, nil
	}

	return r.Inner.SetValue(ctx, r.Replacement, property, value)
}

func (c *Component) validateWholeBean(ctx Context) {
	bean, err := c.Eval(ctx, "value")
	if err != nil {
		ctx.QueueException(fmt.Errorf("bean of %s: %w", c.ClientID(), err))

		return
	}

	method := c.EvalString(ctx, "method")
	if bean == nil || method == "" {
		return
	}

	scope := c.parent
	for scope != nil && !scope.Has(CapForm) && scope.parent != nil {
		scope = scope.parent
	}

	if scope == nil || anyInvalid(scope) {
		return
	}

	beanCopy, err := copyBean(bean)
	if err != nil {
		ctx.QueueException(fmt.Errorf("copy bean for %s: %w", c.ClientID(), err))

		return
	}

	elctx := ctx.ELContext()
	sub := copyOnlyResolver{&el.SubstitutingResolver{Inner: elctx.Resolver(), Original: bean, Replacement: beanCopy}}

	restore := elctx.WithResolver(sub)
	defer restore()

	scope.Walk(func(k *Component) bool {
		ve, bound := k.bindings["value"]
		if !k.Has(CapEditableValueHolder) || !k.localValueSet || !bound {
			return true
		}

		release := elctx.PushComponent(k)
		defer release()

		if err := ve.SetValue(elctx, k.localValue); err != nil {
			ctx.QueueException(fmt.Errorf("apply %s to bean copy: %w", k.ClientID(), err))
		}

		return true
	})

	if _, _, err := sub.Invoke(elctx, bean, method, nil); err != nil {
		c.fail(ctx, Message{Severity: SeverityError, Summary: unwrapMessage(err)})
		ctx.RenderResponse()
	}
}

func anyInvalid(scope *Component) bool {
	invalid := false

	scope.Walk(func(k *Component) bool {
		if k.Has(CapEditableValueHolder) && !k.valid {
			invalid = true
		}

		return !invalid
	})

	return invalid
}

// copyBean deep copies a pointer to a struct or a map.
func copyBean(bean any) (any, error) {
	v := reflect.ValueOf(bean)

	switch {
	case v.Kind() == reflect.Ptr && !v.IsNil():
		dst := reflect.New(v.Type().Elem())
		if err := deepcopy.Copy(dst.Interface(), bean); err != nil {
			return nil, err
		}

		return dst.Interface(), nil
	case v.Kind() == reflect.Map:
		dst := reflect.New(v.Type())
		if err := deepcopy.Copy(dst.Interface(), bean); err != nil {
			return nil, err
		}

		return dst.Elem().Interface(), nil
	}

	return nil, fmt.Errorf("%w: cannot copy %T", ErrNotSerializable, bean)
}
