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
	"unicode"
	"unicode/utf8"
)

// Resolver resolves one step of a property path. A nil base asks for a top
// level identifier. resolved is false when the resolver does not handle the
// base, so the next resolver in a chain gets a chance.
type Resolver interface {
	GetValue(ctx *Context, base, property any) (value any, resolved bool, err error)
	SetValue(ctx *Context, base, property, value any) (resolved bool, err error)
	GetType(ctx *Context, base, property any) (t reflect.Type, resolved bool, err error)
	IsReadOnly(ctx *Context, base, property any) (readOnly, resolved bool, err error)
	Invoke(ctx *Context, base any, method string, args []any) (result any, resolved bool, err error)
}

// KeyValue is a map-like value such as a scope map.
type KeyValue interface {
	Get(key string) (any, bool)
	Put(key string, value any)
}

// NopResolver resolves nothing. Embed it to implement only part of Resolver.
type NopResolver struct{}

func (NopResolver) GetValue(*Context, any, any) (any, bool, error) { return nil, false, nil }

func (NopResolver) SetValue(*Context, any, any, any) (bool, error) { return false, nil }

func (NopResolver) GetType(*Context, any, any) (reflect.Type, bool, error) { return nil, false, nil }

func (NopResolver) IsReadOnly(*Context, any, any) (bool, bool, error) { return false, false, nil }

func (NopResolver) Invoke(*Context, any, string, []any) (any, bool, error) { return nil, false, nil }

// CompositeResolver asks each resolver in order until one resolves.
type CompositeResolver []Resolver

func (c CompositeResolver) GetValue(ctx *Context, base, property any) (any, bool, error) {
	for _, r := range c {
		v, ok, err := r.GetValue(ctx, base, property)
		if ok || err != nil {
			return v, ok, err
		}
	}

	return nil, false, nil
}

func (c CompositeResolver) SetValue(ctx *Context, base, property, value any) (bool, error) {
	for _, r := range c {
		ok, err := r.SetValue(ctx, base, property, value)
		if ok || err != nil {
			return ok, err
		}
	}

	return false, nil
}

func (c CompositeResolver) GetType(ctx *Context, base, property any) (reflect.Type, bool, error) {
	for _, r := range c {
		t, ok, err := r.GetType(ctx, base, property)
		if ok || err != nil {
			return t, ok, err
		}
	}

	return nil, false, nil
}

func (c CompositeResolver) IsReadOnly(ctx *Context, base, property any) (bool, bool, error) {
	for _, r := range c {
		ro, ok, err := r.IsReadOnly(ctx, base, property)
		if ok || err != nil {
			return ro, ok, err
		}
	}

	return false, false, nil
}

func (c CompositeResolver) Invoke(ctx *Context, base any, method string, args []any) (any, bool, error) {
	for _, r := range c {
		v, ok, err := r.Invoke(ctx, base, method, args)
		if ok || err != nil {
			return v, ok, err
		}
	}

	return nil, false, nil
}

// VariableResolver resolves top level identifiers bound with SetVariable.
type VariableResolver struct{ NopResolver }

func (VariableResolver) GetValue(ctx *Context, base, property any) (any, bool, error) {
	name, ok := property.(string)
	if base != nil || !ok {
		return nil, false, nil
	}

	v, found := ctx.Variable(name)

	return v, found, nil
}

func (VariableResolver) GetType(ctx *Context, base, property any) (reflect.Type, bool, error) {
	v, ok, _ := VariableResolver{}.GetValue(ctx, base, property)
	if !ok {
		return nil, false, nil
	}

	return reflect.TypeOf(v), true, nil
}

func (VariableResolver) IsReadOnly(ctx *Context, base, property any) (bool, bool, error) {
	_, ok, _ := VariableResolver{}.GetValue(ctx, base, property)

	return true, ok, nil
}

// MapResolver resolves keys of maps with string keys and of KeyValue values.
// Missing keys resolve to nil.
type MapResolver struct{ NopResolver }

func (MapResolver) GetValue(_ *Context, base, property any) (any, bool, error) {
	if base == nil {
		return nil, false, nil
	}

	if kv, ok := base.(KeyValue); ok {
		v, _ := kv.Get(ToString(property))

		return v, true, nil
	}

	m := reflect.ValueOf(base)
	if m.Kind() != reflect.Map || m.Type().Key().Kind() != reflect.String {
		return nil, false, nil
	}

	v := m.MapIndex(reflect.ValueOf(ToString(property)).Convert(m.Type().Key()))
	if !v.IsValid() {
		return nil, true, nil
	}

	return v.Interface(), true, nil
}

func (MapResolver) SetValue(_ *Context, base, property, value any) (bool, error) {
	if base == nil {
		return false, nil
	}

	if kv, ok := base.(KeyValue); ok {
		kv.Put(ToString(property), value)

		return true, nil
	}

	m := reflect.ValueOf(base)
	if m.Kind() != reflect.Map || m.Type().Key().Kind() != reflect.String {
		return false, nil
	}

	if m.IsNil() {
		return true, fmt.Errorf("%w: nil map", ErrPropertyNotWritable)
	}

	val, err := Coerce(value, m.Type().Elem())
	if err != nil {
		return true, err
	}

	m.SetMapIndex(reflect.ValueOf(ToString(property)).Convert(m.Type().Key()), val)

	return true, nil
}

func (r MapResolver) GetType(ctx *Context, base, property any) (reflect.Type, bool, error) {
	if base == nil {
		return nil, false, nil
	}

	if _, ok := base.(KeyValue); ok {
		v, _, _ := r.GetValue(ctx, base, property)

		return reflect.TypeOf(v), true, nil
	}

	m := reflect.ValueOf(base)
	if m.Kind() != reflect.Map || m.Type().Key().Kind() != reflect.String {
		return nil, false, nil
	}

	return m.Type().Elem(), true, nil
}

func (MapResolver) IsReadOnly(_ *Context, base, _ any) (bool, bool, error) {
	if base == nil {
		return false, false, nil
	}

	if _, ok := base.(KeyValue); ok {
		return false, true, nil
	}

	if reflect.ValueOf(base).Kind() == reflect.Map {
		return false, true, nil
	}

	return false, false, nil
}

func (MapResolver) Invoke(ctx *Context, base any, method string, args []any) (any, bool, error) {
	if base == nil {
		return nil, false, nil
	}

	var fn any

	if kv, ok := base.(KeyValue); ok {
		fn, _ = kv.Get(method)
	} else if m := reflect.ValueOf(base); m.Kind() == reflect.Map && m.Type().Key().Kind() == reflect.String {
		if v := m.MapIndex(reflect.ValueOf(method).Convert(m.Type().Key())); v.IsValid() {
			fn = v.Interface()
		}
	} else {
		return nil, false, nil
	}

	f := reflect.ValueOf(fn)
	if f.Kind() != reflect.Func {
		return nil, true, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}

	v, err := call(f, args)

	return v, true, err
}

// SliceResolver resolves integer indexes of slices and arrays. Reading past
// the end yields nil.
type SliceResolver struct{ NopResolver }

func sliceBase(base any) (reflect.Value, bool) {
	if base == nil {
		return reflect.Value{}, false
	}

	v := reflect.ValueOf(base)
	if v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Kind() == reflect.Array {
		v = v.Elem()
	}

	return v, v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

func (SliceResolver) GetValue(_ *Context, base, property any) (any, bool, error) {
	v, ok := sliceBase(base)
	if !ok {
		return nil, false, nil
	}

	i, err := ToInt(property)
	if err != nil {
		return nil, true, err
	}

	if i < 0 || i >= v.Len() {
		return nil, true, nil
	}

	return v.Index(i).Interface(), true, nil
}

func (SliceResolver) SetValue(_ *Context, base, property, value any) (bool, error) {
	v, ok := sliceBase(base)
	if !ok {
		return false, nil
	}

	i, err := ToInt(property)
	if err != nil {
		return true, err
	}

	if i < 0 || i >= v.Len() {
		return true, fmt.Errorf("%w: index %d out of range", ErrPropertyNotFound, i)
	}

	if !v.Index(i).CanSet() {
		return true, fmt.Errorf("%w: index %d", ErrPropertyNotWritable, i)
	}

	val, err := Coerce(value, v.Type().Elem())
	if err != nil {
		return true, err
	}

	v.Index(i).Set(val)

	return true, nil
}

func (SliceResolver) GetType(_ *Context, base, _ any) (reflect.Type, bool, error) {
	v, ok := sliceBase(base)
	if !ok {
		return nil, false, nil
	}

	return v.Type().Elem(), true, nil
}

func (SliceResolver) IsReadOnly(_ *Context, base, _ any) (bool, bool, error) {
	v, ok := sliceBase(base)
	if !ok {
		return false, false, nil
	}

	return v.Kind() == reflect.Array && !v.CanAddr(), true, nil
}

// StructResolver resolves exported fields, getter and setter methods of
// structs and struct pointers. A property "name" matches a field Name, a
// method Name or GetName, or IsName for booleans; writes go to SetName or
// the field.
type StructResolver struct{}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}

	return string(unicode.ToUpper(r)) + name[size:]
}

func structBase(base any) (reflect.Value, bool) {
	if base == nil {
		return reflect.Value{}, false
	}

	v := reflect.ValueOf(base)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, false
		}

		return v, v.Elem().Kind() == reflect.Struct
	}

	return v, v.Kind() == reflect.Struct
}

func getter(v reflect.Value, name string) (reflect.Value, bool) {
	for _, prefix := range []string{"", "Get", "Is"} {
		m := v.MethodByName(prefix + name)
		if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() >= 1 {
			return m, true
		}
	}

	return reflect.Value{}, false
}

func field(v reflect.Value, name string) (reflect.Value, bool) {
	s := reflect.Indirect(v)

	f := s.FieldByName(name)
	if !f.IsValid() {
		return reflect.Value{}, false
	}

	sf, _ := s.Type().FieldByName(name)
	if !sf.IsExported() {
		return reflect.Value{}, false
	}

	return f, true
}

func (StructResolver) GetValue(_ *Context, base, property any) (any, bool, error) {
	v, ok := structBase(base)
	if !ok {
		return nil, false, nil
	}

	name := exported(ToString(property))
	if m, ok := getter(v, name); ok {
		out, err := call(m, nil)

		return out, true, err
	}

	if f, ok := field(v, name); ok {
		return f.Interface(), true, nil
	}

	return nil, true, fmt.Errorf("%w: %s on %T", ErrPropertyNotFound, property, base)
}

func (StructResolver) SetValue(_ *Context, base, property, value any) (bool, error) {
	v, ok := structBase(base)
	if !ok {
		return false, nil
	}

	name := exported(ToString(property))
	if m := v.MethodByName("Set" + name); m.IsValid() && m.Type().NumIn() == 1 {
		arg, err := Coerce(value, m.Type().In(0))
		if err != nil {
			return true, err
		}

		out := m.Call([]reflect.Value{arg})
		if len(out) > 0 {
			if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
				return true, err
			}
		}

		return true, nil
	}

	f, ok := field(v, name)
	if !ok {
		return true, fmt.Errorf("%w: %s on %T", ErrPropertyNotFound, property, base)
	}

	if !f.CanSet() {
		return true, fmt.Errorf("%w: %s on %T", ErrPropertyNotWritable, property, base)
	}

	val, err := Coerce(value, f.Type())
	if err != nil {
		return true, err
	}

	f.Set(val)

	return true, nil
}

func (StructResolver) GetType(_ *Context, base, property any) (reflect.Type, bool, error) {
	v, ok := structBase(base)
	if !ok {
		return nil, false, nil
	}

	name := exported(ToString(property))
	if m := v.MethodByName("Set" + name); m.IsValid() && m.Type().NumIn() == 1 {
		return m.Type().In(0), true, nil
	}

	if f, ok := field(v, name); ok {
		return f.Type(), true, nil
	}

	if m, ok := getter(v, name); ok {
		return m.Type().Out(0), true, nil
	}

	return nil, true, fmt.Errorf("%w: %s on %T", ErrPropertyNotFound, property, base)
}

func (StructResolver) IsReadOnly(_ *Context, base, property any) (bool, bool, error) {
	v, ok := structBase(base)
	if !ok {
		return false, false, nil
	}

	name := exported(ToString(property))
	if m := v.MethodByName("Set" + name); m.IsValid() {
		return false, true, nil
	}

	if f, ok := field(v, name); ok {
		return !f.CanSet(), true, nil
	}

	if _, ok := getter(v, name); ok {
		return true, true, nil
	}

	return true, true, fmt.Errorf("%w: %s on %T", ErrPropertyNotFound, property, base)
}

func (StructResolver) Invoke(_ *Context, base any, method string, args []any) (any, bool, error) {
	if base == nil {
		return nil, false, nil
	}

	v := reflect.ValueOf(base)

	m := v.MethodByName(exported(method))
	if !m.IsValid() {
		if _, ok := structBase(base); !ok {
			return nil, false, nil
		}

		return nil, true, fmt.Errorf("%w: %s on %T", ErrMethodNotFound, method, base)
	}

	out, err := call(m, args)

	return out, true, err
}

// call invokes fn with args coerced to its parameter types. Variadic and
// context-free methods with fewer parameters than args receive a prefix of args.
func call(fn reflect.Value, args []any) (any, error) {
	t := fn.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic methods are not supported", ErrMethodNotFound)
	}

	if t.NumIn() > len(args) {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", ErrTypeMismatch, t.NumIn(), len(args))
	}

	in := make([]reflect.Value, t.NumIn())
	for i := range in {
		v, err := Coerce(args[i], t.In(i))
		if err != nil {
			return nil, err
		}

		in[i] = v
	}

	out := fn.Call(in)

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			err, _ := out[0].Interface().(error)

			return nil, err
		}

		return out[0].Interface(), nil
	default:
		err, _ := out[len(out)-1].Interface().(error)

		return out[0].Interface(), err
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// SubstitutingResolver decorates Inner so that a base identical to Original
// is replaced by Replacement. Every other call is delegated unchanged.
type SubstitutingResolver struct {
	Inner       Resolver
	Original    any
	Replacement any
}

func (s *SubstitutingResolver) swap(base any) any {
	if Identical(base, s.Original) {
		return s.Replacement
	}

	return base
}

func (s *SubstitutingResolver) GetValue(ctx *Context, base, property any) (any, bool, error) {
	return s.Inner.GetValue(ctx, s.swap(base), property)
}

func (s *SubstitutingResolver) SetValue(ctx *Context, base, property, value any) (bool, error) {
	return s.Inner.SetValue(ctx, s.swap(base), property, value)
}

func (s *SubstitutingResolver) GetType(ctx *Context, base, property any) (reflect.Type, bool, error) {
	return s.Inner.GetType(ctx, s.swap(base), property)
}

func (s *SubstitutingResolver) IsReadOnly(ctx *Context, base, property any) (bool, bool, error) {
	return s.Inner.IsReadOnly(ctx, s.swap(base), property)
}

func (s *SubstitutingResolver) Invoke(ctx *Context, base any, method string, args []any) (any, bool, error) {
	return s.Inner.Invoke(ctx, s.swap(base), method, args)
}

// Identical reports whether a and b are the same object: the same pointer,
// map or slice header, or equal comparable values.
func Identical(a, b any) bool {
	if a == nil || b == nil {
		return false
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}

	if va.Comparable() {
		return va.Equal(vb)
	}

	return false
}

// DefaultResolver returns the resolver chain for plain Go values.
func DefaultResolver(extra ...Resolver) CompositeResolver {
	chain := CompositeResolver{VariableResolver{}}
	chain = append(chain, extra...)

	return append(chain, MapResolver{}, SliceResolver{}, StructResolver{})
}
