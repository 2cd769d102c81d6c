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
	"strconv"
	"strings"
)

// ToString converts v the way text output does: nil becomes "".
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	}

	return fmt.Sprint(v)
}

// ToBool treats nil and "" as false and parses strings.
func ToBool(v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case string:
		if b == "" {
			return false, nil
		}

		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("%w: cannot convert %q to bool", ErrTypeMismatch, b)
		}

		return parsed, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), nil
	}

	return false, fmt.Errorf("%w: cannot convert %T to bool", ErrTypeMismatch, v)
}

// ToInt converts integral numbers and numeric strings.
func ToInt(v any) (int, error) {
	f, isInt, err := toNumber(v)
	if err != nil {
		return 0, err
	}

	if !isInt && f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrTypeMismatch, v)
	}

	return int(f), nil
}

func toNumber(v any) (f float64, isInt bool, err error) {
	if v == nil {
		return 0, true, nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), false, nil
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		if s == "" {
			return 0, true, nil
		}

		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return float64(i), true, nil
		}

		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: cannot convert %q to a number", ErrTypeMismatch, s)
		}

		return parsed, false, nil
	}

	return 0, false, fmt.Errorf("%w: cannot convert %T to a number", ErrTypeMismatch, v)
}

// IsEmpty implements the empty operator: nil, "", and empty collections.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

// Equal compares with numeric and string coercion: 1 == "1" and 2 == 2.0.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	fa, _, errA := toNumber(a)
	fb, _, errB := toNumber(b)

	if errA == nil && errB == nil && isNumeric(a) || errA == nil && errB == nil && isNumeric(b) {
		return fa == fb
	}

	if ba, ok := a.(bool); ok {
		bb, err := ToBool(b)

		return err == nil && ba == bb
	}

	if bb, ok := b.(bool); ok {
		ba, err := ToBool(a)

		return err == nil && ba == bb
	}

	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() && reflect.TypeOf(a) == reflect.TypeOf(b) {
		return a == b
	}

	return ToString(a) == ToString(b)
}

func isNumeric(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}

	return false
}

// compare orders numbers numerically and everything else as strings.
func compare(a, b any) (int, error) {
	if isNumeric(a) || isNumeric(b) {
		fa, _, err := toNumber(a)
		if err != nil {
			return 0, err
		}

		fb, _, err := toNumber(b)
		if err != nil {
			return 0, err
		}

		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}

		return 0, nil
	}

	return strings.Compare(ToString(a), ToString(b)), nil
}

// Coerce converts value to t, following the usual expression coercion rules:
// nil becomes the zero value, strings parse into numbers and booleans, and
// numbers convert between kinds.
func Coerce(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(ToString(value)).Convert(t), nil
	case reflect.Bool:
		b, err := ToBool(value)
		if err != nil {
			return reflect.Value{}, err
		}

		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := ToInt(value)
		if err != nil {
			return reflect.Value{}, err
		}

		out := reflect.New(t).Elem()
		if out.OverflowInt(int64(i)) {
			return reflect.Value{}, fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, i, t)
		}

		out.SetInt(int64(i))

		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := ToInt(value)
		if err != nil {
			return reflect.Value{}, err
		}

		if i < 0 {
			return reflect.Value{}, fmt.Errorf("%w: %d is negative", ErrTypeMismatch, i)
		}

		out := reflect.New(t).Elem()
		out.SetUint(uint64(i))

		return out, nil
	case reflect.Float32, reflect.Float64:
		f, _, err := toNumber(value)
		if err != nil {
			return reflect.Value{}, err
		}

		out := reflect.New(t).Elem()
		out.SetFloat(f)

		return out, nil
	case reflect.Interface:
		if v.Type().Implements(t) {
			out := reflect.New(t).Elem()
			out.Set(v)

			return out, nil
		}
	}

	if v.Type().ConvertibleTo(t) {
		return v.Convert(t), nil
	}

	return reflect.Value{}, fmt.Errorf("%w: cannot convert %T to %s", ErrTypeMismatch, value, t)
}
