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
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/united-manufacturing-hub/faces-core/pkg/safejson"
)

// ErrNotSerializable is returned when state contains a value that cannot be saved.
var ErrNotSerializable = errors.New("value is not serializable")

// Value kinds.
const (
	KindNull    = "null"
	KindString  = "string"
	KindBool    = "bool"
	KindInt     = "int"
	KindInt64   = "int64"
	KindUint64  = "uint64"
	KindFloat64 = "float64"
	KindStrings = "strings"
	KindTime    = "time"
)

// Value is an attribute or local value in saved state. The kind keeps the
// Go type across the JSON round trip.
type Value struct {
	Kind string              `json:"k"`
	Raw  safejson.RawMessage `json:"v,omitempty"`
}

// EncodeValue captures v. Supported are nil, strings, booleans, numbers,
// string slices and times.
func EncodeValue(v any) (Value, error) {
	var kind string

	switch x := v.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case string:
		kind = KindString
	case bool:
		kind = KindBool
	case int:
		kind = KindInt
	case int8, int16, int32, int64:
		kind, v = KindInt64, reflect.ValueOf(x).Int()
	case uint, uint8, uint16, uint32, uint64:
		kind, v = KindUint64, reflect.ValueOf(x).Uint()
	case float32:
		kind, v = KindFloat64, float64(x)
	case float64:
		kind = KindFloat64
	case []string:
		kind = KindStrings
	case time.Time:
		kind = KindTime
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrNotSerializable, v)
	}

	raw, err := safejson.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("encode %s value: %w", kind, err)
	}

	return Value{Kind: kind, Raw: raw}, nil
}

// Decode returns the captured value with its original kind.
func (v Value) Decode() (any, error) {
	var (
		out any
		err error
	)

	switch v.Kind {
	case KindNull, "":
		return nil, nil
	case KindString:
		out, err = decodeAs[string](v.Raw)
	case KindBool:
		out, err = decodeAs[bool](v.Raw)
	case KindInt:
		out, err = decodeAs[int](v.Raw)
	case KindInt64:
		out, err = decodeAs[int64](v.Raw)
	case KindUint64:
		out, err = decodeAs[uint64](v.Raw)
	case KindFloat64:
		out, err = decodeAs[float64](v.Raw)
	case KindStrings:
		out, err = decodeAs[[]string](v.Raw)
	case KindTime:
		out, err = decodeAs[time.Time](v.Raw)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrNotSerializable, v.Kind)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", v.Kind, err)
	}

	return out, nil
}

func decodeAs[T any](raw []byte) (T, error) {
	var out T
	err := safejson.Unmarshal(raw, &out)

	return out, err
}
