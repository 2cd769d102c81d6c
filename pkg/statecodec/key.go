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

package statecodec

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key references view state kept on the server.
type Key struct {
	ViewID string

	hash    uint64
	counter int32
	raw     []byte
}

// NewCounterKey returns a key with a counter sequence.
func NewCounterKey(viewID string, n int32) Key {
	return Key{ViewID: viewID, hash: xxhash.Sum64String(viewID), counter: n}
}

// NewRandomKey returns a key with a byte sequence.
func NewRandomKey(viewID string, b []byte) Key {
	return Key{ViewID: viewID, hash: xxhash.Sum64String(viewID), raw: append([]byte(nil), b...)}
}

// Counter returns the counter sequence, or 0 for byte sequences.
func (k Key) Counter() int32 { return k.counter }

// Bytes returns the byte sequence, or nil for counter sequences.
func (k Key) Bytes() []byte { return k.raw }

// Equal compares view id, hash and sequence.
func (k Key) Equal(o Key) bool {
	return k.hash == o.hash && k.ViewID == o.ViewID && k.counter == o.counter && bytes.Equal(k.raw, o.raw)
}

// String is a stable map key: the view id hash followed by the sequence.
func (k Key) String() string {
	seq := strconv.FormatInt(int64(k.counter), 36)
	if k.raw != nil {
		seq = base64.RawURLEncoding.EncodeToString(k.raw)
	}

	return strconv.FormatUint(k.hash, 36) + "-" + seq
}

// CounterStore is the session storage a counter key factory needs. Lock
// must serialize access for all requests of one session.
type CounterStore interface {
	Lock(ctx context.Context) error
	Unlock()
	Attr(name string) (any, bool)
	SetAttr(name string, value any)
}

// KeyFactory generates and encodes server state keys.
type KeyFactory interface {
	Generate(ctx context.Context, store CounterStore, viewID string) (Key, error)
	Encode(k Key) string
	Decode(viewID, token string) (Key, error)
}

// CounterAttr is the session attribute holding the last generated counter.
const CounterAttr = "jakarta.faces.SequenceKey"

// CounterKeyFactory generates keys from a per-session counter that wraps
// from MaxInt32 back to 1. Keys are encoded in base 36.
type CounterKeyFactory struct{}

func (CounterKeyFactory) Generate(ctx context.Context, store CounterStore, viewID string) (Key, error) {
	if err := store.Lock(ctx); err != nil {
		return Key{}, fmt.Errorf("lock session for state key: %w", err)
	}
	defer store.Unlock()

	var last int32
	if v, ok := store.Attr(CounterAttr); ok {
		last, _ = v.(int32)
	}

	next := last + 1
	if last == math.MaxInt32 {
		next = 1
	}

	store.SetAttr(CounterAttr, next)

	return NewCounterKey(viewID, next), nil
}

func (CounterKeyFactory) Encode(k Key) string {
	return strconv.FormatInt(int64(k.counter), 36)
}

func (CounterKeyFactory) Decode(viewID, token string) (Key, error) {
	n, err := strconv.ParseInt(token, 36, 32)
	if err != nil || n <= 0 {
		return Key{}, &DecodeError{Reason: ReasonMalformed, Err: fmt.Errorf("state key %q", token)}
	}

	return NewCounterKey(viewID, int32(n)), nil
}

// RandomKeyFactory generates keys of random bytes. It needs no session lock.
type RandomKeyFactory struct {
	// Size is the number of random bytes, 16 if zero.
	Size int
}

func (f RandomKeyFactory) Generate(_ context.Context, _ CounterStore, viewID string) (Key, error) {
	size := f.Size
	if size <= 0 {
		size = 16
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return Key{}, fmt.Errorf("random state key: %w", err)
	}

	return NewRandomKey(viewID, b), nil
}

func (RandomKeyFactory) Encode(k Key) string {
	return base64.RawURLEncoding.EncodeToString(k.raw)
}

func (RandomKeyFactory) Decode(viewID, token string) (Key, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(b) == 0 {
		return Key{}, &DecodeError{Reason: ReasonEncoding, Err: fmt.Errorf("state key %q", token)}
	}

	return NewRandomKey(viewID, b), nil
}
