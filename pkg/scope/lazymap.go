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

// Package scope keeps the view, client window, flow and flash scopes that
// outlive a single request but not the session.
package scope

import (
	"sort"
	"sync"
)

// LazyMap is a synchronized attribute map whose backing storage is only
// allocated by the first write.
type LazyMap struct {
	mu sync.RWMutex
	m  map[string]any
}

// Created reports whether a write has allocated the backing map.
func (l *LazyMap) Created() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.m != nil
}

func (l *LazyMap) Get(name string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, ok := l.m[name]

	return v, ok
}

// Put stores value under name and returns the previous value.
func (l *LazyMap) Put(name string, value any) any {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.m == nil {
		l.m = make(map[string]any)
	}

	prev := l.m[name]
	l.m[name] = value

	return prev
}

func (l *LazyMap) Remove(name string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.m[name]
	if ok {
		delete(l.m, name)
	}

	return v, ok
}

func (l *LazyMap) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.m)
}

// Keys returns the names in sorted order.
func (l *LazyMap) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.m))
	for k := range l.m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Range calls fn on a snapshot of the entries in name order until fn
// returns false. fn may modify the map.
func (l *LazyMap) Range(fn func(name string, value any) bool) {
	l.mu.RLock()
	snapshot := make(map[string]any, len(l.m))
	for k, v := range l.m {
		snapshot[k] = v
	}
	l.mu.RUnlock()

	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if !fn(k, snapshot[k]) {
			return
		}
	}
}

// Clear empties the map and returns what it held.
func (l *LazyMap) Clear() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	old := l.m
	l.m = nil

	return old
}
