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

// Package viewstate stores saved views on the server, keyed by session,
// client window and state key.
package viewstate

import (
	"context"

	"github.com/united-manufacturing-hub/faces-core/pkg/session"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
)

// Entry is a saved view kept on the server.
type Entry struct {
	Key  statecodec.Key
	Data []byte
	// FlashToken is released when the entry is evicted.
	FlashToken string
}

// Store keeps saved views. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, sess *session.Session, window string, e Entry) error
	Get(ctx context.Context, sess *session.Session, window string, key statecodec.Key) (Entry, bool, error)
	// DropWindow forgets every entry of a client window.
	DropWindow(ctx context.Context, sess *session.Session, window string) error
}

// EvictionFunc is called for every entry evicted to make room for another.
type EvictionFunc func(sess *session.Session, window string, e Entry)
