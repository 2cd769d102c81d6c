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

package main

import (
	"embed"
	"strings"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
)

// bundle holds the guestbook served when no template root is configured.
//
//go:embed templates resources
var bundle embed.FS

const maxGuestbookEntries = 50

type Entry struct {
	Name    string
	Message string
	Signed  time.Time
}

// Guestbook is shared by all visitors.
type Guestbook struct {
	mu      sync.RWMutex
	entries []Entry
}

// Entries returns the newest entries first.
func (g *Guestbook) Entries() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Entry, len(g.entries))
	for i, e := range g.entries {
		out[len(g.entries)-1-i] = e
	}

	return out
}

func (g *Guestbook) add(e Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries = append(g.entries, e)
	if len(g.entries) > maxGuestbookEntries {
		g.entries = g.entries[len(g.entries)-maxGuestbookEntries:]
	}
}

// Draft is the entry being written in one view.
type Draft struct {
	Name    string
	Message string

	book *Guestbook
}

func (d *Draft) Sign() string {
	d.book.add(Entry{
		Name:    strings.TrimSpace(d.Name),
		Message: strings.TrimSpace(d.Message),
		Signed:  time.Now(),
	})

	return "index?faces-redirect=true"
}

func registerGuestbook(app *faces.Application) error {
	book := &Guestbook{}

	if err := app.Beans().Register(&faces.Bean{
		Name:  "guestbook",
		Scope: faces.ApplicationScope,
		New:   func(*faces.Context) (any, error) { return book, nil },
	}); err != nil {
		return err
	}

	return app.Beans().Register(&faces.Bean{
		Name:  "draft",
		Scope: faces.ViewScope,
		New:   func(*faces.Context) (any, error) { return &Draft{book: book}, nil },
	})
}
