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

package render

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

// Writer writes markup. Start tags stay open for attributes until content
// or the end tag follows. The first write error is kept and later writes
// are dropped.
type Writer struct {
	w    io.Writer
	err  error
	open bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(s string) {
	if w.err != nil {
		return
	}

	_, w.err = io.WriteString(w.w, s)
}

func (w *Writer) closeStart() {
	if w.open {
		w.open = false
		w.write(">")
	}
}

func (w *Writer) StartElement(name string) {
	w.closeStart()
	w.write("<" + name)
	w.open = true
}

// WriteAttribute writes name="value". Nil values and empty strings are skipped.
func (w *Writer) WriteAttribute(name string, value any) {
	if value == nil {
		return
	}

	s := el.ToString(value)
	if s == "" {
		return
	}

	w.write(" " + name + `="` + html.EscapeString(s) + `"`)
}

// WriteBoolAttribute writes a boolean attribute like checked when set.
func (w *Writer) WriteBoolAttribute(name string, set bool) {
	if set {
		w.write(" " + name + `="` + name + `"`)
	}
}

// EndElement closes name. Void elements like input are self-closed, other
// empty elements get a closing tag.
func (w *Writer) EndElement(name string) {
	if w.open && voidElement(name) {
		w.open = false
		w.write("/>")

		return
	}

	w.closeStart()
	w.write("</" + name + ">")
}

// WriteText writes escaped text.
func (w *Writer) WriteText(s string) {
	w.closeStart()
	w.write(html.EscapeString(s))
}

// WriteRaw writes s unescaped.
func (w *Writer) WriteRaw(s string) {
	w.closeStart()
	w.write(s)
}

func (w *Writer) Err() error { return w.err }

func voidElement(name string) bool {
	switch strings.ToLower(name) {
	case "input", "link", "meta", "br", "hr", "img":
		return true
	}

	return false
}
