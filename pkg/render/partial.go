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
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// PartialWriter writes a partial-response document for ajax requests.
type PartialWriter struct {
	w       io.Writer
	err     error
	changes bool
}

func NewPartialWriter(w io.Writer) *PartialWriter {
	return &PartialWriter{w: w}
}

func (p *PartialWriter) write(s string) {
	if p.err != nil {
		return
	}

	_, p.err = io.WriteString(p.w, s)
}

// StartDocument writes the xml header and the partial-response element of
// the view root id.
func (p *PartialWriter) StartDocument(rootID string) {
	p.write(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	p.write(`<partial-response id="` + html.EscapeString(rootID) + `">`)
}

func (p *PartialWriter) startChanges() {
	if !p.changes {
		p.changes = true
		p.write("<changes>")
	}
}

func (p *PartialWriter) endChanges() {
	if p.changes {
		p.changes = false
		p.write("</changes>")
	}
}

// Update writes an update of id whose content is rendered by fn.
func (p *PartialWriter) Update(id string, fn func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}

	p.startChanges()
	p.write(`<update id="` + html.EscapeString(id) + `">`)
	p.writeCDATA(buf.String())
	p.write("</update>")

	return p.err
}

// Eval queues a script for the client to evaluate.
func (p *PartialWriter) Eval(script string) {
	p.startChanges()
	p.write("<eval>")
	p.writeCDATA(script)
	p.write("</eval>")
}

// Redirect tells the client to navigate to url.
func (p *PartialWriter) Redirect(url string) {
	p.endChanges()
	p.write(`<redirect url="` + html.EscapeString(url) + `"/>`)
}

// Error reports a failed request.
func (p *PartialWriter) Error(name, message string) {
	p.endChanges()
	p.write("<error><error-name>" + html.EscapeString(name) + "</error-name><error-message>")
	p.writeCDATA(message)
	p.write("</error-message></error>")
}

func (p *PartialWriter) EndDocument() error {
	p.endChanges()
	p.write("</partial-response>")

	return p.err
}

func (p *PartialWriter) Err() error { return p.err }

// writeCDATA splits nested section terminators so content cannot end the
// section early.
func (p *PartialWriter) writeCDATA(s string) {
	p.write("<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>")
}
