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
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

const separator = string(constants.SeparatorChar)

// ViewStateID is the id of the n-th view state field of root.
func ViewStateID(root *component.ViewRoot, n int) string {
	return root.ClientID() + separator + constants.ViewStateIDSuffix + separator + strconv.Itoa(n)
}

// ClientWindowID is the id of the n-th client window field of root.
func ClientWindowID(root *component.ViewRoot, n int) string {
	return root.ClientID() + separator + constants.ClientWindowIDSuffix + separator + strconv.Itoa(n)
}

// ResourceURL is the URL a named library resource is served under.
func ResourceURL(name, library string) string {
	u := constants.ResourcePrefix + strings.TrimPrefix(name, "/")
	if library != "" {
		u += "?" + url.Values{"ln": {library}}.Encode()
	}

	return u
}

func registerHTML(k *Kit) {
	k.Register("faces.Instructions", "faces.Instructions", RendererFunc(encodeInstructions))
	k.Register("jakarta.faces.Output", "jakarta.faces.Text", RendererFunc(encodeOutputText))
	k.Register("jakarta.faces.Input", "jakarta.faces.Text", RendererFunc(encodeInput("text")))
	k.Register("jakarta.faces.Input", "jakarta.faces.Hidden", RendererFunc(encodeInput("hidden")))
	k.Register("jakarta.faces.SelectBoolean", "jakarta.faces.Checkbox", RendererFunc(encodeCheckbox))
	k.Register("jakarta.faces.Command", "jakarta.faces.Button", RendererFunc(encodeButton))
	k.Register("jakarta.faces.Form", "jakarta.faces.Form", RendererFunc(encodeForm))
	k.Register("jakarta.faces.Panel", "jakarta.faces.Group", RendererFunc(encodePanelGroup))
	k.Register("jakarta.faces.Messages", "jakarta.faces.Messages", RendererFunc(encodeMessages))
	k.Register("jakarta.faces.Output", "jakarta.faces.resource.Script", RendererFunc(encodeScript))
	k.Register("jakarta.faces.Output", "jakarta.faces.resource.Stylesheet", RendererFunc(encodeStylesheet))
	k.Register("jakarta.faces.Output", "jakarta.faces.Head", RendererFunc(encodeHead))
	k.Register("jakarta.faces.Output", "jakarta.faces.Body", RendererFunc(encodeBody))
	k.Register("jakarta.faces.NamingContainer", "jakarta.faces.Composite", RendererFunc(encodeComposite))
}

// explicitID reports whether c has an id set by the page author.
func explicitID(c *component.Component) bool {
	return !strings.HasPrefix(c.ID(), constants.UniqueIDPrefix)
}

func writeCommon(e *Encoder, c *component.Component) {
	if explicitID(c) {
		e.W.WriteAttribute("id", c.ClientID())
	}

	e.W.WriteAttribute("class", e.attr(c, "styleClass"))
	e.W.WriteAttribute("style", e.attr(c, "style"))
}

func (e *Encoder) attr(c *component.Component, name string) string {
	return c.EvalString(e.Ctx, name)
}

// formatValue renders the value of a value holder: the submitted value of
// an invalid input, otherwise the converted value.
func (e *Encoder) formatValue(c *component.Component) string {
	if s, ok := c.SubmittedValue(); ok {
		return s
	}

	v, err := c.Value(e.Ctx)
	if err != nil {
		e.Ctx.QueueException(fmt.Errorf("value of %s: %w", c.ClientID(), err))

		return ""
	}

	if conv := c.Converter(); conv != nil && v != nil {
		s, err := conv.AsString(e.Ctx, c, v)
		if err != nil {
			e.Ctx.QueueException(fmt.Errorf("format value of %s: %w", c.ClientID(), err))

			return el.ToString(v)
		}

		return s
	}

	return el.ToString(v)
}

func encodeInstructions(e *Encoder, c *component.Component) error {
	text := e.attr(c, "text")

	if c.EvalBool(e.Ctx, "escape", false) {
		e.W.WriteText(text)
	} else {
		e.W.WriteRaw(text)
	}

	return nil
}

func encodeOutputText(e *Encoder, c *component.Component) error {
	text := e.formatValue(c)
	span := explicitID(c) || e.attr(c, "styleClass") != "" || e.attr(c, "style") != ""

	if span {
		e.W.StartElement("span")
		writeCommon(e, c)
	}

	if c.EvalBool(e.Ctx, "escape", true) {
		e.W.WriteText(text)
	} else {
		e.W.WriteRaw(text)
	}

	if span {
		e.W.EndElement("span")
	}

	return nil
}

func encodeInput(inputType string) RendererFunc {
	return func(e *Encoder, c *component.Component) error {
		e.W.StartElement("input")
		e.W.WriteAttribute("type", inputType)
		e.W.WriteAttribute("id", c.ClientID())
		e.W.WriteAttribute("name", c.ClientID())
		e.W.WriteAttribute("value", e.formatValue(c))

		if inputType != "hidden" {
			e.W.WriteAttribute("class", e.attr(c, "styleClass"))
			e.W.WriteAttribute("size", e.attr(c, "size"))
			e.W.WriteAttribute("maxlength", e.attr(c, "maxlength"))
			e.W.WriteBoolAttribute("disabled", c.EvalBool(e.Ctx, "disabled", false))
			e.W.WriteBoolAttribute("readonly", c.EvalBool(e.Ctx, "readonly", false))
		}

		e.W.EndElement("input")

		return nil
	}
}

func encodeCheckbox(e *Encoder, c *component.Component) error {
	checked := false

	if s, ok := c.SubmittedValue(); ok {
		checked = s == "true" || s == "on"
	} else if v, err := c.Value(e.Ctx); err != nil {
		e.Ctx.QueueException(fmt.Errorf("value of %s: %w", c.ClientID(), err))
	} else if v != nil {
		checked, _ = el.ToBool(v)
	}

	e.W.StartElement("input")
	e.W.WriteAttribute("type", "checkbox")
	e.W.WriteAttribute("id", c.ClientID())
	e.W.WriteAttribute("name", c.ClientID())
	e.W.WriteAttribute("value", "true")
	e.W.WriteBoolAttribute("checked", checked)
	e.W.WriteBoolAttribute("disabled", c.EvalBool(e.Ctx, "disabled", false))
	e.W.EndElement("input")

	return nil
}

func encodeButton(e *Encoder, c *component.Component) error {
	buttonType := e.attr(c, "type")
	if buttonType == "" {
		buttonType = "submit"
	}

	e.W.StartElement("input")
	e.W.WriteAttribute("type", buttonType)
	e.W.WriteAttribute("id", c.ClientID())
	e.W.WriteAttribute("name", c.ClientID())
	e.W.WriteAttribute("value", e.attr(c, "value"))
	e.W.WriteAttribute("class", e.attr(c, "styleClass"))
	e.W.WriteBoolAttribute("disabled", c.EvalBool(e.Ctx, "disabled", false))
	e.W.EndElement("input")

	return nil
}

func encodeForm(e *Encoder, c *component.Component) error {
	root := e.Ctx.ViewRoot()
	n := e.forms
	e.forms++

	id := c.ClientID()

	e.W.StartElement("form")
	e.W.WriteAttribute("id", id)
	e.W.WriteAttribute("name", id)
	e.W.WriteAttribute("method", "post")

	if root != nil {
		e.W.WriteAttribute("action", root.ViewID())
	}

	e.W.WriteAttribute("enctype", "application/x-www-form-urlencoded")
	e.W.WriteAttribute("class", e.attr(c, "styleClass"))

	e.W.StartElement("input")
	e.W.WriteAttribute("type", "hidden")
	e.W.WriteAttribute("name", id)
	e.W.WriteAttribute("value", id)
	e.W.EndElement("input")

	if err := e.Children(c); err != nil {
		return err
	}

	if err := e.Resources(constants.TargetForm); err != nil {
		return err
	}

	if root != nil {
		e.writeStateFields(root, n)
	}

	e.W.EndElement("form")

	return nil
}

// writeStateFields writes the hidden view state and client window fields.
func (e *Encoder) writeStateFields(root *component.ViewRoot, n int) {
	e.W.StartElement("input")
	e.W.WriteAttribute("type", "hidden")
	e.W.WriteAttribute("name", constants.ViewStateParam)
	e.W.WriteAttribute("id", ViewStateID(root, n))
	e.W.WriteAttribute("value", e.Ctx.ViewState())
	e.W.WriteAttribute("autocomplete", "off")
	e.W.EndElement("input")

	if w := e.Ctx.WindowID(); w != "" {
		e.W.StartElement("input")
		e.W.WriteAttribute("type", "hidden")
		e.W.WriteAttribute("name", constants.ClientWindowParam)
		e.W.WriteAttribute("id", ClientWindowID(root, n))
		e.W.WriteAttribute("value", w)
		e.W.WriteAttribute("autocomplete", "off")
		e.W.EndElement("input")
	}
}

func encodePanelGroup(e *Encoder, c *component.Component) error {
	element := "span"
	if e.attr(c, "layout") == "block" {
		element = "div"
	}

	wrap := explicitID(c) || e.attr(c, "styleClass") != "" || e.attr(c, "style") != ""
	if wrap {
		e.W.StartElement(element)
		writeCommon(e, c)
	}

	if err := e.Children(c); err != nil {
		return err
	}

	if wrap {
		e.W.EndElement(element)
	}

	return nil
}

func encodeMessages(e *Encoder, c *component.Component) error {
	globalOnly := c.EvalBool(e.Ctx, "globalOnly", false)

	e.W.StartElement("ul")
	writeCommon(e, c)

	for _, id := range e.Ctx.MessageClientIDs() {
		if globalOnly && id != "" {
			continue
		}

		for _, m := range e.Ctx.Messages(id) {
			e.W.StartElement("li")
			e.W.WriteAttribute("class", m.Severity.String())
			e.W.WriteText(m.Summary)

			if m.Detail != "" && m.Detail != m.Summary {
				e.W.WriteText(" " + m.Detail)
			}

			e.W.EndElement("li")
		}
	}

	e.W.EndElement("ul")

	return nil
}

func encodeScript(e *Encoder, c *component.Component) error {
	e.W.StartElement("script")

	if name := e.attr(c, "name"); name != "" {
		e.W.WriteAttribute("src", ResourceURL(name, e.attr(c, "library")))
	}

	if explicitID(c) {
		e.W.WriteAttribute("id", c.ClientID())
	}

	if err := e.Children(c); err != nil {
		return err
	}

	e.W.EndElement("script")

	return nil
}

func encodeStylesheet(e *Encoder, c *component.Component) error {
	e.W.StartElement("link")
	e.W.WriteAttribute("rel", "stylesheet")
	e.W.WriteAttribute("href", ResourceURL(e.attr(c, "name"), e.attr(c, "library")))
	e.W.EndElement("link")

	return nil
}

func encodeHead(e *Encoder, c *component.Component) error {
	e.W.StartElement("head")

	if err := e.Children(c); err != nil {
		return err
	}

	if err := e.Resources(constants.TargetHead); err != nil {
		return err
	}

	e.W.EndElement("head")

	return nil
}

func encodeBody(e *Encoder, c *component.Component) error {
	e.W.StartElement("body")
	writeCommon(e, c)

	if err := e.Children(c); err != nil {
		return err
	}

	if err := e.Resources(constants.TargetBody); err != nil {
		return err
	}

	e.W.EndElement("body")

	return nil
}

func encodeComposite(e *Encoder, c *component.Component) error {
	return e.Children(c)
}
