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
	"fmt"
	"sync"
)

// Capability flags are resolved once when a component is created.
type Capability uint16

const (
	CapNamingContainer Capability = 1 << iota
	CapUniqueIDVendor
	CapValueHolder
	CapEditableValueHolder
	CapActionSource
	CapForm
	CapViewRoot
	CapComposite
	CapResourceContainer
)

// Descriptor registers a component type.
type Descriptor struct {
	Type         string
	Family       string
	RendererType string
	Caps         Capability
}

// Component types known to the framework.
const (
	TypeViewRoot          = "jakarta.faces.ViewRoot"
	TypeInstructions      = "faces.Instructions"
	TypeOutputText        = "jakarta.faces.HtmlOutputText"
	TypeForm              = "jakarta.faces.HtmlForm"
	TypeInputText         = "jakarta.faces.HtmlInputText"
	TypeInputHidden       = "jakarta.faces.HtmlInputHidden"
	TypeSelectBoolean     = "jakarta.faces.HtmlSelectBooleanCheckbox"
	TypeCommandButton     = "jakarta.faces.HtmlCommandButton"
	TypePanelGroup        = "jakarta.faces.HtmlPanelGroup"
	TypeMessages          = "jakarta.faces.HtmlMessages"
	TypeOutputScript      = "jakarta.faces.resource.Script"
	TypeOutputStylesheet  = "jakarta.faces.resource.Stylesheet"
	TypeHead              = "jakarta.faces.OutputHead"
	TypeBody              = "jakarta.faces.OutputBody"
	TypeNamingContainer   = "jakarta.faces.NamingContainer"
	TypeComposite         = "jakarta.faces.NamingContainer.Composite"
	TypeResourceContainer = "jakarta.faces.ComponentResourceContainer"
	TypePanel             = "jakarta.faces.Panel"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Descriptor{}
)

func init() {
	for _, d := range []Descriptor{
		{Type: TypeViewRoot, Family: "jakarta.faces.ViewRoot", Caps: CapNamingContainer | CapUniqueIDVendor | CapViewRoot},
		{Type: TypeInstructions, Family: "faces.Instructions", RendererType: "faces.Instructions"},
		{Type: TypeOutputText, Family: "jakarta.faces.Output", RendererType: "jakarta.faces.Text", Caps: CapValueHolder},
		{Type: TypeForm, Family: "jakarta.faces.Form", RendererType: "jakarta.faces.Form", Caps: CapNamingContainer | CapUniqueIDVendor | CapForm},
		{Type: TypeInputText, Family: "jakarta.faces.Input", RendererType: "jakarta.faces.Text", Caps: CapValueHolder | CapEditableValueHolder},
		{Type: TypeInputHidden, Family: "jakarta.faces.Input", RendererType: "jakarta.faces.Hidden", Caps: CapValueHolder | CapEditableValueHolder},
		{Type: TypeSelectBoolean, Family: "jakarta.faces.SelectBoolean", RendererType: "jakarta.faces.Checkbox", Caps: CapValueHolder | CapEditableValueHolder},
		{Type: TypeCommandButton, Family: "jakarta.faces.Command", RendererType: "jakarta.faces.Button", Caps: CapActionSource},
		{Type: TypePanelGroup, Family: "jakarta.faces.Panel", RendererType: "jakarta.faces.Group"},
		{Type: TypeMessages, Family: "jakarta.faces.Messages", RendererType: "jakarta.faces.Messages"},
		{Type: TypeOutputScript, Family: "jakarta.faces.Output", RendererType: "jakarta.faces.resource.Script"},
		{Type: TypeOutputStylesheet, Family: "jakarta.faces.Output", RendererType: "jakarta.faces.resource.Stylesheet"},
		{Type: TypeHead, Family: "jakarta.faces.Output", RendererType: "jakarta.faces.Head"},
		{Type: TypeBody, Family: "jakarta.faces.Output", RendererType: "jakarta.faces.Body"},
		{Type: TypeNamingContainer, Family: "jakarta.faces.NamingContainer", Caps: CapNamingContainer},
		{Type: TypeComposite, Family: "jakarta.faces.NamingContainer", RendererType: "jakarta.faces.Composite", Caps: CapNamingContainer | CapComposite},
		{Type: TypeResourceContainer, Family: "jakarta.faces.Panel", Caps: CapResourceContainer},
		{Type: TypePanel, Family: "jakarta.faces.Panel"},
	} {
		Register(d)
	}
}

// Register adds or replaces a component type.
func Register(d Descriptor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[d.Type] = d
}

// Lookup returns the descriptor of a registered type.
func Lookup(componentType string) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, ok := registry[componentType]

	return d, ok
}

// NewOf creates a component of a registered type.
func NewOf(componentType string) (*Component, error) {
	d, ok := Lookup(componentType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, componentType)
	}

	return newComponent(d), nil
}

// MustNew is NewOf for types registered by this package.
func MustNew(componentType string) *Component {
	c, err := NewOf(componentType)
	if err != nil {
		panic(err)
	}

	return c
}
