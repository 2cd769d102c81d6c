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

package faces

import (
	"strings"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
)

// PartialViewContext describes the execute and render subsets of an ajax
// request. A nil id list means the whole view.
type PartialViewContext struct {
	ajax    bool
	source  string
	execute string
	render  string
	reset   bool

	renderAll bool
}

// NewPartialViewContext reads the partial request parameters of ext.
func NewPartialViewContext(ext *ExternalContext) *PartialViewContext {
	p := &PartialViewContext{}

	if ext.Header(constants.FacesRequestHeader) == constants.FacesRequestAjax {
		p.ajax = true
	}

	if v, _ := ext.Param(constants.PartialAjaxParam); v == "true" {
		p.ajax = true
	}

	p.source, _ = ext.Param(constants.SourceParam)
	p.execute, _ = ext.Param(constants.PartialExecuteParam)
	p.render, _ = ext.Param(constants.PartialRenderParam)

	if v, _ := ext.Param(constants.PartialResetParam); v == "true" {
		p.reset = true
	}

	return p
}

// IsAjaxRequest reports whether the client expects a partial response.
func (p *PartialViewContext) IsAjaxRequest() bool { return p.ajax }

// IsPartialRequest reports whether only parts of the view are processed.
func (p *PartialViewContext) IsPartialRequest() bool { return p.ajax }

// IsExecuteAll reports whether the execute list is @all.
func (p *PartialViewContext) IsExecuteAll() bool {
	return !p.ajax || hasKeyword(p.execute, constants.KeywordAll)
}

// IsRenderAll reports whether the whole view is rendered.
func (p *PartialViewContext) IsRenderAll() bool {
	return !p.ajax || p.renderAll || hasKeyword(p.render, constants.KeywordAll)
}

// SetRenderAll forces a full render, for example after navigation.
func (p *PartialViewContext) SetRenderAll(all bool) { p.renderAll = all }

// ResetValues reports whether rendered inputs are reset before rendering.
func (p *PartialViewContext) ResetValues() bool { return p.reset }

// Source returns the client id of the component that sent the request.
func (p *PartialViewContext) Source() string { return p.source }

// ExecuteIDs resolves the execute list against root. An empty list means
// @this.
func (p *PartialViewContext) ExecuteIDs(root *component.ViewRoot) []string {
	if p.IsExecuteAll() {
		return nil
	}

	list := p.execute
	if strings.TrimSpace(list) == "" {
		list = constants.KeywordThis
	}

	return p.resolve(root, list)
}

// RenderIDs resolves the render list against root. An empty list means @none.
func (p *PartialViewContext) RenderIDs(root *component.ViewRoot) []string {
	if p.IsRenderAll() {
		return nil
	}

	return p.resolve(root, p.render)
}

func hasKeyword(list, keyword string) bool {
	for _, f := range strings.Fields(list) {
		if f == keyword {
			return true
		}
	}

	return false
}

func (p *PartialViewContext) resolve(root *component.ViewRoot, list string) []string {
	ids := []string{}
	seen := map[string]bool{}

	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, f := range strings.Fields(list) {
		switch f {
		case constants.KeywordNone:
		case constants.KeywordThis:
			add(p.source)
		case constants.KeywordForm:
			add(formOf(root, p.source))
		default:
			add(strings.TrimPrefix(f, string(constants.SeparatorChar)))
		}
	}

	return ids
}

// formOf returns the client id of the form enclosing clientID.
func formOf(root *component.ViewRoot, clientID string) string {
	c := root.FindByClientID(clientID)
	for ; c != nil; c = c.Parent() {
		if c.Has(component.CapForm) {
			return c.ClientID()
		}
	}

	return ""
}
