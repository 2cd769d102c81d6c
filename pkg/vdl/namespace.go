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

package vdl

import (
	"strings"
	"sync"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
)

// Canonical tag library namespaces.
const (
	NamespaceHTML      = "jakarta.faces.html"
	NamespaceCore      = "jakarta.faces.core"
	NamespaceFacelets  = "jakarta.faces.facelets"
	NamespaceJSTL      = "jakarta.tags.core"
	NamespaceComposite = "jakarta.faces.composite"

	// compositeLibraryPrefix followed by a library name declares a
	// library of composite components.
	compositeLibraryPrefix = NamespaceComposite + "/"
	legacyCompositePrefix  = "http://xmlns.jcp.org/jsf/composite/"
	legacyCompositePrefix2 = "http://java.sun.com/jsf/composite/"
)

var namespaceAliases = map[string]string{
	"http://xmlns.jcp.org/jsf/html":      NamespaceHTML,
	"http://java.sun.com/jsf/html":       NamespaceHTML,
	"http://xmlns.jcp.org/jsf/core":      NamespaceCore,
	"http://java.sun.com/jsf/core":       NamespaceCore,
	"http://xmlns.jcp.org/jsf/facelets":  NamespaceFacelets,
	"http://java.sun.com/jsf/facelets":   NamespaceFacelets,
	"http://xmlns.jcp.org/jsp/jstl/core": NamespaceJSTL,
	"http://java.sun.com/jsp/jstl/core":  NamespaceJSTL,
	"http://xmlns.jcp.org/jsf/composite": NamespaceComposite,
	"http://java.sun.com/jsf/composite":  NamespaceComposite,
	NamespaceHTML:                        NamespaceHTML,
	NamespaceCore:                        NamespaceCore,
	NamespaceFacelets:                    NamespaceFacelets,
	NamespaceJSTL:                        NamespaceJSTL,
	NamespaceComposite:                   NamespaceComposite,
}

// canonicalNamespace maps legacy namespace URIs to the jakarta ones.
// Unknown URIs are returned unchanged.
func canonicalNamespace(uri string) string {
	if ns, ok := namespaceAliases[uri]; ok {
		return ns
	}

	for _, prefix := range []string{legacyCompositePrefix, legacyCompositePrefix2} {
		if strings.HasPrefix(uri, prefix) {
			return compositeLibraryPrefix + strings.TrimPrefix(uri, prefix)
		}
	}

	return uri
}

// compositeLibrary returns the library name of a composite library namespace.
func compositeLibrary(ns string) (string, bool) {
	if !strings.HasPrefix(ns, compositeLibraryPrefix) {
		return "", false
	}

	lib := strings.TrimPrefix(ns, compositeLibraryPrefix)

	return lib, lib != ""
}

type tagKey struct{ ns, tag string }

var (
	tagsMu        sync.RWMutex
	componentTags = map[tagKey]string{
		{NamespaceHTML, "head"}:                  component.TypeHead,
		{NamespaceHTML, "body"}:                  component.TypeBody,
		{NamespaceHTML, "form"}:                  component.TypeForm,
		{NamespaceHTML, "inputtext"}:             component.TypeInputText,
		{NamespaceHTML, "inputhidden"}:           component.TypeInputHidden,
		{NamespaceHTML, "selectbooleancheckbox"}: component.TypeSelectBoolean,
		{NamespaceHTML, "commandbutton"}:         component.TypeCommandButton,
		{NamespaceHTML, "outputtext"}:            component.TypeOutputText,
		{NamespaceHTML, "panelgroup"}:            component.TypePanelGroup,
		{NamespaceHTML, "messages"}:              component.TypeMessages,
		{NamespaceCore, "validatewholebean"}:     component.TypeValidateWholeBean,
	}
)

// RegisterComponentTag maps a tag of a namespace to a component type.
func RegisterComponentTag(namespace, tag, componentType string) {
	tagsMu.Lock()
	defer tagsMu.Unlock()

	componentTags[tagKey{canonicalNamespace(namespace), strings.ToLower(tag)}] = componentType
}

func componentTag(ns, tag string) (string, bool) {
	tagsMu.RLock()
	defer tagsMu.RUnlock()

	t, ok := componentTags[tagKey{ns, tag}]

	return t, ok
}

// attributeNames restores the case of attribute names the tokenizer lowers.
var attributeNames = map[string]string{
	"requiredmessage":     "requiredMessage",
	"convertermessage":    "converterMessage",
	"validatormessage":    "validatorMessage",
	"valuechangelistener": "valueChangeListener",
	"actionlistener":      "actionListener",
	"styleclass":          "styleClass",
	"validatorid":         "validatorId",
	"converterid":         "converterId",
	"varstatus":           "varStatus",
	"validationgroups":    "validationGroups",
}

func attributeName(lower string) string {
	if n, ok := attributeNames[lower]; ok {
		return n
	}

	return lower
}
