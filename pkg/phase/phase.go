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

// Package phase names the processing phases of a request.
package phase

// ID identifies a lifecycle phase. The zero value is Any, which listeners
// use to subscribe to every phase.
type ID int

const (
	Any ID = iota
	RestoreView
	ApplyRequestValues
	ProcessValidations
	UpdateModelValues
	InvokeApplication
	RenderResponse
)

var names = [...]string{
	Any:                "ANY",
	RestoreView:        "RESTORE_VIEW",
	ApplyRequestValues: "APPLY_REQUEST_VALUES",
	ProcessValidations: "PROCESS_VALIDATIONS",
	UpdateModelValues:  "UPDATE_MODEL_VALUES",
	InvokeApplication:  "INVOKE_APPLICATION",
	RenderResponse:     "RENDER_RESPONSE",
}

func (p ID) String() string {
	if p < Any || int(p) >= len(names) {
		return "UNKNOWN"
	}

	return names[p]
}

// Next returns the phase following p, or Any after RenderResponse.
func (p ID) Next() ID {
	if p >= RenderResponse || p < RestoreView {
		return Any
	}

	return p + 1
}

// Matches reports whether a listener registered for p wants to see other.
func (p ID) Matches(other ID) bool {
	return p == Any || p == other
}

// Execute lists the phases run by Lifecycle.Execute in order.
var Execute = []ID{RestoreView, ApplyRequestValues, ProcessValidations, UpdateModelValues, InvokeApplication}

// Parse returns the phase with the given name.
func Parse(name string) (ID, bool) {
	for i, n := range names {
		if n == name {
			return ID(i), true
		}
	}

	return Any, false
}
