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

package constants

// Build and release metadata.
const (
	DefaultAppVersion             = "0.0.0-dev"
	DefaultDevelopmentEnvironment = "development"
	DefaultProductionEnvironment  = "production"
)

// Request parameters and headers understood by the companion client script.
const (
	// ViewStateParam carries the view state token. Its presence in the
	// submitted parameters makes a request a postback.
	ViewStateParam = "jakarta.faces.ViewState"
	// RenderKitIDParam selects the render kit for the restored view.
	RenderKitIDParam = "jakarta.faces.RenderKitId"
	// ClientWindowParam carries the client window id.
	ClientWindowParam = "jakarta.faces.ClientWindow"
	// SourceParam names the component that triggered the request.
	SourceParam = "jakarta.faces.source"

	PartialAjaxParam    = "jakarta.faces.partial.ajax"
	PartialExecuteParam = "jakarta.faces.partial.execute"
	PartialRenderParam  = "jakarta.faces.partial.render"
	PartialResetParam   = "jakarta.faces.partial.resetValues"
	PartialEventParam   = "jakarta.faces.partial.event"
	BehaviorEventParam  = "jakarta.faces.behavior.event"

	// FacesRequestHeader is set to "partial/ajax" by the client script.
	FacesRequestHeader = "Faces-Request"
	FacesRequestAjax   = "partial/ajax"
)

// Reserved token and id values.
const (
	// StatelessToken is the view state value of a transient view.
	StatelessToken = "stateless"

	DefaultRenderKitID = "HTML_BASIC"

	// SeparatorChar joins naming container ids in client ids.
	SeparatorChar = ':'

	UniqueIDPrefix = "j_id"

	// ViewStateIDSuffix is appended to the view root client id for the
	// hidden view state field.
	ViewStateIDSuffix    = "jakarta.faces.ViewState"
	ClientWindowIDSuffix = "jakarta.faces.ClientWindow"
)

// Pseudo ids of the partial response.
const (
	PartialViewRoot  = "jakarta.faces.ViewRoot"
	PartialViewHead  = "jakarta.faces.ViewHead"
	PartialViewBody  = "jakarta.faces.ViewBody"
	PartialResource  = "jakarta.faces.Resource"
	PartialViewState = "jakarta.faces.ViewState"
)

// Keywords of the execute and render lists.
const (
	KeywordAll  = "@all"
	KeywordNone = "@none"
	KeywordThis = "@this"
	KeywordForm = "@form"
)

// Resource targets.
const (
	TargetHead = "head"
	TargetBody = "body"
	TargetForm = "form"
)

// HTTP integration.
const (
	// SessionCookie carries the session id.
	SessionCookie = "FACESSESSIONID"

	// FlashParam carries the flash token across a redirect.
	FlashParam = "jakarta.faces.Flash"

	// ResourcePrefix is the path under which library resources are served.
	ResourcePrefix = "/jakarta.faces.resource/"

	// RedirectParam asks navigation to redirect instead of rendering.
	RedirectParam = "faces-redirect"

	// FlowReturnSuffix appended to the id of the active flow is the outcome
	// leaving that flow.
	FlowReturnSuffix = "-return"
)
