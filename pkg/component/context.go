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
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
)

// Severity of a Message.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	}

	return "info"
}

// Message is a user facing message queued for a component or globally.
type Message struct {
	Severity Severity
	Summary  string
	Detail   string
}

// Context is the part of the request context the tree needs while it is
// processed. Errors raised by listeners and bindings are handed to
// QueueException instead of being returned so processing continues.
type Context interface {
	ELContext() *el.Context
	// Param returns the first request parameter value for name.
	Param(name string) (string, bool)
	// Decode applies request parameters to c using the render kit.
	Decode(c *Component)
	// InvokeAction runs the default action handling for e, usually
	// invoking the action method and navigating on its outcome.
	InvokeAction(e *ActionEvent) error

	AddMessage(clientID string, m Message)
	MarkValidationFailed()
	RenderResponse()
	ResponseComplete()
	IsRenderResponse() bool
	IsResponseComplete() bool

	Phase() phase.ID
	QueueException(err error)
	// ResourceAdded reports a component resource added to target after the
	// view was restored.
	ResourceAdded(c *Component, target string)
}

// PhaseListener observes the phases of a request.
type PhaseListener interface {
	// PhaseID returns the phase to observe, or phase.Any.
	PhaseID() phase.ID
	BeforePhase(ctx Context, p phase.ID) error
	AfterPhase(ctx Context, p phase.ID) error
}

// PhaseListenerFuncs adapts plain functions to PhaseListener.
type PhaseListenerFuncs struct {
	Phase  phase.ID
	Before func(ctx Context, p phase.ID) error
	After  func(ctx Context, p phase.ID) error
}

func (f PhaseListenerFuncs) PhaseID() phase.ID { return f.Phase }

func (f PhaseListenerFuncs) BeforePhase(ctx Context, p phase.ID) error {
	if f.Before == nil {
		return nil
	}

	return f.Before(ctx, p)
}

func (f PhaseListenerFuncs) AfterPhase(ctx Context, p phase.ID) error {
	if f.After == nil {
		return nil
	}

	return f.After(ctx, p)
}
