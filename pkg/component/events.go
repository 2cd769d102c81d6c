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
	"errors"
	"fmt"

	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
)

// Event is queued on the view root and broadcast to its source component
// during the phase it targets.
type Event interface {
	Source() *Component
	Phase() phase.ID
	SetPhase(p phase.ID)
}

type baseEvent struct {
	source *Component
	phase  phase.ID
}

func (e *baseEvent) Source() *Component  { return e.source }
func (e *baseEvent) Phase() phase.ID     { return e.phase }
func (e *baseEvent) SetPhase(p phase.ID) { e.phase = p }

// ActionEvent is queued by an activated action source.
type ActionEvent struct{ baseEvent }

func NewActionEvent(source *Component) *ActionEvent {
	return &ActionEvent{baseEvent{source: source, phase: phase.InvokeApplication}}
}

// ValueChangeEvent is queued when validation changes the value of an input.
type ValueChangeEvent struct {
	baseEvent
	OldValue any
	NewValue any
}

func NewValueChangeEvent(source *Component, oldValue, newValue any) *ValueChangeEvent {
	return &ValueChangeEvent{
		baseEvent: baseEvent{source: source, phase: phase.ProcessValidations},
		OldValue:  oldValue,
		NewValue:  newValue,
	}
}

// QueueEvent queues e on the view of c. Events of detached components are dropped.
func (c *Component) QueueEvent(e Event) {
	if root := c.ViewRoot(); root != nil {
		root.events = append(root.events, e)
	}
}

// Broadcast delivers e to the listeners of c. For action events the
// default action handling of the context runs after the listeners.
func (c *Component) Broadcast(ctx Context, e Event) error {
	release := ctx.ELContext().PushComponent(c)
	defer release()

	switch ev := e.(type) {
	case *ActionEvent:
		for _, l := range c.actionListeners {
			if err := l.obj.ProcessAction(ctx, ev); err != nil {
				if errors.Is(err, ErrAbortProcessing) {
					return nil
				}

				return fmt.Errorf("action listener of %s: %w", c.ClientID(), err)
			}
		}

		if err := ctx.InvokeAction(ev); err != nil {
			return fmt.Errorf("action of %s: %w", c.ClientID(), err)
		}
	case *ValueChangeEvent:
		for _, l := range c.valueChangeListeners {
			if err := l.obj.ProcessValueChange(ctx, ev); err != nil {
				if errors.Is(err, ErrAbortProcessing) {
					return nil
				}

				return fmt.Errorf("value change listener of %s: %w", c.ClientID(), err)
			}
		}
	}

	return nil
}

// BroadcastEvents delivers the queued events targeting p, including events
// queued while broadcasting. Listener errors are queued on the context.
func (v *ViewRoot) BroadcastEvents(ctx Context, p phase.ID) {
	for i := 0; i < len(v.events); {
		e := v.events[i]
		if e.Phase() != p && e.Phase() != phase.Any {
			i++

			continue
		}

		v.events = append(v.events[:i], v.events[i+1:]...)

		if err := e.Source().Broadcast(ctx, e); err != nil {
			ctx.QueueException(err)
		}
	}
}

// ClearEvents drops every queued event.
func (v *ViewRoot) ClearEvents() { v.events = nil }

// PendingEvents returns the number of queued events.
func (v *ViewRoot) PendingEvents() int { return len(v.events) }
