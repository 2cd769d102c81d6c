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

	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/el"
	"github.com/united-manufacturing-hub/faces-core/pkg/phase"
)

const requiredMessage = "Validation Error: Value is required."

// Value returns the local value if one is set, otherwise the value attribute.
func (c *Component) Value(ctx Context) (any, error) {
	if c.localValueSet {
		return c.localValue, nil
	}

	return c.Eval(ctx, "value")
}

// LocalValue returns the converted value not yet pushed to the model.
func (c *Component) LocalValue() (any, bool) { return c.localValue, c.localValueSet }

func (c *Component) SetLocalValue(v any) {
	c.localValue = v
	c.localValueSet = true
}

func (c *Component) SubmittedValue() (string, bool) {
	if c.submitted == nil {
		return "", false
	}

	return *c.submitted, true
}

func (c *Component) SetSubmittedValue(s string) { c.submitted = &s }

func (c *Component) ClearSubmittedValue() { c.submitted = nil }

func (c *Component) IsValid() bool { return c.valid }

func (c *Component) SetValid(valid bool) { c.valid = valid }

// ResetValue drops submitted and local values so the model value is shown again.
func (c *Component) ResetValue() {
	c.submitted = nil
	c.localValue = nil
	c.localValueSet = false
	c.valid = true
}

// IsSubmitted reports whether the request submitted this form.
func (c *Component) IsSubmitted() bool { return c.formSubmitted }

func (c *Component) SetSubmitted(s bool) { c.formSubmitted = s }

// DefaultDecode applies the request parameters addressed to c: forms detect
// their submission, inputs take their submitted value and activated action
// sources queue an ActionEvent.
func DefaultDecode(ctx Context, c *Component) {
	clientID := c.ClientID()

	if c.Has(CapForm) {
		_, ok := ctx.Param(clientID)
		c.formSubmitted = ok

		return
	}

	if c.EvalBool(ctx, "disabled", false) {
		return
	}

	if c.Has(CapEditableValueHolder) && !c.EvalBool(ctx, "readonly", false) {
		if v, ok := ctx.Param(clientID); ok {
			c.SetSubmittedValue(v)
		} else if c.Type() == TypeSelectBoolean && enclosingFormSubmitted(c) {
			c.SetSubmittedValue("false")
		}
	}

	if c.Has(CapActionSource) {
		_, ok := ctx.Param(clientID)
		source, _ := ctx.Param(constants.SourceParam)

		if ok || source == clientID {
			e := NewActionEvent(c)
			if c.IsImmediate(ctx) {
				e.SetPhase(phase.ApplyRequestValues)
			}

			c.QueueEvent(e)
		}
	}
}

func enclosingFormSubmitted(c *Component) bool {
	for p := c.parent; p != nil; p = p.parent {
		if p.Has(CapForm) {
			return p.formSubmitted
		}
	}

	return false
}

// ProcessDecodes decodes c and its subtree. A form that was not submitted
// skips its descendants. Immediate inputs are validated right away.
func (c *Component) ProcessDecodes(ctx Context) {
	if !c.IsRendered(ctx) {
		return
	}

	release := ctx.ELContext().PushComponent(c)
	defer release()

	if c.Has(CapForm) {
		ctx.Decode(c)

		if !c.formSubmitted {
			return
		}
	}

	for _, k := range c.FacetsAndChildren() {
		k.ProcessDecodes(ctx)
	}

	if c.Has(CapForm) {
		return
	}

	ctx.Decode(c)

	if c.Has(CapEditableValueHolder) && c.IsImmediate(ctx) {
		c.Validate(ctx)

		if !c.valid {
			ctx.RenderResponse()
		}
	}
}

// ProcessValidators validates the inputs of the subtree that are not immediate.
func (c *Component) ProcessValidators(ctx Context) {
	if !c.IsRendered(ctx) {
		return
	}

	if c.Has(CapForm) && !c.formSubmitted {
		return
	}

	release := ctx.ELContext().PushComponent(c)
	defer release()

	for _, k := range c.FacetsAndChildren() {
		k.ProcessValidators(ctx)
	}

	if c.desc.Type == TypeValidateWholeBean {
		c.validateWholeBean(ctx)

		return
	}

	if c.Has(CapEditableValueHolder) && !c.IsImmediate(ctx) {
		c.Validate(ctx)

		if !c.valid {
			ctx.RenderResponse()
		}
	}
}

// ProcessUpdates pushes the local values of the subtree to the model.
func (c *Component) ProcessUpdates(ctx Context) {
	if !c.IsRendered(ctx) {
		return
	}

	if c.Has(CapForm) && !c.formSubmitted {
		return
	}

	release := ctx.ELContext().PushComponent(c)
	defer release()

	for _, k := range c.FacetsAndChildren() {
		k.ProcessUpdates(ctx)
	}

	if c.Has(CapEditableValueHolder) {
		c.UpdateModel(ctx)

		if !c.valid {
			ctx.RenderResponse()
		}
	}
}

// Validate converts and validates the submitted value. On success the
// converted value becomes the local value and a ValueChangeEvent is queued
// if it differs from the previous value. Failures add a message for the
// client id, mark the input invalid and mark validation failed.
func (c *Component) Validate(ctx Context) {
	if c.submitted == nil {
		return
	}

	newValue, err := c.convert(ctx, *c.submitted)
	if err != nil {
		c.fail(ctx, conversionMessage(c, err))

		return
	}

	if msg, ok := c.validateValue(ctx, newValue); !ok {
		c.fail(ctx, msg)

		return
	}

	old, err := c.Value(ctx)
	if err != nil {
		ctx.QueueException(fmt.Errorf("previous value of %s: %w", c.ClientID(), err))
	}

	c.SetLocalValue(newValue)
	c.submitted = nil

	if !el.Equal(old, newValue) {
		c.QueueEvent(NewValueChangeEvent(c, old, newValue))
	}
}

func (c *Component) fail(ctx Context, msg Message) {
	c.valid = false
	ctx.AddMessage(c.ClientID(), msg)
	ctx.MarkValidationFailed()
}

func (c *Component) convert(ctx Context, submitted string) (any, error) {
	conv := c.Converter()

	if conv == nil {
		if ve, ok := c.bindings["value"]; ok {
			release := ctx.ELContext().PushComponent(c)
			t, err := ve.GetType(ctx.ELContext())
			release()

			if err == nil {
				conv = converterForType(t)
			}
		}
	}

	if conv == nil {
		return submitted, nil
	}

	return conv.AsObject(ctx, c, submitted)
}

func (c *Component) validateValue(ctx Context, value any) (Message, bool) {
	if el.IsEmpty(value) {
		if !c.EvalBool(ctx, "required", false) {
			return Message{}, true
		}

		summary := c.EvalString(ctx, "requiredMessage")
		if summary == "" {
			summary = label(c) + ": " + requiredMessage
		}

		return Message{Severity: SeverityError, Summary: summary}, false
	}

	for _, v := range c.validators {
		err := v.obj.Validate(ctx, c, value)
		if err == nil {
			continue
		}

		var ve *ValidatorError
		if errors.As(err, &ve) {
			return ve.Message, false
		}

		return Message{Severity: SeverityError, Summary: label(c) + ": " + err.Error()}, false
	}

	return Message{}, true
}

// UpdateModel writes the local value through the value binding and clears
// it. A failing write adds a message and marks the input invalid.
func (c *Component) UpdateModel(ctx Context) {
	if !c.valid || !c.localValueSet {
		return
	}

	ve, ok := c.bindings["value"]
	if !ok {
		return
	}

	release := ctx.ELContext().PushComponent(c)
	defer release()

	if err := ve.SetValue(ctx.ELContext(), c.localValue); err != nil {
		c.valid = false
		ctx.AddMessage(c.ClientID(), Message{
			Severity: SeverityError,
			Summary:  label(c) + ": Model update failed.",
			Detail:   err.Error(),
		})

		return
	}

	c.localValue = nil
	c.localValueSet = false
}

func conversionMessage(c *Component, err error) Message {
	var ce *ConverterError
	if errors.As(err, &ce) {
		return ce.Message
	}

	return Message{Severity: SeverityError, Summary: label(c) + ": Conversion Error setting value.", Detail: err.Error()}
}

// unwrapMessage returns the text of the innermost wrapped error, which is
// what a method validator returned.
func unwrapMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}

		err = next
	}
}
