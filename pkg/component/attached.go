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
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/united-manufacturing-hub/faces-core/pkg/el"
)

// Converter converts between submitted text and model values.
type Converter interface {
	AsObject(ctx Context, c *Component, value string) (any, error)
	AsString(ctx Context, c *Component, value any) (string, error)
}

// Validator checks a converted value. Failures are returned as *ValidatorError.
type Validator interface {
	Validate(ctx Context, c *Component, value any) error
}

type ActionListener interface {
	ProcessAction(ctx Context, e *ActionEvent) error
}

type ValueChangeListener interface {
	ProcessValueChange(ctx Context, e *ValueChangeEvent) error
}

// ConverterError carries the message shown for a failed conversion.
type ConverterError struct{ Message Message }

func (e *ConverterError) Error() string { return e.Message.Summary }

// ValidatorError carries the message shown for a failed validation.
type ValidatorError struct{ Message Message }

func (e *ValidatorError) Error() string { return e.Message.Summary }

func validatorError(format string, args ...any) *ValidatorError {
	return &ValidatorError{Message: Message{Severity: SeverityError, Summary: fmt.Sprintf(format, args...)}}
}

// Roles of attached objects.
const (
	RoleConverter           = "converter"
	RoleValidator           = "validator"
	RoleActionListener      = "actionListener"
	RoleValueChangeListener = "valueChangeListener"
)

// AttachedState describes an attached object so it can be saved and rebuilt.
type AttachedState struct {
	Role   string            `json:"role"`
	Kind   string            `json:"kind,omitempty"`
	Mark   string            `json:"mark,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Describer is implemented by attached objects that survive state saving.
type Describer interface {
	Describe() (kind string, params map[string]string)
}

// AttachedFactory rebuilds an attached object from its parameters.
type AttachedFactory func(params map[string]string) (any, error)

var (
	attachedMu       sync.RWMutex
	attachedRegistry = map[string]AttachedFactory{}
)

// RegisterAttached registers the factory for an attached object kind.
func RegisterAttached(kind string, f AttachedFactory) {
	attachedMu.Lock()
	defer attachedMu.Unlock()

	attachedRegistry[kind] = f
}

// NewAttached creates an attached object of a registered kind.
func NewAttached(kind string, params map[string]string) (any, error) {
	attachedMu.RLock()
	f, ok := attachedRegistry[kind]
	attachedMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: attached object %s", ErrUnknownType, kind)
	}

	return f(params)
}

// Attached object kinds.
const (
	KindIntegerConverter     = "jakarta.faces.Integer"
	KindFloatConverter       = "jakarta.faces.Double"
	KindBooleanConverter     = "jakarta.faces.Boolean"
	KindRequiredValidator    = "jakarta.faces.Required"
	KindLengthValidator      = "jakarta.faces.Length"
	KindRegexValidator       = "jakarta.faces.RegularExpression"
	KindMethodValidator      = "faces.MethodValidator"
	KindMethodAction         = "faces.MethodActionListener"
	KindMethodValueChange    = "faces.MethodValueChangeListener"
	KindPropertyActionSetter = "jakarta.faces.SetPropertyActionListener"
)

func init() {
	RegisterAttached(KindIntegerConverter, func(map[string]string) (any, error) { return IntegerConverter{}, nil })
	RegisterAttached(KindFloatConverter, func(map[string]string) (any, error) { return FloatConverter{}, nil })
	RegisterAttached(KindBooleanConverter, func(map[string]string) (any, error) { return BooleanConverter{}, nil })
	RegisterAttached(KindRequiredValidator, func(map[string]string) (any, error) { return RequiredValidator{}, nil })
	RegisterAttached(KindLengthValidator, func(p map[string]string) (any, error) {
		v := LengthValidator{}

		var err error
		if s := p["minimum"]; s != "" {
			if v.Minimum, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("minimum: %w", err)
			}
		}

		if s := p["maximum"]; s != "" {
			if v.Maximum, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("maximum: %w", err)
			}
		}

		return v, nil
	})
	RegisterAttached(KindRegexValidator, func(p map[string]string) (any, error) { return NewRegexValidator(p["pattern"]) })
	RegisterAttached(KindMethodValidator, func(p map[string]string) (any, error) {
		return MethodValidator{Method: el.NewValueExpression(p["method"])}, nil
	})
	RegisterAttached(KindMethodAction, func(p map[string]string) (any, error) {
		return MethodActionListener{Method: el.NewValueExpression(p["method"])}, nil
	})
	RegisterAttached(KindMethodValueChange, func(p map[string]string) (any, error) {
		return MethodValueChangeListener{Method: el.NewValueExpression(p["method"])}, nil
	})
	RegisterAttached(KindPropertyActionSetter, func(p map[string]string) (any, error) {
		return SetPropertyActionListener{Target: el.NewValueExpression(p["target"]), Value: el.NewValueExpression(p["value"])}, nil
	})
}

// SetConverter attaches a converter. mark identifies the creating template
// handler and may be empty.
func (c *Component) SetConverter(mark string, conv Converter) {
	if conv == nil {
		c.converter = nil

		return
	}

	c.converter = &attached[Converter]{mark: mark, obj: conv}
}

func (c *Component) Converter() Converter {
	if c.converter == nil {
		return nil
	}

	return c.converter.obj
}

// AddValidator attaches v unless a validator with the same non-empty mark
// is already attached. It reports whether v was added.
func (c *Component) AddValidator(mark string, v Validator) bool {
	if hasMark(c.validators, mark) {
		return false
	}

	c.validators = append(c.validators, attached[Validator]{mark: mark, obj: v})

	return true
}

func (c *Component) Validators() []Validator { return objects(c.validators) }

func (c *Component) AddActionListener(mark string, l ActionListener) bool {
	if hasMark(c.actionListeners, mark) {
		return false
	}

	c.actionListeners = append(c.actionListeners, attached[ActionListener]{mark: mark, obj: l})

	return true
}

func (c *Component) ActionListeners() []ActionListener { return objects(c.actionListeners) }

func (c *Component) AddValueChangeListener(mark string, l ValueChangeListener) bool {
	if hasMark(c.valueChangeListeners, mark) {
		return false
	}

	c.valueChangeListeners = append(c.valueChangeListeners, attached[ValueChangeListener]{mark: mark, obj: l})

	return true
}

func (c *Component) ValueChangeListeners() []ValueChangeListener {
	return objects(c.valueChangeListeners)
}

// HasAttachedMark reports whether an attached object created by the handler
// with the given mark is present.
func (c *Component) HasAttachedMark(mark string) bool {
	if mark == "" {
		return false
	}

	if c.converter != nil && c.converter.mark == mark {
		return true
	}

	return hasMark(c.validators, mark) || hasMark(c.actionListeners, mark) || hasMark(c.valueChangeListeners, mark)
}

func hasMark[T any](list []attached[T], mark string) bool {
	if mark == "" {
		return false
	}

	for _, a := range list {
		if a.mark == mark {
			return true
		}
	}

	return false
}

func objects[T any](list []attached[T]) []T {
	out := make([]T, len(list))
	for i, a := range list {
		out[i] = a.obj
	}

	return out
}

// IntegerConverter converts to int.
type IntegerConverter struct{}

func (IntegerConverter) AsObject(_ Context, c *Component, value string) (any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return nil, &ConverterError{Message: Message{
			Severity: SeverityError,
			Summary:  fmt.Sprintf("%s: '%s' must be a number consisting of one or more digits.", label(c), value),
		}}
	}

	return i, nil
}

func (IntegerConverter) AsString(_ Context, _ *Component, value any) (string, error) {
	return el.ToString(value), nil
}

func (IntegerConverter) Describe() (string, map[string]string) { return KindIntegerConverter, nil }

// FloatConverter converts to float64.
type FloatConverter struct{}

func (FloatConverter) AsObject(_ Context, c *Component, value string) (any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, &ConverterError{Message: Message{
			Severity: SeverityError,
			Summary:  fmt.Sprintf("%s: '%s' must be a number.", label(c), value),
		}}
	}

	return f, nil
}

func (FloatConverter) AsString(_ Context, _ *Component, value any) (string, error) {
	return el.ToString(value), nil
}

func (FloatConverter) Describe() (string, map[string]string) { return KindFloatConverter, nil }

// BooleanConverter converts "true", "on" and "yes" to true and anything else to false.
type BooleanConverter struct{}

func (BooleanConverter) AsObject(_ Context, _ *Component, value string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return nil, nil
	case "true", "on", "yes":
		return true, nil
	}

	return false, nil
}

func (BooleanConverter) AsString(_ Context, _ *Component, value any) (string, error) {
	return el.ToString(value), nil
}

func (BooleanConverter) Describe() (string, map[string]string) { return KindBooleanConverter, nil }

// converterForType picks a converter for a model property type.
func converterForType(t reflect.Type) Converter {
	if t == nil {
		return nil
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntegerConverter{}
	case reflect.Float32, reflect.Float64:
		return FloatConverter{}
	case reflect.Bool:
		return BooleanConverter{}
	}

	return nil
}

// RequiredValidator fails on empty values. The required attribute is the
// usual way to get this check; the validator exists for f:validateRequired.
type RequiredValidator struct{}

func (RequiredValidator) Validate(_ Context, c *Component, value any) error {
	if el.IsEmpty(value) {
		return validatorError("%s: Validation Error: Value is required.", label(c))
	}

	return nil
}

func (RequiredValidator) Describe() (string, map[string]string) { return KindRequiredValidator, nil }

// LengthValidator checks the length in characters of the text of a value.
// Zero bounds are not checked.
type LengthValidator struct {
	Minimum int
	Maximum int
}

func (v LengthValidator) Validate(_ Context, c *Component, value any) error {
	n := utf8.RuneCountInString(el.ToString(value))

	if v.Maximum > 0 && n > v.Maximum {
		return validatorError("%s: Validation Error: Length is greater than allowable maximum of '%d'", label(c), v.Maximum)
	}

	if v.Minimum > 0 && n < v.Minimum {
		return validatorError("%s: Validation Error: Length is less than allowable minimum of '%d'", label(c), v.Minimum)
	}

	return nil
}

func (v LengthValidator) Describe() (string, map[string]string) {
	return KindLengthValidator, map[string]string{
		"minimum": strconv.Itoa(v.Minimum),
		"maximum": strconv.Itoa(v.Maximum),
	}
}

// RegexValidator requires the whole text of a value to match a pattern.
type RegexValidator struct {
	pattern string
	re      *regexp.Regexp
}

func NewRegexValidator(pattern string) (*RegexValidator, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("regex validator pattern %q: %w", pattern, err)
	}

	return &RegexValidator{pattern: pattern, re: re}, nil
}

func (v *RegexValidator) Validate(_ Context, c *Component, value any) error {
	if !v.re.MatchString(el.ToString(value)) {
		return validatorError("%s: Validation Error: Value not according to pattern '%s'", label(c), v.pattern)
	}

	return nil
}

func (v *RegexValidator) Describe() (string, map[string]string) {
	return KindRegexValidator, map[string]string{"pattern": v.pattern}
}

// MethodValidator invokes a method expression with the value. A returned
// error fails validation with its text as the message.
type MethodValidator struct {
	Method el.ValueExpression
}

func (v MethodValidator) Validate(ctx Context, c *Component, value any) error {
	release := ctx.ELContext().PushComponent(c)
	defer release()

	_, err := v.Method.Invoke(ctx.ELContext(), value)
	if err == nil {
		return nil
	}

	var ve *ValidatorError
	if errors.As(err, &ve) {
		return ve
	}

	return validatorError("%s: %s", label(c), unwrapMessage(err))
}

func (v MethodValidator) Describe() (string, map[string]string) {
	return KindMethodValidator, map[string]string{"method": v.Method.Expr}
}

// MethodActionListener invokes a method expression with the event.
type MethodActionListener struct {
	Method el.ValueExpression
}

func (l MethodActionListener) ProcessAction(ctx Context, e *ActionEvent) error {
	_, err := l.Method.Invoke(ctx.ELContext(), e)

	return err
}

func (l MethodActionListener) Describe() (string, map[string]string) {
	return KindMethodAction, map[string]string{"method": l.Method.Expr}
}

// MethodValueChangeListener invokes a method expression with the event.
type MethodValueChangeListener struct {
	Method el.ValueExpression
}

func (l MethodValueChangeListener) ProcessValueChange(ctx Context, e *ValueChangeEvent) error {
	_, err := l.Method.Invoke(ctx.ELContext(), e)

	return err
}

func (l MethodValueChangeListener) Describe() (string, map[string]string) {
	return KindMethodValueChange, map[string]string{"method": l.Method.Expr}
}

// SetPropertyActionListener copies Value into Target when the action fires.
type SetPropertyActionListener struct {
	Target el.ValueExpression
	Value  el.ValueExpression
}

func (l SetPropertyActionListener) ProcessAction(ctx Context, _ *ActionEvent) error {
	v, err := l.Value.GetValue(ctx.ELContext())
	if err != nil {
		return err
	}

	return l.Target.SetValue(ctx.ELContext(), v)
}

func (l SetPropertyActionListener) Describe() (string, map[string]string) {
	return KindPropertyActionSetter, map[string]string{"target": l.Target.Expr, "value": l.Value.Expr}
}

func label(c *Component) string {
	if l, ok := c.Attr("label"); ok {
		if s := el.ToString(l); s != "" {
			return s
		}
	}

	return c.ClientID()
}
