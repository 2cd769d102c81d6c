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

package lifecycle

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/logger"
	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/standarderrors"
)

// ExceptionHandler decides what happens to the errors queued during a
// phase. A returned error aborts the request.
type ExceptionHandler interface {
	Handle(fctx *faces.Context, errs []error) error
}

// DefaultExceptionHandler aborts with the first queued error.
type DefaultExceptionHandler struct {
	Log *zap.SugaredLogger
}

func (h DefaultExceptionHandler) Handle(_ *faces.Context, errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	for _, err := range errs[1:] {
		logger.OrNop(h.Log).Warnf("Dropping exception queued after %q: %s", errs[0], err)
	}

	return errs[0]
}

// LoggingExceptionHandler logs every queued error and lets the request
// continue.
type LoggingExceptionHandler struct {
	Log *zap.SugaredLogger
}

func (h LoggingExceptionHandler) Handle(fctx *faces.Context, errs []error) error {
	log := logger.OrNop(h.Log)

	for _, err := range errs {
		log.Errorf("Unhandled exception in %s: %s", fctx.Phase(), err)
		metrics.IncErrorCount(metrics.ComponentLifecycle, "swallowed")
	}

	return nil
}

// ExceptionHandlerWrapper delegates to Wrapped, or to the default handler.
// Embed it to decorate another handler.
type ExceptionHandlerWrapper struct {
	Wrapped ExceptionHandler
}

func (w ExceptionHandlerWrapper) Handle(fctx *faces.Context, errs []error) error {
	if w.Wrapped == nil {
		return DefaultExceptionHandler{}.Handle(fctx, errs)
	}

	return w.Wrapped.Handle(fctx, errs)
}

// ViewExpiredError is the outcome of a request whose view could not be
// restored.
type ViewExpiredError struct {
	ViewID string
	Err    error
}

func (e *ViewExpiredError) Error() string {
	return fmt.Sprintf("view %s expired: %s", e.ViewID, e.Err)
}

func (e *ViewExpiredError) Unwrap() error { return e.Err }

// ExpiredViewIDKey is the request scope key holding the id of the expired
// view while Page renders.
const ExpiredViewIDKey = "expiredViewId"

// ViewExpiredExceptionHandler takes expired views out of the queue. With
// Page set that view is rendered instead, otherwise the request ends with
// a *ViewExpiredError. Other errors go to the wrapped handler.
type ViewExpiredExceptionHandler struct {
	ExceptionHandlerWrapper

	Page string
}

func (h ViewExpiredExceptionHandler) Handle(fctx *faces.Context, errs []error) error {
	var (
		expired error
		rest    []error
	)

	for _, err := range errs {
		if expired == nil && errors.Is(err, standarderrors.ErrViewExpired) {
			expired = err

			continue
		}

		rest = append(rest, err)
	}

	if expired != nil {
		viewID := ViewIDFromPath(fctx.External().RequestPath())
		if h.Page == "" {
			return &ViewExpiredError{ViewID: viewID, Err: expired}
		}

		root, err := fctx.Application().VDL().CreateView(fctx.Context(), h.Page)
		if err != nil {
			return fmt.Errorf("show expired page for %s: %w", viewID, err)
		}

		fctx.SetViewRoot(root)
		fctx.RequestScope().Put(ExpiredViewIDKey, viewID)
		fctx.AddMessage("", component.Message{
			Severity: component.SeverityWarn,
			Summary:  "The page has expired. Please try again.",
		})
		fctx.Partial().SetRenderAll(true)
		fctx.RenderResponse()
	}

	if len(rest) == 0 {
		return nil
	}

	return h.ExceptionHandlerWrapper.Handle(fctx, rest)
}
