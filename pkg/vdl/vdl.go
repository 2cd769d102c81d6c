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

// Package vdl compiles XHTML facelets into handler trees and applies them to
// component trees. Applying a facelet again to a built view reuses the
// components it created before, found by their template mark, and removes
// the components the template no longer produces.
package vdl

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/standarderrors"
)

var (
	ErrViewNotFound = standarderrors.ErrViewNotFound
	// ErrCompositeMetadata is returned when a composite component lacks its
	// interface or implementation, or a required attribute is missing.
	ErrCompositeMetadata = errors.New("invalid composite component")
)

// TemplateError locates a failure in a facelet.
type TemplateError struct {
	Path string
	Line int
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// RefreshMode decides whether a restored view is rebuilt before rendering.
type RefreshMode string

const (
	RefreshAuto   RefreshMode = "auto"
	RefreshAlways RefreshMode = "true"
	RefreshNever  RefreshMode = "false"
)

func ParseRefreshMode(s string) (RefreshMode, error) {
	switch RefreshMode(s) {
	case "", RefreshAuto:
		return RefreshAuto, nil
	case RefreshAlways, RefreshNever:
		return RefreshMode(s), nil
	}

	return "", fmt.Errorf("unknown refresh mode %q", s)
}

// FaceletsVDL creates and builds views from facelets.
type FaceletsVDL struct {
	cache *FaceletCache
	mode  RefreshMode
	log   *zap.SugaredLogger
}

func New(cache *FaceletCache, mode RefreshMode, log *zap.SugaredLogger) *FaceletsVDL {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if mode == "" {
		mode = RefreshAuto
	}

	return &FaceletsVDL{cache: cache, mode: mode, log: log}
}

func (v *FaceletsVDL) Cache() *FaceletCache { return v.cache }

// ViewExists reports whether a facelet exists for viewID.
func (v *FaceletsVDL) ViewExists(viewID string) bool {
	return v.cache.Exists(viewID)
}

// CreateView returns an empty, unbuilt root for viewID.
func (v *FaceletsVDL) CreateView(_ context.Context, viewID string) (*component.ViewRoot, error) {
	if !v.ViewExists(viewID) {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, viewID)
	}

	root := component.NewViewRoot(viewID)
	root.SetRenderKitID(constants.DefaultRenderKitID)

	return root, nil
}

// RefreshNeeded reports whether a view restored with partial state has to
// be rebuilt before it is rendered.
func (v *FaceletsVDL) RefreshNeeded(_ context.Context, root *component.ViewRoot) bool {
	switch v.mode {
	case RefreshAlways:
		return true
	case RefreshNever:
		return false
	}

	return root.IsDynamic()
}

// BuildView applies the facelet of root unless root is already built. A
// failed build leaves root Dirty.
func (v *FaceletsVDL) BuildView(ctx context.Context, fctx component.Context, root *component.ViewRoot) (err error) {
	if !root.NeedsBuild() {
		return nil
	}

	kind := "rebuild"
	if root.BuildState() == component.Unbuilt {
		kind = "create"
	}

	f, err := v.cache.Facelet(ctx, root.ViewID())
	if err != nil {
		return err
	}

	gen, err := root.BeginBuild()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			v.log.Errorf("Building %s panicked: %v\n%s", root.ViewID(), r, debug.Stack())
			err = fmt.Errorf("build %s: panic: %v", root.ViewID(), r)
		}

		if err != nil {
			root.AbortBuild()
			metrics.IncViewBuild("failed")
		}
	}()

	fc := newFaceletContext(ctx, v, fctx, root, gen)

	if err := fc.applyFacelet(f, root.Component); err != nil {
		return err
	}

	if err := fc.retarget(); err != nil {
		return err
	}

	removed := fc.sweep()
	root.SetDynamic(fc.dynamic)

	if err := root.FinishBuild(); err != nil {
		return fmt.Errorf("finish build of %s: %w", root.ViewID(), err)
	}

	metrics.IncViewBuild(kind)
	v.log.Debugf("Built %s (%s, generation %d, %d stale components removed)", root.ViewID(), kind, gen, removed)

	return nil
}
