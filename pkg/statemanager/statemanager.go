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

// Package statemanager saves views at the end of a request and restores
// them on postback, on the client as an encoded token or on the server
// behind a key.
package statemanager

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/component"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/safejson"
	"github.com/united-manufacturing-hub/faces-core/pkg/standarderrors"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
	"github.com/united-manufacturing-hub/faces-core/pkg/vdl"
	"github.com/united-manufacturing-hub/faces-core/pkg/viewstate"
)

// Method selects where view state is kept.
type Method string

const (
	MethodClient Method = "client"
	MethodServer Method = "server"
)

func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodServer:
		return MethodServer, nil
	case MethodClient:
		return MethodClient, nil
	}

	return "", fmt.Errorf("unknown state saving method %q", s)
}

// SavedView is the serialized form of a view. Exactly one of Tree and
// Deltas is set.
type SavedView struct {
	ViewID      string               `json:"viewId"`
	RenderKitID string               `json:"renderKitId,omitempty"`
	ViewScopeID string               `json:"viewScopeId,omitempty"`
	FlashToken  string               `json:"flash,omitempty"`
	Tree        *component.TreeState `json:"tree,omitempty"`
	Deltas      *component.Deltas    `json:"deltas,omitempty"`
}

// Options configure a Manager. Store and Keys are only used with
// MethodServer.
type Options struct {
	Method  Method
	Partial bool
	Codec   *statecodec.Codec
	Store   viewstate.Store
	Keys    statecodec.KeyFactory
	VDL     *vdl.FaceletsVDL
}

// Manager saves and restores views.
type Manager struct {
	opts Options
	log  *zap.SugaredLogger
}

func New(opts Options, log *zap.SugaredLogger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if opts.Method == "" {
		opts.Method = MethodServer
	}

	if opts.Codec == nil {
		return nil, errors.New("state manager needs a codec")
	}

	if opts.VDL == nil {
		return nil, errors.New("state manager needs a view declaration language")
	}

	if opts.Method == MethodServer {
		if opts.Store == nil {
			return nil, errors.New("server state saving needs a store")
		}

		if opts.Keys == nil {
			opts.Keys = statecodec.CounterKeyFactory{}
		}
	}

	return &Manager{opts: opts, log: log}, nil
}

func (m *Manager) Method() Method { return m.opts.Method }

// IsPartial reports whether views are saved as deltas against their
// rebuilt baseline.
func (m *Manager) IsPartial() bool { return m.opts.Partial }

// SaveView saves the view of fctx and returns its token. Transient views
// yield the stateless token.
func (m *Manager) SaveView(ctx context.Context, fctx *faces.Context) (string, error) {
	root := fctx.ViewRoot()
	if root == nil {
		return "", errors.New("save view: no view")
	}

	if root.IsTransient() {
		return constants.StatelessToken, nil
	}

	sv := SavedView{
		ViewID:      root.ViewID(),
		RenderKitID: root.RenderKitID(),
		ViewScopeID: root.ViewScopeID(),
	}

	if fctx.HasFlash() {
		sv.FlashToken = fctx.FlashToken()
	}

	if m.opts.Partial && root.IsInitialStateMarked() {
		d, err := root.SaveDeltas()
		if err != nil {
			return "", fmt.Errorf("save view %s: %w", root.ViewID(), err)
		}

		sv.Deltas = &d
	} else {
		ts, err := root.SaveTree()
		if err != nil {
			return "", fmt.Errorf("save view %s: %w", root.ViewID(), err)
		}

		sv.Tree = &ts
	}

	data, err := safejson.Marshal(sv)
	if err != nil {
		return "", fmt.Errorf("marshal view %s: %w", root.ViewID(), err)
	}

	if m.opts.Method == MethodClient {
		return m.opts.Codec.EncodeView(data, false)
	}

	return m.saveOnServer(ctx, fctx, sv, data)
}

func (m *Manager) saveOnServer(ctx context.Context, fctx *faces.Context, sv SavedView, data []byte) (string, error) {
	sess := fctx.Session(true)

	key, err := m.opts.Keys.Generate(ctx, sess, sv.ViewID)
	if err != nil {
		return "", err
	}

	entry := viewstate.Entry{Key: key, Data: data, FlashToken: sv.FlashToken}
	if err := m.opts.Store.Put(ctx, sess, fctx.WindowID(), entry); err != nil {
		return "", fmt.Errorf("store view %s: %w", sv.ViewID, err)
	}

	token := m.opts.Keys.Encode(key)
	if m.opts.Codec.Encrypted() {
		return m.opts.Codec.Seal([]byte(token))
	}

	return token, nil
}

// expired wraps err so it matches standarderrors.ErrViewExpired.
func expired(viewID string, err error) error {
	return fmt.Errorf("%w: %s: %w", standarderrors.ErrViewExpired, viewID, err)
}

// RestoreView restores viewID from the token of the request. Full state
// yields a Dirty root that is rebuilt before rendering. Partial state is
// applied to a freshly built baseline. The restored root is installed on
// fctx.
func (m *Manager) RestoreView(ctx context.Context, fctx *faces.Context, viewID string) (*component.ViewRoot, error) {
	token, ok := fctx.Param(constants.ViewStateParam)
	if !ok {
		return nil, expired(viewID, errors.New("no view state submitted"))
	}

	if token == constants.StatelessToken {
		return m.restoreStateless(ctx, fctx, viewID)
	}

	data, err := m.load(ctx, fctx, viewID, token)
	if err != nil {
		return nil, err
	}

	var sv SavedView
	if err := safejson.Unmarshal(data, &sv); err != nil {
		metrics.IncDecodeFailure(statecodec.ReasonMalformed)

		return nil, expired(viewID, err)
	}

	if sv.ViewID != viewID {
		return nil, expired(viewID, fmt.Errorf("state belongs to %s", sv.ViewID))
	}

	var root *component.ViewRoot

	switch {
	case sv.Tree != nil:
		root, err = component.RestoreView(viewID, *sv.Tree)
		if err != nil {
			return nil, expired(viewID, err)
		}

		m.prepare(root, sv)
		fctx.SetViewRoot(root)
	case sv.Deltas != nil:
		root, err = m.restorePartial(ctx, fctx, sv)
		if err != nil {
			return nil, err
		}
	default:
		return nil, expired(viewID, errors.New("saved view has no state"))
	}

	if sv.FlashToken != "" && !fctx.UseFlash(sv.FlashToken) {
		m.log.Debugf("Flash %s of %s expired", sv.FlashToken, viewID)
	}

	return root, nil
}

func (m *Manager) prepare(root *component.ViewRoot, sv SavedView) {
	if sv.RenderKitID != "" {
		root.SetRenderKitID(sv.RenderKitID)
	}

	root.SetViewScopeID(sv.ViewScopeID)
}

func (m *Manager) restorePartial(ctx context.Context, fctx *faces.Context, sv SavedView) (*component.ViewRoot, error) {
	root, err := m.opts.VDL.CreateView(ctx, sv.ViewID)
	if err != nil {
		return nil, err
	}

	m.prepare(root, sv)
	fctx.SetViewRoot(root)

	if err := m.opts.VDL.BuildView(ctx, fctx, root); err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", sv.ViewID, err)
	}

	if err := root.MarkInitialState(); err != nil {
		return nil, err
	}

	if err := root.ApplyDeltas(*sv.Deltas); err != nil {
		return nil, expired(sv.ViewID, err)
	}

	return root, nil
}

// restoreStateless builds a fresh transient view for the stateless token.
func (m *Manager) restoreStateless(ctx context.Context, fctx *faces.Context, viewID string) (*component.ViewRoot, error) {
	root, err := m.opts.VDL.CreateView(ctx, viewID)
	if err != nil {
		return nil, err
	}

	root.SetTransient(true)
	fctx.SetViewRoot(root)

	if err := m.opts.VDL.BuildView(ctx, fctx, root); err != nil {
		return nil, fmt.Errorf("build stateless %s: %w", viewID, err)
	}

	return root, nil
}

func (m *Manager) load(ctx context.Context, fctx *faces.Context, viewID, token string) ([]byte, error) {
	if m.opts.Method == MethodClient {
		data, err := m.opts.Codec.Decode(token)
		if err != nil {
			return nil, expired(viewID, err)
		}

		return data, nil
	}

	sess := fctx.Session(false)
	if sess == nil {
		return nil, expired(viewID, standarderrors.ErrSessionInvalidated)
	}

	keyToken := token
	if m.opts.Codec.Encrypted() {
		raw, err := m.opts.Codec.Open(token)
		if err != nil {
			return nil, expired(viewID, err)
		}

		keyToken = string(raw)
	}

	key, err := m.opts.Keys.Decode(viewID, keyToken)
	if err != nil {
		metrics.IncDecodeFailure(statecodec.ReasonMalformed)

		return nil, expired(viewID, err)
	}

	entry, ok, err := m.opts.Store.Get(ctx, sess, fctx.WindowID(), key)
	if err != nil {
		return nil, fmt.Errorf("load view %s: %w", viewID, err)
	}

	if !ok {
		return nil, expired(viewID, fmt.Errorf("no saved state for key %s", key))
	}

	return entry.Data, nil
}
