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

package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/session"
)

var (
	ErrUnknownFlow   = errors.New("unknown flow")
	ErrDuplicateFlow = errors.New("flow already registered")
	ErrNoActiveFlow  = errors.New("no active flow")
)

// Flow is a registered flow definition.
type Flow struct {
	ID string
	// DocumentID is the id of the document that defines the flow.
	DocumentID string
	// Start is the view id entered with the flow.
	Start string
	// Return is the outcome used when the flow exits.
	Return string

	Initializer func(scope *LazyMap)
	Finalizer   func(scope *LazyMap)
}

// MapKey identifies the flow across defining documents.
func (f *Flow) MapKey() string {
	return f.DocumentID + "_" + f.ID
}

// FlowToken returns the key of the flow scope of f inside a window.
func FlowToken(windowID string, f *Flow) string {
	return "flowscope." + windowID + ":" + f.MapKey()
}

// FlowRegistry holds the flows known to the application.
type FlowRegistry struct {
	mu    sync.RWMutex
	flows map[string]*Flow
	order []*Flow
}

func NewFlowRegistry() *FlowRegistry {
	return &FlowRegistry{flows: map[string]*Flow{}}
}

func (r *FlowRegistry) Register(f *Flow) error {
	if f == nil || f.ID == "" {
		return fmt.Errorf("register flow: %w", ErrUnknownFlow)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flows[f.MapKey()]; ok {
		return fmt.Errorf("%s: %w", f.MapKey(), ErrDuplicateFlow)
	}

	r.flows[f.MapKey()] = f
	r.order = append(r.order, f)

	return nil
}

// Lookup finds a flow by defining document and id. An empty document id
// matches the first flow registered with id.
func (r *FlowRegistry) Lookup(documentID, id string) (*Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if documentID != "" {
		f, ok := r.flows[documentID+"_"+id]

		return f, ok
	}

	for _, f := range r.order {
		if f.ID == id {
			return f, true
		}
	}

	return nil, false
}

func (r *FlowRegistry) Flows() []*Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*Flow(nil), r.order...)
}

// ActiveFlow is a flow entered in a client window.
type ActiveFlow struct {
	Flow  *Flow
	Token string
	Scope *LazyMap
}

const flowsAttr = "faces.scope.flows"

type flowStacks struct {
	mu      sync.Mutex
	windows map[string][]*ActiveFlow
}

// FlowHandler keeps a stack of active flows per client window.
type FlowHandler struct {
	registry  *FlowRegistry
	destroyer *Destroyer
	log       *zap.SugaredLogger
}

func NewFlowHandler(registry *FlowRegistry, destroyer *Destroyer, log *zap.SugaredLogger) *FlowHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if destroyer == nil {
		destroyer = NewDestroyer(log)
	}

	return &FlowHandler{registry: registry, destroyer: destroyer, log: log}
}

func (h *FlowHandler) Registry() *FlowRegistry { return h.registry }

func (h *FlowHandler) stacks(ctx context.Context, sess *session.Session) (*flowStacks, error) {
	return sessionState(ctx, sess, flowsAttr,
		func() *flowStacks { return &flowStacks{windows: map[string][]*ActiveFlow{}} },
		func(_ *session.Session, s *flowStacks) {
			s.mu.Lock()
			windows := s.windows
			s.windows = map[string][]*ActiveFlow{}
			s.mu.Unlock()

			for _, stack := range windows {
				h.unwind(stack)
			}
		})
}

// Enter activates a flow in a window on top of the flows already active.
func (h *FlowHandler) Enter(ctx context.Context, sess *session.Session, windowID, documentID, flowID string) (*ActiveFlow, error) {
	f, ok := h.registry.Lookup(documentID, flowID)
	if !ok {
		return nil, fmt.Errorf("enter flow %s: %w", flowID, ErrUnknownFlow)
	}

	stacks, err := h.stacks(ctx, sess)
	if err != nil {
		return nil, err
	}

	active := &ActiveFlow{Flow: f, Token: FlowToken(windowID, f), Scope: &LazyMap{}}
	if f.Initializer != nil {
		f.Initializer(active.Scope)
	}

	stacks.mu.Lock()
	stacks.windows[windowID] = append(stacks.windows[windowID], active)
	stacks.mu.Unlock()

	h.log.Debugf("Entered flow %s in window %q", active.Token, windowID)

	return active, nil
}

// Exit leaves the innermost flow of a window and destroys its scope.
func (h *FlowHandler) Exit(ctx context.Context, sess *session.Session, windowID string) (*ActiveFlow, error) {
	stacks, err := h.stacks(ctx, sess)
	if err != nil {
		return nil, err
	}

	stacks.mu.Lock()
	stack := stacks.windows[windowID]
	if len(stack) == 0 {
		stacks.mu.Unlock()

		return nil, ErrNoActiveFlow
	}

	active := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(stacks.windows, windowID)
	} else {
		stacks.windows[windowID] = stack[:len(stack)-1]
	}
	stacks.mu.Unlock()

	h.finish(active)

	return active, nil
}

// Current returns the innermost active flow of a window.
func (h *FlowHandler) Current(ctx context.Context, sess *session.Session, windowID string) (*ActiveFlow, bool, error) {
	stacks, err := h.stacks(ctx, sess)
	if err != nil {
		return nil, false, err
	}

	stacks.mu.Lock()
	defer stacks.mu.Unlock()

	stack := stacks.windows[windowID]
	if len(stack) == 0 {
		return nil, false, nil
	}

	return stack[len(stack)-1], true, nil
}

// WindowDestroyed ends all flows of a window. It matches WindowListener.
func (h *FlowHandler) WindowDestroyed(sess *session.Session, windowID string) {
	v, ok := sess.Attr(flowsAttr)
	if !ok {
		return
	}

	stacks, err := typedAttr[*flowStacks](v, flowsAttr)
	if err != nil {
		h.log.Warn(err)

		return
	}

	stacks.mu.Lock()
	stack := stacks.windows[windowID]
	delete(stacks.windows, windowID)
	stacks.mu.Unlock()

	h.unwind(stack)
}

// unwind finishes the flows of a stack innermost first.
func (h *FlowHandler) unwind(stack []*ActiveFlow) {
	for i := len(stack) - 1; i >= 0; i-- {
		h.finish(stack[i])
	}
}

func (h *FlowHandler) finish(active *ActiveFlow) {
	if active.Flow.Finalizer != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					h.log.Errorf("Finalizer of flow %s panicked: %v", active.Token, r)
				}
			}()

			active.Flow.Finalizer(active.Scope)
		}()
	}

	h.destroyer.DestroyMap(active.Scope)
	h.log.Debugf("Left flow %s", active.Token)
}
