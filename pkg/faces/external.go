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

package faces

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
)

// ExternalContext is the HTTP side of a request: parameters, headers, the
// session cookie and redirects.
type ExternalContext struct {
	Request  *http.Request
	Response http.ResponseWriter

	params   url.Values
	sessions *session.Manager
	sess     *session.Session
	redirect string
}

// NewExternalContext parses the request parameters of r.
func NewExternalContext(w http.ResponseWriter, r *http.Request, sessions *session.Manager) (*ExternalContext, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse request parameters: %w", err)
	}

	return &ExternalContext{Request: r, Response: w, params: r.Form, sessions: sessions}, nil
}

// Param returns the first value of a request parameter.
func (e *ExternalContext) Param(name string) (string, bool) {
	vs, ok := e.params[name]
	if !ok || len(vs) == 0 {
		return "", false
	}

	return vs[0], true
}

func (e *ExternalContext) ParamValues(name string) []string { return e.params[name] }

// ParamMap returns the first value of every parameter.
func (e *ExternalContext) ParamMap() map[string]string {
	m := make(map[string]string, len(e.params))
	for k, vs := range e.params {
		if len(vs) > 0 {
			m[k] = vs[0]
		}
	}

	return m
}

// ParamNames returns the parameter names in sorted order.
func (e *ExternalContext) ParamNames() []string {
	names := make([]string, 0, len(e.params))
	for k := range e.params {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}

func (e *ExternalContext) Header(name string) string { return e.Request.Header.Get(name) }

// RequestPath is the path of the request without query.
func (e *ExternalContext) RequestPath() string { return e.Request.URL.Path }

// Session returns the session of the request. With create set a missing
// session is started and its cookie written.
func (e *ExternalContext) Session(create bool) *session.Session {
	if e.sess != nil && !e.sess.IsDestroyed() {
		return e.sess
	}

	if e.sessions == nil {
		return nil
	}

	if c, err := e.Request.Cookie(constants.SessionCookie); err == nil {
		if s, ok := e.sessions.Get(c.Value); ok {
			e.sess = s

			return s
		}
	}

	if !create {
		return nil
	}

	e.sess = e.sessions.Create()
	http.SetCookie(e.Response, &http.Cookie{
		Name:     constants.SessionCookie,
		Value:    e.sess.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return e.sess
}

// InvalidateSession ends the session of the request, if any.
func (e *ExternalContext) InvalidateSession() {
	if s := e.Session(false); s != nil {
		e.sessions.Invalidate(s.ID())
		e.sess = nil
	}
}

// Redirect records a redirect. The response is written by the server.
func (e *ExternalContext) Redirect(location string) { e.redirect = location }

// RedirectLocation returns the recorded redirect, if any.
func (e *ExternalContext) RedirectLocation() (string, bool) {
	return e.redirect, e.redirect != ""
}
