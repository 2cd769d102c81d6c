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

// Package server exposes the request lifecycle over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/config"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/lifecycle"
	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/render"
	"github.com/united-manufacturing-hub/faces-core/pkg/sentry"
	"github.com/united-manufacturing-hub/faces-core/pkg/standarderrors"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeXML  = "text/xml; charset=utf-8"
)

// Server routes faces requests into a lifecycle and serves library resources.
type Server struct {
	lc        *lifecycle.Lifecycle
	app       *faces.Application
	resources fs.FS
	config    config.HTTPConfig
	router    *gin.Engine
	server    *http.Server
	logger    *zap.SugaredLogger
}

// NewServer builds the router. resources may be nil when no resources are
// served.
func NewServer(lc *lifecycle.Lifecycle, cfg config.HTTPConfig, resources fs.FS, logger *zap.SugaredLogger) (*Server, error) {
	if lc == nil {
		return nil, errors.New("server needs a lifecycle")
	}

	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid server configuration: port %d", cfg.Port)
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{
		lc:        lc,
		app:       lc.Application(),
		resources: resources,
		config:    cfg,
		logger:    logger,
	}
	s.router = s.routes()

	return s, nil
}

func (s *Server) routes() *gin.Engine {
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(s.logger.Desugar(), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger.Desugar(), true))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})
	router.GET(constants.ResourcePrefix+"*name", s.handleResource)

	// Every other path names a view.
	router.NoRoute(s.handleFaces)

	return router
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infow("Starting faces server",
		"port", s.config.Port,
		"debug", s.config.Debug,
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Errorw("Faces server failed", "error", err)

		return err
	}

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("Stopping faces server")

	return s.server.Shutdown(ctx)
}

// handleResource serves name from the resource filesystem. The ln
// parameter selects the library directory.
func (s *Server) handleResource(c *gin.Context) {
	if s.resources == nil {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	name := strings.TrimPrefix(c.Param("name"), "/")
	if lib := c.Query("ln"); lib != "" {
		name = lib + "/" + name
	}

	if !fs.ValidPath(name) || name == "." {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	if info, err := fs.Stat(s.resources, name); err != nil || info.IsDir() {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	c.FileFromFS(name, http.FS(s.resources))
}

func (s *Server) handleFaces(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodPost {
		c.Header("Allow", "GET, POST")
		c.AbortWithStatus(http.StatusMethodNotAllowed)

		return
	}

	ext, err := faces.NewExternalContext(c.Writer, c.Request, s.app.Sessions())
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())

		return
	}

	fctx := s.app.NewContext(c.Request.Context(), ext)
	ajax := fctx.Partial().IsAjaxRequest()

	var out bytes.Buffer

	err = s.lc.Execute(fctx)
	if err == nil {
		err = s.lc.Render(fctx, &out)
	}

	c.Header("Cache-Control", "no-store")

	if err != nil {
		s.fail(c, fctx, ajax, err)

		return
	}

	if location, ok := ext.RedirectLocation(); ok {
		s.redirect(c, fctx, ajax, location)

		return
	}

	if fctx.IsResponseComplete() && out.Len() == 0 {
		if !c.Writer.Written() {
			c.Status(http.StatusNoContent)
		}

		return
	}

	contentType := contentTypeHTML
	if ajax {
		contentType = contentTypeXML
	}

	c.Data(http.StatusOK, contentType, out.Bytes())
}

func (s *Server) redirect(c *gin.Context, fctx *faces.Context, ajax bool, location string) {
	if !ajax {
		c.Redirect(http.StatusSeeOther, location)

		return
	}

	var buf bytes.Buffer
	if err := lifecycle.WriteRedirect(&buf, rootID(fctx), location); err != nil {
		s.logger.Errorf("Failed to write partial redirect: %s", err)
		c.Status(http.StatusInternalServerError)

		return
	}

	c.Data(http.StatusOK, contentTypeXML, buf.Bytes())
}

func (s *Server) fail(c *gin.Context, fctx *faces.Context, ajax bool, err error) {
	viewID := lifecycle.ViewIDFromPath(c.Request.URL.Path)

	switch {
	case errors.Is(err, standarderrors.ErrViewExpired):
		metrics.IncErrorCount(metrics.ComponentServer, "view_expired")
		s.logger.Infof("View %s expired: %s", viewID, err)

		if ajax {
			s.partialError(c, fctx, "ViewExpiredException", err.Error())

			return
		}

		c.Data(http.StatusOK, contentTypeHTML, []byte(viewExpiredPage(c.Request.URL.Path)))
	case errors.Is(err, standarderrors.ErrViewNotFound):
		c.String(http.StatusNotFound, "view %s not found", viewID)
	default:
		metrics.IncErrorCount(metrics.ComponentServer, "lifecycle")
		sentry.ReportPhaseError(s.logger, viewID, fctx.Phase().String(), err)

		if ajax {
			s.partialError(c, fctx, "LifecycleException", err.Error())

			return
		}

		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (s *Server) partialError(c *gin.Context, fctx *faces.Context, name, message string) {
	var buf bytes.Buffer

	pw := render.NewPartialWriter(&buf)
	pw.StartDocument(rootID(fctx))
	pw.Error(name, message)

	if err := pw.EndDocument(); err != nil {
		s.logger.Errorf("Failed to write partial error: %s", err)
		c.Status(http.StatusInternalServerError)

		return
	}

	c.Data(http.StatusOK, contentTypeXML, buf.Bytes())
}

func rootID(fctx *faces.Context) string {
	if root := fctx.ViewRoot(); root != nil {
		return root.ClientID()
	}

	return ""
}

func viewExpiredPage(requestPath string) string {
	link := html.EscapeString(requestPath)

	return "<!DOCTYPE html>\n<html><head><title>View expired</title></head><body>" +
		"<h1>View expired</h1>" +
		"<p>The page " + link + " is no longer available, most likely because your session timed out. " +
		"Reload the page and submit the form again.</p>" +
		`<p><a href="` + link + `">Reload</a></p>` +
		"</body></html>"
}
