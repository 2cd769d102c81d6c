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

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/config"
	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/faces"
	"github.com/united-manufacturing-hub/faces-core/pkg/lifecycle"
	"github.com/united-manufacturing-hub/faces-core/pkg/logger"
	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
	"github.com/united-manufacturing-hub/faces-core/pkg/render"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
	"github.com/united-manufacturing-hub/faces-core/pkg/sentry"
	"github.com/united-manufacturing-hub/faces-core/pkg/server"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
	"github.com/united-manufacturing-hub/faces-core/pkg/statemanager"
	"github.com/united-manufacturing-hub/faces-core/pkg/vdl"
	"github.com/united-manufacturing-hub/faces-core/pkg/viewstate"
)

// appVersion is set at build time with -ldflags "-X main.appVersion=...".
var appVersion = constants.DefaultAppVersion

func main() {
	logger.Initialize()

	log := logger.For(logger.ComponentCore)
	log.Infof("Starting faces-server %s", appVersion)

	cfg, err := config.LoadWithEnvOverrides(logger.For(logger.ComponentConfig))
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to load config: %w", err)
		os.Exit(1)
	}

	sentry.InitSentry(cfg.SentryDSN, appVersion, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsPort > 0 {
		metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.MetricsPort))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %w", err)
			}
		}()
	}

	srv, cleanup, err := setup(ctx, cfg)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to set up faces server: %w", err)
		os.Exit(1)
	}
	defer cleanup()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			log.Errorf("Failed to shutdown faces server: %v", err)
		}
	}()

	if err := srv.Start(ctx); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "Faces server stopped: %w", err)
	}

	log.Info("faces-server stopped")

	if err := logger.Sync(); err != nil {
		// stdout cannot be synced on some platforms
		log.Debugf("Failed to sync logger: %v", err)
	}
}

// setup wires the application from cfg. The returned cleanup releases
// sessions and the redis connection.
func setup(ctx context.Context, cfg config.FacesConfig) (*server.Server, func(), error) {
	templates, resources, err := contentRoots(cfg)
	if err != nil {
		return nil, nil, err
	}

	sessions := session.NewManager(cfg.SessionTimeout, time.Minute, logger.For(logger.ComponentSession))
	cleanups := []func(){sessions.Close}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	scopeLog := logger.For(logger.ComponentScope)
	beans := faces.NewBeanRegistry()
	destroyer := scope.NewDestroyer(scopeLog, beans)
	flash := scope.NewFlash(scope.DefaultFlashTTL, destroyer, scopeLog)
	go flash.Run(ctx)
	kit := render.NewKit()

	app, err := faces.NewApplication(faces.Collaborators{
		VDL: vdl.New(
			vdl.NewFaceletCache(templates, cfg.FaceletsRefreshPeriod, logger.For(logger.ComponentVDL)),
			cfg.RefreshTransientBuildOnPSS,
			logger.For(logger.ComponentVDL),
		),
		Sessions:  sessions,
		Destroyer: destroyer,
		Windows:   scope.NewClientWindows(cfg.ClientWindowMode, cfg.NumberOfClientWindows, destroyer, scopeLog),
		Flash:     flash,
		Beans:     beans,
		Decoder:   kit,
	}, logger.For(logger.ComponentApplication))
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	if err := registerGuestbook(app); err != nil {
		cleanup()

		return nil, nil, err
	}

	codec, err := statecodec.New(cfg.CodecConfig(), logger.For(logger.ComponentStateCodec))
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	var store viewstate.Store
	if cfg.StateSavingMethod == statemanager.MethodServer {
		if cfg.Redis.Addr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			cleanups = append(cleanups, func() { _ = client.Close() })

			if err := client.Ping(ctx).Err(); err != nil {
				cleanup()

				return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
			}

			store = viewstate.NewRedisStore(client, cfg.Redis.TTL, logger.For(logger.ComponentViewState))
		} else {
			store = viewstate.NewLRUStore(cfg.NumberOfViewsInSession, logger.For(logger.ComponentViewState), flash.ViewEvicted)
		}
	}

	states, err := statemanager.New(statemanager.Options{
		Method:  cfg.StateSavingMethod,
		Partial: cfg.PartialStateSaving,
		Codec:   codec,
		Store:   store,
		Keys:    cfg.KeyFactory(),
		VDL:     app.VDL(),
	}, logger.For(logger.ComponentStateManager))
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	lcLog := logger.For(logger.ComponentLifecycle)

	lc, err := lifecycle.New(app, lifecycle.Options{
		Kit:    kit,
		States: states,
		Exceptions: lifecycle.ViewExpiredExceptionHandler{
			ExceptionHandlerWrapper: lifecycle.ExceptionHandlerWrapper{
				Wrapped: lifecycle.DefaultExceptionHandler{Log: lcLog},
			},
			Page: cfg.ViewExpiredPage,
		},
	}, lcLog)
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	srv, err := server.NewServer(lc, cfg.HTTP, resources, logger.For(logger.ComponentServer))
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	return srv, cleanup, nil
}

// contentRoots returns the template and resource directories, falling back
// to the bundled guestbook when the configured directories do not exist.
func contentRoots(cfg config.FacesConfig) (fs.FS, fs.FS, error) {
	templates, err := dirOrBundled(cfg.TemplateRoot, "templates")
	if err != nil {
		return nil, nil, err
	}

	resources, err := dirOrBundled(cfg.ResourceRoot, "resources")
	if err != nil {
		return nil, nil, err
	}

	return templates, resources, nil
}

func dirOrBundled(dir, bundled string) (fs.FS, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return os.DirFS(dir), nil
		}

		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to open %s: %w", dir, err)
		}
	}

	zap.S().Infof("Directory %q not found, serving the bundled %s", dir, bundled)

	return fs.Sub(bundle, bundled)
}
