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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/faces-core/pkg/env"
	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
	"github.com/united-manufacturing-hub/faces-core/pkg/sentry"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
	"github.com/united-manufacturing-hub/faces-core/pkg/statemanager"
	"github.com/united-manufacturing-hub/faces-core/pkg/vdl"
)

// DefaultConfigPath is read when FACES_CONFIG is not set.
const DefaultConfigPath = "/data/faces.yaml"

// Parse decodes YAML on top of the defaults, so a partial file only
// changes the settings it names.
func Parse(data []byte) (FacesConfig, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FacesConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load reads the file at path. A missing file yields the defaults.
func Load(path string, log *zap.SugaredLogger) (FacesConfig, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("Config file %s does not exist, using defaults", path)

		return Default(), nil
	}

	if err != nil {
		return FacesConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Marshal encodes the config as YAML.
func Marshal(cfg FacesConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	return data, nil
}

// LoadWithEnvOverrides loads the config file named by FACES_CONFIG, applies
// the environment overrides and validates the result.
//
// Order of precedence (highest to lowest):
// 1. Environment variables (FACES_*)
// 2. Config file values
// 3. Default values
func LoadWithEnvOverrides(log *zap.SugaredLogger) (FacesConfig, error) {
	path, err := env.GetAsString("FACES_CONFIG", false, DefaultConfigPath)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get FACES_CONFIG: %w", err)
	}

	cfg, err := Load(path, log)
	if err != nil {
		return FacesConfig{}, err
	}

	ApplyEnv(&cfg, log)

	if err := cfg.Validate(); err != nil {
		return FacesConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with the FACES_* environment variables that are
// set. Unparseable values keep the current setting.
func ApplyEnv(cfg *FacesConfig, log *zap.SugaredLogger) {
	str := func(key string, target *string) {
		v, err := env.GetAsString(key, false, *target)
		if err != nil {
			sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get %s: %w", key, err)

			return
		}

		*target = v
	}

	integer := func(key string, target *int) {
		v, err := env.GetAsInt(key, false, *target)
		if err != nil {
			sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get %s: %w", key, err)

			return
		}

		*target = v
	}

	boolean := func(key string, target *bool) {
		v, err := env.GetAsBool(key, false, *target)
		if err != nil {
			sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get %s: %w", key, err)

			return
		}

		*target = v
	}

	method := string(cfg.StateSavingMethod)
	str("FACES_STATE_SAVING_METHOD", &method)
	cfg.StateSavingMethod = statemanager.Method(method)

	boolean("FACES_PARTIAL_STATE_SAVING", &cfg.PartialStateSaving)

	refresh := string(cfg.RefreshTransientBuildOnPSS)
	str("FACES_REFRESH_TRANSIENT_BUILD_ON_PSS", &refresh)
	cfg.RefreshTransientBuildOnPSS = vdl.RefreshMode(refresh)

	window := string(cfg.ClientWindowMode)
	str("FACES_CLIENT_WINDOW_MODE", &window)
	cfg.ClientWindowMode = scope.WindowMode(window)

	integer("FACES_NUMBER_OF_VIEWS_IN_SESSION", &cfg.NumberOfViewsInSession)
	integer("FACES_NUMBER_OF_CLIENT_WINDOWS", &cfg.NumberOfClientWindows)

	key := string(cfg.ServerStateKey)
	str("FACES_SERVER_STATE_KEY", &key)
	cfg.ServerStateKey = ServerStateKey(key)

	compression := string(cfg.StateCompression)
	str("FACES_STATE_COMPRESSION", &compression)
	cfg.StateCompression = statecodec.Compression(compression)

	boolean("FACES_ENCRYPTION_ENABLED", &cfg.Encryption.Enabled)
	str("FACES_ENCRYPTION_SECRET", &cfg.Encryption.Secret)
	str("FACES_ENCRYPTION_MAC_SECRET", &cfg.Encryption.MACSecret)

	refreshPeriod, err := env.GetAsDuration("FACES_FACELETS_REFRESH_PERIOD", false, cfg.FaceletsRefreshPeriod)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get FACES_FACELETS_REFRESH_PERIOD: %w", err)
	} else {
		cfg.FaceletsRefreshPeriod = refreshPeriod
	}

	timeout, err := env.GetAsDuration("FACES_SESSION_TIMEOUT", false, cfg.SessionTimeout)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get FACES_SESSION_TIMEOUT: %w", err)
	} else {
		cfg.SessionTimeout = timeout
	}

	str("FACES_TEMPLATE_ROOT", &cfg.TemplateRoot)
	str("FACES_RESOURCE_ROOT", &cfg.ResourceRoot)
	str("FACES_VIEW_EXPIRED_PAGE", &cfg.ViewExpiredPage)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	integer("REDIS_DB", &cfg.Redis.DB)

	integer("FACES_HTTP_PORT", &cfg.HTTP.Port)
	boolean("FACES_HTTP_DEBUG", &cfg.HTTP.Debug)
	integer("FACES_METRICS_PORT", &cfg.MetricsPort)
	str("SENTRY_DSN", &cfg.SentryDSN)
}
