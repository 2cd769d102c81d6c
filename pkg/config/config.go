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
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/faces-core/pkg/scope"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
	"github.com/united-manufacturing-hub/faces-core/pkg/statemanager"
	"github.com/united-manufacturing-hub/faces-core/pkg/vdl"
)

// ServerStateKey selects how server side state keys are generated.
type ServerStateKey string

const (
	ServerStateKeyCounter ServerStateKey = "counter"
	ServerStateKeyRandom  ServerStateKey = "random"
)

// FacesConfig is the whole configuration of a faces-server.
type FacesConfig struct {
	StateSavingMethod          statemanager.Method    `yaml:"stateSavingMethod"`
	PartialStateSaving         bool                   `yaml:"partialStateSaving"`
	RefreshTransientBuildOnPSS vdl.RefreshMode        `yaml:"refreshTransientBuildOnPSS"`
	ClientWindowMode           scope.WindowMode       `yaml:"clientWindowMode"`
	NumberOfViewsInSession     int                    `yaml:"numberOfViewsInSession"`
	NumberOfClientWindows      int                    `yaml:"numberOfClientWindows"`
	ServerStateKey             ServerStateKey         `yaml:"serverStateKey"`
	StateCompression           statecodec.Compression `yaml:"stateCompression"`
	Encryption                 EncryptionConfig       `yaml:"encryption"`

	FaceletsRefreshPeriod time.Duration `yaml:"faceletsRefreshPeriod"`
	TemplateRoot          string        `yaml:"templateRoot"`
	ResourceRoot          string        `yaml:"resourceRoot"`
	ViewExpiredPage       string        `yaml:"viewExpiredPage,omitempty"`
	SessionTimeout        time.Duration `yaml:"sessionTimeout"`

	Redis       RedisConfig `yaml:"redis"`
	HTTP        HTTPConfig  `yaml:"http"`
	MetricsPort int         `yaml:"metricsPort"`
	SentryDSN   string      `yaml:"sentryDsn,omitempty"`
}

type EncryptionConfig struct {
	Enabled      bool                    `yaml:"enabled"`
	Algorithm    statecodec.Algorithm    `yaml:"algorithm"`
	MACAlgorithm statecodec.MACAlgorithm `yaml:"macAlgorithm"`
	// Secret and MACSecret are base64 encoded.
	Secret    string `yaml:"secret,omitempty"`
	MACSecret string `yaml:"macSecret,omitempty"`
}

// RedisConfig enables the redis view state store when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	Port  int  `yaml:"port"`
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is given.
func Default() FacesConfig {
	return FacesConfig{
		StateSavingMethod:          statemanager.MethodServer,
		PartialStateSaving:         true,
		RefreshTransientBuildOnPSS: vdl.RefreshAuto,
		ClientWindowMode:           scope.WindowModeNone,
		NumberOfViewsInSession:     20,
		NumberOfClientWindows:      scope.DefaultClientWindows,
		ServerStateKey:             ServerStateKeyCounter,
		StateCompression:           statecodec.CompressionGzip,
		Encryption: EncryptionConfig{
			Enabled:      true,
			Algorithm:    statecodec.AlgorithmAES,
			MACAlgorithm: statecodec.MACHmacSHA256,
		},
		FaceletsRefreshPeriod: 2 * time.Second,
		TemplateRoot:          "templates",
		ResourceRoot:          "resources",
		SessionTimeout:        30 * time.Minute,
		Redis:                 RedisConfig{TTL: time.Hour},
		HTTP:                  HTTPConfig{Port: 8080},
		MetricsPort:           8081,
	}
}

// Clone returns a deep copy of the config.
func (c FacesConfig) Clone() FacesConfig {
	var clone FacesConfig

	err := deepcopy.Copy(&clone, &c)
	if err != nil {
		// Every field is a value type, so the copy cannot fail.
		panic(fmt.Sprintf("failed to clone config: %v", err))
	}

	return clone
}

// Validate normalizes the enumerated settings and rejects invalid values.
// Unset enumerations get their defaults.
func (c *FacesConfig) Validate() error {
	var errs []error

	method, err := statemanager.ParseMethod(string(c.StateSavingMethod))
	if err != nil {
		errs = append(errs, err)
	}

	c.StateSavingMethod = method

	refresh, err := vdl.ParseRefreshMode(string(c.RefreshTransientBuildOnPSS))
	if err != nil {
		errs = append(errs, err)
	}

	c.RefreshTransientBuildOnPSS = refresh

	mode, err := scope.ParseWindowMode(string(c.ClientWindowMode))
	if err != nil {
		errs = append(errs, err)
	}

	c.ClientWindowMode = mode

	switch c.ServerStateKey {
	case "":
		c.ServerStateKey = ServerStateKeyCounter
	case ServerStateKeyCounter, ServerStateKeyRandom:
	default:
		errs = append(errs, fmt.Errorf("unknown server state key %q", c.ServerStateKey))
	}

	if _, err := statecodec.NewCompressor(c.StateCompression); err != nil {
		errs = append(errs, err)
	}

	if c.Encryption.Enabled {
		switch c.Encryption.Algorithm {
		case "", statecodec.AlgorithmAES, statecodec.AlgorithmXChaCha20:
		default:
			errs = append(errs, fmt.Errorf("unknown encryption algorithm %q", c.Encryption.Algorithm))
		}

		switch c.Encryption.MACAlgorithm {
		case "", statecodec.MACHmacSHA256, statecodec.MACHmacSHA3256:
		default:
			errs = append(errs, fmt.Errorf("unknown mac algorithm %q", c.Encryption.MACAlgorithm))
		}
	}

	if c.NumberOfViewsInSession <= 0 {
		errs = append(errs, fmt.Errorf("numberOfViewsInSession must be positive, got %d", c.NumberOfViewsInSession))
	}

	if c.NumberOfClientWindows <= 0 {
		errs = append(errs, fmt.Errorf("numberOfClientWindows must be positive, got %d", c.NumberOfClientWindows))
	}

	if c.SessionTimeout <= 0 {
		errs = append(errs, errors.New("sessionTimeout must be positive"))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.HTTP.Port))
	}

	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid metrics port %d", c.MetricsPort))
	}

	if c.TemplateRoot == "" {
		errs = append(errs, errors.New("templateRoot must be set"))
	}

	return errors.Join(errs...)
}

// CodecConfig derives the state token codec settings.
func (c FacesConfig) CodecConfig() statecodec.Config {
	return statecodec.Config{
		Compression:  c.StateCompression,
		Encrypt:      c.Encryption.Enabled,
		Algorithm:    c.Encryption.Algorithm,
		MACAlgorithm: c.Encryption.MACAlgorithm,
		Secret:       c.Encryption.Secret,
		MACSecret:    c.Encryption.MACSecret,
	}
}

// KeyFactory returns the server state key generator.
func (c FacesConfig) KeyFactory() statecodec.KeyFactory {
	if c.ServerStateKey == ServerStateKeyRandom {
		return statecodec.RandomKeyFactory{}
	}

	return statecodec.CounterKeyFactory{}
}
