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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/united-manufacturing-hub/faces-core/pkg/logger"
	"github.com/united-manufacturing-hub/faces-core/pkg/sentry"
)

const (
	// Component labels.
	ComponentLifecycle    = "lifecycle"
	ComponentStateManager = "state_manager"
	ComponentViewState    = "view_state_store"
	ComponentStateCodec   = "state_codec"
	ComponentVDL          = "vdl"
	ComponentScope        = "scope"
	ComponentServer       = "server"
)

var (
	namespace = "faces"
	subsystem = "core"

	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "kind"},
	)

	phaseDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "phase_duration_milliseconds",
			Help:      "Time taken to execute a lifecycle phase (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.01,
			},
		},
		[]string{"phase"},
	)

	viewStateEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "view_state_evictions_total",
			Help:      "Total number of view states evicted from the server side store",
		},
		[]string{"store"},
	)

	tokenDecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "token_decode_failures_total",
			Help:      "Total number of view state tokens rejected by the codec",
		},
		[]string{"reason"},
	)

	faceletCompiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "facelet_compiles_total",
			Help:      "Total number of template compilations",
		},
		[]string{"result"},
	)

	viewBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "view_builds_total",
			Help:      "Total number of view builds and rebuilds",
		},
		[]string{"kind"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Number of live HTTP sessions",
		},
	)
)

// SetupMetricsEndpoint starts an HTTP server to expose metrics.
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeError, logger.For("metrics"))
		}
	}()

	return server
}

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, kind string) {
	errorCounter.WithLabelValues(component, kind).Inc()
}

// ObservePhaseTime records the time spent in one lifecycle phase.
func ObservePhaseTime(phase string, duration time.Duration) {
	phaseDuration.WithLabelValues(phase).Observe(float64(duration.Milliseconds()))
}

// IncEviction counts one evicted view state entry.
func IncEviction(store string) {
	viewStateEvictions.WithLabelValues(store).Inc()
}

// IncDecodeFailure counts one rejected token.
func IncDecodeFailure(reason string) {
	tokenDecodeFailures.WithLabelValues(reason).Inc()
}

// IncFaceletCompile counts a template compilation, successful or not.
func IncFaceletCompile(err error) {
	if err != nil {
		faceletCompiles.WithLabelValues("error").Inc()

		return
	}

	faceletCompiles.WithLabelValues("ok").Inc()
}

// IncViewBuild counts a view build. kind is "build" or "rebuild".
func IncViewBuild(kind string) {
	viewBuilds.WithLabelValues(kind).Inc()
}

// SessionCreated and SessionDestroyed track the active session gauge.
func SessionCreated() {
	activeSessions.Inc()
}

func SessionDestroyed() {
	activeSessions.Dec()
}
