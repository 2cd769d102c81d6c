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

package sentry

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
	IssueTypeFatal   IssueType = "fatal"
)

// debounceWindow is the minimum time between two non-fatal reports of the same level.
const debounceWindow = 2 * time.Hour

type debouncer struct {
	mu   sync.Mutex
	last time.Time
}

func (d *debouncer) allow() bool {
	if !shouldDebounceErrors {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Since(d.last) < debounceWindow {
		return false
	}

	d.last = time.Now()

	return true
}

var (
	errorDebounce   = &debouncer{}
	warningDebounce = &debouncer{}
)

func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}

// ReportIssueWithContext logs err and sends it to sentry with context as tags
// or extra data. Fatal issues panic after flushing.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]interface{}) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	switch issueType {
	case IssueTypeFatal:
		log.Errorf("Fatal error: %s", err)
		log.Errorf("Stack trace: %s", string(debug.Stack()))
		sendSentryEvent(createSentryEventWithContext(sentry.LevelFatal, err, context))
		sentry.Flush(5 * time.Second)
		log.Panic("Fatal error")
	case IssueTypeError:
		log.Error(err)

		if errorDebounce.allow() {
			sendSentryEvent(createSentryEventWithContext(sentry.LevelError, err, context))
		}
	case IssueTypeWarning:
		log.Warn(err)

		if warningDebounce.allow() {
			sendSentryEvent(createSentryEventWithContext(sentry.LevelWarning, err, context))
		}
	}
}

// ReportPhaseError reports an unhandled lifecycle failure.
func ReportPhaseError(log *zap.SugaredLogger, viewID string, phase string, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"view_id": viewID,
		"phase":   phase,
	})
}

// ReportStateError reports a failure while saving or restoring view state.
func ReportStateError(log *zap.SugaredLogger, viewID string, operation string, err error) {
	ReportIssueWithContext(err, IssueTypeWarning, log, map[string]interface{}{
		"view_id":   viewID,
		"operation": operation,
	})
}
