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
	"errors"
	"strings"

	"github.com/getsentry/sentry-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"
)

var _ = Describe("Event construction", func() {
	It("cuts the title at the first separator", func() {
		Expect(getMeaningfulErrorTitle(errors.New("view expired: token mac mismatch"))).To(Equal("view expired"))
		Expect(getMeaningfulErrorTitle(errors.New(strings.Repeat("x", 150)))).To(HaveLen(100))
	})

	It("splits context into tags, extra data and fingerprint", func() {
		event := createSentryEventWithContext(sentry.LevelWarning, errors.New("restore failed"), map[string]interface{}{
			"view_id":   "/index.xhtml",
			"phase":     "RESTORE_VIEW",
			"sequence":  4,
			"deltas":    []string{"form:name"},
			"operation": "restore",
		})

		Expect(event.Tags).To(HaveKeyWithValue("view_id", "/index.xhtml"))
		Expect(event.Tags).To(HaveKeyWithValue("sequence", "4"))
		Expect(event.Extra).To(HaveKey("deltas"))
		Expect(event.Fingerprint).To(ContainElements("phase: RESTORE_VIEW", "operation: restore"))
		Expect(event.Fingerprint).NotTo(ContainElement(ContainSubstring("view_id")))
	})

	It("does not panic reporting without an initialized client", func() {
		EnableTestMode()
		log := zaptest.NewLogger(GinkgoT()).Sugar()
		Expect(func() {
			ReportStateError(log, "/index.xhtml", "save", errors.New("boom"))
			ReportPhaseError(nil, "/index.xhtml", "RENDER_RESPONSE", errors.New("boom"))
		}).NotTo(Panic())
	})
})
