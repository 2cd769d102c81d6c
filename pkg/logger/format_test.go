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

package logger_test

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/logger"
)

var _ = Describe("PrettyConsoleEncoder", func() {
	var enc zapcore.Encoder

	BeforeEach(func() {
		enc = logger.NewPrettyConsoleEncoder(zapcore.EncoderConfig{LineEnding: "\n"})
	})

	It("prints level, component, message and sorted fields", func() {
		buf, err := enc.EncodeEntry(zapcore.Entry{
			Level:      zapcore.InfoLevel,
			LoggerName: "lifecycle",
			Message:    "phase finished",
		}, []zapcore.Field{zap.String("view", "/index.xhtml"), zap.String("phase", "RENDER_RESPONSE")})
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("[INFO]\t[lifecycle]\tphase finished - phase=RENDER_RESPONSE, view=/index.xhtml\n"))
	})

	It("keeps context fields across clones", func() {
		enc.AddString("session", "abc")
		clone := enc.Clone()

		buf, err := clone.EncodeEntry(zapcore.Entry{Level: zapcore.WarnLevel, Message: "evicted"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("[WARN]\tevicted - session=abc\n"))
	})
})

var _ = Describe("ParseFormat", func() {
	It("falls back on unknown values", func() {
		Expect(logger.ParseFormat("json", logger.FormatPretty)).To(Equal(logger.FormatJSON))
		Expect(logger.ParseFormat("fancy", logger.FormatPretty)).To(Equal(logger.FormatPretty))
	})
})
