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

package logger

import (
	"fmt"
	"sort"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// PrettyConsoleEncoder produces lines like
//
//	[INFO]  [lifecycle]  phase finished - phase=RENDER_RESPONSE, view=/index.xhtml
//
// Context added through With is kept and printed after the entry fields.
type PrettyConsoleEncoder struct {
	zapcore.ObjectEncoder

	cfg     zapcore.EncoderConfig
	pool    buffer.Pool
	context *zapcore.MapObjectEncoder
}

// NewPrettyConsoleEncoder creates a new PrettyConsoleEncoder instance.
func NewPrettyConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	ctx := zapcore.NewMapObjectEncoder()

	return &PrettyConsoleEncoder{
		ObjectEncoder: ctx,
		cfg:           cfg,
		pool:          buffer.NewPool(),
		context:       ctx,
	}
}

// Clone implements zapcore.Encoder.
func (e *PrettyConsoleEncoder) Clone() zapcore.Encoder {
	ctx := zapcore.NewMapObjectEncoder()
	for k, v := range e.context.Fields {
		ctx.Fields[k] = v
	}

	return &PrettyConsoleEncoder{
		ObjectEncoder: ctx,
		cfg:           e.cfg,
		pool:          e.pool,
		context:       ctx,
	}
}

// EncodeEntry implements zapcore.Encoder.
func (e *PrettyConsoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := e.pool.Get()

	line.AppendByte('[')
	line.AppendString(entry.Level.CapitalString())
	line.AppendString("]\t")

	if entry.LoggerName != "" {
		line.AppendByte('[')
		line.AppendString(entry.LoggerName)
		line.AppendString("]\t")
	}

	line.AppendString(entry.Message)

	enc := zapcore.NewMapObjectEncoder()
	for k, v := range e.context.Fields {
		enc.Fields[k] = v
	}

	for _, field := range fields {
		field.AddTo(enc)
	}

	if len(enc.Fields) > 0 {
		keys := make([]string, 0, len(enc.Fields))
		for k := range enc.Fields {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		line.AppendString(" - ")

		for i, k := range keys {
			if i > 0 {
				line.AppendString(", ")
			}

			line.AppendString(k)
			line.AppendByte('=')
			line.AppendString(fmt.Sprintf("%v", enc.Fields[k]))
		}
	}

	if entry.Stack != "" {
		line.AppendByte('\n')
		line.AppendString(entry.Stack)
	}

	line.AppendString(e.cfg.LineEnding)

	return line, nil
}
