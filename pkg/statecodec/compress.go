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

package statecodec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects how state is compressed before it is encrypted.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// MaxStateSize bounds decompressed state so a crafted token cannot exhaust memory.
const MaxStateSize = 16 << 20

// Compressor compresses and decompresses state bytes.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NewCompressor returns the compressor for c.
func NewCompressor(c Compression) (Compressor, error) {
	switch c {
	case CompressionNone, "":
		return noCompression{}, nil
	case CompressionGzip:
		return gzipCompressor{}, nil
	case CompressionZstd:
		return zstdCompressor{}, nil
	}

	return nil, fmt.Errorf("unknown state compression %q", c)
}

type noCompression struct{}

func (noCompression) Compress(data []byte) ([]byte, error) { return data, nil }

func (noCompression) Decompress(data []byte) ([]byte, error) { return data, nil }

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	},
}

// gzipCompressor writes a fixed header (no name, no modification time) so
// equal state yields equal tokens.
type gzipCompressor struct{}

func (gzipCompressor) Compress(data []byte) ([]byte, error) {
	w, ok := gzipWriterPool.Get().(*gzip.Writer)
	if !ok {
		w = gzip.NewWriter(io.Discard)
	}
	defer gzipWriterPool.Put(w)

	var buf bytes.Buffer

	w.Reset(&buf)
	w.Header = gzip.Header{OS: 255}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip state: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip state: %w", err)
	}

	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip state: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(io.LimitReader(r, MaxStateSize+1))
	if err != nil {
		return nil, fmt.Errorf("gunzip state: %w", err)
	}

	if len(out) > MaxStateSize {
		return nil, fmt.Errorf("gunzip state: larger than %d bytes", MaxStateSize)
	}

	return out, nil
}

var (
	encoderPool = sync.Pool{
		New: func() interface{} {
			encoder, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))

			return encoder
		},
	}

	decoderPool = sync.Pool{
		New: func() interface{} {
			decoder, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxStateSize))

			return decoder
		},
	}
)

type zstdCompressor struct{}

func (zstdCompressor) Compress(data []byte) ([]byte, error) {
	encoder, ok := encoderPool.Get().(*zstd.Encoder)
	if !ok || encoder == nil {
		var err error

		encoder, err = zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
	}
	defer encoderPool.Put(encoder)

	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2+16)), nil
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, ok := decoderPool.Get().(*zstd.Decoder)
	if !ok || decoder == nil {
		var err error

		decoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxStateSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
	}
	defer decoderPool.Put(decoder)

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd state: %w", err)
	}

	return out, nil
}
