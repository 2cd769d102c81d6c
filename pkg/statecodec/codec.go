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

// Package statecodec turns saved view state into tokens that can travel
// through a page and back: compression, optional encryption with a MAC,
// base64url and a fixed ISO-8859-1 text mapping. It also generates the keys
// that reference server side state.
package statecodec

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
)

var (
	// ErrDecode matches every token that could not be decoded.
	ErrDecode = errors.New("cannot decode view state token")
	// ErrIntegrity matches tokens whose MAC did not verify.
	ErrIntegrity = errors.New("view state token failed integrity check")
)

// Decode failure reasons, also used as metric labels.
const (
	ReasonMalformed = "malformed"
	ReasonIntegrity = "integrity"
	ReasonCharset   = "charset"
	ReasonEncoding  = "encoding"
	ReasonCompress  = "compression"
)

// DecodeError describes why a token was rejected.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrDecode, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// Config configures a Codec. Secrets are base64 encoded. Without a secret a
// random key is generated, so tokens do not survive a restart. Without a MAC
// secret the MAC key is derived from the secret.
type Config struct {
	Compression  Compression
	Encrypt      bool
	Algorithm    Algorithm
	MACAlgorithm MACAlgorithm
	Secret       string
	MACSecret    string
}

// Codec encodes and decodes client state tokens. It is safe for concurrent use.
type Codec struct {
	compressor Compressor
	sealer     *sealer
	log        *zap.SugaredLogger
}

// New creates a Codec.
func New(cfg Config, log *zap.SugaredLogger) (*Codec, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	compressor, err := NewCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	c := &Codec{compressor: compressor, log: log}

	if !cfg.Encrypt {
		return c, nil
	}

	key, err := decodeSecret(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("state secret: %w", err)
	}

	if key == nil {
		log.Warnf("No state secret configured, generated a random key; client state will not survive a restart")

		key = make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate state secret: %w", err)
		}
	}

	macKey, err := decodeSecret(cfg.MACSecret)
	if err != nil {
		return nil, fmt.Errorf("state mac secret: %w", err)
	}

	c.sealer, err = newSealer(cfg.Algorithm, cfg.MACAlgorithm, key, macKey)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func decodeSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	return base64.StdEncoding.DecodeString(s)
}

// Encrypted reports whether tokens are encrypted.
func (c *Codec) Encrypted() bool { return c.sealer != nil }

// Encode compresses, seals and encodes data.
func (c *Codec) Encode(data []byte) (string, error) {
	compressed, err := c.compressor.Compress(data)
	if err != nil {
		return "", err
	}

	return c.seal(compressed)
}

// EncodeView encodes the state of a view. Transient views are encoded as the
// stateless token without touching the cipher.
func (c *Codec) EncodeView(data []byte, transient bool) (string, error) {
	if transient {
		return constants.StatelessToken, nil
	}

	return c.Encode(data)
}

// Decode reverses Encode. The stateless token decodes to nil without error.
// Every failure is a *DecodeError and no partial data is returned.
func (c *Codec) Decode(token string) ([]byte, error) {
	if token == constants.StatelessToken {
		return nil, nil
	}

	raw, err := c.open(token)
	if err != nil {
		return nil, err
	}

	out, err := c.compressor.Decompress(raw)
	if err != nil {
		return nil, c.fail(&DecodeError{Reason: ReasonCompress, Err: err})
	}

	return out, nil
}

// Seal encrypts and encodes data without compressing it.
func (c *Codec) Seal(data []byte) (string, error) { return c.seal(data) }

// Open reverses Seal.
func (c *Codec) Open(token string) ([]byte, error) { return c.open(token) }

func (c *Codec) seal(data []byte) (string, error) {
	if c.sealer != nil {
		var err error

		data, err = c.sealer.seal(data)
		if err != nil {
			return "", fmt.Errorf("seal state: %w", err)
		}
	}

	b64 := make([]byte, base64.RawURLEncoding.EncodedLen(len(data)))
	base64.RawURLEncoding.Encode(b64, data)

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(b64)
	if err != nil {
		return "", fmt.Errorf("map state token: %w", err)
	}

	return string(text), nil
}

func (c *Codec) open(token string) ([]byte, error) {
	b64, err := charmap.ISO8859_1.NewEncoder().String(token)
	if err != nil {
		return nil, c.fail(&DecodeError{Reason: ReasonCharset, Err: err})
	}

	data, err := base64.RawURLEncoding.DecodeString(b64)
	if err != nil {
		return nil, c.fail(&DecodeError{Reason: ReasonEncoding, Err: err})
	}

	if c.sealer == nil {
		return data, nil
	}

	plain, err := c.sealer.open(data)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, c.fail(de)
		}

		return nil, c.fail(&DecodeError{Reason: ReasonMalformed, Err: err})
	}

	return plain, nil
}

func (c *Codec) fail(err *DecodeError) error {
	metrics.IncDecodeFailure(err.Reason)
	c.log.Debugf("Rejected view state token: %s", err)

	return err
}
