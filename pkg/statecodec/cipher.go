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
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Algorithm selects the symmetric cipher.
type Algorithm string

const (
	AlgorithmAES       Algorithm = "aes"
	AlgorithmXChaCha20 Algorithm = "xchacha20"
)

// MACAlgorithm selects the message authentication code.
type MACAlgorithm string

const (
	MACHmacSHA256  MACAlgorithm = "hmacsha256"
	MACHmacSHA3256 MACAlgorithm = "hmacsha3-256"
)

// KeySize is the key length of both ciphers and the MAC.
const KeySize = 32

const macInfo = "faces view state mac"

// streamCipher encrypts with a fresh random nonce that is prepended to the
// ciphertext.
type streamCipher interface {
	nonceSize() int
	encrypt(nonce, plain []byte) ([]byte, error)
	decrypt(nonce, ciphertext []byte) ([]byte, error)
}

type aesCBC struct{ block cipher.Block }

func (a aesCBC) nonceSize() int { return aes.BlockSize }

func (a aesCBC) encrypt(iv, plain []byte) ([]byte, error) {
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(a.block, iv).CryptBlocks(out, padded)

	return out, nil
}

func (a aesCBC) decrypt(iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(a.block, iv).CryptBlocks(out, ciphertext)

	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size

	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}

	return data[:len(data)-n], nil
}

type xchacha struct{ key []byte }

func (x xchacha) nonceSize() int { return chacha20.NonceSizeX }

func (x xchacha) xor(nonce, in []byte) ([]byte, error) {
	c, err := chacha20.NewUnauthenticatedCipher(x.key, nonce)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(in))
	c.XORKeyStream(out, in)

	return out, nil
}

func (x xchacha) encrypt(nonce, plain []byte) ([]byte, error) { return x.xor(nonce, plain) }

func (x xchacha) decrypt(nonce, ciphertext []byte) ([]byte, error) { return x.xor(nonce, ciphertext) }

// sealer implements encrypt-then-MAC: nonce || ciphertext || mac, where the
// MAC covers nonce and ciphertext.
type sealer struct {
	cipher streamCipher
	mac    func() hash.Hash
	macKey []byte
}

func newSealer(alg Algorithm, macAlg MACAlgorithm, key, macKey []byte) (*sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", KeySize, len(key))
	}

	s := &sealer{macKey: macKey}

	switch alg {
	case AlgorithmAES, "":
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("aes key: %w", err)
		}

		s.cipher = aesCBC{block: block}
	case AlgorithmXChaCha20:
		s.cipher = xchacha{key: append([]byte(nil), key...)}
	default:
		return nil, fmt.Errorf("unknown cipher algorithm %q", alg)
	}

	switch macAlg {
	case MACHmacSHA256, "":
		s.mac = sha256.New
	case MACHmacSHA3256:
		s.mac = sha3.New256
	default:
		return nil, fmt.Errorf("unknown mac algorithm %q", macAlg)
	}

	if len(s.macKey) == 0 {
		derived, err := deriveMACKey(key)
		if err != nil {
			return nil, err
		}

		s.macKey = derived
	}

	return s, nil
}

// deriveMACKey derives a MAC key from the cipher key with HKDF-SHA256.
func deriveMACKey(key []byte) ([]byte, error) {
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(macInfo)), out); err != nil {
		return nil, fmt.Errorf("derive mac key: %w", err)
	}

	return out, nil
}

func (s *sealer) sum(data []byte) []byte {
	m := hmac.New(s.mac, s.macKey)
	m.Write(data)

	return m.Sum(nil)
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.cipher.nonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	ct, err := s.cipher.encrypt(nonce, plain)
	if err != nil {
		return nil, err
	}

	out := append(nonce, ct...)

	return append(out, s.sum(out)...), nil
}

// open verifies the MAC before anything is decrypted.
func (s *sealer) open(data []byte) ([]byte, error) {
	macSize := s.mac().Size()
	nonceSize := s.cipher.nonceSize()

	if len(data) < nonceSize+macSize {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: fmt.Errorf("sealed state too short: %d bytes", len(data))}
	}

	body, tag := data[:len(data)-macSize], data[len(data)-macSize:]
	if !hmac.Equal(tag, s.sum(body)) {
		return nil, &DecodeError{Reason: ReasonIntegrity, Err: ErrIntegrity}
	}

	plain, err := s.cipher.decrypt(body[:nonceSize], body[nonceSize:])
	if err != nil {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: err}
	}

	return plain, nil
}
